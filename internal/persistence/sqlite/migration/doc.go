// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from an fs.FS, which
// lets callers ship them inside the binary with embed.FS. Applied versions
// are tracked in the schema_migrations table together with the checksum of
// the file that was executed.
//
// Example usage:
//
//	scanner := migration.NewFileScanner(files)
//	executor := migration.NewSQLiteExecutor(db)
//	manager := migration.NewMigrationManager(scanner, executor, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
