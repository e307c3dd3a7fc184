// Package sqlite implements the persistence repositories on top of
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/mindfolk/internal/persistence"
	"github.com/example/mindfolk/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return sub
}

// Storage bundles the SQLite repositories over a shared connection pool.
type Storage struct {
	*AccountRepository
	*SessionRepository
	*AccessTokenRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.AccountRepository     = (*Storage)(nil)
	_ persistence.SessionRepository     = (*Storage)(nil)
	_ persistence.AccessTokenRepository = (*Storage)(nil)
)

// Open connects to the database at dsn using the default configuration, or
// the in-memory test configuration when dsn is ":memory:".
func Open(dsn string) (*Storage, error) {
	config := migration.DefaultSQLiteConfig(dsn)
	if dsn == migration.MemoryDSN {
		config = migration.InMemoryTestSQLiteConfig()
	}
	return OpenWithConfig(config, nil)
}

// OpenWithConfig connects using config. A nil logger uses slog.Default.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		AccountRepository:     NewAccountRepository(pool),
		SessionRepository:     NewSessionRepository(pool),
		AccessTokenRepository: NewAccessTokenRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Migrate applies pending embedded migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := s.migrationManager()
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	return s.migrationManager().GetMigrationStatus(ctx)
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

func (s *Storage) migrationManager() migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(Migrations()),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}
