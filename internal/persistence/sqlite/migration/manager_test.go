package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewConnectionManager(InMemoryTestSQLiteConfig()).GetConnection()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var baseMigrations = map[string]string{
	"001_initial_schema.sql": "CREATE TABLE accounts (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE);",
	"002_add_sessions.sql":   "CREATE TABLE sessions (id TEXT PRIMARY KEY, client_id TEXT NOT NULL REFERENCES accounts(id));\nCREATE INDEX idx_sessions_client ON sessions(client_id);",
}

func TestMigrationManager_RunMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	manager := NewMigrationManager(NewFileScanner(mapFS(baseMigrations)), NewSQLiteExecutor(db), discardLogger())

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO accounts (id, email) VALUES ('a1', 'a@example.com')`); err != nil {
		t.Fatalf("expected accounts table to exist: %v", err)
	}

	// A second run must be a no-op.
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	files := mapFS(map[string]string{
		"001_initial_schema.sql": "CREATE TABLE accounts (id TEXT PRIMARY KEY);",
		"002_broken.sql":         "CREATE TABLE partial (id TEXT);\nINSERT INTO missing_table VALUES (1);",
	})
	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), discardLogger())

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'partial'`).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected failed migration to be rolled back")
	}

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "001" || status.PendingCount != 1 {
		t.Fatalf("unexpected status after failure: %+v", status)
	}
}

func TestMigrationManager_DetectsSequenceGap(t *testing.T) {
	db := openTestDB(t)
	files := mapFS(map[string]string{
		"001_initial_schema.sql": "CREATE TABLE a (id TEXT);",
		"003_skip.sql":           "CREATE TABLE c (id TEXT);",
	})
	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), discardLogger())

	if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMigrationManager_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	original := mapFS(map[string]string{"001_initial_schema.sql": "CREATE TABLE a (id TEXT);"})
	if err := NewMigrationManager(NewFileScanner(original), NewSQLiteExecutor(db), discardLogger()).RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	edited := fstest.MapFS{"001_initial_schema.sql": &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}}
	err := NewMigrationManager(NewFileScanner(edited), NewSQLiteExecutor(db), discardLogger()).RunMigrations(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestConnectionManager_DataSourceName(t *testing.T) {
	cfg := DefaultSQLiteConfig("/tmp/mindfolk.db")
	got := NewConnectionManager(cfg).DataSourceName()
	want := "/tmp/mindfolk.db?_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	if got != want {
		t.Fatalf("unexpected DSN:\n got %s\nwant %s", got, want)
	}

	cfg.DSN = "file:test.db?cache=shared"
	cfg.BusyTimeout = 0
	cfg.JournalMode = ""
	cfg.Synchronous = ""
	if got := NewConnectionManager(cfg).DataSourceName(); got != "file:test.db?cache=shared&_pragma=foreign_keys(1)" {
		t.Fatalf("unexpected DSN with existing query: %s", got)
	}
}

func TestConnectionManager_ValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SQLiteConfig)
	}{
		{name: "empty DSN", mutate: func(c *SQLiteConfig) { c.DSN = " " }},
		{name: "negative timeout", mutate: func(c *SQLiteConfig) { c.BusyTimeout = -1 }},
		{name: "bad journal mode", mutate: func(c *SQLiteConfig) { c.JournalMode = "FAST" }},
		{name: "bad synchronous mode", mutate: func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }},
		{name: "negative pool", mutate: func(c *SQLiteConfig) { c.MaxOpenConns = -1 }},
	}
	for _, tt := range tests {
		cfg := InMemoryTestSQLiteConfig()
		tt.mutate(&cfg)
		if err := NewConnectionManager(cfg).ValidateConfig(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
