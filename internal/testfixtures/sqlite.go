package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/mindfolk/internal/persistence"
	"github.com/example/mindfolk/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database file.
type SQLiteHarness struct {
	Accounts persistence.AccountRepository
	Sessions persistence.SessionRepository
	Tokens   persistence.AccessTokenRepository
	Storage  *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Close is also registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "mindfolk.db")
	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Accounts: storage,
		Sessions: storage,
		Tokens:   storage,
		Storage:  storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedAccounts inserts the given account fixtures.
func (h *SQLiteHarness) SeedAccounts(tb testing.TB, accounts ...AccountFixture) {
	tb.Helper()
	for _, account := range accounts {
		if err := h.Accounts.CreateAccount(context.Background(), account.Persistence()); err != nil {
			tb.Fatalf("seed account %s: %v", account.ID, err)
		}
	}
}

// SeedSessions inserts the given session fixtures.
func (h *SQLiteHarness) SeedSessions(tb testing.TB, sessions ...SessionFixture) {
	tb.Helper()
	for _, session := range sessions {
		if err := h.Sessions.CreateSession(context.Background(), session.Persistence()); err != nil {
			tb.Fatalf("seed session %s: %v", session.ID, err)
		}
	}
}
