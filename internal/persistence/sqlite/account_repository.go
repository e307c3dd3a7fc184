package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/mindfolk/internal/persistence"
)

const accountColumns = `id, email, display_name, role, password_hash, time_zone, created_at, updated_at`

// AccountRepository implements persistence.AccountRepository using SQLite
type AccountRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAccountRepository creates a new SQLite account repository
func NewAccountRepository(pool *ConnectionPool) *AccountRepository {
	return &AccountRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateAccount stores a new account. Emails are matched case-insensitively.
func (r *AccountRepository) CreateAccount(ctx context.Context, account persistence.Account) error {
	if strings.TrimSpace(account.ID) == "" || strings.TrimSpace(account.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			account.ID,
			normalizeEmail(account.Email),
			account.DisplayName,
			account.Role,
			account.PasswordHash,
			account.TimeZone,
			formatTime(account.CreatedAt),
			formatTime(account.UpdatedAt),
		)
		return err
	})
}

// GetAccount retrieves an account by ID.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (persistence.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	account, err := scanAccount(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.Account{}, r.mapper.MapError(err)
	}
	return account, nil
}

// GetAccountByEmail retrieves an account by its email address.
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (persistence.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`
	account, err := scanAccount(r.pool.DB().QueryRowContext(ctx, query, normalizeEmail(email)))
	if err != nil {
		return persistence.Account{}, r.mapper.MapError(err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by display name.
func (r *AccountRepository) ListAccounts(ctx context.Context) ([]persistence.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts ORDER BY display_name, id`
	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var accounts []persistence.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return accounts, nil
}

func scanAccount(row rowScanner) (persistence.Account, error) {
	var (
		account              persistence.Account
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.Role,
		&account.PasswordHash,
		&account.TimeZone,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Account{}, err
	}

	var err error
	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Account{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if account.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Account{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
