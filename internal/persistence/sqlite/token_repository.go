package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/mindfolk/internal/persistence"
)

const tokenColumns = `id, account_id, token, expires_at, created_at, revoked_at`

// AccessTokenRepository implements persistence.AccessTokenRepository using SQLite
type AccessTokenRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAccessTokenRepository creates a new SQLite access token repository
func NewAccessTokenRepository(pool *ConnectionPool) *AccessTokenRepository {
	return &AccessTokenRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateToken stores a newly issued token.
func (r *AccessTokenRepository) CreateToken(ctx context.Context, token persistence.AccessToken) error {
	if token.ID == "" || token.AccountID == "" || strings.TrimSpace(token.Token) == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO access_tokens (` + tokenColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			token.ID,
			token.AccountID,
			strings.TrimSpace(token.Token),
			formatTime(token.ExpiresAt),
			formatTime(token.CreatedAt),
			nullableTime(token.RevokedAt),
		)
		return err
	})
}

// GetToken retrieves a token by its value.
func (r *AccessTokenRepository) GetToken(ctx context.Context, token string) (persistence.AccessToken, error) {
	value := strings.TrimSpace(token)
	if value == "" {
		return persistence.AccessToken{}, persistence.ErrNotFound
	}
	const query = `SELECT ` + tokenColumns + ` FROM access_tokens WHERE token = ?`
	record, err := scanToken(r.pool.DB().QueryRowContext(ctx, query, value))
	if err != nil {
		return persistence.AccessToken{}, r.mapper.MapError(err)
	}
	return record, nil
}

// RevokeToken marks a token as revoked. Revoking twice keeps the first timestamp.
func (r *AccessTokenRepository) RevokeToken(ctx context.Context, token string, revokedAt time.Time) (persistence.AccessToken, error) {
	value := strings.TrimSpace(token)
	if value == "" {
		return persistence.AccessToken{}, persistence.ErrNotFound
	}

	var revoked persistence.AccessToken
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const selectQuery = `SELECT ` + tokenColumns + ` FROM access_tokens WHERE token = ?`
		current, err := scanToken(tx.QueryRowContext(ctx, selectQuery, value))
		if err != nil {
			return r.mapper.MapError(err)
		}
		if current.RevokedAt == nil {
			at := revokedAt.UTC()
			const update = `UPDATE access_tokens SET revoked_at = ? WHERE id = ?`
			if _, err := tx.ExecContext(ctx, update, formatTime(at), current.ID); err != nil {
				return r.mapper.MapError(err)
			}
			current.RevokedAt = &at
		}
		revoked = current
		return nil
	})
	if err != nil {
		return persistence.AccessToken{}, err
	}
	return revoked, nil
}

// DeleteExpiredTokens removes tokens that expired or were revoked before reference.
func (r *AccessTokenRepository) DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error) {
	const query = `DELETE FROM access_tokens WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)`
	var deleted int64
	err := r.retry.WithRetry(ctx, func() error {
		ref := formatTime(reference)
		result, err := r.pool.DB().ExecContext(ctx, query, ref, ref)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func scanToken(row rowScanner) (persistence.AccessToken, error) {
	var (
		token                persistence.AccessToken
		expiresAt, createdAt string
		revokedAt            sql.NullString
	)
	if err := row.Scan(&token.ID, &token.AccountID, &token.Token, &expiresAt, &createdAt, &revokedAt); err != nil {
		return persistence.AccessToken{}, err
	}

	var err error
	if token.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.AccessToken{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.AccessToken{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if token.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return persistence.AccessToken{}, fmt.Errorf("failed to parse revoked_at: %w", err)
	}
	return token, nil
}
