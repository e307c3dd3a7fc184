package persistence

import (
	"context"
	"time"
)

// AccountRepository exposes CRUD operations for accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// SessionFilter narrows session queries. Zero values leave a dimension unconstrained.
type SessionFilter struct {
	ParticipantID   string
	Statuses        []string
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
}

// SessionRepository stores booked sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	UpdateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
}

// AccessTokenRepository stores issued bearer tokens.
type AccessTokenRepository interface {
	CreateToken(ctx context.Context, token AccessToken) error
	GetToken(ctx context.Context, token string) (AccessToken, error)
	RevokeToken(ctx context.Context, token string, revokedAt time.Time) (AccessToken, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error)
}
