package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/persistence"
	"github.com/example/mindfolk/internal/reminder"
)

// translateError maps storage sentinels onto the errors services branch on.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return errors.Join(application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return errors.Join(application.ErrAlreadyExists, err)
	}
	return err
}

// accountStore serves the account repository, directory and credential
// lookups of the application layer.
type accountStore struct {
	repo persistence.AccountRepository
}

func newAccountStore(repo persistence.AccountRepository) *accountStore {
	return &accountStore{repo: repo}
}

func (a *accountStore) CreateAccount(ctx context.Context, credentials application.AccountCredentials) (application.Account, error) {
	if err := a.repo.CreateAccount(ctx, toPersistenceAccount(credentials)); err != nil {
		return application.Account{}, translateError(err)
	}
	return a.GetAccount(ctx, credentials.Account.ID)
}

func (a *accountStore) GetAccount(ctx context.Context, id string) (application.Account, error) {
	stored, err := a.repo.GetAccount(ctx, id)
	if err != nil {
		return application.Account{}, translateError(err)
	}
	return toApplicationAccount(stored), nil
}

func (a *accountStore) ListAccounts(ctx context.Context) ([]application.Account, error) {
	models, err := a.repo.ListAccounts(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	accounts := make([]application.Account, 0, len(models))
	for _, model := range models {
		accounts = append(accounts, toApplicationAccount(model))
	}
	return accounts, nil
}

func (a *accountStore) GetAccountCredentialsByEmail(ctx context.Context, email string) (application.AccountCredentials, error) {
	stored, err := a.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		return application.AccountCredentials{}, translateError(err)
	}
	return application.AccountCredentials{
		Account:      toApplicationAccount(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

type tokenStore struct {
	repo persistence.AccessTokenRepository
}

func newTokenStore(repo persistence.AccessTokenRepository) *tokenStore {
	return &tokenStore{repo: repo}
}

func (a *tokenStore) CreateToken(ctx context.Context, token application.AccessToken) (application.AccessToken, error) {
	if err := a.repo.CreateToken(ctx, toPersistenceToken(token)); err != nil {
		return application.AccessToken{}, translateError(err)
	}
	return a.GetToken(ctx, token.Token)
}

func (a *tokenStore) GetToken(ctx context.Context, token string) (application.AccessToken, error) {
	stored, err := a.repo.GetToken(ctx, token)
	if err != nil {
		return application.AccessToken{}, translateError(err)
	}
	return toApplicationToken(stored), nil
}

func (a *tokenStore) RevokeToken(ctx context.Context, token string, revokedAt time.Time) (application.AccessToken, error) {
	stored, err := a.repo.RevokeToken(ctx, token, revokedAt)
	if err != nil {
		return application.AccessToken{}, translateError(err)
	}
	return toApplicationToken(stored), nil
}

func (a *tokenStore) DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error) {
	removed, err := a.repo.DeleteExpiredTokens(ctx, reference)
	return removed, translateError(err)
}

type sessionStore struct {
	repo persistence.SessionRepository
}

func newSessionStore(repo persistence.SessionRepository) *sessionStore {
	return &sessionStore{repo: repo}
}

func (a *sessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, translateError(err)
	}
	return a.GetSession(ctx, session.ID)
}

func (a *sessionStore) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.UpdateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, translateError(err)
	}
	return a.GetSession(ctx, session.ID)
}

func (a *sessionStore) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStore) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		ParticipantID:   filter.ParticipantID,
		Statuses:        statuses,
		ScheduledAfter:  cloneTime(filter.ScheduledAfter),
		ScheduledBefore: cloneTime(filter.ScheduledBefore),
	})
	if err != nil {
		return nil, translateError(err)
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

func toApplicationAccount(model persistence.Account) application.Account {
	return application.Account{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        application.Role(model.Role),
		TimeZone:    model.TimeZone,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceAccount(credentials application.AccountCredentials) persistence.Account {
	account := credentials.Account
	return persistence.Account{
		ID:           account.ID,
		Email:        account.Email,
		DisplayName:  account.DisplayName,
		Role:         string(account.Role),
		PasswordHash: credentials.PasswordHash,
		TimeZone:     account.TimeZone,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
}

func toApplicationToken(model persistence.AccessToken) application.AccessToken {
	return application.AccessToken{
		ID:        model.ID,
		AccountID: model.AccountID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceToken(token application.AccessToken) persistence.AccessToken {
	return persistence.AccessToken{
		ID:        token.ID,
		AccountID: token.AccountID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
		RevokedAt: cloneTime(token.RevokedAt),
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:              model.ID,
		ClientID:        model.ClientID,
		TherapistID:     model.TherapistID,
		Type:            reminder.SessionType(model.Type),
		Status:          reminder.Status(model.Status),
		ScheduledAt:     model.ScheduledAt,
		DurationMinutes: model.DurationMinutes,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:              session.ID,
		ClientID:        session.ClientID,
		TherapistID:     session.TherapistID,
		Type:            string(session.Type),
		Status:          string(session.Status),
		ScheduledAt:     session.ScheduledAt,
		DurationMinutes: session.DurationMinutes,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
