package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTokenTTL is used when no positive TTL is configured.
const DefaultTokenTTL = 12 * time.Hour

// CredentialStore exposes account credential lookups required by the auth service.
type CredentialStore interface {
	GetAccountCredentialsByEmail(ctx context.Context, email string) (AccountCredentials, error)
	GetAccount(ctx context.Context, id string) (Account, error)
}

// TokenRepository captures the persistence interactions for issued access tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, token AccessToken) (AccessToken, error)
	GetToken(ctx context.Context, token string) (AccessToken, error)
	RevokeToken(ctx context.Context, token string, revokedAt time.Time) (AccessToken, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error)
}

// AuthService issues, validates and revokes access tokens.
type AuthService struct {
	credentials    CredentialStore
	tokens         TokenRepository
	verifyPassword PasswordVerifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	tokenTTL       time.Duration
	logger         *slog.Logger
}

// AuthServiceDeps groups the collaborators of an AuthService.
type AuthServiceDeps struct {
	Credentials    CredentialStore
	Tokens         TokenRepository
	VerifyPassword PasswordVerifier
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
	TokenTTL       time.Duration
	Logger         *slog.Logger
}

// NewAuthService constructs an AuthService, filling unset dependencies with defaults.
func NewAuthService(deps AuthServiceDeps) *AuthService {
	s := &AuthService{
		credentials:    deps.Credentials,
		tokens:         deps.Tokens,
		verifyPassword: deps.VerifyPassword,
		idGenerator:    deps.IDGenerator,
		tokenGenerator: deps.TokenGenerator,
		now:            deps.Now,
		tokenTTL:       deps.TokenTTL,
		logger:         defaultLogger(deps.Logger),
	}
	if s.verifyPassword == nil {
		s.verifyPassword = VerifyPassword
	}
	if s.tokenGenerator == nil {
		s.tokenGenerator = func() string { return "" }
	}
	if s.idGenerator == nil {
		s.idGenerator = s.tokenGenerator
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new access token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.tokens == nil {
		return AuthenticateResult{}, fmt.Errorf("auth service not configured")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		logOutcome(ctx, logger, err, "authentication succeeded",
			"account_id", result.Account.ID,
			"token_id", result.Token.ID,
		)
	}()

	if email == "" || params.Password == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	creds, err := s.credentials.GetAccountCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}
	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if _, err = s.tokens.DeleteExpiredTokens(ctx, now); err != nil {
		return AuthenticateResult{}, err
	}

	token := AccessToken{
		ID:        s.idGenerator(),
		AccountID: creds.Account.ID,
		Token:     s.tokenGenerator(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if token.Token == "" {
		return AuthenticateResult{}, fmt.Errorf("token generator returned an empty token")
	}

	if token, err = s.tokens.CreateToken(ctx, token); err != nil {
		return AuthenticateResult{}, err
	}
	return AuthenticateResult{Account: creds.Account, Token: token}, nil
}

// ValidateToken verifies that token is active and returns its principal.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "token validated", "principal_id", principal.AccountID)
	}()

	if trimmed == "" {
		return Principal{}, ErrUnauthorized
	}

	record, err := s.tokens.GetToken(ctx, trimmed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if record.RevokedAt != nil {
		return Principal{}, ErrTokenRevoked
	}
	if !record.ExpiresAt.After(s.now()) {
		return Principal{}, ErrTokenExpired
	}

	account, err := s.credentials.GetAccount(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	return Principal{AccountID: account.ID, Role: account.Role}, nil
}

// RevokeToken invalidates an access token at logout.
func (s *AuthService) RevokeToken(ctx context.Context, token string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.tokens == nil {
		return fmt.Errorf("token repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "RevokeToken", "token_provided", trimmed != "")
	defer func() {
		logOutcome(ctx, logger, err, "token revoked")
	}()

	if trimmed == "" {
		return ErrInvalidCredentials
	}
	if _, err = s.tokens.RevokeToken(ctx, trimmed, s.now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}
