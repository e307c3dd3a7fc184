package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// AccountRepository captures the persistence operations needed by the account service.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account AccountCredentials) (Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// AccountDirectory resolves accounts by ID.
type AccountDirectory interface {
	GetAccount(ctx context.Context, id string) (Account, error)
}

// AccountService validates and persists accounts.
type AccountService struct {
	accounts    AccountRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAccountService wires dependencies for the account service. A nil hasher
// uses HashPassword.
func NewAccountService(accounts AccountRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AccountService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		accounts:    accounts,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateAccount validates input and persists a new account for administrators.
func (s *AccountService) CreateAccount(ctx context.Context, params CreateAccountParams) (account Account, err error) {
	if s == nil {
		return Account{}, fmt.Errorf("AccountService is nil")
	}
	if s.accounts == nil {
		return Account{}, fmt.Errorf("account repository not configured")
	}

	input := normalizeAccountInput(params.Input)
	logger := serviceLogger(ctx, s.logger, "AccountService", "CreateAccount",
		"principal_id", params.Principal.AccountID,
		"role", string(input.Role),
	)
	defer func() {
		logOutcome(ctx, logger, err, "account created", "account_id", account.ID)
	}()

	if !params.Principal.IsAdmin() {
		return Account{}, ErrUnauthorized
	}
	if err = validateAccountInput(input).errOrNil(); err != nil {
		return Account{}, err
	}

	var hash string
	if hash, err = s.hash(input.Password); err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	candidate := AccountCredentials{
		Account: Account{
			ID:          s.idGenerator(),
			Email:       input.Email,
			DisplayName: input.DisplayName,
			Role:        input.Role,
			TimeZone:    input.TimeZone,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	}

	account, err = s.accounts.CreateAccount(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			vErr := &ValidationError{}
			vErr.add("email", "email is already registered")
			return Account{}, errors.Join(ErrAlreadyExists, vErr)
		}
		return Account{}, err
	}
	return account, nil
}

// GetAccount returns an account to itself or to an administrator.
func (s *AccountService) GetAccount(ctx context.Context, principal Principal, id string) (Account, error) {
	if s == nil {
		return Account{}, fmt.Errorf("AccountService is nil")
	}
	if principal.AccountID != id && !principal.IsAdmin() {
		return Account{}, ErrUnauthorized
	}
	return s.accounts.GetAccount(ctx, id)
}

// ListAccounts returns every account for administrators.
func (s *AccountService) ListAccounts(ctx context.Context, principal Principal) ([]Account, error) {
	if s == nil {
		return nil, fmt.Errorf("AccountService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.accounts.ListAccounts(ctx)
}

func normalizeAccountInput(input AccountInput) AccountInput {
	return AccountInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
		TimeZone:    strings.TrimSpace(input.TimeZone),
		Password:    input.Password,
	}
}

func validateAccountInput(input AccountInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		vErr.add("email", "email is invalid")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if !input.Role.Valid() {
		vErr.add("role", "role must be one of client, therapist, admin")
	}
	if len(input.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if input.TimeZone != "" {
		if _, err := time.LoadLocation(input.TimeZone); err != nil {
			vErr.add("time_zone", "time zone is not a known IANA zone")
		}
	}
	return vErr
}
