package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/mindfolk/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// PlainPasswordHasher stores passwords with a fixed prefix so tests avoid the
// cost of argon2id.
func PlainPasswordHasher(password string) (string, error) {
	return "plain:" + password, nil
}

// VerifyPlainPassword checks hashes produced by PlainPasswordHasher.
func VerifyPlainPassword(hash, password string) error {
	if hash != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}

// AccountServiceDeps captures dependencies for constructing an account service.
type AccountServiceDeps struct {
	Accounts application.AccountRepository
	Hasher   application.PasswordHasher
	Logger   *slog.Logger
}

// NewAccountService builds an account service with the factory clock and ids.
func (f *ServiceFactory) NewAccountService(deps AccountServiceDeps) *application.AccountService {
	hasher := deps.Hasher
	if hasher == nil {
		hasher = PlainPasswordHasher
	}
	return application.NewAccountService(deps.Accounts, hasher, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials application.CredentialStore
	Tokens      application.TokenRepository
	Verify      application.PasswordVerifier
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

// NewAuthService builds an auth service whose token values come from the factory generator.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	verify := deps.Verify
	if verify == nil {
		verify = VerifyPlainPassword
	}
	return application.NewAuthService(application.AuthServiceDeps{
		Credentials:    deps.Credentials,
		Tokens:         deps.Tokens,
		VerifyPassword: verify,
		IDGenerator:    f.IDGenerator.NextFunc(),
		TokenGenerator: f.IDGenerator.NextUUID,
		Now:            f.Clock.NowFunc(),
		TokenTTL:       deps.TokenTTL,
		Logger:         deps.Logger,
	})
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Sessions application.SessionRepository
	Accounts application.AccountDirectory
	Notifier application.ChangeNotifier
	Logger   *slog.Logger
}

// NewSessionService builds a session service with the factory clock and ids.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	return application.NewSessionService(deps.Sessions, deps.Accounts, deps.Notifier, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), deps.Logger)
}

// ReminderServiceDeps captures dependencies for constructing a reminder service.
type ReminderServiceDeps struct {
	Sessions application.SessionRepository
	Accounts application.AccountDirectory
	Hub      *application.ChangeHub
	Views    *application.ViewRegistry
	Refresh  time.Duration
	Observer application.ReminderObserver
	Logger   *slog.Logger
}

// NewReminderService builds a reminder service driven by the factory clock.
func (f *ServiceFactory) NewReminderService(deps ReminderServiceDeps) *application.ReminderService {
	return application.NewReminderService(application.ReminderServiceConfig{
		Sessions:    deps.Sessions,
		Accounts:    deps.Accounts,
		Hub:         deps.Hub,
		Views:       deps.Views,
		Clock:       f.Clock,
		Refresh:     deps.Refresh,
		Observer:    deps.Observer,
		IDGenerator: f.IDGenerator.NextFunc(),
		Logger:      deps.Logger,
	})
}
