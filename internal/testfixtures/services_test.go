package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/reminder"
)

type capturingAccountRepo struct {
	created application.AccountCredentials
}

func (c *capturingAccountRepo) CreateAccount(ctx context.Context, creds application.AccountCredentials) (application.Account, error) {
	c.created = creds
	return creds.Account, nil
}

func (c *capturingAccountRepo) GetAccount(ctx context.Context, id string) (application.Account, error) {
	return application.Account{}, application.ErrNotFound
}

func (c *capturingAccountRepo) ListAccounts(ctx context.Context) ([]application.Account, error) {
	return nil, nil
}

func TestServiceFactoryNewAccountService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingAccountRepo{}

	svc := factory.NewAccountService(AccountServiceDeps{Accounts: repo})
	admin := NewAccountFixture(WithAccountRole(application.RoleAdmin)).Principal()
	input := application.AccountInput{Email: "casey@example.com", DisplayName: "Casey", Role: application.RoleClient, Password: "password1"}

	account, err := svc.CreateAccount(context.Background(), application.CreateAccountParams{Principal: admin, Input: input})
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if account.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", account.ID)
	}
	if repo.created.PasswordHash != "plain:password1" {
		t.Fatalf("expected plain hasher, got %q", repo.created.PasswordHash)
	}
	if !account.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), account.CreatedAt)
	}
}

type fixtureSessionRepo struct {
	sessions []application.Session
}

func (r *fixtureSessionRepo) CreateSession(ctx context.Context, s application.Session) (application.Session, error) {
	return s, nil
}

func (r *fixtureSessionRepo) UpdateSession(ctx context.Context, s application.Session) (application.Session, error) {
	return s, nil
}

func (r *fixtureSessionRepo) GetSession(ctx context.Context, id string) (application.Session, error) {
	for _, s := range r.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return application.Session{}, application.ErrNotFound
}

func (r *fixtureSessionRepo) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	return r.sessions, nil
}

func TestServiceFactoryNewReminderServiceUsesClock(t *testing.T) {
	factory := NewServiceFactory()
	session := NewSessionFixture(WithSessionStartingIn(8*time.Minute), WithSessionParticipants("client-001", "therapist-001"))
	repo := &fixtureSessionRepo{sessions: []application.Session{session.Application()}}

	svc := factory.NewReminderService(ReminderServiceDeps{Sessions: repo})
	principal := application.Principal{AccountID: "client-001", Role: application.RoleClient}
	view, err := svc.OpenView(context.Background(), principal)
	if err != nil {
		t.Fatalf("OpenView returned error: %v", err)
	}

	reminders, err := svc.Reminders(context.Background(), principal, view.ID)
	if err != nil {
		t.Fatalf("Reminders returned error: %v", err)
	}
	if len(reminders) != 1 || !reminders[0].IsUrgent || reminders[0].TimeUntilSession != 8*time.Minute {
		t.Fatalf("unexpected reminders %+v", reminders)
	}

	factory.Clock.Advance(4 * time.Minute)
	reminders, _ = svc.Reminders(context.Background(), principal, view.ID)
	if len(reminders) != 1 || !reminders[0].IsImmediate {
		t.Fatalf("expected immediate reminder after advancing the clock, got %+v", reminders)
	}
}

func TestFixtureConversions(t *testing.T) {
	account := NewAccountFixture(WithAccountRole(application.RoleTherapist), WithAccountTimeZone("Europe/Paris"))
	if got := account.Persistence(); got.Role != "therapist" || got.TimeZone != "Europe/Paris" {
		t.Fatalf("unexpected persistence account %+v", got)
	}

	session := NewSessionFixture(WithSessionStatus(reminder.StatusCancelled))
	if got := session.Persistence(); got.Status != "cancelled" || got.Type != "therapy" {
		t.Fatalf("unexpected persistence session %+v", got)
	}
	if got := session.Record("Dr. Rivera"); got.CounterpartyName != "Dr. Rivera" || got.Status != reminder.StatusCancelled {
		t.Fatalf("unexpected record %+v", got)
	}

	revoked := NewAccessTokenFixture(WithTokenRevokedAt(ReferenceTime()))
	converted := revoked.Persistence()
	if converted.RevokedAt == revoked.RevokedAt || !converted.RevokedAt.Equal(ReferenceTime()) {
		t.Fatalf("expected RevokedAt to be copied")
	}
}
