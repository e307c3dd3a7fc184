package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/persistence"
	"github.com/example/mindfolk/internal/reminder"
	"github.com/example/mindfolk/internal/testfixtures"
)

func seedParticipants(t *testing.T, harness *testfixtures.SQLiteHarness) (client, therapist testfixtures.AccountFixture) {
	t.Helper()
	client = testfixtures.NewAccountFixture(testfixtures.WithAccountRole(application.RoleClient))
	therapist = testfixtures.NewAccountFixture(
		testfixtures.WithAccountRole(application.RoleTherapist),
		testfixtures.WithAccountDisplayName("Dr. Rivera"),
	)
	harness.SeedAccounts(t, client, therapist)
	return client, therapist
}

func TestAccountRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates and reads accounts", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		account := testfixtures.NewAccountFixture(
			testfixtures.WithAccountEmail("Casey@Example.com"),
			testfixtures.WithAccountTimeZone("Asia/Tokyo"),
		).Persistence()
		if err := harness.Accounts.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}

		fetched, err := harness.Accounts.GetAccountByEmail(ctx, "CASEY@example.com")
		if err != nil {
			t.Fatalf("GetAccountByEmail failed: %v", err)
		}
		if fetched.ID != account.ID || fetched.Email != "casey@example.com" || fetched.TimeZone != "Asia/Tokyo" || fetched.PasswordHash != account.PasswordHash {
			t.Fatalf("unexpected account: %#v", fetched)
		}
		if !fetched.CreatedAt.Equal(account.CreatedAt) {
			t.Fatalf("expected created at %v, got %v", account.CreatedAt, fetched.CreatedAt)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		first := testfixtures.NewAccountFixture(testfixtures.WithAccountEmail("dup@example.com"))
		second := testfixtures.NewAccountFixture(testfixtures.WithAccountEmail("DUP@example.com"))
		harness.SeedAccounts(t, first)

		if err := harness.Accounts.CreateAccount(ctx, second.Persistence()); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("returns ErrNotFound for unknown ids", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewSQLiteHarness(t)
		if _, err := harness.Accounts.GetAccount(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	t.Run("lists sessions of a participant in start order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		client, therapist := seedParticipants(t, harness)
		other := testfixtures.NewAccountFixture()
		harness.SeedAccounts(t, other)

		with := testfixtures.WithSessionParticipants(client.ID, therapist.ID)
		harness.SeedSessions(t,
			testfixtures.NewSessionFixture(testfixtures.WithSessionID("late"), with, testfixtures.WithSessionStartingIn(3*time.Hour)),
			testfixtures.NewSessionFixture(testfixtures.WithSessionID("early"), with, testfixtures.WithSessionStartingIn(time.Hour)),
			testfixtures.NewSessionFixture(testfixtures.WithSessionID("cancelled"), with, testfixtures.WithSessionStartingIn(2*time.Hour), testfixtures.WithSessionStatus(reminder.StatusCancelled)),
			testfixtures.NewSessionFixture(testfixtures.WithSessionID("past"), with, testfixtures.WithSessionStartingIn(-time.Hour)),
			testfixtures.NewSessionFixture(testfixtures.WithSessionID("elsewhere"), testfixtures.WithSessionParticipants(other.ID, therapist.ID), testfixtures.WithSessionStartingIn(time.Hour)),
		)

		after := testfixtures.ReferenceTime()
		sessions, err := harness.Sessions.ListSessions(ctx, persistence.SessionFilter{
			ParticipantID:  client.ID,
			Statuses:       []string{string(reminder.StatusConfirmed)},
			ScheduledAfter: &after,
		})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		var ids []string
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
		if !slices.Equal(ids, []string{"early", "late"}) {
			t.Fatalf("unexpected sessions %v", ids)
		}

		all, err := harness.Sessions.ListSessions(ctx, persistence.SessionFilter{ParticipantID: therapist.ID})
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("expected therapist to see five sessions, got %d", len(all))
		}
	})

	t.Run("updates status and start time", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		client, therapist := seedParticipants(t, harness)
		fixture := testfixtures.NewSessionFixture(testfixtures.WithSessionParticipants(client.ID, therapist.ID))
		harness.SeedSessions(t, fixture)

		session := fixture.Persistence()
		session.Status = string(reminder.StatusCompleted)
		session.ScheduledAt = session.ScheduledAt.Add(15 * time.Minute)
		session.UpdatedAt = session.UpdatedAt.Add(time.Hour)
		if err := harness.Sessions.UpdateSession(ctx, session); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}

		fetched, err := harness.Sessions.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if fetched.Status != "completed" || !fetched.ScheduledAt.Equal(session.ScheduledAt) || !fetched.UpdatedAt.Equal(session.UpdatedAt) {
			t.Fatalf("unexpected session after update: %#v", fetched)
		}

		missing := session
		missing.ID = "missing"
		if err := harness.Sessions.UpdateSession(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects unknown participants", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewSQLiteHarness(t)
		session := testfixtures.NewSessionFixture(testfixtures.WithSessionParticipants("ghost", "phantom")).Persistence()
		if err := harness.Sessions.CreateSession(context.Background(), session); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})
}

func TestAccessTokenRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	client, _ := seedParticipants(t, harness)

	base := testfixtures.ReferenceTime()
	active := testfixtures.NewAccessTokenFixture(testfixtures.WithTokenAccount(client.ID))
	expired := testfixtures.NewAccessTokenFixture(testfixtures.WithTokenAccount(client.ID), testfixtures.WithTokenExpiresAt(base.Add(-time.Minute)))
	for _, token := range []testfixtures.AccessTokenFixture{active, expired} {
		if err := harness.Tokens.CreateToken(ctx, token.Persistence()); err != nil {
			t.Fatalf("CreateToken failed: %v", err)
		}
	}

	revoked, err := harness.Tokens.RevokeToken(ctx, active.Token, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected revoked token %#v", revoked)
	}

	deleted, err := harness.Tokens.DeleteExpiredTokens(ctx, base)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected only the expired token to be pruned, deleted %d", deleted)
	}
	if _, err := harness.Tokens.GetToken(ctx, expired.Token); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected pruned token to be gone, got %v", err)
	}
	if _, err := harness.Tokens.GetToken(ctx, active.Token); err != nil {
		t.Fatalf("expected revoked token to remain until its revocation is older than the reference, got %v", err)
	}
}
