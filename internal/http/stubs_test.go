package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/reminder"
	"github.com/example/mindfolk/internal/testfixtures"
)

var (
	clientPrincipal    = application.Principal{AccountID: "client-001", Role: application.RoleClient}
	therapistPrincipal = application.Principal{AccountID: "therapist-001", Role: application.RoleTherapist}
	adminPrincipal     = application.Principal{AccountID: "admin-001", Role: application.RoleAdmin}
)

// stubValidator accepts the tokens "<account id>-token".
type stubValidator struct {
	err error
}

func (s stubValidator) ValidateToken(ctx context.Context, token string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	for _, p := range []application.Principal{clientPrincipal, therapistPrincipal, adminPrincipal} {
		if token == p.AccountID+"-token" {
			return p, nil
		}
	}
	return application.Principal{}, application.ErrUnauthorized
}

type stubAuth struct {
	mu      sync.Mutex
	result  application.AuthenticateResult
	err     error
	revoked []string
}

func (s *stubAuth) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.err != nil {
		return application.AuthenticateResult{}, s.err
	}
	return s.result, nil
}

func (s *stubAuth) RevokeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, token)
	return s.err
}

type stubAccounts struct {
	created application.CreateAccountParams
	err     error
}

func (s *stubAccounts) CreateAccount(ctx context.Context, params application.CreateAccountParams) (application.Account, error) {
	s.created = params
	if s.err != nil {
		return application.Account{}, s.err
	}
	return application.Account{ID: "account-1", Email: params.Input.Email, DisplayName: params.Input.DisplayName, Role: params.Input.Role}, nil
}

func (s *stubAccounts) GetAccount(ctx context.Context, principal application.Principal, id string) (application.Account, error) {
	if principal.AccountID != id && !principal.IsAdmin() {
		return application.Account{}, application.ErrUnauthorized
	}
	return application.Account{ID: id}, s.err
}

func (s *stubAccounts) ListAccounts(ctx context.Context, principal application.Principal) ([]application.Account, error) {
	if !principal.IsAdmin() {
		return nil, application.ErrUnauthorized
	}
	return []application.Account{{ID: "a"}, {ID: "b"}}, s.err
}

// memorySessions is an in-memory application.SessionRepository.
type memorySessions struct {
	mu   sync.Mutex
	byID map[string]application.Session
}

func newMemorySessions(sessions ...application.Session) *memorySessions {
	store := &memorySessions{byID: make(map[string]application.Session)}
	for _, session := range sessions {
		store.byID[session.ID] = session
	}
	return store
}

func (m *memorySessions) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[session.ID] = session
	return session, nil
}

func (m *memorySessions) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[session.ID]; !ok {
		return application.Session{}, application.ErrNotFound
	}
	m.byID[session.ID] = session
	return session, nil
}

func (m *memorySessions) GetSession(ctx context.Context, id string) (application.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.byID[id]
	if !ok {
		return application.Session{}, application.ErrNotFound
	}
	return session, nil
}

func (m *memorySessions) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []application.Session
	for _, session := range m.byID {
		if filter.ParticipantID != "" && !session.HasParticipant(filter.ParticipantID) {
			continue
		}
		if len(filter.Statuses) > 0 && session.Status != filter.Statuses[0] {
			continue
		}
		if filter.ScheduledAfter != nil && session.ScheduledAt.Before(*filter.ScheduledAfter) {
			continue
		}
		if filter.ScheduledBefore != nil && session.ScheduledAt.After(*filter.ScheduledBefore) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

type directory map[string]application.Account

func (d directory) GetAccount(ctx context.Context, id string) (application.Account, error) {
	account, ok := d[id]
	if !ok {
		return application.Account{}, application.ErrNotFound
	}
	return account, nil
}

func testDirectory() directory {
	return directory{
		"client-001":    {ID: "client-001", DisplayName: "Casey", Role: application.RoleClient},
		"therapist-001": {ID: "therapist-001", DisplayName: "Dr. Rivera", Role: application.RoleTherapist},
		"admin-001":     {ID: "admin-001", DisplayName: "Admin", Role: application.RoleAdmin},
	}
}

type stubSessions struct {
	session application.Session
	err     error
	status  application.UpdateStatusParams
	listed  application.ListUpcomingParams
}

func (s *stubSessions) BookSession(ctx context.Context, params application.BookSessionParams) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	return application.Session{
		ID:              "session-1",
		ClientID:        params.ClientID,
		TherapistID:     params.TherapistID,
		Type:            params.Type,
		Status:          reminder.StatusConfirmed,
		ScheduledAt:     params.ScheduledAt,
		DurationMinutes: params.DurationMinutes,
	}, nil
}

func (s *stubSessions) GetSession(ctx context.Context, principal application.Principal, id string) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	if id != s.session.ID {
		return application.Session{}, application.ErrNotFound
	}
	return s.session, nil
}

func (s *stubSessions) UpdateStatus(ctx context.Context, params application.UpdateStatusParams) (application.Session, error) {
	s.status = params
	if s.err != nil {
		return application.Session{}, s.err
	}
	updated := s.session
	updated.Status = params.Status
	return updated, nil
}

func (s *stubSessions) Reschedule(ctx context.Context, params application.RescheduleParams) (application.Session, error) {
	if s.err != nil {
		return application.Session{}, s.err
	}
	updated := s.session
	updated.ScheduledAt = params.ScheduledAt
	return updated, nil
}

func (s *stubSessions) ListUpcoming(ctx context.Context, params application.ListUpcomingParams) ([]application.Session, error) {
	s.listed = params
	if s.err != nil {
		return nil, s.err
	}
	return []application.Session{s.session}, nil
}

// stubCountdowns renders every session as starting in eight minutes.
type stubCountdowns struct {
	join    application.JoinResult
	joinErr error
}

func (s *stubCountdowns) Countdown(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error) {
	if sessionID != "session-1" {
		return application.SessionView{}, application.ErrNotFound
	}
	return s.Describe(ctx, principal, application.Session{ID: sessionID})
}

func (s *stubCountdowns) Describe(ctx context.Context, principal application.Principal, session application.Session) (application.SessionView, error) {
	now := session.ScheduledAt.Add(-8 * time.Minute)
	return application.SessionView{
		Session:      session,
		Counterparty: "Dr. Rivera",
		Countdown:    countdown.Describe(session.ScheduledAt, now, time.UTC),
	}, nil
}

func (s *stubCountdowns) Join(ctx context.Context, principal application.Principal, sessionID string) (application.JoinResult, error) {
	if s.joinErr != nil {
		return application.JoinResult{}, s.joinErr
	}
	return s.join, nil
}

// reminderEnv wires a real reminder service over in-memory repositories.
type reminderEnv struct {
	clock    *testfixtures.Clock
	sessions *memorySessions
	service  *application.ReminderService
}

func newReminderEnv(t *testing.T, sessions ...application.Session) *reminderEnv {
	t.Helper()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	store := newMemorySessions(sessions...)
	factory := testfixtures.NewServiceFactory(testfixtures.WithClock(clock))
	service := factory.NewReminderService(testfixtures.ReminderServiceDeps{
		Sessions: store,
		Accounts: testDirectory(),
	})
	return &reminderEnv{clock: clock, sessions: store, service: service}
}

func confirmedSession(id string, startsIn time.Duration) application.Session {
	return testfixtures.NewSessionFixture(
		testfixtures.WithSessionID(id),
		testfixtures.WithSessionStartingIn(startsIn),
	).Application()
}

func newTestRouter(cfg RouterConfig) http.Handler {
	if cfg.RequireToken == nil {
		cfg.RequireToken = RequireToken(stubValidator{}, nil)
	}
	return NewRouter(cfg)
}

func authedRequest(method, target, token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
