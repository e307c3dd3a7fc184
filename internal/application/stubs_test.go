package application_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/mindfolk/internal/application"
)

var referenceTime = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

type memoryAccounts struct {
	mu      sync.Mutex
	byID    map[string]application.AccountCredentials
	err     error
	lookups int
}

func newMemoryAccounts(accounts ...application.Account) *memoryAccounts {
	store := &memoryAccounts{byID: make(map[string]application.AccountCredentials)}
	for _, account := range accounts {
		store.byID[account.ID] = application.AccountCredentials{Account: account}
	}
	return store
}

func (m *memoryAccounts) CreateAccount(ctx context.Context, creds application.AccountCredentials) (application.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return application.Account{}, m.err
	}
	for _, existing := range m.byID {
		if existing.Account.Email == creds.Account.Email {
			return application.Account{}, application.ErrAlreadyExists
		}
	}
	m.byID[creds.Account.ID] = creds
	return creds.Account, nil
}

func (m *memoryAccounts) GetAccount(ctx context.Context, id string) (application.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return application.Account{}, m.err
	}
	creds, ok := m.byID[id]
	if !ok {
		return application.Account{}, application.ErrNotFound
	}
	return creds.Account, nil
}

func (m *memoryAccounts) ListAccounts(ctx context.Context) ([]application.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]application.Account, 0, len(m.byID))
	for _, creds := range m.byID {
		accounts = append(accounts, creds.Account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (m *memoryAccounts) GetAccountCredentialsByEmail(ctx context.Context, email string) (application.AccountCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, creds := range m.byID {
		if creds.Account.Email == email {
			return creds, nil
		}
	}
	return application.AccountCredentials{}, application.ErrNotFound
}

func (m *memoryAccounts) setPassword(id, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds := m.byID[id]
	creds.PasswordHash = hash
	m.byID[id] = creds
}

type memorySessions struct {
	mu      sync.Mutex
	byID    map[string]application.Session
	listErr error
	lists   int
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
	if _, ok := m.byID[session.ID]; ok {
		return application.Session{}, application.ErrAlreadyExists
	}
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
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []application.Session
	for _, session := range m.byID {
		if filter.ParticipantID != "" && !session.HasParticipant(filter.ParticipantID) {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				match = match || session.Status == status
			}
			if !match {
				continue
			}
		}
		if filter.ScheduledAfter != nil && session.ScheduledAt.Before(*filter.ScheduledAfter) {
			continue
		}
		if filter.ScheduledBefore != nil && session.ScheduledAt.After(*filter.ScheduledBefore) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (m *memorySessions) put(session application.Session) {
	m.mu.Lock()
	m.byID[session.ID] = session
	m.mu.Unlock()
}

type memoryTokens struct {
	mu        sync.Mutex
	byToken   map[string]application.AccessToken
	pruned    []time.Time
	createErr error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byToken: make(map[string]application.AccessToken)}
}

func (m *memoryTokens) CreateToken(ctx context.Context, token application.AccessToken) (application.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return application.AccessToken{}, m.createErr
	}
	m.byToken[token.Token] = token
	return token, nil
}

func (m *memoryTokens) GetToken(ctx context.Context, token string) (application.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byToken[token]
	if !ok {
		return application.AccessToken{}, application.ErrNotFound
	}
	return record, nil
}

func (m *memoryTokens) RevokeToken(ctx context.Context, token string, revokedAt time.Time) (application.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byToken[token]
	if !ok {
		return application.AccessToken{}, application.ErrNotFound
	}
	if record.RevokedAt == nil {
		record.RevokedAt = &revokedAt
		m.byToken[token] = record
	}
	return record, nil
}

func (m *memoryTokens) DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, reference)
	var deleted int64
	for key, record := range m.byToken {
		if !record.ExpiresAt.After(reference) {
			delete(m.byToken, key)
			deleted++
		}
	}
	return deleted, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (n *recordingNotifier) NotifyAccounts(ids ...string) {
	n.mu.Lock()
	n.calls = append(n.calls, append([]string(nil), ids...))
	n.mu.Unlock()
}

func (n *recordingNotifier) snapshot() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.calls...)
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var (
	admin     = application.Principal{AccountID: "admin", Role: application.RoleAdmin}
	client    = application.Principal{AccountID: "client", Role: application.RoleClient}
	therapist = application.Principal{AccountID: "therapist", Role: application.RoleTherapist}
	stranger  = application.Principal{AccountID: "stranger", Role: application.RoleClient}
)

func directory() *memoryAccounts {
	return newMemoryAccounts(
		application.Account{ID: "admin", Email: "admin@example.com", DisplayName: "Admin", Role: application.RoleAdmin},
		application.Account{ID: "client", Email: "casey@example.com", DisplayName: "Casey", Role: application.RoleClient, TimeZone: "Asia/Tokyo"},
		application.Account{ID: "therapist", Email: "dr.rivera@example.com", DisplayName: "Dr. Rivera", Role: application.RoleTherapist},
		application.Account{ID: "stranger", Email: "sam@example.com", DisplayName: "Sam", Role: application.RoleClient},
	)
}
