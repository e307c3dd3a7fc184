package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/persistence"
	"github.com/example/mindfolk/internal/reminder"
)

var (
	accountCounter uint64
	sessionCounter uint64
	tokenCounter   uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Account fixtures ----------------------------

// AccountFixture represents a deterministic account that can be materialised
// for application or persistence tests.
type AccountFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         application.Role
	PasswordHash string
	TimeZone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountOption configures the generated account fixture.
type AccountOption func(*AccountFixture)

// NewAccountFixture returns a client account with optional overrides.
func NewAccountFixture(opts ...AccountOption) AccountFixture {
	idx := atomic.AddUint64(&accountCounter, 1)
	id := fmt.Sprintf("account-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := AccountFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("Account %03d", idx),
		Role:         application.RoleClient,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAccountID overrides the generated account ID.
func WithAccountID(id string) AccountOption {
	return func(f *AccountFixture) {
		f.ID = id
	}
}

// WithAccountEmail overrides the generated email address.
func WithAccountEmail(email string) AccountOption {
	return func(f *AccountFixture) {
		f.Email = email
	}
}

// WithAccountDisplayName overrides the generated display name.
func WithAccountDisplayName(name string) AccountOption {
	return func(f *AccountFixture) {
		f.DisplayName = name
	}
}

// WithAccountRole sets the role.
func WithAccountRole(role application.Role) AccountOption {
	return func(f *AccountFixture) {
		f.Role = role
	}
}

// WithAccountPasswordHash overrides the generated password hash.
func WithAccountPasswordHash(hash string) AccountOption {
	return func(f *AccountFixture) {
		f.PasswordHash = hash
	}
}

// WithAccountTimeZone sets the IANA zone used for local times.
func WithAccountTimeZone(zone string) AccountOption {
	return func(f *AccountFixture) {
		f.TimeZone = zone
	}
}

// WithAccountTimestamps sets both created and updated timestamps.
func WithAccountTimestamps(created, updated time.Time) AccountOption {
	return func(f *AccountFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Account value.
func (f AccountFixture) Application() application.Account {
	return application.Account{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		TimeZone:    f.TimeZone,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.AccountCredentials.
func (f AccountFixture) Credentials() application.AccountCredentials {
	return application.AccountCredentials{Account: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal returns the principal acting as this account.
func (f AccountFixture) Principal() application.Principal {
	return application.Principal{AccountID: f.ID, Role: f.Role}
}

// Persistence converts the fixture into a persistence.Account value.
func (f AccountFixture) Persistence() persistence.Account {
	return persistence.Account{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		PasswordHash: f.PasswordHash,
		TimeZone:     f.TimeZone,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a booked session.
type SessionFixture struct {
	ID              string
	ClientID        string
	TherapistID     string
	Type            reminder.SessionType
	Status          reminder.Status
	ScheduledAt     time.Time
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a confirmed therapy session one day after
// ReferenceTime with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:              fmt.Sprintf("session-%03d", idx),
		ClientID:        "client-001",
		TherapistID:     "therapist-001",
		Type:            reminder.SessionTypeTherapy,
		Status:          reminder.StatusConfirmed,
		ScheduledAt:     referenceTime.Add(24 * time.Hour),
		DurationMinutes: application.DefaultSessionMinutes,
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionParticipants sets the client and therapist.
func WithSessionParticipants(clientID, therapistID string) SessionOption {
	return func(f *SessionFixture) {
		f.ClientID = clientID
		f.TherapistID = therapistID
	}
}

// WithSessionType sets the session type.
func WithSessionType(t reminder.SessionType) SessionOption {
	return func(f *SessionFixture) {
		f.Type = t
	}
}

// WithSessionStatus sets the session status.
func WithSessionStatus(status reminder.Status) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
	}
}

// WithSessionScheduledAt sets the start time.
func WithSessionScheduledAt(at time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ScheduledAt = at
	}
}

// WithSessionStartingIn schedules the session relative to ReferenceTime.
func WithSessionStartingIn(d time.Duration) SessionOption {
	return func(f *SessionFixture) {
		f.ScheduledAt = referenceTime.Add(d)
	}
}

// WithSessionDuration sets the length in minutes.
func WithSessionDuration(minutes int) SessionOption {
	return func(f *SessionFixture) {
		f.DurationMinutes = minutes
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:              f.ID,
		ClientID:        f.ClientID,
		TherapistID:     f.TherapistID,
		Type:            f.Type,
		Status:          f.Status,
		ScheduledAt:     f.ScheduledAt,
		DurationMinutes: f.DurationMinutes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:              f.ID,
		ClientID:        f.ClientID,
		TherapistID:     f.TherapistID,
		Type:            string(f.Type),
		Status:          string(f.Status),
		ScheduledAt:     f.ScheduledAt,
		DurationMinutes: f.DurationMinutes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Record returns the deriver input for the session with the given counterparty name.
func (f SessionFixture) Record(counterparty string) reminder.SessionRecord {
	return reminder.SessionRecord{
		ID:               f.ID,
		CounterpartyName: counterparty,
		ScheduledTime:    f.ScheduledAt,
		Type:             f.Type,
		Status:           f.Status,
	}
}

// -------------------------- Access token fixtures --------------------------

// AccessTokenFixture represents an issued bearer token.
type AccessTokenFixture struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AccessTokenOption configures the generated token fixture.
type AccessTokenOption func(*AccessTokenFixture)

// NewAccessTokenFixture returns a token valid for twelve hours after ReferenceTime.
func NewAccessTokenFixture(opts ...AccessTokenOption) AccessTokenFixture {
	idx := atomic.AddUint64(&tokenCounter, 1)
	fixture := AccessTokenFixture{
		ID:        fmt.Sprintf("token-id-%03d", idx),
		AccountID: "client-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		CreatedAt: referenceTime,
		ExpiresAt: referenceTime.Add(application.DefaultTokenTTL),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTokenAccount sets the owning account.
func WithTokenAccount(accountID string) AccessTokenOption {
	return func(f *AccessTokenFixture) {
		f.AccountID = accountID
	}
}

// WithTokenValue overrides the bearer value.
func WithTokenValue(token string) AccessTokenOption {
	return func(f *AccessTokenFixture) {
		f.Token = token
	}
}

// WithTokenExpiresAt sets the expiry.
func WithTokenExpiresAt(at time.Time) AccessTokenOption {
	return func(f *AccessTokenFixture) {
		f.ExpiresAt = at
	}
}

// WithTokenRevokedAt marks the token revoked.
func WithTokenRevokedAt(at time.Time) AccessTokenOption {
	return func(f *AccessTokenFixture) {
		f.RevokedAt = &at
	}
}

// Application returns the fixture as an application.AccessToken value.
func (f AccessTokenFixture) Application() application.AccessToken {
	return application.AccessToken{
		ID:        f.ID,
		AccountID: f.AccountID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTime(f.RevokedAt),
	}
}

// Persistence converts the fixture into a persistence.AccessToken value.
func (f AccessTokenFixture) Persistence() persistence.AccessToken {
	return persistence.AccessToken{
		ID:        f.ID,
		AccountID: f.AccountID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTime(f.RevokedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
