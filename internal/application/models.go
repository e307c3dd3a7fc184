package application

import (
	"time"

	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/reminder"
)

// Role identifies what an account may do.
type Role string

const (
	RoleClient    Role = "client"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTherapist, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the authenticated account invoking a service method.
type Principal struct {
	AccountID string
	Role      Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Account represents a client, therapist or administrator.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	TimeZone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AccountCredentials pairs an account with its stored password hash.
type AccountCredentials struct {
	Account      Account
	PasswordHash string
}

// AccountInput captures caller provided account attributes.
type AccountInput struct {
	Email       string
	DisplayName string
	Role        Role
	TimeZone    string
	Password    string
}

// CreateAccountParams wraps the data required to create an account.
type CreateAccountParams struct {
	Principal Principal
	Input     AccountInput
}

// AccessToken is a bearer token issued at login.
type AccessToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate an account.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Account Account
	Token   AccessToken
}

// Session is a booked appointment between a client and a therapist.
type Session struct {
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

// HasParticipant reports whether accountID is the client or the therapist.
func (s Session) HasParticipant(accountID string) bool {
	return accountID != "" && (s.ClientID == accountID || s.TherapistID == accountID)
}

// CounterpartyID returns the other participant from accountID's point of view.
func (s Session) CounterpartyID(accountID string) string {
	if s.ClientID == accountID {
		return s.TherapistID
	}
	return s.ClientID
}

// EndsAt returns the scheduled end of the session.
func (s Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// SessionFilter narrows repository session listings.
type SessionFilter struct {
	ParticipantID   string
	Statuses        []reminder.Status
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
}

// BookSessionParams wraps the data required to book a session.
type BookSessionParams struct {
	Principal       Principal
	ClientID        string
	TherapistID     string
	Type            reminder.SessionType
	ScheduledAt     time.Time
	DurationMinutes int
}

// UpdateStatusParams wraps a status change request.
type UpdateStatusParams struct {
	Principal Principal
	SessionID string
	Status    reminder.Status
}

// RescheduleParams wraps a reschedule request.
type RescheduleParams struct {
	Principal   Principal
	SessionID   string
	ScheduledAt time.Time
}

// ListUpcomingParams selects the sessions shown on an account's dashboard.
// AccountID defaults to the principal; only administrators may list others.
type ListUpcomingParams struct {
	Principal Principal
	AccountID string
	Horizon   time.Duration
}

// SessionView is a session annotated for one viewer.
type SessionView struct {
	Session      Session
	Counterparty string
	Countdown    countdown.Countdown
}

// View is a mounted reminder surface owned by one account.
type View struct {
	ID        string
	AccountID string
	CreatedAt time.Time
}

// JoinResult describes how a join action was carried out. Path is empty when
// a join hook handled the action.
type JoinResult struct {
	SessionID string
	Path      string
}
