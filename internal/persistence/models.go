package persistence

import "time"

// Account represents a client, therapist or administrator login.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	TimeZone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents a booked appointment between a client and a therapist.
type Session struct {
	ID              string
	ClientID        string
	TherapistID     string
	Type            string
	Status          string
	ScheduledAt     time.Time
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccessToken represents a bearer token issued to an account at login.
type AccessToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
