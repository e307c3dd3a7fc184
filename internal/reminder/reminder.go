// Package reminder derives the upcoming-session reminders a viewer should see.
//
// Derivation is a pure function of the session registry, the current instant and
// the viewer's dismissed set. The Watcher in this package re-evaluates it only at
// the instants where its output can change.
package reminder

import (
	"slices"
	"time"
)

const (
	// Window is the furthest lead time at which a reminder is produced.
	Window = 60 * time.Minute
	// UrgentThreshold marks a reminder as urgent.
	UrgentThreshold = 10 * time.Minute
	// ImmediateThreshold marks a reminder as immediate.
	ImmediateThreshold = 5 * time.Minute
)

// SessionType enumerates the kinds of bookable session.
type SessionType string

const (
	// SessionTypeChemistry is the short introductory call between client and therapist.
	SessionTypeChemistry SessionType = "chemistry"
	// SessionTypeTherapy is a full therapy session.
	SessionTypeTherapy SessionType = "therapy"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeChemistry, SessionTypeTherapy:
		return true
	}
	return false
}

// Status enumerates the lifecycle states of a booked session.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// SessionRecord is the read-only view of a booked session consumed by the deriver.
type SessionRecord struct {
	ID               string
	CounterpartyName string
	ScheduledTime    time.Time
	Type             SessionType
	Status           Status
}

// Reminder is a derived notification about a confirmed session starting soon.
// It is recomputed on every evaluation and never stored.
type Reminder struct {
	SessionID        string
	CounterpartyName string
	ScheduledTime    time.Time
	Type             SessionType
	TimeUntilSession time.Duration
	IsUrgent         bool
	IsImmediate      bool
}

// Dismissed reports whether a session id has been dismissed by the viewer.
// A nil Dismissed dismisses nothing.
type Dismissed interface {
	Contains(sessionID string) bool
}

// Derive returns the reminders visible at now, soonest first. Sessions that are
// not confirmed, dismissed, already started, further than Window away, or
// missing a scheduled time produce no reminder. Equal lead times keep their
// input order.
func Derive(sessions []SessionRecord, now time.Time, dismissed Dismissed) []Reminder {
	reminders := make([]Reminder, 0, len(sessions))
	for _, session := range sessions {
		if !eligible(session, dismissed) {
			continue
		}
		until := session.ScheduledTime.Sub(now)
		if until <= 0 || until > Window {
			continue
		}
		reminders = append(reminders, Reminder{
			SessionID:        session.ID,
			CounterpartyName: session.CounterpartyName,
			ScheduledTime:    session.ScheduledTime,
			Type:             session.Type,
			TimeUntilSession: until,
			IsUrgent:         until <= UrgentThreshold,
			IsImmediate:      until <= ImmediateThreshold,
		})
	}

	slices.SortStableFunc(reminders, func(a, b Reminder) int {
		switch {
		case a.TimeUntilSession < b.TimeUntilSession:
			return -1
		case a.TimeUntilSession > b.TimeUntilSession:
			return 1
		}
		return 0
	})
	return reminders
}

// NextBoundary returns the earliest instant after now at which Derive would
// return a different set of reminders or flags for the same inputs. The second
// result is false when no eligible session has a boundary in the future.
func NextBoundary(sessions []SessionRecord, now time.Time, dismissed Dismissed) (time.Time, bool) {
	var (
		next  time.Time
		found bool
	)
	for _, session := range sessions {
		if !eligible(session, dismissed) {
			continue
		}
		for _, lead := range [...]time.Duration{Window, UrgentThreshold, ImmediateThreshold, 0} {
			boundary := session.ScheduledTime.Add(-lead)
			if !boundary.After(now) {
				continue
			}
			if !found || boundary.Before(next) {
				next = boundary
				found = true
			}
			// Leads are ordered largest first, so the first future boundary is the earliest.
			break
		}
	}
	return next, found
}

// Equal reports whether two derivations carry the same sessions and flags in
// the same order. Lead times are ignored since they change on every tick.
func Equal(a, b []Reminder) bool {
	return slices.EqualFunc(a, b, func(x, y Reminder) bool {
		return x.SessionID == y.SessionID &&
			x.IsUrgent == y.IsUrgent &&
			x.IsImmediate == y.IsImmediate &&
			x.ScheduledTime.Equal(y.ScheduledTime) &&
			x.CounterpartyName == y.CounterpartyName &&
			x.Type == y.Type
	})
}

func eligible(session SessionRecord, dismissed Dismissed) bool {
	if session.Status != StatusConfirmed {
		return false
	}
	if dismissed != nil && dismissed.Contains(session.ID) {
		return false
	}
	return !session.ScheduledTime.IsZero()
}
