// Package countdown turns the lead time of a session into the sentence and
// call to action shown next to it.
package countdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/mindfolk/internal/reminder"
)

// State labels the phase of a session relative to now.
type State string

const (
	StateLive         State = "Live Now"
	StateStartingSoon State = "Starting Soon"
	StateScheduled    State = "Scheduled"
)

// Action is the call to action offered for a session.
type Action string

const (
	ActionNone        Action = ""
	ActionJoinSession Action = "Join Session"
	ActionJoinNow     Action = "JOIN NOW"
)

// LiveText is rendered once a session has started.
const LiveText = "Session time"

// localTimeLayout renders h:mm AM/PM.
const localTimeLayout = "3:04 PM"

// Countdown describes how a single session is presented at an instant.
type Countdown struct {
	State     State
	Text      string
	Action    Action
	Pulsing   bool
	LocalTime string
	Remaining time.Duration
}

// Joinable reports whether the countdown offers a join action.
func (c Countdown) Joinable() bool {
	return c.Action != ActionNone
}

// Describe renders the countdown for a session scheduled at scheduled, as seen
// at now. LocalTime is only populated for scheduled sessions and is formatted
// in loc, falling back to UTC.
func Describe(scheduled, now time.Time, loc *time.Location) Countdown {
	remaining := scheduled.Sub(now)
	switch {
	case remaining <= 0:
		return Countdown{
			State:     StateLive,
			Text:      LiveText,
			Action:    ActionJoinSession,
			Remaining: remaining,
		}
	case remaining <= reminder.UrgentThreshold:
		return Countdown{
			State:     StateStartingSoon,
			Text:      Phrase(remaining),
			Action:    ActionJoinNow,
			Pulsing:   true,
			Remaining: remaining,
		}
	default:
		if loc == nil {
			loc = time.UTC
		}
		return Countdown{
			State:     StateScheduled,
			Text:      Phrase(remaining),
			LocalTime: scheduled.In(loc).Format(localTimeLayout),
			Remaining: remaining,
		}
	}
}

// Phrase renders d using its largest non-zero whole unit, e.g. "in 2 hours".
// Durations under one second render as "in 0 seconds".
func Phrase(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int64(d / (24 * time.Hour))
	hours := int64(d / time.Hour)
	minutes := int64(d / time.Minute)
	seconds := int64(d / time.Second)

	switch {
	case days > 0:
		return pluralize(days, "day")
	case hours > 0:
		return pluralize(hours, "hour")
	case minutes > 0:
		return pluralize(minutes, "minute")
	default:
		return pluralize(seconds, "second")
	}
}

func pluralize(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("in 1 %s", unit)
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}

// RoomPath is the default navigation target for joining a session.
func RoomPath(sessionID string) string {
	return "/session-room/" + sessionID
}

// Navigator moves the viewer to another location.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, path string) error { return f(ctx, path) }

// ErrNoJoinTarget is returned when neither a join callback nor a navigator is configured.
var ErrNoJoinTarget = errors.New("countdown: no join target configured")

// Dispatcher routes join actions. A configured OnJoin callback takes
// precedence over navigating to the session room.
type Dispatcher struct {
	OnJoin    func(ctx context.Context, sessionID string) error
	Navigator Navigator
}

// Join performs the join action for sessionID.
func (d Dispatcher) Join(ctx context.Context, sessionID string) error {
	if d.OnJoin != nil {
		return d.OnJoin(ctx, sessionID)
	}
	if d.Navigator == nil {
		return ErrNoJoinTarget
	}
	return d.Navigator.Navigate(ctx, RoomPath(sessionID))
}
