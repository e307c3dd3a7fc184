package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Clock abstracts the time source used by the Watcher.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of *time.Timer used by the Watcher.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// NewTimer wraps time.NewTimer.
func (SystemClock) NewTimer(d time.Duration) Timer { return systemTimer{time.NewTimer(d)} }

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

// Source supplies the session registry for a viewer.
type Source interface {
	Sessions(ctx context.Context) ([]SessionRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]SessionRecord, error)

// Sessions implements Source.
func (f SourceFunc) Sessions(ctx context.Context) ([]SessionRecord, error) { return f(ctx) }

// PublishFunc receives every derivation the Watcher decides to surface.
type PublishFunc func(ctx context.Context, reminders []Reminder) error

// Watcher re-derives reminders for one viewer. Instead of polling, it sleeps
// until the next threshold crossing, a wake signal or the refresh ceiling.
type Watcher struct {
	source    Source
	dismissed Dismissed
	clock     Clock
	refresh   time.Duration
	logger    *slog.Logger
	wake      chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithClock overrides the wall clock.
func WithClock(clock Clock) WatcherOption {
	return func(w *Watcher) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithRefresh sets the longest interval between publications while reminders
// are visible, keeping countdown text current. Zero disables refresh ticks.
func WithRefresh(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.refresh = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher constructs a Watcher over source filtered by dismissed.
func NewWatcher(source Source, dismissed Dismissed, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:    source,
		dismissed: dismissed,
		clock:     SystemClock{},
		refresh:   time.Second,
		logger:    slog.Default(),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wake asks the watcher to reload its source and re-derive. It never blocks.
func (w *Watcher) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run derives and publishes until ctx is cancelled, the source fails or
// publish returns an error. The pending timer is stopped on every return path.
func (w *Watcher) Run(ctx context.Context, publish PublishFunc) error {
	if w.source == nil {
		return fmt.Errorf("reminder: watcher has no source")
	}

	sessions, err := w.source.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reminder: load sessions: %w", err)
	}

	var (
		previous  []Reminder
		published bool
		refreshed bool
	)
	for {
		now := w.clock.Now()
		current := Derive(sessions, now, w.dismissed)
		if !published || !Equal(previous, current) || (refreshed && len(current) > 0) {
			if err := publish(ctx, current); err != nil {
				return err
			}
			previous = current
			published = true
		}

		wait, bounded, refresh := w.nextWait(sessions, now, len(current) > 0)
		var timerC <-chan time.Time
		var timer Timer
		if bounded {
			timer = w.clock.NewTimer(wait)
			timerC = timer.C()
		}

		refreshed = false
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-w.wake:
			stopTimer(timer)
			sessions, err = w.source.Sessions(ctx)
			if err != nil {
				return fmt.Errorf("reminder: reload sessions: %w", err)
			}
			w.logger.DebugContext(ctx, "reminder watcher reloaded", "sessions", len(sessions))
		case <-timerC:
			refreshed = refresh
		}
	}
}

// nextWait reports how long to sleep, whether there is anything to wait for at
// all, and whether the wait is a refresh tick rather than a threshold crossing.
func (w *Watcher) nextWait(sessions []SessionRecord, now time.Time, visible bool) (time.Duration, bool, bool) {
	var wait time.Duration
	boundary, ok := NextBoundary(sessions, now, w.dismissed)
	if ok {
		wait = boundary.Sub(now)
	}
	if visible && w.refresh > 0 && (!ok || w.refresh < wait) {
		return w.refresh, true, true
	}
	return wait, ok, false
}

func stopTimer(timer Timer) {
	if timer != nil {
		timer.Stop()
	}
}
