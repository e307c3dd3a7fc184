package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/reminder"
)

// ReminderObserver receives reminder activity, typically for metrics.
type ReminderObserver interface {
	RemindersDerived(count int)
	ReminderDismissed()
	StreamOpened()
	StreamClosed()
}

type noopObserver struct{}

func (noopObserver) RemindersDerived(int) {}
func (noopObserver) ReminderDismissed()   {}
func (noopObserver) StreamOpened()        {}
func (noopObserver) StreamClosed()        {}

// ReminderServiceConfig wires the reminder service. Sessions and Accounts are
// required; everything else has a default.
type ReminderServiceConfig struct {
	Sessions    SessionRepository
	Accounts    AccountDirectory
	Hub         *ChangeHub
	Views       *ViewRegistry
	Clock       reminder.Clock
	Refresh     time.Duration
	Location    *time.Location
	Observer    ReminderObserver
	OnJoin      func(ctx context.Context, sessionID string) error
	IDGenerator func() string
	Logger      *slog.Logger
}

// ReminderService derives reminders and countdowns for mounted views.
type ReminderService struct {
	sessions    SessionRepository
	accounts    AccountDirectory
	hub         *ChangeHub
	views       *ViewRegistry
	clock       reminder.Clock
	refresh     time.Duration
	location    *time.Location
	observer    ReminderObserver
	onJoin      func(ctx context.Context, sessionID string) error
	idGenerator func() string
	logger      *slog.Logger
}

// NewReminderService applies defaults to cfg and returns the service.
func NewReminderService(cfg ReminderServiceConfig) *ReminderService {
	s := &ReminderService{
		sessions:    cfg.Sessions,
		accounts:    cfg.Accounts,
		hub:         cfg.Hub,
		views:       cfg.Views,
		clock:       cfg.Clock,
		refresh:     cfg.Refresh,
		location:    cfg.Location,
		observer:    cfg.Observer,
		onJoin:      cfg.OnJoin,
		idGenerator: cfg.IDGenerator,
		logger:      defaultLogger(cfg.Logger),
	}
	if s.hub == nil {
		s.hub = NewChangeHub()
	}
	if s.views == nil {
		s.views = NewViewRegistry(DefaultMaxViews, DefaultViewTTL)
	}
	if s.clock == nil {
		s.clock = reminder.SystemClock{}
	}
	if s.refresh < 0 {
		s.refresh = 0
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	return s
}

// Hub returns the change hub the service subscribes watchers to.
func (s *ReminderService) Hub() *ChangeHub {
	return s.hub
}

// OpenView mounts a fresh view with an empty dismissal set.
func (s *ReminderService) OpenView(ctx context.Context, principal Principal) (view View, err error) {
	if s == nil {
		return View{}, fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "OpenView", "principal_id", principal.AccountID)
	defer func() {
		logOutcome(ctx, logger, err, "reminder view opened", "view_id", view.ID)
	}()

	if strings.TrimSpace(principal.AccountID) == "" {
		return View{}, ErrUnauthorized
	}
	view = View{
		ID:        s.idGenerator(),
		AccountID: principal.AccountID,
		CreatedAt: s.clock.Now().UTC(),
	}
	if view.ID == "" {
		return View{}, fmt.Errorf("generate view id: empty id")
	}
	s.views.add(newViewState(view))
	return view, nil
}

// CloseView unmounts a view. Its dismissals are discarded and its streams end.
func (s *ReminderService) CloseView(ctx context.Context, principal Principal, viewID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "CloseView",
		"principal_id", principal.AccountID,
		"view_id", viewID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "reminder view closed")
	}()

	if _, err = s.view(principal, viewID); err != nil {
		return err
	}
	s.views.remove(viewID)
	return nil
}

// Reminders derives the current reminders of a view.
func (s *ReminderService) Reminders(ctx context.Context, principal Principal, viewID string) ([]reminder.Reminder, error) {
	if s == nil {
		return nil, fmt.Errorf("ReminderService is nil")
	}
	state, err := s.view(principal, viewID)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, state.view.AccountID)
	if err != nil {
		return nil, err
	}
	reminders := reminder.Derive(records, s.clock.Now(), state.dismissals)
	s.observer.RemindersDerived(len(reminders))
	return reminders, nil
}

// Dismiss hides the reminder for sessionID in one view until the view is
// cleared or unmounted. Dismissing twice is a no-op.
func (s *ReminderService) Dismiss(ctx context.Context, principal Principal, viewID, sessionID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "Dismiss",
		"principal_id", principal.AccountID,
		"view_id", viewID,
		"session_id", sessionID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "reminder dismissed")
	}()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		vErr := &ValidationError{}
		vErr.add("session_id", "session_id is required")
		return vErr
	}
	state, err := s.view(principal, viewID)
	if err != nil {
		return err
	}
	if state.dismissals.Dismiss(sessionID) {
		s.observer.ReminderDismissed()
		state.wake()
	}
	return nil
}

// ClearDismissed restores every dismissed reminder of a view.
func (s *ReminderService) ClearDismissed(ctx context.Context, principal Principal, viewID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "ClearDismissed",
		"principal_id", principal.AccountID,
		"view_id", viewID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "reminder dismissals cleared")
	}()

	state, err := s.view(principal, viewID)
	if err != nil {
		return err
	}
	state.dismissals.Clear()
	state.wake()
	return nil
}

// Countdown describes a session for the principal at the current instant.
// Local times use the principal's time zone, or the service default.
func (s *ReminderService) Countdown(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	if s == nil {
		return SessionView{}, fmt.Errorf("ReminderService is nil")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if !canAccess(principal, session) {
		return SessionView{}, ErrUnauthorized
	}
	return s.Describe(ctx, principal, session)
}

// Describe annotates an already loaded session for the principal.
func (s *ReminderService) Describe(ctx context.Context, principal Principal, session Session) (SessionView, error) {
	viewerID := principal.AccountID
	if !session.HasParticipant(viewerID) {
		viewerID = session.ClientID
	}
	name, err := s.displayName(ctx, session.CounterpartyID(viewerID))
	if err != nil {
		return SessionView{}, err
	}
	loc, err := s.locationFor(ctx, principal.AccountID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		Session:      session,
		Counterparty: name,
		Countdown:    countdown.Describe(session.ScheduledAt, s.clock.Now(), loc),
	}, nil
}

// Join carries out the join action for a session that is live or starting
// soon. The configured join hook wins over navigating to the session room.
func (s *ReminderService) Join(ctx context.Context, principal Principal, sessionID string) (result JoinResult, err error) {
	if s == nil {
		return JoinResult{}, fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "Join",
		"principal_id", principal.AccountID,
		"session_id", sessionID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session joined", "path", result.Path)
	}()

	view, err := s.Countdown(ctx, principal, sessionID)
	if err != nil {
		return JoinResult{}, err
	}
	if view.Session.Status != reminder.StatusConfirmed || !view.Countdown.Joinable() {
		return JoinResult{}, fmt.Errorf("%w: %s", ErrNotJoinable, view.Countdown.State)
	}

	result = JoinResult{SessionID: view.Session.ID}
	dispatcher := countdown.Dispatcher{
		OnJoin: s.onJoin,
		Navigator: countdown.NavigatorFunc(func(_ context.Context, path string) error {
			result.Path = path
			return nil
		}),
	}
	if err = dispatcher.Join(ctx, view.Session.ID); err != nil {
		return JoinResult{}, err
	}
	return result, nil
}

// Watch runs a reminder watcher for a view, calling publish whenever the
// visible reminders change and at the refresh interval while any are
// visible. It returns ErrViewNotFound when the view is closed or unmounted and
// ctx.Err() when the caller cancels. The view does not expire while it runs.
func (s *ReminderService) Watch(ctx context.Context, principal Principal, viewID string, publish reminder.PublishFunc) (err error) {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ReminderService", "Watch",
		"principal_id", principal.AccountID,
		"view_id", viewID,
	)

	state, err := s.view(principal, viewID)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	accountID := state.view.AccountID
	watcher := reminder.NewWatcher(
		reminder.SourceFunc(func(ctx context.Context) ([]reminder.SessionRecord, error) {
			return s.records(ctx, accountID)
		}),
		state.dismissals,
		reminder.WithClock(s.clock),
		reminder.WithRefresh(s.refresh),
		reminder.WithLogger(logger),
	)
	if !state.attach(watcher, cancel) {
		return ErrViewNotFound
	}
	defer state.detach(watcher)

	keepAliveDone := make(chan struct{})
	go func() {
		defer close(keepAliveDone)
		s.views.keepAlive(watchCtx, viewID)
	}()
	defer func() {
		cancel(nil)
		<-keepAliveDone
	}()

	unsubscribe := s.hub.Subscribe(accountID, watcher.Wake)
	defer unsubscribe()

	s.observer.StreamOpened()
	defer s.observer.StreamClosed()
	logger.InfoContext(ctx, "reminder stream opened")

	err = watcher.Run(watchCtx, func(ctx context.Context, reminders []reminder.Reminder) error {
		s.observer.RemindersDerived(len(reminders))
		return publish(ctx, reminders)
	})
	if errors.Is(context.Cause(watchCtx), ErrViewNotFound) {
		err = ErrViewNotFound
	}
	logger.InfoContext(ctx, "reminder stream closed", "reason", ErrorKind(err))
	return err
}

// view resolves a live view owned by principal.
func (s *ReminderService) view(principal Principal, viewID string) (*viewState, error) {
	state, ok := s.views.get(viewID)
	if !ok {
		return nil, ErrViewNotFound
	}
	if state.view.AccountID != principal.AccountID {
		return nil, ErrUnauthorized
	}
	return state, nil
}

// records loads the confirmed sessions of accountID that have not started yet
// and adapts them for the deriver.
func (s *ReminderService) records(ctx context.Context, accountID string) ([]reminder.SessionRecord, error) {
	now := s.clock.Now().UTC()
	sessions, err := s.sessions.ListSessions(ctx, SessionFilter{
		ParticipantID:  accountID,
		Statuses:       []reminder.Status{reminder.StatusConfirmed},
		ScheduledAfter: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	names := make(map[string]string)
	records := make([]reminder.SessionRecord, 0, len(sessions))
	for _, session := range sessions {
		counterpartyID := session.CounterpartyID(accountID)
		name, ok := names[counterpartyID]
		if !ok {
			if name, err = s.displayName(ctx, counterpartyID); err != nil {
				return nil, err
			}
			names[counterpartyID] = name
		}
		records = append(records, reminder.SessionRecord{
			ID:               session.ID,
			CounterpartyName: name,
			ScheduledTime:    session.ScheduledAt,
			Type:             session.Type,
			Status:           session.Status,
		})
	}
	return records, nil
}

// displayName returns an empty name for accounts that no longer exist.
func (s *ReminderService) displayName(ctx context.Context, accountID string) (string, error) {
	if s.accounts == nil || accountID == "" {
		return "", nil
	}
	account, err := s.accounts.GetAccount(ctx, accountID)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load counterparty: %w", err)
	}
	return account.DisplayName, nil
}

func (s *ReminderService) locationFor(ctx context.Context, accountID string) (*time.Location, error) {
	if s.accounts == nil || accountID == "" {
		return s.location, nil
	}
	account, err := s.accounts.GetAccount(ctx, accountID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.location, nil
	case err != nil:
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	if account.TimeZone == "" {
		return s.location, nil
	}
	loc, err := time.LoadLocation(account.TimeZone)
	if err != nil {
		return s.location, nil
	}
	return loc, nil
}
