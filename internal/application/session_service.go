package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/mindfolk/internal/reminder"
	"github.com/example/mindfolk/internal/scheduler"
)

const (
	// DefaultSessionMinutes is applied when a booking omits the duration.
	DefaultSessionMinutes = 50
	// MaxSessionMinutes bounds the duration of a single session.
	MaxSessionMinutes = 240
)

// SessionRepository captures the persistence operations for booked sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
}

// ChangeNotifier is told which accounts were affected by a registry change.
type ChangeNotifier interface {
	NotifyAccounts(accountIDs ...string)
}

// SessionService is the registry of booked sessions.
type SessionService struct {
	sessions    SessionRepository
	accounts    AccountDirectory
	notifier    ChangeNotifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService wires dependencies for the session service. The notifier may be nil.
func NewSessionService(sessions SessionRepository, accounts AccountDirectory, notifier ChangeNotifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessions:    sessions,
		accounts:    accounts,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// BookSession validates and stores a confirmed session between a client and a therapist.
func (s *SessionService) BookSession(ctx context.Context, params BookSessionParams) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "SessionService", "BookSession",
		"principal_id", params.Principal.AccountID,
		"client_id", params.ClientID,
		"therapist_id", params.TherapistID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session booked", "session_id", session.ID, "scheduled_at", session.ScheduledAt)
	}()

	principal := params.Principal
	if !principal.IsAdmin() && principal.AccountID != params.ClientID && principal.AccountID != params.TherapistID {
		return Session{}, ErrUnauthorized
	}

	now := s.now().UTC()
	vErr := &ValidationError{}
	if !params.Type.Valid() {
		vErr.add("type", "type must be chemistry or therapy")
	}
	validateScheduledAt(vErr, params.ScheduledAt, now)

	duration := params.DurationMinutes
	if duration == 0 {
		duration = DefaultSessionMinutes
	}
	if duration < 0 || duration > MaxSessionMinutes {
		vErr.add("duration_minutes", fmt.Sprintf("duration must be between 1 and %d minutes", MaxSessionMinutes))
	}
	if params.ClientID != "" && params.ClientID == params.TherapistID {
		vErr.add("therapist_id", "client and therapist must differ")
	}
	if err = s.checkParticipant(ctx, vErr, "client_id", params.ClientID, RoleClient); err != nil {
		return Session{}, err
	}
	if err = s.checkParticipant(ctx, vErr, "therapist_id", params.TherapistID, RoleTherapist); err != nil {
		return Session{}, err
	}
	if err = vErr.errOrNil(); err != nil {
		return Session{}, err
	}

	session = Session{
		ID:              s.idGenerator(),
		ClientID:        params.ClientID,
		TherapistID:     params.TherapistID,
		Type:            params.Type,
		Status:          reminder.StatusConfirmed,
		ScheduledAt:     params.ScheduledAt.UTC(),
		DurationMinutes: duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err = s.checkConflicts(ctx, session); err != nil {
		return Session{}, err
	}
	if session, err = s.sessions.CreateSession(ctx, session); err != nil {
		return Session{}, err
	}
	s.notify(session)
	return session, nil
}

// GetSession returns a session to one of its participants or an administrator.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, id string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !canAccess(principal, session) {
		return Session{}, ErrUnauthorized
	}
	return session, nil
}

// UpdateStatus completes or cancels a confirmed session.
func (s *SessionService) UpdateStatus(ctx context.Context, params UpdateStatusParams) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "SessionService", "UpdateStatus",
		"principal_id", params.Principal.AccountID,
		"session_id", params.SessionID,
		"status", string(params.Status),
	)
	defer func() {
		logOutcome(ctx, logger, err, "session status updated")
	}()

	if !params.Status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "status must be confirmed, completed or cancelled")
		return Session{}, vErr
	}

	if session, err = s.GetSession(ctx, params.Principal, params.SessionID); err != nil {
		return Session{}, err
	}
	if !allowedTransition(session.Status, params.Status) {
		return Session{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, session.Status, params.Status)
	}

	session.Status = params.Status
	session.UpdatedAt = s.now().UTC()
	if session, err = s.sessions.UpdateSession(ctx, session); err != nil {
		return Session{}, err
	}
	s.notify(session)
	return session, nil
}

// Reschedule moves a confirmed session to a new future start time.
func (s *SessionService) Reschedule(ctx context.Context, params RescheduleParams) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "SessionService", "Reschedule",
		"principal_id", params.Principal.AccountID,
		"session_id", params.SessionID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "session rescheduled", "scheduled_at", session.ScheduledAt)
	}()

	now := s.now().UTC()
	vErr := &ValidationError{}
	validateScheduledAt(vErr, params.ScheduledAt, now)
	if err = vErr.errOrNil(); err != nil {
		return Session{}, err
	}

	if session, err = s.GetSession(ctx, params.Principal, params.SessionID); err != nil {
		return Session{}, err
	}
	if session.Status != reminder.StatusConfirmed {
		return Session{}, fmt.Errorf("%w: cannot reschedule a %s session", ErrInvalidTransition, session.Status)
	}

	session.ScheduledAt = params.ScheduledAt.UTC()
	session.UpdatedAt = now
	if err = s.checkConflicts(ctx, session); err != nil {
		return Session{}, err
	}
	if session, err = s.sessions.UpdateSession(ctx, session); err != nil {
		return Session{}, err
	}
	s.notify(session)
	return session, nil
}

// ListUpcoming returns confirmed sessions of an account that have not ended
// yet and start within horizon. A non-positive horizon is unbounded.
func (s *SessionService) ListUpcoming(ctx context.Context, params ListUpcomingParams) ([]Session, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	accountID := strings.TrimSpace(params.AccountID)
	if accountID == "" {
		accountID = params.Principal.AccountID
	}
	if accountID != params.Principal.AccountID && !params.Principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	now := s.now().UTC()
	after := now.Add(-MaxSessionMinutes * time.Minute)
	filter := SessionFilter{
		ParticipantID:  accountID,
		Statuses:       []reminder.Status{reminder.StatusConfirmed},
		ScheduledAfter: &after,
	}
	if params.Horizon > 0 {
		before := now.Add(params.Horizon)
		filter.ScheduledBefore = &before
	}

	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, err
	}
	upcoming := sessions[:0]
	for _, session := range sessions {
		if session.EndsAt().After(now) {
			upcoming = append(upcoming, session)
		}
	}
	return upcoming, nil
}

// checkParticipant records validation issues for a participant and returns
// only lookup failures that are not ErrNotFound.
func (s *SessionService) checkParticipant(ctx context.Context, vErr *ValidationError, field, id string, role Role) error {
	if strings.TrimSpace(id) == "" {
		vErr.add(field, field+" is required")
		return nil
	}
	if s.accounts == nil {
		return nil
	}
	account, err := s.accounts.GetAccount(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		vErr.add(field, "account does not exist")
	case err != nil:
		return fmt.Errorf("load %s: %w", field, err)
	case account.Role != role:
		vErr.add(field, fmt.Sprintf("account is not a %s", role))
	}
	return nil
}

// checkConflicts rejects a candidate that overlaps another confirmed session
// of either participant.
func (s *SessionService) checkConflicts(ctx context.Context, candidate Session) error {
	after := candidate.ScheduledAt.Add(-MaxSessionMinutes * time.Minute)
	before := candidate.EndsAt()
	var existing []scheduler.Slot
	for _, participant := range []string{candidate.ClientID, candidate.TherapistID} {
		sessions, err := s.sessions.ListSessions(ctx, SessionFilter{
			ParticipantID:   participant,
			Statuses:        []reminder.Status{reminder.StatusConfirmed},
			ScheduledAfter:  &after,
			ScheduledBefore: &before,
		})
		if err != nil {
			return fmt.Errorf("list sessions of %s: %w", participant, err)
		}
		for _, session := range sessions {
			existing = append(existing, slotOf(session))
		}
	}

	conflicts := scheduler.DetectConflicts(existing, slotOf(candidate))
	if len(conflicts) == 0 {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("scheduled_at", fmt.Sprintf("overlaps session %s of %s", conflicts[0].WithSlotID, conflicts[0].Participant))
	return vErr
}

func slotOf(session Session) scheduler.Slot {
	return scheduler.Slot{
		ID:           session.ID,
		Participants: []string{session.ClientID, session.TherapistID},
		Start:        session.ScheduledAt,
		End:          session.EndsAt(),
	}
}

func (s *SessionService) notify(session Session) {
	if s.notifier != nil {
		s.notifier.NotifyAccounts(session.ClientID, session.TherapistID)
	}
}

func validateScheduledAt(vErr *ValidationError, at, now time.Time) {
	switch {
	case at.IsZero():
		vErr.add("scheduled_at", "scheduled time is required")
	case !at.After(now):
		vErr.add("scheduled_at", "scheduled time must be in the future")
	}
}

func allowedTransition(from, to reminder.Status) bool {
	return from == reminder.StatusConfirmed && (to == reminder.StatusCompleted || to == reminder.StatusCancelled)
}

func canAccess(principal Principal, session Session) bool {
	return principal.IsAdmin() || session.HasParticipant(principal.AccountID)
}
