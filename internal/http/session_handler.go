package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/reminder"
)

type sessionService interface {
	BookSession(ctx context.Context, params application.BookSessionParams) (application.Session, error)
	GetSession(ctx context.Context, principal application.Principal, id string) (application.Session, error)
	UpdateStatus(ctx context.Context, params application.UpdateStatusParams) (application.Session, error)
	Reschedule(ctx context.Context, params application.RescheduleParams) (application.Session, error)
	ListUpcoming(ctx context.Context, params application.ListUpcomingParams) ([]application.Session, error)
}

type countdownService interface {
	Countdown(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	Describe(ctx context.Context, principal application.Principal, session application.Session) (application.SessionView, error)
	Join(ctx context.Context, principal application.Principal, sessionID string) (application.JoinResult, error)
}

type SessionHandler struct {
	sessions   sessionService
	countdowns countdownService
	responder  responder
	logger     *slog.Logger
}

func NewSessionHandler(sessions sessionService, countdowns countdownService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{sessions: sessions, countdowns: countdowns, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// List returns the upcoming confirmed sessions of an account, each with its
// countdown.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	query := r.URL.Query()
	var horizon time.Duration
	if raw := strings.TrimSpace(query.Get("horizon")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidHorizon)
			return
		}
		horizon = parsed
	}

	sessions, err := h.sessions.ListUpcoming(r.Context(), application.ListUpcomingParams{
		Principal: principal,
		AccountID: query.Get("account_id"),
		Horizon:   horizon,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		view, err := h.countdowns.Describe(r.Context(), principal, session)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		resp = append(resp, toSessionDTO(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	var req bookSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode session payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	scheduledAt, err := parseTimestamp(req.ScheduledAt)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTime)
		return
	}

	session, err := h.sessions.BookSession(r.Context(), application.BookSessionParams{
		Principal:       principal,
		ClientID:        req.ClientID,
		TherapistID:     req.TherapistID,
		Type:            reminder.SessionType(req.Type),
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "session_id", session.ID).InfoContext(r.Context(), "session booked")
	h.writeSession(w, r, principal, session, http.StatusCreated)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	session, err := h.sessions.GetSession(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeSession(w, r, principal, session, http.StatusOK)
}

func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, err := h.sessions.UpdateStatus(r.Context(), application.UpdateStatusParams{
		Principal: principal,
		SessionID: r.PathValue("id"),
		Status:    reminder.Status(req.Status),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "UpdateStatus", "session_id", session.ID, "status", string(session.Status)).InfoContext(r.Context(), "session status updated")
	h.writeSession(w, r, principal, session, http.StatusOK)
}

func (h *SessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	scheduledAt, err := parseTimestamp(req.ScheduledAt)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTime)
		return
	}

	session, err := h.sessions.Reschedule(r.Context(), application.RescheduleParams{
		Principal:   principal,
		SessionID:   r.PathValue("id"),
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Reschedule", "session_id", session.ID).InfoContext(r.Context(), "session rescheduled")
	h.writeSession(w, r, principal, session, http.StatusOK)
}

func (h *SessionHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	view, err := h.countdowns.Countdown(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCountdownDTO(view.Countdown))
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	result, err := h.countdowns.Join(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, joinDTO{SessionID: result.SessionID, Path: result.Path})
}

func (h *SessionHandler) writeSession(w http.ResponseWriter, r *http.Request, principal application.Principal, session application.Session, status int) {
	view, err := h.countdowns.Describe(r.Context(), principal, session)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, status, toSessionDTO(view))
}

func parseTimestamp(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

type bookSessionRequest struct {
	ClientID        string `json:"client_id"`
	TherapistID     string `json:"therapist_id"`
	Type            string `json:"type"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type rescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type sessionDTO struct {
	ID              string       `json:"id"`
	ClientID        string       `json:"client_id"`
	TherapistID     string       `json:"therapist_id"`
	Counterparty    string       `json:"counterparty"`
	Type            string       `json:"type"`
	Status          string       `json:"status"`
	ScheduledAt     string       `json:"scheduled_at"`
	DurationMinutes int          `json:"duration_minutes"`
	Countdown       countdownDTO `json:"countdown"`
}

type countdownDTO struct {
	State            string `json:"state"`
	Text             string `json:"text"`
	Action           string `json:"action,omitempty"`
	Pulsing          bool   `json:"pulsing"`
	LocalTime        string `json:"local_time,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type joinDTO struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path,omitempty"`
}

func toSessionDTO(view application.SessionView) sessionDTO {
	s := view.Session
	return sessionDTO{
		ID:              s.ID,
		ClientID:        s.ClientID,
		TherapistID:     s.TherapistID,
		Counterparty:    view.Counterparty,
		Type:            string(s.Type),
		Status:          string(s.Status),
		ScheduledAt:     formatTime(s.ScheduledAt),
		DurationMinutes: s.DurationMinutes,
		Countdown:       toCountdownDTO(view.Countdown),
	}
}

func toCountdownDTO(c countdown.Countdown) countdownDTO {
	return countdownDTO{
		State:            string(c.State),
		Text:             c.Text,
		Action:           string(c.Action),
		Pulsing:          c.Pulsing,
		LocalTime:        c.LocalTime,
		RemainingSeconds: int64(c.Remaining / time.Second),
	}
}
