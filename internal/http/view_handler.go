package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/countdown"
	"github.com/example/mindfolk/internal/reminder"
)

type reminderService interface {
	OpenView(ctx context.Context, principal application.Principal) (application.View, error)
	CloseView(ctx context.Context, principal application.Principal, viewID string) error
	Reminders(ctx context.Context, principal application.Principal, viewID string) ([]reminder.Reminder, error)
	Dismiss(ctx context.Context, principal application.Principal, viewID, sessionID string) error
	ClearDismissed(ctx context.Context, principal application.Principal, viewID string) error
	Watch(ctx context.Context, principal application.Principal, viewID string, publish reminder.PublishFunc) error
}

// ViewHandler manages mounted reminder views and their dismissal state.
type ViewHandler struct {
	service   reminderService
	responder responder
	logger    *slog.Logger
}

func NewViewHandler(service reminderService, logger *slog.Logger) *ViewHandler {
	base := defaultLogger(logger)
	return &ViewHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ViewHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ViewHandler", operation, attrs...)
}

func (h *ViewHandler) Open(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	view, err := h.service.OpenView(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r.Context(), "Open", "view_id", view.ID).DebugContext(r.Context(), "reminder view opened")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, viewDTO{
		ID:        view.ID,
		AccountID: view.AccountID,
		CreatedAt: formatTime(view.CreatedAt),
	})
}

func (h *ViewHandler) Close(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	if err := h.service.CloseView(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ViewHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	reminders, err := h.service.Reminders(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderDTOs(reminders))
}

func (h *ViewHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.service.Dismiss(r.Context(), principal, r.PathValue("id"), req.SessionID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ViewHandler) Clear(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}

	if err := h.service.ClearDismissed(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type dismissRequest struct {
	SessionID string `json:"session_id"`
}

type viewDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	CreatedAt string `json:"created_at"`
}

type reminderDTO struct {
	SessionID        string `json:"session_id"`
	CounterpartyName string `json:"counterparty_name"`
	ScheduledTime    string `json:"scheduled_time"`
	Type             string `json:"type"`
	SecondsUntil     int64  `json:"seconds_until"`
	StartsIn         string `json:"starts_in"`
	IsUrgent         bool   `json:"is_urgent"`
	IsImmediate      bool   `json:"is_immediate"`
}

func toReminderDTOs(reminders []reminder.Reminder) []reminderDTO {
	resp := make([]reminderDTO, 0, len(reminders))
	for _, rem := range reminders {
		resp = append(resp, reminderDTO{
			SessionID:        rem.SessionID,
			CounterpartyName: rem.CounterpartyName,
			ScheduledTime:    formatTime(rem.ScheduledTime),
			Type:             string(rem.Type),
			SecondsUntil:     int64(rem.TimeUntilSession / time.Second),
			StartsIn:         countdown.Phrase(rem.TimeUntilSession),
			IsUrgent:         rem.IsUrgent,
			IsImmediate:      rem.IsImmediate,
		})
	}
	return resp
}
