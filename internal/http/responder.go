package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/mindfolk/internal/application"
)

var (
	errBadRequestBody     = errors.New("request body is malformed")
	errMissingAccessToken = errors.New("an access token is required")
	errInvalidTime        = errors.New("time values must be RFC 3339 timestamps")
	errInvalidHorizon     = errors.New("horizon must be a positive duration such as 24h")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := serviceErrorResponse(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, resp)
}

// serviceErrorResponse maps application errors onto a status and envelope.
// The stream reuses it for in-band error messages.
func serviceErrorResponse(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	hasFields := errors.As(err, &vErr) && vErr.HasErrors()

	switch {
	case errors.Is(err, application.ErrAlreadyExists):
		resp := errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "the resource already exists"}
		if hasFields {
			resp.Errors = vErr.FieldErrors
		}
		return http.StatusConflict, resp
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: "you are not allowed to perform this action"}
	case errors.Is(err, application.ErrViewNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "VIEW_NOT_FOUND", Message: "the reminder view was closed or has expired"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "the requested resource was not found"}
	case errors.Is(err, application.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{ErrorCode: "INVALID_TRANSITION", Message: "the session can no longer change status"}
	case errors.Is(err, application.ErrNotJoinable):
		return http.StatusConflict, errorResponse{ErrorCode: "NOT_JOINABLE", Message: "the session cannot be joined yet"}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_CREDENTIALS", Message: "email or password is incorrect"}
	case errors.Is(err, application.ErrTokenExpired), errors.Is(err, application.ErrTokenRevoked):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_TOKEN_EXPIRED", Message: "the access token is no longer valid, sign in again"}
	case hasFields:
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		}
	}
	return http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: "an internal error occurred"}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
