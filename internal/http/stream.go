package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/example/mindfolk/internal/application"
	"github.com/example/mindfolk/internal/reminder"
)

// Stream message types. The server sends reminders, navigate, joined and
// error; clients send dismiss, clear and join.
const (
	messageReminders = "reminders"
	messageNavigate  = "navigate"
	messageJoined    = "joined"
	messageError     = "error"
	messageDismiss   = "dismiss"
	messageClear     = "clear"
	messageJoin      = "join"
)

// StatusViewGone closes a stream whose view was closed or expired. Clients
// should open a new view and reconnect.
const StatusViewGone websocket.StatusCode = 4404

const streamWriteTimeout = 10 * time.Second

var errClientClosed = errors.New("http: stream client disconnected")

// clientMessage is a frame sent by the browser. ID is echoed on replies.
type clientMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type remindersMessage struct {
	Type      string        `json:"type"`
	Reminders []reminderDTO `json:"reminders"`
}

type navigateMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id"`
	Path      string `json:"path,omitempty"`
}

type errorMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// StreamHandler pushes a view's reminders over a websocket.
type StreamHandler struct {
	reminders  reminderService
	countdowns countdownService
	origins    []string
	responder  responder
	logger     *slog.Logger
}

// NewStreamHandler builds the stream endpoint. origins lists additional
// host patterns allowed to open cross-origin streams.
func NewStreamHandler(reminders reminderService, countdowns countdownService, origins []string, logger *slog.Logger) *StreamHandler {
	base := defaultLogger(logger)
	return &StreamHandler{
		reminders:  reminders,
		countdowns: countdowns,
		origins:    origins,
		responder:  newResponder(base),
		logger:     base,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAccessToken)
		return
	}
	viewID := r.PathValue("id")
	logger := handlerLogger(r.Context(), h.logger, "StreamHandler", "Stream", "view_id", viewID)

	// Surface unknown or foreign views as plain HTTP errors before upgrading.
	if _, err := h.reminders.Reminders(r.Context(), principal, viewID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		logger.WarnContext(r.Context(), "failed to accept websocket", "error", err)
		return
	}
	defer conn.CloseNow()

	s := &stream{
		conn:       conn,
		principal:  principal,
		viewID:     viewID,
		reminders:  h.reminders,
		countdowns: h.countdowns,
		logger:     logger,
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return s.watch(ctx) })
	g.Go(func() error { return s.readLoop(ctx) })
	err = g.Wait()

	switch {
	case errors.Is(err, application.ErrViewNotFound):
		logger.InfoContext(r.Context(), "reminder stream ended with its view")
		conn.Close(StatusViewGone, "view closed")
	case errors.Is(err, errClientClosed), errors.Is(err, context.Canceled):
		logger.DebugContext(r.Context(), "reminder stream disconnected")
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		logger.ErrorContext(r.Context(), "reminder stream failed", "error", err, "error_kind", application.ErrorKind(err))
		conn.Close(websocket.StatusInternalError, "stream failed")
	}
}

type stream struct {
	conn       *websocket.Conn
	principal  application.Principal
	viewID     string
	reminders  reminderService
	countdowns countdownService
	logger     *slog.Logger
}

func (s *stream) watch(ctx context.Context) error {
	err := s.reminders.Watch(ctx, s.principal, s.viewID, func(ctx context.Context, reminders []reminder.Reminder) error {
		return s.send(ctx, remindersMessage{Type: messageReminders, Reminders: toReminderDTOs(reminders)})
	})
	if errors.Is(err, application.ErrViewNotFound) {
		_ = s.sendError(ctx, "", err)
	}
	if err == nil {
		err = context.Canceled
	}
	return err
}

func (s *stream) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.DebugContext(ctx, "stream read ended", "error", err)
			return errClientClosed
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := s.send(ctx, errorMessage{Type: messageError, ErrorCode: "BAD_MESSAGE", Message: "message is not valid JSON"}); err != nil {
				return err
			}
			continue
		}
		if err := s.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle runs one client command. Command failures are reported in band;
// only write failures and a vanished view end the stream.
func (s *stream) handle(ctx context.Context, msg clientMessage) error {
	var err error
	switch msg.Type {
	case messageDismiss:
		err = s.reminders.Dismiss(ctx, s.principal, s.viewID, msg.SessionID)
	case messageClear:
		err = s.reminders.ClearDismissed(ctx, s.principal, s.viewID)
	case messageJoin:
		var result application.JoinResult
		result, err = s.countdowns.Join(ctx, s.principal, msg.SessionID)
		if err == nil {
			reply := navigateMessage{Type: messageNavigate, ID: msg.ID, SessionID: result.SessionID, Path: result.Path}
			if result.Path == "" {
				reply.Type = messageJoined
			}
			return s.send(ctx, reply)
		}
	default:
		return s.send(ctx, errorMessage{Type: messageError, ID: msg.ID, ErrorCode: "UNKNOWN_MESSAGE", Message: "unknown message type " + msg.Type})
	}
	if err == nil {
		return nil
	}
	if sendErr := s.sendError(ctx, msg.ID, err); sendErr != nil {
		return sendErr
	}
	if errors.Is(err, application.ErrViewNotFound) {
		return err
	}
	return nil
}

func (s *stream) sendError(ctx context.Context, id string, err error) error {
	_, resp := serviceErrorResponse(err)
	return s.send(ctx, errorMessage{Type: messageError, ID: id, ErrorCode: resp.ErrorCode, Message: resp.Message})
}

func (s *stream) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}
