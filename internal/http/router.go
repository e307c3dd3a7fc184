package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Auth     *AuthHandler
	Accounts *AccountHandler
	Sessions *SessionHandler
	Views    *ViewHandler
	Stream   *StreamHandler
	// RequireToken guards every route except login, logout, metrics and health.
	RequireToken func(http.Handler) http.Handler
	Metrics      http.Handler
	Health       Pinger
	Observer     RequestObserver
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.RequireToken == nil {
			return h
		}
		return cfg.RequireToken(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /login", cfg.Auth.Login)
		mux.HandleFunc("POST /logout", cfg.Auth.Logout)
	}

	if cfg.Accounts != nil {
		mux.Handle("GET /accounts", protect(cfg.Accounts.List))
		mux.Handle("POST /accounts", protect(cfg.Accounts.Create))
		mux.Handle("GET /accounts/{id}", protect(cfg.Accounts.Get))
	}

	if cfg.Sessions != nil {
		mux.Handle("GET /sessions", protect(cfg.Sessions.List))
		mux.Handle("POST /sessions", protect(cfg.Sessions.Create))
		mux.Handle("GET /sessions/{id}", protect(cfg.Sessions.Get))
		mux.Handle("PUT /sessions/{id}/status", protect(cfg.Sessions.UpdateStatus))
		mux.Handle("PUT /sessions/{id}/schedule", protect(cfg.Sessions.Reschedule))
		mux.Handle("GET /sessions/{id}/countdown", protect(cfg.Sessions.Countdown))
		mux.Handle("POST /sessions/{id}/join", protect(cfg.Sessions.Join))
	}

	if cfg.Views != nil {
		mux.Handle("POST /views", protect(cfg.Views.Open))
		mux.Handle("DELETE /views/{id}", protect(cfg.Views.Close))
		mux.Handle("GET /views/{id}/reminders", protect(cfg.Views.Reminders))
		mux.Handle("POST /views/{id}/dismissals", protect(cfg.Views.Dismiss))
		mux.Handle("DELETE /views/{id}/dismissals", protect(cfg.Views.Clear))
	}

	if cfg.Stream != nil {
		mux.Handle("GET /views/{id}/stream", protect(cfg.Stream.ServeHTTP))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.HandleFunc("GET /healthz", healthHandler(cfg.Health))

	handler := ObserveRequests(cfg.Observer)(mux)
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func healthHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				defaultLogger(LoggerFromContext(r.Context())).ErrorContext(r.Context(), "health check failed", "error", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
