package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/mindfolk/internal/application"
	httptransport "github.com/example/mindfolk/internal/http"
	"github.com/example/mindfolk/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// services holds the application layer wired against storage.
type services struct {
	accounts  *application.AccountService
	auth      *application.AuthService
	sessions  *application.SessionService
	reminders *application.ReminderService
}

func newServices(rt *runtime, observer application.ReminderObserver) *services {
	accounts := newAccountStore(rt.storage)
	sessions := newSessionStore(rt.storage)
	hub := application.NewChangeHub()

	return &services{
		accounts: application.NewAccountService(accounts, application.HashPassword, uuid.NewString, time.Now, rt.logger),
		auth: application.NewAuthService(application.AuthServiceDeps{
			Credentials:    accounts,
			Tokens:         newTokenStore(rt.storage),
			VerifyPassword: application.VerifyPassword,
			IDGenerator:    uuid.NewString,
			TokenGenerator: func() string { return randomHex(32) },
			Now:            time.Now,
			TokenTTL:       rt.cfg.TokenTTL,
			Logger:         rt.logger,
		}),
		sessions: application.NewSessionService(sessions, accounts, hub, uuid.NewString, time.Now, rt.logger),
		reminders: application.NewReminderService(application.ReminderServiceConfig{
			Sessions:    sessions,
			Accounts:    accounts,
			Hub:         hub,
			Views:       application.NewViewRegistry(rt.cfg.MaxViews, rt.cfg.ViewTTL),
			Refresh:     rt.cfg.RefreshInterval,
			Location:    rt.cfg.DisplayLocation,
			Observer:    observer,
			IDGenerator: uuid.NewString,
			Logger:      rt.logger,
		}),
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", rt.cfg.HTTPPort))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(cmd.Context(), rt, listener)
		},
	}
}

func newHandler(rt *runtime, svc *services, m *metrics.Metrics) http.Handler {
	logger := rt.logger
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(svc.auth, logger),
		Accounts:     httptransport.NewAccountHandler(svc.accounts, logger),
		Sessions:     httptransport.NewSessionHandler(svc.sessions, svc.reminders, logger),
		Views:        httptransport.NewViewHandler(svc.reminders, logger),
		Stream:       httptransport.NewStreamHandler(svc.reminders, svc.reminders, rt.cfg.AllowedOrigins, logger),
		RequireToken: httptransport.RequireToken(svc.auth, logger),
		Metrics:      m.Handler(),
		Health:       rt.storage,
		Observer:     m,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

// serve runs the API on listener until ctx is cancelled, then drains
// in-flight requests.
func serve(ctx context.Context, rt *runtime, listener net.Listener) error {
	m := metrics.MustNewMetrics(nil)
	svc := newServices(rt, m)

	server := &http.Server{
		Handler:           newHandler(rt, svc, m),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rt.logger.Info("mindfolk API listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		rt.logger.Info("mindfolk API stopped")
		return nil
	})
	return group.Wait()
}
