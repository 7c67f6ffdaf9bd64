package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"eabridge/src/auth"
	"eabridge/src/handler"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// NewRouter builds the control API. Everything under /api needs an operator token.
func NewRouter(bridge handler.Bridge, verifier auth.OperatorVerifier) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))

		r.Get("/status", handler.StatusHandler(bridge))
		r.Post("/bot", handler.SetBotHandler(bridge))

		r.Get("/symbols", handler.ListSymbolsHandler(bridge))
		r.Put("/symbols/{bucket}", handler.SetSymbolHandler(bridge))
		r.Delete("/symbols/{bucket}/{symbol}", handler.RemoveSymbolHandler(bridge))

		r.Get("/accounts", handler.ListAccountsHandler(bridge))
		r.Put("/accounts/{platform}", handler.SetAccountHandler(bridge))

		r.Get("/eas", handler.ListEAsHandler(bridge))
		r.Post("/eas", handler.AddEAHandler(bridge))
		r.Delete("/eas/{id}", handler.RemoveEAHandler(bridge))
		r.Post("/eas/{id}/activate", handler.ActivateEAHandler(bridge))
		r.Post("/eas/{id}/refresh", handler.RefreshEAHandler(bridge))

		r.Post("/dispatch/cancel", handler.CancelDispatchHandler(bridge))
		r.Get("/signals", handler.SignalLogHandler(bridge))
		r.Get("/executions", handler.ExecutionsHandler(bridge))
	})

	return r
}

// StartServer serves h until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *Config, h http.Handler) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
