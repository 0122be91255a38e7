package command

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shrimp/internal/config"
)

// runHTTP serves handler until ctx is done, then shuts down gracefully.
func runHTTP(ctx context.Context, cfg *config.HTTPServer, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
		return err
	}

	log.Info("HTTP server stopped")
	return nil
}
