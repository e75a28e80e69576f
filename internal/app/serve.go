package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/httpapi"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const shutdownTimeout = 5 * time.Second

// serve listens on the configured address and runs the HTTP API until ctx is
// cancelled.
func (a *App) serve(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Configuring HTTP server.", "address", a.config.ListenAddr)

	ln, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.ListenAddr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener runs the HTTP API on ln until ctx is cancelled, then shuts the
// server down gracefully and flushes the registry. It returns early only if
// the server fails.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	srv := &http.Server{
		Handler:           httpapi.NewHandler(a.registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 HTTP server starting", "address", fmt.Sprintf("http://%s", ln.Addr()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		logger.Error("HTTP server failed unexpectedly", "error", err)
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("🩺 Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	logger.Debug("HTTP server shut down gracefully.")

	if err := a.registry.Flush(shutdownCtx); err != nil {
		return fmt.Errorf("failed to flush functions: %w", err)
	}
	logger.Debug("Registry flushed.")
	return nil
}
