package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CheckTimeout bounds the liveness query behind /health.
const CheckTimeout = 2 * time.Second

const shutdownTimeout = 5 * time.Second

// Checker reports whether the persistence layer can serve requests.
type Checker interface {
	Ready() bool
	Ping(ctx context.Context) error
}

// NewRouter builds the health and metrics routes.
func NewRouter(checker Checker, logger *zap.Logger) http.Handler {
	logger = logger.Named("health")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	healthHandler := func(w http.ResponseWriter, req *http.Request) {
		if !checker.Ready() {
			http.Error(w, "schema not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), CheckTimeout)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)

			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}

	r.Get("/health", healthHandler)
	r.Get("/", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve listens on the port until the context is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, port int, handler http.Handler, logger *zap.Logger) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	return ServeListener(ctx, listener, handler, logger)
}

// ServeListener serves on an existing listener until the context is cancelled.
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("Health server listening", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("health server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	return nil
}
