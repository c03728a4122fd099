// Package api serves capture metrics and health while binderdump runs.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 5 * time.Second

// Server holds the metrics server state
type Server struct {
	config   ServerConfig
	metrics  *Metrics
	gatherer prometheus.Gatherer
	status   StatusFunc
	logger   *zap.Logger
}

// NewServer creates a server exposing gatherer on /metrics and status on
// /health.
func NewServer(config ServerConfig, metrics *Metrics, gatherer prometheus.Gatherer, status StatusFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		config:   config,
		metrics:  metrics,
		gatherer: gatherer,
		status:   status,
		logger:   logger,
	}
}

// Handler returns the router with all routes configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", s.metrics.InstrumentHandler(http.MethodGet, "/health", s.handleHealth))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.metrics.RecordHealthCheck(true)
		sendSuccess(w, HealthStatus{Status: "ok"})
		return
	}
	status, err := s.status()
	if err != nil {
		s.metrics.RecordHealthCheck(false)
		sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, status)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Bind, fmt.Sprint(s.config.Port))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
