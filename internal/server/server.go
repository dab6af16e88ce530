// Package server serves the Prometheus scrape endpoint and the monitor's
// health and status API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwsmith1983/chia-monitor/internal/server/handlers"
)

const shutdownTimeout = 5 * time.Second

// Server is the chia-monitor HTTP server.
type Server struct {
	registry *prometheus.Registry
	store    handlers.Store
	logger   *slog.Logger
	router   chi.Router
	srv      *http.Server
}

// New creates a server exposing registry on /metrics.
func New(addr string, registry *prometheus.Registry, store handlers.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		store:    store,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogMiddleware(logger))
	r.Use(middleware.Recoverer)

	s.router = r
	s.registerRoutes(r)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the configured address and serves HTTP requests. It returns
// nil after Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.serve(l)
}

func (s *Server) serve(l net.Listener) error {
	s.logger.Info("exporter listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server. Serving after Stop returns at once.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run binds the address, serves until ctx is cancelled and then shuts down.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(l) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		s.logger.Warn("server shutdown", "error", err)
	}
	return <-errCh
}
