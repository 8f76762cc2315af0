// Package server exposes the pipeline over HTTP: the process endpoint, a
// health probe, and static serving of stored outputs under /files.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"image-pipeline/pkg/pipeline"
)

// Server is the public HTTP surface of the service.
type Server struct {
	addr     string
	pipeline *pipeline.Pipeline
	filesDir string
	logger   *slog.Logger
	server   *http.Server
}

// New creates the HTTP server. filesDir is the storage root served under
// /files.
func New(addr string, p *pipeline.Pipeline, filesDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:     addr,
		pipeline: p,
		filesDir: filesDir,
		logger:   logger.With("component", "http-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pipeline/v2/process", s.handleProcess)
	mux.HandleFunc("GET /pipeline/v2/health", s.handleHealth)
	mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(filesDir))))

	handler := s.withRequestID(s.withAccessLog(s.withRecovery(mux)))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start serves until ctx is cancelled, then drains connections for up to
// 10 seconds. Run it in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil

	case err := <-serverErr:
		return fmt.Errorf("http server error: %w", err)
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the fully assembled handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
