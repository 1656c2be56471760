// Package server exposes the read-only HTTP API: health, the installed
// relationship table, recent opportunities, and engine statistics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddslab/syntharb/internal/server/handler"
	"github.com/oddslab/syntharb/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // if empty, authentication is disabled
}

// Handlers aggregates the handlers the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Relationships *handler.RelationshipHandler
	Opportunities *handler.OpportunityHandler
	Stats         *handler.StatsHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required paths still go through the chain; the
	// API key gate is global when configured).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/relationships", handlers.Relationships.List)
	mux.HandleFunc("GET /api/opportunities/recent", handlers.Opportunities.ListRecent)
	mux.HandleFunc("GET /api/stats", handlers.Stats.GetStats)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening. It blocks until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
