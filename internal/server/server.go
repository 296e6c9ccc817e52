// Package server assembles the HTTP API: routing, middleware, and lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/auth"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/middleware"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/server/handler"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Splits *handler.SplitHandler
}

// Server is the HTTP API server for the split-payment engine.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server with all routes registered. Split endpoints
// require a valid Bearer token; health and metrics do not.
func NewServer(cfg Config, handlers Handlers, jwtManager *auth.JWTManager) *Server {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/splits", handlers.Splits.CreatePlan)
	api.HandleFunc("GET /api/splits/{id}", handlers.Splits.GetGroup)
	api.HandleFunc("GET /api/splits/{id}/progress", handlers.Splits.GetProgress)
	api.HandleFunc("POST /api/splits/{id}/installments/{seq}/order", handlers.Splits.RequestOrder)
	api.HandleFunc("POST /api/splits/{id}/installments/{seq}/confirm", handlers.Splits.Confirm)
	api.HandleFunc("POST /api/splits/{id}/cancel", handlers.Splits.Cancel)

	mux := http.NewServeMux()
	mux.Handle("/api/splits", middleware.RequireAuth(jwtManager)(api))
	mux.Handle("/api/splits/", middleware.RequireAuth(jwtManager)(api))
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = middleware.Logging()(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	// h2c lets gateway webhooks and internal callers speak HTTP/2 without TLS
	// when the server sits behind a terminating proxy.
	h = h2c.NewHandler(h, &http2.Server{})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	slog.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
