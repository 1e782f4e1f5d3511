// Package api exposes the HTTP surface of the pricing engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/predictor"
	"github.com/silaiwala/darzi/internal/pricing"
	"github.com/silaiwala/darzi/internal/rules"
	"github.com/silaiwala/darzi/internal/training"
	"github.com/silaiwala/darzi/internal/worker"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, calc *pricing.Calculator, opt *pricing.Optimizer, pipeline *training.Pipeline, pred *predictor.Predictor, ingestor *worker.Worker, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, calc, opt, pipeline, pred, ingestor, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Pricing
	router.Post("/pricing/calculate", handler.Calculate)
	router.Get("/services/{id}/pricing", handler.ServicePricing)
	router.Get("/services/{id}/recommendations", handler.Recommendations)

	// Model training
	router.Post("/model/train", handler.Train)

	// Rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Customers and history
	router.Get("/customers/{id}/profile", handler.CustomerProfile)
	router.Post("/orders/completed", handler.OrderCompleted)
	router.Get("/history", handler.History)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
