// Package api is the HTTP gateway exposing entitlement checks to other services.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// Server is the HTTP API gateway.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	logger      *slog.Logger
	registry    *application.Registry
	service     *application.Service
	issuer      *TokenIssuer
	metrics     observability.Metrics
	health      *observability.HealthRegistry
	guardOpts   []guard.Option
	ingest      func(ctx context.Context, sub *domain.Subscription) error
	validate    *validator.Validate
	openTimeout time.Duration

	webhookSecret string
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Dependencies are the collaborators the gateway serves.
type Dependencies struct {
	Registry       *application.Registry
	Service        *application.Service
	Issuer         *TokenIssuer
	Metrics        observability.Metrics
	MetricsHandler http.Handler
	Health         *observability.HealthRegistry
	GuardOptions   []guard.Option
	// Ingest applies a billing update; it defaults to Service.IngestSubscriptionUpdate.
	Ingest func(ctx context.Context, sub *domain.Subscription) error
	// WebhookSecret signs billing webhook bodies. Empty disables the webhook.
	WebhookSecret string
	Logger        *slog.Logger
}

// NewServer creates a new API gateway.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	if deps.Health == nil {
		deps.Health = observability.NewHealthRegistry()
	}
	if deps.Ingest == nil {
		deps.Ingest = deps.Service.IngestSubscriptionUpdate
	}

	s := &Server{
		router:      chi.NewRouter(),
		logger:      deps.Logger.With("component", "api"),
		registry:    deps.Registry,
		service:     deps.Service,
		issuer:      deps.Issuer,
		metrics:     deps.Metrics,
		health:      deps.Health,
		guardOpts:   deps.GuardOptions,
		ingest:      deps.Ingest,
		validate:    validator.New(),
		openTimeout: 5 * time.Second,

		webhookSecret: deps.WebhookSecret,
	}
	s.registerRoutes(deps.MetricsHandler)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes(metricsHandler http.Handler) {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(correlation)
	r.Use(requestMetrics(s.metrics))

	r.Get("/health", s.handleHealth)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	r.Post("/webhooks/billing/subscriptions", s.handleBillingWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.tenant)

		r.Get("/entitlement", s.handleEntitlement)
		r.Post("/entitlement/refresh", s.handleRefresh)
		r.Get("/actions/{action}", s.handleCheckAction)
		r.Get("/actions/{action}/message", s.handleActionMessage)
		r.Post("/actions/{action}/attempt", s.handleAttempt)
		r.Get("/modules/{module}", s.handleModule)
		r.Get("/prompt", s.handlePrompt)
		r.Get("/denials", s.handleDenials)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API gateway", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API gateway")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
