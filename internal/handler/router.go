package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/messenger/internal/middleware"
	"github.com/capitalize-ai/messenger/internal/service"
	"github.com/capitalize-ai/messenger/pkg/logger"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Delivery          *service.DeliveryService
	Health            *HealthHandler
	Logger            *logger.Logger
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	messageHandler := NewMessageHandler(cfg.Delivery, cfg.Logger)
	conversationHandler := NewConversationHandler(cfg.Delivery, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)
	}

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Create)
			r.Put("/", messageHandler.Update)
			r.Put("/read", messageHandler.Update)
			r.Get("/unread", messageHandler.Unread)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/{id}/messages", conversationHandler.Messages)
			r.Post("/{id}/read", conversationHandler.Read)
		})

		r.Post("/presence/heartbeat", conversationHandler.Heartbeat)
	})

	return r
}
