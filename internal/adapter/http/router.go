package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/kasa/internal/adapter/http/handler"
	"github.com/iho/kasa/internal/adapter/http/middleware"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/infrastructure/metrics"
	"github.com/iho/kasa/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ShareholderHandler *handler.ShareholderHandler
	PeriodHandler      *handler.PeriodHandler
	SettlementHandler  *handler.SettlementHandler
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	RateLimiter        *middleware.RateLimiter
	// TokenVerifier enables bearer auth on /api/v1 when set.
	TokenVerifier  middleware.TokenVerifier
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	requireRole := func(role domain.Role) func(http.Handler) http.Handler {
		if cfg.TokenVerifier == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequireRole(role)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			var onFailure func(string)
			if cfg.Metrics != nil {
				onFailure = func(reason string) { cfg.Metrics.AuthFailures.WithLabelValues(reason).Inc() }
			}
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier, onFailure))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).WithTTL(cfg.IdempotencyTTL)
			if cfg.Metrics != nil {
				idempotencyMiddleware.OnReplay(cfg.Metrics.IdempotentHits.Inc)
			}
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Shareholders
		r.Route("/shareholders", func(r chi.Router) {
			r.Get("/", cfg.ShareholderHandler.List)
			r.With(requireRole(domain.RoleAdmin)).Put("/", cfg.ShareholderHandler.Replace)
		})

		// Periods
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", cfg.PeriodHandler.List)
			r.Route("/{month}", func(r chi.Router) {
				r.Get("/", cfg.PeriodHandler.Get)
				r.With(requireRole(domain.RoleOperator)).Put("/", cfg.PeriodHandler.Put)
				r.Get("/distribution", cfg.SettlementHandler.Preview)
				r.With(requireRole(domain.RoleOperator)).Post("/close", cfg.SettlementHandler.Close)
				r.Get("/settlement", cfg.SettlementHandler.Settlement)
				r.Get("/report", cfg.SettlementHandler.Report)
			})
		})

		r.Get("/carry", cfg.SettlementHandler.Carry)
		r.Get("/settlements", cfg.SettlementHandler.History)
		r.Get("/split", cfg.SettlementHandler.Split)
		r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
	})

	return r
}
