// Package app assembles the HTTP surface of the licence configurator.
package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-licence/internal/catalog"
	"github.com/noah-isme/backend-licence/internal/checkout"
	"github.com/noah-isme/backend-licence/internal/common"
	"github.com/noah-isme/backend-licence/internal/configurator"
	"github.com/noah-isme/backend-licence/internal/health"
	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/ratelimit"
	"github.com/noah-isme/backend-licence/internal/security"
)

// RouterConfig collects the handlers and cross-cutting settings served by NewRouter.
type RouterConfig struct {
	Logger  zerolog.Logger
	Metrics *obs.HTTPMetrics
	Tracing bool
	// Pprof is mounted at /debug/pprof when set.
	Pprof http.Handler

	Catalog      *catalog.Handler
	Configurator *configurator.Handler
	Checkout     *checkout.Handler
	Health       health.Handler

	Redis           *redis.Client
	IdempotencyTTL  time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64
	CORSOrigins     []string
	Headers         security.Headers
}

// NewRouter builds the chi router exposing health, metrics and the /api/v1 routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(cfg.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Location", "Retry-After", "Idempotent-Replayed"},
		MaxAge:         300,
	}))

	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Pprof != nil {
		r.Mount("/debug/pprof", cfg.Pprof)
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	writes := writeMiddleware(cfg)
	r.Route("/api/v1", func(v chi.Router) {
		if cfg.Catalog != nil {
			v.Get("/products/{family}/price-list", cfg.Catalog.PriceList)
			v.Get("/products/{family}/appliances", cfg.Catalog.Appliances)
		}
		if h := cfg.Configurator; h != nil {
			v.With(writes...).Post("/configurations/preview", h.Preview)
			v.With(writes...).Post("/configurations", h.Create)
			v.Get("/configurations/{key}", h.Get)
			v.With(writes...).Post("/quotes", h.CreateQuote)
			v.Get("/quotes/{id}", h.GetQuote)
		}
		if cfg.Checkout != nil {
			v.With(writes...).Post("/checkout", cfg.Checkout.Checkout)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func writeMiddleware(cfg RouterConfig) []func(http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler
	if cfg.Redis != nil && cfg.RateLimitMax > 0 {
		log := cfg.Logger
		chain = append(chain, ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: cfg.Redis, Prefix: "licence:rl:"},
			Config:  ratelimit.Config{Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { log.Warn().Err(err).Msg("rate limiter unavailable") },
		}.Middleware)
	}
	if cfg.BodyLimitBytes > 0 {
		chain = append(chain, security.BodyLimit{Max: cfg.BodyLimitBytes, RequireJSON: true}.Middleware)
	}
	if cfg.Redis != nil {
		chain = append(chain, common.Idem{R: cfg.Redis, TTL: cfg.IdempotencyTTL}.Middleware)
	}
	return chain
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
