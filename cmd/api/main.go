package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-licence/internal/app"
	"github.com/noah-isme/backend-licence/internal/catalog"
	"github.com/noah-isme/backend-licence/internal/checkout"
	"github.com/noah-isme/backend-licence/internal/config"
	"github.com/noah-isme/backend-licence/internal/configstore"
	"github.com/noah-isme/backend-licence/internal/configurator"
	"github.com/noah-isme/backend-licence/internal/health"
	"github.com/noah-isme/backend-licence/internal/lock"
	"github.com/noah-isme/backend-licence/internal/obs"
	"github.com/noah-isme/backend-licence/internal/pricelist"
	"github.com/noah-isme/backend-licence/internal/pricing"
	"github.com/noah-isme/backend-licence/internal/repo"
	"github.com/noah-isme/backend-licence/internal/security"
	"github.com/noah-isme/backend-licence/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "licence")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "licence-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := openRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Source:    repo.PriceRepo{Q: pool},
		Cache:     catalog.NewCache(redisClient, cfg.PriceListCacheTTL),
		MemoryTTL: cfg.PriceListMemoryTTL,
		Locker:    lock.Locker{R: redisClient, MaxWait: 2 * cfg.PriceListLockTTL},
		LockTTL:   cfg.PriceListLockTTL,
		Options: pricelist.Options{
			DefaultMinUnits: cfg.DefaultMinUnits,
			DefaultMaxUnits: cfg.DefaultMaxUnits,
			MinUnitsStep:    cfg.MinUnitsStep,
		},
		Logger: logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	generator, err := summary.New(summary.Config{
		Currency: cfg.CurrencyCode,
		Locale:   cfg.Locale,
		UnitName: cfg.UnitName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise summary generator")
	}
	processor := pricing.NewProcessor(pricing.Config{AddUnitsIncludeExisting: cfg.AddUnitsIncludeExisting}, generator)
	store := configstore.NewStore(redisClient, configstore.Config{
		Version:     cfg.ConfigurationVersion,
		KeyLength:   cfg.ConfigurationKeyLength,
		MaxAttempts: cfg.ConfigurationKeyAttempts,
		TTL:         cfg.ConfigurationTTL,
	})

	configuratorService, err := configurator.NewService(configurator.ServiceConfig{
		PriceLists: catalogService,
		Store:      store,
		Processor:  processor,
		Logger:     logger.With().Str("component", "configurator").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise configurator service")
	}
	checkoutService, err := checkout.NewService(checkout.ServiceConfig{
		PriceLists: catalogService,
		Store:      store,
		Processor:  processor,
		Logger:     logger.With().Str("component", "checkout").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}
	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		pprofHandler = protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""))
	}

	router := app.NewRouter(app.RouterConfig{
		Logger:       logger,
		Metrics:      httpMetrics,
		Tracing:      tracingEnabled,
		Pprof:        pprofHandler,
		Catalog:      catalog.NewHandler(catalog.HandlerConfig{Service: catalogService}),
		Configurator: configurator.NewHandler(configurator.HandlerConfig{Service: configuratorService}),
		Checkout:     &checkout.Handler{Svc: checkoutService},
		Health: health.Handler{Probes: []health.Probe{
			health.Postgres(pool, envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500)),
			health.Redis(redisClient, envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)),
		}},
		Redis:           redisClient,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		BodyLimitBytes:  cfg.BodyLimitBytes,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		Headers: security.Headers{
			Enable:     envBool("SECURE_HEADERS_ENABLE", true),
			EnableHSTS: envBool("SECURE_HSTS_ENABLE", cfg.AppEnv == "production"),
			HSTSMaxAge: envInt("SECURE_HSTS_MAX_AGE", 31536000),
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Int("configuration_version", store.Version()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "licence-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func openRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(envOrDefault(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(envOrDefault(key, ""), 64); err == nil {
		return parsed
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if parsed, err := strconv.Atoi(envOrDefault(key, "")); err == nil {
		return parsed
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
