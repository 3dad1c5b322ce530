package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	DefaultMinUnits         int
	DefaultMaxUnits         int
	MinUnitsStep            int
	AddUnitsIncludeExisting bool
	UnitName                string
	CurrencyCode            string
	Locale                  string

	ConfigurationVersion     int
	ConfigurationKeyLength   int
	ConfigurationKeyAttempts int
	ConfigurationTTL         time.Duration

	PriceListCacheTTL  time.Duration
	PriceListMemoryTTL time.Duration
	PriceListLockTTL   time.Duration

	IdempotencyTTL  time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64
	MigrationsPath  string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DefaultMinUnits:         parseInt(k.String("PRICING_DEFAULT_MIN_UNITS"), 1),
		DefaultMaxUnits:         parseInt(k.String("PRICING_DEFAULT_MAX_UNITS"), 10000),
		MinUnitsStep:            parseInt(k.String("PRICING_MIN_UNITS_STEP"), 0),
		AddUnitsIncludeExisting: parseBool(k.String("PRICING_ADD_UNITS_INCLUDE_EXISTING")),
		UnitName:                valueOrDefault(k.String("PRICING_UNIT_NAME"), "user"),
		CurrencyCode:            strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "GBP")),
		Locale:                  valueOrDefault(k.String("PRICING_LOCALE"), "en-GB"),

		ConfigurationVersion:     parseInt(k.String("CONFIGURATION_VERSION"), 1),
		ConfigurationKeyLength:   parseInt(k.String("CONFIGURATION_KEY_LENGTH"), 10),
		ConfigurationKeyAttempts: parseInt(k.String("CONFIGURATION_KEY_ATTEMPTS"), 20),
		ConfigurationTTL:         parseDuration(k.String("CONFIGURATION_TTL"), "0s"),

		PriceListCacheTTL:  parseDuration(k.String("PRICE_LIST_CACHE_TTL"), "10m"),
		PriceListMemoryTTL: parseDuration(k.String("PRICE_LIST_MEMORY_TTL"), "1m"),
		PriceListLockTTL:   parseDuration(k.String("PRICE_LIST_LOCK_TTL"), "5s"),

		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 60),
		BodyLimitBytes:  int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 65536)),
		MigrationsPath:  valueOrDefault(k.String("MIGRATIONS_PATH"), "file://migrations"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.DefaultMinUnits < 1 {
		errs = append(errs, errors.New("PRICING_DEFAULT_MIN_UNITS must be at least 1"))
	}
	if c.DefaultMaxUnits < c.DefaultMinUnits {
		errs = append(errs, errors.New("PRICING_DEFAULT_MAX_UNITS must not be below PRICING_DEFAULT_MIN_UNITS"))
	}
	if c.ConfigurationVersion < 1 {
		errs = append(errs, errors.New("CONFIGURATION_VERSION must be positive"))
	}
	return errors.Join(errs...)
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	return lo.Compact(lo.Map(strings.Split(value, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []error
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
