package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"inmates/internal/platform/httpclient"
	pstrings "inmates/pkg/platform/strings"
)

// Backend names accepted by CACHE_BACKEND and AUDIT_BACKEND.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
)

// Config is the full runtime configuration of the server and CLI.
type Config struct {
	Server    Server
	Providers Providers
	Cache     Cache
	Redis     RedisConfig
	Audit     Audit
	Auth      Auth
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration

	// RateLimit is requests per second per caller on /v1. Zero disables it.
	RateLimit float64
	RateBurst int
}

// Providers configures the upstream adapters and their shared HTTP client.
type Providers struct {
	TDCJBaseURL string
	FBOPURL     string
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64
	RateBurst   int

	// FBOPFacilities is nil when unset, which keeps the adapter default.
	FBOPFacilities      []string
	FBOPIncludeReleased bool
}

// HTTPClient returns the adapter HTTP client settings.
func (p Providers) HTTPClient() httpclient.Config {
	return httpclient.Config{
		Timeout:    p.Timeout,
		MaxRetries: p.MaxRetries,
		RateLimit:  p.RateLimit,
		RateBurst:  p.RateBurst,
	}
}

// Cache selects the result cache.
type Cache struct {
	Backend string
	TTL     time.Duration
}

// RedisConfig configures the Redis connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit selects the audit backend.
type Audit struct {
	Backend      string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	BufferSize   int
}

// Auth configures bearer token validation. Empty SigningKey disables auth.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
}

// Enabled reports whether requests must carry a bearer token.
func (a Auth) Enabled() bool {
	return a.JWTSigningKey != ""
}

// Log configures the slog handler.
type Log struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Every malformed variable is reported, not just the first.
func FromEnv() (Config, error) {
	e := &envReader{}

	cfg := Config{
		Server: Server{
			Addr:            e.string("INMATES_ADDR", ":8080"),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimit:       e.float("API_RATE_LIMIT", 0),
			RateBurst:       e.int("API_RATE_BURST", 20),
		},
		Providers: Providers{
			TDCJBaseURL:         e.string("TDCJ_BASE_URL", ""),
			FBOPURL:             e.string("FBOP_URL", ""),
			Timeout:             e.duration("PROVIDER_TIMEOUT", httpclient.DefaultTimeout),
			MaxRetries:          e.int("PROVIDER_MAX_RETRIES", httpclient.DefaultMaxRetries),
			RateLimit:           e.float("PROVIDER_RATE_LIMIT", httpclient.DefaultRateLimit),
			RateBurst:           e.int("PROVIDER_RATE_BURST", httpclient.DefaultRateBurst),
			FBOPIncludeReleased: e.bool("FBOP_INCLUDE_RELEASED", false),
		},
		Cache: Cache{
			Backend: e.string("CACHE_BACKEND", BackendNone),
			TTL:     e.duration("CACHE_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          e.string("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: Audit{
			Backend:      e.string("AUDIT_BACKEND", BackendNone),
			DatabaseURL:  e.string("DATABASE_URL", ""),
			KafkaBrokers: pstrings.SplitList(e.string("KAFKA_BROKERS", "")),
			KafkaTopic:   e.string("KAFKA_AUDIT_TOPIC", "inmates.lookup-audit"),
			BufferSize:   e.int("AUDIT_BUFFER_SIZE", 1024),
		},
		Auth: Auth{
			JWTSigningKey: e.string("JWT_SIGNING_KEY", ""),
			JWTIssuer:     e.string("JWT_ISSUER", "inmates"),
		},
		Log: Log{
			Level:  e.string("LOG_LEVEL", "info"),
			Format: e.string("LOG_FORMAT", "json"),
		},
	}
	if raw, ok := os.LookupEnv("FBOP_FACILITIES"); ok {
		cfg.Providers.FBOPFacilities = pstrings.DedupeAndTrimUpper(pstrings.SplitList(raw))
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}

	switch c.Audit.Backend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if c.Audit.DatabaseURL == "" {
			errs = append(errs, errors.New("AUDIT_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendKafka:
		if len(c.Audit.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("AUDIT_BACKEND=kafka requires KAFKA_BROKERS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_BACKEND %q", c.Audit.Backend))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Providers.MaxRetries < 0 {
		errs = append(errs, errors.New("PROVIDER_MAX_RETRIES must not be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("API_RATE_BURST must be at least 1"))
	}
	if c.Audit.BufferSize < 0 {
		errs = append(errs, errors.New("AUDIT_BUFFER_SIZE must not be negative"))
	}
	return errors.Join(errs...)
}

// envReader collects parse errors while reading variables with defaults.
type envReader struct {
	errs []error
}

func (e *envReader) string(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
