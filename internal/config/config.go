package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the HiveWatch service.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Signals    SignalConfig
	Probe      ProbeConfig
	Retention  RetentionConfig
	Scheduler  SchedulerConfig
	Webhook    WebhookConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the optional ClickHouse traffic-event
// backend. When disabled, traffic events share the primary database.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// SignalCacheTTL bounds how stale a cached signal may be. Zero
	// disables the read-path cache even when Redis is connected.
	SignalCacheTTL time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled     bool
	IngestRPS   float64
	IngestBurst int
	ReadRPS     float64
	ReadBurst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP country enrichment at the drain endpoint.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// SignalConfig carries classifier defaults. Per-user thresholds stored in
// settings override the three threshold values.
type SignalConfig struct {
	TractionVisits         int64
	DegradedResponseTimeMS int64
	DegradedDeclinePct     float64

	// DeadAfterDays is the no-traffic interval after which a product
	// with no revenue is considered dead.
	DeadAfterDays int

	// WindowDays is the trailing aggregation window for traffic.
	WindowDays int
}

// ProbeConfig bounds outbound health probes.
type ProbeConfig struct {
	Timeout time.Duration
}

// RetentionConfig controls the bounded-batch traffic event purge.
type RetentionConfig struct {
	KeepDays  int
	BatchSize int
}

// WebhookConfig configures billing webhook signature verification.
// An empty secret disables verification (trusted-network deployments).
type WebhookConfig struct {
	BillingSecret string
}

// SchedulerConfig sets the background job intervals.
type SchedulerConfig struct {
	Enabled         bool
	HealthInterval  time.Duration
	RefreshInterval time.Duration
	PurgeInterval   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("HIVEWATCH_HTTP_ADDR", ":8080"),
			Env:             getEnv("HIVEWATCH_ENV", "development"),
			ShutdownTimeout: getDurationEnv("HIVEWATCH_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("HIVEWATCH_DB_HOST", "localhost"),
			Port:     getIntEnv("HIVEWATCH_DB_PORT", 5432),
			User:     getEnv("HIVEWATCH_DB_USER", "hivewatch"),
			Password: getEnv("HIVEWATCH_DB_PASSWORD", "hivewatch_secret"),
			DBName:   getEnv("HIVEWATCH_DB_NAME", "hivewatch"),
			SSLMode:  getEnv("HIVEWATCH_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("HIVEWATCH_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("HIVEWATCH_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("HIVEWATCH_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("HIVEWATCH_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("HIVEWATCH_CLICKHOUSE_DB", "hivewatch"),
			User:     getEnv("HIVEWATCH_CLICKHOUSE_USER", "default"),
			Password: getEnv("HIVEWATCH_CLICKHOUSE_PASSWORD", ""),
			MaxConns: getIntEnv("HIVEWATCH_CLICKHOUSE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:           getEnv("HIVEWATCH_REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("HIVEWATCH_REDIS_PASSWORD", ""),
			DB:             getIntEnv("HIVEWATCH_REDIS_DB", 0),
			SignalCacheTTL: getDurationEnv("HIVEWATCH_SIGNAL_CACHE_TTL", time.Minute),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("HIVEWATCH_AUTH_ENABLED", true),
			MasterKey: getEnv("HIVEWATCH_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("HIVEWATCH_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("HIVEWATCH_RATE_LIMIT_ENABLED", true),
			IngestRPS:   getFloatEnv("HIVEWATCH_RATE_LIMIT_INGEST_RPS", 1000),
			IngestBurst: getIntEnv("HIVEWATCH_RATE_LIMIT_INGEST_BURST", 200),
			ReadRPS:     getFloatEnv("HIVEWATCH_RATE_LIMIT_READ_RPS", 100),
			ReadBurst:   getIntEnv("HIVEWATCH_RATE_LIMIT_READ_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("HIVEWATCH_LOG_LEVEL", "info"),
			Format: getEnv("HIVEWATCH_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("HIVEWATCH_METRICS_ENABLED", true),
			Path:    getEnv("HIVEWATCH_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("HIVEWATCH_GEO_ENABLED", false),
			DatabasePath: getEnv("HIVEWATCH_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
		},
		Signals: SignalConfig{
			TractionVisits:         int64(getIntEnv("HIVEWATCH_TRACTION_VISITS", 100)),
			DegradedResponseTimeMS: int64(getIntEnv("HIVEWATCH_DEGRADED_RESPONSE_MS", 2000)),
			DegradedDeclinePct:     getFloatEnv("HIVEWATCH_DEGRADED_DECLINE_PCT", 30),
			DeadAfterDays:          getIntEnv("HIVEWATCH_DEAD_AFTER_DAYS", 7),
			WindowDays:             getIntEnv("HIVEWATCH_WINDOW_DAYS", 7),
		},
		Probe: ProbeConfig{
			Timeout: getDurationEnv("HIVEWATCH_PROBE_TIMEOUT", 10*time.Second),
		},
		Retention: RetentionConfig{
			KeepDays:  getIntEnv("HIVEWATCH_RETENTION_KEEP_DAYS", 30),
			BatchSize: getIntEnv("HIVEWATCH_RETENTION_BATCH_SIZE", 1000),
		},
		Webhook: WebhookConfig{
			BillingSecret: getEnv("HIVEWATCH_BILLING_WEBHOOK_SECRET", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getBoolEnv("HIVEWATCH_SCHEDULER_ENABLED", true),
			HealthInterval:  getDurationEnv("HIVEWATCH_HEALTH_INTERVAL", 5*time.Minute),
			RefreshInterval: getDurationEnv("HIVEWATCH_REFRESH_INTERVAL", 6*time.Hour),
			PurgeInterval:   getDurationEnv("HIVEWATCH_PURGE_INTERVAL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and thresholds
// are positive.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("HIVEWATCH_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Signals.TractionVisits <= 0 {
		return fmt.Errorf("HIVEWATCH_TRACTION_VISITS must be positive")
	}
	if c.Signals.DegradedResponseTimeMS <= 0 {
		return fmt.Errorf("HIVEWATCH_DEGRADED_RESPONSE_MS must be positive")
	}
	if c.Signals.DegradedDeclinePct <= 0 {
		return fmt.Errorf("HIVEWATCH_DEGRADED_DECLINE_PCT must be positive")
	}
	if c.Signals.DeadAfterDays <= 0 {
		return fmt.Errorf("HIVEWATCH_DEAD_AFTER_DAYS must be positive")
	}
	if c.Retention.BatchSize <= 0 {
		return fmt.Errorf("HIVEWATCH_RETENTION_BATCH_SIZE must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
