package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the API server and workloadctl read from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Logging   LoggingConfig
	App       AppConfig

	// Workload metrics and risk detection
	Workload WorkloadConfig

	// parseErrs are values present in the environment that did not parse.
	parseErrs []string
}

// ServerConfig holds listener settings and timeouts.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig sizes the tracker pgx pool.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig signs and verifies caller tokens.
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// RateLimitConfig holds the general per-IP limit and the stricter
// per-caller limit on detection runs.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	DetectRPS         float64
	DetectBurst       int
}

// CORSConfig holds cross-origin configuration
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// WebSocketConfig sizes the alert stream connections.
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// LoggingConfig selects level and handler format.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig names the running service.
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// WorkloadConfig holds the tracker mapping and risk detection settings
type WorkloadConfig struct {
	SourceSystem         string
	DetectorSourceSystem string
	ETAFieldID           int
	TaskTypeFieldIDs     []int
	MaxConcurrency       int
	Timezone             string
	NotifyMinSeverity    string
	AlertRecipients      []string
	// AlertLedger, when set, keeps risk alerts in a local SQLite file
	// instead of the tracker database.
	AlertLedger string
}

// Location returns the calendar location "today" is evaluated in.
func (w WorkloadConfig) Location() *time.Location {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads the environment, and a .env file when present, and validates
// the result for the API server.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads configuration without validating it. Callers that need only
// part of the configuration validate that part.
func Read() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	env := newEnv()
	cfg := &Config{
		Server: ServerConfig{
			Port:            env.str("SERVER_PORT", ":8080"),
			ReadTimeout:     env.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    env.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             env.str("DATABASE_URL", ""),
			MaxOpenConns:    env.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:         env.str("JWT_SECRET", ""),
			AccessTokenTTL: env.duration("JWT_ACCESS_TOKEN_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           env.bool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: env.float("RATE_LIMIT_RPS", 10),
			BurstSize:         env.int("RATE_LIMIT_BURST", 20),
			DetectRPS:         env.float("RATE_LIMIT_DETECT_RPS", 0.2),
			DetectBurst:       env.int("RATE_LIMIT_DETECT_BURST", 2),
		},
		CORS: CORSConfig{
			AllowedOrigins: env.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxAge:         env.int("CORS_MAX_AGE", 300),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  env.list("WS_ALLOWED_ORIGINS", nil),
			ReadBufferSize:  env.int("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: env.int("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Logging: LoggingConfig{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        env.str("APP_NAME", "workload-insights"),
			Version:     env.str("APP_VERSION", "dev"),
			Environment: env.str("APP_ENV", "development"),
		},
		Workload: readWorkload(env),
	}
	cfg.parseErrs = env.errs
	return cfg
}

func readWorkload(env *envReader) WorkloadConfig {
	source := env.str("WORKLOAD_SOURCE_SYSTEM", "mantis")
	return WorkloadConfig{
		SourceSystem:         source,
		DetectorSourceSystem: env.str("WORKLOAD_DETECTOR_SOURCE_SYSTEM", source),
		ETAFieldID:           env.int("WORKLOAD_ETA_FIELD_ID", 4),
		TaskTypeFieldIDs:     env.ints("WORKLOAD_TASK_TYPE_FIELD_IDS", []int{40, 54}),
		MaxConcurrency:       env.int("WORKLOAD_MAX_CONCURRENCY", 8),
		Timezone:             env.str("WORKLOAD_TIMEZONE", "UTC"),
		NotifyMinSeverity:    env.str("RISK_NOTIFY_MIN_SEVERITY", "high"),
		AlertRecipients:      env.list("RISK_ALERT_RECIPIENTS", nil),
		AlertLedger:          env.str("WORKLOAD_ALERT_LEDGER", ""),
	}
}

// Validate checks everything the API server needs.
func (c *Config) Validate() error {
	errs := append([]string(nil), c.parseErrs...)

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}
	errs = append(errs, c.Workload.validate()...)

	return joinErrors(errs)
}

// ValidateWorkload checks only the workload block. The CLI uses it because
// it needs no JWT secret.
func (c *Config) ValidateWorkload() error {
	var errs []string
	for _, e := range c.parseErrs {
		if strings.HasPrefix(e, "WORKLOAD_") || strings.HasPrefix(e, "RISK_") {
			errs = append(errs, e)
		}
	}
	return joinErrors(append(errs, c.Workload.validate()...))
}

func (w WorkloadConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(w.SourceSystem) == "" {
		errs = append(errs, "WORKLOAD_SOURCE_SYSTEM must not be empty")
	}
	if w.ETAFieldID <= 0 {
		errs = append(errs, "WORKLOAD_ETA_FIELD_ID must be positive")
	}
	if w.MaxConcurrency < 1 {
		errs = append(errs, "WORKLOAD_MAX_CONCURRENCY must be at least 1")
	}
	if _, err := time.LoadLocation(w.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("WORKLOAD_TIMEZONE %q is not a known time zone", w.Timezone))
	}
	switch w.NotifyMinSeverity {
	case "low", "medium", "high", "critical":
	default:
		errs = append(errs, "RISK_NOTIFY_MIN_SEVERITY must be one of low, medium, high, critical")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
}

// IsDevelopment relaxes origin checks for local work.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String summarizes the configuration for the startup log. Credentials in
// the database URL are masked and the JWT secret is left out.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, DB: %s, RateLimit: %v, Environment: %s, Source: %s, Ledger: %q}",
		c.Server.Port,
		redactURL(c.Database.URL),
		c.RateLimit.Enabled,
		c.App.Environment,
		c.Workload.SourceSystem,
		c.Workload.AlertLedger,
	)
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[REDACTED]"
	}
	return u.Redacted()
}
