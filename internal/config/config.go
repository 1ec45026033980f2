package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Quota engine.
	MaxQueriesPerSession    int
	MaxQueryLength          int
	MaxJobDescriptionLength int

	PersonaFilePath string
	DataDir         string

	// Shared admin secret. Empty disables the whole admin surface.
	AdminKey string

	// Session store.
	RedisAddr  string
	SessionTTL time.Duration

	// Upstream model.
	OpenAIAPIKey string
	OpenAIModel  string

	// Admin notification.
	SMTPHost      string
	SMTPPort      int
	SMTPUseTLS    bool
	SMTPUsername  string
	SMTPPassword  string
	AdminEmail    string
	AppURL        string
	NotifyTimeout time.Duration

	// Perimeter rate limiting (requests per minute, per client IP).
	APIRateLimitRPM int

	CORSOrigins   []string
	SecureCookies bool

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", "5000"),
		Environment:               getEnv("APP_ENV", "local"),
		PersonaFilePath:           getEnv("PERSONA_FILE_PATH", "./persona.txt"),
		DataDir:                   getEnv("QUERY_LOG_PATH", "./logs"),
		AdminKey:                  os.Getenv("ADMIN_RESET_KEY"),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		OpenAIAPIKey:              os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SMTPHost:                  os.Getenv("SMTP_HOST"),
		SMTPUsername:              os.Getenv("SMTP_USERNAME"),
		SMTPPassword:              os.Getenv("SMTP_PASSWORD"),
		AdminEmail:                os.Getenv("ADMIN_EMAIL"),
		AppURL:                    getEnv("APP_URL", "http://localhost:5000"),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "profilegpt"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "local"),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        getBoolEnv("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        getBoolEnv("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           getBoolEnv("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: getDurationEnv("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	var err error
	if cfg.MaxQueriesPerSession, err = getIntEnv("MAX_QUERIES_PER_SESSION", 20); err != nil {
		return fail(ctx, cfg, err)
	}
	if cfg.MaxQueryLength, err = getIntEnv("MAX_QUERY_LENGTH", 500); err != nil {
		return fail(ctx, cfg, err)
	}
	if cfg.MaxJobDescriptionLength, err = getIntEnv("MAX_JOB_DESCRIPTION_LENGTH", 5000); err != nil {
		return fail(ctx, cfg, err)
	}
	if cfg.SMTPPort, err = getIntEnv("SMTP_PORT", 587); err != nil {
		return fail(ctx, cfg, err)
	}
	if cfg.APIRateLimitRPM, err = getIntEnv("API_RATE_LIMIT_RPM", 120); err != nil {
		return fail(ctx, cfg, err)
	}
	cfg.SMTPUseTLS = getBoolEnv("SMTP_USE_TLS", true)
	cfg.CORSOrigins = strings.Split(getEnv("CORS_ORIGINS", "*"), ",")
	cfg.SecureCookies = getBoolEnv("SECURE_COOKIES", cfg.Environment != "local")
	cfg.SessionTTL = getDurationEnv("SESSION_TTL", 24*time.Hour)
	cfg.NotifyTimeout = getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second)

	if err := cfg.Validate(); err != nil {
		return fail(ctx, cfg, err)
	}
	recordConfigValidationEvent(ctx, cfg.Environment, "success", "none")
	return cfg, nil
}

// Validate enforces the hard constraints. Soft concerns (weak admin key,
// missing SMTP credentials) are reported by Warnings instead, matching the
// original behavior of serving with the related feature disabled.
func (c *Config) Validate() error {
	if c.MaxQueriesPerSession <= 0 {
		return fmt.Errorf("validate config: MAX_QUERIES_PER_SESSION must be positive, got %d", c.MaxQueriesPerSession)
	}
	if c.MaxQueryLength <= 0 {
		return fmt.Errorf("validate config: MAX_QUERY_LENGTH must be positive, got %d", c.MaxQueryLength)
	}
	if c.MaxJobDescriptionLength <= 0 {
		return fmt.Errorf("validate config: MAX_JOB_DESCRIPTION_LENGTH must be positive, got %d", c.MaxJobDescriptionLength)
	}
	if c.DataDir == "" {
		return fmt.Errorf("validate config: QUERY_LOG_PATH must not be empty")
	}
	return nil
}

// Warnings returns operator-facing configuration advisories.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.AdminKey == "" {
		warnings = append(warnings, "ADMIN_RESET_KEY not set: admin endpoints are disabled")
	} else if len(c.AdminKey) < 16 {
		warnings = append(warnings, "ADMIN_RESET_KEY is shorter than 16 characters; use a stronger key in production")
	}
	if c.OpenAIAPIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY not set: conversational calls will fail at first use")
	}
	if c.SMTPHost == "" || c.AdminEmail == "" {
		warnings = append(warnings, "SMTP_HOST or ADMIN_EMAIL not set: extension-request notifications are disabled")
	}
	return warnings
}

// AdminEnabled reports whether the admin surface is configured at all.
func (c *Config) AdminEnabled() bool { return c.AdminKey != "" }

func fail(ctx context.Context, cfg *Config, err error) (*Config, error) {
	recordConfigValidationEvent(ctx, cfg.Environment, "failure", classifyConfigLoadError(err))
	return nil, err
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getBoolEnv(key string, defaultVal bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal
	}
	return v
}
