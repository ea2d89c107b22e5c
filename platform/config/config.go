// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq execution layer and the
// periodic dispatch/poll loops.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDispatchInterval() time.Duration
	GetDispatchBatchSize() int
	GetJobPollInterval() time.Duration
	GetJobBatchSize() int
}

// VoiceConfig provides settings for the voice vendor client.
type VoiceConfig interface {
	GetVoiceAPIBaseURL() string
	GetVoiceAPIKey() string
	GetVoiceAgentID() string
	GetVoiceFromNumber() string
	GetVoiceCallTimeout() time.Duration
	GetVoiceCallsPerMinute() int
	IsVoiceEnabled() bool
}

// WebhookConfig provides settings for inbound webhook verification.
type WebhookConfig interface {
	GetVoiceWebhookSecret() string
	GetIngestAPIKey() string
}

// ContactPolicyConfig provides the outbound-contact policy knobs. The values
// are read once at startup into an immutable domain.Policy.
type ContactPolicyConfig interface {
	GetSafeCallHours() []int
	GetSameBlockDelay() time.Duration
	GetSameBlockMaxRetries() int
	GetNextDayStartHour() int
	GetAnswerDurationThreshold() time.Duration
	GetExecutionLease() time.Duration
	GetDefaultTimezone() string
}

// AlertsConfig provides settings for operator email alerts.
type AlertsConfig interface {
	GetAlertsEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertsFromAddress() string
	GetAlertsToAddress() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	DispatchInterval  time.Duration
	DispatchBatchSize int
	JobPollInterval   time.Duration
	JobBatchSize      int

	VoiceAPIBaseURL     string
	VoiceAPIKey         string
	VoiceAgentID        string
	VoiceFromNumber     string
	VoiceCallTimeout    time.Duration
	VoiceCallsPerMinute int
	VoiceWebhookSecret  string
	IngestAPIKey        string

	SafeCallHours           []int
	SameBlockDelay          time.Duration
	SameBlockMaxRetries     int
	NextDayStartHour        int
	AnswerDurationThreshold time.Duration
	ExecutionLease          time.Duration
	DefaultTimezone         string

	AlertsEnabled     bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	AlertsFromAddress string
	AlertsToAddress   string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetDispatchInterval() time.Duration  { return c.DispatchInterval }
func (c *Config) GetDispatchBatchSize() int           { return c.DispatchBatchSize }
func (c *Config) GetJobPollInterval() time.Duration   { return c.JobPollInterval }
func (c *Config) GetJobBatchSize() int                { return c.JobBatchSize }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIBaseURL() string          { return c.VoiceAPIBaseURL }
func (c *Config) GetVoiceAPIKey() string              { return c.VoiceAPIKey }
func (c *Config) GetVoiceAgentID() string             { return c.VoiceAgentID }
func (c *Config) GetVoiceFromNumber() string          { return c.VoiceFromNumber }
func (c *Config) GetVoiceCallTimeout() time.Duration  { return c.VoiceCallTimeout }
func (c *Config) GetVoiceCallsPerMinute() int         { return c.VoiceCallsPerMinute }
func (c *Config) IsVoiceEnabled() bool                { return c.VoiceAPIBaseURL != "" && c.VoiceAPIKey != "" }

// WebhookConfig implementation
func (c *Config) GetVoiceWebhookSecret() string { return c.VoiceWebhookSecret }
func (c *Config) GetIngestAPIKey() string       { return c.IngestAPIKey }

// ContactPolicyConfig implementation
func (c *Config) GetSafeCallHours() []int                    { return c.SafeCallHours }
func (c *Config) GetSameBlockDelay() time.Duration           { return c.SameBlockDelay }
func (c *Config) GetSameBlockMaxRetries() int                { return c.SameBlockMaxRetries }
func (c *Config) GetNextDayStartHour() int                   { return c.NextDayStartHour }
func (c *Config) GetAnswerDurationThreshold() time.Duration  { return c.AnswerDurationThreshold }
func (c *Config) GetExecutionLease() time.Duration           { return c.ExecutionLease }
func (c *Config) GetDefaultTimezone() string                 { return c.DefaultTimezone }

// AlertsConfig implementation
func (c *Config) GetAlertsEnabled() bool       { return c.AlertsEnabled }
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetAlertsFromAddress() string { return c.AlertsFromAddress }
func (c *Config) GetAlertsToAddress() string   { return c.AlertsToAddress }

// Load reads configuration from the environment (and .env in development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	alertsEnabled := strings.EqualFold(getEnv("ALERTS_ENABLED", "false"), "true")

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DispatchInterval:  mustDuration(getEnv("DISPATCH_INTERVAL", "1m")),
		DispatchBatchSize: mustInt(getEnv("DISPATCH_BATCH_SIZE", "20")),
		JobPollInterval:   mustDuration(getEnv("JOB_POLL_INTERVAL", "15s")),
		JobBatchSize:      mustInt(getEnv("JOB_BATCH_SIZE", "50")),

		VoiceAPIBaseURL:     getEnv("VOICE_API_BASE_URL", ""),
		VoiceAPIKey:         getEnv("VOICE_API_KEY", ""),
		VoiceAgentID:        getEnv("VOICE_AGENT_ID", ""),
		VoiceFromNumber:     getEnv("VOICE_FROM_NUMBER", ""),
		VoiceCallTimeout:    mustDuration(getEnv("VOICE_CALL_TIMEOUT", "10s")),
		VoiceCallsPerMinute: mustInt(getEnv("VOICE_CALLS_PER_MINUTE", "30")),
		VoiceWebhookSecret:  getEnv("VOICE_WEBHOOK_SECRET", ""),
		IngestAPIKey:        getEnv("INGEST_API_KEY", ""),

		SafeCallHours:           mustIntCSV(getEnv("SAFE_CALL_HOURS", "9,12,19")),
		SameBlockDelay:          mustDuration(getEnv("SAME_BLOCK_DELAY", "5m")),
		SameBlockMaxRetries:     mustInt(getEnv("SAME_BLOCK_MAX_RETRIES", "2")),
		NextDayStartHour:        mustInt(getEnv("NEXT_DAY_START_HOUR", "9")),
		AnswerDurationThreshold: mustDuration(getEnv("ANSWER_DURATION_THRESHOLD", "10s")),
		ExecutionLease:          mustDuration(getEnv("EXECUTION_LEASE", "2m")),
		DefaultTimezone:         getEnv("DEFAULT_TIMEZONE", "America/New_York"),

		AlertsEnabled:     alertsEnabled,
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		AlertsFromAddress: getEnv("ALERTS_FROM_ADDRESS", ""),
		AlertsToAddress:   getEnv("ALERTS_TO_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.VoiceWebhookSecret == "" {
		return nil, fmt.Errorf("VOICE_WEBHOOK_SECRET is required")
	}
	if alertsEnabled && (cfg.SMTPHost == "" || cfg.AlertsFromAddress == "" || cfg.AlertsToAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST, ALERTS_FROM_ADDRESS and ALERTS_TO_ADDRESS are required when ALERTS_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if len(cfg.SafeCallHours) == 0 {
		return nil, fmt.Errorf("SAFE_CALL_HOURS must list at least one hour")
	}
	for _, h := range cfg.SafeCallHours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("SAFE_CALL_HOURS entries must be within 0-23, got %d", h)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustIntCSV(value string) []int {
	parts := splitCSV(value)
	results := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(part); err == nil {
			results = append(results, n)
		}
	}
	return results
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
