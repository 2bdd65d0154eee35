// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"encoding/hex"
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
	GetDatabaseMaxConns() int32
	GetDatabaseApplicationName() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SessionConfig provides settings for funnel sessions.
type SessionConfig interface {
	GetSessionSecret() string
	GetSessionIdleTTL() time.Duration
	GetSessionWindow() time.Duration
	GetInFlightTTL() time.Duration
}

// RedisConfig provides the Redis connection used for session storage.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetCheckoutReminderDelay() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetSupportPhone() string
}

// GeocoderConfig provides settings for address geocoding.
type GeocoderConfig interface {
	GetGeocoderURL() string
	GetGeocoderCountryCodes() string
	GetGeocoderUserAgent() string
}

// QualificationConfig provides settings for the availability provider.
type QualificationConfig interface {
	GetQualificationAPIURL() string
	GetQualificationAPIKey() string
	GetQualificationSource() string
}

// PaymentConfig provides settings for the payment gateway.
type PaymentConfig interface {
	GetStripeSecretKey() string
	GetPaymentCurrency() string
	// GetPaymentTimeout bounds one provider call, retries included.
	GetPaymentTimeout() time.Duration
	IsPaymentEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketReceipts() string
	IsMinIOEnabled() bool
}

// CatalogConfig provides the location of the plan catalog file.
type CatalogConfig interface {
	GetPlanCatalogPath() string
}

// WiFiSecretConfig provides the key used to seal customer WiFi passwords.
type WiFiSecretConfig interface {
	GetWiFiSecretKey() []byte
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	DatabaseMaxConns      int32
	DatabaseAppName       string
	MigrationsEnabled     bool
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	AppBaseURL            string
	SupportPhone          string
	SessionSecret         string
	SessionIdleTTL        time.Duration
	SessionWindow         time.Duration
	InFlightTTL           time.Duration
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	CheckoutReminderDelay time.Duration
	EmailEnabled          bool
	BrevoAPIKey           string
	EmailFromName         string
	EmailFromAddress      string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	GeocoderURL           string
	GeocoderCountryCodes  string
	GeocoderUserAgent     string
	QualificationAPIURL   string
	QualificationAPIKey   string
	QualificationSource   string
	StripeSecretKey       string
	PaymentCurrency       string
	PaymentTimeout        time.Duration
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinIOMaxFileSize      int64
	MinioBucketReceipts   string
	PlanCatalogPath       string
	WiFiSecretKey         []byte
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string             { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32         { return c.DatabaseMaxConns }
func (c *Config) GetDatabaseApplicationName() string { return c.DatabaseAppName }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SessionConfig implementation
func (c *Config) GetSessionSecret() string         { return c.SessionSecret }
func (c *Config) GetSessionIdleTTL() time.Duration { return c.SessionIdleTTL }
func (c *Config) GetSessionWindow() time.Duration  { return c.SessionWindow }
func (c *Config) GetInFlightTTL() time.Duration    { return c.InFlightTTL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                     { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool               { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string               { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                { return c.AsynqConcurrency }
func (c *Config) GetCheckoutReminderDelay() time.Duration { return c.CheckoutReminderDelay }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string   { return c.AppBaseURL }
func (c *Config) GetSupportPhone() string { return c.SupportPhone }

// GeocoderConfig implementation
func (c *Config) GetGeocoderURL() string          { return c.GeocoderURL }
func (c *Config) GetGeocoderCountryCodes() string { return c.GeocoderCountryCodes }
func (c *Config) GetGeocoderUserAgent() string    { return c.GeocoderUserAgent }

// QualificationConfig implementation
func (c *Config) GetQualificationAPIURL() string { return c.QualificationAPIURL }
func (c *Config) GetQualificationAPIKey() string { return c.QualificationAPIKey }
func (c *Config) GetQualificationSource() string { return c.QualificationSource }

// PaymentConfig implementation
func (c *Config) GetStripeSecretKey() string       { return c.StripeSecretKey }
func (c *Config) GetPaymentCurrency() string       { return c.PaymentCurrency }
func (c *Config) GetPaymentTimeout() time.Duration { return c.PaymentTimeout }
func (c *Config) IsPaymentEnabled() bool           { return c.StripeSecretKey != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string       { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string      { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string      { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool           { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64     { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketReceipts() string { return c.MinioBucketReceipts }
func (c *Config) IsMinIOEnabled() bool           { return c.MinIOEndpoint != "" }

// CatalogConfig implementation
func (c *Config) GetPlanCatalogPath() string { return c.PlanCatalogPath }

// WiFiSecretConfig implementation
func (c *Config) GetWiFiSecretKey() []byte { return c.WiFiSecretKey }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	wifiKey, err := parseSecretKey(getEnv("WIFI_SECRET_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("WIFI_SECRET_KEY: %w", err)
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:      int32(mustInt(getEnv("DB_MAX_CONNS", "10"))),
		DatabaseAppName:       getEnv("DB_APPLICATION_NAME", "signup-funnel"),
		MigrationsEnabled:     strings.EqualFold(getEnv("RUN_MIGRATIONS", "true"), "true"),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		SupportPhone:          getEnv("SUPPORT_PHONE", ""),
		SessionSecret:         getEnv("SESSION_SECRET", ""),
		SessionIdleTTL:        mustDuration(getEnv("SESSION_IDLE_TTL", "24h")),
		SessionWindow:         mustDuration(getEnv("SESSION_WINDOW", "2h")),
		InFlightTTL:           mustDuration(getEnv("SESSION_INFLIGHT_TTL", "30s")),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CheckoutReminderDelay: mustDuration(getEnv("CHECKOUT_REMINDER_DELAY", "24h")),
		EmailEnabled:          emailEnabled && (brevoAPIKey != "" || smtpHost != ""),
		BrevoAPIKey:           brevoAPIKey,
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Signup"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:              smtpHost,
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		GeocoderURL:           getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderCountryCodes:  getEnv("GEOCODER_COUNTRY_CODES", "us"),
		GeocoderUserAgent:     getEnv("GEOCODER_USER_AGENT", "SignupFunnel/1.0"),
		QualificationAPIURL:   getEnv("QUALIFICATION_API_URL", ""),
		QualificationAPIKey:   getEnv("QUALIFICATION_API_KEY", ""),
		QualificationSource:   getEnv("QUALIFICATION_SOURCE", "coverage-api"),
		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		PaymentCurrency:       strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		PaymentTimeout:        mustDuration(getEnv("PAYMENT_TIMEOUT", "20s")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:      mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "10485760")),
		MinioBucketReceipts:   getEnv("MINIO_BUCKET_RECEIPTS", "order-receipts"),
		PlanCatalogPath:       getEnv("PLAN_CATALOG_PATH", ""),
		WiFiSecretKey:         wifiKey,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.SessionWindow <= 0 || cfg.SessionIdleTTL <= 0 {
		return nil, fmt.Errorf("SESSION_WINDOW and SESSION_IDLE_TTL must be positive durations")
	}
	if cfg.InFlightTTL <= 0 || cfg.PaymentTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_INFLIGHT_TTL and PAYMENT_TIMEOUT must be positive durations")
	}
	if cfg.PaymentTimeout >= cfg.InFlightTTL {
		return nil, fmt.Errorf("PAYMENT_TIMEOUT (%s) must be shorter than SESSION_INFLIGHT_TTL (%s)", cfg.PaymentTimeout, cfg.InFlightTTL)
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

// parseSecretKey accepts an empty value (sealing disabled) or 64 hex chars.
func parseSecretKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(key))
	}
	return key, nil
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
