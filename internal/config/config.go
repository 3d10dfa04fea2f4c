package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"momoinvoice/internal/logger"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config represents the complete service configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Minio         MinioConfig
	Auth          AuthConfig
	Paystack      PaystackConfig
	Notifications NotificationConfig
	Reminders     ReminderConfig
	Checkout      CheckoutConfig
	Log           logger.LogConfig
}

type AppConfig struct {
	Env  string
	URL  string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	WebhookBucket string
}

type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
}

// PaystackConfig contains gateway credentials and webhook settings
type PaystackConfig struct {
	SecretKey                 string
	WebhookSecret             string
	BaseURL                   string
	Timeout                   time.Duration
	SkipSignatureVerification bool
}

// NotificationConfig contains the reminder channel providers
type NotificationConfig struct {
	ResendAPIKey   string
	ResendBaseURL  string
	FromEmail      string
	SMSAPIURL      string
	SMSAPIToken    string
	WhatsAppAPIURL string
	WhatsAppToken  string
	Timeout        time.Duration
}

type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

type CheckoutConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// Load reads configuration from the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:  getEnv("APP_ENV", EnvDevelopment),
			URL:  strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
			Port: getEnvInt("PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Minio: MinioConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			WebhookBucket: getEnv("WEBHOOK_ARCHIVE_BUCKET", "webhook-events"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWKSURL:   getEnv("JWKS_URL", ""),
		},
		Paystack: PaystackConfig{
			SecretKey:                 getEnv("PAYSTACK_SECRET_KEY", ""),
			WebhookSecret:             getEnv("PAYSTACK_WEBHOOK_SECRET", ""),
			BaseURL:                   strings.TrimRight(getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			Timeout:                   getEnvDuration("PAYSTACK_TIMEOUT", 15*time.Second),
			SkipSignatureVerification: getEnvBool("PAYSTACK_SKIP_SIGNATURE_VERIFICATION", false),
		},
		Notifications: NotificationConfig{
			ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
			ResendBaseURL:  strings.TrimRight(getEnv("RESEND_BASE_URL", "https://api.resend.com"), "/"),
			FromEmail:      getEnv("REMINDER_FROM_EMAIL", "MoMo Invoice <reminders@momoinvoice.app>"),
			SMSAPIURL:      getEnv("SMS_API_URL", ""),
			SMSAPIToken:    getEnv("SMS_API_TOKEN", ""),
			WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", ""),
			WhatsAppToken:  getEnv("WHATSAPP_API_TOKEN", ""),
			Timeout:        getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Reminders: ReminderConfig{
			Enabled:  getEnvBool("REMINDERS_ENABLED", true),
			Interval: getEnvDuration("REMINDER_INTERVAL", time.Hour),
			LockTTL:  getEnvDuration("REMINDER_LOCK_TTL", 5*time.Minute),
		},
		Checkout: CheckoutConfig{
			RateLimit:  getEnvInt("CHECKOUT_RATE_LIMIT", 10),
			RateWindow: getEnvDuration("CHECKOUT_RATE_WINDOW", time.Minute),
		},
		Log: logger.LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			TimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("one of JWT_SECRET or JWKS_URL is required")
	}
	if c.IsProduction() {
		if c.Paystack.SkipSignatureVerification {
			return fmt.Errorf("PAYSTACK_SKIP_SIGNATURE_VERIFICATION cannot be enabled in production")
		}
		if c.Paystack.SecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY is required in production")
		}
	}
	if c.Reminders.Enabled && c.Reminders.Interval < time.Minute {
		return fmt.Errorf("REMINDER_INTERVAL must be at least 1m")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// WebhookSigningKey is the HMAC key for gateway webhooks, falling back to the API secret key.
func (c PaystackConfig) WebhookSigningKey() string {
	if c.WebhookSecret != "" {
		return c.WebhookSecret
	}
	return c.SecretKey
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
