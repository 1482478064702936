// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	LogDebug bool

	Database       DatabaseConfig
	Mail           MailConfig
	Retry          RetryConfig
	Deliverability DeliverabilityConfig
	RateLimit      RateLimitConfig
	AMQPURL        string
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	RunMigrations  bool
}

type MailConfig struct {
	// Provider is "resend" or "smtp".
	Provider       string
	ResendAPIKey   string
	ResendBaseURL  string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	From           string
	BusinessEmail  string
	UnsubscribeURL string
}

type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	BatchPause     time.Duration
}

type DeliverabilityConfig struct {
	Domain       string
	DKIMSelector string
	SPFInclude   string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
	// TrustedProxies are CIDRs or IPs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_DEBUG", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("RUN_MIGRATIONS", false)
	v.SetDefault("MAIL_PROVIDER", "resend")
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "Diva Fitness <hello@divafitness.co.uk>")
	v.SetDefault("BUSINESS_EMAIL", "emma@divafitness.co.uk")
	v.SetDefault("UNSUBSCRIBE_URL", "https://divafitness.co.uk/unsubscribe")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY", time.Second)
	v.SetDefault("RETRY_ATTEMPT_TIMEOUT", 30*time.Second)
	v.SetDefault("BATCH_PAUSE", time.Second)
	v.SetDefault("DELIVERABILITY_DOMAIN", "divafitness.co.uk")
	v.SetDefault("DKIM_SELECTOR", "resend")
	v.SetDefault("SPF_INCLUDE", "amazonses.com")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddr: v.GetString("HTTP_ADDR"),
		LogDebug: v.GetBool("LOG_DEBUG"),
		Database: DatabaseConfig{
			URL:            databaseURL(v),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
			RunMigrations:  v.GetBool("RUN_MIGRATIONS"),
		},
		Mail: MailConfig{
			Provider:       strings.ToLower(v.GetString("MAIL_PROVIDER")),
			ResendAPIKey:   v.GetString("RESEND_API_KEY"),
			ResendBaseURL:  v.GetString("RESEND_BASE_URL"),
			SMTPHost:       v.GetString("SMTP_HOST"),
			SMTPPort:       v.GetInt("SMTP_PORT"),
			SMTPUser:       v.GetString("SMTP_USER"),
			SMTPPassword:   v.GetString("SMTP_PASSWORD"),
			From:           v.GetString("MAIL_FROM"),
			BusinessEmail:  v.GetString("BUSINESS_EMAIL"),
			UnsubscribeURL: v.GetString("UNSUBSCRIBE_URL"),
		},
		Retry: RetryConfig{
			MaxAttempts:    v.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:      v.GetDuration("RETRY_BASE_DELAY"),
			AttemptTimeout: v.GetDuration("RETRY_ATTEMPT_TIMEOUT"),
			BatchPause:     v.GetDuration("BATCH_PAUSE"),
		},
		Deliverability: DeliverabilityConfig{
			Domain:       v.GetString("DELIVERABILITY_DOMAIN"),
			DKIMSelector: v.GetString("DKIM_SELECTOR"),
			SPFInclude:   v.GetString("SPF_INCLUDE"),
		},
		RateLimit: RateLimitConfig{
			RPS:            v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:          v.GetInt("RATE_LIMIT_BURST"),
			TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
		},
		AMQPURL: v.GetString("AMQP_URL"),
	}
	return cfg, cfg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// databaseURL prefers DATABASE_URL and falls back to the discrete DB_* variables.
func databaseURL(v *viper.Viper) string {
	if url := v.GetString("DATABASE_URL"); url != "" {
		return url
	}
	if v.GetString("DB_NAME") == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		v.GetString("DB_USER"), v.GetString("DB_PASSWORD"),
		v.GetString("DB_HOST"), v.GetString("DB_PORT"), v.GetString("DB_NAME"))
}

func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	switch c.Mail.Provider {
	case "resend", "smtp":
	default:
		return fmt.Errorf("MAIL_PROVIDER must be resend or smtp, got %q", c.Mail.Provider)
	}
	if c.Mail.BusinessEmail == "" {
		return fmt.Errorf("BUSINESS_EMAIL is required")
	}
	return nil
}
