// Package config provides application configuration management.
// It loads settings from environment variables (and an optional .env file)
// and provides defaults for the server, Graph API client and dispatcher.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Messenger Configuration
	PageAccessToken string // Page access token used for every Graph API call
	VerifyToken     string // Token echoed back during webhook subscription

	// Graph API Configuration
	GraphAPIVersion string        // e.g. "v21.0"
	GraphAPIBaseURL string        // e.g. "https://graph.facebook.com"
	GraphTimeout    time.Duration // Per-request timeout
	SendRateRPS     float64       // Outbound Graph calls per second

	// Telegram Configuration (optional; empty token disables the command bot)
	TelegramToken string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Sentry Configuration (optional)
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack Configuration (optional)
	BetterStackToken string

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BotConfig holds dispatcher-specific configuration
type BotConfig struct {
	MaxEventsPerWebhook  int           // Events beyond this are dropped from a batch (default: 100)
	ProfileLookupTimeout time.Duration // Bound for the detached greeting lookup
	ProfileCacheTTL      time.Duration // How long a resolved first name is reused
	GetStartedPayload    string        // Reserved postback payload of the Get Started button
	SenderRateBurst      float64       // Events a single sender may trigger in a burst; 0 disables the limit
	SenderRateRefill     float64       // Per-sender tokens regained per second
}

// DefaultGetStartedPayload is the postback payload configured on the page's Get Started button.
const DefaultGetStartedPayload = "GET_STARTED"

// DefaultMaxEventsPerWebhook bounds the events handled from one webhook request.
// The platform batches at most 1000 updates per delivery, so the default never
// drops events from a well-formed request.
const DefaultMaxEventsPerWebhook = 1000

// Per-chat command budget of the Telegram surface. Over-budget chats get a
// hint instead of silence.
const (
	TelegramChatBurst  = 20
	TelegramChatRefill = 1
)

// DefaultBotConfig returns the dispatcher defaults used when no environment
// overrides are present. The per-sender limit is off.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MaxEventsPerWebhook:  DefaultMaxEventsPerWebhook,
		ProfileLookupTimeout: ProfileLookup,
		ProfileCacheTTL:      time.Hour,
		GetStartedPayload:    DefaultGetStartedPayload,
		SenderRateBurst:      0,
		SenderRateRefill:     1,
	}
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		PageAccessToken: getEnv(EnvPageAccessToken, ""),
		VerifyToken:     getEnv(EnvVerifyToken, ""),

		GraphAPIVersion: getEnv(EnvGraphAPIVersion, "v21.0"),
		GraphAPIBaseURL: strings.TrimRight(getEnv(EnvGraphAPIBaseURL, "https://graph.facebook.com"), "/"),
		GraphTimeout:    getDurationEnv(EnvGraphTimeout, GraphRequest),
		SendRateRPS:     getFloatEnv(EnvSendRateRPS, 50.0),

		TelegramToken: getEnv(EnvTelegramToken, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken: getEnv(EnvBetterStackToken, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),
	}

	defaults := DefaultBotConfig()
	cfg.Bot = BotConfig{
		MaxEventsPerWebhook:  getIntEnv(EnvMaxEventsPerWebhook, defaults.MaxEventsPerWebhook),
		ProfileLookupTimeout: getDurationEnv(EnvProfileLookupTimeout, defaults.ProfileLookupTimeout),
		ProfileCacheTTL:      getDurationEnv(EnvProfileCacheTTL, defaults.ProfileCacheTTL),
		GetStartedPayload:    getEnv(EnvGetStartedPayload, defaults.GetStartedPayload),
		SenderRateBurst:      getFloatEnv(EnvSenderRateBurst, defaults.SenderRateBurst),
		SenderRateRefill:     getFloatEnv(EnvSenderRateRefill, defaults.SenderRateRefill),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.PageAccessToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPageAccessToken))
	}
	if c.VerifyToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvVerifyToken))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if !strings.HasPrefix(c.GraphAPIVersion, "v") {
		errs = append(errs, fmt.Errorf("%s must look like v21.0, got %q", EnvGraphAPIVersion, c.GraphAPIVersion))
	}
	if u, err := url.Parse(c.GraphAPIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", EnvGraphAPIBaseURL, c.GraphAPIBaseURL))
	}
	if c.GraphTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvGraphTimeout, c.GraphTimeout))
	}
	if c.SendRateRPS <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSendRateRPS, c.SendRateRPS))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks dispatcher limits.
func (b *BotConfig) Validate() error {
	var errs []error
	if b.MaxEventsPerWebhook <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMaxEventsPerWebhook, b.MaxEventsPerWebhook))
	}
	if b.ProfileLookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvProfileLookupTimeout, b.ProfileLookupTimeout))
	}
	if b.ProfileCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvProfileCacheTTL, b.ProfileCacheTTL))
	}
	if b.SenderRateBurst != 0 && b.SenderRateBurst < 1 {
		errs = append(errs, fmt.Errorf("%s must be 0 (off) or at least 1, got %v", EnvSenderRateBurst, b.SenderRateBurst))
	}
	if b.SenderRateLimitEnabled() && b.SenderRateRefill <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSenderRateRefill, b.SenderRateRefill))
	}
	if b.GetStartedPayload == "" {
		errs = append(errs, fmt.Errorf("%s cannot be empty", EnvGetStartedPayload))
	}
	return errors.Join(errs...)
}

// SenderRateLimitEnabled reports whether events from chatty senders are dropped.
func (b *BotConfig) SenderRateLimitEnabled() bool {
	return b.SenderRateBurst > 0
}

// TelegramEnabled reports whether the command bot surface should start.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// SentryEnabled reports whether error reporting is configured.
func (c *Config) SentryEnabled() bool {
	return c.SentryDSN != ""
}

// MetricsAuthEnabled reports whether /metrics requires Basic Auth.
func (c *Config) MetricsAuthEnabled() bool {
	return c.MetricsPassword != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
