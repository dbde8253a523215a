// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Messenger (Required)
	EnvPageAccessToken = "PAGEBOT_PAGE_ACCESS_TOKEN"
	EnvVerifyToken     = "PAGEBOT_VERIFY_TOKEN"

	// Graph API
	EnvGraphAPIVersion = "PAGEBOT_GRAPH_API_VERSION"
	EnvGraphAPIBaseURL = "PAGEBOT_GRAPH_API_BASE_URL"
	EnvGraphTimeout    = "PAGEBOT_GRAPH_TIMEOUT"
	EnvSendRateRPS     = "PAGEBOT_SEND_RATE_RPS"

	// Telegram
	EnvTelegramToken = "PAGEBOT_TELEGRAM_TOKEN"

	// Server
	EnvPort            = "PAGEBOT_PORT"
	EnvLogLevel        = "PAGEBOT_LOG_LEVEL"
	EnvShutdownTimeout = "PAGEBOT_SHUTDOWN_TIMEOUT"

	// Dispatch
	EnvMaxEventsPerWebhook  = "PAGEBOT_MAX_EVENTS_PER_WEBHOOK"
	EnvProfileLookupTimeout = "PAGEBOT_PROFILE_LOOKUP_TIMEOUT"
	EnvProfileCacheTTL      = "PAGEBOT_PROFILE_CACHE_TTL"
	EnvGetStartedPayload    = "PAGEBOT_GET_STARTED_PAYLOAD"
	EnvSenderRateBurst      = "PAGEBOT_SENDER_RATE_BURST"
	EnvSenderRateRefill     = "PAGEBOT_SENDER_RATE_REFILL"

	// Sentry Feature
	EnvSentryDSN         = "PAGEBOT_SENTRY_DSN"
	EnvSentryEnvironment = "PAGEBOT_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "PAGEBOT_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken = "PAGEBOT_BETTERSTACK_TOKEN"

	// Metrics Auth Feature
	EnvMetricsUsername = "PAGEBOT_METRICS_USERNAME"
	EnvMetricsPassword = "PAGEBOT_METRICS_PASSWORD"
)
