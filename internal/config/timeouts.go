// Package config provides centralized timeout constants for the application.
//
// # Messenger Platform Constraints
//
// The platform expects a 200 OK for every webhook delivery within 20 seconds
// and disables the subscription after repeated failures. The acknowledgment
// is therefore written before any Graph API call is made, and batch
// processing continues on a detached context.
package config

import "time"

// Webhook timeouts
const (
	// WebhookBatchProcessing bounds the detached processing of one webhook batch.
	// Each event makes at most two Graph calls (mark seen, send reply).
	WebhookBatchProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// Webhook payloads are small JSON documents.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	// The handler only acknowledges; the reply travels through the Graph API.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Graph API timeouts
const (
	// GraphRequest is the default timeout for a single Graph API call.
	GraphRequest = 10 * time.Second

	// ProfileLookup bounds the detached user profile lookup used for greetings.
	// The reply never waits for it.
	ProfileLookup = 5 * time.Second

	// MarkSeen bounds the read receipt sent before each reply. The reply waits
	// for it to keep side effects in order, so it gets a much tighter budget
	// than GraphRequest.
	MarkSeen = 2 * time.Second
)

// Telegram timeouts
const (
	// TelegramPollTimeout is the long-polling timeout in seconds for getUpdates.
	TelegramPollTimeout = 30
)

// Background maintenance
const (
	// RateLimiterCleanupInterval is how often idle per-sender buckets are evicted.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight webhook batches to finish before forceful termination.
	GracefulShutdown = 30 * time.Second
)
