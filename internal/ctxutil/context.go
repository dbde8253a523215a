// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	senderIDKey  contextKey = "ctxutil.senderID"
	platformKey  contextKey = "ctxutil.platform"
	requestIDKey contextKey = "ctxutil.requestID"
)

// Platform names used as context values and log attributes.
const (
	PlatformMessenger = "messenger"
	PlatformTelegram  = "telegram"
)

// WithSenderID adds a sender ID to the context.
// For Messenger this is the page-scoped ID (PSID), for Telegram the chat ID.
func WithSenderID(ctx context.Context, senderID string) context.Context {
	return context.WithValue(ctx, senderIDKey, senderID)
}

// GetSenderID retrieves the sender ID from the context.
// Returns the sender ID if found, empty string otherwise.
func GetSenderID(ctx context.Context) string {
	if v := ctx.Value(senderIDKey); v != nil {
		if senderID, ok := v.(string); ok && senderID != "" {
			return senderID
		}
	}
	return ""
}

// MustGetSenderID retrieves the sender ID from the context.
// Panics if the sender ID is not found.
func MustGetSenderID(ctx context.Context) string {
	senderID, ok := ctx.Value(senderIDKey).(string)
	if !ok || senderID == "" {
		panic("ctxutil: senderID not found")
	}
	return senderID
}

// WithPlatform records which messaging platform the work originated from.
func WithPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, platformKey, platform)
}

// GetPlatform retrieves the platform from the context.
func GetPlatform(ctx context.Context) string {
	if v := ctx.Value(platformKey); v != nil {
		if platform, ok := v.(string); ok {
			return platform
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
// Request ID is typically generated per webhook request for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// This function creates a fresh context.Background() and copies only tracing values,
// avoiding memory leaks from retaining parent context references (Go issue #64478).
//
// Use for async operations that must outlive the parent context, such as
// webhook batches processed after the 200 OK acknowledgment was written.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if senderID := GetSenderID(ctx); senderID != "" {
		newCtx = WithSenderID(newCtx, senderID)
	}
	if platform := GetPlatform(ctx); platform != "" {
		newCtx = WithPlatform(newCtx, platform)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}
