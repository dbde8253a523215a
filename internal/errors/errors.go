// Package errors provides domain-specific error types and sentinel errors
// for webhook dispatch and Graph API delivery.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrInvalidPayloadSource indicates the webhook object type is not the page marker.
	ErrInvalidPayloadSource = errors.New("payload object is not a page subscription")

	// ErrMalformedPayload indicates the webhook body could not be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrSendFailed indicates a reply could not be delivered to the platform.
	ErrSendFailed = errors.New("send reply failed")

	// ErrLookupFailed indicates the user profile lookup did not succeed.
	ErrLookupFailed = errors.New("user lookup failed")

	// ErrRateLimitExceeded indicates the outbound rate limiter gave up waiting.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// IsInvalidPayloadSource reports whether err is a discriminator mismatch.
func IsInvalidPayloadSource(err error) bool {
	return errors.Is(err, ErrInvalidPayloadSource)
}

// IsSendFailed reports whether err carries a delivery failure.
func IsSendFailed(err error) bool {
	return errors.Is(err, ErrSendFailed)
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// GraphError is a non-2xx response from the Graph API.
type GraphError struct {
	Operation  string // send_reply, mark_seen, lookup_user
	StatusCode int
	Code       int    // Graph error code, 0 when the body had none
	Message    string // Graph error message or raw body excerpt
}

func (e *GraphError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph %s failed (status=%d, code=%d): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph %s failed (status=%d): %s", e.Operation, e.StatusCode, e.Message)
}

// Retryable reports whether the platform signalled a transient condition.
// Nothing retries today; callers use it to pick a log level.
func (e *GraphError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// DeliveryError ties a failed reply to the event sender it was meant for.
type DeliveryError struct {
	SenderID string
	Err      error
}

// NewDeliveryError creates a new delivery error.
func NewDeliveryError(senderID string, err error) *DeliveryError {
	return &DeliveryError{SenderID: senderID, Err: err}
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reply to %s: %v", e.SenderID, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}
