// Package webhook provides the Messenger webhook endpoints: the subscription
// handshake and the event receiver that hands payloads to the dispatcher.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/ctxutil"
	apperrors "github.com/pagebot/pagebot-go/internal/errors"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/messenger"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/sentry"
)

// Subscription handshake query parameters.
const (
	queryMode        = "hub.mode"
	queryVerifyToken = "hub.verify_token"
	queryChallenge   = "hub.challenge"
	modeSubscribe    = "subscribe"
)

// StatusEventReceived is the acknowledgment body for accepted payloads.
const StatusEventReceived = "EVENT_RECEIVED"

// defaultMaxBodyBytes bounds a webhook request body.
const defaultMaxBodyBytes int64 = 1 << 20

// PayloadHandler processes a validated webhook payload.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload *messenger.Payload) error
}

// Handler handles Messenger webhook requests
type Handler struct {
	verifyToken string
	dispatcher  PayloadHandler
	metrics     *metrics.Metrics
	logger      *logger.Logger
	wg          sync.WaitGroup // tracks batches still running after the acknowledgment

	maxEventsPerWebhook int
	batchTimeout        time.Duration
	maxBodyBytes        int64
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	VerifyToken string
	Dispatcher  PayloadHandler
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifyToken:         cfg.VerifyToken,
		dispatcher:          cfg.Dispatcher,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		maxEventsPerWebhook: config.DefaultMaxEventsPerWebhook,
		batchTimeout:        config.WebhookBatchProcessing,
		maxBodyBytes:        defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Verify answers the subscription handshake. The challenge is echoed only
// when the mode is "subscribe" and the verify token matches.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query(queryMode)
	token := c.Query(queryVerifyToken)

	if mode != modeSubscribe || h.verifyToken == "" || token != h.verifyToken {
		h.logger.WithField("mode", mode).WarnContext(c.Request.Context(), "Webhook verification failed")
		h.recordRejected("verify_failed")
		c.Status(http.StatusForbidden)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "Webhook verified")
	c.String(http.StatusOK, c.Query(queryChallenge))
}

// Handle receives a webhook payload. Malformed bodies and payloads that are
// not page subscriptions are rejected with 400 before anything is sent.
// Accepted payloads are acknowledged immediately and processed afterwards.
func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		h.reject(c, http.StatusBadRequest, "read_error", "failed to read request body")
		return
	}

	var payload messenger.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to decode webhook payload")
		h.reject(c, http.StatusBadRequest, "malformed", apperrors.ErrMalformedPayload.Error())
		return
	}

	if err := payload.Validate(); err != nil {
		h.logger.WithField("object", payload.Object).WarnContext(ctx, "Rejected webhook payload")
		h.reject(c, http.StatusBadRequest, "invalid_source", err.Error())
		return
	}

	if dropped := payload.Truncate(h.maxEventsPerWebhook); dropped > 0 {
		h.logger.WithField("dropped", dropped).
			WithField("limit", h.maxEventsPerWebhook).
			WarnContext(ctx, "Too many events in webhook batch; truncating")
		if h.metrics != nil {
			h.metrics.RecordWebhookTruncated(dropped)
		}
	}

	// Acknowledge first; the platform retries slow webhooks
	c.JSON(http.StatusOK, gin.H{"status": StatusEventReceived})

	batchCtx := ctxutil.PreserveTracing(ctx)
	eventCount := payload.EventCount()

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					ErrorContext(batchCtx, "Panic in async webhook processing")
				h.recordHTTPError("panic")
			}
		}()

		ctx, cancel := context.WithTimeout(batchCtx, h.batchTimeout)
		defer cancel()

		if err := h.dispatcher.HandlePayload(ctx, &payload); err != nil {
			h.logger.WithError(err).
				WithField("event_count", eventCount).
				ErrorContext(ctx, "Webhook batch finished with errors")
			sentry.CaptureExceptionWithTags(ctx, err, map[string]string{"component": "webhook"})
			return
		}

		h.logger.WithField("event_count", eventCount).DebugContext(ctx, "Webhook batch processed")
	})
}

func (h *Handler) reject(c *gin.Context, status int, reason, message string) {
	h.recordRejected(reason)
	c.JSON(status, gin.H{"error": message})
}

func (h *Handler) recordRejected(reason string) {
	if h.metrics != nil {
		h.metrics.RecordWebhookRejected(reason)
	}
}

func (h *Handler) recordHTTPError(errorType string) {
	if h.metrics != nil {
		h.metrics.RecordHTTPError(errorType, "webhook")
	}
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
