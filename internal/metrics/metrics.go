// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookEventsTotal     *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookBatchSeconds    prometheus.Histogram
	WebhookRejectedTotal   *prometheus.CounterVec
	WebhookTruncatedTotal  prometheus.Counter

	// Graph API metrics
	GraphRequestsTotal   *prometheus.CounterVec
	GraphDurationSeconds *prometheus.HistogramVec

	// Profile lookup metrics
	ProfileLookupsTotal *prometheus.CounterVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_webhook_events_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // event_type: message, postback, unknown; status: success, error, skipped
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagebot_webhook_event_duration_seconds",
				Help:    "Per-event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),

		WebhookBatchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagebot_webhook_batch_duration_seconds",
				Help:    "Duration of processing one acknowledged webhook batch",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		WebhookRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_webhook_rejected_total",
				Help: "Total number of webhook deliveries rejected before dispatch",
			},
			[]string{"reason"}, // reason: malformed, invalid_source, verify_failed
		),

		WebhookTruncatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagebot_webhook_events_truncated_total",
				Help: "Total number of events dropped from oversized webhook batches",
			},
		),

		GraphRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_graph_requests_total",
				Help: "Total number of Graph API calls by operation and status",
			},
			[]string{"operation", "status"}, // operation: send_reply, mark_seen, lookup_user
		),

		GraphDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagebot_graph_duration_seconds",
				Help:    "Graph API call duration in seconds by operation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),

		ProfileLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_profile_lookups_total",
				Help: "Total number of user profile lookups by status",
			},
			[]string{"status"}, // status: hit, success, error, timeout
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_commands_total",
				Help: "Total number of slash commands handled by name and status",
			},
			[]string{"command", "status"}, // status: handled, unknown
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_http_errors_total",
				Help: "Total HTTP errors by type and component",
			},
			[]string{"error_type", "component"},
		),

		RateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagebot_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"limiter_type"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"},
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagebot_singleflight_dedup_total",
				Help: "Total number of deduplicated calls (callers that shared another call's result)",
			},
			[]string{"operation"},
		),
	}
}

// RecordWebhookEvent records one dispatched webhook event
func (m *Metrics) RecordWebhookEvent(eventType, status string, duration float64) {
	m.WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordWebhookBatch records the duration of a whole batch
func (m *Metrics) RecordWebhookBatch(duration float64) {
	m.WebhookBatchSeconds.Observe(duration)
}

// RecordWebhookRejected records a delivery rejected before dispatch
func (m *Metrics) RecordWebhookRejected(reason string) {
	m.WebhookRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordWebhookTruncated records events cut from an oversized batch
func (m *Metrics) RecordWebhookTruncated(dropped int) {
	m.WebhookTruncatedTotal.Add(float64(dropped))
}

// RecordGraphCall records a Graph API call
func (m *Metrics) RecordGraphCall(operation, status string, duration float64) {
	m.GraphRequestsTotal.WithLabelValues(operation, status).Inc()
	m.GraphDurationSeconds.WithLabelValues(operation).Observe(duration)
}

// RecordProfileLookup records a profile lookup outcome
func (m *Metrics) RecordProfileLookup(status string) {
	m.ProfileLookupsTotal.WithLabelValues(status).Inc()
}

// RecordCommand records a handled slash command
func (m *Metrics) RecordCommand(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, component string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordSingleflightDedup records a deduplicated call
func (m *Metrics) RecordSingleflightDedup(operation string) {
	m.SingleflightDedupTotal.WithLabelValues(operation).Inc()
}
