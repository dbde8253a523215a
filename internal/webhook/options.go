package webhook

import (
	"time"

	"github.com/pagebot/pagebot-go/internal/config"
)

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithBotConfig applies the batch limits from the bot configuration.
func WithBotConfig(cfg *config.BotConfig) HandlerOption {
	return func(h *Handler) {
		h.maxEventsPerWebhook = cfg.MaxEventsPerWebhook
	}
}

// WithMaxEventsPerWebhook sets how many events of one request are processed.
func WithMaxEventsPerWebhook(n int) HandlerOption {
	return func(h *Handler) {
		h.maxEventsPerWebhook = n
	}
}

// WithBatchTimeout bounds the processing of one acknowledged batch.
func WithBatchTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.batchTimeout = timeout
	}
}

// WithMaxBodyBytes bounds the accepted request body size.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}
