package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/ctxutil"
	apperrors "github.com/pagebot/pagebot-go/internal/errors"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/messenger"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/ratelimit"
	"github.com/pagebot/pagebot-go/internal/textfmt"
)

// Dispatcher processes webhook payloads event by event.
type Dispatcher struct {
	transport     Transport
	catalog       Catalog
	reverser      textfmt.Reverser
	greeter       *Greeter
	senderLimiter *ratelimit.KeyedLimiter
	logger        *logger.Logger
	metrics       *metrics.Metrics

	getStartedPayload string
	markSeenTimeout   time.Duration
}

// DispatcherConfig holds the collaborators of a Dispatcher.
type DispatcherConfig struct {
	Transport Transport
	Lookup    UserLookup
	Catalog   Catalog
	Reverser  textfmt.Reverser // defaults to textfmt.NewFormatReverser()

	// SenderLimiter drops events from senders over their budget. Optional.
	SenderLimiter *ratelimit.KeyedLimiter

	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	BotConfig *config.BotConfig // defaults to config.DefaultBotConfig()

	// MarkSeenTimeout bounds each read receipt; defaults to config.MarkSeen.
	MarkSeenTimeout time.Duration
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	reverser := cfg.Reverser
	if reverser == nil {
		reverser = textfmt.NewFormatReverser()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	botCfg := cfg.BotConfig
	if botCfg == nil {
		defaults := config.DefaultBotConfig()
		botCfg = &defaults
	}
	markSeenTimeout := cfg.MarkSeenTimeout
	if markSeenTimeout <= 0 {
		markSeenTimeout = config.MarkSeen
	}

	return &Dispatcher{
		transport: cfg.Transport,
		catalog:   cfg.Catalog,
		reverser:  reverser,
		greeter: NewGreeter(GreeterConfig{
			Lookup:  cfg.Lookup,
			Timeout: botCfg.ProfileLookupTimeout,
			TTL:     botCfg.ProfileCacheTTL,
			Logger:  log,
			Metrics: cfg.Metrics,
		}),
		senderLimiter:     cfg.SenderLimiter,
		logger:            log,
		metrics:           cfg.Metrics,
		getStartedPayload: botCfg.GetStartedPayload,
		markSeenTimeout:   markSeenTimeout,
	}
}

// HandlePayload processes every event of payload in input order.
//
// It returns an error wrapping ErrInvalidPayloadSource, without touching any
// event, when the object discriminator is not "page". Otherwise it returns
// the joined *DeliveryError of every event whose reply could not be sent; a
// failed event never stops the ones after it.
func (d *Dispatcher) HandlePayload(ctx context.Context, payload *messenger.Payload) error {
	if payload == nil {
		return apperrors.ErrMalformedPayload
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	ctx = ctxutil.WithPlatform(ctx, ctxutil.PlatformMessenger)
	start := time.Now()

	var errs []error
	for _, entry := range payload.Entry {
		for i := range entry.Messaging {
			if err := d.safeHandleEvent(ctx, &entry.Messaging[i]); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if d.metrics != nil {
		d.metrics.RecordWebhookBatch(time.Since(start).Seconds())
	}
	return errors.Join(errs...)
}

// safeHandleEvent converts a panic in one event into that event's error.
func (d *Dispatcher) safeHandleEvent(ctx context.Context, ev *messenger.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				ErrorContext(ctx, "Event handling panicked")
			d.recordEvent(ev.EventType(), "panic", 0)
			err = apperrors.NewDeliveryError(ev.Sender.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	return d.handleEvent(ctx, ev)
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev *messenger.Event) error {
	start := time.Now()
	eventType := ev.EventType()
	senderID := ev.Sender.ID

	if senderID == "" {
		d.logger.WithField("event_type", eventType).WarnContext(ctx, "Skipping event without sender")
		d.recordEvent(eventType, "skipped", time.Since(start))
		return nil
	}
	if ev.Message != nil && ev.Message.IsEcho {
		// Echoes of the page's own messages; answering them would loop
		d.recordEvent(eventType, "skipped", time.Since(start))
		return nil
	}

	ctx = ctxutil.WithSenderID(ctx, senderID)

	if d.senderLimiter != nil && !d.senderLimiter.Allow(senderID) {
		d.logger.WithField("event_type", eventType).WarnContext(ctx, "Sender rate limit exceeded, dropping event")
		d.recordEvent(eventType, "rate_limited", time.Since(start))
		return nil
	}

	d.markSeen(ctx, senderID)

	class := Classify(ev, d.getStartedPayload)
	resp := messenger.NewResponse(d.buildMessage(ctx, senderID, class)).WithRecipient(senderID)

	if err := d.transport.SendReply(ctx, resp); err != nil {
		d.logger.WithError(err).
			WithField("event_type", eventType).
			WithField("reply_kind", class.Kind.String()).
			ErrorContext(ctx, "Failed to send reply")
		d.recordEvent(eventType, "error", time.Since(start))
		return apperrors.NewDeliveryError(senderID, err)
	}

	d.logger.WithField("event_type", eventType).
		WithField("reply_kind", class.Kind.String()).
		DebugContext(ctx, "Reply sent")
	d.recordEvent(eventType, "success", time.Since(start))
	return nil
}

// markSeen sends the read receipt. It is best-effort: the reply does not
// depend on its outcome, and a slow Graph call delays the reply by at most
// markSeenTimeout.
func (d *Dispatcher) markSeen(ctx context.Context, senderID string) {
	ctx, cancel := context.WithTimeout(ctx, d.markSeenTimeout)
	defer cancel()
	if err := d.transport.MarkSeen(ctx, senderID); err != nil {
		d.logger.WithError(err).WarnContext(ctx, "Failed to mark message as seen")
	}
}

// BuildMessage classifies ev and builds its reply without sending anything.
// Greeting replies may start a background name lookup.
func (d *Dispatcher) BuildMessage(ctx context.Context, ev *messenger.Event) messenger.OutboundMessage {
	return d.buildMessage(ctx, ev.Sender.ID, Classify(ev, d.getStartedPayload))
}

func (d *Dispatcher) buildMessage(ctx context.Context, senderID string, class Classification) messenger.OutboundMessage {
	switch class.Kind {
	case KindMissingPayload:
		return messenger.TextMessage(NoticeMissingPayload)
	case KindPostbackEcho:
		return messenger.TextMessage(class.Text)
	case KindGreeting:
		return messenger.TextMessage(d.greeter.Greeting(ctx, senderID))
	case KindEmptyMessage:
		return messenger.TextMessage(NoticeEmptyMessage)
	case KindCatalog:
		return messenger.StructuredMessage(messenger.GenericTemplate(d.catalog.Elements()))
	case KindReverse:
		return messenger.TextMessage(d.reverser.Reverse(class.Text))
	default:
		return messenger.TextMessage(NoticeUnknownEvent)
	}
}

// Wait blocks until background lookups finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.greeter.Wait(ctx)
}

func (d *Dispatcher) recordEvent(eventType, status string, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordWebhookEvent(eventType, status, duration.Seconds())
	}
}
