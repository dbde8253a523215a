package bot

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/messenger"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// call is one side effect observed by fakeTransport, in order.
type call struct {
	Op       string // "mark_seen" or "send_reply"
	SenderID string
	Response messenger.Response
}

type fakeTransport struct {
	mu        sync.Mutex
	calls     []call
	failSend  map[string]error
	failSeen  error
	blockSeen bool // MarkSeen waits for its context to end
	panicSend bool
}

func (f *fakeTransport) SendReply(_ context.Context, resp messenger.Response) error {
	if f.panicSend {
		panic("transport exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := ""
	if resp.Recipient != nil {
		id = resp.Recipient.ID
	}
	f.calls = append(f.calls, call{Op: "send_reply", SenderID: id, Response: resp})
	return f.failSend[id]
}

func (f *fakeTransport) MarkSeen(ctx context.Context, senderID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{Op: "mark_seen", SenderID: senderID})
	f.mu.Unlock()
	if f.blockSeen {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.failSeen
}

func (f *fakeTransport) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeTransport) sends() []messenger.Response {
	var out []messenger.Response
	for _, c := range f.snapshot() {
		if c.Op == "send_reply" {
			out = append(out, c.Response)
		}
	}
	return out
}

type fakeLookup struct {
	name    string
	err     error
	block   chan struct{} // when non-nil, lookups wait for close or ctx
	panics  bool
	calls   atomic.Int32
	started chan struct{}
}

func (f *fakeLookup) LookupUser(ctx context.Context, senderID string) (messenger.UserProfile, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.panics {
		panic("lookup exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return messenger.UserProfile{}, ctx.Err()
		}
	}
	if f.err != nil {
		return messenger.UserProfile{}, f.err
	}
	return messenger.UserProfile{ID: senderID, FirstName: f.name}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Elements() []messenger.Element {
	return []messenger.Element{{Title: "Bike"}, {Title: "Kayak"}}
}

var errSend = errors.New("graph unavailable")

func testBotConfig() *config.BotConfig {
	return &config.BotConfig{
		MaxEventsPerWebhook:  100,
		ProfileLookupTimeout: time.Second,
		ProfileCacheTTL:      time.Hour,
		GetStartedPayload:    config.DefaultGetStartedPayload,
		SenderRateRefill:     1,
	}
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter("debug", io.Discard)
}

func newTestDispatcher(t *testing.T, transport *fakeTransport, lookup UserLookup) (*Dispatcher, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(DispatcherConfig{
		Transport: transport,
		Lookup:    lookup,
		Catalog:   fakeCatalog{},
		Logger:    testLogger(),
		Metrics:   m,
		BotConfig: testBotConfig(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Wait(ctx)
	})
	return d, m
}

func strPtr(s string) *string { return &s }

func textEvent(sender, text string) messenger.Event {
	return messenger.Event{
		Sender:  messenger.Participant{ID: sender},
		Message: &messenger.Message{MID: "mid." + sender, Text: strPtr(text)},
	}
}

func postbackEvent(sender string, payload *string) messenger.Event {
	return messenger.Event{
		Sender:   messenger.Participant{ID: sender},
		Postback: &messenger.Postback{Title: "Button", Payload: payload},
	}
}

func pagePayload(events ...messenger.Event) *messenger.Payload {
	return &messenger.Payload{
		Object: messenger.ObjectPage,
		Entry:  []messenger.Entry{{ID: "PAGE", Messaging: events}},
	}
}
