package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pagebot/pagebot-go/internal/ctxutil"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/metrics"
)

// GreetingFallback is the salutation used when the sender's name is not known yet.
const GreetingFallback = "Hi!"

// maxCachedNames bounds the name cache. A full cache first drops expired
// entries, then the entry closest to expiry.
const maxCachedNames = 10000

type cachedName struct {
	name    string
	expires time.Time
}

// Greeter builds greetings and resolves sender names in the background.
// A greeting never waits for a lookup: it uses a cached name when one is
// available and otherwise falls back to GreetingFallback while a lookup
// warms the cache for the next greeting.
type Greeter struct {
	lookup  UserLookup
	timeout time.Duration
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics

	group singleflight.Group
	wg    sync.WaitGroup

	mu       sync.RWMutex
	names    map[string]cachedName
	maxNames int
	now      func() time.Time
}

// GreeterConfig configures a Greeter.
type GreeterConfig struct {
	Lookup  UserLookup    // nil disables name resolution
	Timeout time.Duration // bound for a single lookup
	TTL     time.Duration // how long a resolved name is reused; 0 disables caching
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// NewGreeter creates a Greeter.
func NewGreeter(cfg GreeterConfig) *Greeter {
	return &Greeter{
		lookup:   cfg.Lookup,
		timeout:  cfg.Timeout,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		names:    make(map[string]cachedName),
		maxNames: maxCachedNames,
		now:      time.Now,
	}
}

// Greeting returns the greeting text for senderID without blocking.
func (g *Greeter) Greeting(ctx context.Context, senderID string) string {
	if name, ok := g.CachedName(senderID); ok {
		g.recordLookup("hit")
		return FormatGreeting(name)
	}
	g.Prefetch(ctx, senderID)
	return FormatGreeting("")
}

// FormatGreeting renders the greeting for name, or the fallback when name is empty.
func FormatGreeting(name string) string {
	salutation := GreetingFallback
	if name = strings.TrimSpace(name); name != "" {
		salutation = fmt.Sprintf("Hi %s!", name)
	}
	return salutation + " Type \"shop\" to browse what's for sale, or send me any text and I'll reverse it."
}

// CachedName returns a previously resolved, unexpired first name.
func (g *Greeter) CachedName(senderID string) (string, bool) {
	g.mu.RLock()
	entry, ok := g.names[senderID]
	g.mu.RUnlock()
	if !ok || g.now().After(entry.expires) {
		return "", false
	}
	return entry.name, true
}

// Prefetch starts a detached lookup for senderID. Concurrent lookups for the
// same sender share one Graph call. Failures are logged and dropped.
func (g *Greeter) Prefetch(ctx context.Context, senderID string) {
	if g.lookup == nil || senderID == "" {
		return
	}

	// Detach from the caller's cancellation but keep tracing values
	lookupCtx := ctxutil.PreserveTracing(ctx)

	g.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				g.recordLookup("panic")
				if g.logger != nil {
					g.logger.WithField("panic", r).
						WithField("stack", string(debug.Stack())).
						ErrorContext(lookupCtx, "Profile lookup panicked")
				}
			}
		}()

		ctx, cancel := context.WithTimeout(lookupCtx, g.timeout)
		defer cancel()

		v, err, shared := g.group.Do(senderID, func() (any, error) {
			profile, err := g.lookup.LookupUser(ctx, senderID)
			if err != nil {
				return "", err
			}
			return profile.FirstName, nil
		})
		if shared && g.metrics != nil {
			g.metrics.RecordSingleflightDedup("lookup_user")
		}
		if err != nil {
			status := "error"
			if ctx.Err() != nil {
				status = "timeout"
			}
			g.recordLookup(status)
			if g.logger != nil {
				g.logger.WithError(err).DebugContext(lookupCtx, "Profile lookup failed")
			}
			return
		}

		g.recordLookup("success")
		g.store(senderID, v.(string))
	})
}

func (g *Greeter) store(senderID, name string) {
	if g.ttl <= 0 || name == "" {
		return
	}

	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.names[senderID]; !ok && len(g.names) >= g.maxNames {
		g.evictLocked(now)
	}
	g.names[senderID] = cachedName{name: name, expires: now.Add(g.ttl)}
}

// evictLocked makes room for one entry. g.mu must be held.
func (g *Greeter) evictLocked(now time.Time) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, entry := range g.names {
		if now.After(entry.expires) {
			delete(g.names, id)
			continue
		}
		if oldestID == "" || entry.expires.Before(oldest) {
			oldestID, oldest = id, entry.expires
		}
	}
	if len(g.names) >= g.maxNames && oldestID != "" {
		delete(g.names, oldestID)
	}
}

// Wait blocks until all started lookups finish or ctx is done.
func (g *Greeter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Greeter) recordLookup(status string) {
	if g.metrics != nil {
		g.metrics.RecordProfileLookup(status)
	}
}
