package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagebot/pagebot-go/internal/metrics"
)

// Invocation carries a parsed command together with who sent it.
type Invocation struct {
	Command
	SenderID  string
	FirstName string
}

// HandlerFunc produces the reply text for a command.
type HandlerFunc func(ctx context.Context, inv Invocation) (string, error)

type route struct {
	name        string
	description string
	fn          HandlerFunc
}

// Router maps command names to handlers. Names are matched case-insensitively.
// Register all routes before the first Dispatch; Router is not safe for
// concurrent registration.
type Router struct {
	routes  map[string]route
	order   []string
	metrics *metrics.Metrics
}

// NewRouter creates an empty router. m may be nil.
func NewRouter(m *metrics.Metrics) *Router {
	return &Router{
		routes:  make(map[string]route),
		metrics: m,
	}
}

// Handle registers fn under name. It panics on an empty or duplicate name.
func (r *Router) Handle(name, description string, fn HandlerFunc) {
	key := strings.ToLower(name)
	if key == "" || strings.Contains(key, Marker) {
		panic(fmt.Sprintf("command: invalid command name %q", name))
	}
	if _, dup := r.routes[key]; dup {
		panic(fmt.Sprintf("command: duplicate command %q", name))
	}
	r.routes[key] = route{name: key, description: description, fn: fn}
	r.order = append(r.order, key)
}

// Dispatch runs the handler registered for inv.Name.
// It reports false when no handler matches.
func (r *Router) Dispatch(ctx context.Context, inv Invocation) (string, bool, error) {
	rt, ok := r.routes[strings.ToLower(inv.Name)]
	if !ok {
		r.record("unknown", "unknown")
		return "", false, nil
	}

	reply, err := rt.fn(ctx, inv)
	if err != nil {
		r.record(rt.name, "error")
		return "", true, fmt.Errorf("command %s: %w", rt.name, err)
	}
	r.record(rt.name, "handled")
	return reply, true, nil
}

// Help renders one "/name - description" line per command.
func (r *Router) Help() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range r.order {
		rt := r.routes[name]
		b.WriteString("\n")
		b.WriteString(Marker + rt.name)
		if rt.description != "" {
			b.WriteString(" - ")
			b.WriteString(rt.description)
		}
	}
	return b.String()
}

func (r *Router) record(name, status string) {
	if r.metrics != nil {
		r.metrics.RecordCommand(name, status)
	}
}
