package messenger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pagebot/pagebot-go/internal/errors"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/ratelimit"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   string
}

type graphStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (g *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	g.requests = append(g.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   string(body),
	})
	status, respBody := g.status, g.body
	g.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (g *graphStub) last(t *testing.T) recordedRequest {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

func newTestClient(t *testing.T, stub *graphStub, m *metrics.Metrics) *Client {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:     server.URL + "/",
		Version:     "v21.0",
		AccessToken: "PAGE_TOKEN",
		Timeout:     2 * time.Second,
		Limiter:     ratelimit.New(100, 100),
		Metrics:     m,
	})
}

func TestClient_SendReply(t *testing.T) {
	t.Parallel()
	stub := &graphStub{body: `{"recipient_id":"USER_1","message_id":"mid.1"}`}
	m := metrics.New(prometheus.NewRegistry())
	c := newTestClient(t, stub, m)

	err := c.SendReply(context.Background(), NewResponse(TextMessage("olleh")).WithRecipient("USER_1"))
	require.NoError(t, err)

	req := stub.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v21.0/me/messages", req.Path)
	assert.Equal(t, []string{"PAGE_TOKEN"}, req.Query["access_token"])
	assert.JSONEq(t, `{"messaging_type":"RESPONSE","recipient":{"id":"USER_1"},"message":{"text":"olleh"}}`, req.Body)

	assert.InDelta(t, 1, testutil.ToFloat64(m.GraphRequestsTotal.WithLabelValues(OpSendReply, "success")), 0)
}

func TestClient_SendReply_RequiresRecipient(t *testing.T) {
	t.Parallel()
	stub := &graphStub{}
	c := newTestClient(t, stub, nil)

	err := c.SendReply(context.Background(), NewResponse(TextMessage("x")))
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, stub.requests)
}

func TestClient_MarkSeen(t *testing.T) {
	t.Parallel()
	stub := &graphStub{body: `{"recipient_id":"USER_1"}`}
	c := newTestClient(t, stub, nil)

	require.NoError(t, c.MarkSeen(context.Background(), "USER_1"))

	req := stub.last(t)
	assert.Equal(t, "/v21.0/me/messages", req.Path)
	assert.JSONEq(t, `{"recipient":{"id":"USER_1"},"sender_action":"mark_seen"}`, req.Body)
}

func TestClient_LookupUser(t *testing.T) {
	t.Parallel()
	stub := &graphStub{body: `{"first_name":"Ada","last_name":"Lovelace","id":"USER_1"}`}
	c := newTestClient(t, stub, nil)

	profile, err := c.LookupUser(context.Background(), "USER_1")
	require.NoError(t, err)
	assert.Equal(t, UserProfile{ID: "USER_1", FirstName: "Ada", LastName: "Lovelace"}, profile)

	req := stub.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v21.0/USER_1", req.Path)
	assert.Equal(t, []string{"first_name,last_name"}, req.Query["fields"])
	assert.Equal(t, []string{"PAGE_TOKEN"}, req.Query["access_token"])
}

func TestClient_LookupUser_EmptySender(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &graphStub{}, nil)

	_, err := c.LookupUser(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_GraphErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    int
		wantMessage string
		retryable   bool
	}{
		{
			name:        "graph error object",
			status:      http.StatusBadRequest,
			body:        `{"error":{"message":"(#100) No matching user found","type":"OAuthException","code":100,"fbtrace_id":"x"}}`,
			wantCode:    100,
			wantMessage: "(#100) No matching user found",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream down",
			wantMessage: "upstream down",
			retryable:   true,
		},
		{
			name:        "empty body",
			status:      http.StatusTooManyRequests,
			wantMessage: "Too Many Requests",
			retryable:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := metrics.New(prometheus.NewRegistry())
			c := newTestClient(t, &graphStub{status: tt.status, body: tt.body}, m)

			err := c.MarkSeen(context.Background(), "USER_1")
			var gerr *apperrors.GraphError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, OpMarkSeen, gerr.Operation)
			assert.Equal(t, tt.status, gerr.StatusCode)
			assert.Equal(t, tt.wantCode, gerr.Code)
			assert.Equal(t, tt.wantMessage, gerr.Message)
			assert.Equal(t, tt.retryable, gerr.Retryable())
			assert.NotContains(t, err.Error(), "PAGE_TOKEN")

			assert.InDelta(t, 1, testutil.ToFloat64(m.GraphRequestsTotal.WithLabelValues(OpMarkSeen, "error")), 0)
		})
	}
}

func TestClient_LookupUser_WrapsLookupFailed(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &graphStub{status: http.StatusInternalServerError, body: `{"error":{"message":"boom","code":1}}`}, nil)

	_, err := c.LookupUser(context.Background(), "USER_1")
	assert.ErrorIs(t, err, apperrors.ErrLookupFailed)
	var gerr *apperrors.GraphError
	assert.ErrorAs(t, err, &gerr)
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused

	c := NewClient(ClientConfig{BaseURL: server.URL, Version: "v21.0", AccessToken: "PAGE_TOKEN", Timeout: time.Second})
	err := c.MarkSeen(context.Background(), "USER_1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "PAGE_TOKEN")
}

func TestClient_RateLimiterCanceled(t *testing.T) {
	t.Parallel()
	stub := &graphStub{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	c := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Version:     "v21.0",
		AccessToken: "PAGE_TOKEN",
		Limiter:     ratelimit.New(0, 0.001),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.MarkSeen(ctx, "USER_1")
	assert.ErrorIs(t, err, apperrors.ErrRateLimitExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, stub.requests)
}

func TestClient_BodyEncodedWithGoJSON(t *testing.T) {
	t.Parallel()
	stub := &graphStub{}
	c := newTestClient(t, stub, nil)

	structured := StructuredMessage(GenericTemplate([]Element{{Title: "A"}}))
	require.NoError(t, c.SendReply(context.Background(), NewResponse(structured).WithRecipient("U")))

	var decoded Response
	require.NoError(t, json.Unmarshal([]byte(stub.last(t).Body), &decoded))
	require.NotNil(t, decoded.Message.Attachment)
	assert.Equal(t, "generic", decoded.Message.Attachment.Payload.TemplateType)
}
