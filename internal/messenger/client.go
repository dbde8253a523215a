package messenger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	apperrors "github.com/pagebot/pagebot-go/internal/errors"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/ratelimit"
)

// Graph operation names used in errors and metrics.
const (
	OpSendReply  = "send_reply"
	OpMarkSeen   = "mark_seen"
	OpLookupUser = "lookup_user"
)

// maxErrorBody bounds how much of a failed response is read for the error message.
const maxErrorBody = 4 << 10

// ClientConfig configures a Graph API client.
type ClientConfig struct {
	BaseURL     string // e.g. https://graph.facebook.com
	Version     string // e.g. v21.0
	AccessToken string
	Timeout     time.Duration

	// Optional
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics
}

// Client calls the Send API and the User Profile API on behalf of one page.
// It is safe for concurrent use. Calls are never retried.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	limiter     *ratelimit.Limiter
	metrics     *metrics.Metrics
}

// NewClient creates a Graph API client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.Version, "/"),
		accessToken: cfg.AccessToken,
		limiter:     cfg.Limiter,
		metrics:     cfg.Metrics,
	}
}

// SendReply posts a reply envelope to /me/messages.
func (c *Client) SendReply(ctx context.Context, resp Response) error {
	if resp.Recipient == nil || resp.Recipient.ID == "" {
		return apperrors.NewValidationError("recipient", "reply has no recipient")
	}
	return c.post(ctx, OpSendReply, resp)
}

// MarkSeen sends the mark_seen sender action for senderID.
func (c *Client) MarkSeen(ctx context.Context, senderID string) error {
	return c.post(ctx, OpMarkSeen, SenderActionRequest{
		Recipient:    Participant{ID: senderID},
		SenderAction: SenderActionMarkSeen,
	})
}

// LookupUser fetches the public profile of senderID.
func (c *Client) LookupUser(ctx context.Context, senderID string) (UserProfile, error) {
	var profile UserProfile
	if senderID == "" {
		return profile, apperrors.NewValidationError("sender_id", "is empty")
	}

	query := url.Values{"fields": {"first_name,last_name"}}
	err := c.do(ctx, OpLookupUser, http.MethodGet, "/"+url.PathEscape(senderID), query, nil, &profile)
	if err != nil {
		return UserProfile{}, fmt.Errorf("%w: %w", apperrors.ErrLookupFailed, err)
	}
	return profile, nil
}

func (c *Client) post(ctx context.Context, op string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, "/me/messages", nil, data, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) error {
	if err := c.wait(ctx); err != nil {
		c.record(op, "rate_limited", 0)
		return fmt.Errorf("%w: %w", apperrors.ErrRateLimitExceeded, err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", c.accessToken)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, "error", time.Since(start))
		// url.Error embeds the request URL, which carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("graph %s request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.record(op, "error", time.Since(start))
		return parseGraphError(op, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.record(op, "error", time.Since(start))
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	c.record(op, "success", time.Since(start))
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	err := c.limiter.Wait(ctx)
	if c.metrics != nil {
		if err != nil {
			c.metrics.RecordRateLimiterDrop("graph")
		} else {
			c.metrics.RecordRateLimiterWait("graph", time.Since(start).Seconds())
		}
	}
	return err
}

func (c *Client) record(op, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordGraphCall(op, status, d.Seconds())
	}
}

func parseGraphError(op string, resp *http.Response) *apperrors.GraphError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	gerr := &apperrors.GraphError{Operation: op, StatusCode: resp.StatusCode}

	var body graphErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		gerr.Code = body.Error.Code
		gerr.Message = body.Error.Message
		return gerr
	}

	gerr.Message = strings.TrimSpace(string(raw))
	if gerr.Message == "" {
		gerr.Message = http.StatusText(resp.StatusCode)
	}
	return gerr
}
