package lostmatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody caps how much of a non-JSON error body ends up in APIError.Message.
const maxErrorBody = 4 << 10

// Client talks to one lostmatch server.
type Client struct {
	base      *url.URL
	apiKey    string
	http      *http.Client
	userAgent string
	obs       *observer
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: DefaultTimeout, userAgent: "lostmatch-go"}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: host required", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("init observer: %w", err)
	}

	return &Client{
		base:      base,
		apiKey:    cfg.apiKey,
		http:      hc,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Matches returns the match service.
func (c *Client) Matches() *MatchService {
	return &MatchService{c: c}
}

// Periodic returns the periodic search service.
func (c *Client) Periodic() *PeriodicService {
	return &PeriodicService{c: c}
}

// Health fetches the aggregated server health. A 503 answer still yields the body.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var hs HealthStatus
	err = c.do(ctx, http.MethodGet, "/health", nil, nil, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && hs.Status != "" {
		return hs, nil
	}
	return hs, err
}

// Notifications lists the newest in-app notifications of userID. limit <= 0 uses the server default.
func (c *Client) Notifications(ctx context.Context, userID string, limit int) (_ []Notification, err error) {
	start := time.Now()
	defer func() { c.obs.observe("notifications.list", start, err) }()

	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {fmt.Sprint(limit)}}
	}
	var out listEnvelope[Notification]
	if err = c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/notifications", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out.Items, nil
}

// do sends one request. in is JSON-encoded when not nil; out is decoded from any
// JSON body, including the body of an error answer it cannot map.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, raw)
		// Health answers 503 with a regular body.
		if out != nil && resp.StatusCode == http.StatusServiceUnavailable && apiErr.Code == "" {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Code != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
		return apiErr
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	apiErr.Message = msg
	return apiErr
}
