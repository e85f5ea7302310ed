// Package textmatch is the HTTP client of the optional external text similarity model.
package textmatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// DefaultTimeout bounds both the health probe and a comparison.
const DefaultTimeout = 10 * time.Second

// Config holds the text service client settings.
type Config struct {
	URL            string
	HealthTimeout  time.Duration
	CompareTimeout time.Duration
	HTTPClient     *http.Client
}

// Client calls GET {url}/health and POST {url}/compare_items.
type Client struct {
	url            string
	healthTimeout  time.Duration
	compareTimeout time.Duration
	http           *http.Client
}

// New creates a text service client.
func New(cfg *Config) *Client {
	c := &Client{
		url:            strings.TrimRight(cfg.URL, "/"),
		healthTimeout:  cfg.HealthTimeout,
		compareTimeout: cfg.CompareTimeout,
		http:           cfg.HTTPClient,
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = DefaultTimeout
	}
	if c.compareTimeout <= 0 {
		c.compareTimeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// Name identifies the backend in logs and metrics.
func (c *Client) Name() string { return "http" }

// HealthCheck succeeds only on a 200 from the health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("text service health: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("text service health: status %d: %w", resp.StatusCode, domain.ErrExternalServiceUnavailable)
	}
	return nil
}

type compareRequest struct {
	Description1 string `json:"description1"`
	Description2 string `json:"description2"`
}

type compareResponse struct {
	Similarity *float64 `json:"similarity"`
}

// Similarity returns the model's similarity of two descriptions, clamped into [0,1].
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.compareTimeout)
	defer cancel()

	body, err := json.Marshal(compareRequest{
		Description1: strings.TrimSpace(a),
		Description2: strings.TrimSpace(b),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal compare_items request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/compare_items", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build compare_items request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("compare_items: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("compare_items: status %d: %w", resp.StatusCode, domain.ErrExternalServiceUnavailable)
	}
	var out compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode compare_items: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	if out.Similarity == nil {
		return 0, fmt.Errorf("compare_items: missing similarity: %w", domain.ErrExternalServiceUnavailable)
	}
	return dommatch.Clamp01(*out.Similarity), nil
}
