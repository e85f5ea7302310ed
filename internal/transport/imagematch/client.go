// Package imagematch is the HTTP client of the external image feature comparator.
package imagematch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
	"github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// DefaultTimeout bounds a single comparison request.
const DefaultTimeout = 60 * time.Second

// Config holds the comparator client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls POST {base}/compare-features.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a comparator client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

type featuresJSON struct {
	Descriptors      string            `json:"descriptors"`
	DescriptorsShape report.Shape      `json:"descriptors_shape"`
	KeypointsCount   int               `json:"keypoints_count"`
	Keypoints        []json.RawMessage `json:"keypoints"`
	ImageShape       report.Shape      `json:"image_shape"`
}

type compareRequest struct {
	Features1 featuresJSON `json:"features1"`
	Features2 featuresJSON `json:"features2"`
}

type compareResponse struct {
	Comparison struct {
		Confidence      string  `json:"confidence"`
		Features1Count  int     `json:"features1_count"`
		Features2Count  int     `json:"features2_count"`
		GoodMatches     int     `json:"good_matches"`
		MatchRatio      float64 `json:"match_ratio"`
		SimilarityScore float64 `json:"similarity_score"`
		TotalMatches    int     `json:"total_matches"`
	} `json:"comparison"`
	Success *bool `json:"success"`
}

func toWire(f report.FeatureBundle) featuresJSON {
	kp := f.Keypoints()
	if kp == nil {
		kp = []json.RawMessage{}
	}
	return featuresJSON{
		Descriptors:      f.Descriptors(),
		DescriptorsShape: f.DescriptorsShape(),
		KeypointsCount:   f.KeypointsCount(),
		Keypoints:        kp,
		ImageShape:       f.ImageShape(),
	}
}

// Compare sends both bundles to the comparator. The raw 0..100 score is
// normalized to [0,1]. Any transport or protocol failure is reported as
// domain.ErrExternalServiceUnavailable.
func (c *Client) Compare(ctx context.Context, a, b report.FeatureBundle) (dommatch.ImageVerdict, error) {
	body, err := json.Marshal(compareRequest{Features1: toWire(a), Features2: toWire(b)})
	if err != nil {
		return dommatch.ImageVerdict{}, fmt.Errorf("marshal compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare-features", bytes.NewReader(body))
	if err != nil {
		return dommatch.ImageVerdict{}, fmt.Errorf("build compare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return dommatch.ImageVerdict{}, fmt.Errorf("compare features: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dommatch.ImageVerdict{}, fmt.Errorf("compare features: status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(snippet)), domain.ErrExternalServiceUnavailable)
	}

	var out compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return dommatch.ImageVerdict{}, fmt.Errorf("decode compare response: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	if out.Success != nil && !*out.Success {
		return dommatch.ImageVerdict{}, fmt.Errorf("comparator reported failure: %w", domain.ErrExternalServiceUnavailable)
	}

	cmp := out.Comparison
	c.logger.Debug("feature comparison",
		zap.Float64("similarity_score", cmp.SimilarityScore),
		zap.Int("good_matches", cmp.GoodMatches),
		zap.String("confidence", cmp.Confidence),
	)
	return dommatch.ImageVerdict{
		Similarity:      dommatch.Clamp01(cmp.SimilarityScore / 100),
		ConfidenceLabel: cmp.Confidence,
		GoodMatches:     cmp.GoodMatches,
		TotalMatches:    cmp.TotalMatches,
		MatchRatio:      cmp.MatchRatio,
	}, nil
}

// HealthCheck probes GET {base}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("image comparator health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("image comparator health: status %d", resp.StatusCode)
	}
	return nil
}
