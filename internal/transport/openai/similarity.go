package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// VectorCache remembers embeddings between comparisons.
type VectorCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Put(ctx context.Context, model, text string, vec []float32)
}

// Similarity scores two descriptions by the cosine of their embeddings
// using an OpenAI-compatible API.
type Similarity struct {
	client *openai.Client
	model  openai.EmbeddingModel
	user   string
	cache  VectorCache
	logger *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	User    string
	Logger  *zap.Logger
}

// NewSimilarity creates an embedding-backed text similarity backend.
func NewSimilarity(cfg *Config) *Similarity {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Similarity{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
		user:   cfg.User,
		logger: logger,
	}
}

// WithCache reuses embeddings of texts seen before.
func (s *Similarity) WithCache(c VectorCache) *Similarity {
	s.cache = c
	return s
}

// Name identifies the backend in logs and metrics.
func (s *Similarity) Name() string { return "openai" }

// Similarity embeds both texts (in one request, minus cache hits) and returns
// their cosine similarity clamped into [0,1].
func (s *Similarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	texts := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	vecs := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, string(s.model), text); ok {
				vecs[i] = vec
				continue
			}
		}
		missing = append(missing, i)
	}

	tokens := 0
	if len(missing) > 0 {
		n, err := s.embed(ctx, texts, missing, vecs)
		if err != nil {
			return 0, err
		}
		tokens = n
	}

	sim, err := cosine(vecs[0], vecs[1])
	if err != nil {
		return 0, err
	}
	s.logger.Debug("embedding similarity",
		zap.String("model", string(s.model)),
		zap.Int("embedded", len(missing)),
		zap.Int("total_tokens", tokens),
		zap.Float64("similarity", sim),
	)
	return sim, nil
}

// embed fills vecs at the missing positions and returns the tokens spent.
func (s *Similarity) embed(ctx context.Context, texts []string, missing []int, vecs [][]float32) (int, error) {
	input := make([]string, len(missing))
	for i, idx := range missing {
		input[i] = texts[idx]
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          input,
		Model:          s.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           s.user,
	})
	if err != nil {
		return 0, parseAPIError(err)
	}
	if len(resp.Data) != len(input) {
		return 0, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(input), len(resp.Data), domain.ErrExternalServiceUnavailable)
	}

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return 0, fmt.Errorf("embedding index %d out of range: %w", d.Index, domain.ErrExternalServiceUnavailable)
		}
		idx := missing[d.Index]
		vecs[idx] = d.Embedding
		if s.cache != nil {
			s.cache.Put(ctx, string(s.model), texts[idx], d.Embedding)
		}
	}
	return resp.Usage.TotalTokens, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Similarity) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w: %w", domain.ErrExternalServiceUnavailable, err)
	}
	return nil
}

// cosine returns the cosine similarity of a and b; negative values clamp to 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions %d/%d: %w", len(a), len(b), domain.ErrExternalServiceUnavailable)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dommatch.Clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrExternalServiceUnavailable so callers fall back.
func parseAPIError(err error) error {
	wrap := domain.ErrExternalServiceUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
