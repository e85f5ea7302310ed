// Package embcache keeps text embeddings in the key-value store so a
// description that is compared again is not re-embedded.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache maps (model, text) to an embedding vector. Store failures degrade to misses.
type Cache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a cache whose keys live under keyPrefix+"emb:".
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  s,
		prefix: keyPrefix + "emb:",
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached embedding of text under model.
func (c *Cache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	key := c.key(model, text)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
			c.logger.Warn("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
			return nil, false
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	return vec, true
}

// Put stores vec for text under model.
func (c *Cache) Put(ctx context.Context, model, text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	key := c.key(model, text)
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
