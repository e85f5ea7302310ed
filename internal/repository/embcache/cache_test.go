package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data  map[string][]byte
	ttl   time.Duration
	getFn func(ctx context.Context, key string) ([]byte, error)
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func TestCache_PutThenGet(t *testing.T) {
	ms := newMockKVStore()
	c := New(ms, "lm:", time.Hour, nil)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "m", "black wallet"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(ctx, "m", "black wallet", []float32{0.25, -1, 3})

	vec, ok := c.Get(ctx, "m", "black wallet")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if len(vec) != 3 || vec[0] != 0.25 || vec[1] != -1 || vec[2] != 3 {
		t.Errorf("vec = %v", vec)
	}
	if ms.ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ms.ttl)
	}
	for k := range ms.data {
		if !strings.HasPrefix(k, "lm:emb:") {
			t.Errorf("key %q lacks prefix", k)
		}
	}
}

func TestCache_KeyedByModel(t *testing.T) {
	ms := newMockKVStore()
	c := New(ms, "lm:", time.Hour, nil)
	ctx := context.Background()

	c.Put(ctx, "small", "keys", []float32{1})
	if _, ok := c.Get(ctx, "large", "keys"); ok {
		t.Error("embedding of another model must not be reused")
	}
}

func TestCache_StoreErrorIsMiss(t *testing.T) {
	ms := newMockKVStore()
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	c := New(ms, "lm:", time.Hour, nil)

	before := testutil.ToFloat64(metrics.EmbeddingCacheTotal.WithLabelValues("error"))
	if _, ok := c.Get(context.Background(), "m", "x"); ok {
		t.Fatal("expected miss on store error")
	}
	if got := testutil.ToFloat64(metrics.EmbeddingCacheTotal.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("error count delta = %v, want 1", got)
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	ms := newMockKVStore()
	c := New(ms, "lm:", time.Hour, nil)
	ms.data[c.key("m", "x")] = []byte{1, 2, 3}

	if _, ok := c.Get(context.Background(), "m", "x"); ok {
		t.Error("expected miss for truncated vector")
	}
}
