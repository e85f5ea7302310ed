package match

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/db"
)

// memStore is an in-memory store that applies Atomic mutations to maps.
type memStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	kv     map[string]string
	sets   map[string]map[string]bool
	zsets  map[string]map[string]float64

	atomicFn func(ctx context.Context, muts ...db.Mutation) error
	atomics  int
	// afterSMembers runs once the set has been read, outside the lock.
	afterSMembers func(key string)
}

func newMemStore() *memStore {
	return &memStore{
		hashes: make(map[string]map[string]string),
		kv:     make(map[string]string),
		sets:   make(map[string]map[string]bool),
		zsets:  make(map[string]map[string]float64),
	}
}

func (m *memStore) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = m.HGetAll(ctx, k)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(v), nil
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	out := make([]string, 0, len(m.sets[key]))
	for k := range m.sets[key] {
		out = append(out, k)
	}
	hook := m.afterSMembers
	m.mu.Unlock()
	sort.Strings(out)
	if hook != nil {
		hook(key)
	}
	return out, nil
}

func (m *memStore) ZRevRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	out := make([]string, 0, len(z))
	for k := range z {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if z[out[i]] != z[out[j]] {
			return z[out[i]] > z[out[j]]
		}
		return out[i] > out[j]
	})
	return out, nil
}

func (m *memStore) Atomic(ctx context.Context, muts ...db.Mutation) error {
	if m.atomicFn != nil {
		if err := m.atomicFn(ctx, muts...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.atomics++
	for _, mu := range muts {
		switch mu.Kind {
		case db.MutDel:
			delete(m.hashes, mu.Key)
			delete(m.kv, mu.Key)
			delete(m.sets, mu.Key)
			delete(m.zsets, mu.Key)
		case db.MutHSet:
			if len(mu.Fields) == 0 {
				continue
			}
			if m.hashes[mu.Key] == nil {
				m.hashes[mu.Key] = make(map[string]string)
			}
			for k, v := range mu.Fields {
				m.hashes[mu.Key][k] = v
			}
		case db.MutHDel:
			for _, f := range mu.Members {
				delete(m.hashes[mu.Key], f)
			}
			if len(m.hashes[mu.Key]) == 0 {
				delete(m.hashes, mu.Key)
			}
		case db.MutSet:
			m.kv[mu.Key] = mu.Value
		case db.MutSAdd:
			if m.sets[mu.Key] == nil {
				m.sets[mu.Key] = make(map[string]bool)
			}
			for _, s := range mu.Members {
				m.sets[mu.Key][s] = true
			}
		case db.MutSRem:
			for _, s := range mu.Members {
				delete(m.sets[mu.Key], s)
			}
			if len(m.sets[mu.Key]) == 0 {
				delete(m.sets, mu.Key)
			}
		case db.MutZAdd:
			if m.zsets[mu.Key] == nil {
				m.zsets[mu.Key] = make(map[string]float64)
			}
			for _, s := range mu.Members {
				m.zsets[mu.Key][s] = mu.Score
			}
		case db.MutZRem:
			for _, s := range mu.Members {
				delete(m.zsets[mu.Key], s)
			}
			if len(m.zsets[mu.Key]) == 0 {
				delete(m.zsets, mu.Key)
			}
		}
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *memStore) {
	t.Helper()
	ms := newMemStore()
	repo := New(ms, "lm:")
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo, ms
}
