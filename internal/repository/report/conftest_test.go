package report

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/db"
	domreport "github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetFn         func(ctx context.Context, key, field string) (string, error)
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	smembersFn     func(ctx context.Context, key string) ([]string, error)
	atomicFn       func(ctx context.Context, muts ...db.Mutation) error
}

func (m *mockStore) HGet(ctx context.Context, key, field string) (string, error) {
	if m.hgetFn != nil {
		return m.hgetFn(ctx, key, field)
	}
	return "", db.ErrKeyNotFound
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Atomic(ctx context.Context, muts ...db.Mutation) error {
	if m.atomicFn != nil {
		return m.atomicFn(ctx, muts...)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "lm:"), ms
}

func testReport(t *testing.T, kind domreport.Kind, id string, withFeatures bool) domreport.Report {
	t.Helper()
	p := domreport.Params{
		ID:          id,
		Kind:        kind,
		OwnerUserID: "u1",
		Name:        "Wallet",
		Category:    "accessories",
		Description: "black leather wallet",
		Status:      domreport.StatusOpen,
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if withFeatures {
		fb := domreport.NewFeatureBundle("AAAA", domreport.Shape{10, 128}, 10, nil, domreport.Shape{480, 640})
		p.Features = &fb
	}
	return domreport.Reconstruct(p)
}
