package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/db"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
)

type mockStore struct {
	hgetAllFn   func(ctx context.Context, key string) (map[string]string, error)
	zrevRangeFn func(ctx context.Context, key string, start, stop int64) ([]string, error)
	zcardFn     func(ctx context.Context, key string) (int64, error)
	atomicFn    func(ctx context.Context, muts ...db.Mutation) error
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.zrevRangeFn != nil {
		return m.zrevRangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) Atomic(ctx context.Context, muts ...db.Mutation) error {
	if m.atomicFn != nil {
		return m.atomicFn(ctx, muts...)
	}
	return nil
}

func testRecord(id string, at time.Time) domnotif.Record {
	return domnotif.Record{ID: id, UserID: "u1", Title: "t", Type: domnotif.TypeMatch, CreatedAt: at}
}

func TestSave(t *testing.T) {
	var calls [][]db.Mutation
	ms := &mockStore{atomicFn: func(_ context.Context, muts ...db.Mutation) error {
		calls = append(calls, muts)
		return nil
	}}
	rec := testRecord("n1", time.UnixMilli(1000))

	if err := New(ms, "lm:", 10).Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one transaction (no pruning), got %d", len(calls))
	}
	if calls[0][0].Key != "lm:inbox:u1" || calls[0][1].Score != 1000 {
		t.Errorf("unexpected mutations %+v", calls[0])
	}
}

func TestSave_Prunes(t *testing.T) {
	var calls [][]db.Mutation
	ms := &mockStore{
		atomicFn: func(_ context.Context, muts ...db.Mutation) error {
			calls = append(calls, muts)
			return nil
		},
		zcardFn: func(_ context.Context, _ string) (int64, error) { return 3, nil },
		zrevRangeFn: func(_ context.Context, _ string, start, stop int64) ([]string, error) {
			if start != 2 || stop != -1 {
				t.Errorf("unexpected range %d..%d", start, stop)
			}
			return []string{"old"}, nil
		},
	}
	if err := New(ms, "lm:", 2).Save(context.Background(), testRecord("n3", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[1][0].Members[0] != "old" {
		t.Errorf("expected prune of 'old', got %+v", calls)
	}
}

func TestSave_PruneFailureKeepsRecord(t *testing.T) {
	saved := false
	ms := &mockStore{
		atomicFn: func(_ context.Context, muts ...db.Mutation) error {
			if muts[0].Kind == db.MutHDel {
				return errors.New("down")
			}
			saved = true
			return nil
		},
		zcardFn:     func(_ context.Context, _ string) (int64, error) { return 3, nil },
		zrevRangeFn: func(context.Context, string, int64, int64) ([]string, error) { return []string{"old"}, nil },
	}
	if err := New(ms, "lm:", 2).Save(context.Background(), testRecord("n3", time.Now())); err != nil {
		t.Fatalf("expected delivered record to report success, got %v", err)
	}
	if !saved {
		t.Error("record was not stored")
	}
}

func TestKeys_DoNotCollideAcrossUsers(t *testing.T) {
	r := New(&mockStore{}, "lm:", 0)
	ids := []string{"a", "a:timeline", "inbox-timeline:a", "user:a"}
	seen := make(map[string]string)
	for _, id := range ids {
		for _, k := range []string{r.recordsKey(id), r.timelineKey(id)} {
			if prev, ok := seen[k]; ok {
				t.Errorf("key %q shared by %q and %q", k, prev, id)
			}
			seen[k] = id
		}
	}
}

func TestSave_Error(t *testing.T) {
	ms := &mockStore{atomicFn: func(_ context.Context, _ ...db.Mutation) error { return errors.New("down") }}
	if err := New(ms, "lm:", 0).Save(context.Background(), testRecord("n", time.Now())); err == nil {
		t.Fatal("expected error")
	}
}

func TestList_NewestFirst(t *testing.T) {
	r1, _ := json.Marshal(testRecord("n1", time.UnixMilli(1)))
	r2, _ := json.Marshal(testRecord("n2", time.UnixMilli(2)))
	ms := &mockStore{
		zrevRangeFn: func(_ context.Context, _ string, start, stop int64) ([]string, error) {
			if start != 0 || stop != 4 {
				t.Errorf("unexpected range %d..%d", start, stop)
			}
			return []string{"n2", "n1", "gone"}, nil
		},
		hgetAllFn: func(_ context.Context, _ string) (map[string]string, error) {
			return map[string]string{"n1": string(r1), "n2": string(r2)}, nil
		},
	}
	got, err := New(ms, "lm:", 50).List(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "n2" || got[1].ID != "n1" {
		t.Errorf("unexpected order %+v", got)
	}
}
