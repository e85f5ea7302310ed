package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

func cands(pairs ...any) []dommatch.Candidate {
	out := make([]dommatch.Candidate, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, dommatch.Candidate{ID: pairs[i].(string), Similarity: pairs[i+1].(float64)})
	}
	return out
}

// --- PersistTopMatches ---

func TestPersistTopMatches_KeepsTopThree(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.4, "f2", 0.9, "f3", 0.6, "f4", 0.7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 created, got %d", len(created))
	}
	want := []string{"f2", "f4", "f3"}
	for i, m := range created {
		if m.FoundReportID() != want[i] {
			t.Errorf("created[%d] = %s, want %s", i, m.FoundReportID(), want[i])
		}
		if m.Status() != dommatch.StatusPendingClaim {
			t.Errorf("created[%d] status = %s", i, m.Status())
		}
	}
	if len(ms.hashes["lm:lost:l1:matches"]) != 3 {
		t.Errorf("expected 3 rows in hash, got %d", len(ms.hashes["lm:lost:l1:matches"]))
	}
	if ms.atomics != 1 {
		t.Errorf("expected one transaction, got %d", ms.atomics)
	}
}

func TestPersistTopMatches_ReplacesPreviousSet(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.5, "f2", 0.6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.PersistTopMatches(ctx, "l1", cands("f3", 0.8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.ByLostReport(ctx, "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].FoundReportID() != "f3" {
		t.Fatalf("expected only f3, got %v", got)
	}
	for i := range first {
		if _, ok := ms.kv["lm:match:"+first[i].ID()]; ok {
			t.Errorf("stale id index for %s", first[i].ID())
		}
	}
	if _, ok := ms.sets["lm:found:f1:matches"]; ok {
		t.Error("stale found index for f1")
	}
	if n := len(ms.zsets["lm:status:pending_claim"]); n != 1 {
		t.Errorf("expected 1 status entry, got %d", n)
	}
}

func TestPersistTopMatches_DuplicateKeepsFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.5, "f1", 0.9, "f2", 0.3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(created))
	}
	if created[0].FoundReportID() != "f1" || created[0].Score() != 0.5 {
		t.Errorf("expected first f1 occurrence kept, got %s %.2f", created[0].FoundReportID(), created[0].Score())
	}
}

func TestPersistTopMatches_TiesKeepInputOrder(t *testing.T) {
	repo, _ := newTestRepo(t)

	created, err := repo.PersistTopMatches(context.Background(), "l1",
		cands("a", 0.5, "b", 0.5, "c", 0.5, "d", 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if created[i].FoundReportID() != want {
			t.Errorf("created[%d] = %s, want %s", i, created[i].FoundReportID(), want)
		}
	}
}

func TestPersistTopMatches_EmptyClears(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, err := repo.PersistTopMatches(ctx, "l1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected nothing created, got %d", len(created))
	}
	if _, ok := ms.hashes["lm:lost:l1:matches"]; ok {
		t.Error("expected lost hash removed")
	}
}

func TestPersistTopMatches_TxAbortedIsConflict(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.atomicFn = func(_ context.Context, _ ...db.Mutation) error {
		return &db.Error{Op: db.OpMulti, Err: db.ErrTxAborted}
	}

	_, err := repo.PersistTopMatches(context.Background(), "l1", cands("f1", 0.5))
	if !errors.Is(err, domain.ErrPersistenceConflict) {
		t.Errorf("expected ErrPersistenceConflict, got %v", err)
	}
}

func TestPersistTopMatches_ConcurrentNeverExceedsThree(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.PersistTopMatches(ctx, "l1",
				cands("f1", 0.9, "f2", 0.8, "f3", 0.7, "f4", 0.6)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(ms.hashes["lm:lost:l1:matches"]); n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
	if n := len(ms.zsets["lm:status:pending_claim"]); n != 3 {
		t.Errorf("expected 3 status entries, got %d", n)
	}
	if repo.locks.size() != 0 {
		t.Errorf("expected lock table drained, got %d", repo.locks.size())
	}
}

// --- UpdateStatus / ByID / ByStatus ---

func TestUpdateStatus(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	created, _ := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.5))
	id := created[0].ID()

	updated, err := repo.UpdateStatus(ctx, id, dommatch.StatusClaimApproved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status() != dommatch.StatusClaimApproved {
		t.Errorf("status = %s", updated.Status())
	}
	if updated.Score() != 0.5 {
		t.Errorf("score changed to %v", updated.Score())
	}
	if !updated.UpdatedAt().After(created[0].UpdatedAt()) {
		t.Error("updatedAt should advance")
	}
	if _, ok := ms.zsets["lm:status:pending_claim"]; ok {
		t.Error("old status index should be empty")
	}

	got, err := repo.ByID(ctx, id)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got.Status() != dommatch.StatusClaimApproved {
		t.Errorf("ByID status = %s", got.Status())
	}

	// permissive: back to pending
	if _, err := repo.UpdateStatus(ctx, id, dommatch.StatusPendingClaim); err != nil {
		t.Errorf("reverse transition rejected: %v", err)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.UpdateStatus(ctx, "missing", dommatch.StatusClaimApproved); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "x", "bogus"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestByStatus(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.5))
	b, _ := repo.PersistTopMatches(ctx, "l2", cands("f2", 0.6))

	got, err := repo.ByStatus(ctx, dommatch.StatusPendingClaim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID() != b[0].ID() || got[1].ID() != a[0].ID() {
		t.Error("expected newest first")
	}

	if _, err := repo.ByStatus(ctx, "bogus"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestByLostReport_Order(t *testing.T) {
	repo, _ := newTestRepo(t)

	if _, err := repo.PersistTopMatches(context.Background(), "l1", cands("f1", 0.3, "f2", 0.8, "f3", 0.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.ByLostReport(context.Background(), "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []string{"f2", "f3", "f1"} {
		if got[i].FoundReportID() != want {
			t.Errorf("got[%d] = %s, want %s", i, got[i].FoundReportID(), want)
		}
	}
}

// --- cascades ---

func TestDeleteAllForLostReport(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.PersistTopMatches(ctx, "l1", cands("f1", 0.9, "f2", 0.8, "f3", 0.7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := repo.DeleteAllForLostReport(ctx, "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
	got, _ := repo.ByLostReport(ctx, "l1")
	if len(got) != 0 {
		t.Errorf("expected 0 matches afterwards, got %d", len(got))
	}
	if len(ms.kv) != 0 || len(ms.sets) != 0 || len(ms.zsets) != 0 {
		t.Errorf("indexes not cleaned: kv=%d sets=%d zsets=%d", len(ms.kv), len(ms.sets), len(ms.zsets))
	}
}

func TestDeleteAllForFoundReport(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	_, _ = repo.PersistTopMatches(ctx, "l1", cands("f1", 0.9, "f2", 0.8))
	_, _ = repo.PersistTopMatches(ctx, "l2", cands("f1", 0.4))

	n, err := repo.DeleteAllForFoundReport(ctx, "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	l1, _ := repo.ByLostReport(ctx, "l1")
	if len(l1) != 1 || l1[0].FoundReportID() != "f2" {
		t.Errorf("expected only f2 left on l1, got %v", l1)
	}
	l2, _ := repo.ByLostReport(ctx, "l2")
	if len(l2) != 0 {
		t.Errorf("expected l2 empty, got %d", len(l2))
	}
	if _, ok := ms.sets["lm:found:f1:matches"]; ok {
		t.Error("found index should be gone")
	}
}

func TestDeleteAllForFoundReport_ConcurrentPersistIsSwept(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	_, _ = repo.PersistTopMatches(ctx, "l1", cands("f1", 0.9))

	var once sync.Once
	ms.afterSMembers = func(string) {
		once.Do(func() {
			if _, err := repo.PersistTopMatches(ctx, "l2", cands("f1", 0.6)); err != nil {
				t.Errorf("persist during cascade: %v", err)
			}
		})
	}

	n, err := repo.DeleteAllForFoundReport(ctx, "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	l2, _ := repo.ByLostReport(ctx, "l2")
	if len(l2) != 0 {
		t.Errorf("expected no match of l2 left referencing f1, got %d", len(l2))
	}
	if _, ok := ms.sets["lm:found:f1:matches"]; ok {
		t.Error("found index should be empty")
	}
}

func TestDeleteAllForFoundReport_LateMatchStaysIndexed(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	_, _ = repo.PersistTopMatches(ctx, "l1", cands("f1", 0.9))

	// Every read of the index races with a new persist, so the last one
	// outlives all passes of the first cascade.
	late := 0
	ms.afterSMembers = func(string) {
		late++
		_, _ = repo.PersistTopMatches(ctx, fmt.Sprintf("late%d", late), cands("f1", 0.6))
	}

	n, err := repo.DeleteAllForFoundReport(ctx, "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != cascadePasses {
		t.Errorf("expected %d deleted, got %d", cascadePasses, n)
	}
	ms.afterSMembers = nil

	n, err = repo.DeleteAllForFoundReport(ctx, "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("second cascade deleted %d, want 1", n)
	}
	if got, _ := repo.ByLostReport(ctx, fmt.Sprintf("late%d", late)); len(got) != 0 {
		t.Errorf("expected late match swept, got %d", len(got))
	}
}

func TestByID_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.ByID(context.Background(), "nope"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}
