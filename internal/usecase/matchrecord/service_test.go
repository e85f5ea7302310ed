package matchrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

type mockRepo struct {
	byLostFn   func(ctx context.Context, lostID string) ([]dommatch.Match, error)
	byStatusFn func(ctx context.Context, status dommatch.Status) ([]dommatch.Match, error)
	byIDFn     func(ctx context.Context, id string) (dommatch.Match, error)
	updateFn   func(ctx context.Context, id string, status dommatch.Status) (dommatch.Match, error)
}

func (m *mockRepo) ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error) {
	if m.byLostFn != nil {
		return m.byLostFn(ctx, lostID)
	}
	return nil, nil
}

func (m *mockRepo) ByStatus(ctx context.Context, status dommatch.Status) ([]dommatch.Match, error) {
	if m.byStatusFn != nil {
		return m.byStatusFn(ctx, status)
	}
	return nil, nil
}

func (m *mockRepo) ByID(ctx context.Context, id string) (dommatch.Match, error) {
	if m.byIDFn != nil {
		return m.byIDFn(ctx, id)
	}
	return dommatch.Match{}, domain.ErrMatchNotFound
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id string, status dommatch.Status) (dommatch.Match, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}
	return dommatch.Match{}, domain.ErrMatchNotFound
}

func TestUpdateStatus(t *testing.T) {
	repo := &mockRepo{updateFn: func(_ context.Context, id string, st dommatch.Status) (dommatch.Match, error) {
		return dommatch.Reconstruct(id, "l1", "f1", 0.7, st, time.Unix(1, 0), time.Unix(2, 0)), nil
	}}
	m, err := New(repo, nil).UpdateStatus(context.Background(), "m1", "claim_approved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status() != dommatch.StatusClaimApproved || m.Score() != 0.7 {
		t.Errorf("unexpected match %+v", m)
	}
}

func TestUpdateStatus_Invalid(t *testing.T) {
	called := false
	repo := &mockRepo{updateFn: func(context.Context, string, dommatch.Status) (dommatch.Match, error) {
		called = true
		return dommatch.Match{}, nil
	}}
	_, err := New(repo, nil).UpdateStatus(context.Background(), "m1", "approved")
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if called {
		t.Error("repository must not be called for an invalid status")
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	_, err := New(&mockRepo{}, nil).UpdateStatus(context.Background(), "nope", "pending_claim")
	if !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestByStatus(t *testing.T) {
	var got dommatch.Status
	repo := &mockRepo{byStatusFn: func(_ context.Context, st dommatch.Status) ([]dommatch.Match, error) {
		got = st
		return nil, nil
	}}
	if _, err := New(repo, nil).ByStatus(context.Background(), "under_approval"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dommatch.StatusUnderApproval {
		t.Errorf("status = %q", got)
	}
	if _, err := New(repo, nil).ByStatus(context.Background(), "closed"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	if _, err := New(&mockRepo{}, nil).Get(context.Background(), "m"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}
