package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/db"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	"github.com/kailas-cloud/lostmatch/internal/logger"
)

// DefaultMaxRecords bounds the in-app history kept per user.
const DefaultMaxRecords = 200

// store is the consumer interface for in-app records (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)
	Atomic(ctx context.Context, muts ...db.Mutation) error
}

// Repo stores in-app notification records per user: a hash of id to JSON and
// a sorted set of ids scored by creation time.
type Repo struct {
	store      store
	prefix     string
	maxRecords int
	logger     *zap.Logger
}

// New creates a notification repository.
func New(s store, prefix string, maxRecords int) *Repo {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Repo{store: s, prefix: prefix, maxRecords: maxRecords, logger: zap.NewNop()}
}

// WithLogger sets the logger used for pruning failures.
func (r *Repo) WithLogger(l *zap.Logger) *Repo {
	if l != nil {
		r.logger = l
	}
	return r
}

// Save stores rec and prunes the oldest records beyond the per-user limit.
// A failed prune is logged; the record is already stored by then.
func (r *Repo) Save(ctx context.Context, rec domnotif.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = r.store.Atomic(ctx,
		db.HSetFields(r.recordsKey(rec.UserID), map[string]string{rec.ID: string(data)}),
		db.ZAddMember(r.timelineKey(rec.UserID), float64(rec.CreatedAt.UnixMilli()), rec.ID),
	)
	if err != nil {
		return fmt.Errorf("save notification for %s: %w", rec.UserID, err)
	}
	if err := r.prune(ctx, rec.UserID); err != nil {
		logger.FromContextOr(ctx, r.logger).Warn("notification prune failed",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
	}
	return nil
}

// List returns up to limit records for userID, newest first.
func (r *Repo) List(ctx context.Context, userID string, limit int) ([]domnotif.Record, error) {
	if limit <= 0 || limit > r.maxRecords {
		limit = r.maxRecords
	}
	ids, err := r.store.ZRevRange(ctx, r.timelineKey(userID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("zrange notifications %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	all, err := r.store.HGetAll(ctx, r.recordsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("hgetall notifications %s: %w", userID, err)
	}
	out := make([]domnotif.Record, 0, len(ids))
	for _, id := range ids {
		raw, ok := all[id]
		if !ok {
			continue
		}
		var rec domnotif.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal notification %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repo) prune(ctx context.Context, userID string) error {
	n, err := r.store.ZCard(ctx, r.timelineKey(userID))
	if err != nil {
		return fmt.Errorf("zcard notifications %s: %w", userID, err)
	}
	if n <= int64(r.maxRecords) {
		return nil
	}
	stale, err := r.store.ZRevRange(ctx, r.timelineKey(userID), int64(r.maxRecords), -1)
	if err != nil {
		return fmt.Errorf("zrange stale notifications %s: %w", userID, err)
	}
	if err := r.store.Atomic(ctx,
		db.HDelFields(r.recordsKey(userID), stale...),
		db.ZRemMembers(r.timelineKey(userID), stale...),
	); err != nil {
		return fmt.Errorf("prune notifications %s: %w", userID, err)
	}
	return nil
}

func (r *Repo) recordsKey(userID string) string {
	return fmt.Sprintf("%sinbox:%s", r.prefix, userID)
}

func (r *Repo) timelineKey(userID string) string {
	return fmt.Sprintf("%sinbox-timeline:%s", r.prefix, userID)
}
