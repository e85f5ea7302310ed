package report

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/domain"
	domreport "github.com/kailas-cloud/lostmatch/internal/domain/report"
)

// store is the consumer interface for the report read model (ISP).
type store interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	Atomic(ctx context.Context, muts ...db.Mutation) error
}

// Repo is the read-model projection of reports pushed by the report service.
type Repo struct {
	store  store
	prefix string
}

// New creates a report repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Upsert stores the projection of r. Returns true if it was created.
func (r *Repo) Upsert(ctx context.Context, rep *domreport.Report) (bool, error) {
	key := r.reportKey(rep.Kind(), rep.ID())

	prevOwner, err := r.store.HGet(ctx, key, fieldOwner)
	created := false
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		created = true
	case err != nil:
		return false, fmt.Errorf("hget %s: %w", key, err)
	}

	fields, err := buildHashFields(rep)
	if err != nil {
		return false, err
	}

	muts := []db.Mutation{
		db.DelKey(key),
		db.HSetFields(key, fields),
		db.SAddMembers(r.kindKey(rep.Kind()), rep.ID()),
		db.SAddMembers(r.ownerKey(rep.OwnerUserID()), rep.Ref()),
	}
	if !created && prevOwner != "" && prevOwner != rep.OwnerUserID() {
		muts = append(muts, db.SRemMembers(r.ownerKey(prevOwner), rep.Ref()))
	}
	if err := r.store.Atomic(ctx, muts...); err != nil {
		return false, fmt.Errorf("upsert report %s: %w", rep.Ref(), err)
	}
	return created, nil
}

// GetByID returns a report projection.
func (r *Repo) GetByID(ctx context.Context, kind domreport.Kind, id string) (domreport.Report, error) {
	key := r.reportKey(kind, id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domreport.Report{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domreport.Report{}, domain.ErrReportNotFound
	}
	return parseHashFields(m), nil
}

// Delete drops a report projection.
func (r *Repo) Delete(ctx context.Context, kind domreport.Kind, id string) error {
	key := r.reportKey(kind, id)
	owner, err := r.store.HGet(ctx, key, fieldOwner)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrReportNotFound
		}
		return fmt.Errorf("hget %s: %w", key, err)
	}

	muts := []db.Mutation{
		db.DelKey(key),
		db.SRemMembers(r.kindKey(kind), id),
	}
	if owner != "" {
		muts = append(muts, db.SRemMembers(r.ownerKey(owner), string(kind)+":"+id))
	}
	if err := r.store.Atomic(ctx, muts...); err != nil {
		return fmt.Errorf("delete report %s:%s: %w", kind, id, err)
	}
	return nil
}

// FindCandidates returns the reports of one kind matching f, oldest first.
func (r *Repo) FindCandidates(ctx context.Context, f domreport.CandidateFilter) ([]domreport.Report, error) {
	ids, err := r.store.SMembers(ctx, r.kindKey(f.Kind))
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", f.Kind, err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.reportKey(f.Kind, id)
	}
	reps, err := r.loadMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	excluded := make(map[domreport.Status]bool, len(f.ExcludeStatuses))
	for _, s := range f.ExcludeStatuses {
		excluded[s] = true
	}

	out := reps[:0]
	for i := range reps {
		rep := reps[i]
		if excluded[rep.Status()] {
			continue
		}
		if _, ok := rep.Features(); f.RequireFeatures && !ok {
			continue
		}
		if f.RequireDescription && !rep.HasDescription() {
			continue
		}
		out = append(out, rep)
	}
	sortOldestFirst(out)
	return out, nil
}

// ListForOwner returns every report owned by userID, optionally restricted to kinds.
func (r *Repo) ListForOwner(ctx context.Context, userID string, kinds ...domreport.Kind) ([]domreport.Report, error) {
	refs, err := r.store.SMembers(ctx, r.ownerKey(userID))
	if err != nil {
		return nil, fmt.Errorf("smembers owner %s: %w", userID, err)
	}

	allowed := make(map[domreport.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		kind, id, err := domreport.ParseRef(ref)
		if err != nil {
			continue
		}
		if len(allowed) > 0 && !allowed[kind] {
			continue
		}
		keys = append(keys, r.reportKey(kind, id))
	}
	reps, err := r.loadMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(reps)
	return reps, nil
}

func (r *Repo) loadMany(ctx context.Context, keys []string) ([]domreport.Report, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	out := make([]domreport.Report, 0, len(hashes))
	for _, m := range hashes {
		if len(m) == 0 {
			// set member without a hash (deleted concurrently)
			continue
		}
		out = append(out, parseHashFields(m))
	}
	return out, nil
}

func sortOldestFirst(reps []domreport.Report) {
	sort.SliceStable(reps, func(i, j int) bool {
		a, b := reps[i].CreatedAt(), reps[j].CreatedAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return reps[i].ID() < reps[j].ID()
	})
}

func (r *Repo) reportKey(kind domreport.Kind, id string) string {
	return fmt.Sprintf("%sreport:%s:%s", r.prefix, kind, id)
}

func (r *Repo) kindKey(kind domreport.Kind) string {
	return fmt.Sprintf("%sreports:%s", r.prefix, kind)
}

func (r *Repo) ownerKey(userID string) string {
	return fmt.Sprintf("%sowner-reports:%s", r.prefix, userID)
}
