package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/domain"
	dommatch "github.com/kailas-cloud/lostmatch/internal/domain/match"
)

// store is the consumer interface for persisted matches (ISP).
type store interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Atomic(ctx context.Context, muts ...db.Mutation) error
}

// Repo implements usecase/matching.MatchStore and usecase/matchrecord.Repository.
//
// Layout: one hash per lost report holds all of its matches, so a reader sees
// either the full previous set or the full replacement. Secondary indexes map
// match id to lost id, found id to refs and status to refs.
type Repo struct {
	store  store
	prefix string
	topN   int
	locks  *keyedMutex
	now    func() time.Time
}

// New creates a match repository.
func New(s store, prefix string) *Repo {
	return &Repo{
		store:  s,
		prefix: prefix,
		topN:   dommatch.MaxPerLostReport,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
}

// WithTopN sets the number of matches kept per lost report (1..3).
func (r *Repo) WithTopN(n int) *Repo {
	if n > 0 && n <= dommatch.MaxPerLostReport {
		r.topN = n
	}
	return r
}

// PersistTopMatches atomically replaces the matches of lostID with the best
// candidates from ranked. Duplicate candidate ids keep their first occurrence.
// An empty ranking clears the set.
func (r *Repo) PersistTopMatches(
	ctx context.Context, lostID string, ranked []dommatch.Candidate,
) ([]dommatch.Match, error) {
	if lostID == "" {
		return nil, fmt.Errorf("lost report ID is required: %w", domain.ErrValidation)
	}

	unlock := r.locks.Lock(lostID)
	defer unlock()

	old, err := r.loadLost(ctx, lostID)
	if err != nil {
		return nil, err
	}

	top := selectTop(ranked, r.topN)
	now := r.now()

	muts := r.dropMutations(lostID, old)
	muts = append(muts, db.DelKey(r.lostKey(lostID)))

	created := make([]dommatch.Match, 0, len(top))
	fields := make(map[string]string, len(top))
	for _, c := range top {
		m, err := dommatch.New(lostID, c.ID, dommatch.Clamp01(c.Similarity), now)
		if err != nil {
			return nil, fmt.Errorf("build match for %s: %w", c.ID, err)
		}
		raw, err := encodeMatch(&m)
		if err != nil {
			return nil, err
		}
		fields[m.ID()] = raw
		ref := matchRef(lostID, m.ID())
		muts = append(muts,
			db.SetValue(r.idKey(m.ID()), lostID),
			db.SAddMembers(r.foundKey(c.ID), ref),
			db.ZAddMember(r.statusKey(m.Status()), scoreOf(m.CreatedAt()), ref),
		)
		created = append(created, m)
	}
	muts = append(muts, db.HSetFields(r.lostKey(lostID), fields))

	if err := r.atomic(ctx, muts); err != nil {
		return nil, fmt.Errorf("persist matches for %s: %w", lostID, err)
	}
	return created, nil
}

// UpdateStatus changes the review status of one match. Any transition between
// valid statuses is allowed.
func (r *Repo) UpdateStatus(ctx context.Context, matchID string, status dommatch.Status) (dommatch.Match, error) {
	if _, err := dommatch.ParseStatus(string(status)); err != nil {
		return dommatch.Match{}, err
	}

	lostID, err := r.lostIDFor(ctx, matchID)
	if err != nil {
		return dommatch.Match{}, err
	}

	unlock := r.locks.Lock(lostID)
	defer unlock()

	current, err := r.getField(ctx, lostID, matchID)
	if err != nil {
		return dommatch.Match{}, err
	}

	updated := current.WithStatus(status, r.now())
	raw, err := encodeMatch(&updated)
	if err != nil {
		return dommatch.Match{}, err
	}

	ref := matchRef(lostID, matchID)
	muts := []db.Mutation{
		db.HSetFields(r.lostKey(lostID), map[string]string{matchID: raw}),
	}
	if current.Status() != status {
		muts = append(muts,
			db.ZRemMembers(r.statusKey(current.Status()), ref),
			db.ZAddMember(r.statusKey(status), scoreOf(current.CreatedAt()), ref),
		)
	}
	if err := r.atomic(ctx, muts); err != nil {
		return dommatch.Match{}, fmt.Errorf("update status of %s: %w", matchID, err)
	}
	return updated, nil
}

// ByLostReport returns the matches of a lost report, best score first
// (ties: earliest created first).
func (r *Repo) ByLostReport(ctx context.Context, lostID string) ([]dommatch.Match, error) {
	ms, err := r.loadLost(ctx, lostID)
	if err != nil {
		return nil, err
	}
	sortByScore(ms)
	return ms, nil
}

// ByStatus returns all matches with status, newest first.
func (r *Repo) ByStatus(ctx context.Context, status dommatch.Status) ([]dommatch.Match, error) {
	if _, err := dommatch.ParseStatus(string(status)); err != nil {
		return nil, err
	}

	refs, err := r.store.ZRevRange(ctx, r.statusKey(status), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", status, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	lostIDs := make([]string, 0, len(refs))
	pos := make(map[string]int, len(refs))
	for _, ref := range refs {
		lostID, _, ok := parseMatchRef(ref)
		if !ok {
			continue
		}
		if _, seen := pos[lostID]; !seen {
			pos[lostID] = len(lostIDs)
			lostIDs = append(lostIDs, lostID)
		}
	}

	keys := make([]string, len(lostIDs))
	for i, id := range lostIDs {
		keys[i] = r.lostKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load lost report matches: %w", err)
	}

	out := make([]dommatch.Match, 0, len(refs))
	for _, ref := range refs {
		lostID, matchID, ok := parseMatchRef(ref)
		if !ok {
			continue
		}
		raw, ok := hashes[pos[lostID]][matchID]
		if !ok {
			// index entry outlived its row
			continue
		}
		m, err := decodeMatch(raw)
		if err != nil {
			return nil, err
		}
		if m.Status() != status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ByID returns a single match.
func (r *Repo) ByID(ctx context.Context, matchID string) (dommatch.Match, error) {
	lostID, err := r.lostIDFor(ctx, matchID)
	if err != nil {
		return dommatch.Match{}, err
	}
	return r.getField(ctx, lostID, matchID)
}

// DeleteAllForLostReport removes every match of a lost report. Returns the number removed.
func (r *Repo) DeleteAllForLostReport(ctx context.Context, lostID string) (int, error) {
	unlock := r.locks.Lock(lostID)
	defer unlock()

	old, err := r.loadLost(ctx, lostID)
	if err != nil {
		return 0, err
	}
	if len(old) == 0 {
		return 0, nil
	}

	muts := r.dropMutations(lostID, old)
	muts = append(muts, db.DelKey(r.lostKey(lostID)))
	if err := r.atomic(ctx, muts); err != nil {
		return 0, fmt.Errorf("delete matches for lost %s: %w", lostID, err)
	}
	return len(old), nil
}

// cascadePasses bounds how often DeleteAllForFoundReport re-reads the found
// index to pick up matches persisted while it was running.
const cascadePasses = 3

// DeleteAllForFoundReport removes every match that references a found report.
// Returns the number removed. Index entries are removed one ref at a time
// together with their rows, so a match persisted concurrently stays indexed
// and is swept by the next pass or the next call.
func (r *Repo) DeleteAllForFoundReport(ctx context.Context, foundID string) (int, error) {
	deleted := 0
	for pass := 0; pass < cascadePasses; pass++ {
		n, seen, err := r.deleteFoundPass(ctx, foundID)
		deleted += n
		if err != nil {
			return deleted, err
		}
		if seen == 0 {
			break
		}
	}
	return deleted, nil
}

// deleteFoundPass deletes the matches currently indexed under foundID and
// reports how many refs it saw.
func (r *Repo) deleteFoundPass(ctx context.Context, foundID string) (deleted, seen int, err error) {
	refs, err := r.store.SMembers(ctx, r.foundKey(foundID))
	if err != nil {
		return 0, 0, fmt.Errorf("smembers found %s: %w", foundID, err)
	}

	byLost := make(map[string][]string)
	lostIDs := make([]string, 0)
	var junk []string
	for _, ref := range refs {
		lostID, matchID, ok := parseMatchRef(ref)
		if !ok {
			junk = append(junk, ref)
			continue
		}
		if _, dup := byLost[lostID]; !dup {
			lostIDs = append(lostIDs, lostID)
		}
		byLost[lostID] = append(byLost[lostID], matchID)
	}
	sort.Strings(lostIDs)

	if len(junk) > 0 {
		if err := r.atomic(ctx, []db.Mutation{db.SRemMembers(r.foundKey(foundID), junk...)}); err != nil {
			return 0, len(refs), fmt.Errorf("clean found index %s: %w", foundID, err)
		}
	}
	for _, lostID := range lostIDs {
		n, err := r.deleteFromLost(ctx, lostID, foundID, byLost[lostID])
		if err != nil {
			return deleted, len(refs), err
		}
		deleted += n
	}
	return deleted, len(refs), nil
}

func (r *Repo) deleteFromLost(ctx context.Context, lostID, foundID string, matchIDs []string) (int, error) {
	unlock := r.locks.Lock(lostID)
	defer unlock()

	current, err := r.store.HGetAll(ctx, r.lostKey(lostID))
	if err != nil {
		return 0, fmt.Errorf("hgetall lost %s: %w", lostID, err)
	}

	var muts []db.Mutation
	var fields []string
	for _, id := range matchIDs {
		ref := matchRef(lostID, id)
		muts = append(muts, db.SRemMembers(r.foundKey(foundID), ref))
		raw, ok := current[id]
		if !ok {
			continue
		}
		m, err := decodeMatch(raw)
		if err != nil {
			return 0, err
		}
		fields = append(fields, id)
		muts = append(muts,
			db.DelKey(r.idKey(id)),
			db.ZRemMembers(r.statusKey(m.Status()), ref),
		)
	}
	muts = append(muts, db.HDelFields(r.lostKey(lostID), fields...))

	if err := r.atomic(ctx, muts); err != nil {
		return 0, fmt.Errorf("delete matches of found %s on lost %s: %w", foundID, lostID, err)
	}
	return len(fields), nil
}

// dropMutations removes the secondary index entries of existing rows.
func (r *Repo) dropMutations(lostID string, old []dommatch.Match) []db.Mutation {
	muts := make([]db.Mutation, 0, 3*len(old)+1)
	for i := range old {
		m := &old[i]
		ref := matchRef(lostID, m.ID())
		muts = append(muts,
			db.DelKey(r.idKey(m.ID())),
			db.SRemMembers(r.foundKey(m.FoundReportID()), ref),
			db.ZRemMembers(r.statusKey(m.Status()), ref),
		)
	}
	return muts
}

func (r *Repo) loadLost(ctx context.Context, lostID string) ([]dommatch.Match, error) {
	fields, err := r.store.HGetAll(ctx, r.lostKey(lostID))
	if err != nil {
		return nil, fmt.Errorf("hgetall lost %s: %w", lostID, err)
	}
	out := make([]dommatch.Match, 0, len(fields))
	for _, raw := range fields {
		m, err := decodeMatch(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Repo) lostIDFor(ctx context.Context, matchID string) (string, error) {
	raw, err := r.store.Get(ctx, r.idKey(matchID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrMatchNotFound
		}
		return "", fmt.Errorf("get match index %s: %w", matchID, err)
	}
	return string(raw), nil
}

func (r *Repo) getField(ctx context.Context, lostID, matchID string) (dommatch.Match, error) {
	raw, err := r.store.HGet(ctx, r.lostKey(lostID), matchID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return dommatch.Match{}, domain.ErrMatchNotFound
		}
		return dommatch.Match{}, fmt.Errorf("hget match %s: %w", matchID, err)
	}
	return decodeMatch(raw)
}

func (r *Repo) atomic(ctx context.Context, muts []db.Mutation) error {
	if err := r.store.Atomic(ctx, muts...); err != nil {
		if errors.Is(err, db.ErrTxAborted) {
			return fmt.Errorf("%w: %w", domain.ErrPersistenceConflict, err)
		}
		return err
	}
	return nil
}

// selectTop keeps the first occurrence of each candidate id and returns the n
// best by similarity, preserving input order among equal scores.
func selectTop(ranked []dommatch.Candidate, n int) []dommatch.Candidate {
	seen := make(map[string]bool, len(ranked))
	uniq := make([]dommatch.Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		uniq = append(uniq, c)
	}
	sort.SliceStable(uniq, func(i, j int) bool { return uniq[i].Similarity > uniq[j].Similarity })
	if len(uniq) > n {
		uniq = uniq[:n]
	}
	return uniq
}

func sortByScore(ms []dommatch.Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Score() != ms[j].Score() {
			return ms[i].Score() > ms[j].Score()
		}
		if !ms[i].CreatedAt().Equal(ms[j].CreatedAt()) {
			return ms[i].CreatedAt().Before(ms[j].CreatedAt())
		}
		return ms[i].ID() < ms[j].ID()
	})
}

func scoreOf(t time.Time) float64 { return float64(t.UnixMilli()) }

func (r *Repo) lostKey(lostID string) string {
	return fmt.Sprintf("%slost:%s:matches", r.prefix, lostID)
}

func (r *Repo) idKey(matchID string) string {
	return fmt.Sprintf("%smatch:%s", r.prefix, matchID)
}

func (r *Repo) foundKey(foundID string) string {
	return fmt.Sprintf("%sfound:%s:matches", r.prefix, foundID)
}

func (r *Repo) statusKey(s dommatch.Status) string {
	return fmt.Sprintf("%sstatus:%s", r.prefix, s)
}
