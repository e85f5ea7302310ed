package user

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/lostmatch/internal/db"
	"github.com/kailas-cloud/lostmatch/internal/domain"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
)

const (
	fieldID        = "id"
	fieldThreshold = "matching_threshold"
	fieldPeriodic  = "periodic_search_enabled"
	fieldAlerts    = "match_alerts_enabled"
	fieldActive    = "active"
	fieldEmail     = "email"
	fieldName      = "name"
)

// store is the consumer interface for user preferences (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	Atomic(ctx context.Context, muts ...db.Mutation) error
}

// Repo is the read-model projection of user matching preferences.
// The periodic set only holds users that are both opted in and active.
type Repo struct {
	store  store
	prefix string
}

// New creates a user repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Preferences returns the stored preferences of userID.
func (r *Repo) Preferences(ctx context.Context, userID string) (domuser.Preferences, error) {
	m, err := r.store.HGetAll(ctx, r.userKey(userID))
	if err != nil {
		return domuser.Preferences{}, fmt.Errorf("hgetall user %s: %w", userID, err)
	}
	if len(m) == 0 {
		return domuser.Preferences{}, domain.ErrUserNotFound
	}
	return parseHashFields(m), nil
}

// Upsert replaces the projection of p.
func (r *Repo) Upsert(ctx context.Context, p *domuser.Preferences) error {
	key := r.userKey(p.UserID())
	muts := []db.Mutation{
		db.DelKey(key),
		db.HSetFields(key, buildHashFields(p)),
		r.periodicMutation(p),
	}
	if err := r.store.Atomic(ctx, muts...); err != nil {
		return fmt.Errorf("upsert user %s: %w", p.UserID(), err)
	}
	return nil
}

// UpdateSettings applies a partial periodic-search settings update.
func (r *Repo) UpdateSettings(ctx context.Context, userID string, s domuser.Settings) (domuser.Preferences, error) {
	cur, err := r.Preferences(ctx, userID)
	if err != nil {
		return domuser.Preferences{}, err
	}

	threshold, hasThreshold := cur.MatchingThreshold()
	alerts := cur.MatchAlertsEnabled()
	params := domuser.Params{
		UserID:                cur.UserID(),
		PeriodicSearchEnabled: cur.PeriodicSearchEnabled(),
		MatchAlertsEnabled:    &alerts,
		Active:                cur.Active(),
		Email:                 cur.Email(),
		Name:                  cur.Name(),
	}
	if hasThreshold {
		params.MatchingThreshold = &threshold
	}
	if s.PeriodicSearchEnabled != nil {
		params.PeriodicSearchEnabled = *s.PeriodicSearchEnabled
	}
	if s.MatchingThreshold != nil {
		params.MatchingThreshold = s.MatchingThreshold
	}
	updated, err := domuser.New(params)
	if err != nil {
		return domuser.Preferences{}, err
	}

	key := r.userKey(userID)
	fields := buildHashFields(&updated)
	muts := []db.Mutation{
		db.HSetFields(key, map[string]string{
			fieldPeriodic:  fields[fieldPeriodic],
			fieldThreshold: fields[fieldThreshold],
		}),
		r.periodicMutation(&updated),
	}
	if err := r.store.Atomic(ctx, muts...); err != nil {
		return domuser.Preferences{}, fmt.Errorf("update settings of %s: %w", userID, err)
	}
	return updated, nil
}

// ListPeriodicEnabled returns users with periodic search enabled and an active account.
func (r *Repo) ListPeriodicEnabled(ctx context.Context) ([]domuser.Preferences, error) {
	ids, err := r.store.SMembers(ctx, r.periodicKey())
	if err != nil {
		return nil, fmt.Errorf("smembers periodic: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.userKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi users: %w", err)
	}
	out := make([]domuser.Preferences, 0, len(hashes))
	for _, m := range hashes {
		if len(m) == 0 {
			continue
		}
		p := parseHashFields(m)
		if p.PeriodicSearchEnabled() && p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

// CountPeriodicEnabled returns the size of the periodic set.
func (r *Repo) CountPeriodicEnabled(ctx context.Context) (int, error) {
	n, err := r.store.SCard(ctx, r.periodicKey())
	if err != nil {
		return 0, fmt.Errorf("scard periodic: %w", err)
	}
	return int(n), nil
}

func (r *Repo) periodicMutation(p *domuser.Preferences) db.Mutation {
	if p.PeriodicSearchEnabled() && p.Active() {
		return db.SAddMembers(r.periodicKey(), p.UserID())
	}
	return db.SRemMembers(r.periodicKey(), p.UserID())
}

func buildHashFields(p *domuser.Preferences) map[string]string {
	m := map[string]string{
		fieldID:        p.UserID(),
		fieldPeriodic:  strconv.FormatBool(p.PeriodicSearchEnabled()),
		fieldAlerts:    strconv.FormatBool(p.MatchAlertsEnabled()),
		fieldActive:    strconv.FormatBool(p.Active()),
		fieldEmail:     p.Email(),
		fieldName:      p.Name(),
		fieldThreshold: "",
	}
	if t, ok := p.MatchingThreshold(); ok {
		m[fieldThreshold] = strconv.Itoa(t)
	}
	return m
}

func parseHashFields(m map[string]string) domuser.Preferences {
	p := domuser.Params{
		UserID:                m[fieldID],
		PeriodicSearchEnabled: m[fieldPeriodic] == "true",
		Active:                m[fieldActive] == "true",
		Email:                 m[fieldEmail],
		Name:                  m[fieldName],
	}
	if v, ok := m[fieldAlerts]; ok && v != "" {
		b := v == "true"
		p.MatchAlertsEnabled = &b
	}
	if t, err := strconv.Atoi(m[fieldThreshold]); err == nil {
		p.MatchingThreshold = &t
	}
	return domuser.Reconstruct(p)
}

func (r *Repo) userKey(id string) string {
	return fmt.Sprintf("%suser:%s", r.prefix, id)
}

func (r *Repo) periodicKey() string {
	return r.prefix + "users:periodic"
}
