package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/lostmatch/internal/db"
)

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Sadd().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSAdd, Err: err}
	}
	return nil
}

// SRem removes members from a set.
func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Srem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSRem, Err: err}
	}
	return nil
}

// SMembers returns all members of a set. A missing key yields an empty slice.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Smembers().Key(key).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}

// SCard returns the set cardinality.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Scard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSCard, Err: err}
	}
	return n, nil
}

// ZAdd adds scored members to a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, members ...db.ScoredMember) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, m := range members {
		cmd = cmd.ScoreMember(m.Score, m.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRem removes members from a sorted set.
func (s *Store) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zrem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}

// ZRevRange returns members by rank in descending score order (ZRANGE ... REV).
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10)).
		Rev().
		Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	return members, nil
}

// ZCard returns the sorted set cardinality.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
