package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lostmatch/internal/db"
)

// Atomic applies mutations inside one MULTI/EXEC pipeline.
// Readers observe either none or all of the writes.
func (s *Store) Atomic(ctx context.Context, muts ...db.Mutation) error {
	cmds := make([]rueidis.Completed, 0, len(muts)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, m := range muts {
		if m.IsNoop() {
			continue
		}
		cmd, err := s.buildMutation(m)
		if err != nil {
			return &db.Error{Op: db.OpMulti, Err: err}
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 1 {
		return nil
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	exec := results[len(results)-1]
	replies, err := exec.ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpMulti, Err: db.ErrTxAborted}
		}
		return &db.Error{Op: db.OpMulti, Err: err}
	}
	for i, r := range replies {
		if err := r.Error(); err != nil {
			return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("exec reply %d: %w", i, err)}
		}
	}
	return nil
}

func (s *Store) buildMutation(m db.Mutation) (rueidis.Completed, error) {
	switch m.Kind {
	case db.MutDel:
		return s.b().Del().Key(m.Key).Build(), nil
	case db.MutHSet:
		cmd := s.b().Hset().Key(m.Key).FieldValue()
		for k, v := range m.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		return cmd.Build(), nil
	case db.MutHDel:
		return s.b().Hdel().Key(m.Key).Field(m.Members...).Build(), nil
	case db.MutSet:
		return s.b().Set().Key(m.Key).Value(m.Value).Build(), nil
	case db.MutSAdd:
		return s.b().Sadd().Key(m.Key).Member(m.Members...).Build(), nil
	case db.MutSRem:
		return s.b().Srem().Key(m.Key).Member(m.Members...).Build(), nil
	case db.MutZAdd:
		return s.b().Zadd().Key(m.Key).ScoreMember().ScoreMember(m.Score, m.Members[0]).Build(), nil
	case db.MutZRem:
		return s.b().Zrem().Key(m.Key).Member(m.Members...).Build(), nil
	default:
		return rueidis.Completed{}, fmt.Errorf("unsupported mutation %s", m.Kind)
	}
}

// releaseScript deletes the lease only while it still carries the caller's token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// AcquireLease implements SET key token NX PX ttl.
func (s *Store) AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	err := s.do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpSet, Err: err}
	}
	return true, nil
}

// ReleaseLease removes the lease if token still owns it.
func (s *Store) ReleaseLease(ctx context.Context, key, token string) error {
	cmd := s.b().Eval().Script(releaseScript).Numkeys(1).Key(key).Arg(token).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpEval, Err: err}
	}
	return nil
}
