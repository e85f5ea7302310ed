package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	SetStore
	SortedSetStore
	Transactor
	LeaseStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SetStore provides unordered set operations.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// SortedSetStore provides sorted set operations.
type SortedSetStore interface {
	ZAdd(ctx context.Context, key string, members ...ScoredMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRevRange returns members ordered by score descending. stop=-1 means "to the end".
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Transactor applies a group of mutations atomically (MULTI/EXEC).
type Transactor interface {
	Atomic(ctx context.Context, muts ...Mutation) error
}

// LeaseStore provides owner-token leases for cross-process single-flight.
type LeaseStore interface {
	// AcquireLease sets key=token only if key is absent. Returns false when held by someone else.
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// ReleaseLease deletes key only if it still holds token.
	ReleaseLease(ctx context.Context, key, token string) error
}
