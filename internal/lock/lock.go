// Package lock provides cross-process single-flight locks for background cycles.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Locker tries to take an exclusive lock without blocking.
// ok=false means another holder has it; release must be called when ok=true.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Noop always succeeds.
type Noop struct{}

// TryLock implements Locker.
func (Noop) TryLock(context.Context) (func(), bool, error) { return func() {}, true, nil }

// File is an advisory file lock shared by processes on one host.
type File struct {
	path string
	fl   *flock.Flock
}

// NewFile creates a file lock at path.
func NewFile(path string) *File {
	return &File{path: path, fl: flock.New(path)}
}

// TryLock implements Locker.
func (f *File) TryLock(context.Context) (func(), bool, error) {
	ok, err := f.fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire file lock %s: %w", f.path, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() { _ = f.fl.Unlock() }, true, nil
}

// leaseStore is the consumer interface for the redis lease (ISP).
type leaseStore interface {
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, token string) error
}

// Lease is a TTL-bounded lock held in Valkey/Redis under an owner token.
// The TTL caps how long a crashed holder blocks the others.
type Lease struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

// NewLease creates a redis lease lock.
func NewLease(s leaseStore, key string, ttl time.Duration) *Lease {
	return &Lease{store: s, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (l *Lease) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.store.AcquireLease(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// the cycle context may already be cancelled
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.store.ReleaseLease(rctx, l.key, token)
	}, true, nil
}
