// Package lock provides the distributed idempotency lock guarding webhook
// reconciliation. Multiple service instances may receive the same gateway
// notification; the lock guarantees at-most-one concurrent processing per
// notification identity across all of them.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker is the idempotency lock contract. Acquire is an atomic
// set-if-absent with TTL: it returns acquired=true only to the first caller
// for a given key within the TTL window, together with a release token
// unique to that acquisition. Release frees the key only when the token
// still matches the current holder, so a worker whose TTL lapsed
// mid-processing cannot free a successor's lock. Release must be called in
// a deferred cleanup path; a leaked lock expires on its own after the TTL.
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

// memoryLock is one held key: who holds it and until when.
type memoryLock struct {
	token  string
	expiry time.Time
}

// MemoryLocker is an in-process Locker used in tests and single-instance
// deployments. TTL expiry is evaluated lazily on Acquire.
type MemoryLocker struct {
	ttl time.Duration

	mu    sync.Mutex
	held  map[string]memoryLock
	clock func() time.Time
}

// NewMemoryLocker creates a MemoryLocker with the given TTL.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		ttl:   ttl,
		held:  make(map[string]memoryLock),
		clock: time.Now,
	}
}

// Acquire takes the lock if it is free or its previous holder's TTL lapsed.
func (l *MemoryLocker) Acquire(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiry) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.held[key] = memoryLock{token: token, expiry: now.Add(l.ttl)}
	return token, true, nil
}

// Release frees the lock if the token still identifies the current holder.
// A stale release from an expired acquisition is a no-op.
func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
