package arbiter

import (
	"context"
	"time"
)

// Lock represents a distributed lock interface
type Lock interface {
	// Name returns the lock name without the client key prefix.
	Name() string

	// Lock acquires the lock, blocking until it succeeds or ctx is done.
	// A non-positive leaseTime uses the lease configured for the lock.
	Lock(ctx context.Context, leaseTime time.Duration) error

	// TryLock attempts to acquire the lock, waiting at most waitTime.
	// A zero waitTime makes a single attempt. It reports false when the
	// wait window is exhausted.
	TryLock(ctx context.Context, waitTime, leaseTime time.Duration) (bool, error)

	// Unlock releases the lock
	Unlock(ctx context.Context) error

	// Refresh manually extends the lock's lease time
	Refresh(ctx context.Context) error
}

// ReadWriteLock is a pair of locks sharing one name: many holders of the
// read side or a single holder of the write side.
type ReadWriteLock interface {
	ReadLock() Lock
	WriteLock() Lock
}
