package arbiter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// lockGroup tracks the member locks a composite lock currently holds.
type lockGroup struct {
	locks         []Lock
	retryInterval time.Duration
	logger        Logger

	mu   sync.Mutex
	held []Lock
}

func (g *lockGroup) Name() string {
	names := make([]string, len(g.locks))
	for i, lock := range g.locks {
		names[i] = lock.Name()
	}
	return strings.Join(names, ",")
}

func (g *lockGroup) setHeld(held []Lock) {
	g.mu.Lock()
	g.held = held
	g.mu.Unlock()
}

// Unlock releases every member the group holds.
func (g *lockGroup) Unlock(ctx context.Context) error {
	g.mu.Lock()
	held := g.held
	g.held = nil
	g.mu.Unlock()

	if len(held) == 0 {
		return ErrLockNotHeld
	}
	return g.release(ctx, held)
}

func (g *lockGroup) Refresh(ctx context.Context) error {
	g.mu.Lock()
	held := g.held
	g.mu.Unlock()

	if len(held) == 0 {
		return ErrLockNotHeld
	}
	var errs []error
	for _, lock := range held {
		if err := lock.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// release unlocks the given members concurrently.
func (g *lockGroup) release(ctx context.Context, locks []Lock) error {
	var eg errgroup.Group
	for _, lock := range locks {
		lock := lock
		eg.Go(func() error {
			if err := lock.Unlock(ctx); err != nil {
				g.logger.Warn(ctx, "failed to release lock %s: %v", lock.Name(), err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// lockLoop retries single attempts of try until it succeeds or ctx is done.
func lockLoop(ctx context.Context, interval time.Duration, try func() (bool, error)) error {
	for {
		acquired, err := try()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// multiLock is held only while every member lock is held.
type multiLock struct {
	lockGroup
}

func newMultiLock(locks []Lock, retryInterval time.Duration, logger Logger) *multiLock {
	return &multiLock{lockGroup{locks: locks, retryInterval: retryInterval, logger: logger}}
}

func (m *multiLock) Lock(ctx context.Context, leaseTime time.Duration) error {
	return lockLoop(ctx, m.retryInterval, func() (bool, error) {
		return m.TryLock(ctx, 0, leaseTime)
	})
}

// TryLock acquires the members in order, sharing one wait budget. When any
// member cannot be acquired, the members already held are released.
func (m *multiLock) TryLock(ctx context.Context, waitTime, leaseTime time.Duration) (bool, error) {
	deadline := time.Now().Add(waitTime)
	acquired := make([]Lock, 0, len(m.locks))
	for _, lock := range m.locks {
		ok, err := lock.TryLock(ctx, max(time.Until(deadline), 0), leaseTime)
		if err != nil || !ok {
			if len(acquired) > 0 {
				_ = m.release(context.WithoutCancel(ctx), acquired)
			}
			return false, err
		}
		acquired = append(acquired, lock)
	}

	m.setHeld(acquired)
	return true, nil
}
