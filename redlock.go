package arbiter

import (
	"context"
	"time"
)

// redLock is held once a strict majority of its member locks is held.
type redLock struct {
	lockGroup
}

func newRedLock(locks []Lock, retryInterval time.Duration, logger Logger) *redLock {
	return &redLock{lockGroup{locks: locks, retryInterval: retryInterval, logger: logger}}
}

func (r *redLock) quorum() int {
	return len(r.locks)/2 + 1
}

func (r *redLock) Lock(ctx context.Context, leaseTime time.Duration) error {
	return lockLoop(ctx, r.retryInterval, func() (bool, error) {
		return r.TryLock(ctx, 0, leaseTime)
	})
}

// TryLock tries every member in order. Each member gets an equal share of
// the remaining wait budget, at least one millisecond. Member errors count
// as failed members; acquisition stops once too many members failed for a
// majority to remain reachable.
func (r *redLock) TryLock(ctx context.Context, waitTime, leaseTime time.Duration) (bool, error) {
	if len(r.locks) == 0 {
		return false, nil
	}

	quorum := r.quorum()
	failedLimit := len(r.locks) - quorum
	deadline := time.Now().Add(waitTime)

	acquired := make([]Lock, 0, len(r.locks))
	failed := 0
	giveUp := func(err error) (bool, error) {
		if len(acquired) > 0 {
			_ = r.release(context.WithoutCancel(ctx), acquired)
		}
		return false, err
	}

	for _, lock := range r.locks {
		ok, err := lock.TryLock(ctx, r.memberWait(waitTime, deadline), leaseTime)
		if err != nil {
			if ctx.Err() != nil {
				return giveUp(ctx.Err())
			}
			r.logger.Warn(ctx, "red lock member %s failed: %v", lock.Name(), err)
		}

		if ok {
			acquired = append(acquired, lock)
		} else {
			failed++
			if failed > failedLimit {
				return giveUp(nil)
			}
		}

		if waitTime > 0 && time.Until(deadline) <= 0 && len(acquired) < quorum {
			return giveUp(nil)
		}
	}

	r.setHeld(acquired)
	return true, nil
}

func (r *redLock) memberWait(waitTime time.Duration, deadline time.Time) time.Duration {
	if waitTime <= 0 {
		return 0
	}
	return max(time.Until(deadline)/time.Duration(len(r.locks)), time.Millisecond)
}
