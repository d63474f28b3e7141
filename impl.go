package arbiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/huimingz/arbiter/internal/lua"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotHeld = errors.New("lock not held")
)

// lockScripts binds one lock flavour to its Lua scripts.
type lockScripts struct {
	tryLock *redis.Script
	unlock  *redis.Script
	refresh *redis.Script
	// cancel withdraws a waiter that gave up; nil when waiters leave no state.
	cancel *redis.Script

	keys  func(key string) []string
	field func(owner string) string
	args  func(l *lockImpl, lease time.Duration) []any
}

var (
	unlockScript  = redis.NewScript(lua.Unlock)
	refreshScript = redis.NewScript(lua.Refresh)

	singleKey = func(key string) []string { return []string{key} }
	ownerKey  = func(owner string) string { return owner }
	writerKey = func(owner string) string { return owner + ":write" }
)

var mutexScripts = &lockScripts{
	tryLock: redis.NewScript(lua.TryLock),
	unlock:  unlockScript,
	refresh: refreshScript,
	keys:    singleKey,
	field:   ownerKey,
	args: func(l *lockImpl, lease time.Duration) []any {
		return []any{lease.Milliseconds(), l.value}
	},
}

var fairScripts = &lockScripts{
	tryLock: redis.NewScript(lua.FairTryLock),
	unlock:  unlockScript,
	refresh: refreshScript,
	cancel:  redis.NewScript(lua.FairCancel),
	keys: func(key string) []string {
		return []string{key, "arbiter_lock_queue:{" + key + "}", "arbiter_lock_timeout:{" + key + "}"}
	},
	field: ownerKey,
	args: func(l *lockImpl, lease time.Duration) []any {
		return []any{lease.Milliseconds(), l.value, l.options.WaiterTimeout.Milliseconds(), time.Now().UnixMilli()}
	},
}

var readScripts = &lockScripts{
	tryLock: redis.NewScript(lua.ReadTryLock),
	unlock:  redis.NewScript(lua.ReadUnlock),
	refresh: refreshScript,
	keys:    singleKey,
	field:   ownerKey,
	args: func(l *lockImpl, lease time.Duration) []any {
		return []any{lease.Milliseconds(), l.value, writerKey(l.value)}
	},
}

var writeScripts = &lockScripts{
	tryLock: redis.NewScript(lua.WriteTryLock),
	unlock:  redis.NewScript(lua.WriteUnlock),
	refresh: refreshScript,
	keys:    singleKey,
	field:   writerKey,
	args: func(l *lockImpl, lease time.Duration) []any {
		return []any{lease.Milliseconds(), writerKey(l.value)}
	},
}

type lockImpl struct {
	redis   redis.UniversalClient
	name    string
	keys    []string
	value   string
	scripts *lockScripts
	options *LockOptions
	logger  Logger

	mu             sync.Mutex
	holds          int
	lease          time.Duration
	watchDogCancel context.CancelFunc
	watchDogDone   chan struct{}
}

func newLock(redis redis.UniversalClient, name, key string, scripts *lockScripts, options *LockOptions, logger Logger) Lock {
	return newLockWithOwner(redis, name, key, scripts, options, logger, generateValue())
}

func newLockWithOwner(redis redis.UniversalClient, name, key string, scripts *lockScripts, options *LockOptions, logger Logger, owner string) *lockImpl {
	return &lockImpl{
		redis:   redis,
		name:    name,
		keys:    scripts.keys(key),
		value:   owner,
		scripts: scripts,
		options: options,
		logger:  logger,
	}
}

func (l *lockImpl) Name() string {
	return l.name
}

func (l *lockImpl) Lock(ctx context.Context, leaseTime time.Duration) error {
	for {
		acquired, err := l.attempt(ctx, leaseTime)
		if err != nil {
			l.withdraw(ctx)
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			l.withdraw(ctx)
			return ctx.Err()
		case <-time.After(l.options.RetryInterval): // retry delay
			continue
		}
	}
}

func (l *lockImpl) TryLock(ctx context.Context, waitTime, leaseTime time.Duration) (bool, error) {
	deadline := time.Now().Add(waitTime)
	for {
		acquired, err := l.attempt(ctx, leaseTime)
		if err != nil {
			l.withdraw(ctx)
			return false, err
		}
		if acquired {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.withdraw(ctx)
			return false, nil
		}

		select {
		case <-ctx.Done():
			l.withdraw(ctx)
			return false, ctx.Err()
		case <-time.After(min(l.options.RetryInterval, remaining)):
		}
	}
}

// attempt runs the acquisition script once.
func (l *lockImpl) attempt(ctx context.Context, leaseTime time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lease, watch := l.resolveLease(leaseTime)
	ok, err := l.scripts.tryLock.Run(ctx, l.redis, l.keys, l.scripts.args(l, lease)...).Int64()
	if err != nil {
		return false, err
	}
	if ok != 1 {
		return false, nil
	}

	l.holds++
	l.lease = lease
	if watch && l.watchDogCancel == nil {
		l.startWatchDog()
	}
	return true, nil
}

// resolveLease picks the lease for an acquisition and reports whether the
// watchdog should keep it alive.
func (l *lockImpl) resolveLease(leaseTime time.Duration) (time.Duration, bool) {
	if leaseTime > 0 {
		return leaseTime, false
	}
	if l.options.EnableWatchDog {
		return l.options.WatchDogTimeout, true
	}
	return l.options.LeaseTime, false
}

// withdraw drops any queue position left behind by a failed wait.
func (l *lockImpl) withdraw(ctx context.Context) {
	if l.scripts.cancel == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := l.scripts.cancel.Run(ctx, l.redis, l.keys, l.value).Err(); err != nil {
		l.logger.Warn(ctx, "failed to leave wait queue of lock %s: %v", l.name, err)
	}
}

func (l *lockImpl) Unlock(ctx context.Context) error {
	l.mu.Lock()

	res, err := l.scripts.unlock.Run(ctx, l.redis, l.keys[:1], l.scripts.field(l.value), l.lease.Milliseconds()).Int64()
	if err != nil {
		l.mu.Unlock()
		return err
	}

	var stop func()
	switch res {
	case -1:
		l.holds = 0
		stop = l.detachWatchDog()
		err = ErrLockNotHeld
	case 0:
		if l.holds > 0 {
			l.holds--
		}
	default:
		l.holds = 0
		stop = l.detachWatchDog()
	}
	l.mu.Unlock()

	// Stop watchdog outside the mutex, it refreshes through it
	if stop != nil {
		stop()
	}
	return err
}

func (l *lockImpl) Refresh(ctx context.Context) error {
	l.mu.Lock()
	lease := l.lease
	l.mu.Unlock()
	if lease <= 0 {
		lease = l.options.LeaseTime
	}

	ok, err := l.scripts.refresh.Run(ctx, l.redis, l.keys[:1], l.scripts.field(l.value), lease.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrLockNotHeld
	}

	return nil
}

// startWatchDog must be called with l.mu held.
func (l *lockImpl) startWatchDog() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.watchDogCancel, l.watchDogDone = cancel, done

	go func() {
		defer close(done)

		ticker := time.NewTicker(l.options.WatchDogTimeout / 3)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := l.Refresh(ctx); err != nil {
					if ctx.Err() == nil {
						// If refresh fails, the lock might be lost
						l.logger.Warn(ctx, "watchdog stopped renewing lock %s: %v", l.name, err)
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// detachWatchDog must be called with l.mu held. The returned function stops
// the watchdog and waits for it to exit.
func (l *lockImpl) detachWatchDog() func() {
	cancel, done := l.watchDogCancel, l.watchDogDone
	l.watchDogCancel, l.watchDogDone = nil, nil
	if cancel == nil {
		return nil
	}
	return func() {
		cancel()
		<-done
	}
}
