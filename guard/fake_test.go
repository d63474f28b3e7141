package guard

import (
	"context"
	"sync"
	"time"

	"github.com/huimingz/arbiter"
)

type tryCall struct {
	wait  time.Duration
	lease time.Duration
}

// fakeLock records how the guard drives a lock handle.
type fakeLock struct {
	kind    string
	name    string
	members []*fakeLock

	grant     bool
	tryErr    error
	unlockErr error

	mu      sync.Mutex
	tries   []tryCall
	locks   []time.Duration
	unlocks int
}

func (l *fakeLock) Name() string { return l.name }

func (l *fakeLock) Lock(ctx context.Context, leaseTime time.Duration) error {
	l.mu.Lock()
	l.locks = append(l.locks, leaseTime)
	l.mu.Unlock()
	if l.tryErr != nil {
		return l.tryErr
	}
	if !l.grant {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (l *fakeLock) TryLock(ctx context.Context, waitTime, leaseTime time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tries = append(l.tries, tryCall{waitTime, leaseTime})
	return l.grant && l.tryErr == nil, l.tryErr
}

func (l *fakeLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks++
	return l.unlockErr
}

func (l *fakeLock) Refresh(ctx context.Context) error { return nil }

func (l *fakeLock) unlockCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlocks
}

type fakeReadWriteLock struct {
	read, write *fakeLock
}

func (rw *fakeReadWriteLock) ReadLock() arbiter.Lock  { return rw.read }
func (rw *fakeReadWriteLock) WriteLock() arbiter.Lock { return rw.write }

// fakeService hands out fakeLocks and records every request.
type fakeService struct {
	grant     bool
	tryErr    error
	unlockErr error
	leaseTime time.Duration

	mu    sync.Mutex
	calls []string
	last  *fakeLock
}

func newFakeService() *fakeService {
	return &fakeService{grant: true, leaseTime: 30 * time.Second}
}

func (s *fakeService) newFake(kind, name string, members []*fakeLock) *fakeLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind+":"+name)
	l := &fakeLock{
		kind:      kind,
		name:      name,
		members:   members,
		grant:     s.grant,
		tryErr:    s.tryErr,
		unlockErr: s.unlockErr,
	}
	s.last = l
	return l
}

func (s *fakeService) NewLock(name string, opts ...arbiter.Option) arbiter.Lock {
	return s.newFake("mutex", name, nil)
}

func (s *fakeService) NewFairLock(name string, opts ...arbiter.Option) arbiter.Lock {
	return s.newFake("fair", name, nil)
}

func (s *fakeService) NewReadWriteLock(name string, opts ...arbiter.Option) arbiter.ReadWriteLock {
	read := s.newFake("read", name, nil)
	write := s.newFake("write", name, nil)
	return &fakeReadWriteLock{read: read, write: write}
}

func (s *fakeService) composite(kind string, locks []arbiter.Lock) *fakeLock {
	members := make([]*fakeLock, len(locks))
	names := ""
	for i, lock := range locks {
		members[i] = lock.(*fakeLock)
		if i > 0 {
			names += ","
		}
		names += lock.Name()
	}
	return s.newFake(kind, names, members)
}

func (s *fakeService) NewMultiLock(locks ...arbiter.Lock) arbiter.Lock {
	return s.composite("multi", locks)
}

func (s *fakeService) NewRedLock(locks ...arbiter.Lock) arbiter.Lock {
	return s.composite("red", locks)
}

func (s *fakeService) LeaseTime() time.Duration { return s.leaseTime }

func (s *fakeService) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestGuard(svc LockService, opts ...Option) *Guard {
	return New(svc, append([]Option{WithLogger(&arbiter.NoopLogger{})}, opts...)...)
}
