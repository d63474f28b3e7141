package guard

import (
	"fmt"
	"time"

	"github.com/huimingz/arbiter"
)

// LockService hands out the lock primitives the guard composes.
// *arbiter.Client implements it.
type LockService interface {
	NewLock(name string, opts ...arbiter.Option) arbiter.Lock
	NewFairLock(name string, opts ...arbiter.Option) arbiter.Lock
	NewReadWriteLock(name string, opts ...arbiter.Option) arbiter.ReadWriteLock
	NewMultiLock(locks ...arbiter.Lock) arbiter.Lock
	NewRedLock(locks ...arbiter.Lock) arbiter.Lock
	// LeaseTime is the default hold duration.
	LeaseTime() time.Duration
}

var _ LockService = (*arbiter.Client)(nil)

// topology builds the lock handle of one model from resolved identifiers.
type topology interface {
	// accept returns the identifiers the topology locks.
	accept(ids []string) []string
	// build returns the effective model and the composed handle.
	build(svc LockService, ids []string) (Model, arbiter.Lock)
}

func topologyOf(model Model) (topology, error) {
	switch model {
	case ModelReentrant:
		return reentrantTopology{}, nil
	case ModelFair:
		return fairTopology{}, nil
	case ModelRead:
		return readTopology{}, nil
	case ModelWrite:
		return writeTopology{}, nil
	case ModelMultiple:
		return multipleTopology{}, nil
	case ModelQuorum:
		return quorumTopology{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCombination, model)
}

// mutexes returns one member per identifier. A repeated identifier reuses
// the lock of its first occurrence so the repeat re-enters it.
func mutexes(svc LockService, ids []string) []arbiter.Lock {
	byID := make(map[string]arbiter.Lock, len(ids))
	locks := make([]arbiter.Lock, len(ids))
	for i, id := range ids {
		lock, ok := byID[id]
		if !ok {
			lock = svc.NewLock(id)
			byID[id] = lock
		}
		locks[i] = lock
	}
	return locks
}

// everyKey is embedded by topologies that lock all identifiers.
type everyKey struct{}

func (everyKey) accept(ids []string) []string { return ids }

// firstKey is embedded by topologies defined on a single resource. Extra
// identifiers are dropped.
type firstKey struct{}

func (firstKey) accept(ids []string) []string { return ids[:1] }

// reentrantTopology locks one identifier with a mutex and promotes to a red
// lock when the expression resolved to several identifiers.
type reentrantTopology struct{ everyKey }

func (reentrantTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	if len(ids) == 1 {
		return ModelReentrant, svc.NewLock(ids[0])
	}
	return ModelQuorum, svc.NewRedLock(mutexes(svc, ids)...)
}

type fairTopology struct{ firstKey }

func (fairTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	return ModelFair, svc.NewFairLock(ids[0])
}

type readTopology struct{ firstKey }

func (readTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	return ModelRead, svc.NewReadWriteLock(ids[0]).ReadLock()
}

type writeTopology struct{ firstKey }

func (writeTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	return ModelWrite, svc.NewReadWriteLock(ids[0]).WriteLock()
}

type multipleTopology struct{ everyKey }

func (multipleTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	return ModelMultiple, svc.NewMultiLock(mutexes(svc, ids)...)
}

type quorumTopology struct{ everyKey }

func (quorumTopology) build(svc LockService, ids []string) (Model, arbiter.Lock) {
	return ModelQuorum, svc.NewRedLock(mutexes(svc, ids)...)
}
