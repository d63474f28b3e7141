package guard

import (
	"slices"
	"time"
)

// WaitForever makes the acquisition block until the lock is granted or the
// context is done.
const WaitForever time.Duration = -1

// DefaultAttemptTimeout is the wait window used by Declare.
const DefaultAttemptTimeout = 10 * time.Second

// Declaration describes the lock guarding one call.
type Declaration struct {
	// Model selects the lock topology.
	Model Model
	// Keys are the key expressions; at least one is required.
	Keys []string
	// KeyClass namespaces every identifier derived from Keys.
	KeyClass string
	// AttemptTimeout bounds the wait for the lock. WaitForever waits
	// without bound, zero makes a single attempt.
	AttemptTimeout time.Duration
	// LeaseTime is how long the lock is held before the lock service
	// reclaims it. Zero uses the lock service default.
	LeaseTime time.Duration
}

// DeclarationOption is a function type for setting declaration fields
type DeclarationOption func(*Declaration)

// WithModel sets the lock model
func WithModel(model Model) DeclarationOption {
	return func(d *Declaration) {
		d.Model = model
	}
}

// WithKeys sets the key expressions
func WithKeys(keys ...string) DeclarationOption {
	return func(d *Declaration) {
		d.Keys = slices.Clone(keys)
	}
}

// WithKeyClass sets the identifier namespace
func WithKeyClass(keyClass string) DeclarationOption {
	return func(d *Declaration) {
		d.KeyClass = keyClass
	}
}

// WithAttemptTimeout sets the wait window, WaitForever for no bound
func WithAttemptTimeout(timeout time.Duration) DeclarationOption {
	return func(d *Declaration) {
		d.AttemptTimeout = timeout
	}
}

// WithLeaseTime sets the hold duration
func WithLeaseTime(leaseTime time.Duration) DeclarationOption {
	return func(d *Declaration) {
		d.LeaseTime = leaseTime
	}
}

// Declare builds a Declaration. Unset fields default to ModelAuto, a ten
// second wait window and the lock service lease.
func Declare(opts ...DeclarationOption) Declaration {
	d := Declaration{
		Model:          ModelAuto,
		AttemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Param is one named argument of a guarded call.
type Param struct {
	Name  string
	Value any
}

// Arg returns a Param.
func Arg(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// CallContext lists the arguments of a guarded call in declaration order.
type CallContext []Param

// Vars returns the arguments keyed by name. A repeated name keeps the last value.
func (c CallContext) Vars() map[string]any {
	vars := make(map[string]any, len(c))
	for _, p := range c {
		vars[p.Name] = p.Value
	}
	return vars
}
