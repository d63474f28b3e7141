package arbiter

import "time"

// LockOptions defines the options for lock configuration
type LockOptions struct {
	// LeaseTime specifies the lock expiration time used when a caller
	// passes a non-positive lease
	LeaseTime time.Duration

	// RetryInterval specifies the pause between acquisition attempts
	RetryInterval time.Duration

	// EnableWatchDog enables automatic lock renewal
	EnableWatchDog bool

	// WatchDogTimeout specifies the watchdog timeout (only valid when EnableWatchDog is true)
	WatchDogTimeout time.Duration

	// WaiterTimeout is how long a fair lock waiter keeps its queue position
	// without polling again
	WaiterTimeout time.Duration
}

// Option is a function type for setting lock options
type Option func(*LockOptions)

// WithLeaseTime sets the lease time
func WithLeaseTime(leaseTime time.Duration) Option {
	return func(o *LockOptions) {
		o.LeaseTime = leaseTime
	}
}

// WithRetryInterval sets the delay between acquisition attempts
func WithRetryInterval(interval time.Duration) Option {
	return func(o *LockOptions) {
		o.RetryInterval = interval
	}
}

// WithWatchDog enables or disables the watchdog
func WithWatchDog(enable bool) Option {
	return func(o *LockOptions) {
		o.EnableWatchDog = enable
	}
}

// WithWatchDogTimeout sets the watchdog timeout
func WithWatchDogTimeout(timeout time.Duration) Option {
	return func(o *LockOptions) {
		o.WatchDogTimeout = timeout
	}
}

// WithWaiterTimeout sets how long a fair lock waiter stays queued between polls
func WithWaiterTimeout(timeout time.Duration) Option {
	return func(o *LockOptions) {
		o.WaiterTimeout = timeout
	}
}

const (
	defaultLeaseTime     = 30 * time.Second
	defaultRetryInterval = 100 * time.Millisecond
	defaultWaiterTimeout = 5 * time.Second
)

// defaultOptions returns the default lock options
func defaultOptions() *LockOptions {
	return &LockOptions{
		LeaseTime:       defaultLeaseTime,     // 30 seconds lease time by default
		RetryInterval:   defaultRetryInterval, // poll every 100ms
		EnableWatchDog:  false,                // watchdog disabled by default
		WatchDogTimeout: defaultLeaseTime,     // 30 seconds watchdog timeout by default
		WaiterTimeout:   defaultWaiterTimeout,
	}
}
