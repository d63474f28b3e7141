package arbiter

import (
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client represents a distributed lock client
type Client struct {
	redis     redis.UniversalClient
	logger    Logger
	keyPrefix string
	lockOpts  []Option
	leaseTime time.Duration
}

// ClientOption is a function type for setting client options
type ClientOption func(*Client)

// WithLogger sets the logger for the client
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithKeyPrefix sets the namespace prepended to every Redis key.
func WithKeyPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.keyPrefix = prefix
	}
}

// WithDefaultLeaseTime sets the service-wide default hold duration.
func WithDefaultLeaseTime(leaseTime time.Duration) ClientOption {
	return func(c *Client) {
		c.leaseTime = leaseTime
	}
}

// WithLockOptions sets options applied to every lock the client creates,
// before the per-lock options.
func WithLockOptions(opts ...Option) ClientOption {
	return func(c *Client) {
		c.lockOpts = append(c.lockOpts, opts...)
	}
}

// DefaultKeyPrefix is the namespace used when none is configured.
const DefaultKeyPrefix = "arbiter:lock:"

// NewClient creates a new distributed lock client
func NewClient(redis redis.UniversalClient, opts ...ClientOption) *Client {
	c := &Client{
		redis:     redis,
		logger:    newDefaultLogger(),
		keyPrefix: DefaultKeyPrefix,
		leaseTime: defaultLeaseTime,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LeaseTime returns the default hold duration of locks created by the client.
func (c *Client) LeaseTime() time.Duration {
	return c.leaseTime
}

// NewLock creates a new reentrant distributed lock instance
func (c *Client) NewLock(name string, opts ...Option) Lock {
	return newLock(c.redis, name, c.key(name), mutexScripts, c.options(opts), c.logger)
}

// NewFairLock creates a lock granted to waiters in arrival order.
func (c *Client) NewFairLock(name string, opts ...Option) Lock {
	return newLock(c.redis, name, c.key(name), fairScripts, c.options(opts), c.logger)
}

// NewReadWriteLock creates a read/write lock pair sharing one name.
func (c *Client) NewReadWriteLock(name string, opts ...Option) ReadWriteLock {
	options := c.options(opts)
	owner := generateValue()
	key := c.key(name)
	return &readWriteLock{
		read:  newLockWithOwner(c.redis, name, key, readScripts, options, c.logger, owner),
		write: newLockWithOwner(c.redis, name, key, writeScripts, options, c.logger, owner),
	}
}

// NewMultiLock groups locks that must all be held together. Passing the
// same Lock twice re-enters it.
func (c *Client) NewMultiLock(locks ...Lock) Lock {
	return newMultiLock(locks, c.options(nil).RetryInterval, c.logger)
}

// NewRedLock groups locks that are held once a majority of them is acquired.
func (c *Client) NewRedLock(locks ...Lock) Lock {
	return newRedLock(locks, c.options(nil).RetryInterval, c.logger)
}

func (c *Client) key(name string) string {
	return c.keyPrefix + name
}

func (c *Client) options(opts []Option) *LockOptions {
	options := defaultOptions()
	options.LeaseTime = c.leaseTime
	options.WatchDogTimeout = c.leaseTime
	for _, opt := range c.lockOpts {
		opt(options)
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

type readWriteLock struct {
	read  Lock
	write Lock
}

func (rw *readWriteLock) ReadLock() Lock  { return rw.read }
func (rw *readWriteLock) WriteLock() Lock { return rw.write }

// generateValue generates a random string as lock owner
func generateValue() string {
	return uuid.NewString()
}
