package arbiter

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes the connection to the Redis server backing the locks.
type Config struct {
	// Addr is host:port of the Redis server. Defaults to 127.0.0.1:6379.
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every lock key. Defaults to DefaultKeyPrefix.
	KeyPrefix string

	// LeaseTime is the service-wide default hold duration. Defaults to 30s.
	LeaseTime time.Duration
}

// DefaultConfig returns the configuration used for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr:      "127.0.0.1:6379",
		KeyPrefix: DefaultKeyPrefix,
		LeaseTime: defaultLeaseTime,
	}
}

// Dial creates a Redis connection from cfg and wraps it in a Client.
// Options are applied after the configuration.
func Dial(cfg Config, opts ...ClientOption) *Client {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.LeaseTime <= 0 {
		cfg.LeaseTime = def.LeaseTime
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	base := []ClientOption{
		WithKeyPrefix(cfg.KeyPrefix),
		WithDefaultLeaseTime(cfg.LeaseTime),
	}
	return NewClient(rdb, append(base, opts...)...)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}
