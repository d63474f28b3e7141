package arbiter

import (
	"testing"
	"time"
)

func TestLockOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		expected LockOptions
	}{
		{
			name: "default options",
			opts: []Option{},
			expected: LockOptions{
				LeaseTime:       30 * time.Second,
				RetryInterval:   100 * time.Millisecond,
				EnableWatchDog:  false,
				WatchDogTimeout: 30 * time.Second,
				WaiterTimeout:   5 * time.Second,
			},
		},
		{
			name: "custom lease time",
			opts: []Option{
				WithLeaseTime(10 * time.Second),
			},
			expected: LockOptions{
				LeaseTime:       10 * time.Second,
				RetryInterval:   100 * time.Millisecond,
				EnableWatchDog:  false,
				WatchDogTimeout: 30 * time.Second,
				WaiterTimeout:   5 * time.Second,
			},
		},
		{
			name: "enable watchdog",
			opts: []Option{
				WithWatchDog(true),
				WithWatchDogTimeout(20 * time.Second),
			},
			expected: LockOptions{
				LeaseTime:       30 * time.Second,
				RetryInterval:   100 * time.Millisecond,
				EnableWatchDog:  true,
				WatchDogTimeout: 20 * time.Second,
				WaiterTimeout:   5 * time.Second,
			},
		},
		{
			name: "multiple options",
			opts: []Option{
				WithRetryInterval(50 * time.Millisecond),
				WithLeaseTime(10 * time.Second),
				WithWatchDog(true),
				WithWatchDogTimeout(20 * time.Second),
				WithWaiterTimeout(time.Second),
			},
			expected: LockOptions{
				LeaseTime:       10 * time.Second,
				RetryInterval:   50 * time.Millisecond,
				EnableWatchDog:  true,
				WatchDogTimeout: 20 * time.Second,
				WaiterTimeout:   time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := defaultOptions()
			for _, opt := range tt.opts {
				opt(options)
			}

			if *options != tt.expected {
				t.Errorf("options = %+v, want %+v", *options, tt.expected)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	client := NewClient(nil,
		WithLogger(&NoopLogger{}),
		WithDefaultLeaseTime(time.Minute),
		WithLockOptions(WithRetryInterval(time.Second)),
	)

	if client.LeaseTime() != time.Minute {
		t.Errorf("LeaseTime() = %v, want 1m", client.LeaseTime())
	}
	if client.keyPrefix != DefaultKeyPrefix {
		t.Errorf("keyPrefix = %q, want %q", client.keyPrefix, DefaultKeyPrefix)
	}

	options := client.options([]Option{WithLeaseTime(5 * time.Second)})
	if options.LeaseTime != 5*time.Second {
		t.Errorf("LeaseTime = %v, want 5s", options.LeaseTime)
	}
	if options.WatchDogTimeout != time.Minute {
		t.Errorf("WatchDogTimeout = %v, want 1m", options.WatchDogTimeout)
	}
	if options.RetryInterval != time.Second {
		t.Errorf("RetryInterval = %v, want 1s", options.RetryInterval)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr != "127.0.0.1:6379" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.KeyPrefix != DefaultKeyPrefix {
		t.Errorf("KeyPrefix = %q", cfg.KeyPrefix)
	}
	if cfg.LeaseTime != 30*time.Second {
		t.Errorf("LeaseTime = %v", cfg.LeaseTime)
	}
}
