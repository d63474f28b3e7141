package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/huimingz/arbiter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T) (*miniredis.Miniredis, *Guard) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := arbiter.NewClient(rdb,
		arbiter.WithLogger(&arbiter.NoopLogger{}),
		arbiter.WithLockOptions(arbiter.WithRetryInterval(5*time.Millisecond)),
	)
	return mr, newTestGuard(client)
}

func TestRedisMutualExclusion(t *testing.T) {
	_, g := newRedisGuard(t)
	decl := Declare(WithKeys("#orderId"), WithKeyClass("order"), WithAttemptTimeout(WaitForever))

	var active, maxActive, total int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), decl, CallContext{Arg("orderId", 42)}, func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&total, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, int32(8), total)
}

func TestRedisScenarios(t *testing.T) {
	mr, g := newRedisGuard(t)
	ctx := context.Background()

	t.Run("order lock", func(t *testing.T) {
		decl := Declare(
			WithKeys("#orderId"),
			WithKeyClass("order"),
			WithAttemptTimeout(50*time.Millisecond),
			WithLeaseTime(30*time.Second),
		)
		err := g.Do(ctx, decl, CallContext{Arg("orderId", 42)}, func(ctx context.Context) error {
			assert.True(t, mr.Exists(arbiter.DefaultKeyPrefix+"order@42"))
			assert.Equal(t, 30*time.Second, mr.TTL(arbiter.DefaultKeyPrefix+"order@42"))

			// a competing call gives up after its wait window
			inner := g.Do(ctx, decl, CallContext{Arg("orderId", 42)}, func(ctx context.Context) error {
				t.Error("competing call must not run")
				return nil
			})
			assert.ErrorIs(t, inner, ErrLockAcquisition)
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"order@42"))
	})

	t.Run("promoted quorum tolerates a minority", func(t *testing.T) {
		blocker := arbiter.NewClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), arbiter.WithLogger(&arbiter.NoopLogger{})).NewLock("item@3")
		require.NoError(t, blocker.Lock(ctx, 0))
		defer blocker.Unlock(ctx)

		decl := Declare(WithKeys("#ids"), WithKeyClass("item"), WithAttemptTimeout(30*time.Millisecond))
		ran := false
		err := g.Do(ctx, decl, CallContext{Arg("ids", []int{1, 2, 3})}, func(ctx context.Context) error {
			ran = true
			assert.True(t, mr.Exists(arbiter.DefaultKeyPrefix+"item@1"))
			assert.True(t, mr.Exists(arbiter.DefaultKeyPrefix+"item@2"))
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"item@1"))
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"item@2"))
		assert.True(t, mr.Exists(arbiter.DefaultKeyPrefix+"item@3"))
	})

	t.Run("multiple releases partial acquisition", func(t *testing.T) {
		blocker := arbiter.NewClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), arbiter.WithLogger(&arbiter.NoopLogger{})).NewLock("sku@c")
		require.NoError(t, blocker.Lock(ctx, 0))
		defer blocker.Unlock(ctx)

		decl := Declare(WithModel(ModelMultiple), WithKeys("#a", "#b"), WithKeyClass("sku"), WithAttemptTimeout(20*time.Millisecond))
		err := g.Do(ctx, decl, CallContext{Arg("a", []string{"a", "b"}), Arg("b", "c")}, func(ctx context.Context) error {
			t.Error("operation must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrLockAcquisition)
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"sku@a"))
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"sku@b"))
	})

	t.Run("repeated identifiers re-enter", func(t *testing.T) {
		tests := []struct {
			name string
			decl Declaration
			call CallContext
			key  string
		}{
			{
				name: "multiple with equal arguments",
				decl: Declare(WithModel(ModelMultiple), WithKeys("#from", "#to"), WithKeyClass("acct"), WithAttemptTimeout(200*time.Millisecond)),
				call: CallContext{Arg("from", 7), Arg("to", 7)},
				key:  "acct@7",
			},
			{
				name: "promoted quorum with a duplicate element",
				decl: Declare(WithKeys("#ids"), WithKeyClass("item"), WithAttemptTimeout(200*time.Millisecond)),
				call: CallContext{Arg("ids", []int{9, 9})},
				key:  "item@9",
			},
			{
				name: "multiple waiting forever",
				decl: Declare(WithModel(ModelMultiple), WithKeys("#from", "#to"), WithKeyClass("acct"), WithAttemptTimeout(WaitForever)),
				call: CallContext{Arg("from", 8), Arg("to", 8)},
				key:  "acct@8",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()

				ran := false
				err := g.Do(ctx, tt.decl, tt.call, func(ctx context.Context) error {
					ran = true
					assert.True(t, mr.Exists(arbiter.DefaultKeyPrefix+tt.key))
					return nil
				})
				require.NoError(t, err)
				assert.True(t, ran)
				assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+tt.key))
			})
		}
	})

	t.Run("readers share, writer excludes", func(t *testing.T) {
		read := Declare(WithModel(ModelRead), WithKeys("#docId"), WithKeyClass("doc"), WithAttemptTimeout(0))
		write := Declare(WithModel(ModelWrite), WithKeys("#docId"), WithKeyClass("doc"), WithAttemptTimeout(0))
		call := CallContext{Arg("docId", 7)}

		err := g.Do(ctx, read, call, func(ctx context.Context) error {
			require.NoError(t, g.Do(ctx, read, call, func(ctx context.Context) error { return nil }))
			assert.ErrorIs(t, g.Do(ctx, write, call, func(ctx context.Context) error { return nil }), ErrLockAcquisition)
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists(arbiter.DefaultKeyPrefix+"doc@7"))
	})
}
