package guard

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/huimingz/arbiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/huimingz/arbiter/guard"

// Guard runs operations under the locks their declarations describe.
type Guard struct {
	service      LockService
	evaluator    Evaluator
	logger       arbiter.Logger
	metrics      *metrics
	traceEnabled bool
	tracer       trace.Tracer
}

// Option is a function type for setting guard options
type Option func(*Guard)

// WithEvaluator replaces the key expression evaluator.
func WithEvaluator(evaluator Evaluator) Option {
	return func(g *Guard) {
		g.evaluator = evaluator
	}
}

// WithLogger sets the logger for the guard
func WithLogger(logger arbiter.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(g *Guard) {
		g.metrics = newMetrics(reg)
	}
}

// WithTracing records a span for every guarded call with the global
// tracer provider.
func WithTracing() Option {
	return func(g *Guard) {
		g.traceEnabled = true
	}
}

// New returns a Guard taking its locks from service.
func New(service LockService, opts ...Option) *Guard {
	g := &Guard{
		service:   service,
		evaluator: ExprEvaluator{},
		logger: arbiter.NewZerologLogger(
			zerolog.New(os.Stderr).With().Timestamp().Str("component", "guard").Logger().Level(zerolog.InfoLevel),
		),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.traceEnabled {
		g.tracer = otel.Tracer(tracerName)
	}
	return g
}

// Plan is the lock a declaration resolves to for one call.
type Plan struct {
	// Model is the effective model. A reentrant declaration whose key
	// resolves to several identifiers is promoted to ModelQuorum.
	Model Model
	// Keys are the identifiers being locked, in resolution order.
	Keys []string
	// Handle is the composed lock; it is not acquired yet.
	Handle arbiter.Lock
}

// Plan resolves the declaration against the call and builds the lock
// handle without acquiring it.
func (g *Guard) Plan(ctx context.Context, decl Declaration, call CallContext) (*Plan, error) {
	model, err := selectModel(decl.Model, len(decl.Keys))
	if err != nil {
		return nil, err
	}
	top, err := topologyOf(model)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, expression := range decl.Keys {
		resolved, err := resolve(g.evaluator, expression, call, decl.KeyClass)
		if err != nil {
			return nil, err
		}
		ids = append(ids, resolved...)
	}
	g.logger.Debug(ctx, "lock keys %v resolved to %v", decl.Keys, ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: keys %v resolved to no identifiers", ErrConfiguration, decl.Keys)
	}

	accepted := top.accept(ids)
	if len(accepted) < len(ids) {
		g.logger.Warn(ctx, "lock model %s locks only %s, ignoring %v", model, accepted[0], ids[len(accepted):])
	}

	effective, handle := top.build(g.service, accepted)
	return &Plan{Model: effective, Keys: accepted, Handle: handle}, nil
}

// Do runs fn while holding the lock described by decl. fn runs only once the
// lock is acquired and its error is returned unchanged. The lock is released
// on every exit from fn, panics included.
func (g *Guard) Do(ctx context.Context, decl Declaration, call CallContext, fn func(ctx context.Context) error) (err error) {
	var span trace.Span
	if g.traceEnabled {
		ctx, span = g.tracer.Start(ctx, "Guard.Do")
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}

	plan, err := g.Plan(ctx, decl, call)
	if err != nil {
		return err
	}

	lease := decl.LeaseTime
	if lease <= 0 {
		lease = g.service.LeaseTime()
	}
	g.logger.Info(ctx, "lock model %s, wait %v, hold %v", plan.Model, decl.AttemptTimeout, lease)

	acquired, err := acquire(ctx, plan.Handle, decl.AttemptTimeout, lease)
	g.metrics.observeAcquire(plan.Model, acquired, err)
	if span != nil {
		span.SetAttributes(
			attribute.String("arbiter.lock.model", plan.Model.String()),
			attribute.StringSlice("arbiter.lock.keys", plan.Keys),
			attribute.Bool("arbiter.lock.acquired", acquired),
		)
	}
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrLockAcquisition, plan.Handle.Name(), err)
	}
	if !acquired {
		return fmt.Errorf("%w %s within %v", ErrLockAcquisition, plan.Handle.Name(), decl.AttemptTimeout)
	}

	start := time.Now()
	defer func() {
		// Release even when the caller's context is already done
		releaseErr := plan.Handle.Unlock(context.WithoutCancel(ctx))
		g.metrics.observeHold(plan.Model, time.Since(start))
		if releaseErr == nil {
			return
		}
		g.logger.Error(ctx, "failed to release lock %s: %v", plan.Handle.Name(), releaseErr)
		if err == nil {
			err = fmt.Errorf("%w %s: %w", ErrLockRelease, plan.Handle.Name(), releaseErr)
		}
	}()

	return fn(ctx)
}

// acquire makes the single acquisition attempt of a guarded call.
func acquire(ctx context.Context, handle arbiter.Lock, wait, lease time.Duration) (bool, error) {
	if wait < 0 {
		if err := handle.Lock(ctx, lease); err != nil {
			return false, err
		}
		return true, nil
	}
	return handle.TryLock(ctx, wait, lease)
}

// Wrap returns fn guarded by decl. The returned function resolves the lock
// keys from the CallContext it is called with.
func (g *Guard) Wrap(decl Declaration, fn func(ctx context.Context, call CallContext) error) func(context.Context, CallContext) error {
	return func(ctx context.Context, call CallContext) error {
		return g.Do(ctx, decl, call, func(ctx context.Context) error {
			return fn(ctx, call)
		})
	}
}

// Run is Do for operations returning a value. The value fn returns is passed
// through even when fn fails.
func Run[T any](ctx context.Context, g *Guard, decl Declaration, call CallContext, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, decl, call, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
