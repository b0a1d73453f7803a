package dux

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// EffectOption configures an effect handler.
type EffectOption func(*effectConfig)

type effectConfig struct {
	maxInFlight  int
	limit        rate.Limit
	burst        int
	maxTries     int
	retryInitial time.Duration
}

// WithMaxInFlight caps the number of concurrent invocations of one
// effect handler. Additional triggers wait for a running invocation
// to finish; none are dropped.
func WithMaxInFlight(n int) EffectOption {
	return func(c *effectConfig) {
		c.maxInFlight = n
	}
}

// WithRateLimit limits how often one effect handler may start, using
// a token bucket of the given rate and burst. Triggers over the limit
// wait for a token; none are dropped.
func WithRateLimit(limit rate.Limit, burst int) EffectOption {
	return func(c *effectConfig) {
		c.limit = limit
		c.burst = burst
	}
}

// WithRetry retries a failing EffectTask operation up to maxTries
// total attempts with exponential backoff between attempts. The
// failure action is dispatched only after the final attempt fails.
// Effect handlers registered with Effect ignore this option.
func WithRetry(maxTries int) EffectOption {
	return func(c *effectConfig) {
		c.maxTries = maxTries
	}
}

// WithRetryInterval sets the initial backoff interval for WithRetry.
func WithRetryInterval(d time.Duration) EffectOption {
	return func(c *effectConfig) {
		c.retryInitial = d
	}
}

// effectEntry is the store's type-erased view of a registered effect
// handler.
type effectEntry struct {
	run     func(ctx context.Context, action any)
	limiter *rate.Limiter
	sem     chan struct{}
}

// spawn starts one handler invocation on its own goroutine. Each
// trigger runs independently: overlapping invocations proceed
// concurrently and their results land in whatever order they
// complete (merge semantics).
func (e *effectEntry) spawn(s *Store, ctx context.Context, action any) {
	s.wg.Go(func() {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if e.sem != nil {
			select {
			case e.sem <- struct{}{}:
				defer func() { <-e.sem }()
			case <-ctx.Done():
				return
			}
		}
		e.run(ctx, action)
	})
}

// Effect registers fn to run for every dispatched action of type A.
// Each matching action starts fn on its own goroutine; the store
// never blocks on it. Panics are recovered, routed to the store's
// panic handler, and reported to observability as errors.
//
// fn typically performs an external operation and dispatches a
// follow-up action with the outcome. Use EffectTask when the
// operation has exactly one success and one failure follow-up.
func Effect[A any](s *Store, fn func(context.Context, A) error, opts ...EffectOption) {
	cfg := &effectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	entry := &effectEntry{}
	if cfg.limit > 0 {
		entry.limiter = rate.NewLimiter(cfg.limit, max(cfg.burst, 1))
	}
	if cfg.maxInFlight > 0 {
		entry.sem = make(chan struct{}, cfg.maxInFlight)
	}

	entry.run = func(ctx context.Context, action any) {
		kind := Kind(action)
		if s.obs != nil {
			ctx = s.obs.OnEffectStart(ctx, kind)
		}
		start := time.Now()

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.handlePanic(action, "effect:"+kind, r)
					err = fmt.Errorf("dux: effect panic: %v", r)
				}
			}()
			return fn(ctx, action.(A))
		}()

		if s.obs != nil {
			s.obs.OnEffectComplete(ctx, time.Since(start), err)
		}
	}

	s.registerEffect(typeOf[A](), entry)
}

// EffectTask registers an effect handler with exactly-one-follow-up
// semantics: for every dispatched A, run is invoked and exactly one
// of onSuccess or onFailure maps the outcome to a follow-up action,
// which is dispatched back into the store. Failures are never
// swallowed: a panic inside run counts as a failed attempt and ends
// up at onFailure like any error.
//
// A mapper may return nil to suppress the follow-up. A follow-up of
// the same type as the trigger is dropped to prevent dispatch loops.
func EffectTask[A, R any](
	s *Store,
	run func(context.Context, A) (R, error),
	onSuccess func(A, R) any,
	onFailure func(A, error) any,
	opts ...EffectOption,
) {
	cfg := &effectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	Effect(s, func(ctx context.Context, action A) error {
		result, err := runAttempts(ctx, cfg, run, action)

		var follow any
		if err != nil {
			follow = onFailure(action, err)
		} else {
			follow = onSuccess(action, result)
		}
		if follow == nil || reflect.TypeOf(follow) == typeOf[A]() {
			return err
		}
		DispatchContext(s, ctx, follow)
		return err
	}, opts...)
}

// runAttempts executes the operation, retrying with exponential
// backoff when configured. Panics are converted to errors per
// attempt so a retry can still recover from them.
func runAttempts[A, R any](ctx context.Context, cfg *effectConfig, run func(context.Context, A) (R, error), action A) (R, error) {
	attempt := func() (result R, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("dux: effect panic: %v", r)
			}
		}()
		return run(ctx, action)
	}

	maxTries := cfg.maxTries
	if maxTries < 1 {
		maxTries = 1
	}

	expo := backoff.NewExponentialBackOff()
	if cfg.retryInitial > 0 {
		expo.InitialInterval = cfg.retryInitial
	}

	var (
		result R
		err    error
	)
	for tries := 1; ; tries++ {
		result, err = attempt()
		if err == nil || tries >= maxTries {
			return result, err
		}
		sleep := expo.NextBackOff()
		if sleep == backoff.Stop {
			return result, err
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return result, err
		}
	}
}
