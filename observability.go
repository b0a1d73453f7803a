package dux

import (
	"context"
	"time"
)

// Observability receives hooks around dispatches, reducers, and
// effect handlers. Implementations must be safe for concurrent use;
// dispatch and reducer hooks run under the dispatch lock while effect
// hooks run on effect goroutines.
//
// The otel subpackage provides an OpenTelemetry implementation.
type Observability interface {
	// OnDispatchStart is called when a dispatch begins, before any
	// reducer runs. The returned context is threaded through the
	// remaining hooks for this dispatch.
	OnDispatchStart(ctx context.Context, kind, dispatchID string) context.Context

	// OnDispatchComplete is called after all reducers ran and all
	// watchers were notified.
	OnDispatchComplete(ctx context.Context, kind string, duration time.Duration)

	// OnReducerStart is called before a slice's reducers run for an
	// action. The returned context is passed to OnReducerComplete.
	OnReducerStart(ctx context.Context, slice, kind string) context.Context

	// OnReducerComplete is called after a slice's reducers ran.
	// changed reports whether the slice value was replaced.
	OnReducerComplete(ctx context.Context, duration time.Duration, changed bool)

	// OnEffectStart is called when an effect handler invocation
	// starts. The returned context is passed to OnEffectComplete.
	OnEffectStart(ctx context.Context, kind string) context.Context

	// OnEffectComplete is called when an effect handler invocation
	// finishes. err is the handler's terminal error, nil on success.
	OnEffectComplete(ctx context.Context, duration time.Duration, err error)
}
