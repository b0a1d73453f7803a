package otel

import (
	"context"
	"time"

	"github.com/jilio/dux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jilio/dux"
)

// Observability implements dux.Observability using OpenTelemetry
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	dispatchCounter  metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	reducerCounter   metric.Int64Counter
	reducerDuration  metric.Float64Histogram
	effectCounter    metric.Int64Counter
	effectDuration   metric.Float64Histogram
	effectErrors     metric.Int64Counter
}

// Option configures the Observability
type Option func(*Observability)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observability) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observability) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates a new OpenTelemetry observability implementation
func New(opts ...Option) (*Observability, error) {
	obs := &Observability{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	// Apply options
	for _, opt := range opts {
		opt(obs)
	}

	// Initialize metrics
	var err error

	obs.dispatchCounter, err = obs.meter.Int64Counter(
		"dux.dispatch.count",
		metric.WithDescription("Number of actions dispatched"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	obs.dispatchDuration, err = obs.meter.Float64Histogram(
		"dux.dispatch.duration",
		metric.WithDescription("Dispatch duration, reducers and watcher notification included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.reducerCounter, err = obs.meter.Int64Counter(
		"dux.reducer.count",
		metric.WithDescription("Number of slice reductions"),
		metric.WithUnit("{reduction}"),
	)
	if err != nil {
		return nil, err
	}

	obs.reducerDuration, err = obs.meter.Float64Histogram(
		"dux.reducer.duration",
		metric.WithDescription("Slice reduction duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectCounter, err = obs.meter.Int64Counter(
		"dux.effect.count",
		metric.WithDescription("Number of effect handler invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectDuration, err = obs.meter.Float64Histogram(
		"dux.effect.duration",
		metric.WithDescription("Effect handler invocation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectErrors, err = obs.meter.Int64Counter(
		"dux.effect.errors",
		metric.WithDescription("Number of effect handler errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// OnDispatchStart is called when a dispatch begins
func (o *Observability) OnDispatchStart(ctx context.Context, kind, dispatchID string) context.Context {
	// Start a span for the dispatch
	ctx, _ = o.tracer.Start(ctx, "dux.dispatch: "+kind,
		trace.WithAttributes(
			attribute.String("action.kind", kind),
			attribute.String("dispatch.id", dispatchID),
		),
	)

	// Increment dispatch counter
	o.dispatchCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.kind", kind),
		),
	)

	return ctx
}

// OnDispatchComplete is called after all reducers ran and watchers were notified
func (o *Observability) OnDispatchComplete(ctx context.Context, kind string, duration time.Duration) {
	durationMs := float64(duration.Microseconds()) / 1000.0
	o.dispatchDuration.Record(ctx, durationMs,
		metric.WithAttributes(
			attribute.String("action.kind", kind),
		),
	)

	// End the dispatch span
	span := trace.SpanFromContext(ctx)
	span.End()
}

// OnReducerStart is called before a slice's reducers run for an action
func (o *Observability) OnReducerStart(ctx context.Context, slice, kind string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "dux.reduce: "+slice,
		trace.WithAttributes(
			attribute.String("slice.name", slice),
			attribute.String("action.kind", kind),
		),
	)

	o.reducerCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("slice.name", slice),
			attribute.String("action.kind", kind),
		),
	)

	return ctx
}

// OnReducerComplete is called after a slice's reducers ran
func (o *Observability) OnReducerComplete(ctx context.Context, duration time.Duration, changed bool) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("slice.changed", changed))

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.reducerDuration.Record(ctx, durationMs,
		metric.WithAttributes(
			attribute.Bool("slice.changed", changed),
		),
	)

	span.End()
}

// OnEffectStart is called when an effect handler invocation starts
func (o *Observability) OnEffectStart(ctx context.Context, kind string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "dux.effect: "+kind,
		trace.WithAttributes(
			attribute.String("action.kind", kind),
		),
	)

	o.effectCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.kind", kind),
		),
	)

	return ctx
}

// OnEffectComplete is called when an effect handler invocation finishes
func (o *Observability) OnEffectComplete(ctx context.Context, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.effectDuration.Record(ctx, durationMs)

	// Handle errors
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.effectErrors.Add(ctx, 1)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// Ensure Observability implements dux.Observability
var _ dux.Observability = (*Observability)(nil)
