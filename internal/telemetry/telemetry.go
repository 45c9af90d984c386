// Package telemetry provides small logging/metrics/tracing interfaces used
// throughout the service so call sites never import a concrete observability
// library directly. Production wiring uses the Clue/OTEL-backed
// implementation; tests and local tooling use the no-op implementation.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured log messages. keyvals is an alternating list of
	// string keys and arbitrary values, following the convention used across
	// the codebase's structured logging call sites.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges. tags is an alternating
	// list of string dimension names and values.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer creates and retrieves spans.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is a single unit of tracing work.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)

type mergedContextKey struct{}

// MergeContext stores base on ctx under a package-private key, from which
// fromMerged returns it. ctx.Value lookups are not forwarded to base, and
// ctx's own deadline and cancellation are unchanged.
func MergeContext(ctx, base context.Context) context.Context {
	if base == nil {
		return ctx
	}
	return context.WithValue(ctx, mergedContextKey{}, base)
}

// fromMerged returns the context stored by MergeContext, if any.
func fromMerged(ctx context.Context) (context.Context, bool) {
	v := ctx.Value(mergedContextKey{})
	base, ok := v.(context.Context)
	return base, ok
}
