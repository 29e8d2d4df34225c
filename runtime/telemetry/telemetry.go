// Package telemetry defines the observability contracts used across the
// supervision runtime: structured logging, metrics, and tracing. Adapters for
// goa.design/clue and OpenTelemetry live beside no-op defaults so components
// can always hold a non-nil implementation.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
)

type (
	// Logger emits structured log messages with alternating key/value pairs.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers with alternating tag key/value
	// strings.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}

	// Tracer starts spans around supervised operations.
	Tracer interface {
		// Start opens a span with the given name, returning the derived
		// context and the span handle.
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is the minimal span surface the runtime needs.
	Span interface {
		End()
		RecordError(err error)
		SetStatus(code codes.Code, description string)
	}
)
