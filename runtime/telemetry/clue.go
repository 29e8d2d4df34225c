package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log. Formatting and debug
	// settings come from the context (set via log.Context, log.WithFormat,
	// log.WithDebug).
	ClueLogger struct{}

	// OtelMetrics records through the global OTEL MeterProvider. Configure
	// the provider before invoking runtime methods (typically via
	// clue.ConfigureOpenTelemetry).
	OtelMetrics struct {
		meter metric.Meter
	}

	// OtelTracer starts spans through the global OTEL TracerProvider.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

const scope = "github.com/agentwarden/warden/runtime"

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger {
	return ClueLogger{}
}

// NewOtelMetrics constructs a Metrics recorder backed by OTEL metrics.
func NewOtelMetrics() Metrics {
	return &OtelMetrics{meter: otel.Meter(scope)}
}

// NewOtelTracer constructs a Tracer backed by OTEL tracing.
func NewOtelTracer() Tracer {
	return &OtelTracer{tracer: otel.Tracer(scope)}
}

// Debug emits a debug-level log message.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

// Info emits an info-level log message.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

// Warn emits a warning-level log message.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fielders(msg, keyvals)...)
}

// Error emits an error-level log message.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fielders(msg, keyvals)...)
}

// IncCounter increments a counter metric by the given value.
func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

// RecordTimer records a duration histogram metric in seconds.
func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagAttrs(tags)...))
}

// Start opens a span with the given name.
func (t *OtelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name)
	return newCtx, &otelSpan{span: span}
}

// End finalizes the span.
func (s *otelSpan) End() {
	s.span.End()
}

// RecordError records an error event on the span.
func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the span status code and description.
func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// fielders converts a message plus alternating key/value pairs into Clue
// fielders. Non-string keys are skipped; a trailing unpaired key maps to nil.
func fielders(msg string, keyvals []any) []log.Fielder {
	out := []log.Fielder{log.KV{K: "msg", V: msg}}
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		out = append(out, log.KV{K: k, V: v})
	}
	return out
}

// tagAttrs converts alternating tag strings into OTEL attributes. A trailing
// unpaired key maps to an empty value.
func tagAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}
