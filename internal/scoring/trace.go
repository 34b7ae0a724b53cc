package scoring

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type traceKey struct{}

// WithTraceID attaches a trace ID for decision events. Without it the
// active span's trace ID is used.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func traceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
