//go:build otel
// +build otel

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer exports exchange spans through the global OpenTelemetry
// provider. Install a provider with otel.SetTracerProvider before use.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer returns a Tracer named after the service.
func NewOTelTracer(serviceName string) *OTelTracer {
	if serviceName == "" {
		serviceName = "quantum-vault"
	}
	return &OTelTracer{tracer: otel.Tracer(serviceName)}
}

// StartSpan starts an OpenTelemetry span. The returned SpanEnder marks the
// span failed when called with a non-nil error.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)

	start := []trace.SpanStartOption{trace.WithSpanKind(otelSpanKind(cfg.kind))}
	if len(cfg.attributes) > 0 {
		start = append(start, trace.WithAttributes(otelAttributes(cfg.attributes)...))
	}

	ctx, span := t.tracer.Start(ctx, name, start...)
	return ctx, func(err error) {
		if err == nil {
			span.SetStatus(codes.Ok, "")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// OTelEnabled reports whether the binary was built with -tags otel.
func OTelEnabled() bool { return true }

func otelSpanKind(kind SpanKind) trace.SpanKind {
	switch kind {
	case SpanKindServer:
		return trace.SpanKindServer
	case SpanKindClient:
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

// otelAttributes converts span attributes. Durations become milliseconds
// and byte slices their length, matching the units of ExchangeMetrics.
func otelAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		var kv attribute.KeyValue
		switch val := v.(type) {
		case string:
			kv = attribute.String(k, val)
		case fmt.Stringer:
			kv = attribute.String(k, val.String())
		case bool:
			kv = attribute.Bool(k, val)
		case int:
			kv = attribute.Int(k, val)
		case int64:
			kv = attribute.Int64(k, val)
		case uint64:
			kv = attribute.Int64(k, int64(val))
		case float64:
			kv = attribute.Float64(k, val)
		case time.Duration:
			kv = attribute.Float64(k+"_ms", float64(val.Microseconds())/1000)
		case []byte:
			kv = attribute.Int(k+"_bytes", len(val))
		default:
			kv = attribute.String(k, fmt.Sprint(val))
		}
		out = append(out, kv)
	}
	return out
}
