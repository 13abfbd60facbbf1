//go:build !otel
// +build !otel

package metrics

import "context"

// OTelTracer stands in for the OpenTelemetry exporter in builds without
// -tags otel. Its spans are discarded.
type OTelTracer struct{}

// NewOTelTracer returns the stand-in tracer.
func NewOTelTracer(string) *OTelTracer { return &OTelTracer{} }

// StartSpan discards the span.
func (*OTelTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// OTelEnabled reports whether the binary was built with -tags otel.
func OTelEnabled() bool { return false }
