package metrics

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Tracer starts spans around key generation, exchange and message
// operations. Backends plug in behind this interface.
type Tracer interface {
	// StartSpan starts a span and returns a context carrying it.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span. A non-nil error marks it failed.
type SpanEnder func(err error)

// SpanOption configures span behavior.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]interface{}
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{kind: SpanKindInternal, attributes: make(map[string]interface{})}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// SpanKind identifies the type of span.
type SpanKind int

// Span kinds. API handlers start server spans; everything below them is
// internal.
const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithAttributes adds span attributes. Repeated options merge, later keys
// winning.
func WithAttributes(attrs map[string]interface{}) SpanOption {
	return func(c *spanConfig) {
		for k, v := range attrs {
			c.attributes[k] = v
		}
	}
}

// NoOpTracer discards every span. It is the global default.
type NoOpTracer struct{}

// StartSpan returns ctx unchanged.
func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// DefaultSpanLimit is how many finished spans a SimpleTracer keeps.
const DefaultSpanLimit = 4096

// SimpleTracer keeps finished spans in memory, dropping the oldest once
// the limit is reached. It backs --tracing when no OpenTelemetry exporter
// is built in, and the tests.
type SimpleTracer struct {
	mu      sync.Mutex
	spans   []RecordedSpan
	limit   int
	dropped uint64
}

// RecordedSpan is a finished span.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Kind       SpanKind
	Attributes map[string]interface{}
	Error      error
	TraceID    string
	SpanID     string
	ParentID   string
}

// NewSimpleTracer returns a tracer holding up to DefaultSpanLimit spans.
func NewSimpleTracer() *SimpleTracer {
	return NewSimpleTracerWithLimit(DefaultSpanLimit)
}

// NewSimpleTracerWithLimit returns a tracer holding up to limit spans;
// limit <= 0 means unbounded.
func NewSimpleTracerWithLimit(limit int) *SimpleTracer {
	return &SimpleTracer{limit: limit}
}

// StartSpan starts a span, parented to the span in ctx if there is one.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)

	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Kind:       cfg.kind,
		Attributes: cfg.attributes,
		SpanID:     generateID(),
	}
	if parent := spanFromContext(ctx); parent != nil {
		span.ParentID = parent.SpanID
		span.TraceID = parent.TraceID
	} else {
		span.TraceID = generateID()
	}

	return contextWithSpan(ctx, span), func(err error) {
		span.EndTime = time.Now()
		span.Duration = span.EndTime.Sub(span.StartTime)
		span.Error = err
		t.record(*span)
	}
}

func (t *SimpleTracer) record(span RecordedSpan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && len(t.spans) >= t.limit {
		n := copy(t.spans, t.spans[1:])
		t.spans = t.spans[:n]
		t.dropped++
	}
	t.spans = append(t.spans, span)
}

// Spans returns a copy of the recorded spans, oldest first.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedSpan, len(t.spans))
	copy(out, t.spans)
	return out
}

// Named returns the recorded spans called name.
func (t *SimpleTracer) Named(name string) []RecordedSpan {
	var out []RecordedSpan
	for _, s := range t.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Dropped reports how many spans were evicted by the limit.
func (t *SimpleTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Reset clears all recorded spans.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
	t.dropped = 0
}

// --- Context helpers ---

type spanContextKey struct{}

func contextWithSpan(ctx context.Context, span *RecordedSpan) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

func spanFromContext(ctx context.Context) *RecordedSpan {
	if span, ok := ctx.Value(spanContextKey{}).(*RecordedSpan); ok {
		return span
	}
	return nil
}

var spanSeq atomic.Uint64

// generateID returns a process-unique span ID.
func generateID() string {
	return strconv.FormatUint(spanSeq.Add(1), 16)
}

// --- Global Tracer ---

var (
	globalTracer   Tracer = NoOpTracer{}
	globalTracerMu sync.RWMutex
)

// SetTracer sets the global tracer.
func SetTracer(t Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer.
func GetTracer() Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// StartSpan starts a span using the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}

// --- Span Names ---

// Standard span names for key exchange and message operations.
const (
	SpanKeyGen      = "vault.kex.keygen"
	SpanEncapsulate = "vault.kex.encapsulate"
	SpanDecapsulate = "vault.kex.decapsulate"
	SpanExchange    = "vault.session.exchange"
	SpanEncrypt     = "vault.encrypt"
	SpanDecrypt     = "vault.decrypt"
	SpanSelfTest    = "vault.selftest"
)

// SpanAttributes for common key exchange operations.
type SpanAttributes struct {
	SessionID   string
	Algorithm   string
	CipherSuite string
	KeySize     int
	Ciphertext  int
	MessageSize int
	Error       string
}

// ToMap converts SpanAttributes to a generic map for use with tracers.
func (a SpanAttributes) ToMap() map[string]interface{} {
	m := make(map[string]interface{})
	if a.SessionID != "" {
		m["session.id"] = a.SessionID
	}
	if a.Algorithm != "" {
		m["kex.algorithm"] = a.Algorithm
	}
	if a.CipherSuite != "" {
		m["crypto.cipher_suite"] = a.CipherSuite
	}
	if a.KeySize > 0 {
		m["kex.public_key_bytes"] = a.KeySize
	}
	if a.Ciphertext > 0 {
		m["kex.ciphertext_bytes"] = a.Ciphertext
	}
	if a.MessageSize > 0 {
		m["message.bytes"] = a.MessageSize
	}
	if a.Error != "" {
		m["error.message"] = a.Error
	}
	return m
}
