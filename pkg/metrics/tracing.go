package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracer starts spans around pipeline stages.
type Tracer interface {
	// StartSpan starts a span named name and returns a context carrying it
	// together with the function that ends it.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span. A non-nil error marks the span as failed.
type SpanEnder func(err error)

// SpanOption configures span behavior.
type SpanOption func(*spanConfig)

type spanConfig struct {
	attributes map[string]any
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{attributes: make(map[string]any)}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAttributes adds span attributes.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(c *spanConfig) {
		for k, v := range attrs {
			c.attributes[k] = v
		}
	}
}

// --- NoOp Tracer ---

// NoOpTracer is a tracer that does nothing.
type NoOpTracer struct{}

// StartSpan returns the context unchanged and a no-op end function.
func (NoOpTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// --- Simple Tracer ---

// SimpleTracer records finished spans in memory. Used by tests and by the
// CLI's --trace flag to print a stage timeline.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

// RecordedSpan represents a completed span.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Attributes map[string]any
	Error      error
	TraceID    string
	SpanID     string
	ParentID   string
}

// NewSimpleTracer creates a new SimpleTracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

// StartSpan starts a new span, inheriting the trace of any parent span in ctx.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)

	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: cfg.attributes,
		SpanID:     uuid.NewString(),
	}
	if parent := spanFromContext(ctx); parent != nil {
		span.ParentID = parent.SpanID
		span.TraceID = parent.TraceID
	} else {
		span.TraceID = uuid.NewString()
	}

	ctx = context.WithValue(ctx, spanContextKey{}, span)

	var once sync.Once
	return ctx, func(err error) {
		once.Do(func() {
			span.EndTime = time.Now()
			span.Duration = span.EndTime.Sub(span.StartTime)
			span.Error = err

			t.mu.Lock()
			t.spans = append(t.spans, *span)
			t.mu.Unlock()
		})
	}
}

// Spans returns all recorded spans in completion order.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]RecordedSpan, len(t.spans))
	copy(result, t.spans)
	return result
}

// Reset clears all recorded spans.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

type spanContextKey struct{}

func spanFromContext(ctx context.Context) *RecordedSpan {
	if span, ok := ctx.Value(spanContextKey{}).(*RecordedSpan); ok {
		return span
	}
	return nil
}

// --- Span Names ---

// Span names for pipeline operations.
const (
	SpanRun      = "qals.run"
	SpanSearch   = "qals.search"
	SpanNoise    = "qals.search.noise"
	SpanBaseline = "qals.baseline"
	SpanChannel  = "qals.channel"
	SpanAssess   = "qals.policy.assess"
	SpanSelect   = "qals.policy.select"
	SpanDerive   = "qals.keys.derive"
	SpanEncrypt  = "qals.store.encrypt"
	SpanDecrypt  = "qals.store.decrypt"
)

// SpanAttributes for common pipeline operations.
type SpanAttributes struct {
	RunID       string
	ThreatLevel string
	Records     int
	KeyBits     int
	Bytes       int
	Error       string
}

// ToMap converts SpanAttributes to a generic map for use with tracers.
func (a SpanAttributes) ToMap() map[string]any {
	m := make(map[string]any)
	if a.RunID != "" {
		m["run.id"] = a.RunID
	}
	if a.ThreatLevel != "" {
		m["policy.threat_level"] = a.ThreatLevel
	}
	if a.Records > 0 {
		m["dataset.records"] = a.Records
	}
	if a.KeyBits > 0 {
		m["keys.secure_bits"] = a.KeyBits
	}
	if a.Bytes > 0 {
		m["store.bytes"] = a.Bytes
	}
	if a.Error != "" {
		m["error.message"] = a.Error
	}
	return m
}
