// Package tracing wires an in-process OpenTelemetry tracer for the chat
// orchestrator: every LLM call, tool call, and delegated sub-agent run
// becomes a span, captured by a bounded in-memory collector so recent
// traces can be inspected without standing up an external collector.
package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SpanRecord is a completed span's shape, flattened for local inspection
// (a debug endpoint, a CLI "clara trace" subcommand, a log line) instead of
// an external trace backend.
type SpanRecord struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	StatusCode   string            `json:"status_code"`
	StatusMsg    string            `json:"status_message,omitempty"`
}

// Collector is an sdktrace.SpanProcessor that keeps the most recent N
// completed spans in memory rather than shipping them to an OTLP backend —
// this spec has no deployment/ops component defining a collector endpoint,
// so the export boundary stays local.
type Collector struct {
	mu    sync.Mutex
	limit int
	spans []SpanRecord
}

// NewCollector creates a collector retaining at most limit spans (oldest
// dropped first). limit<=0 means unlimited.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// OnStart implements sdktrace.SpanProcessor; spans are recorded on end, not
// start, so this is a no-op.
func (c *Collector) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd implements sdktrace.SpanProcessor, appending the finished span.
func (c *Collector) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := make(map[string]string, len(s.Attributes()))
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	rec := SpanRecord{
		TraceID:    s.SpanContext().TraceID().String(),
		SpanID:     s.SpanContext().SpanID().String(),
		Name:       s.Name(),
		StartTime:  s.StartTime(),
		EndTime:    s.EndTime(),
		Attributes: attrs,
		StatusCode: s.Status().Code.String(),
		StatusMsg:  s.Status().Description,
	}
	if s.Parent().IsValid() {
		rec.ParentSpanID = s.Parent().SpanID().String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, rec)
	if c.limit > 0 && len(c.spans) > c.limit {
		c.spans = c.spans[len(c.spans)-c.limit:]
	}
}

// Shutdown implements sdktrace.SpanProcessor.
func (c *Collector) Shutdown(context.Context) error { return nil }

// ForceFlush implements sdktrace.SpanProcessor.
func (c *Collector) ForceFlush(context.Context) error { return nil }

// Recent returns up to limit of the most recently completed spans,
// newest-last. limit<=0 returns everything retained.
func (c *Collector) Recent(limit int) []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 || limit >= len(c.spans) {
		out := make([]SpanRecord, len(c.spans))
		copy(out, c.spans)
		return out
	}
	out := make([]SpanRecord, limit)
	copy(out, c.spans[len(c.spans)-limit:])
	return out
}

// NewProvider builds a TracerProvider rooted at a Collector span processor
// and registers it as the global otel provider. Callers should defer
// Shutdown on the returned provider.
func NewProvider(serviceName string, collector *Collector) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(collector),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer is the package-wide tracer used by every span-emitting call site.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/nextlevelbuilder/clara/internal/agent")
}

// StringAttr is a small convenience wrapper so call sites don't need to
// import attribute directly for the common string-valued case.
func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// IntAttr mirrors StringAttr for integer-valued attributes.
func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
