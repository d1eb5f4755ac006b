// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Services depend on the Tracer interface; NewNoop serves tests and
// OTelTracer adapts the global OpenTelemetry provider.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a span attribute. Constructors below are the only way to
// build one, so every value has a type the exporter understands.
type Attribute struct {
	kv attribute.KeyValue
}

func (a Attribute) Key() string { return string(a.kv.Key) }

// Value returns the attribute value as a Go value.
func (a Attribute) Value() any { return a.kv.Value.AsInterface() }

func String(key, value string) Attribute {
	return Attribute{attribute.String(key, value)}
}

func Bool(key string, value bool) Attribute {
	return Attribute{attribute.Bool(key, value)}
}

func Int64(key string, value int64) Attribute {
	return Attribute{attribute.Int64(key, value)}
}

func Float64(key string, value float64) Attribute {
	return Attribute{attribute.Float64(key, value)}
}

func Strings(key string, values []string) Attribute {
	return Attribute{attribute.StringSlice(key, values)}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Int64(key, value.Milliseconds())
}

// Span names.
const (
	SpanGenerate = "credential.generate"
	SpanBatch    = "credential.generate_batch"
	SpanProve    = "credential.prove"
	SpanVerify   = "credential.verify"
	SpanRevoke   = "credential.revoke"
)

// Attribute keys.
const (
	AttrCredentialType = "credential.type"
	AttrCredentialID   = "credential.id"
	AttrStatus         = "credential.status"
	AttrBatchSize      = "batch.size"
	AttrEpsilon        = "privacy.epsilon"
	AttrPrivacyLevel   = "privacy.level"
	AttrTrustScore     = "verification.trust_score"
	AttrProofBytes     = "proof.size_bytes"
	AttrRequestID      = "http.request_id"
)

// Event names.
const (
	EventBudgetReleased = "privacy.budget_released"
	EventAuditEmitted   = "audit.emitted"
)
