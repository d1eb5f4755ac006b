package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"devcred/internal/platform/tracer"
	"devcred/pkg/platform/middleware/request"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanGenerate, tracer.String(tracer.AttrCredentialType, "repository"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Bool("flag", true))
	span.AddEvent(tracer.EventAuditEmitted, tracer.Int64("count", 1))
	span.End(errors.New("ignored"))
}

func TestOTelTracerRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := tracer.NewOTel(tracer.WithOTelTracer(provider.Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanVerify,
		tracer.String(tracer.AttrCredentialID, "cred_1"),
		tracer.Float64(tracer.AttrTrustScore, 87.5),
		tracer.Attribute{},
	)
	span.AddEvent(tracer.EventBudgetReleased, tracer.Float64(tracer.AttrEpsilon, 0.5))
	span.End(errors.New("proof rejected"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, tracer.SpanVerify, got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "proof rejected", got.Status().Description)
	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String(tracer.AttrCredentialID, "cred_1"),
		attribute.Float64(tracer.AttrTrustScore, 87.5),
	}, got.Attributes())

	var names []string
	for _, e := range got.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, tracer.EventBudgetReleased)
}

func TestDurationIsMilliseconds(t *testing.T) {
	a := tracer.Duration("latency", 1500_000_000)
	assert.Equal(t, "latency", a.Key())
	assert.Equal(t, int64(1500), a.Value())
}

func TestOTelTracerTagsRequestID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := tracer.NewOTel(tracer.WithOTelTracer(provider.Tracer("test")))

	ctx := request.WithRequestID(context.Background(), "req-42")
	_, span := tr.Start(ctx, tracer.SpanGenerate)
	span.End(nil)

	require.Len(t, recorder.Ended(), 1)
	assert.Contains(t, recorder.Ended()[0].Attributes(), attribute.String(tracer.AttrRequestID, "req-42"))
}

func TestProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	p := tracer.NewProvider("devcred", "test", sdktrace.WithSpanProcessor(recorder))

	_, span := p.Tracer().Start(context.Background(), tracer.SpanRevoke, tracer.Strings("claims", []string{"a", "b"}))
	span.End(nil)
	require.NoError(t, p.Shutdown(time.Second))

	require.Len(t, recorder.Ended(), 1)
	got := recorder.Ended()[0]
	assert.Equal(t, tracer.SpanRevoke, got.Name())
	assert.Contains(t, got.Resource().Attributes(), attribute.String("service.name", "devcred"))
}
