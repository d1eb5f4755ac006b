package prover

import (
	"context"
	"time"

	"devcred/internal/credential/models"
	"devcred/internal/platform/tracer"
)

// Observer records prover call outcomes.
type Observer interface {
	ObserveProver(outcome string, durationSeconds float64)
}

type instrumented struct {
	next     Prover
	observer Observer
	tracer   tracer.Tracer
}

// Instrument wraps p with a credential.prove span and latency observation.
// Either of obs and t may be nil.
func Instrument(p Prover, obs Observer, t tracer.Tracer) Prover {
	if t == nil {
		t = tracer.NewNoop()
	}
	return &instrumented{next: p, observer: obs, tracer: t}
}

func (i *instrumented) Prove(ctx context.Context, req Request) (models.ProofArtifact, error) {
	ctx, span := i.tracer.Start(ctx, tracer.SpanProve,
		tracer.String(tracer.AttrCredentialType, string(req.CircuitType)),
	)
	start := time.Now()
	proof, err := i.next.Prove(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err == nil && proof.IsZero():
		outcome = "empty"
	case err != nil && ctx.Err() != nil:
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	if i.observer != nil {
		i.observer.ObserveProver(outcome, elapsed.Seconds())
	}
	span.SetAttributes(tracer.String(tracer.AttrStatus, outcome), tracer.Duration("prover.duration_ms", elapsed))
	span.End(err)
	return proof, err
}
