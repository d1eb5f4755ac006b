// Package prover reaches the external zero-knowledge proving backend and
// checks the structure of the artifacts it returns.
//
// Witness maps carry hidden values. They are sent to the backend and never
// logged or retained.
package prover

import (
	"context"
	"encoding/json"

	"devcred/internal/credential/models"
)

// Request asks the backend for one proof.
type Request struct {
	CircuitType  models.CredentialType `json:"circuitType"`
	Witness      map[string]any        `json:"witness"`
	PublicInputs map[string]any        `json:"publicInputs"`
}

// Prover produces a proof artifact for a circuit.
type Prover interface {
	Prove(ctx context.Context, req Request) (models.ProofArtifact, error)
}

// ProverFunc adapts a function to Prover.
type ProverFunc func(ctx context.Context, req Request) (models.ProofArtifact, error)

func (f ProverFunc) Prove(ctx context.Context, req Request) (models.ProofArtifact, error) {
	return f(ctx, req)
}

// Size is the serialized size of an artifact in bytes.
func Size(p models.ProofArtifact) int {
	if p.IsZero() {
		return 0
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(raw)
}
