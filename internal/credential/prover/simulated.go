package prover

import (
	"context"
	"encoding/json"
	"math/big"
	"slices"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"devcred/internal/credential/models"
	dErrors "devcred/pkg/domain-errors"
)

// Simulated returns deterministic, structurally valid artifacts without a
// proving backend. Artifacts carry the "simulated" protocol and are never
// treated as zero-knowledge backed.
type Simulated struct {
	// Delay simulates proving latency; zero returns immediately.
	Delay time.Duration
}

// NewSimulated creates a simulated prover.
func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) Prove(ctx context.Context, req Request) (models.ProofArtifact, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return models.ProofArtifact{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "simulated proving interrupted")
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeTimeout, "simulated proving interrupted")
	}

	seed, err := json.Marshal(struct {
		Circuit models.CredentialType `json:"c"`
		Public  map[string]any        `json:"p"`
	}{req.CircuitType, req.PublicInputs})
	if err != nil {
		return models.ProofArtifact{}, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "failed to encode public inputs")
	}

	var counter uint64
	next := func(modulus *big.Int) string {
		counter++
		h, _ := blake2b.New256(nil)
		h.Write(seed)
		h.Write([]byte(strconv.FormatUint(counter, 10)))
		v := new(big.Int).SetBytes(h.Sum(nil))
		return v.Mod(v, modulus).String()
	}

	return models.ProofArtifact{
		Protocol: models.ProtocolSimulated,
		Curve:    "bn128",
		PiA:      []string{next(baseField), next(baseField), "1"},
		PiB: [][]string{
			{next(baseField), next(baseField)},
			{next(baseField), next(baseField)},
			{"1", "0"},
		},
		PiC:           []string{next(baseField), next(baseField), "1"},
		PublicSignals: publicSignals(req.PublicInputs),
	}, nil
}

// publicSignals renders numeric public inputs in key order, reduced into Fr.
// Non-numeric inputs are hashed.
func publicSignals(inputs map[string]any) []string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v := signal(inputs[k])
		out = append(out, v.Mod(v, scalarField).String())
	}
	return out
}

func signal(v any) *big.Int {
	switch n := v.(type) {
	case int:
		return new(big.Int).Abs(big.NewInt(int64(n)))
	case int64:
		return new(big.Int).Abs(big.NewInt(n))
	case float64:
		return new(big.Int).Abs(big.NewInt(int64(n)))
	case bool:
		if n {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	raw, _ := json.Marshal(v)
	sum := blake2b.Sum256(raw)
	return new(big.Int).SetBytes(sum[:])
}
