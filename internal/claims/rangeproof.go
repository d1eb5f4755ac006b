package claims

import (
	"encoding/json"
	"fmt"
)

// HiddenValueKey is the witness key carrying a range proof's true value.
// It must never appear in persisted or exported documents.
const HiddenValueKey = "actualValue"

// RangeProof claims that a hidden value lies within [Min, Max].
// The true value is only present on proofs returned by Ladder.Encode and is
// dropped by Stripped, JSON marshalling and ToMap.
type RangeProof struct {
	Min      int64  `json:"min"`
	Max      int64  `json:"max"`
	ProofRef string `json:"proofRef,omitempty"`

	hidden *int64
}

// NewRangeProof builds a range proof without a hidden value, e.g. when
// reconstructing a stored credential.
func NewRangeProof(minV, maxV int64, proofRef string) (RangeProof, error) {
	if minV > maxV {
		return RangeProof{}, fmt.Errorf("range proof min %d exceeds max %d", minV, maxV)
	}
	return RangeProof{Min: minV, Max: maxV, ProofRef: proofRef}, nil
}

// Bucket returns the claimed range.
func (r RangeProof) Bucket() Bucket {
	return Bucket{Min: r.Min, Max: r.Max}
}

// HasHidden reports whether the true value is still attached.
func (r RangeProof) HasHidden() bool {
	return r.hidden != nil
}

// Witness returns the hidden value clamped into [Min, Max] for the prover.
// The lowest and highest rungs are open-ended, so the clamped witness proves
// "at most Max" and "at least Min" respectively.
func (r RangeProof) Witness() (int64, bool) {
	if r.hidden == nil {
		return 0, false
	}
	v := *r.hidden
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	return v, true
}

// WithProofRef returns a copy referencing the proof that attests this range.
func (r RangeProof) WithProofRef(ref string) RangeProof {
	r.ProofRef = ref
	return r
}

// Stripped returns a copy with the hidden value removed.
func (r RangeProof) Stripped() RangeProof {
	return RangeProof{Min: r.Min, Max: r.Max, ProofRef: r.ProofRef}
}

// ToMap converts the public part of the proof into an untyped map.
func (r RangeProof) ToMap() map[string]any {
	m := map[string]any{
		"min": r.Min,
		"max": r.Max,
	}
	if r.ProofRef != "" {
		m["proofRef"] = r.ProofRef
	}
	return m
}

// WitnessMap is ToMap plus the hidden value; it is only handed to the prover.
func (r RangeProof) WitnessMap() map[string]any {
	m := r.ToMap()
	if v, ok := r.Witness(); ok {
		m[HiddenValueKey] = v
	}
	return m
}

// MarshalJSON emits only the public fields.
func (r RangeProof) MarshalJSON() ([]byte, error) {
	type public struct {
		Min      int64  `json:"min"`
		Max      int64  `json:"max"`
		ProofRef string `json:"proofRef,omitempty"`
	}
	return json.Marshal(public{Min: r.Min, Max: r.Max, ProofRef: r.ProofRef})
}

// RangeProofFromMap reconstructs a public range proof from an untyped map.
// Numeric values may arrive as int64, int or float64 (after JSON decoding).
func RangeProofFromMap(m map[string]any) (RangeProof, error) {
	minV, ok := toInt64(m["min"])
	if !ok {
		return RangeProof{}, fmt.Errorf("range proof min is missing or not numeric")
	}
	maxV, ok := toInt64(m["max"])
	if !ok {
		return RangeProof{}, fmt.Errorf("range proof max is missing or not numeric")
	}
	ref, _ := m["proofRef"].(string)
	return NewRangeProof(minV, maxV, ref)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// StripHidden returns a deep copy of v with the hidden value removed from every
// range-proof-shaped map (a map holding both "min" and "max"). Maps and slices
// are copied; the input is never mutated.
func StripHidden(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		_, hasMin := t["min"]
		_, hasMax := t["max"]
		rangeShaped := hasMin && hasMax
		for k, val := range t {
			if rangeShaped && k == HiddenValueKey {
				continue
			}
			out[k] = StripHidden(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = StripHidden(val)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i], _ = StripHidden(val).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// ContainsHidden reports whether any range-proof-shaped map inside v still
// carries a hidden value.
func ContainsHidden(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		_, hasMin := t["min"]
		_, hasMax := t["max"]
		if _, hidden := t[HiddenValueKey]; hidden && hasMin && hasMax {
			return true
		}
		for _, val := range t {
			if ContainsHidden(val) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if ContainsHidden(val) {
				return true
			}
		}
	case []map[string]any:
		for _, val := range t {
			if ContainsHidden(val) {
				return true
			}
		}
	}
	return false
}
