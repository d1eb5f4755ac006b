// Package privacy implements the differential-privacy mechanisms, the
// per-subject privacy-budget ledger and the k-anonymity, l-diversity and
// t-closeness checks used before a credential is issued.
package privacy

import (
	"math"

	dErrors "devcred/pkg/domain-errors"
)

// Mechanism selects the noise distribution.
type Mechanism string

const (
	MechanismLaplace  Mechanism = "laplace"
	MechanismGaussian Mechanism = "gaussian"
)

// Parameters configures one differentially private release.
type Parameters struct {
	Epsilon     float64   `json:"epsilon" yaml:"epsilon"`
	Delta       float64   `json:"delta" yaml:"delta"`
	Sensitivity float64   `json:"sensitivity" yaml:"sensitivity"`
	Mechanism   Mechanism `json:"mechanism" yaml:"mechanism"`
	// ClampingBounds is [lo, hi]; values are clamped before and after noise.
	ClampingBounds [2]float64 `json:"clampingBounds" yaml:"clampingBounds"`
	// K is optional (zero means unset). It is a JSON number and must be integral.
	K                float64  `json:"k,omitempty" yaml:"k"`
	QuasiIdentifiers []string `json:"quasiIdentifiers,omitempty" yaml:"quasiIdentifiers"`
}

// DefaultParameters is the baseline used when a request leaves fields unset.
func DefaultParameters() Parameters {
	return Parameters{
		Epsilon:        1.0,
		Delta:          1e-5,
		Sensitivity:    1.0,
		Mechanism:      MechanismLaplace,
		ClampingBounds: [2]float64{0, 100},
	}
}

// WithDefaults fills zero-valued fields from d.
func (p Parameters) WithDefaults(d Parameters) Parameters {
	if p.Epsilon == 0 {
		p.Epsilon = d.Epsilon
	}
	if p.Delta == 0 {
		p.Delta = d.Delta
	}
	if p.Sensitivity == 0 {
		p.Sensitivity = d.Sensitivity
	}
	if p.Mechanism == "" {
		p.Mechanism = d.Mechanism
	}
	if p.ClampingBounds == [2]float64{} {
		p.ClampingBounds = d.ClampingBounds
	}
	if p.K == 0 {
		p.K = d.K
	}
	if len(p.QuasiIdentifiers) == 0 {
		p.QuasiIdentifiers = d.QuasiIdentifiers
	}
	return p
}

// Validate checks the parameter invariants.
func (p Parameters) Validate() error {
	if math.IsNaN(p.Epsilon) || math.IsInf(p.Epsilon, 0) || p.Epsilon <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidEpsilon, "epsilon must be a positive finite number, got %v", p.Epsilon)
	}
	if math.IsNaN(p.Delta) || p.Delta <= 0 || p.Delta >= 1 {
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "delta must be in (0,1), got %v", p.Delta)
	}
	if math.IsNaN(p.Sensitivity) || math.IsInf(p.Sensitivity, 0) || p.Sensitivity <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "sensitivity must be positive, got %v", p.Sensitivity)
	}
	switch p.Mechanism {
	case MechanismLaplace, MechanismGaussian:
	default:
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "unsupported mechanism %q", p.Mechanism)
	}
	lo, hi := p.ClampingBounds[0], p.ClampingBounds[1]
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "clamping bounds [%v,%v] are invalid", lo, hi)
	}
	if p.K != 0 {
		if err := validateK(p.K); err != nil {
			return err
		}
	}
	return nil
}

// NoiseScale returns the Laplace scale b = Δ/ε or the Gaussian σ = sqrt(2 ln(1.25/δ))·Δ/ε.
func (p Parameters) NoiseScale() float64 {
	base := p.Sensitivity / p.Epsilon
	if p.Mechanism == MechanismGaussian {
		return math.Sqrt(2*math.Log(1.25/p.Delta)) * base
	}
	return base
}

// StdDev returns the standard deviation of the configured noise.
func (p Parameters) StdDev() float64 {
	if p.Mechanism == MechanismGaussian {
		return p.NoiseScale()
	}
	return math.Sqrt2 * p.NoiseScale()
}

func (p Parameters) clamp(v float64) float64 {
	return math.Min(math.Max(v, p.ClampingBounds[0]), p.ClampingBounds[1])
}

func validateK(k float64) error {
	if math.IsNaN(k) || k != math.Trunc(k) {
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "k must be an integer, got %v", k)
	}
	if k < 2 {
		return dErrors.Newf(dErrors.CodeInvalidPrivacyParams, "k must be at least 2, got %v", k)
	}
	return nil
}
