package prover

import (
	"fmt"
	"math/big"
	"slices"

	"devcred/internal/credential/models"
	dErrors "devcred/pkg/domain-errors"
)

// BN254 base field modulus q. Group element coordinates live in Fq.
const bn254BaseField = "21888242871839275222246405745257275088696311157297823662689037894645226208583"

// BN254 scalar field order r. Public signals live in Fr.
const bn254ScalarField = "21888242871839275222246405745257275088548364400416034343698204186575808495617"

var (
	baseField, _   = new(big.Int).SetString(bn254BaseField, 10)
	scalarField, _ = new(big.Int).SetString(bn254ScalarField, 10)

	supportedCurves    = []string{"bn128", "bn254"}
	supportedProtocols = []string{models.ProtocolGroth16, models.ProtocolPlonk, models.ProtocolSimulated}
)

// CheckStructure validates an artifact's completeness and field bounds.
// G1 points are two affine coordinates or three projective ones with z = 1;
// G2 points are two (or three with z = [1,0]) pairs of Fq elements.
func CheckStructure(p models.ProofArtifact) error {
	if p.IsZero() {
		return invalid("proof is missing")
	}
	if !slices.Contains(supportedProtocols, p.Protocol) {
		return invalid(fmt.Sprintf("unsupported protocol %q", p.Protocol))
	}
	if !slices.Contains(supportedCurves, p.Curve) {
		return invalid(fmt.Sprintf("unsupported curve %q", p.Curve))
	}
	if err := checkG1("pi_a", p.PiA); err != nil {
		return err
	}
	if err := checkG2("pi_b", p.PiB); err != nil {
		return err
	}
	if err := checkG1("pi_c", p.PiC); err != nil {
		return err
	}
	for i, s := range p.PublicSignals {
		if err := checkElement(fmt.Sprintf("publicSignals[%d]", i), s, scalarField); err != nil {
			return err
		}
	}
	return nil
}

func checkG1(name string, point []string) error {
	switch len(point) {
	case 2:
	case 3:
		if point[2] != "1" {
			return invalid(fmt.Sprintf("%s must be affine (z = 1)", name))
		}
	default:
		return invalid(fmt.Sprintf("%s must have 2 or 3 coordinates, got %d", name, len(point)))
	}
	for i, c := range point[:2] {
		if err := checkElement(fmt.Sprintf("%s[%d]", name, i), c, baseField); err != nil {
			return err
		}
	}
	return nil
}

func checkG2(name string, point [][]string) error {
	switch len(point) {
	case 2:
	case 3:
		if !slices.Equal(point[2], []string{"1", "0"}) {
			return invalid(fmt.Sprintf("%s must be affine (z = [1,0])", name))
		}
	default:
		return invalid(fmt.Sprintf("%s must have 2 or 3 coordinates, got %d", name, len(point)))
	}
	for i, pair := range point[:2] {
		if len(pair) != 2 {
			return invalid(fmt.Sprintf("%s[%d] must be a pair of field elements", name, i))
		}
		for j, c := range pair {
			if err := checkElement(fmt.Sprintf("%s[%d][%d]", name, i, j), c, baseField); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkElement(name, value string, modulus *big.Int) error {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return invalid(fmt.Sprintf("%s is not a decimal field element", name))
	}
	if v.Sign() < 0 || v.Cmp(modulus) >= 0 {
		return invalid(fmt.Sprintf("%s is outside the field", name))
	}
	return nil
}

func invalid(msg string) error {
	return dErrors.New(dErrors.CodeInvalidProof, msg)
}
