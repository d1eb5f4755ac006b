package privacy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
)

// Source yields uniform samples in [0, 1). Implementations must be safe for
// concurrent use.
type Source interface {
	Float64() float64
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source { return cryptoSource{} }

func (cryptoSource) Float64() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand.Read never returns an error on supported platforms
		panic(err)
	}
	return float64(binary.LittleEndian.Uint64(b[:])>>11) / (1 << 53)
}

type seededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource returns a deterministic Source for tests and simulations.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// laplaceNoise draws from Laplace(0, scale) by inverse transform sampling.
func laplaceNoise(src Source, scale float64) float64 {
	for {
		u := src.Float64() - 0.5
		tail := 1 - 2*math.Abs(u)
		if tail <= 0 {
			continue
		}
		if u < 0 {
			return scale * math.Log(tail)
		}
		return -scale * math.Log(tail)
	}
}

// gaussianNoise draws from N(0, sigma²) with the Box–Muller transform.
func gaussianNoise(src Source, sigma float64) float64 {
	for {
		u1 := src.Float64()
		if u1 <= 0 {
			continue
		}
		u2 := src.Float64()
		return sigma * math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}
}

// Perturb clamps value to the parameter bounds, adds noise of the configured
// mechanism and clamps again. It does not touch any budget.
func Perturb(src Source, value float64, p Parameters) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return perturb(src, value, p), nil
}

func perturb(src Source, value float64, p Parameters) float64 {
	clamped := p.clamp(value)
	var noise float64
	switch p.Mechanism {
	case MechanismGaussian:
		noise = gaussianNoise(src, p.NoiseScale())
	default:
		noise = laplaceNoise(src, p.NoiseScale())
	}
	return p.clamp(clamped + noise)
}
