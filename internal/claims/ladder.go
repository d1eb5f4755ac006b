// Package claims encodes raw repository observations into privacy-preserving
// claims: range buckets drawn from fixed ladders and fixed-format commitments.
//
// Domain Purity: this package performs no I/O and never logs; hidden values
// only live inside RangeProof values produced by Encode.
package claims

import (
	"fmt"

	dErrors "devcred/pkg/domain-errors"
)

// Bucket is a closed range [Min, Max] a hidden value is claimed to lie in.
type Bucket struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether v lies within the bucket.
func (b Bucket) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}

// String renders the bucket as [min,max].
func (b Bucket) String() string {
	return fmt.Sprintf("[%d,%d]", b.Min, b.Max)
}

// Rung maps every value strictly below Below (and at or above the previous
// rung's Below) to Bucket.
type Rung struct {
	Below  int64
	Bucket Bucket
}

// Ladder is a fixed, monotonically increasing sequence of rungs with an
// open-ended top bucket. A value equal to a rung boundary belongs to the next rung.
type Ladder struct {
	name  string
	rungs []Rung
	top   Bucket
}

// NewLadder validates and builds a ladder.
//
// Invariants enforced:
//   - rung boundaries strictly increase
//   - every bucket has Min ≤ Max
//   - every bucket's Min falls inside the interval its own rung covers, which
//     makes bucketing idempotent: Bucket(Bucket(x).Min) == Bucket(x)
func NewLadder(name string, rungs []Rung, top Bucket) (Ladder, error) {
	if len(rungs) == 0 {
		return Ladder{}, fmt.Errorf("ladder %s: at least one rung is required", name)
	}
	lower := int64(0)
	for i, r := range rungs {
		if r.Below <= lower {
			return Ladder{}, fmt.Errorf("ladder %s: rung %d boundary %d does not increase", name, i, r.Below)
		}
		if r.Bucket.Min > r.Bucket.Max {
			return Ladder{}, fmt.Errorf("ladder %s: rung %d bucket %s has min > max", name, i, r.Bucket)
		}
		if r.Bucket.Min < lower || r.Bucket.Min >= r.Below {
			return Ladder{}, fmt.Errorf("ladder %s: rung %d bucket min %d outside [%d,%d)", name, i, r.Bucket.Min, lower, r.Below)
		}
		lower = r.Below
	}
	if top.Min > top.Max || top.Min < lower {
		return Ladder{}, fmt.Errorf("ladder %s: top bucket %s must start at or above %d", name, top, lower)
	}
	return Ladder{name: name, rungs: append([]Rung(nil), rungs...), top: top}, nil
}

// MustLadder is NewLadder for package-level ladders; it panics on an invalid definition.
func MustLadder(name string, rungs []Rung, top Bucket) Ladder {
	l, err := NewLadder(name, rungs, top)
	if err != nil {
		panic(err)
	}
	return l
}

// Name returns the metric the ladder buckets.
func (l Ladder) Name() string { return l.name }

// Buckets returns every bucket of the ladder in ascending order.
func (l Ladder) Buckets() []Bucket {
	out := make([]Bucket, 0, len(l.rungs)+1)
	for _, r := range l.rungs {
		out = append(out, r.Bucket)
	}
	return append(out, l.top)
}

// Bucket returns the smallest bucket for x. Negative input fails with invalid_range.
func (l Ladder) Bucket(x int64) (Bucket, error) {
	if x < 0 {
		return Bucket{}, dErrors.Newf(dErrors.CodeInvalidRange, "%s must be non-negative, got %d", l.name, x)
	}
	for _, r := range l.rungs {
		if x < r.Below {
			return r.Bucket, nil
		}
	}
	return l.top, nil
}

// Encode buckets x and returns a RangeProof holding x as its hidden value.
func (l Ladder) Encode(x int64) (RangeProof, error) {
	b, err := l.Bucket(x)
	if err != nil {
		return RangeProof{}, err
	}
	return RangeProof{Min: b.Min, Max: b.Max, hidden: &x}, nil
}

// Built-in ladders, one per metric.
var (
	CommitLadder = MustLadder("commit_count", []Rung{
		{Below: 10, Bucket: Bucket{Min: 1, Max: 10}},
		{Below: 50, Bucket: Bucket{Min: 10, Max: 50}},
		{Below: 100, Bucket: Bucket{Min: 50, Max: 100}},
		{Below: 500, Bucket: Bucket{Min: 100, Max: 500}},
	}, Bucket{Min: 500, Max: 1000})

	LinesLadder = MustLadder("lines_of_code", []Rung{
		{Below: 100, Bucket: Bucket{Min: 1, Max: 100}},
		{Below: 1000, Bucket: Bucket{Min: 100, Max: 1000}},
		{Below: 5000, Bucket: Bucket{Min: 1000, Max: 5000}},
		{Below: 10000, Bucket: Bucket{Min: 5000, Max: 10000}},
		{Below: 50000, Bucket: Bucket{Min: 10000, Max: 50000}},
	}, Bucket{Min: 50000, Max: 100000})

	ActiveDaysLadder = MustLadder("active_days", []Rung{
		{Below: 7, Bucket: Bucket{Min: 1, Max: 7}},
		{Below: 30, Bucket: Bucket{Min: 7, Max: 30}},
		{Below: 90, Bucket: Bucket{Min: 30, Max: 90}},
		{Below: 180, Bucket: Bucket{Min: 90, Max: 180}},
		{Below: 365, Bucket: Bucket{Min: 180, Max: 365}},
	}, Bucket{Min: 365, Max: 730})

	GroupSizeLadder = MustLadder("group_size", []Rung{
		{Below: 5, Bucket: Bucket{Min: 2, Max: 5}},
		{Below: 10, Bucket: Bucket{Min: 5, Max: 10}},
		{Below: 25, Bucket: Bucket{Min: 10, Max: 25}},
		{Below: 50, Bucket: Bucket{Min: 25, Max: 50}},
	}, Bucket{Min: 50, Max: 100})

	ScoreLadder = MustLadder("score", []Rung{
		{Below: 20, Bucket: Bucket{Min: 0, Max: 20}},
		{Below: 40, Bucket: Bucket{Min: 20, Max: 40}},
		{Below: 60, Bucket: Bucket{Min: 40, Max: 60}},
		{Below: 80, Bucket: Bucket{Min: 60, Max: 80}},
	}, Bucket{Min: 80, Max: 100})
)
