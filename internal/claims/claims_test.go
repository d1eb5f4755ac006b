package claims

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "devcred/pkg/domain-errors"
)

type LadderSuite struct {
	suite.Suite
}

func TestLadderSuite(t *testing.T) {
	suite.Run(t, new(LadderSuite))
}

func (s *LadderSuite) TestCommitLadderScenarios() {
	s.Run("seven commits fall in the first rung", func() {
		b, err := CommitLadder.Bucket(7)
		s.Require().NoError(err)
		s.Equal(Bucket{Min: 1, Max: 10}, b)
	})

	s.Run("boundary belongs to the next rung", func() {
		b, err := CommitLadder.Bucket(10)
		s.Require().NoError(err)
		s.Equal(Bucket{Min: 10, Max: 50}, b)
	})

	s.Run("large values land in the top bucket", func() {
		b, err := CommitLadder.Bucket(12000)
		s.Require().NoError(err)
		s.Equal(Bucket{Min: 500, Max: 1000}, b)
	})

	s.Run("negative input is an invalid range", func() {
		_, err := CommitLadder.Bucket(-1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRange))
	})
}

func (s *LadderSuite) TestBucketingIsIdempotent() {
	ladders := []Ladder{CommitLadder, LinesLadder, ActiveDaysLadder, GroupSizeLadder, ScoreLadder}
	rng := rand.New(rand.NewPCG(1, 2))

	for _, l := range ladders {
		s.Run(l.Name(), func() {
			values := []int64{0, 1, 9, 10, 49, 50, 99, 100, 499, 500, 999, 1000}
			for range 500 {
				values = append(values, rng.Int64N(200000))
			}
			for _, x := range values {
				first, err := l.Bucket(x)
				s.Require().NoError(err)
				again, err := l.Bucket(first.Min)
				s.Require().NoError(err)
				s.Equal(first, again, "x=%d", x)

				repeat, err := l.Bucket(x)
				s.Require().NoError(err)
				s.Equal(first, repeat)
			}
		})
	}
}

func (s *LadderSuite) TestNewLadderRejectsInvalidDefinitions() {
	s.Run("non-increasing boundaries", func() {
		_, err := NewLadder("bad", []Rung{
			{Below: 10, Bucket: Bucket{Min: 1, Max: 10}},
			{Below: 10, Bucket: Bucket{Min: 10, Max: 20}},
		}, Bucket{Min: 20, Max: 30})
		s.Error(err)
	})

	s.Run("bucket min outside its rung breaks idempotence", func() {
		_, err := NewLadder("bad", []Rung{
			{Below: 10, Bucket: Bucket{Min: 12, Max: 20}},
		}, Bucket{Min: 20, Max: 30})
		s.Error(err)
	})

	s.Run("top bucket below last boundary", func() {
		_, err := NewLadder("bad", []Rung{
			{Below: 10, Bucket: Bucket{Min: 1, Max: 10}},
		}, Bucket{Min: 5, Max: 30})
		s.Error(err)
	})

	s.Run("no rungs", func() {
		_, err := NewLadder("bad", nil, Bucket{Min: 0, Max: 1})
		s.Error(err)
	})
}

func TestEncodeKeepsHiddenValueOutOfPublicForms(t *testing.T) {
	proof, err := CommitLadder.Encode(37)
	require.NoError(t, err)
	proof = proof.WithProofRef("proof:repository:0")

	assert.True(t, proof.HasHidden())
	w, ok := proof.Witness()
	require.True(t, ok)
	assert.Equal(t, int64(37), w)
	assert.Equal(t, int64(37), proof.WitnessMap()[HiddenValueKey])

	raw, err := json.Marshal(proof)
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":10,"max":50,"proofRef":"proof:repository:0"}`, string(raw))
	assert.NotContains(t, string(raw), "37")

	_, present := proof.ToMap()[HiddenValueKey]
	assert.False(t, present)

	stripped := proof.Stripped()
	assert.False(t, stripped.HasHidden())
	assert.Equal(t, proof.Bucket(), stripped.Bucket())
}

func TestWitnessClampsOpenEndedRungs(t *testing.T) {
	top, err := CommitLadder.Encode(4000)
	require.NoError(t, err)
	w, _ := top.Witness()
	assert.Equal(t, int64(1000), w)

	bottom, err := LinesLadder.Encode(0)
	require.NoError(t, err)
	w, _ = bottom.Witness()
	assert.Equal(t, int64(1), w)
}

func TestRangeProofFromMap(t *testing.T) {
	t.Run("accepts float64 numbers from JSON", func(t *testing.T) {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(`{"min":10,"max":50,"proofRef":"p"}`), &m))
		rp, err := RangeProofFromMap(m)
		require.NoError(t, err)
		assert.Equal(t, Bucket{Min: 10, Max: 50}, rp.Bucket())
		assert.Equal(t, "p", rp.ProofRef)
	})

	t.Run("rejects min above max", func(t *testing.T) {
		_, err := RangeProofFromMap(map[string]any{"min": int64(9), "max": int64(1)})
		require.Error(t, err)
	})

	t.Run("rejects missing bounds", func(t *testing.T) {
		_, err := RangeProofFromMap(map[string]any{"min": int64(1)})
		require.Error(t, err)
	})
}

func TestStripHidden(t *testing.T) {
	input := map[string]any{
		"commitRange": map[string]any{"min": 10, "max": 50, HiddenValueKey: 37},
		"nested": []any{
			map[string]any{"min": 1, "max": 10, HiddenValueKey: 4, "proofRef": "x"},
			"plain",
		},
		"listOfMaps": []map[string]any{{"min": 0, "max": 20, HiddenValueKey: 13}},
		// not range-shaped, left untouched
		"other": map[string]any{HiddenValueKey: "kept"},
	}

	require.True(t, ContainsHidden(input))
	out := StripHidden(input).(map[string]any)

	assert.False(t, ContainsHidden(out))
	assert.NotContains(t, out["commitRange"], HiddenValueKey)
	assert.Equal(t, "x", out["nested"].([]any)[0].(map[string]any)["proofRef"])
	assert.Equal(t, "kept", out["other"].(map[string]any)[HiddenValueKey])

	// original untouched
	assert.Equal(t, 37, input["commitRange"].(map[string]any)[HiddenValueKey])
}

func TestParseCommitment(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	c, err := ParseCommitment(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, c.String())
	raw, err := c.Bytes()
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	cases := map[string]string{
		"too short":   strings.Repeat("a", 63),
		"too long":    strings.Repeat("a", 65),
		"uppercase":   strings.Repeat("AB", 32),
		"non hex":     strings.Repeat("zz", 32),
		"0x prefixed": "0x" + strings.Repeat("a", 62),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCommitment(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCommitmentFormat))
			assert.False(t, IsCommitment(input))
		})
	}
}

func TestCommitter(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	c, err := NewCommitter(key)
	require.NoError(t, err)

	repo := c.Commit(DomainRepository, "github.com/acme/widgets")
	assert.True(t, IsCommitment(repo.String()))
	assert.Equal(t, repo, c.Commit(DomainRepository, "github.com/acme/widgets"))
	assert.NotEqual(t, repo, c.Commit(DomainCollaborator, "github.com/acme/widgets"))

	other, err := NewCommitter([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	assert.NotEqual(t, repo, other.Commit(DomainRepository, "github.com/acme/widgets"))

	a := c.Commit(DomainCollaborator, "alice")
	b := c.Commit(DomainCollaborator, "bob")
	assert.Equal(t,
		c.CommitSet(DomainCollabSet, []Commitment{a, b}),
		c.CommitSet(DomainCollabSet, []Commitment{b, a, b}),
	)

	_, err = NewCommitter([]byte("short"))
	assert.Error(t, err)
}
