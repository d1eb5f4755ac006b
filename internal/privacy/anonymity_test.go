package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"devcred/internal/findings"
	dErrors "devcred/pkg/domain-errors"
)

type AnonymitySuite struct {
	suite.Suite
}

func TestAnonymitySuite(t *testing.T) {
	suite.Run(t, new(AnonymitySuite))
}

func (s *AnonymitySuite) base() AnonymityInput {
	return AnonymityInput{
		GroupSize:        8,
		K:                5,
		QuasiIdentifiers: []string{"organization", "timezone"},
	}
}

func (s *AnonymitySuite) TestKAnonymity() {
	s.Run("group at least k with declared quasi-identifiers passes", func() {
		s.NoError(CheckKAnonymity(s.base()))
		in := s.base()
		in.GroupSize = 5
		s.NoError(CheckKAnonymity(in))
	})

	s.Run("k below two fails", func() {
		for _, k := range []float64{-1, 0, 1} {
			in := s.base()
			in.K = k
			err := CheckKAnonymity(in)
			s.Require().Error(err, "k=%v", k)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidPrivacyParams))
		}
	})

	s.Run("non-integer k fails", func() {
		in := s.base()
		in.K = 3.5
		s.Error(CheckKAnonymity(in))
	})

	s.Run("group smaller than k fails", func() {
		in := s.base()
		in.GroupSize = 4
		err := CheckKAnonymity(in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientGroupSize))
		s.Equal(findings.SeverityCritical, KAnonymity(in).Errors()[0].Severity)
	})

	s.Run("undeclared quasi-identifiers fail", func() {
		in := s.base()
		in.QuasiIdentifiers = nil
		err := CheckKAnonymity(in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingQuasiIdentifiers))
	})

	s.Run("every equivalence class must reach k", func() {
		in := s.base()
		in.Classes = []EquivalenceClass{{Size: 6}, {Size: 3}}
		report := KAnonymity(in)
		s.Require().Len(report.Errors(), 1)
		s.Contains(report.Message(), "equivalence class 1")
		s.True(dErrors.HasCode(CheckKAnonymity(in), dErrors.CodeInsufficientGroupSize))
	})
}

func (s *AnonymitySuite) TestLDiversity() {
	classes := []EquivalenceClass{
		{Size: 5, SensitiveValues: []string{"go", "rust", "go"}},
		{Size: 5, SensitiveValues: []string{"go", "go", "go"}},
		{Size: 5},
	}

	s.Run("advisory by default", func() {
		report := LDiversity(classes, 2, false)
		s.Require().Len(report.Errors(), 1)
		s.Equal(findings.SeverityMedium, report.Errors()[0].Severity)
		s.False(report.Blocking())
	})

	s.Run("mandatory raises severity", func() {
		report := LDiversity(classes, 2, true)
		s.True(report.Blocking())
	})

	s.Run("disabled when l is zero", func() {
		s.True(LDiversity(classes, 0, true).Empty())
	})
}

func (s *AnonymitySuite) TestTCloseness() {
	classes := []EquivalenceClass{
		{Size: 4, SensitiveValues: []string{"a", "a", "b", "b"}},
		{Size: 4, SensitiveValues: []string{"a", "a", "a", "a"}},
		{Size: 4, SensitiveValues: []string{"b", "b", "b", "b"}},
	}
	// global is a=0.5 b=0.5, the skewed classes are 0.5 away
	s.Len(TCloseness(classes, 0.4, false).Errors(), 2)
	s.True(TCloseness(classes, 0.5, false).Empty())
}

func (s *AnonymitySuite) TestAssessLevel() {
	in := s.base()
	in.Classes = []EquivalenceClass{
		{Size: 5, SensitiveValues: []string{"x", "y"}},
		{Size: 5, SensitiveValues: []string{"x", "x"}},
	}
	a := Assess(in, Policy{L: 2})
	s.Equal(LevelHigh, a.Level)

	in.GroupSize = 2
	s.Equal(LevelNone, Assess(in, Policy{}).Level)
}

func TestTotalVariation(t *testing.T) {
	p := map[string]float64{"a": 1}
	q := map[string]float64{"b": 1}
	assert.InDelta(t, 1.0, TotalVariation(p, q), 1e-12)
	assert.InDelta(t, 0.0, TotalVariation(p, p), 1e-12)
	assert.InDelta(t, 0.25, TotalVariation(map[string]float64{"a": 0.75, "b": 0.25}, map[string]float64{"a": 0.5, "b": 0.5}), 1e-12)
}

func TestLevelFor(t *testing.T) {
	crit := findings.Privacy("c", findings.SeverityCritical, "S", "r", "critical")
	high := findings.Privacy("h", findings.SeverityHigh, "S", "r", "high")
	med := findings.Privacy("m", findings.SeverityMedium, "S", "r", "medium")
	warn := findings.Validation("w", findings.SeverityLow, "f", "warning")

	repeat := func(f findings.Finding, n int) []findings.Finding {
		out := make([]findings.Finding, n)
		for i := range out {
			out[i] = f
		}
		return out
	}

	cases := []struct {
		name     string
		errs     []findings.Finding
		warnings []findings.Finding
		want     Level
	}{
		{"clean", nil, nil, LevelMaximum},
		{"five warnings", nil, repeat(warn, 5), LevelMaximum},
		{"six warnings", nil, repeat(warn, 6), LevelHigh},
		{"one medium", repeat(med, 1), nil, LevelHigh},
		{"four medium", repeat(med, 4), nil, LevelEnhanced},
		{"one high", repeat(high, 1), nil, LevelEnhanced},
		{"three high", repeat(high, 3), nil, LevelBasic},
		{"critical wins", append(repeat(med, 1), crit), nil, LevelNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LevelFor(findings.NewReport(tc.errs, tc.warnings)))
		})
	}

	assert.True(t, LevelHigh.AtLeast(LevelEnhanced))
	assert.False(t, LevelBasic.AtLeast(LevelHigh))
}
