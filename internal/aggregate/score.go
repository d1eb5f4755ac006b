// Package aggregate scores language proficiency per repository and combines
// many repositories into one developer profile whose published numbers are
// released through the privacy engine.
package aggregate

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	maxLOCPoints        = 40.0
	maxCommitPoints     = 30.0
	pointsPerCommit     = 2.0
	maxComplexityPoints = 20.0
	maxRecencyPoints    = 10.0

	hoursPerYear = 24 * 365.25
	hoursPerWeek = 24 * 7
)

// Level is a proficiency label.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
	LevelExpert       Level = "expert"
)

// Thresholds are the lower score bounds of each level above beginner.
type Thresholds struct {
	Intermediate float64 `yaml:"intermediate"`
	Advanced     float64 `yaml:"advanced"`
	Expert       float64 `yaml:"expert"`
}

// DefaultThresholds returns 30/60/85.
func DefaultThresholds() Thresholds {
	return Thresholds{Intermediate: 30, Advanced: 60, Expert: 85}
}

// Validate requires strictly increasing thresholds inside (0, 100].
func (t Thresholds) Validate() error {
	if !(0 < t.Intermediate && t.Intermediate < t.Advanced && t.Advanced < t.Expert && t.Expert <= 100) {
		return fmt.Errorf("proficiency thresholds must increase within (0,100]: %v/%v/%v", t.Intermediate, t.Advanced, t.Expert)
	}
	return nil
}

// LevelFor buckets a score.
func (t Thresholds) LevelFor(score float64) Level {
	switch {
	case score >= t.Expert:
		return LevelExpert
	case score >= t.Advanced:
		return LevelAdvanced
	case score >= t.Intermediate:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// complexity bonus per language, before the cap
var complexityTable = map[string]float64{
	"haskell":    20,
	"rust":       18,
	"c++":        18,
	"scala":      16,
	"c":          16,
	"go":         14,
	"kotlin":     13,
	"java":       12,
	"typescript": 12,
	"c#":         12,
	"swift":      12,
	"python":     10,
	"javascript": 8,
	"ruby":       8,
	"php":        6,
	"shell":      4,
	"css":        2,
	"html":       2,
}

const defaultComplexity = 5

// industry relevance per language, 0–100
var relevanceTable = map[string]float64{
	"python":     95,
	"typescript": 90,
	"go":         90,
	"javascript": 85,
	"rust":       85,
	"java":       80,
	"kotlin":     75,
	"c#":         75,
	"c++":        70,
	"swift":      70,
	"c":          60,
	"scala":      55,
	"ruby":       50,
	"php":        45,
	"haskell":    35,
	"shell":      40,
	"html":       30,
	"css":        30,
}

const defaultRelevance = 50

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// LanguageActivity is one language's raw activity inside a repository.
type LanguageActivity struct {
	Language          string    `json:"language" validate:"required,max=64"`
	LinesOfCode       int64     `json:"linesOfCode" validate:"min=0"`
	Commits           int64     `json:"commits" validate:"min=0"`
	LastActivity      time.Time `json:"lastActivity"`
	QualityIndicators float64   `json:"qualityIndicators" validate:"min=0,max=100"`
}

// Scoring configures the proficiency formula.
type Scoring struct {
	Thresholds       Thresholds `yaml:"thresholds"`
	TemporalDecay    float64    `yaml:"temporalDecay"`
	QualityWeighting bool       `yaml:"qualityWeighting"`
}

// DefaultScoring returns the default formula settings.
func DefaultScoring() Scoring {
	return Scoring{
		Thresholds:       DefaultThresholds(),
		TemporalDecay:    0.1,
		QualityWeighting: true,
	}
}

// LanguageScore is a scored language.
type LanguageScore struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
	Level    Level   `json:"level"`
}

// Score computes the proficiency score of one language at now:
// log-scaled LOC (cap 40) + commits (2 each, cap 30) + complexity (cap 20)
// + recency (10 minus weeks since last activity), optionally weighted by
// quality, decayed by age in years and clamped to [0,100].
func (sc Scoring) Score(a LanguageActivity, now time.Time) LanguageScore {
	lang := normalizeLanguage(a.Language)
	loc := max(a.LinesOfCode, 0)
	commits := max(a.Commits, 0)

	score := math.Min(maxLOCPoints, 10*math.Log10(float64(loc)+1))
	score += math.Min(maxCommitPoints, pointsPerCommit*float64(commits))

	complexity, ok := complexityTable[lang]
	if !ok {
		complexity = defaultComplexity
	}
	score += math.Min(maxComplexityPoints, complexity)

	var ageYears float64
	if !a.LastActivity.IsZero() {
		elapsed := math.Max(0, now.Sub(a.LastActivity).Hours())
		score += math.Max(0, maxRecencyPoints-elapsed/hoursPerWeek)
		ageYears = elapsed / hoursPerYear
	}

	if sc.QualityWeighting {
		q := math.Min(math.Max(a.QualityIndicators, 0), 100)
		score *= 1 + q/100
	}
	score *= math.Max(0, 1-sc.TemporalDecay*ageYears)
	score = clampScore(score)

	return LanguageScore{Language: lang, Score: score, Level: sc.Thresholds.LevelFor(score)}
}

func clampScore(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
