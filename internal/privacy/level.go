package privacy

import "devcred/internal/findings"

// Level is the privacy level a request achieves given its findings.
type Level string

const (
	LevelNone     Level = "none"
	LevelBasic    Level = "basic"
	LevelEnhanced Level = "enhanced"
	LevelHigh     Level = "high"
	LevelMaximum  Level = "maximum"
)

var levelRank = map[Level]int{
	LevelNone:     0,
	LevelBasic:    1,
	LevelEnhanced: 2,
	LevelHigh:     3,
	LevelMaximum:  4,
}

// Rank orders levels from none (0) to maximum (4). Unknown levels rank -1.
func (l Level) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether l is as strong as other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// LevelFor derives the level from finding counts. Rules apply in order:
// any critical, more than two high, any high or more than three medium,
// any medium or more than five warnings.
func LevelFor(r findings.Report) Level {
	critical := r.Count(findings.SeverityCritical)
	high := r.Count(findings.SeverityHigh)
	medium := r.Count(findings.SeverityMedium)

	switch {
	case critical > 0:
		return LevelNone
	case high > 2:
		return LevelBasic
	case high > 0 || medium > 3:
		return LevelEnhanced
	case medium > 0 || r.WarningCount() > 5:
		return LevelHigh
	default:
		return LevelMaximum
	}
}
