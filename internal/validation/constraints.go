package validation

import (
	"fmt"
	"math"
	"math/big"

	"devcred/internal/claims"
	"devcred/internal/credential/models"
	"devcred/internal/findings"
)

// BN254ScalarField is the order of the BN254 scalar field. Every witness value
// must be strictly below it.
const BN254ScalarField = "21888242871839275222246405745257275088548364400416034343698204186575808495617"

// Constraint finding codes.
const (
	CodeFieldSizeOverflow   = "FieldSizeOverflow"
	CodeNegativeFieldValue  = "NegativeFieldValue"
	CodeNonFiniteValue      = "NonFiniteValue"
	CodeInvalidRangeClaim   = "InvalidRangeClaim"
	CodeInvalidMerkleDepth  = "InvalidMerkleDepth"
	CodeCommitmentCount     = "CommitmentCountOutOfRange"
	CodeContributionSum     = "ContributionSumMismatch"
	CodeContributionRange   = "ContributionOutOfRange"
	CodeActiveDaysExceedAge = "ActiveDaysExceedAge"
	CodeActiveWeeksExceed   = "ActiveWeeksExceedTotal"
	CodeStreakExceedsActive = "StreakExceedsActiveDays"
	CodeRecentExceedsTotal  = "RecentCommitsExceedTotal"
	CodeActivityOrder       = "ActivityOutOfOrder"
)

const (
	contributionSumTolerance = 5.0
	contributionSumTarget    = 100.0

	defaultRangeProofBits = 32
	defaultMerkleDepth    = 20
	defaultMinCommitments = 1
	defaultMaxCommitments = 10000
)

// ConstraintConfig bounds witness values to what the proving backend accepts.
type ConstraintConfig struct {
	MaxFieldSize   *big.Int
	RangeProofBits uint
	MerkleDepth    int
	MinCommitments int
	MaxCommitments int
}

// DefaultConstraints targets BN254 circuits with 32-bit range proofs.
func DefaultConstraints() ConstraintConfig {
	r, _ := new(big.Int).SetString(BN254ScalarField, 10)
	return ConstraintConfig{
		MaxFieldSize:   r,
		RangeProofBits: defaultRangeProofBits,
		MerkleDepth:    defaultMerkleDepth,
		MinCommitments: defaultMinCommitments,
		MaxCommitments: defaultMaxCommitments,
	}
}

// ParseMaxFieldSize parses a decimal field modulus from configuration.
func ParseMaxFieldSize(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("max field size must be a positive decimal integer, got %q", s)
	}
	return v, nil
}

func (c ConstraintConfig) rangeLimit() int64 {
	if c.RangeProofBits == 0 || c.RangeProofBits >= 63 {
		return math.MaxInt64
	}
	return int64(1)<<c.RangeProofBits - 1
}

type constraintChecker struct {
	cfg      ConstraintConfig
	errs     []findings.Finding
	warnings []findings.Finding
}

func (c *constraintChecker) fail(code string, sev findings.Severity, field, format string, args ...any) {
	c.errs = append(c.errs, findings.Constraint(code, sev, field, format, args...))
}

func (c *constraintChecker) warn(code, field, format string, args ...any) {
	c.warnings = append(c.warnings, findings.Constraint(code, findings.SeverityMedium, field, format, args...))
}

func (c *constraintChecker) intField(field string, v int64) {
	if v < 0 {
		c.fail(CodeNegativeFieldValue, findings.SeverityCritical, field, "value %d is negative", v)
		return
	}
	if c.cfg.MaxFieldSize != nil && big.NewInt(v).Cmp(c.cfg.MaxFieldSize) >= 0 {
		c.fail(CodeFieldSizeOverflow, findings.SeverityCritical, field, "value %d does not fit the proving field", v)
	}
}

func (c *constraintChecker) floatField(field string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.fail(CodeNonFiniteValue, findings.SeverityCritical, field, "value must be finite")
		return
	}
	if v < 0 {
		c.fail(CodeNegativeFieldValue, findings.SeverityCritical, field, "value %g is negative", v)
		return
	}
	if c.cfg.MaxFieldSize == nil {
		return
	}
	whole, _ := big.NewFloat(math.Ceil(v)).Int(nil)
	if whole.Cmp(c.cfg.MaxFieldSize) >= 0 {
		c.fail(CodeFieldSizeOverflow, findings.SeverityCritical, field, "value %g does not fit the proving field", v)
	}
}

// rangeOf checks the bucket a value will be encoded into. Negative values are
// already reported by intField.
func (c *constraintChecker) rangeOf(field string, ladder claims.Ladder, v int64) {
	b, err := ladder.Bucket(v)
	if err != nil {
		return
	}
	if b.Min >= b.Max {
		c.fail(CodeInvalidRangeClaim, findings.SeverityHigh, field, "range %s must satisfy min < max", b)
	}
	if limit := c.cfg.rangeLimit(); b.Max > limit {
		c.fail(CodeInvalidRangeClaim, findings.SeverityHigh, field, "range %s exceeds %d-bit range proofs", b, c.cfg.RangeProofBits)
	}
}

// Constraints checks numeric bounds and cross-field relationships.
func Constraints(req models.GenerateRequest, cfg ConstraintConfig) findings.Report {
	c := &constraintChecker{cfg: cfg}
	switch {
	case req.Type == models.CredentialTypeRepository && req.Repository != nil:
		c.repository(req.Repository)
	case req.Type == models.CredentialTypeLanguage && req.Language != nil:
		c.language(req.Language)
	case req.Type == models.CredentialTypeCollaboration && req.Collaboration != nil:
		c.collaboration(req.Collaboration)
	case req.Type == models.CredentialTypeConsistency && req.Consistency != nil:
		c.consistency(req.Consistency)
	case req.Type == models.CredentialTypeAggregate && req.Aggregate != nil:
		c.aggregate(req.Aggregate)
	}
	return findings.NewReport(c.errs, c.warnings)
}

func (c *constraintChecker) repository(in *models.RepositoryInput) {
	commits := int64(len(in.CommitHashes))
	c.intField("repository.linesAdded", in.LinesAdded)
	c.intField("repository.linesDeleted", in.LinesDeleted)
	c.intField("repository.activeDays", in.ActiveDays)
	c.intField("repository.repositoryAgeDays", in.RepositoryAgeDays)

	c.rangeOf("repository.commitHashes", claims.CommitLadder, commits)
	c.rangeOf("repository.linesChanged", claims.LinesLadder, in.LinesAdded+in.LinesDeleted)

	if n := len(in.CommitHashes); n < c.cfg.MinCommitments || (c.cfg.MaxCommitments > 0 && n > c.cfg.MaxCommitments) {
		c.fail(CodeCommitmentCount, findings.SeverityHigh, "repository.commitHashes",
			"%d commitments outside [%d,%d]", n, c.cfg.MinCommitments, c.cfg.MaxCommitments)
	}
	if len(in.MerklePath) > 0 || in.MerkleRoot != "" {
		if len(in.MerklePath) != c.cfg.MerkleDepth {
			c.fail(CodeInvalidMerkleDepth, findings.SeverityHigh, "repository.merklePath",
				"merkle path has %d nodes, tree depth is %d", len(in.MerklePath), c.cfg.MerkleDepth)
		}
	}
	if in.RepositoryAgeDays > 0 && in.ActiveDays > in.RepositoryAgeDays {
		c.warn(CodeActiveDaysExceedAge, "repository.activeDays",
			"%d active days exceed the repository age of %d days", in.ActiveDays, in.RepositoryAgeDays)
	}
}

func (c *constraintChecker) language(in *models.LanguageInput) {
	c.intField("language.linesOfCode", in.LinesOfCode)
	c.intField("language.commits", in.Commits)
	c.intField("language.repositoryCount", in.RepositoryCount)
	c.floatField("language.qualityIndicators", in.QualityIndicators)
	c.rangeOf("language.linesOfCode", claims.LinesLadder, in.LinesOfCode)

	if !in.FirstActivity.IsZero() && !in.LastActivity.IsZero() && in.LastActivity.Before(in.FirstActivity) {
		c.warn(CodeActivityOrder, "language.lastActivity", "last activity precedes first activity")
	}
}

func (c *constraintChecker) collaboration(in *models.CollaborationInput) {
	c.floatField("collaboration.subjectContribution", in.SubjectContribution)
	c.rangeOf("collaboration.collaborators", claims.GroupSizeLadder, int64(len(in.Collaborators)))

	if in.SubjectContribution > 100 {
		c.fail(CodeContributionRange, findings.SeverityHigh, "collaboration.subjectContribution",
			"contribution %.2f%% exceeds 100%%", in.SubjectContribution)
	}
	if len(in.ContributionPercentages) == 0 {
		return
	}
	var sum float64
	for i, p := range in.ContributionPercentages {
		c.floatField(fmt.Sprintf("collaboration.contributionPercentages[%d]", i), p)
		sum += p
	}
	if math.Abs(sum-contributionSumTarget) > contributionSumTolerance {
		c.fail(CodeContributionSum, findings.SeverityHigh, "collaboration.contributionPercentages",
			"contribution percentages sum to %.2f, expected 100 ± %.0f", sum, contributionSumTolerance)
	}
}

func (c *constraintChecker) consistency(in *models.ConsistencyInput) {
	c.intField("consistency.activeWeeks", in.ActiveWeeks)
	c.intField("consistency.totalWeeks", in.TotalWeeks)
	c.intField("consistency.activeDays", in.ActiveDays)
	c.intField("consistency.longestStreakDays", in.LongestStreakDays)
	c.rangeOf("consistency.activeDays", claims.ActiveDaysLadder, in.ActiveDays)
	c.rangeOf("consistency.longestStreakDays", claims.ActiveDaysLadder, in.LongestStreakDays)

	if in.ActiveWeeks > in.TotalWeeks {
		c.fail(CodeActiveWeeksExceed, findings.SeverityHigh, "consistency.activeWeeks",
			"%d active weeks exceed %d total weeks", in.ActiveWeeks, in.TotalWeeks)
	}
	if in.LongestStreakDays > in.ActiveDays {
		c.warn(CodeStreakExceedsActive, "consistency.longestStreakDays",
			"streak of %d days exceeds %d active days", in.LongestStreakDays, in.ActiveDays)
	}
}

func (c *constraintChecker) aggregate(in *models.AggregateInput) {
	for i, repo := range in.Repositories {
		prefix := fmt.Sprintf("aggregate.repositories[%d]", i)
		c.intField(prefix+".totalCommits", repo.TotalCommits)
		c.intField(prefix+".recentCommits", repo.RecentCommits)
		c.intField(prefix+".reviewsGiven", repo.ReviewsGiven)
		c.floatField(prefix+".contributionShare", repo.ContributionShare)
		for j, lang := range repo.Languages {
			c.intField(fmt.Sprintf("%s.languages[%d].linesOfCode", prefix, j), lang.LinesOfCode)
			c.intField(fmt.Sprintf("%s.languages[%d].commits", prefix, j), lang.Commits)
		}
		if repo.RecentCommits > repo.TotalCommits {
			c.warn(CodeRecentExceedsTotal, prefix+".recentCommits",
				"%d recent commits exceed %d total commits", repo.RecentCommits, repo.TotalCommits)
		}
	}
}
