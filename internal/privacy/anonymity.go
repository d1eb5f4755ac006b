package privacy

import (
	"fmt"
	"math"
	"slices"

	"devcred/internal/findings"
	dErrors "devcred/pkg/domain-errors"
)

// Standards reported on anonymity findings.
const (
	StandardKAnonymity = "K-ANONYMITY"
	StandardLDiversity = "L-DIVERSITY"
	StandardTCloseness = "T-CLOSENESS"
)

// Finding codes produced by the anonymity checks.
const (
	CodeInvalidK                = "InvalidK"
	CodeMissingQuasiIdentifiers = "MissingQuasiIdentifiers"
	CodeInsufficientGroupSize   = "InsufficientGroupSize"
	CodeInsufficientDiversity   = "InsufficientDiversity"
	CodeDistributionDrift       = "DistributionDrift"
)

// EquivalenceClass is a group of records sharing quasi-identifier values.
type EquivalenceClass struct {
	Size            int      `json:"size"`
	SensitiveValues []string `json:"sensitiveValues,omitempty"`
}

// AnonymityInput describes the group a collaboration claim is drawn from.
type AnonymityInput struct {
	GroupSize        int                `json:"groupSize"`
	K                float64            `json:"k"`
	QuasiIdentifiers []string           `json:"quasiIdentifiers"`
	Classes          []EquivalenceClass `json:"equivalenceClasses,omitempty"`
}

// Policy configures the secondary checks. L or T at zero disables the check.
type Policy struct {
	L          int     `json:"l" yaml:"l"`
	T          float64 `json:"t" yaml:"t"`
	LMandatory bool    `json:"lMandatory" yaml:"lMandatory"`
	TMandatory bool    `json:"tMandatory" yaml:"tMandatory"`
}

// KAnonymity evaluates the single k-anonymity invariant: k is an integer of
// at least 2, quasi-identifiers are declared, the claimed group holds at least
// k members and so does every declared equivalence class.
func KAnonymity(in AnonymityInput) findings.Report {
	var errs []findings.Finding

	if err := validateK(in.K); err != nil {
		errs = append(errs, findings.Privacy(CodeInvalidK, findings.SeverityCritical,
			StandardKAnonymity, "k", "k must be an integer of at least 2, got %v", in.K))
		return findings.NewReport(errs, nil)
	}
	if len(in.QuasiIdentifiers) == 0 {
		errs = append(errs, findings.Privacy(CodeMissingQuasiIdentifiers, findings.SeverityHigh,
			StandardKAnonymity, "quasi-identifiers", "quasi-identifiers must be declared"))
	}
	k := int(in.K)
	if in.GroupSize < k {
		errs = append(errs, findings.Privacy(CodeInsufficientGroupSize, findings.SeverityCritical,
			StandardKAnonymity, "group-size", "group size %d is below k=%d", in.GroupSize, k))
	}
	for i, class := range in.Classes {
		if class.Size < k {
			errs = append(errs, findings.Privacy(CodeInsufficientGroupSize, findings.SeverityHigh,
				StandardKAnonymity, "equivalence-class", "equivalence class %d has %d members, below k=%d", i, class.Size, k))
		}
	}
	return findings.NewReport(errs, nil)
}

// CheckKAnonymity is KAnonymity as an error: nil when the invariant holds.
func CheckKAnonymity(in AnonymityInput) error {
	report := KAnonymity(in)
	errs := report.Errors()
	if len(errs) == 0 {
		return nil
	}
	code := dErrors.CodeInsufficientGroupSize
	switch errs[0].Code {
	case CodeInvalidK:
		code = dErrors.CodeInvalidPrivacyParams
	case CodeMissingQuasiIdentifiers:
		code = dErrors.CodeMissingQuasiIdentifiers
	}
	return dErrors.New(code, report.Message())
}

// LDiversity requires at least l distinct sensitive values in every class.
// Classes without sensitive values are skipped.
func LDiversity(classes []EquivalenceClass, l int, mandatory bool) findings.Report {
	if l <= 0 {
		return findings.Report{}
	}
	sev := advisory(mandatory)
	var errs []findings.Finding
	for i, class := range classes {
		if len(class.SensitiveValues) == 0 {
			continue
		}
		distinct := len(distribution(class.SensitiveValues))
		if distinct < l {
			errs = append(errs, findings.Privacy(CodeInsufficientDiversity, sev,
				StandardLDiversity, "distinct-values", "equivalence class %d has %d distinct sensitive values, below l=%d", i, distinct, l))
		}
	}
	return findings.NewReport(errs, nil)
}

// TCloseness bounds the total-variation distance between each class's
// sensitive-value distribution and the distribution over all classes.
func TCloseness(classes []EquivalenceClass, t float64, mandatory bool) findings.Report {
	if t <= 0 {
		return findings.Report{}
	}
	var all []string
	for _, class := range classes {
		all = append(all, class.SensitiveValues...)
	}
	if len(all) == 0 {
		return findings.Report{}
	}
	global := distribution(all)

	sev := advisory(mandatory)
	var errs []findings.Finding
	for i, class := range classes {
		if len(class.SensitiveValues) == 0 {
			continue
		}
		d := TotalVariation(distribution(class.SensitiveValues), global)
		if d > t+1e-12 {
			errs = append(errs, findings.Privacy(CodeDistributionDrift, sev,
				StandardTCloseness, "distance", "equivalence class %d is %.3f from the global distribution, above t=%.3f", i, d, t))
		}
	}
	return findings.NewReport(errs, nil)
}

// TotalVariation returns ½·Σ|p(x) − q(x)| over the union of supports.
func TotalVariation(p, q map[string]float64) float64 {
	keys := make([]string, 0, len(p)+len(q))
	for k := range p {
		keys = append(keys, k)
	}
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	var sum float64
	for _, k := range keys {
		sum += math.Abs(p[k] - q[k])
	}
	return sum / 2
}

// Assessment is the anonymity verdict for one input.
type Assessment struct {
	Report findings.Report
	Level  Level
}

// Assess runs every anonymity check and derives the achieved level.
func Assess(in AnonymityInput, policy Policy) Assessment {
	report := findings.Merge(
		KAnonymity(in),
		LDiversity(in.Classes, policy.L, policy.LMandatory),
		TCloseness(in.Classes, policy.T, policy.TMandatory),
	)
	return Assessment{Report: report, Level: LevelFor(report)}
}

func distribution(values []string) map[string]float64 {
	counts := make(map[string]float64, len(values))
	for _, v := range values {
		counts[v]++
	}
	n := float64(len(values))
	for k := range counts {
		counts[k] /= n
	}
	return counts
}

func advisory(mandatory bool) findings.Severity {
	if mandatory {
		return findings.SeverityHigh
	}
	return findings.SeverityMedium
}

// String is used in log lines.
func (in AnonymityInput) String() string {
	return fmt.Sprintf("group=%d k=%v qi=%d classes=%d", in.GroupSize, in.K, len(in.QuasiIdentifiers), len(in.Classes))
}
