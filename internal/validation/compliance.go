package validation

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"devcred/internal/credential/models"
	"devcred/internal/findings"
	"devcred/internal/privacy"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	dedupe "devcred/pkg/platform/strings"
)

// CodeRequirementNotMet is used for failed requirements that carry no code
// of their own.
const CodeRequirementNotMet = "RequirementNotMet"

// Built-in standard names.
const (
	StandardGDPR       = "GDPR"
	StandardCCPA       = "CCPA"
	StandardDPBaseline = "DP-BASELINE"
)

const (
	maxEpsilon         = 10.0
	maxDelta           = 1e-3
	maxRetention       = 5 * 365 * 24 * time.Hour
	maxCCPARetention   = 2 * 365 * 24 * time.Hour
	maxCCPAMetadata    = 16
	defaultRequirement = findings.SeverityHigh
)

var (
	personalDataKey = regexp.MustCompile(`(?i)(e-?mail|phone|address|ssn|birth|full_?name|passport)`)
	emailValue      = regexp.MustCompile(`[^@\s]+@[^@\s]+\.[A-Za-z]{2,}`)
)

// Input is what a compliance requirement can inspect: the request and the
// privacy parameters it resolves to.
type Input struct {
	Request models.GenerateRequest
	Params  privacy.Parameters
}

// Requirement is one ordered predicate of a standard. Check returns nil when
// the requirement holds.
type Requirement struct {
	Name string
	// Code overrides CodeRequirementNotMet on failure.
	Code string
	// Severity applies when the standard is mandatory; optional standards
	// always report medium.
	Severity findings.Severity
	Check    func(Input) error
}

// Standard is a named, pluggable set of requirements.
type Standard struct {
	Name      string
	Mandatory bool
	// Applies limits the standard to some credential types; nil means all.
	Applies      func(models.CredentialType) bool
	Requirements []Requirement
}

func (s Standard) appliesTo(t models.CredentialType) bool {
	return s.Applies == nil || s.Applies(t)
}

// Compliance evaluates every applicable standard in order. Each standard's
// score is passed/total requirements × 100.
func Compliance(in Input, standards []Standard) (findings.Report, []models.ComplianceStatus) {
	var errs []findings.Finding
	statuses := make([]models.ComplianceStatus, 0, len(standards))

	for _, std := range standards {
		if !std.appliesTo(in.Request.Type) {
			continue
		}
		status := models.ComplianceStatus{Standard: std.Name, MissingRequirements: []string{}}
		passed := 0
		for _, req := range std.Requirements {
			err := req.Check(in)
			if err == nil {
				passed++
				continue
			}
			status.MissingRequirements = append(status.MissingRequirements, req.Name)
			errs = append(errs, findings.Privacy(req.code(), std.severity(req), std.Name, req.Name, "%s", err.Error()))
		}
		if total := len(std.Requirements); total > 0 {
			status.Score = float64(passed) / float64(total) * 100
		} else {
			status.Score = 100
		}
		status.Compliant = len(status.MissingRequirements) == 0
		statuses = append(statuses, status)
	}
	return findings.NewReport(errs, nil), statuses
}

func (s Standard) severity(r Requirement) findings.Severity {
	if !s.Mandatory {
		return findings.SeverityMedium
	}
	if r.Severity == "" {
		return defaultRequirement
	}
	return r.Severity
}

func (r Requirement) code() string {
	if r.Code == "" {
		return CodeRequirementNotMet
	}
	return r.Code
}

// DefaultStandards returns GDPR, CCPA, DP-BASELINE and K-ANONYMITY.
func DefaultStandards() []Standard {
	return []Standard{GDPR(), CCPA(), DPBaseline(), KAnonymityStandard()}
}

// GDPR is mandatory: a pseudonymous subject, no personal data in metadata
// and bounded retention.
func GDPR() Standard {
	return Standard{
		Name:      StandardGDPR,
		Mandatory: true,
		Requirements: []Requirement{
			{Name: "lawful-subject", Severity: findings.SeverityHigh, Check: func(in Input) error {
				_, err := domain.ParseSubjectID(string(in.Request.Subject))
				return err
			}},
			{Name: "data-minimization", Severity: findings.SeverityHigh, Check: func(in Input) error {
				md := in.Request.Metadata
				for _, k := range slices.Sorted(maps.Keys(md)) {
					if personalDataKey.MatchString(k) || emailValue.MatchString(md[k]) {
						return fmt.Errorf("metadata %q carries personal data", k)
					}
				}
				return nil
			}},
			{Name: "storage-limitation", Severity: findings.SeverityHigh, Check: func(in Input) error {
				return retention(in.Request.ExpiresInSeconds, maxRetention)
			}},
		},
	}
}

// CCPA is advisory.
func CCPA() Standard {
	return Standard{
		Name: StandardCCPA,
		Requirements: []Requirement{
			{Name: "pseudonymous-subject", Check: func(in Input) error {
				if strings.Contains(string(in.Request.Subject), "@") {
					return errors.New("subject looks like an email address")
				}
				return nil
			}},
			{Name: "limited-metadata", Check: func(in Input) error {
				if n := len(in.Request.Metadata); n > maxCCPAMetadata {
					return fmt.Errorf("%d metadata entries exceed %d", n, maxCCPAMetadata)
				}
				return nil
			}},
			{Name: "limited-retention", Check: func(in Input) error {
				return retention(in.Request.ExpiresInSeconds, maxCCPARetention)
			}},
		},
	}
}

// DPBaseline is mandatory: the resolved privacy parameters must be valid
// and within sane bounds.
func DPBaseline() Standard {
	return Standard{
		Name:      StandardDPBaseline,
		Mandatory: true,
		Requirements: []Requirement{
			{Name: "epsilon-bounded", Severity: findings.SeverityCritical, Check: func(in Input) error {
				eps := in.Params.Epsilon
				if math.IsNaN(eps) || eps <= 0 || eps > maxEpsilon {
					return fmt.Errorf("epsilon %v outside (0,%v]", eps, maxEpsilon)
				}
				return nil
			}},
			{Name: "delta-bounded", Severity: findings.SeverityHigh, Check: func(in Input) error {
				if in.Params.Delta > maxDelta {
					return fmt.Errorf("delta %v exceeds %v", in.Params.Delta, maxDelta)
				}
				return nil
			}},
			{Name: "parameters-valid", Severity: findings.SeverityHigh, Check: func(in Input) error {
				err := in.Params.Validate()
				if dErrors.HasCode(err, dErrors.CodeInvalidEpsilon) {
					// reported by epsilon-bounded
					return nil
				}
				return err
			}},
		},
	}
}

// KAnonymityStandard applies to collaboration credentials. Each requirement
// maps to one part of the k-anonymity invariant.
func KAnonymityStandard() Standard {
	part := func(name, code string, sev findings.Severity) Requirement {
		return Requirement{Name: name, Code: code, Severity: sev, Check: func(in Input) error {
			return kAnonymityPart(in, name)
		}}
	}
	return Standard{
		Name:      privacy.StandardKAnonymity,
		Mandatory: true,
		Applies: func(t models.CredentialType) bool {
			return t == models.CredentialTypeCollaboration
		},
		Requirements: []Requirement{
			part("k", privacy.CodeInvalidK, findings.SeverityCritical),
			part("quasi-identifiers", privacy.CodeMissingQuasiIdentifiers, findings.SeverityHigh),
			part("group-size", privacy.CodeInsufficientGroupSize, findings.SeverityCritical),
			part("equivalence-class", privacy.CodeInsufficientGroupSize, findings.SeverityHigh),
		},
	}
}

// kAnonymityPart reports the findings of one requirement. An invalid k stops
// the k-anonymity evaluation, so the other parts then report nothing.
func kAnonymityPart(in Input, requirement string) error {
	if in.Request.Collaboration == nil {
		return errors.New("collaboration input is missing")
	}
	report := privacy.KAnonymity(Anonymity(in.Request.Collaboration, in.Params))
	var msgs []string
	for _, f := range report.Errors() {
		if f.Requirement == requirement {
			msgs = append(msgs, f.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Anonymity builds the k-anonymity input for a collaboration request. k and
// quasi-identifiers fall back to the privacy parameters; the group size counts
// distinct collaborators.
func Anonymity(in *models.CollaborationInput, p privacy.Parameters) privacy.AnonymityInput {
	k := in.K
	if k == 0 {
		k = p.K
	}
	qi := in.QuasiIdentifiers
	if len(qi) == 0 {
		qi = p.QuasiIdentifiers
	}
	return privacy.AnonymityInput{
		GroupSize:        dedupe.CountDistinct(in.Collaborators),
		K:                k,
		QuasiIdentifiers: qi,
		Classes:          in.EquivalenceClasses,
	}
}

func retention(seconds int64, limit time.Duration) error {
	if seconds < 0 {
		return fmt.Errorf("expiry of %d seconds is negative", seconds)
	}
	if seconds > int64(limit/time.Second) {
		return fmt.Errorf("expiry of %d seconds exceeds %s", seconds, limit)
	}
	return nil
}
