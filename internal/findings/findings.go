// Package findings models severity-tagged validation, constraint and privacy
// findings. Checks are pure functions that return a Report; callers merge
// reports instead of sharing mutable lists.
package findings

import (
	"fmt"
	"slices"
	"strings"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Blocking reports whether a finding of this severity refuses generation.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Category identifies which pass produced a finding.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryConstraint Category = "constraint"
	CategoryPrivacy    Category = "privacy"
)

// Finding is a single immutable check outcome.
type Finding struct {
	Category    Category `json:"category"`
	Code        string   `json:"code"`
	Severity    Severity `json:"severity"`
	Field       string   `json:"field,omitempty"`
	Message     string   `json:"message"`
	Standard    string   `json:"standard,omitempty"`
	Requirement string   `json:"requirement,omitempty"`
}

// String renders the finding for joined error messages.
func (f Finding) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(f.Severity))
	b.WriteString("] ")
	if f.Standard != "" {
		b.WriteString(f.Standard)
		if f.Requirement != "" {
			b.WriteString("/")
			b.WriteString(f.Requirement)
		}
		b.WriteString(": ")
	}
	if f.Field != "" {
		b.WriteString(f.Field)
		b.WriteString(": ")
	}
	b.WriteString(f.Message)
	return b.String()
}

// Validation builds a structural/security finding.
func Validation(code string, sev Severity, field, format string, args ...any) Finding {
	return Finding{Category: CategoryValidation, Code: code, Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Constraint builds a numeric/shape constraint finding.
func Constraint(code string, sev Severity, field, format string, args ...any) Finding {
	return Finding{Category: CategoryConstraint, Code: code, Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Privacy builds a compliance/anonymity finding.
func Privacy(code string, sev Severity, standard, requirement, format string, args ...any) Finding {
	return Finding{
		Category:    CategoryPrivacy,
		Code:        code,
		Severity:    sev,
		Standard:    standard,
		Requirement: requirement,
		Message:     fmt.Sprintf(format, args...),
	}
}

// Report is an immutable collection of errors and warnings.
// The zero value is an empty report.
type Report struct {
	errors   []Finding
	warnings []Finding
}

// NewReport copies the given findings into a new report.
func NewReport(errs, warnings []Finding) Report {
	return Report{errors: slices.Clone(errs), warnings: slices.Clone(warnings)}
}

// Errors returns a copy of the error findings.
func (r Report) Errors() []Finding { return slices.Clone(r.errors) }

// Warnings returns a copy of the warning findings.
func (r Report) Warnings() []Finding { return slices.Clone(r.warnings) }

// Empty reports whether the report carries no findings at all.
func (r Report) Empty() bool { return len(r.errors) == 0 && len(r.warnings) == 0 }

// Merge concatenates reports in order.
func Merge(reports ...Report) Report {
	var out Report
	for _, r := range reports {
		out.errors = append(out.errors, r.errors...)
		out.warnings = append(out.warnings, r.warnings...)
	}
	return out
}

// Blocking reports whether any error is critical or high.
func (r Report) Blocking() bool {
	return slices.ContainsFunc(r.errors, func(f Finding) bool { return f.Severity.Blocking() })
}

// Count returns the number of errors with the given severity.
func (r Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.errors {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warnings.
func (r Report) WarningCount() int { return len(r.warnings) }

// HasCode reports whether any error carries the given code.
func (r Report) HasCode(code string) bool {
	return slices.ContainsFunc(r.errors, func(f Finding) bool { return f.Code == code })
}

// Message joins the error findings into one human-readable string.
func (r Report) Message() string {
	parts := make([]string, 0, len(r.errors))
	for _, f := range r.errors {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

// BlockingMessage joins only the critical and high findings.
func (r Report) BlockingMessage() string {
	parts := make([]string, 0, len(r.errors))
	for _, f := range r.errors {
		if f.Severity.Blocking() {
			parts = append(parts, f.String())
		}
	}
	return strings.Join(parts, "; ")
}
