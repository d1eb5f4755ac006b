// Package validation runs the three gates a generation request passes before
// any privacy budget is spent: structural/security checks, numeric constraint
// checks and privacy-compliance standards.
package validation

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"devcred/internal/claims"
	"devcred/internal/credential/models"
	"devcred/internal/findings"
	"devcred/pkg/domain"
	dedupe "devcred/pkg/platform/strings"
	limits "devcred/pkg/platform/validation"
	tags "devcred/pkg/validation"
)

// Structural finding codes.
const (
	CodeMissingField          = "MissingField"
	CodeUnsupportedType       = "UnsupportedType"
	CodeMissingInput          = "MissingInput"
	CodeUnusedInput           = "UnusedInput"
	CodeInvalidSubject        = "InvalidSubject"
	CodeInvalidFormat         = "InvalidFormat"
	CodeScriptInjection       = "ScriptInjection"
	CodeSQLInjection          = "SQLInjection"
	CodeArrayLengthMismatch   = "ArrayLengthMismatch"
	CodeLimitExceeded         = "LimitExceeded"
	CodeDuplicateCommit       = "DuplicateCommit"
	CodeDuplicateCollaborator = "DuplicateCollaborator"
)

var (
	repositoryNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+(/[A-Za-z0-9._-]+)?$`)
	languagePattern       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+#. -]*$`)
	commitHashPattern     = regexp.MustCompile(`^[0-9a-f]{7,64}$`)

	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus|blur|submit)\s*=`),
		regexp.MustCompile(`(?i)<\s*iframe`),
	}
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)'\s*or\s+'?\d+'?\s*=\s*'?\d+`),
		regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|alter)\s`),
		regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
		regexp.MustCompile(`--(\s|$)`),
	}
)

type structuralChecker struct {
	errs     []findings.Finding
	warnings []findings.Finding
}

func (c *structuralChecker) fail(code string, sev findings.Severity, field, format string, args ...any) {
	c.errs = append(c.errs, findings.Validation(code, sev, field, format, args...))
}

func (c *structuralChecker) warn(code, field, format string, args ...any) {
	c.warnings = append(c.warnings, findings.Validation(code, findings.SeverityLow, field, format, args...))
}

// injection reports script patterns as critical and SQL-like patterns as
// high. It returns true when anything matched.
func (c *structuralChecker) injection(field, value string) bool {
	for _, p := range scriptPatterns {
		if p.MatchString(value) {
			c.fail(CodeScriptInjection, findings.SeverityCritical, field, "script-like content rejected")
			return true
		}
	}
	for _, p := range sqlPatterns {
		if p.MatchString(value) {
			c.fail(CodeSQLInjection, findings.SeverityHigh, field, "SQL-like content rejected")
			return true
		}
	}
	return false
}

// text checks a free-form identifier: injection first, then the format regex.
func (c *structuralChecker) text(field, value string, pattern *regexp.Regexp, maxLen int) {
	if value == "" {
		return
	}
	if c.injection(field, value) {
		return
	}
	if err := limits.CheckLength(field, value, maxLen); err != nil {
		c.fail(CodeLimitExceeded, findings.SeverityHigh, field, "%s", err.Error())
		return
	}
	if pattern != nil && !pattern.MatchString(value) {
		c.fail(CodeInvalidFormat, findings.SeverityHigh, field, "%q has an invalid format", value)
	}
}

func (c *structuralChecker) count(field string, n, maxN int) bool {
	if err := limits.CheckCount(field, n, maxN); err != nil {
		c.fail(CodeLimitExceeded, findings.SeverityHigh, field, "%s", err.Error())
		return false
	}
	return true
}

func (c *structuralChecker) duplicates(code, field string, values []string) {
	if d := dedupe.Duplicates(values); d > 0 {
		c.warn(code, field, "%d duplicate entries", d)
	}
}

// Structural checks required fields, formats, injection patterns, array
// shapes and limits. Numeric signs are left to Constraints.
func Structural(req models.GenerateRequest) findings.Report {
	c := &structuralChecker{}

	for _, v := range tags.Violations(req) {
		c.fail(CodeMissingField, findings.SeverityCritical, v.Field, "%s", v.Message)
	}

	if req.Type != "" {
		if _, err := models.ParseCredentialType(string(req.Type)); err != nil {
			c.fail(CodeUnsupportedType, findings.SeverityCritical, "type", "unsupported credential type %q", req.Type)
		}
	}
	if req.Subject != "" {
		if _, err := domain.ParseSubjectID(string(req.Subject)); err != nil {
			c.fail(CodeInvalidSubject, findings.SeverityHigh, "subject", "subject must be a DID or account handle")
		}
	}
	c.injection("requestId", req.RequestID)
	c.metadata(req.Metadata)
	c.inputs(req)

	return findings.NewReport(c.errs, c.warnings)
}

func (c *structuralChecker) metadata(md map[string]string) {
	c.count("metadata", len(md), limits.MaxMetadataEntries)
	for _, k := range slices.Sorted(maps.Keys(md)) {
		v := md[k]
		field := "metadata." + k
		if c.injection(field, k) || c.injection(field, v) {
			continue
		}
		if err := limits.CheckLength(field, v, limits.MaxMetadataValueLength); err != nil {
			c.fail(CodeLimitExceeded, findings.SeverityHigh, field, "%s", err.Error())
		}
	}
}

// inputs requires the input matching the type and flags any others.
func (c *structuralChecker) inputs(req models.GenerateRequest) {
	present := map[models.CredentialType]bool{
		models.CredentialTypeRepository:    req.Repository != nil,
		models.CredentialTypeLanguage:      req.Language != nil,
		models.CredentialTypeCollaboration: req.Collaboration != nil,
		models.CredentialTypeConsistency:   req.Consistency != nil,
		models.CredentialTypeAggregate:     req.Aggregate != nil,
	}
	for _, t := range models.CredentialTypes {
		if present[t] && t != req.Type {
			c.warn(CodeUnusedInput, string(t), "input for %s is ignored for a %s credential", t, req.Type)
		}
	}
	if _, known := present[req.Type]; known && !present[req.Type] {
		c.fail(CodeMissingInput, findings.SeverityCritical, string(req.Type), "%s input is required", req.Type)
		return
	}

	switch req.Type {
	case models.CredentialTypeRepository:
		c.repository(req.Repository)
	case models.CredentialTypeLanguage:
		c.text("language.language", req.Language.Language, languagePattern, limits.MaxLanguageLength)
	case models.CredentialTypeCollaboration:
		c.collaboration(req.Collaboration)
	case models.CredentialTypeConsistency:
		// numeric only
	case models.CredentialTypeAggregate:
		c.aggregate(req.Aggregate)
	}
}

func (c *structuralChecker) repository(in *models.RepositoryInput) {
	c.text("repository.name", in.Name, repositoryNamePattern, limits.MaxNameLength)

	if c.count("repository.commitHashes", len(in.CommitHashes), limits.MaxCommitHashes) {
		for i, h := range in.CommitHashes {
			if !commitHashPattern.MatchString(h) {
				c.fail(CodeInvalidFormat, findings.SeverityHigh, fmt.Sprintf("repository.commitHashes[%d]", i),
					"commit hash must be 7 to 64 lowercase hex characters")
			}
		}
		c.duplicates(CodeDuplicateCommit, "repository.commitHashes", in.CommitHashes)
	}
	if len(in.CommitTimestamps) > 0 && len(in.CommitTimestamps) != len(in.CommitHashes) {
		c.fail(CodeArrayLengthMismatch, findings.SeverityHigh, "repository.commitTimestamps",
			"%d timestamps for %d commits", len(in.CommitTimestamps), len(in.CommitHashes))
	}

	if in.MerkleRoot != "" && !claims.IsCommitment(in.MerkleRoot) {
		c.fail(CodeInvalidFormat, findings.SeverityHigh, "repository.merkleRoot", "merkle root must be 64 lowercase hex characters")
	}
	if c.count("repository.merklePath", len(in.MerklePath), limits.MaxMerklePathLength) {
		for i, node := range in.MerklePath {
			if !claims.IsCommitment(node) {
				c.fail(CodeInvalidFormat, findings.SeverityHigh, fmt.Sprintf("repository.merklePath[%d]", i),
					"merkle node must be 64 lowercase hex characters")
			}
		}
	}
}

func (c *structuralChecker) collaboration(in *models.CollaborationInput) {
	c.text("collaboration.repository", in.Repository, repositoryNamePattern, limits.MaxNameLength)

	if !c.count("collaboration.collaborators", len(in.Collaborators), limits.MaxCollaborators) {
		return
	}
	for i, id := range in.Collaborators {
		field := fmt.Sprintf("collaboration.collaborators[%d]", i)
		if strings.TrimSpace(id) == "" {
			c.fail(CodeMissingField, findings.SeverityHigh, field, "collaborator identifier is empty")
			continue
		}
		c.text(field, id, nil, limits.MaxCollaboratorIDLength)
	}
	c.duplicates(CodeDuplicateCollaborator, "collaboration.collaborators", in.Collaborators)

	if len(in.ContributionPercentages) > 0 && len(in.ContributionPercentages) != len(in.Collaborators) {
		c.fail(CodeArrayLengthMismatch, findings.SeverityHigh, "collaboration.contributionPercentages",
			"%d percentages for %d collaborators", len(in.ContributionPercentages), len(in.Collaborators))
	}
	for i, class := range in.EquivalenceClasses {
		if class.Size < 0 {
			c.fail(CodeInvalidFormat, findings.SeverityHigh, fmt.Sprintf("collaboration.equivalenceClasses[%d].size", i),
				"class size must not be negative")
		}
	}
}

func (c *structuralChecker) aggregate(in *models.AggregateInput) {
	if !c.count("aggregate.repositories", len(in.Repositories), limits.MaxRepositories) {
		return
	}
	for i, repo := range in.Repositories {
		prefix := fmt.Sprintf("aggregate.repositories[%d]", i)
		c.text(prefix+".name", repo.Name, repositoryNamePattern, limits.MaxNameLength)
		if !c.count(prefix+".languages", len(repo.Languages), limits.MaxLanguagesPerRepository) {
			continue
		}
		for j, lang := range repo.Languages {
			c.text(fmt.Sprintf("%s.languages[%d].language", prefix, j), lang.Language, languagePattern, limits.MaxLanguageLength)
		}
	}
	for i, id := range in.SourceCredentials {
		if _, err := domain.ParseCredentialID(string(id)); err != nil {
			c.fail(CodeInvalidFormat, findings.SeverityHigh, fmt.Sprintf("aggregate.sourceCredentials[%d]", i), "invalid credential id")
		}
	}
}
