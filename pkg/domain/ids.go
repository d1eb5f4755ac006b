// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "devcred/pkg/domain-errors"
)

const (
	credentialIDPrefix = "cred_"
	batchIDPrefix      = "batch_"

	// MaxSubjectIDLength bounds subject identifiers (DIDs or account handles).
	MaxSubjectIDLength = 256
)

// subjectPattern accepts DIDs (did:method:id) and plain account handles.
var subjectPattern = regexp.MustCompile(`^(did:[a-z0-9]+:[A-Za-z0-9._:%-]+|[A-Za-z0-9][A-Za-z0-9_.-]*)$`)

// Distinct ID types - compiler prevents passing a SubjectID where a CredentialID is expected.
type (
	SubjectID    string
	CredentialID string
	BatchID      string
)

// Parse functions - use at trust boundaries (handlers, API inputs).

// ParseSubjectID validates a developer subject identifier.
func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID cannot be empty")
	}
	if len(s) > MaxSubjectIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID is too long")
	}
	if !subjectPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid subject ID format")
	}
	return SubjectID(s), nil
}

// ParseCredentialID validates a prefixed credential identifier.
func ParseCredentialID(s string) (CredentialID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ID cannot be empty")
	}
	if !strings.HasPrefix(s, credentialIDPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ID must start with "+credentialIDPrefix)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(s, credentialIDPrefix)); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid credential ID format")
	}
	return CredentialID(s), nil
}

// NewCredentialID generates a new credential ID with a stable prefix.
func NewCredentialID() CredentialID {
	return CredentialID(credentialIDPrefix + uuid.NewString())
}

// NewBatchID generates a new batch ID.
func NewBatchID() BatchID {
	return BatchID(batchIDPrefix + uuid.NewString())
}

// String methods - for logging and debugging.

func (id SubjectID) String() string    { return string(id) }
func (id CredentialID) String() string { return string(id) }
func (id BatchID) String() string      { return string(id) }

// IsNil checks - used for service-layer validation.

func (id SubjectID) IsNil() bool    { return id == "" }
func (id CredentialID) IsNil() bool { return id == "" }
func (id BatchID) IsNil() bool      { return id == "" }
