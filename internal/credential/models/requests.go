package models

import (
	"time"

	"devcred/internal/aggregate"
	"devcred/internal/privacy"
	"devcred/pkg/domain"
)

// RepositoryInput is raw activity for a repository credential.
// CommitHashes and CommitTimestamps are parallel arrays.
type RepositoryInput struct {
	Name              string      `json:"name" validate:"required,max=200"`
	CommitHashes      []string    `json:"commitHashes" validate:"required"`
	CommitTimestamps  []time.Time `json:"commitTimestamps,omitempty"`
	LinesAdded        int64       `json:"linesAdded"`
	LinesDeleted      int64       `json:"linesDeleted"`
	ActiveDays        int64       `json:"activeDays"`
	RepositoryAgeDays int64       `json:"repositoryAgeDays"`
	// MerkleRoot and MerklePath prove the commits belong to an indexed snapshot.
	MerkleRoot string   `json:"merkleRoot,omitempty"`
	MerklePath []string `json:"merklePath,omitempty"`
}

// LanguageInput is raw activity for a language credential.
type LanguageInput struct {
	Language          string    `json:"language" validate:"required,max=64"`
	LinesOfCode       int64     `json:"linesOfCode"`
	Commits           int64     `json:"commits"`
	RepositoryCount   int64     `json:"repositoryCount"`
	QualityIndicators float64   `json:"qualityIndicators"`
	FirstActivity     time.Time `json:"firstActivity,omitempty"`
	LastActivity      time.Time `json:"lastActivity,omitempty"`
}

// CollaborationInput describes the collaborator group of one repository.
// Collaborators and ContributionPercentages are parallel arrays.
type CollaborationInput struct {
	Repository              string                     `json:"repository" validate:"required,max=200"`
	Collaborators           []string                   `json:"collaborators" validate:"required"`
	ContributionPercentages []float64                  `json:"contributionPercentages,omitempty"`
	SubjectContribution     float64                    `json:"subjectContribution"`
	K                       float64                    `json:"k,omitempty"`
	QuasiIdentifiers        []string                   `json:"quasiIdentifiers,omitempty"`
	EquivalenceClasses      []privacy.EquivalenceClass `json:"equivalenceClasses,omitempty"`
}

// ConsistencyInput summarises how regularly the subject contributes.
type ConsistencyInput struct {
	ActiveWeeks       int64 `json:"activeWeeks"`
	TotalWeeks        int64 `json:"totalWeeks"`
	ActiveDays        int64 `json:"activeDays"`
	LongestStreakDays int64 `json:"longestStreakDays"`
}

// AggregateInput combines many repositories into one profile credential.
type AggregateInput struct {
	Repositories []aggregate.RepositoryActivity `json:"repositories" validate:"required,min=1,dive"`
	// SourceCredentials optionally links previously issued repository credentials.
	SourceCredentials []domain.CredentialID `json:"sourceCredentials,omitempty"`
}

// GenerateRequest asks for one credential. Exactly the input matching Type
// must be set.
type GenerateRequest struct {
	RequestID        string             `json:"requestId,omitempty"`
	Type             CredentialType     `json:"type" validate:"required"`
	Subject          domain.SubjectID   `json:"subject" validate:"required"`
	Privacy          privacy.Parameters `json:"privacy"`
	ExpiresInSeconds int64              `json:"expiresInSeconds,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`

	Repository    *RepositoryInput    `json:"repository,omitempty"`
	Language      *LanguageInput      `json:"language,omitempty"`
	Collaboration *CollaborationInput `json:"collaboration,omitempty"`
	Consistency   *ConsistencyInput   `json:"consistency,omitempty"`
	Aggregate     *AggregateInput     `json:"aggregate,omitempty"`
}

// BatchOptions controls GenerateBatch.
type BatchOptions struct {
	Parallel     bool `json:"parallel"`
	MaxBatchSize int  `json:"maxBatchSize,omitempty"`
}

// VerifyRequest verifies a stored credential by ID or a presented record.
type VerifyRequest struct {
	CredentialID   domain.CredentialID `json:"credentialId,omitempty"`
	Credential     *CredentialRecord   `json:"credential,omitempty"`
	RequiredClaims []string            `json:"requiredClaims,omitempty"`
	// AcceptableAge rejects credentials issued longer ago. Zero disables it.
	AcceptableAge time.Duration `json:"-"`
	// AcceptableAgeSeconds is the JSON form of AcceptableAge.
	AcceptableAgeSeconds int64 `json:"acceptableAgeSeconds,omitempty"`
}

// MaxAge resolves the acceptable age from either field.
func (r VerifyRequest) MaxAge() time.Duration {
	if r.AcceptableAge > 0 {
		return r.AcceptableAge
	}
	return time.Duration(r.AcceptableAgeSeconds) * time.Second
}
