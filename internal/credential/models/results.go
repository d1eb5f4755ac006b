package models

import (
	"time"

	"devcred/internal/findings"
	"devcred/pkg/domain"
)

// GenerateStatus is the outcome of a single generation.
type GenerateStatus string

const (
	GenerateStatusReady   GenerateStatus = "ready"
	GenerateStatusInvalid GenerateStatus = "invalid"
)

// ComplianceStatus is one standard's evaluation.
type ComplianceStatus struct {
	Standard            string   `json:"standard"`
	Compliant           bool     `json:"compliant"`
	Score               float64  `json:"score"`
	MissingRequirements []string `json:"missingRequirements"`
}

// GenerateResult never carries a Go error: failures set Status to invalid
// and describe themselves in Error.
type GenerateResult struct {
	RequestID          string             `json:"requestId"`
	Credential         *CredentialRecord  `json:"credential,omitempty"`
	Status             GenerateStatus     `json:"status"`
	Error              string             `json:"error,omitempty"`
	ErrorCode          string             `json:"errorCode,omitempty"`
	Findings           []findings.Finding `json:"findings,omitempty"`
	Warnings           []findings.Finding `json:"warnings,omitempty"`
	GenerationTimeMs   int64              `json:"generationTimeMs"`
	ProofSizeBytes     int                `json:"proofSizeBytes"`
	VerificationKeyRef string             `json:"verificationKeyRef,omitempty"`
	PrivacyLevel       string             `json:"privacyLevel,omitempty"`
	Compliance         []ComplianceStatus `json:"compliance,omitempty"`
	EpsilonSpent       float64            `json:"epsilonSpent"`
}

// BatchStatus summarises a batch.
type BatchStatus string

const (
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusFailed    BatchStatus = "failed"
)

// BatchResult reports per-item results in request order plus counts.
type BatchResult struct {
	BatchID       domain.BatchID   `json:"batchId"`
	Results       []GenerateResult `json:"results"`
	SuccessCount  int              `json:"successCount"`
	FailureCount  int              `json:"failureCount"`
	OverallStatus BatchStatus      `json:"overallStatus"`
	TotalTimeMs   int64            `json:"totalTimeMs"`
}

// VerificationResult reports a verification.
type VerificationResult struct {
	CredentialID       domain.CredentialID `json:"credentialId,omitempty"`
	IsValid            bool                `json:"isValid"`
	Status             Status              `json:"status,omitempty"`
	ClaimsVerified     []string            `json:"claimsVerified"`
	ClaimsFailed       []string            `json:"claimsFailed"`
	TrustScore         float64             `json:"trustScore"`
	VerificationTimeMs int64               `json:"verificationTimeMs"`
	Reason             string              `json:"reason,omitempty"`
	ErrorCode          string              `json:"errorCode,omitempty"`
}

// PendingRequest is an in-flight generation.
type PendingRequest struct {
	RequestID string           `json:"requestId"`
	BatchID   domain.BatchID   `json:"batchId,omitempty"`
	Subject   domain.SubjectID `json:"subject"`
	Type      CredentialType   `json:"type"`
	StartedAt time.Time        `json:"startedAt"`
}
