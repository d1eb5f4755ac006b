package handler

import (
	"fmt"
	"strings"

	"devcred/internal/credential/models"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	limits "devcred/pkg/platform/validation"
)

// maxBatchRequests bounds decoding work only. The manager enforces its own,
// usually smaller, batch limit.
const (
	maxRequestIDLength = 128
	maxBatchRequests   = 1000
)

// GenerateRequest is the request body for credential generation.
// Activity inputs are checked by the validation pipeline, not here.
type GenerateRequest struct {
	models.GenerateRequest
}

func (r *GenerateRequest) Normalize() {
	if r == nil {
		return
	}
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.Subject = domain.SubjectID(strings.TrimSpace(string(r.Subject)))
	r.Type = models.CredentialType(strings.ToLower(strings.TrimSpace(string(r.Type))))
}

// Validate validates the request envelope.
func (r *GenerateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request is required")
	}
	return validateEnvelope(&r.GenerateRequest, "")
}

func validateEnvelope(req *models.GenerateRequest, prefix string) error {
	// Phase 1: Size validation
	if len(req.RequestID) > maxRequestIDLength {
		return dErrors.New(dErrors.CodeInvalidRequest, prefix+"requestId is too long")
	}
	if len(req.Metadata) > limits.MaxMetadataEntries {
		return dErrors.Newf(dErrors.CodeInvalidRequest, "%smetadata has more than %d entries", prefix, limits.MaxMetadataEntries)
	}

	// Phase 2: Required fields
	if req.Type == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, prefix+"type is required")
	}
	if req.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, prefix+"subject is required")
	}

	// Phase 3: Syntax
	if _, err := domain.ParseSubjectID(string(req.Subject)); err != nil {
		return dErrors.New(dErrors.CodeInvalidRequest, prefix+err.Error())
	}
	if req.ExpiresInSeconds < 0 {
		return dErrors.New(dErrors.CodeInvalidRequest, prefix+"expiresInSeconds must not be negative")
	}
	return nil
}

// BatchRequest is the request body for batch generation. The batch limit is
// the server's; clients cannot raise it.
type BatchRequest struct {
	Requests []models.GenerateRequest `json:"requests"`
	Parallel bool                     `json:"parallel"`
}

func (r *BatchRequest) Normalize() {
	if r == nil {
		return
	}
	for i := range r.Requests {
		g := GenerateRequest{r.Requests[i]}
		g.Normalize()
		r.Requests[i] = g.GenerateRequest
	}
}

func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request is required")
	}
	if len(r.Requests) > maxBatchRequests {
		return dErrors.Newf(dErrors.CodeBatchTooLarge,
			"batch of %d requests exceeds the maximum of %d", len(r.Requests), maxBatchRequests)
	}
	if len(r.Requests) == 0 {
		return dErrors.New(dErrors.CodeInvalidRequest, "requests is required")
	}
	for i := range r.Requests {
		if err := validateEnvelope(&r.Requests[i], fmt.Sprintf("requests[%d].", i)); err != nil {
			return err
		}
	}
	return nil
}

// VerifyRequest is the request body for verification.
type VerifyRequest struct {
	models.VerifyRequest
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request is required")
	}

	// Phase 1: Size validation
	if err := limits.CheckCount("requiredClaims", len(r.RequiredClaims), limits.MaxRequiredClaims); err != nil {
		return err
	}
	if r.AcceptableAgeSeconds < 0 {
		return dErrors.New(dErrors.CodeInvalidRequest, "acceptableAgeSeconds must not be negative")
	}

	// Phase 2: Required fields
	if r.CredentialID == "" && r.Credential == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "credentialId or credential is required")
	}

	// Phase 3: Syntax
	if r.CredentialID != "" {
		if _, err := domain.ParseCredentialID(string(r.CredentialID)); err != nil {
			return dErrors.New(dErrors.CodeInvalidRequest, err.Error())
		}
	}
	return nil
}
