// Package credential defines the Credential aggregate.
//
// Domain Purity: this package contains only pure domain logic with no I/O,
// no context.Context, and no time.Now() calls.
//
// Invariants:
//   - ID, subject, issuer, issuedAt and claims are always present
//   - expiresAt, when set, is after issuedAt
//   - claims never carry a range proof's hidden value
//   - status moves only from ready to revoked
package credential

import (
	"errors"
	"maps"
	"time"

	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
	"devcred/internal/privacy"
	"devcred/pkg/domain"
)

var (
	errMissingCredentialID = errors.New("credential_id is required")
	errMissingSubject      = errors.New("subject is required")
	errMissingIssuer       = errors.New("issuer is required")
	errMissingIssuedAt     = errors.New("issued_at is required")
	errNilClaims           = errors.New("claims cannot be nil")
	errClaimsTypeMismatch  = errors.New("claims do not match credential type")
	errInvalidStatus       = errors.New("status must be ready or revoked")
)

// Credential is the aggregate root for issued developer credentials.
type Credential struct {
	id           domain.CredentialID
	version      string
	issuer       models.Issuer
	subject      domain.SubjectID
	claims       ClaimSet
	proof        models.ProofArtifact
	issuedAt     shared.IssuedAt
	expiresAt    shared.ExpiresAt
	metadata     map[string]string
	status       models.Status
	privacyLevel privacy.Level
}

// Attributes are the inputs to New.
type Attributes struct {
	ID           domain.CredentialID
	Version      string
	Issuer       models.Issuer
	Subject      domain.SubjectID
	Claims       ClaimSet
	Proof        models.ProofArtifact
	IssuedAt     shared.IssuedAt
	ExpiresAt    shared.ExpiresAt
	Metadata     map[string]string
	Status       models.Status
	PrivacyLevel privacy.Level
}

// New creates a credential with validated invariants. Claims are stored
// without hidden values regardless of what the caller passes. An empty
// status means ready.
func New(a Attributes) (*Credential, error) {
	if a.ID.IsNil() {
		return nil, errMissingCredentialID
	}
	if a.Subject.IsNil() {
		return nil, errMissingSubject
	}
	if a.Issuer.ID == "" {
		return nil, errMissingIssuer
	}
	if a.IssuedAt.IsZero() {
		return nil, errMissingIssuedAt
	}
	if a.Claims == nil {
		return nil, errNilClaims
	}
	if !a.ExpiresAt.IsZero() && !a.ExpiresAt.Time().After(a.IssuedAt.Time()) {
		return nil, shared.ErrExpiresBeforeIssued
	}
	switch a.Status {
	case "":
		a.Status = models.StatusReady
	case models.StatusReady, models.StatusRevoked:
	default:
		return nil, errInvalidStatus
	}
	if a.Version == "" {
		a.Version = models.CredentialVersion
	}

	return &Credential{
		id:           a.ID,
		version:      a.Version,
		issuer:       a.Issuer,
		subject:      a.Subject,
		claims:       a.Claims.WithoutHidden(),
		proof:        a.Proof.Clone(),
		issuedAt:     a.IssuedAt,
		expiresAt:    a.ExpiresAt,
		metadata:     maps.Clone(a.Metadata),
		status:       a.Status,
		privacyLevel: a.PrivacyLevel,
	}, nil
}

func (c *Credential) ID() domain.CredentialID        { return c.id }
func (c *Credential) Type() models.CredentialType    { return c.claims.Type() }
func (c *Credential) Version() string                { return c.version }
func (c *Credential) Issuer() models.Issuer          { return c.issuer }
func (c *Credential) Subject() domain.SubjectID      { return c.subject }
func (c *Credential) Claims() ClaimSet               { return c.claims }
func (c *Credential) Proof() models.ProofArtifact    { return c.proof.Clone() }
func (c *Credential) IssuedAt() shared.IssuedAt      { return c.issuedAt }
func (c *Credential) ExpiresAt() shared.ExpiresAt    { return c.expiresAt }
func (c *Credential) Metadata() map[string]string    { return maps.Clone(c.metadata) }
func (c *Credential) PrivacyLevel() privacy.Level    { return c.privacyLevel }
func (c *Credential) StoredStatus() models.Status    { return c.status }
func (c *Credential) IsRevoked() bool                { return c.status == models.StatusRevoked }
func (c *Credential) IsExpiredAt(now time.Time) bool { return c.expiresAt.IsExpiredAt(now) }

// StatusAt is the status as seen at now: revoked wins over expired.
func (c *Credential) StatusAt(now time.Time) models.Status {
	if c.IsRevoked() {
		return models.StatusRevoked
	}
	if c.IsExpiredAt(now) {
		return models.StatusExpired
	}
	return models.StatusReady
}

// Revoke moves the credential to revoked. It reports whether the status
// changed, so repeated calls are harmless.
func (c *Credential) Revoke() bool {
	if c.IsRevoked() {
		return false
	}
	c.status = models.StatusRevoked
	return true
}

// ZKBacked reports whether a zero-knowledge proof is attached.
func (c *Credential) ZKBacked() bool {
	return !c.proof.IsZero() && c.proof.ZeroKnowledge()
}

// checkClaimsType guards conversions where the stored type and the claims
// disagree.
func checkClaimsType(credType models.CredentialType, cs ClaimSet) error {
	if cs.Type() != credType {
		return errClaimsTypeMismatch
	}
	return nil
}
