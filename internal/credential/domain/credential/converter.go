package credential

import (
	"fmt"

	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
	"devcred/internal/privacy"
)

// ToModel converts a domain Credential to a CredentialRecord for persistence
// and API responses. The stored status is kept; callers wanting the expired
// view use StatusAt.
func ToModel(c *Credential) models.CredentialRecord {
	return models.CredentialRecord{
		ID:           c.id,
		Type:         c.Type(),
		Version:      c.version,
		Issuer:       c.issuer,
		Subject:      c.subject,
		Claims:       models.Claims(c.claims.ToMap()),
		Proof:        c.proof.Clone(),
		IssuedAt:     c.issuedAt.Time(),
		ExpiresAt:    c.expiresAt.Ptr(),
		Metadata:     c.Metadata(),
		Status:       c.status,
		PrivacyLevel: string(c.privacyLevel),
	}
}

// FromModel converts a CredentialRecord back to a domain Credential.
// Returns an error if the record violates domain invariants. A stored
// "expired" status is read back as ready; expiry is always derived.
func FromModel(m models.CredentialRecord) (*Credential, error) {
	issuedAt, err := shared.NewIssuedAt(m.IssuedAt)
	if err != nil {
		return nil, err
	}
	expiresAt := shared.NoExpiration()
	if m.ExpiresAt != nil {
		if expiresAt, err = shared.NewExpiresAtAfter(*m.ExpiresAt, issuedAt); err != nil {
			return nil, err
		}
	}

	cs, err := ClaimsFromMap(m.Type, m.Claims)
	if err != nil {
		return nil, fmt.Errorf("decode %s claims: %w", m.Type, err)
	}
	if err := checkClaimsType(m.Type, cs); err != nil {
		return nil, err
	}

	status := m.Status
	if status == models.StatusExpired {
		status = models.StatusReady
	}

	return New(Attributes{
		ID:           m.ID,
		Version:      m.Version,
		Issuer:       m.Issuer,
		Subject:      m.Subject,
		Claims:       cs,
		Proof:        m.Proof,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Metadata:     m.Metadata,
		Status:       status,
		PrivacyLevel: privacy.Level(m.PrivacyLevel),
	})
}
