package models

import (
	"strings"
	"time"

	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
)

// CredentialType captures the supported credential variants.
type CredentialType string

const (
	CredentialTypeRepository    CredentialType = "repository"
	CredentialTypeLanguage      CredentialType = "language"
	CredentialTypeCollaboration CredentialType = "collaboration"
	CredentialTypeConsistency   CredentialType = "consistency"
	CredentialTypeAggregate     CredentialType = "aggregate"

	// CredentialVersion is stamped on every issued credential.
	CredentialVersion = "1.0"
)

// CredentialTypes lists every supported type in a stable order.
var CredentialTypes = []CredentialType{
	CredentialTypeRepository,
	CredentialTypeLanguage,
	CredentialTypeCollaboration,
	CredentialTypeConsistency,
	CredentialTypeAggregate,
}

// ParseCredentialType validates a credential type string and returns the domain type.
func ParseCredentialType(value string) (CredentialType, error) {
	if strings.TrimSpace(value) == "" {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "type is required")
	}
	for _, t := range CredentialTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", dErrors.New(dErrors.CodeUnsupportedType, "unsupported credential type "+value)
}

func (t CredentialType) String() string { return string(t) }

// Status is the stored lifecycle state. Expired is a derived view and is
// never persisted.
type Status string

const (
	StatusReady   Status = "ready"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Issuer identifies the issuing service.
type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// ProofArtifact is the prover's output. Group elements are opaque decimal
// strings.
type ProofArtifact struct {
	PiA           []string   `json:"pi_a"`
	PiB           [][]string `json:"pi_b"`
	PiC           []string   `json:"pi_c"`
	Protocol      string     `json:"protocol"`
	Curve         string     `json:"curve"`
	PublicSignals []string   `json:"publicSignals"`
}

// Proof protocols. ProtocolSimulated marks structurally valid artifacts
// produced without a proving backend; they are never zero-knowledge backed.
const (
	ProtocolGroth16   = "groth16"
	ProtocolPlonk     = "plonk"
	ProtocolSimulated = "simulated"
)

// IsZero reports whether no proof is attached.
func (p ProofArtifact) IsZero() bool {
	return p.Protocol == "" && len(p.PiA) == 0 && len(p.PiB) == 0 && len(p.PiC) == 0
}

// ZeroKnowledge reports whether the artifact comes from a real proving system.
func (p ProofArtifact) ZeroKnowledge() bool {
	return p.Protocol == ProtocolGroth16 || p.Protocol == ProtocolPlonk
}

// Clone returns a deep copy.
func (p ProofArtifact) Clone() ProofArtifact {
	out := ProofArtifact{
		PiA:           cloneStrings(p.PiA),
		PiC:           cloneStrings(p.PiC),
		Protocol:      p.Protocol,
		Curve:         p.Curve,
		PublicSignals: cloneStrings(p.PublicSignals),
	}
	if p.PiB != nil {
		out.PiB = make([][]string, len(p.PiB))
		for i, row := range p.PiB {
			out.PiB[i] = cloneStrings(row)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// Claims is the untyped, hidden-value-free claim payload.
type Claims map[string]any

// CredentialRecord is the persistence and API model; see
// domain/credential.Credential for the aggregate.
type CredentialRecord struct {
	ID           domain.CredentialID `json:"id"`
	Type         CredentialType      `json:"type"`
	Version      string              `json:"version"`
	Issuer       Issuer              `json:"issuer"`
	Subject      domain.SubjectID    `json:"subject"`
	Claims       Claims              `json:"claims"`
	Proof        ProofArtifact       `json:"proof"`
	IssuedAt     time.Time           `json:"issuedAt"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
	Status       Status              `json:"status"`
	PrivacyLevel string              `json:"privacyLevel,omitempty"`
}
