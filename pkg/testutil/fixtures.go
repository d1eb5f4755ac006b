package testutil

import (
	"fmt"
	"time"

	"devcred/internal/claims"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
	"devcred/internal/privacy"
	"devcred/pkg/domain"
)

// TestIDs provides fixed IDs for deterministic test data.
var TestIDs = struct {
	Subject1     domain.SubjectID
	Subject2     domain.SubjectID
	Credential1  domain.CredentialID
	Credential2  domain.CredentialID
	IssuerID     string
	IssuedAt     time.Time
	RepoCommit   claims.Commitment
	GroupCommit  claims.Commitment
	AnotherRepo  claims.Commitment
	UnknownCred  domain.CredentialID
	ProofSignals []string
}{
	Subject1:     domain.SubjectID("did:example:alice"),
	Subject2:     domain.SubjectID("did:example:bob"),
	Credential1:  domain.CredentialID("cred_11111111-1111-1111-1111-111111111111"),
	Credential2:  domain.CredentialID("cred_22222222-2222-2222-2222-222222222222"),
	IssuerID:     "did:web:devcred.example",
	IssuedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	RepoCommit:   claims.Commitment("a3f1c2d4e5b6978812345678901234567890abcdefabcdefabcdefabcdefabcd"),
	GroupCommit:  claims.Commitment("b4e2d3c5f6a7089923456789012345678901bcdefabcdefabcdefabcdefabcde"),
	AnotherRepo:  claims.Commitment("c5f3e4d6a7b8190a34567890123456789012cdefabcdefabcdefabcdefabcdef"),
	UnknownCred:  domain.CredentialID("cred_99999999-9999-9999-9999-999999999999"),
	ProofSignals: []string{"50", "10"},
}

// Groth16Proof returns a structurally valid groth16 artifact.
func Groth16Proof() models.ProofArtifact {
	return models.ProofArtifact{
		PiA:           []string{"1", "2", "1"},
		PiB:           [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
		PiC:           []string{"7", "8", "1"},
		Protocol:      models.ProtocolGroth16,
		Curve:         "bn128",
		PublicSignals: append([]string(nil), TestIDs.ProofSignals...),
	}
}

// CredentialBuilder provides a fluent interface for building test credentials.
type CredentialBuilder struct {
	attrs     credential.Attributes
	issuedAt  time.Time
	expiresAt time.Time
}

// NewCredentialBuilder creates a repository credential builder with
// sensible defaults: issued at TestIDs.IssuedAt, no expiry, groth16 proof.
func NewCredentialBuilder() *CredentialBuilder {
	commits := mustEncode(claims.CommitLadder, 42)
	lines := mustEncode(claims.LinesLadder, 2500)
	return &CredentialBuilder{
		attrs: credential.Attributes{
			ID:           domain.NewCredentialID(),
			Issuer:       models.Issuer{ID: TestIDs.IssuerID, Name: "devcred"},
			Subject:      TestIDs.Subject1,
			Claims:       credential.NewRepositoryClaims(TestIDs.RepoCommit, commits, lines, 21.5, ""),
			Proof:        Groth16Proof(),
			PrivacyLevel: privacy.LevelHigh,
		},
		issuedAt: TestIDs.IssuedAt,
	}
}

func (b *CredentialBuilder) WithID(id domain.CredentialID) *CredentialBuilder {
	b.attrs.ID = id
	return b
}

func (b *CredentialBuilder) WithSubject(subject domain.SubjectID) *CredentialBuilder {
	b.attrs.Subject = subject
	return b
}

func (b *CredentialBuilder) WithClaims(cs credential.ClaimSet) *CredentialBuilder {
	b.attrs.Claims = cs
	return b
}

func (b *CredentialBuilder) WithProof(p models.ProofArtifact) *CredentialBuilder {
	b.attrs.Proof = p
	return b
}

func (b *CredentialBuilder) WithPrivacyLevel(l privacy.Level) *CredentialBuilder {
	b.attrs.PrivacyLevel = l
	return b
}

func (b *CredentialBuilder) WithMetadata(m map[string]string) *CredentialBuilder {
	b.attrs.Metadata = m
	return b
}

func (b *CredentialBuilder) IssuedAt(t time.Time) *CredentialBuilder {
	b.issuedAt = t
	return b
}

func (b *CredentialBuilder) ExpiresAt(t time.Time) *CredentialBuilder {
	b.expiresAt = t
	return b
}

func (b *CredentialBuilder) Revoked() *CredentialBuilder {
	b.attrs.Status = models.StatusRevoked
	return b
}

// Build panics on invalid input. For tests only.
func (b *CredentialBuilder) Build() *credential.Credential {
	issuedAt, err := shared.NewIssuedAt(b.issuedAt)
	if err != nil {
		panic(fmt.Sprintf("CredentialBuilder: %v", err))
	}
	b.attrs.IssuedAt = issuedAt
	b.attrs.ExpiresAt = shared.NoExpiration()
	if !b.expiresAt.IsZero() {
		if b.attrs.ExpiresAt, err = shared.NewExpiresAtAfter(b.expiresAt, issuedAt); err != nil {
			panic(fmt.Sprintf("CredentialBuilder: %v", err))
		}
	}
	c, err := credential.New(b.attrs)
	if err != nil {
		panic(fmt.Sprintf("CredentialBuilder: %v", err))
	}
	return c
}

// NewTestCredential creates a repository credential for subject.
func NewTestCredential(id domain.CredentialID, subject domain.SubjectID) *credential.Credential {
	return NewCredentialBuilder().
		WithID(id).
		WithSubject(subject).
		Build()
}

func mustEncode(l claims.Ladder, x int64) claims.RangeProof {
	rp, err := l.Encode(x)
	if err != nil {
		panic(fmt.Sprintf("mustEncode: %v", err))
	}
	return rp
}
