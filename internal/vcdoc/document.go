// Package vcdoc converts credentials to and from standard verifiable
// credential documents.
//
// Exported documents never carry a range proof's hidden value: claims are
// stripped recursively before they are placed in the credential subject.
package vcdoc

import (
	"time"

	"devcred/internal/credential/models"
)

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextDevcredV1     = "https://devcred.example/contexts/v1"

	TypeVerifiableCredential = "VerifiableCredential"
	ZKProofType              = "ZKProof"
	ProofPurposeAssertion    = "assertionMethod"

	// ProofTypeReference marks an unsigned document whose only evidence is
	// the embedded zero-knowledge proof.
	ProofTypeReference = "ZKProofReference2024"

	credentialIDPrefix = "urn:devcred:"
)

// dateLayout is ISO-8601 with fixed millisecond precision, matching the
// precision credentials keep internally.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// documentTypes maps each credential type to its VC type name.
var documentTypes = map[models.CredentialType]string{
	models.CredentialTypeRepository:    "RepositoryContributionCredential",
	models.CredentialTypeLanguage:      "LanguageProficiencyCredential",
	models.CredentialTypeCollaboration: "CollaborationCredential",
	models.CredentialTypeConsistency:   "ContributionConsistencyCredential",
	models.CredentialTypeAggregate:     "DeveloperProfileCredential",
}

// Document is a standard verifiable credential.
type Document struct {
	Context           []string `json:"@context"`
	ID                string   `json:"id"`
	Type              []string `json:"type"`
	Issuer            Issuer   `json:"issuer"`
	IssuanceDate      string   `json:"issuanceDate"`
	ExpirationDate    string   `json:"expirationDate,omitempty"`
	CredentialSubject Subject  `json:"credentialSubject"`
	Proof             *Proof   `json:"proof,omitempty"`
}

type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Subject holds the claims about the credential subject.
type Subject struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Claims  map[string]any `json:"claims"`
	ZKProof ZKProof        `json:"zkProof"`
}

// ZKProof embeds the prover's artifact.
type ZKProof struct {
	Type               string      `json:"type"`
	ProofSystem        string      `json:"proofSystem"`
	Curve              string      `json:"curve"`
	Proof              ProofPoints `json:"proof"`
	VerificationMethod string      `json:"verificationMethod"`
	PublicSignals      []string    `json:"publicSignals,omitempty"`
}

// ProofPoints are the group elements of a proof, as decimal strings.
type ProofPoints struct {
	PiA []string   `json:"pi_a"`
	PiB [][]string `json:"pi_b"`
	PiC []string   `json:"pi_c"`
}

// Proof is the document-level linked data proof.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// unsigned returns a shallow copy without the document proof; it is the
// payload signers commit to.
func (d Document) unsigned() Document {
	d.Proof = nil
	return d
}
