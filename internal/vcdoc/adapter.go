package vcdoc

import (
	"fmt"
	"strings"

	"devcred/internal/claims"
	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
)

const defaultVerificationKeyBase = "devcred:vk"

// Adapter maps credentials to standard documents and back.
type Adapter struct {
	signer              Signer
	verificationKeyBase string
	contexts            []string
}

type Option func(*Adapter)

// WithSigner attaches a document-level signature on export.
func WithSigner(s Signer) Option {
	return func(a *Adapter) {
		a.signer = s
	}
}

func WithVerificationKeyBase(base string) Option {
	return func(a *Adapter) {
		if base != "" {
			a.verificationKeyBase = base
		}
	}
}

// WithContexts appends extra JSON-LD contexts after the default ones.
func WithContexts(contexts ...string) Option {
	return func(a *Adapter) {
		a.contexts = append(a.contexts, contexts...)
	}
}

func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		verificationKeyBase: defaultVerificationKeyBase,
		contexts:            []string{ContextCredentialsV1, ContextDevcredV1},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) verificationKeyRef(t models.CredentialType) string {
	return a.verificationKeyBase + "/" + string(t) + "/v" + models.CredentialVersion
}

// ToStandard renders c as a document. The proof's created time is the
// issuance time so repeated exports of one credential are identical.
func (a *Adapter) ToStandard(c *credential.Credential) (*Document, error) {
	if c == nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "credential is required")
	}
	claimMap, ok := claims.StripHidden(c.Claims().ToMap()).(map[string]any)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "claims did not encode as an object")
	}

	issuer := c.Issuer()
	proof := c.Proof()
	keyRef := a.verificationKeyRef(c.Type())
	doc := &Document{
		Context: append([]string(nil), a.contexts...),
		ID:      credentialIDPrefix + c.ID().String(),
		Type:    []string{TypeVerifiableCredential, documentTypes[c.Type()]},
		Issuer: Issuer{
			ID:   issuer.ID,
			Name: issuer.Name,
			Type: issuer.Type,
		},
		IssuanceDate: formatDate(c.IssuedAt().Time()),
		CredentialSubject: Subject{
			ID:     c.Subject().String(),
			Type:   string(c.Type()),
			Claims: claimMap,
			ZKProof: ZKProof{
				Type:        ZKProofType,
				ProofSystem: proof.Protocol,
				Curve:       proof.Curve,
				Proof: ProofPoints{
					PiA: proof.PiA,
					PiB: proof.PiB,
					PiC: proof.PiC,
				},
				VerificationMethod: keyRef,
				PublicSignals:      proof.PublicSignals,
			},
		},
	}
	if !c.ExpiresAt().IsZero() {
		doc.ExpirationDate = formatDate(c.ExpiresAt().Time())
	}

	docProof := &Proof{
		Type:               ProofTypeReference,
		Created:            doc.IssuanceDate,
		VerificationMethod: keyRef,
		ProofPurpose:       ProofPurposeAssertion,
	}
	if a.signer != nil {
		sum, err := digest(*doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest document")
		}
		value, err := a.signer.Sign(sum)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign document")
		}
		docProof.Type = a.signer.ProofType()
		docProof.VerificationMethod = a.signer.VerificationMethod()
		docProof.ProofValue = value
	}
	doc.Proof = docProof
	return doc, nil
}

// FromStandard reconstructs a credential from a document. The result is
// always ready: revocation state lives in the store, not in documents.
func (a *Adapter) FromStandard(doc *Document) (*credential.Credential, error) {
	if doc == nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "document is required")
	}
	credType, err := documentType(doc)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseCredentialID(strings.TrimPrefix(doc.ID, credentialIDPrefix))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "document id is not a credential id")
	}
	subject, err := domain.ParseSubjectID(doc.CredentialSubject.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "credentialSubject.id is invalid")
	}

	issued, err := parseDate(doc.IssuanceDate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "issuanceDate is not ISO-8601")
	}
	issuedAt, err := shared.NewIssuedAt(issued)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "issuanceDate is invalid")
	}
	expiresAt := shared.NoExpiration()
	if doc.ExpirationDate != "" {
		exp, err := parseDate(doc.ExpirationDate)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "expirationDate is not ISO-8601")
		}
		if expiresAt, err = shared.NewExpiresAtAfter(exp, issuedAt); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "expirationDate is invalid")
		}
	}

	stripped, _ := claims.StripHidden(doc.CredentialSubject.Claims).(map[string]any)
	cs, err := credential.ClaimsFromMap(credType, stripped)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, fmt.Sprintf("decode %s claims", credType))
	}

	zk := doc.CredentialSubject.ZKProof
	cred, err := credential.New(credential.Attributes{
		ID:      id,
		Version: models.CredentialVersion,
		Issuer: models.Issuer{
			ID:   doc.Issuer.ID,
			Name: doc.Issuer.Name,
			Type: doc.Issuer.Type,
		},
		Subject: subject,
		Claims:  cs,
		Proof: models.ProofArtifact{
			PiA:           zk.Proof.PiA,
			PiB:           zk.Proof.PiB,
			PiC:           zk.Proof.PiC,
			Protocol:      zk.ProofSystem,
			Curve:         zk.Curve,
			PublicSignals: zk.PublicSignals,
		},
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "document does not describe a valid credential")
	}
	return cred, nil
}

// VerifyDocument checks the document-level signature and that no hidden
// value leaked into the claims.
func (a *Adapter) VerifyDocument(doc *Document) error {
	if doc == nil || doc.Proof == nil {
		return dErrors.New(dErrors.CodeInvalidProof, "document has no proof")
	}
	if claims.ContainsHidden(doc.CredentialSubject.Claims) {
		return dErrors.New(dErrors.CodeInvalidProof, "document discloses a hidden claim value")
	}
	if doc.CredentialSubject.ZKProof.Type != ZKProofType {
		return dErrors.New(dErrors.CodeInvalidProof, "credentialSubject.zkProof.type must be "+ZKProofType)
	}
	if doc.Proof.Type == ProofTypeReference {
		return nil
	}
	if a.signer == nil {
		return dErrors.New(dErrors.CodeUnavailable, "no signer configured for "+doc.Proof.Type)
	}
	if doc.Proof.Type != a.signer.ProofType() {
		return dErrors.Newf(dErrors.CodeInvalidProof,
			"proof type %s does not match signer %s", doc.Proof.Type, a.signer.ProofType())
	}
	sum, err := digest(*doc)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest document")
	}
	if err := a.signer.Verify(sum, doc.Proof.ProofValue); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidProof, "document signature is invalid")
	}
	return nil
}

// documentType prefers credentialSubject.type and falls back to the VC type
// list.
func documentType(doc *Document) (models.CredentialType, error) {
	if doc.CredentialSubject.Type != "" {
		return models.ParseCredentialType(doc.CredentialSubject.Type)
	}
	for _, name := range doc.Type {
		for t, vcName := range documentTypes {
			if name == vcName {
				return t, nil
			}
		}
	}
	return "", dErrors.New(dErrors.CodeUnsupportedType, "document does not name a supported credential type")
}
