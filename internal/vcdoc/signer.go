package vcdoc

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

const (
	ProofTypeJWS     = "JsonWebSignature2020"
	ProofTypeEd25519 = "Ed25519Signature2020"

	// multibaseBase58BTC is the multibase prefix for base58btc.
	multibaseBase58BTC = "z"
	digestClaim        = "digest"
)

var errSignatureMismatch = errors.New("signature does not match document")

// Signer produces and checks the document-level proof value over a digest
// of the unsigned document.
type Signer interface {
	ProofType() string
	VerificationMethod() string
	Sign(digest []byte) (string, error)
	Verify(digest []byte, proofValue string) error
}

// digest hashes the JSON encoding of the document without its proof.
func digest(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc.unsigned())
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// JWSSigner signs documents with an HS256 compact JWS carrying the document
// digest.
type JWSSigner struct {
	key                []byte
	verificationMethod string
}

func NewJWSSigner(key []byte, verificationMethod string) (*JWSSigner, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("jws signing key must be at least 32 bytes, got %d", len(key))
	}
	return &JWSSigner{key: append([]byte(nil), key...), verificationMethod: verificationMethod}, nil
}

func (s *JWSSigner) ProofType() string          { return ProofTypeJWS }
func (s *JWSSigner) VerificationMethod() string { return s.verificationMethod }

func (s *JWSSigner) Sign(digest []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		digestClaim: base64.RawURLEncoding.EncodeToString(digest),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign document: %w", err)
	}
	return signed, nil
}

func (s *JWSSigner) Verify(digest []byte, proofValue string) error {
	token, err := jwt.Parse(proofValue, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("parse jws: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errSignatureMismatch
	}
	got, _ := claims[digestClaim].(string)
	if got != base64.RawURLEncoding.EncodeToString(digest) {
		return errSignatureMismatch
	}
	return nil
}

// Ed25519Signer signs the digest with Ed25519 and encodes the signature as
// a multibase base58btc string.
type Ed25519Signer struct {
	priv               ed25519.PrivateKey
	pub                ed25519.PublicKey
	verificationMethod string
}

// NewEd25519Signer derives the key pair from a 32-byte seed.
func NewEd25519Signer(seed []byte, verificationMethod string) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{
		priv:               priv,
		pub:                priv.Public().(ed25519.PublicKey),
		verificationMethod: verificationMethod,
	}, nil
}

func (s *Ed25519Signer) ProofType() string          { return ProofTypeEd25519 }
func (s *Ed25519Signer) VerificationMethod() string { return s.verificationMethod }

// PublicKey returns a copy of the verification key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), s.pub...)
}

func (s *Ed25519Signer) Sign(digest []byte) (string, error) {
	return multibaseBase58BTC + base58.Encode(ed25519.Sign(s.priv, digest)), nil
}

func (s *Ed25519Signer) Verify(digest []byte, proofValue string) error {
	encoded, ok := strings.CutPrefix(proofValue, multibaseBase58BTC)
	if !ok {
		return fmt.Errorf("proof value is not base58btc multibase")
	}
	sig, err := base58.Decode(encoded)
	if err != nil {
		return fmt.Errorf("decode proof value: %w", err)
	}
	if !ed25519.Verify(s.pub, digest, sig) {
		return errSignatureMismatch
	}
	return nil
}
