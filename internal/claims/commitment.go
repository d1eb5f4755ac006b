package claims

import (
	"encoding/hex"
	"errors"
	"regexp"
	"slices"

	"golang.org/x/crypto/blake2b"

	dErrors "devcred/pkg/domain-errors"
)

// CommitmentLength is the hex length of a 32-byte commitment.
const CommitmentLength = 64

var commitmentPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Commitment is a 32-byte digest rendered as 64 lowercase hex characters.
type Commitment string

// ParseCommitment validates the fixed commitment encoding.
func ParseCommitment(s string) (Commitment, error) {
	if len(s) != CommitmentLength {
		return "", dErrors.Newf(dErrors.CodeInvalidCommitmentFormat,
			"commitment must be %d hex characters, got %d", CommitmentLength, len(s))
	}
	if !commitmentPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidCommitmentFormat, "commitment must be lowercase hexadecimal")
	}
	return Commitment(s), nil
}

// IsCommitment reports whether s is a well-formed commitment.
func IsCommitment(s string) bool {
	return commitmentPattern.MatchString(s)
}

// String returns the hex form.
func (c Commitment) String() string { return string(c) }

// Bytes decodes the commitment into its 32 raw bytes.
func (c Commitment) Bytes() ([]byte, error) {
	return hex.DecodeString(string(c))
}

// Commitment domains separate identifiers of different kinds.
const (
	DomainRepository   = "repository"
	DomainCollaborator = "collaborator"
	DomainCollabSet    = "collaborator-set"
	DomainLanguage     = "language"
)

var errInvalidCommitmentKey = errors.New("commitment key must be between 16 and 64 bytes")

// Committer derives hiding commitments with keyed BLAKE2b-256 so identifiers
// cannot be recovered by hashing candidate names.
type Committer struct {
	key []byte
}

// NewCommitter builds a committer with the issuer's secret key (16–64 bytes).
func NewCommitter(key []byte) (*Committer, error) {
	if len(key) < 16 || len(key) > blake2b.Size {
		return nil, errInvalidCommitmentKey
	}
	return &Committer{key: slices.Clone(key)}, nil
}

// Commit returns the commitment to value within the given domain.
func (c *Committer) Commit(domain, value string) Commitment {
	h, err := blake2b.New256(c.key)
	if err != nil {
		// key length is checked in NewCommitter
		panic(err)
	}
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write([]byte(value))
	return Commitment(hex.EncodeToString(h.Sum(nil)))
}

// CommitSet commits to an unordered set of already-committed members.
// Members are sorted and de-duplicated so the result is order independent.
func (c *Committer) CommitSet(domain string, members []Commitment) Commitment {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	h, err := blake2b.New256(c.key)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(domain))
	h.Write([]byte{0})
	for _, m := range sorted {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	return Commitment(hex.EncodeToString(h.Sum(nil)))
}
