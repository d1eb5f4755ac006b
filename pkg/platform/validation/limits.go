// Package validation holds the size limits applied to every generation
// request before any claim is encoded.
package validation

import (
	"unicode/utf8"

	dErrors "devcred/pkg/domain-errors"
)

// Element counts.
const (
	MaxCommitHashes           = 10000
	MaxCollaborators          = 1000
	MaxRepositories           = 200
	MaxLanguagesPerRepository = 50
	// MaxMerklePathLength is checked before the configured Merkle depth.
	MaxMerklePathLength = 64
	MaxMetadataEntries  = 32
	MaxRequiredClaims   = 32
)

// String lengths, in characters.
const (
	MaxNameLength           = 200
	MaxLanguageLength       = 64
	MaxCollaboratorIDLength = 256
	MaxMetadataValueLength  = 512
)

// CheckCount fails when a collection named field holds more than max entries.
func CheckCount(field string, n, max int) error {
	if n > max {
		return dErrors.Newf(dErrors.CodeValidation, "%s has %d entries, at most %d allowed", field, n, max)
	}
	return nil
}

// CheckLength fails when value is longer than max characters. Length is
// counted in runes so multi-byte names get the same allowance.
func CheckLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return dErrors.Newf(dErrors.CodeValidation, "%s is %d characters, at most %d allowed", field, n, max)
	}
	return nil
}
