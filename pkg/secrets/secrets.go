// Package secrets generates keys and resolves secret references from
// configuration, so key material can live outside the config file.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	dErrors "devcred/pkg/domain-errors"
)

// KeySize is the number of random bytes behind a generated secret.
const KeySize = 32

// Generate returns KeySize random bytes, base64url encoded without padding.
func Generate() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Resolve expands a secret reference:
//
//	env:NAME    the value of environment variable NAME
//	file:PATH   the contents of PATH, without trailing newlines
//	anything    itself
//
// An empty reference resolves to "". A reference that points at nothing is an
// error rather than an empty secret.
func Resolve(ref string) (string, error) {
	return resolve(ref, os.LookupEnv, os.ReadFile)
}

func resolve(ref string, lookup func(string) (string, bool), read func(string) ([]byte, error)) (string, error) {
	kind, target, ok := strings.Cut(ref, ":")
	switch {
	case ok && kind == "env":
		v, found := lookup(target)
		if !found || v == "" {
			return "", fmt.Errorf("secret env:%s is not set", target)
		}
		return v, nil
	case ok && kind == "file":
		data, err := read(target)
		if err != nil {
			return "", fmt.Errorf("secret file:%s: %w", target, err)
		}
		v := strings.TrimRight(string(data), "\r\n")
		if v == "" {
			return "", fmt.Errorf("secret file:%s is empty", target)
		}
		return v, nil
	default:
		return ref, nil
	}
}
