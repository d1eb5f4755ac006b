// Package shared holds the time value objects of the credential context.
// Nothing here reads the clock; callers pass the time in.
package shared

import (
	"errors"
	"time"
)

// IssuedAt is the timestamp when a credential was issued.
type IssuedAt struct {
	value time.Time
}

// ErrInvalidIssuedAt indicates the issued_at time is invalid.
var ErrInvalidIssuedAt = errors.New("issued_at cannot be zero")

// NewIssuedAt creates an IssuedAt, truncated to milliseconds so it survives
// ISO-8601 serialization unchanged.
func NewIssuedAt(t time.Time) (IssuedAt, error) {
	if t.IsZero() {
		return IssuedAt{}, ErrInvalidIssuedAt
	}
	return IssuedAt{value: t.UTC().Truncate(time.Millisecond)}, nil
}

func (i IssuedAt) Time() time.Time { return i.value }

func (i IssuedAt) IsZero() bool { return i.value.IsZero() }

// AgeAt returns how long before now the credential was issued.
func (i IssuedAt) AgeAt(now time.Time) time.Duration {
	return now.Sub(i.value)
}

// ExpiresAt is the optional expiry of a credential.
//
// Invariants:
//   - ExpiresAt is after IssuedAt when both are present
//   - Zero value means no expiration
type ExpiresAt struct {
	value time.Time
}

var (
	ErrInvalidExpiresAt    = errors.New("expires_at cannot be zero")
	ErrExpiresBeforeIssued = errors.New("expires_at must be after issued_at")
)

// NewExpiresAtAfter creates an ExpiresAt validated to be after issuedAt.
func NewExpiresAtAfter(t time.Time, issuedAt IssuedAt) (ExpiresAt, error) {
	if t.IsZero() {
		return ExpiresAt{}, ErrInvalidExpiresAt
	}
	t = t.UTC().Truncate(time.Millisecond)
	if !t.After(issuedAt.Time()) {
		return ExpiresAt{}, ErrExpiresBeforeIssued
	}
	return ExpiresAt{value: t}, nil
}

// NoExpiration returns the zero ExpiresAt.
func NoExpiration() ExpiresAt {
	return ExpiresAt{}
}

func (e ExpiresAt) Time() time.Time { return e.value }

func (e ExpiresAt) IsZero() bool { return e.value.IsZero() }

// Ptr returns nil for no expiration, for optional persistence columns.
func (e ExpiresAt) Ptr() *time.Time {
	if e.IsZero() {
		return nil
	}
	t := e.value
	return &t
}

// IsExpiredAt reports whether now is past the expiry. Credentials without an
// expiry never expire.
func (e ExpiresAt) IsExpiredAt(now time.Time) bool {
	if e.IsZero() {
		return false
	}
	return now.After(e.value)
}
