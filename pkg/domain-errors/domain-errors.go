// Package domainerrors carries stable error codes from the credential,
// privacy and validation layers up to the transport, which maps them to
// HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code names a failure in domain terms. Codes are part of the public API:
// they appear as the "error" field of HTTP replies and as GenerateResult's
// errorCode.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeUnavailable  Code = "unavailable"

	// claim encoding
	CodeInvalidRange            Code = "invalid_range"
	CodeInvalidCommitmentFormat Code = "invalid_commitment_format"

	// privacy engine
	CodeInvalidEpsilon          Code = "invalid_epsilon"
	CodeInvalidPrivacyParams    Code = "invalid_privacy_parameters"
	CodeBudgetExceeded          Code = "budget_exceeded"
	CodeInsufficientGroupSize   Code = "insufficient_group_size"
	CodeMissingQuasiIdentifiers Code = "missing_quasi_identifiers"

	// credential lifecycle
	CodeInvalidRequest    Code = "invalid_request"
	CodeUnsupportedType   Code = "unsupported_type"
	CodeTimeout           Code = "timeout"
	CodeCredentialExpired Code = "credential_expired"
	CodeInvalidProof      Code = "invalid_proof"
	CodeRevoked           Code = "revoked"
	CodeBatchTooLarge     Code = "batch_too_large"
)

// Error is a coded failure. Message is safe to show to clients unless the
// code is CodeInternal; Err keeps the cause for logs and errors.Is.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code, so a bare
// &Error{Code: CodeRevoked} works as an errors.Is target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches msg to err. A code already present in err's chain wins over
// code, so the innermost classification survives every layer.
func Wrap(err error, code Code, msg string) error {
	if c, ok := codeIn(err); ok {
		code = c
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	c, ok := codeIn(err)
	return ok && c == code
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if c, ok := codeIn(err); ok {
		return c
	}
	return CodeInternal
}

func codeIn(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
