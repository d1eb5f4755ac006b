// Package sentinel holds the errors stores and adapters return for
// conditions a service has to tell apart. Services translate them into
// domain errors in one place, through Translate.
package sentinel

import (
	"errors"

	dErrors "devcred/pkg/domain-errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

var codes = []struct {
	err  error
	code dErrors.Code
}{
	{ErrNotFound, dErrors.CodeNotFound},
	{ErrInvalidState, dErrors.CodeInvalidInput},
	{ErrUnavailable, dErrors.CodeUnavailable},
	// a duplicate id is a bug on our side, not the caller's
	{ErrConflict, dErrors.CodeInternal},
}

// Translate wraps err in a domain error when its chain holds one of the
// sentinels above. ok is false when none matched.
func Translate(err error, msg string) (_ error, ok bool) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return dErrors.Wrap(err, c.code, msg), true
		}
	}
	return err, false
}
