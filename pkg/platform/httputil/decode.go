package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/middleware/request"
)

// MaxBodyBytes bounds every decoded request body. Batch submissions are the
// largest legitimate payloads.
const MaxBodyBytes = 4 << 20

// Normalizer trims and defaults a decoded request before validation.
type Normalizer interface {
	Normalize()
}

// Validator rejects a decoded request. Domain errors keep their code; any
// other error is reported as invalid_request.
type Validator interface {
	Validate() error
}

// Decode reads one JSON document into T, then normalizes and validates it.
// On failure it writes the error response itself and returns false.
//
//	req, ok := httputil.Decode[GenerateRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req := new(T)
	if err := decodeBody(w, r, req); err != nil {
		return nil, reject(w, r, logger, "failed to decode request body", err)
	}
	if err := Prepare(req); err != nil {
		return nil, reject(w, r, logger, "invalid request", err)
	}
	return req, true
}

// Prepare runs Normalize and then Validate, for whichever req implements.
func Prepare(req any) error {
	if n, ok := req.(Normalizer); ok {
		n.Normalize()
	}
	if v, ok := req.(Validator); ok {
		if err := v.Validate(); err != nil {
			var de *dErrors.Error
			if errors.As(err, &de) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInvalidRequest, err.Error())
		}
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	err := dec.Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return dErrors.New(dErrors.CodeBatchTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeInvalidRequest, "request body is empty")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid request body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeInvalidRequest, "request body must hold a single JSON value")
	}
	return nil
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) bool {
	logger.WarnContext(r.Context(), msg,
		"error", err,
		"request_id", request.IDFromContext(r.Context()),
	)
	WriteError(w, err)
	return false
}
