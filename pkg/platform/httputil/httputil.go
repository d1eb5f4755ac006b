package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "devcred/pkg/domain-errors"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates domain errors into HTTP responses. The error field
// carries the domain code unchanged so clients see the same taxonomy as
// GenerateResult.ErrorCode. Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Error:            string(domainErr.Code),
			ErrorDescription: domainErr.Message,
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput, dErrors.CodeInvalidRequest, dErrors.CodeUnsupportedType:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeInvalidRange, dErrors.CodeInvalidCommitmentFormat,
		dErrors.CodeInvalidEpsilon, dErrors.CodeInvalidPrivacyParams,
		dErrors.CodeInsufficientGroupSize, dErrors.CodeMissingQuasiIdentifiers:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBatchTooLarge:
		return http.StatusRequestEntityTooLarge
	case dErrors.CodeBudgetExceeded:
		return http.StatusTooManyRequests
	case dErrors.CodeCredentialExpired, dErrors.CodeRevoked, dErrors.CodeInvalidProof:
		return http.StatusGone
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
