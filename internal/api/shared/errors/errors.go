package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/store"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest       ErrorCode = "bad_request"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeValidationFailed ErrorCode = "validation_failed"
	ErrCodeUnauthorized     ErrorCode = "unauthorized"
	ErrCodeForbidden        ErrorCode = "forbidden"
	ErrCodeConflict         ErrorCode = "conflict"

	// Server errors (5xx)
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeServiceError  ErrorCode = "service_error"
)

// APIError represents a structured API error that carries error code and details
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	jsonErr, _ := json.Marshal(e)
	return string(jsonErr)
}

// Error constructors for common error types
func NewBadRequestError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeNotFound, message, details)
}

func NewValidationError(details ...string) *APIError {
	return newAPIError(ErrCodeValidationFailed, "Validation failed", details)
}

func NewUnauthorizedError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeUnauthorized, message, details)
}

func NewForbiddenError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeForbidden, message, details)
}

func NewConflictError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeConflict, message, details)
}

func NewInternalError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeInternalError, message, details)
}

func NewServiceError(message string, details ...string) *APIError {
	return newAPIError(ErrCodeServiceError, message, details)
}

func newAPIError(code ErrorCode, message string, details []string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

// FromDomainError maps a registry or host error to its HTTP status and API error.
// Errors outside the domain taxonomy map to 500 without leaking their text.
func FromDomainError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound, NewNotFoundError(domain.ErrTokenNotFound.Error(), err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, NewUnauthorizedError(domain.ErrUnauthorized.Error(), err.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized, NewUnauthorizedError(domain.ErrInvalidSignature.Error(), err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden, NewForbiddenError(domain.ErrNotOwner.Error(), err.Error())
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrTokenAlreadyExists),
		errors.Is(err, domain.ErrInvalidNonce),
		errors.Is(err, domain.ErrSupplyExhausted):
		return http.StatusConflict, NewConflictError(rootMessage(err), err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, NewValidationError(err.Error())
	case errors.Is(err, domain.ErrUnknownMethod):
		return http.StatusBadRequest, NewBadRequestError(domain.ErrUnknownMethod.Error(), err.Error())
	case errors.Is(err, store.ErrConflict):
		// Another process committed first; the caller may retry with a fresh nonce
		return http.StatusServiceUnavailable, NewServiceError("Registry busy, retry the invocation")
	default:
		return http.StatusInternalServerError, NewInternalError("Internal server error")
	}
}

// rootMessage returns the message of the domain sentinel err wraps
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrAlreadyInitialized,
		domain.ErrNotInitialized,
		domain.ErrTokenAlreadyExists,
		domain.ErrInvalidNonce,
		domain.ErrSupplyExhausted,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
