package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the handlers and the services.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConstraintViolation = "DIRECTORY_CONSTRAINT_VIOLATION"
	CodeForbidden           = "FORBIDDEN"
)

// APIError is an error that carries its own client-facing code and HTTP status.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Validation reports a request field that is missing or malformed.
func Validation(message string, details string) *APIError {
	return New(CodeValidation, message, details, http.StatusBadRequest)
}

// BadRequest reports a body that could not be decoded at all.
func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

// Constraint reports a write the directory refused because of the tree's shape, such
// as a missing parent or a non-empty container.
func Constraint(message string, details string) *APIError {
	return New(CodeConstraintViolation, message, details, http.StatusBadRequest)
}

func Forbidden(message string) *APIError {
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

// As returns the first *APIError in err's chain.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an *APIError with the given code.
func HasCode(err error, code string) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Code == code
}
