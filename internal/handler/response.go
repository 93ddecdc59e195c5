package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/model"
	"ldap-admin/pkg/apierror"
)

// envelope is a flat JSON response body; writeSuccess adds "success": true.
type envelope map[string]any

var exposeErrorDetails atomic.Bool

// ExposeErrorDetails controls whether unclassified error text is sent to clients.
// It is enabled in development only.
func ExposeErrorDetails(enabled bool) {
	exposeErrorDetails.Store(enabled)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.APIError{
		Code:  "INTERNAL_ERROR",
		Error: "Unexpected server error",
	}

	apiErr, isAPIError := apierror.As(err)
	switch {
	case isAPIError:
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Error = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrAuthRequired):
		status = http.StatusUnauthorized
		body.Code = "AUTH_REQUIRED"
		body.Error = "Authentication required"
	case errors.Is(err, model.ErrPrincipalNotFound):
		status = http.StatusUnauthorized
		body.Code = "PRINCIPAL_NOT_FOUND"
		body.Error = "User not found"
	case errors.Is(err, model.ErrInvalidCredential):
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIAL"
		body.Error = "Invalid credentials"
	case errors.Is(err, directory.ErrInsufficientAccess):
		status = http.StatusForbidden
		body.Code = "INSUFFICIENT_ACCESS"
		body.Error = "Insufficient access rights on the directory"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Error = "Access denied"
	case errors.Is(err, model.ErrDirectoryUnavailable):
		status = http.StatusServiceUnavailable
		body.Code = "DIRECTORY_UNAVAILABLE"
		body.Error = "Directory service unavailable"
	case errors.Is(err, model.ErrEntryNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Error = "Entry not found"
	case errors.Is(err, model.ErrEntryAlreadyExists):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Error = "Entry already exists"
	case errors.Is(err, model.ErrConstraintViolation):
		status = http.StatusBadRequest
		body.Code = "DIRECTORY_CONSTRAINT_VIOLATION"
		body.Error = "Directory constraint violation"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Error = "Invalid input"
	case errors.Is(err, directory.ErrUnavailable):
		body.Code = "DIRECTORY_UNAVAILABLE"
		body.Error = "Directory operation failed"
		slog.Error("directory unavailable", "error", err.Error())
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	if !isAPIError && exposeErrorDetails.Load() {
		body.Details = err.Error()
	}

	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// pathParam returns the decoded chi parameter name. chi routes on RawPath when the
// request carries escaped reserved characters and on the decoded Path otherwise, so
// only the former still needs unescaping.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	decoded := raw
	if r.URL.RawPath != "" {
		var err error
		if decoded, err = url.PathUnescape(raw); err != nil {
			return "", apierror.Validation("invalid "+name+" path parameter", raw)
		}
	}

	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", apierror.Validation(name+" is required", "")
	}
	return decoded, nil
}
