package middleware

import (
	"encoding/json"
	"net/http"

	"ldap-admin/internal/model"
)

// writeJSONError writes the same failure envelope the handlers produce, for
// requests rejected before they reach a handler.
func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIError{Error: message, Code: code})
}
