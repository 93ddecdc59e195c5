package handler

import (
	"net/http"

	"ldap-admin/internal/middleware"
)

// actorFromRequest names the authenticated principal for activity records, or "" for
// anonymous requests.
func actorFromRequest(r *http.Request) string {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return ""
	}

	if claims.Username != "" {
		return claims.Username
	}
	return claims.DN
}

func clientIP(r *http.Request) string {
	return middleware.ClientIP(r)
}
