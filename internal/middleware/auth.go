package middleware

import (
	"context"
	"net/http"
	"strings"

	"ldap-admin/internal/model"
)

type tokenValidator interface {
	ValidateToken(tokenString string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth accepts "Authorization: Bearer <token>". A missing or malformed header is
// 401; a token that fails validation is 403.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.authenticate(next, false)
}

// RequireAuthOrQuery also accepts the token in the "token" query parameter, for
// clients such as browser websockets that cannot set headers.
func (m *AuthMiddleware) RequireAuthOrQuery(next http.Handler) http.Handler {
	return m.authenticate(next, true)
}

func (m *AuthMiddleware) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))

		var token string
		switch {
		case header != "":
			if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "malformed authorization header")
				return
			}
			token = strings.TrimSpace(header[7:])
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "malformed authorization header")
				return
			}
		case allowQuery && strings.TrimSpace(r.URL.Query().Get("token")) != "":
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		default:
			writeJSONError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "access token required")
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid or expired token")
			return
		}

		setActor(r.Context(), claims.Username)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
				return
			}

			if _, exists := roleSet[strings.ToLower(claims.Role)]; !exists {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok && claims != nil
}
