package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORS allows the configured origins. A wildcard disables credentialed requests;
// an explicit list enables them so the admin UI can send its bearer token.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := slices.Contains(origins, "*")

	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: !wildcard,
	}
	if wildcard {
		opts.AllowedOrigins = []string{"*"}
	}

	slog.Debug("cors configured", "origins", opts.AllowedOrigins, "credentials", opts.AllowCredentials)
	return cors.New(opts).Handler
}
