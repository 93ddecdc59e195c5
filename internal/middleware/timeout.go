package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ldap-admin/internal/model"
)

const defaultRequestTimeout = 60 * time.Second

// Timeout bounds the handler's run time and answers 503 REQUEST_TIMEOUT when it is
// exceeded. Websocket upgrades pass through untouched.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.APIError{Error: "request timed out", Code: "REQUEST_TIMEOUT"})

	return func(next http.Handler) http.Handler {
		timed := http.TimeoutHandler(next, timeout, string(body))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isWebsocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			timed.ServeHTTP(w, r)
		})
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
