package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	for i := range 10 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ldap/children", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitedAuth(t *testing.T) {
	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Burst 1: the second immediate attempt has no token left.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"Too many requests","code":"RATE_LIMITED"}`, rec.Body.String())

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	mw := NewRateLimitMiddleware(-1, 0)
	assert.Equal(t, -1, mw.generalRPM)
	assert.Equal(t, 10, mw.authRPM)
}

func TestRateLimitMiddleware_RetryAfterTracksRefill(t *testing.T) {
	mw := NewRateLimitMiddleware(0, 4)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return now }
	handler := mw.Handler(okHandler())

	login := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		return rec
	}

	for range 4 {
		require.Equal(t, http.StatusOK, login().Code)
	}

	// 4 per minute refills one token every 15 seconds.
	rec := login()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "15", rec.Header().Get("Retry-After"))

	now = now.Add(16 * time.Second)
	assert.Equal(t, http.StatusOK, login().Code)
}

func TestRateLimitMiddleware_SweepsIdleVisitors(t *testing.T) {
	mw := NewRateLimitMiddleware(10, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mw.visitor("198.51.100.1", now.Add(-time.Hour))
	mw.visitor("198.51.100.2", now)
	mw.sweepLocked(now)

	assert.Len(t, mw.visitors, 1)
	assert.Contains(t, mw.visitors, "198.51.100.2")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.7")
	assert.Equal(t, "203.0.113.1", ClientIP(req))
}
