package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	authPathPrefix = "/api/auth"

	visitorSweepThreshold = 1000
	visitorIdleTTL        = 10 * time.Minute
)

// visitor holds the token buckets of one client address.
type visitor struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware keeps one token bucket pair per client IP. Requests below
// /api/auth draw from the stricter auth bucket, everything else from the general one.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	now        func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimitMiddleware treats a non-positive generalRPM as unlimited. A non-positive
// authRPM falls back to 10 per minute.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		now:        time.Now,
		visitors:   map[string]*visitor{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractClientIP(r)
		now := m.now()
		v := m.visitor(ip, now)

		bucket, name := v.general, "general"
		if strings.HasPrefix(strings.ToLower(r.URL.Path), authPathPrefix) {
			bucket, name = v.auth, "auth"
		}

		if wait, ok := take(bucket, now); !ok {
			slog.Warn("rate limit exceeded", "client_ip", ip, "bucket", name, "path", r.URL.Path, "retry_after", wait)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token, or reports how long until one is available.
func take(bucket *rate.Limiter, now time.Time) (time.Duration, bool) {
	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return time.Minute, false
	}

	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}

	reservation.CancelAt(now)
	return delay, false
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}

func (m *RateLimitMiddleware) visitor(ip string, now time.Time) *visitor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, exists := m.visitors[ip]; exists {
		v.lastSeen = now
		return v
	}

	if len(m.visitors) >= visitorSweepThreshold {
		m.sweepLocked(now)
	}

	v := &visitor{
		general:  newBucket(m.generalRPM),
		auth:     newBucket(m.authRPM),
		lastSeen: now,
	}
	m.visitors[ip] = v

	return v
}

// sweepLocked forgets visitors idle for longer than visitorIdleTTL.
func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	cutoff := now.Add(-visitorIdleTTL)
	for ip, v := range m.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(m.visitors, ip)
		}
	}
}

// newBucket refills rpm tokens per minute with a burst of rpm.
func newBucket(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

// ClientIP returns the originating address, honouring X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	return extractClientIP(r)
}

func extractClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}

	return remote
}
