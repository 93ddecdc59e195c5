package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

const requestInfoContextKey contextKey = "request_info"

// requestInfo travels down the handler chain so inner middleware can report back
// to Logging after the handler returns.
type requestInfo struct {
	id    string
	actor atomic.Value
}

// RequestID returns the ID Logging assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

func setActor(ctx context.Context, actor string) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.actor.Store(actor)
	}
}

func (i *requestInfo) actorName() string {
	actor, _ := i.actor.Load().(string)
	return actor
}

// Logging tags each request with an X-Request-ID and writes one access line when it
// completes. Error responses have their code and message lifted into the line.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		info := &requestInfo{id: id}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, capture: !isWebsocketUpgrade(r)}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info)))

		attrs := []any{
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}
		if actor := info.actorName(); actor != "" {
			attrs = append(attrs, "actor", actor)
		}
		if rec.status >= 400 {
			attrs = append(attrs, failureAttrs(r, rec.body.Bytes())...)
		}

		switch {
		case rec.status >= 500:
			slog.Error("request", attrs...)
		case rec.status >= 400:
			slog.Warn("request", attrs...)
		case isHealthProbe(r):
			slog.Debug("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

func failureAttrs(r *http.Request, body []byte) []any {
	var attrs []any
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}

	var parsed struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Details string `json:"details"`
	}
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil || parsed.Code == "" {
		return attrs
	}

	attrs = append(attrs, "error_code", parsed.Code, "error_message", parsed.Error)
	if parsed.Details != "" {
		attrs = append(attrs, "error_details", parsed.Details)
	}
	return attrs
}

func isHealthProbe(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/health")
}

// statusRecorder remembers the status code and, for failures, the body.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
	capture bool
	body    bytes.Buffer
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.written {
		return
	}
	s.status = code
	s.written = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.written {
		s.WriteHeader(http.StatusOK)
	}
	if s.capture && s.status >= 400 {
		s.body.Write(b)
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is required for websocket upgrades behind this middleware.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
