package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

type databasePinger interface {
	Ping(ctx context.Context) error
}

type directoryPinger interface {
	Ping(ctx context.Context) error
	URL() string
}

type HealthHandler struct {
	database  databasePinger
	directory directoryPinger
	version   string
}

func NewHealthHandler(database databasePinger, directory directoryPinger, version string) *HealthHandler {
	return &HealthHandler{database: database, directory: directory, version: version}
}

// Info describes the service at the root path.
func (h *HealthHandler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"name":    "ldap-admin",
		"version": h.version,
		"endpoints": envelope{
			"health":     "/health",
			"ldapHealth": "/api/health/ldap",
			"auth":       "/api/auth",
			"ldap":       "/api/ldap",
			"stats":      "/api/stats",
			"logs":       "/api/logs",
			"activity":   "/api/ws/activity",
		},
	})
}

func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.database.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{
			"status":    "error",
			"database":  "disconnected",
			"error":     "database connection failed",
			"timestamp": now,
		})
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"status":    "ok",
		"database":  "connected",
		"timestamp": now,
	})
}

func (h *HealthHandler) Directory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.directory.Ping(ctx); err != nil {
		slog.Error("directory health check failed", "url", h.directory.URL(), "error", err)
		body := envelope{
			"status":    "unhealthy",
			"ldap":      "disconnected",
			"url":       h.directory.URL(),
			"error":     "directory connection failed",
			"timestamp": now,
		}
		if exposeErrorDetails.Load() {
			body["details"] = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"status":    "healthy",
		"ldap":      "connected",
		"url":       h.directory.URL(),
		"timestamp": now,
	})
}
