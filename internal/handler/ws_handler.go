package handler

import (
	"log/slog"
	"net/http"

	"ldap-admin/internal/websocket"
)

// ActivityStreamHandler upgrades authenticated requests onto the live activity feed.
type ActivityStreamHandler struct {
	hub *websocket.Hub
}

func NewActivityStreamHandler(hub *websocket.Hub) *ActivityStreamHandler {
	return &ActivityStreamHandler{hub: hub}
}

func (h *ActivityStreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	// The upgrader has already answered the client when this fails.
	if err := websocket.Serve(h.hub, w, r, actorFromRequest(r)); err != nil {
		slog.Warn("websocket upgrade failed", "actor", actorFromRequest(r), "error", err)
	}
}
