package handler

import (
	"net/http"
	"time"

	"ldap-admin/internal/service"
)

type StatsHandler struct {
	service *service.DirectoryService
}

func NewStatsHandler(service *service.DirectoryService) *StatsHandler {
	return &StatsHandler{service: service}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"users":        stats.Users,
		"groups":       stats.Groups,
		"ous":          stats.OUs,
		"totalEntries": stats.TotalEntries,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
