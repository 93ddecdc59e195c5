package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
	"ldap-admin/pkg/apierror"
)

type LogsHandler struct {
	service *service.ActivityService
}

func NewLogsHandler(service *service.ActivityService) *LogsHandler {
	return &LogsHandler{service: service}
}

func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	logs, pagination, err := h.service.Query(r.Context(), model.ActivityQuery{
		Action:   strings.TrimSpace(query.Get("action")),
		Status:   strings.TrimSpace(query.Get("status")),
		UserID:   strings.TrimSpace(query.Get("userId")),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		PageSize: parseIntOrDefault(query.Get("pageSize"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if logs == nil {
		logs = []model.ActivityRecord{}
	}

	writeSuccess(w, http.StatusOK, envelope{
		"logs":       logs,
		"pagination": pagination,
	})
}

func (h *LogsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.ActivityDeleteFilter{
		Action: strings.TrimSpace(query.Get("action")),
		Status: strings.TrimSpace(query.Get("status")),
	}

	if raw := strings.TrimSpace(query.Get("olderThan")); raw != "" {
		olderThan, err := parseTimestamp(raw)
		if err != nil {
			writeError(w, apierror.Validation("olderThan must be an RFC3339 timestamp or a YYYY-MM-DD date", raw))
			return
		}
		filter.OlderThan = &olderThan
	}

	deleted, err := h.service.Clear(r.Context(), actorFromRequest(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"message":      fmt.Sprintf("Deleted %d log entries", deleted),
		"deletedCount": deleted,
	})
}

func (h *LogsHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.ClearAll(r.Context(), actorFromRequest(r), r.URL.Query().Get("confirmation"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"message":      fmt.Sprintf("Deleted all %d log entries", deleted),
		"deletedCount": deleted,
	})
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse(time.DateOnly, raw)
}
