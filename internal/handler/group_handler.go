package handler

import (
	"net/http"

	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
)

type GroupHandler struct {
	service *service.DirectoryService
}

func NewGroupHandler(service *service.DirectoryService) *GroupHandler {
	return &GroupHandler{service: service}
}

func (h *GroupHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	groups, pagination, err := h.service.SearchGroups(
		r.Context(),
		actorFromRequest(r),
		query.Get("query"),
		parseIntOrDefault(query.Get("page"), 1),
		parseIntOrDefault(query.Get("pageSize"), 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"groups":     groups,
		"count":      len(groups),
		"pagination": pagination,
	})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	dn, err := pathParam(r, "dn")
	if err != nil {
		writeError(w, err)
		return
	}

	group, err := h.service.GetGroup(r.Context(), actorFromRequest(r), dn)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{"group": group})
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateGroupRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	dn, err := h.service.CreateGroup(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MutationResponse{Success: true, Message: "Group created successfully", DN: dn})
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	dn, err := pathParam(r, "dn")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateGroupRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.UpdateGroup(r.Context(), actorFromRequest(r), dn, payload); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MutationResponse{Success: true, Message: "Group updated successfully", DN: dn})
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dn, err := pathParam(r, "dn")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteGroup(r.Context(), actorFromRequest(r), dn); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MutationResponse{Success: true, Message: "Group deleted successfully", DN: dn})
}
