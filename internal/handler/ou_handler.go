package handler

import (
	"net/http"

	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
)

type OUHandler struct {
	service *service.DirectoryService
}

func NewOUHandler(service *service.DirectoryService) *OUHandler {
	return &OUHandler{service: service}
}

func (h *OUHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateOURequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	dn, err := h.service.CreateOU(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MutationResponse{Success: true, Message: "Organizational unit created successfully", DN: dn})
}

func (h *OUHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dn, err := pathParam(r, "dn")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteOU(r.Context(), actorFromRequest(r), dn); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MutationResponse{Success: true, Message: "Organizational unit deleted successfully", DN: dn})
}
