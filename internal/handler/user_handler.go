package handler

import (
	"net/http"
	"strings"

	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
)

type UserHandler struct {
	service *service.DirectoryService
}

func NewUserHandler(service *service.DirectoryService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	users, pagination, err := h.service.SearchUsers(
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
		"users":      users,
		"count":      len(users),
		"pagination": pagination,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	dn, err := pathParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), actorFromRequest(r), dn)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{"user": user})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	dn, err := h.service.CreateUser(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MutationResponse{Success: true, Message: "User created successfully", DN: dn})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, err := pathParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	dn, err := h.service.UpdateUser(r.Context(), actorFromRequest(r), uid, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MutationResponse{Success: true, Message: "User updated successfully", DN: dn})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := pathParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	dn, err := h.service.DeleteUser(r.Context(), actorFromRequest(r), uid, strings.TrimSpace(r.URL.Query().Get("ou")))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MutationResponse{Success: true, Message: "User deleted successfully", DN: dn})
}
