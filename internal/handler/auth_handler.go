package handler

import (
	"net/http"
	"time"

	"ldap-admin/internal/middleware"
	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload.Username, payload.Password, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"token":     result.Token,
		"user":      result.User,
		"expiresIn": result.ExpiresIn,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrAuthRequired)
		return
	}

	token, expiresIn, err := h.service.Refresh(claims)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"token":     token,
		"expiresIn": expiresIn,
	})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrAuthRequired)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"valid": true,
		"user": model.AuthUser{
			Username:   claims.Username,
			DN:         claims.DN,
			Role:       claims.Role,
			Attributes: claims.Attributes,
		},
		"expiresAt": claims.ExpiresAt.UTC().Format(time.RFC3339),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
