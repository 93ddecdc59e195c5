package handler

import (
	"net/http"
	"strings"

	"ldap-admin/internal/model"
	"ldap-admin/internal/service"
	"ldap-admin/pkg/apierror"
)

// LDAPHandler serves tree browsing, free-form search and schema endpoints.
type LDAPHandler struct {
	service *service.DirectoryService
}

func NewLDAPHandler(service *service.DirectoryService) *LDAPHandler {
	return &LDAPHandler{service: service}
}

func (h *LDAPHandler) Children(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	h.children(w, r, query.Get("parentDN"), query.Get("scope"))
}

// Tree lists the first level below the base DN.
func (h *LDAPHandler) Tree(w http.ResponseWriter, r *http.Request) {
	h.children(w, r, "", r.URL.Query().Get("scope"))
}

func (h *LDAPHandler) children(w http.ResponseWriter, r *http.Request, parentDN string, scope string) {
	query := r.URL.Query()

	page, err := h.service.Children(
		r.Context(),
		actorFromRequest(r),
		parentDN,
		scope,
		parseIntOrDefault(query.Get("page"), 1),
		parseIntOrDefault(query.Get("pageSize"), 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"entries":    page.Entries,
		"pagination": page.Pagination,
		"parentDN":   page.ParentDN,
		"scope":      page.Scope,
	})
}

func (h *LDAPHandler) CountChildren(w http.ResponseWriter, r *http.Request) {
	summary, err := h.childSummary(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"dn":          summary.DN,
		"childCount":  summary.ChildCount,
		"hasChildren": summary.HasChildren,
	})
}

func (h *LDAPHandler) HasChildren(w http.ResponseWriter, r *http.Request) {
	summary, err := h.childSummary(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"dn":          summary.DN,
		"hasChildren": summary.HasChildren,
	})
}

func (h *LDAPHandler) childSummary(r *http.Request) (model.ChildSummary, error) {
	dn := strings.TrimSpace(r.URL.Query().Get("dn"))
	if dn == "" {
		return model.ChildSummary{}, apierror.Validation("dn query parameter is required", "")
	}
	return h.service.CountChildren(r.Context(), dn)
}

func (h *LDAPHandler) Search(w http.ResponseWriter, r *http.Request) {
	var payload model.SearchRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	entries, pagination, err := h.service.Search(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"entries":    entries,
		"count":      len(entries),
		"pagination": pagination,
	})
}

func (h *LDAPHandler) Schema(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Schema(r.Context(), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"objectClasses":       info.ObjectClasses,
		"count":               len(info.ObjectClasses),
		"serverObjectClasses": info.ServerObjectClasses,
	})
}
