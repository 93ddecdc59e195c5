package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ldap-admin/internal/config"
	"ldap-admin/internal/handler"
	"ldap-admin/internal/middleware"
	"ldap-admin/internal/model"
)

type staticValidator map[string]*model.AuthClaims

func (v staticValidator) ValidateToken(token string) (*model.AuthClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// newGuardedRouter serves the routing table with handlers that have no services.
// Only requests rejected by middleware may be sent to it.
func newGuardedRouter() http.Handler {
	auth := middleware.NewAuthMiddleware(staticValidator{
		"viewer": {Username: "bob", DN: "uid=bob,ou=people,dc=example,dc=org", Role: model.RoleViewer},
	})

	cfg := &config.Config{
		RequestTimeout:   time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	return New(cfg, auth, Handlers{
		Health:   handler.NewHealthHandler(nil, nil, "test"),
		Auth:     handler.NewAuthHandler(nil),
		LDAP:     handler.NewLDAPHandler(nil),
		User:     handler.NewUserHandler(nil),
		Group:    handler.NewGroupHandler(nil),
		OU:       handler.NewOUHandler(nil),
		Stats:    handler.NewStatsHandler(nil),
		Logs:     handler.NewLogsHandler(nil),
		Activity: handler.NewActivityStreamHandler(nil),
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newGuardedRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/refresh"},
		{http.MethodGet, "/api/auth/verify"},
		{http.MethodGet, "/api/ldap/children"},
		{http.MethodGet, "/api/ldap/tree"},
		{http.MethodGet, "/api/ldap/count-children"},
		{http.MethodGet, "/api/ldap/has-children"},
		{http.MethodPost, "/api/ldap/search"},
		{http.MethodGet, "/api/ldap/schema"},
		{http.MethodGet, "/api/ldap/users/search"},
		{http.MethodGet, "/api/ldap/users/uid%3Dalice%2Cdc%3Dexample%2Cdc%3Dorg"},
		{http.MethodGet, "/api/ldap/groups/search"},
		{http.MethodGet, "/api/ldap/groups/cn%3Dadmins%2Cdc%3Dexample%2Cdc%3Dorg"},
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/logs"},
		{http.MethodGet, "/api/ws/activity"},
	}

	for _, route := range routes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestAdminRoutesRejectViewers(t *testing.T) {
	router := newGuardedRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/ldap/users"},
		{http.MethodPut, "/api/ldap/users/alice"},
		{http.MethodDelete, "/api/ldap/users/alice"},
		{http.MethodPost, "/api/ldap/groups"},
		{http.MethodPut, "/api/ldap/groups/cn%3Dadmins%2Cdc%3Dexample%2Cdc%3Dorg"},
		{http.MethodDelete, "/api/ldap/groups/cn%3Dadmins%2Cdc%3Dexample%2Cdc%3Dorg"},
		{http.MethodPost, "/api/ldap/ous"},
		{http.MethodDelete, "/api/ldap/ous/ou%3Dpeople%2Cdc%3Dexample%2Cdc%3Dorg"},
		{http.MethodDelete, "/api/logs?action=login"},
		{http.MethodDelete, "/api/logs/all?confirmation=YES_DELETE_ALL_LOGS"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer viewer")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", route.method, route.path)
		assert.Contains(t, rec.Body.String(), `"code":"FORBIDDEN"`)
	}
}

func TestUnknownRoutes(t *testing.T) {
	router := newGuardedRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ldap/computers", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/auth/login", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRootInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	newGuardedRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"ldap-admin"`)
}
