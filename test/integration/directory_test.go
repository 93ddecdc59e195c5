//go:build integration

package integration

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWait = 2 * time.Second
	testTick = 10 * time.Millisecond
)

func TestTreeBrowsing(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "bob", "builder")

	resp := doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/tree", token)
	tree := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, baseDN, tree["parentDN"])

	entries := tree["entries"].([]any)
	require.Len(t, entries, 2)
	for _, raw := range entries {
		entry := raw.(map[string]any)
		assert.Equal(t, true, entry["hasChildren"], entry["dn"])
	}

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/children?parentDN="+url.QueryEscape(peopleDN)+"&pageSize=1&page=2", token)
	children := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, children["entries"], 1)

	pagination := children["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["currentPage"])
	assert.EqualValues(t, 2, pagination["totalCount"])
	assert.Equal(t, false, pagination["hasNextPage"])
	assert.Equal(t, true, pagination["hasPreviousPage"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/children?parentDN="+url.QueryEscape(peopleDN)+"&pageSize=1&page=9223372036854775807", token)
	farPage := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, farPage["entries"])
	assert.Equal(t, false, farPage["pagination"].(map[string]any)["hasNextPage"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/count-children?dn="+url.QueryEscape(peopleDN), token)
	count := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, count["childCount"])
	assert.Equal(t, true, count["hasChildren"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/has-children?dn="+url.QueryEscape(aliceDN), token)
	has := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, has["hasChildren"])
	assert.Equal(t, aliceDN, has["dn"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/has-children", token)
	_ = decodeBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/children?parentDN="+url.QueryEscape("ou=missing,"+baseDN), token)
	missing := decodeBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", missing["code"])
}

func TestSearchAndSchema(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "bob", "builder")

	resp := doJSONRequest(t, http.MethodPost, env.server.URL+"/api/ldap/search", map[string]any{
		"filter":     "(objectClass=inetOrgPerson)",
		"scope":      "sub",
		"attributes": []string{"uid", "mail"},
	}, token)
	search := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, search["count"])

	resp = doJSONRequest(t, http.MethodPost, env.server.URL+"/api/ldap/search", map[string]any{
		"filter": "(uid=alice",
	}, token)
	invalid := decodeBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", invalid["code"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/users/search?query=lid", token)
	users := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, users["users"], 1)
	assert.Equal(t, aliceDN, users["users"].([]any)[0].(map[string]any)["dn"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/groups/search?query=adm", token)
	groups := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, groups["groups"], 1)

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/ldap/schema", token)
	schema := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, schema["count"])
}

func TestStatsAndHealth(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "bob", "builder")

	resp := doAuthRequest(t, http.MethodGet, env.server.URL+"/api/stats", token)
	stats := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, stats["users"])
	assert.EqualValues(t, 1, stats["groups"])
	assert.EqualValues(t, 2, stats["ous"])
	assert.EqualValues(t, 6, stats["totalEntries"])
	assert.NotEmpty(t, stats["timestamp"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/health", "")
	health := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "connected", health["database"])

	env.database.fail(errors.New("connection reset"))
	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/health", "")
	health = decodeBody(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "error", health["status"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/health/ldap", "")
	ldapHealth := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", ldapHealth["status"])
	assert.Equal(t, "ldap://directory.test:389", ldapHealth["url"])

	env.directory.FailDial(errors.New("connection refused"))
	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/api/health/ldap", "")
	ldapHealth = decodeBody(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", ldapHealth["status"])

	resp = doAuthRequest(t, http.MethodGet, env.server.URL+"/", "")
	info := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ldap-admin", info["name"])
}
