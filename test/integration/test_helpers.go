//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ldap-admin/internal/config"
	"ldap-admin/internal/directory"
	"ldap-admin/internal/directory/directorytest"
	"ldap-admin/internal/event"
	"ldap-admin/internal/handler"
	"ldap-admin/internal/middleware"
	"ldap-admin/internal/model"
	"ldap-admin/internal/router"
	"ldap-admin/internal/service"
	"ldap-admin/internal/websocket"
)

const (
	baseDN    = "dc=example,dc=org"
	serviceDN = "cn=admin,dc=example,dc=org"
	peopleDN  = "ou=people,dc=example,dc=org"
	groupsDN  = "ou=groups,dc=example,dc=org"
	aliceDN   = "uid=alice,ou=people,dc=example,dc=org"
	bobDN     = "uid=bob,ou=people,dc=example,dc=org"
	adminsDN  = "cn=admins,ou=groups,dc=example,dc=org"
)

type testEnv struct {
	server    *httptest.Server
	directory *directorytest.Directory
	activity  *service.ActivityService
	logs      *memoryActivityStore
	database  *databaseStub
	hub       *websocket.Hub
}

// newTestEnv serves the full router against an in-memory directory and activity log.
// alice is in the admin group, bob is a viewer.
func newTestEnv(t *testing.T, opts ...func(cfg *config.Config)) *testEnv {
	t.Helper()

	fake := directorytest.New()
	fake.Put(baseDN, map[string][]string{"objectClass": {"top", "dcObject", "organization"}, "dc": {"example"}})
	fake.Put(peopleDN, map[string][]string{"objectClass": {"top", "organizationalUnit"}, "ou": {"people"}})
	fake.Put(groupsDN, map[string][]string{"objectClass": {"top", "organizationalUnit"}, "ou": {"groups"}})
	fake.Put(aliceDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "organizationalPerson", "person", "top"},
		"uid":         {"alice"},
		"cn":          {"Alice Liddell"},
		"sn":          {"Liddell"},
		"mail":        {"alice@example.org"},
	})
	fake.Put(bobDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "organizationalPerson", "person", "top"},
		"uid":         {"bob"},
		"cn":          {"Bob Builder"},
		"sn":          {"Builder"},
		"mail":        {"bob@example.org"},
	})
	fake.Put(adminsDN, map[string][]string{
		"objectClass": {"groupOfNames", "top"},
		"cn":          {"admins"},
		"member":      {aliceDN},
	})
	fake.SetPassword(serviceDN, "service-secret")
	fake.SetPassword(aliceDN, "secret")
	fake.SetPassword(bobDN, "builder")

	client, err := directory.NewClient(directory.Config{
		URL:          "ldap://directory.test:389",
		BaseDN:       baseDN,
		BindDN:       serviceDN,
		BindPassword: "service-secret",
	}, fake)
	require.NoError(t, err)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	store := newMemoryActivityStore()
	paginator := service.NewPaginator(50, 200)
	activity := service.NewActivityService(store, bus, paginator)

	authService, err := service.NewAuthService(client, activity, service.AuthConfig{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		AdminGroupDN: adminsDN,
	})
	require.NoError(t, err)

	directoryService, err := service.NewDirectoryService(client, service.NewChildProber(client, 4), paginator, activity, service.DirectoryConfig{})
	require.NoError(t, err)

	cfg := &config.Config{
		ServerPort:       "3000",
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := &databaseStub{}
	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Health:   handler.NewHealthHandler(db, client, "test"),
		Auth:     handler.NewAuthHandler(authService),
		LDAP:     handler.NewLDAPHandler(directoryService),
		User:     handler.NewUserHandler(directoryService),
		Group:    handler.NewGroupHandler(directoryService),
		OU:       handler.NewOUHandler(directoryService),
		Stats:    handler.NewStatsHandler(directoryService),
		Logs:     handler.NewLogsHandler(activity),
		Activity: handler.NewActivityStreamHandler(hub),
	}))

	t.Cleanup(func() {
		server.Close()
		activity.Close()
		hubCancel()
	})

	return &testEnv{server: server, directory: fake, activity: activity, logs: store, database: db, hub: hub}
}

func (e *testEnv) login(t *testing.T, username string, password string) string {
	t.Helper()

	resp := doJSONRequest(t, http.MethodPost, e.server.URL+"/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	body := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Equal(t, true, body["success"])

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func doJSONRequest(t *testing.T, method string, url string, payload any, accessToken string) *http.Response {
	t.Helper()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func doAuthRequest(t *testing.T, method string, url string, accessToken string) *http.Response {
	t.Helper()
	return doJSONRequest(t, method, url, nil, accessToken)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

type databaseStub struct {
	mu  sync.Mutex
	err error
}

func (d *databaseStub) Ping(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *databaseStub) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// memoryActivityStore keeps activity records in insertion order and returns them
// newest first.
type memoryActivityStore struct {
	mu      sync.Mutex
	nextID  int64
	records []model.ActivityRecord
}

func newMemoryActivityStore() *memoryActivityStore {
	return &memoryActivityStore{}
}

func (s *memoryActivityStore) Insert(_ context.Context, record model.ActivityRecord) (model.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record.ID = s.nextID
	record.CreatedAt = time.Now().UTC()
	s.records = append(s.records, record)
	return record, nil
}

func (s *memoryActivityStore) Query(_ context.Context, query model.ActivityQuery) ([]model.ActivityRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.ActivityRecord, 0, len(s.records))
	for _, record := range slices.Backward(s.records) {
		if query.Action != "" && record.Action != query.Action {
			continue
		}
		if query.Status != "" && record.Status != query.Status {
			continue
		}
		if query.UserID != "" && (record.UserID == nil || *record.UserID != query.UserID) {
			continue
		}
		matched = append(matched, record)
	}

	start := min((query.Page-1)*query.PageSize, len(matched))
	end := min(start+query.PageSize, len(matched))
	return matched[start:end], len(matched), nil
}

func (s *memoryActivityStore) Delete(_ context.Context, filter model.ActivityDeleteFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if matchesDeleteFilter(record, filter) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

func (s *memoryActivityStore) DeleteAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := int64(len(s.records))
	s.records = nil
	return deleted, nil
}

func (s *memoryActivityStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Action)
	}
	return out
}

func matchesDeleteFilter(record model.ActivityRecord, filter model.ActivityDeleteFilter) bool {
	if filter.OlderThan != nil && !record.CreatedAt.Before(*filter.OlderThan) {
		return false
	}
	if filter.Action != "" && record.Action != filter.Action {
		return false
	}
	if filter.Status != "" && record.Status != filter.Status {
		return false
	}
	return true
}
