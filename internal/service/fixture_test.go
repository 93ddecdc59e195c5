package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/directory/directorytest"
)

const (
	testBaseDN    = "dc=example,dc=org"
	testServiceDN = "cn=admin,dc=example,dc=org"
	testPeopleDN  = "ou=people,dc=example,dc=org"
	testGroupsDN  = "ou=groups,dc=example,dc=org"
	testAliceDN   = "uid=alice,ou=people,dc=example,dc=org"
	testBobDN     = "uid=bob,ou=people,dc=example,dc=org"
	testAdminsDN  = "cn=admins,ou=groups,dc=example,dc=org"
)

// newTestDirectory seeds a small tree:
//
//	dc=example,dc=org
//	├── ou=people (alice, bob)
//	└── ou=groups (admins with alice)
func newTestDirectory(t *testing.T) (*directory.Client, *directorytest.Directory) {
	t.Helper()

	fake := directorytest.New()
	fake.Put(testBaseDN, map[string][]string{"objectClass": {"top", "dcObject", "organization"}, "dc": {"example"}})
	fake.Put(testPeopleDN, map[string][]string{"objectClass": {"top", "organizationalUnit"}, "ou": {"people"}})
	fake.Put(testGroupsDN, map[string][]string{"objectClass": {"top", "organizationalUnit"}, "ou": {"groups"}})
	fake.Put(testAliceDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "organizationalPerson", "person", "top"},
		"uid":         {"alice"},
		"cn":          {"Alice Liddell"},
		"sn":          {"Liddell"},
		"mail":        {"alice@example.org"},
	})
	fake.Put(testBobDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "organizationalPerson", "person", "top"},
		"uid":         {"bob"},
		"cn":          {"Bob Builder"},
		"sn":          {"Builder"},
		"mail":        {"bob@example.org"},
	})
	fake.Put(testAdminsDN, map[string][]string{
		"objectClass": {"groupOfNames", "top"},
		"cn":          {"admins"},
		"description": {"Directory administrators"},
		"member":      {testAliceDN},
	})
	fake.SetPassword(testServiceDN, "service-secret")
	fake.SetPassword(testAliceDN, "secret")
	fake.SetPassword(testBobDN, "builder")

	client, err := directory.NewClient(directory.Config{
		BaseDN:       testBaseDN,
		BindDN:       testServiceDN,
		BindPassword: "service-secret",
	}, fake)
	require.NoError(t, err)

	return client, fake
}

type recordedActivity struct {
	ActorID string
	Action  string
	Details map[string]any
	Status  string
}

// activityRecorderStub records synchronously so tests can assert right after a call.
type activityRecorderStub struct {
	mu      sync.Mutex
	records []recordedActivity
}

func (r *activityRecorderStub) Record(_ context.Context, actorID string, action string, details any, status string) {
	decoded := map[string]any{}
	if raw, err := json.Marshal(details); err == nil {
		_ = json.Unmarshal(raw, &decoded)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedActivity{ActorID: actorID, Action: action, Details: decoded, Status: status})
}

func (r *activityRecorderStub) all() []recordedActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedActivity(nil), r.records...)
}

func (r *activityRecorderStub) last(t *testing.T) recordedActivity {
	t.Helper()

	records := r.all()
	require.NotEmpty(t, records, "expected an activity record")
	return records[len(records)-1]
}
