package directory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/directory/directorytest"
	"ldap-admin/internal/model"
)

const (
	baseDN    = "dc=example,dc=org"
	serviceDN = "cn=admin,dc=example,dc=org"
)

func newTestClient(t *testing.T) (*directory.Client, *directorytest.Directory) {
	t.Helper()

	fake := directorytest.New()
	fake.Put(baseDN, map[string][]string{"objectClass": {"top", "dcObject", "organization"}, "dc": {"example"}})
	fake.Put("ou=people,"+baseDN, map[string][]string{"objectClass": {"organizationalUnit"}, "ou": {"people"}})
	fake.Put("uid=alice,ou=people,"+baseDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "person"},
		"uid":         {"alice"},
		"cn":          {"Alice Liddell"},
		"sn":          {"Liddell"},
	})
	fake.Put("uid=bob,ou=people,"+baseDN, map[string][]string{
		"objectClass": {"inetOrgPerson", "person"},
		"uid":         {"bob"},
		"cn":          {"Bob Builder"},
		"sn":          {"Builder"},
	})
	fake.SetPassword(serviceDN, "service-secret")
	fake.SetPassword("uid=alice,ou=people,"+baseDN, "secret")

	client, err := directory.NewClient(directory.Config{
		BaseDN:       baseDN,
		BindDN:       serviceDN,
		BindPassword: "service-secret",
	}, fake)
	require.NoError(t, err)

	return client, fake
}

func TestNewClientAppliesDefaults(t *testing.T) {
	t.Parallel()

	client, err := directory.NewClient(directory.Config{BaseDN: baseDN}, directorytest.New())
	require.NoError(t, err)
	assert.Equal(t, "ldap://localhost:389", client.URL())
	assert.Equal(t, baseDN, client.BaseDN())

	_, err = directory.NewClient(directory.Config{}, nil)
	require.Error(t, err)
}

func TestOpenAndSearch(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()

	sess, err := client.Open(ctx)
	require.NoError(t, err)

	entries, err := sess.Search(ctx, directory.SearchRequest{
		BaseDN: "ou=people," + baseDN,
		Scope:  directory.ScopeOne,
		Filter: "(objectClass=inetOrgPerson)",
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "uid=alice,ou=people,"+baseDN, entries[0].DN)
	assert.Equal(t, "Alice Liddell", entries[0].Attributes.First("cn"))
	assert.Equal(t, "uid=bob,ou=people,"+baseDN, entries[1].DN)
	assert.Equal(t, 1, fake.PagedSearches())

	sess.Close()
	sess.Close()
	assert.Equal(t, 1, fake.Opened())
	assert.Equal(t, 1, fake.Closed())
}

func TestSearchProjectionAndMissingBase(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	sess, err := client.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	entries, err := sess.Search(ctx, directory.SearchRequest{
		BaseDN:     baseDN,
		Scope:      directory.ScopeSub,
		Filter:     "(cn=*lice*)",
		Attributes: []string{"uid"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.Attributes{"uid": {"alice"}}, entries[0].Attributes)

	_, err = sess.Search(ctx, directory.SearchRequest{BaseDN: "ou=missing," + baseDN, Scope: directory.ScopeOne})
	assert.ErrorIs(t, err, directory.ErrNoSuchObject)

	_, err = sess.Get(ctx, "uid=carol,ou=people,"+baseDN)
	assert.ErrorIs(t, err, directory.ErrNoSuchObject)
}

func TestOpenFailures(t *testing.T) {
	t.Parallel()

	t.Run("dial failure is unavailable", func(t *testing.T) {
		client, fake := newTestClient(t)
		fake.FailDial(errors.New("connection refused"))

		_, err := client.Open(context.Background())
		assert.ErrorIs(t, err, directory.ErrUnavailable)
		assert.Equal(t, 0, fake.Opened())
	})

	t.Run("rejected service bind is unavailable and releases the connection", func(t *testing.T) {
		fake := directorytest.New()
		client, err := directory.NewClient(directory.Config{BaseDN: baseDN, BindDN: serviceDN, BindPassword: "wrong"}, fake)
		require.NoError(t, err)

		_, err = client.Open(context.Background())
		assert.ErrorIs(t, err, directory.ErrUnavailable)
		assert.Equal(t, 1, fake.Opened())
		assert.Equal(t, 1, fake.Closed())
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, "uid=alice,ou=people,"+baseDN, "secret"))

	err := client.Authenticate(ctx, "uid=alice,ou=people,"+baseDN, "wrong")
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)
	assert.Equal(t, uint16(ldap.LDAPResultInvalidCredentials), directory.ResultCode(err))

	err = client.Authenticate(ctx, "uid=alice,ou=people,"+baseDN, "")
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)

	assert.Equal(t, fake.Opened(), fake.Closed())
	assert.Equal(t, 0, fake.Active())
}

func TestAddModifyDelete(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()

	sess, err := client.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	dn := "uid=carol,ou=people," + baseDN
	require.NoError(t, sess.Add(ctx, dn, model.Attributes{
		"objectClass": {"inetOrgPerson", "person"},
		"uid":         {"carol"},
		"cn":          {"Carol"},
		"sn":          {"Danvers"},
	}))
	assert.True(t, fake.Exists(dn))

	err = sess.Add(ctx, dn, model.Attributes{"objectClass": {"person"}})
	assert.ErrorIs(t, err, directory.ErrAlreadyExists)

	require.NoError(t, sess.Modify(ctx, dn, []directory.Change{directory.Replace("mail", "carol@example.org")}))
	assert.Equal(t, []string{"carol@example.org"}, fake.Attributes(dn)["mail"])

	err = sess.Delete(ctx, "ou=people,"+baseDN)
	assert.ErrorIs(t, err, directory.ErrNotAllowedOnNonLeaf)

	require.NoError(t, sess.Delete(ctx, dn))
	assert.False(t, fake.Exists(dn))

	err = sess.Delete(ctx, dn)
	assert.ErrorIs(t, err, directory.ErrNoSuchObject)
}

func TestCancelledContextClosesSession(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	sess, err := client.Open(ctx)
	require.NoError(t, err)

	cancel()

	_, err = sess.Search(ctx, directory.SearchRequest{BaseDN: baseDN, Scope: directory.ScopeBase})
	assert.ErrorIs(t, err, directory.ErrUnavailable)

	require.Eventually(t, func() bool { return fake.Active() == 0 }, time.Second, 10*time.Millisecond)
	sess.Close()
	assert.Equal(t, 1, fake.Closed())
}
