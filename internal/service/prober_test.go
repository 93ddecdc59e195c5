package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldap-admin/internal/model"
)

func TestAnnotateCountsChildrenInOrder(t *testing.T) {
	t.Parallel()

	client, fake := newTestDirectory(t)
	prober := NewChildProber(client, 2)

	entries := []model.DirectoryEntry{
		{DN: testPeopleDN},
		{DN: testAliceDN},
		{DN: testGroupsDN},
		{DN: testBaseDN},
	}

	got := prober.Annotate(context.Background(), entries)
	require.Len(t, got, 4)

	assert.Equal(t, testPeopleDN, got[0].DN)
	assert.Equal(t, 2, got[0].ChildCount)
	assert.True(t, got[0].HasChildren)

	assert.Equal(t, testAliceDN, got[1].DN)
	assert.Equal(t, 0, got[1].ChildCount)
	assert.False(t, got[1].HasChildren)

	assert.Equal(t, 1, got[2].ChildCount)
	assert.Equal(t, 2, got[3].ChildCount)

	assert.Equal(t, 4, fake.Opened())
	assert.Equal(t, fake.Opened(), fake.Closed())
}

func TestAnnotateBoundsConcurrentProbes(t *testing.T) {
	t.Parallel()

	client, fake := newTestDirectory(t)
	for i := range 25 {
		fake.Put(fmt.Sprintf("ou=unit%02d,%s", i, testBaseDN), map[string][]string{
			"objectClass": {"organizationalUnit"},
			"ou":          {fmt.Sprintf("unit%02d", i)},
		})
	}
	fake.SetSearchDelay(5 * time.Millisecond)

	entries := make([]model.DirectoryEntry, 25)
	for i := range entries {
		entries[i] = model.DirectoryEntry{DN: fmt.Sprintf("ou=unit%02d,%s", i, testBaseDN)}
	}

	got := NewChildProber(client, 4).Annotate(context.Background(), entries)
	require.Len(t, got, 25)

	assert.LessOrEqual(t, fake.PeakActive(), 4)
	assert.Equal(t, 25, fake.Opened())
	assert.Equal(t, 0, fake.Active())
	for i, entry := range got {
		assert.Equal(t, entries[i].DN, entry.DN)
	}
}

func TestAnnotateFailedProbeDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	client, fake := newTestDirectory(t)
	fake.FailSearch(testPeopleDN, ldap.NewError(ldap.LDAPResultBusy, errors.New("server busy")))

	got := NewChildProber(client, 10).Annotate(context.Background(), []model.DirectoryEntry{
		{DN: testPeopleDN},
		{DN: testGroupsDN},
	})

	require.Len(t, got, 2)
	assert.False(t, got[0].HasChildren)
	assert.Equal(t, 0, got[0].ChildCount)
	assert.True(t, got[1].HasChildren)
	assert.Equal(t, 1, got[1].ChildCount)
	assert.Equal(t, fake.Opened(), fake.Closed())
}

func TestCountChildrenReportsDirectoryFailure(t *testing.T) {
	t.Parallel()

	client, fake := newTestDirectory(t)
	fake.FailDial(errors.New("connection refused"))

	_, err := NewChildProber(client, 0).CountChildren(context.Background(), testPeopleDN)
	require.Error(t, err)
}

func TestAnnotateEmptyInput(t *testing.T) {
	t.Parallel()

	client, fake := newTestDirectory(t)
	got := NewChildProber(client, 3).Annotate(context.Background(), nil)

	assert.Empty(t, got)
	assert.Equal(t, 0, fake.Opened())
}
