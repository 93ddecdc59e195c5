package directory

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorCategorizesResultCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		code uint16
		want error
	}{
		{name: "invalid credentials", code: ldap.LDAPResultInvalidCredentials, want: ErrInvalidCredentials},
		{name: "no such object", code: ldap.LDAPResultNoSuchObject, want: ErrNoSuchObject},
		{name: "already exists", code: ldap.LDAPResultEntryAlreadyExists, want: ErrAlreadyExists},
		{name: "invalid syntax", code: ldap.LDAPResultInvalidAttributeSyntax, want: ErrInvalidSyntax},
		{name: "filter compile", code: ldap.ErrorFilterCompile, want: ErrInvalidSyntax},
		{name: "object class violation", code: ldap.LDAPResultObjectClassViolation, want: ErrConstraint},
		{name: "non leaf", code: ldap.LDAPResultNotAllowedOnNonLeaf, want: ErrNotAllowedOnNonLeaf},
		{name: "insufficient access", code: ldap.LDAPResultInsufficientAccessRights, want: ErrInsufficientAccess},
		{name: "network", code: ldap.ErrorNetwork, want: ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cause := ldap.NewError(tc.code, errors.New("boom"))
			err := wrapError("search", "dc=example,dc=org", cause)

			require.ErrorIs(t, err, tc.want)

			var ldapErr *ldap.Error
			require.ErrorAs(t, err, &ldapErr)
			assert.Equal(t, tc.code, ldapErr.ResultCode)
			assert.Equal(t, tc.code, ResultCode(err))
		})
	}
}

func TestWrapErrorTreatsTransportFailuresAsUnavailable(t *testing.T) {
	t.Parallel()

	err := wrapError("search", "", errors.New("connection reset"))

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, uint16(0), ResultCode(err))
	assert.Contains(t, err.Error(), "ldap search: connection reset")
}

func TestWrapErrorDoesNotDoubleWrap(t *testing.T) {
	t.Parallel()

	first := wrapError("add", "cn=x,dc=example,dc=org", ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists")))
	second := wrapError("modify", "", first)

	assert.Same(t, first, second)
	assert.Nil(t, wrapError("add", "", nil))
}

func TestOpErrorMessage(t *testing.T) {
	t.Parallel()

	err := wrapError("delete", "ou=people,dc=example,dc=org", ldap.NewError(ldap.LDAPResultNotAllowedOnNonLeaf, errors.New("has children")))

	assert.Contains(t, err.Error(), `ldap delete "ou=people,dc=example,dc=org" (code 66)`)
}
