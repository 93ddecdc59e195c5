package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

var (
	ErrUnavailable         = errors.New("directory unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNoSuchObject        = errors.New("no such object")
	ErrAlreadyExists       = errors.New("entry already exists")
	ErrInvalidSyntax       = errors.New("invalid syntax")
	ErrConstraint          = errors.New("constraint violation")
	ErrNotAllowedOnNonLeaf = errors.New("operation not allowed on non-leaf entry")
	ErrInsufficientAccess  = errors.New("insufficient access rights")
)

// OpError describes a failed directory operation. It unwraps to both the error
// category sentinel and the underlying go-ldap error.
type OpError struct {
	Op       string
	DN       string
	Code     uint16
	Category error
	Err      error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString("ldap ")
	b.WriteString(e.Op)
	if e.DN != "" {
		fmt.Fprintf(&b, " %q", e.DN)
	}
	if e.Code > 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() []error {
	if e.Category == nil {
		return []error{e.Err}
	}
	return []error{e.Category, e.Err}
}

// wrapError annotates err with the operation and DN and attaches its category.
func wrapError(op string, dn string, err error) error {
	if err == nil {
		return nil
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}

	wrapped := &OpError{Op: op, DN: dn, Err: err}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		wrapped.Code = ldapErr.ResultCode
		wrapped.Category = categorize(ldapErr.ResultCode)
		return wrapped
	}

	// Anything that is not an LDAP result is a transport level failure.
	wrapped.Category = ErrUnavailable
	return wrapped
}

func categorize(code uint16) error {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.ErrorEmptyPassword:
		return ErrInvalidCredentials

	case ldap.LDAPResultNoSuchObject:
		return ErrNoSuchObject

	case ldap.LDAPResultEntryAlreadyExists:
		return ErrAlreadyExists

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultUndefinedAttributeType,
		ldap.ErrorFilterCompile:
		return ErrInvalidSyntax

	case ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultNotAllowedOnRDN:
		return ErrConstraint

	case ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrNotAllowedOnNonLeaf

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrInsufficientAccess

	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.ErrorNetwork:
		return ErrUnavailable
	}

	return nil
}

// ResultCode returns the LDAP result code carried by err, or 0.
func ResultCode(err error) uint16 {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode
	}
	return 0
}
