package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeDNValue escapes an attribute value for use inside an RDN (RFC 4514).
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == ',' || c == '+' || c == '"' || c == '\\' || c == '<' || c == '>' || c == ';' || c == '=':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '#' && i == 0:
			b.WriteString(`\#`)
		case c == ' ' && (i == 0 || i == last):
			b.WriteString(`\ `)
		case c == 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// ChildDN builds "<attr>=<escaped value>,<parent>".
func ChildDN(attr string, value string, parent string) string {
	rdn := attr + "=" + EscapeDNValue(value)
	if strings.TrimSpace(parent) == "" {
		return rdn
	}
	return rdn + "," + parent
}

// ValidateDN reports whether dn is a syntactically valid distinguished name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("%w: empty DN", ErrInvalidSyntax)
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSyntax, err)
	}

	return nil
}

// SameDN compares two DNs case-insensitively after parsing, falling back to a plain
// string comparison when either side does not parse.
func SameDN(a string, b string) bool {
	left, errA := ldap.ParseDN(a)
	right, errB := ldap.ParseDN(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return left.EqualFold(right)
}

// ValidateFilter checks that filter compiles.
func ValidateFilter(filter string) error {
	if _, err := ldap.CompileFilter(filter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSyntax, err)
	}
	return nil
}
