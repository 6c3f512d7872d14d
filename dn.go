package ldapkit

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// NormalizeDN parses dn and reconstructs it in canonical form: attribute
// type descriptors uppercased, RDNs joined with "," and multi-valued RDN
// attributes joined with "+". Value case and escaping are preserved.
func NormalizeDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", errKind("parse_dn", KindInvalidDN, "invalid DN syntax: %v", err)
	}

	return reconstructDN(parsed), nil
}

func reconstructDN(parsed *ldap.DN) string {
	rdns := make([]string, 0, len(parsed.RDNs))

	for _, rdn := range parsed.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			attrs = append(attrs, fmt.Sprintf("%s=%s", strings.ToUpper(attr.Type), attr.Value))
		}
		rdns = append(rdns, strings.Join(attrs, "+"))
	}

	return strings.Join(rdns, ",")
}

// ValidateDN checks that dn parses as a sequence of RDN components.
func ValidateDN(dn string) error {
	if dn == "" {
		return errKind("validate_dn", KindInvalidDN, "DN cannot be empty")
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return errKind("validate_dn", KindInvalidDN, "invalid DN syntax: %v", err)
	}

	return nil
}

// SplitDN decomposes dn into its leaf RDN and the parent base formed by the
// remaining components. A DN with fewer than two components has no parent
// and cannot be reconciled against one.
func SplitDN(dn string) (rdn, parent string, err error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", "", errKind("split_dn", KindInvalidDN, "invalid DN syntax: %v", err)
	}

	if len(parsed.RDNs) < 2 {
		return "", "", errKind("split_dn", KindInvalidDN, "DN has no parent: %s", dn)
	}

	leaf := &ldap.DN{RDNs: parsed.RDNs[:1]}
	base := &ldap.DN{RDNs: parsed.RDNs[1:]}

	return reconstructDN(leaf), reconstructDN(base), nil
}

// ParentDN returns the parent base of dn, dropping the leaf RDN.
func ParentDN(dn string) (string, error) {
	_, parent, err := SplitDN(dn)
	return parent, err
}

// rdnFilter turns a leaf RDN like "CN=Alice" into the search filter
// "(cn=Alice)" with the value escaped for filter syntax. Multi-valued RDNs
// become an AND of their attribute assertions.
func rdnFilter(rdn string) (string, error) {
	parsed, err := ldap.ParseDN(rdn)
	if err != nil || len(parsed.RDNs) != 1 {
		return "", errKind("rdn_filter", KindInvalidDN, "invalid RDN: %s", rdn)
	}

	attrs := parsed.RDNs[0].Attributes
	if len(attrs) == 1 {
		return fmt.Sprintf("(%s=%s)", attrs[0].Type, ldap.EscapeFilter(attrs[0].Value)), nil
	}

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, fmt.Sprintf("(%s=%s)", attr.Type, ldap.EscapeFilter(attr.Value)))
	}
	return "(&" + strings.Join(parts, "") + ")", nil
}

// EscapeDNValue escapes special characters in a DN attribute value per
// RFC 4514: the characters , + " \ < > ; always, a leading #, leading and
// trailing spaces, and NUL bytes as \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case 0:
			b.WriteString("\\00")
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// UnescapeDNValue removes RFC 4514 escaping from a DN attribute value. It is
// the inverse of EscapeDNValue and also handles two-digit hex escapes.
func UnescapeDNValue(value string) string {
	if value == "" || !strings.Contains(value, "\\") {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' {
			b.WriteRune(r)
			continue
		}

		if i == len(runes)-1 {
			b.WriteRune('\\')
			break
		}

		next := runes[i+1]
		if isHexDigit(next) && i+2 < len(runes) && isHexDigit(runes[i+2]) {
			b.WriteRune(rune(hexValue(next)<<4 | hexValue(runes[i+2])))
			i += 2
			continue
		}

		b.WriteRune(next)
		i++
	}

	return b.String()
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}
