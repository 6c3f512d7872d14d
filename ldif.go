package ldapkit

import (
	"io"

	"github.com/go-ldap/ldif"
)

// WriteLDIF serializes the entry to LDIF text and writes it to w. Attributes
// with empty value lists are omitted. Serialization is delegated to the
// go-ldap/ldif package.
func (e *Entry) WriteLDIF(w io.Writer) error {
	l := &ldif.LDIF{
		Entries: []*ldif.Entry{{Entry: e.toLDAPEntry()}},
	}

	data, err := ldif.Marshal(l)
	if err != nil {
		return errKind("ldif_marshal", KindDecodingError, "cannot serialize entry %s: %v", e.dn, err)
	}

	if _, err := io.WriteString(w, data); err != nil {
		return err
	}

	return nil
}

// ReadLDIF parses LDIF text from r and returns the contained entries.
func ReadLDIF(r io.Reader) ([]*Entry, error) {
	var l ldif.LDIF
	if err := ldif.Unmarshal(r, &l); err != nil {
		return nil, errKind("ldif_unmarshal", KindDecodingError, "cannot parse LDIF: %v", err)
	}

	parsed := l.AllEntries()
	entries := make([]*Entry, 0, len(parsed))
	for _, le := range parsed {
		entries = append(entries, FromLDAPEntry(le))
	}

	return entries, nil
}
