package ldapkit

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

// Entry wraps a distinguished name and a case-insensitive attribute store.
//
// Entries are constructed either empty, for a new directory object to be
// created, or from a search result. They are never persisted implicitly;
// writing an entry to the directory is an explicit step performed through
// the Reconciler or Handler. Entries are owned by the caller.
type Entry struct {
	dn    string
	attrs *Attributes
	log   zerolog.Logger
}

// NewEntry returns an empty entry with a no-op logger.
func NewEntry() *Entry {
	return &Entry{
		attrs: NewAttributes(),
		log:   zerolog.Nop(),
	}
}

// FromLDAPEntry builds an Entry from a go-ldap search result entry.
func FromLDAPEntry(src *ldap.Entry) *Entry {
	e := NewEntry()
	if src == nil {
		return e
	}

	e.dn = src.DN
	for _, attr := range src.Attributes {
		values := make([]string, len(attr.Values))
		copy(values, attr.Values)
		e.attrs.SetValues(attr.Name, values)
	}

	return e
}

// SetLogger replaces the entry's logger, propagating it to the attribute
// store.
func (e *Entry) SetLogger(log zerolog.Logger) {
	e.log = log
	e.attrs.SetLogger(log)
}

func (e *Entry) String() string {
	return fmt.Sprintf("DN: %s", e.dn)
}

// DN returns the entry's distinguished name.
func (e *Entry) DN() string {
	return e.dn
}

// SetDN validates and canonicalizes dn before storing it. On parse failure
// the previous DN is left unchanged, the failure is logged, and an
// invalid-DN error is returned for callers that want it.
func (e *Entry) SetDN(dn string) error {
	normalized, err := NormalizeDN(dn)
	if err != nil {
		e.log.Error().Str("dn", dn).Err(err).Msg("not a valid DN")
		return err
	}

	e.dn = normalized
	e.log.Debug().Str("dn", e.dn).Msg("DN set")
	return nil
}

// Attributes returns the entry's attribute store.
func (e *Entry) Attributes() *Attributes {
	return e.attrs
}

// Get returns the values of name, falling back to def with the wrapping
// contract documented on Attributes.Get.
func (e *Entry) Get(name string, def any) any {
	return e.attrs.Get(name, def)
}

// Values returns the value list of name, or nil if absent.
func (e *Entry) Values(name string) []string {
	return e.attrs.Values(name)
}

// Set replaces the values of name; see Attributes.Set for accepted types.
func (e *Entry) Set(name string, value any) error {
	return e.attrs.Set(name, value)
}

// Append adds a value to name, creating the attribute if needed.
func (e *Entry) Append(name, value string) {
	e.attrs.Append(name, value)
}

// Remove deletes the first occurrence of value from name.
func (e *Entry) Remove(name, value string) {
	e.attrs.Remove(name, value)
}

// Delete clears the values of name.
func (e *Entry) Delete(name string) {
	e.attrs.Delete(name)
}

// Keys returns the names of all stored attributes.
func (e *Entry) Keys() []string {
	return e.attrs.Keys()
}

// toLDAPEntry converts the entry into the go-ldap representation used by the
// LDIF serializer.
func (e *Entry) toLDAPEntry() *ldap.Entry {
	attrs := make([]*ldap.EntryAttribute, 0, e.attrs.Len())
	for _, name := range e.attrs.Keys() {
		values := e.attrs.Values(name)
		if len(values) == 0 {
			continue
		}
		attrs = append(attrs, ldap.NewEntryAttribute(name, values))
	}

	return &ldap.Entry{
		DN:         e.dn,
		Attributes: attrs,
	}
}
