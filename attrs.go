package ldapkit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// attrValue holds one attribute's values together with the attribute name as
// it was first supplied, for display purposes.
type attrValue struct {
	name   string
	values []string
}

// Attributes is a case-insensitive mapping from attribute name to an ordered
// list of string values. Lookups normalize the name to lowercase; the
// originally-supplied case is preserved for Keys. An attribute present with
// an empty value list means "cleared", which reconciliation treats the same
// as absent.
//
// The zero value is not usable; construct with NewAttributes.
type Attributes struct {
	attrs map[string]*attrValue
	log   zerolog.Logger
}

// NewAttributes returns an empty attribute store with a no-op logger.
func NewAttributes() *Attributes {
	return &Attributes{
		attrs: make(map[string]*attrValue),
		log:   zerolog.Nop(),
	}
}

// SetLogger replaces the store's logger. Logging is optional and never fatal.
func (a *Attributes) SetLogger(log zerolog.Logger) {
	a.log = log
}

func normalizeAttr(name string) string {
	return strings.ToLower(name)
}

// Get returns the value list for name if present and non-empty. Otherwise it
// returns def unchanged when def is a []string or a bool, and a single-element
// []string wrapping def's string form for any other type. The asymmetry
// matches the historical contract and is relied upon by callers that pass a
// boolean false to detect absence.
func (a *Attributes) Get(name string, def any) any {
	if av, ok := a.attrs[normalizeAttr(name)]; ok && len(av.values) > 0 {
		return av.values
	}

	a.log.Debug().Str("attribute", name).Msg("no such attribute in entry")

	switch d := def.(type) {
	case []string:
		return d
	case bool:
		return d
	default:
		return []string{fmt.Sprint(d)}
	}
}

// Values returns the value list for name, or nil if the attribute is absent.
// The returned slice is the store's own; callers must not mutate it.
func (a *Attributes) Values(name string) []string {
	if av, ok := a.attrs[normalizeAttr(name)]; ok {
		return av.values
	}
	return nil
}

// Has reports whether name is present, including with an empty value list.
func (a *Attributes) Has(name string) bool {
	_, ok := a.attrs[normalizeAttr(name)]
	return ok
}

// Set replaces the values of name. Accepted value types are string, int
// (coerced to its decimal form) and []string; anything else fails with an
// invalid-value-type error.
func (a *Attributes) Set(name string, value any) error {
	var values []string

	switch v := value.(type) {
	case string:
		values = []string{v}
	case int:
		values = []string{strconv.Itoa(v)}
	case []string:
		values = v
	default:
		return errKind("set", KindInvalidValueType, "unsupported value type %T for attribute %s", value, name)
	}

	a.store(name, values)
	return nil
}

// SetValues replaces the values of name without type coercion.
func (a *Attributes) SetValues(name string, values []string) {
	a.store(name, values)
}

func (a *Attributes) store(name string, values []string) {
	key := normalizeAttr(name)
	if av, ok := a.attrs[key]; ok {
		av.values = values
		return
	}
	a.attrs[key] = &attrValue{name: name, values: values}
}

// Append adds a value to name, creating the attribute if it does not exist.
func (a *Attributes) Append(name, value string) {
	key := normalizeAttr(name)
	av, ok := a.attrs[key]
	if !ok {
		a.attrs[key] = &attrValue{name: name, values: []string{value}}
		return
	}
	av.values = append(av.values, value)
}

// Remove deletes the first occurrence of value from name. A missing value or
// attribute is logged and otherwise ignored.
func (a *Attributes) Remove(name, value string) {
	av, ok := a.attrs[normalizeAttr(name)]
	if !ok {
		a.log.Error().Str("attribute", name).Msg("cannot remove value: no such attribute")
		return
	}

	for i, v := range av.values {
		if v == value {
			av.values = append(av.values[:i], av.values[i+1:]...)
			return
		}
	}

	a.log.Error().Str("attribute", name).Str("value", value).Msg("value is not in attribute")
}

// Delete clears the values of name, keeping the attribute itself so that a
// later reconciliation sees it as "cleared" rather than untouched. A missing
// attribute is logged and otherwise ignored.
func (a *Attributes) Delete(name string) {
	av, ok := a.attrs[normalizeAttr(name)]
	if !ok {
		a.log.Error().Str("attribute", name).Msg("cannot delete: no such attribute")
		return
	}
	av.values = []string{}
}

// Keys returns the attribute names currently stored, in their original case,
// including attributes with empty value lists. Order is sorted for stable
// iteration.
func (a *Attributes) Keys() []string {
	keys := make([]string, 0, len(a.attrs))
	for _, av := range a.attrs {
		keys = append(keys, av.name)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of attributes, including cleared ones.
func (a *Attributes) Len() int {
	return len(a.attrs)
}

// Clone returns a deep copy of the store.
func (a *Attributes) Clone() *Attributes {
	clone := NewAttributes()
	clone.log = a.log
	for key, av := range a.attrs {
		values := make([]string, len(av.values))
		copy(values, av.values)
		clone.attrs[key] = &attrValue{name: av.name, values: values}
	}
	return clone
}

// Merge overlays other onto the store, replacing values key by key. Used by
// the reconciler to project a desired entry onto a live snapshot.
func (a *Attributes) Merge(other *Attributes) {
	if other == nil {
		return
	}
	for _, av := range other.attrs {
		values := make([]string, len(av.values))
		copy(values, av.values)
		a.store(av.name, values)
	}
}

// Map returns the attributes as a plain map keyed by original-case name.
// Value slices are copies.
func (a *Attributes) Map() map[string][]string {
	m := make(map[string][]string, len(a.attrs))
	for _, av := range a.attrs {
		values := make([]string, len(av.values))
		copy(values, av.values)
		m[av.name] = values
	}
	return m
}
