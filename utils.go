package ldapkit

import (
	"context"
	"fmt"
	"sort"
)

// Authenticate performs a simple credential check: bind with cfg, then
// disconnect. It returns true when the bind succeeds and the bind failure
// otherwise.
func Authenticate(ctx context.Context, cfg *Config) (bool, error) {
	h, err := NewHandler(cfg)
	if err != nil {
		return false, err
	}

	if err := h.Bind(ctx); err != nil {
		return false, err
	}

	h.Unbind()
	return true, nil
}

// AttributeList flattens search results into the values of a single
// attribute, one value per matching entry. The pseudo-attribute "dn" lists
// entry DNs instead. A supplied filter is combined with a presence assertion
// on attr; without one, the presence assertion alone is used.
func AttributeList(ctx context.Context, h *Handler, attr, baseDN, filter string, sortValues bool) ([]string, error) {
	var searchFilter string
	switch {
	case attr == "dn" && filter == "":
		searchFilter = "(objectClass=*)"
	case attr == "dn":
		searchFilter = filter
	case filter != "":
		searchFilter = fmt.Sprintf("(&(%s=*)%s)", attr, filter)
	default:
		searchFilter = fmt.Sprintf("(%s=*)", attr)
	}

	entries, err := h.SearchRaw(ctx, &SearchRequest{
		BaseDN:     baseDN,
		Scope:      ScopeWholeSubtree,
		Filter:     searchFilter,
		Attributes: []string{attr},
	})
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(entries))
	for _, e := range entries {
		if attr == "dn" {
			values = append(values, e.DN)
			continue
		}
		if vs := e.GetAttributeValues(attr); len(vs) > 0 {
			values = append(values, vs[0])
		}
	}

	if sortValues {
		sort.Strings(values)
	}

	return values, nil
}
