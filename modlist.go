package ldapkit

import "sort"

// AddModlist builds the operation list for creating a new entry: one add
// operation per attribute that has at least one value. Cleared attributes
// are omitted, since they carry no information for an add.
func AddModlist(attrs *Attributes) ModificationList {
	if attrs == nil {
		return nil
	}

	var mods ModificationList
	for _, name := range attrs.Keys() {
		values := attrs.Values(name)
		if len(values) == 0 {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		mods = append(mods, Modification{Op: AddAttribute, Name: name, Values: copied})
	}

	return mods
}

// ModifyModlist computes the minimal per-attribute delta transforming old
// into new:
//
//   - attribute only in new, non-empty: add
//   - attribute in old but cleared or absent in new: delete
//   - attribute in both with different values: replace
//   - identical value lists: no operation
//
// Value comparison is order-sensitive; multi-valued reordering counts as a
// change. Operations are emitted in attribute name order for determinism.
func ModifyModlist(old, new *Attributes) ModificationList {
	if old == nil {
		old = NewAttributes()
	}
	if new == nil {
		new = NewAttributes()
	}

	names := make(map[string]string) // normalized -> display name
	for _, name := range old.Keys() {
		names[normalizeAttr(name)] = name
	}
	for _, name := range new.Keys() {
		names[normalizeAttr(name)] = name
	}

	ordered := make([]string, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var mods ModificationList
	for _, name := range ordered {
		oldValues := old.Values(name)
		newValues := new.Values(name)

		switch {
		case len(oldValues) == 0 && len(newValues) == 0:
			// Absent or cleared on both sides; nothing to do.
		case len(oldValues) == 0:
			mods = append(mods, Modification{Op: AddAttribute, Name: name, Values: copyValues(newValues)})
		case len(newValues) == 0:
			mods = append(mods, Modification{Op: DeleteAttribute, Name: name})
		case !equalValues(oldValues, newValues):
			mods = append(mods, Modification{Op: ReplaceAttribute, Name: name, Values: copyValues(newValues)})
		}
	}

	return mods
}

func equalValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func copyValues(values []string) []string {
	copied := make([]string, len(values))
	copy(copied, values)
	return copied
}
