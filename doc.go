/*
Package ldapkit provides a thin convenience layer over the go-ldap client
library for working with directory entries.

The package is organized into a small number of components:

  - Attributes: a case-insensitive attribute/value store
  - Entry: a distinguished name plus an attribute store, with LDIF export
  - Handler: bind/search/add/modify/delete/rename against a directory server
  - Reconciler: decides ADD vs MODIFY for a desired entry and computes the
    minimal modification list

# Entries and attributes

Attribute names are compared case-insensitively: setting "Mail" and reading
"mail" touch the same attribute. Values are ordered lists of strings. An
attribute holding an empty value list is treated as cleared, which is
equivalent to absent for reconciliation purposes.

# Reconciliation

The Reconciler looks up the single entry identified by the desired entry's
DN (parent base, leaf RDN filter). If the entry is absent it builds an add
list from the non-empty attributes; if present it overlays the desired
attributes on the live snapshot and computes a minimal modify delta. An
empty operation list is a logged no-op. DryRun computes the full decision
but suppresses the side-effecting call.

# Connection model

A Handler owns exactly one connection. Operations are synchronous and
blocking; there is no pooling and no mid-operation cancellation beyond the
configured timeout. Sharing one Handler across goroutines requires external
synchronization. Callers pair top-level operations with an explicit Unbind.

# Errors and logging

Directory failures carry a Kind (authentication, server unavailable, filter
syntax, invalid DN, ...) and are returned to the caller; connection-level
failures are additionally recorded on the Handler and readable through
LastError. Logging goes through an injected zerolog.Logger and defaults to
a no-op logger.

# Example

	cfg := &ldapkit.Config{
		URL:      "ldaps://ldap.example.com",
		BindDN:   "cn=admin,dc=example,dc=com",
		Password: "secret",
	}
	h, err := ldapkit.NewHandler(cfg)
	if err != nil {
		return err
	}
	defer h.Unbind()

	e := ldapkit.NewEntry()
	if err := e.SetDN("cn=alice,ou=people,dc=example,dc=com"); err != nil {
		return err
	}
	e.Set("objectClass", []string{"inetOrgPerson"})
	e.Set("cn", "alice")
	e.Set("mail", "alice@example.com")

	r := ldapkit.NewReconciler(h)
	result := r.Reconcile(ctx, e)
	if result.Err != nil {
		return result.Err
	}
*/
package ldapkit
