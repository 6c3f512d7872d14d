package ldapkit

import (
	"time"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn substitutes the go-ldap connection in tests. Search behaviour is
// driven by searchFn; every write request is captured for assertions.
type fakeConn struct {
	bindDN   string
	bindPass string
	bindErr  error

	unauthenticatedDN    string
	unauthenticatedCalls int

	searchFn   func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	searchReqs []*ldap.SearchRequest

	addErr    error
	modifyErr error
	delErr    error

	addReqs      []*ldap.AddRequest
	modifyReqs   []*ldap.ModifyRequest
	delReqs      []*ldap.DelRequest
	modifyDNReqs []*ldap.ModifyDNRequest

	unbinds int
	closed  bool
}

func (c *fakeConn) Bind(username, password string) error {
	c.bindDN = username
	c.bindPass = password
	return c.bindErr
}

func (c *fakeConn) UnauthenticatedBind(username string) error {
	c.unauthenticatedDN = username
	c.unauthenticatedCalls++
	return c.bindErr
}

func (c *fakeConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error {
	return c.bindErr
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.searchReqs = append(c.searchReqs, req)
	if c.searchFn != nil {
		return c.searchFn(req)
	}
	return &ldap.SearchResult{}, nil
}

func (c *fakeConn) Add(req *ldap.AddRequest) error {
	c.addReqs = append(c.addReqs, req)
	return c.addErr
}

func (c *fakeConn) Modify(req *ldap.ModifyRequest) error {
	c.modifyReqs = append(c.modifyReqs, req)
	return c.modifyErr
}

func (c *fakeConn) Del(req *ldap.DelRequest) error {
	c.delReqs = append(c.delReqs, req)
	return c.delErr
}

func (c *fakeConn) ModifyDN(req *ldap.ModifyDNRequest) error {
	c.modifyDNReqs = append(c.modifyDNReqs, req)
	return nil
}

func (c *fakeConn) SetTimeout(time.Duration) {}

func (c *fakeConn) Unbind() error {
	c.unbinds++
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// newTestHandler wires a Handler to the given fake connection, counting
// dials.
func newTestHandler(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, cfg *Config, conn *fakeConn) (*Handler, *int) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{URL: "ldap://ldap.example.com"}
	}

	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler() unexpected error: %v", err)
	}

	dials := 0
	h.dial = func(*Config) (ldapConn, error) {
		dials++
		return conn, nil
	}

	return h, &dials
}

// searchResultFor builds a one-entry search result.
func searchResultFor(dn string, attrs map[string][]string) *ldap.SearchResult {
	entry := &ldap.Entry{DN: dn}
	for name, values := range attrs {
		entry.Attributes = append(entry.Attributes, ldap.NewEntryAttribute(name, values))
	}
	return &ldap.SearchResult{Entries: []*ldap.Entry{entry}}
}
