package ldapkit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "plaintext URL",
			config:  &Config{URL: "ldap://ldap.example.com"},
			wantErr: false,
		},
		{
			name:    "implicit TLS URL",
			config:  &Config{URL: "ldaps://ldap.example.com:636"},
			wantErr: false,
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "missing URL",
			config:  &Config{},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			config:  &Config{URL: "http://ldap.example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.config)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, h)
		})
	}
}

func TestNewHandlerDefaults(t *testing.T) {
	cfg := &Config{URL: "ldap://ldap.example.com"}
	_, err := NewHandler(cfg)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, DerefAlways, cfg.DerefAliases)
	assert.False(t, cfg.FollowReferrals)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
}

func TestHandlerBindIdempotent(t *testing.T) {
	conn := &fakeConn{}
	h, dials := newTestHandler(t, &Config{
		URL:      "ldap://ldap.example.com",
		BindDN:   "cn=admin,dc=example,dc=com",
		Password: "secret",
	}, conn)

	ctx := context.Background()
	require.NoError(t, h.Bind(ctx))
	require.NoError(t, h.Bind(ctx))
	require.NoError(t, h.Bind(ctx))

	assert.Equal(t, 1, *dials, "bind must reuse the existing connection")
	assert.Equal(t, "cn=admin,dc=example,dc=com", conn.bindDN)
	assert.Equal(t, "secret", conn.bindPass)
}

func TestHandlerAnonymousBind(t *testing.T) {
	conn := &fakeConn{}
	h, _ := newTestHandler(t, &Config{URL: "ldap://ldap.example.com"}, conn)

	require.NoError(t, h.Bind(context.Background()))

	assert.Equal(t, 1, conn.unauthenticatedCalls, "empty credentials must use an unauthenticated bind")
}

func TestHandlerBindRecordsLastError(t *testing.T) {
	conn := &fakeConn{
		bindErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials")),
	}
	h, _ := newTestHandler(t, &Config{
		URL:      "ldap://ldap.example.com",
		BindDN:   "cn=admin,dc=example,dc=com",
		Password: "wrong",
	}, conn)

	err := h.Bind(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))

	require.Error(t, h.LastError())
	assert.Equal(t, KindAuthenticationFailed, KindOf(h.LastError()))
	assert.True(t, conn.closed, "failed bind must close the dialled connection")
}

func TestHandlerUnbind(t *testing.T) {
	conn := &fakeConn{}
	h, dials := newTestHandler(t, nil, conn)

	ctx := context.Background()
	require.NoError(t, h.Bind(ctx))
	h.Unbind()
	h.Unbind() // safe when already disconnected

	assert.Equal(t, 1, conn.unbinds)

	// A new operation reconnects.
	require.NoError(t, h.Bind(ctx))
	assert.Equal(t, 2, *dials)
}

func TestHandlerSearch(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			return searchResultFor("cn=alice,ou=people,dc=example,dc=com", map[string][]string{
				"cn":   {"alice"},
				"mail": {"alice@example.com"},
			}), nil
		},
	}
	h, _ := newTestHandler(t, nil, conn)

	entries, err := h.Search(context.Background(), NewSearchRequest("ou=people,dc=example,dc=com", "(cn=alice)", "cn", "mail"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "cn=alice,ou=people,dc=example,dc=com", entries[0].DN())
	assert.Equal(t, []string{"alice@example.com"}, entries[0].Values("Mail"))

	require.Len(t, conn.searchReqs, 1)
	req := conn.searchReqs[0]
	assert.Equal(t, "(cn=alice)", req.Filter)
	assert.Equal(t, int(ScopeWholeSubtree), req.Scope)
	assert.Equal(t, int(DerefAlways), req.DerefAliases)
}

func TestHandlerSearchFilterError(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			return nil, ldap.NewError(ldap.LDAPResultFilterError, errors.New("bad filter"))
		},
	}
	h, _ := newTestHandler(t, nil, conn)

	_, err := h.SearchRaw(context.Background(), NewSearchRequest("dc=example,dc=com", "(broken"))
	require.Error(t, err)
	assert.Equal(t, KindFilterSyntax, KindOf(err))
	assert.Nil(t, h.LastError(), "filter errors are not connection-level failures")
}

func TestHandlerSearchUnhandledReferral(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			return &ldap.SearchResult{
				Referrals: []string{"ldap://other.example.com/dc=example,dc=com"},
			}, nil
		},
	}
	h, _ := newTestHandler(t, nil, conn)

	entries, err := h.SearchRaw(context.Background(), NewSearchRequest("dc=example,dc=com", ""))
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Error(t, h.LastError())
	assert.Equal(t, KindUnhandledReferral, KindOf(h.LastError()))
}

func TestHandlerModifyBuildsRequest(t *testing.T) {
	conn := &fakeConn{}
	h, _ := newTestHandler(t, nil, conn)

	mods := ModificationList{
		{Op: AddAttribute, Name: "member", Values: []string{"cn=bob,ou=people,dc=example,dc=com"}},
		{Op: ReplaceAttribute, Name: "mail", Values: []string{"new@example.com"}},
		{Op: DeleteAttribute, Name: "description"},
	}

	require.NoError(t, h.Modify(context.Background(), "cn=group,dc=example,dc=com", mods))

	require.Len(t, conn.modifyReqs, 1)
	req := conn.modifyReqs[0]
	assert.Equal(t, "cn=group,dc=example,dc=com", req.DN)
	require.Len(t, req.Changes, 3)
	assert.Equal(t, uint(ldap.AddAttribute), req.Changes[0].Operation)
	assert.Equal(t, uint(ldap.ReplaceAttribute), req.Changes[1].Operation)
	assert.Equal(t, "mail", req.Changes[1].Modification.Type)
	assert.Equal(t, []string{"new@example.com"}, req.Changes[1].Modification.Vals)
	assert.Equal(t, uint(ldap.DeleteAttribute), req.Changes[2].Operation)
}

func TestHandlerAddBuildsRequest(t *testing.T) {
	conn := &fakeConn{}
	h, _ := newTestHandler(t, nil, conn)

	mods := ModificationList{
		{Op: AddAttribute, Name: "objectClass", Values: []string{"inetOrgPerson"}},
		{Op: AddAttribute, Name: "cn", Values: []string{"alice"}},
	}

	require.NoError(t, h.Add(context.Background(), "cn=alice,dc=example,dc=com", mods))

	require.Len(t, conn.addReqs, 1)
	req := conn.addReqs[0]
	assert.Equal(t, "cn=alice,dc=example,dc=com", req.DN)
	require.Len(t, req.Attributes, 2)
	assert.Equal(t, "objectClass", req.Attributes[0].Type)
	assert.Equal(t, []string{"alice"}, req.Attributes[1].Vals)
}

func TestHandlerDelete(t *testing.T) {
	conn := &fakeConn{}
	h, _ := newTestHandler(t, nil, conn)

	require.NoError(t, h.Delete(context.Background(), "cn=old,dc=example,dc=com"))
	require.Len(t, conn.delReqs, 1)
	assert.Equal(t, "cn=old,dc=example,dc=com", conn.delReqs[0].DN)

	err := h.Delete(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, KindInvalidDN, KindOf(err))
}

func TestHandlerRename(t *testing.T) {
	conn := &fakeConn{}
	h, _ := newTestHandler(t, nil, conn)

	err := h.Rename(context.Background(),
		"cn=alice,ou=people,dc=example,dc=com",
		"cn=alice",
		"ou=staff,dc=example,dc=com",
		true,
	)
	require.NoError(t, err)

	require.Len(t, conn.modifyDNReqs, 1)
	req := conn.modifyDNReqs[0]
	assert.Equal(t, "cn=alice,ou=people,dc=example,dc=com", req.DN)
	assert.Equal(t, "cn=alice", req.NewRDN)
	assert.Equal(t, "ou=staff,dc=example,dc=com", req.NewSuperior)
	assert.True(t, req.DeleteOldRDN)
}

func TestHandlerRetriesTransientFailures(t *testing.T) {
	attempts := 0
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			attempts++
			if attempts < 3 {
				return nil, ldap.NewError(ldap.LDAPResultBusy, errors.New("server busy"))
			}
			return &ldap.SearchResult{}, nil
		},
	}

	cfg := &Config{
		URL:            "ldap://ldap.example.com",
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  2.0,
	}
	h, _ := newTestHandler(t, cfg, conn)

	_, err := h.SearchRaw(context.Background(), NewSearchRequest("dc=example,dc=com", ""))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestHandlerDoesNotRetryPermanentFailures(t *testing.T) {
	attempts := 0
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			attempts++
			return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object"))
		},
	}
	h, _ := newTestHandler(t, nil, conn)

	_, err := h.SearchRaw(context.Background(), NewSearchRequest("dc=example,dc=com", ""))
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestHandlerRetryHonoursContext(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			return nil, ldap.NewError(ldap.LDAPResultBusy, errors.New("server busy"))
		},
	}

	cfg := &Config{
		URL:            "ldap://ldap.example.com",
		MaxRetries:     10,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
		BackoffFactor:  2.0,
	}
	h, _ := newTestHandler(t, cfg, conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.SearchRaw(ctx, NewSearchRequest("dc=example,dc=com", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("ldap://host"))
	assert.NoError(t, validateURL("ldaps://host:636"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("https://host"))
}

func TestHostFromURL(t *testing.T) {
	host, err := hostFromURL("ldaps://DC1.Example.COM:636")
	require.NoError(t, err)
	assert.Equal(t, "dc1.example.com", host)

	_, err = hostFromURL("ldap://")
	require.Error(t, err)
}

func ExampleHandler() {
	cfg := &Config{
		URL:      "ldap://ldap.example.com",
		BindDN:   "cn=admin,dc=example,dc=com",
		Password: "secret",
	}

	h, err := NewHandler(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer h.Unbind()
}
