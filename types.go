package ldapkit

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
)

// Config holds connection settings for a Handler. Zero fields are filled
// with defaults by NewHandler.
type Config struct {
	// Connection settings
	URL      string        // ldap:// (plaintext) or ldaps:// (implicit TLS)
	BindDN   string        // DN to bind with; empty for anonymous bind
	Password string        // Secret for the bind DN; empty for anonymous bind
	Timeout  time.Duration `default:"10s"` // Connect and operation timeout

	// Directory behaviour
	DerefAliases    DerefAliases `default:"3"` // Alias dereferencing policy, DerefAlways by default
	FollowReferrals bool         // Chase referrals instead of reporting them; independent of DerefAliases

	// TLS settings. Server certificates are verified by default; the
	// historical behaviour of accepting any certificate on ldaps:// is an
	// explicit opt-in via InsecureSkipVerify.
	TLSConfig          *tls.Config // Custom TLS configuration, overrides the fields below
	InsecureSkipVerify bool        // Disable certificate chain verification (not recommended)

	// Kerberos settings for GSSAPI bind. When Realm is set the Handler
	// authenticates with Kerberos instead of a simple bind.
	KerberosRealm  string // Kerberos realm
	KerberosKeytab string // Path to a keytab file
	KerberosCCache string // Path to a credential cache
	KerberosConfig string // Path to krb5.conf (default /etc/krb5.conf)
	KerberosSPN    string // Explicit service principal, overrides ldap/<host>

	// Retry settings for transient failures
	MaxRetries     int           `default:"2"`
	InitialBackoff time.Duration `default:"500ms"`
	MaxBackoff     time.Duration `default:"5s"`
	BackoffFactor  float64       `default:"2.0"`

	// Logger receives structured operation logs. Nil disables logging.
	Logger *zerolog.Logger
}

// Scope defines the LDAP search scope. Values match the protocol encoding
// used by go-ldap.
type Scope int

const (
	ScopeBaseObject Scope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// DerefAliases defines alias dereferencing behaviour. Values match the
// protocol encoding used by go-ldap.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// SearchRequest encapsulates search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
}

// NewSearchRequest builds a subtree search with the usual defaults: an
// empty filter becomes "(objectClass=*)", and no attribute list requests
// all attributes.
func NewSearchRequest(baseDN, filter string, attributes ...string) *SearchRequest {
	if filter == "" {
		filter = "(objectClass=*)"
	}
	return &SearchRequest{
		BaseDN:     baseDN,
		Scope:      ScopeWholeSubtree,
		Filter:     filter,
		Attributes: attributes,
	}
}

// ModifyOp is the kind of a single attribute modification.
type ModifyOp int

const (
	AddAttribute ModifyOp = iota
	DeleteAttribute
	ReplaceAttribute
)

func (op ModifyOp) String() string {
	switch op {
	case AddAttribute:
		return "add"
	case DeleteAttribute:
		return "delete"
	case ReplaceAttribute:
		return "replace"
	default:
		return "unknown"
	}
}

// Modification is one (operation, attribute, values) triple.
type Modification struct {
	Op     ModifyOp
	Name   string
	Values []string
}

// ModificationList is an ordered sequence of modifications, consumed by the
// Handler's add and modify operations.
type ModificationList []Modification
