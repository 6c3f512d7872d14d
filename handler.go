package ldapkit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

// ldapConn is the slice of *ldap.Conn the Handler uses. It exists so tests
// can substitute a fake connection.
type ldapConn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	SetTimeout(timeout time.Duration)
	Unbind() error
	Close() error
}

// Handler owns a single connection to a directory server and exposes the
// operations the library needs: bind, search, add, modify, delete and
// rename. A Handler is not safe for concurrent use; callers wanting
// parallelism run one Handler per goroutine, each with its own connection.
//
// Connection-level failures are recorded as the handler's last error in
// addition to being returned, so batch-style callers can check LastError
// after a sequence of operations.
type Handler struct {
	cfg     *Config
	log     zerolog.Logger
	conn    ldapConn
	lastErr error

	dial func(cfg *Config) (ldapConn, error)
}

// NewHandler validates cfg, fills defaults and returns a Handler. No
// connection is made until the first operation or an explicit Bind.
func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	return &Handler{
		cfg:  cfg,
		log:  log,
		dial: dialURL,
	}, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("LDAP URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid LDAP URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ldap", "ldaps":
		return nil
	default:
		return fmt.Errorf("unsupported URL scheme %q: want ldap:// or ldaps://", u.Scheme)
	}
}

// dialURL establishes the underlying connection via go-ldap.
func dialURL(cfg *Config) (ldapConn, error) {
	tlsCfg := cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}

	conn, err := ldap.DialURL(cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}),
		ldap.DialWithTLSConfig(tlsCfg),
	)
	if err != nil {
		return nil, err
	}

	conn.SetTimeout(cfg.Timeout)
	return conn, nil
}

// URL returns the configured server URL.
func (h *Handler) URL() string {
	return h.cfg.URL
}

// BindDN returns the configured bind DN.
func (h *Handler) BindDN() string {
	return h.cfg.BindDN
}

// LastError returns the most recent connection-level failure, or nil.
func (h *Handler) LastError() error {
	return h.lastErr
}

// Bind establishes the connection and authenticates. It is idempotent: a
// handler that is already connected returns immediately. Credentials come
// from the Config; an empty bind DN and password perform an anonymous bind,
// and a configured Kerberos realm switches to a GSSAPI bind.
func (h *Handler) Bind(ctx context.Context) error {
	if h.conn != nil {
		return nil
	}

	start := time.Now()
	h.log.Debug().Str("url", h.cfg.URL).Msg("connecting to LDAP server")

	var conn ldapConn
	err := h.withRetry(ctx, func() error {
		var dialErr error
		conn, dialErr = h.dial(h.cfg)
		if dialErr != nil {
			return dialErr
		}

		if authErr := h.authenticate(conn); authErr != nil {
			_ = conn.Close()
			conn = nil
			return authErr
		}
		return nil
	})
	observeOperation("bind", start, err)

	if err != nil {
		return h.fail("bind", err)
	}

	h.conn = conn
	h.log.Debug().
		Str("url", h.cfg.URL).
		Str("bind_dn", h.cfg.BindDN).
		Dur("elapsed", time.Since(start)).
		Msg("connected to LDAP server")
	return nil
}

func (h *Handler) authenticate(conn ldapConn) error {
	if h.cfg.KerberosRealm != "" {
		return h.kerberosBind(conn)
	}

	if h.cfg.Password == "" {
		// Anonymous or unauthenticated bind.
		return conn.UnauthenticatedBind(h.cfg.BindDN)
	}

	return conn.Bind(h.cfg.BindDN, h.cfg.Password)
}

// Unbind disconnects from the server. Safe to call when not connected.
func (h *Handler) Unbind() {
	if h.conn == nil {
		return
	}

	h.log.Debug().Msg("disconnecting from LDAP server")
	if err := h.conn.Unbind(); err != nil {
		// Unbind failures are not actionable; the connection is dropped
		// either way.
		h.log.Debug().Err(err).Msg("unbind failed")
	}
	h.conn = nil
}

// Search performs a search and returns the results as wrapped entries.
func (h *Handler) Search(ctx context.Context, req *SearchRequest) ([]*Entry, error) {
	raw, err := h.SearchRaw(ctx, req)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(raw))
	for _, le := range raw {
		e := FromLDAPEntry(le)
		e.SetLogger(h.log)
		entries = append(entries, e)
	}
	return entries, nil
}

// SearchRaw performs a search and returns the unwrapped go-ldap entries.
func (h *Handler) SearchRaw(ctx context.Context, req *SearchRequest) ([]*ldap.Entry, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	if err := h.Bind(ctx); err != nil {
		return nil, err
	}

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(h.cfg.DerefAliases),
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	start := time.Now()
	var result *ldap.SearchResult
	err := h.withRetry(ctx, func() error {
		var searchErr error
		result, searchErr = h.conn.Search(ldapReq)
		return searchErr
	})
	observeOperation("search", start, err)

	if err != nil {
		h.log.Error().
			Str("base_dn", req.BaseDN).
			Str("filter", req.Filter).
			Err(err).
			Msg("LDAP search failed")
		return nil, h.fail("search", err)
	}

	if len(result.Referrals) > 0 && !h.cfg.FollowReferrals {
		h.lastErr = errKind("search", KindUnhandledReferral,
			"search returned %d referrals", len(result.Referrals))
		h.log.Error().
			Strs("referrals", result.Referrals).
			Msg("cannot handle referral")
	}

	h.log.Debug().
		Str("base_dn", req.BaseDN).
		Str("filter", req.Filter).
		Str("scope", req.Scope.String()).
		Int("entries", len(result.Entries)).
		Dur("elapsed", time.Since(start)).
		Msg("LDAP search completed")

	return result.Entries, nil
}

// Add creates a new entry at dn from the given modification list. Only the
// values of each modification are used; the operation field is ignored for
// an add.
func (h *Handler) Add(ctx context.Context, dn string, mods ModificationList) error {
	if err := h.Bind(ctx); err != nil {
		return err
	}

	h.log.Info().Str("dn", dn).Int("attributes", len(mods)).Msg("adding LDAP entry")

	ldapReq := ldap.NewAddRequest(dn, nil)
	for _, mod := range mods {
		ldapReq.Attribute(mod.Name, mod.Values)
	}

	start := time.Now()
	err := h.withRetry(ctx, func() error {
		return h.conn.Add(ldapReq)
	})
	observeOperation("add", start, err)

	if err != nil {
		return h.fail("add", err)
	}
	return nil
}

// Modify applies a modification list to the entry at dn as one atomic
// request.
func (h *Handler) Modify(ctx context.Context, dn string, mods ModificationList) error {
	if err := h.Bind(ctx); err != nil {
		return err
	}

	h.log.Info().Str("dn", dn).Int("operations", len(mods)).Msg("modifying LDAP entry")

	ldapReq := ldap.NewModifyRequest(dn, nil)
	for _, mod := range mods {
		switch mod.Op {
		case AddAttribute:
			ldapReq.Add(mod.Name, mod.Values)
		case DeleteAttribute:
			ldapReq.Delete(mod.Name, mod.Values)
		case ReplaceAttribute:
			ldapReq.Replace(mod.Name, mod.Values)
		}
	}

	start := time.Now()
	err := h.withRetry(ctx, func() error {
		return h.conn.Modify(ldapReq)
	})
	observeOperation("modify", start, err)

	if err != nil {
		return h.fail("modify", err)
	}
	return nil
}

// Delete removes the entry at dn from the directory.
func (h *Handler) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return errKind("delete", KindInvalidDN, "DN cannot be empty")
	}

	if err := h.Bind(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := h.withRetry(ctx, func() error {
		return h.conn.Del(ldap.NewDelRequest(dn, nil))
	})
	observeOperation("delete", start, err)

	if err != nil {
		return h.fail("delete", err)
	}

	h.log.Info().Str("dn", dn).Msg("LDAP entry removed")
	return nil
}

// DeleteEntry removes the entry identified by e's DN.
func (h *Handler) DeleteEntry(ctx context.Context, e *Entry) error {
	if e == nil {
		return errKind("delete", KindInvalidDN, "entry cannot be nil")
	}
	return h.Delete(ctx, e.DN())
}

// Rename moves or renames the entry at dn. newSuperior may be empty to keep
// the entry under its current parent; deleteOldRDN controls whether the old
// RDN value remains as an attribute.
func (h *Handler) Rename(ctx context.Context, dn, newRDN, newSuperior string, deleteOldRDN bool) error {
	if err := h.Bind(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := h.withRetry(ctx, func() error {
		return h.conn.ModifyDN(ldap.NewModifyDNRequest(dn, newRDN, deleteOldRDN, newSuperior))
	})
	observeOperation("rename", start, err)

	if err != nil {
		return h.fail("rename", err)
	}

	h.log.Info().
		Str("dn", dn).
		Str("new_rdn", newRDN).
		Str("new_superior", newSuperior).
		Msg("LDAP entry renamed")
	return nil
}

// fail wraps err with the operation name, records connection-level failures
// as the last error and logs them.
func (h *Handler) fail(operation string, err error) error {
	e := newError(operation, err)

	switch e.Kind {
	case KindAuthenticationFailed, KindServerUnavailable, KindProtocolError, KindUnhandledReferral:
		h.lastErr = e
		h.log.Error().Str("operation", operation).Str("kind", string(e.Kind)).Err(e.Cause).Msg(e.Message)
	default:
		h.log.Error().Str("operation", operation).Str("kind", string(e.Kind)).Err(e.Cause).Msg("LDAP operation failed")
	}

	return e
}

// withRetry runs operation, retrying transient failures with exponential
// backoff. The context is honoured between attempts; go-ldap operations
// themselves are bounded by the configured timeout.
func (h *Handler) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := h.cfg.InitialBackoff

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			h.log.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("retrying LDAP operation")
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt == h.cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * h.cfg.BackoffFactor)
			if backoff > h.cfg.MaxBackoff {
				backoff = h.cfg.MaxBackoff
			}
		}
	}

	return lastErr
}

// hostFromURL extracts the hostname from an LDAP URL, for building the
// Kerberos service principal.
func hostFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid LDAP URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no hostname in URL: %s", rawURL)
	}

	return strings.ToLower(host), nil
}
