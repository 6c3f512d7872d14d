package ldapkit

import (
	"fmt"
	"os"

	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosBind performs a GSSAPI bind on conn using the Config's Kerberos
// settings.
func (h *Handler) kerberosBind(conn ldapConn) error {
	client, err := h.newGSSAPIClient()
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn := h.cfg.KerberosSPN
	if spn == "" {
		host, err := hostFromURL(h.cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to build service principal: %w", err)
		}
		spn = fmt.Sprintf("ldap/%s", host)
	}

	h.log.Debug().
		Str("realm", h.cfg.KerberosRealm).
		Str("spn", spn).
		Msg("performing GSSAPI bind")

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// newGSSAPIClient builds a gokrb5-backed GSSAPI client. Credential sources
// are tried in order: explicit credential cache, explicit keytab, then
// bind DN and password against the realm.
func (h *Handler) newGSSAPIClient() (*gssapi.Client, error) {
	cfg := h.cfg

	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = defaultKrb5Conf
	}
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	if cfg.KerberosCCache != "" {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" {
		return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindDN != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.BindDN, cfg.KerberosRealm, cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials for Kerberos authentication")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
