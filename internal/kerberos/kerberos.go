// Package kerberos loads Kerberos credentials for the HTTP Negotiate transport
// and the directory GSSAPI bind.
package kerberos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// Config describes where Kerberos credentials come from.
type Config struct {
	Username   string // Principal name, optionally user@REALM
	Password   string
	Realm      string
	Keytab     string // Path to keytab file
	ConfigPath string // Path to krb5.conf
	CCache     string // Path to credential cache
	Domain     string // DNS domain, used when no krb5.conf exists

	// Subsystem receives log output; defaults to "kerberos".
	Subsystem string
}

// NewClient returns a logged-in Kerberos client.
// Priority order: credential cache → keytab → password.
func NewClient(ctx context.Context, cfg Config) (*krb5client.Client, error) {
	if err := prepare(&cfg); err != nil {
		return nil, fmt.Errorf("kerberos configuration error: %w", err)
	}

	krb5conf, err := loadKrb5Conf(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cl, source, err := newClient(cfg, krb5conf)
	if err != nil {
		return nil, err
	}

	if err := cl.Login(); err != nil {
		cl.Destroy()
		logEvent(ctx, cfg, "ticket_acquisition_failed", map[string]any{"source": source, "error": err.Error()})
		return nil, fmt.Errorf("kerberos login failed for %s@%s: %w", cfg.Username, cfg.Realm, err)
	}

	logEvent(ctx, cfg, "ticket_acquired", map[string]any{
		"source":    source,
		"principal": cfg.Username,
		"realm":     cfg.Realm,
	})

	return cl, nil
}

func newClient(cfg Config, krb5conf *config.Config) (*krb5client.Client, string, error) {
	// Priority 1: Explicit credential cache
	if cfg.CCache != "" && fileExists(cfg.CCache) {
		cl, err := clientFromCCache(cfg.CCache, krb5conf)
		return cl, "ccache", err
	}

	// Priority 2: Default credential cache
	if ccache := DefaultCCachePath(); fileExists(ccache) {
		cl, err := clientFromCCache(ccache, krb5conf)
		return cl, "default_ccache", err
	}

	// Priority 3: Explicit keytab
	if cfg.Keytab != "" && fileExists(cfg.Keytab) {
		cl, err := clientFromKeytab(cfg, cfg.Keytab, krb5conf)
		return cl, "keytab", err
	}

	// Priority 4: Default keytab
	if kt := DefaultKeytabPath(); fileExists(kt) {
		cl, err := clientFromKeytab(cfg, kt, krb5conf)
		return cl, "default_keytab", err
	}

	// Priority 5: Password authentication
	if cfg.Password != "" {
		return krb5client.NewWithPassword(cfg.Username, cfg.Realm, cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true)), "password", nil
	}

	return nil, "", errors.New("no suitable credentials found for Kerberos authentication")
}

func clientFromCCache(path string, krb5conf *config.Config) (*krb5client.Client, error) {
	cc, err := credentials.LoadCCache(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential cache %s: %w", path, err)
	}
	cl, err := krb5client.NewFromCCache(cc, krb5conf, krb5client.DisablePAFXFAST(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create client from credential cache: %w", err)
	}
	return cl, nil
}

func clientFromKeytab(cfg Config, path string, krb5conf *config.Config) (*krb5client.Client, error) {
	kt, err := keytab.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keytab %s: %w", path, err)
	}
	return krb5client.NewWithKeytab(cfg.Username, cfg.Realm, kt, krb5conf, krb5client.DisablePAFXFAST(true)), nil
}

// loadKrb5Conf reads krb5.conf, or generates a DNS-discovery configuration
// when the file is absent and no explicit path was given.
func loadKrb5Conf(ctx context.Context, cfg Config) (*config.Config, error) {
	path := cfg.ConfigPath
	explicit := path != ""
	if !explicit {
		path = defaultKrb5Conf
	}

	if fileExists(path) {
		c, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return c, nil
	}

	if explicit {
		return nil, fmt.Errorf("kerberos configuration file not found at %s. "+
			"Either create it or leave kerberos_config unset to use DNS discovery. "+
			"Example minimal configuration:\n%s",
			path, ExampleKrb5Conf(cfg.Realm))
	}

	text := RuntimeKrb5Conf(cfg.Realm, cfg.Domain)
	logEvent(ctx, cfg, "runtime_config_generated", map[string]any{
		"realm":         strings.ToUpper(cfg.Realm),
		"config_length": len(text),
	})

	c, err := config.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated krb5.conf: %w", err)
	}
	return c, nil
}

// prepare validates cfg and splits user@REALM principals.
func prepare(cfg *Config) error {
	if cfg.Realm == "" && strings.Contains(cfg.Username, "@") {
		parts := strings.SplitN(cfg.Username, "@", 2)
		cfg.Username = parts[0]
		cfg.Realm = strings.ToUpper(parts[1])
	}

	// DOMAIN\user is a Windows logon name; Kerberos wants the bare principal.
	if i := strings.Index(cfg.Username, `\`); i >= 0 {
		if cfg.Realm == "" && cfg.Domain != "" {
			cfg.Realm = strings.ToUpper(cfg.Domain)
		}
		cfg.Username = cfg.Username[i+1:]
	}

	if cfg.Realm == "" && cfg.Domain != "" {
		cfg.Realm = strings.ToUpper(cfg.Domain)
	}

	if cfg.Realm == "" {
		return errors.New("kerberos realm is required (set kerberos_realm or include realm in username)")
	}

	if cfg.Username == "" && cfg.CCache == "" {
		return errors.New("username (principal) is required for Kerberos authentication")
	}

	return nil
}

// ServicePrincipal builds service/host, stripping any port from host.
// A non-empty override wins.
func ServicePrincipal(service, host, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if host == "" {
		return "", errors.New("hostname is required for service principal")
	}
	if colonPos := strings.LastIndex(host, ":"); colonPos != -1 && !strings.HasSuffix(host, "]") {
		host = host[:colonPos]
	}
	return fmt.Sprintf("%s/%s", service, host), nil
}

// DefaultCCachePath returns the default credential cache location.
func DefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// DefaultKeytabPath returns the default keytab location.
func DefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// RuntimeKrb5Conf generates a krb5.conf relying on DNS SRV lookups for KDCs.
func RuntimeKrb5Conf(realm, domain string) string {
	realm = strings.ToUpper(realm)
	if domain == "" {
		domain = realm
	}
	domain = strings.ToLower(domain)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false
    forwardable = true

[realms]
    %s = {
    }

[domain_realm]
    .%s = %s
    %s = %s
`, realm, realm, domain, realm, domain, realm)
}

// ExampleKrb5Conf renders example krb5.conf content for error messages.
func ExampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "YOUR.REALM.COM"
	}
	realm = strings.ToUpper(realm)
	kdcHost := "dc." + strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s

[realms]
    %s = {
        kdc = %s:88
    }`, realm, realm, kdcHost)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

func logEvent(ctx context.Context, cfg Config, event string, fields map[string]any) {
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = "kerberos"
	}
	fields["event"] = event

	switch event {
	case "ticket_acquisition_failed":
		tflog.SubsystemError(ctx, subsystem, "Kerberos event", fields)
	case "ticket_acquired":
		tflog.SubsystemInfo(ctx, subsystem, "Kerberos event", fields)
	default:
		tflog.SubsystemDebug(ctx, subsystem, "Kerberos event", fields)
	}
}
