// Package directory looks up mailbox owners in Active Directory over LDAP.
//
// The provider uses it to fill in the SMTP address of the configured EWS
// user when none was given, and to report the user's objectSid.
package directory

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/creasty/defaults"
)

// Subsystem is the tflog subsystem directory operations log to.
const Subsystem = "directory"

// AuthMethod selects how connections bind.
type AuthMethod string

const (
	AuthMethodSimple   AuthMethod = "simple"
	AuthMethodKerberos AuthMethod = "kerberos"
)

// MaxConnectionsLimit caps the idle connection pool.
const MaxConnectionsLimit = 16

// Config describes how to reach and bind to the directory.
type Config struct {
	// URLs lists ldap:// or ldaps:// servers. When empty, Domain is used
	// for SRV discovery.
	URLs   []string
	Domain string
	// BaseDN defaults to the server's defaultNamingContext.
	BaseDN string

	Username   string
	Password   string
	AuthMethod AuthMethod `default:"simple"`

	KerberosRealm  string
	KerberosKeytab string
	KerberosConfig string
	KerberosCCache string
	KerberosSPN    string

	SkipTLSVerify bool
	Timeout       time.Duration `default:"30s"`

	MaxConnections int `default:"4"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

func (c *Config) validate() error {
	if len(c.URLs) == 0 && c.Domain == "" {
		return errors.New("either domain or directory URLs must be specified")
	}

	for _, raw := range c.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid directory URL %q: %w", raw, err)
		}
		if u.Scheme != "ldap" && u.Scheme != "ldaps" {
			return fmt.Errorf("unsupported directory URL scheme %q, must be ldap or ldaps", u.Scheme)
		}
	}

	switch c.AuthMethod {
	case AuthMethodSimple, AuthMethodKerberos:
	default:
		return fmt.Errorf("unsupported directory authentication method %q", c.AuthMethod)
	}

	if c.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}
	if c.MaxConnections > MaxConnectionsLimit {
		return fmt.Errorf("MaxConnections too high (max %d)", MaxConnectionsLimit)
	}

	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}
