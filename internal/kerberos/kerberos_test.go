package kerberos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientMissingKrb5Conf(t *testing.T) {
	_, err := NewClient(t.Context(), Config{
		Username:   "testuser",
		Password:   "testpass",
		Realm:      "EXAMPLE.COM",
		ConfigPath: "/nonexistent/krb5.conf",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos configuration file not found at /nonexistent/krb5.conf")
	assert.Contains(t, err.Error(), "default_realm = EXAMPLE.COM")
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantUser  string
		wantRealm string
		wantErr   string
	}{
		{
			name:      "realm from UPN",
			config:    Config{Username: "alice@corp.example.com"},
			wantUser:  "alice",
			wantRealm: "CORP.EXAMPLE.COM",
		},
		{
			name:      "down-level logon name uses domain",
			config:    Config{Username: `CORP\alice`, Domain: "corp.example.com"},
			wantUser:  "alice",
			wantRealm: "CORP.EXAMPLE.COM",
		},
		{
			name:      "explicit realm kept",
			config:    Config{Username: "alice", Realm: "EXAMPLE.COM"},
			wantUser:  "alice",
			wantRealm: "EXAMPLE.COM",
		},
		{
			name:    "missing realm",
			config:  Config{Username: "alice"},
			wantErr: "kerberos realm is required",
		},
		{
			name:    "missing principal",
			config:  Config{Realm: "EXAMPLE.COM"},
			wantErr: "username (principal) is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := prepare(&cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, cfg.Username)
			assert.Equal(t, tt.wantRealm, cfg.Realm)
		})
	}
}

func TestServicePrincipal(t *testing.T) {
	tests := []struct {
		name     string
		service  string
		host     string
		override string
		want     string
		wantErr  bool
	}{
		{name: "http", service: "HTTP", host: "mail.example.com", want: "HTTP/mail.example.com"},
		{name: "port stripped", service: "ldap", host: "dc1.example.com:636", want: "ldap/dc1.example.com"},
		{name: "override", service: "HTTP", host: "mail.example.com", override: "HTTP/cas.example.com", want: "HTTP/cas.example.com"},
		{name: "no host", service: "HTTP", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServicePrincipal(tt.service, tt.host, tt.override)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/custom_cc")
	t.Setenv("KRB5_KTNAME", "/etc/custom.keytab")

	assert.Equal(t, "/tmp/custom_cc", DefaultCCachePath())
	assert.Equal(t, "/etc/custom.keytab", DefaultKeytabPath())
}

func TestRuntimeKrb5Conf(t *testing.T) {
	text := RuntimeKrb5Conf("example.com", "")

	assert.Contains(t, text, "default_realm = EXAMPLE.COM")
	assert.Contains(t, text, ".example.com = EXAMPLE.COM")

	c, err := config.NewFromString(text)
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE.COM", c.LibDefaults.DefaultRealm)
	assert.True(t, c.LibDefaults.DNSLookupKDC)
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krb5.conf")
	require.NoError(t, os.WriteFile(path, []byte("[libdefaults]\n"), 0o600))

	assert.True(t, fileExists(path))
	assert.False(t, fileExists(path+".missing"))
	assert.False(t, fileExists(""))
}
