package directory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string][]*net.SRV

func (f fakeResolver) LookupSRV(_ context.Context, _, _, name string) (string, []*net.SRV, error) {
	records, ok := f[name]
	if !ok {
		return "", nil, fmt.Errorf("lookup %s: no such host", name)
	}
	return name, records, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    *ServerInfo
		wantErr string
	}{
		{in: "ldaps://dc1.example.com", want: &ServerInfo{Host: "dc1.example.com", Port: 636, UseTLS: true, Weight: 100, Source: "config"}},
		{in: "ldap://dc1.example.com", want: &ServerInfo{Host: "dc1.example.com", Port: 389, Weight: 100, Source: "config"}},
		{in: "ldap://dc1.example.com:3268/", want: &ServerInfo{Host: "dc1.example.com", Port: 3268, Weight: 100, Source: "config"}},
		{in: "", wantErr: "URL cannot be empty"},
		{in: "https://dc1.example.com", wantErr: "unsupported scheme"},
		{in: "ldap://:389", wantErr: "no hostname"},
		{in: "ldap://dc1.example.com:99999", wantErr: "invalid port number"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseURL(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerInfoURL(t *testing.T) {
	assert.Equal(t, "ldaps://dc1.example.com:636", (&ServerInfo{Host: "dc1.example.com", Port: 636, UseTLS: true}).URL())
	assert.Equal(t, "ldap://[::1]:389", (&ServerInfo{Host: "::1", Port: 389}).URL())
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()

	t.Run("ldaps stops the search", func(t *testing.T) {
		servers, err := Discover(ctx, fakeResolver{
			"_ldaps._tcp.example.com": {
				{Target: "dc2.example.com.", Port: 636, Priority: 10, Weight: 50},
				{Target: "dc1.example.com.", Port: 636, Priority: 0, Weight: 100},
			},
			"_ldap._tcp.example.com": {{Target: "dc3.example.com.", Port: 389}},
		}, "example.com")
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "dc1.example.com", servers[0].Host)
		assert.True(t, servers[0].UseTLS)
		assert.Equal(t, "srv", servers[0].Source)
	})

	t.Run("ldap and gc", func(t *testing.T) {
		servers, err := Discover(ctx, fakeResolver{
			"_ldap._tcp.example.com": {{Target: "dc1.example.com.", Port: 389, Weight: 10}},
			"_gc._tcp.example.com":   {{Target: "gc.example.com.", Port: 3268, Weight: 20}},
		}, "example.com")
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "gc.example.com", servers[0].Host, "higher weight first within a priority")
		assert.False(t, servers[1].UseTLS)
	})

	t.Run("fallback", func(t *testing.T) {
		servers, err := Discover(ctx, fakeResolver{}, "example.com")
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "ldaps://example.com:636", servers[0].URL())
		assert.Equal(t, "ldap://example.com:389", servers[1].URL())
		assert.Equal(t, "fallback", servers[1].Source)
	})

	t.Run("empty domain", func(t *testing.T) {
		_, err := Discover(ctx, fakeResolver{}, "")
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"domain only", func(c *Config) { c.Domain = "example.com" }, ""},
		{"urls only", func(c *Config) { c.URLs = []string{"ldaps://dc1.example.com"} }, ""},
		{"nothing", func(*Config) {}, "either domain or directory URLs"},
		{"bad scheme", func(c *Config) { c.URLs = []string{"http://dc1"} }, "unsupported directory URL scheme"},
		{"bad auth", func(c *Config) { c.Domain = "example.com"; c.AuthMethod = "ntlm" }, "unsupported directory authentication method"},
		{"pool too big", func(c *Config) { c.Domain = "example.com"; c.MaxConnections = MaxConnectionsLimit + 1 }, "too high"},
		{"no timeout", func(c *Config) { c.Domain = "example.com"; c.Timeout = -time.Second }, "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, AuthMethodSimple, cfg.AuthMethod)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.MaxConnections)
}

func TestNewClient(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	c, err := New(context.Background(), &Config{URLs: []string{"ldaps://dc1.example.com", "ldap://dc2.example.com"}, BaseDN: "DC=example,DC=com"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats().Servers)

	dn, err := c.BaseDN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DC=example,DC=com", dn, "configured base DN needs no connection")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.LookupUser(context.Background(), "jdoe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestLookupUserEmptyIdentifier(t *testing.T) {
	c, err := New(context.Background(), &Config{URLs: []string{"ldaps://dc1.example.com"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.LookupUser(context.Background(), "  ")
	assert.Equal(t, CategoryValidation, GetErrorCategory(err))
}

func TestUserFilter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jdoe", "(&(objectCategory=person)(objectClass=user)(sAMAccountName=jdoe))"},
		{`EXAMPLE\jdoe`, "(&(objectCategory=person)(objectClass=user)(sAMAccountName=jdoe))"},
		{
			"jdoe@example.com",
			"(&(objectCategory=person)(objectClass=user)(|(userPrincipalName=jdoe@example.com)(mail=jdoe@example.com)(proxyAddresses=smtp:jdoe@example.com)))",
		},
		{"j*(doe)", `(&(objectCategory=person)(objectClass=user)(sAMAccountName=j\2a\28doe\29))`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, userFilter(tt.in))
		})
	}
}

func binarySID(authority uint64, subs ...uint32) []byte {
	b := []byte{1, byte(len(subs))}
	auth := make([]byte, 8)
	binary.BigEndian.PutUint64(auth, authority)
	b = append(b, auth[2:]...)
	for _, s := range subs {
		b = binary.LittleEndian.AppendUint32(b, s)
	}
	return b
}

func TestDecodeSID(t *testing.T) {
	sid, err := DecodeSID(binarySID(5, 21, 1004336348, 1177238915, 682003330, 512))
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1004336348-1177238915-682003330-512", sid)

	_, err = DecodeSID([]byte{1, 2})
	assert.Error(t, err)

	truncated := binarySID(5, 21, 1)
	_, err = DecodeSID(truncated[:len(truncated)-2])
	assert.Error(t, err)
}

func TestEntryToUser(t *testing.T) {
	entry := ldap.NewEntry("CN=John Doe,OU=Users,DC=example,DC=com", map[string][]string{
		"sAMAccountName":    {"jdoe"},
		"userPrincipalName": {"jdoe@corp.example.com"},
		"mail":              {"john.doe@example.com"},
		"displayName":       {"John Doe"},
		"objectSid":         {string(binarySID(5, 21, 1, 2, 3, 1105))},
		"proxyAddresses":    {"smtp:jd@example.com", "SMTP:john@example.com"},
	})

	u := entryToUser(entry)
	assert.Equal(t, "CN=John Doe,OU=Users,DC=example,DC=com", u.DN)
	assert.Equal(t, "jdoe", u.SAMAccountName)
	assert.Equal(t, "John Doe", u.DisplayName)
	assert.Equal(t, "S-1-5-21-1-2-3-1105", u.SID)
	assert.Equal(t, "john@example.com", u.PrimarySMTPAddress())

	plain := entryToUser(ldap.NewEntry("", map[string][]string{
		"distinguishedName": {"CN=x,DC=example,DC=com"},
		"mail":              {"x@example.com"},
		"objectSid":         {"S-1-5-21-9-9-9-500"},
	}))
	assert.Equal(t, "CN=x,DC=example,DC=com", plain.DN)
	assert.Equal(t, "x@example.com", plain.PrimarySMTPAddress())
	assert.Equal(t, "S-1-5-21-9-9-9-500", plain.SID)
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError("bind", nil))

	tests := []struct {
		name      string
		err       error
		category  ErrorCategory
		retryable bool
	}{
		{"invalid credentials", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("80090308")), CategoryAuthentication, false},
		{"no such object", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("0000208D")), CategoryNotFound, false},
		{"busy", ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), CategoryServer, true},
		{"network", ldap.NewError(ldap.ErrorNetwork, errors.New("read: connection reset")), CategoryConnection, true},
		{"generic connection", errors.New("dial tcp: connection refused"), CategoryConnection, true},
		{"kerberos", errors.New("kerberos login failed"), CategoryAuthentication, false},
		{"other", errors.New("odd"), CategoryUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("lookup", tt.err)
			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.category, de.Category)
			assert.Equal(t, tt.retryable, de.Retryable)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.category, GetErrorCategory(err))
		})
	}

	wrapped := wrapError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad")))
	assert.Same(t, wrapped, wrapError("lookup", wrapped))
	assert.True(t, IsAuthenticationError(wrapped))
	assert.Contains(t, wrapped.Error(), "directory bind failed (code 49)")

	assert.True(t, IsNotFoundError(newError("lookup", CategoryNotFound, "no user")))
}
