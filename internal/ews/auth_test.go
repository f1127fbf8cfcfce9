package ews

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// basicAuthServer accepts only user:password and answers GetFolder.
func basicAuthServer(t *testing.T, user, password string) (*fakeServer, *atomic.Int32) {
	t.Helper()
	var unauthorized atomic.Int32
	body := responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot))
	fs := newFakeServer(t, func(w http.ResponseWriter, req recordedRequest) {
		r := &http.Request{Header: req.Header}
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != password {
			unauthorized.Add(1)
			w.Header().Set("WWW-Authenticate", `Basic realm="ews"`)
			w.WriteHeader(http.StatusUnauthorized)
			// A well-formed body must not be parsed after a 401.
			_, _ = w.Write([]byte(body))
			return
		}
		replyXML(w, body)
	})
	return fs, &unauthorized
}

func getRoot(conn *Connection) ([]*Folder, error) {
	return conn.GetFolder(context.Background(), PriorityDefault, ShapeDefault, nil, []FolderID{DistinguishedFolder(FolderMsgFolderRoot)})
}

func TestAuthenticationFailedWithoutProvider(t *testing.T) {
	fs, unauthorized := basicAuthServer(t, "user", "right")
	conn := newTestConnection(t, fs, func(c *ConnectionConfig) { c.Password = "wrong" })

	folders, err := getRoot(conn)

	assert.Empty(t, folders)
	assert.True(t, IsAuthenticationError(err), "got %v", err)
	assert.Equal(t, int32(1), unauthorized.Load())
	assert.Empty(t, conn.currentCredentials().password, "rejected password is cleared")
}

func TestAuthProviderSuppliesCredentials(t *testing.T) {
	fs, unauthorized := basicAuthServer(t, "user", "right")

	var calls atomic.Int32
	var sawRetrying atomic.Bool
	provider := AuthProviderFunc(func(_ context.Context, _ *Connection, challenge string, retrying bool) (string, string, bool) {
		calls.Add(1)
		sawRetrying.Store(retrying)
		assert.Equal(t, `Basic realm="ews"`, challenge)
		return "", "right", true
	})

	conn, err := NewRegistry().New(context.Background(), &ConnectionConfig{
		URI:        fs.URL,
		Username:   "user",
		Password:   "wrong",
		AuthMethod: AuthMethodBasic,
	}, provider)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	folders, err := getRoot(conn)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "root-id", folders[0].ID.ID)

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, sawRetrying.Load(), "a rejected password means the provider is retrying")
	assert.Equal(t, int32(1), unauthorized.Load())

	// Later requests reuse the accepted password.
	_, err = getRoot(conn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "user", conn.Username())
}

func TestAuthProviderWithoutInitialPassword(t *testing.T) {
	fs, _ := basicAuthServer(t, "other", "pw")

	var retrying atomic.Bool
	provider := AuthProviderFunc(func(_ context.Context, _ *Connection, _ string, r bool) (string, string, bool) {
		retrying.Store(r)
		return "other", "pw", true
	})

	conn, err := NewRegistry().New(context.Background(), &ConnectionConfig{URI: fs.URL, AuthMethod: AuthMethodBasic}, provider)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	_, err = getRoot(conn)
	require.NoError(t, err)
	assert.False(t, retrying.Load())
	assert.Equal(t, "other", conn.Username())
}

func TestAuthProviderDeclines(t *testing.T) {
	fs, _ := basicAuthServer(t, "user", "right")

	provider := AuthProviderFunc(func(context.Context, *Connection, string, bool) (string, string, bool) {
		return "", "", false
	})
	conn, err := NewRegistry().New(context.Background(), &ConnectionConfig{
		URI: fs.URL, Username: "user", Password: "wrong", AuthMethod: AuthMethodBasic,
	}, provider)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	_, err = getRoot(conn)
	assert.True(t, IsAuthenticationError(err), "got %v", err)
}

func TestAuthRetriesBounded(t *testing.T) {
	fs, unauthorized := basicAuthServer(t, "user", "right")

	var calls atomic.Int32
	provider := AuthProviderFunc(func(context.Context, *Connection, string, bool) (string, string, bool) {
		calls.Add(1)
		return "", "still-wrong", true
	})
	conn, err := NewRegistry().New(context.Background(), &ConnectionConfig{
		URI: fs.URL, Username: "user", Password: "wrong", AuthMethod: AuthMethodBasic, MaxAuthRetries: 2,
	}, provider)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	_, err = getRoot(conn)
	assert.True(t, IsAuthenticationError(err))
	assert.Equal(t, int32(3), unauthorized.Load(), "initial attempt plus two retries")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAuthenticateReplacesCredentials(t *testing.T) {
	fs, _ := basicAuthServer(t, "user", "right")
	conn := newTestConnection(t, fs, func(c *ConnectionConfig) { c.Password = "wrong" })

	before := conn.currentCredentials()
	conn.Authenticate("", "", "right")
	after := conn.currentCredentials()

	assert.Equal(t, "user", after.username)
	assert.Equal(t, "right", after.password)
	assert.NotEqual(t, before.gen, after.gen)

	_, err := getRoot(conn)
	require.NoError(t, err)
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := buildTLSConfig(&ConnectionConfig{})
		require.NoError(t, err)
		assert.False(t, cfg.InsecureSkipVerify)
		assert.Nil(t, cfg.RootCAs)
	})

	t.Run("skip verify", func(t *testing.T) {
		cfg, err := buildTLSConfig(&ConnectionConfig{SkipTLSVerify: true})
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
	})

	t.Run("missing CA file", func(t *testing.T) {
		_, err := buildTLSConfig(&ConnectionConfig{TLSCACertFile: filepath.Join(t.TempDir(), "missing.pem")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read CA certificate file")
	})

	t.Run("CA file without certificates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
		_, err := buildTLSConfig(&ConnectionConfig{TLSCACertFile: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no certificates found")
	})
}
