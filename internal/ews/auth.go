package ews

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jcmturner/gokrb5/v8/spnego"

	"github.com/vaterlangen/evolution-ews/internal/kerberos"
)

// doer is satisfied by *http.Client and *spnego.Client.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// newHTTPClient builds the worker's HTTP client. NTLM is layered on the
// pooled transport because the handshake needs a persistent connection.
func newHTTPClient(cfg *ConnectionConfig) (*http.Client, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	tr := cleanhttp.DefaultPooledTransport()
	tr.TLSClientConfig = tlsConfig
	tr.MaxConnsPerHost = cfg.MaxConcurrentRequests
	tr.MaxIdleConnsPerHost = cfg.MaxConcurrentRequests

	var rt http.RoundTripper = tr
	if cfg.AuthMethod == AuthMethodNTLM {
		rt = ntlmssp.Negotiator{RoundTripper: tr}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}

func buildTLSConfig(cfg *ConnectionConfig) (*tls.Config, error) {
	var tlsConfig *tls.Config
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.SkipTLSVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if cfg.TLSCACertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := tlsConfig.RootCAs
		if pool == nil {
			if pool, err = x509.SystemCertPool(); err != nil || pool == nil {
				pool = x509.NewCertPool()
			}
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// credentials is a snapshot of the connection's username and password.
// gen changes whenever either is replaced or cleared.
type credentials struct {
	username string
	password string
	gen      uint64
}

// negotiateCache keeps one SPNEGO client per credential generation so the
// Kerberos login happens once rather than per request.
type negotiateCache struct {
	mu     sync.Mutex
	gen    uint64
	client *spnego.Client
}

func (c *Connection) negotiateClient(ctx context.Context, creds credentials) (doer, error) {
	nc := &c.negotiate
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.client != nil && nc.gen == creds.gen {
		return nc.client, nil
	}

	u, err := url.Parse(c.uri)
	if err != nil {
		return nil, fmt.Errorf("invalid EWS URI: %w", err)
	}
	spn, err := kerberos.ServicePrincipal("HTTP", u.Hostname(), c.config.KerberosSPN)
	if err != nil {
		return nil, err
	}

	krb, err := kerberos.NewClient(ctx, kerberos.Config{
		Username:   creds.username,
		Password:   creds.password,
		Realm:      c.config.KerberosRealm,
		Keytab:     c.config.KerberosKeytab,
		ConfigPath: c.config.KerberosConfig,
		CCache:     c.config.KerberosCCache,
		Subsystem:  SubsystemTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kerberos client: %w", err)
	}

	nc.client = spnego.NewClient(krb, c.httpClient, spn)
	nc.gen = creds.gen

	LogAuthEvent(ctx, "negotiate_client_created", map[string]any{"spn": spn})
	return nc.client, nil
}

// clientFor returns the doer used to send a request carrying creds.
func (c *Connection) clientFor(ctx context.Context, creds credentials) (doer, error) {
	if c.config.AuthMethod == AuthMethodNegotiate {
		return c.negotiateClient(ctx, creds)
	}
	return c.httpClient, nil
}

// authorize attaches credentials for the Basic and NTLM schemes. The NTLM
// negotiator reads them back from the Basic header it replaces.
func (c *Connection) authorize(req *http.Request, creds credentials) {
	if c.config.AuthMethod == AuthMethodNegotiate {
		return
	}
	if creds.username == "" && creds.password == "" {
		return
	}
	req.SetBasicAuth(creds.username, creds.password)
}

// reauthenticate decides how to answer a 401 challenge for a request sent
// with sent. It reports whether the request should be retried.
//
// When the rejected request carried a password, that password is wrong and is
// cleared. A cached password is used if one is present; otherwise the auth
// provider is asked.
func (c *Connection) reauthenticate(ctx context.Context, challenge string, sent credentials) bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.credMu.Lock()
	if c.creds.gen != sent.gen {
		// Another request refreshed the credentials while this one was
		// waiting for authMu.
		c.credMu.Unlock()
		return true
	}

	retrying := sent.password != ""
	if retrying {
		c.creds.password = ""
		c.creds.gen++
		LogAuthEvent(ctx, "credentials_rejected", map[string]any{"username": c.creds.username})
	}
	if c.creds.password != "" {
		c.credMu.Unlock()
		return true
	}
	c.credMu.Unlock()

	if c.auth == nil {
		LogAuthEvent(ctx, "provider_declined", map[string]any{"reason": "no auth provider"})
		return false
	}

	LogConnectionEvent(ctx, "authentication_attempt", map[string]any{
		"uri":      c.uri,
		"retrying": retrying,
	})

	username, password, ok := c.auth.Credentials(ctx, c, challenge, retrying)
	if !ok {
		LogAuthEvent(ctx, "provider_declined", map[string]any{"retrying": retrying})
		return false
	}
	c.Authenticate(challenge, username, password)
	return true
}

// Authenticate stores credentials for subsequent requests. An empty username
// keeps the current one. challenge is the WWW-Authenticate value that
// prompted the call and is only logged.
func (c *Connection) Authenticate(challenge, username, password string) {
	c.credMu.Lock()
	if username != "" {
		c.creds.username = username
	}
	c.creds.password = password
	c.creds.gen++
	c.credMu.Unlock()

	LogAuthEvent(c.ctx, "credentials_updated", map[string]any{"challenge": challenge})
}

func (c *Connection) currentCredentials() credentials {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.creds
}
