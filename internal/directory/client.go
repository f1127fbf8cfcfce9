package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/kerberos"
)

// Client holds a small pool of bound directory connections.
type Client struct {
	config  *Config
	servers []*ServerInfo
	idle    chan *ldap.Conn

	mu     sync.Mutex
	closed bool
	baseDN string

	dialed  atomic.Int64
	errored atomic.Int64
	started time.Time
}

// Stats reports pool activity.
type Stats struct {
	Idle    int
	Dialed  int64
	Errors  int64
	Uptime  time.Duration
	Servers int
}

// New validates cfg and resolves the server list. No connection is made
// until the first lookup.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("directory configuration is required")
	}
	merged := *cfg
	applyDefaults(&merged)
	if err := merged.validate(); err != nil {
		return nil, fmt.Errorf("invalid directory configuration: %w", err)
	}

	servers, err := resolveServers(ctx, &merged, nil)
	if err != nil {
		return nil, err
	}

	tflog.SubsystemInfo(ctx, Subsystem, "Directory client created", map[string]any{
		"domain":       merged.Domain,
		"server_count": len(servers),
		"auth_method":  string(merged.AuthMethod),
	})

	return &Client{
		config:  &merged,
		servers: servers,
		idle:    make(chan *ldap.Conn, merged.MaxConnections),
		baseDN:  merged.BaseDN,
		started: time.Now(),
	}, nil
}

func applyDefaults(cfg *Config) {
	d := DefaultConfig()
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = d.AuthMethod
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = d.MaxConnections
	}
}

func resolveServers(ctx context.Context, cfg *Config, resolver Resolver) ([]*ServerInfo, error) {
	if len(cfg.URLs) > 0 {
		servers := make([]*ServerInfo, 0, len(cfg.URLs))
		for _, raw := range cfg.URLs {
			s, err := ParseURL(raw)
			if err != nil {
				return nil, err
			}
			servers = append(servers, s)
		}
		return servers, nil
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	servers, err := Discover(dctx, resolver, cfg.Domain)
	if err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}
	return servers, nil
}

// Close releases every idle connection. Later calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	for {
		select {
		case conn := <-c.idle:
			conn.Close()
		default:
			return nil
		}
	}
}

// Stats returns a snapshot of pool counters.
func (c *Client) Stats() Stats {
	return Stats{
		Idle:    len(c.idle),
		Dialed:  c.dialed.Load(),
		Errors:  c.errored.Load(),
		Uptime:  time.Since(c.started),
		Servers: len(c.servers),
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// get returns an idle connection or dials a new one.
func (c *Client) get(ctx context.Context) (*ldap.Conn, error) {
	if c.isClosed() {
		return nil, errors.New("directory client is closed")
	}

drain:
	for {
		select {
		case conn := <-c.idle:
			if !conn.IsClosing() {
				return conn, nil
			}
			conn.Close()
		default:
			break drain
		}
	}

	var lastErr error
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := c.dial(ctx, server)
		if err == nil {
			c.dialed.Add(1)
			return conn, nil
		}
		c.errored.Add(1)
		lastErr = err
		tflog.SubsystemWarn(ctx, Subsystem, "Directory server unavailable", map[string]any{
			"server": server.URL(),
			"source": server.Source,
			"error":  err.Error(),
		})
		if IsAuthenticationError(err) {
			break
		}
	}
	return nil, lastErr
}

// put returns conn to the pool, or closes it when the pool is full.
func (c *Client) put(conn *ldap.Conn) {
	if conn == nil {
		return
	}
	if c.isClosed() || conn.IsClosing() {
		conn.Close()
		return
	}
	select {
	case c.idle <- conn:
	default:
		conn.Close()
	}
}

func (c *Client) tlsConfig(server *ServerInfo) *tls.Config {
	return &tls.Config{
		ServerName:         server.Host,
		InsecureSkipVerify: c.config.SkipTLSVerify, //nolint:gosec // explicit opt-in
		MinVersion:         tls.VersionTLS12,
	}
}

func (c *Client) dial(ctx context.Context, server *ServerInfo) (*ldap.Conn, error) {
	start := time.Now()
	dialer := &net.Dialer{Timeout: c.config.Timeout}

	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
	if server.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(c.tlsConfig(server)))
	}

	conn, err := ldap.DialURL(server.URL(), opts...)
	if err != nil {
		return nil, wrapError("connect", err)
	}
	conn.SetTimeout(c.config.Timeout)

	if !server.UseTLS && c.config.AuthMethod == AuthMethodSimple && c.config.Password != "" {
		if err := conn.StartTLS(c.tlsConfig(server)); err != nil {
			conn.Close()
			return nil, wrapError("starttls", err)
		}
	}

	if err := c.bind(ctx, conn, server); err != nil {
		conn.Close()
		return nil, err
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Directory connection established", map[string]any{
		"server":      server.URL(),
		"auth_method": string(c.config.AuthMethod),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return conn, nil
}

func (c *Client) bind(ctx context.Context, conn *ldap.Conn, server *ServerInfo) error {
	switch c.config.AuthMethod {
	case AuthMethodKerberos:
		return c.bindKerberos(ctx, conn, server)
	default:
		if c.config.Username == "" {
			// Anonymous; most directories still allow rootDSE reads.
			return nil
		}
		if c.config.Password == "" {
			return newError("bind", CategoryAuthentication, "password is required for simple bind of %s", c.config.Username)
		}
		return wrapError("bind", conn.Bind(c.config.Username, c.config.Password))
	}
}

func (c *Client) bindKerberos(ctx context.Context, conn *ldap.Conn, server *ServerInfo) error {
	kcl, err := kerberos.NewClient(ctx, kerberos.Config{
		Username:   c.config.Username,
		Password:   c.config.Password,
		Realm:      c.config.KerberosRealm,
		Keytab:     c.config.KerberosKeytab,
		ConfigPath: c.config.KerberosConfig,
		CCache:     c.config.KerberosCCache,
		Domain:     c.config.Domain,
		Subsystem:  Subsystem,
	})
	if err != nil {
		return wrapError("kerberos", err)
	}
	defer kcl.Destroy()

	spn, err := kerberos.ServicePrincipal("ldap", server.Host, c.config.KerberosSPN)
	if err != nil {
		return wrapError("kerberos", err)
	}

	if err := conn.GSSAPIBind(&gssapi.Client{Client: kcl}, spn, ""); err != nil {
		return wrapError("gssapi bind", err)
	}
	return nil
}

// BaseDN returns the configured base DN, or reads defaultNamingContext
// from the rootDSE once.
func (c *Client) BaseDN(ctx context.Context) (string, error) {
	c.mu.Lock()
	dn := c.baseDN
	c.mu.Unlock()
	if dn != "" {
		return dn, nil
	}

	conn, err := c.get(ctx)
	if err != nil {
		return "", err
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		"", ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		1, int(c.config.Timeout.Seconds()), false,
		"(objectClass=*)", []string{"defaultNamingContext"}, nil,
	))
	c.put(conn)
	if err != nil {
		return "", wrapError("rootdse", err)
	}
	if len(res.Entries) == 0 {
		return "", newError("rootdse", CategoryNotFound, "rootDSE returned no entries")
	}

	dn = res.Entries[0].GetAttributeValue("defaultNamingContext")
	if dn == "" {
		return "", newError("rootdse", CategoryNotFound, "defaultNamingContext not published; set base_dn")
	}

	c.mu.Lock()
	c.baseDN = dn
	c.mu.Unlock()
	return dn, nil
}
