package ews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Connection is one logical EWS endpoint for one user. It owns the request
// queue and the transport worker. Connections are obtained from a Registry
// and must be released when no longer needed.
type Connection struct {
	ctx      context.Context // Logging context
	config   *ConnectionConfig
	uri      string
	key      string
	registry *Registry
	refs     int // guarded by registry.mu

	auth   AuthProvider
	authMu sync.Mutex // serializes 401 handling

	credMu sync.RWMutex
	creds  credentials
	email  string

	httpClient *http.Client
	negotiate  negotiateCache

	sched  *scheduler
	worker *transport
}

// registryKey returns username@uri; an empty username yields "@uri".
func registryKey(uri, username string) string {
	return username + "@" + uri
}

func newConnection(ctx context.Context, config *ConnectionConfig, auth AuthProvider) (*Connection, error) {
	if config == nil {
		return nil, errors.New("configuration is required")
	}

	cfg := *config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient, err := newHTTPClient(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	c := &Connection{
		ctx:        ctx,
		config:     &cfg,
		uri:        cfg.URI,
		key:        registryKey(cfg.URI, cfg.Username),
		auth:       auth,
		creds:      credentials{username: cfg.Username, password: cfg.Password, gen: 1},
		email:      cfg.Email,
		httpClient: httpClient,
	}

	c.worker = newTransport(ctx, c, cfg.MaxConcurrentRequests)
	c.sched = newScheduler(ctx, cfg.MaxConcurrentRequests, c.worker.work)
	go c.worker.run()

	return c, nil
}

func validateConfig(config *ConnectionConfig) error {
	if config.URI == "" {
		return errors.New("URI is required")
	}

	u, err := url.Parse(config.URI)
	if err != nil {
		return fmt.Errorf("invalid URI: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URI scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URI has no host")
	}

	if config.MaxConcurrentRequests <= 0 {
		return errors.New("MaxConcurrentRequests must be positive")
	}
	if config.MaxConcurrentRequests > MaxConcurrentRequests {
		return fmt.Errorf("MaxConcurrentRequests too high (max %d)", MaxConcurrentRequests)
	}

	if !config.AuthMethod.Valid() {
		return fmt.Errorf("unsupported authentication method %q", config.AuthMethod)
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.MaxAuthRetries < 0 {
		return errors.New("MaxAuthRetries cannot be negative")
	}

	return nil
}

// URI returns the EWS endpoint.
func (c *Connection) URI() string {
	return c.uri
}

// OABURL returns the configured offline address book URL, or "".
func (c *Connection) OABURL() string {
	return c.config.OABURL
}

// Username returns the current username.
func (c *Connection) Username() string {
	return c.currentCredentials().username
}

// Email returns the mailbox address used by mailbox-scoped operations.
func (c *Connection) Email() string {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.email
}

// SetEmail sets the mailbox address, e.g. after a directory lookup.
func (c *Connection) SetEmail(email string) {
	c.credMu.Lock()
	c.email = email
	c.credMu.Unlock()
}

// ServerVersion returns the RequestServerVersion written into requests.
func (c *Connection) ServerVersion() string {
	return c.config.ServerVersion
}

// Stats returns a snapshot of request counters.
func (c *Connection) Stats() ConnectionStats {
	return c.sched.stats()
}

// Release drops one reference. The last release cancels queued requests,
// aborts in-flight ones, stops the worker and removes the connection from
// its registry.
func (c *Connection) Release() {
	if c.registry == nil {
		c.shutdown()
		return
	}
	c.registry.release(c)
}

func (c *Connection) shutdown() {
	start := time.Now()

	c.sched.close()
	c.worker.stop()
	c.httpClient.CloseIdleConnections()

	stats := c.sched.stats()
	LogConnectionEvent(c.ctx, "worker_stopped", map[string]any{
		"uri":          c.uri,
		"submitted":    stats.Submitted,
		"completed":    stats.Completed,
		"failed":       stats.Failed,
		"cancelled":    stats.Cancelled,
		"max_inflight": stats.MaxInFlight,
		"uptime":       stats.Uptime.String(),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
}

// submitNode queues n for sending.
func (c *Connection) submitNode(n *requestNode) {
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Submitting request", n.logFields())
	c.sched.enqueue(n)
}
