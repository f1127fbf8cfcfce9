package ews

import (
	"context"
	"sync"
)

// Registry maps username@uri to live, reference-counted connections.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// New returns the connection for config.Username@config.URI, creating it if
// necessary. Each successful call must be paired with Release. When an
// existing connection is returned, config and auth are ignored.
func (r *Registry) New(ctx context.Context, config *ConnectionConfig, auth AuthProvider) (*Connection, error) {
	if config == nil {
		return newConnection(ctx, config, auth)
	}
	key := registryKey(config.URI, config.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[key]; ok {
		c.refs++
		LogConnectionEvent(ctx, "connection_reused", map[string]any{
			"uri":  c.uri,
			"refs": c.refs,
		})
		return c, nil
	}

	c, err := newConnection(ctx, config, auth)
	if err != nil {
		return nil, err
	}
	c.registry = r
	c.refs = 1
	r.conns[key] = c

	LogConnectionEvent(ctx, "connection_created", map[string]any{
		"uri":         c.uri,
		"auth_method": c.config.AuthMethod.String(),
		"max_flight":  c.config.MaxConcurrentRequests,
	})
	return c, nil
}

// Find returns the live connection for username@uri with an added reference,
// or nil. A non-nil result must be released.
func (r *Registry) Find(uri, username string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[registryKey(uri, username)]
	if !ok {
		return nil
	}
	c.refs++
	return c
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) release(c *Connection) {
	r.mu.Lock()
	if c.refs <= 0 {
		r.mu.Unlock()
		return
	}
	c.refs--
	if c.refs > 0 {
		r.mu.Unlock()
		LogConnectionEvent(c.ctx, "connection_released", map[string]any{"uri": c.uri, "refs": c.refs})
		return
	}
	if r.conns[c.key] == c {
		delete(r.conns, c.key)
	}
	r.mu.Unlock()

	c.shutdown()
}
