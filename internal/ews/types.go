package ews

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/creasty/defaults"
)

// MaxConcurrentRequests is the upper bound on requests a single connection
// keeps in flight. Exchange throttles clients that open more parallel
// requests, so ConnectionConfig.MaxConcurrentRequests may lower this bound
// but never raise it.
const MaxConcurrentRequests = 10

// ConnectionConfig holds configuration for one EWS connection.
type ConnectionConfig struct {
	// Connection settings
	URI           string        // EWS endpoint, e.g. https://mail.example.com/EWS/Exchange.asmx
	Email         string        // Primary SMTP address of the mailbox
	OABURL        string        // Offline address book base URL, normally from Autodiscover
	Timeout       time.Duration `default:"120s"`             // Per-request HTTP timeout
	ServerVersion string        `default:"Exchange2007_SP1"` // RequestServerVersion written into every envelope
	UserAgent     string        `default:"evolution-ews/0.1"`

	// Scheduling
	MaxConcurrentRequests int `default:"10"` // 1..MaxConcurrentRequests

	// Authentication settings
	Username       string     // Username (DOMAIN\user, UPN or plain)
	Password       string     // Initial password; may be empty when an AuthProvider is supplied
	AuthMethod     AuthMethod `default:"ntlm"`
	MaxAuthRetries int        `default:"3"` // 401 challenges answered before giving up
	KerberosRealm  string     // Kerberos realm for Negotiate authentication
	KerberosKeytab string     // Path to Kerberos keytab file
	KerberosConfig string     // Path to Kerberos config file (krb5.conf)
	KerberosCCache string     // Path to Kerberos credential cache
	KerberosSPN    string     // Service principal, defaults to HTTP/<host>

	// TLS settings
	TLSConfig     *tls.Config // Custom TLS configuration
	SkipTLSVerify bool        // Skip certificate verification (not recommended)
	TLSCACertFile string      // Path to CA certificate file
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *ConnectionConfig {
	config := &ConnectionConfig{}
	// Tags are static; Set cannot fail on this type.
	_ = defaults.Set(config)
	return config
}

// AuthMethod selects the HTTP authentication scheme.
type AuthMethod string

const (
	AuthMethodNTLM      AuthMethod = "ntlm"
	AuthMethodBasic     AuthMethod = "basic"
	AuthMethodNegotiate AuthMethod = "negotiate" // SPNEGO/Kerberos
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	return string(a)
}

// Valid reports whether a is a supported method.
func (a AuthMethod) Valid() bool {
	switch a {
	case AuthMethodNTLM, AuthMethodBasic, AuthMethodNegotiate:
		return true
	default:
		return false
	}
}

// Priority orders queued requests. Higher values are sent first; requests of
// equal priority are sent in submission order.
type Priority int

const (
	PriorityLow     Priority = -100
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 100
)

// AuthProvider supplies credentials when the server rejects the cached ones.
// It is called from the connection's transport goroutine and may block, for
// example to prompt a user. Returning ok=false gives up on the request.
type AuthProvider interface {
	Credentials(ctx context.Context, conn *Connection, challenge string, retrying bool) (username, password string, ok bool)
}

// AuthProviderFunc adapts a function to AuthProvider.
type AuthProviderFunc func(ctx context.Context, conn *Connection, challenge string, retrying bool) (string, string, bool)

func (f AuthProviderFunc) Credentials(ctx context.Context, conn *Connection, challenge string, retrying bool) (string, string, bool) {
	return f(ctx, conn, challenge, retrying)
}

// ConnectionStats provides statistics about a connection's request traffic.
type ConnectionStats struct {
	Queued      int           // Requests waiting for a slot
	InFlight    int           // Requests currently on the wire
	MaxInFlight int64         // Highest in-flight count observed
	Submitted   int64         // Total requests submitted
	Completed   int64         // Requests that finished successfully
	Failed      int64         // Requests that finished with an error other than cancellation
	Cancelled   int64         // Requests cancelled while queued or in flight
	Uptime      time.Duration // Time since the connection was created
}
