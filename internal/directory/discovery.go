package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

const (
	portLDAP  = 389
	portLDAPS = 636
)

// ServerInfo is a directory server candidate.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // config, srv or fallback
}

// URL renders the server as an ldap:// or ldaps:// URL.
func (s *ServerInfo) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
}

// ParseURL parses an ldap:// or ldaps:// URL, filling in the default port.
func ParseURL(raw string) (*ServerInfo, error) {
	if raw == "" {
		return nil, errors.New("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid directory URL %q: %w", raw, err)
	}

	s := &ServerInfo{Host: u.Hostname(), Weight: 100, Source: "config"}
	switch u.Scheme {
	case "ldaps":
		s.UseTLS = true
		s.Port = portLDAPS
	case "ldap":
		s.Port = portLDAP
	default:
		return nil, errors.New("unsupported scheme, must be ldap:// or ldaps://")
	}

	if s.Host == "" {
		return nil, fmt.Errorf("no hostname found in URL: %s", raw)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port number: %s", p)
		}
		s.Port = port
	}

	return s, nil
}

// Resolver is the subset of *net.Resolver used for SRV discovery.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// Discover finds directory servers for domain using DNS SRV records, in
// the order _ldaps._tcp, _ldap._tcp, _gc._tcp. LDAPS records end the
// search. Without any records it falls back to the domain name itself on
// the standard ports.
func Discover(ctx context.Context, resolver Resolver, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	start := time.Now()
	records := []struct {
		service string
		useTLS  bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
		{"_gc._tcp." + domain, false},
	}

	var servers []*ServerInfo
	for _, record := range records {
		found, err := lookupSRV(ctx, resolver, record.service, record.useTLS)
		if err != nil {
			tflog.SubsystemDebug(ctx, Subsystem, "SRV lookup failed, continuing to next service", map[string]any{
				"service": record.service,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, found...)
		if record.useTLS {
			break
		}
	}

	if len(servers) == 0 {
		tflog.SubsystemDebug(ctx, Subsystem, "No SRV records found, using fallback servers", map[string]any{
			"domain":      domain,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return fallbackServers(domain), nil
	}

	sortServers(servers)

	tflog.SubsystemDebug(ctx, Subsystem, "Server discovery completed", map[string]any{
		"domain":       domain,
		"server_count": len(servers),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return servers, nil
}

func lookupSRV(ctx context.Context, resolver Resolver, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}

func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: portLDAPS, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: portLDAP, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServers orders by ascending priority, then descending weight (RFC 2782).
func sortServers(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}
