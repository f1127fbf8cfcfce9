package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

var userAttributes = []string{
	"distinguishedName",
	"sAMAccountName",
	"userPrincipalName",
	"mail",
	"displayName",
	"objectSid",
	"proxyAddresses",
}

// User is the directory view of a mailbox owner.
type User struct {
	DN                string
	SAMAccountName    string
	UserPrincipalName string
	Mail              string
	DisplayName       string
	SID               string
	ProxyAddresses    []string
}

// PrimarySMTPAddress returns the SMTP: proxy address, falling back to mail.
func (u *User) PrimarySMTPAddress() string {
	for _, addr := range u.ProxyAddresses {
		if strings.HasPrefix(addr, "SMTP:") {
			return strings.TrimPrefix(addr, "SMTP:")
		}
	}
	return u.Mail
}

// LookupUser finds a single user by sAMAccountName, DOMAIN\name, UPN or
// mail address.
func (c *Client) LookupUser(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, newError("lookup", CategoryValidation, "user identifier cannot be empty")
	}

	start := time.Now()
	baseDN, err := c.BaseDN(ctx)
	if err != nil {
		return nil, err
	}

	filter := userFilter(identifier)
	fields := map[string]any{
		"identifier": identifier,
		"base_dn":    baseDN,
		"filter":     filter,
	}
	tflog.SubsystemDebug(ctx, Subsystem, "Looking up user", fields)

	conn, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	res, err := conn.Search(ldap.NewSearchRequest(
		baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(c.config.Timeout.Seconds()), false,
		filter, userAttributes, nil,
	))
	c.put(conn)

	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, Subsystem, "User lookup failed", fields)
		return nil, wrapError("lookup", err)
	}

	var entries []*ldap.Entry
	if res != nil {
		entries = res.Entries
	}
	switch len(entries) {
	case 0:
		return nil, newError("lookup", CategoryNotFound, "no user matches %q", identifier)
	case 1:
	default:
		return nil, newError("lookup", CategoryValidation, "%q matches more than one user", identifier)
	}

	user := entryToUser(entries[0])
	fields["dn"] = user.DN
	tflog.SubsystemDebug(ctx, Subsystem, "User found", fields)
	return user, nil
}

// userFilter builds the search filter for identifier.
func userFilter(identifier string) string {
	var match string
	switch {
	case strings.Contains(identifier, `\`):
		name := identifier[strings.LastIndex(identifier, `\`)+1:]
		match = fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(name))
	case strings.Contains(identifier, "@"):
		v := ldap.EscapeFilter(identifier)
		match = fmt.Sprintf("(|(userPrincipalName=%s)(mail=%s)(proxyAddresses=smtp:%s))", v, v, v)
	default:
		match = fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(identifier))
	}
	return "(&(objectCategory=person)(objectClass=user)" + match + ")"
}

func entryToUser(entry *ldap.Entry) *User {
	dn := entry.DN
	if dn == "" {
		dn = entry.GetAttributeValue("distinguishedName")
	}
	return &User{
		DN:                dn,
		SAMAccountName:    entry.GetAttributeValue("sAMAccountName"),
		UserPrincipalName: entry.GetAttributeValue("userPrincipalName"),
		Mail:              entry.GetAttributeValue("mail"),
		DisplayName:       entry.GetAttributeValue("displayName"),
		SID:               entrySID(entry),
		ProxyAddresses:    entry.GetAttributeValues("proxyAddresses"),
	}
}
