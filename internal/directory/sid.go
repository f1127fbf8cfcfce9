package directory

import (
	"errors"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

// DecodeSID renders a binary objectSid as S-1-5-21-...
func DecodeSID(b []byte) (string, error) {
	// revision, sub-authority count, 6-byte authority, then 4 bytes per sub-authority
	if len(b) < 8 {
		return "", errors.New("binary SID too short")
	}
	if want := 8 + 4*int(b[1]); len(b) < want {
		return "", errors.New("binary SID truncated")
	}
	return objectsid.Decode(b).String(), nil
}

// entrySID reads objectSid from entry. A value already in string form is
// returned as is.
func entrySID(entry *ldap.Entry) string {
	if entry == nil {
		return ""
	}
	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return ""
	}
	if s := string(raw); strings.HasPrefix(s, "S-1-") {
		return s
	}
	sid, err := DecodeSID(raw)
	if err != nil {
		return ""
	}
	return sid
}
