package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory groups directory failures.
type ErrorCategory string

const (
	CategoryConnection     ErrorCategory = "connection"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryPermission     ErrorCategory = "permission"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryValidation     ErrorCategory = "validation"
	CategoryServer         ErrorCategory = "server"
	CategoryUnknown        ErrorCategory = "unknown"
)

// Error describes a failed directory operation.
type Error struct {
	Operation string
	Category  ErrorCategory
	Code      uint16 // LDAP result code, 0 when not from the server
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("directory %s failed", e.Operation)}
	if e.Code > 0 {
		parts[0] = fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " - ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// wrapError classifies err. An existing *Error passes through.
func wrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return err
	}

	e := &Error{Operation: operation, Cause: err}

	var le *ldap.Error
	if errors.As(err, &le) {
		e.Code = le.ResultCode
		e.Category = categorizeCode(le.ResultCode)
		e.Retryable = retryableCode(le.ResultCode)
		e.Message = ldap.LDAPResultCodeMap[le.ResultCode]
		if e.Message == "" {
			e.Message = fmt.Sprintf("Unknown LDAP error (code %d)", le.ResultCode)
		}
		return e
	}

	e.Category = categorizeMessage(err)
	e.Retryable = e.Category == CategoryConnection
	e.Message = err.Error()
	return e
}

func newError(operation string, category ErrorCategory, format string, args ...any) *Error {
	return &Error{Operation: operation, Category: category, Message: fmt.Sprintf(format, args...)}
}

func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported:
		return CategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return CategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute:
		return CategoryNotFound

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultFilterError,
		ldap.LDAPResultInvalidAttributeSyntax:
		return CategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return CategoryServer

	case ldap.ErrorNetwork,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError,
		ldap.LDAPResultTimeout:
		return CategoryConnection

	default:
		return CategoryUnknown
	}
}

func retryableCode(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.ErrorNetwork,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultTimeout:
		return true
	default:
		return false
	}
}

func categorizeMessage(err error) ErrorCategory {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "broken pipe"):
		return CategoryConnection
	case strings.Contains(msg, "kerberos"),
		strings.Contains(msg, "credentials"),
		strings.Contains(msg, "password"):
		return CategoryAuthentication
	default:
		return CategoryUnknown
	}
}

// GetErrorCategory returns the category of err, or CategoryUnknown.
func GetErrorCategory(err error) ErrorCategory {
	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}
	var le *ldap.Error
	if errors.As(err, &le) {
		return categorizeCode(le.ResultCode)
	}
	return CategoryUnknown
}

// IsNotFoundError reports whether err means no matching entry exists.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == CategoryNotFound
}

// IsAuthenticationError reports whether the bind was rejected.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == CategoryAuthentication
}
