package ews

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory groups error kinds by how callers usually react to them.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryCancelled      ErrorCategory = "cancelled"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// Error is returned by every operation that fails, whether the failure was
// reported by Exchange or synthesized locally.
type Error struct {
	Operation    string        // EWS operation, e.g. "GetItem"
	Kind         ErrorKind     // Classified kind
	ResponseCode string        // ResponseCode as sent by the server, if any
	Message      string        // MessageText or a local description
	Category     ErrorCategory // Error category
	Retryable    bool          // Whether the error is retryable
	Cause        error         // Underlying error
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrCancelled            = &Error{Kind: KindCancelled}
	ErrNoResponse           = &Error{Kind: KindNoResponse}
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrItemNotFound         = &Error{Kind: KindItemNotFound}
	ErrFolderNotFound       = &Error{Kind: KindFolderNotFound}
)

func (e *Error) Error() string {
	var parts []string

	op := e.Operation
	if op == "" {
		op = "request"
	}
	if e.ResponseCode != "" {
		parts = append(parts, fmt.Sprintf("EWS %s failed (%s)", op, e.ResponseCode))
	} else {
		parts = append(parts, fmt.Sprintf("EWS %s failed", op))
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

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// newError builds an Error for kind, filling in category and retry hints.
func newError(operation string, kind ErrorKind, message string) *Error {
	return &Error{
		Operation:    operation,
		Kind:         kind,
		ResponseCode: kind.ResponseCode(),
		Message:      message,
		Category:     categorizeKind(kind),
		Retryable:    isKindRetryable(kind),
	}
}

// newServerError builds an Error from a ResponseMessage carrying
// ResponseClass="Error". The raw code is kept even when it is unknown.
func newServerError(operation, code, messageText string) *Error {
	e := newError(operation, Classify(code), messageText)
	e.ResponseCode = code
	return e
}

func newCancelledError(operation string, cause error) *Error {
	e := newError(operation, KindCancelled, "Operation Cancelled")
	e.Cause = cause
	return e
}

func newNoResponseError(operation, reason string, cause error) *Error {
	e := newError(operation, KindNoResponse, "No response: "+reason)
	e.Cause = cause
	return e
}

// categorizeKind maps an error kind to its category.
func categorizeKind(kind ErrorKind) ErrorCategory {
	switch kind {
	case KindCancelled:
		return ErrorCategoryCancelled

	case KindNoResponse,
		KindConnectionFailed:
		return ErrorCategoryConnection

	case KindAuthenticationFailed,
		KindAccountDisabled,
		KindPasswordExpired,
		KindPasswordChangeRequired,
		KindInvalidCrossForestCredentials,
		KindMailboxLogonFailed,
		KindLogonAsNetworkServiceFailed:
		return ErrorCategoryAuthentication

	case KindAccessDenied,
		KindCreateItemAccessDenied,
		KindCreateSubfolderAccessDenied,
		KindImpersonateUserDenied,
		KindImpersonationDenied,
		KindSendAsDenied,
		KindSubscriptionAccessDenied,
		KindNoFreeBusyAccess,
		KindTokenSerializationDenied:
		return ErrorCategoryPermission

	case KindItemNotFound,
		KindFolderNotFound,
		KindParentFolderNotFound,
		KindToFolderNotFound,
		KindSavedItemFolderNotFound,
		KindSyncFolderNotFound,
		KindEventNotFound,
		KindSubscriptionNotFound,
		KindManagedFolderNotFound,
		KindMailRecipientNotFound,
		KindNonExistentMailbox,
		KindNameResolutionNoResults,
		KindNameResolutionNoMailbox,
		KindAddressSpaceNotFound,
		KindAvailabilityConfigNotFound,
		KindPublicFolderServerNotFound,
		KindDelegateNoUser,
		KindNotDelegate:
		return ErrorCategoryNotFound

	case KindFolderExists,
		KindDelegateAlreadyExists,
		KindManagedFolderAlreadyExists,
		KindIrresolvableConflict,
		KindStaleObject,
		KindInvalidChangeKey,
		KindChangeKeyRequired,
		KindChangeKeyRequiredForWriteOperations,
		KindDuplicateInputFolderNames,
		KindObjectTypeChanged:
		return ErrorCategoryConflict

	case KindInternalServerError,
		KindInternalServerTransientError,
		KindServerBusy,
		KindMailboxStoreUnavailable,
		KindMailboxMoveInProgress,
		KindADUnavailable,
		KindADOperation,
		KindDataSourceOperation,
		KindInsufficientResources,
		KindNotEnoughMemory,
		KindTimeoutExpired,
		KindBatchProcessingStopped,
		KindProxyRequestProcessingFailed,
		KindPublicFolderRequestProcessingFailed,
		KindQuotaExceeded:
		return ErrorCategoryServer
	}

	code := kind.ResponseCode()
	for _, prefix := range []string{"ErrorInvalid", "ErrorMissing", "ErrorUnsupported", "ErrorSchemaValidation", "ErrorCalendarInvalid"} {
		if strings.HasPrefix(code, prefix) {
			return ErrorCategoryValidation
		}
	}

	return ErrorCategoryUnknown
}

// isKindRetryable reports whether resubmitting the same request may succeed.
func isKindRetryable(kind ErrorKind) bool {
	switch kind {
	case KindNoResponse,
		KindConnectionFailed,
		KindServerBusy,
		KindInternalServerTransientError,
		KindMailboxStoreUnavailable,
		KindMailboxMoveInProgress,
		KindADUnavailable,
		KindInsufficientResources,
		KindTimeoutExpired:
		return true
	default:
		return false
	}
}

// isNonFatalKind reports kinds that are logged but do not abort processing of
// the remaining response messages.
func isNonFatalKind(kind ErrorKind) bool {
	return kind == KindCorruptData || kind == KindInvalidPropertyRequest
}

// GetErrorKind returns the kind of err, or KindUnknown for foreign errors and
// KindNone for nil.
func GetErrorKind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrorCategoryUnknown
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsEmptyResponseError reports a response carrying no ResponseMessages at
// all, which GetDelegate returns for a mailbox without delegates.
func IsEmptyResponseError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnknown && e.Message == noContainerMessage
}

func IsCancelledError(err error) bool {
	return GetErrorKind(err) == KindCancelled
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
