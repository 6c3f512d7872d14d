package ldapkit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Kind classifies directory and entry failures.
type Kind string

const (
	KindAuthenticationFailed Kind = "authentication_failed"
	KindServerUnavailable    Kind = "server_unavailable"
	KindProtocolError        Kind = "protocol_error"
	KindFilterSyntax         Kind = "filter_syntax"
	KindInvalidDN            Kind = "invalid_dn"
	KindDecodingError        Kind = "decoding_error"
	KindUnhandledReferral    Kind = "unhandled_referral"
	KindInvalidValueType     Kind = "invalid_value_type"
	KindAttributeNotFound    Kind = "attribute_not_found"
	KindValueNotFound        Kind = "value_not_found"
	KindUnknown              Kind = "unknown"
)

// Error provides kinded error information for directory operations.
type Error struct {
	Operation string // The operation that failed
	Kind      Kind   // Failure classification
	LDAPCode  uint16 // LDAP result code, if any
	Message   string // Human-readable message
	DN        string // DN involved in the operation, if applicable
	Retryable bool   // Whether the failure is worth retrying
	Cause     error  // Underlying error
}

func (e *Error) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("ldap %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("ldap %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("dn: %s", e.DN))
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports kind equality, so callers can match with errors.Is against a
// sentinel like &Error{Kind: KindInvalidDN}.
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

// newError builds a kinded Error for a failed operation, extracting the
// result code from go-ldap errors where available.
func newError(operation string, err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.Operation == "" {
			existing.Operation = operation
		}
		return existing
	}

	e := &Error{
		Operation: operation,
		Cause:     err,
		Message:   err.Error(),
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		e.LDAPCode = ldapErr.ResultCode
		e.Kind = kindForCode(ldapErr.ResultCode)
		e.Retryable = isCodeRetryable(ldapErr.ResultCode)
		if ldapErr.Err != nil {
			e.Message = ldapErr.Err.Error()
		}
	} else {
		e.Kind = kindForGenericError(err)
		e.Retryable = isGenericErrorRetryable(err)
	}

	return e
}

// errKind builds an Error with an explicit kind, for failures that do not
// come out of the wrapped library (invalid value types, missing attributes).
func errKind(operation string, kind Kind, format string, args ...any) *Error {
	return &Error{
		Operation: operation,
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
	}
}

// kindForCode maps an LDAP result code onto the failure taxonomy.
func kindForCode(code uint16) Kind {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported:
		return KindAuthenticationFailed

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultTimeout,
		ldap.LDAPResultTimeLimitExceeded:
		return KindServerUnavailable

	case ldap.LDAPResultProtocolError,
		ldap.LDAPResultOperationsError:
		return KindProtocolError

	case ldap.LDAPResultFilterError:
		return KindFilterSyntax

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation:
		return KindInvalidDN

	case ldap.LDAPResultDecodingError,
		ldap.LDAPResultEncodingError,
		ldap.LDAPResultInvalidAttributeSyntax:
		return KindDecodingError

	case ldap.LDAPResultReferral,
		ldap.LDAPResultReferralLimitExceeded:
		return KindUnhandledReferral

	case ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return KindAttributeNotFound

	default:
		return KindUnknown
	}
}

// kindForGenericError classifies non-LDAP errors by message, matching the
// patterns the underlying library produces for transport failures.
func kindForGenericError(err error) Kind {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host"):
		return KindServerUnavailable

	case strings.Contains(msg, "credentials") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "password"):
		return KindAuthenticationFailed

	case strings.Contains(msg, "filter"):
		return KindFilterSyntax

	default:
		return KindUnknown
	}
}

// isCodeRetryable reports whether an LDAP result code indicates a transient
// condition.
func isCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

func isGenericErrorRetryable(err error) bool {
	msg := strings.ToLower(err.Error())

	patterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"connection reset",
		"temporary failure",
	}

	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// KindOf returns the failure kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return kindForCode(ldapErr.ResultCode)
	}

	return kindForGenericError(err)
}

// IsRetryable reports whether err looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return isCodeRetryable(ldapErr.ResultCode)
	}

	return isGenericErrorRetryable(err)
}

// IsAuthenticationError reports whether err indicates failed credentials.
func IsAuthenticationError(err error) bool {
	return KindOf(err) == KindAuthenticationFailed
}

// IsInvalidDN reports whether err indicates an undecomposable or malformed DN.
func IsInvalidDN(err error) bool {
	return KindOf(err) == KindInvalidDN
}
