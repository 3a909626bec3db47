package conn

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/go-ldap/ldap/v3"
)

// Code is an LDAP result code, or one of this package's own codes for
// failures that never reach the server (connect, timeout, decode).
type Code int

const (
	CodeSuccess             Code = ldap.LDAPResultSuccess
	CodeOperationsError     Code = ldap.LDAPResultOperationsError
	CodeProtocolError       Code = ldap.LDAPResultProtocolError
	CodeTimeLimitExceeded   Code = ldap.LDAPResultTimeLimitExceeded
	CodeNoSuchObject        Code = ldap.LDAPResultNoSuchObject
	CodeConstraintViolation Code = ldap.LDAPResultConstraintViolation
	CodeServerDown          Code = ldap.LDAPResultServerDown
	CodeLocalError          Code = ldap.LDAPResultLocalError

	// CodeTimeout, CodeConnectError and CodeDecodingError have no LDAP
	// result code of their own; the server never got a chance to answer.
	CodeTimeout       Code = -1
	CodeConnectError  Code = -2
	CodeDecodingError Code = -3
)

// LDAPFailure is the error family surfaced for any non-SUCCESS server
// result code or transport failure.
type LDAPFailure struct {
	Code      Code
	Message   string
	MatchedDN string
}

func (f LDAPFailure) Error() string {
	if f.MatchedDN != "" {
		return fmt.Sprintf("ldap failure %d: %s (matched %q)", f.Code, f.Message, f.MatchedDN)
	}
	return fmt.Sprintf("ldap failure %d: %s", f.Code, f.Message)
}

// transient reports whether code should trigger the connection manager's
// reconnect-then-retry-once policy.
func (c Code) transient() bool {
	switch c {
	case CodeServerDown, CodeTimeout, CodeConnectError:
		return true
	default:
		return false
	}
}

func classify(err error) Code {
	var failure LDAPFailure
	if errors.As(err, &failure) {
		return failure.Code
	}

	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		switch lerr.ResultCode {
		case ldap.LDAPResultServerDown:
			return CodeServerDown
		case ldap.LDAPResultTimeLimitExceeded:
			return CodeTimeout
		default:
			return Code(lerr.ResultCode)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeConnectError
	}

	// A truncated read mid-packet surfaces as io.ErrUnexpectedEOF from the
	// BER decoder; a clean io.EOF means the peer closed the socket between
	// messages, which is a connect failure rather than a malformed packet.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeDecodingError
	}
	if errors.Is(err, io.EOF) {
		return CodeConnectError
	}

	return CodeLocalError
}

func isTransientErr(err error) bool {
	return classify(err).transient()
}

// wrapLDAPError converts any error raised by the underlying library or
// transport into an LDAPFailure carrying its classified code.
func wrapLDAPError(err error) error {
	if err == nil {
		return nil
	}
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		msg := err.Error()
		if lerr.Err != nil {
			msg = lerr.Err.Error()
		}
		return LDAPFailure{Code: classify(err), Message: msg, MatchedDN: lerr.MatchedDN}
	}
	return LDAPFailure{Code: classify(err), Message: err.Error()}
}
