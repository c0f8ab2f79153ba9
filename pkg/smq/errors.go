package smq

import (
	"errors"
	"fmt"

	"github.com/smq-protocol/smq-go/pkg/transport"
)

// Reason identifies why an operation failed or a connection ended.
// Codes 1-6 are CONNACK codes sent by the broker; codes from 101 up are
// raised locally.
type Reason int

const (
	ReasonUnacceptableProtocolVersion  Reason = 1
	ReasonServerUnavailable            Reason = 2
	ReasonIncorrectCredentials         Reason = 3
	ReasonClientCertificateRequired    Reason = 4
	ReasonClientCertificateNotAccepted Reason = 5
	ReasonAccessDenied                 Reason = 6

	ReasonCannotConnect    Reason = 101
	ReasonDisconnect       Reason = 102
	ReasonInvalidState     Reason = 103
	ReasonNonOKResponse    Reason = 104
	ReasonPongTimeout      Reason = 105
	ReasonProtocolError    Reason = 106
	ReasonServerDisconnect Reason = 107
	ReasonSSLNotSupported  Reason = 108
	ReasonURLNotABroker    Reason = 109
	ReasonInvalidArg       Reason = 110
)

var reasonNames = map[Reason]string{
	ReasonUnacceptableProtocolVersion:  "unacceptable protocol version",
	ReasonServerUnavailable:            "server unavailable",
	ReasonIncorrectCredentials:         "incorrect credentials",
	ReasonClientCertificateRequired:    "client certificate required",
	ReasonClientCertificateNotAccepted: "client certificate not accepted",
	ReasonAccessDenied:                 "access denied",
	ReasonCannotConnect:                "cannot connect",
	ReasonDisconnect:                   "disconnected",
	ReasonInvalidState:                 "invalid state",
	ReasonNonOKResponse:                "non-OK response",
	ReasonPongTimeout:                  "pong timeout",
	ReasonProtocolError:                "protocol error",
	ReasonServerDisconnect:             "server disconnect",
	ReasonSSLNotSupported:              "TLS not supported",
	ReasonURLNotABroker:                "URL is not a broker",
	ReasonInvalidArg:                   "invalid argument",
}

// String returns a human-readable reason.
func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// IsBrokerCode reports whether r is a CONNACK response code.
func (r Reason) IsBrokerCode() bool {
	return r >= ReasonUnacceptableProtocolVersion && r <= ReasonAccessDenied
}

// Error is the error type returned and reported by the client.
type Error struct {
	Reason Reason
	Err    error
}

func newError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("smq: %s: %v", e.Reason, e.Err)
	}
	return "smq: " + e.Reason.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same reason when the target carries no
// cause, so errors.Is(err, ErrPongTimeout) works for wrapped variants.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil {
		return false
	}
	return t.Reason == e.Reason
}

// Retryable reports whether reconnecting may succeed without changing
// credentials or configuration. A broker-ordered disconnect is final.
func (e *Error) Retryable() bool {
	switch e.Reason {
	case ReasonServerUnavailable,
		ReasonCannotConnect,
		ReasonDisconnect,
		ReasonNonOKResponse,
		ReasonPongTimeout,
		ReasonProtocolError:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is.
var (
	ErrUnacceptableProtocolVersion  = &Error{Reason: ReasonUnacceptableProtocolVersion}
	ErrServerUnavailable            = &Error{Reason: ReasonServerUnavailable}
	ErrIncorrectCredentials         = &Error{Reason: ReasonIncorrectCredentials}
	ErrClientCertificateRequired    = &Error{Reason: ReasonClientCertificateRequired}
	ErrClientCertificateNotAccepted = &Error{Reason: ReasonClientCertificateNotAccepted}
	ErrAccessDenied                 = &Error{Reason: ReasonAccessDenied}
	ErrCannotConnect                = &Error{Reason: ReasonCannotConnect}
	ErrDisconnect                   = &Error{Reason: ReasonDisconnect}
	ErrInvalidState                 = &Error{Reason: ReasonInvalidState}
	ErrNonOKResponse                = &Error{Reason: ReasonNonOKResponse}
	ErrPongTimeout                  = &Error{Reason: ReasonPongTimeout}
	ErrProtocolError                = &Error{Reason: ReasonProtocolError}
	ErrServerDisconnect             = &Error{Reason: ReasonServerDisconnect}
	ErrSSLNotSupported              = &Error{Reason: ReasonSSLNotSupported}
	ErrURLNotABroker                = &Error{Reason: ReasonURLNotABroker}
	ErrInvalidArg                   = &Error{Reason: ReasonInvalidArg}

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = &Error{Reason: ReasonInvalidState, Err: errors.New("client closed")}
)

// ReasonOf extracts the reason from err.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return 0, false
}

// IsRetryable reports whether err is an *Error that allows a reconnect.
// Errors of other types are treated as transient.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return err != nil
}

// upgradeError maps an Upgrader failure to a client error.
func upgradeError(err error) *Error {
	switch {
	case errors.Is(err, transport.ErrNotABroker):
		return newError(ReasonURLNotABroker, err)
	case errors.Is(err, transport.ErrNonOKResponse):
		return newError(ReasonNonOKResponse, err)
	case errors.Is(err, transport.ErrTLSRequired):
		return newError(ReasonSSLNotSupported, err)
	case errors.Is(err, transport.ErrInvalidURL):
		return newError(ReasonInvalidArg, err)
	default:
		return newError(ReasonCannotConnect, err)
	}
}

// connAckError maps a non-zero CONNACK code.
func connAckError(code uint8, text string) *Error {
	var cause error
	if text != "" {
		cause = errors.New(text)
	}
	reason := Reason(code)
	if !reason.IsBrokerCode() {
		if cause == nil {
			cause = fmt.Errorf("unknown CONNACK code %d", code)
		}
		reason = ReasonCannotConnect
	}
	return newError(reason, cause)
}
