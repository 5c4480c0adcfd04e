package negotiate

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Begin, Continue and Session.Step
// matches exactly one of them with errors.Is.
var (
	// ErrCredentialAcquisitionFailed is returned when the provider cannot
	// produce outbound credentials. No handles are outstanding.
	ErrCredentialAcquisitionFailed = errors.New("negotiate: credential acquisition failed")

	// ErrContextInitFailed is returned when the first InitializeContext call
	// fails outright. No handles are outstanding.
	ErrContextInitFailed = errors.New("negotiate: security context initialization failed")

	// ErrUnexpectedNegotiationState is returned when the first leg does not
	// ask for continuation. No handles are outstanding.
	ErrUnexpectedNegotiationState = errors.New("negotiate: unexpected negotiation state")

	// ErrNegotiationStepFailed is returned when a continuation leg fails.
	// The caller still owns the handles and must call Release.
	ErrNegotiationStepFailed = errors.New("negotiate: negotiation step failed")

	// ErrInvalidHost is returned when the host is empty.
	ErrInvalidHost = errors.New("negotiate: host is required")

	// ErrInvalidState is returned when a Session is driven out of order.
	ErrInvalidState = errors.New("negotiate: invalid session state")
)

// Error describes a failed negotiation call.
type Error struct {
	// Op is the operation that failed: "begin", "continue" or "step".
	Op string

	// Kind is one of the sentinel errors above.
	Kind error

	// Host is the target host the call was addressed to.
	Host string

	// Status is the provider status reported for the failed call.
	Status Status

	// Code is the provider's raw status code, zero if unknown.
	Code uint32

	// Err is the underlying provider error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Host != "" {
		msg += fmt.Sprintf(" (%s %s)", e.Op, e.Host)
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(": status 0x%08x", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the provider error to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode returns the provider status code carried by err, if any.
func StatusCode(err error) (uint32, bool) {
	var nerr *Error
	if errors.As(err, &nerr) && nerr.Code != 0 {
		return nerr.Code, true
	}
	return 0, false
}
