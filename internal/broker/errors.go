package broker

import (
	"errors"
	"fmt"
)

// ErrorClass partitions gateway failures by how the caller must react.
type ErrorClass string

const (
	// ClassRequote: the quoted price moved before the venue accepted the
	// order. Retryable with a fresh quote on the same fill mode.
	ClassRequote ErrorClass = "REQUOTE"

	// ClassUnsupportedFill: the symbol does not accept the requested fill
	// mode. The caller advances to the next candidate mode.
	ClassUnsupportedFill ErrorClass = "UNSUPPORTED_FILL"

	// ClassTransient: timeout or temporary disconnect. Reconnection belongs
	// to the gateway; the order manager reports a single failed outcome.
	ClassTransient ErrorClass = "TRANSIENT"

	// ClassFatal: authentication, permission, or malformed venue response.
	ClassFatal ErrorClass = "FATAL"

	// ClassRejected: a definitive business rejection (no money, market
	// closed, bad price). Not retryable.
	ClassRejected ErrorClass = "REJECTED"
)

// Error is a classified gateway failure. Code carries the venue's native
// rejection code for logging; callers branch only on Class.
type Error struct {
	Class   ErrorClass
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gateway %s (%d): %s", e.Class, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Class, e.Message)
}

// NewError creates a classified gateway error.
func NewError(class ErrorClass, code int, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

// ClassOf extracts the class of a gateway error. Unclassified errors are
// treated as transient so an unknown failure is reported, not retried into.
func ClassOf(err error) ErrorClass {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Class
	}
	return ClassTransient
}

func IsRequote(err error) bool         { return ClassOf(err) == ClassRequote }
func IsUnsupportedFill(err error) bool { return ClassOf(err) == ClassUnsupportedFill }
func IsTransient(err error) bool       { return ClassOf(err) == ClassTransient }
func IsFatal(err error) bool           { return ClassOf(err) == ClassFatal }
