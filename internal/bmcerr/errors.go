// Package bmcerr is the Core's structured error type, generalizing the
// teacher's errors.go (*Error with Op/Code/Msg/Inner, errors.Is/As support)
// from device/queue-scoped ublk errors to the BMC's nine-member failure
// taxonomy. It lives under internal/ so every Core package can depend on it
// without importing the module root, which re-exports it as ipmibmc.Error.
package bmcerr

import "errors"

// Code is a closed set of failure kinds the Core ever reports.
type Code string

const (
	CodeBusy              Code = "busy"
	CodeInvalid           Code = "invalid"
	CodeTimeout           Code = "timeout"
	CodeOutOfMemory       Code = "out-of-memory"
	CodeNotFound          Code = "not-found"
	CodeNoDevice          Code = "no-device"
	CodeAlreadyRegistered Code = "already-registered"
	CodeUnsupported       Code = "unsupported"
	CodeInterrupted       Code = "interrupted"
)

// Error is the structured error every Core operation returns on failure.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return "ipmibmc: " + e.Op + ": " + msg
	}
	return "ipmibmc: " + msg
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New builds a fresh Error with no wrapped cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap attaches op and code to inner, preserving it as the unwrap target.
// Returns nil if inner is nil.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
