package ipmibmc

import "github.com/ipmibmc/bmccore/internal/bmcerr"

// Error is the structured error every Core operation returns on failure:
// an Op/Code/Msg triple with an optional wrapped cause, supporting
// errors.Is/errors.As against the Code sentinels below.
type Error = bmcerr.Error

// ErrorCode is the closed set of failure kinds the Core ever reports.
type ErrorCode = bmcerr.Code

const (
	ErrBusy              = bmcerr.CodeBusy
	ErrInvalid           = bmcerr.CodeInvalid
	ErrTimeout           = bmcerr.CodeTimeout
	ErrOutOfMemory       = bmcerr.CodeOutOfMemory
	ErrNotFound          = bmcerr.CodeNotFound
	ErrNoDevice          = bmcerr.CodeNoDevice
	ErrAlreadyRegistered = bmcerr.CodeAlreadyRegistered
	ErrUnsupported       = bmcerr.CodeUnsupported
	ErrInterrupted       = bmcerr.CodeInterrupted
)

// NewError builds a fresh Error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return bmcerr.New(op, code, msg)
}

// WrapError attaches op and code to inner, preserving it as the unwrap
// target. Returns nil if inner is nil.
func WrapError(op string, code ErrorCode, inner error) *Error {
	return bmcerr.Wrap(op, code, inner)
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	return bmcerr.Is(err, code)
}
