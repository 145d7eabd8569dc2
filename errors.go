package goaio

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured error carrying the failing operation, the kernel
// errno if any, and a high-level category so callers can branch on Code
// without string-matching Msg.
type Error struct {
	Op    string // operation that failed (e.g. "io_submit", "io_getevents")
	Code  ErrorCode
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("goaio: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("goaio: %s", msg)
}

// Unwrap supports errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports comparing by Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category.
type ErrorCode string

const (
	ErrCodeQueueFull         ErrorCode = "submission queue full"
	ErrCodeAllocFailure      ErrorCode = "allocation failure"
	ErrCodeKernelUnsupported ErrorCode = "kernel AIO not supported"
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
	ErrCodeIOError           ErrorCode = "I/O error"
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeFatal             ErrorCode = "fatal internal inconsistency"
	ErrCodeClosed            ErrorCode = "context closed"
)

// NewError creates a structured error with no errno attached.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrnoError creates a structured error wrapping a kernel errno.
func NewErrnoError(op string, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  mapErrnoToCode(errno),
		Errno: errno,
		Msg:   errno.Error(),
		Inner: errno,
	}
}

// mapErrnoToCode maps a kernel errno to a high-level error category.
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EAGAIN:
		return ErrCodeQueueFull
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ENOSYS, syscall.EOPNOTSUPP, syscall.ENOENT:
		return ErrCodeKernelUnsupported
	case syscall.ENOMEM:
		return ErrCodeAllocFailure
	case syscall.ETIMEDOUT:
		return ErrCodeTimeout
	default:
		return ErrCodeIOError
	}
}

// IsCode reports whether err (or something it wraps) is a *Error with the
// given Code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
