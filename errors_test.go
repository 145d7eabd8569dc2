package goaio

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := NewError("io_submit", ErrCodeInvalidParameters, "bad iocb")

	assert.Equal(t, "io_submit", err.Op)
	assert.Equal(t, ErrCodeInvalidParameters, err.Code)
	assert.Equal(t, "goaio: bad iocb (op=io_submit)", err.Error())
}

func TestErrnoError(t *testing.T) {
	err := NewErrnoError("io_getevents", syscall.EAGAIN)

	assert.Equal(t, syscall.EAGAIN, err.Errno)
	assert.Equal(t, ErrCodeQueueFull, err.Code)
	assert.ErrorIs(t, err, err)
}

func TestIsCode(t *testing.T) {
	err := NewError("pread", ErrCodeTimeout, "deadline exceeded")
	assert.True(t, IsCode(err, ErrCodeTimeout))
	assert.False(t, IsCode(err, ErrCodeFatal))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeTimeout))
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{Op: "io_submit", Code: ErrCodeIOError, Inner: syscall.ENOSPC}
	assert.Equal(t, syscall.ENOSPC, errors.Unwrap(err))
}
