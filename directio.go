package goaio

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Mode selects how a DirectFile's path is opened.
type Mode int

const (
	ModeOpen Mode = iota
	ModeAppend
	ModeTruncate
)

// FileAccess selects a DirectFile's read/write permissions.
type FileAccess int

const (
	AccessRead FileAccess = iota
	AccessWrite
	AccessReadWrite
)

// DirectFile is a file opened with O_DIRECT, bypassing the page cache.
// Reads and writes must use buffers whose address, offset, and length are
// all multiples of Alignment (see AlignedBuffer).
type DirectFile struct {
	fd        int
	alignment int
}

// OpenDirect opens path for direct I/O with the given mode and access.
// alignment should match the underlying block device's requirement
// (commonly 512 or 4096); DirectFile does not query it automatically.
func OpenDirect(path string, mode Mode, access FileAccess, alignment int) (*DirectFile, error) {
	flags := unix.O_DIRECT
	switch mode {
	case ModeAppend:
		flags |= unix.O_APPEND
	case ModeTruncate:
		flags |= unix.O_TRUNC
	}

	var perm uint32
	switch access {
	case AccessRead:
		flags |= unix.O_RDONLY
	case AccessWrite:
		flags |= unix.O_WRONLY | unix.O_CREAT
		perm = unix.S_IRUSR | unix.S_IWUSR
	case AccessReadWrite:
		flags |= unix.O_RDWR | unix.O_CREAT
		perm = unix.S_IRUSR | unix.S_IWUSR
	}

	var fd int
	err := retryEINTR(func() error {
		var openErr error
		fd, openErr = unix.Open(path, flags, perm)
		return openErr
	})
	if err != nil {
		return nil, NewErrnoError("open", err.(syscall.Errno))
	}

	return &DirectFile{fd: fd, alignment: alignment}, nil
}

// Alignment returns the alignment this DirectFile was opened with.
func (f *DirectFile) Alignment() int { return f.alignment }

// Fd returns the underlying file descriptor. IoContext's async methods take
// an *os.File; use File to obtain one.
func (f *DirectFile) Fd() uintptr { return uintptr(f.fd) }

// File wraps the descriptor in an *os.File for APIs (like IoContext) that
// expect one. The returned File and the DirectFile share the same
// descriptor; closing one closes both.
func (f *DirectFile) File(name string) *os.File {
	return os.NewFile(uintptr(f.fd), name)
}

// Close closes the underlying descriptor.
func (f *DirectFile) Close() error {
	return unix.Close(f.fd)
}

// Pread performs a synchronous, blocking read into buf's full capacity
// (buf.Buf) at off, retrying on EINTR. buf's valid length is not changed.
func (f *DirectFile) Pread(buf *AlignedBuffer, off int64) (int, error) {
	var n int
	err := retryEINTR(func() error {
		var readErr error
		n, readErr = unix.Pread(f.fd, buf.Buf, off)
		return readErr
	})
	if err != nil {
		return 0, NewErrnoError("pread", err.(syscall.Errno))
	}
	return n, nil
}

// Pwrite performs a synchronous, blocking write of buf's valid region at
// off, retrying on EINTR.
func (f *DirectFile) Pwrite(buf *AlignedBuffer, off int64) (int, error) {
	var n int
	err := retryEINTR(func() error {
		var writeErr error
		n, writeErr = unix.Pwrite(f.fd, buf.WrBuf(), off)
		return writeErr
	})
	if err != nil {
		return 0, NewErrnoError("pwrite", err.(syscall.Errno))
	}
	return n, nil
}

// retryEINTR calls op until it succeeds or fails with something other than
// EINTR.
func retryEINTR(op func() error) error {
	for {
		err := op()
		if err != unix.EINTR {
			return err
		}
	}
}
