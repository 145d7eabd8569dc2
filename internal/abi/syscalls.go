package abi

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/goaio/goaio/internal/logging"
)

// ContextID is the kernel's opaque io_context_t. It is only ever passed back
// to the kernel, never dereferenced by userspace.
type ContextID uintptr

// IoSetup creates a kernel AIO context able to hold maxevents outstanding
// operations. Mirrors io_setup(2).
func IoSetup(maxevents int) (ContextID, error) {
	var ctx ContextID
	logging.Default().Debug("io_setup", "maxevents", maxevents)

	_, _, errno := unix.Syscall(sysIoSetup, uintptr(maxevents), uintptr(unsafe.Pointer(&ctx)), 0)
	if errno != 0 {
		logging.Default().Error("io_setup failed", "errno", errno)
		return 0, errno
	}
	return ctx, nil
}

// IoDestroy tears down a kernel AIO context. Mirrors io_destroy(2).
func IoDestroy(ctx ContextID) error {
	_, _, errno := unix.Syscall(sysIoDestroy, uintptr(ctx), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// IoSubmit hands a batch of Iocb pointers to the kernel. Returns the number
// accepted, which may be less than len(iocbs) with no error if the kernel
// hit an internal limit before processing all of them. Mirrors io_submit(2).
func IoSubmit(ctx ContextID, iocbs []*Iocb) (int, error) {
	if len(iocbs) == 0 {
		return 0, nil
	}

	r, _, errno := unix.Syscall(sysIoSubmit, uintptr(ctx), uintptr(len(iocbs)), uintptr(unsafe.Pointer(&iocbs[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

// IoGetevents waits for between min and len(events) completions, up to
// timeout (nil blocks indefinitely). Returns the number of events filled in.
// Mirrors io_getevents(2).
func IoGetevents(ctx ContextID, min int, events []IOEvent, timeout *Timespec) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	r, _, errno := unix.Syscall6(sysIoGetevents,
		uintptr(ctx),
		uintptr(min),
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		uintptr(unsafe.Pointer(timeout)),
		0)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

// NewCompletionEventfd creates a blocking, close-on-exec eventfd suitable
// for registering as an Iocb's Resfd, returned as a raw descriptor the
// caller owns.
func NewCompletionEventfd() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC)
}

// ReadEventfdCounter performs one blocking read of an eventfd's accumulated
// counter, resetting it to 0. Returns the accumulated count.
func ReadEventfdCounter(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, unix.EIO
	}
	return *(*uint64)(unsafe.Pointer(&buf[0])), nil
}
