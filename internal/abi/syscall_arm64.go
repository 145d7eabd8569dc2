//go:build arm64

package abi

// Linux syscall numbers for the AIO family (include/uapi/asm-generic/unistd.h).
const (
	sysIoSetup     = 0
	sysIoDestroy   = 1
	sysIoSubmit    = 2
	sysIoCancel    = 3
	sysIoGetevents = 4
)
