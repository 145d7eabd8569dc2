//go:build amd64

package abi

// Linux syscall numbers for the AIO family (arch/x86/entry/syscalls/syscall_64.tbl).
const (
	sysIoSetup     = 206
	sysIoDestroy   = 207
	sysIoGetevents = 208
	sysIoSubmit    = 209
	sysIoCancel    = 210
)
