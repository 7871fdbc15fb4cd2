//go:build linux

// Package rtsched elevates the calling OS thread to real-time FIFO
// scheduling and pins it to a CPU. It is shared by package capture's
// worker threads and package consumer's processing threads, both of
// which run with real-time FIFO scheduling at maximum priority per
// spec.md §5, and both of which call this only after
// runtime.LockOSThread — scheduling class and CPU affinity are
// per-OS-thread kernel properties, not per-goroutine ones.
//
// Grounded on the go-ublk queue runner's CPU-affinity-after-
// LockOSThread pattern (ioLoop in internal/queue/runner.go): best
// effort, never fatal, logged and continued on failure.
package rtsched

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/skalow/daqrx/daqlog"
)

// maxPriority is the ceiling of the SCHED_FIFO priority range on
// Linux (1..99).
const maxPriority = 99

// schedParam mirrors struct sched_param from <sched.h>.
type schedParam struct {
	priority int32
}

// Elevate attempts to move the calling OS thread onto SCHED_FIFO at
// maxPriority. golang.org/x/sys/unix has no typed wrapper for
// sched_setscheduler(2), so the raw syscall is issued directly.
// Failure logs at WARN and is never treated as fatal (spec.md §9).
func Elevate() {
	param := schedParam{priority: maxPriority}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(unix.SCHED_FIFO), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		daqlog.Warnf("rtsched: failed to elevate to SCHED_FIFO: %v", errno)
	}
}

// SetAffinity pins the calling OS thread to a single CPU. cpu < 0
// means "no affinity hint" and is a no-op, matching the optional,
// explicit per-thread affinity hint called for in spec.md §9.
func SetAffinity(cpu int) {
	if cpu < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		daqlog.Warnf("rtsched: failed to set CPU affinity to %d: %v", cpu, err)
	}
}
