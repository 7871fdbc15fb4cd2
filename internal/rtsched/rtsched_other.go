//go:build !linux

// Package rtsched elevates the calling OS thread to real-time FIFO
// scheduling and pins it to a CPU. Real-time scheduling and CPU
// affinity are Linux-specific (spec.md Non-goals: portable capture
// across non-Linux kernels); this build exists only so packages
// capture and consumer stay importable — and their non-syscall logic
// testable — on a developer's non-Linux workstation.
package rtsched

// Elevate is a no-op outside Linux.
func Elevate() {}

// SetAffinity is a no-op outside Linux.
func SetAffinity(cpu int) {}
