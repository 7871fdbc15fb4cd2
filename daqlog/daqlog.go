// Package daqlog implements the single process-global logging sink
// described in spec.md §6: a (level, message) callback that, when
// unset, routes INFO/DEBUG to stdout, WARN/ERROR to stderr, and
// terminates the process after emitting a FATAL.
package daqlog

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level mirrors the fixed level set of the control-surface contract.
type Level int

const (
	Fatal Level = iota + 1
	Error
	Warn
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Fatal:
		return "FATAL"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Sink is the attachable logging callback. Exactly one sink is active
// process-wide at a time.
type Sink func(level Level, message string)

var sink atomic.Pointer[Sink]

var (
	defaultOut = slog.New(slog.NewTextHandler(os.Stdout, nil))
	defaultErr = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// Attach installs the process-wide sink. Passing nil restores the
// default stdout/stderr routing.
func Attach(s Sink) {
	if s == nil {
		sink.Store(nil)
		return
	}
	sink.Store(&s)
}

// Emit routes message through the attached sink, or the default
// stdout/stderr split when none is attached. A FATAL message
// terminates the process after being emitted, per spec.md §6.
func Emit(level Level, message string) {
	if s := sink.Load(); s != nil {
		(*s)(level, message)
	} else {
		emitDefault(level, message)
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func emitDefault(level Level, message string) {
	switch level {
	case Fatal, Error, Warn:
		defaultErr.Error(message, "level", level.String())
	default:
		defaultOut.Info(message, "level", level.String())
	}
}

// Debugf, Infof, Warnf, Errorf, Fatalf are formatting convenience
// wrappers used throughout the capture, receiver, and consumer
// packages so call sites read like a normal leveled logger.
func Debugf(format string, args ...any) { Emit(Debug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { Emit(Info, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Emit(Warn, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Emit(Error, fmt.Sprintf(format, args...)) }
func Fatalf(format string, args ...any) { Emit(Fatal, fmt.Sprintf(format, args...)) }
