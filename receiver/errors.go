package receiver

import "errors"

// Sentinel errors for the recoverable-startup error class (spec.md
// §7(ii)): checked with errors.Is, never inspected by string matching.
var (
	ErrAlreadyStarted  = errors.New("receiver: already started")
	ErrNotStarted      = errors.New("receiver: not started")
	ErrTooManyPorts    = errors.New("receiver: destination port set is already at capacity")
	ErrRegistryFull    = errors.New("receiver: consumer registry is at capacity")
	ErrNoPorts         = errors.New("receiver: no destination ports configured")
	ErrUnsupportedHost = errors.New("receiver: kernel-mapped capture is only implemented on linux")
)
