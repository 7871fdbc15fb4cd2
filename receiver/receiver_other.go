//go:build !linux

// Kernel-mapped RX-ring capture is Linux-only (spec.md Non-goals:
// portable capture across non-Linux kernels). This stub exists only
// so dependents of package receiver stay importable on a developer's
// non-Linux workstation; Start always fails with ErrUnsupportedHost.
package receiver

import (
	"sync"
	"time"

	"github.com/skalow/daqrx/registry"
)

type Config struct {
	Interface      string
	IP             string
	FrameSize      int
	FramesPerBlock int
	NofBlocks      int
	NofWorkers     int
	KernelFilter   bool
	RetireTimeout  time.Duration
}

type Receiver struct {
	mu       sync.Mutex
	registry registry.Registry
	ports    []uint16
}

func New() *Receiver { return &Receiver{} }

func (r *Receiver) AddPort(port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ports) >= maxPorts {
		return ErrTooManyPorts
	}
	r.ports = append(r.ports, port)
	return nil
}

func (r *Receiver) Start(cfg Config) error {
	return ErrUnsupportedHost
}

func (r *Receiver) RegisterConsumer(sink registry.Sink, pred registry.Predicate) (int, error) {
	id, ok := r.registry.Register(sink, pred)
	if !ok {
		return 0, ErrRegistryFull
	}
	return id, nil
}

func (r *Receiver) UnregisterConsumer(id int) {
	r.registry.Unregister(id)
}

func (r *Receiver) StartStats(interval time.Duration) {}

func (r *Receiver) Stats() Stats {
	return Stats{NofConsumers: r.registry.Count()}
}

func (r *Receiver) Stop() error {
	return ErrNotStarted
}

const maxPorts = 16
