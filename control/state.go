// Package control implements the process-boundary control surface
// (spec.md §4.F): start/stop the receiver, add ports, load/initialise/
// start/stop consumers, and attach the process-global log sink. It is
// the thing a cgo c-shared/c-archive build exports C symbols for; see
// capi.go for the //export wrappers.
//
// Modeled per spec.md §9 Design Notes as a single lazily-initialized
// module-scope state value, not bare globals: state is built once by
// state() and every control operation goes through it.
package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/skalow/daqrx/consumer"
	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/receiver"
)

// PluginConsumer is the capability set a dynamically loaded consumer
// module must implement: Initialise, Start and Stop. The active
// callback is installed through Start; there is no separate
// set-callback method. A module's exported factory symbol is a
// zero-argument function returning one of these.
type PluginConsumer interface {
	Initialise(jsonConfig string) error
	Start(reg consumer.Registrar, cb consumer.Callback) error
	Stop()
}

// Factory is the shape every dynamically loaded module's exported
// factory symbol must have.
type Factory func() PluginConsumer

type consumerHandle struct {
	instance    PluginConsumer
	initialised bool
	running     bool
}

type controlState struct {
	mu  sync.Mutex
	rcv *receiver.Receiver

	consumersMu sync.Mutex
	consumers   map[string]*consumerHandle
}

var (
	once sync.Once
	st   *controlState
)

func state() *controlState {
	once.Do(func() {
		st = &controlState{consumers: make(map[string]*consumerHandle)}
	})
	return st
}

// reset tears down process-wide state; it exists for tests that need
// a clean control package between scenarios and is not part of the
// exported control surface.
func reset() {
	s := state()
	s.mu.Lock()
	if s.rcv != nil {
		_ = s.rcv.Stop()
		s.rcv = nil
	}
	s.mu.Unlock()

	s.consumersMu.Lock()
	s.consumers = make(map[string]*consumerHandle)
	s.consumersMu.Unlock()
}

func (s *controlState) getConsumer(name string) (*consumerHandle, bool) {
	s.consumersMu.Lock()
	defer s.consumersMu.Unlock()
	h, ok := s.consumers[name]
	return h, ok
}

func (s *controlState) putConsumer(name string, h *consumerHandle) error {
	s.consumersMu.Lock()
	defer s.consumersMu.Unlock()
	if _, exists := s.consumers[name]; exists {
		return fmt.Errorf("control: consumer %q already loaded", name)
	}
	s.consumers[name] = h
	return nil
}

// AttachLogger installs the process-wide logging sink (spec.md §6).
// Passing nil restores the default stdout/stderr routing.
func AttachLogger(sink daqlog.Sink) {
	daqlog.Attach(sink)
}

// statsInterval is the optional background statistics thread's period
// (spec.md §4.D), started automatically by StartReceiver.
const statsInterval = 5 * time.Second
