// Package consumer implements ConsumerBase (spec.md §4.E): a
// registered sink's CellRing, predicate, and processing goroutine,
// wired together around a small subclass-hook interface so concrete
// consumers only need to supply construction, packet handling, and
// teardown behavior.
//
// Grounded on the teacher's MPSCConsumer.run drain-on-a-ticker shape
// (agilira-lethe buffer.go), adapted from "drain on a timer" to "pull
// one cell with timeout, hand off to a callback, detect stream end".
package consumer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skalow/daqrx/daqconfig"
	"github.com/skalow/daqrx/registry"
	"github.com/skalow/daqrx/ring"
)

// defaultPullTimeout bounds how long a processing thread waits for a
// cell before treating the wait as "no progress" for stream-end
// detection.
const defaultPullTimeout = 2 * time.Second

// Hooks is the subclass contract a concrete consumer implements.
// Predicate is called concurrently from every capture worker and must
// be pure, O(a few bytes), and must not retain payload (spec.md
// §4.E predicate contract).
type Hooks interface {
	// Initialise receives the already-parsed JSON configuration and
	// must construct the consumer's CellRing with its chosen
	// (cell_size, nof_cells).
	Initialise(cfg *daqconfig.Parsed) (*ring.Ring, error)

	// Predicate classifies a UDP payload as belonging to this
	// consumer.
	Predicate(payload []byte) bool

	// HandlePacket is invoked once per pulled cell, from the single
	// processing goroutine, just before Base invokes the active
	// Callback with the same payload.
	HandlePacket(payload []byte, timestamp time.Time)

	// OnStreamEnd fires when the processing loop has seen at least
	// one packet and then gone a full pull timeout without another.
	OnStreamEnd()

	// CleanUp runs once, after the processing goroutine has exited,
	// during Stop.
	CleanUp()
}

// Registrar is the subset of Receiver that ConsumerBase needs: a
// place to register its (sink, predicate) pair and later remove it.
type Registrar interface {
	RegisterConsumer(sink registry.Sink, pred registry.Predicate) (int, error)
	UnregisterConsumer(id int)
}

// Callback is the tagged-variant unification of the two user-callback
// shapes described in spec.md §4.E/§9: positional (data, timestamp,
// sequence, streamID) or user-context (data, timestamp, userCtx).
// Exactly one variant is active per consumer, selected at Start time.
type Callback struct {
	Positional func(data []byte, timestamp time.Time, sequence, streamID uint32)
	Context    func(data []byte, timestamp time.Time, userCtx any)
	UserCtx    any
}

func (c Callback) invoke(data []byte, ts time.Time, sequence, streamID uint32) {
	switch {
	case c.Positional != nil:
		c.Positional(data, ts, sequence, streamID)
	case c.Context != nil:
		c.Context(data, ts, c.UserCtx)
	}
}

// Base owns a consumer's CellRing, predicate, processing goroutine,
// and active callback. Concrete consumers embed Base and implement
// Hooks.
type Base struct {
	hooks       Hooks
	pullTimeout time.Duration

	mu        sync.Mutex
	ring      *ring.Ring
	registrar Registrar
	id        int
	cb        Callback
	sequence  atomic.Uint64

	running atomic.Bool
	stopped atomic.Bool
	done    chan struct{}

	diagStop chan struct{}
	diagWG   sync.WaitGroup
}

// New constructs a Base around the given Hooks. pullTimeout, if zero,
// defaults to 2s.
func New(hooks Hooks, pullTimeout time.Duration) *Base {
	if pullTimeout <= 0 {
		pullTimeout = defaultPullTimeout
	}
	return &Base{hooks: hooks, pullTimeout: pullTimeout}
}

// Initialise parses jsonConfig and invokes the subclass hook to
// construct the consumer's CellRing.
func (b *Base) Initialise(jsonConfig string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parsed, err := daqconfig.Parse(jsonConfig)
	if err != nil {
		return err
	}
	r, err := b.hooks.Initialise(parsed)
	if err != nil {
		return fmt.Errorf("consumer: initialise hook: %w", err)
	}
	if r == nil {
		return fmt.Errorf("consumer: initialise hook returned a nil ring")
	}
	b.ring = r
	return nil
}

// Ring returns the consumer's CellRing; valid only after Initialise.
func (b *Base) Ring() *ring.Ring {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring
}

// Start registers the consumer's predicate and CellRing with the
// receiver, installs cb as the active callback, and spawns the
// processing goroutine at real-time FIFO priority.
func (b *Base) Start(reg Registrar, cb Callback) error {
	b.mu.Lock()
	if b.ring == nil {
		b.mu.Unlock()
		return fmt.Errorf("consumer: Start called before Initialise")
	}
	if b.running.Load() {
		b.mu.Unlock()
		return fmt.Errorf("consumer: already started")
	}

	id, err := reg.RegisterConsumer(b.ring, b.hooks.Predicate)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("consumer: registering with receiver: %w", err)
	}

	b.registrar = reg
	b.id = id
	b.cb = cb
	b.stopped.Store(false)
	b.done = make(chan struct{})
	b.mu.Unlock()

	b.running.Store(true)
	go b.run()
	return nil
}

// Stop unregisters the consumer, signals the processing goroutine to
// exit, waits for it, and invokes the CleanUp hook.
func (b *Base) Stop() {
	if !b.running.Load() {
		return
	}

	b.mu.Lock()
	registrar, id := b.registrar, b.id
	done := b.done
	b.mu.Unlock()

	if registrar != nil {
		registrar.UnregisterConsumer(id)
	}

	b.stopped.Store(true)
	if done != nil {
		<-done
	}
	b.stopDiagnostics()
	b.running.Store(false)
	b.hooks.CleanUp()
}

// IsRunning reports whether the processing goroutine is active.
func (b *Base) IsRunning() bool {
	return b.running.Load()
}
