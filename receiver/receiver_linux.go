//go:build linux

// Package receiver owns the lifecycle of a configured set of capture
// workers, the consumer registry they demultiplex into, an optional
// kernel packet filter, and aggregate statistics — component 4.D of
// spec.md. It is the thing ControlAPI's start/stop/add_port/
// register_consumer surface drives.
package receiver

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skalow/daqrx/capture"
	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/registry"
)

// Config parameterizes Start. FrameSize, FramesPerBlock, and NofBlocks
// default to the deployment defaults from spec.md §6 (9000, 32, 64)
// when left zero.
type Config struct {
	Interface      string
	IP             string
	FrameSize      int
	FramesPerBlock int
	NofBlocks      int
	NofWorkers     int

	// KernelFilter, when true, compiles and attaches the optional
	// classic-BPF packet filter (spec.md §4.D) before any worker
	// binds its socket. Ports must already be configured via AddPort.
	KernelFilter bool

	// RetireTimeout overrides the RX-ring block retire timeout
	// (default ~60ms, spec.md §4.C).
	RetireTimeout time.Duration
}

const (
	defaultFrameSize      = 9000
	defaultFramesPerBlock = 32
	defaultNofBlocks      = 64
	maxPorts              = 16
)

func (c Config) withDefaults() Config {
	if c.FrameSize <= 0 {
		c.FrameSize = defaultFrameSize
	}
	if c.FramesPerBlock <= 0 {
		c.FramesPerBlock = defaultFramesPerBlock
	}
	if c.NofBlocks <= 0 {
		c.NofBlocks = defaultNofBlocks
	}
	if c.NofWorkers <= 0 {
		c.NofWorkers = 1
	}
	return c
}

// Receiver binds to one interface/address and fans matching UDP
// traffic out to a small registered set of consumers.
type Receiver struct {
	mu       sync.Mutex
	cfg      Config
	workers  []*capture.Worker
	registry registry.Registry
	stats    capture.Stats
	ports    []uint16
	started  atomic.Bool

	statsStop chan struct{}
	statsWG   sync.WaitGroup
}

// New returns an unstarted Receiver.
func New() *Receiver {
	return &Receiver{}
}

// AddPort appends a UDP destination port to the configured set
// (capacity 16). It must be called before Start: Start copies the port
// set into every worker (and into the kernel filter, when enabled), and
// AddPort after Start returns ErrAlreadyStarted.
func (r *Receiver) AddPort(port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.Load() {
		return fmt.Errorf("receiver: AddPort after Start has no effect on running workers: %w", ErrAlreadyStarted)
	}
	if len(r.ports) >= maxPorts {
		return ErrTooManyPorts
	}
	r.ports = append(r.ports, port)
	return nil
}

// Start constructs and spawns NofWorkers capture workers, each with
// its own CaptureRing, against the already-registered consumer set
// and port list. Each worker elevates its own OS thread to real-time
// FIFO scheduling; failure to elevate priority is logged at WARN and
// does not block startup
// (spec.md §9).
func (r *Receiver) Start(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.Load() {
		return ErrAlreadyStarted
	}
	if len(r.ports) == 0 {
		return ErrNoPorts
	}

	cfg = cfg.withDefaults()
	ip := net.ParseIP(cfg.IP).To4()
	if ip == nil {
		return fmt.Errorf("receiver: %q is not a valid IPv4 address", cfg.IP)
	}

	fanoutGroup := uint16(0)
	if cfg.NofWorkers > 1 {
		fanoutGroup = uint16(fanoutGroupID())
	}

	workers := make([]*capture.Worker, 0, cfg.NofWorkers)
	for i := 0; i < cfg.NofWorkers; i++ {
		wcfg := capture.Config{
			Interface:          cfg.Interface,
			DestIP:             ip,
			Ports:              append([]uint16(nil), r.ports...),
			FrameSize:          cfg.FrameSize,
			FramesPerBlock:     cfg.FramesPerBlock,
			NofBlocks:          cfg.NofBlocks,
			RetireTimeout:      cfg.RetireTimeout,
			FanoutGroup:        fanoutGroup,
			KernelFilterActive: cfg.KernelFilter,
			CPU:                -1,
		}
		w, err := capture.NewWorker(wcfg, &r.registry, &r.stats)
		if err != nil {
			for _, started := range workers {
				started.Stop()
				started.Wait()
				_ = started.Close()
			}
			return fmt.Errorf("receiver: starting worker %d: %w", i, err)
		}
		workers = append(workers, w)
	}

	for _, w := range workers {
		go w.Run()
	}

	r.cfg = cfg
	r.workers = workers
	r.started.Store(true)
	return nil
}

// RegisterConsumer registers a sink/predicate pair with the receiver's
// consumer registry, returning its id. It may be called before or
// after Start.
func (r *Receiver) RegisterConsumer(sink registry.Sink, pred registry.Predicate) (int, error) {
	id, ok := r.registry.Register(sink, pred)
	if !ok {
		return 0, ErrRegistryFull
	}
	return id, nil
}

// UnregisterConsumer removes a previously-registered consumer by id.
func (r *Receiver) UnregisterConsumer(id int) {
	r.registry.Unregister(id)
}

// StartStats launches a background goroutine that every interval logs
// a snapshot of the aggregate counters and resets them, matching the
// best-effort, unsynchronized statistics thread in spec.md §4.D.
func (r *Receiver) StartStats(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statsStop != nil {
		return
	}
	r.statsStop = make(chan struct{})
	r.statsWG.Add(1)
	stop := r.statsStop
	go func() {
		defer r.statsWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s := r.snapshotAndReset()
				daqlog.Infof("receiver: frames=%d bytes=%d lost=%d consumers=%d",
					s.ProcessedFrames, s.ProcessedBytes, s.LostPackets, s.NofConsumers)
			}
		}
	}()
}

func (r *Receiver) snapshotAndReset() Stats {
	s := Stats{
		ProcessedFrames: r.stats.ProcessedFrames.Swap(0),
		ProcessedBytes:  r.stats.ProcessedBytes.Swap(0),
		LostPackets:     r.stats.LostPackets.Swap(0),
		NofWorkers:      len(r.workers),
		NofConsumers:    r.registry.Count(),
	}
	return s
}

// Stats returns the current aggregate counters without resetting
// them.
func (r *Receiver) Stats() Stats {
	return Stats{
		ProcessedFrames: r.stats.ProcessedFrames.Load(),
		ProcessedBytes:  r.stats.ProcessedBytes.Load(),
		LostPackets:     r.stats.LostPackets.Load(),
		NofWorkers:      len(r.workers),
		NofConsumers:    r.registry.Count(),
	}
}

// Stop requests every worker exit (at most 100ms later, per the poll
// timeout in spec.md §5), joins them, and tears down their rings.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started.Load() {
		return ErrNotStarted
	}

	if r.statsStop != nil {
		close(r.statsStop)
		r.statsWG.Wait()
		r.statsStop = nil
	}

	for _, w := range r.workers {
		w.Stop()
	}
	var firstErr error
	for _, w := range r.workers {
		w.Wait()
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.workers = nil
	r.started.Store(false)
	return firstErr
}

// fanoutGroupID derives a PACKET_FANOUT group id from the process id,
// so all workers belonging to this receiver share one group while a
// second receiver process on the same host does not collide with it
// (spec.md §4.C).
func fanoutGroupID() int {
	return os.Getpid() & 0xffff
}
