package consumer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skalow/daqrx/daqconfig"
	"github.com/skalow/daqrx/registry"
	"github.com/skalow/daqrx/ring"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	sinks map[int]registry.Sink
	next  int
}

func (f *fakeRegistrar) RegisterConsumer(sink registry.Sink, pred registry.Predicate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinks == nil {
		f.sinks = make(map[int]registry.Sink)
	}
	f.next++
	f.sinks[f.next] = sink
	return f.next, nil
}

func (f *fakeRegistrar) UnregisterConsumer(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sinks, id)
}

type countingHooks struct {
	ringSize     int
	handled      atomic.Int64
	streamEnds   atomic.Int64
	cleanedUp    atomic.Bool
	initialiseFn func(cfg *daqconfig.Parsed) (*ring.Ring, error)
}

func (h *countingHooks) Initialise(cfg *daqconfig.Parsed) (*ring.Ring, error) {
	if h.initialiseFn != nil {
		return h.initialiseFn(cfg)
	}
	return ring.New(cfg.Base.PacketSize, cfg.Base.NofCells), nil
}

func (h *countingHooks) Predicate(payload []byte) bool { return true }

func (h *countingHooks) HandlePacket(payload []byte, timestamp time.Time) {
	h.handled.Add(1)
}

func (h *countingHooks) OnStreamEnd() { h.streamEnds.Add(1) }

func (h *countingHooks) CleanUp() { h.cleanedUp.Store(true) }

func TestInitialiseConstructsRingFromConfig(t *testing.T) {
	hooks := &countingHooks{}
	b := New(hooks, 0)
	if err := b.Initialise(`{"packet_size": 64, "nof_cells": 4}`); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if b.Ring().Capacity() != 4 {
		t.Fatalf("Ring().Capacity() = %d, want 4", b.Ring().Capacity())
	}
}

func TestInitialiseRejectsBadConfig(t *testing.T) {
	hooks := &countingHooks{}
	b := New(hooks, 0)
	if err := b.Initialise(`not json`); err == nil {
		t.Fatal("Initialise accepted invalid JSON")
	}
}

func TestStartRequiresInitialiseFirst(t *testing.T) {
	hooks := &countingHooks{}
	b := New(hooks, 0)
	if err := b.Start(&fakeRegistrar{}, Callback{}); err == nil {
		t.Fatal("Start succeeded before Initialise")
	}
}

func TestProcessingLoopHandlesPacketsAndDetectsStreamEnd(t *testing.T) {
	hooks := &countingHooks{}
	b := New(hooks, 30*time.Millisecond)
	if err := b.Initialise(`{"packet_size": 64, "nof_cells": 8}`); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	reg := &fakeRegistrar{}
	var callbackCount atomic.Int64
	cb := Callback{Positional: func(data []byte, ts time.Time, seq, streamID uint32) {
		callbackCount.Add(1)
	}}
	if err := b.Start(reg, cb); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		if !b.Ring().Push([]byte{byte(i)}) {
			t.Fatalf("Push %d failed", i)
		}
	}

	deadline := time.Now().Add(time.Second)
	for hooks.handled.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hooks.handled.Load() != 5 {
		t.Fatalf("handled = %d, want 5", hooks.handled.Load())
	}
	if callbackCount.Load() != 5 {
		t.Fatalf("callbackCount = %d, want 5", callbackCount.Load())
	}

	// Give the processing loop enough idle time to observe the
	// pull-timeout-after-progress stream-end boundary.
	deadline = time.Now().Add(time.Second)
	for hooks.streamEnds.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hooks.streamEnds.Load() == 0 {
		t.Fatal("OnStreamEnd was never invoked after traffic went idle")
	}

	b.Stop()
	if !hooks.cleanedUp.Load() {
		t.Fatal("CleanUp was not invoked by Stop")
	}
	if b.IsRunning() {
		t.Fatal("IsRunning() true after Stop")
	}
}

func TestDiagnosticsCallbackIsInvoked(t *testing.T) {
	hooks := &countingHooks{}
	b := New(hooks, 30*time.Millisecond)
	if err := b.Initialise(`{"packet_size": 8, "nof_cells": 2}`); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	reg := &fakeRegistrar{}
	if err := b.Start(reg, Callback{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var lastOccupied atomic.Int64
	var calls atomic.Int64
	b.StartDiagnostics(10*time.Millisecond, func(occupied int64, lost uint64) {
		lastOccupied.Store(occupied)
		calls.Add(1)
	})

	b.Ring().Push([]byte("x"))

	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("diagnostics callback was never invoked")
	}

	b.Stop()
}
