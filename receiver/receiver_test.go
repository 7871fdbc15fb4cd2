package receiver

import (
	"errors"
	"testing"

	"github.com/skalow/daqrx/registry"
)

func TestAddPortCapacity(t *testing.T) {
	r := New()
	for i := 0; i < maxPorts; i++ {
		if err := r.AddPort(uint16(4660 + i)); err != nil {
			t.Fatalf("AddPort %d: %v", i, err)
		}
	}
	if err := r.AddPort(9999); !errors.Is(err, ErrTooManyPorts) {
		t.Fatalf("AddPort past capacity = %v, want ErrTooManyPorts", err)
	}
}

func TestRegisterConsumerRespectsRegistryCapacity(t *testing.T) {
	r := New()
	sink := fakeSink{}
	for i := 0; i < registry.MaxConsumers; i++ {
		if _, err := r.RegisterConsumer(&sink, func([]byte) bool { return true }); err != nil {
			t.Fatalf("RegisterConsumer %d: %v", i, err)
		}
	}
	if _, err := r.RegisterConsumer(&sink, func([]byte) bool { return true }); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("RegisterConsumer past capacity = %v, want ErrRegistryFull", err)
	}
	if got := r.Stats().NofConsumers; got != registry.MaxConsumers {
		t.Fatalf("Stats().NofConsumers = %d, want %d", got, registry.MaxConsumers)
	}
}

func TestUnregisterConsumer(t *testing.T) {
	r := New()
	sink := fakeSink{}
	id, err := r.RegisterConsumer(&sink, func([]byte) bool { return true })
	if err != nil {
		t.Fatalf("RegisterConsumer: %v", err)
	}
	r.UnregisterConsumer(id)
	if got := r.Stats().NofConsumers; got != 0 {
		t.Fatalf("Stats().NofConsumers after unregister = %d, want 0", got)
	}
}

func TestStopWithoutStartFails(t *testing.T) {
	r := New()
	if err := r.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Stop() on unstarted receiver = %v, want ErrNotStarted", err)
	}
}

type fakeSink struct{}

func (fakeSink) Push(data []byte) bool { return true }
