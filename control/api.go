package control

import (
	"path/filepath"
	"plugin"
	"strings"
	"time"

	"github.com/skalow/daqrx/consumer"
	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/receiver"
)

// StartReceiver constructs and starts the process-wide receiver
// (spec.md §4.F start_receiver). Ports must already have been added
// with AddReceiverPort.
func StartReceiver(cfg receiver.Config) Result {
	s := state()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rcv == nil {
		s.rcv = receiver.New()
	}
	if err := s.rcv.Start(cfg); err != nil {
		daqlog.Errorf("control: start_receiver: %v", err)
		return Failure
	}
	s.rcv.StartStats(statsInterval)
	return Success
}

// StartReceiverThreaded is equivalent to StartReceiver: every capture
// worker and consumer processing thread is already its own goroutine
// pinned to an OS thread, so there is no separate non-threaded mode
// to offer in this rendering (spec.md §4.F names both entry points;
// the source's distinction between them does not apply to a
// goroutine-based capture core).
func StartReceiverThreaded(cfg receiver.Config) Result {
	return StartReceiver(cfg)
}

// StopReceiver stops the process-wide receiver.
func StopReceiver() Result {
	s := state()
	s.mu.Lock()
	rcv := s.rcv
	s.mu.Unlock()

	if rcv == nil {
		return ReceiverUninitialised
	}
	if err := rcv.Stop(); err != nil {
		daqlog.Errorf("control: stop_receiver: %v", err)
		return Failure
	}
	return Success
}

// AddReceiverPort appends a UDP destination port to the process-wide
// receiver's port set. The receiver is created lazily so ports may be
// added before the first StartReceiver call.
func AddReceiverPort(port uint16) Result {
	s := state()
	s.mu.Lock()
	if s.rcv == nil {
		s.rcv = receiver.New()
	}
	rcv := s.rcv
	s.mu.Unlock()

	if err := rcv.AddPort(port); err != nil {
		daqlog.Errorf("control: add_receiver_port: %v", err)
		return Failure
	}
	return Success
}

// LoadConsumer opens the shared module at path and resolves symbol as
// a zero-argument Factory, tracking the resulting instance under a
// name derived from the module's base filename (spec.md §4.F/§6:
// "load_consumer(module, symbol) loads a shared module and resolves a
// zero-argument factory symbol that returns a new consumer
// instance"). It returns the name the instance is tracked under,
// which callers pass to InitialiseConsumer/StartConsumer/StopConsumer.
func LoadConsumer(path, symbol string) (string, Result) {
	p, err := plugin.Open(path)
	if err != nil {
		daqlog.Errorf("control: load_consumer: opening %q: %v", path, err)
		return "", Failure
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		daqlog.Errorf("control: load_consumer: resolving symbol %q in %q: %v", symbol, path, err)
		return "", Failure
	}
	factory, ok := sym.(Factory)
	if !ok {
		if fn, ok := sym.(func() PluginConsumer); ok {
			factory = fn
		} else {
			daqlog.Errorf("control: load_consumer: symbol %q in %q is not a consumer factory", symbol, path)
			return "", Failure
		}
	}

	name := consumerName(path)
	s := state()
	if err := s.putConsumer(name, &consumerHandle{instance: factory()}); err != nil {
		daqlog.Errorf("control: load_consumer: %v", err)
		return "", Failure
	}
	return name, Success
}

func consumerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// InitialiseConsumer parses jsonConfig and invokes the named
// consumer's Initialise hook (spec.md §4.F/§6).
func InitialiseConsumer(name, jsonConfig string) Result {
	s := state()
	h, ok := s.getConsumer(name)
	if !ok {
		return ConsumerNotInitialised
	}
	if h.initialised {
		return ConsumerAlreadyInitialised
	}
	if err := h.instance.Initialise(jsonConfig); err != nil {
		daqlog.Errorf("control: initialise_consumer(%q): %v", name, err)
		return Failure
	}
	h.initialised = true
	return Success
}

// StartConsumer starts the named consumer's processing thread with a
// positional callback installed (spec.md §4.F start_consumer).
func StartConsumer(name string, cb func(data []byte, timestamp time.Time, sequence, streamID uint32)) Result {
	return startConsumer(name, consumer.Callback{Positional: cb})
}

// StartConsumerDynamic starts the named consumer's processing thread
// with a user-context callback installed (spec.md §4.F
// start_consumer_dynamic — the "dynamic" variant selects the
// user-context callback shape rather than the positional one, per
// the two-callback-shapes unification in §9 Design Notes).
func StartConsumerDynamic(name string, cb func(data []byte, timestamp time.Time, userCtx any), userCtx any) Result {
	return startConsumer(name, consumer.Callback{Context: cb, UserCtx: userCtx})
}

func startConsumer(name string, cb consumer.Callback) Result {
	s := state()
	h, ok := s.getConsumer(name)
	if !ok {
		return ConsumerNotInitialised
	}
	if !h.initialised {
		return ConsumerNotInitialised
	}
	if h.running {
		return ConsumerAlreadyInitialised
	}

	s.mu.Lock()
	rcv := s.rcv
	s.mu.Unlock()
	if rcv == nil {
		return ReceiverUninitialised
	}

	if err := h.instance.Start(rcv, cb); err != nil {
		daqlog.Errorf("control: start_consumer(%q): %v", name, err)
		return Failure
	}
	h.running = true
	return Success
}

// StopConsumer stops the named consumer.
func StopConsumer(name string) Result {
	s := state()
	h, ok := s.getConsumer(name)
	if !ok {
		return ConsumerNotInitialised
	}
	if !h.running {
		return ConsumerNotInitialised
	}
	h.instance.Stop()
	h.running = false
	return Success
}

