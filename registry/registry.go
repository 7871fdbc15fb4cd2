// Package registry holds the small, fixed-capacity set of consumer
// registrations that capture workers demultiplex packets against.
//
// Mutation (register/unregister) happens under a mutex and builds a
// new, fully-populated snapshot slice; the snapshot is then published
// with a single atomic pointer store. Capture workers never take the
// mutex: they load the current snapshot pointer once per frame and
// iterate it, so a registration can never be observed half-written.
package registry

import "sync"

// MaxConsumers is the registry's fixed compile-time capacity.
const MaxConsumers = 6

// Predicate classifies a UDP payload as belonging to a consumer. It
// must be pure, O(a few bytes), thread-safe (called concurrently by
// every capture worker), and must not retain the slice it is given.
type Predicate func(payload []byte) bool

// Sink is where a registered consumer's matched packets are copied.
type Sink interface {
	Push(data []byte) bool
}

// Registration is one (id, sink, predicate) triple.
type Registration struct {
	ID        int
	Sink      Sink
	Predicate Predicate
}

// Registry is the receiver's consumer set.
type Registry struct {
	mu       sync.Mutex
	nextID   int
	current  []Registration // protected by mu; never mutated in place after publish
	snapshot snapshotPtr
}

// Register appends a new consumer registration, returning its id. It
// fails if the registry is already at MaxConsumers.
func (r *Registry) Register(sink Sink, pred Predicate) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.current) >= MaxConsumers {
		return 0, false
	}

	r.nextID++
	next := make([]Registration, len(r.current), len(r.current)+1)
	copy(next, r.current)
	next = append(next, Registration{ID: r.nextID, Sink: sink, Predicate: pred})

	r.current = next
	r.snapshot.store(next)
	return r.nextID, true
}

// Unregister removes the registration with the given id, if present.
func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Registration, 0, len(r.current))
	for _, reg := range r.current {
		if reg.ID != id {
			next = append(next, reg)
		}
	}
	r.current = next
	r.snapshot.store(next)
}

// Count returns the number of currently-registered consumers.
func (r *Registry) Count() int {
	return len(r.snapshot.load())
}

// Snapshot returns the live registration set. It never blocks on the
// mutation mutex: capture workers call this once per frame and range
// over the result, which is never mutated after publication.
func (r *Registry) Snapshot() []Registration {
	return r.snapshot.load()
}
