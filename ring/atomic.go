package ring

import "sync/atomic"

// The types below are thin, padded wrappers over the primitive atomics
// used by Ring. Padding each to its own cache line avoids false
// sharing between the producer-side counters (producer, occupied,
// lost) and the consumer-side one (consumer), mirroring the
// AtomicPaddedInt64 idiom used for MPSC cursors in zephyroslite.

type paddedUint64 struct {
	v   atomic.Uint64
	_   [cacheLine - 8]byte
}

// sizeState is a cell's produce/consume handshake word: 0 is empty,
// any other value is the filled payload length.
type sizeState struct {
	paddedUint64
}

func (s *sizeState) load() uint64      { return s.v.Load() }
func (s *sizeState) store(n uint64)    { s.v.Store(n) }

// producerSeq is a monotonically increasing claim counter. next
// returns the previously-next value and advances it by one; peek
// returns the current value without advancing.
type producerSeq struct {
	paddedUint64
}

func (p *producerSeq) next() uint64 { return p.v.Add(1) - 1 }
func (p *producerSeq) peek() uint64 { return p.v.Load() }

// occupiedCount tracks how many cells are currently filled.
type occupiedCount struct {
	v atomic.Int64
	_ [cacheLine - 8]byte
}

func (o *occupiedCount) load() int64         { return o.v.Load() }
func (o *occupiedCount) add(delta int64) int64 { return o.v.Add(delta) }

// lostCount tracks push attempts rejected because the ring was full.
// It is observable but never reset internally.
type lostCount struct {
	v atomic.Uint64
	_ [cacheLine - 8]byte
}

func (l *lostCount) load() uint64    { return l.v.Load() }
func (l *lostCount) add(delta uint64) { l.v.Add(delta) }
