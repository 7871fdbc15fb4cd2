// Package ring implements the fixed-capacity, single-producer-biased,
// multi-producer-tolerant cell ring that hands packets off from
// capture workers to a consumer's processing goroutine.
//
// A Ring is owned by exactly one consumer. Many capture workers may
// push concurrently; exactly one goroutine pulls. Producers never
// block: once the ring is full, Push reports failure and increments
// a lost counter rather than waiting for the consumer to catch up.
package ring

import (
	"math/bits"
	"time"

	"github.com/skalow/daqrx/spin"
)

// cacheLine is the assumed cache line size used to pad cell payload
// storage so concurrent producers writing to adjacent cells don't
// false-share a line with the consumer or with each other.
const cacheLine = 64

// pullPollInterval is how long Pull sleeps between spin attempts once
// it has observed the ring is completely empty, to avoid pinning a
// core while idle.
const pullPollInterval = 100 * time.Microsecond

// cell is one fixed-capacity payload slot.
//
// size is the produce/consume handshake: 0 means empty, >0 means
// filled. The lock is held for the entirety of a produce or a
// consume, never across both.
type cell struct {
	data []byte
	size sizeState
	lock spin.Lock
}

// Ring is a fixed-capacity power-of-two ring of fixed-size cells.
type Ring struct {
	cells    []cell
	slab     []byte
	mask     uint64
	cellSize int

	producer producerSeq // next cell index to hand to a claiming producer
	consumer producerSeq // index of the cell the consumer is currently waiting on
	occupied occupiedCount
	lost     lostCount
}

// New constructs a Ring with the requested cell size and cell count,
// rounding cellSize up to a cache-line multiple and nofCells up to the
// next power of two so masking replaces modulo on the hot path.
func New(cellSize, nofCells int) *Ring {
	if cellSize <= 0 {
		cellSize = 1
	}
	if nofCells <= 0 {
		nofCells = 1
	}

	cellSize = roundUpCacheLine(cellSize)
	n := nextPow2(uint64(nofCells))

	r := &Ring{
		cells:    make([]cell, n),
		mask:     n - 1,
		cellSize: cellSize,
	}
	r.slab = newSlab(cellSize, int(n))
	for i := range r.cells {
		r.cells[i].data = r.slab[i*cellSize : (i+1)*cellSize : (i+1)*cellSize]
	}
	return r
}

// Capacity returns the ring's cell count, a power of two.
func (r *Ring) Capacity() int {
	return len(r.cells)
}

// CellSize returns the per-cell payload capacity in bytes.
func (r *Ring) CellSize() int {
	return r.cellSize
}

// Occupied returns the number of currently filled cells.
func (r *Ring) Occupied() int64 {
	return r.occupied.load()
}

// Lost returns the number of push attempts rejected because the ring
// was full. The counter is monotonic; it is never reset internally —
// a diagnostics caller that wants a rate should snapshot and subtract.
func (r *Ring) Lost() uint64 {
	return r.lost.load()
}

// Push attempts to deposit a copy of data into the next producer
// cell. It returns false, without blocking, if the ring is full or if
// data does not fit in a cell; in the full case it increments Lost.
//
// Many producers may call Push concurrently.
func (r *Ring) Push(data []byte) bool {
	if len(data) == 0 || len(data) > r.cellSize {
		return false
	}

	capacity := int64(len(r.cells))
	if r.occupied.load() >= capacity {
		r.lost.add(1)
		return false
	}

	// Reserve a slot against the capacity budget before claiming an
	// index: this is what keeps the producer-claim index always
	// pointing at a cell the consumer has already freed, without the
	// "skip a still-full cell and retry" dance the original source
	// used (see the CellRing Open Question in the design notes).
	occ := r.occupied.add(1)
	if occ > capacity {
		r.occupied.add(-1)
		r.lost.add(1)
		return false
	}

	idx := r.producer.next() & r.mask
	c := &r.cells[idx]

	c.lock.Enter()
	copy(c.data, data)
	c.size.store(uint64(len(data)))
	c.lock.Leave()
	return true
}

// Pull blocks until a cell is available and returns its payload. The
// returned slice aliases internal storage and is only valid until the
// matching call to PullReady; the caller must not retain it.
func (r *Ring) Pull() []byte {
	for {
		if data, ok := r.tryPull(); ok {
			return data
		}
		if r.occupied.load() == 0 {
			time.Sleep(pullPollInterval)
		}
	}
}

// PullTimeout behaves like Pull but gives up and returns (nil, false)
// once timeout has elapsed without a cell becoming available.
func (r *Ring) PullTimeout(timeout time.Duration) ([]byte, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if data, ok := r.tryPull(); ok {
			return data, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		if r.occupied.load() == 0 {
			time.Sleep(pullPollInterval)
		}
	}
}

// PullReady releases the cell returned by the most recent Pull or
// PullTimeout, making it available to producers again.
func (r *Ring) PullReady() {
	idx := r.consumer.peek() & r.mask
	c := &r.cells[idx]
	c.size.store(0)
	c.lock.Leave()
	r.consumer.next()
	r.occupied.add(-1)
}

// tryPull attempts one non-blocking look at the current consumer
// cell. The cell's lock is left held on success; the caller must call
// PullReady to release it.
func (r *Ring) tryPull() ([]byte, bool) {
	idx := r.consumer.peek() & r.mask
	c := &r.cells[idx]

	c.lock.Enter()
	size := c.size.load()
	if size == 0 {
		c.lock.Leave()
		return nil, false
	}
	return c.data[:size], true
}

func roundUpCacheLine(n int) int {
	if n%cacheLine == 0 {
		return n
	}
	return ((n / cacheLine) + 1) * cacheLine
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}
