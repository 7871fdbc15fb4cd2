// Package spin provides a tiny exponential-backoff spin lock used for
// the cell-level critical sections of the cell ring in the capture
// pipeline. It assumes very short critical sections and bounded
// contention (a handful of capture workers plus one consumer), not a
// fair general-purpose mutex.
package spin

import (
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"
)

// maxWaitIters bounds how long enter spins on relaxed loads before
// falling back to sleeping between polls, so a waiter never pins a
// core indefinitely under pathological contention.
const maxWaitIters = 65536

// maxBackoff caps the exponential backoff spin budget.
const maxBackoff = 1024

// sleepBetweenPolls is how long enter sleeps once it has given up on
// spinning outright.
const sleepBetweenPolls = 500 * time.Microsecond

// Lock is a single boolean spin flag. Its zero value is unlocked.
type Lock struct {
	held atomic.Bool
}

// Enter busy-polls until the lock looks free, then attempts an
// acquire-ordered swap. On contention it backs off exponentially with
// a randomized spin count before eventually sleeping between polls.
func (l *Lock) Enter() {
	backoff := 1
	iters := 0

	for {
		for l.held.Load() {
			iters++
			runtime.Gosched()
			if iters >= maxWaitIters {
				time.Sleep(sleepBetweenPolls)
			}
		}

		if l.held.CompareAndSwap(false, true) {
			return
		}

		spins := rand.IntN(backoff + 1)
		for i := 0; i < spins; i++ {
			pause()
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Leave releases the lock with a release-ordered store.
func (l *Lock) Leave() {
	l.held.Store(false)
}

// pause is a CPU "spin wait" hint. runtime.Gosched is the closest
// portable stand-in available without cgo; on amd64/arm64 the Go
// scheduler itself inserts PAUSE/YIELD on tight loops, so this keeps
// the hot path allocation-free and branch-free.
func pause() {
	runtime.Gosched()
}
