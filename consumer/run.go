package consumer

import (
	"runtime"
	"sync"
	"time"

	timecache "github.com/agilira/go-timecache"

	"github.com/skalow/daqrx/internal/rtsched"
)

// packetClock timestamps processed packets via a millisecond-resolution
// cache rather than a time.Now() syscall per cell, since HandlePacket
// runs once per packet on the consumer hot path.
var (
	packetClock     *timecache.TimeCache
	packetClockOnce sync.Once
)

func packetTimestamp() time.Time {
	packetClockOnce.Do(func() {
		packetClock = timecache.NewWithResolution(time.Millisecond)
	})
	return packetClock.CachedTime()
}

// run is the processing-thread body (spec.md §4.E.3): pull one cell
// with a timeout, hand its payload to the active callback, detect the
// end of a stream as a timeout following at least one successful
// pull, and invoke OnStreamEnd at each such boundary.
func (b *Base) run() {
	defer close(b.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	rtsched.Elevate()

	for !b.stopped.Load() {
		madeProgress := false
		for !b.stopped.Load() {
			if !b.processOne() {
				if madeProgress {
					break
				}
				continue
			}
			madeProgress = true
		}
		if b.stopped.Load() {
			return
		}
		b.hooks.OnStreamEnd()
	}
}

// processOne pulls one cell with the configured timeout, hands it to
// the active callback, and releases the cell. It returns false on a
// timeout (no progress this round).
func (b *Base) processOne() bool {
	data, ok := b.ring.PullTimeout(b.pullTimeout)
	if !ok {
		return false
	}

	ts := packetTimestamp()
	seq := uint32(b.sequence.Add(1))
	b.hooks.HandlePacket(data, ts)
	b.cb.invoke(data, ts, seq, uint32(b.id))
	b.ring.PullReady()
	return true
}
