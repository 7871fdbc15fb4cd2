package consumer

import "time"

// Diagnostics is the optional periodic callback ConsumerBase invokes
// with its CellRing's occupied/lost counters (spec.md §4.E "an
// optional diagnostic callback"). occupied mirrors Ring.Occupied,
// lost mirrors Ring.Lost.
type Diagnostics func(occupied int64, lost uint64)

// StartDiagnostics launches a background goroutine that calls fn
// every interval with the current ring occupancy and loss counters,
// until Stop is called. It is independent of the processing
// goroutine and never blocks it.
func (b *Base) StartDiagnostics(interval time.Duration, fn Diagnostics) {
	if fn == nil || interval <= 0 {
		return
	}

	b.mu.Lock()
	r := b.ring
	if b.diagStop != nil {
		b.mu.Unlock()
		return
	}
	b.diagStop = make(chan struct{})
	stop := b.diagStop
	b.mu.Unlock()

	b.diagWG.Add(1)
	go func() {
		defer b.diagWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn(r.Occupied(), r.Lost())
			}
		}
	}()
}

// stopDiagnostics tears down the diagnostics goroutine, if any. Called
// from Stop.
func (b *Base) stopDiagnostics() {
	b.mu.Lock()
	stop := b.diagStop
	b.diagStop = nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
		b.diagWG.Wait()
	}
}
