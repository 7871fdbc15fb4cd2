package ring

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	cases := []struct{ requested, want int }{
		{1, 1}, {2, 2}, {3, 4}, {5, 8}, {64, 64}, {65, 128},
	}
	for _, tc := range cases {
		r := New(64, tc.requested)
		if r.Capacity() != tc.want {
			t.Errorf("New(_, %d).Capacity() = %d, want %d", tc.requested, r.Capacity(), tc.want)
		}
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	r := New(32, 8)
	payload := []byte("hello cell ring")

	if !r.Push(payload) {
		t.Fatal("Push failed on empty ring")
	}

	got := r.Pull()
	if !bytes.Equal(got, payload) {
		t.Fatalf("Pull() = %q, want %q", got, payload)
	}
	r.PullReady()

	if r.Occupied() != 0 {
		t.Fatalf("Occupied() = %d after drain, want 0", r.Occupied())
	}
}

func TestFullRingRejectsPushAndCountsLost(t *testing.T) {
	r := New(16, 4)
	for i := 0; i < 4; i++ {
		if !r.Push([]byte{byte(i)}) {
			t.Fatalf("Push %d unexpectedly failed on non-full ring", i)
		}
	}

	if r.Push([]byte{0xff}) {
		t.Fatal("Push succeeded on a full ring")
	}
	if r.Lost() != 1 {
		t.Fatalf("Lost() = %d, want 1", r.Lost())
	}

	// Draining one cell must not have been corrupted by the rejected push.
	got := r.Pull()
	if got[0] != 0 {
		t.Fatalf("first drained cell = %v, want [0]", got)
	}
	r.PullReady()
}

func TestOccupiedMatchesPushesMinusPulls(t *testing.T) {
	r := New(16, 16)
	for i := 0; i < 5; i++ {
		r.Push([]byte{byte(i)})
	}
	if r.Occupied() != 5 {
		t.Fatalf("Occupied() = %d, want 5", r.Occupied())
	}
	for i := 0; i < 3; i++ {
		r.Pull()
		r.PullReady()
	}
	if r.Occupied() != 2 {
		t.Fatalf("Occupied() = %d after 3 pulls, want 2", r.Occupied())
	}
}

func TestConcurrentProducersNeverExceedCapacityOrCorrupt(t *testing.T) {
	const cells = 8
	const producers = 6
	const perProducer = 2000
	const total = producers * perProducer

	r := New(8, cells)

	var successful atomic.Int64
	var consumed atomic.Int64
	stop := make(chan struct{})
	var consumerWG sync.WaitGroup
	consumerWG.Add(1)
	go func() {
		defer consumerWG.Done()
		for {
			select {
			case <-stop:
				// Drain whatever is left without blocking forever.
				for {
					if data, ok := r.PullTimeout(5 * time.Millisecond); ok {
						_ = data
						r.PullReady()
						consumed.Add(1)
					} else {
						return
					}
				}
			default:
				if data, ok := r.PullTimeout(5 * time.Millisecond); ok {
					_ = data
					r.PullReady()
					consumed.Add(1)
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if r.Push([]byte{byte(p), byte(i), byte(i >> 8)}) {
					successful.Add(1)
				}
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	consumerWG.Wait()

	if got := successful.Load() + int64(r.Lost()); got != total {
		t.Fatalf("successful(%d) + lost(%d) = %d, want %d", successful.Load(), r.Lost(), got, total)
	}
	if consumed.Load() != successful.Load() {
		t.Fatalf("consumed = %d, want %d (== successful pushes)", consumed.Load(), successful.Load())
	}
}

func TestSlowConsumerDropsRatherThanBlocks(t *testing.T) {
	r := New(4, 8)
	const n = 1000

	var successful int
	for i := 0; i < n; i++ {
		if r.Push([]byte{byte(i)}) {
			successful++
		}
		if i%50 == 0 {
			// Simulate an occasional slow consumer drain.
			if data, ok := r.PullTimeout(time.Millisecond); ok {
				_ = data
				r.PullReady()
			}
		}
	}

	if uint64(successful)+r.Lost() != n {
		t.Fatalf("successful(%d) + lost(%d) != %d", successful, r.Lost(), n)
	}
}

func TestPullTimeoutExpiresOnEmptyRing(t *testing.T) {
	r := New(16, 4)
	start := time.Now()
	_, ok := r.PullTimeout(20 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("PullTimeout succeeded on an empty ring")
	}
	if elapsed < 20*time.Millisecond {
		t.Fatalf("PullTimeout returned after %v, want >= 20ms", elapsed)
	}
}

func TestZeroSizePushIsRejected(t *testing.T) {
	r := New(16, 4)
	if r.Push(nil) {
		t.Fatal("Push(nil) succeeded; zero-sized pushes must be rejected")
	}
	if r.Push([]byte{}) {
		t.Fatal("Push([]byte{}) succeeded; zero-sized pushes must be rejected")
	}
}
