//go:build linux

// Package capture implements the per-worker kernel-mapped RX ring:
// opening an AF_PACKET/TPACKET_V3 socket, mmap'ing its block ring,
// and draining frames into registered consumer predicates. This is
// the capture half of the two-stage concurrency engine described in
// spec.md §1; the hand-off half lives in package ring.
//
// Grounded on the gvisor-ligolo fdbased PACKET_MMAP dispatcher for the
// block/frame header layout and polling idiom, and on the AF_XDP
// adaptive-backoff steady-state loop for the busy/idle shape of Run.
package capture

import (
	"encoding/binary"
	"fmt"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/internal/rtsched"
	"github.com/skalow/daqrx/registry"
)

// Config parameterizes one worker's RX ring.
type Config struct {
	Interface      string
	DestIP         net.IP // IPv4 only
	Ports          []uint16
	FrameSize      int
	FramesPerBlock int
	NofBlocks      int
	RetireTimeout  time.Duration

	// FanoutGroup, when non-zero, enables PACKET_FANOUT_CPU across
	// all workers sharing the same group id (derived from the
	// process id by the receiver that owns this worker's siblings).
	FanoutGroup uint16

	// KernelFilterActive tells the steady-state loop that a
	// classic-BPF filter has already been attached to the socket, so
	// frames reaching userspace are known-good and the per-packet
	// address/port check can be skipped.
	KernelFilterActive bool

	// CPU, when >= 0, pins this worker's OS thread to that CPU after
	// LockOSThread. -1 leaves affinity unset; the zero value pins to
	// CPU 0, so callers that want no pinning set -1 explicitly (as the
	// receiver does).
	CPU int
}

// Stats are the counters a Receiver aggregates across its workers.
type Stats struct {
	ProcessedFrames atomic.Uint64
	ProcessedBytes  atomic.Uint64
	LostPackets     atomic.Uint64
}

// Worker owns one AF_PACKET socket, its mmap'd RX ring, and the
// goroutine that drains it.
type Worker struct {
	cfg Config

	fd        int
	ring      []byte
	blockSize int
	nofBlocks int
	blockIdx  int

	destIPv4 [4]byte
	ports    map[uint16]struct{}

	registry *registry.Registry
	stats    *Stats

	stopping atomic.Bool
	done     chan struct{}
}

// NewWorker opens and configures one capture worker's socket and RX
// ring. It does not start draining packets; call Run for that.
func NewWorker(cfg Config, reg *registry.Registry, stats *Stats) (*Worker, error) {
	if len(cfg.DestIP.To4()) != net.IPv4len {
		return nil, fmt.Errorf("capture: destination address %v is not IPv4", cfg.DestIP)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, fmt.Errorf("capture: opening AF_PACKET socket: %w", err)
	}

	w := &Worker{
		cfg:       cfg,
		fd:        fd,
		nofBlocks: cfg.NofBlocks,
		registry:  reg,
		stats:     stats,
		ports:     make(map[uint16]struct{}, len(cfg.Ports)),
		done:      make(chan struct{}),
	}
	copy(w.destIPv4[:], cfg.DestIP.To4())
	for _, p := range cfg.Ports {
		w.ports[p] = struct{}{}
	}

	if err := w.setup(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

func (w *Worker) setup() error {
	const rcvBufBytes = 512 * 1024 * 1024
	if err := unix.SetsockoptInt(w.fd, unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, rcvBufBytes); err != nil {
		// SO_RCVBUFFORCE requires CAP_NET_ADMIN; fall back to the
		// unprivileged SO_RCVBUF, which the kernel will still cap to
		// a system maximum rather than fail outright.
		if err := unix.SetsockoptInt(w.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufBytes); err != nil {
			return fmt.Errorf("capture: enlarging receive buffer: %w", err)
		}
	}

	// Best-effort: skip kernel-side checksum verification on RX so a
	// correctly-addressed but checksum-incomplete test packet isn't
	// silently dropped before it reaches userspace.
	_ = unix.SetsockoptInt(w.fd, unix.SOL_SOCKET, unix.SO_NO_CHECK, 1)

	if err := unix.SetsockoptInt(w.fd, unix.SOL_PACKET, unix.PACKET_VERSION, unix.TPACKET_V3); err != nil {
		return fmt.Errorf("capture: selecting TPACKET_V3: %w", err)
	}

	iface, err := net.InterfaceByName(w.cfg.Interface)
	if err != nil {
		return fmt.Errorf("capture: resolving interface %q: %w", w.cfg.Interface, err)
	}

	if w.cfg.KernelFilterActive {
		if err := attachFilter(w.fd, w.destIPv4, w.cfg.Ports); err != nil {
			return fmt.Errorf("capture: attaching kernel filter: %w", err)
		}
	}

	if err := w.installRing(); err != nil {
		return err
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(w.fd, sa); err != nil {
		return fmt.Errorf("capture: binding to interface %q: %w", w.cfg.Interface, err)
	}

	if w.cfg.FanoutGroup != 0 {
		fanoutVal := int(w.cfg.FanoutGroup) | (unix.PACKET_FANOUT_CPU << 16)
		if err := unix.SetsockoptInt(w.fd, unix.SOL_PACKET, unix.PACKET_FANOUT, fanoutVal); err != nil {
			return fmt.Errorf("capture: joining fanout group: %w", err)
		}
	}

	return nil
}

func (w *Worker) installRing() error {
	frameSize := roundUp(w.cfg.FrameSize, 256)
	blockSize := w.cfg.FramesPerBlock * frameSize

	retireTov := w.cfg.RetireTimeout
	if retireTov <= 0 {
		retireTov = 60 * time.Millisecond
	}

	req := unix.TpacketReq3{
		Block_size:       uint32(blockSize),
		Block_nr:         uint32(w.cfg.NofBlocks),
		Frame_size:       uint32(frameSize),
		Frame_nr:         uint32(blockSize / frameSize * w.cfg.NofBlocks),
		Retire_blk_tov:   uint32(retireTov.Milliseconds()),
		Feature_req_word: unix.TP_FT_REQ_FILL_RXHASH,
	}
	if err := unix.SetsockoptTpacketReq3(w.fd, unix.SOL_PACKET, unix.PACKET_RX_RING, &req); err != nil {
		return fmt.Errorf("capture: installing RX ring: %w", err)
	}

	total := blockSize * w.cfg.NofBlocks
	ringMem, err := unix.Mmap(w.fd, 0, total, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_LOCKED|unix.MAP_NORESERVE)
	if err != nil {
		ringMem, err = unix.Mmap(w.fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("capture: mmap'ing RX ring: %w", err)
		}
	}

	w.ring = ringMem
	w.blockSize = blockSize
	return nil
}

// Run drains the RX ring until Stop is called. It is intended to run
// on its own goroutine, pinned to an OS thread so the SCHED_FIFO/CPU
// affinity elevation below actually applies to the thread doing the
// capture work.
func (w *Worker) Run() {
	defer close(w.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	rtsched.Elevate()
	rtsched.SetAffinity(w.cfg.CPU)

	for !w.stopping.Load() {
		block := w.blockAt(w.blockIdx)

		for block.status()&tpStatusUser == 0 {
			if w.stopping.Load() {
				return
			}
			w.pollOnce(100 * time.Millisecond)
		}

		w.drainBlock(block)

		block.setStatus(tpStatusKernel)
		w.blockIdx = (w.blockIdx + 1) % w.nofBlocks
	}
}

// Stop requests that Run exit at the next poll wakeup (<=100ms).
func (w *Worker) Stop() {
	w.stopping.Store(true)
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.done
}

// Close tears down the worker's socket and ring mapping. Call only
// after Wait has returned.
func (w *Worker) Close() error {
	if w.ring != nil {
		_ = unix.Munmap(w.ring)
		w.ring = nil
	}
	return unix.Close(w.fd)
}

func (w *Worker) blockAt(i int) blockHeader {
	start := i * w.blockSize
	return blockHeader(w.ring[start : start+w.blockSize])
}

func (w *Worker) pollOnce(timeout time.Duration) {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN | unix.POLLERR}}
	_, _ = unix.Poll(fds, int(timeout.Milliseconds()))
}

func (w *Worker) drainBlock(block blockHeader) {
	numPkts := block.numPkts()
	offset := block.firstPktOffset()

	for i := uint32(0); i < numPkts; i++ {
		frame := frameHeader(block[offset:])
		w.handleFrame(frame)
		next := frame.nextOffset()
		if next == 0 {
			break
		}
		offset += next
	}
}

func (w *Worker) handleFrame(frame frameHeader) {
	defer func() {
		// A predicate or sink must never take capture down; isolate
		// and drop the packet per spec.md §7(iv).
		if r := recover(); r != nil {
			daqlog.Errorf("capture: recovered from panic handling frame: %v", r)
		}
	}()

	mac := frame.mac()
	w.stats.ProcessedFrames.Add(1)
	w.stats.ProcessedBytes.Add(uint64(len(mac)))

	var payload []byte
	if w.cfg.KernelFilterActive {
		// The kernel filter already proved this is UDP to a
		// configured address/port; skip the userspace address/port
		// check and only locate the UDP payload (parseUDPv4 still
		// drops malformed frames).
		pkt, ok := parseUDPv4(mac)
		if !ok {
			return
		}
		payload = pkt.payload
	} else {
		pkt, ok := parseUDPv4(mac)
		if !ok {
			return
		}
		if pkt.dstIP != w.destIPv4 {
			return
		}
		if _, ok := w.ports[pkt.dstPort]; !ok {
			return
		}
		payload = pkt.payload
	}

	regs := w.registry.Snapshot()
	for _, reg := range regs {
		if !safePredicate(reg.Predicate, payload) {
			continue
		}
		if !reg.Sink.Push(payload) {
			w.stats.LostPackets.Add(1)
		}
	}
}

func safePredicate(pred registry.Predicate, payload []byte) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			daqlog.Errorf("capture: recovered from panic in predicate: %v", r)
			matched = false
		}
	}()
	return pred(payload)
}

func roundUp(n, multiple int) int {
	if n%multiple == 0 {
		return n
	}
	return ((n / multiple) + 1) * multiple
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}
