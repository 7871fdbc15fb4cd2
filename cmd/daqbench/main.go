// Command daqbench is the CLI benchmark/smoke tool for the capture
// core (spec.md §6): it starts a Receiver against a real interface
// and address, registers one consumer that only counts packets, runs
// until interrupted, and reports throughput and loss on exit.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/receiver"
	"github.com/skalow/daqrx/registry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("daqbench", flag.ContinueOnError)
	workers := fs.Int("t", 1, "number of capture worker threads")
	iface := fs.String("i", "lo", "network interface to bind")
	ip := fs.String("p", "127.0.0.1", "destination IPv4 address to accept")
	frameSize := fs.Int("f", 9000, "RX ring frame size in bytes")
	framesPerBlock := fs.Int("b", 32, "RX ring frames per block")
	nofBlocks := fs.Int("n", 64, "RX ring block count")
	port := fs.Int("port", 4660, "UDP destination port to accept")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *port <= 0 || *port > 65535 {
		fmt.Fprintf(os.Stderr, "daqbench: invalid port %d\n", *port)
		return 2
	}

	rcv := receiver.New()
	if err := rcv.AddPort(uint16(*port)); err != nil {
		fmt.Fprintf(os.Stderr, "daqbench: %v\n", err)
		return 2
	}

	var counted counter
	if _, err := rcv.RegisterConsumer(&counted, func([]byte) bool { return true }); err != nil {
		fmt.Fprintf(os.Stderr, "daqbench: %v\n", err)
		return 2
	}

	cfg := receiver.Config{
		Interface:      *iface,
		IP:             *ip,
		FrameSize:      *frameSize,
		FramesPerBlock: *framesPerBlock,
		NofBlocks:      *nofBlocks,
		NofWorkers:     *workers,
	}
	if err := rcv.Start(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "daqbench: starting receiver: %v\n", err)
		return 1
	}
	rcv.StartStats(5 * time.Second)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := rcv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "daqbench: stopping receiver: %v\n", err)
		return 1
	}

	stats := rcv.Stats()
	daqlog.Infof("daqbench: done, counted=%d frames=%d bytes=%d lost=%d",
		counted.count(), stats.ProcessedFrames, stats.ProcessedBytes, stats.LostPackets)
	return 0
}

// counter is a no-op consumer sink used by the benchmark tool: it
// just counts successful pushes rather than draining them through a
// CellRing and processing thread, since daqbench measures capture
// throughput, not consumer processing. Push is called concurrently
// from every capture worker goroutine, so n is an atomic counter.
type counter struct {
	n atomic.Int64
}

func (c *counter) Push(data []byte) bool {
	c.n.Add(1)
	return true
}

func (c *counter) count() int64 { return c.n.Load() }

var _ registry.Sink = (*counter)(nil)
