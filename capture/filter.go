//go:build linux

package capture

import (
	"fmt"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// attachFilter assembles a small classic-BPF program that accepts only
// IPv4/UDP frames addressed to destIP and one of ports, and installs it
// on fd with SO_ATTACH_FILTER. Once attached, every frame the kernel
// hands to this socket has already been proven to match; the
// steady-state loop skips its own address/port check
// (KernelFilterActive in Config).
//
// Program layout (fixed instruction indices, referenced below when
// computing jump distances):
//
//	0: load EtherType
//	1: jump-if-not-equal IPv4   -> reject
//	2: load IP protocol byte
//	3: jump-if-not-equal UDP    -> reject
//	4: load destination address
//	5: jump-if-not-equal destIP -> reject
//	6: derive IP header length into X
//	7: load destination port (indirect via X)
//	8..8+len(ports)-1: jump-if-equal port[i] -> accept
//	reject: ret 0
//	accept: ret 0xffff
func attachFilter(fd int, destIP [4]byte, ports []uint16) error {
	if len(ports) == 0 {
		return fmt.Errorf("capture: no destination ports configured for kernel filter")
	}

	want := uint32(destIP[0])<<24 | uint32(destIP[1])<<16 | uint32(destIP[2])<<8 | uint32(destIP[3])

	const portCheckBase = 8
	reject := portCheckBase + len(ports)
	accept := reject + 1

	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: ethTypeIPv4, SkipTrue: uint8(reject - 2)},
		bpf.LoadAbsolute{Off: ethHeaderLen + 9, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: ipProtoUDP, SkipTrue: uint8(reject - 4)},
		bpf.LoadAbsolute{Off: ethHeaderLen + 16, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: want, SkipTrue: uint8(reject - 6)},
		bpf.LoadMemShift{Off: ethHeaderLen},
		bpf.LoadIndirect{Off: ethHeaderLen + 2, Size: 2},
	}

	for i, p := range ports {
		idx := portCheckBase + i
		prog = append(prog, bpf.JumpIf{
			Cond:     bpf.JumpEqual,
			Val:      uint32(p),
			SkipTrue: uint8(accept - idx - 1),
		})
	}
	prog = append(prog, bpf.RetConstant{Val: 0})      // reject
	prog = append(prog, bpf.RetConstant{Val: 0xffff}) // accept

	raw, err := bpf.Assemble(prog)
	if err != nil {
		return fmt.Errorf("capture: assembling kernel filter: %w", err)
	}

	sockFilter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		sockFilter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(sockFilter)),
		Filter: &sockFilter[0],
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return fmt.Errorf("capture: SO_ATTACH_FILTER: %w", err)
	}
	return nil
}
