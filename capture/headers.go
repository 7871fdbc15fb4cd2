package capture

import "encoding/binary"

const (
	ethHeaderLen  = 14
	ethTypeIPv4   = 0x0800
	ipProtoUDP    = 17
	udpHeaderLen  = 8
	minIPHeaderLen = 20
)

// udpPacket is the result of validating and slicing one captured
// Ethernet frame down to its UDP payload.
type udpPacket struct {
	dstIP   [4]byte
	dstPort uint16
	payload []byte
}

// parseUDPv4 walks a captured Ethernet frame's Ethernet/IPv4/UDP
// headers in place and returns the UDP payload. ok is false for any
// frame that isn't a well-formed IPv4/UDP datagram — truncated
// captures, non-IP traffic, IP options pushing the UDP header past
// what was captured, and so on are all treated as "not our packet"
// rather than as errors; the worker simply continues to the next
// frame (spec.md §7 propagation policy).
func parseUDPv4(frame []byte) (udpPacket, bool) {
	if len(frame) < ethHeaderLen+minIPHeaderLen {
		return udpPacket{}, false
	}

	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != ethTypeIPv4 {
		return udpPacket{}, false
	}

	ip := frame[ethHeaderLen:]
	versionIHL := ip[0]
	ihl := int(versionIHL&0x0f) * 4
	if ihl < minIPHeaderLen || len(ip) < ihl+udpHeaderLen {
		return udpPacket{}, false
	}
	if ip[9] != ipProtoUDP {
		return udpPacket{}, false
	}

	var dst [4]byte
	copy(dst[:], ip[16:20])

	udp := ip[ihl:]
	dstPort := binary.BigEndian.Uint16(udp[2:4])
	udpLen := binary.BigEndian.Uint16(udp[4:6])
	if int(udpLen) < udpHeaderLen || len(udp) < int(udpLen) {
		return udpPacket{}, false
	}

	return udpPacket{
		dstIP:   dst,
		dstPort: dstPort,
		payload: udp[udpHeaderLen:udpLen],
	}, true
}
