package capture

import "testing"

func buildUDPv4Frame(dstIP [4]byte, dstPort uint16, payload []byte) []byte {
	frame := make([]byte, ethHeaderLen+minIPHeaderLen+udpHeaderLen+len(payload))
	// EtherType = IPv4
	frame[12] = 0x08
	frame[13] = 0x00

	ip := frame[ethHeaderLen:]
	ip[0] = 0x45 // version 4, IHL 5 (20 bytes, no options)
	ip[9] = ipProtoUDP
	copy(ip[16:20], dstIP[:])

	udp := ip[minIPHeaderLen:]
	udp[2] = byte(dstPort >> 8)
	udp[3] = byte(dstPort)
	udpLen := udpHeaderLen + len(payload)
	udp[4] = byte(udpLen >> 8)
	udp[5] = byte(udpLen)
	copy(udp[udpHeaderLen:], payload)

	return frame
}

func TestParseUDPv4RoundTrip(t *testing.T) {
	want := []byte("spead-payload")
	dstIP := [4]byte{127, 0, 0, 1}
	frame := buildUDPv4Frame(dstIP, 4660, want)

	pkt, ok := parseUDPv4(frame)
	if !ok {
		t.Fatal("parseUDPv4 rejected a well-formed frame")
	}
	if pkt.dstIP != dstIP {
		t.Fatalf("dstIP = %v, want %v", pkt.dstIP, dstIP)
	}
	if pkt.dstPort != 4660 {
		t.Fatalf("dstPort = %d, want 4660", pkt.dstPort)
	}
	if string(pkt.payload) != string(want) {
		t.Fatalf("payload = %q, want %q", pkt.payload, want)
	}
}

func TestParseUDPv4RejectsNonIPv4(t *testing.T) {
	frame := buildUDPv4Frame([4]byte{1, 1, 1, 1}, 1, []byte("x"))
	frame[12], frame[13] = 0x86, 0xDD // EtherType IPv6

	if _, ok := parseUDPv4(frame); ok {
		t.Fatal("parseUDPv4 accepted a non-IPv4 EtherType")
	}
}

func TestParseUDPv4RejectsNonUDP(t *testing.T) {
	frame := buildUDPv4Frame([4]byte{1, 1, 1, 1}, 1, []byte("x"))
	frame[ethHeaderLen+9] = 6 // TCP

	if _, ok := parseUDPv4(frame); ok {
		t.Fatal("parseUDPv4 accepted a non-UDP protocol byte")
	}
}

func TestParseUDPv4RejectsTruncatedFrame(t *testing.T) {
	frame := buildUDPv4Frame([4]byte{1, 1, 1, 1}, 1, []byte("hello"))
	truncated := frame[:ethHeaderLen+minIPHeaderLen+2]

	if _, ok := parseUDPv4(truncated); ok {
		t.Fatal("parseUDPv4 accepted a truncated frame")
	}
}

func TestParseUDPv4RejectsBadUDPLength(t *testing.T) {
	frame := buildUDPv4Frame([4]byte{1, 1, 1, 1}, 1, []byte("hello"))
	udp := frame[ethHeaderLen+minIPHeaderLen:]
	// Claim a UDP length far longer than the captured frame actually holds.
	udp[4], udp[5] = 0xff, 0xff

	if _, ok := parseUDPv4(frame); ok {
		t.Fatal("parseUDPv4 accepted an over-long UDP length field")
	}
}
