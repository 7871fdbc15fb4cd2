package capture

import "testing"

func TestPeekSPEADHeaderIDRejectsShortPayload(t *testing.T) {
	if _, ok := PeekSPEADHeaderID([]byte{0x53, 0x04}); ok {
		t.Fatal("PeekSPEADHeaderID accepted a payload shorter than the header word")
	}
}

func TestPeekSPEADHeaderIDRejectsWrongMagic(t *testing.T) {
	payload := make([]byte, speadHeaderLen)
	payload[0] = 0x00
	if _, ok := PeekSPEADHeaderID(payload); ok {
		t.Fatal("PeekSPEADHeaderID accepted a payload without the SPEAD magic byte")
	}
}

func TestPeekSPEADHeaderIDReturnsHeaderWord(t *testing.T) {
	payload := []byte{0x53, 0x04, 0x02, 0x06, 0x00, 0x00, 0x00, 0x03}
	id, ok := PeekSPEADHeaderID(payload)
	if !ok {
		t.Fatal("PeekSPEADHeaderID rejected a well-formed SPEAD header")
	}
	want := uint64(0x5304020600000003)
	if id != want {
		t.Fatalf("id = %#x, want %#x", id, want)
	}
}
