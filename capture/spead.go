package capture

import "encoding/binary"

// speadHeaderLen is the size of the fixed SPEAD header word: a magic
// byte, version byte, item-pointer-width byte, heap-address-width
// byte, reserved bytes, and a 16-bit item count, packed big-endian
// per the public SPEAD specification.
const speadHeaderLen = 8

const speadMagic = 0x53

// PeekSPEADHeaderID reads just the fixed 8-byte SPEAD header word from
// the start of a UDP payload and returns it as a single uint64,
// without decoding any item pointers or payload descriptors. This is
// a cheap, allocation-free helper a predicate can use to branch on
// packet kind (e.g. reject anything that isn't SPEAD-magic'd) before
// handing the payload to a consumer; it is not a SPEAD parser and
// does not replace one (spec.md §1 keeps SPEAD payload parsing out of
// scope).
func PeekSPEADHeaderID(payload []byte) (uint64, bool) {
	if len(payload) < speadHeaderLen {
		return 0, false
	}
	if payload[0] != speadMagic {
		return 0, false
	}
	return binary.BigEndian.Uint64(payload[:speadHeaderLen]), true
}
