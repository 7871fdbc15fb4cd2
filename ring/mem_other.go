//go:build !linux

package ring

// newSlab falls back to a plain heap allocation on non-Linux
// platforms. Kernel RX-ring capture itself is Linux-only (spec.md
// Non-goals); this fallback exists only so package ring's unit tests
// can run on a developer's non-Linux workstation.
func newSlab(cellSize, nofCells int) []byte {
	size := cellSize * nofCells
	if size <= 0 {
		return make([]byte, 0)
	}
	return make([]byte, size)
}
