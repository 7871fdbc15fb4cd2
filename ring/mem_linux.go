//go:build linux

package ring

import (
	"golang.org/x/sys/unix"
)

// newSlab allocates the contiguous backing storage for a ring's cell
// payloads. It prefers a huge-page-backed anonymous mapping, locked
// into memory, and falls back to a plain heap slice when huge pages
// aren't available — the fallback path must never fail, per the
// process requirements in spec.md §6.
func newSlab(cellSize, nofCells int) []byte {
	size := cellSize * nofCells
	if size <= 0 {
		return make([]byte, 0)
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_LOCKED | unix.MAP_HUGETLB
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err == nil {
		return mem
	}

	flags = unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_LOCKED
	mem, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err == nil {
		return mem
	}

	return make([]byte, size)
}
