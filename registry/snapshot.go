package registry

import "sync/atomic"

// snapshotPtr is a small typed wrapper over atomic.Pointer so zero
// value Registry works without explicit initialization: a nil pointer
// load is treated as an empty registration set.
type snapshotPtr struct {
	p atomic.Pointer[[]Registration]
}

func (s *snapshotPtr) store(regs []Registration) {
	s.p.Store(&regs)
}

func (s *snapshotPtr) load() []Registration {
	v := s.p.Load()
	if v == nil {
		return nil
	}
	return *v
}
