package collector

import (
	"sync"

	"github.com/robertof/go-hygrometer-scanner/device"
)

// SeenSet tracks the devices currently present.
type SeenSet struct {
	mu    sync.Mutex
	addrs map[device.Address]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{
		addrs: make(map[device.Address]struct{}),
	}
}

// Add marks addr as present and reports whether it was absent before.
func (s *SeenSet) Add(addr device.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addrs[addr]; ok {
		return false
	}

	s.addrs[addr] = struct{}{}

	return true
}

// Remove forgets addr and reports whether it was present.
func (s *SeenSet) Remove(addr device.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addrs[addr]; !ok {
		return false
	}

	delete(s.addrs, addr)

	return true
}

func (s *SeenSet) Contains(addr device.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.addrs[addr]

	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.addrs)
}
