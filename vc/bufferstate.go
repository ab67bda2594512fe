package vc

import (
	"fmt"

	"github.com/sarchlab/loom/noc"
)

// A BufferState is the sender-side, credit-counting view of the VC buffers
// of one downstream input port. A router keeps one per output port; a
// traffic source keeps one for the router input it injects into.
type BufferState struct {
	name  string
	depth int

	inUse     []bool
	occupancy []int
}

// NewBufferState creates a tracker for numVCs downstream virtual channels of
// the given depth.
func NewBufferState(name string, numVCs, depth int) *BufferState {
	return &BufferState{
		name:      name,
		depth:     depth,
		inUse:     make([]bool, numVCs),
		occupancy: make([]int, numVCs),
	}
}

// Name returns the name of the tracker.
func (s *BufferState) Name() string {
	return s.name
}

// NumVCs returns the number of tracked virtual channels.
func (s *BufferState) NumVCs() int {
	return len(s.inUse)
}

// IsAvailableFor reports whether the downstream VC can accept a new packet,
// i.e. it is not currently claimed by another packet.
func (s *BufferState) IsAvailableFor(vc int) bool {
	return !s.inUse[vc]
}

// IsFullFor reports whether the downstream VC has no buffer slot left.
func (s *BufferState) IsFullFor(vc int) bool {
	return s.occupancy[vc] >= s.depth
}

// Take claims the downstream VC for a new packet. Claiming a busy VC is a
// programming defect.
func (s *BufferState) Take(vc int) {
	if s.inUse[vc] {
		panic(fmt.Sprintf("%s: VC %d taken while in use", s.name, vc))
	}

	s.inUse[vc] = true
}

// SendingFlit accounts for one flit leaving for the downstream VC the flit
// is stamped with. The tail flit releases the packet's claim on the VC.
func (s *BufferState) SendingFlit(f *noc.Flit) {
	vc := f.VC

	if s.occupancy[vc] >= s.depth {
		panic(fmt.Sprintf("%s: VC %d overflow", s.name, vc))
	}
	s.occupancy[vc]++

	if f.Tail {
		if !s.inUse[vc] {
			panic(fmt.Sprintf("%s: tail on unclaimed VC %d", s.name, vc))
		}
		s.inUse[vc] = false
	}
}

// RecvCredit accounts for one freed slot reported by a returning credit.
func (s *BufferState) RecvCredit(vc int) {
	if s.occupancy[vc] <= 0 {
		panic(fmt.Sprintf("%s: credit underflow on VC %d", s.name, vc))
	}

	s.occupancy[vc]--
}

// Occupancy returns the number of slots believed occupied at the
// downstream VC.
func (s *BufferState) Occupancy(vc int) int {
	return s.occupancy[vc]
}
