// Package vc models input virtual-channel buffers, their allocation state
// machine, and the credit-counting view of a downstream buffer.
package vc

import (
	"fmt"

	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/routing"
)

// A VirtualChannel is one logical flit queue multiplexed onto a physical
// input port, together with its allocation state.
type VirtualChannel struct {
	input, index int
	depth        int

	state      noc.VCState
	stateEntry int64

	flits []*noc.Flit

	routeSet *routing.RouteSet
	priority int

	outputPort int
	outputVC   int
}

// State returns the allocation state of the VC.
func (v *VirtualChannel) State() noc.VCState {
	return v.state
}

// SetState transitions the VC and records the cycle the transition happened
// in, which restarts the state timer.
func (v *VirtualChannel) SetState(state noc.VCState, cycle int64) {
	v.state = state
	v.stateEntry = cycle

	if state == noc.VCIdle {
		v.routeSet = nil
		v.outputPort = -1
		v.outputVC = -1
	}
}

// StateCycles returns the number of cycles the VC has spent in its current
// state as of the given cycle.
func (v *VirtualChannel) StateCycles(cycle int64) int64 {
	return cycle - v.stateEntry
}

// Empty reports whether the VC holds no flits.
func (v *VirtualChannel) Empty() bool {
	return len(v.flits) == 0
}

// Size returns the number of buffered flits.
func (v *VirtualChannel) Size() int {
	return len(v.flits)
}

// Front returns the flit at the head of the VC without removing it, or nil.
func (v *VirtualChannel) Front() *noc.Flit {
	if len(v.flits) == 0 {
		return nil
	}

	return v.flits[0]
}

// Push appends a flit. Credits guarantee space; overflowing is a protocol
// violation.
func (v *VirtualChannel) Push(f *noc.Flit) {
	if len(v.flits) >= v.depth {
		panic(fmt.Sprintf(
			"input %d VC %d overflow, credit protocol violated",
			v.input, v.index))
	}

	v.flits = append(v.flits, f)
}

// Pop removes and returns the head flit.
func (v *VirtualChannel) Pop() *noc.Flit {
	if len(v.flits) == 0 {
		panic(fmt.Sprintf("input %d VC %d empty", v.input, v.index))
	}

	f := v.flits[0]
	v.flits = v.flits[1:]

	return f
}

// Route attaches the route set and packet priority for the packet at the
// head of the VC.
func (v *VirtualChannel) Route(rs *routing.RouteSet, priority int) {
	v.routeSet = rs
	v.priority = priority
}

// RouteSet returns the route set of the packet at the head of the VC.
func (v *VirtualChannel) RouteSet() *routing.RouteSet {
	return v.routeSet
}

// Priority returns the priority of the packet at the head of the VC.
func (v *VirtualChannel) Priority() int {
	return v.priority
}

// SetOutput binds the VC to an output port and output VC. Only legal while
// the VC is transitioning to the active state.
func (v *VirtualChannel) SetOutput(port, outVC int) {
	v.outputPort = port
	v.outputVC = outVC
}

// OutputPort returns the assigned output port. Reading the binding of a VC
// that is not active is a programming defect.
func (v *VirtualChannel) OutputPort() int {
	v.mustBeActive()
	return v.outputPort
}

// OutputVC returns the assigned output virtual channel.
func (v *VirtualChannel) OutputVC() int {
	v.mustBeActive()
	return v.outputVC
}

func (v *VirtualChannel) mustBeActive() {
	if v.state != noc.VCActive {
		panic(fmt.Sprintf(
			"input %d VC %d: output binding read in state %s",
			v.input, v.index, v.state.Name()))
	}
}

// An InputBuffer hosts the virtual channels of one physical input port.
type InputBuffer struct {
	input int
	vcs   []*VirtualChannel
}

// NewInputBuffer creates the VC buffers for one input port. Each VC can hold
// depth flits.
func NewInputBuffer(input, numVCs, depth int) *InputBuffer {
	b := &InputBuffer{
		input: input,
		vcs:   make([]*VirtualChannel, numVCs),
	}
	for i := range b.vcs {
		b.vcs[i] = &VirtualChannel{
			input:      input,
			index:      i,
			depth:      depth,
			state:      noc.VCIdle,
			outputPort: -1,
			outputVC:   -1,
		}
	}

	return b
}

// NumVCs returns the number of virtual channels of the input.
func (b *InputBuffer) NumVCs() int {
	return len(b.vcs)
}

// VC returns the virtual channel with the given index.
func (b *InputBuffer) VC(i int) *VirtualChannel {
	return b.vcs[i]
}
