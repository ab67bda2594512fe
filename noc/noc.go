// Package noc defines the data types shared by the components of a
// virtual-channel, credit-based interconnection network.
package noc

// VCState is the allocation state of a virtual channel.
type VCState int

const (
	// VCIdle marks a virtual channel that holds no packet.
	VCIdle VCState = iota

	// VCAllocating marks a virtual channel whose head packet is waiting for
	// an output virtual channel to be allocated.
	VCAllocating

	// VCActive marks a virtual channel that is bound to an output port and
	// output virtual channel and is forwarding flits.
	VCActive
)

// Name returns the name of the state.
func (s VCState) Name() string {
	switch s {
	case VCIdle:
		return "idle"
	case VCAllocating:
		return "vc_alloc"
	case VCActive:
		return "active"
	default:
		panic("invalid VC state")
	}
}
