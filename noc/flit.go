package noc

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// A Flit is the smallest flow-controlled unit of a packet traversing the
// network.
type Flit struct {
	sim.MsgMeta

	PacketID string
	SeqID    int
	NumFlits int

	Head bool
	Tail bool

	// VC is the virtual channel the flit occupies at the input it is
	// currently buffered at. It is rewritten to the allocated output VC when
	// the flit crosses a crossbar.
	VC int

	SrcRouter int
	DstRouter int
	Hops      int
	Priority  int

	// Watch enables per-flit diagnostic tracing.
	Watch bool

	InjectionTime sim.VTimeInSec
}

// Meta returns the meta data of the flit.
func (f *Flit) Meta() *sim.MsgMeta {
	return &f.MsgMeta
}

// Clone returns a cloned flit with a different ID.
func (f *Flit) Clone() sim.Msg {
	cloneMsg := *f
	cloneMsg.ID = flitID(cloneMsg.PacketID, cloneMsg.SeqID)

	return &cloneMsg
}

func flitID(packetID string, seqID int) string {
	return fmt.Sprintf("flit-%d-pkt-%s-%s",
		seqID, packetID, sim.GetIDGenerator().Generate())
}

// FlitBuilder can build flits.
type FlitBuilder struct {
	src, dst             sim.RemotePort
	packetID             string
	seqID, numFlits      int
	vc                   int
	srcRouter, dstRouter int
	priority             int
	watch                bool
}

// WithSrc sets the source port of the flit.
func (b FlitBuilder) WithSrc(src sim.RemotePort) FlitBuilder {
	b.src = src
	return b
}

// WithDst sets the destination port of the flit.
func (b FlitBuilder) WithDst(dst sim.RemotePort) FlitBuilder {
	b.dst = dst
	return b
}

// WithPacketID sets the ID of the packet the flit belongs to.
func (b FlitBuilder) WithPacketID(id string) FlitBuilder {
	b.packetID = id
	return b
}

// WithSeqID sets the position of the flit within its packet.
func (b FlitBuilder) WithSeqID(i int) FlitBuilder {
	b.seqID = i
	return b
}

// WithNumFlits sets the total number of flits in the packet.
func (b FlitBuilder) WithNumFlits(n int) FlitBuilder {
	b.numFlits = n
	return b
}

// WithVC sets the virtual channel the flit is injected on.
func (b FlitBuilder) WithVC(vc int) FlitBuilder {
	b.vc = vc
	return b
}

// WithSrcRouter sets the node the packet originates from.
func (b FlitBuilder) WithSrcRouter(r int) FlitBuilder {
	b.srcRouter = r
	return b
}

// WithDstRouter sets the node the packet is destined to.
func (b FlitBuilder) WithDstRouter(r int) FlitBuilder {
	b.dstRouter = r
	return b
}

// WithPriority sets the packet priority carried by the flit.
func (b FlitBuilder) WithPriority(p int) FlitBuilder {
	b.priority = p
	return b
}

// WithWatch marks the flit for diagnostic tracing.
func (b FlitBuilder) WithWatch() FlitBuilder {
	b.watch = true
	return b
}

// Build creates a new flit.
func (b FlitBuilder) Build() *Flit {
	f := &Flit{}
	f.ID = flitID(b.packetID, b.seqID)
	f.Src = b.src
	f.Dst = b.dst
	f.TrafficClass = "noc.Flit"
	f.TrafficBytes = 1

	f.PacketID = b.packetID
	f.SeqID = b.seqID
	f.NumFlits = b.numFlits
	f.Head = b.seqID == 0
	f.Tail = b.seqID == b.numFlits-1
	f.VC = b.vc
	f.SrcRouter = b.srcRouter
	f.DstRouter = b.dstRouter
	f.Priority = b.priority
	f.Watch = b.watch

	return f
}
