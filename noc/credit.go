package noc

import (
	"github.com/sarchlab/akita/v4/sim"
)

// A Credit tells an upstream node that buffer slots freed at a router input.
// One credit batches all the virtual channels freed by transfers from that
// input in a single cycle.
type Credit struct {
	sim.MsgMeta

	// DstRouter is the node that originated the flits whose slots freed.
	DstRouter int

	// VCs lists the virtual channels that each freed one buffer slot. A VC
	// appears once per freed slot.
	VCs []int
}

// Meta returns the meta data of the credit.
func (c *Credit) Meta() *sim.MsgMeta {
	return &c.MsgMeta
}

// Clone returns a cloned credit with a different ID.
func (c *Credit) Clone() sim.Msg {
	cloneMsg := *c
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	cloneMsg.VCs = append([]int(nil), c.VCs...)

	return &cloneMsg
}

// CreditBuilder can build credits.
type CreditBuilder struct {
	src, dst  sim.RemotePort
	dstRouter int
	vcs       []int
}

// WithSrc sets the source port of the credit.
func (b CreditBuilder) WithSrc(src sim.RemotePort) CreditBuilder {
	b.src = src
	return b
}

// WithDst sets the destination port of the credit.
func (b CreditBuilder) WithDst(dst sim.RemotePort) CreditBuilder {
	b.dst = dst
	return b
}

// WithDstRouter sets the node the credit is returned to.
func (b CreditBuilder) WithDstRouter(r int) CreditBuilder {
	b.dstRouter = r
	return b
}

// WithVCs sets the freed virtual channels carried by the credit.
func (b CreditBuilder) WithVCs(vcs []int) CreditBuilder {
	b.vcs = vcs
	return b
}

// Build creates a new credit.
func (b CreditBuilder) Build() *Credit {
	c := &Credit{}
	c.ID = sim.GetIDGenerator().Generate()
	c.Src = b.src
	c.Dst = b.dst
	c.TrafficClass = "noc.Credit"
	c.DstRouter = b.dstRouter
	c.VCs = b.vcs

	return c
}
