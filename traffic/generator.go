// Package traffic provides the terminals of a network, the generators that
// inject packets into router inputs and the sinks that consume them at
// router outputs.
package traffic

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"

	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/vc"
)

type pendingPacket struct {
	dst      int
	numFlits int
	priority int
	watch    bool
}

type inFlightPacket struct {
	id       string
	dst      int
	numFlits int
	priority int
	watch    bool

	nextSeq int
	vc      int
}

// A Generator injects packets, flit by flit, into one router input. It keeps
// its own credit-counting view of the input buffers so that it never sends a
// flit the router has no slot for.
type Generator struct {
	*sim.TickingComponent

	id     int
	numVCs int

	port       sim.Port
	creditPort sim.Port
	remote     sim.RemotePort

	dstView *vc.BufferState
	nextVC  int

	pending []pendingPacket
	current *inFlightPacket

	numPacketsSent int64
	numFlitsSent   int64
}

// NewGenerator creates a generator that injects into a router input whose
// per-VC buffers hold bufDepth flits.
func NewGenerator(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	id, numVCs, bufDepth int,
) *Generator {
	g := &Generator{
		id:     id,
		numVCs: numVCs,
	}
	g.TickingComponent = sim.NewTickingComponent(name, engine, freq, g)

	g.port = sim.NewPort(g, 1, 4, name+".Out")
	g.AddPort("Out", g.port)

	g.creditPort = sim.NewPort(g, 4, 1, name+".CreditRecv")
	g.AddPort("CreditRecv", g.creditPort)

	g.dstView = vc.NewBufferState(name+".DstView", numVCs, bufDepth)

	return g
}

// ID returns the node ID of the generator.
func (g *Generator) ID() int {
	return g.id
}

// Port returns the port flits leave the generator from.
func (g *Generator) Port() sim.Port {
	return g.port
}

// CreditRecvPort returns the port credits from the router arrive at.
func (g *Generator) CreditRecvPort() sim.Port {
	return g.creditPort
}

// SetRemote records the router input port the generator injects into.
func (g *Generator) SetRemote(remote sim.RemotePort) {
	g.remote = remote
}

// EnqueuePacket schedules one packet for injection.
func (g *Generator) EnqueuePacket(dst, numFlits, priority int) {
	g.enqueue(dst, numFlits, priority, false)
}

// EnqueueWatchedPacket schedules one packet whose flits log their progress.
func (g *Generator) EnqueueWatchedPacket(dst, numFlits, priority int) {
	g.enqueue(dst, numFlits, priority, true)
}

func (g *Generator) enqueue(dst, numFlits, priority int, watch bool) {
	if numFlits <= 0 {
		panic(fmt.Sprintf("%s: packet needs at least one flit", g.Name()))
	}

	g.pending = append(g.pending, pendingPacket{
		dst:      dst,
		numFlits: numFlits,
		priority: priority,
		watch:    watch,
	})
	g.TickNow()
}

// Done reports whether every scheduled packet has fully left the generator.
func (g *Generator) Done() bool {
	return len(g.pending) == 0 && g.current == nil
}

// NumPacketsSent returns the number of packets fully injected so far.
func (g *Generator) NumPacketsSent() int64 {
	return g.numPacketsSent
}

// NumFlitsSent returns the number of flits injected so far.
func (g *Generator) NumFlitsSent() int64 {
	return g.numFlitsSent
}

// Tick injects at most one flit and applies returning credits.
func (g *Generator) Tick() bool {
	madeProgress := g.sendFlit()
	madeProgress = g.processCredits() || madeProgress

	return madeProgress
}

func (g *Generator) sendFlit() bool {
	if g.current == nil {
		if !g.startNextPacket() {
			return false
		}
	}

	p := g.current
	if g.dstView.IsFullFor(p.vc) {
		return false
	}

	f := noc.FlitBuilder{}.
		WithPacketID(p.id).
		WithSeqID(p.nextSeq).
		WithNumFlits(p.numFlits).
		WithVC(p.vc).
		WithSrcRouter(g.id).
		WithDstRouter(p.dst).
		WithPriority(p.priority).
		Build()
	if p.watch {
		f.Watch = true
	}
	f.InjectionTime = g.CurrentTime()
	f.Src = g.port.AsRemote()
	f.Dst = g.remote

	err := g.port.Send(f)
	if err != nil {
		return false
	}

	tracing.StartTask(f.ID+"_e2e", "", g, "flit", "flit_e2e", f)

	g.dstView.SendingFlit(f)
	g.numFlitsSent++

	if f.Watch {
		noc.Trace("FlitInjected",
			"generator", g.Name(), "flit", f.ID,
			"dst", p.dst, "vc", p.vc, "seq", p.nextSeq)
	}

	p.nextSeq++
	if p.nextSeq == p.numFlits {
		g.numPacketsSent++
		g.current = nil
	}

	return true
}

// startNextPacket claims an input VC for the packet at the head of the
// queue. The packet stalls until some VC is both unclaimed and non-full.
func (g *Generator) startNextPacket() bool {
	if len(g.pending) == 0 {
		return false
	}

	selVC := -1
	for i := 0; i < g.numVCs; i++ {
		v := (g.nextVC + i) % g.numVCs
		if g.dstView.IsAvailableFor(v) && !g.dstView.IsFullFor(v) {
			selVC = v
			break
		}
	}
	if selVC < 0 {
		return false
	}

	p := g.pending[0]
	g.pending = g.pending[1:]

	g.dstView.Take(selVC)
	g.nextVC = (selVC + 1) % g.numVCs

	g.current = &inFlightPacket{
		id:       sim.GetIDGenerator().Generate(),
		dst:      p.dst,
		numFlits: p.numFlits,
		priority: p.priority,
		watch:    p.watch,
		vc:       selVC,
	}

	return true
}

func (g *Generator) processCredits() bool {
	item := g.creditPort.PeekIncoming()
	if item == nil {
		return false
	}

	credit := item.(*noc.Credit)
	for _, v := range credit.VCs {
		g.dstView.RecvCredit(v)
	}
	g.creditPort.RetrieveIncoming()

	return true
}
