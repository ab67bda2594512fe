package network

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/sarchlab/loom/router"
	"github.com/sarchlab/loom/routing"
	"github.com/sarchlab/loom/traffic"
)

// Builder can build networks.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	numVCs              int
	bufDepth            int
	inputSpeedup        int
	outputSpeedup       int
	swAllocDelay        int
	crossbarDelay       int
	creditDelay         int
	holdSwitchForPacket bool
	allocatorKind       string
	allocIters          int
}

// MakeBuilder creates a builder with default network parameters.
func MakeBuilder() Builder {
	return Builder{
		numVCs:        4,
		bufDepth:      4,
		inputSpeedup:  1,
		outputSpeedup: 1,
		swAllocDelay:  1,
		crossbarDelay: 1,
		creditDelay:   1,
		allocatorKind: "islip",
		allocIters:    1,
	}
}

// WithEngine sets the engine that drives all the components.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the network works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumVCs sets the number of virtual channels per input.
func (b Builder) WithNumVCs(n int) Builder {
	b.numVCs = n
	return b
}

// WithBufDepth sets the per-VC buffer depth of every router.
func (b Builder) WithBufDepth(d int) Builder {
	b.bufDepth = d
	return b
}

// WithInputSpeedup sets the input speedup of every router.
func (b Builder) WithInputSpeedup(s int) Builder {
	b.inputSpeedup = s
	return b
}

// WithOutputSpeedup sets the output speedup of every router.
func (b Builder) WithOutputSpeedup(s int) Builder {
	b.outputSpeedup = s
	return b
}

// WithSwitchAllocDelay sets the switch allocation delay of every router.
func (b Builder) WithSwitchAllocDelay(d int) Builder {
	b.swAllocDelay = d
	return b
}

// WithCrossbarDelay sets the crossbar delay of every router.
func (b Builder) WithCrossbarDelay(d int) Builder {
	b.crossbarDelay = d
	return b
}

// WithCreditDelay sets the credit return delay of every router.
func (b Builder) WithCreditDelay(d int) Builder {
	b.creditDelay = d
	return b
}

// WithSwitchHoldForPacket makes every router keep crossbar slots bound to
// packets until their tail flits depart.
func (b Builder) WithSwitchHoldForPacket() Builder {
	b.holdSwitchForPacket = true
	return b
}

// WithAllocator selects the switch allocator of every router.
func (b Builder) WithAllocator(kind string, iters int) Builder {
	b.allocatorKind = kind
	b.allocIters = iters
	return b
}

func (b Builder) routerBuilder() router.Builder {
	rb := router.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithNumVCs(b.numVCs).
		WithBufDepth(b.bufDepth).
		WithInputSpeedup(b.inputSpeedup).
		WithOutputSpeedup(b.outputSpeedup).
		WithSwitchAllocDelay(b.swAllocDelay).
		WithCrossbarDelay(b.crossbarDelay).
		WithCreditDelay(b.creditDelay).
		WithAllocator(b.allocatorKind, b.allocIters)
	if b.holdSwitchForPacket {
		rb = rb.WithSwitchHoldForPacket()
	}

	return rb
}

// BuildSingleRouter creates a network of one router with a terminal on each
// of its numTerminals ports. Terminal i is node i.
func (b Builder) BuildSingleRouter(name string, numTerminals int) *Network {
	table := routing.NewTable()
	for d := 0; d < numTerminals; d++ {
		table.Register(d, d)
	}

	r := b.routerBuilder().
		WithID(0).
		WithNumInputs(numTerminals).
		WithNumOutputs(numTerminals).
		WithRoutingTable(table).
		Build(fmt.Sprintf("%s.Router", name))

	n := &Network{routers: []*router.Comp{r}}

	conn := directconnection.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		Build(name + ".Conn")

	for i := 0; i < numTerminals; i++ {
		g := traffic.NewGenerator(
			fmt.Sprintf("%s.Gen%d", name, i),
			b.engine, b.freq, i, b.numVCs, b.bufDepth)
		s := traffic.NewSink(
			fmt.Sprintf("%s.Sink%d", name, i),
			b.engine, b.freq, i)

		b.attachTerminal(conn, r, i, g, s)

		n.gens = append(n.gens, g)
		n.sinks = append(n.sinks, s)
	}

	return n
}

// BuildRing creates a ring of numRouters routers, each with a local
// terminal on port 0 and neighbor links on ports 1 (clockwise) and 2
// (counter-clockwise). The terminal of router i is node i. Packets follow
// the shorter direction around the ring, clockwise on ties.
func (b Builder) BuildRing(name string, numRouters int) *Network {
	if numRouters < 3 {
		panic("a ring needs at least three routers")
	}

	n := &Network{}
	conn := directconnection.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		Build(name + ".Conn")

	for i := 0; i < numRouters; i++ {
		table := routing.NewTable()
		for d := 0; d < numRouters; d++ {
			table.Register(d, ringOutput(i, d, numRouters))
		}

		r := b.routerBuilder().
			WithID(i).
			WithNumInputs(3).
			WithNumOutputs(3).
			WithRoutingTable(table).
			Build(fmt.Sprintf("%s.Router%d", name, i))

		g := traffic.NewGenerator(
			fmt.Sprintf("%s.Gen%d", name, i),
			b.engine, b.freq, i, b.numVCs, b.bufDepth)
		s := traffic.NewSink(
			fmt.Sprintf("%s.Sink%d", name, i),
			b.engine, b.freq, i)

		b.attachTerminal(conn, r, 0, g, s)

		n.routers = append(n.routers, r)
		n.gens = append(n.gens, g)
		n.sinks = append(n.sinks, s)
	}

	for i := 0; i < numRouters; i++ {
		b.linkRouters(conn, n.routers[i], 1, n.routers[(i+1)%numRouters], 1)
		b.linkRouters(conn, n.routers[i], 2,
			n.routers[(i+numRouters-1)%numRouters], 2)
	}

	return n
}

// ringOutput picks the output port router at carries traffic for node dst
// on. Port 0 ejects locally, port 1 heads clockwise, port 2 heads
// counter-clockwise.
func ringOutput(at, dst, numRouters int) int {
	if at == dst {
		return 0
	}

	cw := (dst - at + numRouters) % numRouters
	ccw := (at - dst + numRouters) % numRouters
	if cw <= ccw {
		return 1
	}

	return 2
}

// attachTerminal connects a generator and a sink to one router port pair,
// including both credit return channels.
func (b Builder) attachTerminal(
	conn *directconnection.Comp,
	r *router.Comp,
	port int,
	g *traffic.Generator,
	s *traffic.Sink,
) {
	conn.PlugIn(g.Port())
	conn.PlugIn(g.CreditRecvPort())
	conn.PlugIn(s.Port())
	conn.PlugIn(s.CreditReturnPort())
	conn.PlugIn(r.InputPort(port))
	conn.PlugIn(r.CreditReturnPort(port))
	conn.PlugIn(r.OutputPort(port))
	conn.PlugIn(r.CreditRecvPort(port))

	g.SetRemote(r.InputPort(port).AsRemote())
	r.SetRemoteCredit(port, g.CreditRecvPort().AsRemote())

	r.SetRemoteInput(port, s.Port().AsRemote())
	s.SetRemote(r.CreditRecvPort(port).AsRemote())
}

// linkRouters connects the given output of an upstream router to the same
// numbered input of a downstream router, including the credit channel
// flowing the other way.
func (b Builder) linkRouters(
	conn *directconnection.Comp,
	up *router.Comp, output int,
	down *router.Comp, input int,
) {
	conn.PlugIn(up.OutputPort(output))
	conn.PlugIn(up.CreditRecvPort(output))
	conn.PlugIn(down.InputPort(input))
	conn.PlugIn(down.CreditReturnPort(input))

	up.SetRemoteInput(output, down.InputPort(input).AsRemote())
	down.SetRemoteCredit(input, up.CreditRecvPort(output).AsRemote())
}
