package router

import (
	"fmt"

	"github.com/sarchlab/akita/v4/pipelining"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/alloc"
	"github.com/sarchlab/loom/routing"
	"github.com/sarchlab/loom/vc"
)

// Builder can build routers.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	id                  int
	numInputs           int
	numOutputs          int
	numVCs              int
	inputSpeedup        int
	outputSpeedup       int
	bufDepth            int
	swAllocDelay        int
	crossbarDelay       int
	creditDelay         int
	routingDelay        int
	holdSwitchForPacket bool
	allocatorKind       string
	allocIters          int
	table               routing.Table
}

// MakeBuilder creates a builder with default router parameters.
func MakeBuilder() Builder {
	return Builder{
		numVCs:        4,
		inputSpeedup:  1,
		outputSpeedup: 1,
		bufDepth:      4,
		swAllocDelay:  1,
		crossbarDelay: 1,
		creditDelay:   1,
		allocatorKind: "islip",
		allocIters:    1,
	}
}

// WithEngine sets the engine that drives the router.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the router works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithID sets the node ID of the router.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithNumInputs sets the number of physical input ports.
func (b Builder) WithNumInputs(n int) Builder {
	b.numInputs = n
	return b
}

// WithNumOutputs sets the number of physical output ports.
func (b Builder) WithNumOutputs(n int) Builder {
	b.numOutputs = n
	return b
}

// WithNumVCs sets the number of virtual channels per input.
func (b Builder) WithNumVCs(n int) Builder {
	b.numVCs = n
	return b
}

// WithInputSpeedup sets the factor by which each physical input is expanded
// into logical crossbar inputs.
func (b Builder) WithInputSpeedup(s int) Builder {
	b.inputSpeedup = s
	return b
}

// WithOutputSpeedup sets the factor by which each physical output is
// expanded into logical crossbar outputs.
func (b Builder) WithOutputSpeedup(s int) Builder {
	b.outputSpeedup = s
	return b
}

// WithBufDepth sets the per-VC input buffer depth in flits. The downstream
// trackers assume the same depth on the neighboring routers.
func (b Builder) WithBufDepth(d int) Builder {
	b.bufDepth = d
	return b
}

// WithSwitchAllocDelay sets the number of cycles a VC must have spent in its
// state before it may take part in switch allocation.
func (b Builder) WithSwitchAllocDelay(d int) Builder {
	b.swAllocDelay = d
	return b
}

// WithCrossbarDelay sets the structural delay of the crossbar in cycles.
func (b Builder) WithCrossbarDelay(d int) Builder {
	b.crossbarDelay = d
	return b
}

// WithCreditDelay sets the structural delay of the credit return path.
func (b Builder) WithCreditDelay(d int) Builder {
	b.creditDelay = d
	return b
}

// WithRoutingDelay sets the route-computation delay. This router
// architecture requires lookahead routing, so only zero is accepted.
func (b Builder) WithRoutingDelay(d int) Builder {
	b.routingDelay = d
	return b
}

// WithSwitchHoldForPacket makes the router keep a crossbar slot bound to a
// packet until its tail flit departs.
func (b Builder) WithSwitchHoldForPacket() Builder {
	b.holdSwitchForPacket = true
	return b
}

// WithAllocator selects the switch allocator kind and its iteration count.
func (b Builder) WithAllocator(kind string, iters int) Builder {
	b.allocatorKind = kind
	b.allocIters = iters
	return b
}

// WithRoutingTable sets the routing table of the router.
func (b Builder) WithRoutingTable(t routing.Table) Builder {
	b.table = t
	return b
}

// Build creates a router.
func (b Builder) Build(name string) *Comp {
	b.paramsMustBeValid()

	c := &Comp{
		id:                  b.id,
		numInputs:           b.numInputs,
		numOutputs:          b.numOutputs,
		numVCs:              b.numVCs,
		inputSpeedup:        b.inputSpeedup,
		outputSpeedup:       b.outputSpeedup,
		bufDepth:            b.bufDepth,
		swAllocDelay:        b.swAllocDelay,
		holdSwitchForPacket: b.holdSwitchForPacket,
		table:               b.table,
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	allocator, err := alloc.New(
		b.allocatorKind,
		b.numInputs*b.inputSpeedup,
		b.numOutputs*b.outputSpeedup,
		b.allocIters,
	)
	if err != nil {
		panic(err)
	}
	c.swAllocator = allocator

	b.createBuffers(c)
	b.createPorts(c, name)
	b.createPipelines(c, name)
	b.initAllocationState(c)

	return c
}

func (b Builder) paramsMustBeValid() {
	if b.engine == nil {
		panic("router requires an engine")
	}
	if b.freq == 0 {
		panic("router frequency cannot be 0")
	}
	if b.numInputs <= 0 || b.numOutputs <= 0 {
		panic("router needs at least one input and one output")
	}
	if b.table == nil {
		panic("router requires a routing table")
	}
	if b.routingDelay != 0 {
		panic("this router architecture requires lookahead routing")
	}
	if b.inputSpeedup < 1 || b.outputSpeedup < 1 {
		panic("speedup factors must be at least 1")
	}
	if b.numVCs%b.inputSpeedup != 0 {
		panic("the VC count must be a multiple of the input speedup")
	}
}

func (b Builder) createBuffers(c *Comp) {
	c.bufs = make([]*vc.InputBuffer, b.numInputs)
	for i := range c.bufs {
		c.bufs[i] = vc.NewInputBuffer(i, b.numVCs, b.bufDepth)
	}

	c.nextBufs = make([]*vc.BufferState, b.numOutputs)
	for o := range c.nextBufs {
		c.nextBufs[o] = vc.NewBufferState(
			fmt.Sprintf("%s.NextBuf%d", c.Name(), o),
			b.numVCs, b.bufDepth)
	}
}

func (b Builder) createPorts(c *Comp, name string) {
	c.inputPorts = make([]sim.Port, b.numInputs)
	c.creditReturnPorts = make([]sim.Port, b.numInputs)
	c.remoteCredit = make([]sim.RemotePort, b.numInputs)
	for i := 0; i < b.numInputs; i++ {
		in := sim.NewPort(c, 4, 4, fmt.Sprintf("%s.Input%d", name, i))
		c.inputPorts[i] = in
		c.AddPort(fmt.Sprintf("Input%d", i), in)

		cr := sim.NewPort(c, 1, 4, fmt.Sprintf("%s.CreditReturn%d", name, i))
		c.creditReturnPorts[i] = cr
		c.AddPort(fmt.Sprintf("CreditReturn%d", i), cr)
	}

	c.outputPorts = make([]sim.Port, b.numOutputs)
	c.creditRecvPorts = make([]sim.Port, b.numOutputs)
	c.remoteInput = make([]sim.RemotePort, b.numOutputs)
	for o := 0; o < b.numOutputs; o++ {
		out := sim.NewPort(c, 1, 4, fmt.Sprintf("%s.Output%d", name, o))
		c.outputPorts[o] = out
		c.AddPort(fmt.Sprintf("Output%d", o), out)

		cr := sim.NewPort(c, 4, 1, fmt.Sprintf("%s.CreditRecv%d", name, o))
		c.creditRecvPorts[o] = cr
		c.AddPort(fmt.Sprintf("CreditRecv%d", o), cr)
	}
}

func (b Builder) createPipelines(c *Comp, name string) {
	// Everything in a pipe or post-pipeline buffer is still counted in the
	// downstream occupancy tracker, so the credit protocol bounds the
	// in-flight items per output at numVCs*bufDepth. Sizing the buffers to
	// that bound guarantees a granted transfer is never refused.
	maxInFlight := b.numVCs * b.bufDepth

	numExpOut := b.numOutputs * b.outputSpeedup
	c.crossbarPipes = make([]pipelining.Pipeline, numExpOut)
	c.crossbarOutBufs = make([]sim.Buffer, numExpOut)
	for eo := 0; eo < numExpOut; eo++ {
		buf := sim.NewBuffer(
			fmt.Sprintf("%s.CrossbarOutBuf%d", name, eo),
			b.crossbarDelay+maxInFlight)
		c.crossbarOutBufs[eo] = buf
		c.crossbarPipes[eo] = pipelining.MakeBuilder().
			WithNumStage(b.crossbarDelay).
			WithCyclePerStage(1).
			WithPipelineWidth(1).
			WithPostPipelineBuffer(buf).
			Build(fmt.Sprintf("%s.CrossbarPipe%d", name, eo))
	}

	c.creditPipes = make([]pipelining.Pipeline, b.numInputs)
	c.creditOutBufs = make([]sim.Buffer, b.numInputs)
	for i := 0; i < b.numInputs; i++ {
		buf := sim.NewBuffer(
			fmt.Sprintf("%s.CreditOutBuf%d", name, i),
			b.creditDelay+maxInFlight)
		c.creditOutBufs[i] = buf
		c.creditPipes[i] = pipelining.MakeBuilder().
			WithNumStage(b.creditDelay).
			WithCyclePerStage(1).
			WithPipelineWidth(1).
			WithPostPipelineBuffer(buf).
			Build(fmt.Sprintf("%s.CreditPipe%d", name, i))
	}
}

func (b Builder) initAllocationState(c *Comp) {
	numExpIn := b.numInputs * b.inputSpeedup
	numExpOut := b.numOutputs * b.outputSpeedup

	c.vcRROffsets = make([]int, b.numInputs*b.numVCs)

	c.swRROffsets = make([]int, numExpIn)
	for ei := range c.swRROffsets {
		c.swRROffsets[ei] = ei % b.inputSpeedup
	}

	c.useFastPath = make([]bool, b.numInputs*b.numVCs)
	for i := range c.useFastPath {
		c.useFastPath[i] = true
	}

	c.switchHoldIn = make([]int, numExpIn)
	c.switchHoldVC = make([]int, numExpIn)
	for i := range c.switchHoldIn {
		c.switchHoldIn[i] = -1
		c.switchHoldVC[i] = -1
	}

	c.switchHoldOut = make([]int, numExpOut)
	for i := range c.switchHoldOut {
		c.switchHoldOut[i] = -1
	}
}
