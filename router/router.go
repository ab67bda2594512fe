// Package router implements a cycle-accurate input-queued router with
// virtual channels, credit-based flow control, and split slow-path/fast-path
// switch allocation.
package router

import (
	"fmt"

	"github.com/sarchlab/akita/v4/pipelining"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"

	"github.com/sarchlab/loom/alloc"
	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/routing"
	"github.com/sarchlab/loom/vc"
)

type flitPipelineItem struct {
	taskID string
	flit   *noc.Flit
}

func (i flitPipelineItem) TaskID() string {
	return i.taskID
}

type creditPipelineItem struct {
	taskID string
	credit *noc.Credit
}

func (i creditPipelineItem) TaskID() string {
	return i.taskID
}

// Comp is a router component. Every cycle it moves flits from its input VC
// buffers through the crossbar toward its output ports and returns credits
// upstream.
type Comp struct {
	*sim.TickingComponent

	id                  int
	numInputs           int
	numOutputs          int
	numVCs              int
	inputSpeedup        int
	outputSpeedup       int
	bufDepth            int
	swAllocDelay        int
	holdSwitchForPacket bool

	cycle int64

	inputPorts        []sim.Port
	creditReturnPorts []sim.Port
	outputPorts       []sim.Port
	creditRecvPorts   []sim.Port
	remoteInput       []sim.RemotePort
	remoteCredit      []sim.RemotePort

	table routing.Table

	bufs     []*vc.InputBuffer
	nextBufs []*vc.BufferState

	swAllocator alloc.Allocator

	vcRROffsets []int
	swRROffsets []int
	useFastPath []bool

	switchHoldIn  []int
	switchHoldVC  []int
	switchHoldOut []int

	crossbarPipes   []pipelining.Pipeline
	crossbarOutBufs []sim.Buffer
	creditPipes     []pipelining.Pipeline
	creditOutBufs   []sim.Buffer

	numFlitsTransferred int64
	numCreditsReturned  int64
}

// ID returns the node ID of the router.
func (c *Comp) ID() int {
	return c.id
}

// RoutingTable returns the routing table of the router.
func (c *Comp) RoutingTable() routing.Table {
	return c.table
}

// InputPort returns the flit ingress port of the given input.
func (c *Comp) InputPort(input int) sim.Port {
	return c.inputPorts[input]
}

// OutputPort returns the flit egress port of the given output.
func (c *Comp) OutputPort(output int) sim.Port {
	return c.outputPorts[output]
}

// CreditReturnPort returns the port credits for the given input are sent
// from.
func (c *Comp) CreditReturnPort(input int) sim.Port {
	return c.creditReturnPorts[input]
}

// CreditRecvPort returns the port credits from the downstream node behind
// the given output arrive at.
func (c *Comp) CreditRecvPort(output int) sim.Port {
	return c.creditRecvPorts[output]
}

// SetRemoteInput records the downstream data port behind an output.
func (c *Comp) SetRemoteInput(output int, remote sim.RemotePort) {
	c.remoteInput[output] = remote
}

// SetRemoteCredit records the upstream credit port in front of an input.
func (c *Comp) SetRemoteCredit(input int, remote sim.RemotePort) {
	c.remoteCredit[input] = remote
}

// NumFlitsTransferred returns the number of flits that crossed the
// crossbar so far.
func (c *Comp) NumFlitsTransferred() int64 {
	return c.numFlitsTransferred
}

// NumCreditsReturned returns the number of credit records sent upstream.
func (c *Comp) NumCreditsReturned() int64 {
	return c.numCreditsReturned
}

// Tick runs the router for one cycle. The stages run in reverse pipeline
// order so that each flit moves at most one stage per cycle.
func (c *Comp) Tick() bool {
	c.cycle++

	madeProgress := false

	madeProgress = c.sendFlits() || madeProgress
	madeProgress = c.sendCredits() || madeProgress
	madeProgress = c.movePipelines() || madeProgress
	madeProgress = c.allocSwitch() || madeProgress
	madeProgress = c.stageNewPackets() || madeProgress
	madeProgress = c.acceptFlits() || madeProgress
	madeProgress = c.processCredits() || madeProgress

	// A VC maturing toward eligibility produces no event on its own, so the
	// router must keep ticking until its state timer runs out.
	madeProgress = madeProgress || c.vcTimersRunning()

	return madeProgress
}

// vcTimersRunning reports whether some VC holds flits but has not yet spent
// the required cycles in its state to take part in switch allocation.
func (c *Comp) vcTimersRunning() bool {
	for input := 0; input < c.numInputs; input++ {
		for v := 0; v < c.numVCs; v++ {
			ch := c.bufs[input].VC(v)
			if ch.Empty() {
				continue
			}

			state := ch.State()
			if state != noc.VCAllocating && state != noc.VCActive {
				continue
			}

			if ch.StateCycles(c.cycle) < int64(c.swAllocDelay) {
				return true
			}
		}
	}

	return false
}

func (c *Comp) flitParentTaskID(f *noc.Flit) string {
	return f.ID + "_e2e"
}

func (c *Comp) flitTaskID(f *noc.Flit) string {
	return f.ID + "_" + c.Name()
}

// sendFlits drains the post-crossbar buffers into the output ports.
func (c *Comp) sendFlits() (madeProgress bool) {
	for eo, buf := range c.crossbarOutBufs {
		item := buf.Peek()
		if item == nil {
			continue
		}

		output := eo / c.outputSpeedup
		f := item.(flitPipelineItem).flit
		f.Meta().Src = c.outputPorts[output].AsRemote()
		f.Meta().Dst = c.remoteInput[output]

		err := c.outputPorts[output].Send(f)
		if err != nil {
			continue
		}

		buf.Pop()
		madeProgress = true

		tracing.EndTask(c.flitTaskID(f), c)

		if f.Watch {
			noc.Trace("FlitSent",
				"router", c.Name(), "cycle", c.cycle,
				"flit", f.ID, "output", output)
		}
	}

	return madeProgress
}

// sendCredits drains the post-pipeline credit buffers toward the upstream
// nodes.
func (c *Comp) sendCredits() (madeProgress bool) {
	for input, buf := range c.creditOutBufs {
		item := buf.Peek()
		if item == nil {
			continue
		}

		credit := item.(creditPipelineItem).credit
		credit.Meta().Src = c.creditReturnPorts[input].AsRemote()
		credit.Meta().Dst = c.remoteCredit[input]

		err := c.creditReturnPorts[input].Send(credit)
		if err != nil {
			continue
		}

		buf.Pop()
		c.numCreditsReturned++
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) movePipelines() (madeProgress bool) {
	for _, p := range c.crossbarPipes {
		madeProgress = p.Tick() || madeProgress
	}
	for _, p := range c.creditPipes {
		madeProgress = p.Tick() || madeProgress
	}

	return madeProgress
}

// stageNewPackets computes routes for packets that reached the front of an
// idle VC and moves those VCs into the vc_alloc state. Route computation is
// zero-delay here, modeling lookahead routing.
func (c *Comp) stageNewPackets() (madeProgress bool) {
	for input := 0; input < c.numInputs; input++ {
		buf := c.bufs[input]

		for v := 0; v < c.numVCs; v++ {
			ch := buf.VC(v)
			if ch.State() != noc.VCIdle || ch.Empty() {
				continue
			}

			f := ch.Front()
			if !f.Head {
				panic(fmt.Sprintf(
					"%s: non-head flit %s fronts idle VC %d at input %d",
					c.Name(), f.ID, v, input))
			}

			output := c.table.OutputFor(f.DstRouter)
			rs := routing.NewRouteSet(c.numOutputs)
			rs.AddRange(output, 0, c.numVCs-1, f.Priority)

			ch.Route(rs, f.Priority)
			ch.SetState(noc.VCAllocating, c.cycle)
			madeProgress = true

			if f.Watch {
				noc.Trace("PacketRouted",
					"router", c.Name(), "cycle", c.cycle,
					"flit", f.ID, "input", input, "vc", v,
					"output", output)
			}
		}
	}

	return madeProgress
}

// acceptFlits moves arriving flits from the input ports into the VC buffers
// they are stamped for.
func (c *Comp) acceptFlits() (madeProgress bool) {
	for input, port := range c.inputPorts {
		item := port.PeekIncoming()
		if item == nil {
			continue
		}

		f := item.(*noc.Flit)
		c.bufs[input].VC(f.VC).Push(f)
		port.RetrieveIncoming()
		madeProgress = true

		tracing.StartTask(
			c.flitTaskID(f),
			c.flitParentTaskID(f),
			c, "flit", "flit_in_router",
			f,
		)

		if f.Watch {
			noc.Trace("FlitArrived",
				"router", c.Name(), "cycle", c.cycle,
				"flit", f.ID, "input", input, "vc", f.VC)
		}
	}

	return madeProgress
}

// processCredits applies returning credits to the downstream buffer
// trackers. Credits consumed this cycle become visible to allocation in the
// next cycle.
func (c *Comp) processCredits() (madeProgress bool) {
	for output, port := range c.creditRecvPorts {
		item := port.PeekIncoming()
		if item == nil {
			continue
		}

		credit := item.(*noc.Credit)
		for _, v := range credit.VCs {
			c.nextBufs[output].RecvCredit(v)
		}
		port.RetrieveIncoming()
		madeProgress = true
	}

	return madeProgress
}
