package router

import (
	"fmt"
	"math"

	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/vc"
)

// allocSwitch performs one round of switch allocation. Requests are built in
// two phases. The slow path walks the VCs of every expanded input in
// round-robin order. The fast path then lets at most one bypass-enabled VC
// per input claim crossbar slots the slow path left untouched. Grants are
// resolved afterwards, with held connections overriding the allocator.
func (c *Comp) allocSwitch() (madeProgress bool) {
	fastPathVCs := make([]int, c.numInputs)

	c.swAllocator.Clear()

	for input := 0; input < c.numInputs; input++ {
		fastPathVCs[input] = -1

		c.buildSlowPathRequests(input)
		fastPathVCs[input] = c.buildFastPathRequests(input)
	}

	c.swAllocator.Allocate()

	for input := 0; input < c.numInputs; input++ {
		madeProgress = c.resolveGrants(input, fastPathVCs[input]) ||
			madeProgress
	}

	return madeProgress
}

// buildSlowPathRequests issues switch requests for the regular-path VCs of
// one input. VCs currently on the fast path are left for the bypass phase.
func (c *Comp) buildSlowPathRequests(input int) {
	buf := c.bufs[input]

	for s := 0; s < c.inputSpeedup; s++ {
		expInput := input*c.inputSpeedup + s

		// Round-robin between the VCs interleaved onto this expanded
		// input.
		v := c.swRROffsets[expInput]

		for n := 0; n < c.numVCs/c.inputSpeedup; n++ {
			if !c.useFastPath[input*c.numVCs+v] {
				ch := buf.VC(v)

				if !ch.Empty() && c.vcIsEligible(ch) {
					c.addRequestsForVC(input, v, ch, false)
				} else if f := ch.Front(); f != nil && f.Watch {
					noc.Trace("SlowPathNotReady",
						"router", c.Name(), "cycle", c.cycle,
						"flit", f.ID, "input", input, "vc", v,
						"state", ch.State().Name())
				}
			}

			v += c.inputSpeedup
			if v >= c.numVCs {
				v = s
			}
		}
	}
}

// buildFastPathRequests issues bypass requests for the fast-path VC of one
// input, yielding every crossbar slot the slow path already requested. It
// returns the index of the VC that requested the fast path, or -1.
func (c *Comp) buildFastPathRequests(input int) int {
	buf := c.bufs[input]
	fastVC := -1

	for v := 0; v < c.numVCs; v++ {
		if !c.useFastPath[input*c.numVCs+v] {
			continue
		}

		ch := buf.VC(v)
		if ch.Empty() {
			continue
		}

		f := ch.Front()
		if !c.vcIsEligible(ch) {
			if f.Watch {
				noc.Trace("FastPathNotReady",
					"router", c.Name(), "cycle", c.cycle,
					"flit", f.ID, "input", input, "vc", v,
					"state", ch.State().Name())
			}
			continue
		}

		if fastVC >= 0 {
			panic(fmt.Sprintf(
				"%s: VCs %d and %d at input %d both claim the fast path",
				c.Name(), fastVC, v, input))
		}
		fastVC = v

		c.addRequestsForVC(input, v, ch, true)
	}

	return fastVC
}

// vcIsEligible reports whether a VC may take part in switch allocation this
// cycle.
func (c *Comp) vcIsEligible(ch *vc.VirtualChannel) bool {
	state := ch.State()
	if state != noc.VCAllocating && state != noc.VCActive {
		return false
	}

	return ch.StateCycles(c.cycle) >= int64(c.swAllocDelay)
}

// addRequestsForVC adds the switch requests of one eligible VC. An
// allocating VC requests every routable output that still has a claimable,
// non-full output VC. An active VC requests only its assigned output. Fast
// path requests additionally yield crossbar slots the slow path holds, while
// slow path requests respect held switch connections.
func (c *Comp) addRequestsForVC(
	input, v int,
	ch *vc.VirtualChannel,
	fastPath bool,
) {
	f := ch.Front()
	state := ch.State()
	expInput := input*c.inputSpeedup + v%c.inputSpeedup

	output := 0
	if state == noc.VCAllocating && !fastPath {
		output = c.vcRROffsets[input*c.numVCs+v]
	}

	for n := 0; n < c.numOutputs; n++ {
		if state == noc.VCActive {
			output = ch.OutputPort()
		}

		expOutput := output*c.outputSpeedup + input%c.outputSpeedup

		if fastPath {
			if c.swAllocator.ReadRequest(expInput, expOutput) >= 0 {
				if f.Watch {
					noc.Trace("FastPathYields",
						"router", c.Name(), "cycle", c.cycle,
						"flit", f.ID,
						"expInput", expInput, "expOutput", expOutput)
				}
				if state == noc.VCActive {
					break
				}
				output = (output + 1) % c.numOutputs
				continue
			}
		} else if c.switchHoldIn[expInput] != -1 ||
			c.switchHoldOut[expOutput] != -1 {
			if state == noc.VCActive {
				break
			}
			output = (output + 1) % c.numOutputs
			continue
		}

		ok, inPriority := c.bestCandidatePriority(ch, output)
		if ok {
			if f.Watch {
				noc.Trace("SwitchRequest",
					"router", c.Name(), "cycle", c.cycle,
					"flit", f.ID, "input", input, "vc", v,
					"output", output, "fastPath", fastPath)
			}

			// A losing request for the same crossbar slot may already
			// stand from an earlier VC; the allocator keeps whichever
			// has the higher packet priority.
			c.swAllocator.AddRequest(
				expInput, expOutput, v, inPriority, ch.Priority())
		}

		if state == noc.VCActive {
			break
		}

		output = (output + 1) % c.numOutputs
	}
}

// bestCandidatePriority scans the route set entries of a VC for the given
// output and returns the highest priority among the output VCs the packet
// could use right now.
func (c *Comp) bestCandidatePriority(
	ch *vc.VirtualChannel,
	output int,
) (bool, int) {
	state := ch.State()
	routeSet := ch.RouteSet()
	destBuf := c.nextBufs[output]

	found := false
	best := math.MinInt

	for i := 0; i < routeSet.NumVCs(output); i++ {
		cand := routeSet.Candidate(output, i)

		if state == noc.VCAllocating &&
			!destBuf.IsAvailableFor(cand.VC) {
			continue
		}
		if state == noc.VCActive && cand.VC != ch.OutputVC() {
			continue
		}
		if destBuf.IsFullFor(cand.VC) {
			continue
		}

		if !found || cand.Priority > best {
			found = true
			best = cand.Priority
		}
	}

	return found, best
}

// resolveGrants applies the allocation outcome for one input. It moves the
// granted flits into the crossbar, finalizes VC allocation for winners that
// had none, manages switch holds and fast-path membership, and emits one
// batched credit for all flits the input released this cycle.
func (c *Comp) resolveGrants(input, fastVC int) (madeProgress bool) {
	buf := c.bufs[input]

	var creditVCs []int
	creditDst := -1

	for s := 0; s < c.inputSpeedup; s++ {
		expInput := input*c.inputSpeedup + s

		var expOutput, v int
		if c.switchHoldIn[expInput] != -1 {
			expOutput = c.switchHoldIn[expInput]
			v = c.switchHoldVC[expInput]

			// A held connection with nothing to send is skipped, not
			// released.
			if buf.VC(v).Empty() {
				expOutput = -1
			}
		} else {
			expOutput = c.swAllocator.OutputAssigned(expInput)
			if expOutput >= 0 {
				v = c.swAllocator.ReadRequest(expInput, expOutput)
			} else {
				v = -1
			}
		}

		if expOutput >= 0 {
			output := expOutput / c.outputSpeedup
			ch := buf.VC(v)
			f := ch.Front()

			if f.Watch {
				noc.Trace("SwitchGrant",
					"router", c.Name(), "cycle", c.cycle,
					"flit", f.ID, "input", input, "vc", v,
					"output", output, "fastPath", v == fastVC)
			}

			// A slow-path win means the bypass lost the race; pull its
			// VC back onto the regular path.
			if v != fastVC && fastVC >= 0 {
				c.useFastPath[input*c.numVCs+fastVC] = false
			}

			if ch.State() == noc.VCAllocating {
				c.finalizeVCAllocation(input, v, ch, output)
			}

			creditDst = f.SrcRouter
			c.transferFlit(input, v, s, ch, expInput, expOutput)
			madeProgress = true

			creditVCs = append(creditVCs, v)
		} else if fastVC >= 0 && fastVC%c.inputSpeedup == s {
			// The bypass requested and lost outright.
			c.useFastPath[input*c.numVCs+fastVC] = false
		}
	}

	if creditVCs != nil {
		c.queueCredit(input, creditDst, creditVCs)
		madeProgress = true
	}

	return madeProgress
}

// finalizeVCAllocation claims an output VC for a winner that was still in
// the vc_alloc state. A switch grant implies at least one candidate was
// claimable when the request was built, and nothing in between can have
// invalidated all of them.
func (c *Comp) finalizeVCAllocation(
	input, v int,
	ch *vc.VirtualChannel,
	output int,
) {
	routeSet := ch.RouteSet()
	destBuf := c.nextBufs[output]

	selVC := -1
	selPrio := math.MinInt

	for i := 0; i < routeSet.NumVCs(output); i++ {
		cand := routeSet.Candidate(output, i)

		if !destBuf.IsAvailableFor(cand.VC) || destBuf.IsFullFor(cand.VC) {
			continue
		}

		if selVC < 0 || cand.Priority > selPrio {
			selVC = cand.VC
			selPrio = cand.Priority
		}
	}

	if selVC < 0 {
		panic(fmt.Sprintf(
			"%s: switch granted to VC %d at input %d, "+
				"but no output VC at output %d is claimable",
			c.Name(), v, input, output))
	}

	ch.SetState(noc.VCActive, c.cycle)
	ch.SetOutput(output, selVC)
	destBuf.Take(selVC)

	c.vcRROffsets[input*c.numVCs+v] = (output + 1) % c.numOutputs

	if f := ch.Front(); f.Watch {
		noc.Trace("OutputVCGranted",
			"router", c.Name(), "cycle", c.cycle,
			"flit", f.ID, "input", input, "vc", v,
			"output", output, "outputVC", selVC)
	}
}

// transferFlit moves the head flit of a granted VC into the crossbar
// pipeline and updates hold, round-robin, and fast-path state.
func (c *Comp) transferFlit(
	input, v, s int,
	ch *vc.VirtualChannel,
	expInput, expOutput int,
) {
	output := expOutput / c.outputSpeedup

	if c.holdSwitchForPacket {
		c.switchHoldIn[expInput] = expOutput
		c.switchHoldVC[expInput] = v
		c.switchHoldOut[expOutput] = expInput
	}

	destBuf := c.nextBufs[output]

	f := ch.Pop()
	f.Hops++
	f.SrcRouter = c.id
	f.VC = ch.OutputVC()

	destBuf.SendingFlit(f)

	pipe := c.crossbarPipes[expOutput]
	if !pipe.CanAccept() {
		panic(fmt.Sprintf(
			"%s: crossbar pipe %d cannot accept a granted flit",
			c.Name(), expOutput))
	}
	pipe.Accept(flitPipelineItem{taskID: c.flitTaskID(f), flit: f})

	c.numFlitsTransferred++

	if f.Watch {
		noc.Trace("FlitCrossesSwitch",
			"router", c.Name(), "cycle", c.cycle,
			"flit", f.ID,
			"expInput", expInput, "expOutput", expOutput,
			"outputVC", f.VC)
	}

	if f.Tail {
		ch.SetState(noc.VCIdle, c.cycle)
		c.switchHoldIn[expInput] = -1
		c.switchHoldVC[expInput] = -1
		c.switchHoldOut[expOutput] = -1
	}

	if !c.useFastPath[input*c.numVCs+v] {
		next := v + c.inputSpeedup
		if next < c.numVCs {
			c.swRROffsets[expInput] = next
		} else {
			c.swRROffsets[expInput] = s
		}
	}

	// A drained regular-path VC earns the bypass back.
	if ch.Empty() && !c.useFastPath[input*c.numVCs+v] {
		c.useFastPath[input*c.numVCs+v] = true
	}
}

// queueCredit sends one batched credit upstream for all the VCs an input
// released flits from this cycle.
func (c *Comp) queueCredit(input, dstRouter int, vcs []int) {
	credit := noc.CreditBuilder{}.
		WithDstRouter(dstRouter).
		WithVCs(vcs).
		Build()

	pipe := c.creditPipes[input]
	if !pipe.CanAccept() {
		panic(fmt.Sprintf(
			"%s: credit pipe %d cannot accept a credit",
			c.Name(), input))
	}
	pipe.Accept(creditPipelineItem{taskID: credit.ID, credit: credit})
}
