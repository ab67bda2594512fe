package router

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/routing"
	"github.com/sarchlab/loom/vc"
)

func makeTestRouter(hold bool) *Comp {
	engine := sim.NewSerialEngine()

	table := routing.NewTable()
	table.Register(0, 0)
	table.Register(1, 1)

	b := MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithNumInputs(2).
		WithNumOutputs(2).
		WithNumVCs(4).
		WithBufDepth(4).
		WithRoutingTable(table)
	if hold {
		b = b.WithSwitchHoldForPacket()
	}

	return b.Build("Router")
}

func testFlit(seq, numFlits, dst int) *noc.Flit {
	return noc.FlitBuilder{}.
		WithPacketID("pkt").
		WithSeqID(seq).
		WithNumFlits(numFlits).
		WithSrcRouter(5).
		WithDstRouter(dst).
		Build()
}

// stageVC loads a packet into a VC, routes it toward one output, and leaves
// it in the vc_alloc state long enough ago to be eligible.
func stageVC(c *Comp, input, v, output, numFlits, priority int) *vc.VirtualChannel {
	ch := c.bufs[input].VC(v)
	for seq := 0; seq < numFlits; seq++ {
		ch.Push(testFlit(seq, numFlits, output))
	}

	rs := routing.NewRouteSet(c.numOutputs)
	rs.AddRange(output, 0, c.numVCs-1, priority)
	ch.Route(rs, priority)
	ch.SetState(noc.VCAllocating, c.cycle)
	c.cycle++

	return ch
}

var _ = Describe("Switch allocation", func() {
	var c *Comp

	BeforeEach(func() {
		c = makeTestRouter(false)
	})

	Context("slow path request building", func() {
		It("should keep an immature VC out of allocation", func() {
			c.useFastPath[0*c.numVCs+0] = false
			ch := c.bufs[0].VC(0)
			ch.Push(testFlit(0, 1, 1))

			rs := routing.NewRouteSet(2)
			rs.AddRange(1, 0, 3, 0)
			ch.Route(rs, 0)
			ch.SetState(noc.VCAllocating, c.cycle)

			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)
			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(-1))

			c.cycle++
			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)
			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(0))
		})

		It("should ignore idle VCs", func() {
			c.useFastPath[0*c.numVCs+0] = false
			c.bufs[0].VC(0).Push(testFlit(0, 1, 1))

			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)

			Expect(c.swAllocator.ReadRequest(0, 0)).To(Equal(-1))
			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(-1))
		})

		It("should restrict an active VC to its assigned slot", func() {
			c.useFastPath[0*c.numVCs+0] = false
			ch := c.bufs[0].VC(0)
			ch.Push(testFlit(0, 2, 1))

			rs := routing.NewRouteSet(2)
			rs.AddRange(0, 0, 3, 0)
			rs.AddRange(1, 0, 3, 0)
			ch.Route(rs, 0)
			ch.SetState(noc.VCActive, c.cycle)
			ch.SetOutput(1, 2)
			c.nextBufs[1].Take(2)
			c.cycle++

			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)

			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(0))
			Expect(c.swAllocator.ReadRequest(0, 0)).To(Equal(-1))
		})

		It("should not request an output with no claimable VC", func() {
			for v := 0; v < c.numVCs; v++ {
				c.nextBufs[1].Take(v)
			}

			c.useFastPath[0*c.numVCs+0] = false
			stageVC(c, 0, 0, 1, 1, 0)

			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)

			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(-1))
		})
	})

	Context("fast path request building", func() {
		It("should submit only the slow-path request for a contested slot",
			func() {
				c.useFastPath[0*c.numVCs+1] = false
				stageVC(c, 0, 0, 1, 1, 0)
				stageVC(c, 0, 1, 1, 1, 0)

				c.swAllocator.Clear()
				c.buildSlowPathRequests(0)
				fastVC := c.buildFastPathRequests(0)

				Expect(fastVC).To(Equal(0))
				Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(1),
					"the slow-path VC should own the slot")
			})

		It("should reject two bypass claims at one input", func() {
			stageVC(c, 0, 0, 0, 1, 0)
			stageVC(c, 0, 1, 1, 1, 0)

			Expect(func() { c.buildFastPathRequests(0) }).To(Panic())
		})
	})

	Context("grant resolution", func() {
		It("should finalize VC allocation at grant time", func() {
			c.useFastPath[0*c.numVCs+0] = false
			ch := stageVC(c, 0, 0, 1, 1, 0)

			c.allocSwitch()

			Expect(ch.Empty()).To(BeTrue())
			Expect(ch.State()).To(Equal(noc.VCIdle),
				"a single-flit packet frees the VC the same cycle")
			Expect(c.nextBufs[1].Occupancy(0)).To(Equal(1))
			Expect(c.nextBufs[1].IsAvailableFor(0)).To(BeTrue(),
				"the tail releases the claim")
			Expect(c.vcRROffsets[0]).To(Equal(0), "(1+1) mod 2")
		})

		It("should keep the claim on the output VC until the tail", func() {
			c.useFastPath[0*c.numVCs+0] = false
			ch := stageVC(c, 0, 0, 1, 3, 0)

			c.allocSwitch()

			Expect(ch.State()).To(Equal(noc.VCActive))
			Expect(ch.OutputPort()).To(Equal(1))
			Expect(c.nextBufs[1].IsAvailableFor(ch.OutputVC())).To(BeFalse())
		})

		It("should rewrite the flit VC and count the hop", func() {
			c.useFastPath[0*c.numVCs+0] = false
			stageVC(c, 0, 0, 1, 1, 0)

			c.allocSwitch()
			c.movePipelines()

			item := c.crossbarOutBufs[1].Peek()
			Expect(item).NotTo(BeNil())

			f := item.(flitPipelineItem).flit
			Expect(f.Hops).To(Equal(1))
			Expect(f.VC).To(Equal(0))
			Expect(f.SrcRouter).To(Equal(c.id))
		})

		It("should emit one batched credit per input per cycle", func() {
			c.useFastPath[0*c.numVCs+0] = false
			c.useFastPath[0*c.numVCs+1] = false
			stageVC(c, 0, 0, 0, 1, 0)
			stageVC(c, 0, 1, 1, 1, 0)

			// Input speedup is 1, so the two VCs cannot transfer in the
			// same cycle; two cycles produce two single-entry credits.
			c.allocSwitch()
			c.cycle++
			c.movePipelines()
			c.allocSwitch()
			c.movePipelines()

			item := c.creditOutBufs[0].Pop()
			Expect(item).NotTo(BeNil())
			credit := item.(creditPipelineItem).credit
			Expect(credit.VCs).To(HaveLen(1))
			Expect(credit.DstRouter).To(Equal(5))
		})

		It("should disable a bypass beaten by the slow path", func() {
			c.useFastPath[0*c.numVCs+1] = false
			slow := stageVC(c, 0, 1, 1, 1, 0)
			fast := stageVC(c, 0, 0, 1, 1, 0)

			c.allocSwitch()

			Expect(slow.Empty()).To(BeTrue())
			Expect(fast.Empty()).To(BeFalse())
			Expect(c.useFastPath[0*c.numVCs+0]).To(BeFalse())
		})

		It("should disable a bypass that lost arbitration outright", func() {
			stageVC(c, 0, 0, 1, 1, 0)
			stageVC(c, 1, 0, 1, 1, 0)

			c.allocSwitch()

			winner := c.bufs[0].VC(0)
			loser := c.bufs[1].VC(0)
			Expect(winner.Empty()).To(BeTrue())
			Expect(loser.Empty()).To(BeFalse())
			Expect(c.useFastPath[0*c.numVCs+0]).To(BeTrue())
			Expect(c.useFastPath[1*c.numVCs+0]).To(BeFalse())
		})

		It("should re-enable the bypass for a drained slow-path VC", func() {
			c.useFastPath[0*c.numVCs+0] = false
			stageVC(c, 0, 0, 1, 1, 0)

			c.allocSwitch()

			Expect(c.useFastPath[0*c.numVCs+0]).To(BeTrue())
		})

		It("should advance the input round-robin offset past the winner",
			func() {
				c.useFastPath[0*c.numVCs+0] = false
				stageVC(c, 0, 0, 1, 1, 0)

				c.allocSwitch()

				Expect(c.swRROffsets[0]).To(Equal(1))
			})

		It("should panic when a granted VC finds no output VC", func() {
			c.useFastPath[0*c.numVCs+0] = false
			ch := stageVC(c, 0, 0, 1, 1, 0)

			for v := 0; v < c.numVCs; v++ {
				c.nextBufs[1].Take(v)
			}

			Expect(func() { c.finalizeVCAllocation(0, 0, ch, 1) }).To(Panic())
		})
	})

	Context("switch holding", func() {
		BeforeEach(func() {
			c = makeTestRouter(true)
		})

		It("should hold the slot for a whole packet and then release it",
			func() {
				c.useFastPath[0*c.numVCs+0] = false
				ch := stageVC(c, 0, 0, 1, 3, 0)

				c.allocSwitch()
				Expect(ch.Size()).To(Equal(2))
				Expect(c.switchHoldIn[0]).To(Equal(1))
				Expect(c.switchHoldVC[0]).To(Equal(0))
				Expect(c.switchHoldOut[1]).To(Equal(0))

				// Held transfers bypass the allocator and the state timer.
				c.cycle++
				c.allocSwitch()
				Expect(ch.Size()).To(Equal(1))

				c.cycle++
				c.allocSwitch()
				Expect(ch.Empty()).To(BeTrue())
				Expect(ch.State()).To(Equal(noc.VCIdle))
				Expect(c.switchHoldIn[0]).To(Equal(-1))
				Expect(c.switchHoldVC[0]).To(Equal(-1))
				Expect(c.switchHoldOut[1]).To(Equal(-1))
			})

		It("should starve a competitor while the hold stands", func() {
			c.useFastPath[0*c.numVCs+0] = false
			c.useFastPath[1*c.numVCs+0] = false
			held := stageVC(c, 0, 0, 1, 3, 0)
			competitor := stageVC(c, 1, 0, 1, 3, 0)

			c.allocSwitch()
			c.cycle++
			c.allocSwitch()

			Expect(held.Size()).To(Equal(1))
			Expect(competitor.Size()).To(Equal(3))
		})

		It("should skip but keep a hold whose VC ran dry", func() {
			c.switchHoldIn[0] = 1
			c.switchHoldVC[0] = 0
			c.switchHoldOut[1] = 0

			c.allocSwitch()

			Expect(c.switchHoldIn[0]).To(Equal(1))
			Expect(c.switchHoldVC[0]).To(Equal(0))
			Expect(c.switchHoldOut[1]).To(Equal(0))
		})
	})

	Context("priority contention", func() {
		It("should keep only the highest-priority request per slot", func() {
			c.useFastPath[0*c.numVCs+0] = false
			c.useFastPath[0*c.numVCs+1] = false
			stageVC(c, 0, 0, 1, 1, 5)
			stageVC(c, 0, 1, 1, 1, 9)

			c.swAllocator.Clear()
			c.buildSlowPathRequests(0)

			Expect(c.swAllocator.ReadRequest(0, 1)).To(Equal(1),
				"priority 9 should displace priority 5")
		})
	})

	Context("single-flit packet end to end through allocation", func() {
		It("should request, win, activate, transfer, and credit in one pass",
			func() {
				c.useFastPath[0*c.numVCs+0] = false
				ch := stageVC(c, 0, 0, 1, 1, 0)

				madeProgress := c.allocSwitch()
				Expect(madeProgress).To(BeTrue())

				Expect(ch.Empty()).To(BeTrue())
				Expect(ch.State()).To(Equal(noc.VCIdle))
				Expect(c.useFastPath[0*c.numVCs+0]).To(BeTrue(),
					"the drained VC earns the bypass back")

				c.movePipelines()
				Expect(c.crossbarOutBufs[1].Peek()).NotTo(BeNil())
				Expect(c.creditOutBufs[0].Peek()).NotTo(BeNil())
			})
	})
})
