package network_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/network"
)

// injectAllToAll makes every terminal send numPackets packets to every other
// node in turn.
func injectAllToAll(n *network.Network, numPackets, packetSize int) int64 {
	var total int64

	numNodes := n.NumTerminals()
	for src := 0; src < numNodes; src++ {
		g := n.Generator(src)
		for p := 0; p < numPackets; p++ {
			dst := (src + 1 + p%(numNodes-1)) % numNodes
			g.EnqueuePacket(dst, packetSize, 0)
			total++
		}
	}

	return total
}

func expectAllDelivered(n *network.Network, totalPackets int64) {
	Expect(n.Done()).To(BeTrue())
	Expect(n.TotalPacketsSent()).To(Equal(totalPackets))
	Expect(n.TotalPacketsReceived()).To(Equal(totalPackets))
}

var _ = Describe("Network", func() {
	var (
		engine  sim.Engine
		builder network.Builder
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		builder = network.MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.GHz)
	})

	It("should deliver all packets through a single router", func() {
		n := builder.BuildSingleRouter("SR", 4)

		total := injectAllToAll(n, 8, 4)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
		Expect(n.Router(0).NumFlitsTransferred()).To(Equal(total * 4),
			"every flit crosses the crossbar exactly once")

		for i := 0; i < n.NumTerminals(); i++ {
			Expect(float64(n.Sink(i).AvgLatency())).To(BeNumerically(">", 0))
		}
	})

	It("should deliver with switch holding enabled", func() {
		n := builder.WithSwitchHoldForPacket().BuildSingleRouter("SRH", 4)

		total := injectAllToAll(n, 8, 4)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
	})

	It("should deliver with the separable allocator", func() {
		n := builder.WithAllocator("sep", 1).BuildSingleRouter("SRS", 4)

		total := injectAllToAll(n, 8, 4)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
	})

	It("should deliver with a longer switch allocation delay", func() {
		n := builder.WithSwitchAllocDelay(3).BuildSingleRouter("SRD", 2)

		total := injectAllToAll(n, 4, 2)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
	})

	It("should deliver single-flit packets", func() {
		n := builder.BuildSingleRouter("SR1", 4)

		total := injectAllToAll(n, 8, 1)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
	})

	It("should deliver all packets around a ring", func() {
		n := builder.BuildRing("Ring", 4)

		total := injectAllToAll(n, 4, 2)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, total)
	})

	It("should carry multi-hop ring traffic the shorter way", func() {
		n := builder.BuildRing("Ring2", 5)

		// Node 0 to node 2 is two clockwise hops.
		n.Generator(0).EnqueuePacket(2, 3, 0)

		Expect(engine.Run()).To(Succeed())

		expectAllDelivered(n, 1)
		Expect(n.Router(0).NumFlitsTransferred()).To(Equal(int64(3)))
		Expect(n.Router(1).NumFlitsTransferred()).To(Equal(int64(3)))
		Expect(n.Router(2).NumFlitsTransferred()).To(Equal(int64(3)))
		Expect(n.Router(3).NumFlitsTransferred()).To(BeZero())
		Expect(n.Router(4).NumFlitsTransferred()).To(BeZero())
	})
})
