package traffic

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
)

var _ = Describe("Generator", func() {
	var g *Generator

	BeforeEach(func() {
		engine := sim.NewSerialEngine()
		g = NewGenerator("Gen", engine, 1*sim.GHz, 0, 2, 4)
	})

	It("should report done with nothing scheduled", func() {
		Expect(g.Done()).To(BeTrue())
	})

	It("should claim rotating VCs for successive packets", func() {
		g.EnqueuePacket(1, 1, 0)
		g.EnqueuePacket(1, 1, 0)

		Expect(g.startNextPacket()).To(BeTrue())
		first := g.current.vc
		g.current = nil

		Expect(g.startNextPacket()).To(BeTrue())
		second := g.current.vc

		Expect(first).NotTo(Equal(second))
	})

	It("should stall when every VC is claimed", func() {
		g.dstView.Take(0)
		g.dstView.Take(1)

		g.EnqueuePacket(1, 1, 0)

		Expect(g.startNextPacket()).To(BeFalse())
		Expect(g.Done()).To(BeFalse())
	})

	It("should hold the VC claim for the whole packet", func() {
		g.EnqueuePacket(1, 4, 0)
		Expect(g.startNextPacket()).To(BeTrue())

		v := g.current.vc
		Expect(g.dstView.IsAvailableFor(v)).To(BeFalse())
	})

	It("should reject empty packets", func() {
		Expect(func() { g.EnqueuePacket(1, 0, 0) }).To(Panic())
	})
})
