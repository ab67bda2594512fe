package vc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/loom/noc"
	"github.com/sarchlab/loom/routing"
	"github.com/sarchlab/loom/vc"
)

func buildFlit(seq, numFlits int) *noc.Flit {
	return noc.FlitBuilder{}.
		WithPacketID("pkt").
		WithSeqID(seq).
		WithNumFlits(numFlits).
		Build()
}

func TestVirtualChannelFIFO(t *testing.T) {
	ch := vc.NewInputBuffer(0, 2, 4).VC(0)

	require.True(t, ch.Empty())
	assert.Nil(t, ch.Front())

	f0 := buildFlit(0, 2)
	f1 := buildFlit(1, 2)
	ch.Push(f0)
	ch.Push(f1)

	assert.Equal(t, 2, ch.Size())
	assert.Same(t, f0, ch.Front())
	assert.Same(t, f0, ch.Pop())
	assert.Same(t, f1, ch.Pop())
	assert.True(t, ch.Empty())
}

func TestVirtualChannelOverflowPanics(t *testing.T) {
	ch := vc.NewInputBuffer(0, 1, 2).VC(0)

	ch.Push(buildFlit(0, 3))
	ch.Push(buildFlit(1, 3))

	assert.Panics(t, func() { ch.Push(buildFlit(2, 3)) })
}

func TestVirtualChannelStateTimer(t *testing.T) {
	ch := vc.NewInputBuffer(0, 1, 2).VC(0)

	assert.Equal(t, noc.VCIdle, ch.State())

	ch.SetState(noc.VCAllocating, 10)
	assert.Equal(t, noc.VCAllocating, ch.State())
	assert.Equal(t, int64(0), ch.StateCycles(10))
	assert.Equal(t, int64(3), ch.StateCycles(13))

	ch.SetState(noc.VCActive, 13)
	assert.Equal(t, int64(0), ch.StateCycles(13))
}

func TestVirtualChannelOutputBinding(t *testing.T) {
	ch := vc.NewInputBuffer(0, 1, 2).VC(0)

	rs := routing.NewRouteSet(2)
	rs.AddRange(1, 0, 3, 0)

	ch.SetState(noc.VCAllocating, 0)
	ch.Route(rs, 7)
	assert.Same(t, rs, ch.RouteSet())
	assert.Equal(t, 7, ch.Priority())

	ch.SetState(noc.VCActive, 1)
	ch.SetOutput(1, 2)
	assert.Equal(t, 1, ch.OutputPort())
	assert.Equal(t, 2, ch.OutputVC())

	// The binding dies with the packet.
	ch.SetState(noc.VCIdle, 2)
	assert.Nil(t, ch.RouteSet())
	assert.Panics(t, func() { ch.OutputPort() })
}

func TestBufferStateClaim(t *testing.T) {
	s := vc.NewBufferState("BS", 2, 2)

	require.True(t, s.IsAvailableFor(0))
	s.Take(0)
	assert.False(t, s.IsAvailableFor(0))
	assert.True(t, s.IsAvailableFor(1))

	assert.Panics(t, func() { s.Take(0) }, "double claim")
}

func TestBufferStateCreditRoundTrip(t *testing.T) {
	s := vc.NewBufferState("BS", 1, 2)
	s.Take(0)

	head := buildFlit(0, 2)
	tail := buildFlit(1, 2)

	s.SendingFlit(head)
	assert.Equal(t, 1, s.Occupancy(0))
	assert.False(t, s.IsFullFor(0))

	s.SendingFlit(tail)
	assert.Equal(t, 2, s.Occupancy(0))
	assert.True(t, s.IsFullFor(0))
	assert.True(t, s.IsAvailableFor(0), "tail releases the claim")

	s.RecvCredit(0)
	s.RecvCredit(0)
	assert.Equal(t, 0, s.Occupancy(0))

	assert.Panics(t, func() { s.RecvCredit(0) }, "credit underflow")
}

func TestBufferStateOverflowPanics(t *testing.T) {
	s := vc.NewBufferState("BS", 1, 1)
	s.Take(0)
	s.SendingFlit(buildFlit(0, 2))

	assert.Panics(t, func() { s.SendingFlit(buildFlit(1, 2)) })
}

func TestBufferStateTailOnUnclaimedVCPanics(t *testing.T) {
	s := vc.NewBufferState("BS", 1, 4)

	assert.Panics(t, func() { s.SendingFlit(buildFlit(1, 2)) })
}
