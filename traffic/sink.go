package traffic

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"

	"github.com/sarchlab/loom/noc"
)

// A Sink consumes flits at one router output. It returns one credit per
// flit, batched per cycle, so the upstream router sees its buffer slots
// freed as soon as flits are ejected. It also checks that the flits of each
// packet arrive in order and records packet latency.
type Sink struct {
	*sim.TickingComponent

	id int

	port       sim.Port
	creditPort sim.Port
	remote     sim.RemotePort

	received map[string]int

	numFlitsReceived   int64
	numPacketsReceived int64
	totalLatency       sim.VTimeInSec
}

// NewSink creates a sink attached to one router output.
func NewSink(name string, engine sim.Engine, freq sim.Freq, id int) *Sink {
	s := &Sink{
		id:       id,
		received: make(map[string]int),
	}
	s.TickingComponent = sim.NewTickingComponent(name, engine, freq, s)

	s.port = sim.NewPort(s, 4, 1, name+".In")
	s.AddPort("In", s.port)

	s.creditPort = sim.NewPort(s, 1, 4, name+".CreditReturn")
	s.AddPort("CreditReturn", s.creditPort)

	return s
}

// ID returns the node ID of the sink.
func (s *Sink) ID() int {
	return s.id
}

// Port returns the port flits arrive at.
func (s *Sink) Port() sim.Port {
	return s.port
}

// CreditReturnPort returns the port credits are sent back from.
func (s *Sink) CreditReturnPort() sim.Port {
	return s.creditPort
}

// SetRemote records the router port credits are returned to.
func (s *Sink) SetRemote(remote sim.RemotePort) {
	s.remote = remote
}

// NumFlitsReceived returns the number of flits consumed so far.
func (s *Sink) NumFlitsReceived() int64 {
	return s.numFlitsReceived
}

// NumPacketsReceived returns the number of fully arrived packets.
func (s *Sink) NumPacketsReceived() int64 {
	return s.numPacketsReceived
}

// AvgLatency returns the average head-injection to tail-ejection latency of
// the packets received so far.
func (s *Sink) AvgLatency() sim.VTimeInSec {
	if s.numPacketsReceived == 0 {
		return 0
	}

	return s.totalLatency / sim.VTimeInSec(s.numPacketsReceived)
}

// Tick consumes every flit that arrived this cycle and returns one batched
// credit for them.
func (s *Sink) Tick() bool {
	var creditVCs []int
	dstRouter := -1

	for {
		item := s.port.PeekIncoming()
		if item == nil {
			break
		}

		f := item.(*noc.Flit)
		s.port.RetrieveIncoming()

		s.consumeFlit(f)

		creditVCs = append(creditVCs, f.VC)
		dstRouter = f.SrcRouter
	}

	if creditVCs == nil {
		return false
	}

	credit := noc.CreditBuilder{}.
		WithSrc(s.creditPort.AsRemote()).
		WithDst(s.remote).
		WithDstRouter(dstRouter).
		WithVCs(creditVCs).
		Build()

	err := s.creditPort.Send(credit)
	if err != nil {
		panic(fmt.Sprintf("%s: credit channel is saturated", s.Name()))
	}

	return true
}

func (s *Sink) consumeFlit(f *noc.Flit) {
	if f.DstRouter != s.id {
		panic(fmt.Sprintf(
			"%s: flit %s for node %d ejected at node %d",
			s.Name(), f.ID, f.DstRouter, s.id))
	}

	seen := s.received[f.PacketID]
	if f.SeqID != seen {
		panic(fmt.Sprintf(
			"%s: packet %s flit %d arrived after %d flits",
			s.Name(), f.PacketID, f.SeqID, seen))
	}
	s.received[f.PacketID] = seen + 1

	s.numFlitsReceived++

	tracing.EndTask(f.ID+"_e2e", s)

	if f.Watch {
		noc.Trace("FlitEjected",
			"sink", s.Name(), "flit", f.ID,
			"packet", f.PacketID, "seq", f.SeqID, "hops", f.Hops)
	}

	if f.Tail {
		s.numPacketsReceived++
		s.totalLatency += s.CurrentTime() - f.InjectionTime
		delete(s.received, f.PacketID)
	}
}
