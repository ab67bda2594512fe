// Package network assembles routers, terminals, and links into runnable
// topologies.
package network

import (
	"github.com/sarchlab/loom/router"
	"github.com/sarchlab/loom/traffic"
)

// A Network holds the components of an assembled topology. Terminal i
// injects at node i and ejects at node i.
type Network struct {
	routers []*router.Comp
	gens    []*traffic.Generator
	sinks   []*traffic.Sink
}

// NumTerminals returns the number of injection/ejection node pairs.
func (n *Network) NumTerminals() int {
	return len(n.gens)
}

// NumRouters returns the number of routers.
func (n *Network) NumRouters() int {
	return len(n.routers)
}

// Router returns the i-th router.
func (n *Network) Router(i int) *router.Comp {
	return n.routers[i]
}

// Generator returns the generator injecting at node i.
func (n *Network) Generator(i int) *traffic.Generator {
	return n.gens[i]
}

// Sink returns the sink ejecting at node i.
func (n *Network) Sink(i int) *traffic.Sink {
	return n.sinks[i]
}

// Done reports whether every generator has drained.
func (n *Network) Done() bool {
	for _, g := range n.gens {
		if !g.Done() {
			return false
		}
	}

	return true
}

// TotalPacketsSent sums the packets injected by all generators.
func (n *Network) TotalPacketsSent() int64 {
	var total int64
	for _, g := range n.gens {
		total += g.NumPacketsSent()
	}

	return total
}

// TotalPacketsReceived sums the packets consumed by all sinks.
func (n *Network) TotalPacketsReceived() int64 {
	var total int64
	for _, s := range n.sinks {
		total += s.NumPacketsReceived()
	}

	return total
}
