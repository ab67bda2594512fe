// Package routing provides route tables and the per-packet route sets the
// switch-allocation stage consumes.
package routing

// A Candidate is one legal (output VC, priority) option at an output port.
type Candidate struct {
	VC       int
	Priority int
}

// A RouteSet lists, per output port, the legal output virtual channels a
// packet may be allocated, with their priorities. It is computed when a head
// flit reaches the front of an input VC and is read-only afterwards.
type RouteSet struct {
	candidates [][]Candidate
}

// NewRouteSet creates a route set covering numOutputs output ports.
func NewRouteSet(numOutputs int) *RouteSet {
	return &RouteSet{
		candidates: make([][]Candidate, numOutputs),
	}
}

// AddRange adds the output VCs vcLo through vcHi (inclusive) at the given
// output port, all with the same priority.
func (r *RouteSet) AddRange(output, vcLo, vcHi, priority int) {
	for vc := vcLo; vc <= vcHi; vc++ {
		r.candidates[output] = append(r.candidates[output],
			Candidate{VC: vc, Priority: priority})
	}
}

// NumVCs returns the number of candidate VCs at the output port.
func (r *RouteSet) NumVCs(output int) int {
	return len(r.candidates[output])
}

// Candidate returns the i-th candidate at the output port.
func (r *RouteSet) Candidate(output, i int) Candidate {
	return r.candidates[output][i]
}
