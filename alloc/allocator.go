// Package alloc provides switch allocators that match crossbar inputs to
// crossbar outputs, one grant per input and one per output per cycle.
package alloc

import "fmt"

// An Allocator matches requests from expanded crossbar inputs to expanded
// crossbar outputs. Implementations differ in matching policy only; the
// request bookkeeping and the at-most-one-grant-per-side guarantee are
// common to all of them.
type Allocator interface {
	// Clear discards all requests and grants.
	Clear()

	// AddRequest registers a request from an input to an output. The label
	// identifies the requesting virtual channel. If a request for the same
	// input-output pair is already standing, the new request replaces it
	// only when it carries a strictly higher priority.
	AddRequest(input, output, label, priority, subPriority int)

	// ReadRequest returns the label of the standing request for the given
	// input-output pair, or -1 if there is none.
	ReadRequest(input, output int) int

	// Allocate computes the matching over the standing requests.
	Allocate()

	// OutputAssigned returns the output granted to the input, or -1.
	OutputAssigned(input int) int

	// InputAssigned returns the input granted to the output, or -1.
	InputAssigned(output int) int

	// NumInputs returns the number of expanded inputs.
	NumInputs() int

	// NumOutputs returns the number of expanded outputs.
	NumOutputs() int
}

// New creates an allocator of the named kind. Supported kinds are "islip"
// (iterative round-robin matching) and "sep" (one-shot separable
// input-first matching by priority). iters is only meaningful for
// iterative kinds.
func New(kind string, inputs, outputs, iters int) (Allocator, error) {
	switch kind {
	case "islip":
		return newISLIP(inputs, outputs, iters), nil
	case "sep":
		return newSeparable(inputs, outputs), nil
	default:
		return nil, fmt.Errorf("unknown switch allocator %q", kind)
	}
}

type request struct {
	input, output int
	label         int
	priority      int
	subPriority   int
}

// requestMatrix stores at most one request per input-output pair and the
// grant vectors for both sides.
type requestMatrix struct {
	numInputs, numOutputs int

	// requests[input] maps output -> standing request.
	requests []map[int]*request

	inputGrants  []int
	outputGrants []int
}

func newRequestMatrix(inputs, outputs int) requestMatrix {
	m := requestMatrix{
		numInputs:    inputs,
		numOutputs:   outputs,
		requests:     make([]map[int]*request, inputs),
		inputGrants:  make([]int, inputs),
		outputGrants: make([]int, outputs),
	}
	for i := range m.requests {
		m.requests[i] = make(map[int]*request)
	}
	m.clear()

	return m
}

func (m *requestMatrix) clear() {
	for i := range m.requests {
		for o := range m.requests[i] {
			delete(m.requests[i], o)
		}
		m.inputGrants[i] = -1
	}
	for o := range m.outputGrants {
		m.outputGrants[o] = -1
	}
}

func (m *requestMatrix) addRequest(input, output, label, prio, subPrio int) {
	if input < 0 || input >= m.numInputs {
		panic(fmt.Sprintf("request input %d out of range", input))
	}
	if output < 0 || output >= m.numOutputs {
		panic(fmt.Sprintf("request output %d out of range", output))
	}

	standing := m.requests[input][output]
	if standing != nil && standing.priority >= prio {
		return
	}

	m.requests[input][output] = &request{
		input:       input,
		output:      output,
		label:       label,
		priority:    prio,
		subPriority: subPrio,
	}
}

func (m *requestMatrix) readRequest(input, output int) int {
	r := m.requests[input][output]
	if r == nil {
		return -1
	}

	return r.label
}

func (m *requestMatrix) match(input, output int) {
	m.inputGrants[input] = output
	m.outputGrants[output] = input
}
