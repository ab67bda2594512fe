package alloc

// separable implements one-shot separable input-first matching. Each input
// first selects its highest-priority request; each output then picks the
// highest-priority input among those that selected it. Ties break
// round-robin so that equal-priority traffic does not starve.
type separable struct {
	requestMatrix

	inputPtrs  []int
	outputPtrs []int
}

func newSeparable(inputs, outputs int) *separable {
	return &separable{
		requestMatrix: newRequestMatrix(inputs, outputs),
		inputPtrs:     make([]int, inputs),
		outputPtrs:    make([]int, outputs),
	}
}

func (a *separable) Clear() { a.clear() }

func (a *separable) AddRequest(input, output, label, prio, subPrio int) {
	a.addRequest(input, output, label, prio, subPrio)
}

func (a *separable) ReadRequest(input, output int) int {
	return a.readRequest(input, output)
}

func (a *separable) OutputAssigned(input int) int { return a.inputGrants[input] }
func (a *separable) InputAssigned(output int) int { return a.outputGrants[output] }
func (a *separable) NumInputs() int               { return a.numInputs }
func (a *separable) NumOutputs() int              { return a.numOutputs }

func (a *separable) Allocate() {
	selected := a.inputStage()
	a.outputStage(selected)
}

// inputStage picks, for every input, the standing request with the highest
// priority. The scan starts at the input's round-robin pointer so equal
// priorities rotate.
func (a *separable) inputStage() []*request {
	selected := make([]*request, a.numInputs)

	for in := 0; in < a.numInputs; in++ {
		var best *request

		for i := 0; i < a.numOutputs; i++ {
			out := (a.inputPtrs[in] + i) % a.numOutputs
			r := a.requests[in][out]
			if r == nil {
				continue
			}
			if best == nil || r.priority > best.priority {
				best = r
			}
		}

		selected[in] = best
	}

	return selected
}

// outputStage resolves conflicts between inputs that selected the same
// output, again by priority with a rotating tie-break.
func (a *separable) outputStage(selected []*request) {
	for out := 0; out < a.numOutputs; out++ {
		var winner *request

		for i := 0; i < a.numInputs; i++ {
			in := (a.outputPtrs[out] + i) % a.numInputs
			r := selected[in]
			if r == nil || r.output != out {
				continue
			}
			if winner == nil || r.priority > winner.priority {
				winner = r
			}
		}

		if winner == nil {
			continue
		}

		a.match(winner.input, out)
		a.inputPtrs[winner.input] = (out + 1) % a.numOutputs
		a.outputPtrs[out] = (winner.input + 1) % a.numInputs
	}
}
