package alloc

// islip implements iterative round-robin matching (iSLIP). Each output
// grants the first requesting input after its grant pointer; each input
// accepts the first granting output after its accept pointer. Pointers only
// advance for matches made in the first iteration, which is what keeps the
// policy starvation-free.
type islip struct {
	requestMatrix

	iters      int
	grantPtrs  []int
	acceptPtrs []int
}

func newISLIP(inputs, outputs, iters int) *islip {
	if iters < 1 {
		iters = 1
	}

	return &islip{
		requestMatrix: newRequestMatrix(inputs, outputs),
		iters:         iters,
		grantPtrs:     make([]int, outputs),
		acceptPtrs:    make([]int, inputs),
	}
}

func (a *islip) Clear() { a.clear() }

func (a *islip) AddRequest(input, output, label, prio, subPrio int) {
	a.addRequest(input, output, label, prio, subPrio)
}

func (a *islip) ReadRequest(input, output int) int {
	return a.readRequest(input, output)
}

func (a *islip) OutputAssigned(input int) int { return a.inputGrants[input] }
func (a *islip) InputAssigned(output int) int { return a.outputGrants[output] }
func (a *islip) NumInputs() int               { return a.numInputs }
func (a *islip) NumOutputs() int              { return a.numOutputs }

func (a *islip) Allocate() {
	for iter := 0; iter < a.iters; iter++ {
		grants := a.grantPhase()
		accepted := a.acceptPhase(grants, iter == 0)

		if !accepted {
			break
		}
	}
}

// grantPhase lets every unmatched output pick one unmatched requester,
// starting at its grant pointer. It returns, per output, the granted input
// or -1.
func (a *islip) grantPhase() []int {
	grants := make([]int, a.numOutputs)

	for out := 0; out < a.numOutputs; out++ {
		grants[out] = -1
		if a.outputGrants[out] != -1 {
			continue
		}

		for i := 0; i < a.numInputs; i++ {
			in := (a.grantPtrs[out] + i) % a.numInputs
			if a.inputGrants[in] != -1 {
				continue
			}
			if a.requests[in][out] == nil {
				continue
			}

			grants[out] = in
			break
		}
	}

	return grants
}

// acceptPhase lets every unmatched input accept one of the outputs that
// granted to it, starting at its accept pointer. Pointers move only when
// movePtrs is set.
func (a *islip) acceptPhase(grants []int, movePtrs bool) (accepted bool) {
	for in := 0; in < a.numInputs; in++ {
		if a.inputGrants[in] != -1 {
			continue
		}

		for i := 0; i < a.numOutputs; i++ {
			out := (a.acceptPtrs[in] + i) % a.numOutputs
			if grants[out] != in {
				continue
			}

			a.match(in, out)
			accepted = true

			if movePtrs {
				a.grantPtrs[out] = (in + 1) % a.numInputs
				a.acceptPtrs[in] = (out + 1) % a.numOutputs
			}

			break
		}
	}

	return accepted
}
