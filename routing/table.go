package routing

import "fmt"

// A Table maps destination nodes to output ports of one router. Routes are
// registered at network-construction time, so lookups during simulation
// never miss.
type Table interface {
	Register(dstRouter, output int)
	OutputFor(dstRouter int) int
}

// NewTable creates an empty routing table.
func NewTable() Table {
	return &table{
		outputs: make(map[int]int),
	}
}

type table struct {
	outputs map[int]int
}

func (t *table) Register(dstRouter, output int) {
	t.outputs[dstRouter] = output
}

func (t *table) OutputFor(dstRouter int) int {
	out, ok := t.outputs[dstRouter]
	if !ok {
		panic(fmt.Sprintf("no route to node %d", dstRouter))
	}

	return out
}
