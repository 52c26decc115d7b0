// Package topology connects the machines of one region and orders them for
// future computation.
//
// Machines are identified by their index in the region, which is also their
// spatial order. Connections come from coincident locations: an output
// location equal to another machine's input location. Ordering uses
// Tarjan's algorithm to quarantine cycles and Kahn's algorithm, tie-broken
// by index, to order the rest.
package topology

import (
	"container/heap"

	"github.com/roach88/flowgrid/internal/geom"
)

// Node is a machine's input and output locations in the region frame.
type Node struct {
	Inputs  []geom.Location
	Outputs []geom.Location
}

// Target identifies an input slot of a machine.
type Target struct {
	Machine int `json:"machine"`
	Slot    int `json:"slot"`
}

// Edges holds, for every machine and output slot, the input it feeds, or
// nil when the output is unconnected.
type Edges [][]*Target

// Connect builds the output edges of a region. When two outputs claim one
// input, the machine earlier in spatial order keeps it.
func Connect(nodes []Node) Edges {
	inputs := make(map[geom.Location]Target)
	for m, n := range nodes {
		for s, loc := range n.Inputs {
			if _, taken := inputs[loc]; !taken {
				inputs[loc] = Target{Machine: m, Slot: s}
			}
		}
	}
	claimed := make(map[Target]bool)
	edges := make(Edges, len(nodes))
	for m, n := range nodes {
		edges[m] = make([]*Target, len(n.Outputs))
		for s, loc := range n.Outputs {
			target, ok := inputs[loc]
			if !ok || claimed[target] {
				continue
			}
			claimed[target] = true
			edges[m][s] = &target
		}
	}
	return edges
}

// Successors returns the distinct machines fed by machine m, in slot order.
func (e Edges) Successors(m int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, t := range e[m] {
		if t != nil && !seen[t.Machine] {
			seen[t.Machine] = true
			out = append(out, t.Machine)
		}
	}
	return out
}

// Ordering is the processing order of a region.
type Ordering struct {
	// Order lists every machine not in a cycle, upstream first.
	Order []int
	// InCycle marks machines on a cycle. They get no future.
	InCycle []bool
	Cycles  []Cycle
}

// Sort orders the machines of a region. Machines on a cycle are excluded
// from Order; machines downstream of a cycle are ordered normally and see
// nothing arriving from it.
func Sort(e Edges) Ordering {
	n := len(e)
	ord := Ordering{InCycle: make([]bool, n), Order: make([]int, 0, n)}
	ord.Cycles = findCycles(e)
	for _, c := range ord.Cycles {
		for _, m := range c.Machines {
			ord.InCycle[m] = true
		}
	}

	indegree := make([]int, n)
	for m := 0; m < n; m++ {
		if ord.InCycle[m] {
			continue
		}
		for _, s := range e.Successors(m) {
			indegree[s]++
		}
	}
	ready := &indexHeap{}
	for m := 0; m < n; m++ {
		if !ord.InCycle[m] && indegree[m] == 0 {
			heap.Push(ready, m)
		}
	}
	for ready.Len() > 0 {
		m := heap.Pop(ready).(int)
		ord.Order = append(ord.Order, m)
		for _, s := range e.Successors(m) {
			if ord.InCycle[s] {
				continue
			}
			indegree[s]--
			if indegree[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	return ord
}

// indexHeap is a min-heap of machine indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
