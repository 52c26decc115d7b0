package topology

import (
	"fmt"
	"sort"
	"strings"
)

// Cycle is a strongly connected set of machines.
//
// Cycles are not errors: the machines on them simply report InCycle and
// produce nothing.
type Cycle struct {
	// Machines lists the members in ascending order.
	Machines []int `json:"machines"`
	// Path walks the cycle and returns to its start: [a, b, c, a].
	Path    []int  `json:"path"`
	Message string `json:"message"`
}

// findCycles reports each SCC with more than one machine, or with an edge
// to itself, as a cycle. Cycles are ordered by their smallest member.
func findCycles(e Edges) []Cycle {
	var cycles []Cycle
	for _, scc := range tarjanSCC(e) {
		if len(scc) > 1 || hasSelfLoop(scc[0], e) {
			sort.Ints(scc)
			path := reconstructCyclePath(scc, e)
			cycles = append(cycles, Cycle{
				Machines: scc,
				Path:     path,
				Message:  fmt.Sprintf("machines form a loop: %s", formatPath(path)),
			})
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Machines[0] < cycles[j].Machines[0] })
	return cycles
}

func hasSelfLoop(m int, e Edges) bool {
	for _, s := range e.Successors(m) {
		if s == m {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in index order so the result is deterministic.
func tarjanSCC(e Edges) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, len(e))
		lowlink = make([]int, len(e))
		onStack = make([]bool, len(e))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range e.Successors(v) {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range e {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its smallest member
// until it returns to the start.
func reconstructCyclePath(scc []int, e Edges) []int {
	members := make(map[int]bool, len(scc))
	for _, m := range scc {
		members[m] = true
	}
	start := scc[0]
	current := start
	path := []int{current}
	visited := make(map[int]bool)
	for {
		visited[current] = true
		next := -1
		for _, s := range e.Successors(current) {
			if members[s] && (!visited[s] || s == start) {
				next = s
				break
			}
		}
		if next < 0 {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

func formatPath(path []int) string {
	parts := make([]string, len(path))
	for i, m := range path {
		parts[i] = fmt.Sprintf("#%d", m)
	}
	return strings.Join(parts, " → ")
}
