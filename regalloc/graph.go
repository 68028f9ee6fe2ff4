// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The interference graph.  There is one node for each register that
// has a live interval and an edge between any two nodes whose
// intervals overlap.

package regalloc

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/s48/shaderalloc/shader"
)

type NodeT struct {
	Index    int
	Reg      shader.VRegT
	Class    *RegisterClassT
	Interval IntervalT
	Slot     int // assigned slot, -1 until colored
}

func (node *NodeT) String() string {
	return fmt.Sprintf("n%d(v%d %s)", node.Index, int(node.Reg), node.Class)
}

type InterferenceGraphT struct {
	Nodes []*NodeT
	adj   []intsets.Sparse // node indexes
	byReg map[shader.VRegT]*NodeT
}

func (graph *InterferenceGraphT) Node(reg shader.VRegT) *NodeT {
	return graph.byReg[reg]
}

func (graph *InterferenceGraphT) Neighbors(node *NodeT) *intsets.Sparse {
	return &graph.adj[node.Index]
}

func (graph *InterferenceGraphT) Interferes(x *NodeT, y *NodeT) bool {
	return graph.adj[x.Index].Has(y.Index)
}

func (graph *InterferenceGraphT) EdgeCount() int {
	count := 0
	for i := range graph.adj {
		count += graph.adj[i].Len()
	}
	return count / 2
}

func (graph *InterferenceGraphT) addEdge(x int, y int) {
	if x == y {
		panic(fmt.Sprintf("node %d interferes with itself", x))
	}
	graph.adj[x].Insert(y)
	graph.adj[y].Insert(x)
}

// The class a register must be allocated from.  Aligned registers go
// in the aligned-pair class if there is one and in the ordinary pair
// class otherwise.

func classFor(program *shader.ProgramT, reg shader.VRegT, classes *ClassSetT) (*RegisterClassT, error) {
	size := program.Regs.Size(reg)
	if program.Regs.Has(reg, shader.RegAligned) {
		if size != 2 {
			return nil, shader.Fail(shader.StageAllocate, shader.ErrAlignment,
				"%s is marked aligned but has size %d", program.Regs.Name(reg), size)
		}
		if aligned := classes.Aligned(); aligned != nil {
			if aligned.Count == 0 {
				return nil, shader.Fail(shader.StageAllocate, shader.ErrAlignment,
					"%s: no even register pairs starting at g%d with %d registers per unit",
					program.Regs.Name(reg), classes.Base, classes.Width)
			}
			return aligned, nil
		}
	}
	class := classes.ForSize(size)
	if class == nil {
		panic(fmt.Sprintf("no register class for size %d", size))
	}
	return class, nil
}

// Node order follows register order.  Edges are found by sweeping
// over the intervals in order of their start, keeping the set of
// intervals that are still live.

func BuildGraph(program *shader.ProgramT, live *LiveIntervalsT, classes *ClassSetT) (*InterferenceGraphT, error) {
	graph := &InterferenceGraphT{byReg: map[shader.VRegT]*NodeT{}}
	for reg := range program.Regs.Count() {
		interval, found := live.Get(shader.VRegT(reg))
		if !found {
			continue
		}
		class, err := classFor(program, shader.VRegT(reg), classes)
		if err != nil {
			return nil, err
		}
		node := &NodeT{
			Index:    len(graph.Nodes),
			Reg:      shader.VRegT(reg),
			Class:    class,
			Interval: interval,
			Slot:     -1,
		}
		graph.Nodes = append(graph.Nodes, node)
		graph.byReg[node.Reg] = node
	}
	graph.adj = make([]intsets.Sparse, len(graph.Nodes))
	active := []*NodeT{}
	for _, interval := range live.All() {
		node := graph.byReg[interval.Reg]
		stillLive := active[:0]
		for _, other := range active {
			if interval.First <= other.Interval.Last {
				stillLive = append(stillLive, other)
				graph.addEdge(node.Index, other.Index)
			}
		}
		active = append(stillLive, node)
	}
	return graph, nil
}
