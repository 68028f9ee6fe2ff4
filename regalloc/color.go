// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Graph coloring, optimistic Chaitin-Briggs style.  Nodes are removed
// from the graph one at a time and pushed on a stack.  A node that is
// trivially colorable, meaning its remaining neighbors can't block all
// of its class's slots, is always preferred.  When there are none the
// heaviest node is pushed anyway in the hope that its neighbors will
// end up sharing slots.  Nodes are then popped and each is given the
// lowest slot that doesn't conflict with a colored neighbor.

package regalloc

import (
	"golang.org/x/tools/container/intsets"

	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

// Returns nil if every node was colored, otherwise the node that
// could not be.

func Color(graph *InterferenceGraphT, classes *ClassSetT) *NodeT {
	var remaining intsets.Sparse
	for _, node := range graph.Nodes {
		node.Slot = -1
		remaining.Insert(node.Index)
	}
	stack := util.MakeStack[*NodeT](0)
	var members []int
	for !remaining.IsEmpty() {
		members = remaining.AppendTo(members[:0])
		var pick *NodeT
		var heaviest *NodeT
		heaviestWeight := -1
		for _, i := range members {
			node := graph.Nodes[i]
			weight := graph.neighborWeight(node, &remaining, classes)
			if weight < node.Class.Count {
				pick = node
				break
			}
			if heaviestWeight < weight {
				heaviest = node
				heaviestWeight = weight
			}
		}
		if pick == nil {
			pick = heaviest
		}
		stack.Push(pick)
		remaining.Remove(pick.Index)
	}
	var used intsets.Sparse
	for !stack.Empty() {
		node := stack.Pop()
		used.Clear()
		for _, i := range graph.adj[node.Index].AppendTo(nil) {
			if slot := graph.Nodes[i].Slot; slot != -1 {
				used.Insert(slot)
			}
		}
		for _, slot := range node.Class.Slots.AppendTo(nil) {
			if !classes.Conflicts(slot).Intersects(&used) {
				node.Slot = slot
				break
			}
		}
		if node.Slot == -1 {
			return node
		}
	}
	return nil
}

// The sum of q values of the node's neighbors that are still in the
// graph.

func (graph *InterferenceGraphT) neighborWeight(node *NodeT, remaining *intsets.Sparse, classes *ClassSetT) int {
	weight := 0
	for _, i := range graph.adj[node.Index].AppendTo(nil) {
		if remaining.Has(i) {
			weight += classes.Q(node.Class, graph.Nodes[i].Class)
		}
	}
	return weight
}

// Checks a coloring: every node has a slot from its class, neighbors
// occupy disjoint units, and aligned registers start on an even
// hardware register.

func CheckAllocation(graph *InterferenceGraphT, classes *ClassSetT) error {
	for _, node := range graph.Nodes {
		if node.Slot == -1 || !node.Class.Slots.Has(node.Slot) {
			return shader.Fail(shader.StageAllocate, shader.ErrStructure,
				"%s was given slot %d, not in its class", node, node.Slot)
		}
		if node.Class.Aligned && classes.Physical(node.Slot)%2 != 0 {
			return shader.Fail(shader.StageAllocate, shader.ErrAlignment,
				"%s starts at odd register g%d", node, classes.Physical(node.Slot))
		}
	}
	for _, node := range graph.Nodes {
		for _, i := range graph.adj[node.Index].AppendTo(nil) {
			other := graph.Nodes[i]
			if classes.Conflicts(node.Slot).Has(other.Slot) {
				return shader.Fail(shader.StageAllocate, shader.ErrStructure,
					"interfering %s and %s share registers", node, other)
			}
		}
	}
	return nil
}
