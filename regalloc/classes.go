// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Register classes.  A register of size N units can be placed in any
// run of N consecutive units of the allocatable register file, so each
// size gets its own class whose slots are those runs.  The slots of all
// classes share one flat index space; two slots conflict if their unit
// runs overlap.  The aligned-pair class is the subset of the size two
// slots that start on an even hardware register.

package regalloc

import (
	"fmt"
	"slices"

	"golang.org/x/tools/container/intsets"

	"github.com/s48/shaderalloc/shader"
)

type RegisterClassT struct {
	Index   int
	Size    int // units per register
	Aligned bool
	First   int // first slot in the flat index space
	Count   int // number of slots
	Slots   intsets.Sparse
}

func (class *RegisterClassT) String() string {
	if class.Aligned {
		return fmt.Sprintf("class%d(aligned %d x %d)", class.Index, class.Size, class.Count)
	}
	return fmt.Sprintf("class%d(%d x %d)", class.Index, class.Size, class.Count)
}

type ClassSetT struct {
	Budget    int // allocatable units
	Base      int // hardware number of the first allocatable register
	Width     int // hardware registers per unit
	classes   []*RegisterClassT
	aligned   *RegisterClassT
	slotUnit  []int            // first unit covered by each slot
	slotSize  []int            // units covered by each slot
	conflicts []intsets.Sparse // per slot, every slot overlapping it (itself included)
	q         [][]int          // q[b][c]: most b slots a single c slot can block
}

func (set *ClassSetT) Classes() []*RegisterClassT { return set.classes }
func (set *ClassSetT) Aligned() *RegisterClassT   { return set.aligned }
func (set *ClassSetT) SlotCount() int             { return len(set.slotUnit) }
func (set *ClassSetT) SlotUnit(slot int) int      { return set.slotUnit[slot] }
func (set *ClassSetT) SlotSize(slot int) int      { return set.slotSize[slot] }

func (set *ClassSetT) Conflicts(slot int) *intsets.Sparse {
	return &set.conflicts[slot]
}

func (set *ClassSetT) Q(b *RegisterClassT, c *RegisterClassT) int {
	return set.q[b.Index][c.Index]
}

// The hardware register number of the first register of 'slot'.
func (set *ClassSetT) Physical(slot int) int {
	return set.Base + set.slotUnit[slot]*set.Width
}

// The ordinary class for registers of 'size' units, or nil.

func (set *ClassSetT) ForSize(size int) *RegisterClassT {
	for _, class := range set.classes {
		if class.Size == size && !class.Aligned {
			return class
		}
	}
	return nil
}

// Builds a class for each of 'sizes', plus the aligned-pair class if
// 'alignedPairs' is set.  The aligned class may have no slots at all;
// that is only an error if some register needs it.  'budget' is the number of allocatable
// units; the first of them is hardware register 'base' and each unit
// is 'width' hardware registers.

func BuildClasses(sizes []int, budget int, alignedPairs bool, base int, width int) (*ClassSetT, error) {
	ordered := []int{1}
	for _, size := range sizes {
		if !slices.Contains(ordered, size) {
			ordered = append(ordered, size)
		}
	}
	if alignedPairs && !slices.Contains(ordered, 2) {
		ordered = append(ordered, 2)
	}
	set := &ClassSetT{Budget: budget, Base: base, Width: width}
	for _, size := range ordered {
		if size < 1 {
			panic(fmt.Sprintf("register class of size %d", size))
		}
		if budget < size {
			return nil, shader.Fail(shader.StageClasses, shader.ErrOutOfRegisters,
				"a register of %d units does not fit in %d allocatable units", size, budget)
		}
		class := &RegisterClassT{
			Index: len(set.classes),
			Size:  size,
			First: len(set.slotUnit),
			Count: budget - (size - 1),
		}
		for j := range class.Count {
			class.Slots.Insert(class.First + j)
			set.slotUnit = append(set.slotUnit, j)
			set.slotSize = append(set.slotSize, size)
		}
		set.classes = append(set.classes, class)
	}
	if alignedPairs {
		pairs := set.ForSize(2)
		aligned := &RegisterClassT{Index: len(set.classes), Size: 2, Aligned: true, First: pairs.First}
		for j := range pairs.Count {
			if (base+j*width)%2 == 0 {
				aligned.Slots.Insert(pairs.First + j)
				aligned.Count += 1
			}
		}
		set.aligned = aligned
		set.classes = append(set.classes, aligned)
	}
	set.findConflicts()
	set.findQ()
	return set, nil
}

// Two slots conflict if their unit runs overlap.

func (set *ClassSetT) findConflicts() {
	count := len(set.slotUnit)
	set.conflicts = make([]intsets.Sparse, count)
	for a := range count {
		for b := range count {
			if set.slotUnit[a] < set.slotUnit[b]+set.slotSize[b] &&
				set.slotUnit[b] < set.slotUnit[a]+set.slotSize[a] {
				set.conflicts[a].Insert(b)
			}
		}
	}
}

// q[b][c] is the largest number of class b slots that a single class
// c slot conflicts with.  A node is trivially colorable when the q
// values of its neighbors sum to less than its class's slot count.

func (set *ClassSetT) findQ() {
	set.q = make([][]int, len(set.classes))
	var blocked intsets.Sparse
	for _, b := range set.classes {
		set.q[b.Index] = make([]int, len(set.classes))
		for _, c := range set.classes {
			most := 0
			for _, slot := range c.Slots.AppendTo(nil) {
				blocked.Intersection(&set.conflicts[slot], &b.Slots)
				most = max(most, blocked.Len())
			}
			set.q[b.Index][c.Index] = most
		}
	}
}
