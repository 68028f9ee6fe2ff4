// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Live intervals.  A register is live from the first instruction that
// refers to it through the last one.  Two adjustments make the single
// interval safe in the presence of backward control flow:
//  - a register referenced inside a loop is live across the whole of
//    its outermost loop, as its value may be carried from one
//    iteration to the next.  Spill temporaries are exempt; they are
//    written and read by adjacent instructions.
//  - a register referenced inside a subroutine body is live up to the
//    last call site of that subroutine, because later call sites jump
//    back into the body.

package regalloc

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/s48/shaderalloc/shader"
)

type IntervalT struct {
	Reg   shader.VRegT
	First int // inclusive
	Last  int // inclusive
}

func (interval IntervalT) Overlaps(other IntervalT) bool {
	return interval.First <= other.Last && other.First <= interval.Last
}

func (interval IntervalT) Length() int {
	return interval.Last - interval.First
}

func (interval IntervalT) String() string {
	return fmt.Sprintf("v%d[%d:%d]", int(interval.Reg), interval.First, interval.Last)
}

type LiveIntervalsT struct {
	intervals []IntervalT // indexed by register
	present   []bool
}

func (live *LiveIntervalsT) Get(reg shader.VRegT) (IntervalT, bool) {
	if int(reg) < len(live.intervals) && live.present[reg] {
		return live.intervals[reg], true
	}
	return IntervalT{}, false
}

// All intervals, ordered by start and then by register.

func (live *LiveIntervalsT) All() []IntervalT {
	result := []IntervalT{}
	for reg, interval := range live.intervals {
		if live.present[reg] {
			result = append(result, interval)
		}
	}
	slices.SortFunc(result, func(x, y IntervalT) int {
		if x.First != y.First {
			return cmp.Compare(x.First, y.First)
		}
		return cmp.Compare(x.Reg, y.Reg)
	})
	return result
}

func (live *LiveIntervalsT) Equal(other *LiveIntervalsT) bool {
	return slices.Equal(live.present, other.present) &&
		slices.Equal(live.intervals, other.intervals)
}

func (live *LiveIntervalsT) extend(reg shader.VRegT, first int, last int) {
	if !live.present[reg] {
		live.present[reg] = true
		live.intervals[reg] = IntervalT{Reg: reg, First: first, Last: last}
		return
	}
	interval := &live.intervals[reg]
	interval.First = min(interval.First, first)
	interval.Last = max(interval.Last, last)
}

// Computes the live interval of every referenced register.  The
// program is not modified, so calling this twice gives the same
// result.

func LiveIntervals(program *shader.ProgramT) *LiveIntervalsT {
	count := program.Regs.Count()
	live := &LiveIntervalsT{
		intervals: make([]IntervalT, count),
		present:   make([]bool, count),
	}
	code := program.Code
	loops := shader.FindLoops(code)
	outermost := shader.OutermostLoops(code, loops)
	routines := findRoutines(code)
	for i := range code {
		inst := &code[i]
		inst.VisitRegs(func(operand *shader.OperandT, units int, isWrite bool) {
			reg := operand.Reg
			live.extend(reg, i, i)
			if j := outermost[i]; j != -1 && !program.Regs.Has(reg, shader.RegSpillTemp) {
				live.extend(reg, loops[j].Do, loops[j].While)
			}
			if inst.Routine != 0 {
				span := routines[inst.Routine]
				live.extend(reg, span.First, span.Last)
			}
		})
	}
	return live
}

// For each subroutine tag, the start of its body and the last
// instruction that can transfer control into it.

func findRoutines(code []shader.InstructionT) map[int]IntervalT {
	routines := map[int]IntervalT{}
	note := func(tag int, i int) {
		span, found := routines[tag]
		if !found {
			routines[tag] = IntervalT{First: i, Last: i}
			return
		}
		span.Last = max(span.Last, i)
		routines[tag] = span
	}
	for i := range code {
		if code[i].Routine != 0 {
			note(code[i].Routine, i)
		}
		if code[i].CallOf != 0 {
			note(code[i].CallOf, i)
		}
	}
	return routines
}
