// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Spilling.  When coloring fails the cheapest register is moved to
// scratch memory.  Each instruction that refers to it gets its own
// fresh temporary, loaded just before the instruction and stored just
// after it, so what remains live in registers is tiny.

package regalloc

import (
	"fmt"

	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

const loopCostFactor = 10

// The estimated cost of spilling each register: one for each
// reference, multiplied by ten for each enclosing loop.

func SpillCosts(program *shader.ProgramT) []float64 {
	costs := make([]float64, program.Regs.Count())
	scale := 1.0
	for i := range program.Code {
		inst := &program.Code[i]
		inst.VisitRegs(func(operand *shader.OperandT, units int, isWrite bool) {
			costs[operand.Reg] += scale
		})
		switch inst.Op {
		case shader.OpDo:
			scale *= loopCostFactor
		case shader.OpWhile:
			scale /= loopCostFactor
		}
	}
	return costs
}

type spillCandidateT struct {
	reg      shader.VRegT
	cost     float64
	interval IntervalT
}

// Which registers spilling could help.  Temporaries made by earlier
// spills never qualify, and neither do registers whose whole lifetime
// is two adjacent instructions, as the temporaries replacing them
// would be live just as long.  Registers used only inside subroutine
// bodies are out too: their temporaries are live from the body to the
// last call, the same as they were.

func spillCandidates(program *shader.ProgramT, live *LiveIntervalsT) []bool {
	count := program.Regs.Count()
	outsideBody := make([]bool, count)
	for i := range program.Code {
		inst := &program.Code[i]
		if inst.Routine != 0 {
			continue
		}
		inst.VisitRegs(func(operand *shader.OperandT, units int, isWrite bool) {
			outsideBody[operand.Reg] = true
		})
	}
	candidates := make([]bool, count)
	for reg := range count {
		vreg := shader.VRegT(reg)
		interval, found := live.Get(vreg)
		candidates[reg] = found &&
			outsideBody[reg] &&
			!program.Regs.Has(vreg, shader.RegSpillTemp) &&
			!program.Regs.Has(vreg, shader.RegNoSpill) &&
			1 < interval.Length()
	}
	return candidates
}

func CountSpillable(program *shader.ProgramT, live *LiveIntervalsT) int {
	count := 0
	for _, ok := range spillCandidates(program, live) {
		if ok {
			count += 1
		}
	}
	return count
}

// Picks the register to spill: lowest cost, then the longest
// interval, then the lowest register number.

func ChooseSpill(program *shader.ProgramT, live *LiveIntervalsT, costs []float64) (shader.VRegT, bool) {
	queue := util.MakePriorityQueue(func(x, y *spillCandidateT) bool {
		if x.cost != y.cost {
			return x.cost < y.cost
		}
		if x.interval.Length() != y.interval.Length() {
			return y.interval.Length() < x.interval.Length()
		}
		return x.reg < y.reg
	})
	for reg, ok := range spillCandidates(program, live) {
		if !ok {
			continue
		}
		vreg := shader.VRegT(reg)
		interval, _ := live.Get(vreg)
		queue.Enqueue(&spillCandidateT{reg: vreg, cost: costs[reg], interval: interval})
	}
	if queue.Empty() {
		return 0, false
	}
	return queue.Dequeue().reg, true
}

// Moves 'reg' to a new slot in scratch memory.  'stride' is the number
// of bytes each unit occupies there.  Returns the byte offset of the
// slot.

func Spill(program *shader.ProgramT, reg shader.VRegT, stride int) int {
	size := program.Regs.Size(reg)
	slot := program.ScratchBytes
	program.ScratchBytes += size * stride
	tempFlags := shader.RegSpillTemp | program.Regs.Flags(reg)&shader.RegAligned
	name := program.Regs.Name(reg)

	before := map[int][]shader.InstructionT{}
	after := map[int][]shader.InstructionT{}
	for i := range program.Code {
		inst := &program.Code[i]
		if !inst.Reads(reg) && !inst.Writes(reg) {
			continue
		}
		temp := program.Regs.NewFlagged(size, tempFlags, fmt.Sprintf("%s.s%d", name, i))
		readUnits := make([]bool, size)
		writeUnits := make([]bool, size)
		inst.VisitRegs(func(operand *shader.OperandT, units int, isWrite bool) {
			if operand.Reg != reg {
				return
			}
			covered := readUnits
			if isWrite {
				covered = writeUnits
			}
			for k := range units {
				covered[operand.Offset+k] = true
			}
			operand.Reg = temp
		})
		for k, read := range readUnits {
			if read {
				load := shader.MakeInstruction(shader.OpUnspill, shader.RegOffset(temp, k))
				load.ScratchOffset = slot + k*stride
				load.Routine = inst.Routine
				before[i] = append(before[i], load)
			}
		}
		for k, written := range writeUnits {
			if written {
				store := shader.MakeInstruction(shader.OpSpill, shader.Null(), shader.RegOffset(temp, k))
				store.ScratchOffset = slot + k*stride
				store.Routine = inst.Routine
				after[i] = append(after[i], store)
			}
		}
	}
	program.Insert(before, after)
	return slot
}
