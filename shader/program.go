// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// A program is a flat instruction sequence over virtual registers,
// together with the register arena the instructions refer to.

package shader

import (
	"fmt"
	"slices"
)

type ProgramT struct {
	Name        string
	Regs        *RegisterPoolT
	Code        []InstructionT
	InputCount  int // payload inputs readable through FileInput
	PayloadRegs int // physical registers reserved ahead of the allocatable ones
	JumpScale   int // hardware jump granularity

	// Scratch memory already handed out to spilled registers.
	ScratchBytes int
}

func MakeProgram(name string) *ProgramT {
	return &ProgramT{Name: name, Regs: MakeRegisterPool(), JumpScale: 1}
}

func (program *ProgramT) Emit(inst InstructionT) int {
	program.Code = append(program.Code, inst)
	return len(program.Code) - 1
}

// Copies everything the allocator might modify.

func (program *ProgramT) Clone() *ProgramT {
	result := *program
	result.Regs = program.Regs.Clone()
	result.Code = slices.Clone(program.Code)
	return &result
}

// Registers that at least one instruction refers to, in handle order.

func (program *ProgramT) ReferencedRegs() []VRegT {
	seen := make([]bool, program.Regs.Count())
	for i := range program.Code {
		program.Code[i].VisitRegs(func(operand *OperandT, units int, isWrite bool) {
			seen[operand.Reg] = true
		})
	}
	result := []VRegT{}
	for reg, used := range seen {
		if used {
			result = append(result, VRegT(reg))
		}
	}
	return result
}

// Checks the structural rules every later stage relies on.  Operands
// must name existing registers and stay inside them, instructions may
// not have more sources than the hardware accepts, and the flow
// markers must nest properly.

func (program *ProgramT) Validate(maxSources int) error {
	type openT struct {
		op      OpcodeT
		index   int
		sawElse bool
	}
	open := []openT{}
	for i := range program.Code {
		inst := &program.Code[i]
		if maxSources < inst.SourceCount() {
			return Fail(StageValidate, ErrStructure,
				"instruction %d (%s) has %d sources, hardware allows %d",
				i, inst.Op, inst.SourceCount(), maxSources)
		}
		var err error
		inst.VisitRegs(func(operand *OperandT, units int, isWrite bool) {
			switch {
			case err != nil:
			case !program.Regs.Valid(operand.Reg):
				err = Fail(StageValidate, ErrStructure,
					"instruction %d (%s) refers to unknown register %d", i, inst.Op, int(operand.Reg))
			case operand.Offset < 0 || program.Regs.Size(operand.Reg) < operand.Offset+units:
				err = Fail(StageValidate, ErrStructure,
					"instruction %d (%s): %s.%d covers %d units but %s has size %d",
					i, inst.Op, program.Regs.Name(operand.Reg), operand.Offset, units,
					program.Regs.Name(operand.Reg), program.Regs.Size(operand.Reg))
			}
		})
		if err != nil {
			return err
		}
		switch inst.Op {
		case OpIf, OpDo:
			open = append(open, openT{op: inst.Op, index: i})
		case OpElse:
			if len(open) == 0 || open[len(open)-1].op != OpIf || open[len(open)-1].sawElse {
				return Fail(StageValidate, ErrStructure, "instruction %d: else without if", i)
			}
			open[len(open)-1].sawElse = true
		case OpEndif:
			if len(open) == 0 || open[len(open)-1].op != OpIf {
				return Fail(StageValidate, ErrStructure, "instruction %d: endif without if", i)
			}
			open = open[:len(open)-1]
		case OpWhile:
			if len(open) == 0 || open[len(open)-1].op != OpDo {
				return Fail(StageValidate, ErrStructure, "instruction %d: while without do", i)
			}
			open = open[:len(open)-1]
		case OpBreak, OpCont:
			if !slices.ContainsFunc(open, func(o openT) bool { return o.op == OpDo }) {
				return Fail(StageValidate, ErrStructure, "instruction %d: %s outside a loop", i, inst.Op)
			}
		}
	}
	if len(open) != 0 {
		last := open[len(open)-1]
		return Fail(StageValidate, ErrStructure, "%s at %d is never closed", last.op, last.index)
	}
	return nil
}

// Rebuilds the code with extra instructions placed immediately before
// or after existing ones.  Every branch and IP-relative address is
// adjusted so that it still reaches the same original instruction; a
// branch to an instruction lands on the first instruction inserted
// before it.

func (program *ProgramT) Insert(before, after map[int][]InstructionT) {
	if len(before) == 0 && len(after) == 0 {
		return
	}
	oldCode := program.Code
	newStart := make([]int, len(oldCode)+1) // new index of each group's first instruction
	newIndex := make([]int, len(oldCode))   // new index of each original instruction
	code := make([]InstructionT, 0, len(oldCode)+len(before)+len(after))
	for i := range oldCode {
		newStart[i] = len(code)
		code = append(code, before[i]...)
		newIndex[i] = len(code)
		code = append(code, oldCode[i])
		code = append(code, after[i]...)
	}
	newStart[len(oldCode)] = len(code)
	for i := range oldCode {
		target, ok := oldCode[i].BranchTarget(i, program.JumpScale)
		if !ok {
			continue
		}
		if target < 0 || len(oldCode) < target {
			panic(fmt.Sprintf("instruction %d (%s) branches to %d, outside the program",
				i, oldCode[i].Op, target))
		}
		code[newIndex[i]].SetBranchTarget(newIndex[i], newStart[target], program.JumpScale)
	}
	program.Code = code
}
