// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package shader

import (
	"errors"
	"testing"
)

// Counts to five in a do-while loop and writes the count.

func countingProgram(scale int) *ProgramT {
	program := MakeProgram("count")
	program.JumpScale = scale
	r := program.Regs.New(1, "r")
	c := program.Regs.New(1, "c")
	d := program.Regs.New(1, "d")
	color := program.Regs.New(4, "color")
	program.Emit(MakeInstruction(OpMov, Reg(r), Imm(0)))
	do := program.Emit(MakeInstruction(OpDo, Null()))
	program.Emit(MakeInstruction(OpAdd, Reg(r), Reg(r), Imm(1)))
	program.Emit(MakeInstruction(OpCmpLt, Reg(c), Reg(r), Imm(5)))
	program.Emit(MakeInstruction(OpAdd, Reg(d), Reg(c), Imm(-1)))
	brk := program.Emit(MakeInstruction(OpBreak, Null(), Reg(d)))
	while := program.Emit(MakeInstruction(OpWhile, Null()))
	program.Code[brk].SetBranchTarget(brk, while+1, scale)
	program.Code[while].SetBranchTarget(while, do, scale)
	program.Emit(MakeInstruction(OpMov, RegOffset(color, 0), Reg(r)))
	program.Emit(MakeInstruction(OpFbWrite, Null(), Reg(color)))
	return program
}

func TestEvaluateLoop(t *testing.T) {
	for _, scale := range []int{1, 2} {
		program := countingProgram(scale)
		result, err := Evaluate(program, EvalOptionsT{})
		if err != nil {
			t.Fatalf("scale %d: %s", scale, err)
		}
		if got := result.Outputs[0]; got != [4]float32{5, 0, 0, 0} {
			t.Errorf("scale %d: wrote %v", scale, got)
		}
		// Four full trips around the loop, then one that stops at the break.
		if result.Steps != 1+4*6+5+2 {
			t.Errorf("scale %d: took %d steps", scale, result.Steps)
		}
	}
}

func TestEvaluateIfElse(t *testing.T) {
	program := MakeProgram("choose")
	color := program.Regs.New(4, "color")
	iff := program.Emit(MakeInstruction(OpIf, Null(), Input(0)))
	program.Emit(MakeInstruction(OpMov, Reg(color), Imm(1)))
	els := program.Emit(MakeInstruction(OpElse, Null()))
	program.Emit(MakeInstruction(OpMov, Reg(color), Input(1).Neg()))
	endif := program.Emit(MakeInstruction(OpEndif, Null()))
	program.Emit(MakeInstruction(OpFbWrite, Null(), Reg(color)))
	program.Code[iff].SetBranchTarget(iff, els+1, 1)
	program.Code[els].SetBranchTarget(els, endif, 1)

	cases := []struct {
		inputs []float32
		want   float32
	}{
		{[]float32{1, 7}, 1},
		{[]float32{0, 7}, -7},
		{[]float32{0, -2}, 2},
	}
	for _, c := range cases {
		result, err := Evaluate(program, EvalOptionsT{Inputs: c.inputs})
		if err != nil {
			t.Fatal(err)
		}
		if got := result.Outputs[0][0]; got != c.want {
			t.Errorf("inputs %v gave %v, expected %v", c.inputs, got, c.want)
		}
	}
}

func TestEvaluateStepLimit(t *testing.T) {
	program := MakeProgram("forever")
	do := program.Emit(MakeInstruction(OpDo, Null()))
	while := program.Emit(MakeInstruction(OpWhile, Null()))
	program.Code[while].SetBranchTarget(while, do, 1)
	_, err := Evaluate(program, EvalOptionsT{MaxSteps: 100})
	if !errors.Is(err, ErrEvaluate) {
		t.Errorf("expected a step limit error, got %v", err)
	}
}

// A value written to scratch and read back, in the physical register
// file with a register width of two.

func TestEvaluateScratch(t *testing.T) {
	program := MakeProgram("scratch")
	program.Emit(MakeInstruction(OpMov, HW(4), Imm(0.5).Absolute()))
	spill := MakeInstruction(OpSpill, Null(), HW(4))
	spill.ScratchOffset = 64
	program.Emit(spill)
	unspill := MakeInstruction(OpUnspill, HW(8))
	unspill.ScratchOffset = 64
	program.Emit(unspill)
	empty := MakeInstruction(OpUnspill, HW(10))
	empty.ScratchOffset = 128
	program.Emit(empty)
	program.Emit(MakeInstruction(OpFbWrite, Null(), HW(4)))
	result, err := Evaluate(program, EvalOptionsT{RegisterWidth: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Outputs[0]; got != [4]float32{0.5, 0, 0.5, 0} {
		t.Errorf("wrote %v", got)
	}
}
