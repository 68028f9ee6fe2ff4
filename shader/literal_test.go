// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package shader

import (
	"testing"
)

func TestImmediateAllowed(t *testing.T) {
	cases := []struct {
		op      OpcodeT
		i       int
		allowed bool
	}{
		{OpMov, 0, true},
		{OpAdd, 0, false},
		{OpAdd, 1, true},
		{OpMad, 2, false},
		{OpSel, 2, false},
		{OpLinterp, 1, false},
		{OpTex, 1, false},
		{OpIf, 0, false},
	}
	for _, c := range cases {
		if ImmediateAllowed(c.op, c.i) != c.allowed {
			t.Errorf("%s source %d: expected %v", c.op, c.i, c.allowed)
		}
	}
}

func TestLegalizeImmediates(t *testing.T) {
	program := MakeProgram("legal")
	x := program.Regs.New(1, "x")
	y := program.Regs.New(1, "y")
	color := program.Regs.New(4, "color")
	program.Emit(MakeInstruction(OpAdd, Reg(x), Imm(3), Input(0)))
	program.Emit(MakeInstruction(OpMad, Reg(y), Imm(2), Reg(x), Imm(2).Neg()))
	program.Emit(MakeInstruction(OpLinterp, RegOffset(color, 0), Input(0), Imm(0.5)))
	program.Emit(MakeInstruction(OpAdd, RegOffset(color, 1), Reg(y), Imm(1)))
	program.Emit(MakeInstruction(OpFbWrite, Null(), Reg(color)))
	before := program.Clone()

	added := LegalizeImmediates(program)
	if added != 1+1+3 {
		t.Errorf("added %d moves", added)
	}
	for i := range program.Code {
		inst := &program.Code[i]
		for j := range inst.Op.Sources() {
			if inst.Src[j].IsImm() && !ImmediateAllowed(inst.Op, j) {
				t.Errorf("instruction %d still has an immediate in source %d", i, j)
			}
		}
	}
	if err := program.Validate(3); err != nil {
		t.Fatal(err)
	}
	options := EvalOptionsT{Inputs: []float32{0.25, 0.75}}
	want, err := Evaluate(before, options)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Evaluate(program, options)
	if err != nil {
		t.Fatal(err)
	}
	if want.Outputs[0] != got.Outputs[0] {
		t.Errorf("legalizing changed the output from %v to %v", want.Outputs[0], got.Outputs[0])
	}
	// 0.5*0.25 + 0.5*0.75 + 0.5 and (0.25+3)*2 - 2 + 1
	if got.Outputs[0][0] != 1 || got.Outputs[0][1] != 5.5 {
		t.Errorf("wrote %v", got.Outputs[0])
	}
}
