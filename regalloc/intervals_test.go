// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package regalloc

import (
	"testing"

	"github.com/s48/shaderalloc/shader"
)

func TestLiveIntervals(t *testing.T) {
	//  0 mov a         5 while
	//  1 do            6 mov d, b
	//  2 add b, a      7 mov e     routine 1
	//  3 mov temp, b   8 mov e     routine 1
	//  4 break         9 mov d
	//                 10 call routine 1
	program := shader.MakeProgram("live")
	a := program.Regs.New(1, "a")
	b := program.Regs.New(1, "b")
	d := program.Regs.New(1, "d")
	e := program.Regs.New(1, "e")
	temp := program.Regs.NewFlagged(1, shader.RegSpillTemp, "temp")
	unused := program.Regs.New(1, "unused")
	program.Emit(shader.MakeInstruction(shader.OpMov, shader.Reg(a), shader.Input(0)))
	do := program.Emit(shader.MakeInstruction(shader.OpDo, shader.Null()))
	program.Emit(shader.MakeInstruction(shader.OpAdd, shader.Reg(b), shader.Reg(a), shader.Imm(1)))
	program.Emit(shader.MakeInstruction(shader.OpMov, shader.Reg(temp), shader.Reg(b)))
	brk := program.Emit(shader.MakeInstruction(shader.OpBreak, shader.Null()))
	while := program.Emit(shader.MakeInstruction(shader.OpWhile, shader.Null()))
	program.Emit(shader.MakeInstruction(shader.OpMov, shader.Reg(d), shader.Reg(b)))
	body := shader.MakeInstruction(shader.OpMov, shader.Reg(e), shader.Imm(2))
	body.Routine = 1
	program.Emit(body)
	program.Emit(body)
	program.Emit(shader.MakeInstruction(shader.OpMov, shader.Reg(d), shader.Imm(3)))
	call := shader.MakeInstruction(shader.OpAdd, shader.IP(), shader.IP(), shader.Imm(0))
	call.CallOf = 1
	callIndex := program.Emit(call)
	program.Code[brk].SetBranchTarget(brk, while+1, 1)
	program.Code[while].SetBranchTarget(while, do, 1)
	program.Code[callIndex].SetBranchTarget(callIndex, 7, 1)

	live := LiveIntervals(program)
	expected := map[shader.VRegT]IntervalT{
		a:    {a, 0, 5},
		b:    {b, 1, 6},
		d:    {d, 6, 9},
		e:    {e, 7, 10},
		temp: {temp, 3, 3},
	}
	for reg, want := range expected {
		got, found := live.Get(reg)
		if !found || got != want {
			t.Errorf("%s: got %v, expected %v", program.Regs.Name(reg), got, want)
		}
	}
	if _, found := live.Get(unused); found {
		t.Error("unreferenced register has an interval")
	}
	all := live.All()
	if len(all) != 5 || all[0].Reg != a || all[1].Reg != b || all[2].Reg != temp {
		t.Errorf("bad interval order %v", all)
	}
	if !live.Equal(LiveIntervals(program)) {
		t.Error("recomputing the intervals gave a different result")
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		x, y    IntervalT
		overlap bool
	}{
		{IntervalT{0, 0, 3}, IntervalT{1, 3, 5}, true},
		{IntervalT{0, 0, 3}, IntervalT{1, 4, 5}, false},
		{IntervalT{0, 2, 2}, IntervalT{1, 0, 9}, true},
		{IntervalT{0, 6, 7}, IntervalT{1, 0, 5}, false},
	}
	for _, c := range cases {
		if c.x.Overlaps(c.y) != c.overlap || c.y.Overlaps(c.x) != c.overlap {
			t.Errorf("%s and %s: expected overlap %v", c.x, c.y, c.overlap)
		}
	}
}
