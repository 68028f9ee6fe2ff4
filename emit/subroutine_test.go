// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package emit

import (
	"errors"
	"slices"
	"testing"

	"github.com/s48/shaderalloc/regalloc"
	"github.com/s48/shaderalloc/shader"
)

func countOps(program *shader.ProgramT, op shader.OpcodeT) int {
	count := 0
	for _, inst := range program.Code {
		if inst.Op == op {
			count += 1
		}
	}
	return count
}

// Two calls to noise2 and one to noise1, each result written to its
// own color component.

func noiseProgram(t *testing.T, profileName string) (*shader.ProgramT, *SubroutineTableT) {
	emitter := NewEmitter("noise", profile(t, profileName))
	p := emitter.NewReg(2, "p")
	color := emitter.NewReg(4, "color")
	emitter.ALU(shader.OpMov, shader.RegOffset(p, 0), shader.Input(0))
	emitter.ALU(shader.OpMov, shader.RegOffset(p, 1), shader.Input(1))
	emitter.Call(SubNoise2, shader.RegOffset(color, 0), shader.Reg(p))
	emitter.Call(SubNoise2, shader.RegOffset(color, 1), shader.Reg(p))
	emitter.Call(SubNoise1, shader.RegOffset(color, 2), shader.RegOffset(p, 1))
	emitter.ALU(shader.OpMov, shader.RegOffset(color, 3), shader.Imm(1))
	writeColor(emitter, color)
	return finish(t, emitter), emitter.Subroutines()
}

func TestSubroutineBodyEmittedOnce(t *testing.T) {
	for _, name := range []string{"gen4", "gen5"} {
		program, table := noiseProgram(t, name)
		if got := countOps(program, shader.OpSin); got != 2 {
			t.Errorf("%s: %d subroutine bodies", name, got)
		}
		if emitted := table.Emitted(); !slices.Equal(emitted, []SubroutineIdT{SubNoise1, SubNoise2}) {
			t.Errorf("%s: emitted %v", name, emitted)
		}
		start, found := table.Start(SubNoise2)
		calls := table.Calls(SubNoise2)
		if !found || len(calls) != 2 || start <= calls[0] || calls[1] <= start {
			t.Fatalf("%s: body at %d, calls at %v", name, start, calls)
		}
		reentries := 0
		for i, inst := range program.Code {
			if inst.CallOf == 0 {
				continue
			}
			reentries += 1
			if got := target(program, i); got != start {
				t.Errorf("%s: call at %d goes to %d, body is at %d", name, i, got, start)
			}
		}
		if reentries != 1 {
			t.Errorf("%s: %d calls re-enter a body", name, reentries)
		}

		for _, inputs := range [][]float32{{0.25, 0.5}, {3, -7}} {
			got := run(t, program, inputs...)
			if got[0] != got[1] || got[0] < -1 || 1 <= got[0] || got[3] != 1 {
				t.Errorf("%s: inputs %v wrote %v", name, inputs, got)
			}
		}
	}
}

func TestAllocateSubroutines(t *testing.T) {
	program, _ := noiseProgram(t, "gen5")
	result, err := regalloc.Compile(program, profile(t, "gen5"))
	if err != nil {
		t.Fatal(err)
	}
	for _, inputs := range [][]float32{{0.25, 0.5}, {3, -7}} {
		want := run(t, program, inputs...)
		got, err := shader.Evaluate(result.Program, shader.EvalOptionsT{Inputs: inputs})
		if err != nil {
			t.Fatal(err)
		}
		if got.Outputs[0] != want {
			t.Errorf("inputs %v: wrote %v after allocation, expected %v", inputs, got.Outputs[0], want)
		}
	}
}

func TestCallInsideBody(t *testing.T) {
	saved := subroutineDefs[SubNoise1].body
	defer func() { subroutineDefs[SubNoise1].body = saved }()
	subroutineDefs[SubNoise1].body = func(emitter *EmitterT, param shader.VRegT, result shader.VRegT) {
		emitter.Call(SubNoise2, shader.Reg(result), shader.Reg(param))
	}
	emitter := NewEmitter("nested", profile(t, "gen4"))
	x := emitter.NewReg(2, "x")
	emitter.Call(SubNoise1, shader.Reg(x), shader.Input(0))
	if _, err := emitter.Finish(); !errors.Is(err, shader.ErrStructure) {
		t.Errorf("expected a structure error, got %v", err)
	}
}

func TestLookupSubroutine(t *testing.T) {
	for _, id := range []SubroutineIdT{SubNoise1, SubNoise2, SubNoise3, SubNoise4} {
		found, ok := LookupSubroutine(id.String())
		if !ok || found != id || id.ParamSize() != int(id) {
			t.Errorf("%s: found %v %v", id, found, ok)
		}
	}
	if _, ok := LookupSubroutine("noise5"); ok {
		t.Error("found noise5")
	}
}
