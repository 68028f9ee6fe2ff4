// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package front

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/s48/shaderalloc/emit"
	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/regalloc"
	"github.com/s48/shaderalloc/shader"
)

const shaderDir = "../test/shaders"

func lookup(t *testing.T, profiles *hw.ProfilesT, name string) *hw.HardwareT {
	t.Helper()
	hardware, err := profiles.Lookup(name)
	if err != nil {
		t.Fatal(err)
	}
	return hardware
}

func closeEnough(x, y [4]float32) bool {
	for k := range x {
		if 1e-4 < math.Abs(float64(x[k]-y[k])) {
			return false
		}
	}
	return true
}

// Compiles every shader in 'file' and runs its test cases both before
// and after allocation.

func checkFile(t *testing.T, file string, hardware *hw.HardwareT) {
	shaders, err := ReadFile(file, hardware)
	if err != nil {
		t.Fatalf("%s: %s", hardware.Name, err)
	}
	for _, source := range shaders {
		name := hardware.Name + "/" + source.Program.Name
		result, err := regalloc.Compile(source.Program, hardware)
		if err != nil {
			t.Errorf("%s: %s", name, err)
			continue
		}
		if len(source.Tests) == 0 {
			t.Errorf("%s has no test cases", name)
		}
		for i, test := range source.Tests {
			before, err := shader.Evaluate(source.Program, shader.EvalOptionsT{Inputs: test.Inputs})
			if err != nil {
				t.Fatalf("%s test %d: %s", name, i, err)
			}
			after, err := shader.Evaluate(result.Program, shader.EvalOptionsT{
				Inputs:        test.Inputs,
				RegisterWidth: hardware.RegisterWidth(),
			})
			if err != nil {
				t.Fatalf("%s test %d after allocation: %s", name, i, err)
			}
			for target, want := range test.Outputs {
				if !closeEnough(want, before.Outputs[target]) {
					t.Errorf("%s test %d: target %d is %v, expected %v", name, i, target, before.Outputs[target], want)
				}
			}
			if len(before.Outputs) != len(after.Outputs) {
				t.Errorf("%s test %d: allocation changed the render targets written", name, i)
			}
			for target, want := range before.Outputs {
				if got := after.Outputs[target]; got != want {
					t.Errorf("%s test %d: target %d is %v after allocation, %v before", name, i, target, got, want)
				}
			}
		}
	}
}

func TestShaderFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(shaderDir, "*.sx"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no shader files: %v", err)
	}
	profiles := hw.MakeProfiles()
	for _, file := range files {
		for _, name := range profiles.Names() {
			checkFile(t, file, lookup(t, profiles, name))
		}
	}
}

func TestSpillingShaders(t *testing.T) {
	profiles := hw.MakeProfiles()
	if err := profiles.LoadFile("../test/profiles.yaml"); err != nil {
		t.Fatal(err)
	}
	tiny := lookup(t, profiles, "tiny")
	checkFile(t, filepath.Join(shaderDir, "pressure.sx"), tiny)

	shaders, err := ReadFile(filepath.Join(shaderDir, "pressure.sx"), tiny)
	if err != nil {
		t.Fatal(err)
	}
	for _, source := range shaders {
		result, err := regalloc.Compile(source.Program, tiny)
		if err != nil {
			t.Fatal(err)
		}
		if result.Spills == 0 || result.ScratchBytes == 0 {
			t.Errorf("%s did not spill", source.Program.Name)
		}
		if tiny.MaxGRF < result.RegistersUsed {
			t.Errorf("%s uses %d registers", source.Program.Name, result.RegistersUsed)
		}
	}
}

func TestParseShader(t *testing.T) {
	hardware := lookup(t, hw.MakeProfiles(), "gen4")
	shaders, err := ParseShaders(`
(shader first
  (inputs 1)
  (add x 1 (in 0))
  (reg color 4 nospill)
  (mov color.x x)
  (test (in 2) (out 0 3 0 0 0)))
(shader second
  (payload 4)
  (reg pair 2 aligned))`, hardware)
	if err != nil {
		t.Fatal(err)
	}
	if len(shaders) != 2 {
		t.Fatalf("read %d shaders", len(shaders))
	}
	first := shaders[0]
	if first.Line != 2 || first.Program.InputCount != 1 || first.Program.PayloadRegs != emit.DefaultPayloadRegs {
		t.Errorf("first: line %d, %d inputs, %d payload registers",
			first.Line, first.Program.InputCount, first.Program.PayloadRegs)
	}
	// The immediate in the add's first source is loaded separately.
	if ops := len(first.Program.Code); ops != 4 || first.Program.Code[1].Op != shader.OpMov {
		t.Errorf("first has %d instructions:\n%s", ops, shader.Listing(first.Program))
	}
	if len(first.Tests) != 1 || first.Tests[0].Outputs[0] != [4]float32{3, 0, 0, 0} || first.Tests[0].Line != 7 {
		t.Errorf("bad test case %+v", first.Tests)
	}
	second := shaders[1].Program
	if second.PayloadRegs != 4 || !second.Regs.Has(0, shader.RegAligned) {
		t.Errorf("second: %d payload registers", second.PayloadRegs)
	}
}

func TestParseErrors(t *testing.T) {
	hardware := lookup(t, hw.MakeProfiles(), "gen4")
	cases := []struct {
		text string
		kind error
	}{
		{"(shader x (frob a b))", ErrSyntax},
		{"(shader x (add a b 1))", ErrSyntax},
		{"(shader x (reg a 2) (mov a.q 1))", ErrSyntax},
		{"(shader x (reg a 2) (reg a 1))", ErrSyntax},
		{"(shader x (reg a 2 shiny))", ErrSyntax},
		{"(shader x (mov a))", ErrSyntax},
		{"(shader x (reg p 1) (noise2 r p))", ErrSyntax},
		{"(shader x (test (in a)))", ErrSyntax},
		{"(shader x (test (out 0 1 2)))", ErrSyntax},
		{"(program x)", ErrSyntax},
		{"(shader x (add a 1 1)", ErrSyntax},
		{"(shader x (else))", shader.ErrStructure},
		{"(shader x (loop) (if (in 0)) (endloop))", shader.ErrStructure},
		{"(shader x (if (in 0)))", shader.ErrStructure},
		{"(shader x (break))", shader.ErrStructure},
	}
	for _, c := range cases {
		if _, err := ParseShaders(c.text, hardware); !errors.Is(err, c.kind) {
			t.Errorf("%s: expected %v, got %v", c.text, c.kind, err)
		}
	}
}

func TestAlignmentError(t *testing.T) {
	hardware := lookup(t, hw.MakeProfiles(), "gen5")
	shaders, err := ParseShaders("(shader x (reg a 3 aligned) (mov a.x 1) (mov a.z a.x))", hardware)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := regalloc.Compile(shaders[0].Program, hardware); !errors.Is(err, shader.ErrAlignment) {
		t.Errorf("expected an alignment error, got %v", err)
	}
}
