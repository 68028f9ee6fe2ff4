// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Reading shader assembly files.  A file holds any number of shaders,
// each an S-expression:
//
//   (shader name
//     (inputs 4)
//     (reg color 4)
//     (reg delta 2 aligned)
//     (linterp x delta (in 0))
//     (tex color x x)
//     (fb-write color)
//     (test (in 0.5 0.25) (out 0 0.5 0.25 0.125 1)))
//
// The body is converted into a program as it is read, using the
// emitter for control flow and subroutine calls.

package front

import (
	"errors"
	"fmt"
	"os"

	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

var ErrSyntax = errors.New("syntax error")

type ShaderT struct {
	Program *shader.ProgramT
	Tests   []TestCaseT
	Line    int
}

// Inputs to run a shader with, and the colors it should produce.
type TestCaseT struct {
	Inputs  []float32
	Outputs map[int][4]float32
	Line    int
}

func ReadFile(path string, hardware *hw.HardwareT) ([]*ShaderT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	shaders, err := ParseShaders(string(data), hardware)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return shaders, nil
}

func ParseShaders(text string, hardware *hw.HardwareT) ([]*ShaderT, error) {
	sexps, err := util.ParseSExps(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	shaders := []*ShaderT{}
	for _, sexp := range sexps {
		result, err := ParseShader(sexp, hardware)
		if err != nil {
			return nil, err
		}
		shaders = append(shaders, result)
	}
	return shaders, nil
}

// Converts one (shader ...) form.  The resulting program has its
// immediates legalized and has been validated.

func ParseShader(sexp *util.SExpT, hardware *hw.HardwareT) (*ShaderT, error) {
	if sexp.Head() != "shader" || len(sexp.List) < 2 || sexp.List[1].Kind != util.SExpSymbol {
		return nil, syntaxError(sexp, "expected (shader name ...)")
	}
	conv := makeConverter(sexp.List[1].Symbol, hardware)
	for _, form := range sexp.List[2:] {
		if err := conv.form(form); err != nil {
			return nil, err
		}
		if err := conv.emitter.Err(); err != nil {
			return nil, fmt.Errorf("line %d: %w", form.Line, err)
		}
	}
	program, err := conv.emitter.Finish()
	if err != nil {
		return nil, err
	}
	shader.LegalizeImmediates(program)
	if err := program.Validate(hardware.MaxSources); err != nil {
		return nil, err
	}
	return &ShaderT{Program: program, Tests: conv.tests, Line: sexp.Line}, nil
}

func syntaxError(sexp *util.SExpT, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s in %s", ErrSyntax, sexp.Line, fmt.Sprintf(format, args...), sexp)
}

// (test (in v0 v1 ...) (out target r g b a) ...)

func parseTest(sexp *util.SExpT) (TestCaseT, error) {
	test := TestCaseT{Outputs: map[int][4]float32{}, Line: sexp.Line}
	for _, clause := range sexp.List[1:] {
		switch clause.Head() {
		case "in":
			for _, value := range clause.List[1:] {
				if !value.IsNumber() {
					return test, syntaxError(clause, "input %s is not a number", value)
				}
				test.Inputs = append(test.Inputs, float32(value.Number()))
			}
		case "out":
			if len(clause.List) != 6 {
				return test, syntaxError(clause, "expected (out target r g b a)")
			}
			color := [4]float32{}
			for i, value := range clause.List[1:] {
				if !value.IsNumber() {
					return test, syntaxError(clause, "output %s is not a number", value)
				}
				if 0 < i {
					color[i-1] = float32(value.Number())
				}
			}
			if clause.List[1].Kind != util.SExpInt {
				return test, syntaxError(clause, "render target must be an integer")
			}
			test.Outputs[clause.List[1].Integer] = color
		default:
			return test, syntaxError(clause, "unknown test clause")
		}
	}
	return test, nil
}
