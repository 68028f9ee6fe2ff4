// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Run a program for a single pixel, for testing.  Values can either
// be held in virtual registers or, after register assignment, in the
// physical register file.  Allocation and spilling must not change
// what a program computes, so comparing the two runs checks them.

package shader

import (
	"errors"
	"fmt"
	"math"
)

var ErrEvaluate = errors.New("evaluation failed")

const (
	defaultMaxSteps = 1000000
	maxCallDepth    = 64
)

type EvalOptionsT struct {
	Inputs        []float32 // payload values, indexed by input number
	RegisterWidth int       // physical registers per unit, for allocated code
	MaxSteps      int
}

type EvalResultT struct {
	Outputs map[int][4]float32 // render target -> color
	Steps   int
}

func Evaluate(program *ProgramT, options EvalOptionsT) (*EvalResultT, error) {
	env := &evalEnvT{
		program:  program,
		options:  options,
		vregs:    map[VRegT][]float32{},
		hw:       map[int]float32{},
		stack:    map[int]float32{},
		scratch:  map[int]float32{},
		outputs:  map[int][4]float32{},
		maxSteps: options.MaxSteps,
	}
	if env.options.RegisterWidth == 0 {
		env.options.RegisterWidth = 1
	}
	if env.maxSteps == 0 {
		env.maxSteps = defaultMaxSteps
	}
	scale := program.JumpScale
	if scale == 0 {
		scale = 1
	}
	steps := 0
	for pc := 0; pc != len(program.Code); {
		if pc < 0 || len(program.Code) < pc {
			return nil, fmt.Errorf("%w: %s jumped to %d", ErrEvaluate, program.Name, pc)
		}
		steps += 1
		if env.maxSteps < steps {
			return nil, fmt.Errorf("%w: %s ran for more than %d steps", ErrEvaluate, program.Name, env.maxSteps)
		}
		next, err := env.step(pc, scale)
		if err != nil {
			return nil, err
		}
		pc = next
	}
	return &EvalResultT{Outputs: env.outputs, Steps: steps}, nil
}

type evalEnvT struct {
	program  *ProgramT
	options  EvalOptionsT
	vregs    map[VRegT][]float32
	hw       map[int]float32
	address  float32
	stack    map[int]float32
	scratch  map[int]float32
	outputs  map[int][4]float32
	maxSteps int
}

// Executes the instruction at 'pc' and returns the next pc.

func (env *evalEnvT) step(pc int, scale int) (int, error) {
	inst := &env.program.Code[pc]
	next := pc + 1
	src := func(i int) float32 { return env.get(inst.Src[i], 0, pc) }
	switch inst.Op {
	case OpIf:
		if src(0) == 0 {
			next = pc + inst.Jump/scale
		}
	case OpBreak, OpCont:
		if inst.Src[0].IsNull() || src(0) != 0 {
			next = pc + inst.Jump/scale
		}
	case OpElse, OpWhile:
		next = pc + inst.Jump/scale
	case OpEndif, OpDo:
	case OpSpill:
		env.scratch[inst.ScratchOffset] = src(0)
	case OpUnspill:
		value := env.scratch[inst.ScratchOffset]
		env.set(inst.Dst, 0, value)
	case OpTex:
		u := src(0)
		v := src(1)
		texel := [4]float32{frac(u), frac(v), frac(u*v + float32(inst.Sampler)), 1}
		for k, value := range texel {
			env.set(inst.Dst, k, value)
		}
	case OpLinterp:
		dx := env.get(inst.Src[0], 0, pc)
		dy := env.get(inst.Src[0], 1, pc)
		c := [3]float32{}
		for k := range c {
			c[k] = env.get(inst.Src[1], k, pc)
		}
		env.set(inst.Dst, 0, c[0]*dx+c[1]*dy+c[2])
	case OpFbWrite:
		color := [4]float32{}
		for k := range color {
			color[k] = env.get(inst.Src[0], k, pc)
		}
		env.outputs[inst.Target] = color
	default:
		value := evalALU(inst.Op, src)
		switch inst.Dst.File {
		case FileIP:
			return int(value) / InstructionBytes, nil
		case FileStack:
			slot := int(env.address)
			if slot < 0 || maxCallDepth <= slot {
				return 0, fmt.Errorf("%w: %s: call stack slot %d out of range at %d",
					ErrEvaluate, env.program.Name, slot, pc)
			}
			env.stack[slot] = value
		default:
			env.set(inst.Dst, 0, value)
		}
	}
	return next, nil
}

func evalALU(op OpcodeT, src func(int) float32) float32 {
	switch op {
	case OpMov:
		return src(0)
	case OpAdd:
		return src(0) + src(1)
	case OpMul:
		return src(0) * src(1)
	case OpMad:
		return src(0)*src(1) + src(2)
	case OpMin:
		return min(src(0), src(1))
	case OpMax:
		return max(src(0), src(1))
	case OpFrc:
		return frac(src(0))
	case OpRndd:
		return float32(math.Floor(float64(src(0))))
	case OpRcp:
		return 1 / src(0)
	case OpRsq:
		return float32(1 / math.Sqrt(float64(src(0))))
	case OpSin:
		return float32(math.Sin(float64(src(0))))
	case OpCos:
		return float32(math.Cos(float64(src(0))))
	case OpCmpLt:
		if src(0) < src(1) {
			return 1
		}
		return 0
	case OpSel:
		if src(0) != 0 {
			return src(1)
		}
		return src(2)
	}
	panic(fmt.Sprintf("no evaluation rule for %s", op))
}

func frac(x float32) float32 {
	return x - float32(math.Floor(float64(x)))
}

// Unit 'k' of 'operand', with any modifiers applied.

func (env *evalEnvT) get(operand OperandT, k int, pc int) float32 {
	var value float32
	switch operand.File {
	case FileNull:
	case FileImm:
		value = operand.Imm
	case FileGRF:
		value = env.vreg(operand.Reg)[operand.Offset+k]
	case FileHW:
		value = env.hw[operand.Nr+k*env.options.RegisterWidth]
	case FileInput:
		if nr := operand.Nr + k; nr < len(env.options.Inputs) {
			value = env.options.Inputs[nr]
		}
	case FileIP:
		value = float32(pc * InstructionBytes)
	case FileAddress:
		value = env.address
	case FileStack:
		value = env.stack[int(env.address)]
	default:
		panic(fmt.Sprintf("can't read register file %d", int(operand.File)))
	}
	if operand.Abs {
		value = float32(math.Abs(float64(value)))
	}
	if operand.Negate {
		value = -value
	}
	return value
}

func (env *evalEnvT) set(operand OperandT, k int, value float32) {
	switch operand.File {
	case FileNull:
	case FileGRF:
		env.vreg(operand.Reg)[operand.Offset+k] = value
	case FileHW:
		env.hw[operand.Nr+k*env.options.RegisterWidth] = value
	case FileAddress:
		env.address = value
	default:
		panic(fmt.Sprintf("can't write register file %d", int(operand.File)))
	}
}

func (env *evalEnvT) vreg(reg VRegT) []float32 {
	values := env.vregs[reg]
	if values == nil {
		values = make([]float32, env.program.Regs.Size(reg))
		env.vregs[reg] = values
	}
	return values
}
