// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Converting the forms in a shader body into instructions.

package front

import (
	"strconv"
	"strings"

	"github.com/s48/shaderalloc/emit"
	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

type converterT struct {
	emitter *emit.EmitterT
	regs    map[string]shader.VRegT
	tests   []TestCaseT
}

func makeConverter(name string, hardware *hw.HardwareT) *converterT {
	return &converterT{
		emitter: emit.NewEmitter(name, hardware),
		regs:    map[string]shader.VRegT{},
	}
}

func (conv *converterT) form(sexp *util.SExpT) error {
	head := sexp.Head()
	args := []*util.SExpT{}
	if head != "" {
		args = sexp.List[1:]
	}
	emitter := conv.emitter
	switch head {
	case "":
		return syntaxError(sexp, "expected a form")
	case "inputs", "payload":
		if len(args) != 1 || args[0].Kind != util.SExpInt || args[0].Integer < 0 {
			return syntaxError(sexp, "expected (%s count)", head)
		}
		if head == "inputs" {
			emitter.Program().InputCount = args[0].Integer
		} else {
			emitter.Program().PayloadRegs = args[0].Integer
		}
	case "reg":
		return conv.declare(sexp, args)
	case "test":
		test, err := parseTest(sexp)
		if err != nil {
			return err
		}
		conv.tests = append(conv.tests, test)
	case "if":
		if len(args) != 1 {
			return syntaxError(sexp, "expected (if condition)")
		}
		cond, err := conv.source(args[0])
		if err != nil {
			return err
		}
		emitter.If(cond)
	case "else", "endif", "loop", "endloop":
		if len(args) != 0 {
			return syntaxError(sexp, "%s takes no arguments", head)
		}
		switch head {
		case "else":
			emitter.Else()
		case "endif":
			emitter.Endif()
		case "loop":
			emitter.Loop()
		case "endloop":
			emitter.EndLoop()
		}
	case "break", "continue":
		cond := shader.Null()
		switch len(args) {
		case 0:
		case 1:
			var err error
			if cond, err = conv.source(args[0]); err != nil {
				return err
			}
		default:
			return syntaxError(sexp, "expected (%s [condition])", head)
		}
		if head == "break" {
			emitter.Break(cond)
		} else {
			emitter.Continue(cond)
		}
	case "tex":
		if len(args) != 3 && len(args) != 4 {
			return syntaxError(sexp, "expected (tex dst u v [sampler])")
		}
		inst, err := conv.instruction(sexp, shader.OpTex, args[0], args[1:3])
		if err != nil {
			return err
		}
		if len(args) == 4 {
			if args[3].Kind != util.SExpInt {
				return syntaxError(sexp, "sampler must be an integer")
			}
			inst.Sampler = args[3].Integer
		}
		emitter.Emit(inst)
	case "fb-write":
		if len(args) != 1 && len(args) != 2 {
			return syntaxError(sexp, "expected (fb-write src [target])")
		}
		inst, err := conv.instruction(sexp, shader.OpFbWrite, nil, args[:1])
		if err != nil {
			return err
		}
		if len(args) == 2 {
			if args[1].Kind != util.SExpInt {
				return syntaxError(sexp, "render target must be an integer")
			}
			inst.Target = args[1].Integer
		}
		emitter.Emit(inst)
	default:
		if id, found := emit.LookupSubroutine(head); found {
			if len(args) != 2 {
				return syntaxError(sexp, "expected (%s dst src)", head)
			}
			dst, err := conv.destination(args[0], 1)
			if err != nil {
				return err
			}
			src, err := conv.source(args[1])
			if err != nil {
				return err
			}
			if src.IsGRF() && emitter.Regs().Size(src.Reg) < src.Offset+id.ParamSize() {
				return syntaxError(sexp, "%s needs %d components", head, id.ParamSize())
			}
			emitter.Call(id, dst, src)
			return nil
		}
		op, found := shader.LookupOpcode(head)
		if !found || op.Kind() != shader.KindALU {
			return syntaxError(sexp, "unknown operation %s", head)
		}
		if len(args) != op.Sources()+1 {
			return syntaxError(sexp, "%s takes a destination and %d sources", head, op.Sources())
		}
		inst, err := conv.instruction(sexp, op, args[0], args[1:])
		if err != nil {
			return err
		}
		emitter.Emit(inst)
	}
	return nil
}

// (reg name size [aligned] [nospill])

func (conv *converterT) declare(sexp *util.SExpT, args []*util.SExpT) error {
	if len(args) < 2 || args[0].Kind != util.SExpSymbol || args[1].Kind != util.SExpInt || args[1].Integer < 1 {
		return syntaxError(sexp, "expected (reg name size [aligned] [nospill])")
	}
	name := args[0].Symbol
	if _, found := conv.regs[name]; found {
		return syntaxError(sexp, "%s is already declared", name)
	}
	var flags shader.RegFlagsT
	for _, option := range args[2:] {
		switch option.String() {
		case "aligned":
			flags |= shader.RegAligned
		case "nospill":
			flags |= shader.RegNoSpill
		default:
			return syntaxError(sexp, "unknown register option %s", option)
		}
	}
	conv.regs[name] = conv.emitter.Regs().NewFlagged(args[1].Integer, flags, name)
	return nil
}

func (conv *converterT) instruction(sexp *util.SExpT, op shader.OpcodeT, dst *util.SExpT, srcs []*util.SExpT) (shader.InstructionT, error) {
	inst := shader.MakeInstruction(op, shader.Null())
	if dst != nil {
		operand, err := conv.destination(dst, op.DstUnits())
		if err != nil {
			return inst, err
		}
		inst.Dst = operand
	}
	for i, src := range srcs {
		operand, err := conv.source(src)
		if err != nil {
			return inst, err
		}
		inst.Src[i] = operand
	}
	return inst, nil
}

// Destinations that haven't been declared are declared on the spot,
// just large enough.

func (conv *converterT) destination(sexp *util.SExpT, units int) (shader.OperandT, error) {
	if sexp.Kind != util.SExpSymbol {
		return shader.Null(), syntaxError(sexp, "destination must be a register")
	}
	name, offset, err := splitComponent(sexp)
	if err != nil {
		return shader.Null(), err
	}
	reg, found := conv.regs[name]
	if !found {
		reg = conv.emitter.NewReg(offset+units, name)
		conv.regs[name] = reg
	}
	return shader.RegOffset(reg, offset), nil
}

func (conv *converterT) source(sexp *util.SExpT) (shader.OperandT, error) {
	switch {
	case sexp.IsNumber():
		return shader.Imm(float32(sexp.Number())), nil
	case sexp.Kind == util.SExpSymbol:
		name, offset, err := splitComponent(sexp)
		if err != nil {
			return shader.Null(), err
		}
		reg, found := conv.regs[name]
		if !found {
			return shader.Null(), syntaxError(sexp, "undeclared register %s", name)
		}
		return shader.RegOffset(reg, offset), nil
	}
	switch sexp.Head() {
	case "neg", "abs":
		if len(sexp.List) != 2 {
			return shader.Null(), syntaxError(sexp, "expected (%s operand)", sexp.Head())
		}
		operand, err := conv.source(sexp.List[1])
		if err != nil {
			return operand, err
		}
		if sexp.Head() == "neg" {
			return operand.Neg(), nil
		}
		return operand.Absolute(), nil
	case "in":
		if len(sexp.List) != 2 || sexp.List[1].Kind != util.SExpInt || sexp.List[1].Integer < 0 {
			return shader.Null(), syntaxError(sexp, "expected (in number)")
		}
		return shader.Input(sexp.List[1].Integer), nil
	}
	return shader.Null(), syntaxError(sexp, "bad operand")
}

// Splits "color.y" into "color" and 1.  Components are x, y, z and w
// or a unit number.

func splitComponent(sexp *util.SExpT) (string, int, error) {
	name, component, found := strings.Cut(sexp.Symbol, ".")
	if !found {
		return name, 0, nil
	}
	if i := strings.Index("xyzw", component); len(component) == 1 && i != -1 {
		return name, i, nil
	}
	offset, err := strconv.Atoi(component)
	if err != nil || offset < 0 {
		return "", 0, syntaxError(sexp, "bad component %q", component)
	}
	return name, offset, nil
}
