// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package shader

import (
	"fmt"
	"strconv"
)

// Size of one encoded instruction.  IP-relative arithmetic is done in
// bytes.
const InstructionBytes = 16

type FileT int

const (
	FileNull    FileT = iota
	FileGRF           // virtual register, before allocation
	FileHW            // physical register, after allocation
	FileImm           // immediate float
	FileInput         // payload input, read only
	FileIP            // instruction pointer
	FileAddress       // the counter used as the call-stack pointer
	FileStack         // call-stack slot addressed by the counter
)

type OperandT struct {
	File   FileT
	Reg    VRegT // FileGRF
	Offset int   // unit within Reg; swizzle components fold into this
	Nr     int   // FileHW and FileInput
	Imm    float32
	Negate bool
	Abs    bool
}

func Null() OperandT                        { return OperandT{} }
func Reg(reg VRegT) OperandT                { return OperandT{File: FileGRF, Reg: reg} }
func RegOffset(reg VRegT, off int) OperandT { return OperandT{File: FileGRF, Reg: reg, Offset: off} }
func Imm(value float32) OperandT            { return OperandT{File: FileImm, Imm: value} }
func Input(nr int) OperandT                 { return OperandT{File: FileInput, Nr: nr} }
func HW(nr int) OperandT                    { return OperandT{File: FileHW, Nr: nr} }
func IP() OperandT                          { return OperandT{File: FileIP} }
func Address() OperandT                     { return OperandT{File: FileAddress} }
func StackSlot() OperandT                   { return OperandT{File: FileStack} }

func (operand OperandT) IsNull() bool { return operand.File == FileNull }
func (operand OperandT) IsGRF() bool  { return operand.File == FileGRF }
func (operand OperandT) IsImm() bool  { return operand.File == FileImm }

// The same register, 'k' units further on.  Immediates are the same
// in every unit.
func (operand OperandT) Unit(k int) OperandT {
	switch operand.File {
	case FileGRF:
		operand.Offset += k
	case FileInput:
		operand.Nr += k
	case FileImm:
	default:
		panic(fmt.Sprintf("%s has no units", operand))
	}
	return operand
}

func (operand OperandT) Neg() OperandT {
	operand.Negate = !operand.Negate
	return operand
}

func (operand OperandT) Absolute() OperandT {
	operand.Abs = true
	operand.Negate = false
	return operand
}

// Identity comparison: same register and unit, modifiers ignored.
func (operand OperandT) SameLocation(other OperandT) bool {
	if operand.File != other.File {
		return false
	}
	switch operand.File {
	case FileGRF:
		return operand.Reg == other.Reg && operand.Offset == other.Offset
	case FileHW, FileInput:
		return operand.Nr == other.Nr
	case FileImm:
		return false
	}
	return true
}

func (operand OperandT) String() string {
	var base string
	switch operand.File {
	case FileNull:
		return "null"
	case FileGRF:
		base = fmt.Sprintf("v%d", int(operand.Reg))
		if operand.Offset != 0 {
			base += "." + strconv.Itoa(operand.Offset)
		}
	case FileHW:
		base = fmt.Sprintf("g%d", operand.Nr)
	case FileImm:
		base = strconv.FormatFloat(float64(operand.Imm), 'g', -1, 32)
	case FileInput:
		base = fmt.Sprintf("in%d", operand.Nr)
	case FileIP:
		base = "ip"
	case FileAddress:
		base = "a0"
	case FileStack:
		base = "[a0]"
	default:
		panic(fmt.Sprintf("unknown register file %d", int(operand.File)))
	}
	if operand.Abs {
		base = "|" + base + "|"
	}
	if operand.Negate {
		base = "-" + base
	}
	return base
}

//----------------------------------------------------------------

type InstructionT struct {
	Op  OpcodeT
	Dst OperandT
	Src [3]OperandT

	Jump          int // flow distance, in jump-granularity units
	ScratchOffset int // spill and unspill byte offset
	Sampler       int
	Target        int // render target for fb_write

	// Subroutine bookkeeping.  Routine is non-zero on every instruction
	// of a shared subroutine body; CallOf is non-zero on the jump of a
	// call site that re-enters an already emitted body.
	Routine int
	CallOf  int
}

func MakeInstruction(op OpcodeT, dst OperandT, srcs ...OperandT) InstructionT {
	if op.Sources() < len(srcs) {
		panic(fmt.Sprintf("%s takes %d sources, got %d", op, op.Sources(), len(srcs)))
	}
	inst := InstructionT{Op: op, Dst: dst}
	copy(inst.Src[:], srcs)
	return inst
}

// The number of non-null sources.
func (inst *InstructionT) SourceCount() int {
	count := 0
	for _, src := range inst.Src[:inst.Op.Sources()] {
		if !src.IsNull() {
			count += 1
		}
	}
	return count
}

// Calls 'visit' on every virtual register operand together with the
// number of units it covers.  'isWrite' is true only for the
// destination.

func (inst *InstructionT) VisitRegs(visit func(operand *OperandT, units int, isWrite bool)) {
	for i := range inst.Op.Sources() {
		if inst.Src[i].IsGRF() {
			visit(&inst.Src[i], inst.Op.SrcUnits(i), false)
		}
	}
	if inst.Dst.IsGRF() {
		visit(&inst.Dst, inst.Op.DstUnits(), true)
	}
}

func (inst *InstructionT) Reads(reg VRegT) bool {
	for i := range inst.Op.Sources() {
		if inst.Src[i].IsGRF() && inst.Src[i].Reg == reg {
			return true
		}
	}
	return false
}

func (inst *InstructionT) Writes(reg VRegT) bool {
	return inst.Dst.IsGRF() && inst.Dst.Reg == reg
}

// An IP-relative address computation: 'dst = ip + imm'.  Call
// sequences use these both for jumps and for return addresses.
func (inst *InstructionT) isIPRelative() bool {
	return inst.Op == OpAdd && inst.Src[0].File == FileIP && inst.Src[1].IsImm()
}

// The absolute instruction index this instruction transfers control
// to, or computes the address of.  'scale' is the jump granularity.

func (inst *InstructionT) BranchTarget(index int, scale int) (int, bool) {
	switch {
	case inst.Op.Jumps():
		return index + inst.Jump/scale, true
	case inst.isIPRelative():
		return index + int(inst.Src[1].Imm)/InstructionBytes, true
	}
	return 0, false
}

func (inst *InstructionT) SetBranchTarget(index int, target int, scale int) {
	switch {
	case inst.Op.Jumps():
		inst.Jump = (target - index) * scale
	case inst.isIPRelative():
		inst.Src[1].Imm = float32((target - index) * InstructionBytes)
	default:
		panic(fmt.Sprintf("%s has no branch target", inst.Op))
	}
}
