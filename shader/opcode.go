// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The opcode table.  Everything the allocator needs to know about an
// instruction (how many sources, how many register units each operand
// covers) comes from here, so passes can treat instructions uniformly.

package shader

import (
	"fmt"
	"strings"
)

type OpcodeT int

const (
	OpMov OpcodeT = iota
	OpAdd
	OpMul
	OpMad // src0 * src1 + src2
	OpMin
	OpMax
	OpFrc
	OpRndd
	OpRcp
	OpRsq
	OpSin
	OpCos
	OpCmpLt // 1 if src0 < src1, else 0
	OpSel   // src1 if src0 != 0, else src2
	OpLinterp
	OpTex
	OpFbWrite
	OpIf
	OpElse
	OpEndif
	OpDo
	OpBreak
	OpCont
	OpWhile
	OpSpill
	OpUnspill
	opcodeCount
)

type OpKindT int

const (
	KindALU OpKindT = iota
	KindTexture
	KindOutput
	KindFlow
	KindSpill
)

type opcodeInfoT struct {
	name     string
	sources  int
	dstUnits int    // register units written through dst, 0 if none
	srcUnits [3]int // units read through each source
	kind     OpKindT
}

var opcodeTable = [opcodeCount]opcodeInfoT{
	OpMov:     {"mov", 1, 1, [3]int{1}, KindALU},
	OpAdd:     {"add", 2, 1, [3]int{1, 1}, KindALU},
	OpMul:     {"mul", 2, 1, [3]int{1, 1}, KindALU},
	OpMad:     {"mad", 3, 1, [3]int{1, 1, 1}, KindALU},
	OpMin:     {"min", 2, 1, [3]int{1, 1}, KindALU},
	OpMax:     {"max", 2, 1, [3]int{1, 1}, KindALU},
	OpFrc:     {"frc", 1, 1, [3]int{1}, KindALU},
	OpRndd:    {"rndd", 1, 1, [3]int{1}, KindALU},
	OpRcp:     {"rcp", 1, 1, [3]int{1}, KindALU},
	OpRsq:     {"rsq", 1, 1, [3]int{1}, KindALU},
	OpSin:     {"sin", 1, 1, [3]int{1}, KindALU},
	OpCos:     {"cos", 1, 1, [3]int{1}, KindALU},
	OpCmpLt:   {"cmplt", 2, 1, [3]int{1, 1}, KindALU},
	OpSel:     {"sel", 3, 1, [3]int{1, 1, 1}, KindALU},
	OpLinterp: {"linterp", 2, 1, [3]int{2, 3}, KindALU},
	OpTex:     {"tex", 2, 4, [3]int{1, 1}, KindTexture},
	OpFbWrite: {"fb_write", 1, 0, [3]int{4}, KindOutput},
	OpIf:      {"if", 1, 0, [3]int{1}, KindFlow},
	OpElse:    {"else", 0, 0, [3]int{}, KindFlow},
	OpEndif:   {"endif", 0, 0, [3]int{}, KindFlow},
	OpDo:      {"do", 0, 0, [3]int{}, KindFlow},
	OpBreak:   {"break", 1, 0, [3]int{1}, KindFlow},
	OpCont:    {"cont", 1, 0, [3]int{1}, KindFlow},
	OpWhile:   {"while", 0, 0, [3]int{}, KindFlow},
	OpSpill:   {"spill", 1, 0, [3]int{1}, KindSpill},
	OpUnspill: {"unspill", 0, 1, [3]int{}, KindSpill},
}

func (op OpcodeT) info() *opcodeInfoT {
	if op < 0 || opcodeCount <= op {
		panic(fmt.Sprintf("unknown opcode %d", int(op)))
	}
	return &opcodeTable[op]
}

func (op OpcodeT) String() string     { return op.info().name }
func (op OpcodeT) Sources() int       { return op.info().sources }
func (op OpcodeT) DstUnits() int      { return op.info().dstUnits }
func (op OpcodeT) SrcUnits(i int) int { return op.info().srcUnits[i] }
func (op OpcodeT) Kind() OpKindT      { return op.info().kind }
func (op OpcodeT) HasDst() bool       { return op.info().dstUnits != 0 }

// Whether the instruction carries a relative jump in InstructionT.Jump.
func (op OpcodeT) Jumps() bool {
	switch op {
	case OpIf, OpElse, OpBreak, OpCont, OpWhile:
		return true
	}
	return false
}

// Looks up an opcode by its printed name, ignoring case.  The front
// end uses this for the ALU forms.

func LookupOpcode(name string) (OpcodeT, bool) {
	name = strings.ToLower(name)
	for op := OpcodeT(0); op < opcodeCount; op++ {
		if opcodeTable[op].name == name {
			return op, true
		}
	}
	return 0, false
}
