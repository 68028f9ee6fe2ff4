// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Shared subroutines.  The hardware has no call instruction, so calls
// are made by saving a return address on a software stack, addressed
// by the a0 counter, and then writing the instruction pointer.  A
// subroutine's body is emitted inline at its first call; later calls
// jump back to it.
//
// First call:                 Later calls:
//   add [a0], ip, <return>      add [a0], ip, 3*16
//   add a0, a0, 1               add a0, a0, 1
//   <body>                      add ip, ip, <body - here>
//   add a0, a0, -1
//   mov ip, [a0]
//
// Arguments and results are passed through registers owned by the
// subroutine.

package emit

import (
	"fmt"
	"slices"

	"github.com/s48/shaderalloc/shader"
)

type SubroutineIdT int

const (
	SubNoise1 SubroutineIdT = iota + 1
	SubNoise2
	SubNoise3
	SubNoise4
)

type subroutineDefT struct {
	name       string
	paramSize  int
	resultSize int
	body       func(emitter *EmitterT, param shader.VRegT, result shader.VRegT)
}

var subroutineDefs = map[SubroutineIdT]*subroutineDefT{
	SubNoise1: {"noise1", 1, 1, noiseBody},
	SubNoise2: {"noise2", 2, 1, noiseBody},
	SubNoise3: {"noise3", 3, 1, noiseBody},
	SubNoise4: {"noise4", 4, 1, noiseBody},
}

func (id SubroutineIdT) String() string {
	if def, found := subroutineDefs[id]; found {
		return def.name
	}
	return fmt.Sprintf("subroutine%d", int(id))
}

func (id SubroutineIdT) ParamSize() int { return subroutineDefs[id].paramSize }

func LookupSubroutine(name string) (SubroutineIdT, bool) {
	for id, def := range subroutineDefs {
		if def.name == name {
			return id, true
		}
	}
	return 0, false
}

//----------------------------------------------------------------

type subroutineT struct {
	id      SubroutineIdT
	start   int // first instruction of the body
	routine int // tag on the body's instructions
	param   shader.VRegT
	result  shader.VRegT
	calls   []int // index of each call sequence
}

// Which subroutines have been emitted during one compile, and where.

type SubroutineTableT struct {
	entries map[SubroutineIdT]*subroutineT
}

func MakeSubroutineTable() *SubroutineTableT {
	return &SubroutineTableT{entries: map[SubroutineIdT]*subroutineT{}}
}

// The start of the body of 'id', if it has been emitted.

func (table *SubroutineTableT) Start(id SubroutineIdT) (int, bool) {
	entry, found := table.entries[id]
	if !found {
		return 0, false
	}
	return entry.start, true
}

// The instruction index of every call to 'id'.

func (table *SubroutineTableT) Calls(id SubroutineIdT) []int {
	if entry, found := table.entries[id]; found {
		return slices.Clone(entry.calls)
	}
	return nil
}

func (table *SubroutineTableT) Emitted() []SubroutineIdT {
	ids := []SubroutineIdT{}
	for id := range table.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

//----------------------------------------------------------------

// Calls subroutine 'id' with argument 'arg', which covers the
// subroutine's parameter size, leaving the result in 'dst'.

func (emitter *EmitterT) Call(id SubroutineIdT, dst shader.OperandT, arg shader.OperandT) {
	if emitter.err != nil {
		return
	}
	def, found := subroutineDefs[id]
	if !found {
		emitter.fail(shader.ErrStructure, "unknown subroutine %d", int(id))
		return
	}
	if emitter.routine != 0 {
		emitter.fail(shader.ErrStructure, "%s called from inside a subroutine", id)
		return
	}
	table := emitter.subroutines
	entry, emitted := table.entries[id]
	if !emitted {
		entry = &subroutineT{
			id:      id,
			routine: len(table.entries) + 1,
			param:   emitter.NewReg(def.paramSize, def.name+".param"),
			result:  emitter.NewReg(def.resultSize, def.name+".result"),
		}
		table.entries[id] = entry
	}
	for k := range def.paramSize {
		emitter.ALU(shader.OpMov, shader.RegOffset(entry.param, k), arg.Unit(k))
	}
	entry.calls = append(entry.calls, emitter.Here())
	if emitted {
		emitter.emitCall(entry)
	} else {
		emitter.emitBody(entry, def)
	}
	for k := range def.resultSize {
		emitter.ALU(shader.OpMov, dst.Unit(k), shader.RegOffset(entry.result, k))
	}
}

// Pushes a return address that is 'offset' instructions past the push.
func (emitter *EmitterT) pushReturn(offset int) int {
	push := emitter.Emit(shader.MakeInstruction(shader.OpAdd, shader.StackSlot(),
		shader.IP(), shader.Imm(float32(offset*shader.InstructionBytes))))
	emitter.Emit(shader.MakeInstruction(shader.OpAdd, shader.Address(), shader.Address(), shader.Imm(1)))
	return push
}

func (emitter *EmitterT) emitCall(entry *subroutineT) {
	emitter.pushReturn(3)
	jump := shader.MakeInstruction(shader.OpAdd, shader.IP(), shader.IP(), shader.Imm(0))
	jump.CallOf = entry.routine
	index := emitter.Emit(jump)
	if index != -1 {
		emitter.program.Code[index].SetBranchTarget(index, entry.start, emitter.scale)
	}
}

func (emitter *EmitterT) emitBody(entry *subroutineT, def *subroutineDefT) {
	push := emitter.pushReturn(0)
	entry.start = emitter.Here()
	emitter.routine = entry.routine
	emitter.ifFloor = emitter.ifStack.Len()
	emitter.loopFloor = emitter.loopStack.Len()
	def.body(emitter, entry.param, entry.result)
	if emitter.err == nil &&
		(emitter.ifStack.Len() != emitter.ifFloor || emitter.loopStack.Len() != emitter.loopFloor) {
		emitter.fail(shader.ErrStructure, "%s body leaves an if or loop open", def.name)
	}
	emitter.Emit(shader.MakeInstruction(shader.OpAdd, shader.Address(), shader.Address(), shader.Imm(-1)))
	emitter.Emit(shader.MakeInstruction(shader.OpMov, shader.IP(), shader.StackSlot()))
	emitter.routine = 0
	emitter.ifFloor = 0
	emitter.loopFloor = 0
	if emitter.err == nil {
		emitter.program.Code[push].SetBranchTarget(push, emitter.Here(), emitter.scale)
	}
}

//----------------------------------------------------------------
// Noise.  A hash of the parameter components, the classic
// fract(sin(dot(p, k)) * 43758.5453), scaled to [-1, 1).

var noiseWeights = [4]float32{12.9898, 78.233, 37.719, 4.581}

func noiseBody(emitter *EmitterT, param shader.VRegT, result shader.VRegT) {
	size := emitter.Regs().Size(param)
	sum := emitter.NewReg(1, "noise.sum")
	emitter.ALU(shader.OpMul, shader.Reg(sum), shader.RegOffset(param, 0), shader.Imm(noiseWeights[0]))
	for k := 1; k < size; k++ {
		term := emitter.NewReg(1, "noise.term")
		emitter.ALU(shader.OpMul, shader.Reg(term), shader.RegOffset(param, k), shader.Imm(noiseWeights[k]))
		emitter.ALU(shader.OpAdd, shader.Reg(sum), shader.Reg(sum), shader.Reg(term))
	}
	hash := emitter.NewReg(1, "noise.hash")
	emitter.ALU(shader.OpSin, shader.Reg(hash), shader.Reg(sum))
	emitter.ALU(shader.OpMul, shader.Reg(hash), shader.Reg(hash), shader.Imm(43758.5453))
	emitter.ALU(shader.OpFrc, shader.Reg(hash), shader.Reg(hash))
	emitter.ALU(shader.OpMul, shader.Reg(hash), shader.Reg(hash), shader.Imm(2))
	emitter.ALU(shader.OpAdd, shader.Reg(result), shader.Reg(hash), shader.Imm(-1))
}
