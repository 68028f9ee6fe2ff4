// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Emitting structured control flow as a flat instruction sequence.
// Jumps are emitted with placeholder distances and patched once the
// target is known: IF when its ELSE or ENDIF arrives, ELSE at ENDIF,
// BREAK and CONT when the loop is closed.
//
// Errors are sticky.  Once something goes wrong every later call does
// nothing and the error is returned by Err and Finish.

package emit

import (
	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

// Registers holding the thread payload unless the caller says
// otherwise.
const DefaultPayloadRegs = 2

type ifEntryT struct {
	index     int // the IF, or the ELSE once there is one
	isElse    bool
	loopDepth int
}

type loopEntryT struct {
	index   int // the DO
	ifDepth int
}

type EmitterT struct {
	program     *shader.ProgramT
	scale       int
	ifStack     *util.StackT[ifEntryT]
	loopStack   *util.StackT[loopEntryT]
	subroutines *SubroutineTableT

	// While a subroutine body is being emitted: its tag, and the stack
	// depths at its start, which the body may not pop below.
	routine   int
	ifFloor   int
	loopFloor int

	err error
}

// Starts a program.  The call-stack counter is cleared first thing,
// before any subroutine can be called.

func NewEmitter(name string, hardware *hw.HardwareT) *EmitterT {
	program := shader.MakeProgram(name)
	program.JumpScale = hardware.JumpScale
	program.PayloadRegs = DefaultPayloadRegs
	emitter := &EmitterT{
		program:     program,
		scale:       hardware.JumpScale,
		ifStack:     util.MakeStack[ifEntryT](hardware.MaxIfDepth),
		loopStack:   util.MakeStack[loopEntryT](hardware.MaxLoopDepth),
		subroutines: MakeSubroutineTable(),
	}
	emitter.Emit(shader.MakeInstruction(shader.OpMov, shader.Address(), shader.Imm(0)))
	return emitter
}

func (emitter *EmitterT) Program() *shader.ProgramT      { return emitter.program }
func (emitter *EmitterT) Regs() *shader.RegisterPoolT    { return emitter.program.Regs }
func (emitter *EmitterT) Subroutines() *SubroutineTableT { return emitter.subroutines }
func (emitter *EmitterT) Err() error                     { return emitter.err }
func (emitter *EmitterT) Here() int                      { return len(emitter.program.Code) }
func (emitter *EmitterT) NewReg(size int, name string) shader.VRegT {
	return emitter.program.Regs.New(size, name)
}

func (emitter *EmitterT) fail(kind error, format string, args ...any) {
	if emitter.err == nil {
		emitter.err = shader.Fail(shader.StageEmit, kind, format, args...)
	}
}

// Appends an instruction, tagging it if it is part of a subroutine
// body.  Returns its index, or -1 if an error has already occurred.

func (emitter *EmitterT) Emit(inst shader.InstructionT) int {
	if emitter.err != nil {
		return -1
	}
	if emitter.routine != 0 {
		inst.Routine = emitter.routine
	}
	return emitter.program.Emit(inst)
}

func (emitter *EmitterT) ALU(op shader.OpcodeT, dst shader.OperandT, srcs ...shader.OperandT) int {
	if op.Kind() != shader.KindALU {
		emitter.fail(shader.ErrStructure, "%s is not an ALU operation", op)
		return -1
	}
	return emitter.Emit(shader.MakeInstruction(op, dst, srcs...))
}

func (emitter *EmitterT) setJump(from int, to int) {
	emitter.program.Code[from].Jump = (to - from) * emitter.scale
}

//----------------------------------------------------------------
// if / else / endif

func (emitter *EmitterT) If(cond shader.OperandT) {
	if emitter.err != nil {
		return
	}
	index := emitter.Emit(shader.MakeInstruction(shader.OpIf, shader.Null(), cond))
	entry := ifEntryT{index: index, loopDepth: emitter.loopStack.Len()}
	if !emitter.ifStack.Push(entry) {
		emitter.fail(shader.ErrNestingDepth, "if nested more than %d deep", emitter.ifStack.Len())
	}
}

// Returns the innermost open IF, after checking that it belongs to
// the current loop and subroutine body.

func (emitter *EmitterT) openIf(what string) (ifEntryT, bool) {
	if emitter.ifStack.Len() <= emitter.ifFloor {
		emitter.fail(shader.ErrStructure, "%s at %d without if", what, emitter.Here())
		return ifEntryT{}, false
	}
	entry := emitter.ifStack.Top()
	if entry.loopDepth != emitter.loopStack.Len() {
		emitter.fail(shader.ErrStructure, "%s at %d crosses a loop boundary", what, emitter.Here())
		return ifEntryT{}, false
	}
	return entry, true
}

func (emitter *EmitterT) Else() {
	if emitter.err != nil {
		return
	}
	entry, ok := emitter.openIf("else")
	if !ok {
		return
	}
	if entry.isElse {
		emitter.fail(shader.ErrStructure, "second else at %d", emitter.Here())
		return
	}
	index := emitter.Emit(shader.MakeInstruction(shader.OpElse, shader.Null()))
	emitter.setJump(entry.index, index+1)
	emitter.ifStack.SetTop(ifEntryT{index: index, isElse: true, loopDepth: entry.loopDepth})
}

func (emitter *EmitterT) Endif() {
	if emitter.err != nil {
		return
	}
	entry, ok := emitter.openIf("endif")
	if !ok {
		return
	}
	index := emitter.Emit(shader.MakeInstruction(shader.OpEndif, shader.Null()))
	emitter.setJump(entry.index, index)
	emitter.ifStack.Pop()
}

//----------------------------------------------------------------
// loop / break / continue / endloop
//
// Loops are do-while: the WHILE at the end always jumps back to the
// DO, and the only way out is a BREAK.

func (emitter *EmitterT) Loop() {
	if emitter.err != nil {
		return
	}
	index := emitter.Emit(shader.MakeInstruction(shader.OpDo, shader.Null()))
	if !emitter.loopStack.Push(loopEntryT{index: index, ifDepth: emitter.ifStack.Len()}) {
		emitter.fail(shader.ErrNestingDepth, "loop nested more than %d deep", emitter.loopStack.Len())
	}
}

// Exits the innermost loop if 'cond' is non-zero, or always if it is
// the null operand.

func (emitter *EmitterT) Break(cond shader.OperandT) {
	emitter.loopJump(shader.OpBreak, cond)
}

func (emitter *EmitterT) Continue(cond shader.OperandT) {
	emitter.loopJump(shader.OpCont, cond)
}

func (emitter *EmitterT) loopJump(op shader.OpcodeT, cond shader.OperandT) {
	if emitter.err != nil {
		return
	}
	if emitter.loopStack.Len() <= emitter.loopFloor {
		emitter.fail(shader.ErrStructure, "%s at %d outside a loop", op, emitter.Here())
		return
	}
	emitter.Emit(shader.MakeInstruction(op, shader.Null(), cond))
}

// Emits the WHILE and then goes back over the loop body patching the
// BREAKs to go just past the WHILE and the CONTs to go to it.  BREAKs
// and CONTs in nested loops have already been patched and are
// skipped.

func (emitter *EmitterT) EndLoop() {
	if emitter.err != nil {
		return
	}
	if emitter.loopStack.Len() <= emitter.loopFloor {
		emitter.fail(shader.ErrStructure, "endloop at %d without loop", emitter.Here())
		return
	}
	entry := emitter.loopStack.Top()
	if entry.ifDepth != emitter.ifStack.Len() {
		emitter.fail(shader.ErrStructure, "endloop at %d inside an unclosed if", emitter.Here())
		return
	}
	emitter.loopStack.Pop()
	while := emitter.Emit(shader.MakeInstruction(shader.OpWhile, shader.Null()))
	emitter.setJump(while, entry.index)
	code := emitter.program.Code
	depth := 0
	for i := while - 1; entry.index < i; i-- {
		switch code[i].Op {
		case shader.OpWhile:
			depth += 1
		case shader.OpDo:
			depth -= 1
		case shader.OpBreak:
			if depth == 0 {
				emitter.setJump(i, while+1)
			}
		case shader.OpCont:
			if depth == 0 {
				emitter.setJump(i, while)
			}
		}
	}
}

// Returns the finished program.  Every IF and loop must have been
// closed.

func (emitter *EmitterT) Finish() (*shader.ProgramT, error) {
	if emitter.err == nil && !emitter.ifStack.Empty() {
		emitter.fail(shader.ErrStructure, "if at %d is never closed", emitter.ifStack.Top().index)
	}
	if emitter.err == nil && !emitter.loopStack.Empty() {
		emitter.fail(shader.ErrStructure, "loop at %d is never closed", emitter.loopStack.Top().index)
	}
	if emitter.err != nil {
		return nil, emitter.err
	}
	return emitter.program, nil
}
