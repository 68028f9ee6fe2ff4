// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Printing programs as assembly-like listings, one instruction per
// line.

package shader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

func PpProgram(program *ProgramT, out io.Writer) {
	writer := MakeListingWriter(out)
	fmt.Fprintf(writer, "shader %s: %d registers, %d inputs", program.Name,
		program.Regs.Count(), program.InputCount)
	if program.ScratchBytes != 0 {
		fmt.Fprintf(writer, ", %d scratch bytes", program.ScratchBytes)
	}
	writer.Newline()
	depths := LoopDepths(program.Code)
	for i := range program.Code {
		writeInstruction(program, i, depths[i], writer)
		writer.Newline()
	}
}

func Listing(program *ProgramT) string {
	buf := new(bytes.Buffer)
	PpProgram(program, buf)
	return buf.String()
}

func writeInstruction(program *ProgramT, i int, depth int, writer *ListingWriterT) {
	inst := &program.Code[i]
	fmt.Fprintf(writer, "%4d", i)
	if inst.Routine != 0 {
		fmt.Fprintf(writer, " r%d", inst.Routine)
	}
	writer.IndentTo(10 + 2*depth)
	fmt.Fprintf(writer, "%s", inst.Op)
	writer.IndentTo(20 + 2*depth)
	operands := []string{}
	if inst.Op.HasDst() || !inst.Dst.IsNull() {
		operands = append(operands, operandString(program, inst.Dst))
	}
	for j := range inst.Op.Sources() {
		operands = append(operands, operandString(program, inst.Src[j]))
	}
	fmt.Fprintf(writer, "%s", strings.Join(operands, ", "))
	if extra := instructionExtra(inst, i, program.JumpScale); extra != "" {
		if writer.Column < 56 {
			writer.IndentTo(56)
		}
		fmt.Fprintf(writer, " ; %s", extra)
	}
}

func operandString(program *ProgramT, operand OperandT) string {
	if operand.File != FileGRF || !program.Regs.Valid(operand.Reg) {
		return operand.String()
	}
	name := program.Regs.Name(operand.Reg)
	if operand.Offset != 0 {
		name = fmt.Sprintf("%s.%d", name, operand.Offset)
	}
	if operand.Abs {
		name = "|" + name + "|"
	}
	if operand.Negate {
		name = "-" + name
	}
	return name
}

func instructionExtra(inst *InstructionT, i int, scale int) string {
	parts := []string{}
	if target, ok := inst.BranchTarget(i, scale); ok {
		parts = append(parts, fmt.Sprintf("-> %d", target))
	}
	switch inst.Op {
	case OpSpill, OpUnspill:
		parts = append(parts, fmt.Sprintf("scratch %d", inst.ScratchOffset))
	case OpTex:
		parts = append(parts, fmt.Sprintf("sampler %d", inst.Sampler))
	case OpFbWrite:
		parts = append(parts, fmt.Sprintf("target %d", inst.Target))
	}
	if inst.CallOf != 0 {
		parts = append(parts, fmt.Sprintf("call r%d", inst.CallOf))
	}
	return strings.Join(parts, " ")
}

//----------------------------------------------------------------
// An io.Writer that keeps track of the current column.  Escape
// sequences and wide characters are measured by their display width.

type ListingWriterT struct {
	writer io.Writer
	Column int
}

func MakeListingWriter(writer io.Writer) *ListingWriterT {
	return &ListingWriterT{writer: writer, Column: 0}
}

func (writer *ListingWriterT) Write(p []byte) (n int, err error) {
	text := string(p)
	if i := strings.LastIndexByte(text, '\n'); i != -1 {
		writer.Column = 0
		text = text[i+1:]
	}
	writer.Column += ansi.StringWidth(text)
	return writer.writer.Write(p)
}

func (writer *ListingWriterT) Newline() {
	writer.Column = 0
	writer.writer.Write([]byte("\n"))
}

func (writer *ListingWriterT) Freshline() {
	if writer.Column != 0 {
		writer.Newline()
	}
}

func (writer *ListingWriterT) IndentTo(column int) {
	if writer.Column == column {
		return
	}
	count := column
	if writer.Column < column {
		count -= writer.Column
	} else {
		writer.Newline()
	}
	writer.writer.Write([]byte(strings.Repeat(" ", count)))
	writer.Column += count
}
