// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Register allocation for fragment shaders.  Each attempt computes
// live intervals, builds register classes and the interference graph,
// and colors it.  If coloring fails the cheapest register is spilled
// to scratch memory and the whole process starts over on the
// rewritten program.

package regalloc

import (
	"fmt"
	"log/slog"

	"github.com/s48/shaderalloc/hw"
	"github.com/s48/shaderalloc/shader"
	"github.com/s48/shaderalloc/util"
)

var logger = slog.New(slog.DiscardHandler)

func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger = l
}

// The outcome of one allocation attempt.  If NeedsSpill is set the
// program did not fit and Spill is the register that should be moved
// to memory before trying again.

type AttemptT struct {
	Live       *LiveIntervalsT
	Classes    *ClassSetT
	Graph      *InterferenceGraphT
	NeedsSpill bool
	Spill      shader.VRegT
	Uncolored  *NodeT
}

// Unit offset of each allocated register, -1 for unreferenced ones.

func (attempt *AttemptT) Offsets(regCount int) []int {
	offsets := make([]int, regCount)
	for i := range offsets {
		offsets[i] = -1
	}
	for _, node := range attempt.Graph.Nodes {
		offsets[node.Reg] = attempt.Classes.SlotUnit(node.Slot)
	}
	return offsets
}

func (attempt *AttemptT) UnitsUsed() int {
	used := 0
	for _, node := range attempt.Graph.Nodes {
		used = max(used, attempt.Classes.SlotUnit(node.Slot)+node.Class.Size)
	}
	return used
}

// One try at allocating 'program' on 'hardware'.  The program is not
// modified.

func Attempt(program *shader.ProgramT, hardware *hw.HardwareT) (*AttemptT, error) {
	live := LiveIntervals(program)
	sizes := []int{}
	for _, interval := range live.All() {
		sizes = append(sizes, program.Regs.Size(interval.Reg))
	}
	classes, err := BuildClasses(sizes,
		hardware.Budget(program.PayloadRegs),
		hardware.AlignedPairs,
		program.PayloadRegs,
		hardware.RegisterWidth())
	if err != nil {
		return nil, err
	}
	graph, err := BuildGraph(program, live, classes)
	if err != nil {
		return nil, err
	}
	attempt := &AttemptT{Live: live, Classes: classes, Graph: graph}
	uncolored := Color(graph, classes)
	if uncolored == nil {
		if err := CheckAllocation(graph, classes); err != nil {
			return nil, err
		}
		return attempt, nil
	}
	attempt.NeedsSpill = true
	attempt.Uncolored = uncolored
	if !hardware.Spilling {
		return nil, shader.Fail(shader.StageSpill, shader.ErrSpillUnsupported,
			"%s needs more than %d units on %s (%d-wide)",
			program.Name, classes.Budget, hardware.Name, hardware.DispatchWidth)
	}
	reg, found := ChooseSpill(program, live, SpillCosts(program))
	if !found {
		return nil, &shader.CompileError{
			Stage:  shader.StageSpill,
			Err:    shader.ErrNoSpillCandidate,
			Detail: program.Name + " does not fit and nothing can be spilled",
		}
	}
	attempt.Spill = reg
	return attempt, nil
}

//----------------------------------------------------------------

type ResultT struct {
	Virtual       *shader.ProgramT // the program after spilling, still using virtual registers
	Program       *shader.ProgramT // the same with every register operand made physical
	Offsets       []int            // unit offset of each virtual register, -1 if unused
	RegistersUsed int              // hardware registers, payload included
	UnitsUsed     int
	ScratchBytes  int
	Spills        int
	Iterations    int
}

// Allocates registers for 'program', spilling as necessary.  The
// input program is not modified.

func Compile(program *shader.ProgramT, hardware *hw.HardwareT) (*ResultT, error) {
	work := program.Clone()
	if err := work.Validate(hardware.MaxSources); err != nil {
		return nil, err
	}
	if hardware.Allocator == hw.AllocatorTrivial {
		return compileTrivial(work, hardware)
	}
	// Each spill retires one register from the original pool and spill
	// temporaries are never spilled.
	limit := work.Regs.Count()
	if 0 < hardware.MaxSpillIterations {
		limit = min(limit, hardware.MaxSpillIterations)
	}
	result := &ResultT{}
	spilled := util.NewSet[shader.VRegT]()
	for {
		result.Iterations += 1
		attempt, err := Attempt(work, hardware)
		if err != nil {
			logger.Debug("allocation failed", "shader", work.Name, "iteration", result.Iterations, "error", err)
			return nil, err
		}
		if !attempt.NeedsSpill {
			result.Virtual = work
			result.Offsets = attempt.Offsets(work.Regs.Count())
			result.UnitsUsed = attempt.UnitsUsed()
			finish(result, hardware)
			logger.Debug("allocated",
				"shader", work.Name,
				"registers", result.RegistersUsed,
				"spills", result.Spills,
				"scratch", result.ScratchBytes,
				"iterations", result.Iterations)
			return result, nil
		}
		if limit <= result.Spills {
			return nil, shader.Fail(shader.StageSpill, shader.ErrOutOfRegisters,
				"%s still does not fit after %d spills", work.Name, result.Spills)
		}
		if spilled.Contains(attempt.Spill) {
			panic(fmt.Sprintf("%s spilled twice", work.Regs.Name(attempt.Spill)))
		}
		spilled.Add(attempt.Spill)
		candidates := CountSpillable(work, attempt.Live)
		slot := Spill(work, attempt.Spill, hardware.ScratchStride())
		result.Spills += 1
		logger.Debug("spilled",
			"shader", work.Name,
			"register", work.Regs.Name(attempt.Spill),
			"candidates", candidates,
			"scratch", slot,
			"uncolored", attempt.Uncolored.String())
	}
}

func compileTrivial(work *shader.ProgramT, hardware *hw.HardwareT) (*ResultT, error) {
	offsets, units, err := AllocateTrivial(work,
		hardware.Budget(work.PayloadRegs),
		work.PayloadRegs,
		hardware.RegisterWidth())
	if err != nil {
		return nil, err
	}
	result := &ResultT{Virtual: work, Offsets: offsets, UnitsUsed: units, Iterations: 1}
	finish(result, hardware)
	logger.Debug("allocated trivially", "shader", work.Name, "registers", result.RegistersUsed)
	return result, nil
}

func finish(result *ResultT, hardware *hw.HardwareT) {
	work := result.Virtual
	result.Program = Physical(work, result.Offsets, hardware.RegisterWidth())
	result.RegistersUsed = work.PayloadRegs + result.UnitsUsed*hardware.RegisterWidth()
	result.ScratchBytes = work.ScratchBytes
}

// Replaces every virtual register operand with the hardware register
// holding it.

func Physical(program *shader.ProgramT, offsets []int, width int) *shader.ProgramT {
	result := program.Clone()
	for i := range result.Code {
		result.Code[i].VisitRegs(func(operand *shader.OperandT, units int, isWrite bool) {
			unit := offsets[operand.Reg] + operand.Offset
			*operand = shader.OperandT{
				File:   shader.FileHW,
				Nr:     program.PayloadRegs + unit*width,
				Negate: operand.Negate,
				Abs:    operand.Abs,
			}
		})
	}
	return result
}
