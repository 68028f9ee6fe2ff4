// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package regalloc

import (
	"github.com/s48/shaderalloc/shader"
)

// Lays registers out one after another in the order they were
// created, with no reuse.  Aligned registers are moved up a unit if
// needed to start on an even hardware register.  Returns the unit
// offset of each register and the number of units used.

func AllocateTrivial(program *shader.ProgramT, budget int, base int, width int) ([]int, int, error) {
	offsets := make([]int, program.Regs.Count())
	if width%2 == 0 && base%2 != 0 && hasAligned(program) {
		return nil, 0, shader.Fail(shader.StageTrivial, shader.ErrAlignment,
			"no even register pairs starting at g%d with %d registers per unit", base, width)
	}
	next := 0
	for reg := range program.Regs.Count() {
		vreg := shader.VRegT(reg)
		size := program.Regs.Size(vreg)
		if program.Regs.Has(vreg, shader.RegAligned) {
			if size != 2 {
				return nil, 0, shader.Fail(shader.StageTrivial, shader.ErrAlignment,
					"%s is marked aligned but has size %d", program.Regs.Name(vreg), size)
			}
			if (base+next*width)%2 != 0 {
				next += 1
			}
		}
		offsets[reg] = next
		next += size
	}
	if budget < next {
		return nil, 0, shader.Fail(shader.StageTrivial, shader.ErrOutOfRegisters,
			"%d registers need %d units, only %d available", program.Regs.Count(), next, budget)
	}
	return offsets, next, nil
}

func hasAligned(program *shader.ProgramT) bool {
	for reg := range program.Regs.Count() {
		if program.Regs.Has(shader.VRegT(reg), shader.RegAligned) {
			return true
		}
	}
	return false
}
