// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Binding immediates to registers where the hardware can't encode them.

package shader

// Whether an immediate may appear in source 'i' of 'op'.  Only the
// last source of a one or two source ALU instruction can hold one.

func ImmediateAllowed(op OpcodeT, i int) bool {
	return op.Kind() == KindALU &&
		op != OpLinterp &&
		op.Sources() <= 2 &&
		i == op.Sources()-1
}

// Adds MOVs that load immediates into fresh registers for those
// sources that can't encode them.  Identical values used by a single
// instruction share one register.  Returns the number of MOVs added.

func LegalizeImmediates(program *ProgramT) int {
	before := map[int][]InstructionT{}
	added := 0
	for i := range program.Code {
		inst := &program.Code[i]
		loaded := map[float32]VRegT{}
		for j := range inst.Op.Sources() {
			src := inst.Src[j]
			if !src.IsImm() || ImmediateAllowed(inst.Op, j) {
				continue
			}
			units := inst.Op.SrcUnits(j)
			reg, found := loaded[src.Imm]
			if !found || program.Regs.Size(reg) < units {
				reg = program.Regs.New(units, "")
				for k := range units {
					load := MakeInstruction(OpMov, RegOffset(reg, k), Imm(src.Imm))
					load.Routine = inst.Routine
					before[i] = append(before[i], load)
					added += 1
				}
				loaded[src.Imm] = reg
			}
			operand := Reg(reg)
			operand.Negate = src.Negate
			operand.Abs = src.Abs
			inst.Src[j] = operand
		}
	}
	program.Insert(before, nil)
	return added
}
