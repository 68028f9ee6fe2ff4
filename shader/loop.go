// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Determining a program's loop structure.  Loops are always
// structured, marked by matching DO and WHILE instructions, so there
// is no need for dominator computations.

package shader

import (
	"fmt"
)

type LoopT struct {
	Do     int // index of the DO
	While  int // index of the matching WHILE
	Depth  int // 1 for outermost loops
	Parent int // index into the FindLoops result, -1 if outermost
}

// Returns every loop in order of its DO.  The program must already
// have been validated.

func FindLoops(code []InstructionT) []LoopT {
	loops := []LoopT{}
	open := []int{}
	for i := range code {
		switch code[i].Op {
		case OpDo:
			parent := -1
			if len(open) != 0 {
				parent = open[len(open)-1]
			}
			open = append(open, len(loops))
			loops = append(loops, LoopT{Do: i, While: -1, Depth: len(open), Parent: parent})
		case OpWhile:
			if len(open) == 0 {
				panic(fmt.Sprintf("while at %d has no matching do", i))
			}
			loops[open[len(open)-1]].While = i
			open = open[:len(open)-1]
		}
	}
	if len(open) != 0 {
		panic(fmt.Sprintf("do at %d has no matching while", loops[open[len(open)-1]].Do))
	}
	return loops
}

// The loop nesting depth of every instruction.  DO and WHILE count as
// being inside the loop they delimit.

func LoopDepths(code []InstructionT) []int {
	depths := make([]int, len(code))
	depth := 0
	for i := range code {
		if code[i].Op == OpDo {
			depth += 1
		}
		depths[i] = depth
		if code[i].Op == OpWhile {
			depth -= 1
		}
	}
	return depths
}

// For each instruction, the outermost loop containing it, as an index
// into 'loops', or -1.

func OutermostLoops(code []InstructionT, loops []LoopT) []int {
	result := make([]int, len(code))
	for i := range result {
		result[i] = -1
	}
	for j, loop := range loops {
		if loop.Depth != 1 {
			continue
		}
		for i := loop.Do; i <= loop.While; i++ {
			result[i] = j
		}
	}
	return result
}
