// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Virtual registers live in a per-compile arena and are referred to
// only by their index.  Spilling never changes a register in place;
// it allocates new ones and rewrites the instructions that used the
// old one.

package shader

import (
	"fmt"
)

type VRegT int

type RegFlagsT uint8

const (
	RegAligned   RegFlagsT = 1 << iota // must go in the aligned-pair class
	RegNoSpill                         // never chosen for spilling
	RegSpillTemp                       // created by the spiller
)

type vregT struct {
	size  int
	flags RegFlagsT
	name  string
}

type RegisterPoolT struct {
	regs []vregT
}

func MakeRegisterPool() *RegisterPoolT {
	return &RegisterPoolT{}
}

func (pool *RegisterPoolT) New(size int, name string) VRegT {
	return pool.NewFlagged(size, 0, name)
}

func (pool *RegisterPoolT) NewFlagged(size int, flags RegFlagsT, name string) VRegT {
	if size < 1 {
		panic(fmt.Sprintf("virtual register %q has size %d", name, size))
	}
	pool.regs = append(pool.regs, vregT{size: size, flags: flags, name: name})
	return VRegT(len(pool.regs) - 1)
}

func (pool *RegisterPoolT) Count() int {
	return len(pool.regs)
}

func (pool *RegisterPoolT) Valid(reg VRegT) bool {
	return 0 <= reg && int(reg) < len(pool.regs)
}

func (pool *RegisterPoolT) Size(reg VRegT) int {
	return pool.regs[reg].size
}

func (pool *RegisterPoolT) Flags(reg VRegT) RegFlagsT {
	return pool.regs[reg].flags
}

func (pool *RegisterPoolT) Has(reg VRegT, flag RegFlagsT) bool {
	return pool.regs[reg].flags&flag != 0
}

func (pool *RegisterPoolT) SetFlag(reg VRegT, flag RegFlagsT) {
	pool.regs[reg].flags |= flag
}

func (pool *RegisterPoolT) Name(reg VRegT) string {
	if name := pool.regs[reg].name; name != "" {
		return name
	}
	return fmt.Sprintf("v%d", int(reg))
}

// Distinct sizes in order of first appearance.
func (pool *RegisterPoolT) Sizes() []int {
	seen := map[int]bool{}
	sizes := []int{}
	for _, reg := range pool.regs {
		if !seen[reg.size] {
			seen[reg.size] = true
			sizes = append(sizes, reg.size)
		}
	}
	return sizes
}

func (pool *RegisterPoolT) Clone() *RegisterPoolT {
	return &RegisterPoolT{regs: append([]vregT(nil), pool.regs...)}
}
