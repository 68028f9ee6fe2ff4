// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package shader

import (
	"errors"
	"fmt"
)

// Failure kinds.  Capacity and spill failures are ordinary results
// the caller can react to, for example by retrying with a simpler
// program.  Structural failures mean the input was malformed.

var (
	ErrOutOfRegisters   = errors.New("out of registers")
	ErrNoSpillCandidate = fmt.Errorf("no register left to spill: %w", ErrOutOfRegisters)
	ErrSpillUnsupported = errors.New("spilling is not supported by this hardware mode")
	ErrAlignment        = errors.New("register alignment violation")
	ErrNestingDepth     = errors.New("control flow nesting too deep")
	ErrStructure        = errors.New("malformed program")
)

type StageT int

const (
	StageEmit StageT = iota
	StageValidate
	StageClasses
	StageAllocate
	StageSpill
	StageTrivial
)

var stageNames = [...]string{"emit", "validate", "classes", "allocate", "spill", "trivial"}

func (stage StageT) String() string {
	if int(stage) < len(stageNames) {
		return stageNames[stage]
	}
	return fmt.Sprintf("stage%d", int(stage))
}

// The diagnostic returned when a compile fails.

type CompileError struct {
	Stage  StageT
	Err    error // one of the Err* kinds above
	Detail string
}

func (err *CompileError) Error() string {
	if err.Detail == "" {
		return fmt.Sprintf("%s: %v", err.Stage, err.Err)
	}
	return fmt.Sprintf("%s: %v: %s", err.Stage, err.Err, err.Detail)
}

func (err *CompileError) Unwrap() error {
	return err.Err
}

func Fail(stage StageT, kind error, format string, args ...any) *CompileError {
	return &CompileError{Stage: stage, Err: kind, Detail: fmt.Sprintf(format, args...)}
}
