// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Stack with a fixed maximum depth.  The hardware flow-control
// stacks are bounded, so the emitter wants to hear about overflow
// rather than have the stack quietly grow.

package util

type StackT[T any] struct {
	limit int // zero means unbounded
	elts  []T
}

func MakeStack[T any](limit int) *StackT[T] {
	return &StackT[T]{limit: limit}
}

func (stack *StackT[T]) Len() int {
	return len(stack.elts)
}

func (stack *StackT[T]) Empty() bool {
	return len(stack.elts) == 0
}

// Returns false, leaving the stack unchanged, if it is full.

func (stack *StackT[T]) Push(elt T) bool {
	if stack.limit != 0 && stack.limit <= len(stack.elts) {
		return false
	}
	stack.elts = append(stack.elts, elt)
	return true
}

func (stack *StackT[T]) Pop() T {
	if len(stack.elts) == 0 {
		panic("popping from empty stack")
	}
	last := len(stack.elts) - 1
	elt := stack.elts[last]
	var zero T
	stack.elts[last] = zero
	stack.elts = stack.elts[:last]
	return elt
}

func (stack *StackT[T]) Top() T {
	if len(stack.elts) == 0 {
		panic("top from empty stack")
	}
	return stack.elts[len(stack.elts)-1]
}

// Replaces the top element.
func (stack *StackT[T]) SetTop(elt T) {
	if len(stack.elts) == 0 {
		panic("setting top of empty stack")
	}
	stack.elts[len(stack.elts)-1] = elt
}
