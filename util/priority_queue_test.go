// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package util

import (
	"testing"
)

func TestPriorityQueue(t *testing.T) {
	queue := MakePriorityQueue(func(x, y int) bool { return x < y })
	for _, n := range []int{5, 3, 9, 1, 7} {
		queue.Enqueue(n)
	}
	if queue.Peek() != 1 {
		t.Errorf("peek returned %d", queue.Peek())
	}
	got := []int{}
	for !queue.Empty() {
		got = append(got, queue.Dequeue())
	}
	for i, n := range []int{1, 3, 5, 7, 9} {
		if got[i] != n {
			t.Fatalf("dequeued %v", got)
		}
	}
}
