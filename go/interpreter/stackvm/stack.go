// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stackvm

import (
	"sync"

	"github.com/holiman/uint256"
)

const maxStackSize = 1024

// stack is the 1024-element 256-bit word-wide stack used by the VM. Bounds
// are not checked; the interpreter validates stack requirements of each
// operation before executing it.
//
// Stacks are obtained using newStack() and have to be handed back using
// returnStack(s) once no longer needed. Both functions are thread-safe, the
// stack itself is not.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds an element with an undefined value and returns a pointer
// to it, to be filled in by the caller.
func (s *stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element and returns a pointer to it. The pointer is
// valid until the next push.
func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

func (s *stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns the n-th element from the top, peekN(0) being the top.
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

func (s *stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element from the top.
func (s *stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup pushes a copy of the n-th element from the top, dup(0) duplicating
// the top element.
func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

func newStack() *stack {
	return stackPool.Get().(*stack)
}

// returnStack hands the stack back to the pool. A stack may only be returned
// once.
func returnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}
