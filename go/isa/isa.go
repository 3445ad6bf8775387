// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package isa describes the primitive operations code may be generated for,
// together with their encoded sizes and static execution costs.
package isa

import (
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/ethereum/go-ethereum/core/vm"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Primitive is an available operation and its static gas cost.
type Primitive struct {
	Op  vm.OpCode
	Gas golf.Gas
}

// InstructionSet is an immutable set of primitives. The static cost table is
// part of the set, so sets for other targets can supply their own costs.
type InstructionSet struct {
	name  string
	costs map[vm.OpCode]golf.Gas
}

// New creates an instruction set from the given primitives. Listing an
// operation twice keeps the last cost.
func New(name string, primitives ...Primitive) *InstructionSet {
	costs := make(map[vm.OpCode]golf.Gas, len(primitives))
	for _, p := range primitives {
		costs[p.Op] = p.Gas
	}
	return &InstructionSet{name: name, costs: costs}
}

// Name returns the name of this set.
func (s *InstructionSet) Name() string {
	return s.name
}

func (s *InstructionSet) String() string {
	return s.name
}

// Has reports whether all of the given operations are available.
func (s *InstructionSet) Has(ops ...vm.OpCode) bool {
	for _, op := range ops {
		if _, found := s.costs[op]; !found {
			return false
		}
	}
	return true
}

// Gas returns the static cost of the given operation. The second result is
// false if the operation is not part of the set.
func (s *InstructionSet) Gas(op vm.OpCode) (golf.Gas, bool) {
	gas, found := s.costs[op]
	return gas, found
}

// Ops returns the available operations in ascending order.
func (s *InstructionSet) Ops() []vm.OpCode {
	res := maps.Keys(s.costs)
	slices.Sort(res)
	return res
}

// Without derives a new set lacking the given operations.
func (s *InstructionSet) Without(name string, ops ...vm.OpCode) *InstructionSet {
	costs := maps.Clone(s.costs)
	for _, op := range ops {
		delete(costs, op)
	}
	return &InstructionSet{name: name, costs: costs}
}

// Fingerprint returns a canonical description of the set's content, usable
// as a cache key.
func (s *InstructionSet) Fingerprint() string {
	var b strings.Builder
	b.WriteString(s.name)
	for _, op := range s.Ops() {
		b.WriteString(fmt.Sprintf(";%02x:%d", byte(op), s.costs[op]))
	}
	return b.String()
}

// Width returns the number of bytes the given operation occupies in code,
// including its immediate.
func Width(op vm.OpCode) int {
	if vm.PUSH1 <= op && op <= vm.PUSH32 {
		return int(op-vm.PUSH1) + 2
	}
	return 1
}

// Push returns the PUSH operation for an immediate of the given width, where
// width 0 is PUSH0.
func Push(width int) (vm.OpCode, error) {
	if width < 0 || width > 32 {
		return vm.STOP, fmt.Errorf("invalid push width %d", width)
	}
	return vm.PUSH0 + vm.OpCode(width), nil
}

// ForRevision returns the instruction set available in the given revision.
func ForRevision(revision golf.Revision) *InstructionSet {
	primitives := basePrimitives()
	if revision >= golf.R12_Shanghai {
		primitives = append(primitives, Primitive{vm.PUSH0, 2})
	}
	return New(revision.String(), primitives...)
}

// Legacy returns the instruction set predating the bitwise shift
// operations and PUSH0.
func Legacy() *InstructionSet {
	return ForRevision(golf.R07_Istanbul).Without("Legacy", vm.SHL, vm.SHR)
}

func basePrimitives() []Primitive {
	res := []Primitive{
		{vm.STOP, 0},
		{vm.ADD, 3},
		{vm.MUL, 5},
		{vm.SUB, 3},
		{vm.DIV, 5},
		{vm.MOD, 5},
		{vm.EXP, 10},
		{vm.ISZERO, 3},
		{vm.AND, 3},
		{vm.OR, 3},
		{vm.NOT, 3},
		{vm.SHL, 3},
		{vm.SHR, 3},
		{vm.CALLDATALOAD, 3},
		{vm.CALLDATASIZE, 2},
		{vm.CODECOPY, 3},
		{vm.POP, 2},
		{vm.MLOAD, 3},
		{vm.MSTORE, 3},
		{vm.JUMP, 8},
		{vm.JUMPI, 10},
		{vm.MSIZE, 2},
		{vm.JUMPDEST, 1},
		{vm.RETURN, 0},
		{vm.REVERT, 0},
	}
	for op := vm.PUSH1; op <= vm.PUSH32; op++ {
		res = append(res, Primitive{op, 3})
	}
	for op := vm.OpCode(vm.DUP1); op <= vm.DUP16; op++ {
		res = append(res, Primitive{op, 3})
	}
	for op := vm.OpCode(vm.SWAP1); op <= vm.SWAP16; op++ {
		res = append(res, Primitive{op, 3})
	}
	return res
}
