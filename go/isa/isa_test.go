// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package isa

import (
	"testing"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/ethereum/go-ethereum/core/vm"
)

func TestForRevision_Push0IsOnlyAvailableSinceShanghai(t *testing.T) {
	for _, revision := range golf.GetAllKnownRevisions() {
		set := ForRevision(revision)
		if want, got := revision >= golf.R12_Shanghai, set.Has(vm.PUSH0); want != got {
			t.Errorf("unexpected PUSH0 availability in %v, wanted %t, got %t", revision, want, got)
		}
		if !set.Has(vm.SHR, vm.SHL, vm.MUL, vm.ADD, vm.AND, vm.JUMPI, vm.CODECOPY) {
			t.Errorf("missing basic operations in %v", revision)
		}
		if want, got := revision.String(), set.Name(); want != got {
			t.Errorf("unexpected name, wanted %s, got %s", want, got)
		}
	}
}

func TestLegacy_LacksShifts(t *testing.T) {
	set := Legacy()
	if set.Has(vm.SHR) || set.Has(vm.SHL) || set.Has(vm.PUSH0) {
		t.Errorf("legacy set should not contain shifts or PUSH0")
	}
	if !set.Has(vm.DIV, vm.EXP, vm.MOD) {
		t.Errorf("legacy set should contain DIV, EXP and MOD")
	}
}

func TestInstructionSet_StaticCosts(t *testing.T) {
	set := ForRevision(golf.R13_Cancun)
	tests := map[vm.OpCode]golf.Gas{
		vm.PUSH0:    2,
		vm.PUSH1:    3,
		vm.PUSH32:   3,
		vm.DUP1:     3,
		vm.ADD:      3,
		vm.MUL:      5,
		vm.DIV:      5,
		vm.MOD:      5,
		vm.AND:      3,
		vm.SHR:      3,
		vm.JUMP:     8,
		vm.JUMPI:    10,
		vm.JUMPDEST: 1,
		vm.MSIZE:    2,
		vm.RETURN:   0,
	}
	for op, want := range tests {
		got, found := set.Gas(op)
		if !found {
			t.Errorf("%v not in set", op)
		}
		if want != got {
			t.Errorf("unexpected cost of %v, wanted %d, got %d", op, want, got)
		}
	}
	if _, found := set.Gas(vm.SSTORE); found {
		t.Errorf("SSTORE should not be part of the set")
	}
}

func TestForRevision_ContainsAllStackOperations(t *testing.T) {
	set := ForRevision(golf.R07_Istanbul)
	for i := 0; i < 16; i++ {
		for _, op := range []vm.OpCode{vm.DUP1 + vm.OpCode(i), vm.SWAP1 + vm.OpCode(i)} {
			if gas, found := set.Gas(op); !found || gas != 3 {
				t.Errorf("unexpected cost of %v, wanted 3, got %d (found: %t)", op, gas, found)
			}
		}
	}
	if set.Has(vm.LOG0) {
		t.Errorf("LOG0 should not be part of the set")
	}
}

func TestInstructionSet_WithoutDoesNotModifyOriginal(t *testing.T) {
	set := ForRevision(golf.R13_Cancun)
	reduced := set.Without("no-mul", vm.MUL)
	if reduced.Has(vm.MUL) {
		t.Errorf("MUL should have been removed")
	}
	if !set.Has(vm.MUL) {
		t.Errorf("original set should not be modified")
	}
	if set.Fingerprint() == reduced.Fingerprint() {
		t.Errorf("fingerprints of different sets should differ")
	}
}

func TestInstructionSet_CustomCostTable(t *testing.T) {
	set := New("custom", Primitive{vm.ADD, 1}, Primitive{vm.ADD, 7}, Primitive{vm.PUSH1, 2})
	if gas, _ := set.Gas(vm.ADD); gas != 7 {
		t.Errorf("last cost should win, got %d", gas)
	}
	if want, got := []vm.OpCode{vm.ADD, vm.PUSH1}, set.Ops(); len(want) != len(got) || want[0] != got[0] || want[1] != got[1] {
		t.Errorf("unexpected operations, wanted %v, got %v", want, got)
	}
	if New("a", Primitive{vm.ADD, 1}).Fingerprint() == New("a", Primitive{vm.ADD, 2}).Fingerprint() {
		t.Errorf("fingerprint should cover costs")
	}
}

func TestWidthAndPush(t *testing.T) {
	if want, got := 1, Width(vm.PUSH0); want != got {
		t.Errorf("unexpected width of PUSH0, wanted %d, got %d", want, got)
	}
	if want, got := 2, Width(vm.PUSH1); want != got {
		t.Errorf("unexpected width of PUSH1, wanted %d, got %d", want, got)
	}
	if want, got := 33, Width(vm.PUSH32); want != got {
		t.Errorf("unexpected width of PUSH32, wanted %d, got %d", want, got)
	}
	if want, got := 1, Width(vm.ADD); want != got {
		t.Errorf("unexpected width of ADD, wanted %d, got %d", want, got)
	}
	for width := 0; width <= 32; width++ {
		op, err := Push(width)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want, got := width+1, Width(op); want != got {
			t.Errorf("unexpected width of %v, wanted %d, got %d", op, want, got)
		}
	}
	if _, err := Push(33); err == nil {
		t.Errorf("expected error for push width 33")
	}
	if _, err := Push(-1); err == nil {
		t.Errorf("expected error for push width -1")
	}
}
