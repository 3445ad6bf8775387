// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package asm resolves symbolic programs into byte code under a size budget.
package asm

import (
	"fmt"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
)

// ErrInvalidProgram is reported for programs violating the label or
// immediate invariants. It indicates a bug in the producer of the program.
const ErrInvalidProgram = golf.ConstError("invalid program")

// maxLabelWidth bounds the width of label immediates. The fixed-point
// iteration below widens at most once per byte, so it terminates after at
// most maxLabelWidth rounds.
const maxLabelWidth = 32

// Assemble resolves all labels of the given program, serializes it, and
// checks the result against the budget. Programs exceeding the budget are
// rejected with an error wrapping golf.ErrBudgetExceeded; no partial code
// is returned in this case.
func Assemble(program *Program, budget golf.Budget) (golf.Payload, error) {
	code, err := Resolve(program)
	if err != nil {
		return golf.Payload{}, err
	}
	if !budget.Allows(len(code)) {
		return golf.Payload{}, fmt.Errorf("%w: program needs %d bytes, budget is %d", golf.ErrBudgetExceeded, len(code), budget)
	}
	return golf.NewPayload(code), nil
}

// Measure returns the size of the resolved program and the sum of the static
// costs of its instructions in the given set. The gas sum covers all
// instructions, not a particular execution path.
func Measure(program *Program, set *isa.InstructionSet) (int, golf.Gas, error) {
	widths, err := resolveWidths(program)
	if err != nil {
		return 0, 0, err
	}
	size := 0
	gas := golf.Gas(0)
	for i, cur := range program.instructions {
		op := cur.Op
		if cur.Target != 0 {
			if op, err = isa.Push(widths[i]); err != nil {
				return 0, 0, err
			}
		}
		size += isa.Width(op)
		cost, found := set.Gas(op)
		if !found {
			return 0, 0, fmt.Errorf("%w: %v not in instruction set %v", golf.ErrUnsupportedOperation, op, set)
		}
		gas += cost
	}
	return size, gas, nil
}

// Resolve binds all labels to offsets and serializes the program.
func Resolve(program *Program) ([]byte, error) {
	widths, err := resolveWidths(program)
	if err != nil {
		return nil, err
	}
	offsets, size := layout(program, widths)

	labels := map[Label]int{}
	for i, cur := range program.instructions {
		if cur.Define != 0 {
			labels[cur.Define] = offsets[i]
		}
	}

	code := make([]byte, 0, size)
	for i, cur := range program.instructions {
		if cur.Target != 0 {
			width := widths[i]
			op, err := isa.Push(width)
			if err != nil {
				return nil, err
			}
			code = append(code, byte(op))
			code = append(code, bigEndian(uint64(labels[cur.Target]), width)...)
			continue
		}
		code = append(code, byte(cur.Op))
		code = append(code, cur.Immediate...)
	}
	return code, nil
}

// resolveWidths determines the immediate width of every label reference.
// All references start with the minimal width of one byte; any reference
// whose target offset does not fit is widened and the layout is recomputed
// until no width changes. Widths only grow and are bounded, so this
// terminates.
func resolveWidths(program *Program) ([]int, error) {
	if err := check(program); err != nil {
		return nil, err
	}
	widths := make([]int, len(program.instructions))
	for i, cur := range program.instructions {
		if cur.Target != 0 {
			widths[i] = 1
		}
	}

	for round := 0; ; round++ {
		if round > maxLabelWidth {
			return nil, fmt.Errorf("%w: label widths do not converge", ErrInvalidProgram)
		}
		offsets, _ := layout(program, widths)
		labels := map[Label]int{}
		for i, cur := range program.instructions {
			if cur.Define != 0 {
				labels[cur.Define] = offsets[i]
			}
		}
		changed := false
		for i, cur := range program.instructions {
			if cur.Target == 0 {
				continue
			}
			needed := byteLen(uint64(labels[cur.Target]))
			if needed > maxLabelWidth {
				return nil, fmt.Errorf("%w: offset of %v exceeds %d bytes", ErrInvalidProgram, cur.Target, maxLabelWidth)
			}
			if needed > widths[i] {
				widths[i] = needed
				changed = true
			}
		}
		if !changed {
			return widths, nil
		}
	}
}

// layout computes the offset of each instruction and the total size.
func layout(program *Program, widths []int) ([]int, int) {
	offsets := make([]int, len(program.instructions))
	pos := 0
	for i, cur := range program.instructions {
		offsets[i] = pos
		if cur.Target != 0 {
			pos += 1 + widths[i]
		} else {
			pos += 1 + len(cur.Immediate)
		}
	}
	return offsets, pos
}

// check verifies that every referenced label is defined exactly once, on a
// JUMPDEST, and that plain immediates match their opcodes.
func check(program *Program) error {
	defined := map[Label]bool{}
	for _, cur := range program.instructions {
		if cur.Define == 0 {
			continue
		}
		if cur.Op != vm.JUMPDEST {
			return fmt.Errorf("%w: %v bound to %v instead of JUMPDEST", ErrInvalidProgram, cur.Define, cur.Op)
		}
		if defined[cur.Define] {
			return fmt.Errorf("%w: %v defined more than once", ErrInvalidProgram, cur.Define)
		}
		defined[cur.Define] = true
	}
	for _, cur := range program.instructions {
		if cur.Target != 0 {
			if cur.Define != 0 {
				return fmt.Errorf("%w: instruction both references and defines a label", ErrInvalidProgram)
			}
			if !defined[cur.Target] {
				return fmt.Errorf("%w: reference to undefined label %v", ErrInvalidProgram, cur.Target)
			}
			continue
		}
		if want, got := isa.Width(cur.Op)-1, len(cur.Immediate); want != got {
			return fmt.Errorf("%w: %v with %d immediate bytes", ErrInvalidProgram, cur.Op, got)
		}
	}
	return nil
}

// byteLen returns the number of bytes needed to encode v, at least one.
func byteLen(v uint64) int {
	res := 1
	for v > 0xff {
		v >>= 8
		res++
	}
	return res
}

// bigEndian encodes v using exactly width bytes.
func bigEndian(v uint64, width int) []byte {
	res := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		res[i] = byte(v)
		v >>= 8
	}
	return res
}
