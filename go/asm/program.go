// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Label is a symbolic jump target. Labels are bound to byte offsets only
// during assembly, after the width of every immediate is fixed. The zero
// value means "no label".
type Label int

func (l Label) String() string {
	return fmt.Sprintf("L%d", int(l))
}

// Instruction is a single operation of a program. Plain operations carry
// their opcode and immediate. Label references are PUSH instructions whose
// width is chosen by the assembler; label definitions are JUMPDESTs.
type Instruction struct {
	Op        vm.OpCode
	Immediate []byte
	Target    Label // < if set, a PUSH of the offset of this label
	Define    Label // < if set, the label bound to this JUMPDEST
}

// Op creates an instruction without an immediate.
func Op(op vm.OpCode) Instruction {
	return Instruction{Op: op}
}

// PushData creates a PUSH instruction with the given immediate. The opcode
// is derived from the length of the data; empty data results in PUSH0.
// Data exceeding 32 bytes yields an instruction rejected by the assembler.
func PushData(data []byte) Instruction {
	op, err := isa.Push(len(data))
	if err != nil {
		op = vm.INVALID
	}
	return Instruction{Op: op, Immediate: bytes.Clone(data)}
}

// PushValue creates a PUSH instruction encoding value in exactly width
// big-endian bytes.
func PushValue(value uint64, width int) Instruction {
	return PushData(bigEndian(value, width))
}

// PushLabel creates a PUSH of the offset of the given label.
func PushLabel(label Label) Instruction {
	return Instruction{Op: vm.PUSH1, Target: label}
}

// JumpDest creates a JUMPDEST bound to the given label.
func JumpDest(label Label) Instruction {
	return Instruction{Op: vm.JUMPDEST, Define: label}
}

func (i Instruction) String() string {
	switch {
	case i.Target != 0:
		return fmt.Sprintf("PUSH %v", i.Target)
	case i.Define != 0:
		return fmt.Sprintf("%v: JUMPDEST", i.Define)
	case len(i.Immediate) > 0:
		return fmt.Sprintf("%v 0x%x", i.Op, i.Immediate)
	default:
		return i.Op.String()
	}
}

// Program is an ordered sequence of instructions with its own label space.
type Program struct {
	instructions []Instruction
	numLabels    int
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{}
}

// NewLabel allocates a fresh label in this program.
func (p *Program) NewLabel() Label {
	p.numLabels++
	return Label(p.numLabels)
}

// Append adds the given instructions to the end of the program.
func (p *Program) Append(instructions ...Instruction) *Program {
	p.instructions = append(p.instructions, instructions...)
	return p
}

// Len returns the number of instructions in the program.
func (p *Program) Len() int {
	return len(p.instructions)
}

// Instructions returns a copy of the program's instructions.
func (p *Program) Instructions() []Instruction {
	return append([]Instruction(nil), p.instructions...)
}

// Clone creates an independent copy of this program. Labels allocated on the
// copy do not collide with labels allocated on the original up to this point.
func (p *Program) Clone() *Program {
	return &Program{
		instructions: p.Instructions(),
		numLabels:    p.numLabels,
	}
}

// Suffix returns the instructions from the given index on as a program of
// its own, sharing this program's label counter. Labels referenced by the
// suffix must be defined within it for the suffix to be assembled.
func (p *Program) Suffix(start int) *Program {
	if start > len(p.instructions) {
		start = len(p.instructions)
	}
	return &Program{
		instructions: append([]Instruction(nil), p.instructions[start:]...),
		numLabels:    p.numLabels,
	}
}

func (p *Program) String() string {
	var b strings.Builder
	for _, cur := range p.instructions {
		b.WriteString(cur.String())
		b.WriteString("\n")
	}
	return b.String()
}
