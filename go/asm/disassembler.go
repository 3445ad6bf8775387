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
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Disassemble renders the given code as one instruction per line, prefixed
// by its offset. A PUSH running past the end of the code is marked as
// truncated.
func Disassemble(code []byte) string {
	var b strings.Builder
	for pc := 0; pc < len(code); {
		op := vm.OpCode(code[pc])
		width := isa.Width(op)
		b.WriteString(fmt.Sprintf("0x%02x: %v", pc, op))
		if width > 1 {
			end := pc + width
			truncated := end > len(code)
			if truncated {
				end = len(code)
			}
			b.WriteString(fmt.Sprintf(" 0x%x", code[pc+1:end]))
			if truncated {
				b.WriteString(" (truncated)")
			}
		}
		b.WriteString("\n")
		pc += width
	}
	return b.String()
}
