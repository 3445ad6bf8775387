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
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/holiman/uint256"
)

// maxMemoryExpansionSize is the largest memory size whose expansion costs
// can be computed without overflowing.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

// memory is the byte-addressed, word-aligned scratch space of an execution.
type memory struct {
	store       []byte
	currentCost golf.Gas
}

func sizeInWords(size uint64) uint64 {
	if size > maxMemoryExpansionSize {
		return maxMemoryExpansionSize / 32
	}
	return (size + 31) / 32
}

func (m *memory) length() uint64 {
	return uint64(len(m.store))
}

// expansionCosts returns the gas needed to grow the memory to cover the
// given size. Costs are quadratic in the number of words.
func (m *memory) expansionCosts(size uint64) golf.Gas {
	if m.length() >= size {
		return 0
	}
	words := sizeInWords(size)
	total := golf.Gas(words*words/512 + 3*words)
	return total - m.currentCost
}

// expand makes sure the range [offset, offset+size) is covered by the
// memory, charging expansion costs to the context. Empty ranges never
// expand the memory, whatever their offset. The validated offset is
// returned.
func (m *memory) expand(offset, size *uint256.Int, c *context) (uint64, error) {
	if size.IsZero() {
		return 0, nil
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, errGasUintOverflow
	}
	start, length := offset.Uint64(), size.Uint64()
	needed := start + length
	if needed < start || needed > maxMemoryExpansionSize {
		return 0, errGasUintOverflow
	}
	if m.length() < needed {
		fee := m.expansionCosts(needed)
		if err := c.useGas(fee); err != nil {
			return 0, err
		}
		m.currentCost += fee
		words := sizeInWords(needed)
		m.store = append(m.store, make([]byte, words*32-m.length())...)
	}
	return start, nil
}

// getSlice returns the memory range [offset, offset+size) after expanding
// the memory as needed. The result aliases the memory.
func (m *memory) getSlice(offset, size *uint256.Int, c *context) ([]byte, error) {
	start, err := m.expand(offset, size, c)
	if err != nil {
		return nil, err
	}
	if size.IsZero() {
		return nil, nil
	}
	return m.store[start : start+size.Uint64()], nil
}
