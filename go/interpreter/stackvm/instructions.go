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
	"bytes"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// operation describes the stack requirements and the semantics of an
// opcode. Static gas costs are taken from the instruction set.
type operation struct {
	execute func(*context) error
	pops    int
	pushes  int
	jumps   bool // < execute sets the program counter itself
}

var operations [256]*operation

func init() {
	define := func(op vm.OpCode, pops, pushes int, execute func(*context) error) {
		operations[op] = &operation{execute: execute, pops: pops, pushes: pushes}
	}
	define(vm.STOP, 0, 0, opStop)
	define(vm.ADD, 2, 1, opAdd)
	define(vm.MUL, 2, 1, opMul)
	define(vm.SUB, 2, 1, opSub)
	define(vm.DIV, 2, 1, opDiv)
	define(vm.MOD, 2, 1, opMod)
	define(vm.EXP, 2, 1, opExp)
	define(vm.ISZERO, 1, 1, opIsZero)
	define(vm.AND, 2, 1, opAnd)
	define(vm.OR, 2, 1, opOr)
	define(vm.NOT, 1, 1, opNot)
	define(vm.SHL, 2, 1, opShl)
	define(vm.SHR, 2, 1, opShr)
	define(vm.CALLDATALOAD, 1, 1, opCallDataLoad)
	define(vm.CALLDATASIZE, 0, 1, opCallDataSize)
	define(vm.CODECOPY, 3, 0, opCodeCopy)
	define(vm.POP, 1, 0, opPop)
	define(vm.MLOAD, 1, 1, opMload)
	define(vm.MSTORE, 2, 0, opMstore)
	define(vm.MSIZE, 0, 1, opMsize)
	define(vm.JUMPDEST, 0, 0, opJumpdest)
	define(vm.RETURN, 2, 0, opReturn)
	define(vm.REVERT, 2, 0, opRevert)
	define(vm.JUMP, 1, 0, opJump)
	define(vm.JUMPI, 2, 0, opJumpi)
	operations[vm.JUMP].jumps = true
	operations[vm.JUMPI].jumps = true

	for i := 0; i <= 32; i++ {
		define(vm.PUSH0+vm.OpCode(i), 0, 1, makePush(i))
	}
	for i := 1; i <= 16; i++ {
		define(vm.DUP1+vm.OpCode(i-1), i, i+1, makeDup(i-1))
		define(vm.SWAP1+vm.OpCode(i-1), i+1, i+1, makeSwap(i))
	}
}

func opStop(c *context) error {
	c.status = statusStopped
	return nil
}

func opAdd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
	return nil
}

func opMul(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
	return nil
}

func opSub(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
	return nil
}

// opDiv and opMod produce zero for a zero divisor.
func opDiv(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
	return nil
}

func opMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
	return nil
}

func opExp(c *context) error {
	base := c.stack.pop()
	exponent := c.stack.peek()
	if err := c.useGas(golf.Gas(50 * ((exponent.BitLen() + 7) / 8))); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opIsZero(c *context) error {
	x := c.stack.peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil
}

func opAnd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
	return nil
}

func opOr(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
	return nil
}

func opNot(c *context) error {
	x := c.stack.peek()
	x.Not(x)
	return nil
}

func opShl(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opShr(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opCallDataLoad(c *context) error {
	x := c.stack.peek()
	if offset, overflow := x.Uint64WithOverflow(); !overflow {
		x.SetBytes32(getData(c.input, offset, 32))
	} else {
		x.Clear()
	}
	return nil
}

func opCallDataSize(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.input)))
	return nil
}

func opCodeCopy(c *context) error {
	memOffset := *c.stack.pop()
	codeOffset := *c.stack.pop()
	length := *c.stack.pop()
	if !length.IsUint64() {
		return errGasUintOverflow
	}
	dest, err := c.memory.getSlice(&memOffset, &length, c)
	if err != nil {
		return err
	}
	if err := c.useGas(golf.Gas(3 * sizeInWords(length.Uint64()))); err != nil {
		return err
	}
	offset, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		offset = ^uint64(0)
	}
	copy(dest, getData(c.code, offset, length.Uint64()))
	return nil
}

func opPop(c *context) error {
	c.stack.pop()
	return nil
}

var wordSize = uint256.NewInt(32)

func opMload(c *context) error {
	offset := c.stack.peek()
	data, err := c.memory.getSlice(offset, wordSize, c)
	if err != nil {
		return err
	}
	offset.SetBytes32(data)
	return nil
}

func opMstore(c *context) error {
	offset := *c.stack.pop()
	value := c.stack.pop().Bytes32()
	dest, err := c.memory.getSlice(&offset, wordSize, c)
	if err != nil {
		return err
	}
	copy(dest, value[:])
	return nil
}

func opMsize(c *context) error {
	c.stack.pushUndefined().SetUint64(c.memory.length())
	return nil
}

func opJumpdest(c *context) error {
	return nil
}

func opReturn(c *context) error {
	return finish(c, statusReturned)
}

func opRevert(c *context) error {
	return finish(c, statusReverted)
}

func finish(c *context, status status) error {
	offset := *c.stack.pop()
	size := *c.stack.pop()
	data, err := c.memory.getSlice(&offset, &size, c)
	if err != nil {
		return err
	}
	c.output = bytes.Clone(data)
	c.status = status
	return nil
}

func opJump(c *context) error {
	return jumpTo(c, c.stack.pop())
}

func opJumpi(c *context) error {
	destination := *c.stack.pop()
	if c.stack.pop().IsZero() {
		c.pc++
		return nil
	}
	return jumpTo(c, &destination)
}

func jumpTo(c *context, destination *uint256.Int) error {
	target, overflow := destination.Uint64WithOverflow()
	if overflow || target >= uint64(len(c.jumpdests)) || !c.jumpdests[target] {
		return errInvalidJump
	}
	c.pc = int(target)
	return nil
}

func makePush(n int) func(*context) error {
	if n == 0 {
		return func(c *context) error {
			c.stack.pushUndefined().Clear()
			return nil
		}
	}
	return func(c *context) error {
		c.stack.pushUndefined().SetBytes(getData(c.code, uint64(c.pc)+1, uint64(n)))
		return nil
	}
}

func makeDup(n int) func(*context) error {
	return func(c *context) error {
		c.stack.dup(n)
		return nil
	}
}

func makeSwap(n int) func(*context) error {
	return func(c *context) error {
		c.stack.swap(n)
		return nil
	}
}

// getData returns size bytes of data starting at the given offset, padded
// with zeros where the range exceeds the data.
func getData(data []byte, offset, size uint64) []byte {
	res := make([]byte, size)
	length := uint64(len(data))
	if offset >= length {
		return res
	}
	end := offset + size
	if end > length || end < offset {
		end = length
	}
	copy(res, data[offset:end])
	return res
}
