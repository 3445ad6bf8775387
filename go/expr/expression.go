// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package expr models the pure single-input functions code is generated for.
// Functions are trees of expressions over 256-bit unsigned words using the
// wraparound semantics of the EVM.
package expr

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Expression is a node of a function's expression tree. The set of
// implementations is closed: Input, *Constant, *BinaryOp, and *Conditional.
type Expression interface {
	fmt.Stringer
	isExpression()
}

// Operator enumerates the arithmetic operators of binary operations.
type Operator byte

const (
	Add        Operator = iota // < wrapping addition
	Mul                        // < wrapping multiplication
	Mod                        // < remainder, zero for a zero divisor
	ShiftRight                 // < logical shift, zero for shifts >= 256
	numOperators
)

func (o Operator) String() string {
	switch o {
	case Add:
		return "add"
	case Mul:
		return "mul"
	case Mod:
		return "mod"
	case ShiftRight:
		return "shr"
	default:
		return fmt.Sprintf("Operator(%d)", o)
	}
}

// IsCommutative reports whether the operands of the operator can be swapped.
func (o Operator) IsCommutative() bool {
	return o == Add || o == Mul
}

// Input refers to the single input word of a function.
type Input struct{}

// Constant is a fixed 256-bit word.
type Constant struct {
	Value uint256.Int
}

// BinaryOp applies an operator to two operands.
type BinaryOp struct {
	Op    Operator
	Left  Expression
	Right Expression
}

// Conditional evaluates Then if Predicate is non-zero, Else otherwise.
type Conditional struct {
	Predicate Expression
	Then      Expression
	Else      Expression
}

func (Input) isExpression()        {}
func (*Constant) isExpression()    {}
func (*BinaryOp) isExpression()    {}
func (*Conditional) isExpression() {}

func (Input) String() string {
	return "input"
}

func (c *Constant) String() string {
	return c.Value.Dec()
}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("%v(%v, %v)", b.Op, b.Left, b.Right)
}

func (c *Conditional) String() string {
	return fmt.Sprintf("if(%v, %v, %v)", c.Predicate, c.Then, c.Else)
}

// In returns a reference to the function's input.
func In() Input {
	return Input{}
}

// Const returns a constant with the given value.
func Const(value uint64) *Constant {
	res := &Constant{}
	res.Value.SetUint64(value)
	return res
}

// Word returns a constant with the given 256-bit value.
func Word(value *uint256.Int) *Constant {
	res := &Constant{}
	if value != nil {
		res.Value.Set(value)
	}
	return res
}

// Binary returns a binary operation node.
func Binary(op Operator, left, right Expression) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}

func Plus(left, right Expression) *BinaryOp {
	return Binary(Add, left, right)
}

func Times(left, right Expression) *BinaryOp {
	return Binary(Mul, left, right)
}

func Remainder(left, right Expression) *BinaryOp {
	return Binary(Mod, left, right)
}

func Shr(value, shift Expression) *BinaryOp {
	return Binary(ShiftRight, value, shift)
}

// If returns a conditional node.
func If(predicate, then, otherwise Expression) *Conditional {
	return &Conditional{Predicate: predicate, Then: then, Else: otherwise}
}

// Parity returns a conditional evaluating even if x is even and odd otherwise.
func Parity(x, even, odd Expression) *Conditional {
	return If(Remainder(x, Const(2)), odd, even)
}
