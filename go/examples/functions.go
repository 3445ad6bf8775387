// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"github.com/Fantom-foundation/Golf/go/expr"
	"github.com/holiman/uint256"
)

// GetAllExamples returns all examples of this package.
func GetAllExamples() []Example {
	return []Example{
		GetCollatzExample(),
		GetCollatzShortcutExample(),
		GetRoundUpEvenExample(),
		GetAffineExample(),
		GetLowByteExample(),
		GetHalveExample(),
		GetTripleExample(),
		GetAnswerExample(),
	}
}

// GetCollatzExample computes a single step of the Collatz iteration.
func GetCollatzExample() Example {
	x := expr.In()
	return exampleSpec{
		Name: "collatz",
		function: expr.MustNewFunction(expr.Parity(x,
			expr.Shr(x, expr.Const(1)),
			expr.Plus(expr.Times(x, expr.Const(3)), expr.Const(1)),
		)),
		reference: collatz,
	}.build()
}

func collatz(x *uint256.Int) *uint256.Int {
	if x.Uint64()%2 == 0 {
		return x.Div(x, uint256.NewInt(2))
	}
	return x.AddUint64(x.Mul(x, uint256.NewInt(3)), 1)
}

// GetCollatzShortcutExample merges the halving following every odd step
// into the step itself.
func GetCollatzShortcutExample() Example {
	x := expr.In()
	return exampleSpec{
		Name: "collatzShortcut",
		function: expr.MustNewFunction(expr.Parity(x,
			expr.Shr(x, expr.Const(1)),
			expr.Shr(expr.Plus(expr.Times(x, expr.Const(3)), expr.Const(1)), expr.Const(1)),
		)),
		reference: func(x *uint256.Int) *uint256.Int {
			odd := x.Uint64()%2 == 1
			x = collatz(x)
			if odd {
				x.Rsh(x, 1)
			}
			return x
		},
	}.build()
}

// GetRoundUpEvenExample rounds odd arguments up to the next even number.
func GetRoundUpEvenExample() Example {
	x := expr.In()
	return exampleSpec{
		Name:     "roundUpEven",
		function: expr.MustNewFunction(expr.Parity(x, x, expr.Plus(x, expr.Const(1)))),
		reference: func(x *uint256.Int) *uint256.Int {
			if x.Uint64()&1 == 1 {
				x.AddUint64(x, 1)
			}
			return x
		},
	}.build()
}

// GetAffineExample computes 7x+5.
func GetAffineExample() Example {
	x := expr.In()
	return exampleSpec{
		Name:     "affine",
		function: expr.MustNewFunction(expr.Plus(expr.Times(x, expr.Const(7)), expr.Const(5))),
		reference: func(x *uint256.Int) *uint256.Int {
			seven := new(uint256.Int).Lsh(x, 3)
			return seven.Sub(seven, x).AddUint64(seven, 5)
		},
	}.build()
}

func GetLowByteExample() Example {
	return exampleSpec{
		Name:     "lowByte",
		function: expr.MustNewFunction(expr.Remainder(expr.In(), expr.Const(256))),
		reference: func(x *uint256.Int) *uint256.Int {
			return x.SetUint64(x.Uint64() & 0xff)
		},
	}.build()
}

func GetHalveExample() Example {
	return exampleSpec{
		Name:     "halve",
		function: expr.MustNewFunction(expr.Shr(expr.In(), expr.Const(1))),
		reference: func(x *uint256.Int) *uint256.Int {
			return x.Rsh(x, 1)
		},
	}.build()
}

func GetTripleExample() Example {
	x := expr.In()
	return exampleSpec{
		Name:     "triple",
		function: expr.MustNewFunction(expr.Times(x, expr.Const(3))),
		reference: func(x *uint256.Int) *uint256.Int {
			double := new(uint256.Int).Add(x, x)
			return double.Add(double, x)
		},
	}.build()
}

// GetAnswerExample ignores its argument.
func GetAnswerExample() Example {
	return exampleSpec{
		Name:     "answer",
		function: expr.MustNewFunction(expr.Const(42)),
		reference: func(x *uint256.Int) *uint256.Int {
			return x.SetUint64(42)
		},
	}.build()
}
