// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package expr

import (
	"fmt"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/holiman/uint256"
)

// Function is a validated expression tree. Construction checks the tree
// eagerly, so evaluating a Function never fails.
type Function struct {
	body Expression
}

// NewFunction validates the given body and wraps it in a Function. A
// malformed tree (nil nodes, missing branches, unknown operators, or cycles)
// results in an error wrapping golf.ErrMalformedExpression.
func NewFunction(body Expression) (*Function, error) {
	if err := validate(body, map[Expression]bool{}); err != nil {
		return nil, err
	}
	return &Function{body: body}, nil
}

// MustNewFunction is the same as NewFunction but panics on malformed input.
func MustNewFunction(body Expression) *Function {
	res, err := NewFunction(body)
	if err != nil {
		panic(err)
	}
	return res
}

// Body returns the root of the function's expression tree.
func (f *Function) Body() Expression {
	return f.body
}

// UsesInput reports whether the function depends on its input.
func (f *Function) UsesInput() bool {
	return UsesInput(f.body)
}

// Eval evaluates the function for the given input.
func (f *Function) Eval(x uint256.Int) uint256.Int {
	return eval(f.body, &x)
}

func (f *Function) String() string {
	return f.body.String()
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", golf.ErrMalformedExpression, fmt.Sprintf(format, args...))
}

// validate checks the tree rooted at e. The path holds the inner nodes from
// the root to e; shared sub-trees are fine, cycles are not.
func validate(e Expression, path map[Expression]bool) error {
	switch n := e.(type) {
	case nil:
		return malformed("missing expression")
	case Input:
		return nil
	case *Constant:
		if n == nil {
			return malformed("nil constant")
		}
		return nil
	case *BinaryOp:
		if n == nil {
			return malformed("nil binary operation")
		}
		if n.Op >= numOperators {
			return malformed("unknown operator %v", n.Op)
		}
		if path[n] {
			return malformed("cycle through %v operation", n.Op)
		}
		path[n] = true
		defer delete(path, n)
		if n.Left == nil || n.Right == nil {
			return malformed("%v operation with missing operand", n.Op)
		}
		if err := validate(n.Left, path); err != nil {
			return err
		}
		return validate(n.Right, path)
	case *Conditional:
		if n == nil {
			return malformed("nil conditional")
		}
		if path[n] {
			return malformed("cycle through conditional")
		}
		path[n] = true
		defer delete(path, n)
		if n.Predicate == nil {
			return malformed("conditional without predicate")
		}
		if n.Then == nil {
			return malformed("conditional without then branch")
		}
		if n.Else == nil {
			return malformed("conditional without else branch")
		}
		for _, cur := range []Expression{n.Predicate, n.Then, n.Else} {
			if err := validate(cur, path); err != nil {
				return err
			}
		}
		return nil
	default:
		return malformed("unknown expression type %T", e)
	}
}

func eval(e Expression, x *uint256.Int) uint256.Int {
	var res uint256.Int
	switch n := e.(type) {
	case Input:
		res.Set(x)
	case *Constant:
		res.Set(&n.Value)
	case *BinaryOp:
		a, b := eval(n.Left, x), eval(n.Right, x)
		apply(&res, n.Op, &a, &b)
	case *Conditional:
		if p := eval(n.Predicate, x); !p.IsZero() {
			return eval(n.Then, x)
		}
		return eval(n.Else, x)
	}
	return res
}

// apply sets z to a op b using EVM semantics.
func apply(z *uint256.Int, op Operator, a, b *uint256.Int) {
	switch op {
	case Add:
		z.Add(a, b)
	case Mul:
		z.Mul(a, b)
	case Mod:
		z.Mod(a, b)
	case ShiftRight:
		if b.LtUint64(256) {
			z.Rsh(a, uint(b.Uint64()))
		} else {
			z.Clear()
		}
	}
}

// UsesInput reports whether the given expression refers to the input.
func UsesInput(e Expression) bool {
	switch n := e.(type) {
	case Input:
		return true
	case *BinaryOp:
		return UsesInput(n.Left) || UsesInput(n.Right)
	case *Conditional:
		return UsesInput(n.Predicate) || UsesInput(n.Then) || UsesInput(n.Else)
	}
	return false
}

// Fold evaluates an input-free expression. The second result is false if the
// expression depends on the input.
func Fold(e Expression) (uint256.Int, bool) {
	if UsesInput(e) {
		return uint256.Int{}, false
	}
	return eval(e, new(uint256.Int)), true
}
