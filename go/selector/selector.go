// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package selector lowers expression trees into symbolic programs, picking
// the shortest encoding for every operation the instruction set allows.
package selector

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Golf/go/asm"
	"github.com/Fantom-foundation/Golf/go/expr"
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// Strategy determines how the result tail of a function is laid out.
type Strategy byte

const (
	// InlineTails duplicates the store-and-return tail into every branch in
	// tail position. This avoids jumps and is cheaper to execute.
	InlineTails Strategy = iota
	// SharedTail emits the tail once; all but the last branch jump to it.
	SharedTail
	numStrategies
)

// Strategies returns all strategies in the order they should be attempted.
func Strategies() []Strategy {
	return []Strategy{InlineTails, SharedTail}
}

func (s Strategy) String() string {
	switch s {
	case InlineTails:
		return "inline-tails"
	case SharedTail:
		return "shared-tail"
	default:
		return fmt.Sprintf("Strategy(%d)", s)
	}
}

// DefaultInputOffset is the calldata offset of the input word when calls are
// prefixed by a 4-byte function selector.
const DefaultInputOffset = 4

// Options configure a selection run.
type Options struct {
	Strategy    Strategy
	InputOffset uint64 // < calldata offset the input word is loaded from
}

// DefaultOptions returns the options used unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		Strategy:    InlineTails,
		InputOffset: DefaultInputOffset,
	}
}

// maxDupDepth is the deepest stack slot reachable by a DUP instruction.
const maxDupDepth = 16

// Select lowers the given function into a program for the given instruction
// set. The program loads its input from calldata, computes the function, and
// returns the result as a single 32-byte word. If the set lacks primitives
// needed by every candidate encoding of some operation, an error wrapping
// golf.ErrUnsupportedOperation is returned.
func Select(fn *expr.Function, set *isa.InstructionSet, options Options) (*asm.Program, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: no function", golf.ErrMalformedExpression)
	}
	if options.Strategy >= numStrategies {
		return nil, fmt.Errorf("unknown strategy %v", options.Strategy)
	}
	s := &state{
		set:      set,
		strategy: options.Strategy,
		program:  asm.NewProgram(),
		input:    -1,
	}
	if reads(fn.Body()) {
		var offset uint256.Int
		offset.SetUint64(options.InputOffset)
		if err := s.pushConstant(&offset); err != nil {
			return nil, err
		}
		s.emit(vm.CALLDATALOAD, 1, 1)
		s.input = 0
	}
	if err := s.lowerTail(fn.Body(), true); err != nil {
		return nil, err
	}
	if _, _, err := asm.Measure(s.program, set); err != nil {
		return nil, err
	}
	return s.program, nil
}

// state is the selector's model of the program under construction and of
// the stack at its current end.
type state struct {
	set      *isa.InstructionSet
	strategy Strategy
	program  *asm.Program
	depth    int       // < number of words on the stack
	input    int       // < stack slot of the input counted from the bottom, -1 if absent
	tail     asm.Label // < shared tail label, 0 until first referenced
}

func (s *state) clone() *state {
	res := *s
	res.program = s.program.Clone()
	return &res
}

func (s *state) inputOnTop() bool {
	return s.input >= 0 && s.input == s.depth-1
}

func (s *state) emit(op vm.OpCode, pops, pushes int) {
	s.program.Append(asm.Op(op))
	s.depth += pushes - pops
}

func (s *state) dup(n int) error {
	if n < 1 || n > maxDupDepth {
		return fmt.Errorf("%w: stack slot %d out of DUP reach", golf.ErrUnsupportedOperation, n)
	}
	s.emit(vm.DUP1+vm.OpCode(n-1), 0, 1)
	return nil
}

func (s *state) pushLabel(label asm.Label) {
	s.program.Append(asm.PushLabel(label))
	s.depth++
}

// lowerTail lowers an expression in tail position, followed by the code
// returning its result. The last flag is set for the tail emitted last in
// the program, which may fall through into a shared tail.
func (s *state) lowerTail(e expr.Expression, last bool) error {
	cond, ok := e.(*expr.Conditional)
	if !ok || !expr.UsesInput(e) {
		if err := s.lower(e, false); err != nil {
			return err
		}
		return s.emitReturn(last)
	}

	if p, constant := expr.Fold(cond.Predicate); constant {
		if p.IsZero() {
			return s.lowerTail(cond.Else, last)
		}
		return s.lowerTail(cond.Then, last)
	}

	live := expr.UsesInput(cond.Then) || expr.UsesInput(cond.Else)
	if err := s.lower(cond.Predicate, live); err != nil {
		return err
	}
	then := s.program.NewLabel()
	s.pushLabel(then)
	s.emit(vm.JUMPI, 2, 0)

	depth, input := s.depth, s.input
	if err := s.lowerTail(cond.Else, false); err != nil {
		return err
	}
	s.depth, s.input = depth, input
	s.program.Append(asm.JumpDest(then))
	return s.lowerTail(cond.Then, last)
}

// emitReturn stores the word on top of the stack at memory offset 0 and
// returns it. Memory is not touched anywhere else, so MSIZE yields 32.
func (s *state) emitReturn(last bool) error {
	if s.strategy == SharedTail {
		if !last {
			if s.tail == 0 {
				s.tail = s.program.NewLabel()
			}
			s.pushLabel(s.tail)
			s.emit(vm.JUMP, 1, 0)
			return nil
		}
		if s.tail != 0 {
			s.program.Append(asm.JumpDest(s.tail))
		}
	}

	zero, size := new(uint256.Int), uint256.NewInt(32)
	if err := s.pushConstant(zero); err != nil {
		return err
	}
	s.emit(vm.MSTORE, 2, 0)
	if s.set.Has(vm.MSIZE) {
		s.emit(vm.MSIZE, 0, 1)
	} else if err := s.pushConstant(size); err != nil {
		return err
	}
	if err := s.pushConstant(zero); err != nil {
		return err
	}
	s.emit(vm.RETURN, 2, 0)
	return nil
}

// lower emits code leaving the value of e on top of the stack. If live is
// false, the input is not needed afterwards and may be consumed.
func (s *state) lower(e expr.Expression, live bool) error {
	if value, constant := expr.Fold(e); constant {
		return s.pushConstant(&value)
	}
	switch n := e.(type) {
	case expr.Input:
		return s.lowerInput(live)
	case *expr.BinaryOp:
		return s.choose(binaryCandidates(n, live))
	case *expr.Conditional:
		return s.lowerConditional(n, live)
	}
	return fmt.Errorf("%w: unexpected expression %T", golf.ErrMalformedExpression, e)
}

func (s *state) lowerInput(live bool) error {
	if s.input < 0 {
		return fmt.Errorf("%w: input read after its last use", golf.ErrMalformedExpression)
	}
	if !live && s.inputOnTop() {
		// the input slot becomes the result
		s.input = -1
		return nil
	}
	return s.dup(s.depth - s.input)
}

// lowerConditional lowers a conditional outside tail position. Both branches
// are brought to the same stack shape before they join.
func (s *state) lowerConditional(cond *expr.Conditional, live bool) error {
	if p, constant := expr.Fold(cond.Predicate); constant {
		if p.IsZero() {
			return s.lower(cond.Else, live)
		}
		return s.lower(cond.Then, live)
	}

	branchLive := live || expr.UsesInput(cond.Then) || expr.UsesInput(cond.Else)
	if err := s.lower(cond.Predicate, branchLive); err != nil {
		return err
	}
	then, join := s.program.NewLabel(), s.program.NewLabel()
	s.pushLabel(then)
	s.emit(vm.JUMPI, 2, 0)

	depth, input := s.depth, s.input
	dropInput := !live && s.inputOnTop()

	if err := s.lowerBranch(cond.Else, live, dropInput); err != nil {
		return err
	}
	s.pushLabel(join)
	s.emit(vm.JUMP, 1, 0)
	elseDepth, elseInput := s.depth, s.input

	s.depth, s.input = depth, input
	s.program.Append(asm.JumpDest(then))
	if err := s.lowerBranch(cond.Then, live, dropInput); err != nil {
		return err
	}
	if s.depth != elseDepth || s.input != elseInput {
		return fmt.Errorf("%w: branches end with different stack layouts", golf.ErrUnsupportedOperation)
	}
	s.program.Append(asm.JumpDest(join))
	return nil
}

// lowerBranch lowers one branch of a conditional. With dropInput set, an
// input left directly below the result is removed.
func (s *state) lowerBranch(e expr.Expression, live, dropInput bool) error {
	if err := s.lower(e, live); err != nil {
		return err
	}
	if dropInput && s.input >= 0 {
		s.emit(vm.SWAP1, 2, 2)
		s.emit(vm.POP, 1, 0)
		s.input = -1
	}
	return nil
}

// candidate is one way of lowering an operation, applied to a scratch copy
// of the selector state.
type candidate func(*state) error

// choose applies every candidate to a copy of the current state and keeps
// the one producing the shortest code. Ties are broken by the static gas
// costs of the instruction set, then by candidate order.
func (s *state) choose(candidates []candidate) error {
	start := s.program.Len()
	var best *state
	var bestSize int
	var bestGas golf.Gas
	var errs []error
	for _, cur := range candidates {
		trial := s.clone()
		if err := cur(trial); err != nil {
			errs = append(errs, err)
			continue
		}
		size, gas, err := asm.Measure(trial.program.Suffix(start), s.set)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if best == nil || size < bestSize || (size == bestSize && gas < bestGas) {
			best, bestSize, bestGas = trial, size, gas
		}
	}
	if best == nil {
		if len(errs) == 0 {
			return fmt.Errorf("%w: no encoding available", golf.ErrUnsupportedOperation)
		}
		return errors.Join(errs...)
	}
	*s = *best
	return nil
}

// sequence lowers two operands in order, followed by a single operation
// combining them.
func sequence(first, second expr.Expression, live bool, op vm.OpCode) candidate {
	return func(s *state) error {
		if err := s.lower(first, live || expr.UsesInput(second)); err != nil {
			return err
		}
		if err := s.lower(second, live); err != nil {
			return err
		}
		s.emit(op, 2, 1)
		return nil
	}
}

// withConstant lowers the operand and then pushes a constant on top, before
// applying op.
func withConstant(operand expr.Expression, value *uint256.Int, live bool, op vm.OpCode) candidate {
	return func(s *state) error {
		if err := s.lower(operand, live); err != nil {
			return err
		}
		if err := s.pushConstant(value); err != nil {
			return err
		}
		s.emit(op, 2, 1)
		return nil
	}
}

// constantFirst pushes a constant and then lowers the operand on top of it,
// before applying op.
func constantFirst(value *uint256.Int, operand expr.Expression, live bool, op vm.OpCode) candidate {
	return func(s *state) error {
		if err := s.pushConstant(value); err != nil {
			return err
		}
		if err := s.lower(operand, live); err != nil {
			return err
		}
		s.emit(op, 2, 1)
		return nil
	}
}

// EVM binary operations take their first operand from the top of the stack,
// so the operand pushed last is the left-hand side.
func binaryCandidates(n *expr.BinaryOp, live bool) []candidate {
	switch n.Op {
	case expr.Add:
		return []candidate{
			sequence(n.Left, n.Right, live, vm.ADD),
			sequence(n.Right, n.Left, live, vm.ADD),
		}
	case expr.Mul:
		res := []candidate{
			sequence(n.Left, n.Right, live, vm.MUL),
			sequence(n.Right, n.Left, live, vm.MUL),
		}
		if k, ok := log2(n.Right); ok {
			res = append(res, withConstant(n.Left, k, live, vm.SHL))
		}
		if k, ok := log2(n.Left); ok {
			res = append(res, withConstant(n.Right, k, live, vm.SHL))
		}
		return res
	case expr.Mod:
		res := []candidate{
			sequence(n.Right, n.Left, live, vm.MOD),
		}
		if k, ok := log2(n.Right); ok {
			var mask uint256.Int
			mask.Lsh(uint256.NewInt(1), uint(k.Uint64()))
			mask.SubUint64(&mask, 1)
			res = append(res,
				withConstant(n.Left, &mask, live, vm.AND),
				constantFirst(&mask, n.Left, live, vm.AND),
			)
		}
		return res
	case expr.ShiftRight:
		res := []candidate{
			sequence(n.Left, n.Right, live, vm.SHR),
		}
		if k, constant := expr.Fold(n.Right); constant {
			if k.LtUint64(256) {
				var divisor uint256.Int
				divisor.Lsh(uint256.NewInt(1), uint(k.Uint64()))
				res = append(res, constantFirst(&divisor, n.Left, live, vm.DIV))
			} else {
				res = append(res, func(s *state) error {
					return s.pushConstant(new(uint256.Int))
				})
			}
		} else {
			res = append(res, func(s *state) error {
				if err := s.lower(n.Right, live || expr.UsesInput(n.Left)); err != nil {
					return err
				}
				if err := s.pushConstant(uint256.NewInt(2)); err != nil {
					return err
				}
				s.emit(vm.EXP, 2, 1)
				if err := s.lower(n.Left, live); err != nil {
					return err
				}
				s.emit(vm.DIV, 2, 1)
				return nil
			})
		}
		return res
	}
	return nil
}

// reads reports whether lowering e reaches the input. Unlike
// expr.UsesInput it skips branches ruled out by constant predicates.
func reads(e expr.Expression) bool {
	switch n := e.(type) {
	case expr.Input:
		return true
	case *expr.BinaryOp:
		return reads(n.Left) || reads(n.Right)
	case *expr.Conditional:
		if p, constant := expr.Fold(n.Predicate); constant {
			if p.IsZero() {
				return reads(n.Else)
			}
			return reads(n.Then)
		}
		return reads(n.Predicate) || reads(n.Then) || reads(n.Else)
	}
	return false
}

// log2 returns k if e is an input-free expression evaluating to 2^k.
func log2(e expr.Expression) (*uint256.Int, bool) {
	value, constant := expr.Fold(e)
	if !constant || value.IsZero() {
		return nil, false
	}
	k := value.BitLen() - 1
	var power uint256.Int
	power.Lsh(uint256.NewInt(1), uint(k))
	if !power.Eq(&value) {
		return nil, false
	}
	return uint256.NewInt(uint64(k)), true
}

// pushConstant pushes the given value using its shortest encoding.
func (s *state) pushConstant(value *uint256.Int) error {
	var best []asm.Instruction
	var bestSize int
	var bestGas golf.Gas
	for _, cur := range constantEncodings(value) {
		size, gas, err := asm.Measure(asm.NewProgram().Append(cur...), s.set)
		if err != nil {
			continue
		}
		if best == nil || size < bestSize || (size == bestSize && gas < bestGas) {
			best, bestSize, bestGas = cur, size, gas
		}
	}
	if best == nil {
		return fmt.Errorf("%w: no encoding for constant %v", golf.ErrUnsupportedOperation, value)
	}
	s.program.Append(best...)
	s.depth++
	return nil
}

// constantEncodings lists instruction sequences pushing the given value.
func constantEncodings(value *uint256.Int) [][]asm.Instruction {
	res := pushes(value)

	var inverted uint256.Int
	inverted.Not(value)
	for _, cur := range pushes(&inverted) {
		res = append(res, append(cur, asm.Op(vm.NOT)))
	}

	if k := value.BitLen() - 1; k >= 8 {
		var power uint256.Int
		power.Lsh(uint256.NewInt(1), uint(k))
		if power.Eq(value) {
			res = append(res, []asm.Instruction{
				asm.PushData([]byte{1}),
				asm.PushData([]byte{byte(k)}),
				asm.Op(vm.SHL),
			})
		}
	}
	return res
}

// pushes lists the plain PUSH instructions for the given value.
func pushes(value *uint256.Int) [][]asm.Instruction {
	if value.IsZero() {
		return [][]asm.Instruction{
			{asm.PushData(nil)},
			{asm.PushData([]byte{0})},
		}
	}
	return [][]asm.Instruction{{asm.PushData(value.Bytes())}}
}
