// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package selector

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Fantom-foundation/Golf/go/asm"
	"github.com/Fantom-foundation/Golf/go/expr"
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/interpreter/stackvm"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

func collatz() *expr.Function {
	x := expr.In()
	return expr.MustNewFunction(expr.Parity(x,
		expr.Shr(x, expr.Const(1)),
		expr.Plus(expr.Times(x, expr.Const(3)), expr.Const(1)),
	))
}

func resolve(t *testing.T, program *asm.Program) []byte {
	t.Helper()
	code, err := asm.Resolve(program)
	if err != nil {
		t.Fatalf("failed to resolve program: %v", err)
	}
	return code
}

func opsOf(program *asm.Program) map[vm.OpCode]bool {
	res := map[vm.OpCode]bool{}
	for _, cur := range program.Instructions() {
		res[cur.Op] = true
	}
	return res
}

func TestSelect_Collatz(t *testing.T) {
	tests := map[string]struct {
		set      *isa.InstructionSet
		strategy Strategy
		want     string
	}{
		"cancun inline tails": {
			set:      isa.ForRevision(golf.R13_Cancun),
			strategy: InlineTails,
			want:     "600435" + "80600116" + "601257" + "60011c" + "5f52595ff3" + "5b" + "600302" + "600101" + "5f52595ff3",
		},
		"cancun shared tail": {
			set:      isa.ForRevision(golf.R13_Cancun),
			strategy: SharedTail,
			want:     "600435" + "80600116" + "601057" + "60011c" + "601756" + "5b" + "600302" + "600101" + "5b" + "5f52595ff3",
		},
		"london inline tails": {
			set:      isa.ForRevision(golf.R10_London),
			strategy: InlineTails,
			want:     "600435" + "80600116" + "601457" + "60011c" + "600052596000f3" + "5b" + "600302" + "600101" + "600052596000f3",
		},
		"london shared tail": {
			set:      isa.ForRevision(golf.R10_London),
			strategy: SharedTail,
			want:     "600435" + "80600116" + "601057" + "60011c" + "601756" + "5b" + "600302" + "600101" + "5b" + "600052596000f3",
		},
		"legacy shared tail": {
			set:      isa.Legacy(),
			strategy: SharedTail,
			want:     "600435" + "80600116" + "601157" + "60028104" + "601856" + "5b" + "600302" + "600101" + "5b" + "600052596000f3",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			program, err := Select(collatz(), test.set, Options{Strategy: test.strategy, InputOffset: 4})
			if err != nil {
				t.Fatalf("failed to select instructions: %v", err)
			}
			want := common.FromHex(test.want)
			if got := resolve(t, program); !bytes.Equal(want, got) {
				t.Errorf("unexpected code\nwanted %x\ngot    %x\n%v", want, got, asm.Disassemble(got))
			}
		})
	}
}

func TestSelect_CollatzSizes(t *testing.T) {
	tests := []struct {
		set      *isa.InstructionSet
		strategy Strategy
		size     int
	}{
		{isa.ForRevision(golf.R13_Cancun), InlineTails, 30},
		{isa.ForRevision(golf.R13_Cancun), SharedTail, 29},
		{isa.ForRevision(golf.R10_London), InlineTails, 34},
		{isa.ForRevision(golf.R10_London), SharedTail, 31},
		{isa.Legacy(), InlineTails, 35},
		{isa.Legacy(), SharedTail, 32},
	}
	for _, test := range tests {
		program, err := Select(collatz(), test.set, Options{Strategy: test.strategy, InputOffset: 4})
		if err != nil {
			t.Fatalf("failed to select instructions: %v", err)
		}
		size, _, err := asm.Measure(program, test.set)
		if err != nil {
			t.Fatalf("failed to measure program: %v", err)
		}
		if want, got := test.size, size; want != got {
			t.Errorf("unexpected size for %v/%v, wanted %d, got %d", test.set, test.strategy, want, got)
		}
	}
}

func TestSelect_PrefersCheaperEncodingOnEqualSize(t *testing.T) {
	fn := expr.MustNewFunction(expr.Remainder(expr.In(), expr.Const(2)))
	program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to select instructions: %v", err)
	}
	ops := opsOf(program)
	if !ops[vm.AND] || ops[vm.MOD] {
		t.Errorf("expected AND instead of MOD, got\n%v", program)
	}

	program, err = Select(fn, isa.ForRevision(golf.R13_Cancun).Without("no-and", vm.AND), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to select instructions: %v", err)
	}
	if !opsOf(program)[vm.MOD] {
		t.Errorf("expected MOD without AND, got\n%v", program)
	}
}

func TestSelect_MultiplicationByPowerOfTwoUsesShift(t *testing.T) {
	fn := expr.MustNewFunction(expr.Times(expr.Const(1024), expr.In()))
	program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to select instructions: %v", err)
	}
	// PUSH2 0x0400 MUL is one byte longer than PUSH1 0x0a SHL
	if ops := opsOf(program); !ops[vm.SHL] || ops[vm.MUL] {
		t.Errorf("expected SHL instead of MUL, got\n%v", program)
	}
}

func TestSelect_ShiftFallbacks(t *testing.T) {
	tests := map[string]struct {
		fn      *expr.Function
		want    []vm.OpCode
		notWant []vm.OpCode
	}{
		"constant shift": {
			fn:      expr.MustNewFunction(expr.Shr(expr.In(), expr.Const(3))),
			want:    []vm.OpCode{vm.DIV},
			notWant: []vm.OpCode{vm.SHR, vm.EXP},
		},
		"variable shift": {
			fn:      expr.MustNewFunction(expr.Shr(expr.Const(1000), expr.In())),
			want:    []vm.OpCode{vm.EXP, vm.DIV},
			notWant: []vm.OpCode{vm.SHR},
		},
		"shift beyond word size": {
			fn:      expr.MustNewFunction(expr.Shr(expr.In(), expr.Const(300))),
			notWant: []vm.OpCode{vm.SHR, vm.DIV, vm.EXP},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			program, err := Select(test.fn, isa.Legacy(), DefaultOptions())
			if err != nil {
				t.Fatalf("failed to select instructions: %v", err)
			}
			ops := opsOf(program)
			for _, op := range test.want {
				if !ops[op] {
					t.Errorf("expected %v in\n%v", op, program)
				}
			}
			for _, op := range test.notWant {
				if ops[op] {
					t.Errorf("unexpected %v in\n%v", op, program)
				}
			}
		})
	}
}

func TestSelect_ConsumesInputOnLastUse(t *testing.T) {
	fn := expr.MustNewFunction(expr.Plus(expr.In(), expr.Const(1)))
	program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to select instructions: %v", err)
	}
	want := common.FromHex("600435" + "600101" + "5f52595ff3")
	if got := resolve(t, program); !bytes.Equal(want, got) {
		t.Errorf("unexpected code, wanted %x, got %x", want, got)
	}
}

func TestSelect_InputIsDuplicatedWhileLive(t *testing.T) {
	fn := expr.MustNewFunction(expr.Times(expr.In(), expr.In()))
	program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to select instructions: %v", err)
	}
	if !opsOf(program)[vm.DUP1] {
		t.Errorf("expected input to be duplicated, got\n%v", program)
	}
}

func TestSelect_ConstantFunctionDoesNotLoadInput(t *testing.T) {
	tests := []*expr.Function{
		expr.MustNewFunction(expr.Plus(expr.Const(2), expr.Const(3))),
		expr.MustNewFunction(expr.If(expr.Const(1), expr.Const(5), expr.In())),
	}
	for _, fn := range tests {
		program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
		if err != nil {
			t.Fatalf("failed to select instructions: %v", err)
		}
		want := common.FromHex("6005" + "5f52595ff3")
		if got := resolve(t, program); !bytes.Equal(want, got) {
			t.Errorf("unexpected code for %v, wanted %x, got %x", fn, want, got)
		}
	}
}

func TestSelect_InputOffset(t *testing.T) {
	fn := expr.MustNewFunction(expr.In())
	tests := map[uint64]string{
		0:    "5f35" + "5f52595ff3",
		4:    "600435" + "5f52595ff3",
		0x20: "602035" + "5f52595ff3",
	}
	for offset, want := range tests {
		program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), Options{InputOffset: offset})
		if err != nil {
			t.Fatalf("failed to select instructions: %v", err)
		}
		if got := resolve(t, program); !bytes.Equal(common.FromHex(want), got) {
			t.Errorf("unexpected code for offset %d, wanted %s, got %x", offset, want, got)
		}
	}
}

func TestSelect_NonTailConditionalsComputeFunction(t *testing.T) {
	x := expr.In()
	odd := expr.Remainder(x, expr.Const(2))
	tests := map[string]*expr.Function{
		"constant or input":  expr.MustNewFunction(expr.Plus(expr.If(odd, expr.Const(7), x), expr.Const(1))),
		"input or constant":  expr.MustNewFunction(expr.Plus(expr.If(odd, x, expr.Const(7)), expr.Const(1))),
		"constants only":     expr.MustNewFunction(expr.Times(expr.If(odd, expr.Const(5), expr.Const(9)), expr.Const(3))),
		"input used after":   expr.MustNewFunction(expr.Plus(expr.If(odd, expr.Const(7), expr.Const(8)), x)),
		"nested conditional": expr.MustNewFunction(expr.Plus(expr.If(odd, expr.If(expr.Remainder(x, expr.Const(3)), x, expr.Const(2)), expr.Const(4)), expr.Const(1))),
	}
	evaluator := stackvm.NewEvaluator(stackvm.Config{})
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			program, err := Select(fn, isa.ForRevision(golf.R13_Cancun), DefaultOptions())
			if err != nil {
				t.Fatalf("failed to select instructions: %v", err)
			}
			ops := opsOf(program)
			for _, op := range []vm.OpCode{vm.JUMPI, vm.JUMP, vm.JUMPDEST} {
				if !ops[op] {
					t.Errorf("expected %v in\n%v", op, program)
				}
			}
			code := resolve(t, program)
			for _, arg := range []uint64{0, 1, 2, 3, 5, 6, 7, 1000} {
				input := append(make([]byte, DefaultInputOffset), uint256.NewInt(arg).PaddedBytes(32)...)
				res, err := evaluator.Run(golf.Parameters{
					Revision: golf.R13_Cancun,
					Phase:    golf.Installed,
					Code:     code,
					Input:    input,
					Gas:      100_000,
				})
				if err != nil || !res.Success {
					t.Fatalf("execution for %d failed: %v", arg, err)
				}
				want := fn.Eval(*uint256.NewInt(arg))
				if got := res.Output; !bytes.Equal(want.PaddedBytes(32), got) {
					t.Errorf("unexpected result for %d, wanted %x, got %x", arg, want.PaddedBytes(32), []byte(got))
				}
			}
		})
	}
}

func TestSelect_MissingPrimitivesAreUnsupported(t *testing.T) {
	cancun := isa.ForRevision(golf.R13_Cancun)
	tests := map[string]*isa.InstructionSet{
		"no parity test":  cancun.Without("no-mod", vm.MOD, vm.AND),
		"no branches":     cancun.Without("no-jumpi", vm.JUMPI),
		"no calldata":     cancun.Without("no-calldata", vm.CALLDATALOAD),
		"no multiplier":   cancun.Without("no-mul", vm.MUL),
		"no return":       cancun.Without("no-return", vm.RETURN),
		"no way to shift": cancun.Without("no-shift", vm.SHR, vm.DIV),
	}
	for name, set := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Select(collatz(), set, DefaultOptions())
			if !errors.Is(err, golf.ErrUnsupportedOperation) {
				t.Errorf("expected unsupported operation, got %v", err)
			}
		})
	}
}

func TestSelect_DupReachIsLimited(t *testing.T) {
	nested := func(depth int) *expr.Function {
		var e expr.Expression = expr.In()
		for i := 0; i < depth; i++ {
			e = expr.Remainder(e, expr.In())
		}
		return expr.MustNewFunction(e)
	}
	if _, err := Select(nested(10), isa.ForRevision(golf.R13_Cancun), DefaultOptions()); err != nil {
		t.Errorf("unexpected error for shallow nesting: %v", err)
	}
	_, err := Select(nested(20), isa.ForRevision(golf.R13_Cancun), DefaultOptions())
	if !errors.Is(err, golf.ErrUnsupportedOperation) {
		t.Errorf("expected unsupported operation for deep nesting, got %v", err)
	}
}

func TestSelect_IsDeterministic(t *testing.T) {
	for _, strategy := range Strategies() {
		a, errA := Select(collatz(), isa.ForRevision(golf.R13_Cancun), Options{Strategy: strategy})
		b, errB := Select(collatz(), isa.ForRevision(golf.R13_Cancun), Options{Strategy: strategy})
		if errA != nil || errB != nil {
			t.Fatalf("unexpected errors: %v, %v", errA, errB)
		}
		if !bytes.Equal(resolve(t, a), resolve(t, b)) {
			t.Errorf("selection with %v is not deterministic", strategy)
		}
	}
}

func TestSelect_RejectsInvalidArguments(t *testing.T) {
	if _, err := Select(nil, isa.ForRevision(golf.R13_Cancun), DefaultOptions()); !errors.Is(err, golf.ErrMalformedExpression) {
		t.Errorf("expected malformed expression for missing function, got %v", err)
	}
	if _, err := Select(collatz(), isa.ForRevision(golf.R13_Cancun), Options{Strategy: numStrategies}); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}

func TestPushConstant_PicksShortestEncoding(t *testing.T) {
	allOnes := new(uint256.Int).SetAllOne()
	tests := []struct {
		set   *isa.InstructionSet
		value *uint256.Int
		want  string
	}{
		{isa.ForRevision(golf.R13_Cancun), uint256.NewInt(0), "5f"},
		{isa.ForRevision(golf.R10_London), uint256.NewInt(0), "6000"},
		{isa.ForRevision(golf.R13_Cancun), uint256.NewInt(1), "6001"},
		{isa.ForRevision(golf.R13_Cancun), uint256.NewInt(0x100), "610100"},
		{isa.ForRevision(golf.R13_Cancun), allOnes, "5f19"},
		{isa.ForRevision(golf.R10_London), allOnes, "600019"},
		{isa.ForRevision(golf.R13_Cancun), new(uint256.Int).Not(uint256.NewInt(5)), "600519"},
		{isa.ForRevision(golf.R13_Cancun), new(uint256.Int).Lsh(uint256.NewInt(1), 255), "600160ff1b"},
		{isa.Legacy(), new(uint256.Int).Lsh(uint256.NewInt(1), 255), "7f80" + strings.Repeat("00", 31)},
	}
	for _, test := range tests {
		s := &state{set: test.set, program: asm.NewProgram(), input: -1}
		if err := s.pushConstant(test.value); err != nil {
			t.Fatalf("failed to push %v: %v", test.value, err)
		}
		if want, got := common.FromHex(test.want), resolve(t, s.program); !bytes.Equal(want, got) {
			t.Errorf("unexpected encoding of %v in %v, wanted %x, got %x", test.value, test.set, want, got)
		}
		if want, got := 1, s.depth; want != got {
			t.Errorf("unexpected stack depth, wanted %d, got %d", want, got)
		}
	}
}

func TestStrategy_String(t *testing.T) {
	tests := map[Strategy]string{
		InlineTails:   "inline-tails",
		SharedTail:    "shared-tail",
		numStrategies: "Strategy(2)",
	}
	for strategy, want := range tests {
		if got := strategy.String(); want != got {
			t.Errorf("unexpected string, wanted %s, got %s", want, got)
		}
	}
}
