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
	"fmt"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
)

type status byte

const (
	statusRunning  status = iota // < still running
	statusStopped                // < stopped by STOP or by running past the end of the code
	statusReturned               // < returned by RETURN
	statusReverted               // < reverted by REVERT
	statusFailed                 // < aborted by an error, consuming all gas
)

func (s status) String() string {
	switch s {
	case statusRunning:
		return "running"
	case statusStopped:
		return "stopped"
	case statusReturned:
		return "returned"
	case statusReverted:
		return "reverted"
	case statusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// context is the execution state of a single run.
type context struct {
	// Inputs
	code      golf.Code
	input     golf.Data
	set       *isa.InstructionSet
	jumpdests []bool
	logger    log.Logger

	// Execution state
	pc     int
	gas    golf.Gas
	stack  *stack
	memory memory
	status status
	err    error // < the reason of a failure

	output []byte
}

func (c *context) useGas(amount golf.Gas) error {
	if c.gas < 0 || amount < 0 || c.gas < amount {
		return errOutOfGas
	}
	c.gas -= amount
	return nil
}

func (c *context) signalError(err error) {
	c.status = statusFailed
	c.err = err
}

type interpreterConfig struct {
	set    *isa.InstructionSet
	logger log.Logger
}

// run executes the given code until it halts and returns the final context.
func run(config interpreterConfig, code golf.Code, input golf.Data, gas golf.Gas) *context {
	c := &context{
		code:      code,
		input:     input,
		set:       config.set,
		jumpdests: analyzeJumpDestinations(code),
		logger:    config.logger,
		gas:       gas,
		stack:     newStack(),
	}
	defer func() {
		returnStack(c.stack)
		c.stack = nil
	}()
	steps(c)
	if c.status == statusFailed && c.logger != nil {
		c.logger.Debug("Execution failed", "pc", c.pc, "reason", c.err)
	}
	return c
}

func steps(c *context) {
	for c.status == statusRunning {
		if c.pc >= len(c.code) {
			c.status = statusStopped
			return
		}
		op := vm.OpCode(c.code[c.pc])
		if c.logger != nil {
			c.logger.Trace("Step", "pc", c.pc, "op", op, "gas", c.gas, "stack", c.stack.len())
		}

		staticGas, found := c.set.Gas(op)
		operation := operations[op]
		if !found || operation == nil {
			c.signalError(errInvalidOpCode)
			return
		}
		if c.stack.len() < operation.pops {
			c.signalError(errStackUnderflow)
			return
		}
		if c.stack.len()-operation.pops+operation.pushes > maxStackSize {
			c.signalError(errStackOverflow)
			return
		}
		if err := c.useGas(staticGas); err != nil {
			c.signalError(err)
			return
		}
		if err := operation.execute(c); err != nil {
			c.signalError(err)
			return
		}
		if !operation.jumps {
			c.pc += isa.Width(op)
		}
	}
}

// analyzeJumpDestinations marks the positions of JUMPDEST operations that are
// not part of the immediate data of a PUSH.
func analyzeJumpDestinations(code golf.Code) []bool {
	res := make([]bool, len(code))
	for i := 0; i < len(code); {
		op := vm.OpCode(code[i])
		if op == vm.JUMPDEST {
			res[i] = true
		}
		i += isa.Width(op)
	}
	return res
}
