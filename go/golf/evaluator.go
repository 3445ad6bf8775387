// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package golf

import (
	"bytes"
	"fmt"
)

//go:generate mockgen -source evaluator.go -destination evaluator_mock.go -package golf

// Evaluator is a component capable of executing EVM byte-code. It is used to
// verify generated code against its target function and is not part of the
// generation pipeline itself.
// To obtain an Evaluator instance, client code should use NewEvaluator()
// provided by the registry file in this package.
type Evaluator interface {
	// Run executes the code provided by the parameters in the given phase and
	// returns the processing result. The resulting error is nil whenever the
	// code was correctly executed (even if the execution was aborted due to
	// a code-internal issue). The error is not nil if some problem within the
	// evaluator caused the execution to fail to correctly process the provided
	// program. During a call with an unsupported Revision an
	// ErrUnsupportedRevision error is returned.
	// Evaluators are required to be thread-safe.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the list of input parameters required for executing code.
type Parameters struct {
	Revision Revision
	Phase    Phase
	Code     Code
	Input    Data
	Gas      Gas
}

// Result summarizes the result of an EVM code computation. In the
// Initializing phase the output is the code to be installed.
type Result struct {
	Success bool // false if the execution ended in a revert or failure, true otherwise
	Output  Data
	GasUsed Gas
}

// MaxCodeSize is the maximum size of installed code (EIP-170).
const MaxCodeSize = 24576

// MaxInitCodeSize is the maximum size of init code since Shanghai (EIP-3860).
const MaxInitCodeSize = 2 * MaxCodeSize

// Phase is the execution context of a unit's code. Self-installing code runs
// exactly once while Initializing; whatever this run returns becomes the
// permanent code of the unit, which is then Installed.
type Phase byte

const (
	Initializing Phase = iota
	Installed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Installed:
		return "installed"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// Unit is an executable unit created from self-installing code.
type Unit struct {
	evaluator Evaluator
	revision  Revision
	phase     Phase
	code      Code
}

// Deploy runs the given init code on the evaluator and returns the resulting
// unit. The only phase transition is the successful return from the init
// run; on failure no unit is produced.
func Deploy(evaluator Evaluator, revision Revision, initCode Code, gas Gas) (*Unit, error) {
	unit := &Unit{
		evaluator: evaluator,
		revision:  revision,
		phase:     Initializing,
	}
	res, err := evaluator.Run(Parameters{
		Revision: revision,
		Phase:    Initializing,
		Code:     initCode,
		Gas:      gas,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: init code of %d bytes failed", ErrDeploymentFailed, len(initCode))
	}
	unit.code = Code(bytes.Clone(res.Output))
	unit.phase = Installed
	return unit, nil
}

// Phase returns the current phase of the unit.
func (u *Unit) Phase() Phase {
	return u.phase
}

// Code returns a copy of the installed code.
func (u *Unit) Code() Code {
	return bytes.Clone(u.code)
}

// Call runs the installed code with the given input and gas.
func (u *Unit) Call(input Data, gas Gas) (Result, error) {
	if u.phase != Installed {
		return Result{}, ErrNotInstalled
	}
	return u.evaluator.Run(Parameters{
		Revision: u.revision,
		Phase:    Installed,
		Code:     u.code,
		Input:    input,
		Gas:      gas,
	})
}
