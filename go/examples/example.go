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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Fantom-foundation/Golf/go/expr"
	"github.com/Fantom-foundation/Golf/go/generator"
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// Example is an executable description of a function with a
// (uint256)->uint256 signature together with a reference implementation.
type Example struct {
	exampleSpec
	selector uint32 // the ABI function selector derived from the signature
}

// exampleSpec specifies a function and an independent way of computing it.
type exampleSpec struct {
	Name      string
	function  *expr.Function
	reference func(x *uint256.Int) *uint256.Int
}

func (s exampleSpec) build() Example {
	hash := keccak256([]byte(s.Name + "(uint256)"))
	return Example{
		exampleSpec: s,
		selector:    binary.BigEndian.Uint32(hash[:4]),
	}
}

// Function returns the expression form of this example.
func (e *Example) Function() *expr.Function {
	return e.function
}

// Selector returns the function selector placed in front of arguments.
func (e *Example) Selector() uint32 {
	return e.selector
}

type Result struct {
	Result  uint256.Int
	UsedGas golf.Gas
}

const initialGas = math.MaxInt64

// Instance is an example whose generated code has been installed on an
// evaluator.
type Instance struct {
	example *Example
	unit    *golf.Unit
}

// Deploy generates the code of this example and installs it on the given
// evaluator. The installed code is checked against the hash of the generated
// payload.
func (e *Example) Deploy(g *generator.Generator, evaluator golf.Evaluator) (*Instance, error) {
	res, err := g.Generate(e.function)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code for %s: %w", e.Name, err)
	}
	unit, err := golf.Deploy(evaluator, g.Config().Revision, res.Deployable.Code, initialGas)
	if err != nil {
		return nil, err
	}
	if got := keccak256(unit.Code()); got != res.CodeHash {
		return nil, fmt.Errorf("installed code of %s has hash %v, generated payload has %v", e.Name, got, res.CodeHash)
	}
	return &Instance{example: e, unit: unit}, nil
}

// Call runs the installed code on the given argument.
func (i *Instance) Call(argument *uint256.Int) (Result, error) {
	res, err := i.unit.Call(encodeArgument(i.example.selector, argument), initialGas)
	if err != nil {
		return Result{}, err
	}
	if !res.Success {
		return Result{}, fmt.Errorf("execution of %s failed for argument %v", i.example.Name, argument)
	}
	result, err := decodeOutput(res.Output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:  result,
		UsedGas: res.GasUsed,
	}, nil
}

// RunOn generates, deploys and runs this example on the given evaluator,
// using the given argument.
func (e *Example) RunOn(g *generator.Generator, evaluator golf.Evaluator, argument *uint256.Int) (Result, error) {
	instance, err := e.Deploy(g, evaluator)
	if err != nil {
		return Result{}, err
	}
	return instance.Call(argument)
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument *uint256.Int) uint256.Int {
	return *e.reference(new(uint256.Int).Set(argument))
}

func encodeArgument(selector uint32, argument *uint256.Int) golf.Data {
	// the selector is followed by the argument padded to 32 bytes
	data := make([]byte, 4, 4+32)
	binary.BigEndian.PutUint32(data, selector)
	word := argument.Bytes32()
	return append(data, word[:]...)
}

func decodeOutput(output []byte) (uint256.Int, error) {
	var res uint256.Int
	if len(output) != 32 {
		return res, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	res.SetBytes32(output)
	return res, nil
}

func keccak256(data []byte) golf.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var hash golf.Hash
	hasher.Sum(hash[0:0])
	return hash
}
