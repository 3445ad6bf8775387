// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package geth provides an evaluator backed by the go-ethereum EVM. It is
// registered as "geth" and serves as the reference for other evaluators.
package geth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/ethereum/go-ethereum/params"
)

func init() {
	golf.MustRegisterEvaluatorFactory("geth", func(any) (golf.Evaluator, error) {
		return &gethVm{}, nil
	})
}

type gethVm struct{}

// Defines the newest supported revision for this evaluator implementation
const newestSupportedRevision = golf.R13_Cancun

func (m *gethVm) Run(parameters golf.Parameters) (golf.Result, error) {
	if parameters.Revision < golf.R07_Istanbul || parameters.Revision > newestSupportedRevision {
		return golf.Result{}, &golf.ErrUnsupportedRevision{Revision: parameters.Revision}
	}
	if parameters.Gas < 0 {
		return golf.Result{}, fmt.Errorf("invalid gas %d", parameters.Gas)
	}
	failed := golf.Result{GasUsed: parameters.Gas}
	config := makeRuntimeConfig(parameters)

	var (
		output  []byte
		gasUsed golf.Gas
		err     error
	)
	switch parameters.Phase {
	case golf.Initializing:
		// The init code limit is enforced by the transaction processing, which
		// is not part of the runtime environment.
		if parameters.Revision >= golf.R12_Shanghai && len(parameters.Code) > golf.MaxInitCodeSize {
			return failed, nil
		}
		var leftOver uint64
		output, _, leftOver, err = runtime.Create(parameters.Code, config)
		gasUsed = parameters.Gas - golf.Gas(leftOver)
	case golf.Installed:
		config.EVMConfig.Tracer = &tracing.Hooks{
			OnExit: func(depth int, _ []byte, used uint64, _ error, _ bool) {
				if depth == 0 {
					gasUsed = golf.Gas(used)
				}
			},
		}
		output, _, err = runtime.Execute(parameters.Code, parameters.Input, config)
	default:
		return golf.Result{}, fmt.Errorf("unsupported phase %v", parameters.Phase)
	}

	// If no error is reported, the execution ended with a STOP or RETURN.
	if err == nil {
		return golf.Result{
			Success: true,
			Output:  output,
			GasUsed: gasUsed,
		}, nil
	}

	// In case of a revert the result should indicate an unsuccessful execution.
	if errors.Is(err, geth.ErrExecutionReverted) {
		return golf.Result{Output: output, GasUsed: gasUsed}, nil
	}

	// In case of an issue caused by the code execution, the result should indicate
	// a failed execution but no error should be reported.
	switch {
	case errors.Is(err, geth.ErrOutOfGas),
		errors.Is(err, geth.ErrCodeStoreOutOfGas),
		errors.Is(err, geth.ErrMaxCodeSizeExceeded),
		errors.Is(err, geth.ErrMaxInitCodeSizeExceeded),
		errors.Is(err, geth.ErrInvalidJump),
		errors.Is(err, geth.ErrGasUintOverflow),
		errors.Is(err, geth.ErrInvalidCode):
		return failed, nil
	}

	var stackOverflow *geth.ErrStackOverflow
	var stackUnderflow *geth.ErrStackUnderflow
	var invalidOpCode *geth.ErrInvalidOpCode
	if errors.As(err, &stackOverflow) || errors.As(err, &stackUnderflow) || errors.As(err, &invalidOpCode) {
		return failed, nil
	}

	// In all other cases an EVM error should be reported.
	return golf.Result{}, fmt.Errorf("internal EVM error in geth: %v", err)
}

// makeChainConfig returns a chain config activating all forks up to the
// given revision at the genesis block.
func makeChainConfig(revision golf.Revision) *params.ChainConfig {
	chainConfig := *params.AllEthashProtocolChanges
	if revision < golf.R09_Berlin {
		chainConfig.BerlinBlock = nil
	}
	if revision < golf.R10_London {
		chainConfig.LondonBlock = nil
		chainConfig.ArrowGlacierBlock = nil
		chainConfig.GrayGlacierBlock = nil
	}
	if revision >= golf.R11_Paris {
		chainConfig.MergeNetsplitBlock = big.NewInt(0)
	}
	zero := uint64(0)
	chainConfig.ShanghaiTime = nil
	chainConfig.CancunTime = nil
	if revision >= golf.R12_Shanghai {
		chainConfig.ShanghaiTime = &zero
	}
	if revision >= golf.R13_Cancun {
		chainConfig.CancunTime = &zero
	}
	return &chainConfig
}

func makeRuntimeConfig(parameters golf.Parameters) *runtime.Config {
	config := &runtime.Config{
		ChainConfig: makeChainConfig(parameters.Revision),
		GasLimit:    uint64(parameters.Gas),
		BlockNumber: big.NewInt(0),
	}
	if parameters.Revision >= golf.R11_Paris {
		// Setting the random signals to geth that a post-merge (Paris) revision should be utilized.
		config.Random = &common.Hash{}
	}
	return config
}
