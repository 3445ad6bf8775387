// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package stackvm provides a compact evaluator for the subset of EVM
// operations generated code may use. It is registered as "stackvm".
package stackvm

import (
	"fmt"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/log"
)

func init() {
	golf.MustRegisterEvaluatorFactory("stackvm", func(config any) (golf.Evaluator, error) {
		switch c := config.(type) {
		case nil:
			return NewEvaluator(Config{}), nil
		case Config:
			return NewEvaluator(c), nil
		default:
			return nil, fmt.Errorf("unsupported configuration type %T", config)
		}
	})
}

// Config contains the optional settings of the evaluator.
type Config struct {
	// Logger receives a trace of every executed step. If nil, execution is
	// not traced.
	Logger log.Logger
}

type stackVm struct {
	config Config
}

// NewEvaluator creates an evaluator using the given configuration.
func NewEvaluator(config Config) *stackVm {
	return &stackVm{config: config}
}

// Defines the newest supported revision for this evaluator implementation
const newestSupportedRevision = golf.R13_Cancun

func (v *stackVm) Run(params golf.Parameters) (golf.Result, error) {
	if params.Revision < golf.R07_Istanbul || params.Revision > newestSupportedRevision {
		return golf.Result{}, &golf.ErrUnsupportedRevision{Revision: params.Revision}
	}
	if params.Gas < 0 {
		return golf.Result{}, fmt.Errorf("invalid gas %d", params.Gas)
	}
	if params.Phase != golf.Initializing && params.Phase != golf.Installed {
		return golf.Result{}, fmt.Errorf("unsupported phase %v", params.Phase)
	}

	failed := golf.Result{GasUsed: params.Gas}
	input := params.Input
	if params.Phase == golf.Initializing {
		if params.Revision >= golf.R12_Shanghai && len(params.Code) > golf.MaxInitCodeSize {
			v.debug("Creation failed", "reason", errInitCodeTooLarge)
			return failed, nil
		}
		input = nil
	}

	config := interpreterConfig{
		set:    isa.ForRevision(params.Revision),
		logger: v.config.Logger,
	}
	c := run(config, params.Code, input, params.Gas)

	switch c.status {
	case statusStopped, statusReturned:
		// handled below
	case statusReverted:
		return golf.Result{Output: c.output, GasUsed: params.Gas - c.gas}, nil
	case statusFailed:
		return failed, nil
	default:
		return golf.Result{}, fmt.Errorf("execution ended in unexpected status %v", c.status)
	}

	if params.Phase == golf.Initializing {
		if err := deposit(c, params.Revision); err != nil {
			v.debug("Creation failed", "reason", err)
			return failed, nil
		}
	}
	return golf.Result{
		Success: true,
		Output:  c.output,
		GasUsed: params.Gas - c.gas,
	}, nil
}

// deposit applies the rules for installing the output of an init code run.
func deposit(c *context, revision golf.Revision) error {
	if len(c.output) > golf.MaxCodeSize {
		return errMaxCodeSizeExceeded
	}
	if revision >= golf.R10_London && len(c.output) > 0 && c.output[0] == 0xEF {
		return errInvalidCode
	}
	if err := c.useGas(golf.Gas(200 * len(c.output))); err != nil {
		return errCodeStoreOutOfGas
	}
	return nil
}

func (v *stackVm) debug(msg string, ctx ...any) {
	if v.config.Logger != nil {
		v.config.Logger.Debug(msg, ctx...)
	}
}
