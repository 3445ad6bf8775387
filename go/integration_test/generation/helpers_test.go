// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package generation

import (
	"testing"

	"github.com/Fantom-foundation/Golf/go/generator"
	"github.com/Fantom-foundation/Golf/go/golf"
	_ "github.com/Fantom-foundation/Golf/go/interpreter/geth"
	_ "github.com/Fantom-foundation/Golf/go/interpreter/stackvm"
	"github.com/holiman/uint256"
)

// referenceEvaluator is the evaluator other evaluators are compared with.
const referenceEvaluator = "geth"

// getAllEvaluatorsForTests returns all registered evaluators that should be
// covered in integration tests.
func getAllEvaluatorsForTests(t *testing.T) map[string]golf.Evaluator {
	t.Helper()
	res := map[string]golf.Evaluator{}
	for _, name := range golf.GetAllRegisteredEvaluatorNames() {
		evaluator, err := golf.NewEvaluator(name)
		if err != nil {
			t.Fatalf("failed to create evaluator %s: %v", name, err)
		}
		res[name] = evaluator
	}
	return res
}

func newGenerator(t *testing.T, modify func(*generator.Config)) *generator.Generator {
	t.Helper()
	config := generator.DefaultConfig()
	if modify != nil {
		modify(&config)
	}
	g, err := generator.New(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return g
}

// getEdgeArguments returns arguments at the boundaries of the word range.
func getEdgeArguments() []*uint256.Int {
	return []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(2),
		uint256.NewInt(255),
		uint256.NewInt(256),
		new(uint256.Int).Lsh(uint256.NewInt(1), 255),
		new(uint256.Int).SetAllOne(),
	}
}
