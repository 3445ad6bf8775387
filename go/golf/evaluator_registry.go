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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Evaluator implementations register a factory from the init function of
// their package, so importing the package makes the evaluator available by
// name. Names are case-insensitive.

// EvaluatorFactory creates an evaluator from an implementation specific
// configuration. A nil configuration selects the defaults.
type EvaluatorFactory func(config any) (Evaluator, error)

var (
	evaluatorsLock sync.Mutex
	evaluators     = map[string]EvaluatorFactory{}
)

// NewEvaluator creates an instance of the evaluator registered as name,
// passing at most one configuration value to its factory.
func NewEvaluator(name string, config ...any) (Evaluator, error) {
	if len(config) > 1 {
		return nil, fmt.Errorf("expected at most one configuration, got %d", len(config))
	}
	evaluatorsLock.Lock()
	factory, found := evaluators[strings.ToLower(name)]
	evaluatorsLock.Unlock()
	if !found {
		return nil, fmt.Errorf("no evaluator registered as %q", name)
	}
	var c any
	if len(config) == 1 {
		c = config[0]
	}
	return factory(c)
}

// GetAllRegisteredEvaluatorNames lists the registered evaluators in
// lexicographical order.
func GetAllRegisteredEvaluatorNames() []string {
	evaluatorsLock.Lock()
	defer evaluatorsLock.Unlock()
	names := maps.Keys(evaluators)
	slices.Sort(names)
	return names
}

// RegisterEvaluatorFactory makes an evaluator available under the given name.
// Each name can be bound once.
func RegisterEvaluatorFactory(name string, factory EvaluatorFactory) error {
	key := strings.ToLower(name)
	if factory == nil {
		return fmt.Errorf("nil factory for evaluator %q", key)
	}
	evaluatorsLock.Lock()
	defer evaluatorsLock.Unlock()
	if _, found := evaluators[key]; found {
		return fmt.Errorf("evaluator %q registered twice", key)
	}
	evaluators[key] = factory
	return nil
}

func MustRegisterEvaluatorFactory(name string, factory EvaluatorFactory) {
	if err := RegisterEvaluatorFactory(name, factory); err != nil {
		panic(err)
	}
}
