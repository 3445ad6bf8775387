// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package generator turns functions into self-installing EVM code fitting a
// size budget.
package generator

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Golf/go/asm"
	"github.com/Fantom-foundation/Golf/go/expr"
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/Fantom-foundation/Golf/go/selector"
	"github.com/Fantom-foundation/Golf/go/wrapper"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

// Result is the outcome of a successful generation.
type Result struct {
	Payload    golf.Payload
	Deployable wrapper.Deployable
	Strategy   selector.Strategy
	CodeHash   golf.Hash // < keccak-256 hash of the payload
	Program    *asm.Program
}

func (r Result) clone() Result {
	r.Deployable.Code = bytes.Clone(r.Deployable.Code)
	r.Program = r.Program.Clone()
	return r
}

// Generator runs instruction selection, assembly and wrapping for a fixed
// configuration. Generators are safe for concurrent use.
type Generator struct {
	config  Config
	set     *isa.InstructionSet
	wrapper *wrapper.Wrapper
	cache   *lru.Cache[string, Result]
	logger  log.Logger
}

// New creates a generator with the given configuration.
func New(config Config) (*Generator, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	set := config.instructionSet()

	wrapperConfig := wrapper.DefaultConfig()
	if config.CompactPreamble {
		wrapperConfig = wrapper.ConfigFor(set)
	}
	wrapperConfig, err := wrapperConfig.Fit(int(config.Budget))
	if err != nil {
		return nil, err
	}
	w, err := wrapper.New(wrapperConfig)
	if err != nil {
		return nil, err
	}

	if config.CacheSize == 0 {
		config.CacheSize = defaultCacheSize
	}
	var cache *lru.Cache[string, Result]
	if config.CacheSize > 0 {
		cache, err = lru.New[string, Result](config.CacheSize)
		if err != nil {
			return nil, err
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Generator{
		config:  config,
		set:     set,
		wrapper: w,
		cache:   cache,
		logger:  logger.New("set", set.Name(), "budget", int(config.Budget)),
	}, nil
}

// Config returns the configuration of this generator.
func (g *Generator) Config() Config {
	return g.config
}

// Generate produces self-installing code for the given function. Strategies
// are attempted in order until the payload fits the budget. If none does,
// an error wrapping golf.ErrBudgetExceeded is returned.
func (g *Generator) Generate(fn *expr.Function) (Result, error) {
	if fn == nil {
		return Result{}, fmt.Errorf("%w: no function", golf.ErrMalformedExpression)
	}
	key := g.cacheKey(fn)
	if g.cache != nil {
		if res, found := g.cache.Get(key); found {
			return res.clone(), nil
		}
	}

	smallest := -1
	for _, strategy := range selector.Strategies() {
		program, err := selector.Select(fn, g.set, selector.Options{
			Strategy:    strategy,
			InputOffset: g.config.InputOffset,
		})
		if err != nil {
			return Result{}, fmt.Errorf("failed to lower %v: %w", fn, err)
		}

		payload, err := asm.Assemble(program, g.config.Budget)
		if errors.Is(err, golf.ErrBudgetExceeded) {
			size, _, err := asm.Measure(program, g.set)
			if err != nil {
				return Result{}, err
			}
			if smallest < 0 || size < smallest {
				smallest = size
			}
			g.logger.Debug("Program exceeds budget, retrying", "strategy", strategy, "size", size)
			continue
		}
		if err != nil {
			return Result{}, err
		}

		deployable, err := g.wrapper.Wrap(payload)
		if err != nil {
			return Result{}, err
		}
		res := Result{
			Payload:    payload,
			Deployable: deployable,
			Strategy:   strategy,
			CodeHash:   keccak256(payload.Bytes()),
			Program:    program,
		}
		g.logger.Trace("Generated code", "function", fn, "strategy", strategy, "size", payload.Len(), "hash", res.CodeHash)
		if g.cache != nil {
			g.cache.Add(key, res.clone())
		}
		return res, nil
	}
	return Result{}, fmt.Errorf("%w: smallest program for %v has %d bytes, budget is %d",
		golf.ErrBudgetExceeded, fn, smallest, g.config.Budget)
}

// cacheKey identifies everything a generation result depends on besides the
// generator's fixed wrapper configuration.
func (g *Generator) cacheKey(fn *expr.Function) string {
	return fmt.Sprintf("%v|%s|%d|%d", fn, g.set.Fingerprint(), g.config.Budget, g.config.InputOffset)
}

func keccak256(data []byte) golf.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var res golf.Hash
	hasher.Sum(res[:0])
	return res
}
