// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package generator

import (
	"encoding/json"
	"fmt"

	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/Fantom-foundation/Golf/go/selector"
	"github.com/ethereum/go-ethereum/log"
)

// Config contains the configuration options of a Generator.
type Config struct {
	// Revision determines the instruction set code is generated for.
	Revision golf.Revision `json:"revision"`
	// Budget is the maximum payload size in bytes.
	Budget golf.Budget `json:"budget"`
	// InputOffset is the calldata offset the input word is read from.
	InputOffset uint64 `json:"inputOffset"`
	// CompactPreamble enables the shorter PUSH0-based preamble where the
	// revision supports it. Otherwise the classic preamble is used, which
	// has 12 bytes for budgets below 256 bytes. Preamble immediates are
	// widened as far as the budget requires.
	CompactPreamble bool `json:"compactPreamble"`
	// CacheSize is the number of generation results retained. If set to 0,
	// a default size is used. If negative, no cache is used.
	CacheSize int `json:"cacheSize"`

	// InstructionSet overrides the set derived from the revision.
	InstructionSet *isa.InstructionSet `json:"-"`
	// Logger receives diagnostic output. If nil, the root logger is used.
	Logger log.Logger `json:"-"`
}

const defaultCacheSize = 128

// DefaultConfig returns the configuration targeting the newest revision with
// a budget of 32 bytes and the input following a 4-byte selector.
func DefaultConfig() Config {
	return Config{
		Revision:    golf.NewestRevision,
		Budget:      32,
		InputOffset: selector.DefaultInputOffset,
		CacheSize:   defaultCacheSize,
	}
}

// ParseConfig reads a JSON configuration. Fields missing in the input keep
// their default values.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("invalid generator configuration: %w", err)
	}
	return config, nil
}

func (c Config) instructionSet() *isa.InstructionSet {
	if c.InstructionSet != nil {
		return c.InstructionSet
	}
	return isa.ForRevision(c.Revision)
}

func (c Config) validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("invalid budget %d", c.Budget)
	}
	if c.InstructionSet == nil {
		known := false
		for _, revision := range golf.GetAllKnownRevisions() {
			known = known || revision == c.Revision
		}
		if !known {
			return &golf.ErrUnsupportedRevision{Revision: c.Revision}
		}
	}
	return nil
}
