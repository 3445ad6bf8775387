// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package wrapper prefixes payloads with a preamble installing them as the
// runtime code of a newly created contract.
package wrapper

import (
	"fmt"

	"github.com/Fantom-foundation/Golf/go/asm"
	"github.com/Fantom-foundation/Golf/go/golf"
	"github.com/Fantom-foundation/Golf/go/isa"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Config selects the shape of the preamble.
type Config struct {
	// ImmediateWidth is the number of bytes used to encode the payload
	// offset and length. It bounds the size of payloads that can be wrapped.
	ImmediateWidth int
	// UsePush0 enables the shorter preamble relying on PUSH0.
	UsePush0 bool
}

// maxImmediateWidth bounds the immediate width to values fitting an int.
const maxImmediateWidth = 4

// DefaultConfig produces the classic 12-byte preamble.
func DefaultConfig() Config {
	return Config{ImmediateWidth: 1}
}

// ConfigFor returns the shortest preamble configuration supported by the
// given instruction set.
func ConfigFor(set *isa.InstructionSet) Config {
	return Config{
		ImmediateWidth: 1,
		UsePush0:       set.Has(vm.PUSH0, vm.DUP1),
	}
}

// Fit returns a copy of the configuration using the smallest immediate width
// able to address payloads of up to maxPayload bytes.
func (c Config) Fit(maxPayload int) (Config, error) {
	for width := 1; width <= maxImmediateWidth; width++ {
		c.ImmediateWidth = width
		limit := 1 << (8 * width)
		if maxPayload < limit && (&Wrapper{config: c}).PreambleLength() < limit {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: no immediate width addresses %d bytes", golf.ErrPayloadTooLarge, maxPayload)
}

// Spec describes the layout of a wrapped payload.
type Spec struct {
	PreambleLength int
	PayloadOffset  int
	PayloadLength  int
}

// Deployable is a payload prefixed by its preamble, ready to be used as
// contract creation code.
type Deployable struct {
	Code golf.Code
	Spec Spec
}

// Payload extracts the wrapped payload from the deployable code.
func (d Deployable) Payload() golf.Payload {
	return golf.NewPayload(d.Code[d.Spec.PayloadOffset : d.Spec.PayloadOffset+d.Spec.PayloadLength])
}

// Wrapper produces preambles of a fixed shape.
type Wrapper struct {
	config Config
}

// New creates a wrapper for the given configuration.
func New(config Config) (*Wrapper, error) {
	if config.ImmediateWidth < 1 || config.ImmediateWidth > maxImmediateWidth {
		return nil, fmt.Errorf("unsupported immediate width %d", config.ImmediateWidth)
	}
	return &Wrapper{config: config}, nil
}

// Wrap prefixes the payload with the classic 12-byte preamble.
func Wrap(payload golf.Payload) (Deployable, error) {
	w, err := New(DefaultConfig())
	if err != nil {
		return Deployable{}, err
	}
	return w.Wrap(payload)
}

// PreambleLength returns the length of preambles produced by this wrapper.
// It is independent of the payload.
func (w *Wrapper) PreambleLength() int {
	width := w.config.ImmediateWidth
	if w.config.UsePush0 {
		// PUSHn len, DUP1, PUSHn off, PUSH0, CODECOPY, PUSH0, RETURN
		return 2*(1+width) + 5
	}
	// PUSHn len, PUSHn off, PUSH1 0, CODECOPY, PUSHn len, PUSH1 0, RETURN
	return 3*(1+width) + 2*2 + 2
}

// Wrap prefixes the payload with a preamble copying it from the code into
// memory and returning it. Payloads whose offset or length do not fit into
// the configured immediate width are rejected with golf.ErrPayloadTooLarge.
func (w *Wrapper) Wrap(payload golf.Payload) (Deployable, error) {
	spec := Spec{
		PreambleLength: w.PreambleLength(),
		PayloadOffset:  w.PreambleLength(),
		PayloadLength:  payload.Len(),
	}
	width := w.config.ImmediateWidth
	limit := 1 << (8 * width)
	if spec.PayloadLength >= limit || spec.PayloadOffset >= limit {
		return Deployable{}, fmt.Errorf("%w: payload of %d bytes at offset %d exceeds %d-byte immediates",
			golf.ErrPayloadTooLarge, spec.PayloadLength, spec.PayloadOffset, width)
	}

	length := asm.PushValue(uint64(spec.PayloadLength), width)
	offset := asm.PushValue(uint64(spec.PayloadOffset), width)
	program := asm.NewProgram()
	if w.config.UsePush0 {
		program.Append(
			length,
			asm.Op(vm.DUP1),
			offset,
			asm.Op(vm.PUSH0),
			asm.Op(vm.CODECOPY),
			asm.Op(vm.PUSH0),
			asm.Op(vm.RETURN),
		)
	} else {
		zero := asm.PushData([]byte{0})
		program.Append(
			length,
			offset,
			zero,
			asm.Op(vm.CODECOPY),
			length,
			zero,
			asm.Op(vm.RETURN),
		)
	}

	preamble, err := asm.Resolve(program)
	if err != nil {
		return Deployable{}, err
	}
	if len(preamble) != spec.PreambleLength {
		return Deployable{}, fmt.Errorf("preamble has %d bytes, expected %d", len(preamble), spec.PreambleLength)
	}
	code := make(golf.Code, 0, len(preamble)+spec.PayloadLength)
	code = append(code, preamble...)
	code = append(code, payload.Bytes()...)
	return Deployable{Code: code, Spec: spec}, nil
}
