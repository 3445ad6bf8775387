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

// Code represents EVM byte code, either init code or runtime code.
type Code []byte

// Data represents the input or output of contract invocations.
type Data []byte

// Gas represents the type used to represent the Gas values.
type Gas int64

// Hash is a 32-byte keccak-256 hash.
type Hash [32]byte

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Budget is the maximum number of bytes a generated payload may occupy.
type Budget int

// Allows reports whether a payload of the given length fits the budget.
func (b Budget) Allows(length int) bool {
	return length >= 0 && length <= int(b)
}

// Payload is the serialized runtime code of a generated program. A payload
// is immutable once produced; all accessors return copies.
type Payload struct {
	code []byte
}

// NewPayload creates a payload holding a copy of the given code.
func NewPayload(code []byte) Payload {
	return Payload{code: bytes.Clone(code)}
}

// Bytes returns a copy of the payload's code.
func (p Payload) Bytes() []byte {
	return bytes.Clone(p.code)
}

// Len returns the number of bytes in the payload.
func (p Payload) Len() int {
	return len(p.code)
}

// Equal reports whether both payloads hold the same code.
func (p Payload) Equal(other Payload) bool {
	return bytes.Equal(p.code, other.code)
}

func (p Payload) String() string {
	return fmt.Sprintf("0x%x", p.code)
}
