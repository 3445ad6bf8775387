// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stackvm

import "github.com/Fantom-foundation/Golf/go/golf"

const (
	errGasUintOverflow     = golf.ConstError("gas uint64 overflow")
	errInvalidCode         = golf.ConstError("invalid code")
	errInvalidJump         = golf.ConstError("invalid jump destination")
	errInvalidOpCode       = golf.ConstError("invalid opcode")
	errOutOfGas            = golf.ConstError("out of gas")
	errCodeStoreOutOfGas   = golf.ConstError("contract creation code storage out of gas")
	errMaxCodeSizeExceeded = golf.ConstError("max code size exceeded")
	errInitCodeTooLarge    = golf.ConstError("init code larger than allowed")
	errStackOverflow       = golf.ConstError("stack overflow")
	errStackUnderflow      = golf.ConstError("stack underflow")
)
