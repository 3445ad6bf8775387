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

// ConstError is an error type that can be used to define immutable error
// constants. Wrapped instances can be identified using errors.Is.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrMalformedExpression is reported when constructing a function from an
	// invalid expression tree. The caller has to fix the input tree.
	ErrMalformedExpression = ConstError("malformed expression")

	// ErrUnsupportedOperation is reported by the instruction selector if some
	// expression node can not be lowered using the given instruction set.
	ErrUnsupportedOperation = ConstError("unsupported operation")

	// ErrBudgetExceeded is reported by the assembler if a program does not
	// fit into the caller-supplied budget. The generator retries with more
	// compact strategies before reporting it.
	ErrBudgetExceeded = ConstError("budget exceeded")

	// ErrPayloadTooLarge is reported by the wrapper generator if the payload
	// can not be addressed by the immediates of the preamble.
	ErrPayloadTooLarge = ConstError("payload too large")

	// ErrNotInstalled is reported when calling a unit that has not completed
	// its initialization phase.
	ErrNotInstalled = ConstError("unit not installed")

	// ErrDeploymentFailed is reported if the initialization code of a unit
	// did not complete successfully.
	ErrDeploymentFailed = ConstError("deployment failed")
)
