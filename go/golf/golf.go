// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package golf holds the vocabulary shared by the code generation pipeline:
// error kinds, revisions, budgets, payloads, and the interface of evaluators
// used to verify generated code.
//
// The pipeline itself is split into the packages expr (target function
// model), selector (instruction selection), asm (size-constrained assembly),
// wrapper (self-installing preamble), and generator (orchestration).
package golf
