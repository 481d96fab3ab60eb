// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package codegen

import (
	"maps"
	"slices"

	"github.com/consensys/go-witgen/pkg/ir"
)

var frOperations = map[ir.OperatorKind]string{
	ir.Mul:        "Fr_mul",
	ir.Div:        "Fr_div",
	ir.Add:        "Fr_add",
	ir.Sub:        "Fr_sub",
	ir.Pow:        "Fr_pow",
	ir.IntDiv:     "Fr_idiv",
	ir.Mod:        "Fr_mod",
	ir.ShiftL:     "Fr_shl",
	ir.ShiftR:     "Fr_shr",
	ir.LesserEq:   "Fr_leq",
	ir.GreaterEq:  "Fr_geq",
	ir.Lesser:     "Fr_lt",
	ir.Greater:    "Fr_gt",
	ir.Eq:         "Fr_eq",
	ir.NotEq:      "Fr_neq",
	ir.BoolOr:     "Fr_lor",
	ir.BoolAnd:    "Fr_land",
	ir.BitOr:      "Fr_bor",
	ir.BitAnd:     "Fr_band",
	ir.BitXor:     "Fr_bxor",
	ir.PrefixSub:  "Fr_neg",
	ir.BoolNot:    "Fr_lnot",
	ir.Complement: "Fr_bnot",
}

// FrOperation returns the name of the field arithmetic routine implementing a
// given (non-address) operator.
func FrOperation(line uint, kind ir.OperatorKind) string {
	name, ok := frOperations[kind]
	//
	if !ok {
		ir.Failf(line, "no field operation for %s", kind.String())
	}
	//
	return name
}

// FrOperators returns every operator implemented by a field arithmetic
// routine, in a fixed order.
func FrOperators() []ir.OperatorKind {
	return slices.Sorted(maps.Keys(frOperations))
}

// FrRoutines returns the name of every field arithmetic routine which
// generated code may call (besides those implementing operators).
func FrRoutines() []string {
	return []string{"Fr_copy", "Fr_copyn", "Fr_toInt", "Fr_isTrue"}
}
