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
package resolve

import (
	"fmt"

	"github.com/consensys/go-witgen/pkg/ir"
)

// Evaluator computes the value of an address expression.
type Evaluator func(ir.Instruction) (uint, error)

// Constant evaluates an address expression built only from U32 literals and
// the address operators.  Anything else (e.g. a load) is not statically known.
func Constant(insn ir.Instruction) (uint, error) {
	switch p := insn.(type) {
	case *ir.Value:
		if p.Kind == ir.U32 {
			return p.Value, nil
		}
	case *ir.Compute:
		if p.Op.Kind == ir.AddAddress || p.Op.Kind == ir.MulAddress {
			if len(p.Stack) != 2 {
				return 0, fmt.Errorf("malformed %s", p.String())
			}
			//
			lhs, err := Constant(p.Stack[0])
			if err != nil {
				return 0, err
			}
			//
			rhs, err := Constant(p.Stack[1])
			if err != nil {
				return 0, err
			}
			//
			if p.Op.Kind == ir.AddAddress {
				return lhs + rhs, nil
			}
			//
			return lhs * rhs, nil
		}
	}
	//
	return 0, fmt.Errorf("%s is not a constant address", insn.String())
}
