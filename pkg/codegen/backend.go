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
	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
)

// Backend is the contract implemented by each emitter.  The driver lowers the
// header, then every template and function (each with its own context), and
// finally the footer, concatenating the results in that order.  Lowering
// aborts with a panic carrying an *ir.InvariantError on malformed IR.
type Backend interface {
	// Name of this backend (e.g. "wat").
	Name() string
	// Extension of generated files (e.g. ".wat").
	Extension() string
	// Header emits everything preceding the templates.
	Header(ctx *Context) *Code
	// Template lowers a single template.
	Template(ctx *Context, t *circuit.TemplateCode) *Code
	// Function lowers a single function.
	Function(ctx *Context, f *circuit.FunctionCode) *Code
	// Footer emits everything following the functions.
	Footer(ctx *Context) *Code
}

// StoreSize determines the number of elements copied by a store whose
// destination and source have the given sizes, when this is statically known.
func StoreSize(dest ir.Size, src ir.Size) (uint, bool) {
	switch {
	case dest.IsSingle() && src.IsSingle():
		return min(dest.Value(), src.Value()), true
	case dest.IsSingle() && dest.Value() == 0:
		return 0, true
	case src.IsSingle() && src.Value() == 0:
		return 0, true
	case dest.IsZero() || src.IsZero():
		return 0, true
	}
	//
	return 0, false
}

// HasZeroVariant checks whether any variant of a size is zero.
func HasZeroVariant(size ir.Size) bool {
	if size.IsSingle() {
		return size.Value() == 0
	}
	//
	for _, v := range size.Variants() {
		if v.Size == 0 {
			return true
		}
	}
	//
	return false
}
