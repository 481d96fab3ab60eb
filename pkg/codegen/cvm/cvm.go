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
package cvm

import (
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
)

// Backend emits the textual assembly of a register-based circuit virtual
// machine.  Signals and components are managed by the machine itself, so the
// memory layout only determines the directives in the header.
type Backend struct{}

// NewBackend constructs a new CVM backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name implementation for the codegen.Backend interface.
func (p *Backend) Name() string {
	return "cvm"
}

// Extension implementation for the codegen.Backend interface.
func (p *Backend) Extension() string {
	return ".cvm"
}

// Header emits the directives describing the circuit as a whole.
func (p *Backend) Header(ctx *codegen.Context) *codegen.Code {
	var (
		code = codegen.NewCode()
		c    = ctx.Circuit
		mode = "explicit"
	)
	//
	directive(code, "Prime value", "%%%%prime %s", ctx.Field.Prime())
	directive(code, "Memory of signals", "%%%%signals %d", c.TotalSignals)
	directive(code, "Heap of components", "%%%%components_heap %d", c.ComponentTreeSize)
	//
	code.Add(";; Types (for each field we store name type offset size nDims dims)")
	//
	for i, fields := range c.BusFields {
		code.Open("%%%%type $bus_%d", i)
		//
		for _, f := range fields {
			code.Addf("$%s %s %d %d %s", f.Name, elementType(f.BusId.HasValue(), f.BusId.UnwrapOr(0)), f.Offset,
				f.Size, shape(f.Dimensions))
		}
		//
		code.Close("")
	}
	//
	if len(c.BusFields) == 0 {
		code.Add("")
	}
	//
	directive(code, "Main template", "%%%%start %s", c.MainHeader)
	//
	if c.ImplicitComponentCreation {
		mode = "implicit"
	}
	//
	directive(code, "Component creation mode (implicit/explicit)", "%%%%components %s", mode)
	//
	witness := make([]string, len(c.Witness))
	for i, s := range c.Witness {
		witness[i] = fmt.Sprintf("%d", s)
	}
	//
	directive(code, "Witness (signal list)", "%%%%witness %s", strings.Join(witness, " "))
	//
	return code
}

// Template emits a template, whose first register holds the start of the
// scratch area following its variables.
func (p *Backend) Template(ctx *codegen.Context, t *circuit.TemplateCode) *codegen.Code {
	var (
		code = codegen.NewCode()
		u    = &unit{ctx: ctx, template: t}
		subs []string
	)
	//
	for _, instances := range t.ComponentInstances {
		for _, id := range instances {
			if id.HasValue() {
				subs = append(subs, fmt.Sprintf("%d", id.Unwrap()))
			} else {
				subs = append(subs, "-1")
			}
		}
	}
	//
	code.Addf("%%%%template %s [%s] [%s] [%d] [%s]", t.Header, wires(t.Outputs), wires(t.Inputs),
		t.NumberOfSignals(), strings.Join(subs, " "))
	//
	u.scratch = u.fresh()
	code.Addf("%s = i64.%d", u.scratch, t.VarStackDepth)
	u.body(code, t.Body)
	code.Add("")
	//
	return code
}

// Function emits a function, which returns arrays through the memory at
// destination (of destination_size elements).
func (p *Backend) Function(ctx *codegen.Context, f *circuit.FunctionCode) *codegen.Code {
	var (
		code   = codegen.NewCode()
		u      = &unit{ctx: ctx, function: f}
		params = make([]string, len(f.Params))
	)
	//
	for i, p := range f.Params {
		params[i] = declare(false, 0, p.Dimensions)
	}
	//
	code.Addf("%%%%function %s [%s] [%s]", f.Header, declare(false, 0, f.Returns), strings.Join(params, " "))
	u.body(code, f.Body)
	code.Add("")
	//
	return code
}

// Footer implementation for the codegen.Backend interface.
func (p *Backend) Footer(ctx *codegen.Context) *codegen.Code {
	return codegen.NewCode()
}

func directive(code *codegen.Code, comment string, format string, args ...any) {
	code.Addf(";; %s", comment)
	code.Addf(format, args...)
	code.Add("")
}

// declare describes the type of a wire or parameter as its element type,
// number of dimensions and then the dimensions themselves.
func declare(bus bool, busId uint, dims []uint) string {
	return fmt.Sprintf("%s %s", elementType(bus, busId), shape(dims))
}

func elementType(bus bool, busId uint) string {
	if bus {
		return fmt.Sprintf("$bus_%d", busId)
	}
	//
	return "ff"
}

func shape(dims []uint) string {
	var parts = []string{fmt.Sprintf("%d", len(dims))}
	//
	for _, d := range dims {
		parts = append(parts, fmt.Sprintf("%d", d))
	}
	//
	return strings.Join(parts, " ")
}

func wires(ws []circuit.Wire) string {
	var decls = make([]string, len(ws))
	//
	for i, w := range ws {
		decls[i] = declare(w.IsBus(), w.BusId.UnwrapOr(0), w.Dimensions)
	}
	//
	return strings.Join(decls, " ")
}
