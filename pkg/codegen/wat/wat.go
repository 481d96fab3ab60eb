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
package wat

import (
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
)

// WASM_PAGE_SIZE is the number of bytes in a page of linear memory.
const WASM_PAGE_SIZE = 65536

// Backend emits a WebAssembly text module.  Field arithmetic is imported from
// a separate "fr" module which shares the same linear memory.
type Backend struct{}

// NewBackend constructs a new WebAssembly backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name implementation for the codegen.Backend interface.
func (p *Backend) Name() string {
	return "wasm"
}

// Extension implementation for the codegen.Backend interface.
func (p *Backend) Extension() string {
	return ".wat"
}

// Header emits the types, imports, memory, data segments and runtime entry
// points of the module.
func (p *Backend) Header(ctx *codegen.Context) *codegen.Code {
	var code = codegen.NewCode()
	//
	code.Add("(module")
	types(code)
	imports(code)
	code.Addf("(import \"env\" \"memory\" (memory %d))", Pages(ctx))
	data(ctx, code)
	runtime(ctx, code)
	//
	return code
}

// Template emits the create and run routines of a template.
func (p *Backend) Template(ctx *codegen.Context, t *circuit.TemplateCode) *codegen.Code {
	var (
		code = codegen.NewCode()
		u    = &unit{ctx: ctx, template: t}
	)
	//
	code.Append(u.create())
	code.Append(u.run())
	//
	return code
}

// Function emits the routine for a function.
func (p *Backend) Function(ctx *codegen.Context, f *circuit.FunctionCode) *codegen.Code {
	var u = &unit{ctx: ctx, function: f}
	//
	return u.lowerFunction()
}

// Footer emits the table of run routines (indexed by template id) used for
// indirect dispatch, and closes the module.
func (p *Backend) Footer(ctx *codegen.Context) *codegen.Code {
	var (
		code = codegen.NewCode()
		c    = ctx.Circuit
		runs = make([]string, len(c.Templates))
	)
	//
	for i, t := range c.Templates {
		runs[i] = fmt.Sprintf("$%s_run", t.Header)
	}
	//
	code.Addf("(table $runsmap %d %d funcref)", len(runs), len(runs))
	//
	if len(runs) > 0 {
		code.Addf("(elem (i32.const 0) %s)", strings.Join(runs, " "))
	}
	//
	code.Add(")")
	//
	return code
}

// Pages returns the number of pages of linear memory initially required,
// which covers every static region up to the variable stack.
func Pages(ctx *codegen.Context) uint {
	return ctx.Layout.VarStackStart()/WASM_PAGE_SIZE + 1
}

func types(code *codegen.Code) {
	code.Add("(type $_t_void (func))")
	code.Add("(type $_t_i32 (func (param i32)))")
	code.Add("(type $_t_i32i32 (func (param i32 i32)))")
	code.Add("(type $_t_i32i32i32 (func (param i32 i32 i32)))")
	code.Add("(type $_t_ri32 (func (result i32)))")
	code.Add("(type $_t_i32ri32 (func (param i32) (result i32)))")
	code.Add("(type $_t_i32i32ri32 (func (param i32 i32) (result i32)))")
}

func imports(code *codegen.Code) {
	code.Add("(import \"runtime\" \"exceptionHandler\" (func $exceptionHandler (type $_t_i32)))")
	code.Add("(import \"runtime\" \"printErrorMessage\" (func $printErrorMessage (type $_t_void)))")
	code.Add("(import \"runtime\" \"writeBufferMessage\" (func $writeBufferMessage (type $_t_void)))")
	code.Add("(import \"runtime\" \"showSharedRWMemory\" (func $showSharedRWMemory (type $_t_void)))")
	//
	for _, kind := range codegen.FrOperators() {
		var (
			name = codegen.FrOperation(0, kind)
			typ  = "$_t_i32i32i32"
		)
		//
		if kind.IsUnary() {
			typ = "$_t_i32i32"
		}
		//
		code.Addf("(import \"fr\" \"%s\" (func $%s (type %s)))", name, name, typ)
	}
	//
	code.Add("(import \"fr\" \"Fr_copy\" (func $Fr_copy (type $_t_i32i32)))")
	code.Add("(import \"fr\" \"Fr_toInt\" (func $Fr_toInt (type $_t_i32ri32)))")
	code.Add("(import \"fr\" \"Fr_isTrue\" (func $Fr_isTrue (type $_t_i32ri32)))")
	code.Add("(import \"fr\" \"Fr_toLongNormal\" (func $Fr_toLongNormal (type $_t_i32)))")
}

// data emits the initial memory image.
func data(ctx *codegen.Context, code *codegen.Code) {
	for _, segment := range ctx.Segments {
		if ctx.Comments() {
			code.Addf(";; %s", segment.Name)
		}
		//
		code.Addf("(data (i32.const %d) \"%s\")", segment.Offset, escape(segment.Data))
	}
}

// escape renders bytes as a WebAssembly string literal, using a hex escape for
// every byte.
func escape(bytes []byte) string {
	var builder strings.Builder
	//
	for _, b := range bytes {
		fmt.Fprintf(&builder, "\\%02x", b)
	}
	//
	return builder.String()
}
