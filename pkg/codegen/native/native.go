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
package native

import (
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
)

// Backend emits a C++ translation unit which runs against the calcwit runtime.
// Subcomponents may be run on worker threads.
type Backend struct{}

// NewBackend constructs a new native backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name implementation for the codegen.Backend interface.
func (p *Backend) Name() string {
	return "native"
}

// Extension implementation for the codegen.Backend interface.
func (p *Backend) Extension() string {
	return ".cpp"
}

// Header emits the includes, forward declarations, run tables, IO descriptors
// and circuit accessors.
func (p *Backend) Header(ctx *codegen.Context) *codegen.Code {
	var (
		code = codegen.NewCode()
		c    = ctx.Circuit
	)
	//
	for _, include := range []string{"<stdio.h>", "<iostream>", "<assert.h>", "<map>", "<thread>",
		"\"circom.hpp\"", "\"calcwit.hpp\""} {
		code.Addf("#include %s", include)
	}
	//
	code.Add("")
	// Forward declarations
	for _, t := range c.Templates {
		for _, parallel := range variants(t) {
			code.Addf("void %s(uint soffset,uint coffset,Circom_CalcWit* ctx,std::string componentName,"+
				"uint componentFather);", createName(t.Header, parallel))
			code.Addf("void %s(uint ctx_index,Circom_CalcWit* ctx);", runName(t.Header, parallel))
		}
	}
	//
	for _, f := range c.Functions {
		code.Addf("void %s;", functionSignature(f))
	}
	//
	code.Add("")
	code.Addf("Circom_TemplateFunction _functionTable[%d] = { %s };", len(c.Templates), runTable(c, false))
	code.Addf("Circom_TemplateFunction _functionTableParallel[%d] = { %s };", len(c.Templates), runTable(c, true))
	code.Add("")
	//
	ioDescriptors(code, c)
	//
	code.Addf("uint get_main_input_signal_start() {return %d;}", c.MainSignalOffset+c.NumberOfMainOutputs)
	code.Addf("uint get_main_input_signal_no() {return %d;}", c.NumberOfMainInputs)
	code.Addf("uint get_total_signal_no() {return %d;}", c.TotalSignals)
	code.Addf("uint get_number_of_components() {return %d;}", c.NumberOfComponents)
	code.Addf("uint get_size_of_input_hashmap() {return %d;}", ctx.Layout.HashMapCapacity())
	code.Addf("uint get_size_of_witness() {return %d;}", len(c.Witness))
	code.Addf("uint get_size_of_constants() {return %d;}", len(c.Constants))
	code.Addf("uint get_size_of_io_map() {return %d;}", len(c.IOMap))
	code.Addf("uint get_size_of_bus_field_map() {return %d;}", len(c.BusFields))
	code.Add("")
	//
	releaseMemory(code)
	//
	return code
}

// Template implementation for the codegen.Backend interface.
func (p *Backend) Template(ctx *codegen.Context, t *circuit.TemplateCode) *codegen.Code {
	var code = codegen.NewCode()
	//
	for _, parallel := range variants(t) {
		u := &unit{ctx: ctx, template: t, parallel: parallel}
		code.Append(u.create())
		code.Append(u.run())
	}
	//
	return code
}

// Function implementation for the codegen.Backend interface.
func (p *Backend) Function(ctx *codegen.Context, f *circuit.FunctionCode) *codegen.Code {
	u := &unit{ctx: ctx, function: f}
	//
	return u.lowerFunction()
}

// Footer emits the entry point, which bounds the number of worker threads and
// then creates and runs the main component.  A zero bound leaves the runtime's
// own default in place.
func (p *Backend) Footer(ctx *codegen.Context) *codegen.Code {
	var (
		code     = codegen.NewCode()
		main     = ctx.Circuit.Template(ctx.Circuit.MainHeader)
		parallel = variants(main)[0]
	)
	//
	code.Open("void run(Circom_CalcWit* ctx){")
	//
	if ctx.Options.MaxThreads > 0 {
		code.Addf("ctx->maxThread = %d;", ctx.Options.MaxThreads)
	}
	//
	code.Addf("%s(%d,0,ctx,\"main\",0);", createName(main.Header, parallel), ctx.Circuit.MainSignalOffset)
	//
	if main.NumberOfInputs > 0 {
		code.Addf("%s(0,ctx);", runName(main.Header, parallel))
	}
	//
	code.Close("}")
	code.Add("")
	//
	return code
}

// variants determines which versions of a template's create and run routines
// are emitted (false for sequential, true for parallel).  At least one is
// always emitted.
func variants(t *circuit.TemplateCode) []bool {
	var result []bool
	//
	if !t.IsParallel && t.IsNotParallelComponent {
		result = append(result, false)
	}
	//
	if t.IsParallel || t.IsParallelComponent {
		result = append(result, true)
	}
	//
	if len(result) == 0 {
		result = append(result, false)
	}
	//
	return result
}

func hasVariant(t *circuit.TemplateCode, parallel bool) bool {
	for _, v := range variants(t) {
		if v == parallel {
			return true
		}
	}
	//
	return false
}

func createName(header string, parallel bool) string {
	if parallel {
		return header + "_create_parallel"
	}
	//
	return header + "_create"
}

func runName(header string, parallel bool) string {
	if parallel {
		return header + "_run_parallel"
	}
	//
	return header + "_run"
}

func functionSignature(f *circuit.FunctionCode) string {
	return fmt.Sprintf("%s(Circom_CalcWit* ctx,FrElement* lvar,uint componentFather,FrElement* destination,"+
		"int destination_size)", f.Header)
}

// runTable lists the run routine of each template, indexed by template id.
func runTable(c *circuit.Circuit, parallel bool) string {
	var entries = make([]string, len(c.Templates))
	//
	for i, t := range c.Templates {
		if hasVariant(t, parallel) {
			entries[i] = runName(t.Header, parallel)
		} else {
			entries[i] = "NULL"
		}
	}
	//
	return strings.Join(entries, ", ")
}

// ioDescriptors emits the IO field descriptors consulted when resolving mapped
// locations.  Lengths exclude the first dimension, and offsets are in elements.
func ioDescriptors(code *codegen.Code, c *circuit.Circuit) {
	var templates = make([]string, len(c.Templates))
	//
	for i := range templates {
		templates[i] = "{0, NULL}"
	}
	//
	for _, id := range c.IOTemplates() {
		var (
			fields = c.IOMap[id]
			defs   = make([]string, len(fields))
		)
		//
		for _, f := range fields {
			name := fmt.Sprintf("io_lengths_%d_%d", id, f.Code)
			defs[f.Code] = descriptor(code, name, f.Offset, f.Lengths, f.Size, f.BusId.UnwrapOr(0))
		}
		//
		code.Addf("IOFieldDef io_defs_%d[%d] = { %s };", id, len(defs), strings.Join(defs, ", "))
		templates[id] = fmt.Sprintf("{%d, io_defs_%d}", len(defs), id)
	}
	//
	var buses = make([]string, len(c.BusFields))
	//
	for id, fields := range c.BusFields {
		var defs = make([]string, len(fields))
		//
		for i, f := range fields {
			name := fmt.Sprintf("bus_lengths_%d_%d", id, i)
			defs[i] = descriptor(code, name, f.Offset, f.Dimensions, f.Size, f.BusId.UnwrapOr(0))
		}
		//
		code.Addf("IOFieldDef bus_defs_%d[%d] = { %s };", id, len(defs), strings.Join(defs, ", "))
		buses[id] = fmt.Sprintf("{%d, bus_defs_%d}", len(defs), id)
	}
	//
	code.Addf("IOFieldDefPair templateInsId2IOSignalInfoList[%d] = { %s };", max(1, len(templates)),
		strings.Join(templates, ", "))
	code.Addf("IOFieldDefPair busInsId2FieldInfoList[%d] = { %s };", max(1, len(buses)), strings.Join(buses, ", "))
	code.Add("")
}

// descriptor emits the lengths array of a field (if any), returning the
// descriptor initialiser {offset, len, lengths, size, busId}.
func descriptor(code *codegen.Code, name string, offset uint, dims []uint, size uint, bus uint) string {
	var lengths = "NULL"
	//
	if len(dims) > 1 {
		var entries = make([]string, len(dims)-1)
		//
		for i, d := range dims[1:] {
			entries[i] = fmt.Sprintf("%d", d)
		}
		//
		code.Addf("uint %s[%d] = { %s };", name, len(entries), strings.Join(entries, ", "))
		lengths = name
	}
	//
	return fmt.Sprintf("{%d, %d, %s, %d, %d}", offset, max(len(dims), 1)-1, lengths, size, bus)
}

func releaseMemory(code *codegen.Code) {
	code.Open("void release_memory_component(Circom_CalcWit* ctx, uint pos) {")
	code.Open("if (pos != 0){")
	//
	for _, field := range []string{"subcomponents", "subcomponentsParallel", "outputIsSet", "mutexes", "cvs",
		"sbct"} {
		code.Addf("if (ctx->componentMemory[pos].%s) delete []ctx->componentMemory[pos].%s;", field, field)
	}
	//
	code.Close("}")
	code.Close("}")
	code.Add("")
}
