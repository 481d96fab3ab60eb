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

	"github.com/consensys/go-witgen/pkg/codegen"
)

// create emits the routine which initialises the header of a component.  A
// component without inputs runs as soon as it is created.
func (u *unit) create() *codegen.Code {
	var (
		code = codegen.NewCode()
		t    = u.template
		me   = "ctx->componentMemory[coffset]"
	)
	//
	code.Open("void %s(uint soffset,uint coffset,Circom_CalcWit* ctx,std::string componentName,uint componentFather){",
		createName(t.Header, u.parallel))
	code.Addf("%s.templateId = %d;", me, t.Id)
	code.Addf("%s.templateName = \"%s\";", me, t.Name)
	code.Addf("%s.signalStart = soffset;", me)
	code.Addf("%s.inputCounter = %d;", me, t.NumberOfInputs)
	code.Addf("%s.componentName = componentName;", me)
	code.Addf("%s.idFather = componentFather;", me)
	code.Addf("%s.subcomponents = new uint[%d]{0};", me, t.NumberOfComponents)
	//
	if t.HasParallelSubcmp {
		code.Addf("%s.sbct = new std::thread[%d];", me, t.NumberOfComponents)
		code.Addf("%s.subcomponentsParallel = new bool[%d];", me, t.NumberOfComponents)
	}
	//
	if u.parallel {
		code.Addf("%s.outputIsSet = new bool[%d]();", me, t.NumberOfOutputs)
		code.Addf("%s.mutexes = new std::mutex[%d];", me, t.NumberOfOutputs)
		code.Addf("%s.cvs = new std::condition_variable[%d];", me, t.NumberOfOutputs)
	}
	//
	if t.NumberOfInputs == 0 {
		code.Addf("%s(coffset,ctx);", runName(t.Header, u.parallel))
	}
	//
	code.Close("}")
	code.Add("")
	//
	return code
}

// run emits the routine which computes the signals of a component, once all of
// its inputs have been set.
func (u *unit) run() *codegen.Code {
	var (
		code = codegen.NewCode()
		t    = u.template
	)
	//
	code.Open("void %s(uint ctx_index,Circom_CalcWit* ctx){", runName(t.Header, u.parallel))
	code.Add("FrElement* circuitConstants = ctx->circuitConstants;")
	code.Add("FrElement* signalValues = ctx->signalValues;")
	code.Addf("FrElement expaux[%d];", max(t.ExpressionStackDepth, 1))
	code.Addf("FrElement lvar[%d];", max(t.VarStackDepth, 1))
	code.Add("u64 mySignalStart = ctx->componentMemory[ctx_index].signalStart;")
	code.Add("std::string myTemplateName = ctx->componentMemory[ctx_index].templateName;")
	code.Add("std::string myComponentName = ctx->componentMemory[ctx_index].componentName;")
	code.Add("u64 myFather = ctx->componentMemory[ctx_index].idFather;")
	code.Add("u64 myId = ctx_index;")
	code.Add("u32* mySubcomponents = ctx->componentMemory[ctx_index].subcomponents;")
	code.Add("bool* mySubcomponentsParallel = ctx->componentMemory[ctx_index].subcomponentsParallel;")
	code.Add("std::string* listOfTemplateMessages = ctx->listOfTemplateMessages;")
	code.Add("uint sub_component_aux;")
	code.Add("uint index_multiple_eq;")
	code.Add("int cmp_index_ref_load = -1;")
	//
	u.body(code, t.Body)
	//
	if t.HasParallelSubcmp {
		code.Open("for (uint i = 0; i < %d; i++){", t.NumberOfComponents)
		code.Open("if (ctx->componentMemory[ctx_index].sbct[i].joinable()) {")
		code.Add("ctx->componentMemory[ctx_index].sbct[i].join();")
		code.Close("}")
		code.Close("}")
	}
	//
	if u.parallel {
		code.Open("for (uint i = 0; i < %d; i++) {", t.NumberOfOutputs)
		code.Add("ctx->componentMemory[ctx_index].mutexes[i].lock();")
		code.Add("ctx->componentMemory[ctx_index].outputIsSet[i]=true;")
		code.Add("ctx->componentMemory[ctx_index].mutexes[i].unlock();")
		code.Add("ctx->componentMemory[ctx_index].cvs[i].notify_all();")
		code.Close("}")
		code.Add("ctx->numThreadMutex.lock();")
		code.Add("ctx->numThread--;")
		code.Add("ctx->numThreadMutex.unlock();")
		code.Add("ctx->ntcvs.notify_one();")
	}
	//
	code.Open("for (uint i = 0; i < %d; i++){", t.NumberOfComponents)
	code.Add("uint index_subc = ctx->componentMemory[ctx_index].subcomponents[i];")
	code.Open("if (index_subc != 0){")
	code.Add("assert(!(ctx->componentMemory[index_subc].inputCounter));")
	code.Add("release_memory_component(ctx,index_subc);")
	code.Close("}")
	code.Close("}")
	code.Close("}")
	code.Add("")
	//
	return code
}

func (u *unit) lowerFunction() *codegen.Code {
	var (
		code = codegen.NewCode()
		f    = u.function
	)
	//
	code.Open("void %s{", functionSignature(f))
	code.Add("FrElement* circuitConstants = ctx->circuitConstants;")
	code.Addf("FrElement expaux[%d];", max(f.MaxNumberOfOpsInExpression, 1))
	code.Addf("std::string myTemplateName = \"%s\";", f.Name)
	code.Add("u64 myId = componentFather;")
	code.Add("uint index_multiple_eq;")
	//
	for _, cv := range f.ConstantVariables {
		var values = make([]string, len(cv.Values))
		//
		for i, v := range cv.Values {
			values[i] = fmt.Sprintf("&circuitConstants[%d]", v)
		}
		//
		code.Addf("static FrElement* %s_%s[%d] = { %s };", f.Header, cv.Name, len(values),
			strings.Join(values, ", "))
	}
	//
	u.body(code, f.Body)
	code.Close("}")
	code.Add("")
	//
	return code
}
