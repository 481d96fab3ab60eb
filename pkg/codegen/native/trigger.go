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

	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/trigger"
)

// trigger lowers the trigger plan following a write of size elements to the
// subcomponent identified by cmp_index_ref.
func (u *unit) trigger(code *codegen.Code, plan trigger.Plan, size string, mayBeZero bool) {
	var counter = subcmpField("cmp_index_ref", "inputCounter")
	//
	switch plan.Run {
	case trigger.RunNever:
		if !plan.Decrement {
			return
		}
		//
		u.comment(code, "no need to run sub component")
		code.Addf("%s -= %s;", counter, size)
		//
		if plan.Check == trigger.CheckPositive {
			code.Addf("assert(%s > 0);", counter)
		}
	case trigger.RunAlways:
		u.comment(code, "need to run sub component")
		// Writing nothing to a last input is a no-op
		if mayBeZero {
			code.Open("if (%s) {", size)
		}
		//
		if plan.Decrement {
			code.Addf("%s -= %s;", counter, size)
			//
			if plan.Check == trigger.CheckZero {
				code.Addf("assert(!(%s));", counter)
			}
		}
		//
		u.runSubcomponent(code, plan)
		//
		if mayBeZero {
			code.Close("}")
		}
	case trigger.RunIfZero:
		cond := fmt.Sprintf("!(%s -= %s)", counter, size)
		// Writing nothing must not run a component which has already run
		if mayBeZero {
			cond = fmt.Sprintf("%s && %s", size, cond)
		}
		//
		u.comment(code, "run sub component if needed")
		code.Open("if (%s) {", cond)
		u.runSubcomponent(code, plan)
		code.Close("}")
	}
}

func (u *unit) runSubcomponent(code *codegen.Code, plan trigger.Plan) {
	switch plan.Parallelism {
	case trigger.Sequential:
		u.runSequential(code, plan)
	case trigger.Parallel:
		u.runParallel(code, plan)
	case trigger.Dynamic:
		code.Open("if (mySubcomponentsParallel[cmp_index_ref]) {")
		u.runParallel(code, plan)
		code.Else("} else {")
		u.runSequential(code, plan)
		code.Close("}")
	}
}

func (u *unit) runSequential(code *codegen.Code, plan trigger.Plan) {
	var routine string
	//
	if plan.Dispatch == trigger.Direct {
		routine = runName(u.runnable(plan, false), false)
	} else {
		routine = fmt.Sprintf("(*_functionTable[%s])", subcmpField("cmp_index_ref", "templateId"))
	}
	//
	code.Addf("%s(mySubcomponents[cmp_index_ref],ctx);", routine)
}

func (u *unit) runParallel(code *codegen.Code, plan trigger.Plan) {
	var routine string
	//
	if plan.Dispatch == trigger.Direct {
		routine = runName(u.runnable(plan, true), true)
	} else {
		routine = fmt.Sprintf("_functionTableParallel[%s]", subcmpField("cmp_index_ref", "templateId"))
	}
	//
	// The bound is taken before the worker starts
	code.Open("{")
	code.Add("std::unique_lock<std::mutex> lkt(ctx->numThreadMutex);")
	code.Add("ctx->ntcvs.wait(lkt, [ctx]() {return ctx->numThread < ctx->maxThread; });")
	code.Add("ctx->numThread++;")
	code.Close("}")
	code.Addf("ctx->componentMemory[ctx_index].sbct[cmp_index_ref] = std::thread(%s,mySubcomponents[cmp_index_ref],ctx);",
		routine)
}

// runnable checks the directly dispatched template has the required variant,
// returning its header.
func (u *unit) runnable(plan trigger.Plan, parallel bool) string {
	var (
		header = plan.TemplateHeader.Unwrap()
		t      = u.ctx.Circuit.Template(header)
	)
	//
	if t == nil {
		ir.Failf(0, "unknown template %s", header)
	} else if !hasVariant(t, parallel) {
		ir.Failf(0, "template %s has no %s variant", header, parallelism(parallel))
	}
	//
	return header
}

func (u *unit) comment(code *codegen.Code, text string) {
	if u.ctx.Comments() {
		code.Addf("// %s", text)
	}
}
