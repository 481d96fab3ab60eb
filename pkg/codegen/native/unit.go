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
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/resolve"
	"github.com/consensys/go-witgen/pkg/trigger"
)

// unit holds the state for lowering a single template (or function) body.
// Expressions lower to a prologue of statements, followed by an expression
// denoting the result.  Field-valued results are always pointers.
type unit struct {
	ctx *codegen.Context
	// Template being lowered (or nil)
	template *circuit.TemplateCode
	// Function being lowered (or nil)
	function *circuit.FunctionCode
	// Indicates the parallel variant of a template is being lowered.
	parallel bool
}

func (u *unit) body(code *codegen.Code, insns []ir.Instruction) {
	for _, insn := range insns {
		code.Append(u.statement(insn))
	}
}

func (u *unit) statement(insn ir.Instruction) *codegen.Code {
	var (
		code = codegen.NewCode()
		line = insn.Metadata().Line
	)
	//
	if u.ctx.Comments() && u.ctx.LineChanged(line) {
		code.Addf("// line circom %d", line)
	}
	//
	switch p := insn.(type) {
	case *ir.Store:
		u.store(code, p)
	case *ir.Call:
		prologue, _ := u.call(p)
		code.Append(prologue)
	case *ir.Assert:
		u.assert(code, p)
	case *ir.Return:
		u.ret(code, p)
	case *ir.Branch:
		u.branch(code, p)
	case *ir.Loop:
		u.loop(code, p)
	case *ir.CreateCmp:
		u.createCmp(code, p)
	case *ir.Value, *ir.Load, *ir.Compute:
		prologue, _ := u.expression(insn)
		code.Append(prologue)
	default:
		ir.Failf(line, "unknown instruction %T", insn)
	}
	//
	return code
}

func (u *unit) expression(insn ir.Instruction) (*codegen.Code, string) {
	switch p := insn.(type) {
	case *ir.Value:
		return codegen.NewCode(), u.value(p)
	case *ir.Load:
		return u.load(p)
	case *ir.Compute:
		return u.compute(p)
	case *ir.Call:
		return u.call(p)
	}
	//
	ir.Failf(insn.Metadata().Line, "%s cannot be used as a value", insn.String())
	//
	return nil, ""
}

func (u *unit) value(p *ir.Value) string {
	switch p.Kind {
	case ir.U32:
		return fmt.Sprintf("%d", p.Value)
	case ir.BigInt:
		if p.Value >= uint(len(u.ctx.Circuit.Constants)) {
			ir.Failf(p.Line, "unknown constant %d", p.Value)
		}
		//
		return fmt.Sprintf("&circuitConstants[%d]", p.Value)
	}
	//
	ir.Failf(p.Line, "unknown value kind %d", p.Kind)
	//
	return ""
}

func (u *unit) load(p *ir.Load) (*codegen.Code, string) {
	var (
		code = codegen.NewCode()
		cmp  string
	)
	//
	sub, fromSubcmp := p.Address.(ir.SubcmpSignal)
	//
	if fromSubcmp {
		cmp = u.subcomponent(code, p.Line, sub)
		code.Addf("cmp_index_ref_load = %s;", cmp)
	}
	//
	offset, address := u.location(code, p.Line, p.Address, p.Src, cmp)
	//
	if fromSubcmp && sub.IsOutput {
		u.waitOutputs(code, p.Line, sub, cmp, offset, p.Context.Size)
	}
	//
	return code, address
}

// subcomponent lowers the slot expression of a subcomponent address.
func (u *unit) subcomponent(code *codegen.Code, line uint, sub ir.SubcmpSignal) string {
	if u.function != nil {
		ir.Failf(line, "subcomponent access within function %s", u.function.Header)
	}
	//
	prologue, cmp := u.expression(sub.Cmp)
	code.Append(prologue)
	//
	return cmp
}

// location lowers the address of a load or store, returning the element offset
// from its base along with a pointer to the first element.  When addressing a
// subcomponent, cmp is the expression identifying its slot.
func (u *unit) location(code *codegen.Code, line uint, address ir.AddressType, loc ir.LocationRule,
	cmp string) (string, string) {
	var (
		addr   = resolve.Resolve(line, address, loc)
		offset string
	)
	//
	if addr.IsMapped() {
		offset = u.mapped(code, addr.Mapped, cmp)
	} else {
		prologue, index := u.expression(addr.Index)
		code.Append(prologue)
		//
		offset = index
	}
	//
	switch addr.Base {
	case resolve.LocalFrame:
		return offset, fmt.Sprintf("&lvar[%s]", offset)
	case resolve.OwnSignals:
		if u.function != nil {
			ir.Failf(line, "signal access within function %s", u.function.Header)
		}
		//
		return offset, fmt.Sprintf("&signalValues[mySignalStart + %s]", offset)
	default:
		return offset, fmt.Sprintf("&ctx->signalValues[%s + %s]", subcmpField(cmp, "signalStart"), offset)
	}
}

// mapped lowers a mapped location by walking the IO descriptors of the
// subcomponent's template at run time.
func (u *unit) mapped(code *codegen.Code, m *resolve.MappedAddress, cmp string) string {
	var (
		id     = u.ctx.Fresh()
		def    = fmt.Sprintf("cur_def_%d", id)
		offset = fmt.Sprintf("map_offset_%d", id)
	)
	//
	code.Addf("IOFieldDef *%s = &(ctx->templateInsId2IOSignalInfo[%s].defs[%d]);", def,
		subcmpField(cmp, "templateId"), m.SignalCode)
	code.Addf("uint %s = %s->offset;", offset, def)
	//
	for _, step := range m.Steps {
		switch s := step.(type) {
		case *resolve.IndexStep:
			if len(s.Indexes) == 0 {
				continue
			}
			//
			var flat string
			//
			for i, index := range s.Indexes {
				prologue, value := u.expression(index)
				code.Append(prologue)
				//
				if i == 0 {
					flat = fmt.Sprintf("(%s)", value)
				} else {
					flat = fmt.Sprintf("(%s*%s->lengths[%d]+(%s))", flat, def, i-1, value)
				}
			}
			// Fold dimensions without an index
			for i := uint(len(s.Indexes)); i < s.SymbolDim; i++ {
				flat = fmt.Sprintf("%s*%s->lengths[%d]", flat, def, i-1)
			}
			//
			code.Addf("%s += %s*%s->size;", offset, flat, def)
		case *resolve.FieldStep:
			code.Addf("%s = &(ctx->busInsId2FieldInfo[%s->busId].defs[%d]);", def, def, s.Field)
			code.Addf("%s += %s->offset;", offset, def)
		}
	}
	//
	return offset
}

// waitOutputs blocks until the outputs being read from a parallel subcomponent
// have been set.
func (u *unit) waitOutputs(code *codegen.Code, line uint, sub ir.SubcmpSignal, cmp string, offset string,
	size ir.Size) {
	if sub.UniformParallel.HasValue() && !sub.UniformParallel.Unwrap() {
		return
	}
	//
	var wait = codegen.NewCode()
	//
	wait.Open("{")
	wait.Addf("int aux1 = %s;", cmp)
	wait.Open("for (int i = 0; i < %s; i++) {", u.size(wait, line, size, cmp))
	wait.Addf("int aux2 = %s + i;", offset)
	wait.Addf("std::unique_lock<std::mutex> lk(%s[aux2]);", subcmpField("aux1", "mutexes"))
	wait.Addf("%s[aux2].wait(lk, [ctx,aux1,aux2,mySubcomponents]() {return %s[aux2];});",
		subcmpField("aux1", "cvs"), subcmpField("aux1", "outputIsSet"))
	wait.Close("}")
	wait.Close("}")
	//
	if sub.UniformParallel.IsEmpty() {
		code.Open("if (mySubcomponentsParallel[%s]) {", cmp)
		code.Append(wait)
		code.Close("}")
	} else {
		code.Append(wait)
	}
}

// size lowers a size which may depend upon the template of the subcomponent
// identified by cmp.
func (u *unit) size(code *codegen.Code, line uint, size ir.Size, cmp string) string {
	if size.IsSingle() {
		return fmt.Sprintf("%d", size.Value())
	} else if cmp == "" || u.function != nil {
		ir.Failf(line, "size %s without subcomponent", size.String())
	}
	//
	var (
		name    = u.ctx.FreshName("size_store")
		entries = make([]string, len(size.Variants()))
	)
	//
	for i, v := range size.Variants() {
		entries[i] = fmt.Sprintf("{%d,%d}", v.Template, v.Size)
	}
	//
	code.Addf("std::map<int,int> %s {%s};", name, strings.Join(entries, ","))
	//
	return fmt.Sprintf("%s.at(%s)", name, subcmpField(cmp, "templateId"))
}

func (u *unit) compute(p *ir.Compute) (*codegen.Code, string) {
	var (
		code = codegen.NewCode()
		args = make([]string, len(p.Stack))
	)
	//
	if arity := arity(p.Op.Kind); arity != len(p.Stack) {
		ir.Failf(p.Line, "%s expects %d operands, found %d", p.Op.String(), arity, len(p.Stack))
	}
	//
	for i, arg := range p.Stack {
		var prologue *codegen.Code
		prologue, args[i] = u.expression(arg)
		code.Append(prologue)
	}
	//
	switch p.Op.Kind {
	case ir.ToAddress:
		return code, fmt.Sprintf("Fr_toInt(%s)", args[0])
	case ir.MulAddress:
		return code, fmt.Sprintf("((%s)*(%s))", args[0], args[1])
	case ir.AddAddress:
		return code, fmt.Sprintf("((%s)+(%s))", args[0], args[1])
	}
	//
	result := u.expaux(p.Line, p.OpAux)
	//
	if p.Op.IsVectorEq() {
		u.vectorEq(code, p, result, args[0], args[1])
	} else {
		code.Addf("%s(%s,%s); // line circom %d", codegen.FrOperation(p.Line, p.Op.Kind), result,
			strings.Join(args, ","), p.Line)
	}
	//
	return code, result
}

// vectorEq compares two vectors element by element, stopping at the first
// mismatch.  Empty vectors are equal.
func (u *unit) vectorEq(code *codegen.Code, p *ir.Compute, result string, lhs string, rhs string) {
	var (
		size = p.Op.EqSize
		zero = codegen.HasZeroVariant(size)
		one  = fmt.Sprintf("Fr_copy(%s,&ctx->signalValues[0]);", result)
		n    string
	)
	//
	if size.IsSingle() && size.Value() == 0 {
		code.Add(one)
		return
	}
	//
	code.Open("{")
	n = u.size(code, p.Line, size, "cmp_index_ref_load")
	//
	if zero {
		code.Addf("int size_eq = %s;", n)
		code.Open("if (size_eq == 0) {")
		code.Add(one)
		code.Else("} else {")
		//
		n = "size_eq"
	}
	//
	code.Addf("Fr_eq(%s,%s,%s);", result, lhs, rhs)
	code.Add("index_multiple_eq = 1;")
	code.Open("while (index_multiple_eq < %s && Fr_isTrue(%s)) {", n, result)
	code.Addf("Fr_eq(%s,%s + index_multiple_eq,%s + index_multiple_eq);", result, lhs, rhs)
	code.Add("index_multiple_eq++;")
	code.Close("}")
	//
	if zero {
		code.Close("}")
	}
	//
	code.Close("}")
}

func (u *unit) expaux(line uint, slot uint) string {
	var depth uint
	//
	if u.function != nil {
		depth = u.function.MaxNumberOfOpsInExpression
	} else {
		depth = u.template.ExpressionStackDepth
	}
	//
	if slot >= depth {
		ir.Failf(line, "expression slot %d exceeds depth %d", slot, depth)
	}
	//
	return fmt.Sprintf("&expaux[%d]", slot)
}

func (u *unit) store(code *codegen.Code, p *ir.Store) {
	if n, ok := codegen.StoreSize(p.Context.Size, p.SrcContext.Size); ok && n == 0 {
		return
	}
	//
	var cmp string
	//
	code.Open("{")
	//
	sub, toSubcmp := p.DestAddressType.(ir.SubcmpSignal)
	//
	if toSubcmp {
		code.Addf("uint cmp_index_ref = %s;", u.subcomponent(code, p.Line, sub))
		cmp = "cmp_index_ref"
	}
	//
	offset, dest := u.location(code, p.Line, p.DestAddressType, p.Dest, cmp)
	code.Addf("FrElement* aux_dest = %s;", dest)
	//
	prologue, src := u.expression(p.Src)
	code.Append(prologue)
	//
	size := u.storeSize(code, p, cmp)
	//
	if size == "1" {
		code.Addf("Fr_copy(aux_dest,%s);", src)
	} else {
		code.Addf("Fr_copyn(aux_dest,%s,%s);", src, size)
	}
	//
	if p.DestIsOutput {
		u.notifyOutputs(code, p.DestAddressType, offset, size)
	}
	//
	if toSubcmp {
		mayBeZero := codegen.HasZeroVariant(p.Context.Size) || codegen.HasZeroVariant(p.SrcContext.Size)
		u.trigger(code, trigger.PlanFor(p.Line, sub, p.Dest), size, mayBeZero)
	}
	//
	code.Close("}")
}

// storeSize lowers the number of elements copied by a store, which is the
// smaller of the destination and source sizes.
func (u *unit) storeSize(code *codegen.Code, p *ir.Store, cmp string) string {
	if n, ok := codegen.StoreSize(p.Context.Size, p.SrcContext.Size); ok {
		return fmt.Sprintf("%d", n)
	}
	//
	var (
		dest = u.size(code, p.Line, p.Context.Size, cmp)
		src  string
	)
	//
	if p.SrcContext.Size.IsSingle() {
		src = fmt.Sprintf("%d", p.SrcContext.Size.Value())
	} else if p.SrcAddressType.IsEmpty() {
		ir.Failf(p.Line, "source size %s without subcomponent", p.SrcContext.Size.String())
	} else {
		prologue, srcCmp := u.expression(p.SrcAddressType.Unwrap())
		code.Append(prologue)
		//
		src = u.size(code, p.Line, p.SrcContext.Size, srcCmp)
	}
	//
	code.Addf("int size_copy = std::min((int) %s,(int) %s);", dest, src)
	//
	return "size_copy"
}

// notifyOutputs marks outputs of a parallel component as set, waking any
// thread waiting to read them.
func (u *unit) notifyOutputs(code *codegen.Code, address ir.AddressType, offset string, size string) {
	if _, ok := address.(ir.Signal); !ok || !u.parallel {
		return
	}
	//
	code.Open("for (int i = 0; i < %s; i++) {", size)
	code.Addf("ctx->componentMemory[ctx_index].mutexes[%s + i].lock();", offset)
	code.Addf("ctx->componentMemory[ctx_index].outputIsSet[%s + i]=true;", offset)
	code.Addf("ctx->componentMemory[ctx_index].mutexes[%s + i].unlock();", offset)
	code.Addf("ctx->componentMemory[ctx_index].cvs[%s + i].notify_all();", offset)
	code.Close("}")
}

func (u *unit) call(p *ir.Call) (*codegen.Code, string) {
	var (
		code   = codegen.NewCode()
		count  uint
		result string
	)
	//
	if u.ctx.Circuit.Function(p.Symbol) == nil {
		ir.Failf(p.Line, "unknown function %s", p.Symbol)
	} else if len(p.Arguments) != len(p.ArgumentTypes) {
		ir.Failf(p.Line, "%d arguments with %d types", len(p.Arguments), len(p.ArgumentTypes))
	}
	//
	code.Open("{")
	code.Addf("FrElement lvarcall[%d];", max(p.ArenaSize, 1))
	//
	for i, arg := range p.Arguments {
		var size = p.ArgumentTypes[i].Size
		//
		if !size.IsSingle() {
			ir.Failf(p.Line, "argument %d has size %s", i, size.String())
		} else if count+size.Value() > p.ArenaSize {
			ir.Failf(p.Line, "arguments exceed arena of %d elements", p.ArenaSize)
		}
		//
		prologue, value := u.expression(arg)
		code.Append(prologue)
		//
		switch n := size.Value(); {
		case n == 1:
			code.Addf("Fr_copy(&lvarcall[%d],%s);", count, value)
		case n > 1:
			code.Addf("Fr_copyn(&lvarcall[%d],%s,%d);", count, value, n)
		}
		//
		count += size.Value()
	}
	//
	switch r := p.Return.(type) {
	case *ir.Intermediate:
		result = u.expaux(p.Line, r.OpAux)
		code.Addf("%s(ctx,lvarcall,myId,%s,1);", p.Symbol, result)
	case *ir.Final:
		u.finalCall(code, p, r)
	default:
		ir.Failf(p.Line, "unknown return type %T", p.Return)
	}
	//
	code.Close("}")
	//
	return code, result
}

// finalCall passes the destination of a call directly to the callee, and then
// follows the same rules as a store.
func (u *unit) finalCall(code *codegen.Code, p *ir.Call, r *ir.Final) {
	var cmp string
	//
	sub, toSubcmp := r.DestAddressType.(ir.SubcmpSignal)
	//
	if toSubcmp {
		code.Addf("uint cmp_index_ref = %s;", u.subcomponent(code, p.Line, sub))
		cmp = "cmp_index_ref"
	}
	//
	offset, dest := u.location(code, p.Line, r.DestAddressType, r.Dest, cmp)
	size := u.size(code, p.Line, r.Context.Size, cmp)
	code.Addf("%s(ctx,lvarcall,myId,%s,%s);", p.Symbol, dest, size)
	//
	if r.DestIsOutput {
		u.notifyOutputs(code, r.DestAddressType, offset, size)
	}
	//
	if toSubcmp && !r.Context.Size.IsZero() {
		u.trigger(code, trigger.PlanFor(p.Line, sub, r.Dest), size, codegen.HasZeroVariant(r.Context.Size))
	}
}

func (u *unit) assert(code *codegen.Code, p *ir.Assert) {
	prologue, value := u.expression(p.Evaluate)
	//
	code.Open("{")
	code.Append(prologue)
	code.Addf("if (!Fr_isTrue(%s)) std::cout << \"Failed assert in template/function \" << myTemplateName << \" line "+
		"%d. \" << \"Followed trace of components: \" << ctx->getTrace(myId) << std::endl;", value, p.Line)
	code.Addf("assert(Fr_isTrue(%s));", value)
	code.Close("}")
}

func (u *unit) ret(code *codegen.Code, p *ir.Return) {
	if u.function == nil {
		ir.Failf(p.Line, "return outside of function")
	}
	//
	prologue, value := u.expression(p.Value)
	code.Append(prologue)
	//
	if !p.IsArray && p.WithSize == 1 {
		code.Addf("Fr_copy(destination,%s);", value)
	} else {
		code.Addf("Fr_copyn(destination,%s,std::min(%d,destination_size));", value, p.WithSize)
	}
	//
	code.Add("return;")
}

func (u *unit) branch(code *codegen.Code, p *ir.Branch) {
	prologue, cond := u.expression(p.Cond)
	code.Append(prologue)
	//
	code.Open("if (Fr_isTrue(%s)) {", cond)
	u.body(code, p.Then)
	//
	if len(p.Else) > 0 {
		code.Else("} else {")
		u.body(code, p.Else)
	}
	//
	code.Close("}")
}

// loop re-evaluates its condition at the start of every iteration, so that
// names declared by the condition's prologue remain in scope.
func (u *unit) loop(code *codegen.Code, p *ir.Loop) {
	code.Open("while (true) {")
	//
	prologue, cond := u.expression(p.Continue)
	code.Append(prologue)
	code.Addf("if (!Fr_isTrue(%s)) break;", cond)
	u.body(code, p.Body)
	code.Close("}")
}

func (u *unit) createCmp(code *codegen.Code, p *ir.CreateCmp) {
	if u.template == nil {
		ir.Failf(p.Line, "component created within function %s", u.function.Header)
	}
	//
	t := u.ctx.Circuit.Template(p.Symbol)
	//
	if t == nil {
		ir.Failf(p.Line, "unknown template %s", p.Symbol)
	} else if !hasVariant(t, p.IsParallel) {
		ir.Failf(p.Line, "template %s has no %s variant", p.Symbol, parallelism(p.IsParallel))
	}
	//
	prologue, cmp := u.expression(p.Cmp)
	//
	code.Open("{")
	code.Append(prologue)
	code.Addf("uint aux_create = %s;", cmp)
	code.Addf("int aux_cmp_num = %d+ctx_index+1;", p.ComponentOffset)
	code.Addf("uint csoffset = mySignalStart+%d;", p.SignalOffset)
	//
	name := fmt.Sprintf("\"%s\"", p.Name)
	//
	if len(p.Dimensions) > 0 {
		var dims = make([]string, len(p.Dimensions))
		//
		for i, d := range p.Dimensions {
			dims[i] = fmt.Sprintf("%d", d)
		}
		//
		code.Addf("uint aux_dimensions[%d] = {%s};", len(dims), strings.Join(dims, ","))
		name = fmt.Sprintf("%s+ctx->generate_position_array(aux_dimensions, %d, i)", name, len(dims))
	}
	//
	code.Open("for (uint i = 0; i < %d; i++) {", p.NumberOfCmp)
	code.Addf("std::string new_cmp_name = %s;", name)
	code.Add("mySubcomponents[aux_create+i] = aux_cmp_num;")
	//
	if u.template.HasParallelSubcmp {
		code.Addf("mySubcomponentsParallel[aux_create+i] = %t;", p.IsParallel)
	}
	//
	code.Addf("%s(csoffset,aux_cmp_num,ctx,new_cmp_name,myId);", createName(p.Symbol, p.IsParallel))
	code.Addf("csoffset += %d;", p.SignalOffsetJump)
	code.Addf("aux_cmp_num += %d;", p.ComponentOffsetJump)
	code.Close("}")
	code.Close("}")
}

func subcmpField(cmp string, field string) string {
	return fmt.Sprintf("ctx->componentMemory[mySubcomponents[%s]].%s", cmp, field)
}

func arity(kind ir.OperatorKind) int {
	if kind.IsUnary() {
		return 1
	}
	//
	return 2
}

func parallelism(parallel bool) string {
	if parallel {
		return "parallel"
	}
	//
	return "sequential"
}
