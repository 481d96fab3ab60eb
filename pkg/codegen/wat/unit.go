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
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/resolve"
	"github.com/consensys/go-witgen/pkg/trigger"
)

// Locals of a template's run routine.
var runLocals = []string{
	"$cstack", "$signalstart", "$sub_cmp", "$sub_cmp_load", "$io_info", "$lvar", "$expaux", "$aux_0", "$aux_1",
	"$aux_2", "$counter", "$store_aux_1", "$store_aux_2", "$copy_counter", "$call_lvar", "$create_loop_sub_cmp",
	"$create_loop_offset", "$create_loop_counter", "$merror", "$store_size", "$size_dest", "$size_src", "$tid",
}

// Locals of a function.
var functionLocals = []string{
	"$cstack", "$lvar", "$expaux", "$aux_0", "$aux_1", "$aux_2", "$counter", "$store_aux_1", "$store_aux_2",
	"$copy_counter", "$call_lvar", "$merror", "$store_size", "$size_dest", "$size_src", "$tid",
}

// unit holds the state for lowering a single template (or function) body.
// Every expression leaves exactly one i32 on the stack: an address for field
// values, or the value itself for addresses and sizes.
type unit struct {
	ctx *codegen.Context
	// Template being lowered (or nil)
	template *circuit.TemplateCode
	// Function being lowered (or nil)
	function *circuit.FunctionCode
}

func (u *unit) elementBytes() uint {
	return u.ctx.ElementBytes()
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
		code.Addf(";; line %d", line)
	}
	//
	switch p := insn.(type) {
	case *ir.Store:
		u.store(code, p)
	case *ir.Call:
		if _, ok := p.Return.(*ir.Intermediate); ok {
			code.Append(u.call(p))
			code.Add("drop")
		} else {
			code.Append(u.call(p))
		}
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
		code.Append(u.expression(insn))
		code.Add("drop")
	default:
		ir.Failf(line, "unknown instruction %T", insn)
	}
	//
	return code
}

func (u *unit) expression(insn ir.Instruction) *codegen.Code {
	switch p := insn.(type) {
	case *ir.Value:
		return u.value(p)
	case *ir.Load:
		return u.load(p)
	case *ir.Compute:
		return u.compute(p)
	case *ir.Call:
		if _, ok := p.Return.(*ir.Intermediate); ok {
			return u.call(p)
		}
	}
	//
	ir.Failf(insn.Metadata().Line, "%s cannot be used as a value", insn.String())
	//
	return nil
}

func (u *unit) value(p *ir.Value) *codegen.Code {
	var code = codegen.NewCode()
	//
	switch p.Kind {
	case ir.U32:
		code.Addf("i32.const %d", p.Value)
	case ir.BigInt:
		if p.Value >= uint(len(u.ctx.Circuit.Constants)) {
			ir.Failf(p.Line, "unknown constant %d", p.Value)
		}
		//
		code.Addf("i32.const %d", u.ctx.Layout.ConstantAddress(p.Value))
	default:
		ir.Failf(p.Line, "unknown value kind %d", p.Kind)
	}
	//
	return code
}

func (u *unit) load(p *ir.Load) *codegen.Code {
	var code = codegen.NewCode()
	//
	u.location(code, p.Line, p.Address, p.Src, "$sub_cmp_load")
	//
	return code
}

// location pushes the address of the first element of a location.  When
// addressing a subcomponent, its header address is left in the given local.
func (u *unit) location(code *codegen.Code, line uint, address ir.AddressType, loc ir.LocationRule, cmpLocal string) {
	var addr = resolve.Resolve(line, address, loc)
	//
	switch addr.Base {
	case resolve.LocalFrame:
		code.Add("local.get $lvar")
	case resolve.OwnSignals:
		if u.function != nil {
			ir.Failf(line, "signal access within function %s", u.function.Header)
		}
		//
		code.Add("local.get $signalstart")
	case resolve.SubcmpSignals:
		if u.function != nil {
			ir.Failf(line, "subcomponent access within function %s", u.function.Header)
		}
		//
		u.subcomponent(code, addr.Cmp)
		code.Addf("local.tee %s", cmpLocal)
		code.Addf("i32.load offset=%d", layout.SIGNAL_START_IN_COMPONENT)
	}
	//
	if addr.IsMapped() {
		u.mapped(code, line, addr.Mapped, cmpLocal)
	} else {
		u.elementOffset(code, addr.Index)
	}
	//
	code.Add("i32.add")
}

// subcomponent pushes the address of a subcomponent's header.
func (u *unit) subcomponent(code *codegen.Code, cmp ir.Instruction) {
	u.subcomponentSlot(code, cmp)
	code.Add("i32.load")
}

// subcomponentSlot pushes the address of the entry for a subcomponent in the
// enclosing component's subcomponent table.
func (u *unit) subcomponentSlot(code *codegen.Code, cmp ir.Instruction) {
	code.Add("local.get $offset")
	//
	if v, ok := cmp.(*ir.Value); ok && v.Kind == ir.U32 {
		code.Addf("i32.const %d", layout.SUBCOMPONENTS_IN_COMPONENT+4*v.Value)
	} else {
		code.Addf("i32.const %d", layout.SUBCOMPONENTS_IN_COMPONENT)
		code.Add("i32.add")
		code.Append(u.expression(cmp))
		code.Add("i32.const 4")
		code.Add("i32.mul")
	}
	//
	code.Add("i32.add")
}

// elementOffset pushes the byte offset of a given element index.
func (u *unit) elementOffset(code *codegen.Code, index ir.Instruction) {
	if v, ok := index.(*ir.Value); ok && v.Kind == ir.U32 {
		code.Addf("i32.const %d", v.Value*u.elementBytes())
		return
	}
	//
	code.Append(u.expression(index))
	code.Addf("i32.const %d", u.elementBytes())
	code.Add("i32.mul")
}

// mapped pushes the byte offset of a mapped location, by walking the info
// tables of the subcomponent's template at run time.
func (u *unit) mapped(code *codegen.Code, line uint, m *resolve.MappedAddress, cmpLocal string) {
	var dims uint
	//
	if err := u.ctx.IO.CheckFieldSteps(m); err != nil {
		ir.Failf(line, "%s", err.Error())
	}
	// template id -> IO entries -> info of signal
	code.Addf("local.get %s", cmpLocal)
	code.Addf("i32.load offset=%d", layout.TEMPLATE_ID_IN_COMPONENT)
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Addf("i32.load offset=%d", u.ctx.Layout.TemplateToIOStart())
	code.Addf("i32.load offset=%d", 4*m.SignalCode)
	code.Add("local.tee $io_info")
	code.Add("i32.load")
	//
	for _, step := range m.Steps {
		switch s := step.(type) {
		case *resolve.IndexStep:
			dims = s.SymbolDim
			//
			if len(s.Indexes) == 0 {
				continue
			}
			//
			for i, index := range s.Indexes {
				if i > 0 {
					code.Add("local.get $io_info")
					code.Addf("i32.load offset=%d", 4*i)
					code.Add("i32.mul")
				}
				//
				code.Append(u.expression(index))
				//
				if i > 0 {
					code.Add("i32.add")
				}
			}
			// Fold dimensions without an index
			for i := uint(len(s.Indexes)); i < s.SymbolDim; i++ {
				code.Add("local.get $io_info")
				code.Addf("i32.load offset=%d", 4*i)
				code.Add("i32.mul")
			}
			// Element size follows the dimensions
			code.Add("local.get $io_info")
			code.Addf("i32.load offset=%d", 4*s.SymbolDim)
			code.Add("i32.mul")
			code.Addf("i32.const %d", u.elementBytes())
			code.Add("i32.mul")
			code.Add("i32.add")
		case *resolve.FieldStep:
			// Bus id follows the dimensions and element size (if any)
			var busWord uint = 1
			//
			if dims > 0 {
				busWord = dims + 1
			}
			//
			code.Add("local.get $io_info")
			code.Addf("i32.load offset=%d", 4*busWord)
			code.Add("i32.const 4")
			code.Add("i32.mul")
			code.Addf("i32.load offset=%d", u.ctx.Layout.BusToFieldStart())
			code.Addf("i32.load offset=%d", 4*s.Field)
			code.Add("local.tee $io_info")
			code.Add("i32.load")
			code.Add("i32.add")
			//
			dims = 0
		}
	}
}

// selection pushes the size for the concrete template whose id is pushed by
// tid.  An unknown template traps.  Only $tid is written, so operands held in
// the other locals survive.
func (u *unit) selection(code *codegen.Code, size ir.Size, tid *codegen.Code) {
	code.Append(tid)
	code.Add("local.set $tid")
	//
	for _, v := range size.Variants() {
		code.Add("local.get $tid")
		code.Addf("i32.const %d", v.Template)
		code.Add("i32.eq")
		code.Open("if (result i32)")
		code.Addf("i32.const %d", v.Size)
		code.Else("else")
	}
	//
	code.Add("unreachable")
	//
	for range size.Variants() {
		code.Close("end")
	}
}

// templateId constructs code which pushes the template id of the subcomponent
// whose header address is held in a given local.
func templateId(local string) *codegen.Code {
	var code = codegen.NewCode()
	//
	code.Addf("local.get %s", local)
	code.Addf("i32.load offset=%d", layout.TEMPLATE_ID_IN_COMPONENT)
	//
	return code
}

// size pushes a size which may depend upon the template of the subcomponent
// held in a given local.
func (u *unit) size(code *codegen.Code, line uint, size ir.Size, cmpLocal string) {
	if size.IsSingle() {
		code.Addf("i32.const %d", size.Value())
	} else if cmpLocal == "" || u.function != nil {
		ir.Failf(line, "size %s without subcomponent", size.String())
	} else {
		u.selection(code, size, templateId(cmpLocal))
	}
}

func (u *unit) compute(p *ir.Compute) *codegen.Code {
	var code = codegen.NewCode()
	//
	if arity := arity(p.Op.Kind); arity != len(p.Stack) {
		ir.Failf(p.Line, "%s expects %d operands, found %d", p.Op.String(), arity, len(p.Stack))
	}
	//
	switch p.Op.Kind {
	case ir.ToAddress:
		code.Append(u.expression(p.Stack[0]))
		code.Add("call $Fr_toInt")
		//
		return code
	case ir.MulAddress, ir.AddAddress:
		code.Append(u.expression(p.Stack[0]))
		code.Append(u.expression(p.Stack[1]))
		//
		if p.Op.Kind == ir.MulAddress {
			code.Add("i32.mul")
		} else {
			code.Add("i32.add")
		}
		//
		return code
	}
	//
	if p.Op.IsVectorEq() {
		u.vectorEq(code, p)
		return code
	}
	//
	u.expaux(code, p.Line, p.OpAux)
	//
	for _, arg := range p.Stack {
		code.Append(u.expression(arg))
	}
	//
	code.Addf("call $%s", codegen.FrOperation(p.Line, p.Op.Kind))
	u.expaux(code, p.Line, p.OpAux)
	//
	return code
}

// vectorEq compares two vectors element by element, stopping at the first
// mismatch.  The result starts as one (held in signal zero), so empty vectors
// are equal.
func (u *unit) vectorEq(code *codegen.Code, p *ir.Compute) {
	code.Append(u.expression(p.Stack[0]))
	code.Add("local.set $aux_0")
	code.Append(u.expression(p.Stack[1]))
	code.Add("local.set $aux_1")
	u.size(code, p.Line, p.Op.EqSize, "$sub_cmp_load")
	code.Add("local.set $counter")
	u.expaux(code, p.Line, p.OpAux)
	code.Add("local.tee $aux_2")
	code.Addf("i32.const %d", u.ctx.Layout.SignalMemoryStart())
	code.Add("call $Fr_copy")
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $counter")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	code.Add("local.get $aux_2")
	code.Add("local.get $aux_0")
	code.Add("local.get $aux_1")
	code.Add("call $Fr_eq")
	code.Add("local.get $aux_2")
	code.Add("call $Fr_isTrue")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	u.advance(code, "$aux_0")
	u.advance(code, "$aux_1")
	code.Add("local.get $counter")
	code.Add("i32.const 1")
	code.Add("i32.sub")
	code.Add("local.set $counter")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
	u.expaux(code, p.Line, p.OpAux)
}

// advance moves an address held in a local to the next element.
func (u *unit) advance(code *codegen.Code, local string) {
	code.Addf("local.get %s", local)
	code.Addf("i32.const %d", u.elementBytes())
	code.Add("i32.add")
	code.Addf("local.set %s", local)
}

// expaux pushes the address of an expression stack slot.
func (u *unit) expaux(code *codegen.Code, line uint, slot uint) {
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
	code.Add("local.get $expaux")
	code.Addf("i32.const %d", slot*u.elementBytes())
	code.Add("i32.add")
}

// copyLoop copies $copy_counter elements from $store_aux_2 to $store_aux_1.
func (u *unit) copyLoop(code *codegen.Code) {
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $copy_counter")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	code.Add("local.get $store_aux_1")
	code.Add("local.get $store_aux_2")
	code.Add("call $Fr_copy")
	u.advance(code, "$store_aux_1")
	u.advance(code, "$store_aux_2")
	code.Add("local.get $copy_counter")
	code.Add("i32.const 1")
	code.Add("i32.sub")
	code.Add("local.set $copy_counter")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
}

// copy copies n elements from the address pushed by src to the address pushed
// by dest, where n is pushed by size (if not statically known).
func (u *unit) copy(code *codegen.Code, dest *codegen.Code, src *codegen.Code, n uint, size *codegen.Code) {
	if size == nil && n == 1 {
		code.Append(dest)
		code.Append(src)
		code.Add("call $Fr_copy")
		//
		return
	}
	//
	code.Append(dest)
	code.Add("local.set $store_aux_1")
	code.Append(src)
	code.Add("local.set $store_aux_2")
	//
	if size == nil {
		code.Addf("i32.const %d", n)
	} else {
		code.Append(size)
	}
	//
	code.Add("local.set $copy_counter")
	u.copyLoop(code)
}

func (u *unit) store(code *codegen.Code, p *ir.Store) {
	var (
		dest     = codegen.NewCode()
		n, known = codegen.StoreSize(p.Context.Size, p.SrcContext.Size)
		size     *codegen.Code
	)
	//
	if known && n == 0 {
		return
	}
	//
	u.location(dest, p.Line, p.DestAddressType, p.Dest, "$sub_cmp")
	//
	if !known {
		size = u.storeSize(dest, p)
	}
	//
	u.copy(code, dest, u.expression(p.Src), n, size)
	//
	if sub, ok := p.DestAddressType.(ir.SubcmpSignal); ok {
		u.trigger(code, p.Meta, trigger.PlanFor(p.Line, sub, p.Dest), n, size, size != nil &&
			(codegen.HasZeroVariant(p.Context.Size) || codegen.HasZeroVariant(p.SrcContext.Size)))
	}
}

// storeSize computes the number of elements copied by a store (after its
// destination address), leaving it in $store_size.  Code pushing the size is
// returned.
func (u *unit) storeSize(code *codegen.Code, p *ir.Store) *codegen.Code {
	// preserve destination address
	code.Add("local.set $store_aux_1")
	u.size(code, p.Line, p.Context.Size, "$sub_cmp")
	code.Add("local.set $size_dest")
	//
	if p.SrcContext.Size.IsSingle() {
		code.Addf("i32.const %d", p.SrcContext.Size.Value())
	} else if p.SrcAddressType.IsEmpty() {
		ir.Failf(p.Line, "source size %s without subcomponent", p.SrcContext.Size.String())
	} else {
		tid := codegen.NewCode()
		u.subcomponent(tid, p.SrcAddressType.Unwrap())
		tid.Addf("i32.load offset=%d", layout.TEMPLATE_ID_IN_COMPONENT)
		u.selection(code, p.SrcContext.Size, tid)
	}
	//
	code.Add("local.set $size_src")
	code.Add("local.get $size_dest")
	code.Add("local.get $size_src")
	code.Add("local.get $size_dest")
	code.Add("local.get $size_src")
	code.Add("i32.lt_u")
	code.Add("select")
	code.Add("local.set $store_size")
	code.Add("local.get $store_aux_1")
	//
	size := codegen.NewCode()
	size.Add("local.get $store_size")
	//
	return size
}

// trigger lowers the trigger plan following a write to the subcomponent whose
// header address is held in $sub_cmp.  The number of elements written is n,
// unless pushed by size.
func (u *unit) trigger(code *codegen.Code, meta ir.Meta, plan trigger.Plan, n uint, size *codegen.Code,
	mayBeZero bool) {
	var written = func() {
		if size == nil {
			code.Addf("i32.const %d", n)
		} else {
			code.Append(size)
		}
	}
	// Writing nothing to a last input is a no-op
	var guard = mayBeZero && plan.Run == trigger.RunAlways
	//
	if guard {
		written()
		code.Open("if")
	}
	//
	if plan.Decrement {
		code.Add("local.get $sub_cmp")
		code.Add("local.get $sub_cmp")
		code.Addf("i32.load offset=%d", layout.INPUT_COUNTER_IN_COMPONENT)
		written()
		code.Add("i32.sub")
		code.Addf("i32.store offset=%d", layout.INPUT_COUNTER_IN_COMPONENT)
		//
		switch plan.Check {
		case trigger.CheckPositive:
			u.counter(code)
			code.Add("i32.eqz")
			code.Open("if")
			code.Add("unreachable")
			code.Close("end")
		case trigger.CheckZero:
			u.counter(code)
			code.Open("if")
			code.Add("unreachable")
			code.Close("end")
		}
	}
	//
	switch plan.Run {
	case trigger.RunAlways:
		u.runSubcomponent(code, meta, plan)
	case trigger.RunIfZero:
		u.counter(code)
		code.Add("i32.eqz")
		// Writing nothing must not run a component which has already run
		if mayBeZero {
			written()
			code.Add("i32.const 0")
			code.Add("i32.ne")
			code.Add("i32.and")
		}
		//
		code.Open("if")
		u.runSubcomponent(code, meta, plan)
		code.Close("end")
	}
	//
	if guard {
		code.Close("end")
	}
}

func (u *unit) counter(code *codegen.Code) {
	code.Add("local.get $sub_cmp")
	code.Addf("i32.load offset=%d", layout.INPUT_COUNTER_IN_COMPONENT)
}

func (u *unit) runSubcomponent(code *codegen.Code, meta ir.Meta, plan trigger.Plan) {
	code.Add("local.get $sub_cmp")
	//
	if plan.Dispatch == trigger.Direct {
		header := plan.TemplateHeader.Unwrap()
		//
		if u.ctx.Circuit.Template(header) == nil {
			ir.Failf(meta.Line, "unknown template %s", header)
		}
		//
		code.Addf("call $%s_run", header)
	} else {
		code.Append(templateId("$sub_cmp"))
		code.Add("call_indirect $runsmap (type $_t_i32ri32)")
	}
	//
	u.errorCheck(code, meta)
}

// errorCheck propagates a non-zero result code left on the stack, after
// reporting the failing line.
func (u *unit) errorCheck(code *codegen.Code, meta ir.Meta) {
	code.Add("local.tee $merror")
	code.Open("if")
	u.message(code, meta)
	code.Add("local.get $merror")
	code.Add("return")
	code.Close("end")
}

func (u *unit) message(code *codegen.Code, meta ir.Meta) {
	code.Addf("i32.const %d", meta.MessageId)
	code.Addf("i32.const %d", meta.Line)
	code.Add("call $buildBufferMessage")
	code.Add("call $printErrorMessage")
}

// call marshals the arguments into the frame following the caller's, and then
// calls the function.
func (u *unit) call(p *ir.Call) *codegen.Code {
	var (
		code  = codegen.NewCode()
		eb    = u.elementBytes()
		count uint
	)
	//
	if u.ctx.Circuit.Function(p.Symbol) == nil {
		ir.Failf(p.Line, "unknown function %s", p.Symbol)
	} else if len(p.Arguments) != len(p.ArgumentTypes) {
		ir.Failf(p.Line, "%d arguments with %d types", len(p.Arguments), len(p.ArgumentTypes))
	}
	//
	code.Add("i32.const 0")
	code.Add("i32.load")
	code.Add("local.set $call_lvar")
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
		if size.Value() > 0 {
			dest := codegen.NewCode()
			dest.Add("local.get $call_lvar")
			dest.Addf("i32.const %d", count*eb)
			dest.Add("i32.add")
			u.copy(code, dest, u.expression(arg), size.Value(), nil)
		}
		//
		count += size.Value()
	}
	//
	switch r := p.Return.(type) {
	case *ir.Intermediate:
		u.expaux(code, p.Line, r.OpAux)
		code.Add("i32.const 1")
		code.Addf("call $%s", p.Symbol)
		u.errorCheck(code, p.Meta)
		u.expaux(code, p.Line, r.OpAux)
	case *ir.Final:
		u.finalCall(code, p, r)
	default:
		ir.Failf(p.Line, "unknown return type %T", p.Return)
	}
	//
	return code
}

// finalCall passes the destination of a call directly to the callee, and then
// follows the same rules as a store.
func (u *unit) finalCall(code *codegen.Code, p *ir.Call, r *ir.Final) {
	var (
		n    uint
		size *codegen.Code
	)
	//
	u.location(code, p.Line, r.DestAddressType, r.Dest, "$sub_cmp")
	//
	if r.Context.Size.IsSingle() {
		n = r.Context.Size.Value()
		code.Addf("i32.const %d", n)
	} else {
		u.size(code, p.Line, r.Context.Size, "$sub_cmp")
		code.Add("local.tee $store_size")
		//
		size = codegen.NewCode()
		size.Add("local.get $store_size")
	}
	//
	code.Addf("call $%s", p.Symbol)
	u.errorCheck(code, p.Meta)
	//
	if sub, ok := r.DestAddressType.(ir.SubcmpSignal); ok && !r.Context.Size.IsZero() {
		u.trigger(code, p.Meta, trigger.PlanFor(p.Line, sub, r.Dest), n, size,
			codegen.HasZeroVariant(r.Context.Size))
	}
}

func (u *unit) assert(code *codegen.Code, p *ir.Assert) {
	code.Append(u.expression(p.Evaluate))
	code.Add("call $Fr_isTrue")
	code.Add("i32.eqz")
	code.Open("if")
	u.message(code, p.Meta)
	code.Addf("i32.const %d", codegen.ASSERT_FAILED)
	code.Add("return")
	code.Close("end")
}

func (u *unit) ret(code *codegen.Code, p *ir.Return) {
	if u.function == nil {
		ir.Failf(p.Line, "return outside of function")
	}
	//
	dest := codegen.NewCode()
	dest.Add("local.get $result_address")
	//
	if !p.IsArray && p.WithSize == 1 {
		u.copy(code, dest, u.expression(p.Value), 1, nil)
	} else {
		// copy no more than the caller expects
		size := codegen.NewCode()
		size.Addf("i32.const %d", p.WithSize)
		size.Add("local.get $result_size")
		size.Addf("i32.const %d", p.WithSize)
		size.Add("local.get $result_size")
		size.Add("i32.lt_u")
		size.Add("select")
		u.copy(code, dest, u.expression(p.Value), 0, size)
	}
	//
	freeStack(code)
	code.Add("i32.const 0")
	code.Add("return")
}

func (u *unit) branch(code *codegen.Code, p *ir.Branch) {
	code.Append(u.expression(p.Cond))
	code.Add("call $Fr_isTrue")
	code.Open("if")
	u.body(code, p.Then)
	//
	if len(p.Else) > 0 {
		code.Else("else")
		u.body(code, p.Else)
	}
	//
	code.Close("end")
}

func (u *unit) loop(code *codegen.Code, p *ir.Loop) {
	code.Open("block")
	code.Open("loop")
	code.Append(u.expression(p.Continue))
	code.Add("call $Fr_isTrue")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	u.body(code, p.Body)
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
}

// createCmp creates consecutive subcomponent instances, running those without
// inputs immediately.
func (u *unit) createCmp(code *codegen.Code, p *ir.CreateCmp) {
	if u.template == nil {
		ir.Failf(p.Line, "component created within function %s", u.function.Header)
	} else if u.ctx.Circuit.Template(p.Symbol) == nil {
		ir.Failf(p.Line, "unknown template %s", p.Symbol)
	}
	//
	u.subcomponentSlot(code, p.Cmp)
	code.Add("local.set $create_loop_sub_cmp")
	code.Add("local.get $signalstart")
	code.Addf("i32.const %d", p.SignalOffset*u.elementBytes())
	code.Add("i32.add")
	code.Add("local.set $create_loop_offset")
	code.Addf("i32.const %d", p.NumberOfCmp)
	code.Add("local.set $create_loop_counter")
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $create_loop_counter")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	code.Add("local.get $create_loop_sub_cmp")
	code.Add("local.get $create_loop_offset")
	code.Addf("call $%s_create", p.Symbol)
	code.Add("i32.store")
	//
	if !p.HasInputs {
		code.Add("local.get $create_loop_sub_cmp")
		code.Add("i32.load")
		code.Addf("call $%s_run", p.Symbol)
		u.errorCheck(code, p.Meta)
	}
	//
	code.Add("local.get $create_loop_offset")
	code.Addf("i32.const %d", p.SignalOffsetJump*u.elementBytes())
	code.Add("i32.add")
	code.Add("local.set $create_loop_offset")
	code.Add("local.get $create_loop_sub_cmp")
	code.Add("i32.const 4")
	code.Add("i32.add")
	code.Add("local.set $create_loop_sub_cmp")
	code.Add("local.get $create_loop_counter")
	code.Add("i32.const 1")
	code.Add("i32.sub")
	code.Add("local.set $create_loop_counter")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
}

// create emits the routine which allocates and initialises the header of a
// component, returning its address.
func (u *unit) create() *codegen.Code {
	var (
		code = codegen.NewCode()
		t    = u.template
		free = u.ctx.Layout.ComponentFreePos()
	)
	//
	code.Open("(func $%s_create (type $_t_i32ri32)", t.Header)
	code.Add("(param $signalOffset i32)")
	code.Add("(result i32)")
	code.Add("(local $offset i32)")
	code.Addf("i32.const %d", free)
	code.Add("i32.load")
	code.Add("local.set $offset")
	code.Add("local.get $offset")
	code.Addf("i32.const %d", t.Id)
	code.Addf("i32.store offset=%d", layout.TEMPLATE_ID_IN_COMPONENT)
	code.Add("local.get $offset")
	code.Add("local.get $signalOffset")
	code.Addf("i32.store offset=%d", layout.SIGNAL_START_IN_COMPONENT)
	code.Add("local.get $offset")
	code.Addf("i32.const %d", t.NumberOfInputs)
	code.Addf("i32.store offset=%d", layout.INPUT_COUNTER_IN_COMPONENT)
	code.Addf("i32.const %d", free)
	code.Add("local.get $offset")
	code.Addf("i32.const %d", layout.SUBCOMPONENTS_IN_COMPONENT+4*t.NumberOfComponents)
	code.Add("i32.add")
	code.Add("i32.store")
	code.Add("local.get $offset")
	code.Close(")")
	//
	return code
}

// run emits the routine which computes the signals of a component.
func (u *unit) run() *codegen.Code {
	var (
		code = codegen.NewCode()
		t    = u.template
		eb   = u.elementBytes()
	)
	//
	code.Open("(func $%s_run (type $_t_i32ri32)", t.Header)
	code.Add("(param $offset i32)")
	code.Add("(result i32)")
	declareLocals(code, runLocals)
	reserveFrame(code, t.VarStackDepth*eb, (t.VarStackDepth+t.ExpressionStackDepth)*eb)
	code.Add("local.get $offset")
	code.Addf("i32.load offset=%d", layout.SIGNAL_START_IN_COMPONENT)
	code.Add("local.set $signalstart")
	u.body(code, t.Body)
	freeStack(code)
	code.Add("i32.const 0")
	code.Close(")")
	//
	return code
}

func (u *unit) lowerFunction() *codegen.Code {
	var (
		code = codegen.NewCode()
		f    = u.function
		eb   = u.elementBytes()
	)
	//
	code.Open("(func $%s (type $_t_i32i32ri32)", f.Header)
	code.Add("(param $result_address i32)")
	code.Add("(param $result_size i32)")
	code.Add("(result i32)")
	declareLocals(code, functionLocals)
	reserveFrame(code, f.MaxNumberOfVars*eb, (f.MaxNumberOfVars+f.MaxNumberOfOpsInExpression)*eb)
	u.body(code, f.Body)
	freeStack(code)
	code.Add("i32.const 0")
	code.Close(")")
	//
	return code
}

func declareLocals(code *codegen.Code, locals []string) {
	var decls = make([]string, len(locals))
	//
	for i, l := range locals {
		decls[i] = fmt.Sprintf("(local %s i32)", l)
	}
	//
	code.Add(strings.Join(decls, " "))
}

// reserveFrame reserves the variables and expression stack of a routine at
// the top of the stack.
func reserveFrame(code *codegen.Code, vars uint, total uint) {
	code.Add("i32.const 0")
	code.Add("i32.load")
	code.Add("local.set $lvar")
	code.Add("local.get $lvar")
	code.Addf("i32.const %d", vars)
	code.Add("i32.add")
	code.Add("local.set $expaux")
	code.Addf("i32.const %d", total)
	code.Add("call $reserveStackFr")
	code.Add("local.set $cstack")
}

func freeStack(code *codegen.Code) {
	code.Add("i32.const 0")
	code.Add("local.get $cstack")
	code.Add("i32.store")
}

func arity(kind ir.OperatorKind) int {
	if kind.IsUnary() {
		return 1
	}
	//
	return 2
}
