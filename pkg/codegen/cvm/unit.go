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
	"math/big"
	"strings"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/resolve"
	"github.com/consensys/go-witgen/pkg/trigger"
)

var ffOperations = map[ir.OperatorKind]string{
	ir.Mul:        "ff.mul",
	ir.Div:        "ff.div",
	ir.Add:        "ff.add",
	ir.Sub:        "ff.sub",
	ir.Pow:        "ff.pow",
	ir.IntDiv:     "ff.idiv",
	ir.Mod:        "ff.rem",
	ir.ShiftL:     "ff.shl",
	ir.ShiftR:     "ff.shr",
	ir.LesserEq:   "ff.le",
	ir.GreaterEq:  "ff.ge",
	ir.Lesser:     "ff.lt",
	ir.Greater:    "ff.gt",
	ir.Eq:         "ff.eq",
	ir.NotEq:      "ff.neq",
	ir.BoolOr:     "ff.or",
	ir.BoolAnd:    "ff.and",
	ir.BitOr:      "ff.bor",
	ir.BitAnd:     "ff.band",
	ir.BitXor:     "ff.bxor",
	ir.BoolNot:    "ff.eqz",
	ir.Complement: "ff.bnot",
	ir.MulAddress: "i64.mul",
	ir.AddAddress: "i64.add",
	ir.ToAddress:  "i64.wrap_ff",
}

// unit holds the state for lowering a single template (or function) body.
// Every intermediate result is held in a fresh register, and expressions lower
// to the instructions computing them followed by the register (or literal)
// holding the result.
type unit struct {
	ctx *codegen.Context
	// Template being lowered (or nil)
	template *circuit.TemplateCode
	// Function being lowered (or nil)
	function *circuit.FunctionCode
	// Register holding the start of the scratch area (templates only)
	scratch string
}

// location is a resolved memory location.
type location struct {
	base resolve.Base
	// Register identifying the subcomponent (when base is SubcmpSignals)
	cmp string
	// Element address relative to the base
	addr string
}

func (u *unit) fresh() string {
	return u.ctx.FreshName("x")
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
	if u.ctx.LineChanged(line) {
		code.Addf(";;line %d", line)
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
		return fmt.Sprintf("i64.%d", p.Value)
	case ir.BigInt:
		if p.Value >= uint(len(u.ctx.Circuit.Constants)) {
			ir.Failf(p.Line, "unknown constant %d", p.Value)
		}
		//
		n, ok := new(big.Int).SetString(u.ctx.Circuit.Constants[p.Value], 10)
		if !ok {
			ir.Failf(p.Line, "invalid constant \"%s\"", u.ctx.Circuit.Constants[p.Value])
		}
		//
		return fmt.Sprintf("ff.%s", n.Mod(n, u.ctx.Field.Modulus()).String())
	}
	//
	ir.Failf(p.Line, "unknown value kind %d", p.Kind)
	//
	return ""
}

func (u *unit) load(p *ir.Load) (*codegen.Code, string) {
	var (
		code   = codegen.NewCode()
		loc    = u.location(code, p.Line, p.Address, p.Src)
		result = u.fresh()
	)
	//
	u.get(code, result, loc, loc.addr)
	//
	return code, result
}

// location lowers the address of a load or store.  Locations are resolved
// statically, since the machine has no descriptor tables to walk.
func (u *unit) location(code *codegen.Code, line uint, address ir.AddressType, loc ir.LocationRule) location {
	var (
		addr = resolve.Resolve(line, address, loc)
		res  = location{base: addr.Base}
	)
	//
	if addr.IsMapped() {
		ir.Failf(line, "mapped location %s has no cvm lowering", addr.String())
	} else if addr.Base != resolve.LocalFrame && u.function != nil {
		ir.Failf(line, "signal access within function %s", u.function.Header)
	}
	//
	if addr.Base == resolve.SubcmpSignals {
		prologue, cmp := u.expression(addr.Cmp)
		code.Append(prologue)
		//
		res.cmp = cmp
	}
	//
	prologue, index := u.expression(addr.Index)
	code.Append(prologue)
	//
	res.addr = index
	//
	return res
}

// get loads the element at a given address of a location into a register.
func (u *unit) get(code *codegen.Code, dst string, loc location, addr string) {
	switch loc.base {
	case resolve.LocalFrame:
		code.Addf("%s = ff.load %s", dst, addr)
	case resolve.OwnSignals:
		code.Addf("%s = get_signal %s", dst, addr)
	default:
		code.Addf("%s = get_cmp_signal %s %s", dst, loc.cmp, addr)
	}
}

// set writes a value to a given address of a location, where input is the
// instruction used for writing subcomponent inputs.
func (u *unit) set(code *codegen.Code, loc location, addr string, value string, input string) {
	switch loc.base {
	case resolve.LocalFrame:
		code.Addf("ff.store %s %s", addr, value)
	case resolve.OwnSignals:
		code.Addf("set_signal %s %s", addr, value)
	default:
		code.Addf("%s %s %s %s", input, loc.cmp, addr, value)
	}
}

// size lowers a size which may depend upon the template of the subcomponent
// identified by cmp.
func (u *unit) size(code *codegen.Code, line uint, size ir.Size, cmp string) string {
	if size.IsSingle() {
		return fmt.Sprintf("i64.%d", size.Value())
	} else if cmp == "" || u.function != nil {
		ir.Failf(line, "size %s without subcomponent", size.String())
	}
	//
	var (
		result = u.fresh()
		id     = u.fresh()
	)
	//
	code.Addf("%s = get_template_id %s", id, cmp)
	//
	for _, v := range size.Variants() {
		cond := u.fresh()
		code.Addf("%s = i64.eq %s i64.%d", cond, id, v.Template)
		code.Open("i64.if %s", cond)
		code.Addf("%s = i64.%d", result, v.Size)
		code.Else("else")
	}
	//
	code.Addf("error i64.%d", codegen.SIGNAL_NOT_FOUND)
	//
	for range size.Variants() {
		code.Close("end")
	}
	//
	return result
}

func (u *unit) compute(p *ir.Compute) (*codegen.Code, string) {
	if arity := arity(p.Op.Kind); arity != len(p.Stack) {
		ir.Failf(p.Line, "%s expects %d operands, found %d", p.Op.String(), arity, len(p.Stack))
	} else if p.Op.IsVectorEq() {
		return u.vectorEq(p)
	}
	//
	var (
		code = codegen.NewCode()
		args = make([]string, len(p.Stack))
	)
	//
	for i, arg := range p.Stack {
		var prologue *codegen.Code
		prologue, args[i] = u.expression(arg)
		code.Append(prologue)
	}
	//
	result := u.fresh()
	//
	if p.Op.Kind == ir.PrefixSub {
		code.Addf("%s = ff.sub ff.0 %s", result, args[0])
	} else if op, ok := ffOperations[p.Op.Kind]; ok {
		code.Addf("%s = %s %s", result, op, strings.Join(args, " "))
	} else {
		ir.Failf(p.Line, "no cvm operation for %s", p.Op.String())
	}
	//
	return code, result
}

// vectorEq compares two vectors held in memory element by element, stopping
// at the first mismatch.  Empty vectors are equal.
func (u *unit) vectorEq(p *ir.Compute) (*codegen.Code, string) {
	var (
		code   = codegen.NewCode()
		lhs    = u.operand(code, p.Line, p.Stack[0])
		rhs    = u.operand(code, p.Line, p.Stack[1])
		result = u.fresh()
		cmp    = rhs.cmp
	)
	//
	if cmp == "" {
		cmp = lhs.cmp
	}
	//
	code.Addf("%s = ff.1", result)
	//
	var (
		n       = u.size(code, p.Line, p.Op.EqSize, cmp)
		counter = u.copyOf(code, n)
		a       = u.copyOf(code, lhs.addr)
		b       = u.copyOf(code, rhs.addr)
		va      = u.fresh()
		vb      = u.fresh()
	)
	//
	code.Open("loop")
	code.Open("i64.if %s", counter)
	u.get(code, va, lhs, a)
	u.get(code, vb, rhs, b)
	code.Addf("%s = ff.eq %s %s", result, va, vb)
	code.Open("ff.if %s", result)
	code.Addf("%s = i64.add %s i64.1", a, a)
	code.Addf("%s = i64.add %s i64.1", b, b)
	code.Addf("%s = i64.sub %s i64.1", counter, counter)
	code.Add("continue")
	code.Close("end")
	code.Close("end")
	code.Add("break")
	code.Close("end")
	//
	return code, result
}

// operand resolves an operand held in memory, which must therefore be a load.
func (u *unit) operand(code *codegen.Code, line uint, insn ir.Instruction) location {
	load, ok := insn.(*ir.Load)
	//
	if !ok {
		ir.Failf(line, "%s is not a location", insn.String())
	}
	//
	return u.location(code, line, load.Address, load.Src)
}

// copyOf copies a value into a fresh register, which can then be updated.
func (u *unit) copyOf(code *codegen.Code, value string) string {
	reg := u.fresh()
	code.Addf("%s = %s", reg, value)
	//
	return reg
}

func (u *unit) store(code *codegen.Code, p *ir.Store) {
	var (
		plan      = u.plan(p.Line, p.DestAddressType, p.Dest)
		body, end = inputInstructions(plan)
	)
	//
	n, known := codegen.StoreSize(p.Context.Size, p.SrcContext.Size)
	//
	if known && n == 0 {
		return
	} else if known && n == 1 {
		prologue, value := u.expression(p.Src)
		code.Append(prologue)
		//
		dest := u.location(code, p.Line, p.DestAddressType, p.Dest)
		u.set(code, dest, dest.addr, value, end)
		//
		return
	}
	//
	var (
		src       = u.operand(code, p.Line, p.Src)
		dest      = u.location(code, p.Line, p.DestAddressType, p.Dest)
		count     = fmt.Sprintf("i64.%d", n)
		mayBeZero = false
	)
	//
	if !known {
		cd := u.size(code, p.Line, p.Context.Size, dest.cmp)
		cs := u.size(code, p.Line, p.SrcContext.Size, src.cmp)
		count = u.copyOf(code, cd)
		cond := u.fresh()
		//
		code.Addf("%s = i64.lt %s %s", cond, cs, cd)
		code.Open("i64.if %s", cond)
		code.Addf("%s = %s", count, cs)
		code.Close("end")
		//
		mayBeZero = codegen.HasZeroVariant(p.Context.Size) || codegen.HasZeroVariant(p.SrcContext.Size)
	}
	//
	u.copy(code, dest, src, count, plan.Fires(), mayBeZero, body, end)
}

// plan determines the trigger plan for a write to a given destination, which
// is empty unless it is a subcomponent input.
func (u *unit) plan(line uint, address ir.AddressType, loc ir.LocationRule) trigger.Plan {
	if sub, ok := address.(ir.SubcmpSignal); ok {
		return trigger.PlanFor(line, sub, loc)
	}
	//
	return trigger.Plan{}
}

// inputInstructions determines the instructions used for writing the leading
// elements of a subcomponent input, and its final element.  Only the final
// write may run the subcomponent.
func inputInstructions(plan trigger.Plan) (string, string) {
	switch plan.Run {
	case trigger.RunAlways:
		return "set_cmp_input", "set_cmp_input_run"
	case trigger.RunIfZero:
		return "set_cmp_input_cnt", "set_cmp_input_cnt_check"
	}
	//
	if plan.Decrement {
		return "set_cmp_input_cnt", "set_cmp_input_cnt"
	}
	//
	return "set_cmp_input", "set_cmp_input"
}

// copy copies count elements from one location to another.  When the final
// write may run a subcomponent, it is split off from the loop.
func (u *unit) copy(code *codegen.Code, dest location, src location, count string, fires bool, mayBeZero bool,
	body string, end string) {
	var (
		s = u.copyOf(code, src.addr)
		d = u.copyOf(code, dest.addr)
		c = u.copyOf(code, count)
		v = u.fresh()
	)
	//
	if fires {
		if mayBeZero {
			code.Open("i64.if %s", c)
		}
		//
		code.Addf("%s = i64.sub %s i64.1", c, c)
	}
	//
	code.Open("loop")
	code.Open("i64.if %s", c)
	u.get(code, v, src, s)
	u.set(code, dest, d, v, body)
	code.Addf("%s = i64.add %s i64.1", s, s)
	code.Addf("%s = i64.add %s i64.1", d, d)
	code.Addf("%s = i64.sub %s i64.1", c, c)
	code.Add("continue")
	code.Close("end")
	code.Add("break")
	code.Close("end")
	//
	if fires {
		u.get(code, v, src, s)
		u.set(code, dest, d, v, end)
		//
		if mayBeZero {
			code.Close("end")
		}
	}
}

func (u *unit) call(p *ir.Call) (*codegen.Code, string) {
	var (
		code = codegen.NewCode()
		f    = u.ctx.Circuit.Function(p.Symbol)
		args []string
	)
	//
	if f == nil {
		ir.Failf(p.Line, "unknown function %s", p.Symbol)
	} else if len(p.Arguments) != len(p.ArgumentTypes) {
		ir.Failf(p.Line, "%d arguments with %d types", len(p.Arguments), len(p.ArgumentTypes))
	}
	//
	for i, arg := range p.Arguments {
		var size = p.ArgumentTypes[i].Size
		//
		if !size.IsSingle() {
			ir.Failf(p.Line, "argument %d has size %s", i, size.String())
		} else if size.Value() == 1 {
			prologue, value := u.expression(arg)
			code.Append(prologue)
			//
			args = append(args, value)
		} else {
			args = append(args, reference(u.operand(code, p.Line, arg), size.Value()))
		}
	}
	//
	switch r := p.Return.(type) {
	case *ir.Intermediate:
		if p.ReturnsArray {
			ir.Failf(p.Line, "intermediate call to %s returns an array", p.Symbol)
		}
		//
		result := u.fresh()
		code.Addf("%s = ff.call %s", result, invoke(p.Symbol, args))
		//
		return code, result
	case *ir.Final:
		u.finalCall(code, p, r, args)
	default:
		ir.Failf(p.Line, "unknown return type %T", p.Return)
	}
	//
	return code, ""
}

// reference passes n elements of a location by reference.
func reference(loc location, n uint) string {
	switch loc.base {
	case resolve.LocalFrame:
		return fmt.Sprintf("ff.memory(%s,i64.%d)", loc.addr, n)
	case resolve.OwnSignals:
		return fmt.Sprintf("signal(%s,i64.%d)", loc.addr, n)
	default:
		return fmt.Sprintf("subcmpsignal(%s,%s,i64.%d)", loc.cmp, loc.addr, n)
	}
}

// finalCall writes the result of a call to its destination.  Arrays returned
// into anything other than variables pass through the scratch area, and are
// then copied as for a store.
func (u *unit) finalCall(code *codegen.Code, p *ir.Call, r *ir.Final, args []string) {
	var (
		plan      = u.plan(p.Line, r.DestAddressType, r.Dest)
		body, end = inputInstructions(plan)
		dest      = u.location(code, p.Line, r.DestAddressType, r.Dest)
	)
	//
	if !p.ReturnsArray {
		result := u.fresh()
		code.Addf("%s = ff.call %s", result, invoke(p.Symbol, args))
		u.set(code, dest, dest.addr, result, end)
		//
		return
	} else if r.Context.Size.IsZero() {
		return
	}
	//
	size := u.size(code, p.Line, r.Context.Size, dest.cmp)
	//
	if dest.base == resolve.LocalFrame {
		code.Addf("ff.mcall %s", invoke(p.Symbol, append([]string{dest.addr, size}, args...)))
		return
	} else if u.scratch == "" {
		ir.Failf(p.Line, "array call to %s without scratch area", p.Symbol)
	}
	//
	code.Addf("ff.mcall %s", invoke(p.Symbol, append([]string{u.scratch, size}, args...)))
	//
	scratch := location{base: resolve.LocalFrame, addr: u.scratch}
	mayBeZero := !r.Context.Size.IsSingle() && codegen.HasZeroVariant(r.Context.Size)
	//
	u.copy(code, dest, scratch, size, plan.Fires(), mayBeZero, body, end)
}

func invoke(symbol string, args []string) string {
	return strings.Join(append([]string{"$" + symbol}, args...), " ")
}

// assert halts the machine with ASSERT_FAILED unless the condition holds.
func (u *unit) assert(code *codegen.Code, p *ir.Assert) {
	prologue, value := u.expression(p.Evaluate)
	code.Append(prologue)
	//
	cond := u.fresh()
	code.Addf("%s = ff.eqz %s", cond, value)
	code.Open("ff.if %s", cond)
	code.Addf("error i64.%d", codegen.ASSERT_FAILED)
	code.Close("end")
}

func (u *unit) ret(code *codegen.Code, p *ir.Return) {
	if u.function == nil {
		ir.Failf(p.Line, "return outside of function")
	}
	//
	if !p.IsArray && p.WithSize == 1 {
		prologue, value := u.expression(p.Value)
		code.Append(prologue)
		code.Addf("ff.return %s", value)
		//
		return
	}
	//
	var (
		src  = u.operand(code, p.Line, p.Value)
		cond = u.fresh()
		size = u.fresh()
	)
	//
	if src.base != resolve.LocalFrame {
		ir.Failf(p.Line, "array returned from %s", src.base.String())
	}
	//
	code.Addf("%s = i64.le i64.%d destination_size", cond, p.WithSize)
	code.Open("i64.if %s", cond)
	code.Addf("%s = i64.%d", size, p.WithSize)
	code.Else("else")
	code.Addf("%s = destination_size", size)
	code.Close("end")
	code.Addf("ff.mreturn destination %s %s", src.addr, size)
}

func (u *unit) branch(code *codegen.Code, p *ir.Branch) {
	prologue, cond := u.expression(p.Cond)
	code.Append(prologue)
	//
	code.Open("ff.if %s", cond)
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
	code.Open("loop")
	//
	prologue, cond := u.expression(p.Continue)
	code.Append(prologue)
	code.Open("ff.if %s", cond)
	u.body(code, p.Body)
	code.Add("continue")
	code.Close("end")
	code.Add("break")
	code.Close("end")
}

// createCmp creates subcomponents explicitly, unless the machine creates them
// itself.
func (u *unit) createCmp(code *codegen.Code, p *ir.CreateCmp) {
	if u.template == nil {
		ir.Failf(p.Line, "component created within function %s", u.function.Header)
	} else if u.ctx.Circuit.Template(p.Symbol) == nil {
		ir.Failf(p.Line, "unknown template %s", p.Symbol)
	} else if u.ctx.Circuit.ImplicitComponentCreation {
		return
	}
	//
	prologue, cmp := u.expression(p.Cmp)
	code.Append(prologue)
	code.Addf("create_cmp $%s %s i64.%d", p.Symbol, cmp, p.NumberOfCmp)
}

func arity(kind ir.OperatorKind) int {
	if kind.IsUnary() {
		return 1
	}
	//
	return 2
}
