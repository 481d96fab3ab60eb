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
	"errors"
	"strings"
	"testing"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cvm_Header_01(t *testing.T) {
	var (
		c    = test.FunctionCircuit()
		env  = newEnv(t, c)
		code = NewBackend().Header(codegen.NewContext(env))
	)
	//
	texts := code.Texts()
	assert.Contains(t, texts, "%%prime "+env.Field.Prime())
	assert.Contains(t, texts, "%%signals 5")
	assert.Contains(t, texts, "%%components_heap 1")
	assert.Contains(t, texts, "%%start Main_0")
	assert.Contains(t, texts, "%%components explicit")
	assert.Contains(t, texts, "%%witness 0 1 2 3 4")
}

func Test_Cvm_Header_02(t *testing.T) {
	var (
		c = test.BusCircuit()
		b = NewBackend()
	)
	//
	c.ImplicitComponentCreation = true
	texts := b.Header(codegen.NewContext(newEnv(t, c))).Texts()
	//
	assert.Contains(t, texts, "%%type $bus_0")
	assert.Contains(t, texts, "$x ff 0 1 0")
	assert.Contains(t, texts, "$y ff 1 1 0")
	assert.Contains(t, texts, "%%components implicit")
	//
	signature := b.Template(codegen.NewContext(newEnv(t, c)), c.Templates[1]).Texts()[0]
	assert.Equal(t, "%%template P_1 [ff 0] [$bus_0 1 2] [5] []", signature)
}

func Test_Cvm_Trigger_01(t *testing.T) {
	var (
		c   = test.TriggerCircuit()
		out = lower(t, c)
	)
	//
	assert.Contains(t, out, "%%template Main_0 [ff 0] [ff 1 2] [3] [1]")
	assert.Contains(t, out, "%%template A_1 [ff 0] [ff 1 2] [3] []")
	assert.Contains(t, out, "create_cmp $A_1 i64.0 i64.1")
	assert.Contains(t, out, "error i64.4")
	checkBlocks(t, out)
}

func Test_Cvm_Trigger_02(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	// a.x <== in
	code := u.statement(c.Templates[0].Body[1])
	//
	assert.Equal(t, []string{
		";;line 10",
		"x_0 = i64.1",
		"x_1 = i64.1",
		"x_2 = i64.2",
		"x_2 = i64.sub x_2 i64.1",
		"loop",
		"i64.if x_2",
		"x_3 = get_signal x_0",
		"set_cmp_input i64.0 x_1 x_3",
		"x_0 = i64.add x_0 i64.1",
		"x_1 = i64.add x_1 i64.1",
		"x_2 = i64.sub x_2 i64.1",
		"continue",
		"end",
		"break",
		"end",
		"x_3 = get_signal x_0",
		"set_cmp_input_run i64.0 x_1 x_3",
	}, code.Texts())
}

func Test_Cvm_Trigger_03(t *testing.T) {
	var (
		c     = test.TriggerCircuit()
		u     = newUnit(t, c, c.Templates[0])
		store = dynamicStore(ir.Unknown)
	)
	//
	code := u.statement(store)
	out := code.String()
	//
	assert.Contains(t, out, "get_template_id i64.0")
	assert.Contains(t, out, "set_cmp_input_cnt i64.0")
	assert.Contains(t, out, "set_cmp_input_cnt_check i64.0")
	assert.Contains(t, out, "error i64.1")
	assert.Equal(t, uint(0), code.Depth())
	checkBlocks(t, out)
}

func Test_Cvm_Trigger_04(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	//
	out := u.statement(dynamicStore(ir.NoLast)).String()
	//
	assert.Contains(t, out, "set_cmp_input_cnt i64.0")
	assert.NotContains(t, out, "set_cmp_input_cnt_check")
	assert.NotContains(t, out, "set_cmp_input_run")
	checkBlocks(t, out)
}

func Test_Cvm_Trigger_05(t *testing.T) {
	var (
		c     = test.TriggerCircuit()
		u     = newUnit(t, c, c.Templates[0])
		depth int
		runs  int
	)
	// A last write of no elements does not run the subcomponent
	code := u.statement(dynamicStore(ir.Last))
	//
	for _, line := range code.Texts() {
		switch {
		case line == "loop", strings.HasPrefix(line, "i64.if "):
			depth++
		case line == "end":
			depth--
		case strings.HasPrefix(line, "set_cmp_input_run "):
			runs++
			// within the guard, but outside the copy loop
			assert.Equal(t, 1, depth)
		}
	}
	//
	assert.Equal(t, 1, runs)
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Cvm_Function_01(t *testing.T) {
	var (
		c = test.FunctionCircuit()
		b = NewBackend()
	)
	//
	assert.Equal(t, []string{
		"%%function sq_0 [ff 0] [ff 0]",
		";;line 2",
		"x_0 = ff.load i64.0",
		"x_1 = ff.load i64.0",
		"x_2 = ff.mul x_0 x_1",
		"ff.return x_2",
		"",
	}, b.Function(codegen.NewContext(newEnv(t, c)), c.Functions[0]).Texts())
	//
	assert.Equal(t, []string{
		"%%function pair_1 [ff 1 2] [ff 0]",
		";;line 0",
		"x_0 = ff.load i64.0",
		"ff.store i64.1 x_0",
		"x_1 = ff.load i64.0",
		"x_2 = ff.add x_1 ff.1",
		"ff.store i64.2 x_2",
		";;line 6",
		"x_3 = i64.le i64.2 destination_size",
		"i64.if x_3",
		"x_4 = i64.2",
		"else",
		"x_4 = destination_size",
		"end",
		"ff.mreturn destination i64.1 x_4",
		"",
	}, b.Function(codegen.NewContext(newEnv(t, c)), c.Functions[1]).Texts())
}

func Test_Cvm_Function_02(t *testing.T) {
	var (
		c   = test.FunctionCircuit()
		out = lower(t, c)
	)
	//
	assert.Contains(t, out, "%%template Main_0 [ff 1 3] [ff 0] [4] []")
	assert.Contains(t, out, "x_2 = ff.call $sq_0 x_1")
	assert.Contains(t, out, "set_signal i64.0 x_2")
	assert.Contains(t, out, "ff.mcall $pair_1 x_0 i64.2 x_3")
	assert.Contains(t, out, "x_7 = ff.load x_4")
	assert.Contains(t, out, "set_signal x_5 x_7")
	checkBlocks(t, out)
}

func Test_Cvm_Function_03(t *testing.T) {
	var (
		c = test.FunctionCircuit()
		u = &unit{ctx: codegen.NewContext(newEnv(t, c)), template: c.Templates[0]}
	)
	// Array results cannot be used as intermediate values
	call := *c.Templates[0].Body[1].(*ir.Call)
	call.Return = &ir.Intermediate{}
	//
	checkInvariant(t, func() { u.statement(&call) })
}

func Test_Cvm_Implicit_01(t *testing.T) {
	var c = test.TriggerCircuit()
	//
	c.ImplicitComponentCreation = true
	out := lower(t, c)
	//
	assert.NotContains(t, out, "create_cmp")
	assert.Contains(t, out, "%%components implicit")
}

func Test_Cvm_Selection_01(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		u    = newUnit(t, c, c.Templates[0])
		code = codegen.NewCode()
		size = ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2, Size: 3})
	)
	//
	result := u.size(code, 0, size, "i64.0")
	//
	assert.Equal(t, "x_0", result)
	assert.Equal(t, []string{
		"x_1 = get_template_id i64.0",
		"x_2 = i64.eq x_1 i64.1",
		"i64.if x_2",
		"x_0 = i64.2",
		"else",
		"x_3 = i64.eq x_1 i64.2",
		"i64.if x_3",
		"x_0 = i64.3",
		"else",
		"error i64.1",
		"end",
		"end",
	}, code.Texts())
}

func Test_Cvm_VectorEq_01(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	//
	code, result := u.expression(vectorEq(ir.Single(3)))
	//
	assert.Equal(t, "x_0", result)
	assert.Equal(t, []string{
		"x_0 = ff.1",
		"x_1 = i64.3",
		"x_2 = i64.0",
		"x_3 = i64.1",
		"loop",
		"i64.if x_1",
		"x_4 = ff.load x_2",
		"x_5 = get_signal x_3",
		"x_0 = ff.eq x_4 x_5",
		"ff.if x_0",
		"x_2 = i64.add x_2 i64.1",
		"x_3 = i64.add x_3 i64.1",
		"x_1 = i64.sub x_1 i64.1",
		"continue",
		"end",
		"end",
		"break",
		"end",
	}, code.Texts())
}

func Test_Cvm_VectorEq_02(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	// Sizes depending on a template require a subcomponent
	size := ir.Multiple(ir.Variant{Template: 1, Size: 2})
	//
	checkInvariant(t, func() { u.expression(vectorEq(size)) })
}

func Test_Cvm_Compute_01(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	//
	for kind, expected := range map[ir.OperatorKind]string{
		ir.PrefixSub:  "x_1 = ff.sub ff.0 x_0",
		ir.BoolNot:    "x_1 = ff.eqz x_0",
		ir.Complement: "x_1 = ff.bnot x_0",
		ir.ToAddress:  "x_1 = i64.wrap_ff x_0",
	} {
		u.ctx = codegen.NewContext(u.ctx.Env)
		code, result := u.expression(&ir.Compute{Op: ir.Op(kind), Stack: []ir.Instruction{
			&ir.Load{Context: ir.Sized(1), Address: ir.Variable{}, Src: ir.NewIndexed(0)},
		}})
		//
		assert.Equal(t, "x_1", result)
		assert.Equal(t, []string{"x_0 = ff.load i64.0", expected}, code.Texts())
	}
}

func Test_Cvm_Constant_01(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[0])
	)
	// Constants are reduced into the field
	c.Constants = append(c.Constants, "-1")
	value := u.value(ir.NewConstant(uint(len(c.Constants)-1), 0))
	//
	assert.True(t, strings.HasPrefix(value, "ff."))
	assert.Equal(t, "ff.21888242871839275222246405745257275088548364400416034343698204186575808495616", value)
}

func Test_Cvm_Invalid_01(t *testing.T) {
	// Mapped locations have no lowering
	c := test.PolymorphicCircuit()
	checkInvariant(t, func() { lower(t, c) })
}

func Test_Cvm_Invalid_02(t *testing.T) {
	c := test.BusCircuit()
	checkInvariant(t, func() { lower(t, c) })
}

func Test_Cvm_Invalid_03(t *testing.T) {
	var (
		c = test.FunctionCircuit()
		u = &unit{ctx: codegen.NewContext(newEnv(t, c)), function: c.Functions[0]}
	)
	// Functions cannot access signals
	load := &ir.Load{Context: ir.Sized(1), Address: ir.Signal{}, Src: ir.NewIndexed(0)}
	//
	checkInvariant(t, func() { u.expression(load) })
}

// ============================================================================
// Helpers
// ============================================================================

func lower(t *testing.T, c *circuit.Circuit) string {
	var (
		env     = newEnv(t, c)
		backend = NewBackend()
		code    = codegen.NewCode()
	)
	//
	code.Append(backend.Header(codegen.NewContext(env)))
	//
	for _, tmpl := range c.Templates {
		code.Append(backend.Template(codegen.NewContext(env), tmpl))
	}
	//
	for _, f := range c.Functions {
		code.Append(backend.Function(codegen.NewContext(env), f))
	}
	//
	code.Append(backend.Footer(codegen.NewContext(env)))
	//
	return code.String()
}

// checkBlocks checks every loop and conditional is closed.
func checkBlocks(t *testing.T, out string) {
	var depth int
	//
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		//
		switch {
		case line == "loop", strings.HasPrefix(line, "i64.if "), strings.HasPrefix(line, "ff.if "):
			depth++
		case line == "end":
			depth--
			require.GreaterOrEqual(t, depth, 0)
		}
	}
	//
	assert.Equal(t, 0, depth)
}

func checkInvariant(t *testing.T, fn func()) {
	var ierr *ir.InvariantError
	//
	err := func() (err error) {
		defer ir.Recover(&err)
		fn()
		//
		return nil
	}()
	//
	require.Error(t, err)
	assert.True(t, errors.As(err, &ierr))
}

func newEnv(t *testing.T, c *circuit.Circuit) *codegen.Env {
	counts, err := layout.CountsOf(c, layout.DefaultOptions())
	require.NoError(t, err)
	//
	env, err := codegen.NewEnv(c, layout.Plan(counts), codegen.Options{})
	require.NoError(t, err)
	//
	return env
}

func newUnit(t *testing.T, c *circuit.Circuit, tmpl *circuit.TemplateCode) *unit {
	return &unit{ctx: codegen.NewContext(newEnv(t, c)), template: tmpl}
}

// dynamicStore writes an input of B_1 whose size is only known once the
// template of subcomponent 0 is known.
func dynamicStore(status ir.InputStatus) *ir.Store {
	var size = ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2, Size: 0})
	//
	return &ir.Store{
		Meta:       ir.Meta{Line: 7},
		Context:    ir.InstrContext{Size: size},
		SrcContext: ir.Sized(2),
		DestAddressType: ir.SubcmpSignal{
			Cmp:             ir.NewU32(0),
			UniformParallel: util.Some(false),
			Input:           ir.Input(status, true),
		},
		Dest: &ir.Indexed{Location: ir.NewU32(1), TemplateHeader: util.Some("B_1")},
		Src:  &ir.Load{Context: ir.Sized(2), Address: ir.Signal{}, Src: ir.NewIndexed(1)},
	}
}

func vectorEq(size ir.Size) *ir.Compute {
	return &ir.Compute{
		Op:    ir.EqOp(size),
		OpAux: 1,
		Stack: []ir.Instruction{
			&ir.Load{Context: ir.InstrContext{Size: size}, Address: ir.Variable{}, Src: ir.NewIndexed(0)},
			&ir.Load{Context: ir.InstrContext{Size: size}, Address: ir.Signal{}, Src: ir.NewIndexed(1)},
		},
	}
}
