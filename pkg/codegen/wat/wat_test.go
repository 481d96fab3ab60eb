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
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/consensys/go-witgen/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Wat_Module_01(t *testing.T) {
	var (
		c   = test.TriggerCircuit()
		env = newEnv(t, c, false)
		out = lower(t, c, false)
	)
	//
	assert.True(t, strings.HasPrefix(out, "(module\n"))
	assert.True(t, strings.HasSuffix(out, ")\n"))
	assert.Contains(t, out, fmt.Sprintf("(import \"env\" \"memory\" (memory %d))", Pages(codegen.NewContext(env))))
	assert.Contains(t, out, "(import \"fr\" \"Fr_mul\" (func $Fr_mul (type $_t_i32i32i32)))")
	assert.Contains(t, out, "(import \"fr\" \"Fr_neg\" (func $Fr_neg (type $_t_i32i32)))")
	assert.Contains(t, out, "(table $runsmap 2 2 funcref)")
	assert.Contains(t, out, "(elem (i32.const 0) $Main_0_run $A_1_run)")
	assert.Contains(t, out, "(func $getVersion (export \"getVersion\") (type $_t_ri32) (result i32) i32.const 2)")
	assert.Contains(t, out, fmt.Sprintf("(func $getFieldNumLen32 (export \"getFieldNumLen32\") "+
		"(type $_t_ri32) (result i32) i32.const %d)", env.Layout.Size32()))
}

func Test_Wat_Module_02(t *testing.T) {
	for _, c := range []*circuit.Circuit{test.TriggerCircuit(), test.PolymorphicCircuit(), test.BusCircuit(),
		test.FunctionCircuit()} {
		out := lower(t, c, true)
		//
		assert.Equal(t, strings.Count(out, "("), strings.Count(out, ")"))
		checkBlocks(t, out)
	}
}

func Test_Wat_Data_01(t *testing.T) {
	var (
		c   = test.TriggerCircuit()
		env = newEnv(t, c, true)
		out = lower(t, c, true)
	)
	//
	assert.Contains(t, out, ";; stack_pointer")
	assert.Contains(t, out, fmt.Sprintf("(data (i32.const 0) \"%s\")", escape(env.Segments[0].Data)))
	assert.Contains(t, out, ";; constants")
}

func Test_Wat_Escape_01(t *testing.T) {
	assert.Equal(t, "\\00\\ff\\10", escape([]byte{0, 255, 16}))
	assert.Equal(t, "", escape(nil))
}

func Test_Wat_Trigger_01(t *testing.T) {
	out := lower(t, test.TriggerCircuit(), true)
	//
	assert.Contains(t, out, ";; line 10")
	assert.Contains(t, out, "(func $A_1_create (type $_t_i32ri32)")
	assert.Contains(t, out, "(func $Main_0_run (type $_t_i32ri32)")
	assert.Contains(t, out, "local.tee $sub_cmp")
	assert.Contains(t, out, "local.set $copy_counter")
	assert.Contains(t, out, "call $A_1_run")
	assert.Contains(t, out, "local.tee $merror")
	assert.Contains(t, out, "call $A_1_create")
	assert.Contains(t, out, "call $Fr_lt")
	assert.Contains(t, out, "call $buildBufferMessage")
	assert.NotContains(t, out, "call_indirect")
}

func Test_Wat_Trigger_02(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		main = c.Templates[0]
		u    = newUnit(t, c, main)
		code = codegen.NewCode()
	)
	//
	u.store(code, main.Body[1].(*ir.Store))
	//
	assert.Equal(t, []string{
		"local.get $offset", "i32.const 12", "i32.add", "i32.load",
		"local.tee $sub_cmp", "i32.load offset=4", "i32.const 40", "i32.add",
		"local.set $store_aux_1",
		"local.get $signalstart", "i32.const 40", "i32.add",
		"local.set $store_aux_2",
		"i32.const 2", "local.set $copy_counter",
		"block", "loop",
		"local.get $copy_counter", "i32.eqz", "br_if 1",
		"local.get $store_aux_1", "local.get $store_aux_2", "call $Fr_copy",
		"local.get $store_aux_1", "i32.const 40", "i32.add", "local.set $store_aux_1",
		"local.get $store_aux_2", "i32.const 40", "i32.add", "local.set $store_aux_2",
		"local.get $copy_counter", "i32.const 1", "i32.sub", "local.set $copy_counter",
		"br 0", "end", "end",
		// decrement
		"local.get $sub_cmp", "local.get $sub_cmp", "i32.load offset=8", "i32.const 2", "i32.sub",
		"i32.store offset=8",
		// check
		"local.get $sub_cmp", "i32.load offset=8", "if", "unreachable", "end",
		// run
		"local.get $sub_cmp", "call $A_1_run", "local.tee $merror", "if",
		"i32.const 0", "i32.const 10", "call $buildBufferMessage", "call $printErrorMessage",
		"local.get $merror", "return", "end",
	}, code.Texts())
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Wat_Polymorphic_01(t *testing.T) {
	var (
		c   = test.PolymorphicCircuit()
		env = newEnv(t, c, false)
		out = lower(t, c, false)
	)
	//
	assert.Contains(t, out, fmt.Sprintf("i32.load offset=%d", env.Layout.TemplateToIOStart()))
	assert.Contains(t, out, "local.tee $io_info")
	assert.Contains(t, out, "call_indirect $runsmap (type $_t_i32ri32)")
	assert.Contains(t, out, "(elem (i32.const 0) $Main_0_run $B_1_run $B_2_run)")
}

func Test_Wat_Bus_01(t *testing.T) {
	var (
		c   = test.BusCircuit()
		env = newEnv(t, c, false)
		out = lower(t, c, false)
	)
	//
	assert.Contains(t, out, fmt.Sprintf("i32.load offset=%d", env.Layout.BusToFieldStart()))
	assert.Contains(t, out, "call_indirect $runsmap (type $_t_i32ri32)")
}

func Test_Wat_Function_01(t *testing.T) {
	out := lower(t, test.FunctionCircuit(), false)
	//
	assert.Contains(t, out, "(func $sq_0 (type $_t_i32i32ri32)")
	assert.Contains(t, out, "(param $result_address i32)")
	assert.Contains(t, out, "local.get $result_size")
	assert.Contains(t, out, "select")
	assert.Contains(t, out, "call $sq_0")
	assert.Contains(t, out, "call $pair_1")
	assert.Contains(t, out, "local.set $call_lvar")
}

func Test_Wat_Init_01(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		code = codegen.NewCode()
	)
	// Main is run once the last input is set
	initialise(codegen.NewContext(newEnv(t, c, false)), code)
	assert.False(t, code.Contains("call $Main_0_run"))
	assert.True(t, code.Contains("call $Main_0_create"))
	//
	code = codegen.NewCode()
	setInputSignal(codegen.NewContext(newEnv(t, c, false)), code)
	assert.True(t, code.Contains("call $Main_0_run"))
}

func Test_Wat_Init_02(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		code = codegen.NewCode()
	)
	//
	c.NumberOfMainInputs = 0
	c.Inputs = nil
	initialise(codegen.NewContext(newEnv(t, c, false)), code)
	//
	assert.True(t, code.Contains("call $Main_0_run"))
}

func Test_Wat_Selection_01(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		u    = newUnit(t, c, c.Templates[1])
		code = codegen.NewCode()
		size = ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2})
	)
	//
	u.size(code, 0, size, "$sub_cmp_load")
	//
	assert.Equal(t, []string{
		"local.get $sub_cmp_load", "i32.load offset=0", "local.set $tid",
		"local.get $tid", "i32.const 1", "i32.eq", "if (result i32)", "i32.const 2", "else",
		"local.get $tid", "i32.const 2", "i32.eq", "if (result i32)", "i32.const 0", "else",
		"unreachable", "end", "end",
	}, code.Texts())
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Wat_VectorEq_01(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[1])
	)
	//
	code := u.compute(vectorEq(ir.Single(3)))
	texts := code.Texts()
	//
	assert.True(t, code.Contains("call $Fr_eq"))
	assert.True(t, code.Contains("local.set $counter"))
	assert.Equal(t, []string{"local.get $expaux", "i32.const 40", "i32.add"}, texts[len(texts)-3:])
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Wat_VectorEq_02(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[1])
	)
	// Empty vectors are equal
	code := u.compute(vectorEq(ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2})))
	//
	assert.True(t, code.Contains("if (result i32)"))
	assert.True(t, code.Contains(fmt.Sprintf("i32.const %d", u.ctx.Layout.SignalMemoryStart())))
}

func Test_Wat_VectorEq_03(t *testing.T) {
	var (
		c = test.TriggerCircuit()
		u = newUnit(t, c, c.Templates[1])
	)
	// Selecting the size keeps both operand addresses intact
	code := u.compute(vectorEq(ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2, Size: 3})))
	texts := code.Texts()
	eq := slices.Index(texts, "call $Fr_eq")
	//
	require.NotEqual(t, -1, eq)
	assert.True(t, code.Contains("local.set $tid"))
	//
	for _, local := range []string{"$aux_0", "$aux_1"} {
		var sets int
		//
		for _, text := range texts[:eq] {
			if text == "local.set "+local {
				sets++
			}
		}
		//
		assert.Equal(t, 1, sets, local)
	}
}

func Test_Wat_Trigger_03(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		u    = newUnit(t, c, c.Templates[0])
		code = codegen.NewCode()
		size = codegen.NewCode()
		meta = ir.Meta{Line: 7, MessageId: 1}
		plan = trigger.Plan{Decrement: true, Check: trigger.CheckZero, Run: trigger.RunAlways,
			Dispatch: trigger.Indirect}
	)
	// A last write of no elements neither counts nor runs
	size.Add("local.get $store_size")
	u.trigger(code, meta, plan, 0, size, true)
	//
	assert.Equal(t, []string{
		"local.get $store_size", "if",
		// decrement
		"local.get $sub_cmp", "local.get $sub_cmp", "i32.load offset=8", "local.get $store_size", "i32.sub",
		"i32.store offset=8",
		// check
		"local.get $sub_cmp", "i32.load offset=8", "if", "unreachable", "end",
		// run
		"local.get $sub_cmp", "local.get $sub_cmp", "i32.load offset=0", "call_indirect $runsmap (type $_t_i32ri32)",
		"local.tee $merror", "if",
		"i32.const 1", "i32.const 7", "call $buildBufferMessage", "call $printErrorMessage",
		"local.get $merror", "return", "end",
		"end",
	}, code.Texts())
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Wat_Trigger_04(t *testing.T) {
	var (
		c    = test.TriggerCircuit()
		u    = newUnit(t, c, c.Templates[0])
		code = codegen.NewCode()
		size = codegen.NewCode()
		plan = trigger.Plan{Run: trigger.RunAlways, Dispatch: trigger.Indirect}
	)
	// A size known to be positive needs no guard
	size.Add("local.get $store_size")
	u.trigger(code, ir.Meta{}, plan, 0, size, false)
	//
	assert.Equal(t, "local.get $sub_cmp", code.Texts()[0])
	assert.False(t, code.Contains("local.get $store_size"))
}

func Test_Wat_Invalid_01(t *testing.T) {
	var (
		c     = test.TriggerCircuit()
		store = c.Templates[0].Body[1].(*ir.Store)
		sub   = store.DestAddressType.(ir.SubcmpSignal)
	)
	//
	sub.Input = ir.Input(ir.Unknown, false)
	store.DestAddressType = sub
	//
	checkInvariant(t, c)
}

func Test_Wat_Invalid_02(t *testing.T) {
	c := test.FunctionCircuit()
	c.Functions[0].MaxNumberOfOpsInExpression = 0
	//
	checkInvariant(t, c)
}

func Test_Wat_Invalid_03(t *testing.T) {
	c := test.TriggerCircuit()
	c.Templates[0].Body[0].(*ir.CreateCmp).Symbol = "missing"
	//
	checkInvariant(t, c)
}

func Test_Wat_Invalid_04(t *testing.T) {
	c := test.BusCircuit()
	// sub.p.x, where p is an array of buses
	c.Templates[0].Body[1].(*ir.Store).Dest = &ir.Mapped{SignalCode: 1, Accesses: []ir.Access{
		&ir.QualifiedAccess{Field: 0},
	}}
	//
	checkInvariant(t, c)
}

// ============================================================================
// Helpers
// ============================================================================

func lower(t *testing.T, c *circuit.Circuit, comments bool) string {
	var (
		env     = newEnv(t, c, comments)
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

// checkBlocks checks every block, loop and if is closed.
func checkBlocks(t *testing.T, out string) {
	var depth int
	//
	for _, line := range strings.Split(out, "\n") {
		switch strings.TrimSpace(line) {
		case "block", "loop", "if", "if (result i32)":
			depth++
		case "end":
			depth--
			require.GreaterOrEqual(t, depth, 0)
		}
	}
	//
	assert.Equal(t, 0, depth)
}

func checkInvariant(t *testing.T, c *circuit.Circuit) {
	var ierr *ir.InvariantError
	//
	err := func() (err error) {
		defer ir.Recover(&err)
		lower(t, c, false)
		//
		return nil
	}()
	//
	require.Error(t, err)
	assert.True(t, errors.As(err, &ierr))
}

func newEnv(t *testing.T, c *circuit.Circuit, comments bool) *codegen.Env {
	counts, err := layout.CountsOf(c, layout.DefaultOptions())
	require.NoError(t, err)
	//
	env, err := codegen.NewEnv(c, layout.Plan(counts), codegen.Options{Comments: comments})
	require.NoError(t, err)
	//
	return env
}

func newUnit(t *testing.T, c *circuit.Circuit, tmpl *circuit.TemplateCode) *unit {
	return &unit{ctx: codegen.NewContext(newEnv(t, c, false)), template: tmpl}
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
