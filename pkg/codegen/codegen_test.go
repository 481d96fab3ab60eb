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
package codegen

import (
	"bytes"
	"testing"

	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Code_01(t *testing.T) {
	code := NewCode()
	code.Open("loop")
	code.Add("x")
	code.Open("if")
	code.Add("y")
	code.Else("else")
	code.Add("z")
	code.Close("end")
	code.Close("end")
	//
	assert.Equal(t, "loop\n  x\n  if\n    y\n  else\n    z\n  end\nend\n", code.String())
	assert.Equal(t, uint(0), code.Depth())
}

func Test_Code_02(t *testing.T) {
	inner := NewCode()
	inner.Open("{")
	inner.Add("a;")
	//
	outer := NewCode()
	outer.Open("{")
	outer.Append(inner)
	outer.Add("b;")
	outer.Close("}")
	outer.Close("}")
	//
	assert.Equal(t, "{\n  {\n    a;\n    b;\n  }\n}\n", outer.String())
	assert.True(t, outer.Contains("b;"))
	assert.False(t, outer.Contains("c;"))
}

func Test_Code_03(t *testing.T) {
	code := NewCode()
	//
	assert.Panics(t, func() { code.Close("end") })
	assert.True(t, code.IsEmpty())
}

func Test_Writer_01(t *testing.T) {
	var (
		buf  bytes.Buffer
		code = NewCode()
		w    = NewWriter("\t")
	)
	//
	code.Open("(module")
	code.Add("(memory 1)")
	code.Close(")")
	w.WriteLine(";; header")
	w.WriteCode(code)
	//
	n, err := w.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, ";; header\n(module\n\t(memory 1)\n)\n", buf.String())
}

func Test_Context_01(t *testing.T) {
	ctx := newContext(t)
	//
	assert.Equal(t, "x_0", ctx.FreshName("x"))
	assert.Equal(t, "x_1", ctx.FreshName("x"))
	assert.Equal(t, uint(2), ctx.Fresh())
	// Fresh names are scoped to their context
	assert.Equal(t, "x_0", NewContext(ctx.Env).FreshName("x"))
}

func Test_Context_02(t *testing.T) {
	ctx := newContext(t)
	//
	assert.True(t, ctx.LineChanged(4))
	assert.False(t, ctx.LineChanged(4))
	assert.True(t, ctx.LineChanged(5))
	assert.True(t, ctx.LineChanged(4))
}

func Test_Env_01(t *testing.T) {
	c := test.TriggerCircuit()
	c.Prime = "unknown"
	//
	counts, err := layout.CountsOf(test.TriggerCircuit(), layout.DefaultOptions())
	require.NoError(t, err)
	//
	_, err = NewEnv(c, layout.Plan(counts), Options{})
	assert.Error(t, err)
}

func Test_StoreSize_01(t *testing.T) {
	var poly = ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2, Size: 3})
	//
	checkStoreSize(t, ir.Single(2), ir.Single(3), 2, true)
	checkStoreSize(t, ir.Single(0), poly, 0, true)
	checkStoreSize(t, poly, ir.Single(0), 0, true)
	checkStoreSize(t, poly, ir.Single(3), 0, false)
	checkStoreSize(t, ir.Multiple(ir.Variant{Template: 1}), poly, 0, true)
}

func Test_HasZeroVariant_01(t *testing.T) {
	assert.True(t, HasZeroVariant(ir.Single(0)))
	assert.False(t, HasZeroVariant(ir.Single(1)))
	assert.True(t, HasZeroVariant(ir.Multiple(ir.Variant{Template: 1, Size: 2}, ir.Variant{Template: 2})))
	assert.False(t, HasZeroVariant(ir.Multiple(ir.Variant{Template: 1, Size: 2})))
}

func Test_Exception_01(t *testing.T) {
	assert.Equal(t, uint(4), uint(ASSERT_FAILED))
	assert.Equal(t, "assert failed", ASSERT_FAILED.String())
	assert.Equal(t, "unknown exception", ExceptionCode(99).String())
}

func checkStoreSize(t *testing.T, dest ir.Size, src ir.Size, expected uint, static bool) {
	n, ok := StoreSize(dest, src)
	//
	assert.Equal(t, static, ok)
	//
	if static {
		assert.Equal(t, expected, n)
	}
}

func newContext(t *testing.T) *Context {
	c := test.TriggerCircuit()
	//
	counts, err := layout.CountsOf(c, layout.DefaultOptions())
	require.NoError(t, err)
	//
	env, err := NewEnv(c, layout.Plan(counts), Options{})
	require.NoError(t, err)
	//
	return NewContext(env)
}

func Test_FrOperation_01(t *testing.T) {
	assert.Equal(t, "Fr_mul", FrOperation(0, ir.Mul))
	assert.Equal(t, "Fr_neg", FrOperation(0, ir.PrefixSub))
	assert.Panics(t, func() { FrOperation(3, ir.AddAddress) })
}
