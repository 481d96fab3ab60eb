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
package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/consensys/go-witgen/pkg/util/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_01(t *testing.T) {
	config := DefaultConfig()
	//
	assert.NoError(t, config.Validate())
	assert.Equal(t, "native", config.Backend)
	assert.Equal(t, uint(field.DEFAULT_FR_MEMORY_SIZE), config.FrMemorySize)
	assert.Equal(t, uint(256), config.MessageBufferBytes)
	assert.Equal(t, uint(240), config.MessageBytes)
}

func Test_Config_02(t *testing.T) {
	config := DefaultConfig()
	config.Backend = "llvm"
	config.Prime = "secp256k1"
	config.Jobs = 0
	//
	err := config.Validate()
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend \"llvm\"")
	assert.Contains(t, err.Error(), "unknown prime \"secp256k1\"")
	assert.Contains(t, err.Error(), "jobs must be positive")
}

func Test_Config_03(t *testing.T) {
	var (
		config   = DefaultConfig()
		filename = writeConfig(t, "backend = \"cvm\"\ncomments = true\njobs = 3\nmessage_bytes = 128\n")
	)
	//
	require.NoError(t, LoadConfig(filename, &config))
	assert.Equal(t, "cvm", config.Backend)
	assert.True(t, config.Comments)
	assert.Equal(t, uint(3), config.Jobs)
	assert.Equal(t, uint(128), config.MessageBytes)
	// Missing keys retain their defaults
	assert.Equal(t, uint(256), config.MessageBufferBytes)
	assert.True(t, config.AuditTriggers)
}

func Test_Config_04(t *testing.T) {
	var (
		config   = DefaultConfig()
		filename = writeConfig(t, "backend = \"wasm\"\nthreads = 4\n")
	)
	//
	err := LoadConfig(filename, &config)
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration key(s) threads")
}

func Test_Config_05(t *testing.T) {
	var (
		config   = DefaultConfig()
		filename = writeConfig(t, "backend = \n")
	)
	//
	assert.Error(t, LoadConfig(filename, &config))
}

func Test_Compile_01(t *testing.T) {
	for backend, fragment := range map[string]string{
		"native": "void A_1_run(uint ctx_index,Circom_CalcWit* ctx){",
		"wasm":   "(func $A_1_run",
		"cvm":    "%%template A_1",
	} {
		out := compile(t, test.TriggerCircuit(), backend, 2)
		assert.Contains(t, out, fragment, backend)
	}
}

func Test_Compile_02(t *testing.T) {
	for _, backend := range BACKENDS {
		var (
			c       = test.FunctionCircuit()
			config  = newConfig(backend, 1)
			out, _  = Compile(context.Background(), c, config)
			out1, _ = Compile(context.Background(), c, newConfig(backend, 4))
		)
		// Output does not depend on the number of jobs
		require.NotNil(t, out)
		require.NotNil(t, out1)
		assert.Equal(t, render(t, out), render(t, out1), backend)
	}
}

func Test_Compile_03(t *testing.T) {
	var ierr *ir.InvariantError
	// Mapped locations are not supported by the cvm backend
	_, err := Compile(context.Background(), test.PolymorphicCircuit(), newConfig("cvm", 2))
	//
	require.Error(t, err)
	assert.True(t, errors.As(err, &ierr))
	assert.Contains(t, err.Error(), "lowering Main_0")
}

func Test_Compile_04(t *testing.T) {
	var (
		c      = test.TriggerCircuit()
		config = newConfig("cvm", 1)
	)
	//
	config.Prime = "bls12381"
	out := compile(t, c, "cvm", 1)
	overridden, err := Compile(context.Background(), c, config)
	//
	require.NoError(t, err)
	assert.Contains(t, out, "%%prime "+field.BN128.Prime())
	assert.Contains(t, render(t, overridden), "%%prime "+field.BLS12_381.Prime())
	// The circuit itself is unchanged
	assert.Equal(t, "bn128", c.Prime)
}

func Test_Compile_05(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	//
	_, err := Compile(ctx, test.TriggerCircuit(), newConfig("native", 2))
	//
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Compile_06(t *testing.T) {
	var (
		c      = test.TriggerCircuit()
		config = newConfig("wasm", 2)
	)
	// Last write of only one element of x[2]
	c.Templates[0].Body[1].(*ir.Store).Context = ir.Sized(1)
	//
	out, err := Compile(context.Background(), c, config)
	require.NoError(t, err)
	assert.Len(t, out.Findings, 2)
	//
	config.AuditTriggers = false
	out, err = Compile(context.Background(), c, config)
	require.NoError(t, err)
	assert.Empty(t, out.Findings)
}

func Test_Compile_07(t *testing.T) {
	c := test.TriggerCircuit()
	c.MainHeader = "Missing_0"
	//
	_, err := Compile(context.Background(), c, newConfig("native", 1))
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid circuit")
}

func Test_Compile_08(t *testing.T) {
	var (
		c      = test.TriggerCircuit()
		config = newConfig("native", 2)
	)
	// The thread bound reaches the generated entry point
	config.MaxThreads = 1
	one, err := Compile(context.Background(), c, config)
	require.NoError(t, err)
	//
	config.MaxThreads = 64
	many, err := Compile(context.Background(), c, config)
	require.NoError(t, err)
	//
	assert.Contains(t, render(t, one), "ctx->maxThread = 1;")
	assert.Contains(t, render(t, many), "ctx->maxThread = 64;")
	assert.NotEqual(t, render(t, one), render(t, many))
}

// ============================================================================
// Helpers
// ============================================================================

func newConfig(backend string, jobs uint) Config {
	config := DefaultConfig()
	config.Backend = backend
	config.Jobs = jobs
	//
	return config
}

func compile(t *testing.T, c *circuit.Circuit, backend string, jobs uint) string {
	out, err := Compile(context.Background(), c, newConfig(backend, jobs))
	require.NoError(t, err)
	//
	return render(t, out)
}

func render(t *testing.T, out *Output) string {
	var buf bytes.Buffer
	//
	_, err := out.WriteTo(&buf)
	require.NoError(t, err)
	//
	return buf.String()
}

func writeConfig(t *testing.T, contents string) string {
	filename := filepath.Join(t.TempDir(), "witgen.toml")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0o644))
	//
	return filename
}
