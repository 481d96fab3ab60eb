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
package binfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/compiler"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Round trips
// ============================================================================

func Test_Json_01(t *testing.T) {
	checkJsonRoundTrip(t, test.TriggerCircuit())
}

func Test_Json_02(t *testing.T) {
	checkJsonRoundTrip(t, test.PolymorphicCircuit())
}

func Test_Json_03(t *testing.T) {
	checkJsonRoundTrip(t, test.BusCircuit())
}

func Test_Json_04(t *testing.T) {
	checkJsonRoundTrip(t, test.FunctionCircuit())
}

func Test_Binary_01(t *testing.T) {
	checkBinaryRoundTrip(t, test.TriggerCircuit())
}

func Test_Binary_02(t *testing.T) {
	checkBinaryRoundTrip(t, test.PolymorphicCircuit())
}

func Test_Binary_03(t *testing.T) {
	checkBinaryRoundTrip(t, test.BusCircuit())
}

func Test_Binary_04(t *testing.T) {
	checkBinaryRoundTrip(t, test.FunctionCircuit())
}

func Test_Binary_05(t *testing.T) {
	data, err := EncodeBinary(test.TriggerCircuit(), map[string]string{"source": "trigger.circom"})
	require.NoError(t, err)
	//
	var binf BinaryFile
	//
	require.NoError(t, binf.UnmarshalBinary(data))
	metadata, err := binf.Header.GetMetaData()
	require.NoError(t, err)
	assert.Equal(t, "trigger.circom", metadata["source"])
}

// ============================================================================
// Malformed documents
// ============================================================================

func Test_Invalid_01(t *testing.T) {
	checkInvalid(t, `{"kind":"bogus","line":7}`, "template M_0: line 7: unknown instruction kind \"bogus\"")
}

func Test_Invalid_02(t *testing.T) {
	checkInvalid(t, `{"kind":"load","line":3,"size":1,"address":{"kind":"signal"}}`, "line 3: missing location")
}

func Test_Invalid_03(t *testing.T) {
	checkInvalid(t, `{"kind":"compute","line":2,"op":"EXP","stack":[]}`, "line 2: unknown operator \"EXP\"")
}

func Test_Invalid_04(t *testing.T) {
	checkInvalid(t, `{"kind":"assert","line":5}`, "missing instruction")
}

func Test_Invalid_05(t *testing.T) {
	checkInvalid(t, `{"kind":"load","line":4,"size":"big","address":{"kind":"signal"}}`, "malformed size")
}

func Test_Invalid_06(t *testing.T) {
	binf := NewBinaryFile(nil, test.TriggerCircuit())
	binf.Header.MajorVersion = BINFILE_MAJOR_VERSION + 1
	//
	data, err := binf.MarshalBinary()
	require.NoError(t, err)
	//
	_, err = ParseCircuit(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible binary file")
}

func Test_Invalid_07(t *testing.T) {
	_, err := ParseCircuit(WGBINARY[:])
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed binary file")
}

func Test_Invalid_08(t *testing.T) {
	_, err := ReadCircuitFile(filepath.Join(t.TempDir(), "missing.json"))
	//
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ============================================================================
// Test Helpers
// ============================================================================

func checkJsonRoundTrip(t *testing.T, c *circuit.Circuit) {
	data, err := EncodeJson(c)
	require.NoError(t, err)
	//
	decoded, err := ParseCircuit(data)
	require.NoError(t, err)
	// Re-encoding gives back the same document
	again, err := EncodeJson(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	//
	checkEquivalent(t, c, decoded)
}

func checkBinaryRoundTrip(t *testing.T, c *circuit.Circuit) {
	data, err := EncodeBinary(c, nil)
	require.NoError(t, err)
	assert.True(t, IsBinaryFile(data))
	//
	decoded, err := ParseCircuit(data)
	require.NoError(t, err)
	//
	checkEquivalent(t, c, decoded)
}

// Two circuits are equivalent when their bodies print the same and they lower
// to the same code.
func checkEquivalent(t *testing.T, expected *circuit.Circuit, actual *circuit.Circuit) {
	require.Equal(t, len(expected.Templates), len(actual.Templates))
	require.Equal(t, len(expected.Functions), len(actual.Functions))
	//
	for i, tmpl := range expected.Templates {
		assert.Equal(t, bodyString(tmpl.Body), bodyString(actual.Templates[i].Body), tmpl.Header)
	}
	//
	for i, fn := range expected.Functions {
		assert.Equal(t, bodyString(fn.Body), bodyString(actual.Functions[i].Body), fn.Header)
	}
	//
	assert.Equal(t, lower(t, expected), lower(t, actual))
}

func bodyString(insns []ir.Instruction) string {
	var lines = make([]string, len(insns))
	//
	for i, insn := range insns {
		lines[i] = insn.String()
	}
	//
	return strings.Join(lines, "\n")
}

func lower(t *testing.T, c *circuit.Circuit) string {
	var (
		config  = compiler.DefaultConfig()
		builder strings.Builder
	)
	//
	config.Jobs = 1
	out, err := compiler.Compile(context.Background(), c, config)
	require.NoError(t, err)
	_, err = out.WriteTo(&builder)
	require.NoError(t, err)
	//
	return builder.String()
}

func checkInvalid(t *testing.T, node string, expected string) {
	document := `{"prime":"bn128","main_header":"M_0","templates":[{"id":0,"header":"M_0","body":[` +
		node + `]}]}`
	//
	_, err := ParseCircuit([]byte(document))
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), expected)
}
