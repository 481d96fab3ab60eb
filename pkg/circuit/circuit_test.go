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
package circuit

import (
	"testing"

	"github.com/consensys/go-witgen/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Validate_01(t *testing.T) {
	assert.NoError(t, newCircuit().Validate())
}

func Test_Validate_02(t *testing.T) {
	c := newCircuit()
	c.Prime = "secp256k1"
	c.MainHeader = "Missing_9"
	//
	err := c.Validate()
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown prime \"secp256k1\"")
	assert.Contains(t, err.Error(), "unknown main template \"Missing_9\"")
}

func Test_Validate_03(t *testing.T) {
	c := newCircuit()
	c.Templates[1].Id = 5
	c.IOMap[7] = nil
	//
	err := c.Validate()
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template A_1 has id 5 at position 1")
	assert.Contains(t, err.Error(), "IO map refers to unknown template 7")
}

func Test_Validate_04(t *testing.T) {
	c := newCircuit()
	c.IOMap[1][0].BusId = util.Some[uint](3)
	c.Witness = append(c.Witness, 9)
	//
	err := c.Validate()
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bus 3")
	assert.Contains(t, err.Error(), "witness signal 9 out of range")
}

func Test_Validate_05(t *testing.T) {
	c := newCircuit()
	// Listed out of order, but codes are still 0..n-1
	c.IOMap[1][0], c.IOMap[1][1] = c.IOMap[1][1], c.IOMap[1][0]
	assert.NoError(t, c.Validate())
	// Duplicated code
	c.IOMap[0][1].Code = 0
	//
	err := c.Validate()
	//
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template 0 has signal codes out of sequence")
}

func Test_IOFields_01(t *testing.T) {
	c := newCircuit()
	c.IOMap[1][0], c.IOMap[1][1] = c.IOMap[1][1], c.IOMap[1][0]
	//
	fields, err := c.IOFields(1)
	require.NoError(t, err)
	//
	assert.Equal(t, []uint{0, 1}, []uint{fields[0].Code, fields[1].Code})
	assert.Equal(t, uint(1), fields[1].Offset)
	// The map itself is left untouched
	assert.Equal(t, uint(1), c.IOMap[1][0].Code)
	// Gap
	c.IOMap[1][0].Code = 2
	_, err = c.IOFields(1)
	assert.Error(t, err)
}

func Test_Circuit_01(t *testing.T) {
	c := newCircuit()
	//
	assert.Equal(t, "bn128", c.Field().Name)
	assert.Equal(t, "A_1", c.Template("A_1").Header)
	assert.Equal(t, "Main_0", c.TemplateById(0).Header)
	assert.Nil(t, c.Template("B_2"))
	assert.Nil(t, c.Function("f_0"))
	assert.Equal(t, []uint{0, 1}, c.IOTemplates())
	assert.Equal(t, uint(4), c.NumberOfIOSignals())
	assert.Equal(t, uint(2), c.NumberOfBusFields())
	assert.Equal(t, uint(3), c.Template("A_1").NumberOfSignals())
}

func Test_Wire_01(t *testing.T) {
	w := Wire{Name: "p", Dimensions: []uint{2, 3}, Size: 2, BusId: util.Some[uint](0)}
	//
	assert.Equal(t, uint(6), w.Length())
	assert.Equal(t, uint(12), w.TotalSize())
	assert.True(t, w.IsBus())
}

func Test_Wire_02(t *testing.T) {
	w := Wire{Name: "x", Size: 1}
	//
	assert.Equal(t, uint(1), w.Length())
	assert.Equal(t, uint(1), w.TotalSize())
	assert.False(t, w.IsBus())
}

func Test_InfoWords_01(t *testing.T) {
	assert.Equal(t, uint(1), InfoWords(nil, false))
	assert.Equal(t, uint(2), InfoWords(nil, true))
	assert.Equal(t, uint(3), InfoWords([]uint{2, 3}, false))
	assert.Equal(t, uint(4), InfoWords([]uint{2, 3}, true))
}

func Test_Function_01(t *testing.T) {
	scalar := FunctionCode{Header: "sq_0"}
	array := FunctionCode{Header: "pair_1", Returns: []uint{2}}
	param := Param{Name: "m", Dimensions: []uint{2, 2}}
	//
	assert.False(t, scalar.ReturnsArray())
	assert.True(t, array.ReturnsArray())
	assert.Equal(t, uint(4), param.Length())
}

// ============================================================================
// Test Helpers
// ============================================================================

func newCircuit() *Circuit {
	return &Circuit{
		Prime:      "bn128",
		MainHeader: "Main_0",
		Templates: []*TemplateCode{
			{Id: 0, Header: "Main_0", NumberOfInputs: 1, NumberOfOutputs: 1},
			{Id: 1, Header: "A_1", NumberOfInputs: 2, NumberOfOutputs: 1},
		},
		IOMap: map[uint][]IOField{
			0: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Size: 1}},
			1: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Size: 2, BusId: util.Some[uint](0)}},
		},
		BusFields:    [][]BusField{{{Name: "x", Offset: 0, Size: 1}, {Name: "y", Offset: 1, Size: 1}}},
		Witness:      []uint{0, 1, 2},
		TotalSignals: 6,
	}
}
