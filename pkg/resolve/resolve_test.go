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
package resolve

import (
	"errors"
	"testing"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Flatten_01(t *testing.T) {
	flat, err := Flatten([]uint{1, 2, 3}, []uint{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, uint(23), flat)
}

func Test_Flatten_02(t *testing.T) {
	// trailing dimension folded into the multiplier
	flat, err := Flatten([]uint{1, 2}, []uint{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, uint(5*4), flat)
	//
	flat, err = Flatten(nil, []uint{2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint(0), flat)
}

func Test_Flatten_03(t *testing.T) {
	_, err := Flatten([]uint{1, 2, 3}, []uint{2, 3})
	assert.Error(t, err)
	//
	_, err = Flatten([]uint{2}, []uint{2, 3})
	assert.Error(t, err)
}

func Test_Resolve_01(t *testing.T) {
	addr := Resolve(1, ir.Variable{}, ir.NewIndexed(3))
	assert.Equal(t, LocalFrame, addr.Base)
	assert.False(t, addr.IsMapped())
	assert.Equal(t, "lvar+3", addr.String())
	//
	addr = Resolve(1, ir.Signal{}, ir.NewIndexed(0))
	assert.Equal(t, OwnSignals, addr.Base)
}

func Test_Resolve_02(t *testing.T) {
	sub := ir.SubcmpSignal{Cmp: ir.NewU32(2), Input: ir.NoInput()}
	addr := Resolve(1, sub, &ir.Indexed{Location: ir.NewU32(1), TemplateHeader: util.Some("A_1")})
	//
	assert.Equal(t, SubcmpSignals, addr.Base)
	assert.Equal(t, "A_1", addr.TemplateHeader.Unwrap())
	assert.Equal(t, "subcmp[2]+1", addr.String())
}

func Test_Resolve_03(t *testing.T) {
	sub := ir.SubcmpSignal{Cmp: ir.NewU32(0), Input: ir.NoInput()}
	loc := &ir.Mapped{SignalCode: 1, Accesses: []ir.Access{
		&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(1)}, SymbolDim: 1},
		&ir.QualifiedAccess{Field: 1},
		&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(0)}, SymbolDim: 2},
	}}
	//
	addr := Resolve(1, sub, loc)
	require.True(t, addr.IsMapped())
	require.Len(t, addr.Mapped.Steps, 3)
	assert.False(t, addr.Mapped.Steps[0].IsLast())
	assert.True(t, addr.Mapped.Steps[2].IsLast())
	assert.Equal(t, uint(1), addr.Mapped.Steps[2].(*IndexStep).Trailing())
	assert.Equal(t, "subcmp[0]#1[1]/1.1[0]/2", addr.String())
}

func Test_Resolve_04(t *testing.T) {
	sub := ir.SubcmpSignal{Cmp: ir.NewU32(0), Input: ir.NoInput()}
	// Mapped outside a subcomponent
	checkInvariant(t, func() { Resolve(1, ir.Signal{}, &ir.Mapped{}) })
	// Too many indexes
	checkInvariant(t, func() {
		Resolve(1, sub, &ir.Mapped{Accesses: []ir.Access{
			&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(0), ir.NewU32(0)}, SymbolDim: 1},
		}})
	})
	// Partial indexes before the final access
	checkInvariant(t, func() {
		Resolve(1, sub, &ir.Mapped{Accesses: []ir.Access{
			&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(0)}, SymbolDim: 2},
			&ir.QualifiedAccess{Field: 0},
		}})
	})
	// Consecutive indexed accesses
	checkInvariant(t, func() {
		Resolve(1, sub, &ir.Mapped{Accesses: []ir.Access{
			&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(0)}, SymbolDim: 1},
			&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(0)}, SymbolDim: 1},
		}})
	})
	// Indexed only
	checkInvariant(t, func() { ResolveIndexed(1, sub, &ir.Mapped{}) })
}

func Test_Tables_01(t *testing.T) {
	// Addressing equivalence: p[i].f resolved through the tables matches the
	// offsets used directly within P (s=0, p[0].x=1, p[0].y=2, p[1].x=3,
	// p[1].y=4).
	tables, err := NewTables(test.BusCircuit())
	require.NoError(t, err)
	//
	for i := uint(0); i < 2; i++ {
		for f := uint(0); f < 2; f++ {
			m := mapped(1, &ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(i)}, SymbolDim: 1},
				&ir.QualifiedAccess{Field: f})
			offset, err := tables.MappedOffset(1, m, Constant)
			require.NoError(t, err)
			assert.Equal(t, 1+2*i+f, offset)
		}
	}
	// Output s
	offset, err := tables.MappedOffset(1, mapped(0), Constant)
	require.NoError(t, err)
	assert.Equal(t, uint(0), offset)
}

func Test_Tables_02(t *testing.T) {
	// Polymorphic: in[j] has the same offset in both templates
	tables, err := NewTables(test.PolymorphicCircuit())
	require.NoError(t, err)
	//
	for _, template := range []uint{1, 2} {
		offset, err := tables.MappedOffset(template,
			mapped(1, &ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(1)}, SymbolDim: 1}), Constant)
		require.NoError(t, err)
		assert.Equal(t, uint(2), offset)
	}
	// in[2] only exists in B_2
	_, err = tables.MappedOffset(1,
		mapped(1, &ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(2)}, SymbolDim: 1}), Constant)
	assert.Error(t, err)
	// Main is not in the IO map
	_, err = tables.MappedOffset(0, mapped(0), Constant)
	assert.Error(t, err)
}

func Test_Tables_03(t *testing.T) {
	// Partial index over a bus array, plus field access on a signal.
	c := &circuit.Circuit{
		IOMap: map[uint][]circuit.IOField{
			0: {{Code: 0, Offset: 3, Lengths: []uint{2, 3, 4}, Size: 2}},
		},
	}
	tables, err := NewTables(c)
	require.NoError(t, err)
	//
	offset, err := tables.MappedOffset(0,
		mapped(0, &ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(1), ir.NewU32(2)}, SymbolDim: 3}), Constant)
	require.NoError(t, err)
	assert.Equal(t, uint(3+20*2), offset)
	//
	_, err = tables.MappedOffset(0, mapped(0, &ir.QualifiedAccess{Field: 0}), Constant)
	assert.Error(t, err)
}

func Test_Tables_04(t *testing.T) {
	tables, err := NewTables(test.BusCircuit())
	require.NoError(t, err)
	// p[1].y
	indexed := mapped(1, &ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(1)}, SymbolDim: 1},
		&ir.QualifiedAccess{Field: 1})
	assert.NoError(t, tables.CheckFieldSteps(indexed))
	// p.y selects no element of p
	unindexed := mapped(1, &ir.QualifiedAccess{Field: 1})
	assert.Error(t, tables.CheckFieldSteps(unindexed))
	//
	_, err = tables.MappedOffset(1, unindexed, Constant)
	assert.Error(t, err)
	// Signal s is not a bus, so no template can hold it
	assert.NoError(t, tables.CheckFieldSteps(mapped(0, &ir.QualifiedAccess{Field: 0})))
}

func Test_Tables_05(t *testing.T) {
	// A single bus needs no index before its fields
	c := &circuit.Circuit{
		IOMap: map[uint][]circuit.IOField{
			0: {{Code: 0, Offset: 4, Size: 2, BusId: util.Some[uint](0)}},
		},
		BusFields: [][]circuit.BusField{{
			{Name: "x", Offset: 0, Size: 1},
			{Name: "y", Offset: 1, Size: 1},
		}},
	}
	tables, err := NewTables(c)
	require.NoError(t, err)
	//
	m := mapped(0, &ir.QualifiedAccess{Field: 1})
	assert.NoError(t, tables.CheckFieldSteps(m))
	//
	offset, err := tables.MappedOffset(0, m, Constant)
	require.NoError(t, err)
	assert.Equal(t, uint(5), offset)
}

func Test_Constant_01(t *testing.T) {
	// (2 * 3) + 4
	e := &ir.Compute{Op: ir.Op(ir.AddAddress), Stack: []ir.Instruction{
		&ir.Compute{Op: ir.Op(ir.MulAddress), Stack: []ir.Instruction{ir.NewU32(2), ir.NewU32(3)}},
		ir.NewU32(4),
	}}
	v, err := Constant(e)
	require.NoError(t, err)
	assert.Equal(t, uint(10), v)
	//
	_, err = Constant(&ir.Load{Context: ir.Sized(1), Address: ir.Variable{}, Src: ir.NewIndexed(0)})
	assert.Error(t, err)
	//
	_, err = Constant(ir.NewConstant(0, 0))
	assert.Error(t, err)
}

func mapped(code uint, accesses ...ir.Access) *MappedAddress {
	sub := ir.SubcmpSignal{Cmp: ir.NewU32(0), Input: ir.NoInput()}
	//
	return Resolve(0, sub, &ir.Mapped{SignalCode: code, Accesses: accesses}).Mapped
}

func checkInvariant(t *testing.T, fn func()) {
	var err error
	//
	func() {
		defer ir.Recover(&err)
		//
		fn()
	}()
	//
	var ie *ir.InvariantError
	//
	assert.True(t, errors.As(err, &ie), "expected invariant error")
}
