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
package ir

import (
	"errors"
	"testing"

	"github.com/consensys/go-witgen/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Size_01(t *testing.T) {
	s := Single(3)
	assert.True(t, s.IsSingle())
	assert.Equal(t, uint(3), s.Value())
	assert.Equal(t, uint(3), s.Max())
	assert.False(t, s.IsZero())
	assert.Equal(t, "3", s.String())
}

func Test_Size_02(t *testing.T) {
	s := Multiple(Variant{0, 2}, Variant{1, 3})
	assert.False(t, s.IsSingle())
	assert.Equal(t, uint(3), s.Max())
	assert.Equal(t, "{0:2,1:3}", s.String())
	//
	n, ok := s.For(1)
	assert.True(t, ok)
	assert.Equal(t, uint(3), n)
	//
	_, ok = s.For(7)
	assert.False(t, ok)
}

func Test_Size_03(t *testing.T) {
	assert.True(t, Single(0).IsZero())
	assert.True(t, Multiple(Variant{0, 0}, Variant{2, 0}).IsZero())
	assert.False(t, Multiple(Variant{0, 0}, Variant{2, 1}).IsZero())
}

func Test_Size_04(t *testing.T) {
	var err error
	//
	func() {
		defer Recover(&err)
		//
		Multiple(Variant{0, 1}).Value()
	}()
	//
	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
}

func Test_Operator_01(t *testing.T) {
	assert.False(t, Op(Add).IsVectorEq())
	assert.False(t, EqOp(Single(1)).IsVectorEq())
	assert.True(t, EqOp(Single(4)).IsVectorEq())
	assert.True(t, EqOp(Single(0)).IsVectorEq())
	assert.True(t, EqOp(Multiple(Variant{0, 1})).IsVectorEq())
	assert.Equal(t, "EQ(4)", EqOp(Single(4)).String())
	assert.Equal(t, "ADD_ADDRESS", Op(AddAddress).String())
	assert.True(t, AddAddress.IsAddress())
	assert.False(t, Add.IsAddress())
	assert.True(t, PrefixSub.IsUnary())
}

func Test_Walk_01(t *testing.T) {
	// store sub[1].x[0] := a + C[0]
	store := &Store{
		Context:    Sized(1),
		SrcContext: Sized(1),
		DestAddressType: SubcmpSignal{
			Cmp:             NewU32(1),
			UniformParallel: util.Some(false),
			Input:           Input(Last, true),
		},
		Dest: &Mapped{SignalCode: 0, Accesses: []Access{&IndexedAccess{[]Instruction{NewU32(0)}, 1}}},
		Src: &Compute{
			Op: Op(Add),
			Stack: []Instruction{
				&Load{Context: Sized(1), Address: Variable{}, Src: NewIndexed(2)},
				NewConstant(0, 1),
			},
		},
	}
	//
	var count = 0
	//
	Walk(store, func(Instruction) bool {
		count++
		return true
	})
	// store, compute, load, 2, C[0], cmp 1, index 0
	assert.Equal(t, 7, count)
}

func Test_Walk_02(t *testing.T) {
	loop := &Loop{
		Continue: NewU32(1),
		Body:     []Instruction{&Assert{Evaluate: NewU32(1)}},
	}
	//
	var count = 0
	//
	Walk(&Branch{Cond: NewU32(0), Then: []Instruction{loop}}, func(insn Instruction) bool {
		count++
		// skip loop bodies
		_, isLoop := insn.(*Loop)
		//
		return !isLoop
	})
	//
	assert.Equal(t, 3, count)
}

func Test_String_01(t *testing.T) {
	load := &Load{Context: Sized(1), Address: Signal{}, Src: NewIndexed(4)}
	assert.Equal(t, "load(1, SIGNAL, INDEXED(4, NONE))", load.String())
	//
	mapped := &Mapped{SignalCode: 2, Accesses: []Access{
		&IndexedAccess{[]Instruction{NewU32(1), NewU32(2)}, 3},
		&QualifiedAccess{Field: 1},
	}}
	assert.Equal(t, "MAPPED(2, [[1,2]/3, .1])", mapped.String())
}
