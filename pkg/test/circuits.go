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
package test

import (
	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
)

// TestDir determines the (relative) location of the test directory.  That is
// where the circuit documents and expected outputs are found.
const TestDir = "../../testdata"

// TriggerCircuit constructs a circuit whose main component feeds both elements
// of the input x[2] of a subcomponent A in a single store, and then reads its
// output.  A computes y <== x[0] * x[1] after counting to two in a loop.
func TriggerCircuit() *circuit.Circuit {
	a := &circuit.TemplateCode{
		Id:                     1,
		Header:                 "A_1",
		Name:                   "A",
		IsNotParallelComponent: true,
		NumberOfInputs:         2,
		NumberOfOutputs:        1,
		Inputs:                 []circuit.Wire{{Name: "x", Dimensions: []uint{2}, Size: 1}},
		Outputs:                []circuit.Wire{{Name: "y", Size: 1}},
		VarStackDepth:          1,
		ExpressionStackDepth:   2,
		Body: []ir.Instruction{
			// i = 0
			store(ir.Variable{}, 0, constant(1, 0)),
			// while (i < 2) { i = i + 1 }
			&ir.Loop{
				Meta:     ir.Meta{Line: 4},
				Continue: compute(ir.Lesser, 0, load(ir.Variable{}, 0), constant(2, 1)),
				Body: []ir.Instruction{
					store(ir.Variable{}, 0, compute(ir.Add, 0, load(ir.Variable{}, 0), constant(0, 1))),
				},
			},
			// assert(i == 2)
			&ir.Assert{
				Meta:     ir.Meta{Line: 5, MessageId: 1},
				Evaluate: &ir.Compute{Meta: ir.Meta{Line: 5}, Op: ir.EqOp(ir.Single(1)),
					Stack: []ir.Instruction{load(ir.Variable{}, 0), constant(2, 1)}},
			},
			// y <== x[0] * x[1]
			store(ir.Signal{}, 0, compute(ir.Mul, 0, load(ir.Signal{}, 1), load(ir.Signal{}, 2))),
		},
	}
	//
	main := &circuit.TemplateCode{
		Id:                     0,
		Header:                 "Main_0",
		Name:                   "Main",
		IsNotParallelComponent: true,
		NumberOfInputs:         2,
		NumberOfOutputs:        1,
		Inputs:                 []circuit.Wire{{Name: "in", Dimensions: []uint{2}, Size: 1}},
		Outputs:                []circuit.Wire{{Name: "out", Size: 1}},
		ExpressionStackDepth:   1,
		NumberOfComponents:     1,
		ComponentInstances:     [][]util.Option[uint]{{util.Some[uint](1)}},
		Body: []ir.Instruction{
			createCmp(0, a, 3, 1),
			// a.x <== in
			&ir.Store{
				Meta:            ir.Meta{Line: 10},
				Context:         ir.Sized(2),
				SrcContext:      ir.Sized(2),
				DestAddressType: subcmpInput(0, ir.Last),
				Dest:            &ir.Indexed{Location: ir.NewU32(1), TemplateHeader: util.Some("A_1")},
				Src:             &ir.Load{Context: ir.Sized(2), Address: ir.Signal{}, Src: ir.NewIndexed(1)},
			},
			// out <== a.y
			&ir.Store{
				Meta:            ir.Meta{Line: 11},
				Context:         ir.Sized(1),
				SrcContext:      ir.Sized(1),
				DestIsOutput:    true,
				DestAddressType: ir.Signal{},
				Dest:            ir.NewIndexed(0),
				Src: &ir.Load{
					Context: ir.Sized(1),
					Address: subcmpOutput(0),
					Src:     &ir.Indexed{Location: ir.NewU32(0), TemplateHeader: util.Some("A_1")},
				},
			},
		},
	}
	//
	return &circuit.Circuit{
		Prime:               "bn128",
		Version:             circuit.Version{Major: 2, Minor: 2, Patch: 0},
		MainHeader:          "Main_0",
		MainSignalOffset:    1,
		NumberOfMainInputs:  2,
		NumberOfMainOutputs: 1,
		Inputs:              []circuit.InputInfo{{Name: "main.in", Start: 2, Size: 2, Dimensions: []uint{2}}},
		Witness:             []uint{0, 1, 2, 3},
		TotalSignals:        7,
		NumberOfComponents:  2,
		ComponentTreeSize:   2,
		IOMap: map[uint][]circuit.IOField{
			0: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Lengths: []uint{2}, Size: 1}},
			1: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Lengths: []uint{2}, Size: 1}},
		},
		Templates: []*circuit.TemplateCode{main, a},
		Messages:  []string{"Main", "A"},
		Constants: []string{"1", "0", "2"},
	}
}

// PolymorphicCircuit constructs a circuit whose main component has an array of
// two subcomponents c[2], instantiated with templates B_1 (two inputs) and B_2
// (three inputs).  All inputs are written one at a time through mapped
// locations, so whether a write is the last one is only known at run time.
func PolymorphicCircuit() *circuit.Circuit {
	var templates = []*circuit.TemplateCode{nil}
	//
	for i, n := range []uint{2, 3} {
		var body []ir.Instruction
		// out <== in[0] + ... + in[n-1]
		var sum ir.Instruction = load(ir.Signal{}, 1)
		//
		for j := uint(1); j < n; j++ {
			sum = compute(ir.Add, 0, sum, load(ir.Signal{}, 1+j))
		}
		//
		body = append(body, store(ir.Signal{}, 0, sum))
		templates = append(templates, &circuit.TemplateCode{
			Id:                     uint(i + 1),
			Header:                 []string{"B_1", "B_2"}[i],
			Name:                   "B",
			IsNotParallelComponent: true,
			NumberOfInputs:         n,
			NumberOfOutputs:        1,
			Inputs:                 []circuit.Wire{{Name: "in", Dimensions: []uint{n}, Size: 1}},
			Outputs:                []circuit.Wire{{Name: "out", Size: 1}},
			ExpressionStackDepth:   1,
			Body:                   body,
		})
	}
	//
	var body = []ir.Instruction{
		createCmp(0, templates[1], 2, 1),
		createCmp(1, templates[2], 5, 2),
	}
	// c[i].in[j] <== a
	for cmp, n := range []uint{2, 3} {
		for j := uint(0); j < n; j++ {
			body = append(body, &ir.Store{
				Meta:            ir.Meta{Line: 20 + j},
				Context:         ir.Sized(1),
				SrcContext:      ir.Sized(1),
				DestAddressType: subcmpInput(uint(cmp), ir.Unknown),
				Dest: &ir.Mapped{SignalCode: 1, Accesses: []ir.Access{
					&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(j)}, SymbolDim: 1},
				}},
				Src: load(ir.Signal{}, 1),
			})
		}
	}
	// out <== c[0].out + c[1].out
	body = append(body, store(ir.Signal{}, 0, compute(ir.Add, 0,
		&ir.Load{Context: ir.Sized(1), Address: subcmpOutput(0), Src: &ir.Mapped{SignalCode: 0}},
		&ir.Load{Context: ir.Sized(1), Address: subcmpOutput(1), Src: &ir.Mapped{SignalCode: 0}})))
	//
	templates[0] = &circuit.TemplateCode{
		Id:                     0,
		Header:                 "Main_0",
		Name:                   "Main",
		IsNotParallelComponent: true,
		NumberOfInputs:         1,
		NumberOfOutputs:        1,
		Inputs:                 []circuit.Wire{{Name: "a", Size: 1}},
		Outputs:                []circuit.Wire{{Name: "out", Size: 1}},
		ExpressionStackDepth:   1,
		NumberOfComponents:     2,
		ComponentInstances:     [][]util.Option[uint]{{util.Some[uint](1), util.Some[uint](2)}},
		Body:                   body,
	}
	//
	return &circuit.Circuit{
		Prime:               "bn128",
		Version:             circuit.Version{Major: 2, Minor: 2, Patch: 0},
		MainHeader:          "Main_0",
		MainSignalOffset:    1,
		NumberOfMainInputs:  1,
		NumberOfMainOutputs: 1,
		Inputs:              []circuit.InputInfo{{Name: "main.a", Start: 2, Size: 1}},
		Witness:             []uint{0, 1, 2},
		TotalSignals:        10,
		NumberOfComponents:  3,
		ComponentTreeSize:   3,
		IOMap: map[uint][]circuit.IOField{
			1: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Lengths: []uint{2}, Size: 1}},
			2: {{Code: 0, Offset: 0, Size: 1}, {Code: 1, Offset: 1, Lengths: []uint{3}, Size: 1}},
		},
		Templates: templates,
		Messages:  []string{"Main", "B"},
	}
}

// BusCircuit constructs a circuit whose subcomponent P takes an input array of
// two Point buses (each with fields x and y), written field by field through
// mapped locations.  P outputs s <== p[1].y.
func BusCircuit() *circuit.Circuit {
	p := &circuit.TemplateCode{
		Id:                     1,
		Header:                 "P_1",
		Name:                   "P",
		IsNotParallelComponent: true,
		NumberOfInputs:         4,
		NumberOfOutputs:        1,
		Inputs:                 []circuit.Wire{{Name: "p", Dimensions: []uint{2}, Size: 2, BusId: util.Some[uint](0)}},
		Outputs:                []circuit.Wire{{Name: "s", Size: 1}},
		ExpressionStackDepth:   1,
		Body: []ir.Instruction{
			store(ir.Signal{}, 0, load(ir.Signal{}, 4)),
		},
	}
	//
	var body = []ir.Instruction{createCmp(0, p, 2, 1)}
	// sub.p[i].f <== q
	for i, status := range []ir.InputStatus{ir.NoLast, ir.NoLast, ir.NoLast, ir.Last} {
		body = append(body, &ir.Store{
			Meta:            ir.Meta{Line: 30 + uint(i)},
			Context:         ir.Sized(1),
			SrcContext:      ir.Sized(1),
			DestAddressType: subcmpInput(0, status),
			Dest: &ir.Mapped{SignalCode: 1, Accesses: []ir.Access{
				&ir.IndexedAccess{Indexes: []ir.Instruction{ir.NewU32(uint(i / 2))}, SymbolDim: 1},
				&ir.QualifiedAccess{Field: uint(i % 2)},
			}},
			Src: load(ir.Signal{}, 1),
		})
	}
	// out <== sub.s
	body = append(body, store(ir.Signal{}, 0,
		&ir.Load{Context: ir.Sized(1), Address: subcmpOutput(0), Src: &ir.Mapped{SignalCode: 0}}))
	//
	main := &circuit.TemplateCode{
		Id:                     0,
		Header:                 "Main_0",
		Name:                   "Main",
		IsNotParallelComponent: true,
		NumberOfInputs:         1,
		NumberOfOutputs:        1,
		Inputs:                 []circuit.Wire{{Name: "q", Size: 1}},
		Outputs:                []circuit.Wire{{Name: "out", Size: 1}},
		ExpressionStackDepth:   1,
		NumberOfComponents:     1,
		ComponentInstances:     [][]util.Option[uint]{{util.Some[uint](1)}},
		Body:                   body,
	}
	//
	return &circuit.Circuit{
		Prime:               "bn128",
		Version:             circuit.Version{Major: 2, Minor: 2, Patch: 0},
		MainHeader:          "Main_0",
		MainSignalOffset:    1,
		NumberOfMainInputs:  1,
		NumberOfMainOutputs: 1,
		Inputs:              []circuit.InputInfo{{Name: "main.q", Start: 2, Size: 1}},
		Witness:             []uint{0, 1, 2},
		TotalSignals:        8,
		NumberOfComponents:  2,
		ComponentTreeSize:   2,
		IOMap: map[uint][]circuit.IOField{
			1: {
				{Code: 0, Offset: 0, Size: 1},
				{Code: 1, Offset: 1, Lengths: []uint{2}, Size: 2, BusId: util.Some[uint](0)},
			},
		},
		BusFields: [][]circuit.BusField{{
			{Name: "x", Offset: 0, Size: 1},
			{Name: "y", Offset: 1, Size: 1},
		}},
		Templates: []*circuit.TemplateCode{main, p},
		Messages:  []string{"Main", "P"},
	}
}

// FunctionCircuit constructs a circuit whose main component calls a scalar
// function sq(x) = x * x and an array function pair(x) = [x, x + 1], storing
// both results directly into its outputs.
func FunctionCircuit() *circuit.Circuit {
	sq := &circuit.FunctionCode{
		Header:                     "sq_0",
		Name:                       "sq",
		Params:                     []circuit.Param{{Name: "x"}},
		MaxNumberOfVars:            1,
		MaxNumberOfOpsInExpression: 1,
		Body: []ir.Instruction{
			&ir.Return{Meta: ir.Meta{Line: 2}, WithSize: 1,
				Value: compute(ir.Mul, 0, load(ir.Variable{}, 0), load(ir.Variable{}, 0))},
		},
	}
	//
	pair := &circuit.FunctionCode{
		Header:                     "pair_1",
		Name:                       "pair",
		Params:                     []circuit.Param{{Name: "x"}},
		Returns:                    []uint{2},
		MaxNumberOfVars:            3,
		MaxNumberOfOpsInExpression: 1,
		Body: []ir.Instruction{
			store(ir.Variable{}, 1, load(ir.Variable{}, 0)),
			store(ir.Variable{}, 2, compute(ir.Add, 0, load(ir.Variable{}, 0), constant(0, 1))),
			&ir.Return{Meta: ir.Meta{Line: 6}, WithSize: 2, IsArray: true,
				Value: &ir.Load{Context: ir.Sized(2), Address: ir.Variable{}, Src: ir.NewIndexed(1)}},
		},
	}
	//
	main := &circuit.TemplateCode{
		Id:                     0,
		Header:                 "Main_0",
		Name:                   "Main",
		IsNotParallelComponent: true,
		NumberOfInputs:         1,
		NumberOfOutputs:        3,
		Inputs:                 []circuit.Wire{{Name: "a", Size: 1}},
		Outputs:                []circuit.Wire{{Name: "out", Dimensions: []uint{3}, Size: 1}},
		ExpressionStackDepth:   1,
		Body: []ir.Instruction{
			// out[0] <== sq(a)
			&ir.Call{
				Meta:          ir.Meta{Line: 12},
				Symbol:        "sq_0",
				ArgumentTypes: []ir.InstrContext{ir.Sized(1)},
				Arguments:     []ir.Instruction{load(ir.Signal{}, 3)},
				ArenaSize:     1,
				Return: &ir.Final{Context: ir.Sized(1), DestIsOutput: true, DestAddressType: ir.Signal{},
					Dest: ir.NewIndexed(0)},
			},
			// out[1..2] <== pair(a)
			&ir.Call{
				Meta:          ir.Meta{Line: 13},
				Symbol:        "pair_1",
				ArgumentTypes: []ir.InstrContext{ir.Sized(1)},
				Arguments:     []ir.Instruction{load(ir.Signal{}, 3)},
				ArenaSize:     3,
				Return: &ir.Final{Context: ir.Sized(2), DestIsOutput: true, DestAddressType: ir.Signal{},
					Dest: ir.NewIndexed(1)},
				ReturnsArray: true,
			},
		},
	}
	//
	return &circuit.Circuit{
		Prime:               "bn128",
		Version:             circuit.Version{Major: 2, Minor: 2, Patch: 0},
		MainHeader:          "Main_0",
		MainSignalOffset:    1,
		NumberOfMainInputs:  1,
		NumberOfMainOutputs: 3,
		Inputs:              []circuit.InputInfo{{Name: "main.a", Start: 4, Size: 1}},
		Witness:             []uint{0, 1, 2, 3, 4},
		TotalSignals:        5,
		NumberOfComponents:  1,
		ComponentTreeSize:   1,
		IOMap: map[uint][]circuit.IOField{
			0: {{Code: 0, Offset: 0, Lengths: []uint{3}, Size: 1}, {Code: 1, Offset: 3, Size: 1}},
		},
		Templates: []*circuit.TemplateCode{main},
		Functions: []*circuit.FunctionCode{sq, pair},
		Messages:  []string{"Main"},
		Constants: []string{"1"},
	}
}

// ============================================================================
// Helpers
// ============================================================================

func constant(index uint, opAux uint) ir.Instruction {
	return ir.NewConstant(index, opAux)
}

func load(address ir.AddressType, offset uint) *ir.Load {
	return &ir.Load{Context: ir.Sized(1), Address: address, Src: ir.NewIndexed(offset)}
}

func store(address ir.AddressType, offset uint, src ir.Instruction) *ir.Store {
	return &ir.Store{
		Meta:            src.Metadata(),
		Context:         ir.Sized(1),
		SrcContext:      ir.Sized(1),
		DestAddressType: address,
		Dest:            ir.NewIndexed(offset),
		Src:             src,
	}
}

func compute(op ir.OperatorKind, opAux uint, args ...ir.Instruction) *ir.Compute {
	return &ir.Compute{Op: ir.Op(op), OpAux: opAux, Stack: args}
}

func subcmpInput(cmp uint, status ir.InputStatus) ir.SubcmpSignal {
	return ir.SubcmpSignal{
		Cmp:             ir.NewU32(cmp),
		UniformParallel: util.Some(false),
		Input:           ir.Input(status, true),
	}
}

func subcmpOutput(cmp uint) ir.SubcmpSignal {
	return ir.SubcmpSignal{
		Cmp:             ir.NewU32(cmp),
		UniformParallel: util.Some(false),
		IsOutput:        true,
		Input:           ir.NoInput(),
	}
}

func createCmp(cmp uint, template *circuit.TemplateCode, signalOffset uint, componentOffset uint) *ir.CreateCmp {
	return &ir.CreateCmp{
		Cmp:                 ir.NewU32(cmp),
		Symbol:              template.Header,
		TemplateId:          template.Id,
		Name:                template.Name,
		SignalOffset:        signalOffset,
		SignalOffsetJump:    template.NumberOfSignals(),
		ComponentOffset:     componentOffset,
		ComponentOffsetJump: 1,
		NumberOfCmp:         1,
		HasInputs:           template.NumberOfInputs > 0,
	}
}
