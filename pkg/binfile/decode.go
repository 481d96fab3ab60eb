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
	"errors"
	"fmt"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
)

// Circuit converts a document into the circuit it describes.
func (p *Document) Circuit() (*circuit.Circuit, error) {
	var c = &circuit.Circuit{
		Prime:                     p.Prime,
		Version:                   p.Version,
		MainHeader:                p.MainHeader,
		MainSignalOffset:          p.MainSignalOffset,
		NumberOfMainInputs:        p.NumberOfMainInputs,
		NumberOfMainOutputs:       p.NumberOfMainOutputs,
		Inputs:                    p.Inputs,
		Witness:                   p.Witness,
		TotalSignals:              p.TotalSignals,
		NumberOfComponents:        p.NumberOfComponents,
		ComponentTreeSize:         p.ComponentTreeSize,
		IOMap:                     p.IOMap,
		BusFields:                 p.BusFields,
		Messages:                  p.Messages,
		Strings:                   p.Strings,
		Constants:                 p.Constants,
		ImplicitComponentCreation: p.ImplicitComponentCreation,
	}
	//
	for _, t := range p.Templates {
		body, err := decodeBody(t.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Header, err)
		}
		//
		c.Templates = append(c.Templates, &circuit.TemplateCode{
			Id:                     t.Id,
			Header:                 t.Header,
			Name:                   t.Name,
			IsParallel:             t.IsParallel,
			IsParallelComponent:    t.IsParallelComponent,
			IsNotParallelComponent: t.IsNotParallelComponent,
			HasParallelSubcmp:      t.HasParallelSubcmp,
			NumberOfInputs:         t.NumberOfInputs,
			NumberOfOutputs:        t.NumberOfOutputs,
			NumberOfIntermediates:  t.NumberOfIntermediates,
			Inputs:                 t.Inputs,
			Outputs:                t.Outputs,
			Body:                   body,
			VarStackDepth:          t.VarStackDepth,
			ExpressionStackDepth:   t.ExpressionStackDepth,
			NumberOfComponents:     t.NumberOfComponents,
			ComponentInstances:     t.ComponentInstances,
		})
	}
	//
	for _, f := range p.Functions {
		body, err := decodeBody(f.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Header, err)
		}
		//
		c.Functions = append(c.Functions, &circuit.FunctionCode{
			Header:                     f.Header,
			Name:                       f.Name,
			Params:                     f.Params,
			Returns:                    f.Returns,
			Body:                       body,
			ConstantVariables:          f.ConstantVariables,
			MaxNumberOfVars:            f.MaxNumberOfVars,
			MaxNumberOfOpsInExpression: f.MaxNumberOfOpsInExpression,
		})
	}
	//
	return c, nil
}

func decodeBody(nodes []*Node) ([]ir.Instruction, error) {
	var insns = make([]ir.Instruction, len(nodes))
	//
	for i, n := range nodes {
		var err error
		//
		if insns[i], err = decodeNode(n); err != nil {
			return nil, err
		}
	}
	//
	return insns, nil
}

// decodeNode converts a node into an instruction, checking that every field
// required by its kind is present.
func decodeNode(n *Node) (ir.Instruction, error) {
	if n == nil {
		return nil, errors.New("missing instruction")
	}
	//
	d := decoder{line: n.Line}
	insn := d.instruction(n)
	//
	if d.err != nil {
		return nil, d.err
	}
	//
	return insn, nil
}

func (d *decoder) instruction(n *Node) ir.Instruction {
	var meta = ir.Meta{Line: n.Line, MessageId: n.MessageId}
	//
	switch n.Kind {
	case "value":
		return &ir.Value{Meta: meta, Kind: d.valueKind(n.ValueKind), OpAux: n.OpAux, Value: n.Value}
	case "load":
		return &ir.Load{Meta: meta, Context: d.context(n.Size), Address: d.address(n.Address),
			Src: d.location(n.Location)}
	case "store":
		var src = util.None[ir.Instruction]()
		//
		if n.SrcAddress != nil {
			src = util.Some(d.node(n.SrcAddress))
		}
		//
		return &ir.Store{Meta: meta, Context: d.context(n.Size), SrcContext: d.context(n.SrcSize),
			DestIsOutput: n.DestIsOutput, DestAddressType: d.address(n.Address), SrcAddressType: src,
			Dest: d.location(n.Location), Src: d.node(n.Src)}
	case "call":
		var sizes = make([]ir.InstrContext, len(n.ArgumentSizes))
		//
		for i := range n.ArgumentSizes {
			sizes[i] = d.context(&n.ArgumentSizes[i])
		}
		//
		return &ir.Call{Meta: meta, Symbol: n.Symbol, ArgumentTypes: sizes, Arguments: d.nodes(n.Arguments),
			ArenaSize: n.ArenaSize, Return: d.returnType(n.Return), ReturnsArray: n.ReturnsArray}
	case "compute":
		var op = ir.Op(d.operator(n.Op))
		//
		if n.EqSize != nil {
			op.EqSize = n.EqSize.Size
		}
		//
		return &ir.Compute{Meta: meta, Op: op, OpAux: n.OpAux, Stack: d.nodes(n.Stack)}
	case "assert":
		return &ir.Assert{Meta: meta, Evaluate: d.node(n.Evaluate)}
	case "return":
		return &ir.Return{Meta: meta, WithSize: n.WithSize, IsArray: n.IsArray, Value: d.node(n.Evaluate)}
	case "branch":
		return &ir.Branch{Meta: meta, Cond: d.node(n.Cond), Then: d.nodes(n.Then), Else: d.nodes(n.Else)}
	case "loop":
		return &ir.Loop{Meta: meta, Continue: d.node(n.Continue), Body: d.nodes(n.Body)}
	case "create_cmp":
		return &ir.CreateCmp{Meta: meta, Cmp: d.node(n.Cmp), Symbol: n.Symbol, TemplateId: n.TemplateId,
			Name: n.Name, SignalOffset: n.SignalOffset, SignalOffsetJump: n.SignalOffsetJump,
			ComponentOffset: n.ComponentOffset, ComponentOffsetJump: n.ComponentOffsetJump,
			Dimensions: n.Dimensions, NumberOfCmp: n.NumberOfCmp, HasInputs: n.HasInputs,
			IsParallel: n.IsParallel}
	}
	//
	d.fail("unknown instruction kind \"%s\"", n.Kind)
	//
	return nil
}

// decoder accumulates the first error found while decoding the parts of a
// node.
type decoder struct {
	line uint
	err  error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("line %d: %s", d.line, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) node(n *Node) ir.Instruction {
	insn, err := decodeNode(n)
	//
	if err != nil && d.err == nil {
		d.err = err
	}
	//
	return insn
}

func (d *decoder) nodes(nodes []*Node) []ir.Instruction {
	insns, err := decodeBody(nodes)
	//
	if err != nil && d.err == nil {
		d.err = err
	}
	//
	return insns
}

func (d *decoder) valueKind(kind string) ir.ValueKind {
	switch kind {
	case "u32":
		return ir.U32
	case "bigint":
		return ir.BigInt
	}
	//
	d.fail("unknown value kind \"%s\"", kind)
	//
	return ir.U32
}

func (d *decoder) context(size *Size) ir.InstrContext {
	if size == nil {
		d.fail("missing size")
		return ir.Sized(0)
	}
	//
	return ir.InstrContext{Size: size.Size}
}

func (d *decoder) operator(name string) ir.OperatorKind {
	for k := ir.Mul; k <= ir.AddAddress; k++ {
		if k.String() == name {
			return k
		}
	}
	//
	d.fail("unknown operator \"%s\"", name)
	//
	return ir.Mul
}

func (d *decoder) address(a *Address) ir.AddressType {
	if a == nil {
		d.fail("missing address")
		return nil
	}
	//
	switch a.Kind {
	case "variable":
		return ir.Variable{}
	case "signal":
		return ir.Signal{}
	case "subcmp":
		var input = ir.NoInput()
		//
		if a.Input != nil {
			input = ir.Input(d.inputStatus(a.Input.Status), a.Input.NeedsDecrement)
		}
		//
		return ir.SubcmpSignal{Cmp: d.node(a.Cmp), UniformParallel: a.UniformParallel, IsOutput: a.IsOutput,
			Input: input}
	}
	//
	d.fail("unknown address kind \"%s\"", a.Kind)
	//
	return nil
}

func (d *decoder) inputStatus(name string) ir.InputStatus {
	for _, s := range []ir.InputStatus{ir.NoLast, ir.Last, ir.Unknown} {
		if statusName(s) == name {
			return s
		}
	}
	//
	d.fail("unknown input status \"%s\"", name)
	//
	return ir.Unknown
}

func (d *decoder) location(l *Location) ir.LocationRule {
	if l == nil {
		d.fail("missing location")
		return nil
	}
	//
	switch l.Kind {
	case "indexed":
		return &ir.Indexed{Location: d.node(l.Location), TemplateHeader: l.TemplateHeader}
	case "mapped":
		var accesses = make([]ir.Access, len(l.Accesses))
		//
		for i, a := range l.Accesses {
			accesses[i] = d.access(a)
		}
		//
		return &ir.Mapped{SignalCode: l.SignalCode, Accesses: accesses}
	}
	//
	d.fail("unknown location kind \"%s\"", l.Kind)
	//
	return nil
}

func (d *decoder) access(a *Access) ir.Access {
	if a == nil {
		d.fail("missing access")
		return nil
	}
	//
	switch a.Kind {
	case "indexed":
		return &ir.IndexedAccess{Indexes: d.nodes(a.Indexes), SymbolDim: a.SymbolDim}
	case "qualified":
		return &ir.QualifiedAccess{Field: a.Field}
	}
	//
	d.fail("unknown access kind \"%s\"", a.Kind)
	//
	return nil
}

func (d *decoder) returnType(r *Return) ir.ReturnType {
	if r == nil {
		d.fail("missing return type")
		return nil
	}
	//
	switch r.Kind {
	case "intermediate":
		return &ir.Intermediate{OpAux: r.OpAux}
	case "final":
		return &ir.Final{Context: d.context(r.Size), DestIsOutput: r.DestIsOutput,
			DestAddressType: d.address(r.Address), Dest: d.location(r.Location)}
	}
	//
	d.fail("unknown return kind \"%s\"", r.Kind)
	//
	return nil
}

func statusName(s ir.InputStatus) string {
	switch s {
	case ir.NoLast:
		return "no_last"
	case ir.Last:
		return "last"
	default:
		return "unknown"
	}
}
