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
	"fmt"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
)

// NewDocument constructs the document describing a given circuit.
func NewDocument(c *circuit.Circuit) *Document {
	var doc = &Document{
		Prime:                     c.Prime,
		Version:                   c.Version,
		MainHeader:                c.MainHeader,
		MainSignalOffset:          c.MainSignalOffset,
		NumberOfMainInputs:        c.NumberOfMainInputs,
		NumberOfMainOutputs:       c.NumberOfMainOutputs,
		Inputs:                    c.Inputs,
		Witness:                   c.Witness,
		TotalSignals:              c.TotalSignals,
		NumberOfComponents:        c.NumberOfComponents,
		ComponentTreeSize:         c.ComponentTreeSize,
		IOMap:                     c.IOMap,
		BusFields:                 c.BusFields,
		Messages:                  c.Messages,
		Strings:                   c.Strings,
		Constants:                 c.Constants,
		ImplicitComponentCreation: c.ImplicitComponentCreation,
	}
	//
	for _, t := range c.Templates {
		doc.Templates = append(doc.Templates, &Template{
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
			Body:                   encodeBody(t.Body),
			VarStackDepth:          t.VarStackDepth,
			ExpressionStackDepth:   t.ExpressionStackDepth,
			NumberOfComponents:     t.NumberOfComponents,
			ComponentInstances:     t.ComponentInstances,
		})
	}
	//
	for _, f := range c.Functions {
		doc.Functions = append(doc.Functions, &Function{
			Header:                     f.Header,
			Name:                       f.Name,
			Params:                     f.Params,
			Returns:                    f.Returns,
			Body:                       encodeBody(f.Body),
			ConstantVariables:          f.ConstantVariables,
			MaxNumberOfVars:            f.MaxNumberOfVars,
			MaxNumberOfOpsInExpression: f.MaxNumberOfOpsInExpression,
		})
	}
	//
	return doc
}

func encodeBody(insns []ir.Instruction) []*Node {
	var nodes = make([]*Node, len(insns))
	//
	for i, insn := range insns {
		nodes[i] = encodeNode(insn)
	}
	//
	return nodes
}

func encodeNode(insn ir.Instruction) *Node {
	var (
		meta = insn.Metadata()
		n    = &Node{Line: meta.Line, MessageId: meta.MessageId}
	)
	//
	switch p := insn.(type) {
	case *ir.Value:
		n.Kind = "value"
		n.ValueKind = "u32"
		n.OpAux = p.OpAux
		n.Value = p.Value
		//
		if p.Kind == ir.BigInt {
			n.ValueKind = "bigint"
		}
	case *ir.Load:
		n.Kind = "load"
		n.Size = &Size{p.Context.Size}
		n.Address = encodeAddress(p.Address)
		n.Location = encodeLocation(p.Src)
	case *ir.Store:
		n.Kind = "store"
		n.Size = &Size{p.Context.Size}
		n.SrcSize = &Size{p.SrcContext.Size}
		n.DestIsOutput = p.DestIsOutput
		n.Address = encodeAddress(p.DestAddressType)
		n.Location = encodeLocation(p.Dest)
		n.Src = encodeNode(p.Src)
		//
		if p.SrcAddressType.HasValue() {
			n.SrcAddress = encodeNode(p.SrcAddressType.Unwrap())
		}
	case *ir.Call:
		n.Kind = "call"
		n.Symbol = p.Symbol
		n.Arguments = encodeBody(p.Arguments)
		n.ArenaSize = p.ArenaSize
		n.Return = encodeReturn(p.Return)
		n.ReturnsArray = p.ReturnsArray
		//
		for _, t := range p.ArgumentTypes {
			n.ArgumentSizes = append(n.ArgumentSizes, Size{t.Size})
		}
	case *ir.Compute:
		n.Kind = "compute"
		n.Op = p.Op.Kind.String()
		n.OpAux = p.OpAux
		n.Stack = encodeBody(p.Stack)
		//
		if p.Op.Kind == ir.Eq {
			n.EqSize = &Size{p.Op.EqSize}
		}
	case *ir.Assert:
		n.Kind = "assert"
		n.Evaluate = encodeNode(p.Evaluate)
	case *ir.Return:
		n.Kind = "return"
		n.WithSize = p.WithSize
		n.IsArray = p.IsArray
		n.Evaluate = encodeNode(p.Value)
	case *ir.Branch:
		n.Kind = "branch"
		n.Cond = encodeNode(p.Cond)
		n.Then = encodeBody(p.Then)
		n.Else = encodeBody(p.Else)
	case *ir.Loop:
		n.Kind = "loop"
		n.Continue = encodeNode(p.Continue)
		n.Body = encodeBody(p.Body)
	case *ir.CreateCmp:
		n.Kind = "create_cmp"
		n.Cmp = encodeNode(p.Cmp)
		n.Symbol = p.Symbol
		n.TemplateId = p.TemplateId
		n.Name = p.Name
		n.SignalOffset = p.SignalOffset
		n.SignalOffsetJump = p.SignalOffsetJump
		n.ComponentOffset = p.ComponentOffset
		n.ComponentOffsetJump = p.ComponentOffsetJump
		n.Dimensions = p.Dimensions
		n.NumberOfCmp = p.NumberOfCmp
		n.HasInputs = p.HasInputs
		n.IsParallel = p.IsParallel
	default:
		panic(fmt.Sprintf("unknown instruction %T", insn))
	}
	//
	return n
}

func encodeAddress(address ir.AddressType) *Address {
	switch p := address.(type) {
	case ir.Variable:
		return &Address{Kind: "variable"}
	case ir.Signal:
		return &Address{Kind: "signal"}
	case ir.SubcmpSignal:
		var a = &Address{Kind: "subcmp", Cmp: encodeNode(p.Cmp), UniformParallel: p.UniformParallel,
			IsOutput: p.IsOutput}
		//
		if p.Input.IsInput {
			a.Input = &Input{statusName(p.Input.Status), p.Input.NeedsDecrement}
		}
		//
		return a
	}
	//
	panic(fmt.Sprintf("unknown address type %T", address))
}

func encodeLocation(location ir.LocationRule) *Location {
	switch p := location.(type) {
	case *ir.Indexed:
		return &Location{Kind: "indexed", Location: encodeNode(p.Location), TemplateHeader: p.TemplateHeader}
	case *ir.Mapped:
		var l = &Location{Kind: "mapped", SignalCode: p.SignalCode}
		//
		for _, access := range p.Accesses {
			switch a := access.(type) {
			case *ir.IndexedAccess:
				l.Accesses = append(l.Accesses, &Access{Kind: "indexed", Indexes: encodeBody(a.Indexes),
					SymbolDim: a.SymbolDim})
			case *ir.QualifiedAccess:
				l.Accesses = append(l.Accesses, &Access{Kind: "qualified", Field: a.Field})
			}
		}
		//
		return l
	}
	//
	panic(fmt.Sprintf("unknown location rule %T", location))
}

func encodeReturn(ret ir.ReturnType) *Return {
	switch p := ret.(type) {
	case *ir.Intermediate:
		return &Return{Kind: "intermediate", OpAux: p.OpAux}
	case *ir.Final:
		return &Return{Kind: "final", Size: &Size{p.Context.Size}, DestIsOutput: p.DestIsOutput,
			Address: encodeAddress(p.DestAddressType), Location: encodeLocation(p.Dest)}
	}
	//
	panic(fmt.Sprintf("unknown return type %T", ret))
}
