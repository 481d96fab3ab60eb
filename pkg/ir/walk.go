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

// Walk visits every instruction in the given tree in pre-order, including the
// expressions nested inside address types and location rules.  When the visitor
// returns false, the children of that instruction are skipped.
func Walk(root Instruction, visitor func(Instruction) bool) {
	if !visitor(root) {
		return
	}
	//
	for _, child := range Children(root) {
		Walk(child, visitor)
	}
}

// WalkAll visits every instruction in a sequence of trees.
func WalkAll(roots []Instruction, visitor func(Instruction) bool) {
	for _, root := range roots {
		Walk(root, visitor)
	}
}

// Children returns the immediate operands of an instruction, in evaluation
// order.
func Children(insn Instruction) []Instruction {
	var children []Instruction
	//
	switch p := insn.(type) {
	case *Value:
		// leaf
	case *Load:
		children = appendLocation(children, p.Address, p.Src)
	case *Store:
		children = append(children, p.Src)
		//
		if p.SrcAddressType.HasValue() {
			children = append(children, p.SrcAddressType.Unwrap())
		}
		//
		children = appendLocation(children, p.DestAddressType, p.Dest)
	case *Call:
		children = append(children, p.Arguments...)
		//
		if final, ok := p.Return.(*Final); ok {
			children = appendLocation(children, final.DestAddressType, final.Dest)
		}
	case *Compute:
		children = append(children, p.Stack...)
	case *Assert:
		children = append(children, p.Evaluate)
	case *Return:
		children = append(children, p.Value)
	case *Branch:
		children = append(children, p.Cond)
		children = append(children, p.Then...)
		children = append(children, p.Else...)
	case *Loop:
		children = append(children, p.Continue)
		children = append(children, p.Body...)
	case *CreateCmp:
		children = append(children, p.Cmp)
	default:
		Failf(insn.Metadata().Line, "unknown instruction %T", insn)
	}
	//
	return children
}

func appendLocation(children []Instruction, address AddressType, location LocationRule) []Instruction {
	if sub, ok := address.(SubcmpSignal); ok {
		children = append(children, sub.Cmp)
	}
	//
	switch loc := location.(type) {
	case *Indexed:
		children = append(children, loc.Location)
	case *Mapped:
		for _, access := range loc.Accesses {
			if ia, ok := access.(*IndexedAccess); ok {
				children = append(children, ia.Indexes...)
			}
		}
	}
	//
	return children
}
