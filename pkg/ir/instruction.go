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
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/util"
)

// Instruction is a node (or "bucket") of the lowered IR tree.  This is a closed
// sum type: every backend lowers instructions with an exhaustive type switch
// over the kinds defined in this file.  Every instruction owns its operands
// exclusively and is never mutated once constructed.
type Instruction interface {
	fmt.Stringer
	// Metadata returns the source line and message identifier of this
	// instruction.
	Metadata() Meta
	isInstruction()
}

// Meta holds the diagnostic information carried by every instruction.
type Meta struct {
	// Line in the original circuit source.
	Line uint
	// Identifies the message table entry used when reporting failures.
	MessageId uint
}

// Metadata implementation for the Instruction interface.
func (m Meta) Metadata() Meta {
	return m
}

// ValueKind distinguishes literal 32-bit integers from field constants.
type ValueKind uint8

const (
	// U32 is a literal unsigned 32-bit integer (e.g. an address).
	U32 ValueKind = iota
	// BigInt is a reference into the circuit's constant table.
	BigInt
)

// Value is either a U32 literal, or a reference to a field constant.
type Value struct {
	Meta
	Kind ValueKind
	// Expression stack slot (for backends which need one).
	OpAux uint
	// Literal value, or index into the constant table.
	Value uint
}

// Load reads one or more elements from memory.
type Load struct {
	Meta
	Context InstrContext
	Address AddressType
	Src     LocationRule
}

// Store copies one or more elements into memory.  When the destination is a
// subcomponent input, the trigger protocol follows the copy.
type Store struct {
	Meta
	// Size of the destination.
	Context InstrContext
	// Size of the source.
	SrcContext InstrContext
	// Indicates the destination is an output of the enclosing component.
	DestIsOutput    bool
	DestAddressType AddressType
	// Subcomponent address of the source, when the source is a subcomponent
	// signal whose size depends on its concrete template.
	SrcAddressType util.Option[Instruction]
	Dest           LocationRule
	Src            Instruction
}

// ReturnType determines where the result of a call is placed.
type ReturnType interface {
	fmt.Stringer
	isReturnType()
}

// Intermediate returns are placed in an expression stack slot of the caller.
type Intermediate struct {
	OpAux uint
}

// Final returns are stored directly into a destination location, following the
// same rules as a store.
type Final struct {
	Context         InstrContext
	DestIsOutput    bool
	DestAddressType AddressType
	Dest            LocationRule
}

func (*Intermediate) isReturnType() {}
func (*Final) isReturnType()        {}

func (p *Intermediate) String() string {
	return fmt.Sprintf("INTERMEDIATE(%d)", p.OpAux)
}

func (p *Final) String() string {
	return fmt.Sprintf("FINAL(%s, %s, %s)", p.Context.Size.String(), p.DestAddressType.String(), p.Dest.String())
}

// Call invokes a function, marshalling its arguments into a fresh frame.
type Call struct {
	Meta
	Symbol        string
	ArgumentTypes []InstrContext
	Arguments     []Instruction
	// Number of field elements in the callee's frame.
	ArenaSize uint
	Return    ReturnType
	// Indicates the callee returns an array through the destination protocol.
	ReturnsArray bool
}

// Compute applies an operator to the results of its operands.
type Compute struct {
	Meta
	Op Operator
	// Expression stack slot holding the result.
	OpAux uint
	Stack []Instruction
}

// Assert fails with an assertion error when its argument is false.
type Assert struct {
	Meta
	Evaluate Instruction
}

// Return copies a value into the caller's destination and leaves the function.
type Return struct {
	Meta
	// Number of elements returned.
	WithSize uint
	IsArray  bool
	Value    Instruction
}

// Branch executes one of two blocks depending upon a condition.
type Branch struct {
	Meta
	Cond Instruction
	Then []Instruction
	Else []Instruction
}

// Loop repeatedly executes its body whilst a condition holds.
type Loop struct {
	Meta
	Continue Instruction
	Body     []Instruction
}

// CreateCmp creates one or more consecutive subcomponent instances of the same
// template.
type CreateCmp struct {
	Meta
	// Slot of the first instance.
	Cmp Instruction
	// Header of the template being instantiated.
	Symbol     string
	TemplateId uint
	// Name of the subcomponent, as declared.
	Name string
	// Signal offset (relative to the enclosing component) of the first
	// instance, and the increment between successive instances.
	SignalOffset     uint
	SignalOffsetJump uint
	// Component offset (relative to the enclosing component) of the first
	// instance, and the increment between successive instances.
	ComponentOffset     uint
	ComponentOffsetJump uint
	Dimensions          []uint
	NumberOfCmp         uint
	HasInputs           bool
	IsParallel          bool
}

func (*Value) isInstruction()     {}
func (*Load) isInstruction()      {}
func (*Store) isInstruction()     {}
func (*Call) isInstruction()      {}
func (*Compute) isInstruction()   {}
func (*Assert) isInstruction()    {}
func (*Return) isInstruction()    {}
func (*Branch) isInstruction()    {}
func (*Loop) isInstruction()      {}
func (*CreateCmp) isInstruction() {}

func (p *Value) String() string {
	if p.Kind == U32 {
		return fmt.Sprintf("%d", p.Value)
	}
	//
	return fmt.Sprintf("C[%d]", p.Value)
}

func (p *Load) String() string {
	return fmt.Sprintf("load(%s, %s, %s)", p.Context.Size.String(), p.Address.String(), p.Src.String())
}

func (p *Store) String() string {
	return fmt.Sprintf("store(%s, %s, %s) := %s", p.Context.Size.String(), p.DestAddressType.String(), p.Dest.String(),
		p.Src.String())
}

func (p *Call) String() string {
	return fmt.Sprintf("call %s(%s) -> %s", p.Symbol, joinInstructions(p.Arguments, ", "), p.Return.String())
}

func (p *Compute) String() string {
	return fmt.Sprintf("%s(%s)", p.Op.String(), joinInstructions(p.Stack, ", "))
}

func (p *Assert) String() string {
	return fmt.Sprintf("assert %s", p.Evaluate.String())
}

func (p *Return) String() string {
	return fmt.Sprintf("return[%d] %s", p.WithSize, p.Value.String())
}

func (p *Branch) String() string {
	return fmt.Sprintf("if %s { %s } else { %s }", p.Cond.String(), joinInstructions(p.Then, "; "),
		joinInstructions(p.Else, "; "))
}

func (p *Loop) String() string {
	return fmt.Sprintf("while %s { %s }", p.Continue.String(), joinInstructions(p.Body, "; "))
}

func (p *CreateCmp) String() string {
	return fmt.Sprintf("create %s[%s..+%d] = %s#%d", p.Name, p.Cmp.String(), p.NumberOfCmp, p.Symbol, p.TemplateId)
}

func joinInstructions(insns []Instruction, sep string) string {
	var strs = make([]string, len(insns))
	//
	for i, insn := range insns {
		strs[i] = insn.String()
	}
	//
	return strings.Join(strs, sep)
}

// NewU32 constructs a literal 32-bit value.
func NewU32(value uint) *Value {
	return &Value{Kind: U32, Value: value}
}

// NewConstant constructs a reference to a field constant, whose result is
// placed in a given expression stack slot.
func NewConstant(index uint, opAux uint) *Value {
	return &Value{Kind: BigInt, OpAux: opAux, Value: index}
}

// NewIndexed constructs an indexed location rule at a literal element offset.
func NewIndexed(offset uint) *Indexed {
	return &Indexed{NewU32(offset), util.None[string]()}
}
