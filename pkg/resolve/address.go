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
	"fmt"

	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
)

// Base identifies the memory region from which an address is computed.
type Base uint8

const (
	// LocalFrame is the variable frame of the enclosing template or function.
	LocalFrame Base = iota
	// OwnSignals are the signals of the enclosing component.
	OwnSignals
	// SubcmpSignals are the signals of a subcomponent, whose signal start is
	// read from its component header.
	SubcmpSignals
)

func (b Base) String() string {
	switch b {
	case LocalFrame:
		return "lvar"
	case OwnSignals:
		return "signals"
	case SubcmpSignals:
		return "subcmp"
	}
	//
	return "???"
}

// Address is a backend-agnostic description of a resolved location.  Exactly
// one of Index (for an indexed location) and Mapped (for a mapped location) is
// set.
type Address struct {
	Base Base
	// Subcomponent slot (SubcmpSignals only).
	Cmp ir.Instruction
	// Element offset from the base (indexed locations only).
	Index ir.Instruction
	// Concrete template of the subcomponent, when statically known.
	TemplateHeader util.Option[string]
	// Mapped walk (mapped locations only).
	Mapped *MappedAddress
}

// IsMapped determines whether this address requires a run-time walk of the
// descriptor tables.
func (a *Address) IsMapped() bool {
	return a.Mapped != nil
}

func (a *Address) String() string {
	var cmp string
	//
	if a.Base == SubcmpSignals {
		cmp = fmt.Sprintf("[%s]", a.Cmp.String())
	}
	//
	if a.Mapped != nil {
		return fmt.Sprintf("%s%s%s", a.Base.String(), cmp, a.Mapped.String())
	}
	//
	return fmt.Sprintf("%s%s+%s", a.Base.String(), cmp, a.Index.String())
}

// MappedAddress describes the run-time walk which resolves a mapped location:
// start from the IO field with the given code in the concrete template of the
// subcomponent, then apply each step in turn.  The element offsets of all
// steps accumulate.
type MappedAddress struct {
	SignalCode uint
	Steps      []Step
}

func (p *MappedAddress) String() string {
	var str = fmt.Sprintf("#%d", p.SignalCode)
	//
	for _, s := range p.Steps {
		str += s.String()
	}
	//
	return str
}

// Step is a single step of a mapped walk.
type Step interface {
	fmt.Stringer
	// IsLast determines whether this is the final step of the walk.
	IsLast() bool
}

// IndexStep subscripts the current field.  Its offset is the flattening of the
// given indexes over the declared dimensions of the field, multiplied by the
// product of any unsupplied trailing dimensions and by the element size of the
// field.
type IndexStep struct {
	Indexes []ir.Instruction
	// Declared number of dimensions.
	SymbolDim uint
	Last      bool
}

// FieldStep moves into a field of the bus held in the current field.  Its
// offset is the offset of that field within the bus.
type FieldStep struct {
	Field uint
	Last  bool
}

// IsLast implementation for Step interface.
func (p *IndexStep) IsLast() bool {
	return p.Last
}

// IsLast implementation for Step interface.
func (p *FieldStep) IsLast() bool {
	return p.Last
}

// Trailing returns the number of declared dimensions for which no index was
// supplied.
func (p *IndexStep) Trailing() uint {
	return p.SymbolDim - uint(len(p.Indexes))
}

func (p *IndexStep) String() string {
	var str = "["
	//
	for i, index := range p.Indexes {
		if i != 0 {
			str += ","
		}
		//
		str += index.String()
	}
	//
	return fmt.Sprintf("%s]/%d", str, p.SymbolDim)
}

func (p *FieldStep) String() string {
	return fmt.Sprintf(".%d", p.Field)
}
