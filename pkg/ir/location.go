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

// LocationRule determines how the address of a load or store is computed.  An
// Indexed rule carries the element offset directly, whilst a Mapped rule
// describes a symbolic access whose offset must be resolved at run time
// through the descriptor tables of the concrete template.
type LocationRule interface {
	fmt.Stringer
	isLocationRule()
}

// Indexed is a location whose element offset is computed directly.
type Indexed struct {
	// Element offset (an address expression).
	Location Instruction
	// Header of the concrete template, when the destination is a
	// subcomponent whose template is statically known.
	TemplateHeader util.Option[string]
}

// Mapped is a location resolved at run time from the IO descriptor tables.
// For example, accessing a[2][3].b[2].c gives the accesses [Indexed([2, 3]),
// Qualified(b), Indexed([2]), Qualified(c)].
type Mapped struct {
	// Code of the IO signal within the concrete template.
	SignalCode uint
	// Access steps applied to that signal.
	Accesses []Access
}

func (*Indexed) isLocationRule() {}
func (*Mapped) isLocationRule()  {}

func (p *Indexed) String() string {
	return fmt.Sprintf("INDEXED(%s, %s)", p.Location.String(), p.TemplateHeader.String())
}

func (p *Mapped) String() string {
	var accesses = make([]string, len(p.Accesses))
	//
	for i, a := range p.Accesses {
		accesses[i] = a.String()
	}
	//
	return fmt.Sprintf("MAPPED(%d, [%s])", p.SignalCode, strings.Join(accesses, ", "))
}

// Access is a single step of a mapped location.
type Access interface {
	fmt.Stringer
	isAccess()
}

// IndexedAccess subscripts an array.  Fewer indices than the declared number
// of dimensions may be given, in which case the access denotes a subarray.
type IndexedAccess struct {
	Indexes []Instruction
	// Declared number of dimensions of the array.
	SymbolDim uint
}

// QualifiedAccess projects a field out of a bus.
type QualifiedAccess struct {
	Field uint
}

func (*IndexedAccess) isAccess()   {}
func (*QualifiedAccess) isAccess() {}

func (p *IndexedAccess) String() string {
	return fmt.Sprintf("[%s]/%d", joinInstructions(p.Indexes, ","), p.SymbolDim)
}

func (p *QualifiedAccess) String() string {
	return fmt.Sprintf(".%d", p.Field)
}
