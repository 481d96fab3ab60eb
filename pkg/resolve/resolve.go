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
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
)

// Resolve determines the address described by a given address type and
// location rule.  Malformed combinations (e.g. a mapped location into the local
// frame, or a partial index list before the final step) are compiler-internal
// errors, and abort the lowering walk.
func Resolve(line uint, address ir.AddressType, location ir.LocationRule) Address {
	var result Address
	//
	switch p := address.(type) {
	case ir.Variable:
		result.Base = LocalFrame
	case ir.Signal:
		result.Base = OwnSignals
	case ir.SubcmpSignal:
		result.Base = SubcmpSignals
		result.Cmp = p.Cmp
	default:
		ir.Failf(line, "unknown address type %T", address)
	}
	//
	switch loc := location.(type) {
	case *ir.Indexed:
		result.Index = loc.Location
		result.TemplateHeader = loc.TemplateHeader
	case *ir.Mapped:
		if result.Base != SubcmpSignals {
			ir.Failf(line, "mapped location %s outside of a subcomponent", loc.String())
		}
		//
		result.Mapped = resolveMapped(line, loc)
		result.TemplateHeader = util.None[string]()
	default:
		ir.Failf(line, "unknown location rule %T", location)
	}
	//
	return result
}

// ResolveIndexed determines the address of a location which must be indexed,
// such as a destination within a function.
func ResolveIndexed(line uint, address ir.AddressType, location ir.LocationRule) Address {
	if _, ok := location.(*ir.Indexed); !ok {
		ir.Failf(line, "expected indexed location, found %s", location.String())
	}
	//
	return Resolve(line, address, location)
}

func resolveMapped(line uint, loc *ir.Mapped) *MappedAddress {
	var (
		steps = make([]Step, len(loc.Accesses))
		n     = len(loc.Accesses)
	)
	//
	for i, access := range loc.Accesses {
		last := i+1 == n
		//
		switch a := access.(type) {
		case *ir.IndexedAccess:
			if uint(len(a.Indexes)) > a.SymbolDim {
				ir.Failf(line, "%d indexes for %d dimensions", len(a.Indexes), a.SymbolDim)
			} else if uint(len(a.Indexes)) < a.SymbolDim && !last {
				ir.Failf(line, "partial index list before final access")
			} else if i > 0 {
				if _, ok := loc.Accesses[i-1].(*ir.IndexedAccess); ok {
					ir.Failf(line, "consecutive indexed accesses")
				}
			}
			//
			steps[i] = &IndexStep{a.Indexes, a.SymbolDim, last}
		case *ir.QualifiedAccess:
			steps[i] = &FieldStep{a.Field, last}
		default:
			ir.Failf(line, "unknown access %T", access)
		}
	}
	//
	return &MappedAddress{loc.SignalCode, steps}
}
