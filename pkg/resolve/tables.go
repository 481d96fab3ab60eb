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
	"slices"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/util"
)

// FieldDef describes one IO field of a template, or one field of a bus.
// Offsets are in elements.
type FieldDef struct {
	Offset  uint
	Lengths []uint
	Size    uint
	BusId   util.Option[uint]
}

// Tables is a model of the descriptor tables consulted at run time to resolve
// mapped locations.
type Tables struct {
	// IO fields of each template, indexed by template id then signal code.
	Templates map[uint][]FieldDef
	// Fields of each bus type, indexed by bus id then field number.
	Buses [][]FieldDef
}

// NewTables constructs the descriptor tables of a given circuit.
func NewTables(c *circuit.Circuit) (*Tables, error) {
	var tables = &Tables{make(map[uint][]FieldDef), make([][]FieldDef, len(c.BusFields))}
	//
	for id := range c.IOMap {
		fields, err := c.IOFields(id)
		if err != nil {
			return nil, err
		}
		//
		var defs = make([]FieldDef, len(fields))
		//
		for i, f := range fields {
			defs[i] = FieldDef{f.Offset, f.Lengths, f.Size, f.BusId}
		}
		//
		tables.Templates[id] = defs
	}
	//
	for id, fields := range c.BusFields {
		tables.Buses[id] = make([]FieldDef, len(fields))
		//
		for i, f := range fields {
			tables.Buses[id][i] = FieldDef{f.Offset, f.Dimensions, f.Size, f.BusId}
		}
	}
	//
	return tables, nil
}

// Field returns the definition of an IO field of a given template.
func (t *Tables) Field(template uint, code uint) (FieldDef, error) {
	defs, ok := t.Templates[template]
	//
	if !ok {
		return FieldDef{}, fmt.Errorf("template %d has no IO fields", template)
	} else if code >= uint(len(defs)) {
		return FieldDef{}, fmt.Errorf("template %d has no signal %d", template, code)
	}
	//
	return defs[code], nil
}

// BusField returns the definition of a field of a given bus type.
func (t *Tables) BusField(bus uint, field uint) (FieldDef, error) {
	if bus >= uint(len(t.Buses)) {
		return FieldDef{}, fmt.Errorf("unknown bus %d", bus)
	} else if field >= uint(len(t.Buses[bus])) {
		return FieldDef{}, fmt.Errorf("bus %d has no field %d", bus, field)
	}
	//
	return t.Buses[bus][field], nil
}

// MappedOffset computes the element offset (from the signal start of the
// subcomponent) of a mapped address, assuming the subcomponent is an instance
// of the given template.  Index expressions are evaluated with the given
// function.
func (t *Tables) MappedOffset(template uint, m *MappedAddress, eval Evaluator) (uint, error) {
	def, err := t.Field(template, m.SignalCode)
	if err != nil {
		return 0, err
	}
	//
	var (
		offset  = def.Offset
		indexed bool
	)
	//
	for _, step := range m.Steps {
		switch s := step.(type) {
		case *IndexStep:
			indexed = true
			//
			var indexes = make([]uint, len(s.Indexes))
			//
			for i, e := range s.Indexes {
				if indexes[i], err = eval(e); err != nil {
					return 0, err
				}
			}
			//
			flat, err := Flatten(indexes, def.Lengths)
			if err != nil {
				return 0, err
			}
			//
			offset += flat * def.Size
		case *FieldStep:
			if def.BusId.IsEmpty() {
				return 0, fmt.Errorf("field access %s on a signal", s.String())
			} else if len(def.Lengths) > 0 && !indexed {
				return 0, fmt.Errorf("field access %s on an array of buses", s.String())
			}
			//
			if def, err = t.BusField(def.BusId.Unwrap(), s.Field); err != nil {
				return 0, err
			}
			//
			offset += def.Offset
			indexed = false
		}
	}
	//
	return offset, nil
}

// CheckFieldSteps checks that no field step of a mapped address is applied to
// an array of buses without first selecting an element.  The run-time walk
// locates the bus id of a field by its number of dimensions, which is only
// known once an index step has been applied.  Every template whose IO field
// with the given signal code is a bus is checked.
func (t *Tables) CheckFieldSteps(m *MappedAddress) error {
	var ids = make([]uint, 0, len(t.Templates))
	//
	for id := range t.Templates {
		ids = append(ids, id)
	}
	//
	slices.Sort(ids)
	//
outer:
	for _, id := range ids {
		defs := t.Templates[id]
		//
		if m.SignalCode >= uint(len(defs)) || defs[m.SignalCode].BusId.IsEmpty() {
			continue
		}
		//
		var (
			def     = defs[m.SignalCode]
			indexed bool
		)
		//
		for _, step := range m.Steps {
			switch s := step.(type) {
			case *IndexStep:
				indexed = true
			case *FieldStep:
				if len(def.Lengths) > 0 && !indexed {
					return fmt.Errorf("field access %s on an array of buses (template %d)", s.String(), id)
				} else if def.BusId.IsEmpty() {
					continue outer
				}
				//
				next, err := t.BusField(def.BusId.Unwrap(), s.Field)
				if err != nil {
					continue outer
				}
				//
				def, indexed = next, false
			}
		}
	}
	//
	return nil
}

// Flatten computes the flattened (row-major) position of a possibly partial
// list of indexes into an array with the given dimensions.  That is,
// (((i₀·d₁+i₁)·d₂+…)·d_{k−1}+i_{k−1}) multiplied by the product of the
// dimensions for which no index was supplied.
func Flatten(indexes []uint, dims []uint) (uint, error) {
	if len(indexes) > len(dims) {
		return 0, fmt.Errorf("%d indexes for %d dimensions", len(indexes), len(dims))
	}
	//
	var flat uint
	//
	for i, index := range indexes {
		if index >= dims[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension %d", index, dims[i])
		}
		//
		flat = flat*dims[i] + index
	}
	//
	for _, d := range dims[len(indexes):] {
		flat *= d
	}
	//
	return flat, nil
}
