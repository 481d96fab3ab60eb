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
package layout

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
	"github.com/consensys/go-witgen/pkg/circuit"
)

// Tables holds the contents of the descriptor tables which the stack-machine
// runtime uses to resolve mapped locations, along with the witness list.  All
// pointers are absolute byte addresses, and all offsets within the info tables
// are byte offsets.  Sizes and dimensions are in elements.
type Tables struct {
	// For each template, the address of its first entry in IOToInfo (or
	// zero if the template has no IO entries).
	TemplateToIO []uint32 `json:"template_to_io"`
	// For each IO field, the address of its entry in IOInfo.
	IOToInfo []uint32 `json:"io_to_info"`
	// Info words for each IO field: offset, every dimension but the first,
	// element size (arrays only) and bus id (buses only).
	IOInfo []uint32 `json:"io_info"`
	// For each bus type, the address of its first entry in FieldToInfo.
	BusToField []uint32 `json:"bus_to_field"`
	// For each bus field, the address of its entry in FieldInfo.
	FieldToInfo []uint32 `json:"field_to_info"`
	// Info words for each bus field (as for IOInfo).
	FieldInfo []uint32 `json:"field_info"`
	// Signal identifier of each witness element.
	Witness []uint32 `json:"witness"`
}

// BuildTables constructs the descriptor tables of a circuit for a given
// layout.
func BuildTables(c *circuit.Circuit, l *Layout) (*Tables, error) {
	var (
		tables   Tables
		w        words
		ioCursor = l.IOToInfoStart()
		ioInfo   = l.IOInfoStart()
	)
	// Template to IO
	for id := range c.Templates {
		if fields, ok := c.IOMap[uint(id)]; ok {
			tables.TemplateToIO = w.add(tables.TemplateToIO, ioCursor)
			ioCursor += 4 * uint(len(fields))
		} else {
			tables.TemplateToIO = w.add(tables.TemplateToIO, 0)
		}
	}
	// IO to info & IO info, in signal code order
	for _, id := range c.IOTemplates() {
		fields, err := c.IOFields(id)
		if err != nil {
			return nil, err
		}
		//
		for _, f := range fields {
			tables.IOToInfo = w.add(tables.IOToInfo, ioInfo+4*uint(len(tables.IOInfo)))
			tables.IOInfo = w.info(tables.IOInfo, f.Offset*l.ElementBytes(), f.Lengths, f.Size, f.BusId.HasValue(),
				f.BusId.UnwrapOr(0))
		}
	}
	// Bus to field
	var (
		fieldCursor = l.FieldToInfoStart()
		fieldInfo   = l.FieldInfoStart()
	)
	//
	for _, fields := range c.BusFields {
		tables.BusToField = w.add(tables.BusToField, fieldCursor)
		fieldCursor += 4 * uint(len(fields))
	}
	// Field to info & field info
	for _, fields := range c.BusFields {
		for _, f := range fields {
			tables.FieldToInfo = w.add(tables.FieldToInfo, fieldInfo+4*uint(len(tables.FieldInfo)))
			tables.FieldInfo = w.info(tables.FieldInfo, f.Offset*l.ElementBytes(), f.Dimensions, f.Size,
				f.BusId.HasValue(), f.BusId.UnwrapOr(0))
		}
	}
	// Witness
	for _, signal := range c.Witness {
		tables.Witness = w.add(tables.Witness, signal)
	}
	//
	if w.err != nil {
		return nil, fmt.Errorf("descriptor tables: %w", w.err)
	}
	//
	return &tables, nil
}

// words accumulates 32-bit words, recording the first narrowing failure.
type words struct {
	err error
}

func (p *words) add(table []uint32, value uint) []uint32 {
	v, err := safecast.Conv[uint32](value)
	//
	if err != nil && p.err == nil {
		p.err = err
	}
	//
	return append(table, v)
}

func (p *words) info(table []uint32, offset uint, dims []uint, size uint, bus bool, busId uint) []uint32 {
	table = p.add(table, offset)
	//
	if len(dims) > 0 {
		for _, d := range dims[1:] {
			table = p.add(table, d)
		}
		//
		table = p.add(table, size)
	}
	//
	if bus {
		table = p.add(table, busId)
	}
	//
	return table
}

// EncodeWords produces the little-endian memory image of a table.
func EncodeWords(table []uint32) []byte {
	var bytes = make([]byte, 4*len(table))
	//
	for i, w := range table {
		binary.LittleEndian.PutUint32(bytes[4*i:], w)
	}
	//
	return bytes
}
