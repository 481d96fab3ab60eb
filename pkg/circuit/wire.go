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
package circuit

import "github.com/consensys/go-witgen/pkg/util"

// Wire describes an input or output of a template, which is either a signal or
// a bus, possibly arranged into a (multi-dimensional) array.
type Wire struct {
	Name       string `json:"name"`
	Dimensions []uint `json:"dimensions,omitempty"`
	// Number of field elements in one entry (i.e. 1 for a signal, or the
	// flattened size of a bus).
	Size uint `json:"size"`
	// Bus type, when this wire is a bus.
	BusId util.Option[uint] `json:"bus_id"`
}

// Length returns the number of entries in this wire (i.e. the product of its
// dimensions).
func (w *Wire) Length() uint {
	return product(w.Dimensions)
}

// TotalSize returns the number of field elements occupied by this wire.
func (w *Wire) TotalSize() uint {
	return w.Length() * w.Size
}

// IsBus determines whether this wire is a bus.
func (w *Wire) IsBus() bool {
	return w.BusId.HasValue()
}

// Param describes a function parameter.
type Param struct {
	Name       string `json:"name"`
	Dimensions []uint `json:"dimensions,omitempty"`
}

// Length returns the number of field elements held by this parameter.
func (p *Param) Length() uint {
	return product(p.Dimensions)
}

// InputInfo describes an input of the main component, as exposed to the
// runtime through the input hash map.
type InputInfo struct {
	Name string `json:"name"`
	// First signal of the input.
	Start uint `json:"start"`
	// Number of field elements in the input.
	Size       uint              `json:"size"`
	Dimensions []uint            `json:"dimensions,omitempty"`
	BusId      util.Option[uint] `json:"bus_id"`
}

// IOField describes one input or output of a concrete template, as recorded in
// the IO descriptor tables.
type IOField struct {
	// Signal code of this field within its template.
	Code uint `json:"code"`
	// Offset (in elements) from the signal start of the component.
	Offset uint `json:"offset"`
	// Declared array dimensions.
	Lengths []uint `json:"lengths,omitempty"`
	// Number of field elements in one entry.
	Size  uint              `json:"size"`
	BusId util.Option[uint] `json:"bus_id"`
}

// BusField describes one field of a bus type.
type BusField struct {
	Name string `json:"name"`
	// Offset (in elements) from the start of the bus.
	Offset uint `json:"offset"`
	// Number of field elements in one entry.
	Size       uint              `json:"size"`
	Dimensions []uint            `json:"dimensions,omitempty"`
	BusId      util.Option[uint] `json:"bus_id"`
}

// InfoWords returns the number of 32-bit words used to describe a field with
// the given dimensions in the info tables.  A scalar needs only its offset,
// whilst an array additionally records every dimension but the first, and
// then its element size.  A bus field also records its bus type.
func InfoWords(dimensions []uint, bus bool) uint {
	var n uint = 1
	//
	if len(dimensions) != 0 {
		n = uint(len(dimensions)) + 1
	}
	//
	if bus {
		n++
	}
	//
	return n
}

func product(dims []uint) uint {
	var n uint = 1
	//
	for _, d := range dims {
		n *= d
	}
	//
	return n
}
