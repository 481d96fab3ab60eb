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
	"encoding/json"
	"fmt"
	"io"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/vmihailenco/msgpack/v5"
)

// Descriptor summarises the memory layout of a circuit for consumption by
// execution runtimes.
type Descriptor struct {
	Prime           string      `json:"prime"`
	Size32          uint        `json:"size32"`
	ElementBytes    uint        `json:"element_bytes"`
	HashMapCapacity uint        `json:"hashmap_capacity"`
	Regions         []Region    `json:"regions"`
	VarStackStart   uint        `json:"var_stack_start"`
	ComponentHeader []Region    `json:"component_header"`
	Inputs          []HashEntry `json:"inputs"`
	Tables          *Tables     `json:"tables"`
}

// NewDescriptor constructs the descriptor of a circuit.
func NewDescriptor(c *circuit.Circuit, l *Layout) (*Descriptor, error) {
	tables, err := BuildTables(c, l)
	if err != nil {
		return nil, err
	}
	//
	hashmap, err := BuildInputHashMap(c.Inputs, l.HashMapCapacity())
	if err != nil {
		return nil, err
	}
	// Only record occupied slots
	var inputs []HashEntry
	//
	for _, e := range hashmap {
		if !e.IsEmpty() {
			inputs = append(inputs, e)
		}
	}
	//
	return &Descriptor{
		Prime:           c.Field().Prime(),
		Size32:          l.Size32(),
		ElementBytes:    l.ElementBytes(),
		HashMapCapacity: l.HashMapCapacity(),
		Regions:         l.Regions(),
		VarStackStart:   l.VarStackStart(),
		ComponentHeader: []Region{
			{"template_id", TEMPLATE_ID_IN_COMPONENT, 4},
			{"signal_start", SIGNAL_START_IN_COMPONENT, 4},
			{"input_counter", INPUT_COUNTER_IN_COMPONENT, 4},
			{"subcomponents", SUBCOMPONENTS_IN_COMPONENT, 0},
		},
		Inputs: inputs,
		Tables: tables,
	}, nil
}

// DESCRIPTOR_FORMATS lists the supported descriptor formats.
var DESCRIPTOR_FORMATS = []string{"json", "msgpack", "table"}

// WriteDescriptor writes a descriptor in a given format.
func WriteDescriptor(w io.Writer, format string, d *Descriptor) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		//
		return enc.Encode(d)
	case "msgpack":
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		//
		return enc.Encode(d)
	case "table":
		return writeTable(w, d)
	default:
		return fmt.Errorf("unknown descriptor format \"%s\"", format)
	}
}

func writeTable(w io.Writer, d *Descriptor) error {
	var tp = util.NewTablePrinter(4, uint(len(d.Regions)+2))
	//
	tp.AlignLeft(0)
	tp.SetRow(0, "region", "start", "size", "end")
	//
	for i, r := range d.Regions {
		tp.SetRow(uint(i+1), r.Name, fmt.Sprintf("%d", r.Start), fmt.Sprintf("%d", r.Size), fmt.Sprintf("%d", r.End()))
	}
	//
	tp.SetRow(uint(len(d.Regions)+1), "var_stack", fmt.Sprintf("%d", d.VarStackStart), "", "")
	//
	return tp.Write(w)
}
