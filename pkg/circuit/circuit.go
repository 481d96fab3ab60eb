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

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/consensys/go-witgen/pkg/util/field"
)

// TemplateCode describes the lowered body of one concrete template.
type TemplateCode struct {
	Id uint
	// Unique name of the concrete template (e.g. "Multiplier_3").
	Header string
	// Name of the template as declared.
	Name string
	// Indicates the template was declared parallel.
	IsParallel bool
	// Indicates some instance of this template is used as a parallel
	// subcomponent.
	IsParallelComponent bool
	// Indicates some instance of this template is used as a sequential
	// subcomponent.
	IsNotParallelComponent bool
	// Indicates some subcomponent of this template may run in parallel.
	HasParallelSubcmp     bool
	NumberOfInputs        uint
	NumberOfOutputs       uint
	NumberOfIntermediates uint
	Inputs                []Wire
	Outputs               []Wire
	Body                  []ir.Instruction
	VarStackDepth         uint
	ExpressionStackDepth  uint
	NumberOfComponents    uint
	// Template id of each subcomponent instance, grouped by declaration.
	// Entries are empty for instances which are never created.
	ComponentInstances [][]util.Option[uint]
}

// NumberOfSignals returns the total number of signals of one instance.
func (t *TemplateCode) NumberOfSignals() uint {
	return t.NumberOfInputs + t.NumberOfOutputs + t.NumberOfIntermediates
}

// ConstantVariable is a constant array declared within a function.
type ConstantVariable struct {
	Name string `json:"name"`
	// Indices into the circuit constant table.
	Values []uint `json:"values"`
}

// FunctionCode describes the lowered body of one concrete function.
type FunctionCode struct {
	Header  string
	Name    string
	Params  []Param
	Returns []uint
	Body    []ir.Instruction
	// Constant arrays declared within the function.
	ConstantVariables          []ConstantVariable
	MaxNumberOfVars            uint
	MaxNumberOfOpsInExpression uint
}

// ReturnsArray determines whether this function returns an array.
func (f *FunctionCode) ReturnsArray() bool {
	return len(f.Returns) != 0
}

// Version identifies the compiler which produced a circuit.
type Version struct {
	Major uint `json:"major"`
	Minor uint `json:"minor"`
	Patch uint `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Circuit holds the static metadata and lowered code of a complete circuit.
// This is read-only once constructed.
type Circuit struct {
	// Name of the prime field (e.g. "bn128").
	Prime   string
	Version Version
	// Header of the main template.
	MainHeader string
	// First signal of the main component (signal 0 holds the constant one).
	MainSignalOffset    uint
	NumberOfMainInputs  uint
	NumberOfMainOutputs uint
	// Inputs of the main component.
	Inputs []InputInfo
	// Signal identifier of every witness element.
	Witness            []uint
	TotalSignals       uint
	NumberOfComponents uint
	ComponentTreeSize  uint
	// Input and output fields for each concrete template, indexed by template
	// id.
	IOMap map[uint][]IOField
	// Fields of each bus type, indexed by bus id.
	BusFields [][]BusField
	Templates []*TemplateCode
	Functions []*FunctionCode
	// Messages used when reporting failures.
	Messages []string
	// String table.
	Strings []string
	// Field constants, in decimal.
	Constants []string
	// Indicates subcomponents are created implicitly by the runtime.
	ImplicitComponentCreation bool
}

// Field returns the prime field of this circuit, or nil if the prime is not
// supported.
func (c *Circuit) Field() *field.Config {
	return field.GetConfig(c.Prime)
}

// Template returns the template with a given header, or nil.
func (c *Circuit) Template(header string) *TemplateCode {
	for _, t := range c.Templates {
		if t.Header == header {
			return t
		}
	}
	//
	return nil
}

// TemplateById returns the template with a given id, or nil.
func (c *Circuit) TemplateById(id uint) *TemplateCode {
	for _, t := range c.Templates {
		if t.Id == id {
			return t
		}
	}
	//
	return nil
}

// Function returns the function with a given header, or nil.
func (c *Circuit) Function(header string) *FunctionCode {
	for _, f := range c.Functions {
		if f.Header == header {
			return f
		}
	}
	//
	return nil
}

// IOTemplates returns the template ids of the IO map in ascending order.
func (c *Circuit) IOTemplates() []uint {
	var ids = make([]uint, 0, len(c.IOMap))
	//
	for id := range c.IOMap {
		ids = append(ids, id)
	}
	//
	slices.Sort(ids)
	//
	return ids
}

// IOFields returns the IO fields of a given template ordered by signal code.
// Codes must be exactly 0..n-1, since run-time lookups index the fields by
// code.
func (c *Circuit) IOFields(id uint) ([]IOField, error) {
	var fields = slices.Clone(c.IOMap[id])
	//
	slices.SortFunc(fields, func(a, b IOField) int { return cmp.Compare(a.Code, b.Code) })
	//
	for i, f := range fields {
		if f.Code != uint(i) {
			return nil, fmt.Errorf("template %d has signal codes out of sequence (found %d at position %d)", id,
				f.Code, i)
		}
	}
	//
	return fields, nil
}

// NumberOfIOSignals returns the total number of fields in the IO map.
func (c *Circuit) NumberOfIOSignals() uint {
	var n uint
	//
	for _, fields := range c.IOMap {
		n += uint(len(fields))
	}
	//
	return n
}

// NumberOfBusFields returns the total number of fields across all bus types.
func (c *Circuit) NumberOfBusFields() uint {
	var n uint
	//
	for _, fields := range c.BusFields {
		n += uint(len(fields))
	}
	//
	return n
}

// Validate checks the structural consistency of the circuit metadata.
func (c *Circuit) Validate() error {
	var errs []error
	//
	if c.Field() == nil {
		errs = append(errs, fmt.Errorf("unknown prime \"%s\"", c.Prime))
	}
	//
	if c.Template(c.MainHeader) == nil {
		errs = append(errs, fmt.Errorf("unknown main template \"%s\"", c.MainHeader))
	}
	//
	for i, t := range c.Templates {
		if t.Id != uint(i) {
			errs = append(errs, fmt.Errorf("template %s has id %d at position %d", t.Header, t.Id, i))
		}
	}
	//
	for id := range c.IOMap {
		if id >= uint(len(c.Templates)) {
			errs = append(errs, fmt.Errorf("IO map refers to unknown template %d", id))
		}
	}
	//
	for _, id := range c.IOTemplates() {
		if _, err := c.IOFields(id); err != nil {
			errs = append(errs, err)
		}
		//
		errs = append(errs, c.validateBusIds(ioBusIds(c.IOMap[id]))...)
	}
	//
	for _, fields := range c.BusFields {
		errs = append(errs, c.validateBusIds(busBusIds(fields))...)
	}
	//
	for _, w := range c.Witness {
		if w >= c.TotalSignals {
			errs = append(errs, fmt.Errorf("witness signal %d out of range", w))
		}
	}
	//
	return errors.Join(errs...)
}

func (c *Circuit) validateBusIds(ids []uint) []error {
	var errs []error
	//
	for _, id := range ids {
		if id >= uint(len(c.BusFields)) {
			errs = append(errs, fmt.Errorf("unknown bus %d", id))
		}
	}
	//
	return errs
}

func ioBusIds(fields []IOField) []uint {
	var ids []uint
	//
	for _, f := range fields {
		if f.BusId.HasValue() {
			ids = append(ids, f.BusId.Unwrap())
		}
	}
	//
	return ids
}

func busBusIds(fields []BusField) []uint {
	var ids []uint
	//
	for _, f := range fields {
		if f.BusId.HasValue() {
			ids = append(ids, f.BusId.Unwrap())
		}
	}
	//
	return ids
}
