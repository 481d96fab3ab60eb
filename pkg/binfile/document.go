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
package binfile

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Document is the serialisable form of a circuit.  Documents are written as
// JSON, or as msgpack within a binary file, using the same keys in both cases.
// Instructions, addresses and locations are tagged unions distinguished by
// their "kind".
type Document struct {
	Prime                     string                     `json:"prime"`
	Version                   circuit.Version            `json:"version"`
	MainHeader                string                     `json:"main_header"`
	MainSignalOffset          uint                       `json:"main_signal_offset"`
	NumberOfMainInputs        uint                       `json:"number_of_main_inputs"`
	NumberOfMainOutputs       uint                       `json:"number_of_main_outputs"`
	Inputs                    []circuit.InputInfo        `json:"inputs"`
	Witness                   []uint                     `json:"witness"`
	TotalSignals              uint                       `json:"total_signals"`
	NumberOfComponents        uint                       `json:"number_of_components"`
	ComponentTreeSize         uint                       `json:"component_tree_size"`
	IOMap                     map[uint][]circuit.IOField `json:"io_map"`
	BusFields                 [][]circuit.BusField       `json:"bus_fields"`
	Templates                 []*Template                `json:"templates"`
	Functions                 []*Function                `json:"functions"`
	Messages                  []string                   `json:"messages"`
	Strings                   []string                   `json:"strings"`
	Constants                 []string                   `json:"constants"`
	ImplicitComponentCreation bool                       `json:"implicit_component_creation"`
}

// Template is the serialisable form of a template.
type Template struct {
	Id                     uint                  `json:"id"`
	Header                 string                `json:"header"`
	Name                   string                `json:"name"`
	IsParallel             bool                  `json:"is_parallel"`
	IsParallelComponent    bool                  `json:"is_parallel_component"`
	IsNotParallelComponent bool                  `json:"is_not_parallel_component"`
	HasParallelSubcmp      bool                  `json:"has_parallel_subcmp"`
	NumberOfInputs         uint                  `json:"number_of_inputs"`
	NumberOfOutputs        uint                  `json:"number_of_outputs"`
	NumberOfIntermediates  uint                  `json:"number_of_intermediates"`
	Inputs                 []circuit.Wire        `json:"inputs"`
	Outputs                []circuit.Wire        `json:"outputs"`
	Body                   []*Node               `json:"body"`
	VarStackDepth          uint                  `json:"var_stack_depth"`
	ExpressionStackDepth   uint                  `json:"expression_stack_depth"`
	NumberOfComponents     uint                  `json:"number_of_components"`
	ComponentInstances     [][]util.Option[uint] `json:"component_instances"`
}

// Function is the serialisable form of a function.
type Function struct {
	Header                     string                     `json:"header"`
	Name                       string                     `json:"name"`
	Params                     []circuit.Param            `json:"params"`
	Returns                    []uint                     `json:"returns"`
	Body                       []*Node                    `json:"body"`
	ConstantVariables          []circuit.ConstantVariable `json:"constant_variables"`
	MaxNumberOfVars            uint                       `json:"max_number_of_vars"`
	MaxNumberOfOpsInExpression uint                       `json:"max_number_of_ops_in_expression"`
}

// Node is the serialisable form of an instruction, holding the fields of
// every kind of instruction.  Only those relevant to its kind are set.
type Node struct {
	Kind      string `json:"kind"`
	Line      uint   `json:"line,omitempty"`
	MessageId uint   `json:"message_id,omitempty"`
	// Value
	ValueKind string `json:"value_kind,omitempty"`
	OpAux     uint   `json:"op_aux,omitempty"`
	Value     uint   `json:"value,omitempty"`
	// Load and Store
	Size         *Size     `json:"size,omitempty"`
	SrcSize      *Size     `json:"src_size,omitempty"`
	Address      *Address  `json:"address,omitempty"`
	Location     *Location `json:"location,omitempty"`
	DestIsOutput bool      `json:"dest_is_output,omitempty"`
	SrcAddress   *Node     `json:"src_address,omitempty"`
	Src          *Node     `json:"src,omitempty"`
	// Call
	Symbol        string  `json:"symbol,omitempty"`
	ArgumentSizes []Size  `json:"argument_sizes,omitempty"`
	Arguments     []*Node `json:"arguments,omitempty"`
	ArenaSize     uint    `json:"arena_size,omitempty"`
	Return        *Return `json:"return,omitempty"`
	ReturnsArray  bool    `json:"returns_array,omitempty"`
	// Compute
	Op     string  `json:"op,omitempty"`
	EqSize *Size   `json:"eq_size,omitempty"`
	Stack  []*Node `json:"stack,omitempty"`
	// Assert and Return
	Evaluate *Node `json:"evaluate,omitempty"`
	WithSize uint  `json:"with_size,omitempty"`
	IsArray  bool  `json:"is_array,omitempty"`
	// Branch and Loop
	Cond     *Node   `json:"cond,omitempty"`
	Then     []*Node `json:"then,omitempty"`
	Else     []*Node `json:"else,omitempty"`
	Continue *Node   `json:"continue,omitempty"`
	Body     []*Node `json:"body,omitempty"`
	// CreateCmp
	Cmp                 *Node  `json:"cmp,omitempty"`
	TemplateId          uint   `json:"template_id,omitempty"`
	Name                string `json:"name,omitempty"`
	SignalOffset        uint   `json:"signal_offset,omitempty"`
	SignalOffsetJump    uint   `json:"signal_offset_jump,omitempty"`
	ComponentOffset     uint   `json:"component_offset,omitempty"`
	ComponentOffsetJump uint   `json:"component_offset_jump,omitempty"`
	Dimensions          []uint `json:"dimensions,omitempty"`
	NumberOfCmp         uint   `json:"number_of_cmp,omitempty"`
	HasInputs           bool   `json:"has_inputs,omitempty"`
	IsParallel          bool   `json:"is_parallel,omitempty"`
}

// Address is the serialisable form of an address type.
type Address struct {
	// One of "variable", "signal" or "subcmp".
	Kind            string            `json:"kind"`
	Cmp             *Node             `json:"cmp,omitempty"`
	UniformParallel util.Option[bool] `json:"uniform_parallel"`
	IsOutput        bool              `json:"is_output,omitempty"`
	Input           *Input            `json:"input,omitempty"`
}

// Input is the serialisable form of the input information of a subcomponent
// address.
type Input struct {
	// One of "no_last", "last" or "unknown".
	Status         string `json:"status"`
	NeedsDecrement bool   `json:"needs_decrement"`
}

// Location is the serialisable form of a location rule.
type Location struct {
	// Either "indexed" or "mapped".
	Kind           string              `json:"kind"`
	Location       *Node               `json:"location,omitempty"`
	TemplateHeader util.Option[string] `json:"template_header"`
	SignalCode     uint                `json:"signal_code,omitempty"`
	Accesses       []*Access           `json:"accesses,omitempty"`
}

// Access is the serialisable form of one access of a mapped location.
type Access struct {
	// Either "indexed" or "qualified".
	Kind      string  `json:"kind"`
	Indexes   []*Node `json:"indexes,omitempty"`
	SymbolDim uint    `json:"symbol_dim,omitempty"`
	Field     uint    `json:"field,omitempty"`
}

// Return is the serialisable form of the return type of a call.
type Return struct {
	// Either "intermediate" or "final".
	Kind         string    `json:"kind"`
	OpAux        uint      `json:"op_aux,omitempty"`
	Size         *Size     `json:"size,omitempty"`
	DestIsOutput bool      `json:"dest_is_output,omitempty"`
	Address      *Address  `json:"address,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// Size is the serialisable form of a size.  Statically known sizes are written
// as plain numbers, and template dependent sizes as a list of variants.
type Size struct {
	ir.Size
}

// MarshalJSON implementation for the json.Marshaler interface.
func (s Size) MarshalJSON() ([]byte, error) {
	if s.IsSingle() {
		return json.Marshal(s.Value())
	}
	//
	return json.Marshal(s.Variants())
}

// UnmarshalJSON implementation for the json.Unmarshaler interface.
func (s *Size) UnmarshalJSON(data []byte) error {
	var (
		n        uint
		variants []ir.Variant
	)
	//
	if err := json.Unmarshal(data, &n); err == nil {
		s.Size = ir.Single(n)
		return nil
	} else if err := json.Unmarshal(data, &variants); err != nil {
		return fmt.Errorf("malformed size %s", string(data))
	}
	//
	s.Size = ir.Multiple(variants...)
	//
	return nil
}

// EncodeMsgpack implementation for the msgpack.CustomEncoder interface.
func (s Size) EncodeMsgpack(enc *msgpack.Encoder) error {
	if s.IsSingle() {
		return enc.EncodeUint(uint64(s.Value()))
	}
	//
	return enc.Encode(s.Variants())
}

// DecodeMsgpack implementation for the msgpack.CustomDecoder interface.
func (s *Size) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	//
	if msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32 {
		var variants []ir.Variant
		//
		if err := dec.Decode(&variants); err != nil {
			return err
		}
		//
		s.Size = ir.Multiple(variants...)
		//
		return nil
	}
	//
	n, err := dec.DecodeUint()
	if err != nil {
		return err
	}
	//
	s.Size = ir.Single(n)
	//
	return nil
}
