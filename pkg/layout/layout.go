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
	"fmt"
	"math/bits"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/util/field"
)

// Offsets of the header fields of a component instance.
const (
	// TEMPLATE_ID_IN_COMPONENT is the offset of the template id.
	TEMPLATE_ID_IN_COMPONENT = 0
	// SIGNAL_START_IN_COMPONENT is the offset of the first signal.
	SIGNAL_START_IN_COMPONENT = 4
	// INPUT_COUNTER_IN_COMPONENT is the offset of the remaining input counter.
	INPUT_COUNTER_IN_COMPONENT = 8
	// SUBCOMPONENTS_IN_COMPONENT is the offset of the subcomponent table.
	SUBCOMPONENTS_IN_COMPONENT = 12
)

// MIN_HASHMAP_CAPACITY is the minimum number of slots in the input hash map.
const MIN_HASHMAP_CAPACITY = 256

// HASHMAP_ENTRY_BYTES is the size of one input hash map slot (8 byte hash, 4
// byte offset, 4 byte size).
const HASHMAP_ENTRY_BYTES = 16

// Options captures the sizes which are not determined by the circuit itself.
type Options struct {
	// Scratch memory reserved for the field arithmetic runtime.
	FrMemorySize uint
	// Size of the message ring buffer.
	MessageBufferBytes uint
	// Size of one message (or string) table entry.
	MessageBytes uint
}

// DefaultOptions returns the standard sizes.
func DefaultOptions() Options {
	return Options{field.DEFAULT_FR_MEMORY_SIZE, 256, 240}
}

// Counts holds the static counts from which the memory layout is computed.
type Counts struct {
	Options
	// Number of 32-bit words in a field element.
	Size32 uint
	// Number of main inputs (i.e. names in the input hash map).
	MainInputs uint
	// Number of main input signals.
	InputSignals      uint
	Witness           uint
	Signals           uint
	ComponentTreeSize uint
	Templates         uint
	IOSignals         uint
	// Number of words in the IO info table.
	IOInfoWords uint
	Buses       uint
	BusFields   uint
	// Number of words in the field info table.
	BusInfoWords uint
	Messages     uint
	Strings      uint
	Constants    uint
}

// CountsOf extracts the counts of a given circuit.
func CountsOf(c *circuit.Circuit, opts Options) (Counts, error) {
	var (
		counts Counts
		config = c.Field()
	)
	//
	if config == nil {
		return counts, fmt.Errorf("unknown prime \"%s\"", c.Prime)
	}
	//
	counts.Options = opts
	counts.Size32 = config.Size32()
	counts.MainInputs = uint(len(c.Inputs))
	counts.InputSignals = c.NumberOfMainInputs
	counts.Witness = uint(len(c.Witness))
	counts.Signals = c.TotalSignals
	counts.ComponentTreeSize = c.ComponentTreeSize
	counts.Templates = uint(len(c.Templates))
	counts.IOSignals = c.NumberOfIOSignals()
	counts.Buses = uint(len(c.BusFields))
	counts.BusFields = c.NumberOfBusFields()
	counts.Messages = uint(len(c.Messages))
	counts.Strings = uint(len(c.Strings))
	counts.Constants = uint(len(c.Constants))
	//
	for _, fields := range c.IOMap {
		for _, f := range fields {
			counts.IOInfoWords += circuit.InfoWords(f.Lengths, f.BusId.HasValue())
		}
	}
	//
	for _, fields := range c.BusFields {
		for _, f := range fields {
			counts.BusInfoWords += circuit.InfoWords(f.Dimensions, f.BusId.HasValue())
		}
	}
	//
	return counts, nil
}

// ElementBytes returns the number of bytes occupied by one field element in
// memory (its value plus two header words).
func (c Counts) ElementBytes() uint {
	return (c.Size32 + 2) * 4
}

// HashMapCapacity returns the number of slots in the input hash map, which is
// the smallest power of two covering all inputs (but at least 256).
func (c Counts) HashMapCapacity() uint {
	var capacity uint = 1
	//
	if c.MainInputs > 1 {
		capacity = 1 << bits.Len(c.MainInputs-1)
	}
	//
	return max(capacity, MIN_HASHMAP_CAPACITY)
}

// Region identifies a named, contiguous range of linear memory.
type Region struct {
	Name  string `json:"name" msgpack:"name"`
	Start uint   `json:"start" msgpack:"start"`
	Size  uint   `json:"size" msgpack:"size"`
}

// End returns the first byte after this region.
func (r Region) End() uint {
	return r.Start + r.Size
}

// Names of the regions, in layout order.
const (
	STACK_POINTER           = "stack_pointer"
	FR_MEMORY               = "fr_memory"
	RAW_PRIME               = "raw_prime"
	SHARED_RW_MEMORY        = "shared_rw_memory"
	INPUT_HASHMAP           = "input_hashmap"
	REMAINING_INPUTS        = "remaining_input_counter"
	INPUT_SET_MAP           = "input_set_map"
	WITNESS_LIST            = "witness_list"
	SIGNAL_FREE_POS         = "signal_free_pos"
	SIGNAL_MEMORY           = "signal_memory"
	COMPONENT_FREE_POS      = "component_free_pos"
	COMPONENT_TREE          = "component_tree"
	TEMPLATE_TO_IO          = "template_to_io"
	IO_TO_INFO              = "io_to_info"
	IO_INFO                 = "io_info"
	BUS_TO_FIELD            = "bus_to_field"
	FIELD_TO_INFO           = "field_to_info"
	FIELD_INFO              = "field_info"
	MESSAGE_BUFFER_COUNTER  = "message_buffer_counter"
	MESSAGE_BUFFER          = "message_buffer"
	MESSAGE_LIST            = "message_list"
	STRING_LIST             = "string_list"
	CONSTANTS               = "constants"
)

// Positions of the regions used by the getters.
const (
	numberOfRegions         = 23
	regionStackPointer      = 0
	regionRawPrime          = 2
	regionSharedRW          = 3
	regionHashMap           = 4
	regionRemainingInputs   = 5
	regionInputSetMap       = 6
	regionWitness           = 7
	regionSignalFreePos     = 8
	regionSignalMemory      = 9
	regionComponentFreePos  = 10
	regionComponentTree     = 11
	regionTemplateToIO      = 12
	regionIOToInfo          = 13
	regionIOInfo            = 14
	regionBusToField        = 15
	regionFieldToInfo       = 16
	regionFieldInfo         = 17
	regionMessageBufCounter = 18
	regionMessageBuffer     = 19
	regionMessageList       = 20
	regionStringList        = 21
	regionConstants         = 22
)

// Layout is the memory layout shared by all backends.  Every region follows
// immediately after the previous one, and the variable stack starts after the
// last region.
type Layout struct {
	counts  Counts
	regions [numberOfRegions]Region
}

// Plan computes the memory layout for a given set of counts.
func Plan(counts Counts) *Layout {
	var (
		layout = &Layout{counts: counts}
		sizes  = [numberOfRegions]struct {
			name string
			size uint
		}{
			{STACK_POINTER, 4},
			{FR_MEMORY, counts.FrMemorySize},
			{RAW_PRIME, 4*counts.Size32 + 8},
			{SHARED_RW_MEMORY, 4*counts.Size32 + 8},
			{INPUT_HASHMAP, counts.HashMapCapacity() * HASHMAP_ENTRY_BYTES},
			{REMAINING_INPUTS, 4},
			{INPUT_SET_MAP, 4 * counts.InputSignals},
			{WITNESS_LIST, 4 * counts.Witness},
			{SIGNAL_FREE_POS, 4},
			{SIGNAL_MEMORY, counts.ElementBytes() * counts.Signals},
			{COMPONENT_FREE_POS, 4},
			{COMPONENT_TREE, 4 * counts.ComponentTreeSize},
			{TEMPLATE_TO_IO, 4 * counts.Templates},
			{IO_TO_INFO, 4 * counts.IOSignals},
			{IO_INFO, 4 * counts.IOInfoWords},
			{BUS_TO_FIELD, 4 * counts.Buses},
			{FIELD_TO_INFO, 4 * counts.BusFields},
			{FIELD_INFO, 4 * counts.BusInfoWords},
			{MESSAGE_BUFFER_COUNTER, 4},
			{MESSAGE_BUFFER, counts.MessageBufferBytes},
			{MESSAGE_LIST, counts.MessageBytes * counts.Messages},
			{STRING_LIST, counts.MessageBytes * counts.Strings},
			{CONSTANTS, counts.ElementBytes() * counts.Constants},
		}
		start uint
	)
	//
	for i, s := range sizes {
		layout.regions[i] = Region{s.name, start, s.size}
		start += s.size
	}
	//
	return layout
}

// Counts returns the counts from which this layout was computed.
func (l *Layout) Counts() Counts {
	return l.counts
}

// Regions returns all regions of this layout in order.
func (l *Layout) Regions() []Region {
	return l.regions[:]
}

// Region returns the region with a given name.
func (l *Layout) Region(name string) (Region, bool) {
	for _, r := range l.regions {
		if r.Name == name {
			return r, true
		}
	}
	//
	return Region{}, false
}

// Size32 returns the number of 32-bit words in a field element.
func (l *Layout) Size32() uint {
	return l.counts.Size32
}

// ElementBytes returns the number of bytes occupied by one field element.
func (l *Layout) ElementBytes() uint {
	return l.counts.ElementBytes()
}

// StackPointer returns the address holding the current top of the stack.
func (l *Layout) StackPointer() uint {
	return l.regions[regionStackPointer].Start
}

// RawPrimeStart returns the address of the modulus.
func (l *Layout) RawPrimeStart() uint {
	return l.regions[regionRawPrime].Start
}

// SharedRWStart returns the address of the shared read/write area.
func (l *Layout) SharedRWStart() uint {
	return l.regions[regionSharedRW].Start
}

// InputHashMapStart returns the address of the input hash map.
func (l *Layout) InputHashMapStart() uint {
	return l.regions[regionHashMap].Start
}

// HashMapCapacity returns the number of slots in the input hash map.
func (l *Layout) HashMapCapacity() uint {
	return l.counts.HashMapCapacity()
}

// RemainingInputCounter returns the address of the main remaining input
// counter.
func (l *Layout) RemainingInputCounter() uint {
	return l.regions[regionRemainingInputs].Start
}

// InputSetMapStart returns the address of the "already set" map for main
// inputs.
func (l *Layout) InputSetMapStart() uint {
	return l.regions[regionInputSetMap].Start
}

// WitnessListStart returns the address of the witness signal list.
func (l *Layout) WitnessListStart() uint {
	return l.regions[regionWitness].Start
}

// SignalFreePos returns the address holding the next free signal.
func (l *Layout) SignalFreePos() uint {
	return l.regions[regionSignalFreePos].Start
}

// SignalMemoryStart returns the address of the first signal.
func (l *Layout) SignalMemoryStart() uint {
	return l.regions[regionSignalMemory].Start
}

// ComponentFreePos returns the address holding the next free component.
func (l *Layout) ComponentFreePos() uint {
	return l.regions[regionComponentFreePos].Start
}

// ComponentTreeStart returns the address of the component tree.
func (l *Layout) ComponentTreeStart() uint {
	return l.regions[regionComponentTree].Start
}

// TemplateToIOStart returns the address of the template to IO table.
func (l *Layout) TemplateToIOStart() uint {
	return l.regions[regionTemplateToIO].Start
}

// IOToInfoStart returns the address of the IO to info table.
func (l *Layout) IOToInfoStart() uint {
	return l.regions[regionIOToInfo].Start
}

// IOInfoStart returns the address of the IO info table.
func (l *Layout) IOInfoStart() uint {
	return l.regions[regionIOInfo].Start
}

// BusToFieldStart returns the address of the bus to field table.
func (l *Layout) BusToFieldStart() uint {
	return l.regions[regionBusToField].Start
}

// FieldToInfoStart returns the address of the field to info table.
func (l *Layout) FieldToInfoStart() uint {
	return l.regions[regionFieldToInfo].Start
}

// FieldInfoStart returns the address of the field info table.
func (l *Layout) FieldInfoStart() uint {
	return l.regions[regionFieldInfo].Start
}

// MessageBufferCounter returns the address of the message buffer counter.
func (l *Layout) MessageBufferCounter() uint {
	return l.regions[regionMessageBufCounter].Start
}

// MessageBufferStart returns the address of the message buffer.
func (l *Layout) MessageBufferStart() uint {
	return l.regions[regionMessageBuffer].Start
}

// MessageListStart returns the address of the message table.
func (l *Layout) MessageListStart() uint {
	return l.regions[regionMessageList].Start
}

// StringListStart returns the address of the string table.
func (l *Layout) StringListStart() uint {
	return l.regions[regionStringList].Start
}

// ConstantsStart returns the address of the constant pool.
func (l *Layout) ConstantsStart() uint {
	return l.regions[regionConstants].Start
}

// VarStackStart returns the address at which the variable stack begins.
func (l *Layout) VarStackStart() uint {
	return l.regions[regionConstants].End()
}

// SignalAddress returns the address of a given signal.
func (l *Layout) SignalAddress(signal uint) uint {
	return l.SignalMemoryStart() + signal*l.ElementBytes()
}

// ConstantAddress returns the address of a given constant.
func (l *Layout) ConstantAddress(index uint) uint {
	return l.ConstantsStart() + index*l.ElementBytes()
}

// MessageAddress returns the address of a given message.
func (l *Layout) MessageAddress(index uint) uint {
	return l.MessageListStart() + index*l.counts.MessageBytes
}
