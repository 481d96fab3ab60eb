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
	"math/big"

	"fortio.org/safecast"
	"github.com/consensys/go-witgen/pkg/circuit"
)

// Segment is a block of initialised linear memory.
type Segment struct {
	// Region which this segment initialises.
	Name   string
	Offset uint
	Data   []byte
}

// Segments computes the initial memory image of a circuit, as a sequence of
// data segments in address order.  Empty segments are omitted.
func Segments(c *circuit.Circuit, l *Layout, tables *Tables) ([]Segment, error) {
	var (
		segments []Segment
		config   = c.Field()
		add      = func(name string, offset uint, data []byte) {
			if len(data) > 0 {
				segments = append(segments, Segment{name, offset, data})
			}
		}
	)
	//
	if config == nil {
		return nil, fmt.Errorf("unknown prime \"%s\"", c.Prime)
	}
	//
	varStack, err := encodeWord(l.VarStackStart())
	if err != nil {
		return nil, err
	}
	//
	hashmap, err := BuildInputHashMap(c.Inputs, l.HashMapCapacity())
	if err != nil {
		return nil, err
	}
	//
	signalFree, err := encodeWord(l.SignalMemoryStart())
	if err != nil {
		return nil, err
	}
	//
	componentFree, err := encodeWord(l.ComponentTreeStart())
	if err != nil {
		return nil, err
	}
	//
	add(STACK_POINTER, l.StackPointer(), varStack)
	add(RAW_PRIME, l.RawPrimeStart(), EncodeLong(config.Modulus(), l.Size32()))
	add(INPUT_HASHMAP, l.InputHashMapStart(), EncodeHashMap(hashmap))
	add(WITNESS_LIST, l.WitnessListStart(), EncodeWords(tables.Witness))
	add(SIGNAL_FREE_POS, l.SignalFreePos(), signalFree)
	// signal zero holds the constant one
	add(SIGNAL_MEMORY, l.SignalMemoryStart(), EncodeLong(big.NewInt(1), l.Size32()))
	add(COMPONENT_FREE_POS, l.ComponentFreePos(), componentFree)
	add(TEMPLATE_TO_IO, l.TemplateToIOStart(), EncodeWords(tables.TemplateToIO))
	add(IO_TO_INFO, l.IOToInfoStart(), EncodeWords(tables.IOToInfo))
	add(IO_INFO, l.IOInfoStart(), EncodeWords(tables.IOInfo))
	add(BUS_TO_FIELD, l.BusToFieldStart(), EncodeWords(tables.BusToField))
	add(FIELD_TO_INFO, l.FieldToInfoStart(), EncodeWords(tables.FieldToInfo))
	add(FIELD_INFO, l.FieldInfoStart(), EncodeWords(tables.FieldInfo))
	add(MESSAGE_BUFFER_COUNTER, l.MessageBufferCounter(), make([]byte, 4))
	add(MESSAGE_LIST, l.MessageListStart(), encodeStrings(c.Messages, l.Counts().MessageBytes))
	add(STRING_LIST, l.StringListStart(), encodeStrings(c.Strings, l.Counts().MessageBytes))
	//
	var constants []byte
	//
	for _, constant := range c.Constants {
		bytes, err := EncodeConstant(config, constant)
		if err != nil {
			return nil, err
		}
		//
		constants = append(constants, bytes...)
	}
	//
	add(CONSTANTS, l.ConstantsStart(), constants)
	//
	return segments, nil
}

func encodeWord(value uint) ([]byte, error) {
	w, err := safecast.Conv[uint32](value)
	if err != nil {
		return nil, err
	}
	//
	return binary.LittleEndian.AppendUint32(nil, w), nil
}

// encodeStrings lays out strings in fixed-size, zero-terminated entries,
// truncating any string which does not fit.
func encodeStrings(strings []string, entryBytes uint) []byte {
	if entryBytes == 0 {
		return nil
	}
	//
	var bytes = make([]byte, uint(len(strings))*entryBytes)
	//
	for i, s := range strings {
		var entry = bytes[uint(i)*entryBytes : uint(i+1)*entryBytes-1]
		//
		copy(entry, s)
	}
	//
	return bytes
}
