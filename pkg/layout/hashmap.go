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
	"hash/fnv"

	"fortio.org/safecast"
	"github.com/consensys/go-witgen/pkg/circuit"
)

// HashEntry is one slot of the input hash map.  A slot whose hash is zero is
// empty.
type HashEntry struct {
	Hash uint64 `json:"hash" msgpack:"hash"`
	// First signal of the input.
	Offset uint32 `json:"offset" msgpack:"offset"`
	// Number of signals in the input.
	Size uint32 `json:"size" msgpack:"size"`
}

// IsEmpty determines whether this slot is unused.
func (e HashEntry) IsEmpty() bool {
	return e.Hash == 0
}

// Hash returns the 64-bit FNV-1a hash of an input name, as used by the runtime
// to locate inputs.
func Hash(name string) uint64 {
	hasher := fnv.New64a()
	// Write on a hash never fails
	_, _ = hasher.Write([]byte(name))
	//
	return hasher.Sum64()
}

// BuildInputHashMap constructs the input hash map for a given set of inputs
// and capacity.  Collisions are resolved by linear probing with wrap-around.
func BuildInputHashMap(inputs []circuit.InputInfo, capacity uint) ([]HashEntry, error) {
	if uint(len(inputs)) > capacity {
		return nil, fmt.Errorf("%d inputs exceed hash map capacity %d", len(inputs), capacity)
	}
	//
	var table = make([]HashEntry, capacity)
	//
	for _, input := range inputs {
		var (
			h   = Hash(input.Name)
			pos = h % uint64(capacity)
		)
		//
		offset, err := safecast.Conv[uint32](input.Start)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input.Name, err)
		}
		//
		size, err := safecast.Conv[uint32](input.Size)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input.Name, err)
		}
		//
		for !table[pos].IsEmpty() {
			if table[pos].Hash == h {
				return nil, fmt.Errorf("duplicate input %s", input.Name)
			}
			//
			pos = (pos + 1) % uint64(capacity)
		}
		//
		table[pos] = HashEntry{h, offset, size}
	}
	//
	return table, nil
}

// LookupInput finds the entry for a given input name by replaying the probe
// sequence of the runtime.  Reaching an empty slot means the input does not
// exist.
func LookupInput(table []HashEntry, name string) (HashEntry, bool) {
	var (
		capacity = uint64(len(table))
		h        = Hash(name)
	)
	//
	if capacity == 0 {
		return HashEntry{}, false
	}
	//
	for i, pos := uint64(0), h%capacity; i < capacity; i, pos = i+1, (pos+1)%capacity {
		if table[pos].IsEmpty() {
			return HashEntry{}, false
		} else if table[pos].Hash == h {
			return table[pos], true
		}
	}
	//
	return HashEntry{}, false
}

// EncodeHashMap produces the little-endian memory image of a hash map.
func EncodeHashMap(table []HashEntry) []byte {
	var bytes = make([]byte, len(table)*HASHMAP_ENTRY_BYTES)
	//
	for i, e := range table {
		var slot = bytes[i*HASHMAP_ENTRY_BYTES:]
		//
		binary.LittleEndian.PutUint64(slot, e.Hash)
		binary.LittleEndian.PutUint32(slot[8:], e.Offset)
		binary.LittleEndian.PutUint32(slot[12:], e.Size)
	}
	//
	return bytes
}
