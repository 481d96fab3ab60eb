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
	"math"
	"math/big"

	"github.com/consensys/go-witgen/pkg/util/field"
)

// Type words of the in-memory element representation.
const (
	// SHORT_MONTGOMERY marks an element whose short value is valid, and whose
	// long value is in Montgomery form.
	SHORT_MONTGOMERY uint32 = 0x40000000
	// LONG_NORMAL marks an element whose value is held in long, normal form.
	LONG_NORMAL uint32 = 0x80000000
	// LONG_MONTGOMERY marks an element whose value is held in long,
	// Montgomery form.
	LONG_MONTGOMERY uint32 = 0xC0000000
)

// EncodeConstant produces the in-memory representation of a field constant
// given in decimal.  Constants whose centered representative fits in a signed
// 32-bit word carry it as their short value.  In all cases, the long value
// holds the Montgomery form of the constant.
func EncodeConstant(config *field.Config, decimal string) ([]byte, error) {
	n, ok := new(big.Int).SetString(decimal, 10)
	//
	if !ok {
		return nil, fmt.Errorf("invalid constant \"%s\"", decimal)
	}
	//
	var (
		bytes    = make([]byte, 8, 8+4*config.Size32())
		centered = config.Centered(n)
	)
	//
	if centered.IsInt64() && centered.Int64() >= math.MinInt32 && centered.Int64() <= math.MaxInt32 {
		binary.LittleEndian.PutUint32(bytes, uint32(int32(centered.Int64())))
		binary.LittleEndian.PutUint32(bytes[4:], SHORT_MONTGOMERY)
	} else {
		binary.LittleEndian.PutUint32(bytes[4:], LONG_MONTGOMERY)
	}
	//
	return append(bytes, encodeLimbs(config.Montgomery(n), config.Size32())...), nil
}

// EncodeLong produces the in-memory representation of a value in long, normal
// form (e.g. the raw prime, or the constant one held in signal zero).
func EncodeLong(value *big.Int, size32 uint) []byte {
	var bytes = make([]byte, 8, 8+4*size32)
	//
	binary.LittleEndian.PutUint32(bytes[4:], LONG_NORMAL)
	//
	return append(bytes, encodeLimbs(value, size32)...)
}

// encodeLimbs writes a non-negative value as a little-endian sequence of 32-bit
// words.
func encodeLimbs(value *big.Int, size32 uint) []byte {
	var (
		bytes = make([]byte, 4*size32)
		be    = value.Bytes()
	)
	// Reverse big-endian into little-endian
	for i := 0; i < len(be) && i < len(bytes); i++ {
		bytes[i] = be[len(be)-1-i]
	}
	//
	return bytes
}
