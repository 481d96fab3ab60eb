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
package util

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Option provides a simple encoding for an optional value.  Circuit documents
// encode an empty option as null (JSON) or nil (msgpack), and a present one as
// the bare value.
type Option[T any] struct {
	// Indicates whether value present
	some bool
	// The value itself
	value T
}

// Some constructs an option which holds a value.
func Some[T any](val T) Option[T] {
	return Option[T]{true, val}
}

// None constructs an option which doesn't hold a value.
func None[T any]() Option[T] {
	var empty T
	return Option[T]{false, empty}
}

// HasValue indicates whether or not this option contains an actual value, or
// whether it is empty.
func (o Option[T]) HasValue() bool {
	return o.some
}

// IsEmpty indicates whether or not this option is empty (i.e. contains no value).
func (o Option[T]) IsEmpty() bool {
	return !o.some
}

// Unwrap returns the value contained, or panics if this option is empty.
func (o Option[T]) Unwrap() T {
	if o.some {
		return o.value
	}
	//
	panic("cannot unwrap an empty option")
}

// UnwrapOr returns the value contained, or the given default if this option is
// empty.
func (o Option[T]) UnwrapOr(def T) T {
	if o.some {
		return o.value
	}
	//
	return def
}

func (o Option[T]) String() string {
	if o.some {
		return fmt.Sprint(o.value)
	}
	//
	return "NONE"
}

// ============================================================================
// Encoding / Decoding
// ============================================================================

var jsonNull = []byte("null")

// MarshalJSON encodes an empty option as null.
func (o Option[T]) MarshalJSON() ([]byte, error) {
	if !o.some {
		return jsonNull, nil
	}
	//
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as an empty option.
func (o *Option[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = None[T]()
		return nil
	}
	//
	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	//
	*o = Some(val)
	//
	return nil
}

// EncodeMsgpack encodes an empty option as nil.
func (o Option[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !o.some {
		return enc.EncodeNil()
	}
	//
	return enc.Encode(o.value)
}

// DecodeMsgpack decodes nil as an empty option.
func (o *Option[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	} else if code == msgpcode.Nil {
		*o = None[T]()
		return dec.DecodeNil()
	}
	//
	var val T
	if err := dec.Decode(&val); err != nil {
		return err
	}
	//
	*o = Some(val)
	//
	return nil
}
