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
package ir

import (
	"fmt"
	"strings"
)

// Variant associates a size with one concrete template which a polymorphic
// subcomponent may turn out to be.
type Variant struct {
	Template uint `json:"template"`
	Size     uint `json:"size"`
}

// Size describes the number of field elements produced or consumed by an
// instruction.  This is either a single statically known number, or a finite
// map from template identifier to size when it depends on the concrete template
// of a polymorphic subcomponent.  In the latter case, generated code selects
// the size at run time using the template id stored in the component header.
type Size struct {
	multiple bool
	single   uint
	variants []Variant
}

// Single constructs a statically known size.
func Single(n uint) Size {
	return Size{false, n, nil}
}

// Multiple constructs a size which depends upon the concrete template of a
// subcomponent.
func Multiple(variants ...Variant) Size {
	return Size{true, 0, variants}
}

// IsSingle determines whether this size is statically known.
func (s Size) IsSingle() bool {
	return !s.multiple
}

// Value returns the statically known size, or panics with an invariant error
// if this size is not statically known.
func (s Size) Value() uint {
	if s.multiple {
		Failf(0, "size %s is not statically known", s.String())
	}
	//
	return s.single
}

// Variants returns the per-template sizes of a multiple size.
func (s Size) Variants() []Variant {
	return s.variants
}

// IsZero determines whether this size is zero for every possible template.
func (s Size) IsZero() bool {
	if !s.multiple {
		return s.single == 0
	}
	//
	for _, v := range s.variants {
		if v.Size != 0 {
			return false
		}
	}
	//
	return true
}

// IsScalar determines whether this size is statically one.
func (s Size) IsScalar() bool {
	return !s.multiple && s.single == 1
}

// Max returns the largest size across all variants.
func (s Size) Max() uint {
	if !s.multiple {
		return s.single
	}
	//
	var m uint
	//
	for _, v := range s.variants {
		m = max(m, v.Size)
	}
	//
	return m
}

// For returns the size for a given concrete template.  For a single size, this
// is the same for all templates.
func (s Size) For(template uint) (uint, bool) {
	if !s.multiple {
		return s.single, true
	}
	//
	for _, v := range s.variants {
		if v.Template == template {
			return v.Size, true
		}
	}
	//
	return 0, false
}

func (s Size) String() string {
	if !s.multiple {
		return fmt.Sprintf("%d", s.single)
	}
	//
	var builder strings.Builder
	//
	builder.WriteString("{")
	//
	for i, v := range s.variants {
		if i != 0 {
			builder.WriteString(",")
		}
		//
		builder.WriteString(fmt.Sprintf("%d:%d", v.Template, v.Size))
	}
	//
	builder.WriteString("}")
	//
	return builder.String()
}

// InstrContext carries the size information attached to loads, stores and call
// arguments.
type InstrContext struct {
	Size Size
}

// Sized constructs a context for a statically known size.
func Sized(n uint) InstrContext {
	return InstrContext{Single(n)}
}
