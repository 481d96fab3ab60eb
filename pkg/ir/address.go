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

	"github.com/consensys/go-witgen/pkg/util"
)

// AddressType identifies the memory region addressed by a load or store.  This
// is one of Variable (the local frame of the enclosing template or function),
// Signal (the signals of the enclosing component) or SubcmpSignal (the signals
// of a subcomponent).
type AddressType interface {
	fmt.Stringer
	isAddressType()
}

// Variable addresses the local variable frame.
type Variable struct{}

// Signal addresses the signals of the enclosing component.
type Signal struct{}

// SubcmpSignal addresses the signals of a subcomponent.
type SubcmpSignal struct {
	// Expression identifying the subcomponent slot.
	Cmp Instruction
	// Whether all instances in this slot are parallel (true), none are
	// (false), or this is only known at run time (empty).
	UniformParallel util.Option[bool]
	// Indicates the addressed signal is an output of the subcomponent.
	IsOutput bool
	// Input information, used when writing a subcomponent input.
	Input InputInformation
}

func (Variable) isAddressType()     {}
func (Signal) isAddressType()       {}
func (SubcmpSignal) isAddressType() {}

func (Variable) String() string {
	return "VARIABLE"
}

func (Signal) String() string {
	return "SIGNAL"
}

func (p SubcmpSignal) String() string {
	return fmt.Sprintf("SUBCMP(%s, parallel=%s, output=%t, %s)", p.Cmp.String(), p.UniformParallel.String(),
		p.IsOutput, p.Input.String())
}

// InputStatus records what is statically known about whether a given write is
// the last input of a subcomponent.
type InputStatus uint8

const (
	// NoLast indicates the write is known not to be the last input.
	NoLast InputStatus = iota
	// Last indicates the write is known to be the last input.
	Last
	// Unknown indicates this can only be determined at run time.
	Unknown
)

func (s InputStatus) String() string {
	switch s {
	case NoLast:
		return "NO_LAST"
	case Last:
		return "LAST"
	case Unknown:
		return "UNKNOWN"
	}
	//
	return "???"
}

// InputInformation describes a write to a subcomponent signal.
type InputInformation struct {
	// Indicates the write targets an input signal.
	IsInput bool
	// Whether this is the last input (only meaningful for inputs).
	Status InputStatus
	// Whether the remaining input counter should be decremented.  This is
	// false for redundant writes to an array input which is only partially
	// complete.
	NeedsDecrement bool
}

// NoInput describes a write which does not target an input signal.
func NoInput() InputInformation {
	return InputInformation{false, NoLast, false}
}

// Input describes a write to an input signal.
func Input(status InputStatus, needsDecrement bool) InputInformation {
	return InputInformation{true, status, needsDecrement}
}

func (p InputInformation) String() string {
	if !p.IsInput {
		return "NO_INPUT"
	}
	//
	return fmt.Sprintf("INPUT(%s, decrement=%t)", p.Status.String(), p.NeedsDecrement)
}
