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
package codegen

// ExceptionCode is a result code returned by generated entry points.  Zero
// indicates success.
type ExceptionCode uint

const (
	// SUCCESS indicates no error occurred.
	SUCCESS ExceptionCode = iota
	// SIGNAL_NOT_FOUND indicates an input name has no entry in the input hash
	// map.
	SIGNAL_NOT_FOUND
	// NO_REMAINING_INPUTS indicates an input was set when no inputs remained.
	NO_REMAINING_INPUTS
	// INPUT_ALREADY_SET indicates an input signal was set twice.
	INPUT_ALREADY_SET
	// ASSERT_FAILED indicates an assertion in the circuit failed.
	ASSERT_FAILED
	// OUT_OF_MEMORY indicates linear memory could not be grown.
	OUT_OF_MEMORY
	// INPUT_INDEX_EXCEEDS_SIZE indicates an input array index was out of
	// bounds.
	INPUT_INDEX_EXCEEDS_SIZE
)

var exceptionNames = []string{
	"success",
	"signal not found",
	"no remaining input signals to set",
	"input signal already set",
	"assert failed",
	"out of memory",
	"input array index exceeds size",
}

func (c ExceptionCode) String() string {
	if uint(c) < uint(len(exceptionNames)) {
		return exceptionNames[c]
	}
	//
	return "unknown exception"
}
