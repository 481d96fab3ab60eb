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

import "fmt"

// InvariantError reports a compiler-internal contract violation, for example a
// mapped location where only an indexed one is legal.  Such errors indicate a
// bug in an earlier phase and are never recoverable within a lowering walk.
type InvariantError struct {
	// Source line of the offending instruction (if known).
	Line uint
	// Diagnostic message.
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal error (line %d): %s", e.Line, e.Message)
}

// Failf aborts the current lowering walk with an invariant error.  The panic is
// recovered at the unit boundary (see Recover).
func Failf(line uint, format string, args ...any) {
	panic(&InvariantError{line, fmt.Sprintf(format, args...)})
}

// Recover converts a panic raised by Failf back into an error.  It must be
// deferred directly, as in:
//
//	defer ir.Recover(&err)
//
// Panics which are not invariant errors are propagated unchanged.
func Recover(err *error) {
	if r := recover(); r != nil {
		if ie, ok := r.(*InvariantError); ok {
			*err = ie
			return
		}
		//
		panic(r)
	}
}
