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
package compiler

import (
	"fmt"

	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/codegen/cvm"
	"github.com/consensys/go-witgen/pkg/codegen/native"
	"github.com/consensys/go-witgen/pkg/codegen/wat"
)

// BACKENDS lists the names of the supported backends.
var BACKENDS = []string{"native", "wasm", "cvm"}

// NewBackend constructs the backend with a given name.
func NewBackend(name string) (codegen.Backend, error) {
	switch name {
	case "native":
		return native.NewBackend(), nil
	case "wasm":
		return wat.NewBackend(), nil
	case "cvm":
		return cvm.NewBackend(), nil
	}
	//
	return nil, fmt.Errorf("unknown backend \"%s\"", name)
}
