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
package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] circuit_file",
	Short: "report the memory layout of a circuit.",
	Long: `Plan the linear memory layout of a given circuit, as used by the WebAssembly
	backend, and report every region along with the sizes it was derived from.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig(cmd)
		format := GetString(cmd, "format")
		circuit := ReadCircuitFile(args[0])
		//
		if config.Prime != "" {
			circuit.Prime = config.Prime
		}
		//
		counts, err := layout.CountsOf(circuit, config.LayoutOptions())
		if err != nil {
			fail(4, "%s", err)
		}
		//
		descriptor, err := layout.NewDescriptor(circuit, layout.Plan(counts))
		if err != nil {
			fail(4, "%s", err)
		}
		//
		var buffer bytes.Buffer
		if err := layout.WriteDescriptor(&buffer, format, descriptor); err != nil {
			fail(2, "%s", err)
		}
		//
		WriteOutput(cmd, config.Output, buffer.Bytes())
	},
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().StringP("format", "f", "table",
		fmt.Sprintf("output format (%s)", strings.Join(layout.DESCRIPTOR_FORMATS, ", ")))
	layoutCmd.Flags().String("prime", "", "override the prime field of the circuit")
	layoutCmd.Flags().Uint("fr-memory-size", 0, "scratch memory reserved for field arithmetic")
	layoutCmd.Flags().StringP("config", "c", "", "read settings from a TOML file")
	layoutCmd.Flags().StringP("output", "o", "", "specify output file (default stdout)")
}
