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
	"context"
	"fmt"
	"strings"

	"github.com/consensys/go-witgen/pkg/compiler"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] circuit_file",
	Short: "lower a circuit into code for a given backend.",
	Long: `Lower a given circuit document (JSON or binary) into native C++, WebAssembly
	text or CVM assembly.  Settings are read from an optional TOML configuration
	file, and then overridden by any flags given explicitly.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig(cmd)
		strict := GetFlag(cmd, "strict")
		// Parse circuit
		circuit := ReadCircuitFile(args[0])
		// Lower it
		out, err := compiler.Compile(context.Background(), circuit, config)
		if err != nil {
			fail(4, "%s", err)
		} else if strict && len(out.Findings) != 0 {
			fail(5, "%d trigger protocol violation(s) found", len(out.Findings))
		}
		//
		var buffer bytes.Buffer
		if _, err := out.WriteTo(&buffer); err != nil {
			fail(3, "%s", err)
		}
		//
		log.Debugf("generated %d bytes of %s code", buffer.Len(), out.Backend.Name())
		WriteOutput(cmd, config.Output, buffer.Bytes())
	},
}

// Read the configuration file (if given), and then apply any flags set
// explicitly on the command line.
func readConfig(cmd *cobra.Command) compiler.Config {
	config := compiler.DefaultConfig()
	//
	if filename := GetString(cmd, "config"); filename != "" {
		if err := compiler.LoadConfig(filename, &config); err != nil {
			fail(2, "%s", err)
		}
	}
	//
	flags := cmd.Flags()
	//
	if flags.Changed("backend") {
		config.Backend = GetString(cmd, "backend")
	}
	//
	if flags.Changed("prime") {
		config.Prime = GetString(cmd, "prime")
	}
	//
	if flags.Changed("comments") {
		config.Comments = GetFlag(cmd, "comments")
	}
	//
	if flags.Changed("max-threads") {
		config.MaxThreads = GetUint(cmd, "max-threads")
	}
	//
	if flags.Changed("jobs") {
		config.Jobs = GetUint(cmd, "jobs")
	}
	//
	if flags.Changed("fr-memory-size") {
		config.FrMemorySize = GetUint(cmd, "fr-memory-size")
	}
	//
	if flags.Changed("output") {
		config.Output = GetString(cmd, "output")
	}
	//
	if flags.Changed("no-audit") && GetFlag(cmd, "no-audit") {
		config.AuditTriggers = false
	}
	//
	if err := config.Validate(); err != nil {
		fail(2, "%s", err)
	}
	//
	return config
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("backend", "b", "native",
		fmt.Sprintf("target backend (%s)", strings.Join(compiler.BACKENDS, ", ")))
	compileCmd.Flags().String("prime", "", "override the prime field of the circuit")
	compileCmd.Flags().Bool("comments", false, "emit explanatory comments")
	compileCmd.Flags().Uint("max-threads", 32, "maximum threads used by generated native code")
	compileCmd.Flags().UintP("jobs", "j", 0, "number of units lowered concurrently (default all cores)")
	compileCmd.Flags().Uint("fr-memory-size", 0, "scratch memory reserved for field arithmetic (wasm)")
	compileCmd.Flags().StringP("config", "c", "", "read settings from a TOML file")
	compileCmd.Flags().StringP("output", "o", "", "specify output file (default stdout)")
	compileCmd.Flags().Bool("no-audit", false, "skip the trigger protocol audit")
	compileCmd.Flags().Bool("strict", false, "fail when the trigger protocol audit reports violations")
}
