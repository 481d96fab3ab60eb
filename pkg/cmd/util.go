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
	"fmt"
	"os"
	"strings"

	"github.com/consensys/go-witgen/pkg/binfile"
	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errorColor = color.New(color.FgRed, color.Bold)

// GetFlag gets an expected flag, or exits if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fail(2, "%s", err)
	}
	//
	return r
}

// GetString gets an expected string flag, or exits if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fail(2, "%s", err)
	}
	//
	return r
}

// GetUint gets an expected unsigned integer flag, or exits if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fail(2, "%s", err)
	}
	//
	return r
}

// GetStringArray gets an expected string array flag, or exits if an error
// arises.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fail(2, "%s", err)
	}
	//
	return r
}

// ReadCircuitFile reads a circuit document (either JSON or binary), exiting
// if it cannot be read or is malformed.
func ReadCircuitFile(filename string) *circuit.Circuit {
	c, err := binfile.ReadCircuitFile(filename)
	//
	if err != nil {
		fail(2, "%s", err)
	}
	//
	return c
}

// WriteOutput writes the given bytes to a file, or to stdout when no file is
// given.
func WriteOutput(cmd *cobra.Command, filename string, data []byte) {
	var err error
	//
	if filename == "" {
		_, err = cmd.OutOrStdout().Write(data)
	} else {
		err = os.WriteFile(filename, data, 0644)
	}
	//
	if err != nil {
		fail(3, "%s", err)
	}
}

// Parse "key=value" definitions into a metadata map.
func buildMetadata(items []string) (map[string]string, error) {
	metadata := make(map[string]string)
	//
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed definition \"%s\"", item)
		}
		//
		metadata[key] = value
	}
	//
	return metadata, nil
}

// Report an error and exit with the given code.  Errors are only highlighted
// when stderr is a terminal.
func fail(code int, format string, args ...any) {
	color.NoColor = !term.IsTerminal(int(os.Stderr.Fd()))
	//
	fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("error:"), fmt.Sprintf(format, args...))
	os.Exit(code)
}
