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
	"github.com/consensys/go-witgen/pkg/binfile"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] circuit_file",
	Short: "convert a circuit document between JSON and binary.",
	Long: `Convert a given circuit document (JSON or binary) into either a binary file,
	with optional metadata attached, or an indented JSON document.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			data []byte
			err  error
		)
		//
		output := GetString(cmd, "output")
		defines := GetStringArray(cmd, "define")
		circuit := ReadCircuitFile(args[0])
		//
		if GetFlag(cmd, "json") {
			data, err = binfile.EncodeJson(circuit)
		} else if metadata, merr := buildMetadata(defines); merr != nil {
			err = merr
		} else {
			data, err = binfile.EncodeBinary(circuit, metadata)
		}
		//
		if err != nil {
			fail(2, "%s", err)
		}
		//
		WriteOutput(cmd, output, data)
	},
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Bool("json", false, "write a JSON document rather than a binary file")
	convertCmd.Flags().StringP("output", "o", "", "specify output file.")
	convertCmd.Flags().StringArrayP("define", "D", []string{}, "define metadata attribute.")
	convertCmd.MarkFlagRequired("output")
}
