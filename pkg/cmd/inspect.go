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
	"io"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/trigger"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] circuit_file",
	Short: "print the bucket IR of a circuit.",
	Long: `Print the bucket IR of the templates and functions of a given circuit.
	Optionally, report the trigger plan chosen for every write to a subcomponent
	input, or the violations found by the trigger protocol audit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			unit    = GetString(cmd, "unit")
			plans   = GetFlag(cmd, "plans")
			audit   = GetFlag(cmd, "audit")
			out     = cmd.OutOrStdout()
			circuit = ReadCircuitFile(args[0])
			err     error
		)
		//
		switch {
		case plans:
			err = writePlans(out, circuit, unit)
		case audit:
			err = writeFindings(out, trigger.Audit(circuit))
		default:
			err = writeUnits(out, circuit, unit)
		}
		//
		if err != nil {
			fail(4, "%s", err)
		}
	},
}

func writeUnits(w io.Writer, c *circuit.Circuit, unit string) error {
	for _, t := range c.Templates {
		if unit == "" || unit == t.Header {
			if err := writeBody(w, "template", t.Header, t.Body); err != nil {
				return err
			}
		}
	}
	//
	for _, f := range c.Functions {
		if unit == "" || unit == f.Header {
			if err := writeBody(w, "function", f.Header, f.Body); err != nil {
				return err
			}
		}
	}
	//
	return nil
}

func writeBody(w io.Writer, kind string, header string, body []ir.Instruction) error {
	if _, err := fmt.Fprintf(w, "%s %s:\n", kind, header); err != nil {
		return err
	}
	//
	for _, insn := range body {
		if _, err := fmt.Fprintf(w, "  %d: %s\n", insn.Metadata().Line, insn.String()); err != nil {
			return err
		}
	}
	//
	return nil
}

// plannedWrite is a write to a subcomponent input, along with its trigger plan.
type plannedWrite struct {
	template string
	line     uint
	plan     string
}

func writePlans(w io.Writer, c *circuit.Circuit, unit string) error {
	var writes []plannedWrite
	//
	for _, t := range c.Templates {
		if unit != "" && unit != t.Header {
			continue
		}
		//
		var err error
		//
		ir.WalkAll(t.Body, func(insn ir.Instruction) bool {
			if sub, location, ok := subcmpInput(insn); ok && err == nil {
				var plan trigger.Plan
				//
				line := insn.Metadata().Line
				//
				if plan, err = planOf(line, sub, location); err == nil {
					writes = append(writes, plannedWrite{t.Header, line, plan.String()})
				}
			}
			//
			return true
		})
		//
		if err != nil {
			return fmt.Errorf("%s: %w", t.Header, err)
		}
	}
	//
	table := util.NewTablePrinter(3, uint(len(writes)+1))
	table.SetRow(0, "template", "line", "plan")
	table.AlignLeft(0)
	table.AlignLeft(2)
	//
	for i, write := range writes {
		table.SetRow(uint(i+1), write.template, fmt.Sprintf("%d", write.line), write.plan)
	}
	//
	return table.Write(w)
}

// Extract the destination of an instruction which writes a subcomponent input.
func subcmpInput(insn ir.Instruction) (ir.SubcmpSignal, ir.LocationRule, bool) {
	var (
		address  ir.AddressType
		location ir.LocationRule
	)
	//
	switch p := insn.(type) {
	case *ir.Store:
		address, location = p.DestAddressType, p.Dest
	case *ir.Call:
		if final, ok := p.Return.(*ir.Final); ok {
			address, location = final.DestAddressType, final.Dest
		}
	}
	//
	if sub, ok := address.(ir.SubcmpSignal); ok && sub.Input.IsInput {
		return sub, location, true
	}
	//
	return ir.SubcmpSignal{}, nil, false
}

func planOf(line uint, sub ir.SubcmpSignal, location ir.LocationRule) (plan trigger.Plan, err error) {
	defer ir.Recover(&err)
	//
	return trigger.PlanFor(line, sub, location), nil
}

func writeFindings(w io.Writer, findings []trigger.Finding) error {
	for _, f := range findings {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	//
	_, err := fmt.Fprintf(w, "%d violation(s) found\n", len(findings))
	//
	return err
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("unit", "u", "", "only inspect the template or function with this header")
	inspectCmd.Flags().Bool("plans", false, "report the trigger plan of every subcomponent input write")
	inspectCmd.Flags().Bool("audit", false, "report trigger protocol violations")
}
