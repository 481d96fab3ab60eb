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
package util

import (
	"fmt"
	"io"
)

// TablePrinter is useful for printing aligned tables, such as the memory
// layout of a circuit.
type TablePrinter struct {
	widths []uint
	// Indicates which columns are left aligned
	left []bool
	rows [][]string
}

// NewTablePrinter constructs a new table with given dimensions.
func NewTablePrinter(width uint, height uint) *TablePrinter {
	widths := make([]uint, width)
	left := make([]bool, width)
	rows := make([][]string, height)
	// Construct the table
	for i := uint(0); i < height; i++ {
		rows[i] = make([]string, width)
	}

	return &TablePrinter{widths, left, rows}
}

// AlignLeft marks a given column as left aligned (columns are right aligned by
// default).
func (p *TablePrinter) AlignLeft(col uint) {
	p.left[col] = true
}

// Set the contents of a given cell in this table
func (p *TablePrinter) Set(col uint, row uint, val string) {
	p.widths[col] = max(p.widths[col], uint(len(val)))
	p.rows[row][col] = val
}

// SetRow sets the contents of an entire row in this table
func (p *TablePrinter) SetRow(row uint, vals ...string) {
	if len(vals) != len(p.widths) {
		panic("incorrect number of columns")
	}
	// Update column widths
	for i := 0; i < len(p.widths); i++ {
		p.widths[i] = max(p.widths[i], uint(len(vals[i])))
	}
	// Done
	p.rows[row] = vals
}

// Write the table to a given writer.
func (p *TablePrinter) Write(w io.Writer) error {
	for _, row := range p.rows {
		for j, col := range row {
			var err error
			//
			if p.left[j] {
				_, err = fmt.Fprintf(w, " %-*s |", p.widths[j], col)
			} else {
				_, err = fmt.Fprintf(w, " %*s |", p.widths[j], col)
			}
			//
			if err != nil {
				return err
			}
		}
		//
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	//
	return nil
}
