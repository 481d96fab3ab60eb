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

import (
	"fmt"
	"strings"
)

// Line is a single line of emitted code, along with its nesting depth.
type Line struct {
	Depth uint
	Text  string
}

// Code is an ordered list of emitted instructions.  Nesting is tracked
// explicitly, so that Writer can indent the output.
type Code struct {
	depth uint
	lines []Line
}

// NewCode constructs an empty code block.
func NewCode() *Code {
	return &Code{}
}

// Add appends a line at the current depth.
func (p *Code) Add(text string) {
	p.lines = append(p.lines, Line{p.depth, text})
}

// Addf appends a formatted line at the current depth.
func (p *Code) Addf(format string, args ...any) {
	p.Add(fmt.Sprintf(format, args...))
}

// Comment appends a line at the current depth, where the line is expected to
// be a comment in the target language.
func (p *Code) Comment(format string, args ...any) {
	p.Add(fmt.Sprintf(format, args...))
}

// Open appends a line which opens a nested block.
func (p *Code) Open(format string, args ...any) {
	p.Addf(format, args...)
	p.depth++
}

// Close appends a line which closes the innermost nested block.
func (p *Code) Close(format string, args ...any) {
	if p.depth == 0 {
		panic("unbalanced code block")
	}
	//
	p.depth--
	p.Addf(format, args...)
}

// Else appends a line which separates two halves of a nested block (e.g. an
// else branch).
func (p *Code) Else(format string, args ...any) {
	if p.depth == 0 {
		panic("unbalanced code block")
	}
	//
	p.lines = append(p.lines, Line{p.depth - 1, fmt.Sprintf(format, args...)})
}

// Append appends another code block, nested at the current depth.  Any blocks
// left open by the other code remain open.
func (p *Code) Append(other *Code) {
	if other == nil {
		return
	}
	//
	for _, l := range other.lines {
		p.lines = append(p.lines, Line{p.depth + l.Depth, l.Text})
	}
	//
	p.depth += other.depth
}

// Lines returns the lines of this code block.
func (p *Code) Lines() []Line {
	return p.lines
}

// Len returns the number of lines in this code block.
func (p *Code) Len() int {
	return len(p.lines)
}

// IsEmpty checks whether this code block has any lines.
func (p *Code) IsEmpty() bool {
	return len(p.lines) == 0
}

// Depth returns the number of blocks currently open.
func (p *Code) Depth() uint {
	return p.depth
}

// Texts returns the unindented text of each line.
func (p *Code) Texts() []string {
	var texts = make([]string, len(p.lines))
	//
	for i, l := range p.lines {
		texts[i] = l.Text
	}
	//
	return texts
}

func (p *Code) String() string {
	w := NewWriter("  ")
	w.WriteCode(p)
	//
	return w.String()
}

// Contains checks whether any line of this code block contains a given
// fragment.
func (p *Code) Contains(fragment string) bool {
	for _, l := range p.lines {
		if strings.Contains(l.Text, fragment) {
			return true
		}
	}
	//
	return false
}
