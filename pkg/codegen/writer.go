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
	"io"
	"strings"
)

// Writer is a string builder which supports indentation.
type Writer struct {
	indent  string
	builder *strings.Builder
}

// NewWriter constructs a writer which indents nested lines with a given string.
func NewWriter(indent string) *Writer {
	return &Writer{indent, &strings.Builder{}}
}

// WriteCode writes every line of a code block, indented by its depth.
func (p *Writer) WriteCode(code *Code) {
	for _, l := range code.Lines() {
		p.WriteIndent(l.Depth)
		p.builder.WriteString(l.Text)
		p.builder.WriteString("\n")
	}
}

// WriteLine writes a single unindented line.
func (p *Writer) WriteLine(pieces ...string) {
	for _, s := range pieces {
		p.builder.WriteString(s)
	}
	//
	p.builder.WriteString("\n")
}

// WriteIndent writes the indentation for a given depth.
func (p *Writer) WriteIndent(depth uint) {
	for i := uint(0); i < depth; i++ {
		p.builder.WriteString(p.indent)
	}
}

func (p *Writer) String() string {
	return p.builder.String()
}

// WriteTo writes everything written so far to a given stream.
func (p *Writer) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.builder.String())
	//
	return int64(n), err
}
