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

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/resolve"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/consensys/go-witgen/pkg/util/field"
)

// Env captures the read-only state shared by every unit lowered for a given
// circuit.  That is, the circuit itself, its memory layout and the descriptor
// tables derived from it.
type Env struct {
	Circuit *circuit.Circuit
	Field   *field.Config
	Layout  *layout.Layout
	// Descriptor tables written into memory.
	Tables *layout.Tables
	// IO and bus field model, indexed by template and bus.
	IO *resolve.Tables
	// Initial memory image.
	Segments []layout.Segment
	// Options determines the behaviour of the emitters.
	Options Options
}

// Options configures the emitted code.
type Options struct {
	// Emit explanatory comments.
	Comments bool
	// Maximum number of concurrent threads (native backend only).
	MaxThreads uint
}

// NewEnv constructs the shared lowering environment for a given circuit and
// layout.
func NewEnv(c *circuit.Circuit, l *layout.Layout, opts Options) (*Env, error) {
	config := c.Field()
	if config == nil {
		return nil, fmt.Errorf("unknown prime %q", c.Prime)
	}
	//
	tables, err := layout.BuildTables(c, l)
	if err != nil {
		return nil, err
	}
	//
	io, err := resolve.NewTables(c)
	if err != nil {
		return nil, err
	}
	//
	segments, err := layout.Segments(c, l, tables)
	if err != nil {
		return nil, err
	}
	//
	return &Env{c, config, l, tables, io, segments, opts}, nil
}

// ElementBytes returns the number of bytes occupied by one field element in
// linear memory (including its two header words).
func (e *Env) ElementBytes() uint {
	return e.Layout.ElementBytes()
}

// Context holds the mutable state of a single lowering walk.  Each template or
// function is lowered with its own context, which makes units independent of
// each other.
type Context struct {
	*Env
	// Next fresh name
	fresh uint
	// Source line most recently announced
	line util.Option[uint]
}

// NewContext constructs a fresh context for lowering one unit.
func NewContext(env *Env) *Context {
	return &Context{env, 0, util.None[uint]()}
}

// Fresh returns a new identifier, unique within this context.
func (c *Context) Fresh() uint {
	n := c.fresh
	c.fresh++
	//
	return n
}

// FreshName returns a new name with a given prefix, unique within this context
// (e.g. "x_3").
func (c *Context) FreshName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, c.Fresh())
}

// LineChanged records the current source line, returning true if it differs
// from the previous one.  Backends use this to avoid repeating line markers.
func (c *Context) LineChanged(line uint) bool {
	if c.line.HasValue() && c.line.Unwrap() == line {
		return false
	}
	//
	c.line = util.Some(line)
	//
	return true
}

// Comments determines whether explanatory comments should be emitted.
func (c *Context) Comments() bool {
	return c.Options.Comments
}
