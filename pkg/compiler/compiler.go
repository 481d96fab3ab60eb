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
	"context"
	"fmt"
	"io"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/trigger"
	"github.com/consensys/go-witgen/pkg/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Output is the result of compiling a circuit.
type Output struct {
	// Backend which generated the code.
	Backend codegen.Backend
	// Memory layout of the circuit.
	Layout *layout.Layout
	// Trigger protocol violations found by the audit (if enabled).
	Findings []trigger.Finding
	// Generated code, in order: header, templates, functions and footer.
	Code *codegen.Code
}

// WriteTo writes the generated code to a given stream.
func (p *Output) WriteTo(w io.Writer) (int64, error) {
	writer := codegen.NewWriter("  ")
	writer.WriteCode(p.Code)
	//
	return writer.WriteTo(w)
}

// Compile lowers a circuit using the backend named by the configuration.
// Templates and functions are lowered concurrently, but the output is always
// assembled in declaration order.  An internal error raised while lowering
// any unit aborts compilation.
func Compile(ctx context.Context, c *circuit.Circuit, config Config) (*Output, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	//
	if config.Prime != "" && config.Prime != c.Prime {
		log.Debugf("overriding prime %s with %s", c.Prime, config.Prime)
		//
		override := *c
		override.Prime = config.Prime
		c = &override
	}
	//
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit: %w", err)
	}
	//
	backend, err := NewBackend(config.Backend)
	if err != nil {
		return nil, err
	}
	//
	stats := util.NewPerfStats()
	//
	counts, err := layout.CountsOf(c, config.LayoutOptions())
	if err != nil {
		return nil, err
	}
	//
	l := layout.Plan(counts)
	//
	env, err := codegen.NewEnv(c, l, codegen.Options{Comments: config.Comments, MaxThreads: config.MaxThreads})
	if err != nil {
		return nil, fmt.Errorf("building memory image: %w", err)
	}
	//
	stats.Log("Planning memory layout")
	//
	output := &Output{Backend: backend, Layout: l}
	//
	if config.AuditTriggers {
		output.Findings = audit(c)
	}
	//
	if output.Code, err = lowerAll(ctx, env, backend, config.Jobs); err != nil {
		return nil, err
	}
	//
	return output, nil
}

func audit(c *circuit.Circuit) []trigger.Finding {
	stats := util.NewPerfStats()
	findings := trigger.Audit(c)
	//
	for _, f := range findings {
		log.Warnf("trigger audit: %s", f.String())
	}
	//
	stats.Log("Auditing subcomponent triggers")
	//
	return findings
}

// lowerAll lowers every unit of a circuit with a given backend, using at most
// jobs goroutines.
func lowerAll(ctx context.Context, env *codegen.Env, backend codegen.Backend, jobs uint) (*codegen.Code, error) {
	var (
		stats     = util.NewPerfStats()
		c         = env.Circuit
		templates = make([]*codegen.Code, len(c.Templates))
		functions = make([]*codegen.Code, len(c.Functions))
		code      = codegen.NewCode()
	)
	//
	header, err := lowerUnit(ctx, env, "header", backend.Header)
	if err != nil {
		return nil, err
	}
	//
	footer, err := lowerUnit(ctx, env, "footer", backend.Footer)
	if err != nil {
		return nil, err
	}
	//
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(jobs))
	//
	for i, t := range c.Templates {
		g.Go(func() (err error) {
			templates[i], err = lowerUnit(gctx, env, t.Header, func(ctx *codegen.Context) *codegen.Code {
				return backend.Template(ctx, t)
			})
			//
			return err
		})
	}
	//
	for i, f := range c.Functions {
		g.Go(func() (err error) {
			functions[i], err = lowerUnit(gctx, env, f.Header, func(ctx *codegen.Context) *codegen.Code {
				return backend.Function(ctx, f)
			})
			//
			return err
		})
	}
	//
	if err := g.Wait(); err != nil {
		return nil, err
	}
	//
	code.Append(header)
	//
	for _, unit := range templates {
		code.Append(unit)
	}
	//
	for _, unit := range functions {
		code.Append(unit)
	}
	//
	code.Append(footer)
	//
	stats.Log(fmt.Sprintf("Lowering %d units (%s)", len(templates)+len(functions), backend.Name()))
	//
	return code, nil
}

// lowerUnit lowers a single unit with its own context, converting any internal
// error raised by the walk into an ordinary error.
func lowerUnit(ctx context.Context, env *codegen.Env, name string,
	fn func(*codegen.Context) *codegen.Code) (*codegen.Code, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	//
	code, err := recoverUnit(env, fn)
	if err != nil {
		return nil, fmt.Errorf("lowering %s: %w", name, err)
	}
	//
	log.WithFields(log.Fields{"unit": name, "lines": code.Len()}).Debug("lowered")
	//
	return code, nil
}

func recoverUnit(env *codegen.Env, fn func(*codegen.Context) *codegen.Code) (code *codegen.Code, err error) {
	defer ir.Recover(&err)
	//
	return fn(codegen.NewContext(env)), nil
}
