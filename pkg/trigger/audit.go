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
package trigger

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/resolve"
)

// Finding describes a trigger protocol violation discovered by Audit.
type Finding struct {
	// Header of the template containing the offending write.
	Template string
	// Source line of the offending write (or of the creation, for instances
	// which never run).
	Line uint
	// Subcomponent slot being written.
	Slot uint
	// Description of the violation.
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s (line %d): subcomponent %d: %s", f.Template, f.Line, f.Slot, f.Message)
}

// Audit statically replays the straight-line subcomponent input writes of every
// template in a circuit against the trigger model.  Only writes whose
// subcomponent slot is a constant, and which are not nested inside a loop or
// branch, can be replayed.  A slot touched from within a loop or branch is
// excluded from the audit altogether.
func Audit(c *circuit.Circuit) []Finding {
	var findings []Finding
	//
	for _, t := range c.Templates {
		findings = append(findings, auditTemplate(c, t)...)
	}
	//
	return findings
}

type slot struct {
	instance *Instance
	id       uint
	line     uint
}

type auditor struct {
	circuit  *circuit.Circuit
	template *circuit.TemplateCode
	slots    map[uint]*slot
	// Slots excluded from the audit
	tainted  map[uint]bool
	findings []Finding
}

func auditTemplate(c *circuit.Circuit, t *circuit.TemplateCode) []Finding {
	a := &auditor{c, t, make(map[uint]*slot), make(map[uint]bool), nil}
	//
	for _, insn := range t.Body {
		switch p := insn.(type) {
		case *ir.Loop, *ir.Branch:
			a.taint(p)
		case *ir.CreateCmp:
			a.create(p)
		case *ir.Store:
			if sub, ok := p.DestAddressType.(ir.SubcmpSignal); ok && sub.Input.IsInput {
				n, ok := a.storeSize(sub, p.Context.Size, p.SrcContext.Size)
				a.write(p.Line, sub, p.Dest, n, ok)
			}
		case *ir.Call:
			if final, ok := p.Return.(*ir.Final); ok {
				if sub, ok := final.DestAddressType.(ir.SubcmpSignal); ok && sub.Input.IsInput {
					n, ok := a.storeSize(sub, final.Context.Size, final.Context.Size)
					a.write(p.Line, sub, final.Dest, n, ok)
				}
			}
		}
	}
	// Check every audited instance ran
	for _, index := range slices.Sorted(maps.Keys(a.slots)) {
		s := a.slots[index]
		//
		if !a.tainted[index] && s.instance.State() == Collecting {
			a.report(s.line, index, fmt.Sprintf("%s never runs (%d inputs unset)", s.instance.Template(),
				s.instance.Remaining()))
		}
	}
	//
	return a.findings
}

// taint excludes every slot created or written within a nested block.
func (p *auditor) taint(root ir.Instruction) {
	ir.Walk(root, func(insn ir.Instruction) bool {
		switch q := insn.(type) {
		case *ir.CreateCmp:
			p.taintCmp(q.Cmp, q.NumberOfCmp)
		case *ir.Store:
			if sub, ok := q.DestAddressType.(ir.SubcmpSignal); ok {
				p.taintCmp(sub.Cmp, 1)
			}
		case *ir.Call:
			if final, ok := q.Return.(*ir.Final); ok {
				if sub, ok := final.DestAddressType.(ir.SubcmpSignal); ok {
					p.taintCmp(sub.Cmp, 1)
				}
			}
		}
		//
		return true
	})
}

func (p *auditor) taintCmp(cmp ir.Instruction, n uint) {
	start, err := resolve.Constant(cmp)
	// Non-constant slots are never audited
	if err != nil {
		return
	}
	//
	for i := range n {
		p.tainted[start+i] = true
	}
}

func (p *auditor) create(insn *ir.CreateCmp) {
	start, err := resolve.Constant(insn.Cmp)
	if err != nil {
		return
	}
	//
	t := p.circuit.TemplateById(insn.TemplateId)
	if t == nil {
		p.report(insn.Line, start, fmt.Sprintf("unknown template %d", insn.TemplateId))
		return
	}
	//
	for i := range insn.NumberOfCmp {
		s := &slot{NewInstance(t.Header, t.NumberOfInputs, nil), t.Id, insn.Line}
		p.slots[start+i] = s
		//
		if _, err := s.instance.Open(); err != nil {
			p.report(insn.Line, start+i, err.Error())
		}
	}
}

// storeSize determines the number of elements written by a store into a
// subcomponent, or false if this is not statically known.
func (p *auditor) storeSize(sub ir.SubcmpSignal, dest ir.Size, src ir.Size) (uint, bool) {
	index, err := resolve.Constant(sub.Cmp)
	if err != nil {
		return 0, false
	}
	//
	s, ok := p.slots[index]
	if !ok {
		return 0, false
	}
	//
	n, ok1 := dest.For(s.id)
	m, ok2 := src.For(s.id)
	//
	return min(n, m), ok1 && ok2
}

func (p *auditor) write(line uint, sub ir.SubcmpSignal, location ir.LocationRule, n uint, known bool) {
	index, err := resolve.Constant(sub.Cmp)
	//
	if err != nil || p.tainted[index] {
		return
	}
	//
	s, ok := p.slots[index]
	if !ok {
		p.report(line, index, "write to subcomponent which was not created")
		return
	} else if !known {
		p.tainted[index] = true
		return
	}
	//
	plan, err := planOf(line, sub, location)
	if err == nil {
		_, err = s.instance.Set(line, plan, n)
	}
	//
	if err != nil {
		var ie *ir.InvariantError
		// Strip the location, since findings carry it already
		if errors.As(err, &ie) {
			p.report(line, index, ie.Message)
		} else {
			p.report(line, index, err.Error())
		}
	}
}

func (p *auditor) report(line uint, index uint, msg string) {
	p.findings = append(p.findings, Finding{p.template.Header, line, index, msg})
}

// planOf converts a malformed plan into an error, rather than a panic.
func planOf(line uint, sub ir.SubcmpSignal, location ir.LocationRule) (plan Plan, err error) {
	defer ir.Recover(&err)
	//
	return PlanFor(line, sub, location), nil
}
