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
	"fmt"

	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/util"
)

// RunPolicy determines when a write to a subcomponent input runs that
// subcomponent.
type RunPolicy uint8

const (
	// RunNever indicates the write is known not to complete the inputs.
	RunNever RunPolicy = iota
	// RunAlways indicates the write is known to complete the inputs.
	RunAlways
	// RunIfZero indicates the remaining input counter must be checked after
	// decrementing it.
	RunIfZero
)

func (p RunPolicy) String() string {
	switch p {
	case RunNever:
		return "never"
	case RunAlways:
		return "always"
	case RunIfZero:
		return "if-zero"
	}
	//
	return "???"
}

// Check identifies the assertion placed on the remaining input counter after it
// has been decremented.
type Check uint8

const (
	// CheckNone places no assertion on the counter.
	CheckNone Check = iota
	// CheckPositive asserts inputs remain to be set.
	CheckPositive
	// CheckZero asserts no inputs remain to be set.
	CheckZero
)

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "none"
	case CheckPositive:
		return "positive"
	case CheckZero:
		return "zero"
	}
	//
	return "???"
}

// Parallelism determines how a subcomponent is run once triggered.
type Parallelism uint8

const (
	// Sequential runs the subcomponent on the calling thread.
	Sequential Parallelism = iota
	// Parallel spawns a worker thread to run the subcomponent.
	Parallel
	// Dynamic decides between the two at run time, based on the parallel
	// flag of the subcomponent slot.
	Dynamic
)

func (p Parallelism) String() string {
	switch p {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	case Dynamic:
		return "dynamic"
	}
	//
	return "???"
}

// Dispatch determines how the run routine of a subcomponent is located.
type Dispatch uint8

const (
	// Direct calls the run routine of a statically known template.
	Direct Dispatch = iota
	// Indirect calls through a table indexed by the template id stored in
	// the component header.
	Indirect
)

func (d Dispatch) String() string {
	if d == Direct {
		return "direct"
	}
	//
	return "indirect"
}

// Plan is the backend-agnostic description of the trigger code emitted after a
// write to a subcomponent input.  Every emitter lowers the same plan, which
// keeps their behaviour in sync.
type Plan struct {
	// Decrement the remaining input counter by the number of elements written.
	Decrement bool
	// Assertion on the counter after decrementing.
	Check Check
	// When to run the subcomponent.
	Run RunPolicy
	// How to run the subcomponent.
	Parallelism Parallelism
	// How to locate the run routine.
	Dispatch Dispatch
	// Header of the subcomponent's template (for direct dispatch).
	TemplateHeader util.Option[string]
}

// PlanFor determines the trigger plan for a write through a given subcomponent
// address and destination location.  Malformed input information (e.g. an
// unknown status which does not decrement) is a compiler-internal error.
func PlanFor(line uint, sub ir.SubcmpSignal, location ir.LocationRule) Plan {
	var (
		plan  Plan
		input = sub.Input
	)
	//
	if !input.IsInput {
		ir.Failf(line, "write to subcomponent signal which is not an input")
	}
	//
	plan.Decrement = input.NeedsDecrement
	//
	switch input.Status {
	case ir.NoLast:
		plan.Run = RunNever
		//
		if input.NeedsDecrement {
			plan.Check = CheckPositive
		}
	case ir.Last:
		plan.Run = RunAlways
		//
		if input.NeedsDecrement {
			plan.Check = CheckZero
		}
	case ir.Unknown:
		if !input.NeedsDecrement {
			ir.Failf(line, "input of unknown status must decrement")
		}
		//
		plan.Run = RunIfZero
	default:
		ir.Failf(line, "unknown input status %s", input.Status.String())
	}
	//
	switch {
	case sub.UniformParallel.IsEmpty():
		plan.Parallelism = Dynamic
	case sub.UniformParallel.Unwrap():
		plan.Parallelism = Parallel
	default:
		plan.Parallelism = Sequential
	}
	//
	switch loc := location.(type) {
	case *ir.Indexed:
		plan.Dispatch = Direct
		plan.TemplateHeader = loc.TemplateHeader
		// Direct dispatch requires knowing what to call
		if plan.Run != RunNever && loc.TemplateHeader.IsEmpty() {
			ir.Failf(line, "indexed subcomponent input without template header")
		}
	case *ir.Mapped:
		plan.Dispatch = Indirect
		plan.TemplateHeader = util.None[string]()
	default:
		ir.Failf(line, "unknown location rule %T", location)
	}
	//
	return plan
}

// Fires determines whether this plan may run the subcomponent.
func (p Plan) Fires() bool {
	return p.Run != RunNever
}

func (p Plan) String() string {
	return fmt.Sprintf("decrement=%t, check=%s, run=%s, %s, %s", p.Decrement, p.Check.String(), p.Run.String(),
		p.Parallelism.String(), p.Dispatch.String())
}
