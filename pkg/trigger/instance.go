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
	"sync"

	"github.com/consensys/go-witgen/pkg/ir"
)

// ErrNoRemainingInputs is returned when a write exceeds the number of inputs
// still to be set on an instance.
var ErrNoRemainingInputs = errors.New("no remaining input signals to set")

// State identifies the position of a component instance in its lifecycle.
type State uint8

const (
	// Collecting indicates the instance is waiting for inputs.
	Collecting State = iota
	// Ready indicates all inputs are set, but the instance has not run yet.
	Ready
	// Running indicates the run routine is executing.
	Running
	// Done indicates the run routine has completed.
	Done
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	//
	return "???"
}

// Instance is an executable model of the input counting state machine which
// the generated code embodies for each component instance.  It is safe for use
// by concurrent writers.
type Instance struct {
	mux sync.Mutex
	// Template header of this instance.
	template string
	// Number of inputs still to be set.
	remaining uint
	// Current state.
	state State
	// Number of times the run routine was invoked.
	runs uint
	// Run routine (may be nil).
	run func() error
}

// NewInstance constructs an instance of a template with a given number of
// inputs.  The run routine is invoked (at most once) when the instance fires.
func NewInstance(template string, inputs uint, run func() error) *Instance {
	return &Instance{template: template, remaining: inputs, state: Collecting, run: run}
}

// Template returns the header of the template this is an instance of.
func (p *Instance) Template() string {
	return p.template
}

// State returns the current state of this instance.
func (p *Instance) State() State {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	return p.state
}

// Remaining returns the number of inputs still to be set.
func (p *Instance) Remaining() uint {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	return p.remaining
}

// Runs returns the number of times the run routine has been invoked.
func (p *Instance) Runs() uint {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	return p.runs
}

// Open is invoked when the instance is created.  Instances without inputs fire
// immediately.
func (p *Instance) Open() (bool, error) {
	p.mux.Lock()
	//
	if p.state != Collecting || p.remaining != 0 {
		p.mux.Unlock()
		return false, nil
	}
	//
	p.state = Ready
	p.mux.Unlock()
	//
	return true, p.execute()
}

// Set records a write of n elements to the inputs of this instance, following
// the given plan.  This returns true if the write fired the instance.  A write
// of zero elements is a no-op.
func (p *Instance) Set(line uint, plan Plan, n uint) (bool, error) {
	if n == 0 {
		return false, nil
	}
	//
	p.mux.Lock()
	//
	if plan.Decrement {
		if p.state != Collecting || n > p.remaining {
			p.mux.Unlock()
			return false, fmt.Errorf("%s (line %d): %w", p.template, line, ErrNoRemainingInputs)
		}
		//
		p.remaining -= n
	}
	//
	switch {
	case plan.Check == CheckPositive && p.remaining == 0:
		p.mux.Unlock()
		return false, &ir.InvariantError{Line: line, Message: fmt.Sprintf("%s: non-last input completed inputs", p.template)}
	case plan.Check == CheckZero && p.remaining != 0:
		p.mux.Unlock()
		return false, &ir.InvariantError{Line: line,
			Message: fmt.Sprintf("%s: last input leaves %d inputs unset", p.template, p.remaining)}
	}
	//
	fire := plan.Run == RunAlways || (plan.Run == RunIfZero && p.remaining == 0)
	//
	if !fire {
		p.mux.Unlock()
		return false, nil
	} else if p.state != Collecting {
		state := p.state
		p.mux.Unlock()
		//
		return false, &ir.InvariantError{Line: line, Message: fmt.Sprintf("%s: fired while %s", p.template, state)}
	}
	//
	p.state = Ready
	p.mux.Unlock()
	//
	return true, p.execute()
}

// execute moves a ready instance through running to done.
func (p *Instance) execute() error {
	p.mux.Lock()
	p.state = Running
	p.runs++
	p.mux.Unlock()
	//
	var err error
	//
	if p.run != nil {
		err = p.run()
	}
	//
	p.mux.Lock()
	p.state = Done
	p.mux.Unlock()
	//
	return err
}
