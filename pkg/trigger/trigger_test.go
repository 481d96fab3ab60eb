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
	"testing"

	"github.com/consensys/go-witgen/pkg/ir"
	"github.com/consensys/go-witgen/pkg/test"
	"github.com/consensys/go-witgen/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Plans
// ============================================================================

func Test_Plan_01(t *testing.T) {
	plan := PlanFor(1, subcmp(ir.NoLast, true, util.Some(false)), direct("A_1"))
	//
	assert.Equal(t, Plan{true, CheckPositive, RunNever, Sequential, Direct, util.Some("A_1")}, plan)
	assert.False(t, plan.Fires())
}

func Test_Plan_02(t *testing.T) {
	plan := PlanFor(1, subcmp(ir.Last, true, util.Some(true)), direct("A_1"))
	//
	assert.Equal(t, Plan{true, CheckZero, RunAlways, Parallel, Direct, util.Some("A_1")}, plan)
	assert.True(t, plan.Fires())
}

func Test_Plan_03(t *testing.T) {
	plan := PlanFor(1, subcmp(ir.Unknown, true, util.None[bool]()), &ir.Mapped{SignalCode: 1})
	//
	assert.Equal(t, Plan{true, CheckNone, RunIfZero, Dynamic, Indirect, util.None[string]()}, plan)
}

func Test_Plan_04(t *testing.T) {
	// redundant partial write to an array input
	plan := PlanFor(1, subcmp(ir.NoLast, false, util.Some(false)), direct("A_1"))
	//
	assert.False(t, plan.Decrement)
	assert.Equal(t, CheckNone, plan.Check)
}

func Test_Plan_05(t *testing.T) {
	checkInvariant(t, func() {
		PlanFor(1, subcmp(ir.Unknown, false, util.Some(false)), direct("A_1"))
	})
	checkInvariant(t, func() {
		PlanFor(1, subcmp(ir.Last, true, util.Some(false)), ir.NewIndexed(0))
	})
	checkInvariant(t, func() {
		sub := subcmp(ir.Last, true, util.Some(false))
		sub.Input = ir.NoInput()
		PlanFor(1, sub, direct("A_1"))
	})
}

// ============================================================================
// Instances
// ============================================================================

// A declares x[2], written in one store.
func Test_Instance_01(t *testing.T) {
	var (
		runs = 0
		a    = NewInstance("A_1", 2, func() error { runs++; return nil })
		last = PlanFor(1, subcmp(ir.Last, true, util.Some(false)), direct("A_1"))
	)
	//
	fired, err := a.Set(1, last, 2)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 1, runs)
	assert.Equal(t, Done, a.State())
}

// A declares x[2], written element by element.
func Test_Instance_02(t *testing.T) {
	var (
		a      = NewInstance("A_1", 2, nil)
		noLast = PlanFor(1, subcmp(ir.NoLast, true, util.Some(false)), direct("A_1"))
		last   = PlanFor(2, subcmp(ir.Last, true, util.Some(false)), direct("A_1"))
	)
	//
	fired, err := a.Set(1, noLast, 1)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, Collecting, a.State())
	assert.Equal(t, uint(0), a.Runs())
	//
	fired, err = a.Set(2, last, 1)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, uint(1), a.Runs())
}

// Polymorphic slot bound to templates with two and three inputs.
func Test_Instance_03(t *testing.T) {
	unknown := PlanFor(1, subcmp(ir.Unknown, true, util.Some(false)), &ir.Mapped{SignalCode: 1})
	//
	for _, inputs := range []uint{2, 3} {
		instance := NewInstance("B", inputs, nil)
		//
		for i := uint(1); i <= inputs; i++ {
			fired, err := instance.Set(i, unknown, 1)
			require.NoError(t, err)
			assert.Equal(t, i == inputs, fired)
		}
		//
		assert.Equal(t, uint(1), instance.Runs())
	}
}

// Fires exactly once regardless of write order and batching.
func Test_Instance_04(t *testing.T) {
	unknown := PlanFor(1, subcmp(ir.Unknown, true, util.None[bool]()), &ir.Mapped{SignalCode: 1})
	//
	for _, batches := range [][]uint{{1, 1, 1, 1, 1, 1}, {6}, {2, 4}, {4, 2}, {1, 3, 2}, {3, 0, 3}} {
		var (
			instance = NewInstance("C", 6, nil)
			fires    = 0
		)
		//
		for _, n := range batches {
			fired, err := instance.Set(1, unknown, n)
			require.NoError(t, err)
			//
			if fired {
				fires++
			}
		}
		//
		assert.Equal(t, 1, fires, "batches %v", batches)
		assert.Equal(t, uint(1), instance.Runs())
	}
}

// Fires exactly once under concurrent writers.
func Test_Instance_05(t *testing.T) {
	var (
		g        errgroup.Group
		n        = uint(64)
		fires    = make(chan bool, n)
		instance = NewInstance("C", n, nil)
		unknown  = PlanFor(1, subcmp(ir.Unknown, true, util.Some(true)), &ir.Mapped{SignalCode: 1})
	)
	//
	for i := range n {
		g.Go(func() error {
			fired, err := instance.Set(i, unknown, 1)
			fires <- fired
			//
			return err
		})
	}
	//
	require.NoError(t, g.Wait())
	close(fires)
	//
	count := 0
	//
	for fired := range fires {
		if fired {
			count++
		}
	}
	//
	assert.Equal(t, 1, count)
	assert.Equal(t, uint(1), instance.Runs())
	assert.Equal(t, Done, instance.State())
}

// Firing twice is an invariant violation.
func Test_Instance_06(t *testing.T) {
	var (
		instance = NewInstance("A_1", 1, nil)
		last     = PlanFor(1, subcmp(ir.Last, false, util.Some(false)), direct("A_1"))
	)
	//
	_, err := instance.Set(1, last, 1)
	require.NoError(t, err)
	//
	_, err = instance.Set(2, last, 1)
	//
	var ie *ir.InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, uint(2), ie.Line)
	assert.Equal(t, uint(1), instance.Runs())
}

// Zero sized writes are no-ops, and oversized writes are rejected.
func Test_Instance_07(t *testing.T) {
	var (
		instance = NewInstance("A_1", 2, nil)
		unknown  = PlanFor(1, subcmp(ir.Unknown, true, util.Some(false)), &ir.Mapped{SignalCode: 1})
	)
	//
	fired, err := instance.Set(1, unknown, 0)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, uint(2), instance.Remaining())
	//
	_, err = instance.Set(1, unknown, 3)
	assert.ErrorIs(t, err, ErrNoRemainingInputs)
	assert.Equal(t, uint(2), instance.Remaining())
}

// Components without inputs run at creation.
func Test_Instance_08(t *testing.T) {
	var (
		runs     = 0
		instance = NewInstance("K_0", 0, func() error { runs++; return nil })
	)
	//
	fired, err := instance.Open()
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 1, runs)
	//
	fired, err = instance.Open()
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, runs)
}

// ============================================================================
// Audit
// ============================================================================

func Test_Audit_01(t *testing.T) {
	assert.Empty(t, Audit(test.TriggerCircuit()))
}

func Test_Audit_02(t *testing.T) {
	assert.Empty(t, Audit(test.PolymorphicCircuit()))
}

func Test_Audit_03(t *testing.T) {
	assert.Empty(t, Audit(test.BusCircuit()))
}

func Test_Audit_04(t *testing.T) {
	c := test.TriggerCircuit()
	// Last write of only one element of x[2]
	store := c.Templates[0].Body[1].(*ir.Store)
	store.Context = ir.Sized(1)
	//
	findings := Audit(c)
	//
	require.Len(t, findings, 2)
	assert.Equal(t, uint(10), findings[0].Line)
	assert.Contains(t, findings[0].Message, "last input leaves 1 inputs unset")
	assert.Contains(t, findings[1].Message, "A_1 never runs")
}

func Test_Audit_05(t *testing.T) {
	c := test.BusCircuit()
	// Drop the last write
	body := c.Templates[0].Body
	c.Templates[0].Body = append(body[:4:4], body[5:]...)
	//
	findings := Audit(c)
	//
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "1 inputs unset")
}

// ============================================================================
// Helpers
// ============================================================================

func subcmp(status ir.InputStatus, decrement bool, parallel util.Option[bool]) ir.SubcmpSignal {
	return ir.SubcmpSignal{Cmp: ir.NewU32(0), UniformParallel: parallel, Input: ir.Input(status, decrement)}
}

func direct(header string) *ir.Indexed {
	return &ir.Indexed{Location: ir.NewU32(0), TemplateHeader: util.Some(header)}
}

func checkInvariant(t *testing.T, fn func()) {
	t.Helper()
	//
	defer func() {
		r := recover()
		_, ok := r.(*ir.InvariantError)
		assert.True(t, ok, "expected invariant error, got %v", r)
	}()
	//
	fn()
}
