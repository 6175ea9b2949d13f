// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package domain

import (
	"math"
	"testing"

	"github.com/karelklic/absint/ir"
)

func TestFloatIntervalJoinWidensRange(t *testing.T) {
	env := &Environment{}
	a := NewFloatIntervalValue(env, ir.Double, 1.0)
	b := NewFloatIntervalValue(env, ir.Double, 5.0)
	a.Join(b)
	if a.lo != 1.0 || a.hi != 5.0 {
		t.Fatalf("expected [1,5], got [%v,%v]", a.lo, a.hi)
	}
}

func TestFloatIntervalNaNTrackedSeparately(t *testing.T) {
	env := &Environment{}
	a := NewFloatIntervalValue(env, ir.Double, math.NaN())
	if !a.mayBeNaN {
		t.Fatal("expected the NaN constant to set mayBeNaN")
	}
	if a.hasRange() {
		t.Fatal("a pure NaN value should not also claim an ordered range")
	}
}

func TestFloatIntervalOrderedComparisonDefiniteFalseOnNaN(t *testing.T) {
	env := &Environment{}
	a := NewFloatIntervalValue(env, ir.Double, math.NaN())
	b := NewFloatIntervalValue(env, ir.Double, 1.0)
	out := NewFloatInterval(env, ir.Double)
	r := out.FCmp(a, b, ir.FloatOEQ)
	if r.IsTop() {
		t.Fatal("comparing a definite NaN with OEQ should be definitely false, not unknown")
	}
}

func TestFloatIntervalDivOfZeroByOneIsZero(t *testing.T) {
	env := &Environment{}
	a := NewFloatIntervalValue(env, ir.Double, 1.0)
	zeroDivResult := NewFloatInterval(env, ir.Double)
	zeroDivResult.bottom = false
	zeroDivResult.lo, zeroDivResult.hi = 0, 0
	out := NewFloatInterval(env, ir.Double)
	r := out.FDiv(zeroDivResult, a).(*FloatInterval)
	if r.bottom {
		t.Fatal("0/1 should not be bottom")
	}
	if r.lo != 0 || r.hi != 0 {
		t.Fatalf("expected 0/1 == 0, got [%v, %v]", r.lo, r.hi)
	}
}
