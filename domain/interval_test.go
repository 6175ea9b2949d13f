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
	"math/big"
	"testing"

	"github.com/karelklic/absint/ir"
)

func TestIntervalJoinWidensRange(t *testing.T) {
	env := &Environment{}
	a := NewIntervalValue(env, 32, big.NewInt(1))
	b := NewIntervalValue(env, 32, big.NewInt(5))
	a.Join(b)
	if a.sLo.Cmp(big.NewInt(1)) != 0 || a.sHi.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected [1,5], got [%v,%v]", a.sLo, a.sHi)
	}
}

func TestIntervalWidenFromGrowingRangeGoesToTop(t *testing.T) {
	env := &Environment{}
	prev := NewIntervalValue(env, 32, big.NewInt(0))
	cur := NewIntervalRange(env, 32, big.NewInt(0), big.NewInt(10), big.NewInt(0), big.NewInt(10))
	cur.WidenFrom(prev)
	if !cur.sTop {
		t.Fatal("expected signed range to widen to top after growth")
	}
}

func TestIntervalWidenFromStableRangeUnchanged(t *testing.T) {
	env := &Environment{}
	prev := NewIntervalRange(env, 32, big.NewInt(0), big.NewInt(10), big.NewInt(0), big.NewInt(10))
	cur := NewIntervalRange(env, 32, big.NewInt(0), big.NewInt(10), big.NewInt(0), big.NewInt(10))
	cur.WidenFrom(prev)
	if cur.sTop {
		t.Fatal("a stable range should not widen")
	}
}

func TestIntervalDivByPossiblyZeroIsTop(t *testing.T) {
	env := &Environment{}
	a := NewIntervalValue(env, 32, big.NewInt(10))
	divisor := NewIntervalRange(env, 32, big.NewInt(-1), big.NewInt(1), big.NewInt(0), big.NewInt(1))
	r := a.SDiv(a, divisor)
	if !r.(*Interval).sTop {
		t.Fatal("divisor range spanning zero should yield top")
	}
}

func TestIntervalICmpDefiniteOrder(t *testing.T) {
	env := &Environment{}
	a := NewIntervalValue(env, 32, big.NewInt(1))
	b := NewIntervalValue(env, 32, big.NewInt(5))
	r := a.ICmp(a, b, ir.IntSLT).(*IntSet)
	v, ok := r.singleton()
	if !ok || v != 1 {
		t.Fatalf("expected definitely-true, got %v", r)
	}
}

func TestIntervalMeetEmptyIsBottom(t *testing.T) {
	env := &Environment{}
	a := NewIntervalValue(env, 32, big.NewInt(1))
	b := NewIntervalValue(env, 32, big.NewInt(2))
	a.Meet(b)
	if !a.IsBottom() {
		t.Fatal("disjoint singleton ranges should meet to bottom")
	}
}
