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
	"testing"

	"github.com/karelklic/absint/ir"
)

func TestIntSetJoinBelowThreshold(t *testing.T) {
	env := &Environment{SetThreshold: 4}
	a := NewIntSetValue(env, 8, 1)
	b := NewIntSetValue(env, 8, 2)
	a.Join(b)
	if a.IsTop() {
		t.Fatal("should not have collapsed to top")
	}
	vals, top := a.AsRange()
	if top || len(vals) != 2 {
		t.Fatalf("expected {1,2}, got %v top=%v", vals, top)
	}
}

func TestIntSetJoinPastThresholdCollapsesToTop(t *testing.T) {
	env := &Environment{SetThreshold: 2}
	a := NewIntSet(env, 8)
	for i := uint64(0); i < 5; i++ {
		a.Join(NewIntSetValue(env, 8, i))
	}
	if !a.IsTop() {
		t.Fatal("expected collapse to top past threshold")
	}
}

func TestIntSetDivByZeroIsTop(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewIntSetValue(env, 8, 10)
	zero := NewIntSetValue(env, 8, 0)
	r := a.UDiv(a, zero)
	if !r.IsTop() {
		t.Fatal("division by zero should be top")
	}
}

func TestIntSetICmp(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewIntSetValue(env, 8, 3)
	b := NewIntSetValue(env, 8, 3)
	r := a.ICmp(a, b, ir.IntEQ).(*IntSet)
	v, ok := r.singleton()
	if !ok || v != 1 {
		t.Fatalf("expected definitely-true, got %v", r)
	}
}

func TestIntSetBottomPropagates(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	bot := NewIntSet(env, 8)
	val := NewIntSetValue(env, 8, 1)
	r := bot.Add(bot, val)
	if !r.IsBottom() {
		t.Fatal("bottom operand should propagate")
	}
}
