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

import "testing"

func elemBottomInt8(env *Environment) func() Domain {
	return func() Domain { return NewIntSet(env, 8) }
}

func TestExactArrayStrongUpdateAtKnownIndex(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewExactArray(env, 3, elemBottomInt8(env))
	a.SetZero()
	idx := NewIntSetValue(env, 8, 1)
	elem := NewIntSetValue(env, 8, 42)
	out := a.InsertElement(a, elem, idx).(*ExactArray)
	if v, ok := out.Elems[1].(*IntSet).singleton(); !ok || v != 42 {
		t.Fatalf("expected slot 1 to become 42, got %v", out.Elems[1])
	}
	if v, ok := out.Elems[0].(*IntSet).singleton(); !ok || v != 0 {
		t.Fatalf("expected untouched slot 0 to remain zero, got %v", out.Elems[0])
	}
}

func TestExactArrayWeakUpdateAtUnknownIndexJoins(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewExactArray(env, 2, elemBottomInt8(env))
	a.SetZero()
	idx := NewIntSet(env, 8)
	idx.SetTop()
	elem := NewIntSetValue(env, 8, 9)
	out := a.InsertElement(a, elem, idx).(*ExactArray)
	for i, e := range out.Elems {
		vals, top := e.(*IntSet).AsRange()
		if top || len(vals) != 2 {
			t.Fatalf("slot %d: expected {0,9} after weak update, got vals=%v top=%v", i, vals, top)
		}
	}
}

func TestExactArrayExtractElementJoinsOverUnknownIndex(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewExactArray(env, 2, elemBottomInt8(env))
	a.Elems[0] = NewIntSetValue(env, 8, 1)
	a.Elems[1] = NewIntSetValue(env, 8, 2)
	a.isBottom = false
	idx := NewIntSet(env, 8)
	idx.SetTop()
	r := a.ExtractElement(a, idx).(*IntSet)
	vals, top := r.AsRange()
	if top || len(vals) != 2 {
		t.Fatalf("expected join of both elements, got vals=%v top=%v", vals, top)
	}
}

func TestSingleItemArrayWritesAlwaysJoin(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	item := NewIntSetValue(env, 8, 1)
	a := NewSingleItemArray(env, item)
	idx := NewIntSetValue(env, 8, 0)
	elem := NewIntSetValue(env, 8, 2)
	out := a.InsertElement(a, elem, idx).(*SingleItemArray)
	vals, top := out.Item.(*IntSet).AsRange()
	if top || len(vals) != 2 {
		t.Fatalf("expected {1,2} after write, got vals=%v top=%v", vals, top)
	}
}
