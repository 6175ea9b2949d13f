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

func TestStructSetZeroRecursesIntoFields(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	s := NewStruct(env, []func() Domain{elemBottomInt8(env), elemBottomInt8(env)})
	if !s.IsBottom() {
		t.Fatal("a fresh struct should be bottom")
	}
	s.SetZero()
	if s.IsBottom() {
		t.Fatal("SetZero should clear the struct's bottom flag")
	}
	for i, f := range s.Fields {
		v, ok := f.(*IntSet).singleton()
		if !ok || v != 0 {
			t.Fatalf("field %d: expected zero, got %v", i, f)
		}
	}
}

func TestStructExtractAndInsertValue(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	s := NewStruct(env, []func() Domain{elemBottomInt8(env), elemBottomInt8(env)})
	s.SetZero()
	updated := s.InsertValue(s, NewIntSetValue(env, 8, 7), []int64{1}).(*Struct)
	got := updated.ExtractValue(updated, []int64{1}).(*IntSet)
	v, ok := got.singleton()
	if !ok || v != 7 {
		t.Fatalf("expected field 1 to read back as 7, got %v", got)
	}
	other := updated.ExtractValue(updated, []int64{0}).(*IntSet)
	if v, ok := other.singleton(); !ok || v != 0 {
		t.Fatalf("expected field 0 untouched at zero, got %v", other)
	}
}

func TestStructJoinIsPointwise(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	a := NewStruct(env, []func() Domain{elemBottomInt8(env)})
	a.Fields[0] = NewIntSetValue(env, 8, 1)
	a.isBottom = false
	b := NewStruct(env, []func() Domain{elemBottomInt8(env)})
	b.Fields[0] = NewIntSetValue(env, 8, 2)
	b.isBottom = false
	a.Join(b)
	vals, top := a.Fields[0].(*IntSet).AsRange()
	if top || len(vals) != 2 {
		t.Fatalf("expected field to join to {1,2}, got vals=%v top=%v", vals, top)
	}
}
