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

package product

import (
	"testing"

	"github.com/karelklic/absint/domain"
)

func byteBottom(env *domain.Environment) func() domain.Domain {
	return func() domain.Domain { return domain.NewIntSet(env, 8) }
}

func TestArraySetZeroMakesAllMembersConcrete(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := NewArray(env, 4, byteBottom(env), true)
	a.SetZero()
	if a.IsBottom() {
		t.Fatal("zero array must not be bottom")
	}
	if !a.Prefix.Exact {
		t.Fatal("zeroed byte array should have an exact (empty) prefix")
	}
}

func TestArrayExtractElementPrefersExact(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := NewArray(env, 3, byteBottom(env), false)
	a.SetZero()
	idx := domain.NewIntSetValue(env, 8, 1)
	a.Exact.Elems[1] = domain.NewIntSetValue(env, 8, 42)

	got := a.ExtractElement(a, idx)
	vals, top := got.(*domain.IntSet).AsRange()
	if top || len(vals) != 1 || vals[0] != 42 {
		t.Fatalf("expected extracted element {42}, got %v top=%v", vals, top)
	}
}

func TestArrayInsertElementWithUnknownIndexDropsPrefixToTop(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := NewArray(env, 4, byteBottom(env), true)
	a.SetZero()
	a.Prefix = domain.NewStringPrefixValue(env, []byte("ab"))

	unknownIdx := domain.NewIntSet(env, 8)
	unknownIdx.SetTop()
	elem := domain.NewIntSetValue(env, 8, 'x')

	out := a.InsertElement(a, elem, unknownIdx).(*Array)
	if !out.Prefix.IsTop() {
		t.Fatal("an indexed write through an unknown index should drop the prefix member to top")
	}
}

func TestArrayJoinIsBottomOnlyWhenBothBottom(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := NewArray(env, 2, byteBottom(env), false)
	b := NewArray(env, 2, byteBottom(env), false)
	b.SetZero()

	joined := a.Join(b).(*Array)
	if joined.IsBottom() {
		t.Fatal("joining bottom with a concrete array must not stay bottom")
	}
}

func TestArrayLessOrEqualRespectsEveryMember(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := NewArray(env, 2, byteBottom(env), false)
	if !a.LessOrEqual(a) {
		t.Fatal("bottom must be <= itself")
	}
	b := NewArray(env, 2, byteBottom(env), false)
	b.SetZero()
	if !a.LessOrEqual(b) {
		t.Fatal("bottom must be <= any concrete value")
	}
	if b.LessOrEqual(a) {
		t.Fatal("a concrete value must not be <= bottom")
	}
}
