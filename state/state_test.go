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

package state

import (
	"testing"

	"github.com/karelklic/absint/domain"
)

type fakePlace string

func (p fakePlace) Ident() string { return string(p) }

func TestStateCloneIsIndependent(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	s := New()
	s.SetVariable(fakePlace("x"), domain.NewIntSetValue(env, 8, 1))
	c := s.Clone()
	c.SetVariable(fakePlace("x"), domain.NewIntSetValue(env, 8, 2))

	v, _ := s.FindVariable(fakePlace("x"))
	vals, _ := v.(*domain.IntSet).AsRange()
	if len(vals) != 1 || vals[0] != 1 {
		t.Fatalf("mutating the clone's variable must not affect the original, got %v", vals)
	}
}

func TestStateBlockCopyOnWriteDoesNotLeakMutation(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	s := New()
	s.NewStackBlock(fakePlace("p"), domain.NewIntSetValue(env, 8, 0))
	c := s.Clone()

	block, ok := c.FindBlock(fakePlace("p"))
	if !ok {
		t.Fatal("cloned state should still see the block")
	}
	block = block.Mutable()
	block.SetContents(domain.NewIntSetValue(env, 8, 9))
	c.SetBlock(block)

	orig, _ := s.FindBlock(fakePlace("p"))
	vals, _ := orig.Contents().(*domain.IntSet).AsRange()
	if len(vals) != 1 || vals[0] != 0 {
		t.Fatalf("mutating the clone's block must not affect the original, got %v", vals)
	}
}

func TestStateJoinIsPointwise(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	a := New()
	a.SetVariable(fakePlace("x"), domain.NewIntSetValue(env, 8, 1))
	b := New()
	b.SetVariable(fakePlace("x"), domain.NewIntSetValue(env, 8, 2))
	b.SetVariable(fakePlace("y"), domain.NewIntSetValue(env, 8, 5))

	a.Join(b)
	x, _ := a.FindVariable(fakePlace("x"))
	xv, _ := x.(*domain.IntSet).AsRange()
	if len(xv) != 2 {
		t.Fatalf("expected x joined to {1,2}, got %v", xv)
	}
	if _, ok := a.FindVariable(fakePlace("y")); !ok {
		t.Fatal("expected y to be picked up from the join operand")
	}
}

func TestStateFindBlockByIDMatchesFindBlock(t *testing.T) {
	env := &domain.Environment{SetThreshold: 20}
	s := New()
	b := s.NewStackBlock(fakePlace("p"), domain.NewIntSetValue(env, 8, 7))

	byPlace, ok := s.FindBlock(fakePlace("p"))
	if !ok {
		t.Fatal("expected FindBlock to find the block")
	}
	byID, ok := s.FindBlockByID(b.ID())
	if !ok || byID != byPlace {
		t.Fatal("expected FindBlockByID to return the same block FindBlock does")
	}
}
