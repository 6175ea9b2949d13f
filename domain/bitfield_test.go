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

func TestBitfieldSingletonRoundTrip(t *testing.T) {
	env := &Environment{}
	b := NewBitfieldValue(env, 8, 0b01010101)
	if b.Accuracy() != 1 {
		t.Fatalf("singleton bitfield should be fully accurate, got %v", b.Accuracy())
	}
}

func TestBitfieldAndIsExact(t *testing.T) {
	env := &Environment{}
	a := NewBitfieldValue(env, 8, 0b1100)
	b := NewBitfieldValue(env, 8, 0b1010)
	out := NewBitfield(env, 8)
	r := out.And(a, b).(*Bitfield)
	if r.Accuracy() != 1 {
		t.Fatalf("AND of two constants should stay exact, got accuracy %v", r.Accuracy())
	}
	for i := uint(0); i < 8; i++ {
		z, o := r.bitPossible(i)
		want := (uint64(0b1000)>>i)&1 == 1
		got := o && !z
		if got != want {
			t.Fatalf("bit %d: want %v, got z=%v o=%v", i, want, z, o)
		}
	}
}

func TestBitfieldICmpEqDisagreement(t *testing.T) {
	env := &Environment{}
	a := NewBitfieldValue(env, 8, 5)
	b := NewBitfieldValue(env, 8, 6)
	out := NewBitfield(env, 8)
	r := out.ICmp(a, b, ir.IntEQ).(*IntSet)
	v, ok := r.singleton()
	if !ok || v != 0 {
		t.Fatalf("distinct constants should compare definitely-unequal, got %v", r)
	}
}

func TestBitfieldJoinWidensUncertainty(t *testing.T) {
	env := &Environment{}
	a := NewBitfieldValue(env, 8, 0)
	b := NewBitfieldValue(env, 8, 1)
	a.Join(b)
	if a.Accuracy() == 1 {
		t.Fatal("joining distinct constants should lose some precision on the low bit")
	}
}
