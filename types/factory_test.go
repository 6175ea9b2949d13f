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

package types

import (
	"math/big"
	"testing"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
)

// fakeTargetData is a minimal, byte-packed ir.TargetData: every type's
// size is computed structurally with no padding beyond what the struct
// test below exercises explicitly via alignment.
type fakeTargetData struct{ ptrWidth uint }

func (d fakeTargetData) SizeOf(t ir.Type) int64 {
	switch v := t.(type) {
	case ir.IntType:
		return int64(v.Width+7) / 8
	case ir.FloatType:
		switch v.Semantics {
		case ir.Double:
			return 8
		default:
			return 4
		}
	case ir.PointerType:
		return int64(d.ptrWidth / 8)
	case ir.ArrayType:
		return v.Len * d.SizeOf(v.Elem)
	case ir.VectorType:
		return v.Len * d.SizeOf(v.Elem)
	case ir.StructType:
		var total int64
		for i, f := range v.Fields {
			sz := d.SizeOf(f)
			if !v.Packed && i+1 < len(v.Fields) {
				total = alignUp(total+sz, d.AlignOf(v.Fields[i+1]))
			} else {
				total += sz
			}
		}
		return total
	default:
		return 0
	}
}

func (d fakeTargetData) AlignOf(t ir.Type) int64 { return d.SizeOf(t) }
func (d fakeTargetData) PointerWidth() uint       { return d.ptrWidth }

func testEnv() *domain.Environment { return &domain.Environment{SetThreshold: 20} }

func TestBottomIntIsProductBottom(t *testing.T) {
	env := testEnv()
	b := Bottom(env, ir.IntType{Width: 32})
	p, ok := b.(*product.Product)
	if !ok {
		t.Fatalf("expected *product.Product, got %T", b)
	}
	if !p.IsBottom() {
		t.Fatal("Bottom should be bottom")
	}
}

func TestBottomArrayUsesExactBelowCap(t *testing.T) {
	env := testEnv()
	b := Bottom(env, ir.ArrayType{Elem: ir.IntType{Width: 8}, Len: 4})
	a, ok := b.(*product.Array)
	if !ok {
		t.Fatalf("expected *product.Array, got %T", b)
	}
	if a.Exact == nil {
		t.Fatal("small array should keep its Exact member")
	}
	if a.Prefix == nil {
		t.Fatal("an i8 array should carry a StringPrefix member")
	}
}

func TestBottomStructRecursesPerField(t *testing.T) {
	env := testEnv()
	st := ir.StructType{Fields: []ir.Type{ir.IntType{Width: 8}, ir.IntType{Width: 32}}}
	b := Bottom(env, st)
	s, ok := b.(*domain.Struct)
	if !ok {
		t.Fatalf("expected *domain.Struct, got %T", b)
	}
	if len(s.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(s.Fields))
	}
}

func TestMaterializeConstIntIsSingleton(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	v := Materialize(env, td, ir.ConstInt{Ty: ir.IntType{Width: 8}, Val: big.NewInt(7)})
	p := v.(*product.Product)
	vals, top := p.Set.AsRange()
	if top || len(vals) != 1 || vals[0] != 7 {
		t.Fatalf("expected singleton {7}, got %v top=%v", vals, top)
	}
}

func TestMaterializeConstNullIsNeitherBottomNorTop(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	v := Materialize(env, td, ir.ConstNull{Ty: ir.PointerType{Elem: ir.IntType{Width: 8}}})
	p := v.(*domain.Pointer)
	if p.IsBottom() || p.IsTop() {
		t.Fatal("null must be a concrete (non-bottom, non-top) pointer value")
	}
	if p.NumericOffset == nil {
		t.Fatal("null should carry a zero numeric offset")
	}
}

func TestMaterializeConstUndefIsBottom(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	v := Materialize(env, td, ir.ConstUndef{Ty: ir.IntType{Width: 16}})
	if !v.IsBottom() {
		t.Fatal("undef should materialize to bottom")
	}
}

func TestMaterializeConstArrayBuildsExactStringPrefix(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	arrTy := ir.ArrayType{Elem: ir.IntType{Width: 8}, Len: 2}
	c := ir.ConstArray{Ty: arrTy, Elems: []ir.Constant{
		ir.ConstInt{Ty: ir.IntType{Width: 8}, Val: big.NewInt('h')},
		ir.ConstInt{Ty: ir.IntType{Width: 8}, Val: big.NewInt('i')},
	}}
	v := Materialize(env, td, c).(*product.Array)
	if !v.Prefix.Exact || string(v.Prefix.Prefix) != "hi" {
		t.Fatalf("expected exact prefix %q, got %q exact=%v", "hi", v.Prefix.Prefix, v.Prefix.Exact)
	}
}

func TestCacheBottomReturnsIndependentClones(t *testing.T) {
	env := testEnv()
	c := NewCache()
	a := c.Bottom(env, ir.IntType{Width: 8}).(*product.Product)
	b := c.Bottom(env, ir.IntType{Width: 8}).(*product.Product)
	a.Set = domain.NewIntSetValue(env, 8, 3)
	vals, _ := b.Set.AsRange()
	if len(vals) != 0 {
		t.Fatal("mutating one cached clone must not affect another")
	}
}
