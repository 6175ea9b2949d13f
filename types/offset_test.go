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
)

func TestOffsetArrayIndexScalesByElementSize(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	arrTy := ir.ArrayType{Elem: ir.IntType{Width: 32}, Len: 10}

	idx0 := domain.NewIntSetValue(env, 64, 0)
	idx2 := domain.NewIntSetValue(env, 64, 2)
	off := Offset(env, td, arrTy, []domain.Domain{idx0, idx2})

	iv := off.(*domain.Interval)
	_, _, uLo, uHi, _, uTop, _ := iv.Bounds()
	if uTop || uLo.Cmp(big.NewInt(8)) != 0 || uHi.Cmp(big.NewInt(8)) != 0 {
		t.Fatalf("expected offset 8 (index 2 * 4 bytes), got [%v,%v] top=%v", uLo, uHi, uTop)
	}
}

func TestOffsetStructFieldJoinsCandidateFields(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	st := ir.StructType{Fields: []ir.Type{ir.IntType{Width: 8}, ir.IntType{Width: 32}}}

	idx0 := domain.NewIntSetValue(env, 64, 0)
	fieldIdx := domain.NewIntSetValue(env, 32, 1)
	off := Offset(env, td, st, []domain.Domain{idx0, fieldIdx})

	iv := off.(*domain.Interval)
	_, _, uLo, uHi, _, uTop, _ := iv.Bounds()
	if uTop || uLo.Cmp(big.NewInt(4)) != 0 || uHi.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected field 1 at byte offset 4 (aligned after the i8), got [%v,%v] top=%v", uLo, uHi, uTop)
	}
}

func TestOffsetUnknownIndexWidensToTop(t *testing.T) {
	env := testEnv()
	td := fakeTargetData{ptrWidth: 64}
	arrTy := ir.ArrayType{Elem: ir.IntType{Width: 8}, Len: 100}

	unknown := domain.NewIntSet(env, 64)
	unknown.SetTop()
	idx0 := domain.NewIntSetValue(env, 64, 0)
	off := Offset(env, td, arrTy, []domain.Domain{idx0, unknown})

	iv := off.(*domain.Interval)
	if !iv.IsTop() {
		t.Fatal("an unconstrained index should widen the offset to top")
	}
}
