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

	"github.com/google/uuid"
)

func TestPointerSingleTargetAfterFreshAlloc(t *testing.T) {
	env := &Environment{}
	block := uuid.New()
	off := NewIntervalValue(env, 64, big.NewInt(0))
	p := NewPointerTarget(env, block, off)
	if !p.SingleTarget() {
		t.Fatal("a pointer to exactly one fresh block should be a single target")
	}
}

func TestPointerJoinOfDistinctBlocksIsNotSingleTarget(t *testing.T) {
	env := &Environment{}
	b1, b2 := uuid.New(), uuid.New()
	off := NewIntervalValue(env, 64, big.NewInt(0))
	p1 := NewPointerTarget(env, b1, off.Clone())
	p2 := NewPointerTarget(env, b2, off.Clone())
	p1.Join(p2)
	if p1.SingleTarget() {
		t.Fatal("a pointer that may target either of two blocks must not be a single target")
	}
	if len(p1.Targets) != 2 {
		t.Fatalf("expected both blocks tracked, got %d", len(p1.Targets))
	}
}

func TestPointerJoinOfSameBlockMergesOffsets(t *testing.T) {
	env := &Environment{}
	block := uuid.New()
	off1 := NewIntervalValue(env, 64, big.NewInt(0))
	off2 := NewIntervalValue(env, 64, big.NewInt(8))
	p1 := NewPointerTarget(env, block, off1)
	p2 := NewPointerTarget(env, block, off2)
	p1.Join(p2)
	if !p1.SingleTarget() {
		t.Fatal("joining the same block should still be a single target, just with a wider offset")
	}
}

func TestPointerSetZeroIsNull(t *testing.T) {
	env := &Environment{}
	p := NewPointer(env)
	p.SetZero()
	if p.IsBottom() || p.IsTop() {
		t.Fatal("a null pointer is neither bottom nor top")
	}
	if len(p.Targets) != 0 || len(p.FuncTargets) != 0 {
		t.Fatal("a null pointer should target nothing")
	}
}

func TestPointerWithNumericOffsetIsNotSingleTarget(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	block := uuid.New()
	off := NewIntervalValue(env, 64, big.NewInt(0))
	p := NewPointerTarget(env, block, off)
	p.NumericOffset = NewIntSetValue(env, 64, 0xBAADF00D)
	if p.SingleTarget() {
		t.Fatal("a pointer also observed as an integer must not be treated as a single target")
	}
}

func TestPointerNumericJoinKeepsBothValues(t *testing.T) {
	env := &Environment{SetThreshold: 20}
	p1 := NewPointerNumeric(env, NewIntSetValue(env, 64, 0))
	p2 := NewPointerNumeric(env, NewIntSetValue(env, 64, 8))
	p1.Join(p2)
	if p1.NumericOffset == nil {
		t.Fatal("joined pointer should retain a numeric offset")
	}
	vals, top := p1.NumericOffset.(*IntSet).AsRange()
	if top || len(vals) != 2 {
		t.Fatalf("expected {0,8}, got %v top=%v", vals, top)
	}
}
