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

package interp

import (
	"math/big"
	"testing"

	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
	"github.com/karelklic/absint/state"
)

func i8(v int64) ir.ConstInt { return ir.ConstInt{Ty: ir.IntType{Width: 8}, Val: big.NewInt(v)} }

func TestStepBinOpAddFoldsConstants(t *testing.T) {
	td := fakeTargetData{ptrWidth: 64}
	m := &fakeModule{}
	ctx := NewContext(testEnv(), td, m)
	st := state.New()

	inst := &ir.InstBinOp{Base: ir.NewBase("sum", ir.IntType{Width: 8}), Op: ir.OpAdd, X: i8(3), Y: i8(4)}
	ctx.Step(st, inst)

	v, ok := st.FindVariable(inst)
	if !ok {
		t.Fatal("expected a binding for the add's result")
	}
	p := v.(*product.Product)
	vals, top := p.Set.AsRange()
	if top || len(vals) != 1 || vals[0] != 7 {
		t.Fatalf("expected singleton {7}, got %v top=%v", vals, top)
	}
}

func TestStepSelectTakesTrueCaseOnKnownCondition(t *testing.T) {
	td := fakeTargetData{ptrWidth: 64}
	m := &fakeModule{}
	ctx := NewContext(testEnv(), td, m)
	st := state.New()

	cond := &ir.InstICmp{Base: ir.NewBase("cond", ir.IntType{Width: 1}), Pred: ir.IntEQ, X: i8(1), Y: i8(1)}
	ctx.Step(st, cond)

	sel := &ir.InstSelect{Base: ir.NewBase("pick", ir.IntType{Width: 8}), Cond: cond, True: i8(9), False: i8(10)}
	ctx.stepSelect(st, sel)

	v, ok := st.FindVariable(sel)
	if !ok {
		t.Fatal("expected a binding for select's result")
	}
	p := v.(*product.Product)
	vals, top := p.Set.AsRange()
	if top || len(vals) != 1 || vals[0] != 9 {
		t.Fatalf("expected the true arm {9} to be selected, got %v top=%v", vals, top)
	}
}

func TestStepPhiSkipsUnresolvedIncomingEdges(t *testing.T) {
	td := fakeTargetData{ptrWidth: 64}
	m := &fakeModule{}
	ctx := NewContext(testEnv(), td, m)
	st := state.New()

	pred1 := &fakeBlock{name: "pred1"}
	pred2 := &fakeBlock{name: "pred2"}
	notYetRun := &ir.InstBinOp{Base: ir.NewBase("never_ran", ir.IntType{Width: 8}), Op: ir.OpAdd, X: i8(1), Y: i8(1)}

	phi := &ir.InstPhi{
		Base: ir.NewBase("p", ir.IntType{Width: 8}),
		Incoming: []ir.PhiIncoming{
			{Value: i8(5), Pred: pred1},
			{Value: notYetRun, Pred: pred2},
		},
	}
	ctx.Step(st, phi)

	v, ok := st.FindVariable(phi)
	if !ok {
		t.Fatal("expected phi to produce a value from its one resolvable edge")
	}
	p := v.(*product.Product)
	vals, top := p.Set.AsRange()
	if top || len(vals) != 1 || vals[0] != 5 {
		t.Fatalf("expected only the resolvable edge's value {5}, got %v top=%v", vals, top)
	}
}

func TestMissingReportsUnresolvedNonConstantOperand(t *testing.T) {
	td := fakeTargetData{ptrWidth: 64}
	m := &fakeModule{}
	ctx := NewContext(testEnv(), td, m)
	st := state.New()

	undefined := &ir.InstBinOp{Base: ir.NewBase("x", ir.IntType{Width: 8}), Op: ir.OpAdd, X: i8(1), Y: i8(1)}
	if !ctx.missing(st, undefined) {
		t.Fatal("an instruction that hasn't run yet should count as missing")
	}
	if ctx.missing(st, i8(3)) {
		t.Fatal("a constant is never missing")
	}
}
