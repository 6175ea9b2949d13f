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

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
	"github.com/karelklic/absint/state"
	"github.com/karelklic/absint/types"
)

var bigZero = big.NewInt(0)

// Context is the read-only plumbing every transfer function needs: shared
// environment, target data, the per-module function registry for call
// resolution, and the block-type registry memaccess.go consults. One
// Context is built per module and threaded through the whole run.
type Context struct {
	Env     *domain.Environment
	TD      ir.TargetData
	Cache   *types.Cache
	Module  ir.Module
	Records *ModuleRecord
	blocks  *blockTypes
	funcMap map[string]ir.Function
}

// NewContext builds a Context for module m, indexing its functions by
// identifier so call resolution (calleeOf in call.go, spec.md §4.8) doesn't walk
// the whole module on every call site.
func NewContext(env *domain.Environment, td ir.TargetData, m ir.Module) *Context {
	c := &Context{Env: env, TD: td, Cache: types.NewCache(), Module: m, Records: NewModuleRecord(m), blocks: newBlockTypes(), funcMap: map[string]ir.Function{}}
	for _, fn := range m.Functions() {
		c.funcMap[fn.Ident()] = fn
	}
	c.seedGlobals(m)
	return c
}

// seedGlobals gives every global a block (keyed the same way an alloca's
// is, by its own place) holding its initializer's materialized value, and
// a pointer variable targeting that block, then installs both into every
// function's recorded input state — globals are visible to every
// function from round one, not discovered lazily.
func (c *Context) seedGlobals(m ir.Module) {
	seed := state.New()
	for _, g := range m.Globals() {
		pt, ok := g.Type().(ir.PointerType)
		if !ok {
			continue
		}
		c.blocks.set(state.BlockIDFor(g), pt.Elem)
		var contents domain.Domain
		if init := g.Initializer(); init != nil {
			contents = types.Materialize(c.Env, c.TD, init)
		} else {
			contents = types.Bottom(c.Env, pt.Elem)
			contents.SetZero()
		}
		blk := seed.NewHeapBlock(g, contents)
		off := domain.NewIntervalValue(c.Env, c.TD.PointerWidth(), bigZero)
		seed.SetVariable(g, domain.NewPointerTarget(c.Env, blk.ID(), off))
	}
	for _, fr := range c.Records.Functions {
		fr.Input.Join(seed.Clone())
	}
}

// resolve fetches v's current abstract value: a materialized constant, or
// whatever the state currently has recorded for it. An unresolved place
// (spec.md §4.6 step 2 — the defining instruction hasn't run yet this
// round) yields ⊥, which is the correct absorbing element for every join
// downstream.
func (c *Context) resolve(st *state.State, v ir.Value) domain.Domain {
	if k, ok := v.(ir.Constant); ok {
		return types.Materialize(c.Env, c.TD, k)
	}
	if d, ok := st.FindVariable(v); ok {
		return d
	}
	return types.Bottom(c.Env, v.Type())
}

// missing reports whether any of vs is still ⊥ because its defining
// instruction hasn't been interpreted yet this round, in which case the
// caller must emit no fact at all (spec.md §4.6 step 2).
func (c *Context) missing(st *state.State, vs ...ir.Value) bool {
	for _, v := range vs {
		if _, isConst := v.(ir.Constant); isConst {
			continue
		}
		if _, ok := st.FindVariable(v); !ok {
			return true
		}
	}
	return false
}

// Step interprets one non-terminator instruction against st, in place
// (spec.md §4.6). Terminators are handled by successors() in successors.go,
// since they determine control flow rather than producing a register
// value.
func (c *Context) Step(st *state.State, inst ir.Instruction) {
	switch v := inst.(type) {
	case *ir.InstBinOp:
		c.stepBinOp(st, v)
	case *ir.InstICmp:
		if c.missing(st, v.X, v.Y) {
			return
		}
		x, y := c.resolve(st, v.X), c.resolve(st, v.Y)
		st.SetVariable(v, x.ICmp(x, y, v.Pred))
	case *ir.InstFCmp:
		if c.missing(st, v.X, v.Y) {
			return
		}
		x, y := c.resolve(st, v.X), c.resolve(st, v.Y)
		st.SetVariable(v, x.FCmp(x, y, v.Pred))
	case *ir.InstCast:
		c.stepCast(st, v)
	case *ir.InstAlloca:
		c.stepAlloca(st, v)
	case *ir.InstLoad:
		c.stepLoad(st, v)
	case *ir.InstStore:
		c.stepStore(st, v)
	case *ir.InstGetElementPtr:
		c.stepGEP(st, v)
	case *ir.InstExtractElement:
		if c.missing(st, v.X, v.Index) {
			return
		}
		x, idx := c.resolve(st, v.X), c.resolve(st, v.Index)
		st.SetVariable(v, x.ExtractElement(x, idx))
	case *ir.InstInsertElement:
		if c.missing(st, v.X, v.Elem, v.Index) {
			return
		}
		x, elem, idx := c.resolve(st, v.X), c.resolve(st, v.Elem), c.resolve(st, v.Index)
		st.SetVariable(v, x.InsertElement(x, elem, idx))
	case *ir.InstShuffleVector:
		if c.missing(st, v.X, v.Y) {
			return
		}
		x, y := c.resolve(st, v.X), c.resolve(st, v.Y)
		st.SetVariable(v, x.ShuffleVector(x, y, v.Mask))
	case *ir.InstExtractValue:
		if c.missing(st, v.X) {
			return
		}
		x := c.resolve(st, v.X)
		st.SetVariable(v, x.ExtractValue(x, v.Indices))
	case *ir.InstInsertValue:
		if c.missing(st, v.X, v.Elem) {
			return
		}
		x, elem := c.resolve(st, v.X), c.resolve(st, v.Elem)
		st.SetVariable(v, x.InsertValue(x, elem, v.Indices))
	case *ir.InstPhi:
		c.stepPhi(st, v)
	case *ir.InstSelect:
		c.stepSelect(st, v)
	case *ir.InstCall:
		c.stepCall(st, v)
	}
}

func (c *Context) stepBinOp(st *state.State, inst *ir.InstBinOp) {
	if c.missing(st, inst.X, inst.Y) {
		return
	}
	x, y := c.resolve(st, inst.X), c.resolve(st, inst.Y)
	var r domain.Domain
	switch inst.Op {
	case ir.OpAdd:
		r = x.Add(x, y)
	case ir.OpSub:
		r = x.Sub(x, y)
	case ir.OpMul:
		r = x.Mul(x, y)
	case ir.OpUDiv:
		r = x.UDiv(x, y)
	case ir.OpSDiv:
		r = x.SDiv(x, y)
	case ir.OpURem:
		r = x.URem(x, y)
	case ir.OpSRem:
		r = x.SRem(x, y)
	case ir.OpShl:
		r = x.Shl(x, y)
	case ir.OpLShr:
		r = x.LShr(x, y)
	case ir.OpAShr:
		r = x.AShr(x, y)
	case ir.OpAnd:
		r = x.And(x, y)
	case ir.OpOr:
		r = x.Or(x, y)
	case ir.OpXor:
		r = x.Xor(x, y)
	case ir.OpFAdd:
		r = x.FAdd(x, y)
	case ir.OpFSub:
		r = x.FSub(x, y)
	case ir.OpFMul:
		r = x.FMul(x, y)
	case ir.OpFDiv:
		r = x.FDiv(x, y)
	case ir.OpFRem:
		r = x.FRem(x, y)
	default:
		return
	}
	st.SetVariable(inst, r)
}

func (c *Context) stepCast(st *state.State, inst *ir.InstCast) {
	if c.missing(st, inst.X) {
		return
	}
	x := c.resolve(st, inst.X)
	switch inst.Op {
	case ir.OpTrunc:
		st.SetVariable(inst, x.Trunc(x))
	case ir.OpZExt:
		st.SetVariable(inst, x.ZExt(x))
	case ir.OpSExt:
		st.SetVariable(inst, x.SExt(x))
	case ir.OpFPTrunc:
		st.SetVariable(inst, x.FPTrunc(x))
	case ir.OpFPExt:
		st.SetVariable(inst, x.FPExt(x))
	case ir.OpFPToUI:
		st.SetVariable(inst, x.FPToUI(x))
	case ir.OpFPToSI:
		st.SetVariable(inst, x.FPToSI(x))
	case ir.OpUIToFP:
		st.SetVariable(inst, x.UIToFP(x))
	case ir.OpSIToFP:
		st.SetVariable(inst, x.SIToFP(x))
	case ir.OpBitCast, ir.OpPtrToInt, ir.OpIntToPtr:
		st.SetVariable(inst, c.castPointer(x, inst))
	default:
		st.SetVariable(inst, types.Bottom(c.Env, inst.Type()))
	}
}

// castPointer implements spec.md §4.6's "bitcast/ptrtoint/inttoptr
// between pointers: re-wrap the same pointer with the new type;
// otherwise top". A bitcast between two pointer types keeps the same
// block targets (the byte offsets don't change, only how the pointee is
// read back). A cast of a pointer to a non-pointer type (ptrtoint)
// yields its NumericOffset, or top if it has none; a cast whose operand
// is not a pointer (inttoptr of an integer) yields top.
func (c *Context) castPointer(x domain.Domain, inst *ir.InstCast) domain.Domain {
	p, ok := x.(*domain.Pointer)
	if !ok {
		t := types.Bottom(c.Env, inst.Type())
		t.SetTop()
		return t
	}
	switch inst.Type().(type) {
	case ir.PointerType:
		return p.Clone()
	default:
		if p.NumericOffset != nil {
			return p.NumericOffset.Clone()
		}
		t := types.Bottom(c.Env, inst.Type())
		t.SetTop()
		return t
	}
}

func (c *Context) stepAlloca(st *state.State, inst *ir.InstAlloca) {
	c.blocks.set(state.BlockIDFor(inst), inst.Allocated)
	contents := types.Bottom(c.Env, inst.Allocated)
	contents.SetZero()
	blk := st.NewStackBlock(inst, contents)
	off := domain.NewIntervalValue(c.Env, c.TD.PointerWidth(), bigZero)
	st.SetVariable(inst, domain.NewPointerTarget(c.Env, blk.ID(), off))
}

func (c *Context) stepLoad(st *state.State, inst *ir.InstLoad) {
	if c.missing(st, inst.Ptr) {
		return
	}
	p, ok := c.resolve(st, inst.Ptr).(*domain.Pointer)
	if !ok {
		st.SetVariable(inst, types.Bottom(c.Env, inst.Type()))
		return
	}
	st.SetVariable(inst, loadThroughPointer(c.Env, c.TD, c.blocks, st, p, inst.Type()))
}

func (c *Context) stepStore(st *state.State, inst *ir.InstStore) {
	if c.missing(st, inst.Val, inst.Ptr) {
		return
	}
	p, ok := c.resolve(st, inst.Ptr).(*domain.Pointer)
	if !ok {
		return
	}
	storeThroughPointer(c.Env, c.TD, c.blocks, st, p, c.resolve(st, inst.Val))
}

func (c *Context) stepGEP(st *state.State, inst *ir.InstGetElementPtr) {
	operands := append([]ir.Value{inst.Ptr}, inst.Indices...)
	if c.missing(st, operands...) {
		return
	}
	p, ok := c.resolve(st, inst.Ptr).(*domain.Pointer)
	if !ok {
		st.SetVariable(inst, types.Bottom(c.Env, inst.Type()))
		return
	}
	idxDomains := make([]domain.Domain, len(inst.Indices))
	for i, v := range inst.Indices {
		idxDomains[i] = c.resolve(st, v)
	}
	delta := types.Offset(c.Env, c.TD, inst.PointeeType, idxDomains)
	out := p.Clone().(*domain.Pointer)
	for id, off := range out.Targets {
		iv := off.(*domain.Interval)
		out.Targets[id] = iv.Add(iv, delta)
	}
	if out.NumericOffset != nil {
		out.NumericOffset = out.NumericOffset.Add(out.NumericOffset, delta)
	}
	st.SetVariable(inst, out)
}

func (c *Context) stepPhi(st *state.State, inst *ir.InstPhi) {
	var acc domain.Domain
	for _, in := range inst.Incoming {
		if _, isConst := in.Value.(ir.Constant); !isConst {
			if _, ok := st.FindVariable(in.Value); !ok {
				continue
			}
		}
		v := c.resolve(st, in.Value)
		if acc == nil {
			acc = v.Clone()
		} else {
			acc = acc.Join(v)
		}
	}
	if acc == nil {
		return
	}
	st.SetVariable(inst, acc)
}

// stepSelect implements spec.md §4.6's select rule: −1 (⊥) skips, a
// one-sided known bit picks that branch, ⊤ joins both.
func (c *Context) stepSelect(st *state.State, inst *ir.InstSelect) {
	if c.missing(st, inst.Cond, inst.True, inst.False) {
		return
	}
	trueCase, falseCase, bottom := boolOf(c.resolve(st, inst.Cond))
	if bottom {
		return
	}
	switch {
	case trueCase && !falseCase:
		st.SetVariable(inst, c.resolve(st, inst.True).Clone())
	case falseCase && !trueCase:
		st.SetVariable(inst, c.resolve(st, inst.False).Clone())
	default:
		t, f := c.resolve(st, inst.True), c.resolve(st, inst.False)
		st.SetVariable(inst, t.Join(f))
	}
}

// boolOf decodes a 1-bit condition domain into its known truth values.
// An icmp/fcmp result is a *domain.IntSet (domain.FourValue's shape); a
// plain i1 value that came from memory (load, a phi, a function
// parameter) is a *product.Product, whose Bitfield member is the one
// spec.md §4.6 names explicitly for inspecting bit 0. Anything else is
// conservatively treated as unknown.
func boolOf(cond domain.Domain) (trueCase, falseCase, bottom bool) {
	switch v := cond.(type) {
	case *domain.IntSet:
		if v.IsBottom() {
			return false, false, true
		}
		vals, top := v.AsRange()
		if top {
			return true, true, false
		}
		for _, x := range vals {
			if x == 1 {
				trueCase = true
			} else {
				falseCase = true
			}
		}
		return trueCase, falseCase, false
	case *product.Product:
		if v.IsBottom() {
			return false, false, true
		}
		zeroMask, oneMask := v.Bits.KnownBits()
		zeroKnown := ints.TestBit(zeroMask, 0)
		oneKnown := ints.TestBit(oneMask, 0)
		return oneKnown, zeroKnown, false
	default:
		return true, true, false
	}
}
