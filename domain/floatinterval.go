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
	"fmt"
	"math"
	"math/big"

	"github.com/karelklic/absint/ir"
)

// FloatInterval is the float domain (spec.md §4.1 item 4): a range plus
// explicit NaN tracking, since IEEE NaN does not fit inside an ordered
// [lo, hi] range the way every other float value does.
type FloatInterval struct {
	Unsupported
	Env        *Environment
	Semantics  ir.FloatSemantics
	bottom     bool
	top        bool
	lo, hi     float64
	mayBeNaN   bool
}

// NewFloatInterval returns ⊥ of the given semantics.
func NewFloatInterval(env *Environment, sem ir.FloatSemantics) *FloatInterval {
	return &FloatInterval{Unsupported: Unsupported{Op: "FloatInterval"}, Env: env, Semantics: sem, bottom: true}
}

// NewFloatIntervalValue returns the singleton {v}.
func NewFloatIntervalValue(env *Environment, sem ir.FloatSemantics, v float64) *FloatInterval {
	f := NewFloatInterval(env, sem)
	f.bottom = false
	if math.IsNaN(v) {
		f.mayBeNaN = true
		f.lo, f.hi = math.Inf(1), math.Inf(-1) // empty ordered range
	} else {
		f.lo, f.hi = v, v
	}
	return f
}

func (f *FloatInterval) mustSameKind(other Domain) *FloatInterval {
	o, ok := other.(*FloatInterval)
	if !ok || o.Semantics != f.Semantics {
		panic(fmt.Sprintf("FloatInterval: type mismatch with %T", other))
	}
	return o
}

func (f *FloatInterval) Clone() Domain { c := *f; return &c }

func (f *FloatInterval) IsBottom() bool { return f.bottom }
func (f *FloatInterval) SetBottom() {
	f.bottom, f.top, f.mayBeNaN = true, false, false
	f.lo, f.hi = 0, 0
}
func (f *FloatInterval) IsTop() bool { return f.top }
func (f *FloatInterval) SetTop() {
	f.bottom, f.top, f.mayBeNaN = false, true, true
	f.lo, f.hi = math.Inf(-1), math.Inf(1)
}
func (f *FloatInterval) SetZero() {
	f.bottom, f.top, f.mayBeNaN = false, false, false
	f.lo, f.hi = 0, 0
}

func (f *FloatInterval) hasRange() bool { return !f.bottom && f.lo <= f.hi }

func (f *FloatInterval) Equals(other Domain) bool {
	o := f.mustSameKind(other)
	if f.bottom || o.bottom {
		return f.bottom == o.bottom
	}
	if f.top != o.top {
		return false
	}
	if f.mayBeNaN != o.mayBeNaN {
		return false
	}
	if f.hasRange() != o.hasRange() {
		return false
	}
	if f.hasRange() && (f.lo != o.lo || f.hi != o.hi) {
		return false
	}
	return true
}

func (f *FloatInterval) LessOrEqual(other Domain) bool {
	o := f.mustSameKind(other)
	if f.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	if o.top {
		return true
	}
	if f.top {
		return false
	}
	if f.mayBeNaN && !o.mayBeNaN {
		return false
	}
	if f.hasRange() && (!o.hasRange() || f.lo < o.lo || f.hi > o.hi) {
		return false
	}
	return true
}

func (f *FloatInterval) Accuracy() float32 {
	if f.top {
		return 0
	}
	if f.bottom {
		return 1
	}
	if f.hasRange() && f.lo == f.hi && !f.mayBeNaN {
		return 1
	}
	return 0.5
}

func (f *FloatInterval) MemoryUsage() uintptr { return 40 }

func (f *FloatInterval) String() string {
	if f.bottom {
		return "FloatInterval bottom"
	}
	if f.top {
		return "FloatInterval top"
	}
	nan := ""
	if f.mayBeNaN {
		nan = " or NaN"
	}
	if f.hasRange() {
		return fmt.Sprintf("FloatInterval [%v, %v]%s", f.lo, f.hi, nan)
	}
	return "FloatInterval {NaN}"
}

func (f *FloatInterval) Join(other Domain) Domain {
	o := f.mustSameKind(other)
	if o.bottom {
		return f
	}
	if f.bottom {
		*f = *o
		return f
	}
	f.mayBeNaN = f.mayBeNaN || o.mayBeNaN
	if f.top || o.top {
		f.top = true
		f.lo, f.hi = math.Inf(-1), math.Inf(1)
		return f
	}
	if f.hasRange() && o.hasRange() {
		f.lo, f.hi = math.Min(f.lo, o.lo), math.Max(f.hi, o.hi)
	} else if o.hasRange() {
		f.lo, f.hi = o.lo, o.hi
	}
	return f
}

func (f *FloatInterval) Meet(other Domain) Domain {
	o := f.mustSameKind(other)
	if f.bottom || o.bottom {
		f.SetBottom()
		return f
	}
	f.mayBeNaN = f.mayBeNaN && o.mayBeNaN
	if o.top {
		return f
	}
	if f.top {
		f.top = false
		f.lo, f.hi = o.lo, o.hi
		return f
	}
	if f.hasRange() && o.hasRange() {
		f.lo, f.hi = math.Max(f.lo, o.lo), math.Min(f.hi, o.hi)
		if f.lo > f.hi {
			f.lo, f.hi = 0, -1 // empty ordered range, kept alongside mayBeNaN
		}
	}
	if !f.hasRange() && !f.mayBeNaN {
		f.SetBottom()
	}
	return f
}

func (f *FloatInterval) binop(a, b Domain, g func(x, y float64) float64) Domain {
	av, bv := a.(*FloatInterval), b.(*FloatInterval)
	if av.bottom || bv.bottom {
		f.SetBottom()
		return f
	}
	f.bottom = false
	f.mayBeNaN = av.mayBeNaN || bv.mayBeNaN || av.top || bv.top
	if av.top || bv.top || !av.hasRange() || !bv.hasRange() {
		f.top = av.top || bv.top
		f.lo, f.hi = math.Inf(-1), math.Inf(1)
		return f
	}
	corners := []float64{
		g(av.lo, bv.lo), g(av.lo, bv.hi), g(av.hi, bv.lo), g(av.hi, bv.hi),
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		if math.IsNaN(c) {
			f.mayBeNaN = true
			continue
		}
		lo, hi = math.Min(lo, c), math.Max(hi, c)
	}
	f.lo, f.hi = lo, hi
	return f
}

func (f *FloatInterval) FAdd(a, b Domain) Domain { return f.binop(a, b, func(x, y float64) float64 { return x + y }) }
func (f *FloatInterval) FSub(a, b Domain) Domain { return f.binop(a, b, func(x, y float64) float64 { return x - y }) }
func (f *FloatInterval) FMul(a, b Domain) Domain { return f.binop(a, b, func(x, y float64) float64 { return x * y }) }
func (f *FloatInterval) FDiv(a, b Domain) Domain {
	return f.binop(a, b, func(x, y float64) float64 { return x / y })
}
func (f *FloatInterval) FRem(a, b Domain) Domain {
	return f.binop(a, b, math.Mod)
}

func (f *FloatInterval) FCmp(a, b Domain, pred ir.FloatPredicate) Domain {
	av, bv := a.(*FloatInterval), b.(*FloatInterval)
	if av.bottom || bv.bottom {
		return FourValue(f.Env, 1, false, false, true)
	}
	if pred == ir.FloatFalse {
		return FourValue(f.Env, 1, false, true, false)
	}
	if pred == ir.FloatTrue {
		return FourValue(f.Env, 1, true, false, false)
	}
	eitherNaN := av.mayBeNaN || bv.mayBeNaN || av.top || bv.top
	avDefiniteNaN := av.mayBeNaN && !av.hasRange()
	bvDefiniteNaN := bv.mayBeNaN && !bv.hasRange()
	if avDefiniteNaN || bvDefiniteNaN {
		// one side is definitely NaN: every ordered predicate is
		// definitely false, every unordered predicate definitely true,
		// regardless of what the other side's range is.
		return FourValue(f.Env, 1, !pred.Ordered(), pred.Ordered(), false)
	}
	// past this point neither side is provably NaN, so ORD/UNO are only
	// decidable outright when neither side could possibly be NaN.
	if pred == ir.FloatORD {
		if !eitherNaN {
			return FourValue(f.Env, 1, true, false, false)
		}
		return FourValue(f.Env, 1, false, false, false)
	}
	if pred == ir.FloatUNO {
		if !eitherNaN {
			return FourValue(f.Env, 1, false, true, false)
		}
		return FourValue(f.Env, 1, false, false, false)
	}
	if av.top || bv.top || !av.hasRange() || !bv.hasRange() {
		return FourValue(f.Env, 1, false, false, false)
	}
	var allTrue, allFalse bool
	ordCase := orderedCompare(av.lo, av.hi, bv.lo, bv.hi, pred)
	allTrue, allFalse = ordCase.allTrue, ordCase.allFalse
	if eitherNaN {
		// an unordered predicate is true whenever either side is NaN; an
		// ordered predicate is false whenever either side is NaN. Since we
		// cannot prove NaN is absent, "all true" for unordered / "all
		// false" for ordered predicates can no longer be asserted unless
		// the predicate already covers the unordered case.
		if pred.Ordered() {
			allTrue = false
		} else {
			allFalse = false
		}
	}
	return FourValue(f.Env, 1, allTrue, allFalse, false)
}

type ordResult struct{ allTrue, allFalse bool }

func orderedCompare(lo1, hi1, lo2, hi2 float64, pred ir.FloatPredicate) ordResult {
	switch pred {
	case ir.FloatOEQ, ir.FloatUEQ:
		return ordResult{lo1 == hi1 && lo1 == lo2 && lo2 == hi2, hi1 < lo2 || hi2 < lo1}
	case ir.FloatONE, ir.FloatUNE:
		return ordResult{hi1 < lo2 || hi2 < lo1, lo1 == hi1 && lo1 == lo2 && lo2 == hi2}
	case ir.FloatOGT, ir.FloatUGT:
		return ordResult{lo1 > hi2, hi1 <= lo2}
	case ir.FloatOGE, ir.FloatUGE:
		return ordResult{lo1 >= hi2, hi1 < lo2}
	case ir.FloatOLT, ir.FloatULT:
		return ordResult{hi1 < lo2, lo1 >= hi2}
	case ir.FloatOLE, ir.FloatULE:
		return ordResult{hi1 <= lo2, lo1 > hi2}
	}
	return ordResult{}
}

func (f *FloatInterval) FPTrunc(a Domain) Domain { return f.fpConvert(a) }
func (f *FloatInterval) FPExt(a Domain) Domain   { return f.fpConvert(a) }

func (f *FloatInterval) fpConvert(a Domain) Domain {
	av := a.(*FloatInterval)
	if av.bottom {
		f.SetBottom()
		return f
	}
	f.bottom = false
	f.mayBeNaN = av.mayBeNaN
	f.top = av.top
	f.lo, f.hi = av.lo, av.hi
	if f.Semantics == ir.Half {
		// Narrowing to half precision can lose range; be sound by
		// widening to top when the source range exceeds half's range.
		if !f.top && (math.Abs(f.lo) > 65504 || math.Abs(f.hi) > 65504) {
			f.SetTop()
		}
	}
	return f
}

func (f *FloatInterval) UIToFP(a Domain) Domain { return f.intToFP(a, false) }
func (f *FloatInterval) SIToFP(a Domain) Domain { return f.intToFP(a, true) }

func (f *FloatInterval) intToFP(a Domain, signed bool) Domain {
	av, ok := a.(*Interval)
	if !ok {
		panic(fmt.Sprintf("FloatInterval: inttofp from non-interval %T", a))
	}
	if av.IsBottom() {
		f.SetBottom()
		return f
	}
	f.bottom, f.mayBeNaN = false, false
	lo, hi := av.uLo, av.uHi
	top := av.uTop
	if signed {
		lo, hi = av.sLo, av.sHi
		top = av.sTop
	}
	if top {
		f.SetTop()
		return f
	}
	loF, _ := new(big.Float).SetInt(lo).Float64()
	hiF, _ := new(big.Float).SetInt(hi).Float64()
	f.lo, f.hi = loF, hiF
	return f
}
