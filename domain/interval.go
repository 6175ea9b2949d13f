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
	"math/big"

	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
)

// Widenable is implemented by domains whose lattice has infinite height
// and therefore needs the widening manager (spec.md §4.7, package
// interp/widening.go) to force convergence. Finite-height domains
// (Bitfield, StringPrefix/Suffix under a bounded alphabet) do not
// implement it; the widening manager treats that as "no widening needed".
type Widenable interface {
	WidenFrom(previous Domain)
}

// Interval is the interval domain (spec.md §4.1 item 2): a signed range
// and an unsigned range over the same bits, tracked independently because
// over/underflow in one interpretation does not imply anything about the
// other.
type Interval struct {
	Unsupported
	Env    *Environment
	Width  uint
	bottom bool
	sTop   bool
	uTop   bool
	sLo    *big.Int
	sHi    *big.Int
	uLo    *big.Int
	uHi    *big.Int
}

// NewInterval returns ⊥ of the given width.
func NewInterval(env *Environment, width uint) *Interval {
	return &Interval{Unsupported: Unsupported{Op: "Interval"}, Env: env, Width: width, bottom: true}
}

// NewIntervalValue returns the singleton interval [v,v] in both interpretations.
func NewIntervalValue(env *Environment, width uint, v *big.Int) *Interval {
	iv := NewInterval(env, width)
	s := ints.WrapSigned(v, width)
	u := ints.WrapUnsigned(v, width)
	iv.bottom = false
	iv.sLo, iv.sHi = s, s
	iv.uLo, iv.uHi = u, u
	return iv
}

// NewIntervalRange builds an interval directly from signed/unsigned bounds,
// used by the reduced product (package product) after cross-refinement.
func NewIntervalRange(env *Environment, width uint, sLo, sHi, uLo, uHi *big.Int) *Interval {
	return &Interval{
		Unsupported: Unsupported{Op: "Interval"}, Env: env, Width: width,
		sLo: sLo, sHi: sHi, uLo: uLo, uHi: uHi,
	}
}

func (iv *Interval) mustSameKind(other Domain) *Interval {
	o, ok := other.(*Interval)
	if !ok || o.Width != iv.Width {
		panic(fmt.Sprintf("Interval: type mismatch with %T", other))
	}
	return o
}

func (iv *Interval) Clone() Domain {
	c := *iv
	return &c
}

func (iv *Interval) IsBottom() bool { return iv.bottom }
func (iv *Interval) SetBottom() {
	iv.bottom = true
	iv.sTop, iv.uTop = false, false
	iv.sLo, iv.sHi, iv.uLo, iv.uHi = nil, nil, nil, nil
}
func (iv *Interval) IsTop() bool { return !iv.bottom && iv.sTop && iv.uTop }
func (iv *Interval) SetTop() {
	iv.bottom = false
	iv.sTop, iv.uTop = true, true
	iv.sLo, iv.sHi = ints.SignedMin(iv.Width), ints.SignedMax(iv.Width)
	iv.uLo, iv.uHi = big.NewInt(0), ints.UnsignedMax(iv.Width)
}

func (iv *Interval) SetZero() {
	iv.bottom = false
	iv.sTop, iv.uTop = false, false
	z := big.NewInt(0)
	iv.sLo, iv.sHi = z, z
	iv.uLo, iv.uHi = z, z
}

func (iv *Interval) Equals(other Domain) bool {
	o := iv.mustSameKind(other)
	if iv.bottom || o.bottom {
		return iv.bottom == o.bottom
	}
	if iv.sTop != o.sTop || iv.uTop != o.uTop {
		return false
	}
	if !iv.sTop && (iv.sLo.Cmp(o.sLo) != 0 || iv.sHi.Cmp(o.sHi) != 0) {
		return false
	}
	if !iv.uTop && (iv.uLo.Cmp(o.uLo) != 0 || iv.uHi.Cmp(o.uHi) != 0) {
		return false
	}
	return true
}

func (iv *Interval) LessOrEqual(other Domain) bool {
	o := iv.mustSameKind(other)
	if iv.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	if !o.sTop {
		if iv.sTop || iv.sLo.Cmp(o.sLo) < 0 || iv.sHi.Cmp(o.sHi) > 0 {
			return false
		}
	}
	if !o.uTop {
		if iv.uTop || iv.uLo.Cmp(o.uLo) < 0 || iv.uHi.Cmp(o.uHi) > 0 {
			return false
		}
	}
	return true
}

func (iv *Interval) Accuracy() float32 {
	if iv.IsTop() {
		return 0
	}
	if iv.bottom {
		return 1
	}
	full := new(big.Int).Sub(ints.UnsignedMax(iv.Width), big.NewInt(-1))
	span := new(big.Int).Sub(iv.sHi, iv.sLo)
	span.Add(span, big.NewInt(1))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(span), new(big.Float).SetInt(full)).Float32()
	return 1 - f
}

func (iv *Interval) MemoryUsage() uintptr { return 96 }

func (iv *Interval) String() string {
	if iv.bottom {
		return "Interval bottom"
	}
	sRepr, uRepr := "top", "top"
	if !iv.sTop {
		sRepr = fmt.Sprintf("[%s, %s]", iv.sLo, iv.sHi)
	}
	if !iv.uTop {
		uRepr = fmt.Sprintf("[%s, %s]", iv.uLo, iv.uHi)
	}
	return fmt.Sprintf("Interval signed %s unsigned %s", sRepr, uRepr)
}

func (iv *Interval) Join(other Domain) Domain {
	o := iv.mustSameKind(other)
	if o.bottom {
		return iv
	}
	if iv.bottom {
		*iv = *o
		return iv
	}
	if iv.sTop || o.sTop {
		iv.sTop = true
		iv.sLo, iv.sHi = nil, nil
	} else {
		iv.sLo = bigMin(iv.sLo, o.sLo)
		iv.sHi = bigMax(iv.sHi, o.sHi)
	}
	if iv.uTop || o.uTop {
		iv.uTop = true
		iv.uLo, iv.uHi = nil, nil
	} else {
		iv.uLo = bigMin(iv.uLo, o.uLo)
		iv.uHi = bigMax(iv.uHi, o.uHi)
	}
	return iv
}

func (iv *Interval) Meet(other Domain) Domain {
	o := iv.mustSameKind(other)
	if iv.bottom || o.bottom {
		iv.SetBottom()
		return iv
	}
	if !o.sTop {
		if iv.sTop {
			iv.sTop, iv.sLo, iv.sHi = false, o.sLo, o.sHi
		} else {
			iv.sLo, iv.sHi = bigMax(iv.sLo, o.sLo), bigMin(iv.sHi, o.sHi)
			if iv.sLo.Cmp(iv.sHi) > 0 {
				iv.SetBottom()
				return iv
			}
		}
	}
	if !o.uTop {
		if iv.uTop {
			iv.uTop, iv.uLo, iv.uHi = false, o.uLo, o.uHi
		} else {
			iv.uLo, iv.uHi = bigMax(iv.uLo, o.uLo), bigMin(iv.uHi, o.uHi)
			if iv.uLo.Cmp(iv.uHi) > 0 {
				iv.SetBottom()
				return iv
			}
		}
	}
	return iv
}

// Bounds exposes the signed and unsigned ranges to the reduced product's
// collaboration step (package product, spec.md §4.2).
func (iv *Interval) Bounds() (sLo, sHi, uLo, uHi *big.Int, sTop, uTop, bottom bool) {
	return iv.sLo, iv.sHi, iv.uLo, iv.uHi, iv.sTop, iv.uTop, iv.bottom
}

// RestrictUnsigned narrows the unsigned range to [lo, hi], used when
// another product member (spec.md §4.2) proves a tighter bound.
func (iv *Interval) RestrictUnsigned(lo, hi *big.Int) {
	if iv.bottom {
		return
	}
	if !iv.uTop {
		lo, hi = bigMax(iv.uLo, lo), bigMin(iv.uHi, hi)
	}
	if lo.Cmp(hi) > 0 {
		iv.SetBottom()
		return
	}
	iv.uTop = false
	iv.uLo, iv.uHi = lo, hi
}

// RestrictSigned narrows the signed range to [lo, hi], the signed
// counterpart of RestrictUnsigned: used when a signed comparison proves a
// tighter bound (branch-condition narrowing, spec.md §4.6).
func (iv *Interval) RestrictSigned(lo, hi *big.Int) {
	if iv.bottom {
		return
	}
	if !iv.sTop {
		lo, hi = bigMax(iv.sLo, lo), bigMin(iv.sHi, hi)
	}
	if lo.Cmp(hi) > 0 {
		iv.SetBottom()
		return
	}
	iv.sTop = false
	iv.sLo, iv.sHi = lo, hi
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
func bigMax(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// WidenFrom implements Widenable: numerical-infinity widening (spec.md
// §4.7). An endpoint that grew relative to previous is replaced with the
// corresponding ±∞ (i.e. that interpretation's top flag is set).
func (iv *Interval) WidenFrom(previous Domain) {
	prev := iv.mustSameKind(previous)
	if prev.bottom || iv.bottom {
		return
	}
	if !iv.sTop && !prev.sTop {
		if iv.sLo.Cmp(prev.sLo) < 0 || iv.sHi.Cmp(prev.sHi) > 0 {
			iv.sTop = true
			iv.sLo, iv.sHi = nil, nil
		}
	}
	if !iv.uTop && !prev.uTop {
		if iv.uLo.Cmp(prev.uLo) < 0 || iv.uHi.Cmp(prev.uHi) > 0 {
			iv.uTop = true
			iv.uLo, iv.uHi = nil, nil
		}
	}
}

func (iv *Interval) binop(a, b Domain, f func(x, y *big.Int, signed bool) ints.CheckedOp) Domain {
	av, bv := a.(*Interval), b.(*Interval)
	if av.bottom || bv.bottom {
		iv.SetBottom()
		return iv
	}
	if av.sTop || bv.sTop {
		iv.sTop = true
		iv.sLo, iv.sHi = nil, nil
	} else {
		lo := f(av.sLo, bv.sLo, true)
		hi := f(av.sHi, bv.sHi, true)
		if lo.Overflow || hi.Overflow {
			iv.sTop = true
			iv.sLo, iv.sHi = nil, nil
		} else {
			iv.sTop = false
			iv.sLo, iv.sHi = bigMin(lo.Result, hi.Result), bigMax(lo.Result, hi.Result)
		}
	}
	if av.uTop || bv.uTop {
		iv.uTop = true
		iv.uLo, iv.uHi = nil, nil
	} else {
		lo := f(av.uLo, bv.uLo, false)
		hi := f(av.uHi, bv.uHi, false)
		if lo.Overflow || hi.Overflow {
			iv.uTop = true
			iv.uLo, iv.uHi = nil, nil
		} else {
			iv.uTop = false
			iv.uLo, iv.uHi = bigMin(lo.Result, hi.Result), bigMax(lo.Result, hi.Result)
		}
	}
	iv.bottom = false
	return iv
}

func (iv *Interval) Add(a, b Domain) Domain {
	return iv.binop(a, b, func(x, y *big.Int, signed bool) ints.CheckedOp {
		return ints.CheckedAdd(x, y, iv.Width, signed)
	})
}
func (iv *Interval) Sub(a, b Domain) Domain {
	return iv.binop(a, b, func(x, y *big.Int, signed bool) ints.CheckedOp {
		return ints.CheckedSub(x, y, iv.Width, signed)
	})
}
func (iv *Interval) Mul(a, b Domain) Domain {
	return iv.binop(a, b, func(x, y *big.Int, signed bool) ints.CheckedOp {
		return ints.CheckedMul(x, y, iv.Width, signed)
	})
}

func (iv *Interval) divop(a, b Domain, signed bool) Domain {
	av, bv := a.(*Interval), b.(*Interval)
	if av.bottom || bv.bottom {
		iv.SetBottom()
		return iv
	}
	// Conservatively: if the divisor range can include zero, result is ⊤
	// (spec.md §4.1: "division by zero ... result is ⊤").
	iv.bottom = false
	lo, hi := bv.uLo, bv.uHi
	if signed {
		lo, hi = bv.sLo, bv.sHi
	}
	if bv.uTop || bv.sTop || (lo != nil && hi != nil && lo.Sign() <= 0 && hi.Sign() >= 0) {
		iv.SetTop()
		return iv
	}
	return iv.binop(a, b, func(x, y *big.Int, sgn bool) ints.CheckedOp {
		return ints.CheckedDiv(x, y, iv.Width, sgn)
	})
}

func (iv *Interval) UDiv(a, b Domain) Domain { return iv.divop(a, b, false) }
func (iv *Interval) SDiv(a, b Domain) Domain { return iv.divop(a, b, true) }

// URem/SRem: no tight interval remainder tracking; sound but coarse (⊤),
// matching spec.md's allowance for arithmetic ops to default to ⊤ when a
// tight abstraction is not worth the complexity (the IntSet member of
// the reduced product, package product, picks up the slack; Bitfield is
// ⊤ for remainders too).
func (iv *Interval) URem(a, b Domain) Domain {
	av, bv := a.(*Interval), b.(*Interval)
	if av.bottom || bv.bottom {
		iv.SetBottom()
		return iv
	}
	iv.SetTop()
	return iv
}
func (iv *Interval) SRem(a, b Domain) Domain { return iv.URem(a, b) }

func (iv *Interval) ICmp(a, b Domain, pred ir.IntPredicate) Domain {
	av, bv := a.(*Interval), b.(*Interval)
	if av.bottom || bv.bottom {
		return FourValue(iv.Env, 1, false, false, true)
	}
	signed := pred.Signed()
	var lo1, hi1, lo2, hi2 *big.Int
	top := false
	if signed {
		if av.sTop || bv.sTop {
			top = true
		} else {
			lo1, hi1, lo2, hi2 = av.sLo, av.sHi, bv.sLo, bv.sHi
		}
	} else {
		if av.uTop || bv.uTop {
			top = true
		} else {
			lo1, hi1, lo2, hi2 = av.uLo, av.uHi, bv.uLo, bv.uHi
		}
	}
	if top {
		return FourValue(iv.Env, 1, false, false, false)
	}
	var allTrue, allFalse bool
	switch pred {
	case ir.IntEQ:
		allTrue = lo1.Cmp(hi1) == 0 && lo1.Cmp(lo2) == 0 && lo2.Cmp(hi2) == 0
		allFalse = hi1.Cmp(lo2) < 0 || hi2.Cmp(lo1) < 0
	case ir.IntNE:
		allFalse = lo1.Cmp(hi1) == 0 && lo1.Cmp(lo2) == 0 && lo2.Cmp(hi2) == 0
		allTrue = hi1.Cmp(lo2) < 0 || hi2.Cmp(lo1) < 0
	case ir.IntSGT, ir.IntUGT:
		allTrue = lo1.Cmp(hi2) > 0
		allFalse = hi1.Cmp(lo2) <= 0
	case ir.IntSGE, ir.IntUGE:
		allTrue = lo1.Cmp(hi2) >= 0
		allFalse = hi1.Cmp(lo2) < 0
	case ir.IntSLT, ir.IntULT:
		allTrue = hi1.Cmp(lo2) < 0
		allFalse = lo1.Cmp(hi2) >= 0
	case ir.IntSLE, ir.IntULE:
		allTrue = hi1.Cmp(lo2) <= 0
		allFalse = lo1.Cmp(hi2) > 0
	}
	return FourValue(iv.Env, 1, allTrue, allFalse, false)
}

func (iv *Interval) Trunc(a Domain) Domain {
	av := a.(*Interval)
	if av.bottom {
		iv.SetBottom()
		return iv
	}
	// Truncation can wrap arbitrarily; be sound by going to top unless the
	// source range already fits losslessly in the destination width.
	if av.uTop || av.uHi.Cmp(ints.UnsignedMax(iv.Width)) > 0 {
		iv.SetTop()
		return iv
	}
	iv.bottom = false
	iv.uTop, iv.sTop = false, false
	iv.uLo, iv.uHi = av.uLo, av.uHi
	iv.sLo, iv.sHi = ints.WrapSigned(av.uLo, iv.Width), ints.WrapSigned(av.uHi, iv.Width)
	if iv.sLo.Cmp(iv.sHi) > 0 {
		iv.sTop = true
		iv.sLo, iv.sHi = nil, nil
	}
	return iv
}

func (iv *Interval) ZExt(a Domain) Domain {
	av := a.(*Interval)
	if av.bottom {
		iv.SetBottom()
		return iv
	}
	iv.bottom = false
	if av.uTop {
		iv.uTop = true
		iv.uLo, iv.uHi = nil, nil
	} else {
		iv.uTop = false
		iv.uLo, iv.uHi = av.uLo, av.uHi
	}
	iv.sTop, iv.sLo, iv.sHi = iv.uTop, iv.uLo, iv.uHi
	return iv
}

func (iv *Interval) SExt(a Domain) Domain {
	av := a.(*Interval)
	if av.bottom {
		iv.SetBottom()
		return iv
	}
	iv.bottom = false
	if av.sTop {
		iv.SetTop()
		return iv
	}
	iv.sTop, iv.sLo, iv.sHi = false, av.sLo, av.sHi
	if av.sLo.Sign() < 0 {
		iv.uTop = true
		iv.uLo, iv.uHi = nil, nil
	} else {
		iv.uTop, iv.uLo, iv.uHi = false, av.sLo, av.sHi
	}
	return iv
}

// FPToUI/FPToSI/UIToFP/SIToFP bridge to the float-interval domain; those
// conversions are implemented on FloatInterval (see floatinterval.go) for
// the float side, and here for the integer side of int<-float casts.
func (iv *Interval) FPToUI(a Domain) Domain { return iv.fpToInt(a, false) }
func (iv *Interval) FPToSI(a Domain) Domain { return iv.fpToInt(a, true) }

func (iv *Interval) fpToInt(a Domain, signed bool) Domain {
	fv, ok := a.(*FloatInterval)
	if !ok {
		panic(fmt.Sprintf("Interval: fptoint from non-float %T", a))
	}
	if fv.IsBottom() {
		iv.SetBottom()
		return iv
	}
	// Out-of-range float-to-int conversion is undefined in the source
	// language; be sound by going to top whenever we cannot prove the
	// float range fits, rather than modeling UB precisely.
	iv.SetTop()
	return iv
}
