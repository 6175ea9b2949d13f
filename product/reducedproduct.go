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

// Package product implements the reduced product of the integer member
// domains (spec.md §4.2): every operation is forwarded to each member,
// then a cross-refinement ("collaboration") pass lets each member narrow
// the others using whatever it knows, repeated until the tuple stops
// changing or a round cap is hit. This is the canonical integer domain
// the rest of the engine (package types, package interp) actually works
// with; Bitfield/IntSet/Interval alone are each too coarse for most
// integer IR.
package product

import (
	"fmt"
	"math/big"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
)

// Product is the reduced product of (Bitfield, IntSet, Interval) over
// integers of a given width.
type Product struct {
	domain.Unsupported
	Env   *domain.Environment
	Width uint

	Bits  *domain.Bitfield
	Set   *domain.IntSet
	Range *domain.Interval
}

// New returns ⊥ of the given width.
func New(env *domain.Environment, width uint) *Product {
	return &Product{
		Unsupported: domain.Unsupported{Op: "product.Product"},
		Env:         env, Width: width,
		Bits: domain.NewBitfield(env, width), Set: domain.NewIntSet(env, width), Range: domain.NewInterval(env, width),
	}
}

// NewValue returns the singleton {v}.
func NewValue(env *domain.Environment, width uint, v *big.Int) *Product {
	p := New(env, width)
	u := v.Uint64()
	p.Bits = domain.NewBitfieldValue(env, width, u)
	p.Set = domain.NewIntSetValue(env, width, u)
	p.Range = domain.NewIntervalValue(env, width, v)
	return p
}

func (p *Product) mustSameKind(other domain.Domain) *Product {
	o, ok := other.(*Product)
	if !ok || o.Width != p.Width {
		panic(fmt.Sprintf("product.Product: type mismatch with %T", other))
	}
	return o
}

func (p *Product) Clone() domain.Domain {
	return &Product{
		Unsupported: p.Unsupported, Env: p.Env, Width: p.Width,
		Bits: p.Bits.Clone().(*domain.Bitfield), Set: p.Set.Clone().(*domain.IntSet), Range: p.Range.Clone().(*domain.Interval),
	}
}

// IsBottom reports ⊥ if any member has collapsed to ⊥: since the members
// describe the same concrete set from different angles, one proving
// impossibility means the whole product is impossible.
func (p *Product) IsBottom() bool { return p.Bits.IsBottom() || p.Set.IsBottom() || p.Range.IsBottom() }
func (p *Product) SetBottom()     { p.Bits.SetBottom(); p.Set.SetBottom(); p.Range.SetBottom() }
func (p *Product) IsTop() bool    { return p.Bits.IsTop() && p.Set.IsTop() && p.Range.IsTop() }
func (p *Product) SetTop()        { p.Bits.SetTop(); p.Set.SetTop(); p.Range.SetTop() }
func (p *Product) SetZero()       { p.Bits.SetZero(); p.Set.SetZero(); p.Range.SetZero() }

func (p *Product) Equals(other domain.Domain) bool {
	o := p.mustSameKind(other)
	return p.Bits.Equals(o.Bits) && p.Set.Equals(o.Set) && p.Range.Equals(o.Range)
}

func (p *Product) LessOrEqual(other domain.Domain) bool {
	o := p.mustSameKind(other)
	return p.Bits.LessOrEqual(o.Bits) && p.Set.LessOrEqual(o.Set) && p.Range.LessOrEqual(o.Range)
}

// Accuracy averages the members' own accuracy; a tighter member pulls the
// overall score up even when the others haven't caught up yet.
func (p *Product) Accuracy() float32 {
	return (p.Bits.Accuracy() + p.Set.Accuracy() + p.Range.Accuracy()) / 3
}

func (p *Product) MemoryUsage() uintptr {
	return p.Bits.MemoryUsage() + p.Set.MemoryUsage() + p.Range.MemoryUsage()
}

func (p *Product) String() string {
	if p.IsBottom() {
		return "Product bottom"
	}
	return fmt.Sprintf("Product{%s, %s, %s}", p.Bits, p.Set, p.Range)
}

func (p *Product) Join(other domain.Domain) domain.Domain {
	o := p.mustSameKind(other)
	p.Bits.Join(o.Bits)
	p.Set.Join(o.Set)
	p.Range.Join(o.Range)
	p.collaborate()
	return p
}

func (p *Product) Meet(other domain.Domain) domain.Domain {
	o := p.mustSameKind(other)
	p.Bits.Meet(o.Bits)
	p.Set.Meet(o.Set)
	p.Range.Meet(o.Range)
	p.collaborate()
	return p
}

// WidenFrom implements domain.Widenable: only Range has infinite height,
// so only it needs widening; Bits and Set are finite-height and their
// own Join already reaches a fixpoint in bounded steps.
func (p *Product) WidenFrom(previous domain.Domain) {
	prev := p.mustSameKind(previous)
	p.Range.WidenFrom(prev.Range)
	p.collaborate()
}

func binMember(width uint, a, b *Product, bits func(x, y *domain.Bitfield) domain.Domain, set func(x, y *domain.IntSet) domain.Domain, rng func(x, y *domain.Interval) domain.Domain) *Product {
	out := New(a.Env, width)
	out.Bits = bits(a.Bits, b.Bits).(*domain.Bitfield)
	out.Set = set(a.Set, b.Set).(*domain.IntSet)
	out.Range = rng(a.Range, b.Range).(*domain.Interval)
	out.collaborate()
	return out
}

func (p *Product) Add(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Add(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Add(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).Add(x, y) })
}
func (p *Product) Sub(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Sub(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Sub(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).Sub(x, y) })
}
func (p *Product) Mul(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Mul(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Mul(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).Mul(x, y) })
}
func (p *Product) UDiv(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).UDiv(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).UDiv(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).UDiv(x, y) })
}
func (p *Product) SDiv(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).SDiv(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).SDiv(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SDiv(x, y) })
}
func (p *Product) URem(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).URem(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).URem(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).URem(x, y) })
}
func (p *Product) SRem(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).SRem(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).SRem(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SRem(x, y) })
}
func (p *Product) Shl(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Shl(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Shl(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}
func (p *Product) LShr(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).LShr(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).LShr(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}
func (p *Product) AShr(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).AShr(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).AShr(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}
func (p *Product) And(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).And(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).And(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}
func (p *Product) Or(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Or(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Or(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}
func (p *Product) Xor(a, b domain.Domain) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	return binMember(p.Width, av, bv,
		func(x, y *domain.Bitfield) domain.Domain { return domain.NewBitfield(p.Env, p.Width).Xor(x, y) },
		func(x, y *domain.IntSet) domain.Domain { return domain.NewIntSet(p.Env, p.Width).Xor(x, y) },
		func(x, y *domain.Interval) domain.Domain { return domain.NewInterval(p.Env, p.Width).SetTop().(*domain.Interval) })
}

// RestrictRange narrows Range to [lo, hi] under whichever interpretation
// the triggering comparison used (signed or unsigned), drops any IntSet
// value the new bound now rules out, and re-runs collaborate so Bitfield
// picks up whatever that proves — the same three member-narrowing hooks
// (Interval.RestrictSigned/RestrictUnsigned, IntSet.RestrictTo,
// Bitfield.RestrictBit) the reduced product's own collaboration step
// uses. Used by interp's branch-condition narrowing (spec.md §4.6: a
// condbr on an icmp restricts the compared operand along each edge).
func (p *Product) RestrictRange(signed bool, lo, hi *big.Int) {
	if signed {
		p.Range.RestrictSigned(lo, hi)
	} else {
		p.Range.RestrictUnsigned(lo, hi)
	}
	if vals, top := p.Set.AsRange(); !top {
		allowed := map[uint64]struct{}{}
		for _, v := range vals {
			val := new(big.Int).SetUint64(v)
			if signed {
				val = ints.WrapSigned(val, p.Width)
			}
			if val.Cmp(lo) >= 0 && val.Cmp(hi) <= 0 {
				allowed[v] = struct{}{}
			}
		}
		p.Set.RestrictTo(allowed)
	}
	p.collaborate()
}

func (p *Product) ICmp(a, b domain.Domain, pred ir.IntPredicate) domain.Domain {
	av, bv := a.(*Product), b.(*Product)
	// Each member's own comparison is a sound four-value answer; meeting
	// them (as sets of {0,1}) keeps whichever member is most precise for
	// this particular pair of operands and predicate.
	r := av.Bits.ICmp(av.Bits, bv.Bits, pred).(*domain.IntSet)
	r2 := av.Set.ICmp(av.Set, bv.Set, pred).(*domain.IntSet)
	r3 := av.Range.ICmp(av.Range, bv.Range, pred).(*domain.IntSet)
	r.Meet(r2)
	r.Meet(r3)
	return r
}

func (p *Product) Trunc(a domain.Domain) domain.Domain { return p.castMember(a, "trunc") }
func (p *Product) ZExt(a domain.Domain) domain.Domain  { return p.castMember(a, "zext") }
func (p *Product) SExt(a domain.Domain) domain.Domain  { return p.castMember(a, "sext") }

func (p *Product) castMember(a domain.Domain, op string) domain.Domain {
	av := a.(*Product)
	out := New(p.Env, p.Width)
	switch op {
	case "trunc":
		out.Bits = domain.NewBitfield(p.Env, p.Width).Trunc(av.Bits).(*domain.Bitfield)
		out.Set = domain.NewIntSet(p.Env, p.Width).Trunc(av.Set).(*domain.IntSet)
		out.Range = domain.NewInterval(p.Env, p.Width).Trunc(av.Range).(*domain.Interval)
	case "zext":
		out.Bits = domain.NewBitfield(p.Env, p.Width).ZExt(av.Bits).(*domain.Bitfield)
		out.Set = domain.NewIntSet(p.Env, p.Width).ZExt(av.Set).(*domain.IntSet)
		out.Range = domain.NewInterval(p.Env, p.Width).ZExt(av.Range).(*domain.Interval)
	case "sext":
		out.Bits = domain.NewBitfield(p.Env, p.Width).SExt(av.Bits).(*domain.Bitfield)
		out.Set = domain.NewIntSet(p.Env, p.Width).SExt(av.Set).(*domain.IntSet)
		out.Range = domain.NewInterval(p.Env, p.Width).SExt(av.Range).(*domain.Interval)
	}
	out.collaborate()
	return out
}

// collaborate runs the cross-refinement loop spec.md §4.2 describes:
// each member narrows the others using what it alone knows, repeated
// until nothing changes or the round cap is hit. The loop is monotone
// (every step only ever shrinks a member) so it terminates in at most
// CollaborationRoundCap rounds even without detecting a fixpoint early.
func (p *Product) collaborate() {
	if p.Bits.IsBottom() || p.Set.IsBottom() || p.Range.IsBottom() {
		p.SetBottom()
		return
	}
	for round := 0; round < p.Env.CollaborationRoundCap(); round++ {
		changed := false

		// IntSet -> Bitfield: every possible value known to IntSet
		// constrains what each bit can be.
		if vals, top := p.Set.AsRange(); !top {
			changed = p.restrictBitsFromValues(vals) || changed
		}

		// Bitfield -> IntSet: drop any IntSet member whose bits
		// contradict what Bitfield has proven.
		zeroMask, oneMask := p.Bits.KnownBits()
		if vals, top := p.Set.AsRange(); !top {
			allowed := map[uint64]struct{}{}
			for _, v := range vals {
				if bitsConsistent(v, zeroMask, oneMask, p.Width) {
					allowed[v] = struct{}{}
				}
			}
			before := len(vals)
			p.Set.RestrictTo(allowed)
			if newVals, newTop := p.Set.AsRange(); !newTop && len(newVals) != before {
				changed = true
			}
		}

		// IntSet -> Interval: a finite set's own min/max is always at
		// least as tight as whatever Interval currently has.
		if vals, top := p.Set.AsRange(); !top && len(vals) > 0 {
			lo, hi := vals[0], vals[0]
			for _, v := range vals[1:] {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			_, _, uLoBefore, uHiBefore, _, uTopBefore, _ := p.Range.Bounds()
			p.Range.RestrictUnsigned(new(big.Int).SetUint64(lo), new(big.Int).SetUint64(hi))
			_, _, uLoAfter, uHiAfter, _, uTopAfter, _ := p.Range.Bounds()
			if uTopBefore != uTopAfter || (uLoBefore != nil && uLoBefore.Cmp(uLoAfter) != 0) || (uHiBefore != nil && uHiBefore.Cmp(uHiAfter) != 0) {
				changed = true
			}
		}

		if p.Bits.IsBottom() || p.Set.IsBottom() || p.Range.IsBottom() {
			p.SetBottom()
			return
		}
		if !changed {
			break
		}
	}
}

// restrictBitsFromValues intersects Bitfield's known bits with what is
// achievable given IntSet's finite value set.
func (p *Product) restrictBitsFromValues(vals []uint64) bool {
	if len(vals) == 0 {
		return false
	}
	var zeroPossible, onePossible uint64
	for i := uint(0); i < p.Width && i < 64; i++ {
		for _, v := range vals {
			if v&(uint64(1)<<i) != 0 {
				onePossible |= uint64(1) << i
			} else {
				zeroPossible |= uint64(1) << i
			}
		}
	}
	changed := false
	zeroMask, oneMask := p.Bits.KnownBits()
	for i := uint(0); i < p.Width && i < 64; i++ {
		z := ints.TestBit(zeroMask, i)
		o := ints.TestBit(oneMask, i)
		wantZero := zeroPossible&(uint64(1)<<i) != 0
		wantOne := onePossible&(uint64(1)<<i) != 0
		if z && !wantZero {
			p.Bits.RestrictBit(i, true)
			changed = true
		}
		if o && !wantOne {
			p.Bits.RestrictBit(i, false)
			changed = true
		}
	}
	return changed
}

func bitsConsistent(v uint64, zeroMask, oneMask []uint64, width uint) bool {
	for i := uint(0); i < width && i < 64; i++ {
		bit := v&(uint64(1)<<i) != 0
		z := ints.TestBit(zeroMask, i)
		o := ints.TestBit(oneMask, i)
		if bit && !o {
			return false
		}
		if !bit && !z {
			return false
		}
	}
	return true
}
