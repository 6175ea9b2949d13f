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
	"strings"

	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
)

// Bitfield is the known-bits domain (spec.md §4.1 item 3): per bit
// position, the pair (zeroes[i], ones[i]) encodes whether 0 and/or 1 is
// possible there. (0,0) is a local contradiction that makes the whole
// value ⊥; (1,1) means that bit is unconstrained.
type Bitfield struct {
	Unsupported
	Env     *Environment
	Width   uint
	zeroes  []uint64
	ones    []uint64
}

func wordCount(width uint) int { return int(ints.ChunkCount(width, 64)) }

// NewBitfield returns ⊥ of the given width (every bit (0,0)).
func NewBitfield(env *Environment, width uint) *Bitfield {
	n := wordCount(width)
	return &Bitfield{
		Unsupported: Unsupported{Op: "Bitfield"}, Env: env, Width: width,
		zeroes: make([]uint64, n), ones: make([]uint64, n),
	}
}

// NewBitfieldValue returns the singleton bitfield for the constant v.
func NewBitfieldValue(env *Environment, width uint, v uint64) *Bitfield {
	b := NewBitfield(env, width)
	for i := uint(0); i < width; i++ {
		if v&(uint64(1)<<i) != 0 {
			ints.SetBit(b.ones, i)
		} else {
			ints.SetBit(b.zeroes, i)
		}
	}
	return b
}

func (b *Bitfield) mustSameKind(other Domain) *Bitfield {
	o, ok := other.(*Bitfield)
	if !ok || o.Width != b.Width {
		panic(fmt.Sprintf("Bitfield: type mismatch with %T", other))
	}
	return o
}

func (b *Bitfield) Clone() Domain {
	c := &Bitfield{Unsupported: b.Unsupported, Env: b.Env, Width: b.Width}
	c.zeroes = append([]uint64(nil), b.zeroes...)
	c.ones = append([]uint64(nil), b.ones...)
	return c
}

func (b *Bitfield) bitPossible(i uint) (zero, one bool) {
	return ints.TestBit(b.zeroes, i), ints.TestBit(b.ones, i)
}

func (b *Bitfield) IsBottom() bool {
	for i := uint(0); i < b.Width; i++ {
		z, o := b.bitPossible(i)
		if !z && !o {
			return true
		}
	}
	return false
}

func (b *Bitfield) SetBottom() {
	for i := range b.zeroes {
		b.zeroes[i] = 0
		b.ones[i] = 0
	}
}

func (b *Bitfield) IsTop() bool {
	for i := uint(0); i < b.Width; i++ {
		z, o := b.bitPossible(i)
		if !z || !o {
			return false
		}
	}
	return true
}

func (b *Bitfield) SetTop() {
	ints.SetBits(b.zeroes, uint(0), b.Width)
	ints.SetBits(b.ones, uint(0), b.Width)
}

func (b *Bitfield) SetZero() {
	for i := range b.zeroes {
		b.zeroes[i] = ^uint64(0)
		b.ones[i] = 0
	}
}

func (b *Bitfield) Equals(other Domain) bool {
	o := b.mustSameKind(other)
	for i := range b.zeroes {
		if b.zeroes[i] != o.zeroes[i] || b.ones[i] != o.ones[i] {
			return false
		}
	}
	return true
}

// LessOrEqual: b ⊑ o iff every bit's possibility set in b is a subset of o's.
func (b *Bitfield) LessOrEqual(other Domain) bool {
	o := b.mustSameKind(other)
	for i := range b.zeroes {
		if b.zeroes[i]&^o.zeroes[i] != 0 {
			return false
		}
		if b.ones[i]&^o.ones[i] != 0 {
			return false
		}
	}
	return true
}

func (b *Bitfield) Accuracy() float32 {
	if b.Width == 0 {
		return 1
	}
	known := 0
	for i := uint(0); i < b.Width; i++ {
		z, o := b.bitPossible(i)
		if z != o { // exactly one possible: a known bit
			known++
		}
	}
	return float32(known) / float32(b.Width)
}

func (b *Bitfield) MemoryUsage() uintptr { return uintptr(16 * len(b.zeroes)) }

func (b *Bitfield) String() string {
	if b.IsBottom() {
		return "Bitfield bottom"
	}
	var sb strings.Builder
	sb.WriteString("Bitfield ")
	for i := int(b.Width) - 1; i >= 0; i-- {
		z, o := b.bitPossible(uint(i))
		switch {
		case z && o:
			sb.WriteByte('?')
		case o:
			sb.WriteByte('1')
		case z:
			sb.WriteByte('0')
		default:
			sb.WriteByte('!')
		}
	}
	return sb.String()
}

func (b *Bitfield) Join(other Domain) Domain {
	o := b.mustSameKind(other)
	for i := range b.zeroes {
		b.zeroes[i] |= o.zeroes[i]
		b.ones[i] |= o.ones[i]
	}
	return b
}

func (b *Bitfield) Meet(other Domain) Domain {
	o := b.mustSameKind(other)
	for i := range b.zeroes {
		b.zeroes[i] &= o.zeroes[i]
		b.ones[i] &= o.ones[i]
	}
	return b
}

func possibleValues(z, o bool) []uint64 {
	var out []uint64
	if z {
		out = append(out, 0)
	}
	if o {
		out = append(out, 1)
	}
	return out
}

// exactBitwise computes an exact per-bit result for a 2-input boolean
// function (and/or/xor), spec.md §4.1: "Bitwise ops are exact."
func (b *Bitfield) exactBitwise(a, c *Bitfield, f func(x, y uint64) uint64) Domain {
	for i := range b.zeroes {
		b.zeroes[i], b.ones[i] = 0, 0
	}
	for i := uint(0); i < b.Width; i++ {
		az, ao := a.bitPossible(i)
		cz, co := c.bitPossible(i)
		if !az && !ao {
			b.SetBottom()
			return b
		}
		if !cz && !co {
			b.SetBottom()
			return b
		}
		for _, x := range possibleValues(az, ao) {
			for _, y := range possibleValues(cz, co) {
				if f(x, y) == 0 {
					ints.SetBit(b.zeroes, i)
				} else {
					ints.SetBit(b.ones, i)
				}
			}
		}
	}
	return b
}

func (b *Bitfield) And(a, c Domain) Domain {
	return b.exactBitwise(a.(*Bitfield), c.(*Bitfield), func(x, y uint64) uint64 { return x & y })
}
func (b *Bitfield) Or(a, c Domain) Domain {
	return b.exactBitwise(a.(*Bitfield), c.(*Bitfield), func(x, y uint64) uint64 { return x | y })
}
func (b *Bitfield) Xor(a, c Domain) Domain {
	return b.exactBitwise(a.(*Bitfield), c.(*Bitfield), func(x, y uint64) uint64 { return x ^ y })
}

// Add/Sub/Mul/UDiv/SDiv/URem/SRem/Shl/LShr/AShr: "arithmetic ops default
// to top" for Bitfield (spec.md §4.1 item 3) — the Interval and IntSet
// members of the reduced product (package product) carry the precision
// for these; Bitfield contributes only its known bits via collaboration.
func (b *Bitfield) arithmeticTop(a, c Domain) Domain {
	av, cv := a.(*Bitfield), c.(*Bitfield)
	if av.IsBottom() || cv.IsBottom() {
		b.SetBottom()
		return b
	}
	b.SetTop()
	return b
}

func (b *Bitfield) Add(a, c Domain) Domain  { return b.arithmeticTop(a, c) }
func (b *Bitfield) Sub(a, c Domain) Domain  { return b.arithmeticTop(a, c) }
func (b *Bitfield) Mul(a, c Domain) Domain  { return b.arithmeticTop(a, c) }
func (b *Bitfield) UDiv(a, c Domain) Domain { return b.arithmeticTop(a, c) }
func (b *Bitfield) SDiv(a, c Domain) Domain { return b.arithmeticTop(a, c) }
func (b *Bitfield) URem(a, c Domain) Domain { return b.arithmeticTop(a, c) }
func (b *Bitfield) SRem(a, c Domain) Domain { return b.arithmeticTop(a, c) }
func (b *Bitfield) Shl(a, c Domain) Domain  { return b.arithmeticTop(a, c) }
func (b *Bitfield) LShr(a, c Domain) Domain { return b.arithmeticTop(a, c) }
func (b *Bitfield) AShr(a, c Domain) Domain { return b.arithmeticTop(a, c) }

// ICmp implements the MSB-first scan from spec.md §4.1 item 3: the first
// bit position (from the sign bit down) where both sides are definite and
// disagree decides the predicate; hitting an ambiguous bit first yields
// top. EQ/NE scan instead from bit 0 upward: a proven-differing bit
// settles them only if no ambiguous bit was met below it; an ambiguous
// bit met first yields top.
func (b *Bitfield) ICmp(a, c Domain, pred ir.IntPredicate) Domain {
	av, cv := a.(*Bitfield), c.(*Bitfield)
	if av.IsBottom() || cv.IsBottom() {
		return FourValue(b.Env, 1, false, false, true)
	}
	if pred == ir.IntEQ || pred == ir.IntNE {
		allEqual := true
		for i := uint(0); i < av.Width; i++ {
			az, ao := av.bitPossible(i)
			cz, co := cv.bitPossible(i)
			if az != cz || ao != co || az == co { // ambiguous or definite-but-different
				if az == ao || cz == co { // ambiguous bit on either side
					return FourValue(b.Env, 1, false, false, false)
				}
				allEqual = false
				break
			}
		}
		if allEqual {
			return FourValue(b.Env, 1, pred == ir.IntEQ, pred == ir.IntNE, false)
		}
		return FourValue(b.Env, 1, pred == ir.IntNE, pred == ir.IntEQ, false)
	}
	signed := pred.Signed()
	for i := int(av.Width) - 1; i >= 0; i-- {
		az, ao := av.bitPossible(uint(i))
		cz, co := cv.bitPossible(uint(i))
		if az == ao || cz == co {
			// ambiguous at this bit before a decision was reached
			return FourValue(b.Env, 1, false, false, false)
		}
		aBit, cBit := ao, co // definite bit value
		if aBit == cBit {
			continue
		}
		// first disagreement: for the sign bit under a signed predicate,
		// a 1 bit means "more negative" i.e. smaller.
		aGreater := aBit && !cBit
		if signed && i == int(av.Width)-1 {
			aGreater = !aGreater
		}
		switch pred {
		case ir.IntSGT, ir.IntUGT:
			return FourValue(b.Env, 1, aGreater, !aGreater, false)
		case ir.IntSGE, ir.IntUGE:
			return FourValue(b.Env, 1, aGreater, !aGreater, false)
		case ir.IntSLT, ir.IntULT:
			return FourValue(b.Env, 1, !aGreater, aGreater, false)
		case ir.IntSLE, ir.IntULE:
			return FourValue(b.Env, 1, !aGreater, aGreater, false)
		}
	}
	// every bit identical and definite: operands equal
	switch pred {
	case ir.IntSGE, ir.IntUGE, ir.IntSLE, ir.IntULE:
		return FourValue(b.Env, 1, true, false, false)
	default:
		return FourValue(b.Env, 1, false, true, false)
	}
}

func (b *Bitfield) Trunc(a Domain) Domain {
	av := a.(*Bitfield)
	if av.IsBottom() {
		b.SetBottom()
		return b
	}
	for i := range b.zeroes {
		b.zeroes[i], b.ones[i] = 0, 0
	}
	for i := uint(0); i < b.Width; i++ {
		z, o := av.bitPossible(i)
		if z {
			ints.SetBit(b.zeroes, i)
		}
		if o {
			ints.SetBit(b.ones, i)
		}
	}
	return b
}

func (b *Bitfield) ZExt(a Domain) Domain {
	av := a.(*Bitfield)
	if av.IsBottom() {
		b.SetBottom()
		return b
	}
	for i := range b.zeroes {
		b.zeroes[i], b.ones[i] = 0, 0
	}
	for i := uint(0); i < b.Width; i++ {
		if i < av.Width {
			z, o := av.bitPossible(i)
			if z {
				ints.SetBit(b.zeroes, i)
			}
			if o {
				ints.SetBit(b.ones, i)
			}
		} else {
			ints.SetBit(b.zeroes, i) // zero-extended bits are definitely 0
		}
	}
	return b
}

func (b *Bitfield) SExt(a Domain) Domain {
	av := a.(*Bitfield)
	if av.IsBottom() {
		b.SetBottom()
		return b
	}
	for i := range b.zeroes {
		b.zeroes[i], b.ones[i] = 0, 0
	}
	signZ, signO := av.bitPossible(av.Width - 1)
	for i := uint(0); i < b.Width; i++ {
		z, o := signZ, signO
		if i < av.Width {
			z, o = av.bitPossible(i)
		}
		if z {
			ints.SetBit(b.zeroes, i)
		}
		if o {
			ints.SetBit(b.ones, i)
		}
	}
	return b
}

// KnownBits exposes (zeroMask, oneMask) to the reduced product's
// collaboration step (package product): bit i is known-zero iff
// zeroMask has bit i set and oneMask does not, and vice versa.
func (b *Bitfield) KnownBits() (zeroMask, oneMask []uint64) { return b.zeroes, b.ones }

// RestrictBit forces bit i to the given value, used by product's
// collaboration step when another member proves a bit.
func (b *Bitfield) RestrictBit(i uint, value bool) {
	if value {
		ints.ClearBit(b.zeroes, i)
	} else {
		ints.ClearBit(b.ones, i)
	}
}
