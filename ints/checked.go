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

package ints

import "math/big"

// Width-bound signed/unsigned min/max for an arbitrary bit width, used by
// the interval and bitfield domains to build their top values and to clamp
// after a checked operation overflows.

// SignedMin returns the minimum representable value of a two's-complement
// signed integer of the given bit width, as a big.Int.
func SignedMin(width uint) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), width-1)
	return v.Neg(v)
}

// SignedMax returns the maximum representable value of a two's-complement
// signed integer of the given bit width.
func SignedMax(width uint) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), width-1)
	return v.Sub(v, big.NewInt(1))
}

// UnsignedMax returns the maximum representable value of an unsigned
// integer of the given bit width.
func UnsignedMax(width uint) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), width)
	return v.Sub(v, big.NewInt(1))
}

// InSignedRange reports whether v fits in a signed integer of the given width.
func InSignedRange(v *big.Int, width uint) bool {
	return v.Cmp(SignedMin(width)) >= 0 && v.Cmp(SignedMax(width)) <= 0
}

// InUnsignedRange reports whether v fits in an unsigned integer of the given width.
func InUnsignedRange(v *big.Int, width uint) bool {
	return v.Sign() >= 0 && v.Cmp(UnsignedMax(width)) <= 0
}

// CheckedOp is one of the checked arithmetic primitives below; it reports
// the mathematically exact result and whether that result overflows the
// requested width/signedness.
type CheckedOp struct {
	Result   *big.Int
	Overflow bool
}

func checked(v *big.Int, width uint, signed bool) CheckedOp {
	if signed {
		return CheckedOp{Result: v, Overflow: !InSignedRange(v, width)}
	}
	return CheckedOp{Result: v, Overflow: !InUnsignedRange(v, width)}
}

// CheckedAdd adds a and b at the given width, reporting overflow against
// the requested signedness interpretation.
func CheckedAdd(a, b *big.Int, width uint, signed bool) CheckedOp {
	return checked(new(big.Int).Add(a, b), width, signed)
}

// CheckedSub subtracts b from a at the given width.
func CheckedSub(a, b *big.Int, width uint, signed bool) CheckedOp {
	return checked(new(big.Int).Sub(a, b), width, signed)
}

// CheckedMul multiplies a and b at the given width.
func CheckedMul(a, b *big.Int, width uint, signed bool) CheckedOp {
	return checked(new(big.Int).Mul(a, b), width, signed)
}

// CheckedDiv divides a by b at the given width. b == 0 is reported as
// overflow rather than panicking: callers (the interval/set domains) treat
// an overflowing division as "result unknown", matching the IR's
// division-by-zero-is-UB discipline without the analyzer ever crashing.
func CheckedDiv(a, b *big.Int, width uint, signed bool) CheckedOp {
	if b.Sign() == 0 {
		return CheckedOp{Result: new(big.Int), Overflow: true}
	}
	q := new(big.Int)
	if signed {
		q.Quo(a, b)
	} else {
		q.Div(a, b)
	}
	return checked(q, width, signed)
}

// WrapSigned reduces v modulo 2^width and reinterprets it as a
// two's-complement signed value of that width (the "sext" truncation
// discipline used after a wraparound add/sub/mul).
func WrapSigned(v *big.Int, width uint) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), width)
	r := new(big.Int).Mod(v, mod)
	if r.Sign() < 0 {
		r.Add(r, mod)
	}
	half := new(big.Int).Lsh(big.NewInt(1), width-1)
	if r.Cmp(half) >= 0 {
		r.Sub(r, mod)
	}
	return r
}

// WrapUnsigned reduces v modulo 2^width, staying non-negative (the "zext"
// truncation discipline).
func WrapUnsigned(v *big.Int, width uint) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), width)
	r := new(big.Int).Mod(v, mod)
	if r.Sign() < 0 {
		r.Add(r, mod)
	}
	return r
}

// Trunc narrows v (already reduced to fromWidth bits) to toWidth bits.
func Trunc(v *big.Int, toWidth uint) *big.Int {
	return WrapUnsigned(v, toWidth)
}

// SExt widens v, a fromWidth-bit signed value, to toWidth bits.
func SExt(v *big.Int, fromWidth, toWidth uint) *big.Int {
	return WrapSigned(v, toWidth)
}

// ZExt widens v, a fromWidth-bit unsigned value, to toWidth bits.
func ZExt(v *big.Int, fromWidth, toWidth uint) *big.Int {
	return WrapUnsigned(v, toWidth)
}
