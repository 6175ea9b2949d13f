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

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
)

// Offset walks a getelementptr index list against pointeeType the way
// spec.md §4.5 describes and returns the accumulated byte offset as an
// Interval: each index is normalized to the pointer width, a sequential
// type (array/vector) adds index * sizeof(element) to whatever its own
// element contributes recursively, and a struct type joins the
// sub-offset of every field the index domain could select (only one
// field is the real answer, but which one may not be known) plus that
// field's own byte position (td.SizeOf/AlignOf decide field layout,
// since the core never computes layout itself — spec.md §3.1).
//
// indices[0] indexes into the pointer itself (array-of-pointee
// semantics, matching LLVM's first GEP index); indices[1:] walk into
// pointeeType.
func Offset(env *domain.Environment, td ir.TargetData, pointeeType ir.Type, indices []domain.Domain) domain.Domain {
	width := td.PointerWidth()
	if len(indices) == 0 {
		return domain.NewIntervalValue(env, width, big.NewInt(0))
	}
	total := scaledOffset(env, width, indices[0], td.SizeOf(pointeeType))
	if len(indices) > 1 {
		sub := walk(env, td, pointeeType, indices[1:])
		total = sumIntervals(env, width, total, sub)
	}
	return total
}

// walk recurses through indices into t, accumulating the byte offset
// each remaining step contributes.
func walk(env *domain.Environment, td ir.TargetData, t ir.Type, indices []domain.Domain) domain.Domain {
	width := td.PointerWidth()
	if len(indices) == 0 {
		return domain.NewIntervalValue(env, width, big.NewInt(0))
	}
	idx := indices[0]
	switch v := t.(type) {
	case ir.ArrayType:
		here := scaledOffset(env, width, idx, td.SizeOf(v.Elem))
		rest := walk(env, td, v.Elem, indices[1:])
		return sumIntervals(env, width, here, rest)
	case ir.VectorType:
		here := scaledOffset(env, width, idx, td.SizeOf(v.Elem))
		rest := walk(env, td, v.Elem, indices[1:])
		return sumIntervals(env, width, here, rest)
	case ir.StructType:
		return walkStruct(env, td, v, idx, indices[1:])
	default:
		// A scalar type with indices remaining is malformed IR (the front
		// end is supposed to stop emitting indices here); treat it as
		// contributing nothing rather than panicking on untrusted input.
		return domain.NewIntervalValue(env, width, big.NewInt(0))
	}
}

// walkStruct joins the sub-offset of every field the index domain could
// select (spec.md §4.5's struct case). A struct index is always a
// constant i32 in well-formed IR, but it is still carried as an abstract
// Domain here since ConstGEP's materialization shares this code with the
// non-constant getelementptr transfer function.
func walkStruct(env *domain.Environment, td ir.TargetData, t ir.StructType, idx domain.Domain, rest []domain.Domain) domain.Domain {
	width := td.PointerWidth()
	lo, hi := fieldRange(idx, len(t.Fields))
	var acc domain.Domain
	for i := lo; i <= hi; i++ {
		sub := walk(env, td, t.Fields[i], rest)
		shifted := addConst(env, width, sub, big.NewInt(fieldByteOffset(td, t, i)))
		if acc == nil {
			acc = shifted
		} else {
			acc = acc.Join(shifted)
		}
	}
	return acc
}

// FieldOffset exposes fieldByteOffset to package interp, which needs the
// same struct layout arithmetic to decode a byte offset back into a field
// path when interpreting load/store (spec.md §4.6).
func FieldOffset(td ir.TargetData, t ir.StructType, field int) int64 {
	return fieldByteOffset(td, t, field)
}

// fieldByteOffset computes a struct field's byte position by summing the
// aligned size of every preceding field, the same layout algorithm any
// System V-like ABI uses.
func fieldByteOffset(td ir.TargetData, t ir.StructType, field int) int64 {
	var offset int64
	for i := 0; i < field; i++ {
		offset += td.SizeOf(t.Fields[i])
		if !t.Packed {
			offset = alignUp(offset, td.AlignOf(t.Fields[i+1]))
		}
	}
	return offset
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// fieldRange recovers [lo, hi], the range of struct field indices idx
// could denote. A non-constant or out-of-range index conservatively
// spans every field.
func fieldRange(idx domain.Domain, numFields int) (lo, hi int) {
	if p, ok := idx.(*product.Product); ok {
		idx = p.Set
	}
	v, ok := idx.(*domain.IntSet)
	if !ok {
		return 0, numFields - 1
	}
	vals, top := v.AsRange()
	if top || len(vals) == 0 {
		return 0, numFields - 1
	}
	lo, hi = int(vals[0]), int(vals[0])
	for _, x := range vals[1:] {
		if int(x) < lo {
			lo = int(x)
		}
		if int(x) > hi {
			hi = int(x)
		}
	}
	return clampRange(lo, hi, numFields)
}

func clampRange(lo, hi, numFields int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= numFields {
		hi = numFields - 1
	}
	if lo > hi {
		return 0, numFields - 1
	}
	return lo, hi
}

// scaledOffset returns idx*stride as an Interval, widening to top when
// idx carries no usable bound (an unconstrained index can reach
// anywhere in the addressable range, spec.md §4.5's fallback).
func scaledOffset(env *domain.Environment, width uint, idx domain.Domain, stride int64) domain.Domain {
	lo, hi, ok := boundsOf(idx)
	if !ok {
		t := domain.NewInterval(env, width)
		t.SetTop()
		return t
	}
	s := big.NewInt(stride)
	loOff := new(big.Int).Mul(lo, s)
	hiOff := new(big.Int).Mul(hi, s)
	return domain.NewIntervalRange(env, width, loOff, hiOff, loOff, hiOff)
}

// sumIntervals adds two already-computed offsets; top propagates.
func sumIntervals(env *domain.Environment, width uint, a, b domain.Domain) domain.Domain {
	av, bv := a.(*domain.Interval), b.(*domain.Interval)
	if av.IsTop() || bv.IsTop() {
		t := domain.NewInterval(env, width)
		t.SetTop()
		return t
	}
	aLo, aHi, aOK := boundsOf(av)
	bLo, bHi, bOK := boundsOf(bv)
	if !aOK || !bOK {
		t := domain.NewInterval(env, width)
		t.SetTop()
		return t
	}
	lo := new(big.Int).Add(aLo, bLo)
	hi := new(big.Int).Add(aHi, bHi)
	return domain.NewIntervalRange(env, width, lo, hi, lo, hi)
}

// addConst shifts an already-computed offset by a fixed amount.
func addConst(env *domain.Environment, width uint, base domain.Domain, c *big.Int) domain.Domain {
	b := base.(*domain.Interval)
	if b.IsTop() {
		return b
	}
	lo, hi, ok := boundsOf(b)
	if !ok {
		t := domain.NewInterval(env, width)
		t.SetTop()
		return t
	}
	shiftedLo := new(big.Int).Add(lo, c)
	shiftedHi := new(big.Int).Add(hi, c)
	return domain.NewIntervalRange(env, width, shiftedLo, shiftedHi, shiftedLo, shiftedHi)
}

// boundsOf recovers a usable [lo, hi] from an index or offset domain.
// A getelementptr index is resolved through Context.resolve the same as
// any other operand, so a literal constant index always arrives here as
// a *product.Product (package types' own materialization never hands
// back a bare IntSet or Interval); its Range member is the one always
// populated regardless of which other member went top, so it's what
// this case reads.
func boundsOf(idx domain.Domain) (lo, hi *big.Int, ok bool) {
	switch v := idx.(type) {
	case *product.Product:
		_, _, uLo, uHi, _, uTop, bottom := v.Range.Bounds()
		if uTop || bottom {
			return nil, nil, false
		}
		return uLo, uHi, true
	case *domain.IntSet:
		vals, top := v.AsRange()
		if top || len(vals) == 0 {
			return nil, nil, false
		}
		l, h := vals[0], vals[0]
		for _, x := range vals[1:] {
			if x < l {
				l = x
			}
			if x > h {
				h = x
			}
		}
		return new(big.Int).SetUint64(l), new(big.Int).SetUint64(h), true
	case *domain.Interval:
		_, _, uLo, uHi, _, uTop, bottom := v.Bounds()
		if uTop || bottom {
			return nil, nil, false
		}
		return uLo, uHi, true
	default:
		return nil, nil, false
	}
}
