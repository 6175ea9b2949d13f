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
	"fmt"
	"math"
	"math/big"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
	"github.com/karelklic/absint/state"
)

// Materialize turns a compile-time-known ir.Constant into a concrete-
// valued domain (spec.md §4.4): integer/float literals become
// singletons, null becomes a zero-offset numeric pointer, undef becomes
// ⊥ (undef licenses any value, and ⊥ is the correct unit for a later
// Join to pick one up), and arrays/structs recurse field by field.
func Materialize(env *domain.Environment, td ir.TargetData, c ir.Constant) domain.Domain {
	switch v := c.(type) {
	case ir.ConstInt:
		return product.NewValue(env, v.Ty.Width, v.Val)
	case ir.ConstFloat:
		if v.IsNaN {
			return domain.NewFloatIntervalValue(env, v.Ty.Semantics, math.NaN())
		}
		return domain.NewFloatIntervalValue(env, v.Ty.Semantics, v.Val)
	case ir.ConstNull:
		zero := domain.NewIntervalValue(env, td.PointerWidth(), big.NewInt(0))
		return domain.NewPointerNumeric(env, zero)
	case ir.ConstUndef:
		return Bottom(env, v.Ty)
	case ir.ConstArray:
		return materializeArray(env, td, v)
	case ir.ConstStruct:
		return materializeStruct(env, td, v)
	case ir.ConstGEP:
		return materializeGEP(env, td, v)
	case ir.ConstGlobalRef:
		zero := domain.NewIntervalValue(env, td.PointerWidth(), big.NewInt(0))
		return domain.NewPointerTarget(env, state.BlockIDFor(v.G), zero)
	case ir.ConstFunc:
		return domain.NewPointerFunc(env, v.Fn.Ident())
	default:
		panic(fmt.Sprintf("types: unhandled constant %T", c))
	}
}

func materializeArray(env *domain.Environment, td ir.TargetData, c ir.ConstArray) domain.Domain {
	elemType := ElementType(c.Ty)
	isByte := isByteType(elemType)
	arr := product.NewArray(env, len(c.Elems), func() domain.Domain { return Bottom(env, elemType) }, isByte)
	arr.SetZero()

	bytes := make([]byte, 0, len(c.Elems))
	bytesKnown := isByte
	for i, ec := range c.Elems {
		elemVal := Materialize(env, td, ec)
		idx := domain.NewIntSetValue(env, 64, uint64(i))
		arr = arr.InsertElement(arr, elemVal, idx).(*product.Array)
		if bytesKnown {
			if b, ok := exactByte(elemVal); ok {
				bytes = append(bytes, b)
				continue
			}
			bytesKnown = false
		}
	}
	if isByte && bytesKnown {
		arr.Prefix = domain.NewStringPrefixValue(env, bytes)
	}
	return arr
}

// exactByte recovers the one known byte value of a materialized i8
// product, used to reconstruct an array constant's exact string prefix
// without re-deriving it from the per-element IntSet members.
func exactByte(v domain.Domain) (byte, bool) {
	p, ok := v.(*product.Product)
	if !ok {
		return 0, false
	}
	vals, top := p.Set.AsRange()
	if top || len(vals) != 1 {
		return 0, false
	}
	return byte(vals[0]), true
}

func materializeStruct(env *domain.Environment, td ir.TargetData, c ir.ConstStruct) domain.Domain {
	fieldBottoms := make([]func() domain.Domain, len(c.Ty.Fields))
	for i, f := range c.Ty.Fields {
		f := f
		fieldBottoms[i] = func() domain.Domain { return Bottom(env, f) }
	}
	s := domain.NewStruct(env, fieldBottoms)
	s.SetZero()
	for i, fc := range c.Fields {
		fieldVal := Materialize(env, td, fc)
		s = s.InsertValue(s, fieldVal, []int64{int64(i)}).(*domain.Struct)
	}
	return s
}

// materializeGEP reduces a constant getelementptr expression (spec.md
// §4.4) by materializing its base and running the same byte-offset walk
// (§4.5) the non-constant getelementptr transfer function uses, then
// folding the result into the base pointer's existing target offsets.
func materializeGEP(env *domain.Environment, td ir.TargetData, c ir.ConstGEP) domain.Domain {
	base := Materialize(env, td, c.Base)
	basePtr, ok := base.(*domain.Pointer)
	if !ok {
		panic(fmt.Sprintf("types: getelementptr base materialized to %T, not a pointer", base))
	}
	idxDomains := make([]domain.Domain, len(c.Indices))
	for i, idx := range c.Indices {
		idxDomains[i] = Materialize(env, td, idx)
	}
	delta := Offset(env, td, c.PointeeType, idxDomains)
	out := basePtr.Clone().(*domain.Pointer)
	for b, off := range out.Targets {
		out.Targets[b] = off.Add(off, delta)
	}
	if out.NumericOffset != nil {
		out.NumericOffset = out.NumericOffset.Add(out.NumericOffset, delta)
	}
	return out
}
