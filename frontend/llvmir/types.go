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

package llvmir

import (
	"fmt"

	lltypes "github.com/llir/llvm/ir/types"

	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
)

// typeCache memoizes the llir/llvm -> ir.Type translation. Named struct
// types are the one shape that can be mutually recursive (only ever
// through a pointer field, since LLVM has no other way to close a
// recursive aggregate); resolving is tracked separately so a cycle
// degrades to an empty-field placeholder for the recursive occurrence
// instead of recursing forever, rather than needing a second pass over
// every type definition up front.
type typeCache struct {
	cache     map[lltypes.Type]ir.Type
	resolving map[*lltypes.StructType]bool
}

func newTypeCache() *typeCache {
	return &typeCache{
		cache:     make(map[lltypes.Type]ir.Type),
		resolving: make(map[*lltypes.StructType]bool),
	}
}

func (c *typeCache) translate(t lltypes.Type) ir.Type {
	if got, ok := c.cache[t]; ok {
		return got
	}
	out := c.translateUncached(t)
	c.cache[t] = out
	return out
}

func (c *typeCache) translateUncached(t lltypes.Type) ir.Type {
	switch v := t.(type) {
	case *lltypes.VoidType:
		return ir.VoidType{}
	case *lltypes.IntType:
		return ir.IntType{Width: v.BitSize}
	case *lltypes.FloatType:
		return ir.FloatType{Semantics: floatSemantics(v.Kind)}
	case *lltypes.PointerType:
		return ir.PointerType{Elem: c.translate(v.ElemType)}
	case *lltypes.ArrayType:
		return ir.ArrayType{Elem: c.translate(v.ElemType), Len: int64(v.Len)}
	case *lltypes.VectorType:
		return ir.VectorType{Elem: c.translate(v.ElemType), Len: int64(v.Len)}
	case *lltypes.StructType:
		return c.translateStruct(v)
	case *lltypes.FuncType:
		params := make([]ir.Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = c.translate(p)
		}
		return ir.FuncType{Ret: c.translate(v.RetType), Params: params, Variadic: v.Variadic}
	default:
		panic(fmt.Sprintf("llvmir: unsupported LLVM type %T (%s)", t, t.LLString()))
	}
}

func (c *typeCache) translateStruct(v *lltypes.StructType) ir.Type {
	if c.resolving[v] {
		// A struct referencing itself (always indirectly, through a
		// pointer field): report it as an empty-field shell for this
		// occurrence rather than recursing forever. The outer call that
		// is still resolving v finishes normally and caches the real,
		// fully-fielded type; only the nested self-reference sees the
		// placeholder, and nothing in this engine computes the byte
		// size of a pointer's pointee (spec.md §3.1: pointers never
		// need their target's layout, only their own fixed width), so
		// the placeholder is never dereferenced for layout purposes.
		return ir.StructType{Name: v.TypeName, Packed: v.Packed}
	}
	c.resolving[v] = true
	defer delete(c.resolving, v)

	fields := make([]ir.Type, len(v.Fields))
	for i, f := range v.Fields {
		fields[i] = c.translate(f)
	}
	return ir.StructType{Name: v.TypeName, Fields: fields, Packed: v.Packed}
}

func floatSemantics(k lltypes.FloatKind) ir.FloatSemantics {
	switch k {
	case lltypes.FloatKindHalf:
		return ir.Half
	case lltypes.FloatKindFloat:
		return ir.Single
	case lltypes.FloatKindDouble:
		return ir.Double
	case lltypes.FloatKindX86_FP80:
		return ir.X86FP80
	case lltypes.FloatKindFP128, lltypes.FloatKindPPC_FP128:
		return ir.FP128
	default:
		return ir.Double
	}
}

// targetData is the ir.TargetData implementation this front end supplies,
// since spec.md §3.1 keeps layout computation entirely outside the core
// ("the core never computes layout itself... it asks the provider").
// Sizes follow the LLVM default data layout's natural ABI alignment
// (ints and floats aligned to their own byte size up to 8 bytes, pointers
// machine-width, aggregates padded so every member starts at its own
// alignment) rather than parsing a module's datalayout string: no pack
// repo carries a datalayout-string parser to ground that on, and the
// analyzer's soundness does not depend on matching a particular target
// exactly (over- or under-estimating layout only changes precision of
// getelementptr offsets, not soundness, since types.Offset §4.5 always
// joins across an uncertain index span).
type targetData struct {
	ptrWidth uint // in bits
}

func newTargetData(ptrWidth uint) *targetData {
	if ptrWidth == 0 {
		ptrWidth = 64
	}
	return &targetData{ptrWidth: ptrWidth}
}

func (td *targetData) PointerWidth() uint { return td.ptrWidth }

func (td *targetData) SizeOf(t ir.Type) int64 {
	switch v := t.(type) {
	case ir.VoidType:
		return 0
	case ir.IntType:
		return int64((v.Width + 7) / 8)
	case ir.FloatType:
		switch v.Semantics {
		case ir.Half:
			return 2
		case ir.Single:
			return 4
		case ir.Double:
			return 8
		case ir.X86FP80:
			return 16 // padded storage size, matching typical x86-64 ABI layout
		case ir.FP128:
			return 16
		default:
			return 8
		}
	case ir.PointerType:
		return int64(td.ptrWidth / 8)
	case ir.ArrayType:
		return alignUp(td.SizeOf(v.Elem), td.AlignOf(v.Elem)) * v.Len
	case ir.VectorType:
		return alignUp(td.SizeOf(v.Elem), td.AlignOf(v.Elem)) * v.Len
	case ir.StructType:
		return td.structSize(v)
	default:
		return 0
	}
}

func (td *targetData) AlignOf(t ir.Type) int64 {
	switch v := t.(type) {
	case ir.VoidType:
		return 1
	case ir.IntType:
		sz := (v.Width + 7) / 8
		return clampAlign(int64(sz))
	case ir.FloatType:
		return clampAlign(td.SizeOf(v))
	case ir.PointerType:
		return int64(td.ptrWidth / 8)
	case ir.ArrayType:
		return td.AlignOf(v.Elem)
	case ir.VectorType:
		return td.AlignOf(v.Elem)
	case ir.StructType:
		if v.Packed {
			return 1
		}
		best := int64(1)
		for _, f := range v.Fields {
			if a := td.AlignOf(f); a > best {
				best = a
			}
		}
		return best
	default:
		return 1
	}
}

func (td *targetData) structSize(v ir.StructType) int64 {
	var offset int64
	for _, f := range v.Fields {
		if !v.Packed {
			offset = alignUp(offset, td.AlignOf(f))
		}
		offset += td.SizeOf(f)
	}
	return alignUp(offset, td.AlignOf(v))
}

// alignUp rounds off up to the nearest multiple of align, delegating to
// ints.AlignUp64 (package ints) rather than re-deriving the same rounding
// arithmetic the teacher already wrote this helper for.
func alignUp(off, align int64) int64 {
	if align <= 1 {
		return off
	}
	return int64(ints.AlignUp64(uint64(off), uint64(align)))
}

// clampAlign rounds a byte size down to the nearest power of two capped at
// 8 (no natural scalar alignment exceeds 8 bytes on the targets this
// engine cares about, x86_fp80/fp128's 16-byte ABI size notwithstanding).
func clampAlign(size int64) int64 {
	switch {
	case size >= 8:
		return 8
	case size >= 4:
		return 4
	case size >= 2:
		return 2
	default:
		return 1
	}
}
