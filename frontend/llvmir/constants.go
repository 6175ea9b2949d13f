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
	"math/big"

	llconstant "github.com/llir/llvm/ir/constant"

	"github.com/karelklic/absint/ir"
)

// translateConstant turns an llir/llvm constant into this repo's ir.Constant
// (spec.md §4.4 is the consumer, package types.Materialize). Functions used
// as function-pointer constants and already-translated instructions/params
// referenced from a constant expression both go through f.value, since a
// constant can name an earlier instruction result (e.g. a global
// initializer referencing another global).
func (f *translator) translateConstant(c llconstant.Constant) ir.Constant {
	switch v := c.(type) {
	case *llconstant.Int:
		return ir.ConstInt{Ty: f.types.translate(v.Typ).(ir.IntType), Val: new(big.Int).Set(v.X)}
	case *llconstant.Float:
		ft := f.types.translate(v.Typ).(ir.FloatType)
		if v.NaN {
			return ir.ConstFloat{Ty: ft, IsNaN: true}
		}
		x, _ := v.X.Float64()
		return ir.ConstFloat{Ty: ft, Val: x}
	case *llconstant.Null:
		return ir.ConstNull{Ty: f.types.translate(v.Typ).(ir.PointerType)}
	case *llconstant.ZeroInitializer:
		return zeroConstant(f.types.translate(v.Typ))
	case *llconstant.Undef:
		return ir.ConstUndef{Ty: f.types.translate(v.Typ)}
	case *llconstant.Poison:
		// Poison is stricter than undef in LLVM's own semantics (using it
		// is immediate UB, not just an unspecified value), but this
		// engine has no representation finer than "may be anything"; ⊥
		// via ConstUndef is the sound conservative collapse (spec.md
		// §4.4 already treats undef the same way).
		return ir.ConstUndef{Ty: f.types.translate(v.Typ)}
	case *llconstant.CharArray:
		return f.translateCharArray(v)
	case *llconstant.Array:
		elems := make([]ir.Constant, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = f.translateConstant(e)
		}
		return ir.ConstArray{Ty: f.types.translate(v.Typ), Elems: elems}
	case *llconstant.Struct:
		fields := make([]ir.Constant, len(v.Fields))
		for i, field := range v.Fields {
			fields[i] = f.translateConstant(field)
		}
		return ir.ConstStruct{Ty: f.types.translate(v.Typ).(ir.StructType), Fields: fields}
	case *llconstant.ExprGetElementPtr:
		idxs := make([]ir.Constant, len(v.Indices))
		for i, idx := range v.Indices {
			idxs[i] = f.translateConstant(idx)
		}
		ptrTy := f.types.translate(v.Typ).(ir.PointerType)
		return ir.ConstGEP{
			Ty:          ptrTy,
			PointeeType: f.types.translate(v.ElemType),
			Base:        f.translateConstant(v.Src),
			Indices:     idxs,
		}
	case *llFunc:
		return ir.ConstFunc{Ty: f.types.translate(v.Type()), Fn: f.funcs[v]}
	case *llGlobal:
		// A global used as a constant operand (e.g. the base pointer of a
		// getelementptr constant expression) names its own address, not
		// its contents; the Global shell already exists from pass 1
		// regardless of definition order, same as any instruction operand.
		ptrTy := f.types.translate(v.Type()).(ir.PointerType)
		return ir.ConstGlobalRef{Ty: ptrTy, G: f.globalOf[v]}
	default:
		panic(fmt.Sprintf("llvmir: unsupported LLVM constant %T (%s)", c, c.Ident()))
	}
}

// translateCharArray handles llir/llvm's specialized all-i8 array literal
// representation (used for string literals), which carries its bytes
// directly rather than as a []Constant.
func (f *translator) translateCharArray(v *llconstant.CharArray) ir.Constant {
	elemTy := ir.IntType{Width: 8}
	elems := make([]ir.Constant, len(v.X))
	for i, b := range v.X {
		elems[i] = ir.ConstInt{Ty: elemTy, Val: big.NewInt(int64(b))}
	}
	return ir.ConstArray{Ty: f.types.translate(v.Typ), Elems: elems}
}

// zeroConstant expands an LLVM zeroinitializer into this repo's recursive
// constant shape: a singleton zero for scalars, an all-zero aggregate
// otherwise. ir.ConstUndef is deliberately not used here even though both
// collapse to a template ⊥ through types.Bottom: a zeroinitializer is a
// concrete, known value (all-bits-zero), and spec.md §4.4 only routes
// `undef` itself through ⊥.
func zeroConstant(t ir.Type) ir.Constant {
	switch v := t.(type) {
	case ir.IntType:
		return ir.ConstInt{Ty: v, Val: big.NewInt(0)}
	case ir.FloatType:
		return ir.ConstFloat{Ty: v, Val: 0}
	case ir.PointerType:
		return ir.ConstNull{Ty: v}
	case ir.ArrayType:
		elems := make([]ir.Constant, v.Len)
		for i := range elems {
			elems[i] = zeroConstant(v.Elem)
		}
		return ir.ConstArray{Ty: v, Elems: elems}
	case ir.VectorType:
		elems := make([]ir.Constant, v.Len)
		for i := range elems {
			elems[i] = zeroConstant(v.Elem)
		}
		return ir.ConstArray{Ty: v, Elems: elems}
	case ir.StructType:
		fields := make([]ir.Constant, len(v.Fields))
		for i, ft := range v.Fields {
			fields[i] = zeroConstant(ft)
		}
		return ir.ConstStruct{Ty: v, Fields: fields}
	default:
		panic(fmt.Sprintf("llvmir: zeroinitializer of %T has no concrete representation", t))
	}
}
