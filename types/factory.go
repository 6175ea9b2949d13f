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

// Package types is the domain factory (spec.md §4.4, L6): it is the one
// place in the engine that knows how to turn an ir.Type into the right
// shape of ⊥, how to turn an ir.Constant into a concrete-valued domain,
// and how to walk a getelementptr index list into a byte offset. Every
// other package is handed already-built domain.Domain values and never
// has to look at an ir.Type itself.
package types

import (
	"fmt"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
)

// Bottom builds ⊥ of the abstract value a variable of type t starts at
// (spec.md §4.4): a reduced product of Bitfield/IntSet/Interval for
// integers, a FloatInterval for floats, an empty Pointer for pointers, a
// product.Array for arrays and vectors, and a Struct with one ⊥ member
// per field for structs. Void, function, and target-data types never
// back a memory-state value, so reaching one here is a caller bug.
func Bottom(env *domain.Environment, t ir.Type) domain.Domain {
	switch v := t.(type) {
	case ir.IntType:
		return product.New(env, v.Width)
	case ir.FloatType:
		return domain.NewFloatInterval(env, v.Semantics)
	case ir.PointerType:
		return domain.NewPointer(env)
	case ir.ArrayType:
		return bottomArray(env, v.Elem, v.Len)
	case ir.VectorType:
		return bottomArray(env, v.Elem, v.Len)
	case ir.StructType:
		fieldBottoms := make([]func() domain.Domain, len(v.Fields))
		for i, f := range v.Fields {
			f := f
			fieldBottoms[i] = func() domain.Domain { return Bottom(env, f) }
		}
		return domain.NewStruct(env, fieldBottoms)
	default:
		panic(fmt.Sprintf("types: %T has no value-domain representation", t))
	}
}

func bottomArray(env *domain.Environment, elem ir.Type, length int64) domain.Domain {
	l := int(length)
	if length > exactArrayLengthCap {
		l = -1
	}
	return product.NewArray(env, l, func() domain.Domain { return Bottom(env, elem) }, isByteType(elem))
}

// exactArrayLengthCap bounds how large an array can be before the
// per-element ExactArray member is dropped in favor of the collapsed
// SingleItemArray alone (mirrors the set-domain and trie-domain caps
// package domain already enforces via config.Tunables).
const exactArrayLengthCap = 4096

func isByteType(t ir.Type) bool {
	it, ok := t.(ir.IntType)
	return ok && it.Width == 8
}

// ElementType returns the element type of an array or vector type;
// materializeArray uses it to build each element's domain.
func ElementType(t ir.Type) ir.Type {
	switch v := t.(type) {
	case ir.ArrayType:
		return v.Elem
	case ir.VectorType:
		return v.Elem
	default:
		panic(fmt.Sprintf("types: %T is not a sequential type", t))
	}
}
