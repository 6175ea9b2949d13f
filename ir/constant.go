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

package ir

import "math/big"

// Constant is a compile-time-known IR value. Package types (L6, the
// domain factory) turns these into concrete-valued domains; the split from
// Instruction exists because constants never go through find_variable
// (spec.md §4.6 step 1): they are materialized on the spot.
type Constant interface {
	Value
	isConstant()
}

// ConstInt is an integer literal.
type ConstInt struct {
	Ty  IntType
	Val *big.Int
}

func (ConstInt) isConstant()     {}
func (c ConstInt) Ident() string { return c.Val.String() }
func (c ConstInt) Type() Type    { return c.Ty }

// ConstFloat is a float literal. NaN is represented by IsNaN with Val
// ignored, matching the IR's ability to spell NaN bit patterns directly.
type ConstFloat struct {
	Ty    FloatType
	Val   float64
	IsNaN bool
}

func (ConstFloat) isConstant() {}
func (c ConstFloat) Ident() string {
	if c.IsNaN {
		return "nan"
	}
	return big.NewFloat(c.Val).String()
}
func (c ConstFloat) Type() Type { return c.Ty }

// ConstNull is the null pointer of type Ty.
type ConstNull struct{ Ty PointerType }

func (ConstNull) isConstant()     {}
func (ConstNull) Ident() string   { return "null" }
func (c ConstNull) Type() Type    { return c.Ty }

// ConstUndef represents `undef` of any type: the domain factory maps it
// to ⊥, not ⊤ (spec.md §4.4) — undef is a license to pick any value, and
// bottom correctly contributes nothing until joined with something real.
type ConstUndef struct{ Ty Type }

func (ConstUndef) isConstant()   {}
func (ConstUndef) Ident() string { return "undef" }
func (c ConstUndef) Type() Type  { return c.Ty }

// ConstArray is an array/vector literal.
type ConstArray struct {
	Ty    Type // ArrayType or VectorType
	Elems []Constant
}

func (ConstArray) isConstant()   {}
func (ConstArray) Ident() string { return "array" }
func (c ConstArray) Type() Type  { return c.Ty }

// ConstStruct is a struct literal.
type ConstStruct struct {
	Ty     StructType
	Fields []Constant
}

func (ConstStruct) isConstant()   {}
func (ConstStruct) Ident() string { return "struct" }
func (c ConstStruct) Type() Type  { return c.Ty }

// ConstGEP is a getelementptr constant expression over a constant base
// pointer; spec.md §4.4 reduces it by calling the §4.5 byte-offset helper.
type ConstGEP struct {
	Ty          PointerType
	PointeeType Type
	Base        Constant
	Indices     []Constant
}

func (ConstGEP) isConstant()   {}
func (ConstGEP) Ident() string { return "gep" }
func (c ConstGEP) Type() Type  { return c.Ty }

// ConstGlobalRef is a constant reference to a module-level global's own
// address, as distinct from its stored contents: a getelementptr constant
// expression's base operand, or another global's initializer, may name a
// global directly (e.g. `@.str`) rather than recursing into what it holds.
type ConstGlobalRef struct {
	Ty PointerType
	G  Global
}

func (ConstGlobalRef) isConstant()     {}
func (c ConstGlobalRef) Ident() string { return c.G.Ident() }
func (c ConstGlobalRef) Type() Type    { return c.Ty }

// ConstFunc names a function used as a function-pointer constant.
type ConstFunc struct {
	Ty Type
	Fn Function
}

func (ConstFunc) isConstant()     {}
func (c ConstFunc) Ident() string { return c.Fn.Ident() }
func (c ConstFunc) Type() Type    { return c.Ty }
