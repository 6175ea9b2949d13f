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

// Instruction is any IR instruction, terminators included. The concrete
// types below are the closed set package interp switches over; adding a
// new opcode means adding both a case here and a transfer function in
// interp, never a generic "visit" callback.
type Instruction interface {
	Value
	Opcode() Opcode
}

// Base carries the identity and static type every instruction needs;
// concrete instruction structs embed it. Exported so frontend adapters in
// other packages can construct instructions directly.
type Base struct {
	ID string
	Ty Type
}

func (b Base) Ident() string { return b.ID }
func (b Base) Type() Type    { return b.Ty }

// NewBase builds the embedded identity/type pair for a new instruction.
func NewBase(id string, ty Type) Base { return Base{ID: id, Ty: ty} }

// InstBinOp covers every two-operand scalar arithmetic/logic opcode
// (add, sub, mul, udiv, sdiv, urem, srem, shl, lshr, ashr, and, or, xor,
// fadd, fsub, fmul, fdiv, frem): one struct because the transfer function
// shape (fetch X, fetch Y, call the matching Domain method) is identical.
type InstBinOp struct {
	Base
	Op   Opcode
	X, Y Value
}

func (i *InstBinOp) Opcode() Opcode { return i.Op }

// InstICmp is an integer (or pointer) comparison.
type InstICmp struct {
	Base
	Pred IntPredicate
	X, Y Value
}

func (i *InstICmp) Opcode() Opcode { return OpICmp }

// InstFCmp is a float comparison.
type InstFCmp struct {
	Base
	Pred FloatPredicate
	X, Y Value
}

func (i *InstFCmp) Opcode() Opcode { return OpFCmp }

// InstCast covers every single-operand conversion opcode (trunc, zext,
// sext, fptrunc, fpext, fptoui, fptosi, uitofp, sitofp, bitcast, ptrtoint,
// inttoptr); destination type is base.Ty.
type InstCast struct {
	Base
	Op Opcode
	X  Value
}

func (i *InstCast) Opcode() Opcode { return i.Op }

// InstAlloca allocates a fresh stack block of Allocated and yields a
// pointer to it.
type InstAlloca struct {
	Base
	Allocated Type
}

func (i *InstAlloca) Opcode() Opcode { return OpAlloca }

// InstLoad dereferences Ptr.
type InstLoad struct {
	Base
	Ptr Value
}

func (i *InstLoad) Opcode() Opcode { return OpLoad }

// InstStore writes Val through Ptr. Its Type() is VoidType{}.
type InstStore struct {
	Base
	Val, Ptr Value
}

func (i *InstStore) Opcode() Opcode { return OpStore }

// InstGetElementPtr computes a derived pointer. PointeeType is the type
// the base pointer points to (the first index steps through it); Indices
// is the non-empty list §4.5 walks.
type InstGetElementPtr struct {
	Base
	PointeeType Type
	Ptr         Value
	Indices     []Value
}

func (i *InstGetElementPtr) Opcode() Opcode { return OpGetElementPtr }

// InstExtractElement reads one lane of a vector/array value.
type InstExtractElement struct {
	Base
	X, Index Value
}

func (i *InstExtractElement) Opcode() Opcode { return OpExtractElement }

// InstInsertElement writes one lane, yielding a new aggregate value.
type InstInsertElement struct {
	Base
	X, Elem, Index Value
}

func (i *InstInsertElement) Opcode() Opcode { return OpInsertElement }

// InstShuffleVector builds a new vector by selecting lanes from X and Y
// according to Mask (an index per output lane; -1 means undef lane).
type InstShuffleVector struct {
	Base
	X, Y Value
	Mask []int64
}

func (i *InstShuffleVector) Opcode() Opcode { return OpShuffleVector }

// InstExtractValue projects a struct/array member through a constant
// index path.
type InstExtractValue struct {
	Base
	X       Value
	Indices []int64
}

func (i *InstExtractValue) Opcode() Opcode { return OpExtractValue }

// InstInsertValue writes a struct/array member through a constant index
// path, yielding a new aggregate value.
type InstInsertValue struct {
	Base
	X, Elem Value
	Indices []int64
}

func (i *InstInsertValue) Opcode() Opcode { return OpInsertValue }

// PhiIncoming is one (value, predecessor) edge of a phi node.
type PhiIncoming struct {
	Value Value
	Pred  Block
}

// InstPhi joins one value per realized incoming edge (spec.md §4.6).
type InstPhi struct {
	Base
	Incoming []PhiIncoming
}

func (i *InstPhi) Opcode() Opcode { return OpPhi }

// InstSelect picks True or False based on Cond's bit 0 (spec.md §4.6).
type InstSelect struct {
	Base
	Cond, True, False Value
}

func (i *InstSelect) Opcode() Opcode { return OpSelect }

// InstCall invokes Callee (resolved statically when known; nil for an
// indirect call through CalleeValue) with Args.
type InstCall struct {
	Base
	Callee      Function // nil if indirect
	CalleeValue Value    // always set; used for indirect calls
	Args        []Value
}

func (i *InstCall) Opcode() Opcode { return OpCall }

// TermRet returns Value (nil for a void return) from the current function.
type TermRet struct {
	Base
	Value Value // nil for `ret void`
}

func (i *TermRet) Opcode() Opcode { return OpRet }

// TermBr is an unconditional branch.
type TermBr struct {
	Base
	Target Block
}

func (i *TermBr) Opcode() Opcode { return OpBr }

// TermCondBr is a two-way conditional branch.
type TermCondBr struct {
	Base
	Cond                     Value
	TrueTarget, FalseTarget Block
}

func (i *TermCondBr) Opcode() Opcode { return OpCondBr }

// SwitchCase is one `case value -> target` arm of a switch.
type SwitchCase struct {
	Value  Constant
	Target Block
}

// TermSwitch is a multi-way branch.
type TermSwitch struct {
	Base
	Cond    Value
	Cases   []SwitchCase
	Default Block
}

func (i *TermSwitch) Opcode() Opcode { return OpSwitch }

// TermUnreachable marks a block exit the front end asserts is never
// reached; the interpreter treats it as a no-op terminator with no
// successors.
type TermUnreachable struct{ Base }

func (i *TermUnreachable) Opcode() Opcode { return OpUnreachable }
