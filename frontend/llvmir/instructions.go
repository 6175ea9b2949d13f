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

	llir "github.com/llir/llvm/ir"
	llconstant "github.com/llir/llvm/ir/constant"

	"github.com/karelklic/absint/ir"
)

// shell creates the pass-1 placeholder for inst: identity and static
// result type are known immediately from llir/llvm's own object, but
// operands are left zero until fill runs in pass 2 (see Translate's doc
// comment for why operand resolution needs every shell to exist first).
func (f *translator) shell(inst llir.Instruction) ir.Instruction {
	base := ir.NewBase(inst.Ident(), f.types.translate(inst.Type()))
	switch v := inst.(type) {
	case *llir.InstAdd:
		return &ir.InstBinOp{Base: base, Op: ir.OpAdd}
	case *llir.InstFAdd:
		return &ir.InstBinOp{Base: base, Op: ir.OpFAdd}
	case *llir.InstSub:
		return &ir.InstBinOp{Base: base, Op: ir.OpSub}
	case *llir.InstFSub:
		return &ir.InstBinOp{Base: base, Op: ir.OpFSub}
	case *llir.InstMul:
		return &ir.InstBinOp{Base: base, Op: ir.OpMul}
	case *llir.InstFMul:
		return &ir.InstBinOp{Base: base, Op: ir.OpFMul}
	case *llir.InstUDiv:
		return &ir.InstBinOp{Base: base, Op: ir.OpUDiv}
	case *llir.InstSDiv:
		return &ir.InstBinOp{Base: base, Op: ir.OpSDiv}
	case *llir.InstFDiv:
		return &ir.InstBinOp{Base: base, Op: ir.OpFDiv}
	case *llir.InstURem:
		return &ir.InstBinOp{Base: base, Op: ir.OpURem}
	case *llir.InstSRem:
		return &ir.InstBinOp{Base: base, Op: ir.OpSRem}
	case *llir.InstFRem:
		return &ir.InstBinOp{Base: base, Op: ir.OpFRem}
	case *llir.InstShl:
		return &ir.InstBinOp{Base: base, Op: ir.OpShl}
	case *llir.InstLShr:
		return &ir.InstBinOp{Base: base, Op: ir.OpLShr}
	case *llir.InstAShr:
		return &ir.InstBinOp{Base: base, Op: ir.OpAShr}
	case *llir.InstAnd:
		return &ir.InstBinOp{Base: base, Op: ir.OpAnd}
	case *llir.InstOr:
		return &ir.InstBinOp{Base: base, Op: ir.OpOr}
	case *llir.InstXor:
		return &ir.InstBinOp{Base: base, Op: ir.OpXor}
	case *llir.InstICmp:
		return &ir.InstICmp{Base: base, Pred: predFromICmp(v.Pred)}
	case *llir.InstFCmp:
		return &ir.InstFCmp{Base: base, Pred: predFromFCmp(v.Pred)}
	case *llir.InstTrunc:
		return &ir.InstCast{Base: base, Op: ir.OpTrunc}
	case *llir.InstZExt:
		return &ir.InstCast{Base: base, Op: ir.OpZExt}
	case *llir.InstSExt:
		return &ir.InstCast{Base: base, Op: ir.OpSExt}
	case *llir.InstFPTrunc:
		return &ir.InstCast{Base: base, Op: ir.OpFPTrunc}
	case *llir.InstFPExt:
		return &ir.InstCast{Base: base, Op: ir.OpFPExt}
	case *llir.InstFPToUI:
		return &ir.InstCast{Base: base, Op: ir.OpFPToUI}
	case *llir.InstFPToSI:
		return &ir.InstCast{Base: base, Op: ir.OpFPToSI}
	case *llir.InstUIToFP:
		return &ir.InstCast{Base: base, Op: ir.OpUIToFP}
	case *llir.InstSIToFP:
		return &ir.InstCast{Base: base, Op: ir.OpSIToFP}
	case *llir.InstBitCast:
		return &ir.InstCast{Base: base, Op: ir.OpBitCast}
	case *llir.InstPtrToInt:
		return &ir.InstCast{Base: base, Op: ir.OpPtrToInt}
	case *llir.InstIntToPtr:
		return &ir.InstCast{Base: base, Op: ir.OpIntToPtr}
	case *llir.InstAlloca:
		return &ir.InstAlloca{Base: base, Allocated: f.types.translate(v.ElemType)}
	case *llir.InstLoad:
		return &ir.InstLoad{Base: base}
	case *llir.InstStore:
		return &ir.InstStore{Base: ir.NewBase(inst.Ident(), ir.VoidType{})}
	case *llir.InstGetElementPtr:
		return &ir.InstGetElementPtr{
			Base:        base,
			PointeeType: f.types.translate(v.ElemType),
			Indices:     make([]ir.Value, len(v.Indices)),
		}
	case *llir.InstExtractElement:
		return &ir.InstExtractElement{Base: base}
	case *llir.InstInsertElement:
		return &ir.InstInsertElement{Base: base}
	case *llir.InstShuffleVector:
		return &ir.InstShuffleVector{Base: base, Mask: shuffleMask(v)}
	case *llir.InstExtractValue:
		return &ir.InstExtractValue{Base: base, Indices: copyIndices(v.Indices)}
	case *llir.InstInsertValue:
		return &ir.InstInsertValue{Base: base, Indices: copyIndices(v.Indices)}
	case *llir.Phi:
		return &ir.InstPhi{Base: base, Incoming: make([]ir.PhiIncoming, len(v.Incs))}
	case *llir.InstSelect:
		return &ir.InstSelect{Base: base}
	case *llir.InstCall:
		return &ir.InstCall{Base: base, Args: make([]ir.Value, len(v.Args))}
	case *llir.TermRet:
		return &ir.TermRet{Base: base}
	case *llir.TermBr:
		return &ir.TermBr{Base: ir.NewBase(inst.Ident(), ir.VoidType{})}
	case *llir.TermCondBr:
		return &ir.TermCondBr{Base: ir.NewBase(inst.Ident(), ir.VoidType{})}
	case *llir.TermSwitch:
		return &ir.TermSwitch{Base: ir.NewBase(inst.Ident(), ir.VoidType{}), Cases: make([]ir.SwitchCase, len(v.Cases))}
	case *llir.TermUnreachable:
		return &ir.TermUnreachable{Base: ir.NewBase(inst.Ident(), ir.VoidType{})}
	default:
		panic(fmt.Sprintf("llvmir: unsupported LLVM instruction %T (%s)", inst, inst.Ident()))
	}
}

// fill resolves out's operands from inst's, now that every shell in the
// enclosing function (and every global in the module) exists.
func (f *translator) fill(inst llir.Instruction, out ir.Instruction) {
	switch v := inst.(type) {
	case *llir.InstAdd:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstFAdd:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstSub:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstFSub:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstMul:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstFMul:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstUDiv:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstSDiv:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstFDiv:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstURem:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstSRem:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstFRem:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstShl:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstLShr:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstAShr:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstAnd:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstOr:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstXor:
		fillBinOp(out, f.resolve(v.X), f.resolve(v.Y))
	case *llir.InstICmp:
		c := out.(*ir.InstICmp)
		c.X, c.Y = f.resolve(v.X), f.resolve(v.Y)
	case *llir.InstFCmp:
		c := out.(*ir.InstFCmp)
		c.X, c.Y = f.resolve(v.X), f.resolve(v.Y)
	case *llir.InstTrunc:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstZExt:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstSExt:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstFPTrunc:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstFPExt:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstFPToUI:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstFPToSI:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstUIToFP:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstSIToFP:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstBitCast:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstPtrToInt:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstIntToPtr:
		out.(*ir.InstCast).X = f.resolve(v.From)
	case *llir.InstAlloca:
		// no operand beyond the (already translated) allocated type.
	case *llir.InstLoad:
		out.(*ir.InstLoad).Ptr = f.resolve(v.Src)
	case *llir.InstStore:
		s := out.(*ir.InstStore)
		s.Val, s.Ptr = f.resolve(v.Src), f.resolve(v.Dst)
	case *llir.InstGetElementPtr:
		g := out.(*ir.InstGetElementPtr)
		g.Ptr = f.resolve(v.Src)
		for i, idx := range v.Indices {
			g.Indices[i] = f.resolve(idx)
		}
	case *llir.InstExtractElement:
		e := out.(*ir.InstExtractElement)
		e.X, e.Index = f.resolve(v.X), f.resolve(v.Index)
	case *llir.InstInsertElement:
		e := out.(*ir.InstInsertElement)
		e.X, e.Elem, e.Index = f.resolve(v.X), f.resolve(v.Elem), f.resolve(v.Index)
	case *llir.InstShuffleVector:
		s := out.(*ir.InstShuffleVector)
		s.X, s.Y = f.resolve(v.X), f.resolve(v.Y)
	case *llir.InstExtractValue:
		out.(*ir.InstExtractValue).X = f.resolve(v.X)
	case *llir.InstInsertValue:
		iv := out.(*ir.InstInsertValue)
		iv.X, iv.Elem = f.resolve(v.X), f.resolve(v.Elem)
	case *llir.Phi:
		p := out.(*ir.InstPhi)
		for i, inc := range v.Incs {
			p.Incoming[i] = ir.PhiIncoming{Value: f.resolve(inc.X), Pred: f.block(inc.Pred)}
		}
	case *llir.InstSelect:
		s := out.(*ir.InstSelect)
		s.Cond, s.True, s.False = f.resolve(v.Cond), f.resolve(v.X), f.resolve(v.Y)
	case *llir.InstCall:
		c := out.(*ir.InstCall)
		c.CalleeValue = f.resolve(v.Callee)
		if fn, ok := v.Callee.(*llir.Func); ok {
			c.Callee = f.funcs[fn]
		}
		for i, a := range v.Args {
			c.Args[i] = f.resolve(a)
		}
	case *llir.TermRet:
		if v.X != nil {
			out.(*ir.TermRet).Value = f.resolve(v.X)
		}
	case *llir.TermBr:
		out.(*ir.TermBr).Target = f.block(v.Target)
	case *llir.TermCondBr:
		c := out.(*ir.TermCondBr)
		c.Cond = f.resolve(v.Cond)
		c.TrueTarget, c.FalseTarget = f.block(v.TargetTrue), f.block(v.TargetFalse)
	case *llir.TermSwitch:
		sw := out.(*ir.TermSwitch)
		sw.Cond = f.resolve(v.X)
		sw.Default = f.block(v.TargetDefault)
		for i, c := range v.Cases {
			sw.Cases[i] = ir.SwitchCase{Value: f.translateConstant(c.X), Target: f.block(c.Target)}
		}
	case *llir.TermUnreachable:
		// no operands.
	default:
		panic(fmt.Sprintf("llvmir: unsupported LLVM instruction %T (%s)", inst, inst.Ident()))
	}
}

func fillBinOp(out ir.Instruction, x, y ir.Value) {
	b := out.(*ir.InstBinOp)
	b.X, b.Y = x, y
}

func copyIndices(idx []int64) []int64 {
	out := make([]int64, len(idx))
	copy(out, idx)
	return out
}

// shuffleMask decodes a shufflevector's lane-selection mask into the plain
// []int64 ir.InstShuffleVector wants (-1 for an undef lane). llir/llvm
// spells the mask as its own constant array value rather than a plain
// integer slice; each element is either a constant.Int or a poison/undef
// lane, which this loop resolves directly rather than asking package
// interp to understand an LLVM constant shape at transfer time.
func shuffleMask(v *llir.InstShuffleVector) []int64 {
	arr, ok := v.Mask.(*llconstant.Array)
	if !ok {
		return nil
	}
	mask := make([]int64, len(arr.Elems))
	for i, e := range arr.Elems {
		if n, ok := e.(*llconstant.Int); ok {
			mask[i] = n.X.Int64()
		} else {
			mask[i] = -1
		}
	}
	return mask
}
