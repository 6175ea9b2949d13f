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
	"github.com/llir/llvm/ir/enum"
	llvalue "github.com/llir/llvm/ir/value"

	"github.com/karelklic/absint/ir"
)

type llFunc = llir.Func
type llGlobal = llir.Global

// Translate walks m (as parsed by github.com/llir/llvm/asm or built by
// hand with github.com/llir/llvm/ir) and returns this repository's own
// ir.Module, plus the ir.TargetData the engine should interpret it
// against (SPEC_FULL.md §1.1).
//
// Every referenceable entity (global, function, block, instruction,
// parameter) is given a shell with its identity and static type up
// front, before any operand is resolved: LLVM's own object graph already
// links operands by direct Go pointer (not by name lookup), but that
// graph is not acyclic — a loop header's phi can reference a value
// produced by a block later in iteration order, and a global initializer
// can take the address of another global defined after it. Resolving
// operands in a second pass, once every shell exists, turns that
// forward-reference problem into a plain two-pass translation instead of
// requiring topological sort of either globals or blocks.
func Translate(m *llir.Module) (ir.Module, ir.TargetData, error) {
	f := &translator{
		types:       newTypeCache(),
		instOf:      make(map[llir.Instruction]ir.Instruction),
		paramOf:     make(map[*llir.Param]*Param),
		globalOf:    make(map[*llir.Global]*Global),
		funcs:       make(map[*llir.Func]*Function),
		funcByIdent: make(map[string]*Function),
		blockOf:     make(map[*llir.Block]*Block),
	}
	f.td = newTargetData(64)

	mod := &Module{}

	// Pass 1: shells.
	for _, g := range m.Globals {
		gl := &Global{id: g.Ident(), ty: f.types.translate(g.ContentType), isConst: g.Immutable}
		f.globalOf[g] = gl
		mod.globals = append(mod.globals, gl)
	}
	for _, fn := range m.Funcs {
		ffn := &Function{id: fn.Ident(), retType: f.types.translate(fn.Sig.RetType), decl: len(fn.Blocks) == 0}
		f.funcs[fn] = ffn
		f.funcByIdent[fn.Ident()] = ffn
		for _, p := range fn.Params {
			pp := &Param{id: p.Ident(), ty: f.types.translate(p.Typ)}
			f.paramOf[p] = pp
			ffn.params = append(ffn.params, pp)
		}
		for _, b := range fn.Blocks {
			bb := &Block{id: b.Ident()}
			f.blockOf[b] = bb
			ffn.blocks = append(ffn.blocks, bb)
			for _, inst := range b.Insts {
				out := f.shell(inst)
				f.instOf[inst] = out
				bb.insts = append(bb.insts, out)
			}
			term := f.shell(b.Term)
			f.instOf[b.Term] = term
			bb.term = term
		}
		mod.fns = append(mod.fns, ffn)
	}

	// Pass 2: operands, global initializers, predecessors.
	for _, g := range m.Globals {
		gl := f.globalOf[g]
		if g.Init != nil {
			gl.init = f.translateConstant(g.Init)
		}
	}
	for _, fn := range m.Funcs {
		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				f.fill(inst, f.instOf[inst])
			}
			f.fill(b.Term, f.instOf[b.Term])
		}
		computePredecessors(fn, f.blockOf)
	}

	return mod, f.td, nil
}

// translator carries the identity maps pass 2 resolves operands through.
type translator struct {
	types *typeCache
	td    *targetData

	instOf      map[llir.Instruction]ir.Instruction
	paramOf     map[*llir.Param]*Param
	globalOf    map[*llir.Global]*Global
	funcs       map[*llir.Func]*Function
	funcByIdent map[string]*Function
	blockOf     map[*llir.Block]*Block
}

// resolve maps any llir/llvm operand (instruction result, parameter,
// global, or literal constant) to this repo's ir.Value.
func (f *translator) resolve(v llvalue.Value) ir.Value {
	switch x := v.(type) {
	case llir.Instruction:
		if out, ok := f.instOf[x]; ok {
			return out
		}
	case *llir.Param:
		if out, ok := f.paramOf[x]; ok {
			return out
		}
	case *llir.Global:
		if out, ok := f.globalOf[x]; ok {
			return out
		}
	case *llir.Func:
		if out, ok := f.funcs[x]; ok {
			return out
		}
	case llconstant.Constant:
		return f.translateConstant(x)
	}
	panic(fmt.Sprintf("llvmir: unresolved operand %T (%s)", v, v.Ident()))
}

func (f *translator) block(b *llir.Block) ir.Block {
	out, ok := f.blockOf[b]
	if !ok {
		panic(fmt.Sprintf("llvmir: unresolved block %s", b.Ident()))
	}
	return out
}

func computePredecessors(fn *llir.Func, blockOf map[*llir.Block]*Block) {
	for _, b := range fn.Blocks {
		bb := blockOf[b]
		for _, succ := range successorBlocks(b) {
			sb := blockOf[succ]
			sb.preds = append(sb.preds, bb)
		}
	}
}

func successorBlocks(b *llir.Block) []*llir.Block {
	switch t := b.Term.(type) {
	case *llir.TermBr:
		return []*llir.Block{t.Target}
	case *llir.TermCondBr:
		return []*llir.Block{t.TargetTrue, t.TargetFalse}
	case *llir.TermSwitch:
		out := make([]*llir.Block, 0, len(t.Cases)+1)
		for _, c := range t.Cases {
			out = append(out, c.Target)
		}
		return append(out, t.TargetDefault)
	default:
		return nil
	}
}

func predFromICmp(p enum.IPred) ir.IntPredicate {
	switch p {
	case enum.IPredEQ:
		return ir.IntEQ
	case enum.IPredNE:
		return ir.IntNE
	case enum.IPredUGT:
		return ir.IntUGT
	case enum.IPredUGE:
		return ir.IntUGE
	case enum.IPredULT:
		return ir.IntULT
	case enum.IPredULE:
		return ir.IntULE
	case enum.IPredSGT:
		return ir.IntSGT
	case enum.IPredSGE:
		return ir.IntSGE
	case enum.IPredSLT:
		return ir.IntSLT
	case enum.IPredSLE:
		return ir.IntSLE
	default:
		panic(fmt.Sprintf("llvmir: unsupported icmp predicate %v", p))
	}
}

func predFromFCmp(p enum.FPred) ir.FloatPredicate {
	switch p {
	case enum.FPredFalse:
		return ir.FloatFalse
	case enum.FPredOEQ:
		return ir.FloatOEQ
	case enum.FPredOGT:
		return ir.FloatOGT
	case enum.FPredOGE:
		return ir.FloatOGE
	case enum.FPredOLT:
		return ir.FloatOLT
	case enum.FPredOLE:
		return ir.FloatOLE
	case enum.FPredONE:
		return ir.FloatONE
	case enum.FPredORD:
		return ir.FloatORD
	case enum.FPredUEQ:
		return ir.FloatUEQ
	case enum.FPredUGT:
		return ir.FloatUGT
	case enum.FPredUGE:
		return ir.FloatUGE
	case enum.FPredULT:
		return ir.FloatULT
	case enum.FPredULE:
		return ir.FloatULE
	case enum.FPredUNE:
		return ir.FloatUNE
	case enum.FPredUNO:
		return ir.FloatUNO
	case enum.FPredTrue:
		return ir.FloatTrue
	default:
		panic(fmt.Sprintf("llvmir: unsupported fcmp predicate %v", p))
	}
}
