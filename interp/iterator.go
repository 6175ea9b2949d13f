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

package interp

import (
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/state"
)

// Callback receives side-effect-only notifications as the iterator's three
// cursors move (spec.md §4.9's closing line); none of its methods may
// influence interpretation. Embed Callbacks to implement only the hooks a
// caller cares about.
type Callback interface {
	OnFixpointReached()
	OnModuleEnter(m ir.Module)
	OnModuleExit(m ir.Module)
	OnFunctionEnter(fn ir.Function)
	OnFunctionExit(fn ir.Function)
	OnBasicBlockEnter(b ir.Block)
	OnBasicBlockExit(b ir.Block)
	OnInstructionEnter(i ir.Instruction)
	OnInstructionExit(i ir.Instruction)
}

// Callbacks is the no-op default, embedded by a caller that only wants a
// subset of Callback's hooks (the same embedding idiom domain.Unsupported
// uses for the domain interface).
type Callbacks struct{}

func (Callbacks) OnFixpointReached()                 {}
func (Callbacks) OnModuleEnter(ir.Module)             {}
func (Callbacks) OnModuleExit(ir.Module)              {}
func (Callbacks) OnFunctionEnter(ir.Function)         {}
func (Callbacks) OnFunctionExit(ir.Function)          {}
func (Callbacks) OnBasicBlockEnter(ir.Block)          {}
func (Callbacks) OnBasicBlockExit(ir.Block)           {}
func (Callbacks) OnInstructionEnter(ir.Instruction)   {}
func (Callbacks) OnInstructionExit(ir.Instruction)    {}

// Iterator is the fixpoint driver (spec.md §4.9): three nested cursors
// (function, basic block, instruction) walk the whole module in a fixed
// round-robin order, re-visiting every block every round until a full
// pass leaves every block's output unchanged. Visitation order doesn't
// have to follow the CFG for the result to be correct — Join is
// commutative and associative and every domain is monotone, so revisiting
// blocks in a fixed order converges to the same fixpoint a worklist would,
// just possibly in more rounds.
type Iterator struct {
	ctx  *Context
	cb   Callback
	fns  []ir.Function

	fi int // index into fns: current function
	bi int // index into the current function's block order
	ii int // index into the current block's non-terminator instructions

	cur     *state.State
	changed bool
	done    bool
}

// NewIterator builds an iterator over ctx's module, ready for Initialize.
func NewIterator(ctx *Context, cb Callback) *Iterator {
	if cb == nil {
		cb = Callbacks{}
	}
	it := &Iterator{ctx: ctx, cb: cb, fns: ctx.Module.Functions()}
	return it
}

// Initialize positions every cursor at the first instruction of the first
// function's entry block and primes its input state (spec.md §6's
// iterator.initialize()). A module with no functions is already at a
// fixpoint.
func (it *Iterator) Initialize() {
	it.fi, it.bi, it.ii = 0, 0, 0
	it.changed = false
	it.done = len(it.fns) == 0
	if it.done {
		it.cb.OnFixpointReached()
		return
	}
	it.cb.OnModuleEnter(it.ctx.Module)
	it.cb.OnFunctionEnter(it.fns[it.fi])
	it.enterBlock()
}

// Done reports whether the module has reached a fixpoint: the most
// recently completed round left every block's recorded output unchanged.
func (it *Iterator) Done() bool { return it.done }

// currentFunctionRecord resolves the function the cursor is presently in.
func (it *Iterator) currentFunctionRecord() *FunctionRecord {
	return it.ctx.Records.Functions[it.fns[it.fi].Ident()]
}

// enterBlock rebuilds the block the cursor just moved onto from its
// predecessors' recorded outputs (spec.md §4.9 step 2), restricted to
// predecessors whose most recently computed successor set still includes
// this block — a predecessor that hasn't run its terminator yet this run
// contributes nothing, and one whose condbr/switch provably didn't select
// this block is correctly excluded rather than polluting it with an
// unreachable join. The function's own recorded input additionally feeds
// the entry block, since call sites merge arguments there (spec.md §4.8
// step 2) rather than through any predecessor block.
func (it *Iterator) enterBlock() {
	fr := it.currentFunctionRecord()
	blk := fr.Order[it.bi]
	br := fr.Blocks[blk.Ident()]

	in := state.New()
	if it.bi == 0 {
		in.Join(fr.Input.Clone())
	}
	for _, pred := range blk.Predecessors() {
		predRec := fr.Blocks[pred.Ident()]
		if predRec == nil || predRec.Output == nil {
			continue
		}
		if _, ok := predRec.LastSuccessors[blk.Ident()]; !ok {
			continue
		}
		in.Join(predRec.Output.Clone())
	}
	br.Input = in
	br.Visited = true
	it.cur = in
	it.ii = 0
	it.cb.OnBasicBlockEnter(blk)
}

// InterpretInstruction advances the cursor by exactly one step (spec.md
// §6's iterator.interpret_instruction()): one non-terminator instruction,
// or — once every non-terminator in the current block has run — the
// block's terminator, which folds the proposed output into the block's
// recorded output (widening against the previous round's output first, if
// one exists) and then advances the block/function/module cursors. Calling
// this after Done reports true is a no-op.
func (it *Iterator) InterpretInstruction() {
	if it.done {
		return
	}
	fr := it.currentFunctionRecord()
	blk := fr.Order[it.bi]
	instrs := blk.Instructions()

	if it.ii < len(instrs) {
		inst := instrs[it.ii]
		it.cb.OnInstructionEnter(inst)
		it.ctx.Step(it.cur, inst)
		it.cb.OnInstructionExit(inst)
		it.ii++
		return
	}

	it.finishBlock(fr, blk)
}

// finishBlock interprets the block's terminator, commits its output, and
// advances the block/function/module cursors (spec.md §4.9 steps 1-3).
func (it *Iterator) finishBlock(fr *FunctionRecord, blk ir.Block) {
	term := blk.Terminator()
	it.cb.OnInstructionEnter(term)
	if ret, ok := term.(*ir.TermRet); ok && ret.Value != nil {
		it.cur.SetReturned(it.ctx.resolve(it.cur, ret.Value))
	}
	succs := it.ctx.successors(it.cur, term)
	it.cb.OnInstructionExit(term)

	br := fr.Blocks[blk.Ident()]
	last := make(map[string]struct{}, len(succs))
	edgeStates := make(map[string]*state.State, len(succs))
	for _, s := range succs {
		last[s.Block.Ident()] = struct{}{}
		edgeStates[s.Block.Ident()] = s.State
	}
	br.LastSuccessors = last
	br.EdgeStates = edgeStates

	if br.Output == nil {
		br.Output = it.cur.Clone()
		it.changed = true
	} else if !it.cur.Equals(br.Output) {
		widenState(it.cur, br.Output)
		br.Output.Join(it.cur)
		it.changed = true
	}
	fr.absorb(br.Output, it.ctx.Records.IsGlobal)

	it.cb.OnBasicBlockExit(blk)
	it.advance(fr)
}

// advance moves the block cursor, and on overflow the function and
// module cursors, entering whatever block the new position lands on
// (spec.md §4.9 steps 2-3). Wrapping all the way around the module without
// any block's output changing means a fixpoint has been reached; otherwise
// the round starts over with changed cleared.
func (it *Iterator) advance(fr *FunctionRecord) {
	it.bi++
	if it.bi < len(fr.Order) {
		it.enterBlock()
		return
	}

	it.cb.OnFunctionExit(it.fns[it.fi])
	it.fi++
	it.bi = 0
	if it.fi < len(it.fns) {
		it.cb.OnFunctionEnter(it.fns[it.fi])
		it.enterBlock()
		return
	}

	it.cb.OnModuleExit(it.ctx.Module)
	it.fi = 0
	if !it.changed {
		it.done = true
		it.cb.OnFixpointReached()
		return
	}
	it.changed = false
	it.cb.OnModuleEnter(it.ctx.Module)
	it.cb.OnFunctionEnter(it.fns[it.fi])
	it.enterBlock()
}

// Run drives the iterator to fixpoint, a convenience for a caller that
// doesn't need to single-step (spec.md §6 still exposes
// interpret_instruction for one that does), then runs the descending
// narrowing pass (spec.md §4.7/E3) once that fixpoint is reached.
func (it *Iterator) Run() {
	for !it.done {
		it.InterpretInstruction()
	}
	it.Narrow()
}

// Narrow runs a bounded descending pass after the widening phase has
// reached a fixpoint (spec.md §4.7's widening step, completed by the
// narrowing E3 demands: `i < 100` must refine the exit value back down
// to exactly [100, 100], not leave it at the widened +∞ the ascending
// phase alone produces). Every block is recomputed from its
// predecessors' branch-condition-narrowed edge states (successors.go's
// narrowedState) and the result is met — never joined — into the
// block's existing recorded output, so precision can only improve on
// what widening already proved sound, never regress past it. Stops once
// a full pass across every function leaves nothing changed, or after
// Env.NarrowingRoundCap rounds, whichever comes first; a variable whose
// own narrowing never converges within the cap (e.g. an induction
// variable's lower bound climbing up from -∞ one step per round) simply
// keeps whatever sound, if looser, bound the last round left it with.
// Calling this before the widening phase reaches Done is a no-op.
func (it *Iterator) Narrow() {
	if !it.done {
		return
	}
	for round := 0; round < it.ctx.Env.NarrowingRoundCap(); round++ {
		changed := false
		for _, fn := range it.fns {
			if it.narrowFunction(it.ctx.Records.Functions[fn.Ident()]) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// narrowFunction runs one narrowing round over every block of fr, in its
// fixed order, reporting whether any block's recorded output shrank.
func (it *Iterator) narrowFunction(fr *FunctionRecord) bool {
	changed := false
	for i, blk := range fr.Order {
		if it.narrowBlock(fr, i, blk) {
			changed = true
		}
	}
	return changed
}

// narrowBlock rebuilds blk's input from its predecessors' most recently
// computed edge states (falling back to Output for a predecessor whose
// terminator doesn't narrow), re-runs the block's instructions against
// that input, records the resulting edge states for its own successors,
// and meets the recomputed output into the block's existing recorded
// output. Never run before the widening phase has given every visited
// block a non-nil Output to meet against.
func (it *Iterator) narrowBlock(fr *FunctionRecord, idx int, blk ir.Block) bool {
	br := fr.Blocks[blk.Ident()]
	if br.Output == nil {
		return false
	}

	in := state.New()
	if idx == 0 {
		in.Join(fr.Input.Clone())
	}
	for _, pred := range blk.Predecessors() {
		predRec := fr.Blocks[pred.Ident()]
		if predRec == nil || predRec.Output == nil {
			continue
		}
		if _, ok := predRec.LastSuccessors[blk.Ident()]; !ok {
			continue
		}
		src := predRec.Output
		if es, ok := predRec.EdgeStates[blk.Ident()]; ok && es != nil {
			src = es
		}
		in.Join(src.Clone())
	}

	cur := in
	for _, inst := range blk.Instructions() {
		it.ctx.Step(cur, inst)
	}
	term := blk.Terminator()
	if ret, ok := term.(*ir.TermRet); ok && ret.Value != nil {
		cur.SetReturned(it.ctx.resolve(cur, ret.Value))
	}
	succs := it.ctx.successors(cur, term)

	last := make(map[string]struct{}, len(succs))
	edgeStates := make(map[string]*state.State, len(succs))
	for _, s := range succs {
		last[s.Block.Ident()] = struct{}{}
		edgeStates[s.Block.Ident()] = s.State
	}
	br.LastSuccessors = last
	br.EdgeStates = edgeStates

	narrowed := br.Output.Clone().Meet(cur)
	if narrowed.Equals(br.Output) {
		return false
	}
	br.Output = narrowed
	fr.absorb(br.Output, it.ctx.Records.IsGlobal)
	return true
}
