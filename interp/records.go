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

// BasicBlockRecord is the fixpoint iterator's bookkeeping for one basic
// block (spec.md §4.9): its recorded input state (rebuilt from
// predecessors every time the cursor enters it) and recorded output state
// (what the last round left after running the terminator).
type BasicBlockRecord struct {
	Block   ir.Block
	Input   *state.State
	Output  *state.State
	Visited bool

	// LastSuccessors is the set of successor block identifiers the most
	// recent run of this block's terminator actually selected (spec.md
	// §4.6's branch/switch notes): entering a block only absorbs a
	// predecessor's output if this block is still among that
	// predecessor's last-computed successors, so a statically-dead arm
	// of a condbr/switch never pollutes its target's input state.
	LastSuccessors map[string]struct{}

	// EdgeStates holds, per successor block identifier, the state that
	// successor should actually be entered with — identical to Output
	// for an unconditional edge, but narrowed when the terminator was a
	// condbr on an icmp (branch-condition narrowing, see
	// interp.(*Context).narrowedState in successors.go). Recorded every
	// round but consumed only by the descending narrowing pass
	// (interp.(*Iterator).Narrow); the ascending widening phase still
	// propagates through Output alone, to keep its termination guarantee.
	EdgeStates map[string]*state.State
}

// FunctionRecord is the per-function bookkeeping: one BasicBlockRecord
// per block, the function-wide input state every call site merges into
// (spec.md §4.8 step 2), and a running summary of every block's output
// restricted to globals/heap/returned-value, used to answer a call
// without waiting for the whole module to reach fixpoint (spec.md §4.8
// step 3 reads this rather than any single block's output, since a
// function can return from more than one block).
type FunctionRecord struct {
	Fn      ir.Function
	Input   *state.State
	Blocks  map[string]*BasicBlockRecord
	Order   []ir.Block
	Summary *state.State
}

// ModuleRecord is the whole module's bookkeeping: one FunctionRecord per
// defined function, plus the set of place identifiers the module
// considers global (used by state.State.JoinGlobal to tell a global
// apart from a local SSA register sharing the same map).
type ModuleRecord struct {
	Module    ir.Module
	Functions map[string]*FunctionRecord
	isGlobal  map[string]struct{}
}

// NewModuleRecord builds empty bookkeeping for every function and block
// in m, ready for the iterator to drive to fixpoint.
func NewModuleRecord(m ir.Module) *ModuleRecord {
	mr := &ModuleRecord{Module: m, Functions: map[string]*FunctionRecord{}, isGlobal: map[string]struct{}{}}
	for _, g := range m.Globals() {
		mr.isGlobal[g.Ident()] = struct{}{}
	}
	for _, fn := range m.Functions() {
		fr := &FunctionRecord{Fn: fn, Input: state.New(), Blocks: map[string]*BasicBlockRecord{}, Summary: state.New()}
		for _, b := range fn.Blocks() {
			fr.Order = append(fr.Order, b)
			fr.Blocks[b.Ident()] = &BasicBlockRecord{Block: b}
		}
		mr.Functions[fn.Ident()] = fr
	}
	return mr
}

// IsGlobal reports whether place id names a module-level global, the
// predicate state.State.JoinGlobal needs to tell globals apart from
// locals sharing the same variables map.
func (mr *ModuleRecord) IsGlobal(id string) bool {
	_, ok := mr.isGlobal[id]
	return ok
}

// absorb folds one block's freshly computed output into its function's
// running summary: globals, heap blocks, and (if this block ended in a
// ret) the returned value. Called by the iterator every time a block's
// output state changes, so a call site never has to wait for the whole
// function to finish this round before seeing its effects (spec.md
// §4.8 step 3).
func (fr *FunctionRecord) absorb(out *state.State, isGlobal func(string) bool) {
	fr.Summary.JoinGlobal(out, isGlobal)
	if r := out.Returned(); r != nil {
		fr.Summary.SetReturned(r)
	}
}
