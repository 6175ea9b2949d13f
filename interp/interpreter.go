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
	"fmt"
	"sort"
	"strings"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/state"
)

// Interpreter is the external surface spec.md §6 names: build one per
// module, Initialize it, then either single-step via InterpretInstruction
// or Run it straight to fixpoint. Everything it does is a thin wrapper
// around a Context and an Iterator; it exists so a caller never has to
// construct either by hand.
type Interpreter struct {
	ctx *Context
	it  *Iterator
}

// New builds an Interpreter for module m under environment env and target
// data td. Call Initialize before interpreting anything.
func New(env *domain.Environment, td ir.TargetData, m ir.Module) *Interpreter {
	return &Interpreter{ctx: NewContext(env, td, m)}
}

// Initialize positions the iterator at the first instruction of the first
// function, as spec.md §6's iterator.initialize() describes. Safe to call
// again to restart the same module from scratch.
func (in *Interpreter) Initialize() {
	var cb Callback
	if in.it != nil {
		cb = in.it.cb
	}
	in.it = NewIterator(in.ctx, cb)
	in.it.Initialize()
}

// SetCallback installs cb to receive cursor-movement notifications
// (spec.md §6's iterator.set_callback()). May be called before or after
// Initialize.
func (in *Interpreter) SetCallback(cb Callback) {
	if in.it == nil {
		in.it = NewIterator(in.ctx, cb)
		return
	}
	in.it.cb = cb
}

// InterpretInstruction advances by exactly one instruction or terminator.
func (in *Interpreter) InterpretInstruction() { in.it.InterpretInstruction() }

// Run drives the module to fixpoint.
func (in *Interpreter) Run() { in.it.Run() }

// Done reports whether the module has reached a fixpoint.
func (in *Interpreter) Done() bool { return in.it.Done() }

// State returns the state the cursor currently holds, for a caller (often
// a Callback) that wants to inspect in-flight values rather than wait for
// a block's recorded output.
func (in *Interpreter) State() *state.State {
	if in.it == nil {
		return nil
	}
	return in.it.cur
}

// FunctionSummary returns the accumulated input/output bookkeeping for a
// named function, or nil if the module has none by that name.
func (in *Interpreter) FunctionSummary(name string) *FunctionRecord {
	return in.ctx.Records.Functions[name]
}

// ToString renders every function's per-block recorded output as a
// human-readable dump: a diagnostic aid (spec.md §6), not a serialization
// format.
func (in *Interpreter) ToString() string {
	var b strings.Builder
	for _, fn := range in.ctx.Module.Functions() {
		fr := in.ctx.Records.Functions[fn.Ident()]
		fmt.Fprintf(&b, "function %s:\n", fn.Ident())
		if r := fr.Summary.Returned(); r != nil {
			fmt.Fprintf(&b, "  returns %s\n", r)
		}
		for _, blk := range fr.Order {
			br := fr.Blocks[blk.Ident()]
			fmt.Fprintf(&b, "  %s:\n", blk.Ident())
			if br.Output == nil {
				fmt.Fprintf(&b, "    (not visited)\n")
				continue
			}
			vars := br.Output.Variables()
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(&b, "    %s = %s\n", name, vars[name])
			}
		}
	}
	return b.String()
}
