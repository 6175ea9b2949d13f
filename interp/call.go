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
	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/state"
	"github.com/karelklic/absint/types"
)

// stepCall implements spec.md §4.8's four steps. Resolving the callee
// first (direct call through Callee, or the current contents of
// CalleeValue's FuncTargets for an indirect call) decides which of the
// two exits below applies.
func (c *Context) stepCall(st *state.State, inst *ir.InstCall) {
	if c.missing(st, inst.Args...) {
		return
	}
	fn := c.calleeOf(st, inst)
	if fn == nil {
		// Indirect call whose target set isn't known yet this round: no
		// fact, not top — the same "retry later" rule as a missing
		// operand (spec.md §4.6 step 2).
		return
	}
	if fn.Declaration() {
		c.setCallResult(st, inst, topResult(c.Env, inst.Type()))
		return
	}
	fr := c.Records.Functions[fn.Ident()]
	if fr == nil {
		return
	}

	// Step 1: globals + heap + caller stack (a pointer argument may alias
	// a caller-owned stack block) plus positional arguments.
	calleeIn := state.New()
	calleeIn.JoinGlobal(st, c.Records.IsGlobal)
	calleeIn.JoinStack(st)
	params := fn.Params()
	for i, p := range params {
		if i >= len(inst.Args) {
			break
		}
		calleeIn.SetVariable(p, c.resolve(st, inst.Args[i]))
	}
	if len(inst.Args) > len(params) {
		var variadic []domain.Domain
		for _, a := range inst.Args[len(params):] {
			variadic = append(variadic, c.resolve(st, a))
		}
		calleeIn.SetVariadicArgs(inst.Ident(), variadic)
	}

	// Step 2: merge into the callee's recorded input state.
	fr.Input.Join(calleeIn)

	// Step 3: pull the callee's running summary (globals/heap/returned
	// value accumulated from every block it has executed so far this
	// run) back into the caller. Caller locals are untouched by
	// construction: JoinGlobal only ever looks at globals and heap.
	if r := fr.Summary.Returned(); r != nil {
		c.setCallResult(st, inst, r.Clone())
	}
	st.JoinGlobal(fr.Summary, c.Records.IsGlobal)
}

// calleeOf resolves which function a call instruction invokes: directly
// named (Callee), or the current singleton member of CalleeValue's
// resolved FuncTargets set for an indirect call. A call through an
// imprecise function pointer (more than one candidate, or none yet) is
// treated as not-yet-resolvable; a real driver could instead fan out over
// every candidate, but context-insensitive call-graph soundness (spec.md
// §4.8's closing line) only requires that each candidate eventually gets
// interpreted, not that this one call site sees all of them at once.
func (c *Context) calleeOf(st *state.State, inst *ir.InstCall) ir.Function {
	if inst.Callee != nil {
		return inst.Callee
	}
	v := c.resolve(st, inst.CalleeValue)
	p, ok := v.(*domain.Pointer)
	if !ok || len(p.FuncTargets) != 1 {
		return nil
	}
	for name := range p.FuncTargets {
		return c.funcMap[name]
	}
	return nil
}

func (c *Context) setCallResult(st *state.State, inst *ir.InstCall, v domain.Domain) {
	if _, isVoid := inst.Type().(ir.VoidType); isVoid {
		return
	}
	st.SetVariable(inst, v)
}

// topResult builds ⊤ of t for a declaration/intrinsic call (spec.md §4.8
// step 4: "external functions may do anything").
func topResult(env *domain.Environment, t ir.Type) domain.Domain {
	if _, isVoid := t.(ir.VoidType); isVoid {
		return nil
	}
	v := types.Bottom(env, t)
	v.SetTop()
	return v
}
