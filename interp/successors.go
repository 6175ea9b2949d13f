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
	"math/big"

	"github.com/karelklic/absint/ints"
	"github.com/karelklic/absint/ir"
	"github.com/karelklic/absint/product"
	"github.com/karelklic/absint/state"
	"github.com/karelklic/absint/types"
)

// edge is one outgoing control-flow edge of a terminator: which block it
// leads to, and the state that block should see. A conditional branch
// whose condition is an icmp narrows the compared operand along each
// edge (spec.md §4.6: the interval domain, combined with the comparison,
// must refine the exit value) instead of handing every successor the
// terminator's unrestricted input state.
type edge struct {
	Block ir.Block
	State *state.State
}

// successors implements spec.md §4.6's "terminators other than ret: no-op
// at the state level (successors see this block's output)", refined by
// branch-condition narrowing: a conditional branch or switch whose
// condition resolves to a known value prunes the statically-unreachable
// arm, and a condbr on an icmp additionally restricts the compared
// operand's range along each taken edge rather than handing both
// successors an identical, unrefined state.
func (c *Context) successors(st *state.State, term ir.Instruction) []edge {
	switch t := term.(type) {
	case *ir.TermBr:
		return []edge{{Block: t.Target, State: st.Clone()}}
	case *ir.TermCondBr:
		trueCase, falseCase, bottom := boolOf(c.resolve(st, t.Cond))
		if bottom {
			return nil
		}
		var out []edge
		if trueCase {
			out = append(out, edge{Block: t.TrueTarget, State: c.narrowedState(st, t.Cond, true).Clone()})
		}
		if falseCase {
			out = append(out, edge{Block: t.FalseTarget, State: c.narrowedState(st, t.Cond, false).Clone()})
		}
		return out
	case *ir.TermSwitch:
		return c.switchSuccessors(st, t)
	case *ir.TermRet, *ir.TermUnreachable:
		return nil
	default:
		return nil
	}
}

func (c *Context) switchSuccessors(st *state.State, t *ir.TermSwitch) []edge {
	cond := c.resolve(st, t.Cond)
	if cond.IsBottom() {
		return nil
	}
	out := []edge{{Block: t.Default, State: st.Clone()}}
	for _, cs := range t.Cases {
		caseVal := types.Materialize(c.Env, c.TD, cs.Value)
		eqResult := cond.ICmp(cond, caseVal, ir.IntEQ)
		trueCase, _, bottom := boolOf(eqResult)
		if !bottom && trueCase {
			out = append(out, edge{Block: cs.Target, State: st.Clone()})
		}
	}
	return out
}

// narrowedState restricts cond's operands to whatever the taken edge
// proves about them, when cond is an icmp (spec.md's E3: "the interval
// domain, combined with the comparison, must refine the exit value").
// takenTrue false evaluates cond's negation instead, since the false
// edge is exactly the case where the comparison didn't hold. Returns st
// itself, unchanged, when neither operand can be tightened (cond isn't
// an icmp, or neither side is a bound *product.Product).
func (c *Context) narrowedState(st *state.State, cond ir.Value, takenTrue bool) *state.State {
	cmp, ok := cond.(*ir.InstICmp)
	if !ok {
		return st
	}
	pred := cmp.Pred
	if !takenTrue {
		pred = negatePredicate(pred)
	}
	out := st
	if narrowed, changed := c.restrictOperand(out, cmp.X, pred, cmp.Y); changed {
		out = narrowed
	}
	if narrowed, changed := c.restrictOperand(out, cmp.Y, swapPredicate(pred), cmp.X); changed {
		out = narrowed
	}
	return out
}

// restrictOperand narrows place's current value to whatever "place pred
// other" proves, given other's current bound. It reports changed=false
// (and returns st unchanged) whenever place is a constant, either side
// isn't resolvable to a *product.Product, other's relevant bound is ⊤, or
// pred carries no usable bound (e.g. IntNE).
func (c *Context) restrictOperand(st *state.State, place ir.Value, pred ir.IntPredicate, other ir.Value) (*state.State, bool) {
	if _, isConst := place.(ir.Constant); isConst {
		return st, false
	}
	p, ok := c.resolve(st, place).(*product.Product)
	if !ok {
		return st, false
	}
	op, ok := c.resolve(st, other).(*product.Product)
	if !ok {
		return st, false
	}
	sLo, sHi, uLo, uHi, sTop, uTop, bottom := op.Range.Bounds()
	if bottom {
		return st, false
	}
	signed := pred.Signed()
	otherLo, otherHi, top := uLo, uHi, uTop
	if signed {
		otherLo, otherHi, top = sLo, sHi, sTop
	}
	if top {
		return st, false
	}
	lo, hi, ok := boundsForPredicate(pred, p.Width, otherLo, otherHi)
	if !ok {
		return st, false
	}

	out := st.Clone()
	v, ok := out.FindVariable(place)
	if !ok {
		return st, false
	}
	newP, ok := v.(*product.Product)
	if !ok {
		return st, false
	}
	newP.RestrictRange(signed, lo, hi)
	out.SetVariable(place, newP)
	return out, true
}

// boundsForPredicate returns the [lo, hi] a value must lie in for "value
// pred otherLo..otherHi" to hold, under whichever interpretation pred
// compares in. ok is false for predicates that don't bound a range
// (IntNE: "not equal to a single point" isn't expressible as one).
func boundsForPredicate(pred ir.IntPredicate, width uint, otherLo, otherHi *big.Int) (lo, hi *big.Int, ok bool) {
	min, max := ints.SignedMin(width), ints.SignedMax(width)
	if !pred.Signed() {
		min, max = big.NewInt(0), ints.UnsignedMax(width)
	}
	one := big.NewInt(1)
	switch pred {
	case ir.IntSLT, ir.IntULT:
		return min, new(big.Int).Sub(otherHi, one), true
	case ir.IntSLE, ir.IntULE:
		return min, new(big.Int).Set(otherHi), true
	case ir.IntSGT, ir.IntUGT:
		return new(big.Int).Add(otherLo, one), max, true
	case ir.IntSGE, ir.IntUGE:
		return new(big.Int).Set(otherLo), max, true
	case ir.IntEQ:
		return new(big.Int).Set(otherLo), new(big.Int).Set(otherHi), true
	default:
		return nil, nil, false
	}
}

// negatePredicate returns the predicate that holds exactly when pred
// doesn't — the false edge of a condbr on pred is the true edge of
// negatePredicate(pred).
func negatePredicate(pred ir.IntPredicate) ir.IntPredicate {
	switch pred {
	case ir.IntEQ:
		return ir.IntNE
	case ir.IntNE:
		return ir.IntEQ
	case ir.IntUGT:
		return ir.IntULE
	case ir.IntUGE:
		return ir.IntULT
	case ir.IntULT:
		return ir.IntUGE
	case ir.IntULE:
		return ir.IntUGT
	case ir.IntSGT:
		return ir.IntSLE
	case ir.IntSGE:
		return ir.IntSLT
	case ir.IntSLT:
		return ir.IntSGE
	case ir.IntSLE:
		return ir.IntSGT
	default:
		return pred
	}
}

// swapPredicate returns the predicate that holds for (y, x) exactly when
// pred holds for (x, y) — used to restrict an icmp's right-hand operand
// from the same comparison that just restricted its left-hand one.
func swapPredicate(pred ir.IntPredicate) ir.IntPredicate {
	switch pred {
	case ir.IntUGT:
		return ir.IntULT
	case ir.IntUGE:
		return ir.IntULE
	case ir.IntULT:
		return ir.IntUGT
	case ir.IntULE:
		return ir.IntUGE
	case ir.IntSGT:
		return ir.IntSLT
	case ir.IntSGE:
		return ir.IntSLE
	case ir.IntSLT:
		return ir.IntSGT
	case ir.IntSLE:
		return ir.IntSGE
	default:
		return pred
	}
}
