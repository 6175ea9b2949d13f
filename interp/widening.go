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
	"github.com/karelklic/absint/state"
)

// widenState applies the default widening operator (spec.md §4.7,
// numerical-infinity widening) to proposed in place, using recorded as
// the previous round's output: every value proposed carries that also
// existed in recorded gets widened via domain.Widenable.WidenFrom where
// the concrete domain implements it, recursing through the few aggregate
// shapes (Struct fields, a Pointer's per-target offsets and numeric
// offset) whose members can themselves be Widenable. Widening is the
// fixpoint iterator's only defense against an unbounded lattice height
// (spec.md §5's "widening step at back-edges"); domains with finite
// height (Bitfield, StringPrefix/Suffix, StringTrie) don't implement
// Widenable and are left untouched; their own Join already reaches a
// fixpoint in bounded steps.
func widenState(proposed, recorded *state.State) {
	for id, v := range proposed.Variables() {
		prevPlace := placeByID(id)
		if pv, ok := recorded.FindVariable(prevPlace); ok {
			widenValue(v, pv)
		}
	}
	for _, blk := range proposed.Blocks() {
		if prevBlk, ok := recorded.FindBlockByID(blk.ID()); ok {
			widenValue(blk.Contents(), prevBlk.Contents())
		}
	}
}

// placeByID adapts a bare identifier string back into an ir.Place, since
// state.State's lookup methods take a Place but Variables() only hands
// back the identifier it was stored under.
type placeByID string

func (p placeByID) Ident() string { return string(p) }

func widenValue(proposed, previous domain.Domain) {
	if w, ok := proposed.(domain.Widenable); ok {
		w.WidenFrom(previous)
		return
	}
	switch p := proposed.(type) {
	case *domain.Struct:
		prev, ok := previous.(*domain.Struct)
		if !ok || len(prev.Fields) != len(p.Fields) {
			return
		}
		for i := range p.Fields {
			widenValue(p.Fields[i], prev.Fields[i])
		}
	case *domain.Pointer:
		prev, ok := previous.(*domain.Pointer)
		if !ok {
			return
		}
		if p.NumericOffset != nil && prev.NumericOffset != nil {
			widenValue(p.NumericOffset, prev.NumericOffset)
		}
		for id, off := range p.Targets {
			if prevOff, ok := prev.Targets[id]; ok {
				widenValue(off, prevOff)
			}
		}
	}
}
