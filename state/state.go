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

package state

import (
	"sort"

	"github.com/google/uuid"
	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
)

// blockNamespace seeds the deterministic UUIDv5 every memory block's
// identity is derived from, so that two interpretations of the same
// allocation site (e.g. re-running a function to fixpoint) produce the
// same domain.BlockID without any shared counter.
var blockNamespace = uuid.MustParse("6f9c1b2a-6e2b-4f0a-9e5a-9a2f6c9e0b3d")

// BlockIDFor derives a memory block's identity from its allocating
// instruction's place (spec.md §3.2, §3.3's pointer.go comment): a
// deterministic UUIDv5 of the place's identifier, namespaced so it never
// collides with a UUID generated elsewhere.
func BlockIDFor(p ir.Place) domain.BlockID {
	return uuid.NewSHA1(blockNamespace, []byte(p.Ident()))
}

// VariadicArg is one call-site's ordered list of argument values passed
// through a variadic parameter (spec.md §3.4's variadic-args map).
type VariadicArg struct {
	CallSite string
	Args     []domain.Domain
}

// State is the memory state the fixpoint iterator carries between
// instructions (spec.md §3.4): SSA register values and touched globals,
// memory blocks, the function's accumulated return value, and variadic
// call arguments. Blocks are keyed by domain.BlockID (not by the raw IR
// place) so that a Pointer's Targets map — which only ever sees BlockIDs
// — can look a block up directly without State re-deriving the place.
type State struct {
	variables map[string]domain.Domain
	blocks    map[domain.BlockID]*Block
	returned  domain.Domain // nil until a ret is interpreted
	variadic  map[string]*VariadicArg
}

// New returns an empty state.
func New() *State {
	return &State{
		variables: map[string]domain.Domain{},
		blocks:    map[domain.BlockID]*Block{},
		variadic:  map[string]*VariadicArg{},
	}
}

// Clone returns an independent State: variables and the returned-value
// domain are deep-copied (they are owned outright, never shared), while
// blocks are shared via copy-on-write (spec.md §4.3) — Clone only bumps
// refcounts, the expensive clone happens lazily on first mutation.
func (s *State) Clone() *State {
	c := &State{
		variables: make(map[string]domain.Domain, len(s.variables)),
		blocks:    make(map[domain.BlockID]*Block, len(s.blocks)),
		variadic:  make(map[string]*VariadicArg, len(s.variadic)),
	}
	for k, v := range s.variables {
		c.variables[k] = v.Clone()
	}
	for k, b := range s.blocks {
		c.blocks[k] = b.Share()
	}
	if s.returned != nil {
		c.returned = s.returned.Clone()
	}
	for k, va := range s.variadic {
		args := make([]domain.Domain, len(va.Args))
		for i, a := range va.Args {
			args[i] = a.Clone()
		}
		c.variadic[k] = &VariadicArg{CallSite: va.CallSite, Args: args}
	}
	return c
}

// FindVariable looks up a place's current value; ok is false if the
// transfer function that would have defined it hasn't run yet this
// round (spec.md §4.6 step 2 — not an error, just "not yet known").
func (s *State) FindVariable(p ir.Place) (domain.Domain, bool) {
	v, ok := s.variables[p.Ident()]
	return v, ok
}

// SetVariable records p's current value, overwriting any prior binding
// (SSA values are write-once within a round, but the fixpoint iterator
// revisits instructions across rounds, so repeated writes do happen).
func (s *State) SetVariable(p ir.Place, v domain.Domain) {
	s.variables[p.Ident()] = v
}

// FindBlock looks up a memory block by its allocation site.
func (s *State) FindBlock(p ir.Place) (*Block, bool) {
	b, ok := s.blocks[BlockIDFor(p)]
	return b, ok
}

// FindBlockByID looks up a memory block directly by its derived identity,
// for callers (package interp, walking a Pointer's Targets map) that
// already hold a domain.BlockID rather than the place it was derived
// from.
func (s *State) FindBlockByID(id domain.BlockID) (*Block, bool) {
	b, ok := s.blocks[id]
	return b, ok
}

// NewStackBlock materializes a fresh stack block for an alloca at the
// given place, storing it in this state under its derived BlockID.
func (s *State) NewStackBlock(p ir.Place, contents domain.Domain) *Block {
	b := NewBlock(BlockIDFor(p), Stack, contents)
	s.blocks[b.ID()] = b
	return b
}

// NewHeapBlock is NewStackBlock's Heap-tagged counterpart, used for
// allocation intrinsics the front end recognizes (e.g. malloc).
func (s *State) NewHeapBlock(p ir.Place, contents domain.Domain) *Block {
	b := NewBlock(BlockIDFor(p), Heap, contents)
	s.blocks[b.ID()] = b
	return b
}

// SetBlock installs b, replacing whatever was stored under the same
// BlockID. Used when a join or merge produces a new block value that
// needs to be written back.
func (s *State) SetBlock(b *Block) { s.blocks[b.ID()] = b }

// Blocks returns every tracked block, sorted by BlockID string for
// deterministic iteration (display, join_global/join_stack below).
func (s *State) Blocks() []*Block {
	out := make([]*Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().String() < out[j].ID().String() })
	return out
}

// Variables returns every tracked place identifier and its value. It is
// the state's own map, unordered and not copied.
func (s *State) Variables() map[string]domain.Domain { return s.variables }

// Returned is the join of every value returned along a ret so far, or
// nil if no ret has been interpreted yet.
func (s *State) Returned() domain.Domain { return s.returned }

// SetReturned joins v into the returned-value slot.
func (s *State) SetReturned(v domain.Domain) {
	if s.returned == nil {
		s.returned = v.Clone()
		return
	}
	s.returned = s.returned.Join(v)
}

// VariadicArgs returns the argument list recorded for a call site, or
// nil if none was recorded.
func (s *State) VariadicArgs(callSite string) []domain.Domain {
	va, ok := s.variadic[callSite]
	if !ok {
		return nil
	}
	return va.Args
}

// SetVariadicArgs records the ordered argument list passed to a variadic
// call at the given call site.
func (s *State) SetVariadicArgs(callSite string, args []domain.Domain) {
	s.variadic[callSite] = &VariadicArg{CallSite: callSite, Args: args}
}

// Equals is structural equality of all four parts (spec.md §3.4): same
// keys, pointwise-equal values.
func (s *State) Equals(o *State) bool {
	if len(s.variables) != len(o.variables) || len(s.blocks) != len(o.blocks) || len(s.variadic) != len(o.variadic) {
		return false
	}
	if (s.returned == nil) != (o.returned == nil) {
		return false
	}
	if s.returned != nil && !s.returned.Equals(o.returned) {
		return false
	}
	for k, v := range s.variables {
		ov, ok := o.variables[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	for k, b := range s.blocks {
		ob, ok := o.blocks[k]
		if !ok || !b.Equals(ob) {
			return false
		}
	}
	for k, va := range s.variadic {
		ova, ok := o.variadic[k]
		if !ok || len(va.Args) != len(ova.Args) {
			return false
		}
		for i, a := range va.Args {
			if !a.Equals(ova.Args[i]) {
				return false
			}
		}
	}
	return true
}

// Join is pointwise: union of keys, join on values present on both
// sides (spec.md §3.4).
func (s *State) Join(o *State) *State {
	for k, ov := range o.variables {
		if v, ok := s.variables[k]; ok {
			s.variables[k] = v.Join(ov)
		} else {
			s.variables[k] = ov.Clone()
		}
	}
	for k, ob := range o.blocks {
		if b, ok := s.blocks[k]; ok {
			b.Join(ob)
		} else {
			s.blocks[k] = ob.Share()
		}
	}
	if o.returned != nil {
		s.SetReturned(o.returned)
	}
	for k, ova := range o.variadic {
		if _, ok := s.variadic[k]; !ok {
			args := make([]domain.Domain, len(ova.Args))
			for i, a := range ova.Args {
				args[i] = a.Clone()
			}
			s.variadic[k] = &VariadicArg{CallSite: ova.CallSite, Args: args}
		}
	}
	return s
}

// Meet is pointwise: intersect values present on both sides, keep s's own
// value for a key o doesn't carry (an absent variable is "not yet
// computed on that side", not ⊤, so there is nothing to intersect with).
// Used by the fixpoint iterator's narrowing pass (interp.(*Iterator).Narrow,
// spec.md §4.7): it can only ever sharpen a block's already-widened output,
// never grow it, which is exactly what Meet guarantees.
func (s *State) Meet(o *State) *State {
	for k, ov := range o.variables {
		if v, ok := s.variables[k]; ok {
			s.variables[k] = v.Meet(ov)
		}
	}
	return s
}

// mergeFiltered joins the subset of o selected by keepVar/keepBlock into
// s in place; the complement of o is left untouched.
func (s *State) mergeFiltered(o *State, keepVar func(string) bool, keepBlock func(*Block) bool) {
	for k, ov := range o.variables {
		if !keepVar(k) {
			continue
		}
		if v, ok := s.variables[k]; ok {
			s.variables[k] = v.Join(ov)
		} else {
			s.variables[k] = ov.Clone()
		}
	}
	for k, ob := range o.blocks {
		if !keepBlock(ob) {
			continue
		}
		if b, ok := s.blocks[k]; ok {
			b.Join(ob)
		} else {
			s.blocks[k] = ob.Share()
		}
	}
}

// JoinGlobal is the derived join spec.md §3.4 calls join_global: merges
// only o's globals and heap blocks into s, used by a caller to absorb a
// callee's effect on shared state after a call (spec.md §4.8 step 3). A
// variable in o is treated as global if isGlobal reports true for its
// identifier.
func (s *State) JoinGlobal(o *State, isGlobal func(string) bool) {
	s.mergeFiltered(o, isGlobal, func(b *Block) bool { return b.Kind() == Heap })
}

// JoinStack is the derived join spec.md §3.4 calls join_stack: merges
// only o's stack blocks into s, used to import caller locals into a
// callee's input state (spec.md §4.8 step 1).
func (s *State) JoinStack(o *State) {
	s.mergeFiltered(o, func(string) bool { return false }, func(b *Block) bool { return b.Kind() == Stack })
}
