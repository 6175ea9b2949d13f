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

package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// BlockID identifies a memory block (stack frame slot or heap allocation)
// that a Pointer can target. Blocks get their identity from a
// deterministic UUIDv5 derived from the allocating instruction's position
// (package state), so two interpretations of the same alloca site compare
// equal without a shared counter.
type BlockID = uuid.UUID

// Pointer is the pointer domain (spec.md §3.3, §4.1 item 10): the set of
// blocks a pointer might target, each with its own byte-offset domain,
// a numeric-offset domain for pointer-as-integer values (inttoptr/
// ptrtoint round trips, null, sentinel addresses like 0xBAADF00D), and
// the set of functions it might target (for function pointers / indirect
// calls). Load and Store against the pointed-to memory are structural
// operations over package state's block map, not something this domain
// can do alone — see loadThroughPointer/storeThroughPointer in package
// interp.
type Pointer struct {
	Unsupported
	Env *Environment

	bottom bool
	top    bool

	// Targets maps each block this pointer might point into to an offset
	// domain (an Interval over byte offsets) describing where within
	// that block.
	Targets map[BlockID]Domain

	// NumericOffset is the pointer's value when read as a plain integer,
	// nil if this pointer has never been observed as an integer. Set by
	// NewPointerNumeric (package types uses it for constants); package
	// interp shifts it on getelementptr and returns it for ptrtoint. Kept
	// alongside Targets
	// rather than instead of it, since a single pointer value can carry
	// both a block target and a numeric interpretation simultaneously.
	NumericOffset Domain

	// FuncTargets is the set of functions this pointer might call through,
	// keyed by the function's identifier (ir.Function.Ident()).
	FuncTargets map[string]struct{}
}

// NewPointer returns ⊥.
func NewPointer(env *Environment) *Pointer {
	return &Pointer{Unsupported: Unsupported{Op: "Pointer"}, Env: env, bottom: true}
}

// NewPointerTarget returns a pointer targeting exactly one block at the
// given byte offset.
func NewPointerTarget(env *Environment, block BlockID, offset Domain) *Pointer {
	p := NewPointer(env)
	p.bottom = false
	p.Targets = map[BlockID]Domain{block: offset}
	return p
}

// NewPointerFunc returns a pointer targeting exactly one function.
func NewPointerFunc(env *Environment, fn string) *Pointer {
	p := NewPointer(env)
	p.bottom = false
	p.FuncTargets = map[string]struct{}{fn: {}}
	return p
}

// NewPointerNumeric returns a pointer carrying only a numeric-offset
// interpretation, with no block or function targets. types.Materialize
// uses it for the null pointer; an inttoptr cast does not build one
// (package interp yields top for it).
func NewPointerNumeric(env *Environment, offset Domain) *Pointer {
	p := NewPointer(env)
	p.bottom = false
	p.NumericOffset = offset
	return p
}

func (p *Pointer) mustSameKind(other Domain) *Pointer {
	o, ok := other.(*Pointer)
	if !ok {
		panic(fmt.Sprintf("Pointer: type mismatch with %T", other))
	}
	return o
}

func (p *Pointer) Clone() Domain {
	c := &Pointer{Unsupported: p.Unsupported, Env: p.Env, bottom: p.bottom, top: p.top}
	if p.Targets != nil {
		c.Targets = make(map[BlockID]Domain, len(p.Targets))
		for b, off := range p.Targets {
			c.Targets[b] = off.Clone()
		}
	}
	if p.NumericOffset != nil {
		c.NumericOffset = p.NumericOffset.Clone()
	}
	if p.FuncTargets != nil {
		c.FuncTargets = make(map[string]struct{}, len(p.FuncTargets))
		for f := range p.FuncTargets {
			c.FuncTargets[f] = struct{}{}
		}
	}
	return c
}

func (p *Pointer) IsBottom() bool {
	return p.bottom && !p.top
}
func (p *Pointer) SetBottom() {
	p.bottom, p.top = true, false
	p.Targets, p.FuncTargets, p.NumericOffset = nil, nil, nil
}
func (p *Pointer) IsTop() bool { return p.top }
func (p *Pointer) SetTop() {
	p.bottom, p.top = false, true
	p.Targets, p.FuncTargets, p.NumericOffset = nil, nil, nil
}
func (p *Pointer) SetZero() {
	// A null pointer: neither bottom, top, nor targeting anything.
	p.bottom, p.top = false, false
	p.Targets, p.FuncTargets, p.NumericOffset = map[BlockID]Domain{}, map[string]struct{}{}, nil
}

// SingleTarget reports whether this pointer is known to target exactly
// one block, the block-level half of the condition spec.md §4.1 item 10
// requires for a Store to be a strong (overwriting) update rather than a
// weak (joining) one. The offset within that block may still be a range;
// the caller checks separately that it is a single byte offset. A pointer that also carries a numeric-offset
// interpretation is never a single target: it might be read back as a
// raw address instead of dereferenced through Targets.
func (p *Pointer) SingleTarget() bool {
	return !p.bottom && !p.top && len(p.Targets) == 1 && len(p.FuncTargets) == 0 && p.NumericOffset == nil
}

func (p *Pointer) Equals(other Domain) bool {
	o := p.mustSameKind(other)
	if p.bottom != o.bottom || p.top != o.top {
		return false
	}
	if p.top || p.bottom {
		return true
	}
	if len(p.Targets) != len(o.Targets) || len(p.FuncTargets) != len(o.FuncTargets) {
		return false
	}
	if (p.NumericOffset == nil) != (o.NumericOffset == nil) {
		return false
	}
	if p.NumericOffset != nil && !p.NumericOffset.Equals(o.NumericOffset) {
		return false
	}
	for b, off := range p.Targets {
		oo, ok := o.Targets[b]
		if !ok || !off.Equals(oo) {
			return false
		}
	}
	for f := range p.FuncTargets {
		if _, ok := o.FuncTargets[f]; !ok {
			return false
		}
	}
	return true
}

func (p *Pointer) LessOrEqual(other Domain) bool {
	o := p.mustSameKind(other)
	if p.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	if o.top {
		return true
	}
	if p.top {
		return false
	}
	if p.NumericOffset != nil {
		if o.NumericOffset == nil || !p.NumericOffset.LessOrEqual(o.NumericOffset) {
			return false
		}
	}
	for b, off := range p.Targets {
		oo, ok := o.Targets[b]
		if !ok || !off.LessOrEqual(oo) {
			return false
		}
	}
	for f := range p.FuncTargets {
		if _, ok := o.FuncTargets[f]; !ok {
			return false
		}
	}
	return true
}

func (p *Pointer) Accuracy() float32 {
	if p.top {
		return 0
	}
	if p.bottom {
		return 1
	}
	n := len(p.Targets) + len(p.FuncTargets)
	if p.NumericOffset == nil {
		if n <= 1 {
			return 1
		}
		return 0.5
	}
	if n == 0 {
		return p.NumericOffset.Accuracy()
	}
	return p.NumericOffset.Accuracy() * 0.5
}

func (p *Pointer) MemoryUsage() uintptr {
	u := uintptr(24 + 24*len(p.Targets) + 16*len(p.FuncTargets))
	if p.NumericOffset != nil {
		u += p.NumericOffset.MemoryUsage()
	}
	return u
}

func (p *Pointer) String() string {
	if p.bottom {
		return "Pointer bottom"
	}
	if p.top {
		return "Pointer top"
	}
	var parts []string
	ids := make([]string, 0, len(p.Targets))
	for b := range p.Targets {
		ids = append(ids, b.String())
	}
	sort.Strings(ids)
	for _, id := range ids {
		parts = append(parts, id)
	}
	fns := make([]string, 0, len(p.FuncTargets))
	for f := range p.FuncTargets {
		fns = append(fns, f)
	}
	sort.Strings(fns)
	parts = append(parts, fns...)
	if p.NumericOffset != nil {
		parts = append(parts, "int:"+p.NumericOffset.String())
	}
	if len(parts) == 0 {
		return "Pointer null"
	}
	return "Pointer {" + strings.Join(parts, ", ") + "}"
}

func (p *Pointer) Join(other Domain) Domain {
	o := p.mustSameKind(other)
	if o.bottom {
		return p
	}
	if p.bottom {
		*p = *o.Clone().(*Pointer)
		return p
	}
	if p.top || o.top {
		p.SetTop()
		return p
	}
	for b, off := range o.Targets {
		if existing, ok := p.Targets[b]; ok {
			p.Targets[b] = existing.Join(off)
		} else {
			if p.Targets == nil {
				p.Targets = map[BlockID]Domain{}
			}
			p.Targets[b] = off.Clone()
		}
	}
	for f := range o.FuncTargets {
		if p.FuncTargets == nil {
			p.FuncTargets = map[string]struct{}{}
		}
		p.FuncTargets[f] = struct{}{}
	}
	switch {
	case p.NumericOffset == nil:
		if o.NumericOffset != nil {
			p.NumericOffset = o.NumericOffset.Clone()
		}
	case o.NumericOffset != nil:
		p.NumericOffset.Join(o.NumericOffset)
	}
	return p
}

// Meet intersects block-targets key-wise (a key present on only one side
// cannot be a concrete pointee of both, so it is dropped — spec.md §3.3),
// meets numeric offsets, and intersects function targets.
func (p *Pointer) Meet(other Domain) Domain {
	o := p.mustSameKind(other)
	if p.bottom || o.bottom {
		p.SetBottom()
		return p
	}
	if o.top {
		return p
	}
	if p.top {
		*p = *o.Clone().(*Pointer)
		return p
	}
	for b, off := range p.Targets {
		oo, ok := o.Targets[b]
		if !ok {
			delete(p.Targets, b)
			continue
		}
		p.Targets[b] = off.Meet(oo)
	}
	for f := range p.FuncTargets {
		if _, ok := o.FuncTargets[f]; !ok {
			delete(p.FuncTargets, f)
		}
	}
	switch {
	case p.NumericOffset == nil:
		// nothing to meet
	case o.NumericOffset == nil:
		p.NumericOffset = nil
	default:
		p.NumericOffset.Meet(o.NumericOffset)
	}
	return p
}
