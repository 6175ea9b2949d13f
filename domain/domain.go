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

// Package domain implements the abstract-domain lattice (spec.md §4.1):
// one Go type per concrete domain, all satisfying the Domain interface.
//
// Every concrete domain embeds Unsupported, which panics for any operation
// that domain does not implement, and then shadows just the methods that
// make sense for it. This is the Go rendering of the "closed sum type plus
// shared trait" re-architecture spec.md §9 calls for: cross-member dispatch
// in the reduced product (package product) is a plain type switch, and an
// operation reaching an embedded Unsupported stub is a bug to fix, not a
// runtime possibility for supported IR (spec.md §9's central todo list).
package domain

import (
	"fmt"

	"github.com/karelklic/absint/ir"
)

// Environment is shared, read-only context every domain value carries a
// reference to: the IR target data (for sizes) and the slot tracker used
// only for display. spec.md §3.1.
type Environment struct {
	TargetData ir.TargetData
	Slots      ir.SlotTracker

	// SetThreshold bounds the set-of-constants domain (spec.md §4.1 item 1);
	// 0 means "use the spec's documented default of 20" (see config.Tunables).
	SetThreshold int
	// TrieNodeCap bounds the string-trie domain (spec.md §4.1 item 9).
	TrieNodeCap int
	// CollaborationRounds bounds the reduced product's cross-refinement
	// loop (package product, spec.md §4.2); 0 means "use the default of 8".
	CollaborationRounds int
	// NarrowingRounds bounds the fixpoint iterator's descending narrowing
	// pass (interp.(*Iterator).Narrow, spec.md §4.7/E3); 0 means "use the
	// default of 8".
	NarrowingRounds int
}

func (e *Environment) collaborationRounds() int {
	if e.CollaborationRounds <= 0 {
		return 8
	}
	return e.CollaborationRounds
}

// CollaborationRoundCap exposes the same cap to package product, which
// drives the reduced product's cross-refinement loop from outside this
// package.
func (e *Environment) CollaborationRoundCap() int { return e.collaborationRounds() }

func (e *Environment) narrowingRounds() int {
	if e.NarrowingRounds <= 0 {
		return 8
	}
	return e.NarrowingRounds
}

// NarrowingRoundCap exposes the same cap to package interp, which drives
// the post-widening narrowing pass from outside this package.
func (e *Environment) NarrowingRoundCap() int { return e.narrowingRounds() }

func (e *Environment) setThreshold() int {
	if e.SetThreshold <= 0 {
		return 20
	}
	return e.SetThreshold
}

func (e *Environment) trieNodeCap() int {
	if e.TrieNodeCap <= 0 {
		return 64
	}
	return e.TrieNodeCap
}

// Domain is the full per-value abstract-interpretation contract, spec.md §4.1.
type Domain interface {
	fmt.Stringer

	Clone() Domain
	Equals(other Domain) bool
	LessOrEqual(other Domain) bool
	IsBottom() bool
	SetBottom()
	IsTop() bool
	SetTop()
	Accuracy() float32
	MemoryUsage() uintptr
	SetZero()

	Join(other Domain) Domain
	Meet(other Domain) Domain

	Add(a, b Domain) Domain
	Sub(a, b Domain) Domain
	Mul(a, b Domain) Domain
	UDiv(a, b Domain) Domain
	SDiv(a, b Domain) Domain
	URem(a, b Domain) Domain
	SRem(a, b Domain) Domain
	Shl(a, b Domain) Domain
	LShr(a, b Domain) Domain
	AShr(a, b Domain) Domain
	And(a, b Domain) Domain
	Or(a, b Domain) Domain
	Xor(a, b Domain) Domain

	FAdd(a, b Domain) Domain
	FSub(a, b Domain) Domain
	FMul(a, b Domain) Domain
	FDiv(a, b Domain) Domain
	FRem(a, b Domain) Domain

	ICmp(a, b Domain, pred ir.IntPredicate) Domain
	FCmp(a, b Domain, pred ir.FloatPredicate) Domain

	Trunc(a Domain) Domain
	ZExt(a Domain) Domain
	SExt(a Domain) Domain
	FPTrunc(a Domain) Domain
	FPExt(a Domain) Domain
	FPToUI(a Domain) Domain
	FPToSI(a Domain) Domain
	UIToFP(a Domain) Domain
	SIToFP(a Domain) Domain

	ExtractElement(array, index Domain) Domain
	InsertElement(array, elem, index Domain) Domain
	ShuffleVector(a, b Domain, mask []int64) Domain
	ExtractValue(agg Domain, indices []int64) Domain
	InsertValue(agg, elem Domain, indices []int64) Domain

	Load(offsets Domain) Domain
	Store(value, offsets Domain, isSingleTarget bool) Domain
}

// Unsupported is embedded by every concrete domain and answers every
// Domain method with a panic; concrete domains shadow the subset of
// methods they actually implement. A panic here means a transfer function
// in package interp routed an operation to a domain that can never
// receive it for well-typed IR — spec.md §9's "none of them may be
// reached during normal interpretation of supported IR".
type Unsupported struct{ Op string }

func notSupported(kind, op string) {
	panic(fmt.Sprintf("domain: %s does not support %s", kind, op))
}

func (u Unsupported) Add(a, b Domain) Domain                        { notSupported(u.Op, "add"); return nil }
func (u Unsupported) Sub(a, b Domain) Domain                        { notSupported(u.Op, "sub"); return nil }
func (u Unsupported) Mul(a, b Domain) Domain                        { notSupported(u.Op, "mul"); return nil }
func (u Unsupported) UDiv(a, b Domain) Domain                       { notSupported(u.Op, "udiv"); return nil }
func (u Unsupported) SDiv(a, b Domain) Domain                       { notSupported(u.Op, "sdiv"); return nil }
func (u Unsupported) URem(a, b Domain) Domain                       { notSupported(u.Op, "urem"); return nil }
func (u Unsupported) SRem(a, b Domain) Domain                       { notSupported(u.Op, "srem"); return nil }
func (u Unsupported) Shl(a, b Domain) Domain                        { notSupported(u.Op, "shl"); return nil }
func (u Unsupported) LShr(a, b Domain) Domain                       { notSupported(u.Op, "lshr"); return nil }
func (u Unsupported) AShr(a, b Domain) Domain                       { notSupported(u.Op, "ashr"); return nil }
func (u Unsupported) And(a, b Domain) Domain                        { notSupported(u.Op, "and"); return nil }
func (u Unsupported) Or(a, b Domain) Domain                         { notSupported(u.Op, "or"); return nil }
func (u Unsupported) Xor(a, b Domain) Domain                        { notSupported(u.Op, "xor"); return nil }
func (u Unsupported) FAdd(a, b Domain) Domain                       { notSupported(u.Op, "fadd"); return nil }
func (u Unsupported) FSub(a, b Domain) Domain                       { notSupported(u.Op, "fsub"); return nil }
func (u Unsupported) FMul(a, b Domain) Domain                       { notSupported(u.Op, "fmul"); return nil }
func (u Unsupported) FDiv(a, b Domain) Domain                       { notSupported(u.Op, "fdiv"); return nil }
func (u Unsupported) FRem(a, b Domain) Domain                       { notSupported(u.Op, "frem"); return nil }
func (u Unsupported) ICmp(a, b Domain, p ir.IntPredicate) Domain    { notSupported(u.Op, "icmp"); return nil }
func (u Unsupported) FCmp(a, b Domain, p ir.FloatPredicate) Domain  { notSupported(u.Op, "fcmp"); return nil }
func (u Unsupported) Trunc(a Domain) Domain                         { notSupported(u.Op, "trunc"); return nil }
func (u Unsupported) ZExt(a Domain) Domain                          { notSupported(u.Op, "zext"); return nil }
func (u Unsupported) SExt(a Domain) Domain                          { notSupported(u.Op, "sext"); return nil }
func (u Unsupported) FPTrunc(a Domain) Domain                       { notSupported(u.Op, "fptrunc"); return nil }
func (u Unsupported) FPExt(a Domain) Domain                         { notSupported(u.Op, "fpext"); return nil }
func (u Unsupported) FPToUI(a Domain) Domain                        { notSupported(u.Op, "fptoui"); return nil }
func (u Unsupported) FPToSI(a Domain) Domain                        { notSupported(u.Op, "fptosi"); return nil }
func (u Unsupported) UIToFP(a Domain) Domain                        { notSupported(u.Op, "uitofp"); return nil }
func (u Unsupported) SIToFP(a Domain) Domain                        { notSupported(u.Op, "sitofp"); return nil }
func (u Unsupported) ExtractElement(array, index Domain) Domain     { notSupported(u.Op, "extractelement"); return nil }
func (u Unsupported) InsertElement(array, elem, index Domain) Domain {
	notSupported(u.Op, "insertelement")
	return nil
}
func (u Unsupported) ShuffleVector(a, b Domain, mask []int64) Domain {
	notSupported(u.Op, "shufflevector")
	return nil
}
func (u Unsupported) ExtractValue(agg Domain, indices []int64) Domain {
	notSupported(u.Op, "extractvalue")
	return nil
}
func (u Unsupported) InsertValue(agg, elem Domain, indices []int64) Domain {
	notSupported(u.Op, "insertvalue")
	return nil
}
func (u Unsupported) Load(offsets Domain) Domain { notSupported(u.Op, "load"); return nil }
func (u Unsupported) Store(value, offsets Domain, isSingleTarget bool) Domain {
	notSupported(u.Op, "store")
	return nil
}

// FourValue is the {definitely-true, definitely-false, unknown, ⊥} result
// shape every comparison in spec.md §4.1 produces, encoded as a 1-bit
// IntSet: {1}, {0}, {0,1} (⊤), or ⊥.
func FourValue(env *Environment, width uint, trueCase, falseCase bool, anyBottom bool) Domain {
	r := NewIntSet(env, 1)
	if anyBottom {
		r.SetBottom()
		return r
	}
	switch {
	case trueCase && !falseCase:
		r.values = map[uint64]struct{}{1: {}}
	case falseCase && !trueCase:
		r.values = map[uint64]struct{}{0: {}}
	default:
		r.SetTop()
	}
	return r
}
