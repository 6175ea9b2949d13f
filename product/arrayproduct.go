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

package product

import (
	"fmt"
	"strings"

	"github.com/karelklic/absint/domain"
)

// Array is the reduced product over array-shaped values spec.md §4.2's
// closing line describes: exact-size tracking, a collapsed single-item
// fallback, and (for byte arrays standing in for strings) a shared
// prefix, running in parallel the same way Product runs Bitfield/IntSet/
// Interval in parallel over scalars.
//
// Exact is nil whenever the array's length is unknown or judged too
// large to track per-element (package types decides this at
// construction, mirroring ExactArray's own "small and statically known"
// requirement); Prefix is nil for any element type other than i8, since
// a prefix is only meaningful over bytes. Single is always present: it
// is the one member that never refuses to describe an array.
type Array struct {
	domain.Unsupported
	Env    *domain.Environment
	Exact  *domain.ExactArray
	Single *domain.SingleItemArray
	Prefix *domain.StringPrefix
}

// NewArray builds ⊥ of an array whose elements have the given ⊥-builder
// and whose length is length (length < 0 means unknown, so Exact is
// omitted). isByte selects whether a StringPrefix member is carried.
func NewArray(env *domain.Environment, length int, elemBottom func() domain.Domain, isByte bool) *Array {
	a := &Array{
		Unsupported: domain.Unsupported{Op: "product.Array"},
		Env:         env,
		Single:      domain.NewSingleItemArray(env, elemBottom()),
	}
	if length >= 0 {
		a.Exact = domain.NewExactArray(env, length, elemBottom)
	}
	if isByte {
		a.Prefix = domain.NewStringPrefix(env)
	}
	return a
}

func (a *Array) members() []domain.Domain {
	var ms []domain.Domain
	if a.Exact != nil {
		ms = append(ms, a.Exact)
	}
	ms = append(ms, a.Single)
	if a.Prefix != nil {
		ms = append(ms, a.Prefix)
	}
	return ms
}

func (a *Array) mustSameKind(other domain.Domain) *Array {
	o, ok := other.(*Array)
	if !ok || (a.Exact == nil) != (o.Exact == nil) || (a.Prefix == nil) != (o.Prefix == nil) {
		panic(fmt.Sprintf("product.Array: type mismatch with %T", other))
	}
	return o
}

func (a *Array) Clone() domain.Domain {
	c := &Array{Unsupported: a.Unsupported, Env: a.Env, Single: a.Single.Clone().(*domain.SingleItemArray)}
	if a.Exact != nil {
		c.Exact = a.Exact.Clone().(*domain.ExactArray)
	}
	if a.Prefix != nil {
		c.Prefix = a.Prefix.Clone().(*domain.StringPrefix)
	}
	return c
}

// IsBottom mirrors Product's rule: each member describes the same
// concrete set from its own angle, so if any one of them has concluded
// "no value is possible," the array as a whole is unreachable.
func (a *Array) IsBottom() bool {
	for _, m := range a.members() {
		if m.IsBottom() {
			return true
		}
	}
	return false
}

func (a *Array) SetBottom() {
	for _, m := range a.members() {
		m.SetBottom()
	}
}

func (a *Array) IsTop() bool {
	for _, m := range a.members() {
		if !m.IsTop() {
			return false
		}
	}
	return true
}

func (a *Array) SetTop() {
	for _, m := range a.members() {
		m.SetTop()
	}
}

func (a *Array) SetZero() {
	for _, m := range a.members() {
		m.SetZero()
	}
}

func (a *Array) Equals(other domain.Domain) bool {
	o := a.mustSameKind(other)
	if !a.Single.Equals(o.Single) {
		return false
	}
	if a.Exact != nil && !a.Exact.Equals(o.Exact) {
		return false
	}
	if a.Prefix != nil && !a.Prefix.Equals(o.Prefix) {
		return false
	}
	return true
}

func (a *Array) LessOrEqual(other domain.Domain) bool {
	o := a.mustSameKind(other)
	if !a.Single.LessOrEqual(o.Single) {
		return false
	}
	if a.Exact != nil && !a.Exact.LessOrEqual(o.Exact) {
		return false
	}
	if a.Prefix != nil && !a.Prefix.LessOrEqual(o.Prefix) {
		return false
	}
	return true
}

func (a *Array) Accuracy() float32 {
	ms := a.members()
	var sum float32
	for _, m := range ms {
		sum += m.Accuracy()
	}
	return sum / float32(len(ms))
}

func (a *Array) MemoryUsage() uintptr {
	var total uintptr
	for _, m := range a.members() {
		total += m.MemoryUsage()
	}
	return total
}

func (a *Array) String() string {
	parts := make([]string, 0, 3)
	if a.Exact != nil {
		parts = append(parts, a.Exact.String())
	}
	parts = append(parts, a.Single.String())
	if a.Prefix != nil {
		parts = append(parts, a.Prefix.String())
	}
	return "Array(" + strings.Join(parts, " x ") + ")"
}

func (a *Array) Join(other domain.Domain) domain.Domain {
	o := a.mustSameKind(other)
	if a.Exact != nil {
		a.Exact = a.Exact.Join(o.Exact).(*domain.ExactArray)
	}
	a.Single = a.Single.Join(o.Single).(*domain.SingleItemArray)
	if a.Prefix != nil {
		a.Prefix = a.Prefix.Join(o.Prefix).(*domain.StringPrefix)
	}
	return a
}

func (a *Array) Meet(other domain.Domain) domain.Domain {
	o := a.mustSameKind(other)
	if a.Exact != nil {
		a.Exact = a.Exact.Meet(o.Exact).(*domain.ExactArray)
	}
	a.Single = a.Single.Meet(o.Single).(*domain.SingleItemArray)
	if a.Prefix != nil {
		a.Prefix = a.Prefix.Meet(o.Prefix).(*domain.StringPrefix)
	}
	if a.IsBottom() {
		a.SetBottom()
	}
	return a
}

// ExtractElement prefers Exact when present: it is the only member that
// can say anything about one specific slot rather than the array as a
// whole. Prefix never participates here (it has no notion of element
// indexing), matching how Single's own ExtractElement always returns
// its one shared item regardless of index.
func (a *Array) ExtractElement(array, index domain.Domain) domain.Domain {
	av := array.(*Array)
	if av.Exact != nil {
		return av.Exact.ExtractElement(av.Exact, index)
	}
	return av.Single.ExtractElement(av.Single, index)
}

// InsertElement writes through to every member that tracks element
// identity. Prefix only loses the bytes the write could actually reach:
// an index within the currently-known prefix truncates it there, while
// an index past the end leaves it alone (a write to "hello"'s sixth byte
// says nothing about whether it still spells "hello").
func (a *Array) InsertElement(array, elem, index domain.Domain) domain.Domain {
	av := array.(*Array)
	out := av.Clone().(*Array)
	if out.Exact != nil {
		out.Exact = out.Exact.InsertElement(out.Exact, elem, index).(*domain.ExactArray)
	}
	out.Single = out.Single.InsertElement(out.Single, elem, index).(*domain.SingleItemArray)
	if out.Prefix != nil {
		idx, known := indexLowerBound(index)
		out.Prefix.InvalidateAt(idx, known)
	}
	return out
}

// indexLowerBound extracts the smallest value an element index could
// name, the one fact InsertElement needs to bound how much of a
// string-prefix a write might disturb.
func indexLowerBound(index domain.Domain) (int64, bool) {
	is, ok := index.(*domain.IntSet)
	if !ok {
		return 0, false
	}
	values, top := is.AsRange()
	if top || len(values) == 0 {
		return 0, false
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return int64(min), true
}

func (a *Array) ExtractValue(agg domain.Domain, indices []int64) domain.Domain {
	av := agg.(*Array)
	if av.Exact != nil {
		return av.Exact.ExtractValue(av.Exact, indices)
	}
	return av.Single.Item.Clone()
}

func (a *Array) InsertValue(agg, elem domain.Domain, indices []int64) domain.Domain {
	av := agg.(*Array)
	out := av.Clone().(*Array)
	if out.Exact != nil {
		out.Exact = out.Exact.InsertValue(out.Exact, elem, indices).(*domain.ExactArray)
	}
	out.Single.Item = out.Single.Item.Join(elem)
	if out.Prefix != nil {
		out.Prefix.SetTop()
	}
	return out
}
