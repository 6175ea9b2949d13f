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
	"strings"
)

// ExactArray is the exact-size array domain (spec.md §4.1 item 5): tracks
// every element's own abstract value, for arrays whose element count is
// small and statically known. Nested arrays and structs just nest
// ExactArray/Struct values as elements, so join/meet recurse naturally.
type ExactArray struct {
	Unsupported
	Env      *Environment
	Elems    []Domain
	isBottom bool
}

// NewExactArray builds ⊥ of the given length; elemBottom is called once per
// slot to get each element's own ⊥ value (package types owns the per-type
// construction, this just holds the slots).
func NewExactArray(env *Environment, length int, elemBottom func() Domain) *ExactArray {
	elems := make([]Domain, length)
	for i := range elems {
		elems[i] = elemBottom()
	}
	return &ExactArray{Unsupported: Unsupported{Op: "ExactArray"}, Env: env, Elems: elems, isBottom: true}
}

func (a *ExactArray) mustSameKind(other Domain) *ExactArray {
	o, ok := other.(*ExactArray)
	if !ok || len(o.Elems) != len(a.Elems) {
		panic(fmt.Sprintf("ExactArray: type mismatch with %T", other))
	}
	return o
}

func (a *ExactArray) Clone() Domain {
	c := &ExactArray{Unsupported: a.Unsupported, Env: a.Env, isBottom: a.isBottom, Elems: make([]Domain, len(a.Elems))}
	for i, e := range a.Elems {
		c.Elems[i] = e.Clone()
	}
	return c
}

func (a *ExactArray) IsBottom() bool { return a.isBottom }
func (a *ExactArray) SetBottom() {
	a.isBottom = true
	for _, e := range a.Elems {
		e.SetBottom()
	}
}
func (a *ExactArray) IsTop() bool {
	if a.isBottom {
		return false
	}
	for _, e := range a.Elems {
		if !e.IsTop() {
			return false
		}
	}
	return true
}
func (a *ExactArray) SetTop() {
	a.isBottom = false
	for _, e := range a.Elems {
		e.SetTop()
	}
}
func (a *ExactArray) SetZero() {
	a.isBottom = false
	for _, e := range a.Elems {
		e.SetZero()
	}
}

func (a *ExactArray) Equals(other Domain) bool {
	o := a.mustSameKind(other)
	if a.isBottom != o.isBottom {
		return false
	}
	for i, e := range a.Elems {
		if !e.Equals(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (a *ExactArray) LessOrEqual(other Domain) bool {
	o := a.mustSameKind(other)
	if a.isBottom {
		return true
	}
	if o.isBottom {
		return false
	}
	for i, e := range a.Elems {
		if !e.LessOrEqual(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (a *ExactArray) Accuracy() float32 {
	if len(a.Elems) == 0 {
		return 1
	}
	var sum float32
	for _, e := range a.Elems {
		sum += e.Accuracy()
	}
	return sum / float32(len(a.Elems))
}

func (a *ExactArray) MemoryUsage() uintptr {
	var total uintptr
	for _, e := range a.Elems {
		total += e.MemoryUsage()
	}
	return total + 24
}

func (a *ExactArray) String() string {
	if a.isBottom {
		return "ExactArray bottom"
	}
	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		parts[i] = e.String()
	}
	return "ExactArray [" + strings.Join(parts, ", ") + "]"
}

func (a *ExactArray) Join(other Domain) Domain {
	o := a.mustSameKind(other)
	if o.isBottom {
		return a
	}
	if a.isBottom {
		a.isBottom = false
	}
	for i, e := range a.Elems {
		a.Elems[i] = e.Join(o.Elems[i])
	}
	return a
}

func (a *ExactArray) Meet(other Domain) Domain {
	o := a.mustSameKind(other)
	if a.isBottom || o.isBottom {
		a.SetBottom()
		return a
	}
	anyBottom := false
	for i, e := range a.Elems {
		a.Elems[i] = e.Meet(o.Elems[i])
		if a.Elems[i].IsBottom() {
			anyBottom = true
		}
	}
	if anyBottom {
		a.SetBottom()
	}
	return a
}

// ExtractElement joins together the element(s) the index could select;
// an index that could be anything in range joins across the whole array,
// spec.md §4.1 item 5's "indeterminate index" case.
func (a *ExactArray) ExtractElement(array, index Domain) Domain {
	av := array.(*ExactArray)
	if av.isBottom || len(av.Elems) == 0 {
		out := av.Elems[0].Clone()
		out.SetBottom()
		return out
	}
	idxs, unknown := possibleIndices(index, int64(len(av.Elems)))
	out := av.Elems[0].Clone()
	out.SetBottom()
	if unknown {
		for _, e := range av.Elems {
			out = out.Join(e)
		}
		return out
	}
	for _, i := range idxs {
		out = out.Join(av.Elems[i])
	}
	return out
}

// InsertElement writes elem at every index the index domain could denote;
// a non-singleton index means we cannot be sure which slot changed, so
// every candidate slot is weakened by joining instead of overwriting
// (spec.md §4.1 item 5's weak-update rule; package interp's
// storeThroughPointer applies the same rule at the pointer level).
func (a *ExactArray) InsertElement(array, elem, index Domain) Domain {
	av := array.(*ExactArray)
	out := av.Clone().(*ExactArray)
	if av.isBottom {
		return out
	}
	idxs, unknown := possibleIndices(index, int64(len(av.Elems)))
	if unknown {
		for i := range out.Elems {
			out.Elems[i] = out.Elems[i].Join(elem)
		}
		return out
	}
	strong := len(idxs) == 1
	for _, i := range idxs {
		if strong {
			out.Elems[i] = elem.Clone()
		} else {
			out.Elems[i] = out.Elems[i].Join(elem)
		}
	}
	return out
}

func (a *ExactArray) ExtractValue(agg Domain, indices []int64) Domain {
	av := agg.(*ExactArray)
	if len(indices) == 0 {
		return av
	}
	if len(indices) == 1 {
		return av.Elems[indices[0]].Clone()
	}
	return av.Elems[indices[0]].ExtractValue(av.Elems[indices[0]], indices[1:])
}

func (a *ExactArray) InsertValue(agg, elem Domain, indices []int64) Domain {
	av := agg.(*ExactArray)
	out := av.Clone().(*ExactArray)
	if len(indices) == 1 {
		out.Elems[indices[0]] = elem.Clone()
		return out
	}
	out.Elems[indices[0]] = out.Elems[indices[0]].InsertValue(out.Elems[indices[0]], elem, indices[1:])
	return out
}
