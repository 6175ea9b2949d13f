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

import "fmt"

// SingleItemArray is the collapsed array domain (spec.md §4.1 item 6): one
// shared abstract value standing in for every element, used once the
// array is too large (or its length is itself unknown) for ExactArray to
// track per-slot. Every read joins nothing extra in (there is only the
// one item); every write joins the new value in, since a write can never
// be proven to be the only write to reach a given concrete index once
// indices are no longer tracked individually.
type SingleItemArray struct {
	Unsupported
	Env  *Environment
	Item Domain
}

// NewSingleItemArray wraps item (already ⊥ of the array's element type).
func NewSingleItemArray(env *Environment, item Domain) *SingleItemArray {
	return &SingleItemArray{Unsupported: Unsupported{Op: "SingleItemArray"}, Env: env, Item: item}
}

func (a *SingleItemArray) mustSameKind(other Domain) *SingleItemArray {
	o, ok := other.(*SingleItemArray)
	if !ok {
		panic(fmt.Sprintf("SingleItemArray: type mismatch with %T", other))
	}
	return o
}

func (a *SingleItemArray) Clone() Domain {
	return &SingleItemArray{Unsupported: a.Unsupported, Env: a.Env, Item: a.Item.Clone()}
}

func (a *SingleItemArray) IsBottom() bool       { return a.Item.IsBottom() }
func (a *SingleItemArray) SetBottom()           { a.Item.SetBottom() }
func (a *SingleItemArray) IsTop() bool          { return a.Item.IsTop() }
func (a *SingleItemArray) SetTop()              { a.Item.SetTop() }
func (a *SingleItemArray) SetZero()             { a.Item.SetZero() }
func (a *SingleItemArray) Accuracy() float32    { return a.Item.Accuracy() }
func (a *SingleItemArray) MemoryUsage() uintptr { return a.Item.MemoryUsage() + 16 }
func (a *SingleItemArray) String() string       { return "SingleItemArray " + a.Item.String() }

func (a *SingleItemArray) Equals(other Domain) bool {
	o := a.mustSameKind(other)
	return a.Item.Equals(o.Item)
}
func (a *SingleItemArray) LessOrEqual(other Domain) bool {
	o := a.mustSameKind(other)
	return a.Item.LessOrEqual(o.Item)
}
func (a *SingleItemArray) Join(other Domain) Domain {
	o := a.mustSameKind(other)
	a.Item = a.Item.Join(o.Item)
	return a
}
func (a *SingleItemArray) Meet(other Domain) Domain {
	o := a.mustSameKind(other)
	a.Item = a.Item.Meet(o.Item)
	return a
}

func (a *SingleItemArray) ExtractElement(array, index Domain) Domain {
	return array.(*SingleItemArray).Item.Clone()
}

func (a *SingleItemArray) InsertElement(array, elem, index Domain) Domain {
	av := array.(*SingleItemArray)
	out := av.Clone().(*SingleItemArray)
	out.Item = out.Item.Join(elem)
	return out
}
