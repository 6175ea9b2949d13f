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

// Struct is the struct domain (spec.md §4.1 item 11): one member domain
// per field, joined/met pointwise exactly like ExactArray. The source
// left SetZero unimplemented for structs; this recurses into every
// member's own SetZero, the only sound way to build a struct's zero value
// out of its members' zero values.
type Struct struct {
	Unsupported
	Env      *Environment
	Fields   []Domain
	isBottom bool
}

// NewStruct builds ⊥ with one ⊥ member per field, via fieldBottom (one
// call per field index; package types supplies these from the IR type).
func NewStruct(env *Environment, fieldBottom []func() Domain) *Struct {
	fields := make([]Domain, len(fieldBottom))
	for i, f := range fieldBottom {
		fields[i] = f()
	}
	return &Struct{Unsupported: Unsupported{Op: "Struct"}, Env: env, Fields: fields, isBottom: true}
}

func (s *Struct) mustSameKind(other Domain) *Struct {
	o, ok := other.(*Struct)
	if !ok || len(o.Fields) != len(s.Fields) {
		panic(fmt.Sprintf("Struct: type mismatch with %T", other))
	}
	return o
}

func (s *Struct) Clone() Domain {
	c := &Struct{Unsupported: s.Unsupported, Env: s.Env, isBottom: s.isBottom, Fields: make([]Domain, len(s.Fields))}
	for i, f := range s.Fields {
		c.Fields[i] = f.Clone()
	}
	return c
}

func (s *Struct) IsBottom() bool { return s.isBottom }
func (s *Struct) SetBottom() {
	s.isBottom = true
	for _, f := range s.Fields {
		f.SetBottom()
	}
}
func (s *Struct) IsTop() bool {
	if s.isBottom {
		return false
	}
	for _, f := range s.Fields {
		if !f.IsTop() {
			return false
		}
	}
	return true
}
func (s *Struct) SetTop() {
	s.isBottom = false
	for _, f := range s.Fields {
		f.SetTop()
	}
}

// SetZero recurses into every member, giving each field its own zero
// value rather than leaving the struct unimplemented for this operation.
func (s *Struct) SetZero() {
	s.isBottom = false
	for _, f := range s.Fields {
		f.SetZero()
	}
}

func (s *Struct) Equals(other Domain) bool {
	o := s.mustSameKind(other)
	if s.isBottom != o.isBottom {
		return false
	}
	for i, f := range s.Fields {
		if !f.Equals(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (s *Struct) LessOrEqual(other Domain) bool {
	o := s.mustSameKind(other)
	if s.isBottom {
		return true
	}
	if o.isBottom {
		return false
	}
	for i, f := range s.Fields {
		if !f.LessOrEqual(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (s *Struct) Accuracy() float32 {
	if len(s.Fields) == 0 {
		return 1
	}
	var sum float32
	for _, f := range s.Fields {
		sum += f.Accuracy()
	}
	return sum / float32(len(s.Fields))
}

func (s *Struct) MemoryUsage() uintptr {
	var total uintptr
	for _, f := range s.Fields {
		total += f.MemoryUsage()
	}
	return total + 24
}

func (s *Struct) String() string {
	if s.isBottom {
		return "Struct bottom"
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.String()
	}
	return "Struct {" + strings.Join(parts, ", ") + "}"
}

func (s *Struct) Join(other Domain) Domain {
	o := s.mustSameKind(other)
	if o.isBottom {
		return s
	}
	if s.isBottom {
		s.isBottom = false
	}
	for i, f := range s.Fields {
		s.Fields[i] = f.Join(o.Fields[i])
	}
	return s
}

func (s *Struct) Meet(other Domain) Domain {
	o := s.mustSameKind(other)
	if s.isBottom || o.isBottom {
		s.SetBottom()
		return s
	}
	anyBottom := false
	for i, f := range s.Fields {
		s.Fields[i] = f.Meet(o.Fields[i])
		if s.Fields[i].IsBottom() {
			anyBottom = true
		}
	}
	if anyBottom {
		s.SetBottom()
	}
	return s
}

func (s *Struct) ExtractValue(agg Domain, indices []int64) Domain {
	sv := agg.(*Struct)
	if len(indices) == 0 {
		return sv
	}
	field := sv.Fields[indices[0]]
	if len(indices) == 1 {
		return field.Clone()
	}
	return field.ExtractValue(field, indices[1:])
}

func (s *Struct) InsertValue(agg, elem Domain, indices []int64) Domain {
	sv := agg.(*Struct)
	out := sv.Clone().(*Struct)
	if len(indices) == 1 {
		out.Fields[indices[0]] = elem.Clone()
		return out
	}
	out.Fields[indices[0]] = out.Fields[indices[0]].InsertValue(out.Fields[indices[0]], elem, indices[1:])
	return out
}
