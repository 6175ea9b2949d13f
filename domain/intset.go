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

	"github.com/karelklic/absint/ir"
)

// IntSet is the set-of-constants domain (spec.md §4.1 item 1): a finite
// set of concrete values of the given width, collapsing to ⊤ once it would
// exceed the environment's SET_THRESHOLD.
type IntSet struct {
	Unsupported
	Env    *Environment
	Width  uint
	top    bool
	values map[uint64]struct{} // nil/empty + !top == ⊥
}

// NewIntSet returns ⊥ of the given width.
func NewIntSet(env *Environment, width uint) *IntSet {
	return &IntSet{Unsupported: Unsupported{Op: "IntSet"}, Env: env, Width: width}
}

// NewIntSetValue returns the singleton {v}.
func NewIntSetValue(env *Environment, width uint, v uint64) *IntSet {
	s := NewIntSet(env, width)
	s.values = map[uint64]struct{}{mask(v, width): {}}
	return s
}

func mask(v uint64, width uint) uint64 {
	if width >= 64 {
		return v
	}
	return v & ((uint64(1) << width) - 1)
}

func (s *IntSet) mustSameKind(other Domain) *IntSet {
	o, ok := other.(*IntSet)
	if !ok || o.Width != s.Width {
		panic(fmt.Sprintf("IntSet: type mismatch with %T", other))
	}
	return o
}

func (s *IntSet) Clone() Domain {
	c := &IntSet{Unsupported: s.Unsupported, Env: s.Env, Width: s.Width, top: s.top}
	if s.values != nil {
		c.values = make(map[uint64]struct{}, len(s.values))
		for v := range s.values {
			c.values[v] = struct{}{}
		}
	}
	return c
}

func (s *IntSet) Equals(other Domain) bool {
	o := s.mustSameKind(other)
	if s.top != o.top {
		return false
	}
	if len(s.values) != len(o.values) {
		return false
	}
	for v := range s.values {
		if _, ok := o.values[v]; !ok {
			return false
		}
	}
	return true
}

func (s *IntSet) LessOrEqual(other Domain) bool {
	o := s.mustSameKind(other)
	if o.top {
		return true
	}
	if s.top {
		return false
	}
	for v := range s.values {
		if _, ok := o.values[v]; !ok {
			return false
		}
	}
	return true
}

func (s *IntSet) IsBottom() bool { return !s.top && len(s.values) == 0 }
func (s *IntSet) SetBottom()     { s.top = false; s.values = nil }
func (s *IntSet) IsTop() bool    { return s.top }
func (s *IntSet) SetTop()        { s.top = true; s.values = nil }

func (s *IntSet) Accuracy() float32 {
	if s.top {
		return 0
	}
	if len(s.values) == 1 {
		return 1
	}
	if s.IsBottom() {
		return 1
	}
	return 1 - float32(len(s.values))/float32(s.Env.setThreshold()+1)
}

func (s *IntSet) MemoryUsage() uintptr { return uintptr(16 + 8*len(s.values)) }

func (s *IntSet) SetZero() {
	s.top = false
	s.values = map[uint64]struct{}{0: {}}
}

func (s *IntSet) String() string {
	if s.top {
		return "IntSet top"
	}
	if s.IsBottom() {
		return "IntSet bottom"
	}
	vals := make([]uint64, 0, len(s.values))
	for v := range s.values {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "IntSet {" + strings.Join(parts, ", ") + "}"
}

func (s *IntSet) Join(other Domain) Domain {
	o := s.mustSameKind(other)
	if s.top || o.top {
		s.SetTop()
		return s
	}
	for v := range o.values {
		if s.values == nil {
			s.values = map[uint64]struct{}{}
		}
		s.values[v] = struct{}{}
	}
	if len(s.values) > s.Env.setThreshold() {
		s.SetTop()
	}
	return s
}

func (s *IntSet) Meet(other Domain) Domain {
	o := s.mustSameKind(other)
	if o.top {
		return s
	}
	if s.top {
		s.top = false
		s.values = make(map[uint64]struct{}, len(o.values))
		for v := range o.values {
			s.values[v] = struct{}{}
		}
		return s
	}
	for v := range s.values {
		if _, ok := o.values[v]; !ok {
			delete(s.values, v)
		}
	}
	return s
}

// singleton returns (value, true) iff s denotes exactly one concrete value.
func (s *IntSet) singleton() (uint64, bool) {
	if s.top || len(s.values) != 1 {
		return 0, false
	}
	for v := range s.values {
		return v, true
	}
	return 0, false
}

func (s *IntSet) pointwise(a, b *IntSet, f func(x, y uint64) uint64) Domain {
	if a.IsBottom() || b.IsBottom() {
		s.SetBottom()
		return s
	}
	if a.top || b.top {
		s.SetTop()
		return s
	}
	out := map[uint64]struct{}{}
	for x := range a.values {
		for y := range b.values {
			out[mask(f(x, y), s.Width)] = struct{}{}
		}
		if len(out) > s.Env.setThreshold() {
			s.SetTop()
			return s
		}
	}
	s.top = false
	s.values = out
	if len(s.values) > s.Env.setThreshold() {
		s.SetTop()
	}
	return s
}

func (s *IntSet) Add(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x + y })
}
func (s *IntSet) Sub(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x - y })
}
func (s *IntSet) Mul(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x * y })
}
func (s *IntSet) And(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x & y })
}
func (s *IntSet) Or(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x | y })
}
func (s *IntSet) Xor(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x ^ y })
}
func (s *IntSet) Shl(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x << (y % uint64(s.Width)) })
}
func (s *IntSet) LShr(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 { return x >> (y % uint64(s.Width)) })
}
func (s *IntSet) AShr(a, b Domain) Domain {
	return s.pointwise(a.(*IntSet), b.(*IntSet), func(x, y uint64) uint64 {
		sv := signExtend(x, s.Width)
		return uint64(sv >> (y % uint64(s.Width)))
	})
}

func signExtend(v uint64, width uint) int64 {
	if width >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << (width - 1)
	if v&signBit != 0 {
		return int64(v | (^uint64(0) << width))
	}
	return int64(v)
}

// UDiv/SDiv/URem/SRem: division by zero yields ⊤, per spec.md §4.1.
func (s *IntSet) UDiv(a, b Domain) Domain { return s.divrem(a, b, false, false) }
func (s *IntSet) SDiv(a, b Domain) Domain { return s.divrem(a, b, true, false) }
func (s *IntSet) URem(a, b Domain) Domain { return s.divrem(a, b, false, true) }
func (s *IntSet) SRem(a, b Domain) Domain { return s.divrem(a, b, true, true) }

func (s *IntSet) divrem(a, b Domain, signed, rem bool) Domain {
	av, bv := a.(*IntSet), b.(*IntSet)
	if av.IsBottom() || bv.IsBottom() {
		s.SetBottom()
		return s
	}
	for y := range bv.values {
		if y == 0 {
			s.SetTop()
			return s
		}
	}
	if bv.top {
		s.SetTop()
		return s
	}
	return s.pointwise(av, bv, func(x, y uint64) uint64 {
		if !signed {
			if rem {
				return x % y
			}
			return x / y
		}
		xs, ys := signExtend(x, s.Width), signExtend(y, s.Width)
		if rem {
			return uint64(xs % ys)
		}
		return uint64(xs / ys)
	})
}

func (s *IntSet) ICmp(a, b Domain, pred ir.IntPredicate) Domain {
	av, bv := a.(*IntSet), b.(*IntSet)
	if av.IsBottom() || bv.IsBottom() {
		return FourValue(s.Env, 1, false, false, true)
	}
	if av.top || bv.top {
		return FourValue(s.Env, 1, false, false, false)
	}
	allTrue, allFalse := true, true
	for x := range av.values {
		for y := range bv.values {
			if icmp(x, y, s.Width, pred) {
				allFalse = false
			} else {
				allTrue = false
			}
		}
	}
	return FourValue(s.Env, 1, allTrue, allFalse, false)
}

func icmp(x, y uint64, width uint, pred ir.IntPredicate) bool {
	if pred.Signed() {
		xs, ys := signExtend(x, width), signExtend(y, width)
		switch pred {
		case ir.IntSGT:
			return xs > ys
		case ir.IntSGE:
			return xs >= ys
		case ir.IntSLT:
			return xs < ys
		case ir.IntSLE:
			return xs <= ys
		}
	}
	switch pred {
	case ir.IntEQ:
		return x == y
	case ir.IntNE:
		return x != y
	case ir.IntUGT:
		return x > y
	case ir.IntUGE:
		return x >= y
	case ir.IntULT:
		return x < y
	case ir.IntULE:
		return x <= y
	}
	return false
}

func (s *IntSet) Trunc(a Domain) Domain {
	av := a.(*IntSet)
	return s.castPointwise(av, func(x uint64) uint64 { return x })
}
func (s *IntSet) ZExt(a Domain) Domain {
	av := a.(*IntSet)
	return s.castPointwise(av, func(x uint64) uint64 { return x })
}
func (s *IntSet) SExt(a Domain) Domain {
	av := a.(*IntSet)
	return s.castPointwise(av, func(x uint64) uint64 {
		return uint64(signExtend(x, av.Width))
	})
}

func (s *IntSet) castPointwise(a *IntSet, f func(uint64) uint64) Domain {
	if a.IsBottom() {
		s.SetBottom()
		return s
	}
	if a.top {
		s.SetTop()
		return s
	}
	out := map[uint64]struct{}{}
	for x := range a.values {
		out[mask(f(x), s.Width)] = struct{}{}
	}
	s.top = false
	s.values = out
	if len(out) > s.Env.setThreshold() {
		s.SetTop()
	}
	return s
}

// FPToUI/FPToSI land here only through the product (package product),
// never directly on IntSet from a float operand, so they are not
// implemented on this domain; the reduced product's Interval member
// handles float casts and IntSet is refined afterwards (package product).

// AsRange exposes the set contents to collaborating domains during
// reduced-product cross-refinement (package product's collaboration step).
func (s *IntSet) AsRange() (values []uint64, top bool) {
	if s.top {
		return nil, true
	}
	out := make([]uint64, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, false
}

// RestrictTo removes every value not present in allowed (used by the
// reduced-product collaboration step, spec.md §4.2, to let another member
// shrink this one).
func (s *IntSet) RestrictTo(allowed map[uint64]struct{}) {
	if s.top {
		return
	}
	for v := range s.values {
		if _, ok := allowed[v]; !ok {
			delete(s.values, v)
		}
	}
}
