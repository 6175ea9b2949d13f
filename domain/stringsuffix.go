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

// StringSuffix is the string-suffix domain (spec.md §4.1 item 8): the
// longest run of bytes every concretization is known to end with.
//
// The original source ordered StringPrefix and StringSuffix with a single
// mixed operator< that compared prefix bytes against suffix bytes
// directly; that ordering doesn't correspond to any lattice this type
// actually forms, so it isn't reproduced here. LessOrEqual is instead
// derived straight from the suffix lattice definition, the same way
// StringPrefix.LessOrEqual is derived from the prefix lattice.
type StringSuffix struct {
	Unsupported
	Env    *Environment
	bottom bool
	top    bool
	Suffix []byte
	Exact  bool
}

// NewStringSuffix returns ⊥.
func NewStringSuffix(env *Environment) *StringSuffix {
	return &StringSuffix{Unsupported: Unsupported{Op: "StringSuffix"}, Env: env, bottom: true}
}

// NewStringSuffixValue returns the singleton exact string s.
func NewStringSuffixValue(env *Environment, s []byte) *StringSuffix {
	p := NewStringSuffix(env)
	p.bottom = false
	p.Suffix = append([]byte(nil), s...)
	p.Exact = true
	return p
}

func (p *StringSuffix) mustSameKind(other Domain) *StringSuffix {
	o, ok := other.(*StringSuffix)
	if !ok {
		panic(fmt.Sprintf("StringSuffix: type mismatch with %T", other))
	}
	return o
}

func (p *StringSuffix) Clone() Domain {
	c := &StringSuffix{Unsupported: p.Unsupported, Env: p.Env, bottom: p.bottom, top: p.top, Exact: p.Exact}
	c.Suffix = append([]byte(nil), p.Suffix...)
	return c
}

func (p *StringSuffix) IsBottom() bool { return p.bottom }
func (p *StringSuffix) SetBottom() {
	p.bottom, p.top, p.Exact = true, false, false
	p.Suffix = nil
}
func (p *StringSuffix) IsTop() bool { return p.top }
func (p *StringSuffix) SetTop() {
	p.bottom, p.top, p.Exact = false, true, false
	p.Suffix = nil
}
func (p *StringSuffix) SetZero() {
	p.bottom, p.top = false, false
	p.Suffix, p.Exact = nil, true
}

func (p *StringSuffix) Equals(other Domain) bool {
	o := p.mustSameKind(other)
	if p.bottom || o.bottom {
		return p.bottom == o.bottom
	}
	if p.top != o.top {
		return false
	}
	if p.top {
		return true
	}
	return p.Exact == o.Exact && string(p.Suffix) == string(o.Suffix)
}

func hasSuffix(s, suffix []byte) bool {
	if len(suffix) > len(s) {
		return false
	}
	off := len(s) - len(suffix)
	for i, b := range suffix {
		if s[off+i] != b {
			return false
		}
	}
	return true
}

func commonSuffix(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return a[len(a)-i:]
}

func (p *StringSuffix) LessOrEqual(other Domain) bool {
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
	if o.Exact && (!p.Exact || string(p.Suffix) != string(o.Suffix)) {
		return false
	}
	return hasSuffix(p.Suffix, o.Suffix)
}

func (p *StringSuffix) Accuracy() float32 {
	if p.top {
		return 0
	}
	if p.bottom {
		return 1
	}
	if p.Exact {
		return 1
	}
	if len(p.Suffix) == 0 {
		return 0
	}
	return 0.5
}

func (p *StringSuffix) MemoryUsage() uintptr { return uintptr(24 + len(p.Suffix)) }

func (p *StringSuffix) String() string {
	if p.bottom {
		return "StringSuffix bottom"
	}
	if p.top {
		return "StringSuffix top"
	}
	if p.Exact {
		return fmt.Sprintf("StringSuffix %q (exact)", p.Suffix)
	}
	return fmt.Sprintf("StringSuffix ...%q", p.Suffix)
}

func (p *StringSuffix) Join(other Domain) Domain {
	o := p.mustSameKind(other)
	if o.bottom {
		return p
	}
	if p.bottom {
		*p = *o
		p.Suffix = append([]byte(nil), o.Suffix...)
		return p
	}
	if p.top || o.top {
		p.SetTop()
		return p
	}
	if p.Exact && o.Exact && string(p.Suffix) == string(o.Suffix) {
		return p
	}
	p.Suffix = commonSuffix(p.Suffix, o.Suffix)
	p.Exact = false
	return p
}

func (p *StringSuffix) Meet(other Domain) Domain {
	o := p.mustSameKind(other)
	if p.bottom || o.bottom {
		p.SetBottom()
		return p
	}
	if o.top {
		return p
	}
	if p.top {
		p.top = false
		p.Suffix = append([]byte(nil), o.Suffix...)
		p.Exact = o.Exact
		return p
	}
	switch {
	case hasSuffix(p.Suffix, o.Suffix):
		if o.Exact && string(p.Suffix) != string(o.Suffix) {
			p.SetBottom()
			return p
		}
	case hasSuffix(o.Suffix, p.Suffix):
		if p.Exact && string(p.Suffix) != string(o.Suffix) {
			p.SetBottom()
			return p
		}
		p.Suffix = append([]byte(nil), o.Suffix...)
		p.Exact = o.Exact
	default:
		p.SetBottom()
	}
	return p
}
