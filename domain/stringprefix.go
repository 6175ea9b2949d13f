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

// StringPrefix is the string-prefix domain (spec.md §4.1 item 7): the
// longest run of bytes every concretization is known to start with.
// Exact marks the special case where the prefix is the whole string (so
// the length is known too); a non-exact prefix says nothing about what
// follows it or how long the string is.
type StringPrefix struct {
	Unsupported
	Env    *Environment
	bottom bool
	top    bool
	Prefix []byte
	Exact  bool
}

// NewStringPrefix returns ⊥.
func NewStringPrefix(env *Environment) *StringPrefix {
	return &StringPrefix{Unsupported: Unsupported{Op: "StringPrefix"}, Env: env, bottom: true}
}

// NewStringPrefixValue returns the singleton exact string s.
func NewStringPrefixValue(env *Environment, s []byte) *StringPrefix {
	p := NewStringPrefix(env)
	p.bottom = false
	p.Prefix = append([]byte(nil), s...)
	p.Exact = true
	return p
}

func (p *StringPrefix) mustSameKind(other Domain) *StringPrefix {
	o, ok := other.(*StringPrefix)
	if !ok {
		panic(fmt.Sprintf("StringPrefix: type mismatch with %T", other))
	}
	return o
}

func (p *StringPrefix) Clone() Domain {
	c := &StringPrefix{Unsupported: p.Unsupported, Env: p.Env, bottom: p.bottom, top: p.top, Exact: p.Exact}
	c.Prefix = append([]byte(nil), p.Prefix...)
	return c
}

func (p *StringPrefix) IsBottom() bool { return p.bottom }
func (p *StringPrefix) SetBottom() {
	p.bottom, p.top, p.Exact = true, false, false
	p.Prefix = nil
}
func (p *StringPrefix) IsTop() bool { return p.top }
func (p *StringPrefix) SetTop() {
	p.bottom, p.top, p.Exact = false, true, false
	p.Prefix = nil
}
func (p *StringPrefix) SetZero() {
	p.bottom, p.top = false, false
	p.Prefix, p.Exact = nil, true
}

func (p *StringPrefix) Equals(other Domain) bool {
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
	return p.Exact == o.Exact && string(p.Prefix) == string(o.Prefix)
}

func (p *StringPrefix) LessOrEqual(other Domain) bool {
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
	if o.Exact && (!p.Exact || string(p.Prefix) != string(o.Prefix)) {
		return false
	}
	return hasPrefix(p.Prefix, o.Prefix)
}

// InvalidateAt accounts for a write landing at byte index idx: a write
// before the end of the known prefix truncates it to the unaffected
// lead bytes and drops Exact (the string's tail, and now its length, are
// no longer fully known); a write at or past the known prefix's end
// leaves it untouched, since the prefix never claimed to describe that
// byte anyway. known false means the write's own index isn't pinned
// down, so it could land on byte 0 and the whole prefix is forfeit.
func (p *StringPrefix) InvalidateAt(idx int64, known bool) {
	if p.bottom || p.top {
		return
	}
	if !known || idx <= 0 {
		p.SetTop()
		return
	}
	if idx < int64(len(p.Prefix)) {
		p.Prefix = p.Prefix[:idx]
		p.Exact = false
	}
}

func hasPrefix(s, prefix []byte) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}

func commonPrefix(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func (p *StringPrefix) Accuracy() float32 {
	if p.top {
		return 0
	}
	if p.bottom {
		return 1
	}
	if p.Exact {
		return 1
	}
	if len(p.Prefix) == 0 {
		return 0
	}
	return 0.5
}

func (p *StringPrefix) MemoryUsage() uintptr { return uintptr(24 + len(p.Prefix)) }

func (p *StringPrefix) String() string {
	if p.bottom {
		return "StringPrefix bottom"
	}
	if p.top {
		return "StringPrefix top"
	}
	if p.Exact {
		return fmt.Sprintf("StringPrefix %q (exact)", p.Prefix)
	}
	return fmt.Sprintf("StringPrefix %q...", p.Prefix)
}

func (p *StringPrefix) Join(other Domain) Domain {
	o := p.mustSameKind(other)
	if o.bottom {
		return p
	}
	if p.bottom {
		*p = *o
		p.Prefix = append([]byte(nil), o.Prefix...)
		return p
	}
	if p.top || o.top {
		p.SetTop()
		return p
	}
	if p.Exact && o.Exact && string(p.Prefix) == string(o.Prefix) {
		return p
	}
	p.Prefix = commonPrefix(p.Prefix, o.Prefix)
	p.Exact = false
	return p
}

func (p *StringPrefix) Meet(other Domain) Domain {
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
		p.Prefix = append([]byte(nil), o.Prefix...)
		p.Exact = o.Exact
		return p
	}
	switch {
	case hasPrefix(p.Prefix, o.Prefix):
		if o.Exact && string(p.Prefix) != string(o.Prefix) {
			p.SetBottom()
			return p
		}
	case hasPrefix(o.Prefix, p.Prefix):
		if p.Exact && string(p.Prefix) != string(o.Prefix) {
			p.SetBottom()
			return p
		}
		p.Prefix = append([]byte(nil), o.Prefix...)
		p.Exact = o.Exact
	default:
		p.SetBottom()
	}
	return p
}
