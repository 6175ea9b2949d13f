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

package types

import (
	"fmt"
	"sync"

	"github.com/dchest/siphash"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
)

// Cache memoizes Bottom by type shape: a function with a thousand local
// `alloca [8 x i8]`s re-derives the identical ⊥ template every time, and
// building one recurses through product.New/NewArray/NewStruct all over
// again. The cache keys on a siphash of the type value's Go-syntax
// rendering (%#v), which spells out every nested field type, so two
// types share a template only when their shapes are identical. Lookups
// return a fresh Clone of the cached template, never the template
// itself, since every caller owns its own mutable ⊥ value.
type Cache struct {
	k0, k1 uint64

	mu        sync.Mutex
	templates map[uint64]domain.Domain
}

// NewCache builds an empty cache. k0/k1 seed the siphash keyed hash;
// passing the same pair across runs only matters if cache contents are
// ever persisted, which they are not here — any fixed pair is fine.
func NewCache() *Cache {
	return &Cache{k0: 0x9ae16a3b2f90404f, k1: 0x5ca1dc1bdac98f49, templates: map[uint64]domain.Domain{}}
}

func (c *Cache) key(t ir.Type) uint64 {
	return siphash.Hash(c.k0, c.k1, []byte(fmt.Sprintf("%#v", t)))
}

// Bottom is Bottom, memoized: same shape in, a clone of the same
// template out.
func (c *Cache) Bottom(env *domain.Environment, t ir.Type) domain.Domain {
	k := c.key(t)
	c.mu.Lock()
	tmpl, ok := c.templates[k]
	c.mu.Unlock()
	if ok {
		return tmpl.Clone()
	}
	tmpl = Bottom(env, t)
	c.mu.Lock()
	c.templates[k] = tmpl
	c.mu.Unlock()
	return tmpl.Clone()
}
