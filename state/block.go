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

// Package state implements the memory state a basic block or function
// carries between instructions (spec.md §3.4): the variables map, the
// block map, the returned-value slot, and the variadic-args map, plus
// the copy-on-write sharing discipline that makes cloning a State on
// every branch affordable (spec.md §4.3, §5).
package state

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/karelklic/absint/domain"
)

// Kind tags the lifetime of a memory block.
type Kind int

const (
	Stack Kind = iota
	Heap
)

func (k Kind) String() string {
	if k == Heap {
		return "heap"
	}
	return "stack"
}

// cell is the reference-counted payload a Block shares across States. The
// refcount is a plain int, not atomic: spec.md §5 is explicit that the
// interpreter is single-threaded and single-cooperative, so the sharing
// discipline the teacher's dcache.mapping uses (refcount only touched
// under the owning lock) degenerates here to "only touched by the one
// goroutine running the iterator."
type cell struct {
	kind     Kind
	contents domain.Domain
	refcount int
}

// Block is a named region of storage (spec.md §3.2): a stack slot, heap
// allocation, or global. Multiple States may share the same underlying
// cell; Mutable clones it first if anyone else still holds a reference.
type Block struct {
	id uuid.UUID
	c  *cell
}

// NewBlock creates a fresh block with refcount 1, owned solely by the
// caller.
func NewBlock(id uuid.UUID, kind Kind, contents domain.Domain) *Block {
	return &Block{id: id, c: &cell{kind: kind, contents: contents, refcount: 1}}
}

// ID returns the block's identity, usable as a domain.BlockID.
func (b *Block) ID() uuid.UUID { return b.id }

// Kind reports whether this is a stack or heap block.
func (b *Block) Kind() Kind { return b.c.kind }

// Contents returns the block's current aggregate domain. Safe to read
// without acquiring a unique handle; callers that plan to mutate must go
// through Mutable first.
func (b *Block) Contents() domain.Domain { return b.c.contents }

// Share returns a new Block handle pointing at the same cell, bumping
// the refcount. Used when a State is cloned (spec.md §4.3): the clone
// gets its own Block struct but shares the cell until one side mutates.
func (b *Block) Share() *Block {
	b.c.refcount++
	return &Block{id: b.id, c: b.c}
}

// Mutable returns a handle to this block's cell that only this Block
// instance's owner can see, cloning the cell first if anyone else is
// still sharing it (copy-on-write, spec.md §4.3). The returned Block
// replaces the receiver's cell in place, so callers should always treat
// Mutable's result as "what b now points to."
func (b *Block) Mutable() *Block {
	if b.c.refcount == 1 {
		return b
	}
	b.c.refcount--
	b.c = &cell{kind: b.c.kind, contents: b.c.contents.Clone(), refcount: 1}
	return b
}

// SetContents replaces this block's contents, requiring a unique handle
// to avoid mutating a cell another State is still observing.
func (b *Block) SetContents(v domain.Domain) {
	if b.c.refcount != 1 {
		panic(fmt.Sprintf("state: Block %s mutated without a unique handle (refcount=%d)", b.id, b.c.refcount))
	}
	b.c.contents = v
}

// Clone returns an independent Block equal in value to b but sharing
// storage until either side mutates.
func (b *Block) Clone() *Block { return b.Share() }

// Equals is structural equality on the block's kind and contents, not
// identity: two states holding blocks with the same id can diverge only
// by mutating through Mutable, so comparing contents is sufficient.
func (b *Block) Equals(o *Block) bool {
	return b.id == o.id && b.c.kind == o.c.kind && b.c.contents.Equals(o.c.contents)
}

// Join merges o's contents into b in place, first taking a unique handle
// through Mutable.
func (b *Block) Join(o *Block) {
	b.Mutable().c.contents = b.c.contents.Join(o.c.contents)
}
