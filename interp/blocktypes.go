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

// Package interp is the fixpoint iterator (spec.md §4.9, L5): transfer
// functions per opcode, the widening manager, function-call handling, and
// the driver-facing surface (Interpreter/Iterator) spec.md §6 names.
package interp

import (
	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
)

// blockTypes remembers the static IR type each memory block was allocated
// with. package state deliberately knows nothing about ir.Type — its
// blocks hold only domain values (state/block.go) — so load/store, which
// must walk a block's layout to turn a byte offset into a field or
// element path, keeps that association here instead.
type blockTypes struct {
	m map[domain.BlockID]ir.Type
}

func newBlockTypes() *blockTypes {
	return &blockTypes{m: map[domain.BlockID]ir.Type{}}
}

func (b *blockTypes) set(id domain.BlockID, t ir.Type) { b.m[id] = t }

func (b *blockTypes) get(id domain.BlockID) (ir.Type, bool) {
	t, ok := b.m[id]
	return t, ok
}
