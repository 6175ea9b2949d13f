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

package llvmir

import "github.com/karelklic/absint/ir"

// Module, Function, Block, Param, and Global are the concrete types this
// adapter builds; they satisfy package ir's provider interfaces (§6.1)
// directly, with no further indirection back into llir/llvm once
// Translate has returned.

// Module is a fully-translated LLVM module.
type Module struct {
	fns     []ir.Function
	globals []ir.Global
}

func (m *Module) Functions() []ir.Function { return m.fns }
func (m *Module) Globals() []ir.Global     { return m.globals }

// Function is a fully-translated function definition or declaration.
type Function struct {
	id      string
	params  []ir.Value
	blocks  []ir.Block
	retType ir.Type
	decl    bool
}

func (f *Function) Ident() string     { return f.id }
func (f *Function) Params() []ir.Value { return f.params }
func (f *Function) Blocks() []ir.Block { return f.blocks }
func (f *Function) ReturnType() ir.Type { return f.retType }
func (f *Function) Declaration() bool  { return f.decl }

// Block is a fully-translated basic block.
type Block struct {
	id    string
	insts []ir.Instruction
	term  ir.Instruction
	preds []ir.Block
}

func (b *Block) Ident() string                  { return b.id }
func (b *Block) Instructions() []ir.Instruction { return b.insts }
func (b *Block) Terminator() ir.Instruction      { return b.term }
func (b *Block) Predecessors() []ir.Block        { return b.preds }

// Param is a function parameter.
type Param struct {
	id string
	ty ir.Type
}

func (p *Param) Ident() string { return p.id }
func (p *Param) Type() ir.Type { return p.ty }

// Global is a module-level variable.
type Global struct {
	id      string
	ty      ir.Type
	init    ir.Constant
	isConst bool
}

func (g *Global) Ident() string            { return g.id }
func (g *Global) Type() ir.Type            { return g.ty }
func (g *Global) Initializer() ir.Constant { return g.init }
func (g *Global) Constant() bool           { return g.isConst }
