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

package interp

import (
	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/ir"
)

// fakeTargetData is a minimal byte-packed ir.TargetData, the same shape
// package types tests itself against.
type fakeTargetData struct{ ptrWidth uint }

func (d fakeTargetData) SizeOf(t ir.Type) int64 {
	switch v := t.(type) {
	case ir.IntType:
		return int64(v.Width+7) / 8
	case ir.FloatType:
		if v.Semantics == ir.Double {
			return 8
		}
		return 4
	case ir.PointerType:
		return int64(d.ptrWidth / 8)
	case ir.ArrayType:
		return v.Len * d.SizeOf(v.Elem)
	case ir.VectorType:
		return v.Len * d.SizeOf(v.Elem)
	case ir.StructType:
		var total int64
		for _, f := range v.Fields {
			total += d.SizeOf(f)
		}
		return total
	default:
		return 0
	}
}

func (d fakeTargetData) AlignOf(t ir.Type) int64 { return d.SizeOf(t) }
func (d fakeTargetData) PointerWidth() uint       { return d.ptrWidth }

func testEnv() *domain.Environment { return &domain.Environment{SetThreshold: 20} }

// reg is a bare SSA value: an instruction result or a function parameter,
// wherever a test needs one without building a whole Instruction.
type reg struct {
	id string
	ty ir.Type
}

func (r reg) Ident() string { return r.id }
func (r reg) Type() ir.Type { return r.ty }

type fakeBlock struct {
	name  string
	instr []ir.Instruction
	term  ir.Instruction
	preds []ir.Block
}

func (b *fakeBlock) Ident() string                  { return b.name }
func (b *fakeBlock) Instructions() []ir.Instruction { return b.instr }
func (b *fakeBlock) Terminator() ir.Instruction      { return b.term }
func (b *fakeBlock) Predecessors() []ir.Block        { return b.preds }

type fakeFunction struct {
	name   string
	params []ir.Value
	blocks []ir.Block
	ret    ir.Type
	decl   bool
}

func (f *fakeFunction) Ident() string       { return f.name }
func (f *fakeFunction) Params() []ir.Value  { return f.params }
func (f *fakeFunction) Blocks() []ir.Block  { return f.blocks }
func (f *fakeFunction) ReturnType() ir.Type { return f.ret }
func (f *fakeFunction) Declaration() bool   { return f.decl }

type fakeGlobal struct {
	name string
	ty   ir.Type
	init ir.Constant
	cst  bool
}

func (g *fakeGlobal) Ident() string        { return g.name }
func (g *fakeGlobal) Type() ir.Type        { return g.ty }
func (g *fakeGlobal) Initializer() ir.Constant { return g.init }
func (g *fakeGlobal) Constant() bool       { return g.cst }

type fakeModule struct {
	fns     []ir.Function
	globals []ir.Global
}

func (m *fakeModule) Functions() []ir.Function { return m.fns }
func (m *fakeModule) Globals() []ir.Global     { return m.globals }

// singleBlockModule wraps one function made of the given blocks (entry
// first) into a module, the shape most transfer-function and end-to-end
// tests need.
func singleBlockModule(fnName string, params []ir.Value, blocks []ir.Block, ret ir.Type) *fakeModule {
	fn := &fakeFunction{name: fnName, params: params, blocks: blocks, ret: ret}
	return &fakeModule{fns: []ir.Function{fn}}
}
