package ir

import (
	"strings"
	"sync"
)

// Block is a basic block. Phi nodes, if any, come first and the last
// instruction is the terminator.
type Block struct {
	name   string
	Parent *Function
	Insts  []Instruction
}

func (b *Block) Type() *Type   { return Label }
func (b *Block) Name() string  { return b.name }
func (b *Block) Ident() string { return "%" + b.name }

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if !IsTerminator(last) {
		return nil
	}
	return last
}

// Phis returns the phi nodes at the head of the block.
func (b *Block) Phis() []*Phi {
	var phis []*Phi
	for _, inst := range b.Insts {
		phi, ok := inst.(*Phi)
		if !ok {
			break
		}
		phis = append(phis, phi)
	}
	return phis
}

// Succs returns the successor blocks named by the terminator.
func (b *Block) Succs() []*Block {
	if br, ok := b.Terminator().(*Br); ok {
		return br.Succs
	}
	return nil
}

// Append adds inst at the end of the block.
func (b *Block) Append(inst Instruction) {
	inst.base().parent = b
	b.Insts = append(b.Insts, inst)
	b.Parent.invalidate()
}

// Replace substitutes repl for old in place.
func (b *Block) Replace(old, repl Instruction) bool {
	for i, inst := range b.Insts {
		if inst == old {
			repl.base().parent = b
			b.Insts[i] = repl
			b.Parent.invalidate()
			return true
		}
	}
	return false
}

// Remove deletes inst from the block.
func (b *Block) Remove(inst Instruction) bool {
	for i, cur := range b.Insts {
		if cur == inst {
			b.Insts = append(b.Insts[:i], b.Insts[i+1:]...)
			b.Parent.invalidate()
			return true
		}
	}
	return false
}

// Function is a defined function or, when it has no blocks, a declaration.
type Function struct {
	name   string
	Sig    *Type
	Params []*Param
	Blocks []*Block
	// AddressTaken is set when the function is used other than as a
	// direct callee.
	AddressTaken bool
	// CanFail is set when an error location is reachable from the function.
	CanFail bool
	Parent  *Module
}

func (f *Function) Type() *Type   { return PtrTo(f.Sig) }
func (f *Function) Name() string  { return f.name }
func (f *Function) Ident() string { return "@" + f.name }
func (*Function) isConstant()     {}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// IsIntrinsic reports whether the function is an llvm.* intrinsic.
func (f *Function) IsIntrinsic() bool { return strings.HasPrefix(f.name, "llvm.") }

// IsMain reports whether f is the program entry point.
func (f *Function) IsMain() bool { return f.name == "main" }

// Entry returns the entry block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock appends an empty block.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{name: name, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block returns the block called name.
func (f *Function) Block(name string) *Block {
	for _, b := range f.Blocks {
		if b.name == name {
			return b
		}
	}
	return nil
}

// Preds returns the predecessors of b.
func (f *Function) Preds(b *Block) []*Block {
	var preds []*Block
	for _, p := range f.Blocks {
		for _, s := range p.Succs() {
			if s == b {
				preds = append(preds, p)
				break
			}
		}
	}
	return preds
}

// ReplaceAllUsesWith rewrites every operand of the function equal to old.
func (f *Function) ReplaceAllUsesWith(old, repl Value) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			ops := inst.base().ops
			for i := range ops {
				if ops[i] == old {
					ops[i] = repl
				}
			}
		}
	}
	f.invalidate()
}

func (f *Function) invalidate() {
	if f != nil && f.Parent != nil {
		f.Parent.invalidate()
	}
}

// FunctionInfo names the values a callee's summary predicate ranges over, in
// the order the predicate expects them after the three fixed parameters.
type FunctionInfo struct {
	Fn      *Function
	Regions []Value
	Args    []*Param
	Globals []*Global
	Ret     Value
}

// Arity is the domain size of the summary predicate: the path condition,
// the incoming and outgoing error flags, then regions, args, globals and
// the return value.
func (fi *FunctionInfo) Arity() int {
	n := 3 + len(fi.Regions) + len(fi.Args) + len(fi.Globals)
	if fi.Ret != nil {
		n++
	}
	return n
}

// Module is a whole IR program.
type Module struct {
	Name      string
	Functions []*Function
	Globals   []*Global
	Summaries []*FunctionInfo
	Layout    *DataLayout

	usesMu sync.Mutex
	uses   map[Value][]Instruction
}

func NewModule(name string, layout *DataLayout) *Module {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Module{Name: name, Layout: layout}
}

// NewFunction adds a defined function with the given parameter names.
func (m *Module) NewFunction(name string, sig *Type, params ...string) *Function {
	fn := &Function{name: name, Sig: sig, Parent: m}
	for i, t := range sig.Params {
		pname := ""
		if i < len(params) {
			pname = params[i]
		}
		fn.Params = append(fn.Params, &Param{name: pname, typ: t, Index: i, Parent: fn})
	}
	m.Functions = append(m.Functions, fn)
	m.invalidate()
	return fn
}

// Declare adds a function without a body. Declaring an existing name
// returns the existing function.
func (m *Module) Declare(name string, sig *Type) *Function {
	if fn := m.Function(name); fn != nil {
		return fn
	}
	return m.NewFunction(name, sig)
}

// NewGlobal adds a global variable.
func (m *Module) NewGlobal(name string, ty *Type, init []byte) *Global {
	g := &Global{name: name, ValueType: ty, Init: init, Parent: m}
	m.Globals = append(m.Globals, g)
	return g
}

func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.name == name {
			return fn
		}
	}
	return nil
}

func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

// SummaryOf returns the summary registered for fn.
func (m *Module) SummaryOf(fn *Function) *FunctionInfo {
	for _, s := range m.Summaries {
		if s.Fn == fn {
			return s
		}
	}
	return nil
}

func (m *Module) invalidate() {
	m.usesMu.Lock()
	m.uses = nil
	m.usesMu.Unlock()
}

// Uses returns the instructions that have v as an operand.
func (m *Module) Uses(v Value) []Instruction {
	m.usesMu.Lock()
	defer m.usesMu.Unlock()
	if m.uses == nil {
		m.uses = make(map[Value][]Instruction)
		for _, fn := range m.Functions {
			for _, b := range fn.Blocks {
				for _, inst := range b.Insts {
					for _, op := range inst.Operands() {
						if op != nil {
							m.uses[op] = append(m.uses[op], inst)
						}
					}
				}
			}
		}
	}
	return m.uses[v]
}
