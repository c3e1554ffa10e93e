package ir

// Builder appends instructions at the end of a block.
type Builder struct {
	block *Block
}

func NewBuilder(b *Block) *Builder { return &Builder{block: b} }

// SetBlock moves the insertion point to the end of b.
func (bd *Builder) SetBlock(b *Block) { bd.block = b }

func (bd *Builder) Block() *Block { return bd.block }

func (bd *Builder) insert(inst Instruction) {
	markAddressTaken(inst)
	bd.block.Append(inst)
}

// markAddressTaken flags every function used as an operand other than the
// callee of a direct call.
func markAddressTaken(inst Instruction) {
	ops := inst.Operands()
	if _, ok := inst.(*Call); ok && len(ops) > 0 {
		ops = ops[1:]
	}
	for _, op := range ops {
		if fn, ok := op.(*Function); ok {
			fn.AddressTaken = true
		}
	}
}

func (bd *Builder) BinOp(name string, op Opcode, x, y Value) *BinOp {
	inst := &BinOp{instr: instr{name: name, typ: x.Type(), ops: []Value{x, y}}, Op: op}
	bd.insert(inst)
	return inst
}

func (bd *Builder) ICmp(name string, pred Predicate, x, y Value) *ICmp {
	inst := &ICmp{instr: instr{name: name, typ: I1, ops: []Value{x, y}}, Pred: pred}
	bd.insert(inst)
	return inst
}

func (bd *Builder) FCmp(name string, x, y Value) *FCmp {
	inst := &FCmp{instr: instr{name: name, typ: I1, ops: []Value{x, y}}}
	bd.insert(inst)
	return inst
}

// Alloca reserves count elements of ty. A nil count allocates one element.
func (bd *Builder) Alloca(name string, ty *Type, count Value, align int) *Alloca {
	if count == nil {
		count = Int(I32, 1)
	}
	inst := &Alloca{instr: instr{name: name, typ: PtrTo(ty), ops: []Value{count}}, Allocated: ty, Align: align}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Load(name string, ty *Type, ptr Value, align int) *Load {
	inst := &Load{instr: instr{name: name, typ: ty, ops: []Value{ptr}}, Align: align}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Store(val, ptr Value, align int) *Store {
	inst := &Store{instr: instr{typ: Void, ops: []Value{val, ptr}}, Align: align}
	bd.insert(inst)
	return inst
}

// GEP indexes into source starting from base. The result type is a pointer
// to the type reached by the indices.
func (bd *Builder) GEP(name string, source *Type, base Value, indices ...Value) *GEP {
	ops := append([]Value{base}, indices...)
	inst := &GEP{instr: instr{name: name, typ: PtrTo(IndexedType(source, indices)), ops: ops}, Source: source}
	bd.insert(inst)
	return inst
}

// IndexedType returns the type reached by walking indices from source. The
// first index steps over the pointer.
func IndexedType(source *Type, indices []Value) *Type {
	t := source
	for _, idx := range indices[min(1, len(indices)):] {
		switch t.Kind {
		case StructTy:
			c, ok := idx.(*ConstInt)
			if !ok || int(c.V) >= len(t.Fields) {
				return t
			}
			t = t.Fields[c.V]
		case ArrayTy, VectorTy:
			t = t.Elem
		default:
			return t
		}
	}
	return t
}

func (bd *Builder) Cast(name string, op Opcode, src Value, to *Type) *Cast {
	inst := &Cast{instr: instr{name: name, typ: to, ops: []Value{src}}, Op: op}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Select(name string, cond, t, f Value) *Select {
	inst := &Select{instr: instr{name: name, typ: t.Type(), ops: []Value{cond, t, f}}}
	bd.insert(inst)
	return inst
}

// Phi adds a phi node with no incoming values. Phis must be created before
// the other instructions of the block.
func (bd *Builder) Phi(name string, ty *Type) *Phi {
	inst := &Phi{instr: instr{name: name, typ: ty}}
	bd.insert(inst)
	return inst
}

// Call calls callee. The result type is the callee's return type.
func (bd *Builder) Call(name string, callee Value, args ...Value) *Call {
	ret := Void
	if sig := calleeSig(callee); sig != nil {
		ret = sig.Ret
	}
	inst := &Call{instr: instr{name: name, typ: ret, ops: append([]Value{callee}, args...)}}
	bd.insert(inst)
	return inst
}

// ShadowCall emits a call into the shadow-memory protocol carrying meta.
func (bd *Builder) ShadowCall(name string, callee *Function, meta *ShadowMeta, args ...Value) *Call {
	inst := bd.Call(name, callee, args...)
	inst.SetShadow(meta)
	return inst
}

func calleeSig(v Value) *Type {
	if fn, ok := v.(*Function); ok {
		return fn.Sig
	}
	if t := v.Type(); t.IsPtr() && t.Elem != nil && t.Elem.Kind == FuncTy {
		return t.Elem
	}
	return nil
}

func (bd *Builder) Invoke(callee Value, args ...Value) *Invoke {
	inst := &Invoke{instr: instr{typ: Void, ops: append([]Value{callee}, args...)}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Ret(v Value) *Ret {
	inst := &Ret{instr: instr{typ: Void}}
	if v != nil {
		inst.ops = []Value{v}
	}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Br(dst *Block) *Br {
	inst := &Br{instr: instr{typ: Void}, Succs: []*Block{dst}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) CondBr(cond Value, t, f *Block) *Br {
	inst := &Br{instr: instr{typ: Void, ops: []Value{cond}}, Succs: []*Block{t, f}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Switch(cond Value) *Switch {
	inst := &Switch{instr: instr{typ: Void, ops: []Value{cond}}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) IndirectBr(addr Value) *IndirectBr {
	inst := &IndirectBr{instr: instr{typ: Void, ops: []Value{addr}}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) Unreachable() *Unreachable {
	inst := &Unreachable{instr: instr{typ: Void}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) VAArg(name string, list Value, ty *Type) *VAArg {
	inst := &VAArg{instr: instr{name: name, typ: ty, ops: []Value{list}}}
	bd.insert(inst)
	return inst
}

func (bd *Builder) VectorOp(name, opcode string, ty *Type, ops ...Value) *VectorOp {
	inst := &VectorOp{instr: instr{name: name, typ: ty, ops: ops}, Opcode: opcode}
	bd.insert(inst)
	return inst
}
