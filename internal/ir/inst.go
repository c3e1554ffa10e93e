package ir

import (
	"fmt"
	"strings"
)

// Opcode names binary operators, casts and the constant-expression forms.
type Opcode int

const (
	OpInvalid Opcode = iota

	Add
	Sub
	Mul
	UDiv
	SDiv
	URem
	SRem
	And
	Or
	Xor
	Shl
	LShr
	AShr

	FAdd
	FSub
	FMul
	FDiv
	FRem

	Trunc
	ZExt
	SExt
	FPTrunc
	FPExt
	FPToUI
	FPToSI
	UIToFP
	SIToFP
	PtrToInt
	IntToPtr
	BitCast

	GetElementPtr
)

var opcodeNames = map[Opcode]string{
	Add: "add", Sub: "sub", Mul: "mul", UDiv: "udiv", SDiv: "sdiv", URem: "urem", SRem: "srem",
	And: "and", Or: "or", Xor: "xor", Shl: "shl", LShr: "lshr", AShr: "ashr",
	FAdd: "fadd", FSub: "fsub", FMul: "fmul", FDiv: "fdiv", FRem: "frem",
	Trunc: "trunc", ZExt: "zext", SExt: "sext", FPTrunc: "fptrunc", FPExt: "fpext",
	FPToUI: "fptoui", FPToSI: "fptosi", UIToFP: "uitofp", SIToFP: "sitofp",
	PtrToInt: "ptrtoint", IntToPtr: "inttoptr", BitCast: "bitcast",
	GetElementPtr: "getelementptr",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "invalid"
}

// ParseOpcode returns the opcode spelled s.
func ParseOpcode(s string) (Opcode, bool) {
	for op, name := range opcodeNames {
		if name == s {
			return op, true
		}
	}
	return OpInvalid, false
}

func (o Opcode) IsBinary() bool   { return o >= Add && o <= FRem }
func (o Opcode) IsFloating() bool { return o >= FAdd && o <= FRem || o >= FPTrunc && o <= SIToFP }
func (o Opcode) IsCast() bool     { return o >= Trunc && o <= BitCast }

// Predicate is an integer comparison relation.
type Predicate int

const (
	ICmpEQ Predicate = iota
	ICmpNE
	ICmpUGT
	ICmpUGE
	ICmpULT
	ICmpULE
	ICmpSGT
	ICmpSGE
	ICmpSLT
	ICmpSLE
)

var predicateNames = [...]string{"eq", "ne", "ugt", "uge", "ult", "ule", "sgt", "sge", "slt", "sle"}

func (p Predicate) String() string {
	if int(p) < len(predicateNames) {
		return predicateNames[p]
	}
	return "invalid"
}

func ParsePredicate(s string) (Predicate, bool) {
	for i, n := range predicateNames {
		if n == s {
			return Predicate(i), true
		}
	}
	return 0, false
}

// Instruction is an IR instruction. The set of instruction kinds is closed:
// only types of this package implement it.
type Instruction interface {
	Value
	Operands() []Value
	Parent() *Block
	Shadow() *ShadowMeta
	String() string
	base() *instr
}

type instr struct {
	name   string
	typ    *Type
	ops    []Value
	parent *Block
	shadow *ShadowMeta
}

func (i *instr) base() *instr        { return i }
func (i *instr) Type() *Type         { return i.typ }
func (i *instr) Name() string        { return i.name }
func (i *instr) Operands() []Value   { return i.ops }
func (i *instr) Operand(n int) Value { return i.ops[n] }
func (i *instr) Parent() *Block      { return i.parent }
func (i *instr) Shadow() *ShadowMeta { return i.shadow }

// SetShadow attaches points-to metadata to the instruction.
func (i *instr) SetShadow(m *ShadowMeta) { i.shadow = m }

func (i *instr) Ident() string {
	if i.name == "" {
		return "<unnamed>"
	}
	return "%" + i.name
}

func (i *instr) format(opcode string, extra ...string) string {
	var sb strings.Builder
	if i.name != "" && !i.typ.IsVoid() {
		fmt.Fprintf(&sb, "%%%s = ", i.name)
	}
	sb.WriteString(opcode)
	parts := make([]string, 0, len(i.ops)+len(extra))
	for _, o := range i.ops {
		if o == nil {
			continue
		}
		parts = append(parts, o.Ident())
	}
	parts = append(parts, extra...)
	if len(parts) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}

type BinOp struct {
	instr
	Op Opcode
}

func (b *BinOp) X() Value       { return b.ops[0] }
func (b *BinOp) Y() Value       { return b.ops[1] }
func (b *BinOp) String() string { return b.format(b.Op.String()) }

type ICmp struct {
	instr
	Pred Predicate
}

func (c *ICmp) String() string { return c.format("icmp " + c.Pred.String()) }

type FCmp struct {
	instr
}

func (c *FCmp) String() string { return c.format("fcmp") }

// Alloca reserves stack space for Count elements of Allocated. A nil
// count means one element.
type Alloca struct {
	instr
	Allocated *Type
	Align     int
}

func (a *Alloca) Count() Value { return a.ops[0] }
func (a *Alloca) String() string {
	return a.format("alloca "+a.Allocated.String(), fmt.Sprintf("align %d", a.Align))
}

type Load struct {
	instr
	Align int
}

func (l *Load) Ptr() Value     { return l.ops[0] }
func (l *Load) String() string { return l.format("load", fmt.Sprintf("align %d", l.Align)) }

type Store struct {
	instr
	Align int
}

func (s *Store) Val() Value     { return s.ops[0] }
func (s *Store) Ptr() Value     { return s.ops[1] }
func (s *Store) String() string { return s.format("store", fmt.Sprintf("align %d", s.Align)) }

// GEP computes an address from a base pointer and a list of indices
// walking Source.
type GEP struct {
	instr
	Source *Type
}

func (g *GEP) Base() Value      { return g.ops[0] }
func (g *GEP) Indices() []Value { return g.ops[1:] }
func (g *GEP) String() string   { return g.format("getelementptr " + g.Source.String()) }

type Cast struct {
	instr
	Op Opcode
}

func (c *Cast) Src() Value { return c.ops[0] }
func (c *Cast) String() string {
	return c.format(c.Op.String(), "to "+c.typ.String())
}

type Select struct {
	instr
}

func (s *Select) Cond() Value    { return s.ops[0] }
func (s *Select) True() Value    { return s.ops[1] }
func (s *Select) False() Value   { return s.ops[2] }
func (s *Select) String() string { return s.format("select") }

// Phi selects an incoming value by predecessor: Operands()[i] flows in
// from Blocks[i].
type Phi struct {
	instr
	Blocks []*Block
}

// AddIncoming appends an incoming pair.
func (p *Phi) AddIncoming(v Value, from *Block) {
	p.ops = append(p.ops, v)
	p.Blocks = append(p.Blocks, from)
}

// IncomingFor returns the value flowing in from pred.
func (p *Phi) IncomingFor(pred *Block) (Value, bool) {
	for i, b := range p.Blocks {
		if b == pred {
			return p.ops[i], true
		}
	}
	return nil, false
}

func (p *Phi) String() string {
	parts := make([]string, len(p.ops))
	for i, v := range p.ops {
		parts[i] = fmt.Sprintf("[ %s, %s ]", v.Ident(), p.Blocks[i].Ident())
	}
	return fmt.Sprintf("%%%s = phi %s %s", p.name, p.typ, strings.Join(parts, ", "))
}

// Call invokes Operands()[0] with the remaining operands as arguments.
type Call struct {
	instr
}

func (c *Call) Callee() Value   { return c.ops[0] }
func (c *Call) Args() []Value   { return c.ops[1:] }
func (c *Call) Arg(i int) Value { return c.ops[i+1] }

// CalledFunction returns the direct callee, or nil for indirect calls.
func (c *Call) CalledFunction() *Function {
	fn, _ := c.ops[0].(*Function)
	return fn
}

func (c *Call) String() string { return c.format("call") }

type Invoke struct {
	instr
}

func (i *Invoke) String() string { return i.format("invoke") }

type Ret struct {
	instr
}

// Val returns the returned value, or nil for ret void.
func (r *Ret) Val() Value {
	if len(r.ops) == 0 {
		return nil
	}
	return r.ops[0]
}

func (r *Ret) String() string { return r.format("ret") }

// Br is an unconditional branch when Succs has one entry, otherwise a
// conditional branch on Operands()[0] to Succs[0] (true) or Succs[1].
type Br struct {
	instr
	Succs []*Block
}

func (b *Br) IsConditional() bool { return len(b.Succs) == 2 }

func (b *Br) Cond() Value {
	if !b.IsConditional() {
		return nil
	}
	return b.ops[0]
}

func (b *Br) String() string {
	labels := make([]string, len(b.Succs))
	for i, s := range b.Succs {
		labels[i] = "label " + s.Ident()
	}
	return b.format("br", labels...)
}

type Switch struct {
	instr
}

func (s *Switch) String() string { return s.format("switch") }

type IndirectBr struct {
	instr
}

func (b *IndirectBr) String() string { return b.format("indirectbr") }

type Unreachable struct {
	instr
}

func (u *Unreachable) String() string { return "unreachable" }

type VAArg struct {
	instr
}

func (v *VAArg) String() string { return v.format("va_arg") }

// VectorOp covers extractelement, insertelement and shufflevector.
type VectorOp struct {
	instr
	Opcode string
}

func (v *VectorOp) String() string { return v.format(v.Opcode) }

// IsTerminator reports whether inst ends a basic block.
func IsTerminator(inst Instruction) bool {
	switch inst.(type) {
	case *Ret, *Br, *Switch, *IndirectBr, *Unreachable, *Invoke:
		return true
	}
	return false
}
