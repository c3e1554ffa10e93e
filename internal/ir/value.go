package ir

import (
	"fmt"
	"strings"
)

// Value is anything that can appear as an operand.
type Value interface {
	Type() *Type
	Name() string
	// Ident is the operand spelling of the value, e.g. %x, @g or i32 5.
	Ident() string
}

// Constant is a value known at compile time.
type Constant interface {
	Value
	isConstant()
}

// Param is a formal parameter of a function.
type Param struct {
	name   string
	typ    *Type
	Index  int
	Parent *Function
}

func (p *Param) Type() *Type   { return p.typ }
func (p *Param) Name() string  { return p.name }
func (p *Param) Ident() string { return "%" + p.name }

// ConstInt is an integer literal. For i1, V is 0 or 1.
type ConstInt struct {
	Ty *Type
	V  int64
}

func (*ConstInt) isConstant()     {}
func (c *ConstInt) Type() *Type   { return c.Ty }
func (c *ConstInt) Name() string  { return "" }
func (c *ConstInt) Ident() string { return fmt.Sprintf("%s %d", c.Ty, c.V) }

// IsOne reports whether c is the integer 1.
func (c *ConstInt) IsOne() bool { return c.V == 1 }

// Null is the all-zero value of a type: a null pointer, zero integer or
// zeroinitializer aggregate.
type Null struct {
	Ty *Type
}

func (*Null) isConstant()    {}
func (n *Null) Type() *Type  { return n.Ty }
func (n *Null) Name() string { return "" }
func (n *Null) Ident() string {
	if n.Ty.IsPtr() {
		return n.Ty.String() + " null"
	}
	return n.Ty.String() + " zeroinitializer"
}

// Undef is an unspecified value.
type Undef struct {
	Ty *Type
}

func (*Undef) isConstant()     {}
func (u *Undef) Type() *Type   { return u.Ty }
func (u *Undef) Name() string  { return "" }
func (u *Undef) Ident() string { return u.Ty.String() + " undef" }

// ConstFP is a floating-point literal.
type ConstFP struct {
	Ty *Type
	V  float64
}

func (*ConstFP) isConstant()     {}
func (c *ConstFP) Type() *Type   { return c.Ty }
func (c *ConstFP) Name() string  { return "" }
func (c *ConstFP) Ident() string { return fmt.Sprintf("%s %g", c.Ty, c.V) }

// ConstExpr is a constant expression such as a cast of a global or a
// constant getelementptr.
type ConstExpr struct {
	Op Opcode
	Ty *Type
	// Source is the pointee type walked by a GEP.
	Source *Type
	Ops    []Value
}

func (*ConstExpr) isConstant()    {}
func (c *ConstExpr) Type() *Type  { return c.Ty }
func (c *ConstExpr) Name() string { return "" }
func (c *ConstExpr) Ident() string {
	parts := make([]string, len(c.Ops))
	for i, o := range c.Ops {
		parts[i] = o.Ident()
	}
	return fmt.Sprintf("%s %s (%s)", c.Ty, c.Op, strings.Join(parts, ", "))
}

// Global is a module-level variable. Its value is a pointer to ValueType.
type Global struct {
	name      string
	ValueType *Type
	// Init holds the initializer bytes in memory order, or nil when the
	// global has no known initializer.
	Init    []byte
	Section string
	Parent  *Module
}

func (*Global) isConstant()     {}
func (g *Global) Type() *Type   { return PtrTo(g.ValueType) }
func (g *Global) Name() string  { return g.name }
func (g *Global) Ident() string { return "@" + g.name }

// HasInitializer reports whether the initial contents of g are known.
func (g *Global) HasInitializer() bool { return g.Init != nil }

func Int(ty *Type, v int64) *ConstInt { return &ConstInt{Ty: ty, V: v} }

func True() *ConstInt  { return &ConstInt{Ty: I1, V: 1} }
func False() *ConstInt { return &ConstInt{Ty: I1, V: 0} }

func NullOf(ty *Type) *Null { return &Null{Ty: ty} }
