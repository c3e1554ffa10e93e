package opsem

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/mem"
)

// GetConstantValue folds the constant k into an expression. The result is
// expr.Nil for constants without an encoding, such as floating-point ones.
func (c *Context) GetConstantValue(k ir.Constant) (expr.Expr, error) {
	a := c.m.alu
	switch k := k.(type) {
	case *ir.ConstInt:
		if k.Ty.IsBool() {
			return a.SI(k.V&1, 1), nil
		}
		return a.SI(k.V, k.Ty.Bits), nil
	case *ir.Null:
		switch {
		case k.Ty.IsPtr():
			return c.m.mem.NullPtr(), nil
		case k.Ty.IsInt():
			return a.SI(0, k.Ty.Bits), nil
		}
	case *ir.Undef:
		if k.Ty.IsInt() {
			return a.SI(0, k.Ty.Bits), nil
		}
	case *ir.ConstFP:
	case *ir.Global:
		return c.m.mem.PtrToGlobal(k), nil
	case *ir.Function:
		return c.m.mem.PtrToFunction(k), nil
	case *ir.ConstExpr:
		return c.foldConstExpr(k)
	}
	c.m.log.Debug("constant without an encoding", zap.String("constant", k.Ident()))
	return expr.Nil, nil
}

func (c *Context) foldConstExpr(k *ir.ConstExpr) (expr.Expr, error) {
	ops := make([]expr.Expr, len(k.Ops))
	for i, o := range k.Ops {
		kc, ok := o.(ir.Constant)
		if !ok {
			return expr.Nil, fmt.Errorf("constant expression %s has a non-constant operand: %w", k.Ident(), ErrUnsupported)
		}
		v, err := c.GetConstantValue(kc)
		if err != nil {
			return expr.Nil, err
		}
		if v == expr.Nil && !(k.Op == ir.GetElementPtr && i > 0) {
			return expr.Nil, nil
		}
		ops[i] = v
	}

	switch {
	case k.Op == ir.GetElementPtr:
		if k.Source == nil || len(ops) == 0 {
			return expr.Nil, fmt.Errorf("constant gep %s: %w", k.Ident(), ErrUnsupported)
		}
		idx, err := c.gepIndices(k.Ops[1:], ops[1:])
		if err != nil {
			return expr.Nil, err
		}
		return c.m.mem.GEP(ops[0], k.Source, idx)
	case k.Op.IsBinary():
		if len(ops) != 2 {
			return expr.Nil, fmt.Errorf("constant %s needs two operands: %w", k.Op, ir.ErrMalformed)
		}
		return c.binOp(k.Op, ops[0], ops[1], k.Ops[0].Type())
	case k.Op.IsCast():
		if len(ops) != 1 {
			return expr.Nil, fmt.Errorf("constant %s needs one operand: %w", k.Op, ir.ErrMalformed)
		}
		return c.cast(k.Op, ops[0], k.Ops[0].Type(), k.Ty)
	}
	return expr.Nil, fmt.Errorf("constant expression %s: %w", k.Ident(), ErrUnsupported)
}

// gepIndices turns index operands into constant steps where possible.
func (c *Context) gepIndices(vals []ir.Value, exprs []expr.Expr) ([]mem.GEPIndex, error) {
	idx := make([]mem.GEPIndex, len(vals))
	for i, v := range vals {
		if ci, ok := v.(*ir.ConstInt); ok {
			idx[i] = mem.GEPIndex{Const: ci.V}
			continue
		}
		e := exprs[i]
		if e == expr.Nil {
			return nil, fmt.Errorf("gep index %s has no value: %w", v.Ident(), ErrUnsupported)
		}
		if n, ok := c.m.alu.ToInt64(e); ok {
			idx[i] = mem.GEPIndex{Const: n}
			continue
		}
		idx[i] = mem.GEPIndex{Sym: e}
	}
	return idx, nil
}
