package opsem

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
)

// fail records the first error of the current instruction. Later
// operations of the same instruction see absent values.
func (c *Context) fail(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

func (c *Context) takeErr() error {
	err := c.err
	c.err = nil
	return err
}

func unsupported(inst ir.Instruction) error {
	return fmt.Errorf("%s: %w", inst, ErrUnsupported)
}

// lookup returns the current value of an operand, or expr.Nil when it has
// none.
func (c *Context) lookup(v ir.Value) expr.Expr {
	if c.err != nil || v == nil {
		return expr.Nil
	}
	if c.m.skipped(v) {
		return expr.Nil
	}
	switch v := v.(type) {
	case *ir.Block:
		if reg := c.GetRegister(v); reg != expr.Nil {
			return c.Read(reg)
		}
		return expr.Nil
	case *ir.Param:
		reg, err := c.MkRegister(v)
		if err != nil {
			c.fail(err)
			return expr.Nil
		}
		return c.Read(reg)
	case ir.Constant:
		if reg := c.GetRegister(v); reg != expr.Nil {
			return c.Read(reg)
		}
		k, err := c.GetConstantValue(v)
		c.fail(err)
		return k
	}
	if reg := c.GetRegister(v); reg != expr.Nil {
		return c.Read(reg)
	}
	c.m.log.Warn("no register for operand", zap.String("value", v.Ident()))
	return expr.Nil
}

// write binds v to val, creating its register if needed.
func (c *Context) write(v ir.Value, val expr.Expr) {
	if c.err != nil || c.m.skipped(v) {
		return
	}
	reg, err := c.MkRegister(v)
	if err != nil {
		c.fail(err)
		return
	}
	c.Write(reg, val)
}

// havoc binds v to a fresh value in the encoding of its register.
func (c *Context) havoc(v ir.Value) expr.Expr {
	if c.err != nil || c.m.skipped(v) {
		return expr.Nil
	}
	reg, err := c.MkRegister(v)
	if err != nil {
		c.fail(err)
		return expr.Nil
	}
	h := c.m.mem.Coerce(reg, c.Havoc(reg))
	c.Write(reg, h)
	return h
}

// setValue writes val to v. An absent value is a modeling gap: v is
// havoced and recorded as approximated.
func (c *Context) setValue(v ir.Value, val expr.Expr) {
	if c.err != nil {
		return
	}
	if val != expr.Nil {
		c.write(v, val)
		return
	}
	c.unhandled(v)
	c.havoc(v)
}

func (c *Context) unhandled(v ir.Value) {
	if c.isIgnored(v) {
		return
	}
	c.ignore(v)
	c.approx = append(c.approx, v)
	fields := []zap.Field{zap.String("value", v.Ident())}
	if inst, ok := v.(ir.Instruction); ok && inst.Parent() != nil {
		fields = append(fields, zap.String("block", inst.Parent().Name()))
		if fn := inst.Parent().Parent; fn != nil {
			fields = append(fields, zap.String("function", fn.Name()))
		}
	}
	c.m.log.Debug("unhandled value, using a fresh value", fields...)
}

// exec runs one instruction other than a phi node.
func (c *Context) exec(inst ir.Instruction) error {
	switch inst := inst.(type) {
	case *ir.Ret:
		if !c.fn.IsMain() && inst.Val() != nil {
			c.lookup(inst.Val())
		}
	case *ir.Br:
		if inst.IsConditional() {
			c.lookup(inst.Cond())
		}
	case *ir.Unreachable:
	case *ir.BinOp:
		ty := inst.X().Type()
		if inst.Op.IsFloating() || ty.IsVector() {
			return unsupported(inst)
		}
		x, y := c.lookup(inst.X()), c.lookup(inst.Y())
		res := expr.Nil
		if x != expr.Nil && y != expr.Nil {
			var err error
			res, err = c.binOp(inst.Op, x, y, ty)
			if err != nil {
				return fmt.Errorf("%s: %w", inst, err)
			}
		}
		c.setValue(inst, res)
	case *ir.ICmp:
		ty := inst.Operand(0).Type()
		x, y := c.lookup(inst.Operand(0)), c.lookup(inst.Operand(1))
		res := expr.Nil
		if x != expr.Nil && y != expr.Nil {
			var err error
			res, err = c.icmp(inst.Pred, x, y, ty)
			if err != nil {
				return fmt.Errorf("%s: %w", inst, err)
			}
		}
		c.setValue(inst, res)
	case *ir.Alloca:
		c.execAlloca(inst)
	case *ir.Load:
		c.execLoad(inst)
	case *ir.Store:
		c.execStore(inst)
	case *ir.GEP:
		c.execGEP(inst)
	case *ir.Cast:
		if inst.Op.IsFloating() || inst.Type().IsVector() || inst.Src().Type().IsVector() {
			return unsupported(inst)
		}
		x := c.lookup(inst.Src())
		res := expr.Nil
		if x != expr.Nil {
			var err error
			res, err = c.cast(inst.Op, x, inst.Src().Type(), inst.Type())
			if err != nil {
				return fmt.Errorf("%s: %w", inst, err)
			}
		}
		c.setValue(inst, res)
	case *ir.Select:
		if inst.Type().IsVector() {
			return unsupported(inst)
		}
		cond, t, f := c.lookup(inst.Cond()), c.lookup(inst.True()), c.lookup(inst.False())
		res := expr.Nil
		if cond != expr.Nil && t != expr.Nil && f != expr.Nil {
			res = c.factory().Ite(cond, t, f)
		}
		c.setValue(inst, res)
	case *ir.Phi:
		// phi nodes are evaluated on edge entry
	case *ir.Call:
		if err := c.execCall(inst); err != nil {
			c.fail(err)
		}
	case *ir.FCmp, *ir.Invoke, *ir.Switch, *ir.IndirectBr, *ir.VAArg, *ir.VectorOp:
		return unsupported(inst)
	default:
		return unsupported(inst)
	}
	return c.takeErr()
}

func (c *Context) binOp(op ir.Opcode, x, y expr.Expr, ty *ir.Type) (expr.Expr, error) {
	if !ty.IsInt() {
		return expr.Nil, fmt.Errorf("%s on %s: %w", op, ty, ErrUnsupported)
	}
	a, w := c.m.alu, ty.Bits
	switch op {
	case ir.Add:
		return a.DoAdd(x, y, w), nil
	case ir.Sub:
		return a.DoSub(x, y, w), nil
	case ir.Mul:
		return a.DoMul(x, y, w), nil
	case ir.UDiv:
		return a.DoUDiv(x, y, w), nil
	case ir.SDiv:
		return a.DoSDiv(x, y, w), nil
	case ir.URem:
		return a.DoURem(x, y, w), nil
	case ir.SRem:
		return a.DoSRem(x, y, w), nil
	case ir.And:
		return a.DoAnd(x, y, w), nil
	case ir.Or:
		return a.DoOr(x, y, w), nil
	case ir.Xor:
		return a.DoXor(x, y, w), nil
	case ir.Shl:
		return a.DoShl(x, y, w), nil
	case ir.LShr:
		return a.DoLShr(x, y, w), nil
	case ir.AShr:
		return a.DoAShr(x, y, w), nil
	}
	return expr.Nil, fmt.Errorf("binary operator %s: %w", op, ErrUnsupported)
}

func (c *Context) icmp(pred ir.Predicate, x, y expr.Expr, ty *ir.Type) (expr.Expr, error) {
	switch {
	case ty.IsInt():
		a, w := c.m.alu, ty.Bits
		switch pred {
		case ir.ICmpEQ:
			return a.DoEq(x, y, w), nil
		case ir.ICmpNE:
			return a.DoNe(x, y, w), nil
		case ir.ICmpUGT:
			return a.DoUgt(x, y, w), nil
		case ir.ICmpUGE:
			return a.DoUge(x, y, w), nil
		case ir.ICmpULT:
			return a.DoUlt(x, y, w), nil
		case ir.ICmpULE:
			return a.DoUle(x, y, w), nil
		case ir.ICmpSGT:
			return a.DoSgt(x, y, w), nil
		case ir.ICmpSGE:
			return a.DoSge(x, y, w), nil
		case ir.ICmpSLT:
			return a.DoSlt(x, y, w), nil
		case ir.ICmpSLE:
			return a.DoSle(x, y, w), nil
		}
	case ty.IsPtr():
		m := c.m.mem
		switch pred {
		case ir.ICmpEQ:
			return m.PtrEq(x, y), nil
		case ir.ICmpNE:
			return m.PtrNe(x, y), nil
		case ir.ICmpUGT:
			return m.PtrUgt(x, y), nil
		case ir.ICmpUGE:
			return m.PtrUge(x, y), nil
		case ir.ICmpULT:
			return m.PtrUlt(x, y), nil
		case ir.ICmpULE:
			return m.PtrUle(x, y), nil
		case ir.ICmpSGT:
			return m.PtrSgt(x, y), nil
		case ir.ICmpSGE:
			return m.PtrSge(x, y), nil
		case ir.ICmpSLT:
			return m.PtrSlt(x, y), nil
		case ir.ICmpSLE:
			return m.PtrSle(x, y), nil
		}
	}
	return expr.Nil, fmt.Errorf("icmp %s on %s: %w", pred, ty, ErrUnsupported)
}

func (c *Context) cast(op ir.Opcode, x expr.Expr, from, to *ir.Type) (expr.Expr, error) {
	a := c.m.alu
	switch op {
	case ir.Trunc:
		return a.DoTrunc(x, from.Bits, to.Bits), nil
	case ir.ZExt:
		return a.DoZext(x, from.Bits, to.Bits), nil
	case ir.SExt:
		return a.DoSext(x, from.Bits, to.Bits), nil
	case ir.PtrToInt:
		if to.IsBool() {
			return a.Bv1ToBool(c.m.mem.PtrToInt(x, 1)), nil
		}
		return c.m.mem.PtrToInt(x, to.Bits), nil
	case ir.IntToPtr:
		if from.IsBool() {
			x = a.BoolToBv1(x)
		}
		return c.m.mem.IntToPtr(x), nil
	case ir.BitCast:
		switch {
		case to.IsPtr() && from.IsPtr():
			return x, nil
		case to.IsInt() && from.IsInt() && to.Bits == from.Bits:
			return x, nil
		}
		return expr.Nil, fmt.Errorf("bitcast from %s to %s: %w", from, to, ErrUnsupported)
	}
	return expr.Nil, fmt.Errorf("cast %s: %w", op, ErrUnsupported)
}

func (c *Context) execAlloca(inst *ir.Alloca) {
	typeSz := c.m.layout.AllocSize(inst.Allocated)
	if n, ok := inst.Count().(*ir.ConstInt); ok {
		bytes := typeSz * int(n.V)
		c.m.log.Debug("alloca", zap.Int("bytes", bytes), zap.String("inst", inst.Ident()))
		c.setValue(inst, c.m.mem.Salloc(bytes, inst.Align))
		return
	}

	count := c.lookup(inst.Count())
	if count == expr.Nil {
		c.setValue(inst, expr.Nil)
		return
	}
	c.m.log.Debug("alloca of symbolic size",
		zap.Int("elem", typeSz), zap.String("count", c.factory().String(count)), zap.String("inst", inst.Ident()))
	c.setValue(inst, c.m.mem.SallocSymbolic(count, typeSz, inst.Align))
}

func (c *Context) execLoad(inst *ir.Load) {
	defer func() { c.readReg = expr.Nil }()

	res := expr.Nil
	switch {
	case c.readReg == expr.Nil:
	case c.scalar:
		res = c.Read(c.readReg)
		if f := c.factory(); inst.Type().IsBool() && f.SortOf(res) != f.BoolSort() {
			res = c.m.alu.DoTrunc(res, f.Width(res), 1)
		}
	default:
		if p := c.lookup(inst.Ptr()); p != expr.Nil {
			res = c.m.mem.LoadValueFromMem(p, c.Read(c.readReg), inst.Type(), inst.Align)
		}
	}
	c.setValue(inst, res)
}

func (c *Context) execStore(inst *ir.Store) {
	defer func() { c.readReg, c.writeReg = expr.Nil, expr.Nil }()

	if c.readReg == expr.Nil || c.writeReg == expr.Nil || c.m.skipped(inst.Val()) {
		c.m.log.Debug("skipping store", zap.String("ptr", inst.Ptr().Ident()), zap.String("val", inst.Val().Ident()))
		return
	}

	f := c.factory()
	v := c.lookup(inst.Val())
	if v != expr.Nil && c.scalar {
		if inst.Val().Type().IsBool() && f.SortOf(c.writeReg) != f.BoolSort() {
			v = c.m.alu.DoZext(v, 1, f.BVWidth(f.SortOf(c.writeReg)))
		}
		c.Write(c.writeReg, v)
		return
	}

	res := expr.Nil
	if p := c.lookup(inst.Ptr()); v != expr.Nil && p != expr.Nil {
		res = c.m.mem.StoreValueToMem(v, p, c.Read(c.readReg), inst.Val().Type(), inst.Align)
	}
	if res == expr.Nil {
		c.m.log.Debug("skipping store", zap.String("ptr", inst.Ptr().Ident()), zap.String("val", inst.Val().Ident()))
		return
	}
	c.Write(c.writeReg, res)
}

func (c *Context) execGEP(inst *ir.GEP) {
	base := c.lookup(inst.Base())
	if base == expr.Nil {
		c.setValue(inst, expr.Nil)
		return
	}
	vals := inst.Indices()
	exprs := make([]expr.Expr, len(vals))
	for i, v := range vals {
		if _, ok := v.(*ir.ConstInt); !ok {
			exprs[i] = c.lookup(v)
		}
	}
	if c.err != nil {
		return
	}
	idx, err := c.gepIndices(vals, exprs)
	if err != nil {
		c.setValue(inst, expr.Nil)
		return
	}
	res, err := c.m.mem.GEP(base, inst.Source, idx)
	if err != nil {
		c.fail(fmt.Errorf("%s: %w", inst, err))
		return
	}
	c.setValue(inst, res)
}
