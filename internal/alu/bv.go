package alu

import (
	"github.com/gnolang/opsem/internal/expr"
)

// BvALU encodes integers as SMT bit-vectors.
type BvALU struct {
	f *expr.Factory
}

var _ ALU = (*BvALU)(nil)

func NewBvALU(f *expr.Factory) *BvALU {
	return &BvALU{f: f}
}

func (a *BvALU) IntSort(width int) expr.Sort {
	if width == 1 {
		return a.f.BoolSort()
	}
	return a.f.BVSort(width)
}

func (a *BvALU) SI(k int64, width int) expr.Expr {
	if width == 1 {
		return a.f.Bool(k&1 != 0)
	}
	return a.f.NumI64(k, width)
}

func (a *BvALU) UI(k uint64, width int) expr.Expr {
	if width == 1 {
		return a.f.Bool(k&1 != 0)
	}
	return a.f.NumU64(k, width)
}

func (a *BvALU) IsNum(e expr.Expr) bool {
	return a.f.IsNum(e) || a.f.IsTrue(e) || a.f.IsFalse(e)
}

func (a *BvALU) ToInt64(e expr.Expr) (int64, bool) {
	switch {
	case a.f.IsTrue(e):
		return 1, true
	case a.f.IsFalse(e):
		return 0, true
	}
	return a.f.Int64(e)
}

func (a *BvALU) bin(op expr.Op, x, y expr.Expr) expr.Expr { return a.f.BVBin(op, x, y) }

func (a *BvALU) DoAdd(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Xor(x, y)
	}
	return a.bin(expr.OpBVAdd, x, y)
}

func (a *BvALU) DoSub(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Xor(x, y)
	}
	return a.bin(expr.OpBVSub, x, y)
}

func (a *BvALU) DoMul(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, y)
	}
	return a.bin(expr.OpBVMul, x, y)
}

// On one bit both divisions yield x when y is set and 1 otherwise.
func (a *BvALU) DoUDiv(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(a.f.Not(y), x)
	}
	return a.bin(expr.OpBVUDiv, x, y)
}

func (a *BvALU) DoSDiv(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(a.f.Not(y), x)
	}
	return a.bin(expr.OpBVSDiv, x, y)
}

// On one bit both remainders yield 0 when y is set and x otherwise.
func (a *BvALU) DoURem(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.bin(expr.OpBVURem, x, y)
}

func (a *BvALU) DoSRem(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.bin(expr.OpBVSRem, x, y)
}

func (a *BvALU) DoAnd(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, y)
	}
	return a.bin(expr.OpBVAnd, x, y)
}

func (a *BvALU) DoOr(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(x, y)
	}
	return a.bin(expr.OpBVOr, x, y)
}

func (a *BvALU) DoXor(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Xor(x, y)
	}
	return a.bin(expr.OpBVXor, x, y)
}

func (a *BvALU) DoNot(x expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Not(x)
	}
	return a.f.BVNot(x)
}

func (a *BvALU) DoShl(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.bin(expr.OpBVShl, x, y)
}

func (a *BvALU) DoLShr(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.bin(expr.OpBVLShr, x, y)
}

// An arithmetic shift of a single bit always reproduces the sign bit.
func (a *BvALU) DoAShr(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return x
	}
	return a.bin(expr.OpBVAShr, x, y)
}

func (a *BvALU) DoEq(x, y expr.Expr, _ int) expr.Expr { return a.f.Eq(x, y) }
func (a *BvALU) DoNe(x, y expr.Expr, _ int) expr.Expr { return a.f.Ne(x, y) }

// On one bit the unsigned order is false < true and the signed order is
// true (-1) < false (0).

func (a *BvALU) DoUlt(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(a.f.Not(x), y)
	}
	return a.f.Compare(expr.OpBVUlt, x, y)
}

func (a *BvALU) DoSlt(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.f.Compare(expr.OpBVSlt, x, y)
}

func (a *BvALU) DoUgt(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(x, a.f.Not(y))
	}
	return a.f.Compare(expr.OpBVUgt, x, y)
}

func (a *BvALU) DoSgt(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.And(a.f.Not(x), y)
	}
	return a.f.Compare(expr.OpBVSgt, x, y)
}

func (a *BvALU) DoUle(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(a.f.Not(x), y)
	}
	return a.f.Compare(expr.OpBVUle, x, y)
}

func (a *BvALU) DoSle(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(x, a.f.Not(y))
	}
	return a.f.Compare(expr.OpBVSle, x, y)
}

func (a *BvALU) DoUge(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(x, a.f.Not(y))
	}
	return a.f.Compare(expr.OpBVUge, x, y)
}

func (a *BvALU) DoSge(x, y expr.Expr, width int) expr.Expr {
	if width == 1 {
		return a.f.Or(a.f.Not(x), y)
	}
	return a.f.Compare(expr.OpBVSge, x, y)
}

func (a *BvALU) DoTrunc(x expr.Expr, from, to int) expr.Expr {
	if from == to {
		return x
	}
	if to == 1 {
		return a.Bv1ToBool(a.f.Extract(0, 0, x))
	}
	return a.f.Extract(to-1, 0, x)
}

func (a *BvALU) DoZext(x expr.Expr, from, to int) expr.Expr {
	if from == to {
		return x
	}
	if from == 1 {
		return a.f.Ite(x, a.f.NumU64(1, to), a.f.NumU64(0, to))
	}
	return a.f.ZExt(x, to-from)
}

func (a *BvALU) DoSext(x expr.Expr, from, to int) expr.Expr {
	if from == to {
		return x
	}
	if from == 1 {
		return a.f.Ite(x, a.f.NumI64(-1, to), a.f.NumU64(0, to))
	}
	return a.f.SExt(x, to-from)
}

func (a *BvALU) BoolToBv1(x expr.Expr) expr.Expr {
	return a.f.Ite(x, a.f.NumU64(1, 1), a.f.NumU64(0, 1))
}

func (a *BvALU) Bv1ToBool(x expr.Expr) expr.Expr {
	return a.f.Eq(x, a.f.NumU64(1, 1))
}
