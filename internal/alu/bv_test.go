package alu

import (
	"testing"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcreteArithmetic(t *testing.T) {
	t.Parallel()
	f := expr.NewFactory()
	a := NewBvALU(f)

	tests := []struct {
		name   string
		result expr.Expr
		expect int64
	}{
		{"add", a.DoAdd(a.SI(40, 32), a.SI(2, 32), 32), 42},
		{"sub", a.DoSub(a.SI(2, 32), a.SI(40, 32), 32), -38},
		{"mul", a.DoMul(a.SI(-3, 16), a.SI(5, 16), 16), -15},
		{"sdiv", a.DoSDiv(a.SI(-9, 32), a.SI(2, 32), 32), -4},
		{"udiv", a.DoUDiv(a.UI(9, 32), a.UI(2, 32), 32), 4},
		{"srem", a.DoSRem(a.SI(-9, 32), a.SI(2, 32), 32), -1},
		{"urem", a.DoURem(a.UI(9, 32), a.UI(4, 32), 32), 1},
		{"and", a.DoAnd(a.UI(0xF0, 8), a.UI(0x3C, 8), 8), 0x30},
		{"or", a.DoOr(a.UI(0x0F, 8), a.UI(0x30, 8), 8), 0x3F},
		{"xor", a.DoXor(a.UI(0xFF, 8), a.UI(0x0F, 8), 8), -16},
		{"not", a.DoNot(a.UI(0, 8), 8), -1},
		{"shl", a.DoShl(a.UI(1, 32), a.UI(4, 32), 32), 16},
		{"lshr", a.DoLShr(a.SI(-16, 8), a.UI(2, 8), 8), 60},
		{"ashr", a.DoAShr(a.SI(-16, 8), a.UI(2, 8), 8), -4},
		{"trunc", a.DoTrunc(a.UI(0x1FF, 16), 16, 8), -1},
		{"zext", a.DoZext(a.SI(-1, 8), 8, 32), 255},
		{"sext", a.DoSext(a.SI(-1, 8), 8, 32), -1},
		{"zext bool", a.DoZext(a.SI(1, 1), 1, 8), 1},
		{"sext bool", a.DoSext(a.SI(1, 1), 1, 8), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := a.ToInt64(tt.result)
			require.True(t, ok, f.String(tt.result))
			assert.Equal(t, tt.expect, v)
		})
	}
}

func TestRelations(t *testing.T) {
	t.Parallel()
	f := expr.NewFactory()
	a := NewBvALU(f)
	m1, one := a.SI(-1, 32), a.SI(1, 32)

	assert.True(t, f.IsTrue(a.DoSlt(m1, one, 32)))
	assert.True(t, f.IsFalse(a.DoUlt(m1, one, 32)))
	assert.True(t, f.IsTrue(a.DoUge(m1, one, 32)))
	assert.True(t, f.IsTrue(a.DoSle(m1, m1, 32)))
	assert.True(t, f.IsFalse(a.DoSgt(m1, one, 32)))
	assert.True(t, f.IsTrue(a.DoUgt(m1, one, 32)))
	assert.True(t, f.IsTrue(a.DoSge(one, m1, 32)))
	assert.True(t, f.IsTrue(a.DoUle(one, m1, 32)))
	assert.True(t, f.IsTrue(a.DoNe(m1, one, 32)))
	assert.True(t, f.IsFalse(a.DoEq(m1, one, 32)))
}

// Single-bit operations must agree with the 1-bit bit-vector semantics on
// every input.
func TestBooleanEncodingAgreesWithBitVectors(t *testing.T) {
	t.Parallel()
	f := expr.NewFactory()
	a := NewBvALU(f)

	type binop struct {
		name string
		b    func(x, y expr.Expr, w int) expr.Expr
		op   expr.Op
	}
	arith := []binop{
		{"add", a.DoAdd, expr.OpBVAdd},
		{"sub", a.DoSub, expr.OpBVSub},
		{"mul", a.DoMul, expr.OpBVMul},
		{"udiv", a.DoUDiv, expr.OpBVUDiv},
		{"sdiv", a.DoSDiv, expr.OpBVSDiv},
		{"urem", a.DoURem, expr.OpBVURem},
		{"srem", a.DoSRem, expr.OpBVSRem},
		{"and", a.DoAnd, expr.OpBVAnd},
		{"or", a.DoOr, expr.OpBVOr},
		{"xor", a.DoXor, expr.OpBVXor},
		{"shl", a.DoShl, expr.OpBVShl},
		{"lshr", a.DoLShr, expr.OpBVLShr},
		{"ashr", a.DoAShr, expr.OpBVAShr},
	}
	rel := []binop{
		{"ult", a.DoUlt, expr.OpBVUlt},
		{"ule", a.DoUle, expr.OpBVUle},
		{"ugt", a.DoUgt, expr.OpBVUgt},
		{"uge", a.DoUge, expr.OpBVUge},
		{"slt", a.DoSlt, expr.OpBVSlt},
		{"sle", a.DoSle, expr.OpBVSle},
		{"sgt", a.DoSgt, expr.OpBVSgt},
		{"sge", a.DoSge, expr.OpBVSge},
	}

	for _, x := range []uint64{0, 1} {
		for _, y := range []uint64{0, 1} {
			bx, by := a.UI(x, 1), a.UI(y, 1)
			vx, vy := f.NumU64(x, 1), f.NumU64(y, 1)
			for _, op := range arith {
				got := a.BoolToBv1(op.b(bx, by, 1))
				want := f.BVBin(op.op, vx, vy)
				assert.Equal(t, want, got, "%s(%d, %d)", op.name, x, y)
			}
			for _, op := range rel {
				got := op.b(bx, by, 1)
				want := f.Compare(op.op, vx, vy)
				assert.Equal(t, want, got, "%s(%d, %d)", op.name, x, y)
			}
		}
	}
}

func TestBoolCoercions(t *testing.T) {
	t.Parallel()
	f := expr.NewFactory()
	a := NewBvALU(f)
	p := f.Const("p", f.BoolSort())

	assert.Equal(t, p, a.Bv1ToBool(a.BoolToBv1(p)))
	assert.Equal(t, f.BoolSort(), a.IntSort(1))
	assert.Equal(t, f.BVSort(8), a.IntSort(8))

	x := f.Const("x", f.BVSort(8))
	bit0 := a.DoTrunc(x, 8, 1)
	assert.Equal(t, f.BoolSort(), f.SortOf(bit0))
}
