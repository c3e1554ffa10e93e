package expr

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterning(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv32 := f.BVSort(32)

	x := f.Const("x", bv32)
	y := f.Const("y", bv32)

	assert.Equal(t, x, f.Const("x", bv32))
	assert.NotEqual(t, x, y)
	assert.NotEqual(t, x, f.Const("x", f.BVSort(8)))

	a := f.BVBin(OpBVMul, x, y)
	b := f.BVBin(OpBVMul, x, y)
	assert.Equal(t, a, b)

	// commutative operands are normalized only when a numeral is involved
	assert.Equal(t, f.BVAdd(x, f.NumU64(3, 32)), f.BVAdd(f.NumU64(3, 32), x))

	assert.Equal(t, f.BVSort(32), bv32)
	assert.Equal(t, f.ArraySort(bv32, bv32), f.ArraySort(bv32, bv32))
}

func TestConcurrentInterning(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv8 := f.BVSort(8)

	const workers = 8
	results := make([]Expr, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x := f.Const("x", bv8)
			results[i] = f.BVMul(f.BVAdd(x, f.NumU64(1, 8)), x)
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestNumeralFolding(t *testing.T) {
	t.Parallel()
	f := NewFactory()

	tests := []struct {
		name   string
		build  func() Expr
		expect int64
		width  int
	}{
		{"add wraps", func() Expr { return f.BVAdd(f.NumU64(255, 8), f.NumU64(2, 8)) }, 1, 8},
		{"sub", func() Expr { return f.BVSub(f.NumU64(3, 8), f.NumU64(5, 8)) }, -2, 8},
		{"mul", func() Expr { return f.BVMul(f.NumU64(7, 16), f.NumU64(6, 16)) }, 42, 16},
		{"sdiv negative", func() Expr { return f.BVBin(OpBVSDiv, f.NumI64(-7, 8), f.NumU64(2, 8)) }, -3, 8},
		{"srem keeps dividend sign", func() Expr { return f.BVBin(OpBVSRem, f.NumI64(-7, 8), f.NumU64(2, 8)) }, -1, 8},
		{"udiv by zero", func() Expr { return f.BVBin(OpBVUDiv, f.NumU64(9, 8), f.NumU64(0, 8)) }, -1, 8},
		{"urem by zero", func() Expr { return f.BVBin(OpBVURem, f.NumU64(9, 8), f.NumU64(0, 8)) }, 9, 8},
		{"ashr", func() Expr { return f.BVBin(OpBVAShr, f.NumI64(-8, 8), f.NumU64(1, 8)) }, -4, 8},
		{"lshr", func() Expr { return f.BVBin(OpBVLShr, f.NumI64(-8, 8), f.NumU64(1, 8)) }, 124, 8},
		{"shl overflow", func() Expr { return f.BVShl(f.NumU64(1, 8), f.NumU64(9, 8)) }, 0, 8},
		{"sext", func() Expr { return f.SExt(f.NumI64(-1, 8), 8) }, -1, 16},
		{"zext", func() Expr { return f.ZExt(f.NumI64(-1, 8), 8) }, 255, 16},
		{"extract", func() Expr { return f.Extract(15, 8, f.NumU64(0xABCD, 16)) }, -85, 8},
		{"concat", func() Expr { return f.Concat(f.NumU64(0x12, 8), f.NumU64(0x34, 8)) }, 0x1234, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.build()
			require.True(t, f.IsNum(e), f.String(e))
			assert.Equal(t, tt.width, f.Width(e))
			v, ok := f.Int64(e)
			require.True(t, ok)
			assert.Equal(t, tt.expect, v)
		})
	}
}

func TestWideNumerals(t *testing.T) {
	t.Parallel()
	f := NewFactory()

	hi := f.NumU64(1, 64)
	lo := f.NumU64(0, 64)
	wide := f.Concat(hi, lo)
	assert.Equal(t, 128, f.Width(wide))
	assert.Equal(t, "(_ bv18446744073709551616 128)", f.String(wide))
	assert.Equal(t, hi, f.Extract(127, 64, wide))
}

func TestComparisons(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	m1 := f.NumI64(-1, 8)
	one := f.NumU64(1, 8)

	assert.True(t, f.IsTrue(f.Compare(OpBVUgt, m1, one)))
	assert.True(t, f.IsTrue(f.Compare(OpBVSlt, m1, one)))
	assert.True(t, f.IsFalse(f.Compare(OpBVSge, m1, one)))

	x := f.Const("x", f.BVSort(8))
	assert.True(t, f.IsTrue(f.Compare(OpBVUle, x, x)))
	assert.True(t, f.IsFalse(f.Compare(OpBVSlt, x, x)))
}

func TestBooleanRewrites(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	p := f.Const("p", f.BoolSort())
	q := f.Const("q", f.BoolSort())

	assert.Equal(t, p, f.Not(f.Not(p)))
	assert.Equal(t, p, f.And(f.True(), p, p))
	assert.True(t, f.IsFalse(f.And(p, f.False(), q)))
	assert.True(t, f.IsTrue(f.Or(q, f.True())))
	assert.Equal(t, f.And(p, q), f.And(f.And(p), q))
	assert.Equal(t, q, f.Ite(f.False(), p, q))
	assert.Equal(t, p, f.Ite(p, f.True(), f.False()))
	assert.Equal(t, f.Not(p), f.Xor(p, f.True()))
	assert.True(t, f.IsTrue(f.Implies(f.False(), p)))
	assert.Equal(t, f.Eq(p, q), f.Eq(q, p))
}

func TestOffsetRewrites(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv32 := f.BVSort(32)
	sp := f.Const("sp", bv32)

	a := f.BVSub(sp, f.NumU64(8, 32))
	b := f.BVAdd(f.BVSub(sp, f.NumU64(12, 32)), f.NumU64(4, 32))
	assert.Equal(t, a, b)

	c := f.BVSub(sp, f.NumU64(4, 32))
	assert.True(t, f.Disjoint(a, c))
	assert.True(t, f.IsFalse(f.Eq(a, c)))
	assert.True(t, f.Disjoint(sp, a))
	assert.False(t, f.Disjoint(sp, f.Const("other", bv32)))
}

func TestExtractConcat(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	v := f.Const("v", f.BVSort(64))

	lo := f.Extract(31, 0, v)
	hi := f.Extract(63, 32, v)
	assert.Equal(t, v, f.Concat(hi, lo))

	bytes := make([]Expr, 8)
	for i := range bytes {
		bytes[i] = f.Extract(8*i+7, 8*i, v)
	}
	assert.Equal(t, v, f.ConcatLE(bytes))

	x := f.Const("x", f.BVSort(8))
	word := f.Concat(f.Const("w", f.BVSort(24)), x)
	assert.Equal(t, x, f.Extract(7, 0, word))
	assert.Equal(t, f.Extract(3, 0, x), f.Extract(3, 0, f.ZExt(x, 24)))
	assert.Equal(t, f.NumU64(0, 8), f.Extract(15, 8, f.ZExt(x, 24)))
}

func TestSelectStore(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv32 := f.BVSort(32)
	mem := f.Const("mem", f.ArraySort(bv32, bv32))
	sp := f.Const("sp", bv32)
	p := f.BVSub(sp, f.NumU64(4, 32))
	q := f.BVSub(sp, f.NumU64(8, 32))
	v := f.Const("v", bv32)
	w := f.Const("w", bv32)

	m1 := f.Store(mem, p, v)
	m2 := f.Store(m1, q, w)
	assert.Equal(t, v, f.Select(m2, p))
	assert.Equal(t, w, f.Select(m2, q))

	// an unrelated index stops the walk
	r := f.Const("r", bv32)
	assert.Equal(t, OpSelect, f.Op(f.Select(m2, r)))

	// overwriting the same index collapses
	assert.Equal(t, f.Store(mem, p, w), f.Store(m1, p, w))
	assert.Equal(t, m1, f.Store(m1, q, f.Select(m1, q)))

	zero := f.NumU64(0, 32)
	ca := f.ConstArray(f.ArraySort(bv32, bv32), zero)
	assert.Equal(t, zero, f.Select(f.Store(ca, p, v), q))
}

func TestBetaReduction(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv32 := f.BVSort(32)
	a := f.Bound(0, bv32)
	g := f.Const("g", f.FuncSort([]Sort{bv32}, bv32))

	assert.Equal(t, g, f.Lambda([]Expr{a}, f.FApp(g, a)))

	p := f.NumU64(16, 32)
	v := f.NumU64(7, 32)
	upd := f.Lambda([]Expr{a}, f.Ite(f.Eq(a, p), v, f.FApp(g, a)))
	assert.Equal(t, v, f.FApp(upd, p))

	other := f.NumU64(20, 32)
	assert.Equal(t, f.FApp(g, other), f.FApp(upd, other))
}

func TestSimplifyAfterSubstitute(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv8 := f.BVSort(8)
	x := f.Const("x", bv8)
	e := f.BVAdd(f.BVMul(x, f.NumU64(2, 8)), f.NumU64(1, 8))

	r := f.Substitute(e, map[Expr]Expr{x: f.NumU64(3, 8)})
	v, ok := f.Uint64(r)
	require.True(t, ok)
	assert.EqualValues(t, 7, v)

	assert.Equal(t, e, f.Simplify(e))
	assert.True(t, f.Contains(e, x))
	assert.False(t, f.Contains(r, x))
}

func TestPrinter(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	bv8 := f.BVSort(8)
	x := f.Const("%x", bv8)
	y := f.Const("1y", bv8)

	lt := f.Compare(OpBVUlt, x, f.Extract(7, 0, f.ZExt(y, 8)))
	assert.Equal(t, "(bvult %x |1y|)", f.String(lt))

	var buf bytes.Buffer
	require.NoError(t, f.WriteSMTLib(&buf, []Expr{lt, f.Eq(x, f.NumU64(3, 8))}))
	assert.Equal(t, "(declare-fun %x () (_ BitVec 8))\n"+
		"(declare-fun |1y| () (_ BitVec 8))\n"+
		"(assert (bvult %x |1y|))\n"+
		"(assert (= %x (_ bv3 8)))\n"+
		"(check-sat)\n", buf.String())

	fn := f.FDecl("ext", []Sort{bv8}, f.BoolSort())
	assert.Equal(t, "(declare-fun ext ((_ BitVec 8)) Bool)", f.Declare(fn))
}
