package opsem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/mem"
)

func newMachine(t *testing.T, mod *ir.Module, opts ...func(*Config)) *Machine {
	t.Helper()
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	m, err := NewMachine(mod, cfg)
	require.NoError(t, err)
	return m
}

// mainOf adds an i32 main with the given block names.
func mainOf(mod *ir.Module, blocks ...string) (*ir.Function, []*ir.Block) {
	fn := mod.NewFunction("main", ir.FuncOf(ir.I32))
	bbs := make([]*ir.Block, len(blocks))
	for i, n := range blocks {
		bbs[i] = fn.NewBlock(n)
	}
	return fn, bbs
}

func reg(t *testing.T, c *Context, v ir.Value) expr.Expr {
	t.Helper()
	r, err := c.MkRegister(v)
	require.NoError(t, err)
	return r
}

func TestRegisterIdentity(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("regs", nil)
	_, bbs := mainOf(mod, "entry")
	b := ir.NewBuilder(bbs[0])
	x := b.BinOp("x", ir.Add, ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	y := b.BinOp("y", ir.Add, x, x)
	b.Ret(y)

	m := newMachine(t, mod)
	c := m.NewContext()

	rx := reg(t, c, x)
	assert.Equal(t, rx, reg(t, c, x))
	assert.Equal(t, m.ALU().IntSort(32), m.Factory().SortOf(rx))

	child := c.Fork(nil, nil)
	assert.Equal(t, rx, reg(t, child, x), "registers created before the fork are shared")

	ry := reg(t, c, y)
	cy := reg(t, child, y)
	assert.NotEqual(t, ry, cy, "registers created after the fork are private")
	assert.Equal(t, cy, reg(t, child, y))
	assert.True(t, child.IsKnownRegister(rx))
	assert.False(t, child.IsKnownRegister(ry))
}

func TestForkIsolatesStore(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("fork", nil)
	_, bbs := mainOf(mod, "entry")
	b := ir.NewBuilder(bbs[0])
	x := b.BinOp("x", ir.Add, ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	b.Ret(x)

	m := newMachine(t, mod)
	a := m.ALU()
	c := m.NewContext()
	r := reg(t, c, x)
	c.Write(r, a.SI(1, 32))
	c.AddSide(m.Factory().True())

	child := c.Fork(nil, nil)
	child.Write(r, a.SI(2, 32))
	child.AddSide(m.Factory().False())

	assert.Equal(t, a.SI(1, 32), c.Read(r))
	assert.Equal(t, a.SI(2, 32), child.Read(r))
	assert.Len(t, c.Side(), 1)
	assert.Len(t, child.Side(), 2)
}

func TestPhiAtomicity(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("swap", nil)
	_, bbs := mainOf(mod, "entry", "loop")
	entry, loop := bbs[0], bbs[1]

	ir.NewBuilder(entry).Br(loop)
	b := ir.NewBuilder(loop)
	pa := b.Phi("a", ir.I32)
	pb := b.Phi("b", ir.I32)
	pa.AddIncoming(ir.Int(ir.I32, 1), entry)
	pa.AddIncoming(pb, loop)
	pb.AddIncoming(ir.Int(ir.I32, 2), entry)
	pb.AddIncoming(pa, loop)
	b.Br(loop)

	m := newMachine(t, mod)
	c := m.NewContext()
	_, err := c.RunPath(context.Background(), []*ir.Block{entry, loop, loop})
	require.NoError(t, err)

	a := m.ALU()
	assert.Equal(t, a.SI(2, 32), c.Read(reg(t, c, pa)))
	assert.Equal(t, a.SI(1, 32), c.Read(reg(t, c, pb)))
}

func TestInfeasibleConstantBranch(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("br", nil)
	assume := mod.Declare("verifier.assume", ir.FuncOf(ir.Void, ir.I1))
	nd := mod.Declare("nd_bool", ir.FuncOf(ir.I1))
	_, bbs := mainOf(mod, "entry", "then", "else")
	entry, then, els := bbs[0], bbs[1], bbs[2]

	b := ir.NewBuilder(entry)
	x := b.Call("x", nd)
	b.Call("", assume, x)
	b.CondBr(ir.True(), then, els)
	ir.NewBuilder(then).Ret(ir.Int(ir.I32, 0))
	ir.NewBuilder(els).Ret(ir.Int(ir.I32, 1))

	m := newMachine(t, mod)
	f := m.Factory()

	c := m.NewContext()
	res, err := c.RunPath(context.Background(), []*ir.Block{entry, els})
	require.NoError(t, err)
	require.Len(t, res.Side, 1, "the step's side conditions are dropped")
	assert.True(t, f.IsFalse(res.Formula()))

	c = m.NewContext()
	res, err = c.RunPath(context.Background(), []*ir.Block{entry, then})
	require.NoError(t, err)
	assert.Equal(t, []expr.Expr{m.Mem().StackPtrConstraint(), c.Read(reg(t, c, x))}, res.Side)
}

func TestSymbolicBranch(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("br", nil)
	nd := mod.Declare("nondet.bool", ir.FuncOf(ir.I1))
	_, bbs := mainOf(mod, "entry", "then", "else")
	entry, then, els := bbs[0], bbs[1], bbs[2]

	b := ir.NewBuilder(entry)
	x := b.Call("x", nd)
	b.CondBr(x, then, els)
	ir.NewBuilder(then).Ret(ir.Int(ir.I32, 0))
	ir.NewBuilder(els).Ret(ir.Int(ir.I32, 1))

	m := newMachine(t, mod)
	f := m.Factory()
	c := m.NewContext()
	res, err := c.RunPath(context.Background(), []*ir.Block{entry, els})
	require.NoError(t, err)

	v := c.Read(reg(t, c, x))
	assert.NotEqual(t, reg(t, c, x), v, "nondet results are fresh")
	assert.Equal(t, []expr.Expr{m.Mem().StackPtrConstraint(), f.Not(v)}, res.Side)
	assert.Same(t, els, c.Block())
}

func TestUnreachableDestinationRuns(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("dead", nil)
	_, bbs := mainOf(mod, "entry", "dead")
	ir.NewBuilder(bbs[0]).Br(bbs[1])
	b := ir.NewBuilder(bbs[1])
	y := b.BinOp("y", ir.Mul, ir.Int(ir.I32, 6), ir.Int(ir.I32, 7))
	b.Unreachable()

	m := newMachine(t, mod)
	c := m.NewContext()
	_, err := c.RunPath(context.Background(), bbs)
	require.NoError(t, err)
	assert.Equal(t, m.ALU().SI(42, 32), c.Read(reg(t, c, y)))
}

func TestExternalCalls(t *testing.T) {
	t.Parallel()

	build := func() (*ir.Module, *ir.Block, *ir.Call, *ir.Call) {
		mod := ir.NewModule("ext", nil)
		logf := mod.Declare("log_value", ir.FuncOf(ir.Void, ir.I32))
		hash := mod.Declare("hash", ir.FuncOf(ir.I32, ir.I32))
		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		untyped := b.Call("", logf, ir.Int(ir.I32, 3))
		h := b.Call("h", hash, ir.Int(ir.I32, 3))
		b.Ret(h)
		return mod, bbs[0], untyped, h
	}

	t.Run("untyped call is a no-op", func(t *testing.T) {
		t.Parallel()
		mod, entry, _, _ := build()
		m := newMachine(t, mod, func(c *Config) { c.EnableModelExternalCalls = true })
		c := m.NewContext()
		res, err := c.RunPath(context.Background(), []*ir.Block{entry})
		require.NoError(t, err)
		assert.Equal(t, []expr.Expr{m.Mem().StackPtrConstraint()}, res.Side)
	})

	t.Run("modeled as uninterpreted function", func(t *testing.T) {
		t.Parallel()
		mod, entry, _, h := build()
		m := newMachine(t, mod, func(c *Config) { c.EnableModelExternalCalls = true })
		f := m.Factory()
		c := m.NewContext()
		res, err := c.RunPath(context.Background(), []*ir.Block{entry})
		require.NoError(t, err)

		i32 := m.ALU().IntSort(32)
		want := f.FApp(f.FDecl("hash", []expr.Sort{i32}, i32), m.ALU().SI(3, 32))
		assert.Equal(t, want, c.Read(reg(t, c, h)))
		assert.Empty(t, res.Approximations)
	})

	t.Run("argument without a sort", func(t *testing.T) {
		t.Parallel()
		mod := ir.NewModule("ext", nil)
		ndDouble := mod.Declare("nd_double", ir.FuncOf(ir.Double))
		mix := mod.Declare("mix", ir.FuncOf(ir.I32, ir.I32, ir.Double))
		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		d := b.Call("d", ndDouble)
		h := b.Call("h", mix, ir.Int(ir.I32, 3), d)
		b.Ret(h)

		m := newMachine(t, mod, func(c *Config) { c.EnableModelExternalCalls = true })
		f := m.Factory()
		c := m.NewContext()
		res, err := c.RunPath(context.Background(), bbs)
		require.NoError(t, err)

		r := reg(t, c, h)
		assert.Equal(t, r, c.Read(r), "the result stays unconstrained")
		for _, kv := range res.Bindings() {
			assert.NotEqual(t, expr.OpFApp, f.Op(kv[1]), f.String(kv[1]))
		}
	})

	t.Run("ignored function is approximated", func(t *testing.T) {
		t.Parallel()
		mod, entry, _, h := build()
		m := newMachine(t, mod, func(c *Config) {
			c.EnableModelExternalCalls = true
			c.IgnoreExternalFunctions = []string{"hash"}
		})
		c := m.NewContext()
		res, err := c.RunPath(context.Background(), []*ir.Block{entry})
		require.NoError(t, err)
		assert.Equal(t, []ir.Value{h}, res.Approximations)
	})
}

func TestSummaryCall(t *testing.T) {
	t.Parallel()

	build := func(regions int) (*ir.Module, *ir.Block) {
		mod := ir.NewModule("sum", nil)
		g := mod.NewGlobal("g", ir.I32, nil)
		callee := mod.NewFunction("inc", ir.FuncOf(ir.I32, ir.I32), "x")
		cb := ir.NewBuilder(callee.NewBlock("entry"))
		cb.Ret(cb.BinOp("r", ir.Add, callee.Params[0], ir.Int(ir.I32, 1)))

		fi := &ir.FunctionInfo{Fn: callee, Args: callee.Params, Globals: []*ir.Global{g}, Ret: callee.Params[0]}
		for i := 0; i < regions; i++ {
			fi.Regions = append(fi.Regions, g)
		}
		mod.Summaries = append(mod.Summaries, fi)

		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		b.Ret(b.Call("y", callee, ir.Int(ir.I32, 4)))
		return mod, bbs[0]
	}

	t.Run("predicate over the call", func(t *testing.T) {
		t.Parallel()
		mod, entry := build(0)
		m := newMachine(t, mod)
		f := m.Factory()
		c := m.NewContext()
		res, err := c.RunPath(context.Background(), []*ir.Block{entry})
		require.NoError(t, err)
		require.Len(t, res.Side, 2)

		app := res.Side[1]
		assert.Equal(t, expr.OpFApp, f.Op(app))
		assert.Len(t, f.Kids(app), 1+6)
		assert.Equal(t, []expr.Expr{f.False(), f.False(), f.False()}, c.Parameters())
	})

	t.Run("arity mismatch", func(t *testing.T) {
		t.Parallel()
		mod, entry := build(1)
		m := newMachine(t, mod)
		c := m.NewContext()
		_, err := c.RunPath(context.Background(), []*ir.Block{entry})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrArityMismatch))
		f := m.Factory()
		assert.Equal(t, []expr.Expr{f.False(), f.False(), f.False()}, c.Parameters())
	})
}

func TestShadowProtocol(t *testing.T) {
	t.Parallel()

	t.Run("unknown operation", func(t *testing.T) {
		t.Parallel()
		mod := ir.NewModule("shadow", nil)
		bogus := mod.Declare("shadow.mem.bogus", ir.FuncOf(ir.Void, ir.I32))
		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		b.ShadowCall("", bogus, &ir.ShadowMeta{Region: 1}, ir.Int(ir.I32, 1))
		b.Ret(ir.Int(ir.I32, 0))

		m := newMachine(t, mod)
		err := m.NewContext().ExecBlock(bbs[0])
		assert.ErrorIs(t, err, ErrUnknownShadowOp)
	})

	t.Run("unique scalar round trip", func(t *testing.T) {
		t.Parallel()
		mod := ir.NewModule("shadow", nil)
		initFn := mod.Declare(ir.ShadowInit, ir.FuncOf(ir.I32, ir.I32))
		storeFn := mod.Declare(ir.ShadowStore, ir.FuncOf(ir.I32, ir.I32, ir.I32))
		loadFn := mod.Declare(ir.ShadowLoad, ir.FuncOf(ir.Void, ir.I32, ir.I32))
		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		x := b.Alloca("x", ir.I32, nil, 4)
		meta := &ir.ShadowMeta{Region: 1, Scalar: x, ScalarBits: 32}
		m0 := b.ShadowCall("m0", initFn, meta, ir.Int(ir.I32, 1))
		m1 := b.ShadowCall("m1", storeFn, meta, ir.Int(ir.I32, 1), m0)
		b.Store(ir.Int(ir.I32, 7), x, 4)
		b.ShadowCall("", loadFn, meta, ir.Int(ir.I32, 1), m1)
		v := b.Load("v", ir.I32, x, 4)
		b.Ret(v)

		m := newMachine(t, mod)
		c := m.NewContext()
		require.NoError(t, c.ExecBlock(bbs[0]))
		assert.Equal(t, m.ALU().SI(7, 32), c.Read(reg(t, c, v)))
		assert.Equal(t, m.ALU().SI(7, 32), c.Read(reg(t, c, m1)))
		assert.Equal(t, expr.Nil, c.MemReadRegister())
		assert.Equal(t, expr.Nil, c.MemWriteRegister())
	})
}

func TestCalloc(t *testing.T) {
	t.Parallel()

	build := func() (*ir.Module, *ir.Block, *ir.Call, *ir.Call) {
		mod := ir.NewModule("calloc", nil)
		initFn := mod.Declare(ir.ShadowInit, ir.FuncOf(ir.I32, ir.I32))
		storeFn := mod.Declare(ir.ShadowStore, ir.FuncOf(ir.I32, ir.I32, ir.I32))
		calloc := mod.Declare("calloc", ir.FuncOf(ir.PtrTo(ir.I8), ir.I32, ir.I32))
		_, bbs := mainOf(mod, "entry")
		b := ir.NewBuilder(bbs[0])
		meta := &ir.ShadowMeta{Region: 2}
		m0 := b.ShadowCall("m0", initFn, meta, ir.Int(ir.I32, 2))
		m1 := b.ShadowCall("m1", storeFn, meta, ir.Int(ir.I32, 2), m0)
		b.Call("p", calloc, ir.Int(ir.I32, 4), ir.Int(ir.I32, 4))
		b.Ret(ir.Int(ir.I32, 0))
		return mod, bbs[0], m0, m1
	}

	t.Run("zero initialized", func(t *testing.T) {
		t.Parallel()
		mod, entry, _, m1 := build()
		m := newMachine(t, mod)
		f, mm := m.Factory(), m.Mem()
		c := m.NewContext()
		require.NoError(t, c.ExecBlock(entry))

		zero := f.ConstArray(f.ArraySort(mm.PtrSort(), mm.WordSort()), f.NumU64(0, 32))
		assert.Equal(t, []expr.Expr{mm.StackPtrConstraint(), f.Eq(c.Read(reg(t, c, m1)), zero)}, c.Side())
		assert.Equal(t, expr.Nil, c.MemWriteRegister())
	})

	t.Run("ignored", func(t *testing.T) {
		t.Parallel()
		mod, entry, m0, m1 := build()
		m := newMachine(t, mod, func(c *Config) { c.IgnoreCalloc = true })
		f, sp := m.Factory(), m.Mem().StackPtrConstraint()
		c := m.NewContext()
		require.NoError(t, c.ExecBlock(entry))
		assert.Equal(t, []expr.Expr{sp, f.Eq(c.Read(reg(t, c, m1)), c.Read(reg(t, c, m0)))}, c.Side())
	})
}

func TestAssume(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("assume", nil)
	assume := mod.Declare("verifier.assume", ir.FuncOf(ir.Void, ir.I1))
	assumeNot := mod.Declare("verifier.assume.not", ir.FuncOf(ir.Void, ir.I1))
	assumeNotx := mod.Declare("verifier.assume.notx", ir.FuncOf(ir.Void, ir.I1))
	nd := mod.Declare("nd_bool", ir.FuncOf(ir.I1))
	_, bbs := mainOf(mod, "entry")
	b := ir.NewBuilder(bbs[0])
	x := b.Call("x", nd)
	b.Call("", assume, ir.True())
	b.Call("", assume, x)
	b.Call("", assumeNot, x)
	b.Call("", assumeNotx, x)
	b.Ret(ir.Int(ir.I32, 0))

	m := newMachine(t, mod)
	f := m.Factory()
	c := m.NewContext()
	require.NoError(t, c.ExecBlock(bbs[0]))
	v := c.Read(reg(t, c, x))
	assert.Equal(t, []expr.Expr{m.Mem().StackPtrConstraint(), v, f.Not(v), v}, c.Side())
}

func TestStackDisjointFromGlobals(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("stack", nil)
	g := mod.NewGlobal("g", ir.I32, nil)
	_, bbs := mainOf(mod, "entry")
	b := ir.NewBuilder(bbs[0])
	x := b.Alloca("x", ir.I32, nil, 4)
	eq := b.ICmp("eq", ir.ICmpEQ, x, g)
	b.Ret(ir.Int(ir.I32, 0))

	m := newMachine(t, mod)
	f, mm := m.Factory(), m.Mem()
	c := m.NewContext()
	res, err := c.RunPath(context.Background(), bbs)
	require.NoError(t, err)
	require.Contains(t, res.Side, mm.StackPtrConstraint())

	at := func(e expr.Expr, sp uint64) expr.Expr {
		return f.Substitute(e, map[expr.Expr]expr.Expr{mm.SP0(): f.NumU64(sp, 32)})
	}
	base, ok := f.Uint64(at(c.Read(reg(t, c, x)), 0))
	require.True(t, ok)
	addr, ok := f.Uint64(c.Read(reg(t, c, g)))
	require.True(t, ok)

	// the only stack pointer placing x on g breaks the constraint
	hit := uint64(uint32(addr - base))
	cmp := c.Read(reg(t, c, eq))
	assert.True(t, f.IsTrue(at(cmp, hit)))
	assert.True(t, f.IsFalse(at(mm.StackPtrConstraint(), hit)))
	assert.True(t, f.IsFalse(at(cmp, mem.MaxStackAddr)))
}

func TestSkippedLoadClearsMemRegisters(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("skip", nil)
	initFn := mod.Declare(ir.ShadowInit, ir.FuncOf(ir.I32, ir.I32))
	loadFn := mod.Declare(ir.ShadowLoad, ir.FuncOf(ir.Void, ir.I32, ir.I32))
	_, bbs := mainOf(mod, "entry")
	b := ir.NewBuilder(bbs[0])
	x := b.Alloca("x", ir.PtrTo(ir.I8), nil, 4)
	meta := &ir.ShadowMeta{Region: 1, Scalar: x, ScalarBits: 32}
	m0 := b.ShadowCall("m0", initFn, meta, ir.Int(ir.I32, 1))
	b.ShadowCall("", loadFn, meta, ir.Int(ir.I32, 1), m0)
	q := b.Load("q", ir.PtrTo(ir.I8), x, 4)
	b.Ret(ir.Int(ir.I32, 0))

	m := newMachine(t, mod, func(c *Config) {
		c.TrackLevel = TrackReg
		c.EnableUniqueScalars = true
	})
	c := m.NewContext()
	require.NoError(t, c.enterBlock(bbs[0]))
	for c.bb.Insts[c.pos] != q {
		more, err := c.intraStep()
		require.NoError(t, err)
		require.True(t, more)
	}
	require.NotEqual(t, expr.Nil, c.MemReadRegister())

	_, err := c.intraStep()
	require.NoError(t, err)
	assert.Equal(t, expr.Nil, c.MemReadRegister())
	assert.False(t, c.IsMemScalar())
	assert.Contains(t, c.Ignored(), ir.Value(q))
}

func TestConstantFolding(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("consts", nil)
	g := mod.NewGlobal("table", ir.ArrayOf(ir.I32, 4), nil)
	mainOf(mod, "entry")

	m := newMachine(t, mod)
	a, mm := m.ALU(), m.Mem()
	c := m.NewContext()

	tests := []struct {
		name string
		k    ir.Constant
		want expr.Expr
	}{
		{"int", ir.Int(ir.I32, -3), a.SI(-3, 32)},
		{"bool", ir.True(), m.Factory().True()},
		{"null", ir.NullOf(ir.PtrTo(ir.I8)), mm.NullPtr()},
		{"undef", &ir.Undef{Ty: ir.I16}, a.SI(0, 16)},
		{"float", &ir.ConstFP{Ty: ir.Double, V: 1.5}, expr.Nil},
		{
			"add",
			&ir.ConstExpr{Op: ir.Add, Ty: ir.I32, Ops: []ir.Value{ir.Int(ir.I32, 2), ir.Int(ir.I32, 3)}},
			a.SI(5, 32),
		},
		{
			"zext",
			&ir.ConstExpr{Op: ir.ZExt, Ty: ir.I32, Ops: []ir.Value{ir.Int(ir.I8, 200)}},
			a.SI(200, 32),
		},
		{
			"gep",
			&ir.ConstExpr{
				Op: ir.GetElementPtr, Ty: ir.PtrTo(ir.I32), Source: g.ValueType,
				Ops: []ir.Value{g, ir.Int(ir.I32, 0), ir.Int(ir.I32, 2)},
			},
			mm.PtrAdd(mm.PtrToGlobal(g), 8),
		},
	}
	for _, tt := range tests {
		got, err := c.GetConstantValue(tt.k)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestFatalInstructions(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("fatal", nil)
	_, bbs := mainOf(mod, "entry", "other")
	b := ir.NewBuilder(bbs[0])
	v := b.BinOp("v", ir.Add, ir.Int(ir.I32, 1), ir.Int(ir.I32, 1))
	b.Switch(v)
	ir.NewBuilder(bbs[1]).Ret(ir.Int(ir.I32, 0))

	m := newMachine(t, mod)
	c := m.NewContext()
	require.NoError(t, c.ExecBlock(bbs[0]), "the block stops before the switch")
	err := c.exec(bbs[0].Terminator())
	assert.ErrorIs(t, err, ErrUnsupported)

	fb := ir.NewBuilder(bbs[1])
	fadd := fb.BinOp("d", ir.FAdd, &ir.ConstFP{Ty: ir.Double, V: 1}, &ir.ConstFP{Ty: ir.Double, V: 2})
	assert.ErrorIs(t, c.exec(fadd), ErrUnsupported)
}

type mockSimplifier struct {
	mock.Mock
}

func (s *mockSimplifier) Simplify(e expr.Expr) expr.Expr {
	args := s.Called(e)
	return args.Get(0).(expr.Expr)
}

func TestSimplifyOnWrite(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("simp", nil)
	fn := mod.NewFunction("f", ir.FuncOf(ir.I32, ir.I32), "n")
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)
	sum := b.BinOp("sum", ir.Add, fn.Params[0], ir.Int(ir.I32, 0))
	b.Ret(sum)

	f := expr.NewFactory()
	cfg := DefaultConfig()
	cfg.SimplifyOnWrite = true

	simp := new(mockSimplifier)
	folded := f.Const("folded", f.BVSort(32))
	simp.On("Simplify", mock.Anything).Return(folded)

	m, err := NewMachine(mod, cfg, WithFactory(f), WithSimplifier(simp))
	require.NoError(t, err)
	c := m.NewContext()
	require.NoError(t, c.ExecBlock(entry))

	assert.Equal(t, folded, c.Read(reg(t, c, sum)))
	simp.AssertCalled(t, "Simplify", mock.Anything)
}

func TestSkipPolicy(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("skip", nil)
	fn := mod.NewFunction("f", ir.FuncOf(ir.Void, ir.PtrTo(ir.I32), ir.I32, ir.Double), "p", "n", "d")
	b := ir.NewBuilder(fn.NewBlock("entry"))
	b.Ret(nil)

	tests := []struct {
		level TrackLevel
		v     ir.Value
		want  bool
	}{
		{TrackReg, fn.Params[0], true},
		{TrackPtr, fn.Params[0], false},
		{TrackReg, fn.Params[1], false},
		{TrackMem, fn.Params[2], true},
	}
	for _, tt := range tests {
		m := newMachine(t, mod, func(c *Config) { c.TrackLevel = tt.level })
		got, err := m.IsSkipped(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s at %s", tt.v.Ident(), tt.level)
	}

	m := newMachine(t, mod)
	_, err := m.IsSkipped(fn.Entry())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFirstSuccessorPath(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("walk", nil)
	fn, bbs := mainOf(mod, "entry", "loop", "exit")
	ir.NewBuilder(bbs[0]).Br(bbs[1])
	ir.NewBuilder(bbs[1]).CondBr(ir.True(), bbs[1], bbs[2])
	ir.NewBuilder(bbs[2]).Ret(ir.Int(ir.I32, 0))

	assert.Equal(t, bbs[:2], FirstSuccessorPath(fn))

	path, err := ParsePath(fn, []string{"entry", "loop", "exit"})
	require.NoError(t, err)
	assert.Equal(t, bbs, path)
	_, err = ParsePath(fn, []string{"nowhere"})
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TrackLevel = TrackPtr
	cfg.UseLambdas = true
	cfg.IgnoreExternalFunctions = []string{"printf"}
	cfg.LogTags = []string{"mem"}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "track: ptr")

	path := filepath.Join(t.TempDir(), ".opsem.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.NoError(t, os.WriteFile(path, []byte("track: disk\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("word_size: 3\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()
	mod := ir.NewModule("cancel", nil)
	_, bbs := mainOf(mod, "entry", "next")
	ir.NewBuilder(bbs[0]).Br(bbs[1])
	ir.NewBuilder(bbs[1]).Ret(ir.Int(ir.I32, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newMachine(t, mod).NewContext().RunPath(ctx, bbs)
	assert.ErrorIs(t, err, context.Canceled)
}
