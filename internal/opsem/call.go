package opsem

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/trie"
)

// assumeFunctions maps each assumption builtin to whether it negates its
// argument.
var assumeFunctions = func() *trie.Trie[bool] {
	t := trie.New[bool]()
	t.Insert("verifier.assume", false)
	t.Insert("verifier.assume.not", true)
	t.Insert("__VERIFIER_assume", false)
	return t
}()

// nondetFunctions are the prefixes of argument-less declarations that
// return an arbitrary value.
var nondetFunctions = func() *trie.Trie[struct{}] {
	t := trie.New[struct{}]()
	for _, p := range []string{"nd", "nondet.", "verifier.nondet", "__VERIFIER_nondet"} {
		t.Insert(p, struct{}{})
	}
	return t
}()

type intrinsicKind int

const (
	intrinsicOther intrinsicKind = iota
	intrinsicBswap
	intrinsicNop
	intrinsicMemSet
	intrinsicMemCpy
	intrinsicMemMove
	intrinsicVarArg
)

var intrinsics = func() *trie.Trie[intrinsicKind] {
	t := trie.New[intrinsicKind]()
	t.Insert("llvm.bswap", intrinsicBswap)
	t.Insert("llvm.dbg.", intrinsicNop)
	t.Insert("llvm.lifetime.", intrinsicNop)
	t.Insert("llvm.memset", intrinsicMemSet)
	t.Insert("llvm.memcpy", intrinsicMemCpy)
	t.Insert("llvm.memmove", intrinsicMemMove)
	t.Insert("llvm.va_", intrinsicVarArg)
	return t
}()

func (c *Context) execCall(inst *ir.Call) error {
	fn := inst.CalledFunction()
	if fn == nil {
		c.setValue(inst, expr.Nil)
		return nil
	}
	if fn.IsIntrinsic() {
		return c.execIntrinsic(inst, fn)
	}

	name := fn.Name()
	if negate, prefix, ok := assumeFunctions.Match(name); ok {
		c.execAssume(inst, negate && prefix == name)
		return nil
	}
	if name == "calloc" {
		c.execCalloc(inst)
		return nil
	}
	if inst.Shadow() != nil || ir.IsShadowMemName(name) {
		if inst.Shadow() == nil {
			c.m.log.Warn("shadow memory call without metadata", zap.String("inst", inst.String()))
		}
		return c.execShadowMem(inst, name)
	}

	if fn.IsDeclaration() {
		if len(inst.Args()) == 0 && nondetFunctions.HasPrefix(name) {
			if !inst.Type().IsVoid() {
				c.havoc(inst)
			}
			return nil
		}
		c.execExternal(inst, fn)
		return nil
	}

	if fi := c.m.mod.SummaryOf(fn); fi != nil {
		return c.execSummary(inst, fi)
	}
	return fmt.Errorf("%s: %w", inst, ErrUnhandledCall)
}

func (c *Context) execAssume(inst *ir.Call, negate bool) {
	f := c.factory()
	op := c.lookup(inst.Arg(0))
	if op == expr.Nil {
		c.m.log.Warn("assumption without a value", zap.String("inst", inst.String()))
		return
	}
	if negate {
		op = f.Not(op)
	}
	if f.IsTrue(op) {
		return
	}
	c.AddScopedSide(f.Or(c.readErrorFlag(inst.Parent()), op))
}

func (c *Context) execCalloc(inst *ir.Call) {
	defer c.clearMemRegisters()

	if c.readReg == expr.Nil || c.writeReg == expr.Nil {
		c.m.log.Warn("treating calloc as a no-op", zap.String("inst", inst.String()))
		return
	}
	f := c.factory()
	if c.m.cfg.IgnoreCalloc {
		c.m.log.Warn("treating calloc as malloc")
		c.AddSide(f.Eq(c.Read(c.writeReg), c.Read(c.readReg)))
	} else {
		c.m.log.Warn("calloc zero-initializes its whole memory region")
		mm := c.m.mem
		zero := f.ConstArray(f.ArraySort(mm.PtrSort(), mm.WordSort()), f.NumU64(0, f.BVWidth(mm.WordSort())))
		c.AddSide(f.Eq(c.Read(c.writeReg), mm.Coerce(c.writeReg, zero)))
	}
	c.havoc(inst)
}

// region returns the current value of a shadow-memory value whether or not
// it is tracked.
func (c *Context) region(v ir.Value) (expr.Expr, expr.Expr) {
	reg, err := c.MkRegister(v)
	if err != nil {
		c.fail(err)
		return expr.Nil, expr.Nil
	}
	return reg, c.Read(reg)
}

func (c *Context) freshRegion(v ir.Value) expr.Expr {
	reg, err := c.MkRegister(v)
	if err != nil {
		c.fail(err)
		return expr.Nil
	}
	h := c.m.mem.Coerce(reg, c.Havoc(reg))
	c.store[reg] = h
	return h
}

func (c *Context) execShadowMem(inst *ir.Call, name string) error {
	meta := inst.Shadow()
	arg := func(i int) ir.Value {
		if i < len(inst.Args()) {
			return inst.Arg(i)
		}
		return nil
	}
	needArg := func(i int) error {
		if arg(i) == nil {
			return fmt.Errorf("%s: missing argument %d: %w", inst, i, ir.ErrMalformed)
		}
		return nil
	}
	inMain := c.fn != nil && c.fn.IsMain()

	switch name {
	case ir.ShadowInit:
		c.havoc(inst)
	case ir.ShadowLoad:
		if err := needArg(1); err != nil {
			return err
		}
		c.readReg, _ = c.region(arg(1))
		c.scalar = c.m.uniqueScalar(meta)
	case ir.ShadowTrsfrLoad:
		if err := needArg(1); err != nil {
			return err
		}
		if c.m.uniqueScalar(meta) {
			return fmt.Errorf("%s: unique scalar in a transfer load: %w", inst, ErrUnsupported)
		}
		c.trsfrReadReg, _ = c.region(arg(1))
	case ir.ShadowStore:
		if err := needArg(1); err != nil {
			return err
		}
		memOut, err := c.MkRegister(inst)
		if err != nil {
			return err
		}
		memIn, _ := c.region(arg(1))
		c.havoc(inst)
		c.readReg, c.writeReg = memIn, memOut
		c.scalar = c.m.uniqueScalar(meta)
	case ir.ShadowArgRef:
		if err := needArg(1); err != nil {
			return err
		}
		_, v := c.region(arg(1))
		c.PushParameter(v)
	case ir.ShadowArgMod:
		if err := needArg(1); err != nil {
			return err
		}
		_, v := c.region(arg(1))
		c.PushParameter(v)
		c.PushParameter(c.freshRegion(inst))
	case ir.ShadowArgNew:
		c.PushParameter(c.freshRegion(inst))
	case ir.ShadowIn, ir.ShadowOut:
		if inMain {
			c.havoc(inst)
		} else if arg(1) != nil {
			c.lookup(arg(1))
		}
	case ir.ShadowArgInit:
		if inMain {
			c.havoc(inst)
		}
	case ir.ShadowGlobalInit:
		if err := needArg(1); err != nil {
			return err
		}
		return c.execGlobalInit(inst, arg(1), arg(2))
	default:
		return fmt.Errorf("%s: %w", inst, ErrUnknownShadowOp)
	}
	return nil
}

func (c *Context) execGlobalInit(inst *ir.Call, in, gv ir.Value) error {
	defer c.clearMemRegisters()

	memOut, err := c.MkRegister(inst)
	if err != nil {
		return err
	}
	memIn, cur := c.region(in)
	c.setValue(inst, c.lookup(in))
	c.readReg, c.writeReg = memIn, memOut

	g, ok := gv.(*ir.Global)
	if !ok || !g.HasInitializer() {
		c.m.log.Warn("skipping global initialization", zap.String("inst", inst.String()))
		return nil
	}
	ptr := c.lookup(g)
	if ptr == expr.Nil {
		return nil
	}
	align := c.m.layout.ABIAlign(g.ValueType)
	c.Write(memOut, c.m.mem.MemFill(ptr, g.Init, cur, align))
	c.m.log.Debug("global initialized",
		zap.String("global", g.Name()), zap.Int("bytes", len(g.Init)))
	return nil
}

// execExternal models a call to a function without a body as an
// uninterpreted function of its tracked arguments.
func (c *Context) execExternal(inst *ir.Call, fn *ir.Function) {
	if inst.Type().IsVoid() {
		return
	}
	if !c.m.cfg.EnableModelExternalCalls || c.m.cfg.ignoresExternal(fn.Name()) {
		c.setValue(inst, expr.Nil)
		return
	}
	if c.m.skipped(inst) || !hasSort(inst.Type()) {
		return
	}

	// Every argument must have a sort, otherwise the call is left
	// unconstrained.
	f := c.factory()
	args := make([]expr.Expr, 0, len(inst.Args()))
	sorts := make([]expr.Sort, 0, len(inst.Args()))
	for _, a := range inst.Args() {
		if c.m.skipped(a) || !hasSort(a.Type()) {
			c.m.log.Debug("argument without a sort, call not modeled",
				zap.String("function", fn.Name()), zap.String("arg", a.Ident()))
			return
		}
		e := c.lookup(a)
		if e == expr.Nil {
			return
		}
		args = append(args, e)
		sorts = append(sorts, f.SortOf(e))
	}
	reg, err := c.MkRegister(inst)
	if err != nil {
		c.fail(err)
		return
	}
	c.m.log.Debug("modeling call with an uninterpreted function", zap.String("function", fn.Name()))
	decl := f.FDecl(fn.Name(), sorts, f.SortOf(reg))
	c.setValue(inst, f.FApp(decl, args...))
}

func hasSort(ty *ir.Type) bool { return ty != nil && (ty.IsInt() || ty.IsPtr()) }

// execSummary asserts the summary predicate of the callee over the path
// condition, the error flags, the regions pushed by shadow calls and the
// arguments, globals and result of the call.
func (c *Context) execSummary(inst *ir.Call, fi *ir.FunctionInfo) error {
	f := c.factory()
	bb := inst.Parent()
	defer c.ResetParameters()

	c.SetParameter(0, c.pathCond)
	c.SetParameter(1, c.readErrorFlag(bb))
	if flag := c.ErrorFlag(bb); f.IsFalse(flag) {
		c.SetParameter(2, f.False())
	} else {
		c.SetParameter(2, c.Havoc(flag))
	}

	for _, p := range fi.Args {
		if p.Index >= len(inst.Args()) {
			return fmt.Errorf("%s: summary of %s wants argument %d: %w",
				inst, fi.Fn.Name(), p.Index, ErrArityMismatch)
		}
		if v := c.lookup(inst.Arg(p.Index)); v != expr.Nil {
			c.PushParameter(v)
		}
	}
	for _, g := range fi.Globals {
		if v := c.lookup(g); v != expr.Nil {
			c.PushParameter(v)
		}
	}
	if fi.Ret != nil {
		if v := c.havoc(inst); v != expr.Nil {
			c.PushParameter(v)
		}
	}
	if c.err != nil {
		return nil
	}

	params := c.Parameters()
	if len(params) != fi.Arity() {
		return fmt.Errorf("%s: summary of %s has %d parameters, call provides %d: %w",
			inst, fi.Fn.Name(), fi.Arity(), len(params), ErrArityMismatch)
	}
	sorts := make([]expr.Sort, len(params))
	for i, p := range params {
		sorts[i] = f.SortOf(p)
	}
	pred := f.FDecl("summary."+fi.Fn.Name(), sorts, f.BoolSort())
	c.AddSide(f.FApp(pred, params...))
	return nil
}

func (c *Context) execIntrinsic(inst *ir.Call, fn *ir.Function) error {
	kind, _, _ := intrinsics.Match(fn.Name())
	switch kind {
	case intrinsicBswap:
		c.execBswap(inst)
	case intrinsicNop:
	case intrinsicMemSet:
		return c.execMemSet(inst)
	case intrinsicMemCpy:
		return c.execMemCpy(inst)
	case intrinsicMemMove:
		c.m.log.Debug("skipping memmove", zap.String("inst", inst.String()))
		c.clearMemRegisters()
	case intrinsicVarArg:
		return unsupported(inst)
	default:
		if !inst.Type().IsVoid() {
			c.setValue(inst, expr.Nil)
		}
	}
	return nil
}

func (c *Context) execBswap(inst *ir.Call) {
	ty := inst.Type()
	if !ty.IsInt() || ty.Bits%16 != 0 {
		c.setValue(inst, expr.Nil)
		return
	}
	x := c.lookup(inst.Arg(0))
	if x == expr.Nil {
		c.setValue(inst, expr.Nil)
		return
	}
	f := c.factory()
	n := ty.Bits / 8
	parts := make([]expr.Expr, n)
	for i := range parts {
		hi := 8*(n-i) - 1
		parts[i] = f.Extract(hi, hi-7, x)
	}
	c.setValue(inst, f.ConcatLE(parts))
}

// intrinsicAlign reads the alignment operand of the older memory
// intrinsics, which carry it as an i32 fourth argument.
func intrinsicAlign(inst *ir.Call) int {
	args := inst.Args()
	if len(args) > 3 {
		if k, ok := args[3].(*ir.ConstInt); ok && k.Ty.Bits == 32 && k.V > 0 {
			return int(k.V)
		}
	}
	return 1
}

func (c *Context) execMemSet(inst *ir.Call) error {
	defer c.clearMemRegisters()

	if len(inst.Args()) < 3 {
		return fmt.Errorf("%s: %w", inst, ir.ErrMalformed)
	}
	if c.readReg == expr.Nil || c.writeReg == expr.Nil || c.m.skipped(inst.Arg(0)) {
		c.m.log.Warn("skipping memset", zap.String("inst", inst.String()))
		return nil
	}
	if c.scalar {
		return fmt.Errorf("%s: memset of a unique scalar: %w", inst, ErrUnsupported)
	}

	ptr, val, length := c.lookup(inst.Arg(0)), c.lookup(inst.Arg(1)), c.lookup(inst.Arg(2))
	if ptr == expr.Nil || val == expr.Nil || length == expr.Nil {
		c.m.log.Warn("skipping memset with unknown operands", zap.String("inst", inst.String()))
		return nil
	}
	res, err := c.m.mem.MemSet(ptr, val, length, c.Read(c.readReg), intrinsicAlign(inst))
	if err != nil {
		return fmt.Errorf("%s: %w", inst, err)
	}
	c.Write(c.writeReg, res)
	return nil
}

func (c *Context) execMemCpy(inst *ir.Call) error {
	defer c.clearMemRegisters()

	if len(inst.Args()) < 3 {
		return fmt.Errorf("%s: %w", inst, ir.ErrMalformed)
	}
	if c.readReg == expr.Nil || c.writeReg == expr.Nil || c.trsfrReadReg == expr.Nil ||
		c.m.skipped(inst.Arg(0)) || c.m.skipped(inst.Arg(1)) {
		c.m.log.Warn("skipping memcpy", zap.String("inst", inst.String()))
		return nil
	}
	if c.scalar {
		return fmt.Errorf("%s: memcpy into a unique scalar: %w", inst, ErrUnsupported)
	}

	dst, src, length := c.lookup(inst.Arg(0)), c.lookup(inst.Arg(1)), c.lookup(inst.Arg(2))
	if dst == expr.Nil || src == expr.Nil || length == expr.Nil {
		c.m.log.Warn("skipping memcpy with unknown operands", zap.String("inst", inst.String()))
		return nil
	}
	res, err := c.m.mem.MemCpy(dst, src, length, c.Read(c.readReg), c.Read(c.trsfrReadReg), intrinsicAlign(inst))
	if err != nil {
		return fmt.Errorf("%s: %w", inst, err)
	}
	c.Write(c.writeReg, res)
	return nil
}
