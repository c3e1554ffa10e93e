package opsem

import (
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
)

// Store binds registers to their current value.
type Store map[expr.Expr]expr.Expr

func (s Store) Clone() Store { return maps.Clone(s) }

type regEntry struct {
	reg expr.Expr
	seq int
}

// Context is the state of one path through the program. Contexts are not
// safe for concurrent use; forked contexts are independent of each other
// and may run on separate goroutines.
type Context struct {
	m  *Machine
	id int

	// A forked context sees the registers its parent had created when the
	// fork happened: those with a sequence number below parentSeq.
	parent    *Context
	parentSeq int
	regs      map[ir.Value]regEntry
	seq       int
	declared  map[expr.Expr]struct{}

	store    Store
	side     []expr.Expr
	mark     int
	pathCond expr.Expr
	params   []expr.Expr

	// meta-registers naming the regions of the next memory access
	readReg      expr.Expr
	writeReg     expr.Expr
	trsfrReadReg expr.Expr
	scalar       bool

	fn   *ir.Function
	bb   *ir.Block
	prev *ir.Block
	pos  int

	ignored  map[ir.Value]struct{}
	approx   []ir.Value
	errFlags map[*ir.Block]expr.Expr

	err error
}

// NewContext returns a root context with an empty store.
func (m *Machine) NewContext() *Context {
	c := &Context{
		m:        m,
		id:       m.newContextID(),
		regs:     make(map[ir.Value]regEntry),
		declared: make(map[expr.Expr]struct{}),
		store:    make(Store),
		pathCond: m.f.True(),
		ignored:  make(map[ir.Value]struct{}),
		errFlags: make(map[*ir.Block]expr.Expr),
	}
	c.ResetParameters()
	return c
}

// Fork returns a context continuing from the current state of c with its
// own store and side conditions. A nil store or side starts from a copy of
// those of c.
func (c *Context) Fork(store Store, side []expr.Expr) *Context {
	if store == nil {
		store = c.store.Clone()
	}
	if side == nil {
		side = append([]expr.Expr(nil), c.side...)
	}
	return &Context{
		m:            c.m,
		id:           c.m.newContextID(),
		parent:       c,
		parentSeq:    c.seq,
		regs:         make(map[ir.Value]regEntry),
		declared:     maps.Clone(c.declared),
		store:        store,
		side:         side,
		mark:         min(c.mark, len(side)),
		pathCond:     c.pathCond,
		params:       append([]expr.Expr(nil), c.params...),
		readReg:      c.readReg,
		writeReg:     c.writeReg,
		trsfrReadReg: c.trsfrReadReg,
		scalar:       c.scalar,
		fn:           c.fn,
		bb:           c.bb,
		prev:         c.prev,
		pos:          c.pos,
		ignored:      maps.Clone(c.ignored),
		approx:       append([]ir.Value(nil), c.approx...),
		errFlags:     maps.Clone(c.errFlags),
	}
}

func (c *Context) Machine() *Machine { return c.m }
func (c *Context) Parent() *Context  { return c.parent }
func (c *Context) Store() Store      { return c.store }

func (c *Context) factory() *expr.Factory { return c.m.f }

// GetRegister returns the register of v, or expr.Nil when none exists yet.
func (c *Context) GetRegister(v ir.Value) expr.Expr {
	if e, ok := c.regs[v]; ok {
		return e.reg
	}
	limit := c.parentSeq
	for p := c.parent; p != nil; p = p.parent {
		if e, ok := p.regs[v]; ok && e.seq < limit {
			return e.reg
		}
		limit = p.parentSeq
	}
	return expr.Nil
}

// IsKnownRegister reports whether reg was created by this context or one of
// its ancestors before the fork.
func (c *Context) IsKnownRegister(reg expr.Expr) bool {
	_, ok := c.declared[reg]
	return ok
}

// MkRegister returns the register of v, creating it on first use.
func (c *Context) MkRegister(v ir.Value) (expr.Expr, error) {
	if r := c.GetRegister(v); r != expr.Nil {
		return r, nil
	}

	f := c.factory()
	name := c.m.valueName(v)
	if c.id > 0 {
		name = fmt.Sprintf("%s#%d", name, c.id)
	}

	var reg expr.Expr
	if meta, ok := ir.ShadowOf(v); ok {
		if c.m.uniqueScalar(meta) {
			reg = f.Const(name+"["+c.m.valueName(meta.Scalar)+"]", c.m.alu.IntSort(c.m.scalarBits(meta)))
		} else {
			reg = f.Const(name, c.m.mem.MemSort())
		}
	} else {
		switch v := v.(type) {
		case *ir.Block:
			reg = f.Const(name, f.BoolSort())
		case *ir.Function, *ir.Global:
			reg = f.Const(name, c.m.mem.PtrSort())
		default:
			ty := v.Type()
			switch {
			case ty.IsInt():
				reg = f.Const(name, c.m.alu.IntSort(ty.Bits))
			case ty.IsPtr():
				reg = f.Const(name, c.m.mem.PtrSort())
			default:
				return expr.Nil, fmt.Errorf("register for %s of type %s: %w", v.Ident(), ty, ErrUnsupported)
			}
		}
	}

	c.regs[v] = regEntry{reg: reg, seq: c.seq}
	c.seq++
	c.declared[reg] = struct{}{}
	return reg, nil
}

// Read returns the value bound to reg. An unbound register stands for
// itself.
func (c *Context) Read(reg expr.Expr) expr.Expr {
	if v, ok := c.store[reg]; ok {
		return v
	}
	return reg
}

func (c *Context) Write(reg, val expr.Expr) {
	if c.m.cfg.SimplifyOnWrite {
		val = c.m.simp.Simplify(val)
	}
	c.store[reg] = val
}

// Havoc binds reg to a fresh unconstrained value and returns it.
func (c *Context) Havoc(reg expr.Expr) expr.Expr {
	f := c.factory()
	h := f.Fresh(f.Name(reg), f.SortOf(reg))
	c.store[reg] = h
	return h
}

func (c *Context) PathCond() expr.Expr             { return c.pathCond }
func (c *Context) SetPathCond(pc expr.Expr)        { c.pathCond = pc }
func (c *Context) Side() []expr.Expr               { return c.side }
func (c *Context) AddSide(e expr.Expr)             { c.side = append(c.side, e) }
func (c *Context) Parameters() []expr.Expr         { return c.params }
func (c *Context) PushParameter(e expr.Expr)       { c.params = append(c.params, e) }
func (c *Context) SetParameter(i int, e expr.Expr) { c.params[i] = e }

// AddScopedSide adds e under the current path condition.
func (c *Context) AddScopedSide(e expr.Expr) {
	f := c.factory()
	if f.IsTrue(c.pathCond) {
		c.AddSide(e)
		return
	}
	c.AddSide(f.Implies(c.pathCond, e))
}

// markStep remembers where the side conditions of the current step begin.
func (c *Context) markStep() { c.mark = len(c.side) }

// ResetSide drops the side conditions added by the current step.
func (c *Context) ResetSide() { c.side = c.side[:c.mark] }

// Snapshot returns a copy of the side conditions.
func (c *Context) Snapshot() []expr.Expr { return append([]expr.Expr(nil), c.side...) }

// Restore replaces the side conditions with a snapshot.
func (c *Context) Restore(side []expr.Expr) {
	c.side = append(c.side[:0], side...)
	c.mark = min(c.mark, len(c.side))
}

// ResetParameters empties the parameter stack down to the path condition
// and the two error flags, all false.
func (c *Context) ResetParameters() {
	f := c.factory()
	c.params = append(c.params[:0], f.False(), f.False(), f.False())
}

func (c *Context) MemReadRegister() expr.Expr  { return c.readReg }
func (c *Context) MemWriteRegister() expr.Expr { return c.writeReg }
func (c *Context) MemTrsfrReadReg() expr.Expr  { return c.trsfrReadReg }
func (c *Context) IsMemScalar() bool           { return c.scalar }

func (c *Context) clearMemRegisters() {
	c.readReg, c.writeReg, c.trsfrReadReg = expr.Nil, expr.Nil, expr.Nil
	c.scalar = false
}

func (c *Context) Function() *ir.Function { return c.fn }
func (c *Context) Block() *ir.Block       { return c.bb }
func (c *Context) PrevBlock() *ir.Block   { return c.prev }

// OnBasicBlockEntry moves the cursor to the start of bb.
func (c *Context) OnBasicBlockEntry(bb *ir.Block) {
	if c.fn == nil {
		c.fn = bb.Parent
	}
	if c.bb != nil {
		c.prev = c.bb
	}
	c.bb = bb
	c.fn = bb.Parent
	c.pos = 0
}

func (c *Context) setPrevBlock(bb *ir.Block) { c.prev = bb }

// onModuleEntry lays out the module once per machine, pins the initial
// stack pointer inside the stack window and binds the registers of
// address-taken functions and globals.
func (c *Context) onModuleEntry() error {
	c.m.enterModule.Do(func() { c.m.mem.OnModuleEntry(c.m.mod) })
	c.AddSide(c.m.mem.StackPtrConstraint())

	for _, fn := range c.m.mod.Functions {
		if !fn.AddressTaken || isReservedFunction(fn.Name()) {
			continue
		}
		reg, err := c.MkRegister(fn)
		if err != nil {
			return err
		}
		c.Write(reg, c.m.mem.Falloc(fn))
	}
	for _, g := range c.m.mod.Globals {
		if c.m.skipped(g) {
			continue
		}
		if g.Section == "llvm.metadata" {
			c.m.log.Debug("skipping global in the llvm.metadata section", zap.String("global", g.Name()))
			continue
		}
		reg, err := c.MkRegister(g)
		if err != nil {
			return err
		}
		c.Write(reg, c.m.mem.Galloc(g))
	}
	c.m.mem.DumpGlobals()
	return nil
}

func (c *Context) onFunctionEntry(fn *ir.Function) {
	c.m.mem.OnFunctionEntry(fn)
}

// ErrorFlag returns the error register of bb.
func (c *Context) ErrorFlag(bb *ir.Block) expr.Expr { return c.m.ErrorFlag(bb) }

func (c *Context) readErrorFlag(bb *ir.Block) expr.Expr {
	return c.Read(c.ErrorFlag(bb))
}

func (c *Context) isIgnored(v ir.Value) bool {
	_, ok := c.ignored[v]
	return ok
}

func (c *Context) ignore(v ir.Value) { c.ignored[v] = struct{}{} }

// Ignored returns the values the semantics skipped or could not model.
func (c *Context) Ignored() []ir.Value {
	vs := make([]ir.Value, 0, len(c.ignored))
	for v := range c.ignored {
		vs = append(vs, v)
	}
	return vs
}
