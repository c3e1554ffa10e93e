package mem

import (
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
)

// Options configures a Manager.
type Options struct {
	PtrSize    int
	WordSize   int
	UseLambdas bool
	// Static selects the StaticAllocator.
	Static bool
}

// Manager turns allocations into pointer expressions and memory accesses
// into region updates. It is shared by every context forked from the same
// machine.
type Manager struct {
	f      *expr.Factory
	layout *ir.DataLayout
	alloc  Allocator
	repr   Repr
	log    *zap.Logger

	ptrSize, wordSize int
	ptrBits, wordBits int

	sp0 expr.Expr
}

func NewManager(f *expr.Factory, layout *ir.DataLayout, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if layout == nil {
		layout = &ir.DataLayout{PtrBytes: opts.PtrSize}
	}
	m := &Manager{
		f:        f,
		layout:   layout,
		log:      log,
		ptrSize:  opts.PtrSize,
		wordSize: opts.WordSize,
		ptrBits:  8 * opts.PtrSize,
		wordBits: 8 * opts.WordSize,
	}
	if opts.Static {
		m.alloc = NewStaticAllocator(opts.WordSize)
	} else {
		m.alloc = NewNormalAllocator()
	}
	if opts.UseLambdas {
		m.repr = NewLambdaRepr(f, opts.PtrSize, opts.WordSize)
	} else {
		m.repr = NewArrayRepr(f, opts.PtrSize, opts.WordSize)
	}
	m.sp0 = f.Const("sea.sp0", m.PtrSort())
	return m
}

func (m *Manager) Factory() *expr.Factory { return m.f }
func (m *Manager) Allocator() Allocator   { return m.alloc }
func (m *Manager) PtrSize() int           { return m.ptrSize }
func (m *Manager) WordSize() int          { return m.wordSize }

func (m *Manager) PtrSort() expr.Sort  { return m.f.BVSort(m.ptrBits) }
func (m *Manager) WordSort() expr.Sort { return m.f.BVSort(m.wordBits) }
func (m *Manager) MemSort() expr.Sort  { return m.repr.MemSort() }

// SP0 is the value of the stack pointer when main is entered.
func (m *Manager) SP0() expr.Expr { return m.sp0 }

func (m *Manager) NullPtr() expr.Expr { return m.f.NumU64(0, m.ptrBits) }

// ByteAlignmentBits is the number of low pointer bits that select a byte
// within a word, or 0 when the word size is not a power of two.
func (m *Manager) ByteAlignmentBits() int {
	if m.wordSize <= 0 || m.wordSize&(m.wordSize-1) != 0 {
		return 0
	}
	return bits.TrailingZeros(uint(m.wordSize))
}

// MkStackPtr returns sp0 - offset.
func (m *Manager) MkStackPtr(offset uint64) expr.Expr {
	return m.f.BVSub(m.sp0, m.f.NumU64(offset, m.ptrBits))
}

// StackPtrConstraint keeps sp0 word-aligned and high enough in the stack
// window that every frame stays above the heap.
func (m *Manager) StackPtrConstraint() expr.Expr {
	lo := m.f.NumU64(MaxStackAddr-StackSlack, m.ptrBits)
	hi := m.f.NumU64(MaxStackAddr, m.ptrBits)
	c := m.PtrInRangeCheck(lo, m.sp0, hi)
	if k := m.ByteAlignmentBits(); k > 0 {
		c = m.f.And(c, m.f.Eq(m.f.Extract(k-1, 0, m.sp0), m.f.NumU64(0, k)))
	}
	return c
}

// FreshPtr returns an unconstrained word-aligned pointer.
func (m *Manager) FreshPtr() expr.Expr {
	k := m.ByteAlignmentBits()
	if k == 0 {
		return m.f.Fresh("sea.ptr", m.PtrSort())
	}
	return m.f.Concat(m.f.Fresh("sea.ptr", m.f.BVSort(m.ptrBits-k)), m.f.NumU64(0, k))
}

func (m *Manager) Brk0Ptr() expr.Expr { return m.f.NumU64(m.alloc.Brk0Addr(), m.ptrBits) }

func (m *Manager) allocAlign(align int) int { return max(align, m.wordSize) }

func (m *Manager) Salloc(bytes, align int) expr.Expr {
	iv := m.alloc.Salloc(bytes, m.allocAlign(align))
	if iv.IsBad() {
		m.log.Warn("stack exhausted, using a fresh pointer", zap.Int("bytes", bytes))
		return m.FreshPtr()
	}
	return m.MkStackPtr(MaxStackAddr - iv.Lo)
}

// SallocSymbolic allocates count elements of elemSize bytes on the stack.
func (m *Manager) SallocSymbolic(count expr.Expr, elemSize, align int) expr.Expr {
	off := m.alloc.SallocSymbolic(elemSize, m.allocAlign(align))
	size := m.f.BVMul(m.resize(count, false), m.f.NumU64(uint64(elemSize), m.ptrBits))
	base := m.f.BVSub(m.MkStackPtr(off), size)
	if a := m.allocAlign(align); a&(a-1) == 0 {
		base = m.f.BVAnd(base, m.f.NumU64(^uint64(a-1), m.ptrBits))
	}
	return base
}

func (m *Manager) Halloc(bytes, align int) expr.Expr {
	iv := m.alloc.Halloc(bytes, m.allocAlign(align))
	if iv.IsBad() {
		m.log.Warn("heap exhausted, using a fresh pointer", zap.Int("bytes", bytes))
		return m.FreshPtr()
	}
	return m.f.NumU64(iv.Lo, m.ptrBits)
}

func (m *Manager) globalSize(g *ir.Global) (int, int) {
	return m.layout.AllocSize(g.ValueType), m.allocAlign(m.layout.ABIAlign(g.ValueType))
}

func (m *Manager) Galloc(g *ir.Global) expr.Expr {
	bytes, align := m.globalSize(g)
	iv := m.alloc.Galloc(g, bytes, align)
	if iv.IsBad() {
		m.log.Warn("global window exhausted", zap.String("global", g.Name()))
		return m.FreshPtr()
	}
	return m.f.NumU64(iv.Lo, m.ptrBits)
}

func (m *Manager) Falloc(fn *ir.Function) expr.Expr {
	iv := m.alloc.Falloc(fn, m.wordSize)
	if iv.IsBad() {
		m.log.Warn("code window exhausted", zap.String("function", fn.Name()))
		return m.FreshPtr()
	}
	return m.f.NumU64(iv.Lo, m.ptrBits)
}

func (m *Manager) PtrToFunction(fn *ir.Function) expr.Expr {
	return m.f.NumU64(m.alloc.FunctionAddr(fn, m.wordSize), m.ptrBits)
}

func (m *Manager) PtrToGlobal(g *ir.Global) expr.Expr {
	bytes, align := m.globalSize(g)
	return m.f.NumU64(m.alloc.GlobalAddr(g, bytes, align), m.ptrBits)
}

func (m *Manager) OnFunctionEntry(fn *ir.Function) { m.alloc.OnFunctionEntry(fn) }
func (m *Manager) OnModuleEntry(mod *ir.Module)    { m.alloc.OnModuleEntry(mod, m.layout) }

// DumpGlobals logs and returns the global and function allocations.
func (m *Manager) DumpGlobals() []Allocation {
	allocs := m.alloc.Globals()
	for _, a := range allocs {
		m.log.Debug("allocated", zap.Stringer("object", a))
	}
	return allocs
}

func (m *Manager) Coerce(reg, val expr.Expr) expr.Expr { return m.repr.Coerce(reg, val) }

// resize sign- or zero-extends or truncates v to the pointer width.
func (m *Manager) resize(v expr.Expr, signed bool) expr.Expr {
	w := m.f.Width(v)
	switch {
	case w < m.ptrBits && signed:
		return m.f.SExt(v, m.ptrBits-w)
	case w < m.ptrBits:
		return m.f.ZExt(v, m.ptrBits-w)
	case w > m.ptrBits:
		return m.f.Extract(m.ptrBits-1, 0, v)
	}
	return v
}

func (m *Manager) PtrAdd(ptr expr.Expr, off int64) expr.Expr {
	if off == 0 {
		return ptr
	}
	return m.f.BVAdd(ptr, m.f.NumI64(off, m.ptrBits))
}

// PtrAddExpr adds a signed offset of any width to ptr.
func (m *Manager) PtrAddExpr(ptr, off expr.Expr) expr.Expr {
	return m.f.BVAdd(ptr, m.resize(off, true))
}

func (m *Manager) PtrSub(p1, p2 expr.Expr) expr.Expr { return m.f.BVSub(p1, p2) }

func (m *Manager) PtrOffsetFromBase(base, ptr expr.Expr) expr.Expr { return m.f.BVSub(ptr, base) }

func (m *Manager) IntToPtr(v expr.Expr) expr.Expr { return m.resize(v, false) }

func (m *Manager) PtrToInt(p expr.Expr, bits int) expr.Expr {
	switch {
	case bits > m.ptrBits:
		return m.f.ZExt(p, bits-m.ptrBits)
	case bits < m.ptrBits:
		return m.f.Extract(bits-1, 0, p)
	}
	return p
}

func (m *Manager) PtrEq(a, b expr.Expr) expr.Expr  { return m.f.Eq(a, b) }
func (m *Manager) PtrNe(a, b expr.Expr) expr.Expr  { return m.f.Ne(a, b) }
func (m *Manager) PtrUlt(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVUlt, a, b) }
func (m *Manager) PtrSlt(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVSlt, a, b) }
func (m *Manager) PtrUle(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVUle, a, b) }
func (m *Manager) PtrSle(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVSle, a, b) }
func (m *Manager) PtrUgt(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVUgt, a, b) }
func (m *Manager) PtrSgt(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVSgt, a, b) }
func (m *Manager) PtrUge(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVUge, a, b) }
func (m *Manager) PtrSge(a, b expr.Expr) expr.Expr { return m.f.Compare(expr.OpBVSge, a, b) }

// PtrInRangeCheck holds when lo <= p <= hi.
func (m *Manager) PtrInRangeCheck(lo, p, hi expr.Expr) expr.Expr {
	return m.f.And(m.PtrUle(lo, p), m.PtrUle(p, hi))
}

// GEPIndex is one index of an address computation: Sym when it is
// symbolic, Const otherwise.
type GEPIndex struct {
	Const int64
	Sym   expr.Expr
}

// GEP returns ptr displaced by the offset the indices select in source.
// The first index steps over whole source objects; the rest walk into
// structs and arrays.
func (m *Manager) GEP(ptr expr.Expr, source *ir.Type, indices []GEPIndex) (expr.Expr, error) {
	var (
		konst int64
		sym   = expr.Nil
	)
	step := func(idx GEPIndex, stride int) {
		if idx.Sym == expr.Nil {
			konst += idx.Const * int64(stride)
			return
		}
		term := m.f.BVMul(m.resize(idx.Sym, true), m.f.NumU64(uint64(stride), m.ptrBits))
		if sym == expr.Nil {
			sym = term
		} else {
			sym = m.f.BVAdd(sym, term)
		}
	}

	t := source
	for i, idx := range indices {
		if i == 0 {
			step(idx, m.layout.AllocSize(t))
			continue
		}
		switch t.Kind {
		case ir.StructTy:
			if idx.Sym != expr.Nil {
				return expr.Nil, fmt.Errorf("symbolic struct field index: %w", ErrUnsupported)
			}
			konst += int64(m.layout.FieldOffset(t, int(idx.Const)))
			t = t.Fields[idx.Const]
		case ir.ArrayTy, ir.VectorTy:
			t = t.Elem
			step(idx, m.layout.AllocSize(t))
		default:
			return expr.Nil, fmt.Errorf("index into %s: %w", t, ErrUnsupported)
		}
	}

	res := ptr
	if sym != expr.Nil {
		res = m.f.BVAdd(res, sym)
	}
	return m.PtrAdd(res, konst), nil
}
