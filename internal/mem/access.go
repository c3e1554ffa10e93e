package mem

import (
	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
)

// aligned reports whether an access with the given alignment starts on a
// word boundary. Alignment 0 means the alignment is unknown.
func (m *Manager) aligned(align int) bool {
	return align > 0 && align%m.wordSize == 0
}

// valueAlign resolves an unknown alignment to the ABI alignment of ty.
func (m *Manager) valueAlign(ty *ir.Type, align int) int {
	if align > 0 {
		return align
	}
	return m.layout.ABIAlign(ty)
}

func (m *Manager) wordAt(ptr expr.Expr, i int) expr.Expr {
	return m.PtrAdd(ptr, int64(i*m.wordSize))
}

// LoadIntFromMem reads a byteSz-byte integer at ptr. The result is nil when
// the access cannot be expressed.
func (m *Manager) LoadIntFromMem(ptr, mem expr.Expr, byteSz, align int) expr.Expr {
	if !m.aligned(align) {
		return m.loadUnaligned(ptr, mem, byteSz)
	}
	switch {
	case byteSz == m.wordSize:
		return m.repr.Load(mem, ptr)
	case byteSz < m.wordSize:
		return m.f.Extract(8*byteSz-1, 0, m.repr.Load(mem, ptr))
	}

	n := (byteSz + m.wordSize - 1) / m.wordSize
	words := make([]expr.Expr, n)
	for i := range words {
		words[i] = m.repr.Load(mem, m.wordAt(ptr, i))
	}
	v := m.f.ConcatLE(words)
	if m.f.Width(v) > 8*byteSz {
		v = m.f.Extract(8*byteSz-1, 0, v)
	}
	return v
}

// StoreIntToMem writes the byteSz-byte integer val at ptr and returns the
// updated region, or nil when the access cannot be expressed.
func (m *Manager) StoreIntToMem(val, ptr, mem expr.Expr, byteSz, align int) expr.Expr {
	if !m.aligned(align) {
		return m.storeUnaligned(val, ptr, mem, byteSz)
	}
	if byteSz == m.wordSize {
		return m.repr.Store(mem, ptr, val)
	}

	for i := 0; i*m.wordSize < byteSz; i++ {
		lo := 8 * i * m.wordSize
		hi := min(lo+m.wordBits, 8*byteSz)
		chunk := m.f.Extract(hi-1, lo, val)
		p := m.wordAt(ptr, i)
		if hi-lo < m.wordBits {
			old := m.repr.Load(mem, p)
			chunk = m.f.Concat(m.f.Extract(m.wordBits-1, hi-lo, old), chunk)
		}
		mem = m.repr.Store(mem, p, chunk)
	}
	return mem
}

func (m *Manager) LoadPtrFromMem(ptr, mem expr.Expr, align int) expr.Expr {
	return m.LoadIntFromMem(ptr, mem, m.ptrSize, align)
}

func (m *Manager) StorePtrToMem(val, ptr, mem expr.Expr, align int) expr.Expr {
	return m.StoreIntToMem(val, ptr, mem, m.ptrSize, align)
}

// LoadValueFromMem reads a value of type ty. Booleans are stored as one
// byte.
func (m *Manager) LoadValueFromMem(ptr, mem expr.Expr, ty *ir.Type, align int) expr.Expr {
	align = m.valueAlign(ty, align)
	switch {
	case ty.IsBool():
		b := m.LoadIntFromMem(ptr, mem, 1, align)
		if b == expr.Nil {
			return expr.Nil
		}
		return m.f.Not(m.f.Eq(b, m.f.NumU64(0, 8)))
	case ty.IsInt():
		sz := m.layout.StoreSize(ty)
		v := m.LoadIntFromMem(ptr, mem, sz, align)
		if v != expr.Nil && ty.Bits < 8*sz {
			v = m.f.Extract(ty.Bits-1, 0, v)
		}
		return v
	case ty.IsPtr():
		return m.LoadPtrFromMem(ptr, mem, align)
	}
	m.log.Warn("load of unsupported type", zap.Stringer("type", ty))
	return expr.Nil
}

func (m *Manager) StoreValueToMem(val, ptr, mem expr.Expr, ty *ir.Type, align int) expr.Expr {
	align = m.valueAlign(ty, align)
	switch {
	case ty.IsBool():
		b := m.f.Ite(val, m.f.NumU64(1, 8), m.f.NumU64(0, 8))
		return m.StoreIntToMem(b, ptr, mem, 1, align)
	case ty.IsInt():
		sz := m.layout.StoreSize(ty)
		if w := m.f.Width(val); w < 8*sz {
			val = m.f.ZExt(val, 8*sz-w)
		}
		return m.StoreIntToMem(val, ptr, mem, sz, align)
	case ty.IsPtr():
		return m.StorePtrToMem(val, ptr, mem, align)
	}
	m.log.Warn("store of unsupported type", zap.Stringer("type", ty))
	return expr.Nil
}

// splitPtr separates p into the address of its word and the bit offset of
// the addressed byte within that word.
func (m *Manager) splitPtr(p expr.Expr) (expr.Expr, expr.Expr) {
	k := m.ByteAlignmentBits()
	addr := m.f.Concat(m.f.Extract(m.ptrBits-1, k, p), m.f.NumU64(0, k))
	off := m.f.Extract(k-1, 0, p)
	shift := m.f.BVShl(m.f.ZExt(off, m.wordBits-k), m.f.NumU64(3, m.wordBits))
	return addr, shift
}

func (m *Manager) byteAccessible() bool {
	if m.wordSize == 1 || m.ByteAlignmentBits() > 0 {
		return true
	}
	m.log.Warn("unaligned access with a word size that is not a power of two", zap.Int("word", m.wordSize))
	return false
}

func (m *Manager) loadByte(mem, p expr.Expr) expr.Expr {
	if m.wordSize == 1 {
		return m.repr.Load(mem, p)
	}
	addr, shift := m.splitPtr(p)
	return m.f.Extract(7, 0, m.f.BVLShr(m.repr.Load(mem, addr), shift))
}

func (m *Manager) storeByte(mem, p, b expr.Expr) expr.Expr {
	if m.wordSize == 1 {
		return m.repr.Store(mem, p, b)
	}
	addr, shift := m.splitPtr(p)
	word := m.repr.Load(mem, addr)
	mask := m.f.BVNot(m.f.BVShl(m.f.NumU64(0xff, m.wordBits), shift))
	word = m.f.BVOr(m.f.BVAnd(word, mask), m.f.BVShl(m.f.ZExt(b, m.wordBits-8), shift))
	return m.repr.Store(mem, addr, word)
}

func (m *Manager) loadUnaligned(ptr, mem expr.Expr, byteSz int) expr.Expr {
	if !m.byteAccessible() {
		return expr.Nil
	}
	bs := make([]expr.Expr, byteSz)
	for i := range bs {
		bs[i] = m.loadByte(mem, m.PtrAdd(ptr, int64(i)))
	}
	return m.f.ConcatLE(bs)
}

func (m *Manager) storeUnaligned(val, ptr, mem expr.Expr, byteSz int) expr.Expr {
	if !m.byteAccessible() {
		return expr.Nil
	}
	for i := 0; i < byteSz; i++ {
		mem = m.storeByte(mem, m.PtrAdd(ptr, int64(i)), m.f.Extract(8*i+7, 8*i, val))
	}
	return mem
}
