package mem

import (
	"fmt"

	"github.com/gnolang/opsem/internal/expr"
)

func (m *Manager) concreteLength(length expr.Expr, op string) (int, error) {
	n, ok := m.f.Uint64(length)
	if !ok {
		return 0, fmt.Errorf("%s of symbolic length %s: %w", op, m.f.String(length), ErrUnsupported)
	}
	return int(n), nil
}

// MemSet writes the byte b into length bytes at ptr.
func (m *Manager) MemSet(ptr, b, length, mem expr.Expr, align int) (expr.Expr, error) {
	n, err := m.concreteLength(length, "memset")
	if err != nil {
		return expr.Nil, err
	}
	if m.f.Width(b) != 8 {
		b = m.f.Extract(7, 0, b)
	}

	if !m.aligned(align) {
		if !m.byteAccessible() {
			return expr.Nil, fmt.Errorf("unaligned memset: %w", ErrUnsupported)
		}
		for i := 0; i < n; i++ {
			mem = m.storeByte(mem, m.PtrAdd(ptr, int64(i)), b)
		}
		return mem, nil
	}

	rep := make([]expr.Expr, m.wordSize)
	for i := range rep {
		rep[i] = b
	}
	word := m.f.ConcatLE(rep)
	words := n / m.wordSize
	mem = m.repr.MemSet(mem, ptr, word, words)
	if tail := n % m.wordSize; tail > 0 {
		mem = m.StoreIntToMem(m.f.Extract(8*tail-1, 0, word), m.wordAt(ptr, words), mem, tail, m.wordSize)
	}
	return mem, nil
}

// MemCpy copies length bytes from src in srcMem to dst in dstMem.
func (m *Manager) MemCpy(dst, src, length, dstMem, srcMem expr.Expr, align int) (expr.Expr, error) {
	n, err := m.concreteLength(length, "memcpy")
	if err != nil {
		return expr.Nil, err
	}

	if !m.aligned(align) {
		if !m.byteAccessible() {
			return expr.Nil, fmt.Errorf("unaligned memcpy: %w", ErrUnsupported)
		}
		for i := 0; i < n; i++ {
			b := m.loadByte(srcMem, m.PtrAdd(src, int64(i)))
			dstMem = m.storeByte(dstMem, m.PtrAdd(dst, int64(i)), b)
		}
		return dstMem, nil
	}

	words := n / m.wordSize
	dstMem = m.repr.MemCpy(dstMem, srcMem, dst, src, words)
	if tail := n % m.wordSize; tail > 0 {
		v := m.LoadIntFromMem(m.wordAt(src, words), srcMem, tail, m.wordSize)
		dstMem = m.StoreIntToMem(v, m.wordAt(dst, words), dstMem, tail, m.wordSize)
	}
	return dstMem, nil
}

// MemFill writes the concrete bytes data at ptr.
func (m *Manager) MemFill(ptr expr.Expr, data []byte, mem expr.Expr, align int) expr.Expr {
	if !m.aligned(align) {
		if !m.byteAccessible() {
			return expr.Nil
		}
		for i, b := range data {
			mem = m.storeByte(mem, m.PtrAdd(ptr, int64(i)), m.f.NumU64(uint64(b), 8))
		}
		return mem
	}

	words := len(data) / m.wordSize
	vals := make([]expr.Expr, words)
	for i := range vals {
		vals[i] = m.littleEndian(data[i*m.wordSize : (i+1)*m.wordSize])
	}
	mem = m.repr.MemFill(mem, ptr, vals)
	if rest := data[words*m.wordSize:]; len(rest) > 0 {
		mem = m.StoreIntToMem(m.littleEndian(rest), m.wordAt(ptr, words), mem, len(rest), m.wordSize)
	}
	return mem
}

func (m *Manager) littleEndian(bs []byte) expr.Expr {
	parts := make([]expr.Expr, len(bs))
	for i, b := range bs {
		parts[i] = m.f.NumU64(uint64(b), 8)
	}
	return m.f.ConcatLE(parts)
}
