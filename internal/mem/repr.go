package mem

import "github.com/gnolang/opsem/internal/expr"

// Repr is the encoding of a memory region as an expression. Regions map
// word-aligned pointers to words; the manager layers byte access on top.
type Repr interface {
	// MemSort is the sort of a region register.
	MemSort() expr.Sort

	Load(mem, ptr expr.Expr) expr.Expr
	Store(mem, ptr, val expr.Expr) expr.Expr

	// MemSet writes word into the words consecutive words at ptr.
	MemSet(mem, ptr, word expr.Expr, words int) expr.Expr
	// MemCpy copies words words from src in srcMem to dst in dstMem.
	MemCpy(dstMem, srcMem, dst, src expr.Expr, words int) expr.Expr
	// MemFill writes vals at consecutive words starting at ptr.
	MemFill(mem, ptr expr.Expr, vals []expr.Expr) expr.Expr

	// Coerce adapts val to the encoding of the register reg.
	Coerce(reg, val expr.Expr) expr.Expr
}

type reprBase struct {
	f        *expr.Factory
	ptrBits  int
	wordBits int
	wordSize int
}

func (r *reprBase) wordAddr(ptr expr.Expr, i int) expr.Expr {
	return r.f.BVAdd(ptr, r.f.NumU64(uint64(i*r.wordSize), r.ptrBits))
}

// ArrayRepr encodes a region as an SMT array from pointers to words.
type ArrayRepr struct {
	reprBase
}

func NewArrayRepr(f *expr.Factory, ptrSize, wordSize int) *ArrayRepr {
	return &ArrayRepr{reprBase{f: f, ptrBits: 8 * ptrSize, wordBits: 8 * wordSize, wordSize: wordSize}}
}

func (r *ArrayRepr) MemSort() expr.Sort {
	return r.f.ArraySort(r.f.BVSort(r.ptrBits), r.f.BVSort(r.wordBits))
}

func (r *ArrayRepr) Load(mem, ptr expr.Expr) expr.Expr { return r.f.Select(mem, ptr) }

func (r *ArrayRepr) Store(mem, ptr, val expr.Expr) expr.Expr { return r.f.Store(mem, ptr, val) }

func (r *ArrayRepr) MemSet(mem, ptr, word expr.Expr, words int) expr.Expr {
	for i := 0; i < words; i++ {
		mem = r.f.Store(mem, r.wordAddr(ptr, i), word)
	}
	return mem
}

func (r *ArrayRepr) MemCpy(dstMem, srcMem, dst, src expr.Expr, words int) expr.Expr {
	for i := 0; i < words; i++ {
		dstMem = r.f.Store(dstMem, r.wordAddr(dst, i), r.f.Select(srcMem, r.wordAddr(src, i)))
	}
	return dstMem
}

func (r *ArrayRepr) MemFill(mem, ptr expr.Expr, vals []expr.Expr) expr.Expr {
	for i, v := range vals {
		mem = r.f.Store(mem, r.wordAddr(ptr, i), v)
	}
	return mem
}

func (r *ArrayRepr) Coerce(_, val expr.Expr) expr.Expr { return val }

// LambdaRepr encodes a region as a function from pointers to words. Writes
// build a case split over the written addresses.
type LambdaRepr struct {
	reprBase
}

func NewLambdaRepr(f *expr.Factory, ptrSize, wordSize int) *LambdaRepr {
	return &LambdaRepr{reprBase{f: f, ptrBits: 8 * ptrSize, wordBits: 8 * wordSize, wordSize: wordSize}}
}

func (r *LambdaRepr) MemSort() expr.Sort {
	return r.f.FuncSort([]expr.Sort{r.f.BVSort(r.ptrBits)}, r.f.BVSort(r.wordBits))
}

func (r *LambdaRepr) addr() expr.Expr { return r.f.Bound(0, r.f.BVSort(r.ptrBits)) }

func (r *LambdaRepr) Load(mem, ptr expr.Expr) expr.Expr { return r.f.FApp(mem, ptr) }

func (r *LambdaRepr) Store(mem, ptr, val expr.Expr) expr.Expr {
	return r.MemFill(mem, ptr, []expr.Expr{val})
}

func (r *LambdaRepr) MemSet(mem, ptr, word expr.Expr, words int) expr.Expr {
	if words == 0 {
		return mem
	}
	keys := make([]expr.Expr, words)
	vals := make([]expr.Expr, words)
	for i := range keys {
		keys[i] = r.wordAddr(ptr, i)
		vals[i] = word
	}
	a := r.addr()
	return r.f.Lambda([]expr.Expr{a}, MakeLinearITE(r.f, a, keys, vals, mem))
}

func (r *LambdaRepr) MemCpy(dstMem, srcMem, dst, src expr.Expr, words int) expr.Expr {
	if words == 0 {
		return dstMem
	}
	keys := make([]expr.Expr, words)
	vals := make([]expr.Expr, words)
	for i := range keys {
		keys[i] = r.wordAddr(dst, i)
		vals[i] = r.f.FApp(srcMem, r.wordAddr(src, i))
	}
	a := r.addr()
	return r.f.Lambda([]expr.Expr{a}, MakeLinearITE(r.f, a, keys, vals, dstMem))
}

func (r *LambdaRepr) MemFill(mem, ptr expr.Expr, vals []expr.Expr) expr.Expr {
	if len(vals) == 0 {
		return mem
	}
	keys := make([]expr.Expr, len(vals))
	for i := range keys {
		keys[i] = r.wordAddr(ptr, i)
	}
	a := r.addr()
	return r.f.Lambda([]expr.Expr{a}, MakeLinearITE(r.f, a, keys, vals, mem))
}

// Coerce turns an array value into the equivalent lambda.
func (r *LambdaRepr) Coerce(_, val expr.Expr) expr.Expr {
	if val == expr.Nil || !r.f.IsArraySorted(val) {
		return val
	}
	a := r.addr()
	if r.f.Op(val) == expr.OpConstArray {
		return r.f.Lambda([]expr.Expr{a}, r.f.Kid(val, 0))
	}
	return r.f.Lambda([]expr.Expr{a}, r.f.Select(val, a))
}

// MakeLinearITE returns ite(addr = keys[0], vals[0], ite(addr = keys[1],
// ..., fallback(addr))). Earlier keys take precedence.
func MakeLinearITE(f *expr.Factory, addr expr.Expr, keys, vals []expr.Expr, fallback expr.Expr) expr.Expr {
	res := f.FApp(fallback, addr)
	for i := len(keys) - 1; i >= 0; i-- {
		res = f.Ite(f.Eq(addr, keys[i]), vals[i], res)
	}
	return res
}
