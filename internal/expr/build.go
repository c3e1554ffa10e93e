package expr

import (
	"fmt"

	"github.com/holiman/uint256"
)

func (f *Factory) True() Expr  { return f.intern(node{op: OpTrue, sort: f.BoolSort()}) }
func (f *Factory) False() Expr { return f.intern(node{op: OpFalse, sort: f.BoolSort()}) }

func (f *Factory) Bool(b bool) Expr {
	if b {
		return f.True()
	}
	return f.False()
}

// Num returns the numeral v truncated to width bits.
func (f *Factory) Num(v *uint256.Int, width int) Expr {
	return f.intern(node{op: OpNum, sort: f.BVSort(width), num: *truncNum(v, width)})
}

func (f *Factory) NumU64(v uint64, width int) Expr {
	return f.Num(uint256.NewInt(v), width)
}

// NumI64 returns the two's complement encoding of v in width bits.
func (f *Factory) NumI64(v int64, width int) Expr {
	x := uint256.NewInt(uint64(v))
	if v < 0 {
		x.Or(x, new(uint256.Int).Not(mask(64)))
	}
	return f.Num(x, width)
}

// Const returns the uninterpreted constant name of sort s.
func (f *Factory) Const(name string, s Sort) Expr {
	return f.intern(node{op: OpConst, sort: s, name: name})
}

// Fresh returns a constant whose name has not been produced by Fresh before.
func (f *Factory) Fresh(prefix string, s Sort) Expr {
	f.mu.Lock()
	n := f.fresh[prefix]
	f.fresh[prefix] = n + 1
	f.mu.Unlock()
	return f.Const(fmt.Sprintf("%s!%d", prefix, n), s)
}

// Bound returns the bound variable with index idx, for use under Lambda.
func (f *Factory) Bound(idx int, s Sort) Expr {
	return f.intern(node{op: OpBound, sort: s, p0: idx})
}

// FDecl declares an uninterpreted function.
func (f *Factory) FDecl(name string, domain []Sort, rng Sort) Expr {
	return f.intern(node{op: OpFDecl, sort: f.FuncSort(domain, rng), name: name})
}

func (f *Factory) mustBool(es ...Expr) {
	b := f.BoolSort()
	for _, e := range es {
		if f.SortOf(e) != b {
			panic(fmt.Sprintf("expr: %s is not boolean", f.String(e)))
		}
	}
}

func (f *Factory) Not(x Expr) Expr {
	f.mustBool(x)
	switch f.Op(x) {
	case OpTrue:
		return f.False()
	case OpFalse:
		return f.True()
	case OpNot:
		return f.Kid(x, 0)
	}
	return f.intern(node{op: OpNot, sort: f.BoolSort(), kids: []Expr{x}})
}

func (f *Factory) And(xs ...Expr) Expr { return f.nary(OpAnd, xs) }
func (f *Factory) Or(xs ...Expr) Expr  { return f.nary(OpOr, xs) }

func (f *Factory) nary(op Op, xs []Expr) Expr {
	f.mustBool(xs...)
	unit, zero := OpTrue, OpFalse
	if op == OpOr {
		unit, zero = OpFalse, OpTrue
	}

	seen := make(map[Expr]bool, len(xs))
	kids := make([]Expr, 0, len(xs))
	add := func(x Expr) bool {
		switch f.Op(x) {
		case unit:
			return true
		case zero:
			return false
		}
		if !seen[x] {
			seen[x] = true
			kids = append(kids, x)
		}
		return true
	}
	for _, x := range xs {
		if f.Op(x) == op {
			for _, k := range f.Kids(x) {
				if !add(k) {
					return f.intern(node{op: zero, sort: f.BoolSort()})
				}
			}
			continue
		}
		if !add(x) {
			return f.intern(node{op: zero, sort: f.BoolSort()})
		}
	}
	switch len(kids) {
	case 0:
		return f.intern(node{op: unit, sort: f.BoolSort()})
	case 1:
		return kids[0]
	}
	return f.intern(node{op: op, sort: f.BoolSort(), kids: kids})
}

func (f *Factory) Xor(a, b Expr) Expr {
	f.mustBool(a, b)
	switch {
	case a == b:
		return f.False()
	case f.IsFalse(a):
		return b
	case f.IsFalse(b):
		return a
	case f.IsTrue(a):
		return f.Not(b)
	case f.IsTrue(b):
		return f.Not(a)
	}
	return f.intern(node{op: OpXor, sort: f.BoolSort(), kids: []Expr{a, b}})
}

func (f *Factory) Implies(a, b Expr) Expr {
	f.mustBool(a, b)
	switch {
	case f.IsTrue(a):
		return b
	case f.IsFalse(a), f.IsTrue(b), a == b:
		return f.True()
	case f.IsFalse(b):
		return f.Not(a)
	}
	return f.intern(node{op: OpImplies, sort: f.BoolSort(), kids: []Expr{a, b}})
}

func (f *Factory) Ite(c, t, e Expr) Expr {
	f.mustBool(c)
	if f.SortOf(t) != f.SortOf(e) {
		panic(fmt.Sprintf("expr: ite branches differ in sort: %s vs %s",
			f.SortString(f.SortOf(t)), f.SortString(f.SortOf(e))))
	}
	switch {
	case f.IsTrue(c):
		return t
	case f.IsFalse(c):
		return e
	case t == e:
		return t
	case f.IsTrue(t) && f.IsFalse(e):
		return c
	case f.IsFalse(t) && f.IsTrue(e):
		return f.Not(c)
	}
	return f.intern(node{op: OpIte, sort: f.SortOf(t), kids: []Expr{c, t, e}})
}

func (f *Factory) Eq(a, b Expr) Expr {
	if f.SortOf(a) != f.SortOf(b) {
		panic(fmt.Sprintf("expr: equality over different sorts: %s vs %s", f.String(a), f.String(b)))
	}
	if a == b {
		return f.True()
	}
	if f.IsNum(a) && f.IsNum(b) {
		return f.False()
	}
	switch f.Kind(f.SortOf(a)) {
	case KindBool:
		switch {
		case f.IsTrue(a):
			return b
		case f.IsTrue(b):
			return a
		case f.IsFalse(a):
			return f.Not(b)
		case f.IsFalse(b):
			return f.Not(a)
		}
	case KindBV:
		if f.Disjoint(a, b) {
			return f.False()
		}
		if f.IsNum(a) {
			a, b = b, a
		}
		// (= (ite c n1 n2) n) with distinct numerals n1 and n2
		if f.IsNum(b) && f.Op(a) == OpIte && f.IsNum(f.Kid(a, 1)) && f.IsNum(f.Kid(a, 2)) {
			switch b {
			case f.Kid(a, 1):
				return f.Kid(a, 0)
			case f.Kid(a, 2):
				return f.Not(f.Kid(a, 0))
			default:
				return f.False()
			}
		}
	}
	if a > b {
		a, b = b, a
	}
	return f.intern(node{op: OpEq, sort: f.BoolSort(), kids: []Expr{a, b}})
}

func (f *Factory) Ne(a, b Expr) Expr { return f.Not(f.Eq(a, b)) }

func (f *Factory) bvWidths(a, b Expr) int {
	sa, sb := f.SortOf(a), f.SortOf(b)
	if sa != sb || f.Kind(sa) != KindBV {
		panic(fmt.Sprintf("expr: bit-vector operands mismatch: %s vs %s", f.String(a), f.String(b)))
	}
	return f.BVWidth(sa)
}

func (f *Factory) isNumValue(e Expr, v uint64) bool {
	n, ok := f.NumValue(e)
	return ok && n.IsUint64() && n.Uint64() == v
}

func (f *Factory) isAllOnes(e Expr) bool {
	n, ok := f.NumValue(e)
	return ok && n.Eq(mask(f.Width(e)))
}

func commutative(op Op) bool {
	switch op {
	case OpBVAdd, OpBVMul, OpBVAnd, OpBVOr, OpBVXor:
		return true
	}
	return false
}

// BVBin builds the binary bit-vector operation op.
func (f *Factory) BVBin(op Op, a, b Expr) Expr {
	if !op.IsArithmetic() || op == OpBVNeg || op == OpBVNot {
		panic(fmt.Sprintf("expr: %s is not a binary bit-vector op", op))
	}
	w := f.bvWidths(a, b)
	av, aok := f.NumValue(a)
	bv, bok := f.NumValue(b)
	if aok && bok {
		return f.Num(foldBinary(op, av, bv, w), w)
	}
	if commutative(op) && aok {
		a, b = b, a
		bok = true
	}

	switch op {
	case OpBVAdd:
		if f.isNumValue(b, 0) {
			return a
		}
		if bok && f.Op(a) == OpBVAdd && f.IsNum(f.Kid(a, 1)) {
			c1, _ := f.NumValue(f.Kid(a, 1))
			c2, _ := f.NumValue(b)
			return f.BVBin(OpBVAdd, f.Kid(a, 0), f.Num(foldBinary(OpBVAdd, c1, c2, w), w))
		}
	case OpBVSub:
		if a == b {
			return f.NumU64(0, w)
		}
		if bok {
			c, _ := f.NumValue(b)
			return f.BVBin(OpBVAdd, a, f.Num(new(uint256.Int).Neg(c), w))
		}
	case OpBVMul:
		if f.isNumValue(b, 0) {
			return b
		}
		if f.isNumValue(b, 1) {
			return a
		}
	case OpBVUDiv, OpBVSDiv:
		if f.isNumValue(b, 1) {
			return a
		}
	case OpBVURem, OpBVSRem:
		if f.isNumValue(b, 1) {
			return f.NumU64(0, w)
		}
	case OpBVAnd:
		if a == b || f.isAllOnes(b) {
			return a
		}
		if f.isNumValue(b, 0) {
			return b
		}
	case OpBVOr:
		if a == b || f.isNumValue(b, 0) {
			return a
		}
		if f.isAllOnes(b) {
			return b
		}
	case OpBVXor:
		if a == b {
			return f.NumU64(0, w)
		}
		if f.isNumValue(b, 0) {
			return a
		}
	case OpBVShl, OpBVLShr, OpBVAShr:
		if f.isNumValue(b, 0) {
			return a
		}
	}
	return f.intern(node{op: op, sort: f.SortOf(a), kids: []Expr{a, b}})
}

func (f *Factory) BVAdd(a, b Expr) Expr  { return f.BVBin(OpBVAdd, a, b) }
func (f *Factory) BVSub(a, b Expr) Expr  { return f.BVBin(OpBVSub, a, b) }
func (f *Factory) BVMul(a, b Expr) Expr  { return f.BVBin(OpBVMul, a, b) }
func (f *Factory) BVAnd(a, b Expr) Expr  { return f.BVBin(OpBVAnd, a, b) }
func (f *Factory) BVOr(a, b Expr) Expr   { return f.BVBin(OpBVOr, a, b) }
func (f *Factory) BVShl(a, b Expr) Expr  { return f.BVBin(OpBVShl, a, b) }
func (f *Factory) BVLShr(a, b Expr) Expr { return f.BVBin(OpBVLShr, a, b) }

func (f *Factory) BVNeg(x Expr) Expr {
	w := f.bvWidths(x, x)
	if v, ok := f.NumValue(x); ok {
		return f.Num(new(uint256.Int).Neg(v), w)
	}
	if f.Op(x) == OpBVNeg {
		return f.Kid(x, 0)
	}
	return f.intern(node{op: OpBVNeg, sort: f.SortOf(x), kids: []Expr{x}})
}

func (f *Factory) BVNot(x Expr) Expr {
	w := f.bvWidths(x, x)
	if v, ok := f.NumValue(x); ok {
		return f.Num(new(uint256.Int).Xor(v, mask(w)), w)
	}
	if f.Op(x) == OpBVNot {
		return f.Kid(x, 0)
	}
	return f.intern(node{op: OpBVNot, sort: f.SortOf(x), kids: []Expr{x}})
}

// Compare builds the bit-vector relation op.
func (f *Factory) Compare(op Op, a, b Expr) Expr {
	if !op.IsCompare() {
		panic(fmt.Sprintf("expr: %s is not a relation", op))
	}
	w := f.bvWidths(a, b)
	av, aok := f.NumValue(a)
	bv, bok := f.NumValue(b)
	if aok && bok {
		return f.Bool(foldCompare(op, av, bv, w))
	}
	if a == b {
		switch op {
		case OpBVUle, OpBVUge, OpBVSle, OpBVSge:
			return f.True()
		default:
			return f.False()
		}
	}
	return f.intern(node{op: op, sort: f.BoolSort(), kids: []Expr{a, b}})
}

// Extract returns bits hi..lo of x.
func (f *Factory) Extract(hi, lo int, x Expr) Expr {
	w := f.Width(x)
	if f.Kind(f.SortOf(x)) != KindBV || lo < 0 || hi < lo || hi >= w {
		panic(fmt.Sprintf("expr: bad extract [%d:%d] of width %d", hi, lo, w))
	}
	if lo == 0 && hi == w-1 {
		return x
	}
	if v, ok := f.NumValue(x); ok {
		return f.Num(new(uint256.Int).Rsh(v, uint(lo)), hi-lo+1)
	}
	switch f.Op(x) {
	case OpConcat:
		a, b := f.Kid(x, 0), f.Kid(x, 1)
		wb := f.Width(b)
		if hi < wb {
			return f.Extract(hi, lo, b)
		}
		if lo >= wb {
			return f.Extract(hi-wb, lo-wb, a)
		}
	case OpExtract:
		_, l := f.Params(x)
		return f.Extract(hi+l, lo+l, f.Kid(x, 0))
	case OpZExt:
		y := f.Kid(x, 0)
		wy := f.Width(y)
		if hi < wy {
			return f.Extract(hi, lo, y)
		}
		if lo >= wy {
			return f.NumU64(0, hi-lo+1)
		}
	case OpSExt:
		y := f.Kid(x, 0)
		if hi < f.Width(y) {
			return f.Extract(hi, lo, y)
		}
	}
	return f.intern(node{op: OpExtract, sort: f.BVSort(hi - lo + 1), kids: []Expr{x}, p0: hi, p1: lo})
}

// Concat places hi above lo.
func (f *Factory) Concat(hi, lo Expr) Expr {
	wh, wl := f.Width(hi), f.Width(lo)
	if f.Kind(f.SortOf(hi)) != KindBV || f.Kind(f.SortOf(lo)) != KindBV {
		panic("expr: concat of non bit-vectors")
	}
	hv, hok := f.NumValue(hi)
	lv, lok := f.NumValue(lo)
	if hok && lok {
		z := new(uint256.Int).Lsh(hv, uint(wl))
		return f.Num(z.Or(z, lv), wh+wl)
	}
	if m, ok := f.mergeExtracts(hi, lo); ok {
		return m
	}
	if f.Op(lo) == OpConcat {
		if m, ok := f.mergeExtracts(hi, f.Kid(lo, 0)); ok {
			return f.Concat(m, f.Kid(lo, 1))
		}
	}
	return f.intern(node{op: OpConcat, sort: f.BVSort(wh + wl), kids: []Expr{hi, lo}})
}

// mergeExtracts joins x[h1:l1] and x[h2:l2] when l1 == h2+1.
func (f *Factory) mergeExtracts(hi, lo Expr) (Expr, bool) {
	hx, hh, hl, ok1 := f.asExtract(hi)
	lx, lh, ll, ok2 := f.asExtract(lo)
	if !ok1 || !ok2 || hx != lx || hl != lh+1 {
		return Nil, false
	}
	return f.Extract(hh, ll, hx), true
}

func (f *Factory) asExtract(e Expr) (Expr, int, int, bool) {
	if f.Op(e) != OpExtract {
		return Nil, 0, 0, false
	}
	hi, lo := f.Params(e)
	return f.Kid(e, 0), hi, lo, true
}

// ConcatLE concatenates parts given least significant first.
func (f *Factory) ConcatLE(parts []Expr) Expr {
	if len(parts) == 0 {
		panic("expr: empty concat")
	}
	acc := parts[0]
	for _, p := range parts[1:] {
		acc = f.Concat(p, acc)
	}
	return acc
}

func (f *Factory) ZExt(x Expr, n int) Expr {
	if n == 0 {
		return x
	}
	w := f.Width(x)
	if v, ok := f.NumValue(x); ok {
		return f.Num(v, w+n)
	}
	if f.Op(x) == OpZExt {
		m, _ := f.Params(x)
		return f.ZExt(f.Kid(x, 0), m+n)
	}
	return f.intern(node{op: OpZExt, sort: f.BVSort(w + n), kids: []Expr{x}, p0: n})
}

func (f *Factory) SExt(x Expr, n int) Expr {
	if n == 0 {
		return x
	}
	w := f.Width(x)
	if v, ok := f.NumValue(x); ok {
		return f.Num(signed(v, w), w+n)
	}
	return f.intern(node{op: OpSExt, sort: f.BVSort(w + n), kids: []Expr{x}, p0: n})
}

// Disjoint reports whether a and b are bit-vectors that are provably
// different: distinct numerals, or the same base plus distinct offsets.
func (f *Factory) Disjoint(a, b Expr) bool {
	if a == b {
		return false
	}
	ba, ca := f.splitOffset(a)
	bb, cb := f.splitOffset(b)
	return ba == bb && !ca.Eq(cb)
}

func (f *Factory) splitOffset(e Expr) (Expr, *uint256.Int) {
	if v, ok := f.NumValue(e); ok {
		return Nil, v
	}
	if f.Op(e) == OpBVAdd {
		if c, ok := f.NumValue(f.Kid(e, 1)); ok {
			return f.Kid(e, 0), c
		}
	}
	return e, new(uint256.Int)
}

// Select reads the array a at index i.
func (f *Factory) Select(a, i Expr) Expr {
	s := f.SortOf(a)
	if f.Kind(s) != KindArray || f.Domain(s)[0] != f.SortOf(i) {
		panic(fmt.Sprintf("expr: bad select from %s", f.String(a)))
	}
walk:
	for {
		switch f.Op(a) {
		case OpStore:
			j := f.Kid(a, 1)
			if j == i {
				return f.Kid(a, 2)
			}
			if !f.Disjoint(i, j) {
				break walk
			}
			a = f.Kid(a, 0)
		case OpConstArray:
			return f.Kid(a, 0)
		default:
			break walk
		}
	}
	return f.intern(node{op: OpSelect, sort: f.Range(s), kids: []Expr{a, i}})
}

// Store writes v at index i of the array a.
func (f *Factory) Store(a, i, v Expr) Expr {
	s := f.SortOf(a)
	if f.Kind(s) != KindArray || f.Domain(s)[0] != f.SortOf(i) || f.Range(s) != f.SortOf(v) {
		panic(fmt.Sprintf("expr: bad store into %s", f.String(a)))
	}
	if f.Op(a) == OpStore && f.Kid(a, 1) == i {
		a = f.Kid(a, 0)
	}
	if f.Op(v) == OpSelect && f.Kid(v, 1) == i && f.Select(a, i) == v {
		return a
	}
	return f.intern(node{op: OpStore, sort: s, kids: []Expr{a, i, v}})
}

// ConstArray returns the array of sort s mapping every index to v.
func (f *Factory) ConstArray(s Sort, v Expr) Expr {
	if f.Kind(s) != KindArray || f.Range(s) != f.SortOf(v) {
		panic("expr: bad constant array")
	}
	return f.intern(node{op: OpConstArray, sort: s, kids: []Expr{v}})
}

// Lambda abstracts body over the bound variables.
func (f *Factory) Lambda(bounds []Expr, body Expr) Expr {
	dom := make([]Sort, len(bounds))
	for i, b := range bounds {
		if f.Op(b) != OpBound {
			panic("expr: lambda over a non-bound variable")
		}
		dom[i] = f.SortOf(b)
	}
	// eta: (lambda (x) (g x)) is g for a symbol g
	if f.Op(body) == OpFApp && len(f.Kids(body)) == len(bounds)+1 {
		head := f.Kid(body, 0)
		eta := f.Op(head) == OpConst || f.Op(head) == OpFDecl
		for i, b := range bounds {
			eta = eta && f.Kid(body, i+1) == b
		}
		if eta {
			return head
		}
	}
	kids := append(append([]Expr{}, bounds...), body)
	return f.intern(node{op: OpLambda, sort: f.FuncSort(dom, f.SortOf(body)), kids: kids})
}

// FApp applies fn to args, beta-reducing lambdas.
func (f *Factory) FApp(fn Expr, args ...Expr) Expr {
	s := f.SortOf(fn)
	if f.Kind(s) != KindFunc {
		panic(fmt.Sprintf("expr: %s is not a function", f.String(fn)))
	}
	dom := f.Domain(s)
	if len(dom) != len(args) {
		panic(fmt.Sprintf("expr: %s expects %d arguments, got %d", f.String(fn), len(dom), len(args)))
	}
	for i, a := range args {
		if f.SortOf(a) != dom[i] {
			panic(fmt.Sprintf("expr: argument %d of %s has the wrong sort", i, f.String(fn)))
		}
	}
	if f.Op(fn) == OpLambda {
		kids := f.Kids(fn)
		m := make(map[Expr]Expr, len(args))
		for i, a := range args {
			m[kids[i]] = a
		}
		return f.Substitute(kids[len(kids)-1], m)
	}
	kids := append([]Expr{fn}, args...)
	return f.intern(node{op: OpFApp, sort: f.Range(s), kids: kids})
}
