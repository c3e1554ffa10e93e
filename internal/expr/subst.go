package expr

import "fmt"

// Substitute replaces every occurrence of a key of m in e by its value and
// re-applies the construction rewrites bottom-up. Bound variables of a
// lambda shadow the substitution inside its body.
func (f *Factory) Substitute(e Expr, m map[Expr]Expr) Expr {
	return f.subst(e, m, make(map[Expr]Expr))
}

// Simplify rebuilds e through the factory, re-applying every local rewrite.
func (f *Factory) Simplify(e Expr) Expr {
	return f.Substitute(e, nil)
}

func (f *Factory) subst(e Expr, m map[Expr]Expr, memo map[Expr]Expr) Expr {
	if r, ok := m[e]; ok {
		return r
	}
	if r, ok := memo[e]; ok {
		return r
	}
	n := f.get(e)
	if n.op.IsLeaf() {
		return e
	}

	inner := m
	if n.op == OpLambda {
		bounds := n.kids[:len(n.kids)-1]
		for _, b := range bounds {
			if _, ok := m[b]; ok {
				inner = make(map[Expr]Expr, len(m))
				for k, v := range m {
					inner[k] = v
				}
				for _, b := range bounds {
					delete(inner, b)
				}
				memo = make(map[Expr]Expr)
				break
			}
		}
	}

	kids := make([]Expr, len(n.kids))
	changed := false
	for i, k := range n.kids {
		kids[i] = f.subst(k, inner, memo)
		changed = changed || kids[i] != k
	}
	r := e
	if changed || m == nil {
		r = f.rebuild(n, kids)
	}
	memo[e] = r
	return r
}

func (f *Factory) rebuild(n node, k []Expr) Expr {
	switch n.op {
	case OpNot:
		return f.Not(k[0])
	case OpAnd:
		return f.And(k...)
	case OpOr:
		return f.Or(k...)
	case OpXor:
		return f.Xor(k[0], k[1])
	case OpImplies:
		return f.Implies(k[0], k[1])
	case OpIte:
		return f.Ite(k[0], k[1], k[2])
	case OpEq:
		return f.Eq(k[0], k[1])
	case OpBVNeg:
		return f.BVNeg(k[0])
	case OpBVNot:
		return f.BVNot(k[0])
	case OpExtract:
		return f.Extract(n.p0, n.p1, k[0])
	case OpConcat:
		return f.Concat(k[0], k[1])
	case OpZExt:
		return f.ZExt(k[0], n.p0)
	case OpSExt:
		return f.SExt(k[0], n.p0)
	case OpSelect:
		return f.Select(k[0], k[1])
	case OpStore:
		return f.Store(k[0], k[1], k[2])
	case OpConstArray:
		return f.ConstArray(n.sort, k[0])
	case OpFApp:
		return f.FApp(k[0], k[1:]...)
	case OpLambda:
		return f.Lambda(k[:len(k)-1], k[len(k)-1])
	}
	switch {
	case n.op.IsArithmetic():
		return f.BVBin(n.op, k[0], k[1])
	case n.op.IsCompare():
		return f.Compare(n.op, k[0], k[1])
	}
	panic(fmt.Sprintf("expr: cannot rebuild %s", n.op))
}

// Walk visits every node reachable from roots once, parents before
// children. Returning false from visit skips the children of a node.
func (f *Factory) Walk(visit func(Expr) bool, roots ...Expr) {
	seen := make(map[Expr]bool)
	stack := make([]Expr, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != Nil {
			stack = append(stack, roots[i])
		}
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[e] {
			continue
		}
		seen[e] = true
		if !visit(e) {
			continue
		}
		kids := f.Kids(e)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Contains reports whether sub occurs in e.
func (f *Factory) Contains(e, sub Expr) bool {
	found := false
	f.Walk(func(x Expr) bool {
		if x == sub {
			found = true
		}
		return !found
	}, e)
	return found
}
