package expr

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// String prints e as an SMT-LIB2 term.
func (f *Factory) String(e Expr) string {
	if e == Nil {
		return "<nil>"
	}
	var sb strings.Builder
	f.print(&sb, e)
	return sb.String()
}

func quoteSymbol(name string) string {
	if name == "" {
		return "||"
	}
	simple := name[0] < '0' || name[0] > '9'
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("~!@$%^&*_-+=<>.?/", r)) {
			simple = false
			break
		}
	}
	if simple {
		return name
	}
	return "|" + strings.ReplaceAll(name, "|", "_") + "|"
}

func boundName(idx int) string { return fmt.Sprintf("a!%d", idx) }

func (f *Factory) print(sb *strings.Builder, e Expr) {
	n := f.get(e)
	switch n.op {
	case OpTrue, OpFalse:
		sb.WriteString(n.op.String())
	case OpNum:
		fmt.Fprintf(sb, "(_ bv%s %d)", n.num.Dec(), f.BVWidth(n.sort))
	case OpConst, OpFDecl:
		sb.WriteString(quoteSymbol(n.name))
	case OpBound:
		sb.WriteString(boundName(n.p0))
	case OpExtract:
		fmt.Fprintf(sb, "((_ extract %d %d) ", n.p0, n.p1)
		f.print(sb, n.kids[0])
		sb.WriteByte(')')
	case OpZExt, OpSExt:
		fmt.Fprintf(sb, "((_ %s %d) ", n.op, n.p0)
		f.print(sb, n.kids[0])
		sb.WriteByte(')')
	case OpConstArray:
		fmt.Fprintf(sb, "((as const %s) ", f.SortString(n.sort))
		f.print(sb, n.kids[0])
		sb.WriteByte(')')
	case OpLambda:
		bounds := n.kids[:len(n.kids)-1]
		sb.WriteString("(lambda (")
		for i, b := range bounds {
			if i > 0 {
				sb.WriteByte(' ')
			}
			idx, _ := f.Params(b)
			fmt.Fprintf(sb, "(%s %s)", boundName(idx), f.SortString(f.SortOf(b)))
		}
		sb.WriteString(") ")
		f.print(sb, n.kids[len(n.kids)-1])
		sb.WriteByte(')')
	case OpFApp:
		sb.WriteByte('(')
		for i, k := range n.kids {
			if i > 0 {
				sb.WriteByte(' ')
			}
			f.print(sb, k)
		}
		sb.WriteByte(')')
	default:
		sb.WriteByte('(')
		sb.WriteString(n.op.String())
		for _, k := range n.kids {
			sb.WriteByte(' ')
			f.print(sb, k)
		}
		sb.WriteByte(')')
	}
}

// Declarations returns the constants and function symbols reachable from
// roots, sorted by name.
func (f *Factory) Declarations(roots ...Expr) []Expr {
	var decls []Expr
	f.Walk(func(e Expr) bool {
		switch f.Op(e) {
		case OpConst, OpFDecl:
			decls = append(decls, e)
		}
		return true
	}, roots...)
	sort.Slice(decls, func(i, j int) bool {
		ni, nj := f.Name(decls[i]), f.Name(decls[j])
		if ni != nj {
			return ni < nj
		}
		return decls[i] < decls[j]
	})
	return decls
}

// Declare prints the declare-fun command for a constant or function symbol.
func (f *Factory) Declare(e Expr) string {
	s := f.SortOf(e)
	name := quoteSymbol(f.Name(e))
	if f.Kind(s) == KindFunc {
		return fmt.Sprintf("(declare-fun %s %s)", name, f.SortString(s))
	}
	return fmt.Sprintf("(declare-fun %s () %s)", name, f.SortString(s))
}

// WriteSMTLib writes a complete script asserting every formula.
func (f *Factory) WriteSMTLib(w io.Writer, assertions []Expr) error {
	for _, d := range f.Declarations(assertions...) {
		if _, err := fmt.Fprintln(w, f.Declare(d)); err != nil {
			return err
		}
	}
	for _, a := range assertions {
		if _, err := fmt.Fprintf(w, "(assert %s)\n", f.String(a)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "(check-sat)")
	return err
}
