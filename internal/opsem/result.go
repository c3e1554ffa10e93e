package opsem

import (
	"io"
	"maps"
	"sort"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/mem"
)

// Result is the outcome of running a path.
type Result struct {
	// Side holds the side conditions in the order they were added.
	Side  []expr.Expr
	Store Store
	// ErrorFlags is the value of the error flag on entry to each visited
	// block.
	ErrorFlags map[*ir.Block]expr.Expr
	// Approximations lists the values that were replaced by fresh values.
	Approximations []ir.Value
	Globals        []mem.Allocation

	f *expr.Factory
}

// Result captures the current state of c.
func (c *Context) Result() *Result {
	return &Result{
		Side:           c.Snapshot(),
		Store:          c.store.Clone(),
		ErrorFlags:     maps.Clone(c.errFlags),
		Approximations: append([]ir.Value(nil), c.approx...),
		Globals:        c.m.mem.DumpGlobals(),
		f:              c.m.f,
	}
}

func (r *Result) Factory() *expr.Factory { return r.f }

// Formula is the conjunction of the side conditions.
func (r *Result) Formula() expr.Expr { return r.f.And(r.Side...) }

// Bindings returns the store sorted by register name.
func (r *Result) Bindings() [][2]expr.Expr {
	out := make([][2]expr.Expr, 0, len(r.Store))
	for reg, v := range r.Store {
		out = append(out, [2]expr.Expr{reg, v})
	}
	sort.Slice(out, func(i, j int) bool {
		return r.f.Name(out[i][0]) < r.f.Name(out[j][0])
	})
	return out
}

// WriteSMTLib writes the side conditions as an SMT-LIB2 script.
func (r *Result) WriteSMTLib(w io.Writer) error {
	return r.f.WriteSMTLib(w, r.Side)
}
