package opsem

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
)

// enterBlock runs the entry hooks of bb and makes its error flag live.
func (c *Context) enterBlock(bb *ir.Block) error {
	c.OnBasicBlockEntry(bb)
	fn := bb.Parent
	if fn != nil && fn.Entry() == bb {
		if fn.IsMain() {
			if err := c.onModuleEntry(); err != nil {
				return err
			}
		}
		c.onFunctionEntry(fn)
	}
	c.errFlags[bb] = c.readErrorFlag(bb)
	return nil
}

// ExecBlock executes the non-phi instructions of bb up to its terminator.
// The terminator itself only has its operands read.
func (c *Context) ExecBlock(bb *ir.Block) error {
	if err := c.enterBlock(bb); err != nil {
		return err
	}
	for c.pos < len(bb.Insts) {
		if _, ok := bb.Insts[c.pos].(*ir.Phi); !ok {
			break
		}
		c.pos++
	}
	for {
		more, err := c.intraStep()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// intraStep executes the instruction under the cursor and reports whether
// another one follows it in the block.
func (c *Context) intraStep() (bool, error) {
	bb := c.bb
	if c.pos >= len(bb.Insts) {
		return false, nil
	}
	inst := bb.Insts[c.pos]
	_, isBr := inst.(*ir.Br)
	term := ir.IsTerminator(inst)
	if term && !isBr {
		return false, nil
	}

	skip, err := c.m.IsSkipped(inst)
	if err != nil {
		return false, fmt.Errorf("%s: %w", inst, err)
	}
	if skip {
		c.skipInst(inst)
	} else if err := c.exec(inst); err != nil {
		return false, err
	}

	if term {
		return false, nil
	}
	c.pos++
	return true, nil
}

func (c *Context) skipInst(inst ir.Instruction) {
	switch inst.(type) {
	case *ir.Load, *ir.Store:
		c.clearMemRegisters()
	}
	if _, ok := ir.ShadowOf(inst); ok || c.isIgnored(inst) {
		return
	}
	c.ignore(inst)
	c.m.log.Warn("skipping instruction",
		zap.String("inst", inst.String()),
		zap.String("block", inst.Parent().Name()),
		zap.String("function", inst.Parent().Parent.Name()))
}

// execPhi evaluates the phi nodes of bb for the edge from pred. Every
// incoming value is read before any phi is written.
func (c *Context) execPhi(bb, pred *ir.Block) error {
	c.OnBasicBlockEntry(bb)
	c.setPrevBlock(pred)

	phis := bb.Phis()
	tracked := make([]*ir.Phi, 0, len(phis))
	vals := make([]expr.Expr, 0, len(phis))
	for _, phi := range phis {
		if c.m.skipped(phi) {
			continue
		}
		in, ok := phi.IncomingFor(pred)
		if !ok {
			return fmt.Errorf("%s has no value for %s: %w", phi, pred.Ident(), ir.ErrMalformed)
		}
		tracked = append(tracked, phi)
		vals = append(vals, c.lookup(in))
	}
	for i, phi := range tracked {
		c.setValue(phi, vals[i])
	}
	return c.takeErr()
}

// intraBr constrains the path to take the branch at the end of the current
// block towards dst.
func (c *Context) intraBr(dst *ir.Block) error {
	br, ok := c.bb.Terminator().(*ir.Br)
	if !ok {
		return nil
	}
	f := c.factory()
	errIn := c.readErrorFlag(c.bb)

	infeasible := func() {
		c.ResetSide()
		c.AddScopedSide(errIn)
	}

	if !br.IsConditional() {
		if br.Succs[0] != dst {
			infeasible()
			return nil
		}
		c.OnBasicBlockEntry(dst)
		return nil
	}

	if k, ok := br.Cond().(*ir.ConstInt); ok {
		if k.V&1 == 1 && br.Succs[0] != dst || k.V&1 == 0 && br.Succs[1] != dst {
			infeasible()
		}
		return nil
	}
	cond := c.lookup(br.Cond())
	if err := c.takeErr(); err != nil {
		return err
	}
	if cond == expr.Nil {
		return nil
	}
	if br.Succs[0] != dst {
		cond = f.Not(cond)
	}
	c.AddScopedSide(f.Or(errIn, cond))
	c.OnBasicBlockEntry(dst)
	return nil
}

// ExecEdge executes src under a true path condition, the branch from src
// to dst and the phi nodes of dst. When dst ends in unreachable, dst is
// executed as well.
func (c *Context) ExecEdge(src, dst *ir.Block) error {
	c.markStep()
	c.SetPathCond(c.factory().True())
	if err := c.ExecBlock(src); err != nil {
		return err
	}

	c.OnBasicBlockEntry(src)
	c.pos = len(src.Insts) - 1
	if err := c.intraBr(dst); err != nil {
		return err
	}
	if err := c.execPhi(dst, src); err != nil {
		return err
	}

	if _, ok := dst.Terminator().(*ir.Unreachable); ok {
		return c.ExecBlock(dst)
	}
	return nil
}

// RunPath executes the edges of path in order. A path of one block executes
// that block alone.
func (c *Context) RunPath(ctx context.Context, path []*ir.Block) (*Result, error) {
	if len(path) == 0 {
		return c.Result(), nil
	}
	if len(path) == 1 {
		if err := c.ExecBlock(path[0]); err != nil {
			return nil, err
		}
		return c.Result(), nil
	}
	for i := 0; i+1 < len(path); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := c.ExecEdge(path[i], path[i+1]); err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", path[i].Name(), path[i+1].Name(), err)
		}
	}
	return c.Result(), nil
}

// FirstSuccessorPath follows the first successor of every block from the
// entry of fn until a block without successors or a block already on the
// path.
func FirstSuccessorPath(fn *ir.Function) []*ir.Block {
	seen := make(map[*ir.Block]bool)
	var path []*ir.Block
	for bb := fn.Entry(); bb != nil && !seen[bb]; {
		seen[bb] = true
		path = append(path, bb)
		succs := bb.Succs()
		if len(succs) == 0 {
			break
		}
		bb = succs[0]
	}
	return path
}

// ParsePath resolves block names of fn.
func ParsePath(fn *ir.Function, names []string) ([]*ir.Block, error) {
	path := make([]*ir.Block, len(names))
	for i, n := range names {
		bb := fn.Block(n)
		if bb == nil {
			return nil, fmt.Errorf("function %s has no block %q", fn.Name(), n)
		}
		path[i] = bb
	}
	return path, nil
}
