package opsem

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnolang/opsem/internal/alu"
	"github.com/gnolang/opsem/internal/expr"
	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/mem"
)

// Simplifier rewrites an expression into an equivalent, simpler one.
type Simplifier interface {
	Simplify(e expr.Expr) expr.Expr
}

// Machine is the part of the semantics shared by every context of one
// module: the expression factory, the ALU, the memory manager and the
// configuration. It is created once and never copied.
type Machine struct {
	f      *expr.Factory
	alu    alu.ALU
	mem    *mem.Manager
	cfg    Config
	mod    *ir.Module
	layout *ir.DataLayout
	log    *zap.Logger
	simp   Simplifier

	errFlag expr.Expr

	enterModule sync.Once

	mu      sync.Mutex
	names   map[ir.Value]string
	unnamed int
	nextID  int
}

type Option func(*Machine)

func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithFactory builds expressions in f instead of a private factory.
func WithFactory(f *expr.Factory) Option {
	return func(m *Machine) { m.f = f }
}

func WithSimplifier(s Simplifier) Option {
	return func(m *Machine) { m.simp = s }
}

func WithALU(a alu.ALU) Option {
	return func(m *Machine) { m.alu = a }
}

// NewMachine prepares the semantics of mod. It computes which functions can
// reach an error location.
func NewMachine(mod *ir.Module, cfg Config, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		mod:   mod,
		log:   zap.NewNop(),
		names: make(map[ir.Value]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.f == nil {
		m.f = expr.NewFactory()
	}
	if m.alu == nil {
		m.alu = alu.NewBvALU(m.f)
	}
	if m.simp == nil {
		m.simp = m.f
	}

	m.layout = mod.Layout
	if m.layout == nil {
		m.layout = ir.DefaultLayout()
	}
	if m.layout.PtrBytes != cfg.PtrSize {
		m.log.Warn("data layout pointer size differs from configuration, using configuration",
			zap.Int("layout", m.layout.PtrBytes),
			zap.Int("config", cfg.PtrSize))
		m.layout = &ir.DataLayout{PtrBytes: cfg.PtrSize}
	}

	m.mem = mem.NewManager(m.f, m.layout, mem.Options{
		PtrSize:    cfg.PtrSize,
		WordSize:   cfg.WordSize,
		UseLambdas: cfg.UseLambdas,
		Static:     cfg.StaticAllocator,
	}, m.tagged("mem"))
	m.log = m.tagged("opsem")

	m.errFlag = m.f.Const("error.flag", m.f.BoolSort())
	ir.ComputeCanFail(mod)
	return m, nil
}

// tagged returns the logger of a component. Debug output is only kept for
// the components named in Config.LogTags.
func (m *Machine) tagged(tag string) *zap.Logger {
	l := m.log.Named(tag)
	if !m.cfg.logs(tag) {
		l = l.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
	}
	return l
}

func (m *Machine) Factory() *expr.Factory   { return m.f }
func (m *Machine) ALU() alu.ALU             { return m.alu }
func (m *Machine) Mem() *mem.Manager        { return m.mem }
func (m *Machine) Config() Config           { return m.cfg }
func (m *Machine) Module() *ir.Module       { return m.mod }
func (m *Machine) Layout() *ir.DataLayout   { return m.layout }
func (m *Machine) Logger() *zap.Logger      { return m.log }
func (m *Machine) ErrorRegister() expr.Expr { return m.errFlag }

func (m *Machine) newContextID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

// valueName is the stable name of v across all contexts of the machine.
func (m *Machine) valueName(v ir.Value) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.names[v]; ok {
		return n
	}

	var n string
	switch v := v.(type) {
	case *ir.Function, *ir.Global:
		n = "@" + v.Name()
	case *ir.Block:
		n = v.Parent.Name() + "." + v.Name()
	default:
		local := v.Name()
		if local == "" {
			local = fmt.Sprintf("_%d", m.unnamed)
			m.unnamed++
		}
		n = scopeOf(v) + ".%" + local
	}
	m.names[v] = n
	return n
}

func scopeOf(v ir.Value) string {
	switch v := v.(type) {
	case ir.Instruction:
		if b := v.Parent(); b != nil && b.Parent != nil {
			return b.Parent.Name()
		}
	case *ir.Param:
		if v.Parent != nil {
			return v.Parent.Name()
		}
	}
	return ""
}

// ErrorFlag is the error flag of bb: false when the enclosing function can
// never reach an error location, the shared error register otherwise.
func (m *Machine) ErrorFlag(bb *ir.Block) expr.Expr {
	if bb == nil || bb.Parent == nil || !bb.Parent.CanFail {
		return m.f.False()
	}
	return m.errFlag
}

// IsSkipped reports whether v is left out of the semantics at the
// configured track level.
func (m *Machine) IsSkipped(v ir.Value) (bool, error) {
	if meta, ok := ir.ShadowOf(v); ok {
		return !m.uniqueScalar(meta) && m.cfg.TrackLevel < TrackMem, nil
	}

	ty := v.Type()
	switch {
	case ty.IsPtr():
		if m.onlyFeedsShadowMem(v) {
			return true, nil
		}
		return m.cfg.TrackLevel < TrackPtr, nil
	case ty.IsVoid(), ty.IsInt():
		return false, nil
	}

	switch ty.Kind {
	case ir.FloatTy, ir.DoubleTy, ir.X86MMXTy, ir.StructTy, ir.ArrayTy, ir.VectorTy:
		return true, nil
	}
	return false, fmt.Errorf("value %s of type %s: %w", v.Ident(), ty, ErrUnsupported)
}

// onlyFeedsShadowMem holds for pointers whose single use names a region in
// a shadow-memory call.
func (m *Machine) onlyFeedsShadowMem(v ir.Value) bool {
	if _, ok := v.(ir.Instruction); !ok {
		if _, ok := v.(*ir.Param); !ok {
			return false
		}
	}
	uses := m.mod.Uses(v)
	return len(uses) == 1 && ir.IsShadowMemCall(uses[0])
}

func (m *Machine) skipped(v ir.Value) bool {
	s, err := m.IsSkipped(v)
	return err == nil && s
}

// uniqueScalar reports whether the region of meta is kept in a plain
// register.
func (m *Machine) uniqueScalar(meta *ir.ShadowMeta) bool {
	return meta != nil && meta.Scalar != nil && m.cfg.EnableUniqueScalars
}

func (m *Machine) scalarBits(meta *ir.ShadowMeta) int {
	if meta.ScalarBits > 0 {
		return meta.ScalarBits
	}
	if t := meta.Scalar.Type(); t.IsPtr() && t.Elem != nil {
		if bits := m.layout.SizeInBits(t.Elem); bits > 0 {
			return bits
		}
	}
	return 8 * m.cfg.WordSize
}

// isReservedFunction names functions whose address is never materialized.
func isReservedFunction(name string) bool {
	return ir.IsErrorFunction(name) || ir.IsShadowMemName(name) ||
		assumeFunctions.HasPrefix(name)
}
