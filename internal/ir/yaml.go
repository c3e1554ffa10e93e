package ir

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type moduleSpec struct {
	Module    string      `yaml:"module"`
	PtrSize   int         `yaml:"ptr_size"`
	Globals   []yaml.Node `yaml:"globals"`
	Functions []yaml.Node `yaml:"functions"`
	Summaries []yaml.Node `yaml:"summaries"`
}

type globalSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Init    []int  `yaml:"init"`
	Zero    bool   `yaml:"zero"`
	Section string `yaml:"section"`
}

type paramSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type blockSpec struct {
	Name  string      `yaml:"name"`
	Insts []yaml.Node `yaml:"insts"`
}

type functionSpec struct {
	Name         string      `yaml:"name"`
	Ret          string      `yaml:"ret"`
	Params       []paramSpec `yaml:"params"`
	AddressTaken bool        `yaml:"address_taken"`
	Blocks       []blockSpec `yaml:"blocks"`
}

type shadowSpec struct {
	Region int    `yaml:"region"`
	Scalar string `yaml:"scalar"`
	Bits   int    `yaml:"bits"`
}

type incomingSpec struct {
	Value yaml.Node `yaml:"value"`
	From  string    `yaml:"from"`
}

type instSpec struct {
	Op       string         `yaml:"op"`
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Source   string         `yaml:"source"`
	Pred     string         `yaml:"pred"`
	Align    int            `yaml:"align"`
	Callee   string         `yaml:"callee"`
	Args     []yaml.Node    `yaml:"args"`
	Targets  []string       `yaml:"targets"`
	Incoming []incomingSpec `yaml:"incoming"`
	Shadow   *shadowSpec    `yaml:"shadow"`
}

type constExprSpec struct {
	Op     string      `yaml:"op"`
	Type   string      `yaml:"type"`
	Source string      `yaml:"source"`
	Args   []yaml.Node `yaml:"args"`
}

type summarySpec struct {
	Function string   `yaml:"function"`
	Regions  []string `yaml:"regions"`
	Args     []string `yaml:"args"`
	Globals  []string `yaml:"globals"`
	Ret      string   `yaml:"ret"`
}

// forwardRef stands for a local value used before its definition. It is
// patched once the whole function is built.
type forwardRef struct {
	name string
	typ  *Type
	line int
}

func (r *forwardRef) Type() *Type   { return r.typ }
func (r *forwardRef) Name() string  { return r.name }
func (r *forwardRef) Ident() string { return "%" + r.name }

type loader struct {
	m      *Module
	scopes map[*Function]map[string]Value
	scope  map[string]Value
	fn     *Function
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", line, ErrMalformed, fmt.Sprintf(format, args...))
}

// LoadFile reads a YAML module description from path.
func LoadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadYAML(data)
}

// LoadYAML builds a module from its YAML description.
func LoadYAML(data []byte) (*Module, error) {
	var spec moduleSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	layout := DefaultLayout()
	if spec.PtrSize > 0 {
		layout.PtrBytes = spec.PtrSize
	}
	ld := &loader{
		m:      NewModule(spec.Module, layout),
		scopes: make(map[*Function]map[string]Value),
	}

	for i := range spec.Globals {
		if err := ld.global(&spec.Globals[i]); err != nil {
			return nil, err
		}
	}

	fspecs := make([]functionSpec, len(spec.Functions))
	for i := range spec.Functions {
		if err := ld.declare(&spec.Functions[i], &fspecs[i]); err != nil {
			return nil, err
		}
	}
	for i := range fspecs {
		if err := ld.body(ld.m.Functions[i], &fspecs[i]); err != nil {
			return nil, err
		}
	}

	for i := range spec.Summaries {
		if err := ld.summary(&spec.Summaries[i]); err != nil {
			return nil, err
		}
	}

	ComputeCanFail(ld.m)
	return ld.m, nil
}

func (ld *loader) global(n *yaml.Node) error {
	var gs globalSpec
	if err := n.Decode(&gs); err != nil {
		return malformed(n.Line, "%v", err)
	}
	if gs.Name == "" {
		return malformed(n.Line, "global without a name")
	}
	ty, err := ParseType(gs.Type)
	if err != nil {
		return malformed(n.Line, "%v", err)
	}
	var init []byte
	switch {
	case gs.Init != nil:
		init = make([]byte, len(gs.Init))
		for i, b := range gs.Init {
			if b < 0 || b > 255 {
				return malformed(n.Line, "initializer byte %d out of range", b)
			}
			init[i] = byte(b)
		}
	case gs.Zero:
		init = make([]byte, ld.m.Layout.AllocSize(ty))
	}
	g := ld.m.NewGlobal(gs.Name, ty, init)
	g.Section = gs.Section
	return nil
}

func (ld *loader) declare(n *yaml.Node, fs *functionSpec) error {
	if err := n.Decode(fs); err != nil {
		return malformed(n.Line, "%v", err)
	}
	if fs.Name == "" {
		return malformed(n.Line, "function without a name")
	}
	if ld.m.Function(fs.Name) != nil {
		return malformed(n.Line, "function %s defined twice", fs.Name)
	}
	ret := Void
	if fs.Ret != "" {
		t, err := ParseType(fs.Ret)
		if err != nil {
			return malformed(n.Line, "%v", err)
		}
		ret = t
	}
	params := make([]*Type, len(fs.Params))
	names := make([]string, len(fs.Params))
	for i, p := range fs.Params {
		t, err := ParseType(p.Type)
		if err != nil {
			return malformed(n.Line, "parameter %s: %v", p.Name, err)
		}
		params[i], names[i] = t, p.Name
	}
	fn := ld.m.NewFunction(fs.Name, FuncOf(ret, params...), names...)
	fn.AddressTaken = fs.AddressTaken
	for _, b := range fs.Blocks {
		if fn.Block(b.Name) != nil {
			return malformed(n.Line, "block %s defined twice in %s", b.Name, fs.Name)
		}
		fn.NewBlock(b.Name)
	}
	return nil
}

func (ld *loader) body(fn *Function, fs *functionSpec) error {
	ld.fn = fn
	ld.scope = make(map[string]Value)
	ld.scopes[fn] = ld.scope
	for _, p := range fn.Params {
		ld.scope[p.Name()] = p
	}

	bd := NewBuilder(nil)
	for i, bs := range fs.Blocks {
		bd.SetBlock(fn.Blocks[i])
		for j := range bs.Insts {
			inst, err := ld.inst(bd, &bs.Insts[j])
			if err != nil {
				return err
			}
			if inst.Name() != "" {
				if _, dup := ld.scope[inst.Name()]; dup {
					return malformed(bs.Insts[j].Line, "%%%s defined twice", inst.Name())
				}
				ld.scope[inst.Name()] = inst
			}
		}
	}

	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			ops := inst.base().ops
			for k, op := range ops {
				ref, ok := op.(*forwardRef)
				if !ok {
					continue
				}
				v, found := ld.scope[ref.name]
				if !found {
					return malformed(ref.line, "undefined value %%%s in %s", ref.name, fn.Name())
				}
				ops[k] = v
			}
		}
	}
	fn.invalidate()
	return nil
}

func (ld *loader) types(n *yaml.Node, specs ...string) ([]*Type, error) {
	out := make([]*Type, len(specs))
	for i, s := range specs {
		if s == "" {
			continue
		}
		t, err := ParseType(s)
		if err != nil {
			return nil, malformed(n.Line, "%v", err)
		}
		out[i] = t
	}
	return out, nil
}

func (ld *loader) inst(bd *Builder, n *yaml.Node) (Instruction, error) {
	var s instSpec
	if err := n.Decode(&s); err != nil {
		return nil, malformed(n.Line, "%v", err)
	}
	ts, err := ld.types(n, s.Type, s.Source)
	if err != nil {
		return nil, err
	}
	ty, source := ts[0], ts[1]

	args := func(want int, hints ...*Type) ([]Value, error) {
		if want >= 0 && len(s.Args) != want {
			return nil, malformed(n.Line, "%s expects %d operands, got %d", s.Op, want, len(s.Args))
		}
		vals := make([]Value, len(s.Args))
		for i := range s.Args {
			var hint *Type
			if i < len(hints) {
				hint = hints[i]
			}
			v, err := ld.operand(&s.Args[i], hint)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	}
	block := func(name string) (*Block, error) {
		b := ld.fn.Block(name)
		if b == nil {
			return nil, malformed(n.Line, "unknown block %s", name)
		}
		return b, nil
	}

	if op, ok := ParseOpcode(s.Op); ok && op.IsBinary() {
		vs, err := args(2, ty, ty)
		if err != nil {
			return nil, err
		}
		return bd.BinOp(s.Name, op, vs[0], vs[1]), nil
	} else if ok && op.IsCast() {
		if ty == nil {
			return nil, malformed(n.Line, "%s needs a target type", s.Op)
		}
		vs, err := args(1)
		if err != nil {
			return nil, err
		}
		return bd.Cast(s.Name, op, vs[0], ty), nil
	}

	switch s.Op {
	case "icmp", "fcmp":
		vs, err := args(2, ty, ty)
		if err != nil {
			return nil, err
		}
		if s.Op == "fcmp" {
			return bd.FCmp(s.Name, vs[0], vs[1]), nil
		}
		pred, ok := ParsePredicate(s.Pred)
		if !ok {
			return nil, malformed(n.Line, "unknown predicate %q", s.Pred)
		}
		return bd.ICmp(s.Name, pred, vs[0], vs[1]), nil

	case "alloca":
		if ty == nil {
			return nil, malformed(n.Line, "alloca needs a type")
		}
		vs, err := args(-1, I32)
		if err != nil {
			return nil, err
		}
		var count Value
		if len(vs) > 0 {
			count = vs[0]
		}
		return bd.Alloca(s.Name, ty, count, s.Align), nil

	case "load":
		if ty == nil {
			return nil, malformed(n.Line, "load needs a type")
		}
		vs, err := args(1, PtrTo(ty))
		if err != nil {
			return nil, err
		}
		return bd.Load(s.Name, ty, vs[0], s.Align), nil

	case "store":
		vs, err := args(2, ty)
		if err != nil {
			return nil, err
		}
		return bd.Store(vs[0], vs[1], s.Align), nil

	case "gep", "getelementptr":
		if source == nil {
			source = ty
		}
		if source == nil {
			return nil, malformed(n.Line, "getelementptr needs a source type")
		}
		vs, err := args(-1, PtrTo(source))
		if err != nil {
			return nil, err
		}
		if len(vs) < 1 {
			return nil, malformed(n.Line, "getelementptr needs a base pointer")
		}
		return bd.GEP(s.Name, source, vs[0], vs[1:]...), nil

	case "select":
		vs, err := args(3, I1, ty, ty)
		if err != nil {
			return nil, err
		}
		return bd.Select(s.Name, vs[0], vs[1], vs[2]), nil

	case "phi":
		if ty == nil {
			return nil, malformed(n.Line, "phi needs a type")
		}
		phi := bd.Phi(s.Name, ty)
		for i := range s.Incoming {
			v, err := ld.operand(&s.Incoming[i].Value, ty)
			if err != nil {
				return nil, err
			}
			from, err := block(s.Incoming[i].From)
			if err != nil {
				return nil, err
			}
			phi.AddIncoming(v, from)
		}
		return phi, nil

	case "call", "invoke":
		callee, err := ld.callee(n, &s, ty)
		if err != nil {
			return nil, err
		}
		var hints []*Type
		if sig := calleeSig(callee); sig != nil {
			hints = sig.Params
		}
		vs, err := args(-1, hints...)
		if err != nil {
			return nil, err
		}
		if s.Op == "invoke" {
			return bd.Invoke(callee, vs...), nil
		}
		call := bd.Call(s.Name, callee, vs...)
		if s.Shadow != nil {
			meta := &ShadowMeta{Region: s.Shadow.Region, ScalarBits: s.Shadow.Bits}
			if s.Shadow.Scalar != "" {
				sn := yaml.Node{Kind: yaml.ScalarNode, Value: s.Shadow.Scalar, Line: n.Line}
				if meta.Scalar, err = ld.operand(&sn, nil); err != nil {
					return nil, err
				}
			}
			call.SetShadow(meta)
		}
		return call, nil

	case "ret":
		vs, err := args(-1, ld.fn.Sig.Ret)
		if err != nil {
			return nil, err
		}
		if len(vs) > 1 {
			return nil, malformed(n.Line, "ret takes at most one operand")
		}
		var v Value
		if len(vs) == 1 {
			v = vs[0]
		}
		return bd.Ret(v), nil

	case "br":
		switch len(s.Targets) {
		case 1:
			dst, err := block(s.Targets[0])
			if err != nil {
				return nil, err
			}
			return bd.Br(dst), nil
		case 2:
			vs, err := args(1, I1)
			if err != nil {
				return nil, err
			}
			t, err := block(s.Targets[0])
			if err != nil {
				return nil, err
			}
			f, err := block(s.Targets[1])
			if err != nil {
				return nil, err
			}
			return bd.CondBr(vs[0], t, f), nil
		}
		return nil, malformed(n.Line, "br needs one or two targets")

	case "switch":
		vs, err := args(1, ty)
		if err != nil {
			return nil, err
		}
		return bd.Switch(vs[0]), nil

	case "indirectbr":
		vs, err := args(1)
		if err != nil {
			return nil, err
		}
		return bd.IndirectBr(vs[0]), nil

	case "unreachable":
		return bd.Unreachable(), nil

	case "va_arg":
		vs, err := args(1)
		if err != nil {
			return nil, err
		}
		return bd.VAArg(s.Name, vs[0], ty), nil

	case "extractelement", "insertelement", "shufflevector":
		vs, err := args(-1)
		if err != nil {
			return nil, err
		}
		return bd.VectorOp(s.Name, s.Op, ty, vs...), nil
	}
	return nil, malformed(n.Line, "unknown instruction %q", s.Op)
}

// callee resolves the called value. Unknown @names are declared with a
// signature taken from the call site.
func (ld *loader) callee(n *yaml.Node, s *instSpec, ret *Type) (Value, error) {
	name, ok := strings.CutPrefix(s.Callee, "@")
	if !ok {
		cn := yaml.Node{Kind: yaml.ScalarNode, Value: s.Callee, Line: n.Line}
		return ld.operand(&cn, nil)
	}
	if fn := ld.m.Function(name); fn != nil {
		return fn, nil
	}
	if ret == nil {
		ret = Void
	}
	params := make([]*Type, len(s.Args))
	for i := range s.Args {
		v, err := ld.operand(&s.Args[i], nil)
		if err != nil {
			return nil, malformed(n.Line, "cannot infer the signature of @%s: %v", name, err)
		}
		params[i] = v.Type()
	}
	return ld.m.Declare(name, FuncOf(ret, params...)), nil
}

// operand parses a value. Accepted spellings are %local, @global,
// true/false, "T literal" with literal one of an integer, null, undef,
// zeroinitializer, %local or @global, and a bare integer when hint is an
// integer type. A mapping describes a constant expression.
func (ld *loader) operand(n *yaml.Node, hint *Type) (Value, error) {
	if n.Kind == yaml.MappingNode {
		return ld.constExpr(n)
	}
	if n.Kind != yaml.ScalarNode {
		return nil, malformed(n.Line, "operand must be a scalar or a mapping")
	}
	s := strings.TrimSpace(n.Value)
	switch {
	case s == "true":
		return True(), nil
	case s == "false":
		return False(), nil
	case strings.HasPrefix(s, "%"):
		return ld.local(s[1:], hint, n.Line)
	case strings.HasPrefix(s, "@"):
		return ld.symbol(s[1:], n.Line)
	}

	sp := strings.LastIndex(s, " ")
	if sp < 0 {
		if hint != nil && hint.IsInt() {
			return ld.intLiteral(hint, s, n.Line)
		}
		return nil, malformed(n.Line, "cannot parse operand %q", s)
	}
	ty, err := ParseType(s[:sp])
	if err != nil {
		return nil, malformed(n.Line, "%v", err)
	}
	lit := s[sp+1:]
	switch {
	case lit == "null" || lit == "zeroinitializer":
		return NullOf(ty), nil
	case lit == "undef":
		return &Undef{Ty: ty}, nil
	case strings.HasPrefix(lit, "%"):
		return ld.local(lit[1:], ty, n.Line)
	case strings.HasPrefix(lit, "@"):
		return ld.symbol(lit[1:], n.Line)
	case ty.IsFloating():
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, malformed(n.Line, "bad float literal %q", lit)
		}
		return &ConstFP{Ty: ty, V: f}, nil
	case ty.IsBool() && (lit == "true" || lit == "false"):
		if lit == "true" {
			return True(), nil
		}
		return False(), nil
	case ty.IsInt():
		return ld.intLiteral(ty, lit, n.Line)
	}
	return nil, malformed(n.Line, "cannot parse operand %q", s)
}

func (ld *loader) intLiteral(ty *Type, lit string, line int) (Value, error) {
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(lit, 0, 64)
		if uerr != nil {
			return nil, malformed(line, "bad integer literal %q", lit)
		}
		v = int64(u)
	}
	return Int(ty, v), nil
}

func (ld *loader) local(name string, hint *Type, line int) (Value, error) {
	if v, ok := ld.scope[name]; ok {
		return v, nil
	}
	if hint == nil {
		return nil, malformed(line, "%%%s is used before its definition; spell its type as \"T %%%s\"", name, name)
	}
	return &forwardRef{name: name, typ: hint, line: line}, nil
}

func (ld *loader) symbol(name string, line int) (Value, error) {
	if g := ld.m.Global(name); g != nil {
		return g, nil
	}
	if fn := ld.m.Function(name); fn != nil {
		return fn, nil
	}
	return nil, malformed(line, "undefined symbol @%s", name)
}

func (ld *loader) constExpr(n *yaml.Node) (Value, error) {
	var cs constExprSpec
	if err := n.Decode(&cs); err != nil {
		return nil, malformed(n.Line, "%v", err)
	}
	ts, err := ld.types(n, cs.Type, cs.Source)
	if err != nil {
		return nil, err
	}
	op, ok := ParseOpcode(cs.Op)
	if cs.Op == "gep" {
		op, ok = GetElementPtr, true
	}
	if !ok {
		return nil, malformed(n.Line, "unknown constant expression %q", cs.Op)
	}
	ops := make([]Value, len(cs.Args))
	for i := range cs.Args {
		hint := ts[0]
		if op == GetElementPtr && i > 0 {
			hint = I32
		}
		v, err := ld.operand(&cs.Args[i], hint)
		if err != nil {
			return nil, err
		}
		if _, local := v.(*forwardRef); local {
			return nil, malformed(n.Line, "constant expressions cannot use local values")
		}
		ops[i] = v
	}
	ty := ts[0]
	if op == GetElementPtr {
		if ts[1] == nil || len(ops) == 0 {
			return nil, malformed(n.Line, "constant gep needs a source type and a base")
		}
		ty = PtrTo(IndexedType(ts[1], ops[1:]))
	}
	if ty == nil {
		return nil, malformed(n.Line, "constant expression needs a type")
	}
	return &ConstExpr{Op: op, Ty: ty, Source: ts[1], Ops: ops}, nil
}

func (ld *loader) summary(n *yaml.Node) error {
	var ss summarySpec
	if err := n.Decode(&ss); err != nil {
		return malformed(n.Line, "%v", err)
	}
	fn := ld.m.Function(ss.Function)
	if fn == nil {
		return malformed(n.Line, "summary of unknown function %s", ss.Function)
	}
	scope := ld.scopes[fn]
	fi := &FunctionInfo{Fn: fn}
	for _, r := range ss.Regions {
		v, ok := scope[strings.TrimPrefix(r, "%")]
		if !ok {
			return malformed(n.Line, "unknown region %s in %s", r, fn.Name())
		}
		fi.Regions = append(fi.Regions, v)
	}
	for _, a := range ss.Args {
		p, ok := scope[strings.TrimPrefix(a, "%")].(*Param)
		if !ok {
			return malformed(n.Line, "unknown parameter %s of %s", a, fn.Name())
		}
		fi.Args = append(fi.Args, p)
	}
	for _, g := range ss.Globals {
		gv := ld.m.Global(strings.TrimPrefix(g, "@"))
		if gv == nil {
			return malformed(n.Line, "unknown global %s", g)
		}
		fi.Globals = append(fi.Globals, gv)
	}
	if ss.Ret != "" {
		v, ok := scope[strings.TrimPrefix(ss.Ret, "%")]
		if !ok {
			return malformed(n.Line, "unknown return value %s in %s", ss.Ret, fn.Name())
		}
		fi.Ret = v
	}
	ld.m.Summaries = append(ld.m.Summaries, fi)
	return nil
}
