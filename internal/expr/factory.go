package expr

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/holiman/uint256"
)

// Expr is a handle to an interned expression node. Handles are only
// meaningful for the Factory that produced them.
type Expr uint32

// Nil is the absent expression.
const Nil Expr = 0

// node is the interned representation of an expression.
type node struct {
	op   Op
	sort Sort
	kids []Expr
	// name is set for Const and FDecl.
	name string
	// num is set for Num.
	num uint256.Int
	// p0 and p1 carry integer parameters: extract bounds, extension
	// amount, bound variable index.
	p0, p1 int
}

func (n *node) hash() uint64 {
	buf := make([]byte, 0, 64+len(n.name)+4*len(n.kids))
	buf = append(buf, byte(n.op))
	buf = binary.BigEndian.AppendUint32(buf, uint32(n.sort))
	buf = binary.BigEndian.AppendUint64(buf, uint64(n.p0))
	buf = binary.BigEndian.AppendUint64(buf, uint64(n.p1))
	if n.op == OpNum {
		b := n.num.Bytes32()
		buf = append(buf, b[:]...)
	}
	buf = append(buf, n.name...)
	for _, k := range n.kids {
		buf = binary.BigEndian.AppendUint32(buf, uint32(k))
	}
	return xxhash.Sum64(buf)
}

// shallowEq compares two nodes assuming their children are interned.
func (n *node) shallowEq(o *node) bool {
	if n.op != o.op || n.sort != o.sort || n.p0 != o.p0 || n.p1 != o.p1 || n.name != o.name {
		return false
	}
	if n.op == OpNum && !n.num.Eq(&o.num) {
		return false
	}
	if len(n.kids) != len(o.kids) {
		return false
	}
	for i := range n.kids {
		if n.kids[i] != o.kids[i] {
			return false
		}
	}
	return true
}

// Factory interns expressions and sorts. It is safe for concurrent use.
type Factory struct {
	mu sync.RWMutex

	nodes []node
	index map[uint64][]Expr

	sorts     []sortNode
	sortIndex map[string]Sort

	fresh map[string]int
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{
		nodes:     make([]node, 1, 1024),
		index:     make(map[uint64][]Expr),
		sorts:     make([]sortNode, 1, 16),
		sortIndex: make(map[string]Sort),
		fresh:     make(map[string]int),
	}
}

func (f *Factory) intern(n node) Expr {
	h := n.hash()

	f.mu.RLock()
	for _, e := range f.index[h] {
		if f.nodes[e].shallowEq(&n) {
			f.mu.RUnlock()
			return e
		}
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.index[h] {
		if f.nodes[e].shallowEq(&n) {
			return e
		}
	}
	e := Expr(len(f.nodes))
	f.nodes = append(f.nodes, n)
	f.index[h] = append(f.index[h], e)
	return e
}

func (f *Factory) get(e Expr) node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if e == Nil || int(e) >= len(f.nodes) {
		panic(fmt.Sprintf("expr: invalid handle %d", e))
	}
	return f.nodes[e]
}

// Len returns the number of interned expressions.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.nodes) - 1
}

// Op returns the operator of e.
func (f *Factory) Op(e Expr) Op { return f.get(e).op }

// SortOf returns the sort of e.
func (f *Factory) SortOf(e Expr) Sort { return f.get(e).sort }

// Kids returns the children of e. The slice must not be modified.
func (f *Factory) Kids(e Expr) []Expr { return f.get(e).kids }

// Kid returns the i-th child of e.
func (f *Factory) Kid(e Expr, i int) Expr { return f.get(e).kids[i] }

// Name returns the symbol name of a Const or FDecl node.
func (f *Factory) Name(e Expr) string { return f.get(e).name }

// Width returns the bit-width of e: the bit-vector width, 1 for booleans,
// and 0 for arrays and functions.
func (f *Factory) Width(e Expr) int { return f.BVWidth(f.SortOf(e)) }

// Params returns the integer parameters of e. For Extract they are (hi,
// lo); for ZExt and SExt the first is the extension amount; for Bound the
// first is the variable index.
func (f *Factory) Params(e Expr) (int, int) {
	n := f.get(e)
	return n.p0, n.p1
}

// NumValue returns the value of a numeral.
func (f *Factory) NumValue(e Expr) (*uint256.Int, bool) {
	if e == Nil {
		return nil, false
	}
	n := f.get(e)
	if n.op != OpNum {
		return nil, false
	}
	return n.num.Clone(), true
}

// Uint64 returns the value of a numeral that fits 64 bits.
func (f *Factory) Uint64(e Expr) (uint64, bool) {
	v, ok := f.NumValue(e)
	if !ok || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// Int64 returns the two's complement value of a numeral of width <= 64.
func (f *Factory) Int64(e Expr) (int64, bool) {
	v, ok := f.NumValue(e)
	if !ok {
		return 0, false
	}
	w := f.Width(e)
	if w > 64 {
		return 0, false
	}
	return int64(signed(v, w).Uint64()), true
}

// IsNum reports whether e is a bit-vector numeral.
func (f *Factory) IsNum(e Expr) bool { return e != Nil && f.Op(e) == OpNum }

// IsTrue reports whether e is the literal true.
func (f *Factory) IsTrue(e Expr) bool { return e != Nil && f.Op(e) == OpTrue }

// IsFalse reports whether e is the literal false.
func (f *Factory) IsFalse(e Expr) bool { return e != Nil && f.Op(e) == OpFalse }

// IsArraySorted reports whether e has an array sort.
func (f *Factory) IsArraySorted(e Expr) bool { return f.Kind(f.SortOf(e)) == KindArray }
