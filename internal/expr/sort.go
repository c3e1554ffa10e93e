package expr

import (
	"fmt"
	"strings"
)

// Sort is an interned handle to a logical sort. The zero Sort is invalid.
type Sort uint32

// NoSort is returned when a sort cannot be determined.
const NoSort Sort = 0

// SortKind classifies a sort.
type SortKind uint8

const (
	_ SortKind = iota
	KindBool
	KindBV
	KindArray
	KindFunc
)

func (k SortKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindBV:
		return "BitVec"
	case KindArray:
		return "Array"
	case KindFunc:
		return "Func"
	default:
		return "Unknown"
	}
}

type sortNode struct {
	kind  SortKind
	width int
	// args holds the index sort of an array, or the domain of a function.
	args []Sort
	rng  Sort
}

func (n sortNode) key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%d:%d", n.kind, n.width, n.rng)
	for _, a := range n.args {
		fmt.Fprintf(&sb, ",%d", a)
	}
	return sb.String()
}

func (f *Factory) internSort(n sortNode) Sort {
	k := n.key()

	f.mu.RLock()
	s, ok := f.sortIndex[k]
	f.mu.RUnlock()
	if ok {
		return s
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sortIndex[k]; ok {
		return s
	}
	s = Sort(len(f.sorts))
	f.sorts = append(f.sorts, n)
	f.sortIndex[k] = s
	return s
}

func (f *Factory) sortNode(s Sort) sortNode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s == NoSort || int(s) >= len(f.sorts) {
		panic(fmt.Sprintf("expr: invalid sort handle %d", s))
	}
	return f.sorts[s]
}

// BoolSort returns the boolean sort.
func (f *Factory) BoolSort() Sort { return f.internSort(sortNode{kind: KindBool}) }

// BVSort returns the sort of bit-vectors of the given width.
func (f *Factory) BVSort(width int) Sort {
	if width <= 0 || width > MaxWidth {
		panic(fmt.Sprintf("expr: unsupported bit-vector width %d", width))
	}
	return f.internSort(sortNode{kind: KindBV, width: width})
}

// ArraySort returns the sort of arrays from index to elem.
func (f *Factory) ArraySort(index, elem Sort) Sort {
	return f.internSort(sortNode{kind: KindArray, args: []Sort{index}, rng: elem})
}

// FuncSort returns the sort of functions from domain to rng.
func (f *Factory) FuncSort(domain []Sort, rng Sort) Sort {
	args := make([]Sort, len(domain))
	copy(args, domain)
	return f.internSort(sortNode{kind: KindFunc, args: args, rng: rng})
}

// Kind returns the kind of s.
func (f *Factory) Kind(s Sort) SortKind { return f.sortNode(s).kind }

// BVWidth returns the width of a bit-vector sort, 1 for Bool, 0 otherwise.
func (f *Factory) BVWidth(s Sort) int {
	n := f.sortNode(s)
	switch n.kind {
	case KindBV:
		return n.width
	case KindBool:
		return 1
	}
	return 0
}

// Domain returns the index sort of an array or the argument sorts of a function.
func (f *Factory) Domain(s Sort) []Sort { return f.sortNode(s).args }

// Range returns the element sort of an array or result sort of a function.
func (f *Factory) Range(s Sort) Sort { return f.sortNode(s).rng }

// SortString prints s in SMT-LIB2 syntax. Function sorts print as their
// domain list followed by the range, as used in declare-fun.
func (f *Factory) SortString(s Sort) string {
	n := f.sortNode(s)
	switch n.kind {
	case KindBool:
		return "Bool"
	case KindBV:
		return fmt.Sprintf("(_ BitVec %d)", n.width)
	case KindArray:
		return fmt.Sprintf("(Array %s %s)", f.SortString(n.args[0]), f.SortString(n.rng))
	case KindFunc:
		parts := make([]string, len(n.args))
		for i, a := range n.args {
			parts[i] = f.SortString(a)
		}
		return fmt.Sprintf("(%s) %s", strings.Join(parts, " "), f.SortString(n.rng))
	}
	return "?"
}
