package trie

import (
	"sort"
	"strings"
)

/*
Arena-based prefix trie

Nodes live in one slice and refer to their children by index. Keys are
inserted byte by byte; a node that ends an inserted key carries its value.
Lookups return the value of the longest inserted key that prefixes the
query, which is how function names are classified by naming convention
("nondet.", "llvm.memset", ...).
*/

// NodeIndex represents the index of a trie node.
type NodeIndex int

// arena stores all trie nodes. The root is at index 0.
type arena[V any] struct {
	nodes []arenaNode[V]
}

type arenaNode[V any] struct {
	children map[byte]NodeIndex
	isEnd    bool
	value    V
}

func newArena[V any]() *arena[V] {
	a := &arena[V]{nodes: make([]arenaNode[V], 0, 64)}
	a.newNode()
	return a
}

func (a *arena[V]) newNode() NodeIndex {
	idx := NodeIndex(len(a.nodes))
	a.nodes = append(a.nodes, arenaNode[V]{children: make(map[byte]NodeIndex)})
	return idx
}

func (a *arena[V]) insert(key string, v V) {
	current := NodeIndex(0)
	for i := 0; i < len(key); i++ {
		child, ok := a.nodes[current].children[key[i]]
		if !ok {
			child = a.newNode()
			a.nodes[current].children[key[i]] = child
		}
		current = child
	}
	a.nodes[current].isEnd = true
	a.nodes[current].value = v
}

// longest walks s and remembers the last key end it passed.
func (a *arena[V]) longest(s string) (int, V, bool) {
	var (
		best    V
		bestLen = -1
		current = NodeIndex(0)
	)
	if a.nodes[0].isEnd {
		best, bestLen = a.nodes[0].value, 0
	}
	for i := 0; i < len(s); i++ {
		child, ok := a.nodes[current].children[s[i]]
		if !ok {
			break
		}
		current = child
		if a.nodes[current].isEnd {
			best, bestLen = a.nodes[current].value, i+1
		}
	}
	return bestLen, best, bestLen >= 0
}

func (a *arena[V]) sameShape(aIdx NodeIndex, b *arena[V], bIdx NodeIndex) bool {
	nodeA, nodeB := a.nodes[aIdx], b.nodes[bIdx]
	if nodeA.isEnd != nodeB.isEnd || len(nodeA.children) != len(nodeB.children) {
		return false
	}
	for key, childA := range nodeA.children {
		childB, ok := nodeB.children[key]
		if !ok || !a.sameShape(childA, b, childB) {
			return false
		}
	}
	return true
}

func (a *arena[V]) string(idx NodeIndex) string {
	node := a.nodes[idx]
	var sb strings.Builder
	if node.isEnd {
		sb.WriteString("*")
	}

	keys := make([]byte, 0, len(node.children))
	for k := range node.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		sb.WriteByte(k)
		sb.WriteString("(")
		sb.WriteString(a.string(node.children[k]))
		sb.WriteString(")")
	}
	return sb.String()
}

// Trie maps string prefixes to values.
type Trie[V any] struct {
	arena *arena[V]
	size  int
}

func New[V any]() *Trie[V] {
	return &Trie[V]{arena: newArena[V]()}
}

// Insert associates v with the prefix key, replacing any previous value.
func (t *Trie[V]) Insert(key string, v V) {
	if _, ok := t.Lookup(key); !ok {
		t.size++
	}
	t.arena.insert(key, v)
}

// Lookup returns the value stored for exactly key.
func (t *Trie[V]) Lookup(key string) (V, bool) {
	n, v, ok := t.arena.longest(key)
	if !ok || n != len(key) {
		var zero V
		return zero, false
	}
	return v, true
}

// Match returns the value of the longest inserted key that is a prefix of s,
// and that key.
func (t *Trie[V]) Match(s string) (V, string, bool) {
	n, v, ok := t.arena.longest(s)
	if !ok {
		return v, "", false
	}
	return v, s[:n], true
}

// HasPrefix reports whether some inserted key is a prefix of s.
func (t *Trie[V]) HasPrefix(s string) bool {
	_, _, ok := t.arena.longest(s)
	return ok
}

// Len is the number of keys in the trie.
func (t *Trie[V]) Len() int { return t.size }

// SameKeys reports whether both tries hold the same set of keys.
func (t *Trie[V]) SameKeys(o *Trie[V]) bool {
	return len(t.arena.nodes) == len(o.arena.nodes) && t.arena.sameShape(0, o.arena, 0)
}

// String renders the trie structure; an asterisk marks the end of a key.
func (t *Trie[V]) String() string { return t.arena.string(0) }
