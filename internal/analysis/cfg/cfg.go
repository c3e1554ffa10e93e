package cfg

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gnolang/opsem/internal/ir"
)

const (
	entryNode = "ENTRY"
	exitNode  = "EXIT"
)

// Edge is a jump between two blocks. A nil end stands for ENTRY or EXIT.
type Edge struct {
	From, To *ir.Block
}

// Edges lists the edges of fn in block order.
func Edges(fn *ir.Function) []Edge {
	if fn.IsDeclaration() {
		return nil
	}
	edges := []Edge{{To: fn.Entry()}}
	for _, b := range fn.Blocks {
		succs := b.Succs()
		if len(succs) == 0 {
			edges = append(edges, Edge{From: b})
			continue
		}
		for _, s := range succs {
			edges = append(edges, Edge{From: b, To: s})
		}
	}
	return edges
}

func nodeName(b *ir.Block, fallback string) string {
	if b == nil {
		return fallback
	}
	return b.Name()
}

// PrintDot writes the block graph of fn. Edges in highlight are drawn in
// bold.
func PrintDot(w io.Writer, fn *ir.Function, highlight ...Edge) error {
	bold := make(map[Edge]bool, len(highlight))
	for _, e := range highlight {
		bold[e] = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", fn.Name())
	sb.WriteString("\tmode=\"heir\";\n")
	sb.WriteString("\tsplines=\"ortho\";\n\n")
	for _, e := range Edges(fn) {
		fmt.Fprintf(&sb, "\t%q -> %q", nodeName(e.From, entryNode), nodeName(e.To, exitNode))
		if bold[e] {
			sb.WriteString(" [style=bold]")
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// PathEdges returns the edges taken by a path of blocks.
func PathEdges(path []*ir.Block) []Edge {
	var edges []Edge
	for i := 0; i+1 < len(path); i++ {
		edges = append(edges, Edge{From: path[i], To: path[i+1]})
	}
	return edges
}

// WriteDotFile writes the block graph of fn to path.
func WriteDotFile(path string, fn *ir.Function, highlight ...Edge) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return PrintDot(f, fn, highlight...)
}
