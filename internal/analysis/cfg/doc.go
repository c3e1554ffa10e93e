// Package cfg renders the block graph of an IR function.
//
// Each node of the graph is a basic block and each directed edge is a
// possible jump from the terminator of a block to one of its successors.
// Two pseudo nodes, ENTRY and EXIT, mark where execution starts and where
// it leaves the function.
//
// The graph is written in the GraphViz DOT language:
//
//	cfg.PrintDot(os.Stdout, fn)
package cfg
