// Package expr implements the hash-consed logical expression graph shared
// by every part of the semantics engine.
//
// Expressions are built exclusively through a Factory, which interns every
// node: two structurally identical terms always come back as the same Expr
// handle, so equality of handles is structural equality. An Expr is a small
// index into the factory's arena; nodes are never mutated after they are
// interned and children are always interned before their parents, so the
// graph is a DAG without cycles.
//
// The factory applies a fixed set of local rewrites on construction:
//   - constant folding over bit-vector numerals (up to 256 bits)
//   - boolean identities and literal if-then-else conditions
//   - extract over concat, and merging of adjacent extracts
//   - select over store with syntactically equal or provably distinct
//     indices, and select over constant arrays
//   - beta reduction of lambda applications
//
// Terms can be printed as SMT-LIB2 with String or WriteSMTLib.
package expr
