// Package alu defines the bit-precise integer semantics used by the
// interpreter.
//
// Every operation takes the bit-width of its operands explicitly. Width 1
// is the boolean encoding: single-bit integers are represented in the Bool
// sort, so comparisons and i1 arithmetic produce formulas directly. Operands
// are assumed to be well typed; a width mismatch is a programming error and
// panics inside the expression factory.
package alu

import "github.com/gnolang/opsem/internal/expr"

// ALU is the arithmetic/logic unit of the semantics.
type ALU interface {
	// IntSort returns the sort that holds integers of the given width.
	IntSort(width int) expr.Sort

	// SI returns the signed integer k encoded in width bits.
	SI(k int64, width int) expr.Expr
	// UI returns the unsigned integer k encoded in width bits.
	UI(k uint64, width int) expr.Expr
	// IsNum reports whether e is a concrete integer.
	IsNum(e expr.Expr) bool
	// ToInt64 returns the signed value of a concrete integer.
	ToInt64(e expr.Expr) (int64, bool)

	DoAdd(a, b expr.Expr, width int) expr.Expr
	DoSub(a, b expr.Expr, width int) expr.Expr
	DoMul(a, b expr.Expr, width int) expr.Expr
	DoUDiv(a, b expr.Expr, width int) expr.Expr
	DoSDiv(a, b expr.Expr, width int) expr.Expr
	DoURem(a, b expr.Expr, width int) expr.Expr
	DoSRem(a, b expr.Expr, width int) expr.Expr

	DoAnd(a, b expr.Expr, width int) expr.Expr
	DoOr(a, b expr.Expr, width int) expr.Expr
	DoXor(a, b expr.Expr, width int) expr.Expr
	DoNot(a expr.Expr, width int) expr.Expr

	DoShl(a, b expr.Expr, width int) expr.Expr
	DoLShr(a, b expr.Expr, width int) expr.Expr
	DoAShr(a, b expr.Expr, width int) expr.Expr

	DoEq(a, b expr.Expr, width int) expr.Expr
	DoNe(a, b expr.Expr, width int) expr.Expr
	DoUlt(a, b expr.Expr, width int) expr.Expr
	DoSlt(a, b expr.Expr, width int) expr.Expr
	DoUgt(a, b expr.Expr, width int) expr.Expr
	DoSgt(a, b expr.Expr, width int) expr.Expr
	DoUle(a, b expr.Expr, width int) expr.Expr
	DoSle(a, b expr.Expr, width int) expr.Expr
	DoUge(a, b expr.Expr, width int) expr.Expr
	DoSge(a, b expr.Expr, width int) expr.Expr

	DoTrunc(a expr.Expr, from, to int) expr.Expr
	DoZext(a expr.Expr, from, to int) expr.Expr
	DoSext(a expr.Expr, from, to int) expr.Expr

	// BoolToBv1 converts a formula to a 1-bit vector.
	BoolToBv1(a expr.Expr) expr.Expr
	// Bv1ToBool converts a 1-bit vector to a formula.
	Bv1ToBool(a expr.Expr) expr.Expr
}
