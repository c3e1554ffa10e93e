package expr

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxWidth is the widest bit-vector the factory can fold numerals for.
const MaxWidth = 256

func mask(width int) *uint256.Int {
	m := new(uint256.Int).SetAllOne()
	if width >= MaxWidth {
		return m
	}
	return m.Rsh(m, uint(MaxWidth-width))
}

func truncNum(v *uint256.Int, width int) *uint256.Int {
	return new(uint256.Int).And(v, mask(width))
}

// signed extends the width-bit value v to a full 256-bit two's complement.
func signed(v *uint256.Int, width int) *uint256.Int {
	r := truncNum(v, width)
	if width < MaxWidth && r.BitLen() == width {
		r.Or(r, new(uint256.Int).Not(mask(width)))
	}
	return r
}

func isNeg(v *uint256.Int, width int) bool {
	return truncNum(v, width).BitLen() == width
}

func foldBinary(op Op, a, b *uint256.Int, width int) *uint256.Int {
	z := new(uint256.Int)
	switch op {
	case OpBVAdd:
		z.Add(a, b)
	case OpBVSub:
		z.Sub(a, b)
	case OpBVMul:
		z.Mul(a, b)
	case OpBVUDiv:
		if b.IsZero() {
			return mask(width)
		}
		z.Div(a, b)
	case OpBVURem:
		if b.IsZero() {
			return truncNum(a, width)
		}
		z.Mod(a, b)
	case OpBVSDiv:
		if b.IsZero() {
			if isNeg(a, width) {
				return uint256.NewInt(1)
			}
			return mask(width)
		}
		z.SDiv(signed(a, width), signed(b, width))
	case OpBVSRem:
		if b.IsZero() {
			return truncNum(a, width)
		}
		z.SMod(signed(a, width), signed(b, width))
	case OpBVAnd:
		z.And(a, b)
	case OpBVOr:
		z.Or(a, b)
	case OpBVXor:
		z.Xor(a, b)
	case OpBVShl:
		if !b.IsUint64() || b.Uint64() >= uint64(width) {
			return z
		}
		z.Lsh(a, uint(b.Uint64()))
	case OpBVLShr:
		if !b.IsUint64() || b.Uint64() >= uint64(width) {
			return z
		}
		z.Rsh(truncNum(a, width), uint(b.Uint64()))
	case OpBVAShr:
		s := signed(a, width)
		if !b.IsUint64() || b.Uint64() >= uint64(width) {
			if isNeg(a, width) {
				return mask(width)
			}
			return z
		}
		z.SRsh(s, uint(b.Uint64()))
	default:
		panic(fmt.Sprintf("expr: cannot fold %s", op))
	}
	return truncNum(z, width)
}

func foldCompare(op Op, a, b *uint256.Int, width int) bool {
	switch op {
	case OpBVUlt:
		return a.Lt(b)
	case OpBVUle:
		return !a.Gt(b)
	case OpBVUgt:
		return a.Gt(b)
	case OpBVUge:
		return !a.Lt(b)
	}
	sa, sb := signed(a, width), signed(b, width)
	switch op {
	case OpBVSlt:
		return sa.Slt(sb)
	case OpBVSle:
		return !sa.Sgt(sb)
	case OpBVSgt:
		return sa.Sgt(sb)
	case OpBVSge:
		return !sa.Slt(sb)
	}
	panic(fmt.Sprintf("expr: cannot fold %s", op))
}
