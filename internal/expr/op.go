package expr

// Op identifies the operator of an interned node.
type Op uint8

const (
	OpInvalid Op = iota

	leaf_op_begin
	OpTrue
	OpFalse
	OpNum
	OpConst
	OpBound
	OpFDecl
	leaf_op_end

	bool_op_begin
	OpNot
	OpAnd
	OpOr
	OpXor
	OpImplies
	OpIte
	OpEq
	bool_op_end

	arithmetic_op_begin
	OpBVAdd
	OpBVSub
	OpBVMul
	OpBVUDiv
	OpBVSDiv
	OpBVURem
	OpBVSRem
	OpBVNeg
	OpBVAnd
	OpBVOr
	OpBVXor
	OpBVNot
	OpBVShl
	OpBVLShr
	OpBVAShr
	arithmetic_op_end

	compare_op_begin
	OpBVUlt
	OpBVUle
	OpBVUgt
	OpBVUge
	OpBVSlt
	OpBVSle
	OpBVSgt
	OpBVSge
	compare_op_end

	OpExtract
	OpConcat
	OpZExt
	OpSExt

	OpSelect
	OpStore
	OpConstArray

	OpFApp
	OpLambda
)

var opNames = [...]string{
	OpInvalid:    "invalid",
	OpTrue:       "true",
	OpFalse:      "false",
	OpNum:        "num",
	OpConst:      "const",
	OpBound:      "bound",
	OpFDecl:      "fdecl",
	OpNot:        "not",
	OpAnd:        "and",
	OpOr:         "or",
	OpXor:        "xor",
	OpImplies:    "=>",
	OpIte:        "ite",
	OpEq:         "=",
	OpBVAdd:      "bvadd",
	OpBVSub:      "bvsub",
	OpBVMul:      "bvmul",
	OpBVUDiv:     "bvudiv",
	OpBVSDiv:     "bvsdiv",
	OpBVURem:     "bvurem",
	OpBVSRem:     "bvsrem",
	OpBVNeg:      "bvneg",
	OpBVAnd:      "bvand",
	OpBVOr:       "bvor",
	OpBVXor:      "bvxor",
	OpBVNot:      "bvnot",
	OpBVShl:      "bvshl",
	OpBVLShr:     "bvlshr",
	OpBVAShr:     "bvashr",
	OpBVUlt:      "bvult",
	OpBVUle:      "bvule",
	OpBVUgt:      "bvugt",
	OpBVUge:      "bvuge",
	OpBVSlt:      "bvslt",
	OpBVSle:      "bvsle",
	OpBVSgt:      "bvsgt",
	OpBVSge:      "bvsge",
	OpExtract:    "extract",
	OpConcat:     "concat",
	OpZExt:       "zero_extend",
	OpSExt:       "sign_extend",
	OpSelect:     "select",
	OpStore:      "store",
	OpConstArray: "const-array",
	OpFApp:       "apply",
	OpLambda:     "lambda",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "unknown"
}

// IsLeaf reports whether nodes of this op never have children.
func (op Op) IsLeaf() bool { return op > leaf_op_begin && op < leaf_op_end }

// IsCompare reports whether op is a bit-vector relation.
func (op Op) IsCompare() bool { return op > compare_op_begin && op < compare_op_end }

// IsArithmetic reports whether op is a width-preserving bit-vector operation.
func (op Op) IsArithmetic() bool { return op > arithmetic_op_begin && op < arithmetic_op_end }

// IsBoolean reports whether op is a connective over booleans (or equality).
func (op Op) IsBoolean() bool { return op > bool_op_begin && op < bool_op_end }
