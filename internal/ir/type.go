package ir

import (
	"fmt"
	"strings"
)

// TypeKind classifies IR types.
type TypeKind int

const (
	VoidTy TypeKind = iota
	IntTy
	PtrTy
	FloatTy
	DoubleTy
	StructTy
	ArrayTy
	VectorTy
	X86MMXTy
	LabelTy
	MetadataTy
	TokenTy
	FuncTy
)

// Type is an IR type. Types are compared structurally with Equal.
type Type struct {
	Kind TypeKind
	// Bits is the width of an integer type.
	Bits int
	// Elem is the pointee of a pointer and the element of arrays and vectors.
	Elem *Type
	// Len is the number of elements of an array or vector.
	Len    int
	Fields []*Type
	Ret    *Type
	Params []*Type
}

var (
	Void     = &Type{Kind: VoidTy}
	Label    = &Type{Kind: LabelTy}
	Metadata = &Type{Kind: MetadataTy}
	Float    = &Type{Kind: FloatTy}
	Double   = &Type{Kind: DoubleTy}

	I1  = IntType(1)
	I8  = IntType(8)
	I16 = IntType(16)
	I32 = IntType(32)
	I64 = IntType(64)
)

func IntType(bits int) *Type { return &Type{Kind: IntTy, Bits: bits} }

func PtrTo(elem *Type) *Type { return &Type{Kind: PtrTy, Elem: elem} }

func ArrayOf(elem *Type, n int) *Type { return &Type{Kind: ArrayTy, Elem: elem, Len: n} }

func VectorOf(elem *Type, n int) *Type { return &Type{Kind: VectorTy, Elem: elem, Len: n} }

func StructOf(fields ...*Type) *Type { return &Type{Kind: StructTy, Fields: fields} }

func FuncOf(ret *Type, params ...*Type) *Type { return &Type{Kind: FuncTy, Ret: ret, Params: params} }

func (t *Type) IsInt() bool       { return t.Kind == IntTy }
func (t *Type) IsBool() bool      { return t.Kind == IntTy && t.Bits == 1 }
func (t *Type) IsPtr() bool       { return t.Kind == PtrTy }
func (t *Type) IsVoid() bool      { return t.Kind == VoidTy }
func (t *Type) IsFloating() bool  { return t.Kind == FloatTy || t.Kind == DoubleTy }
func (t *Type) IsVector() bool    { return t.Kind == VectorTy }
func (t *Type) IsAggregate() bool { return t.Kind == StructTy || t.Kind == ArrayTy }

// Equal reports whether t and o are structurally identical.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind || t.Bits != o.Bits || t.Len != o.Len {
		return false
	}
	if (t.Elem == nil) != (o.Elem == nil) || t.Elem != nil && !t.Elem.Equal(o.Elem) {
		return false
	}
	if (t.Ret == nil) != (o.Ret == nil) || t.Ret != nil && !t.Ret.Equal(o.Ret) {
		return false
	}
	return typesEqual(t.Fields, o.Fields) && typesEqual(t.Params, o.Params)
}

func typesEqual(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (t *Type) String() string {
	switch t.Kind {
	case VoidTy:
		return "void"
	case IntTy:
		return fmt.Sprintf("i%d", t.Bits)
	case PtrTy:
		if t.Elem == nil {
			return "ptr"
		}
		return t.Elem.String() + "*"
	case FloatTy:
		return "float"
	case DoubleTy:
		return "double"
	case StructTy:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case ArrayTy:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case VectorTy:
		return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	case X86MMXTy:
		return "x86_mmx"
	case LabelTy:
		return "label"
	case MetadataTy:
		return "metadata"
	case TokenTy:
		return "token"
	case FuncTy:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(parts, ", "))
	}
	return "?"
}
