package ir

import "fmt"

// DataLayout answers size and alignment queries about types.
type DataLayout struct {
	PtrBytes int
}

func DefaultLayout() *DataLayout { return &DataLayout{PtrBytes: 4} }

// SizeInBits is the number of significant bits of a first-class type.
func (dl *DataLayout) SizeInBits(t *Type) int {
	switch t.Kind {
	case IntTy:
		return t.Bits
	case PtrTy:
		return dl.PtrBytes * 8
	}
	return dl.StoreSize(t) * 8
}

// StoreSize is the number of bytes written by a store of t.
func (dl *DataLayout) StoreSize(t *Type) int {
	switch t.Kind {
	case IntTy:
		return (t.Bits + 7) / 8
	case PtrTy:
		return dl.PtrBytes
	case FloatTy:
		return 4
	case DoubleTy, X86MMXTy:
		return 8
	case ArrayTy:
		return t.Len * dl.AllocSize(t.Elem)
	case VectorTy:
		return (t.Len*dl.SizeInBits(t.Elem) + 7) / 8
	case StructTy:
		return dl.structSize(t)
	case VoidTy, LabelTy, MetadataTy, TokenTy, FuncTy:
		return 0
	}
	panic(fmt.Sprintf("ir: no size for %s", t))
}

// AllocSize is the distance between consecutive elements of type t.
func (dl *DataLayout) AllocSize(t *Type) int {
	return alignTo(dl.StoreSize(t), dl.ABIAlign(t))
}

// ABIAlign is the required alignment of t in bytes.
func (dl *DataLayout) ABIAlign(t *Type) int {
	switch t.Kind {
	case IntTy:
		a := 1
		for a < dl.StoreSize(t) && a < 8 {
			a <<= 1
		}
		return a
	case PtrTy:
		return dl.PtrBytes
	case FloatTy:
		return 4
	case DoubleTy, X86MMXTy:
		return 8
	case ArrayTy:
		return dl.ABIAlign(t.Elem)
	case VectorTy:
		a := 1
		for a < dl.StoreSize(t) {
			a <<= 1
		}
		return a
	case StructTy:
		a := 1
		for _, f := range t.Fields {
			if fa := dl.ABIAlign(f); fa > a {
				a = fa
			}
		}
		return a
	}
	return 1
}

// FieldOffset returns the byte offset of field i of struct type t.
func (dl *DataLayout) FieldOffset(t *Type, i int) int {
	off := 0
	for j, f := range t.Fields {
		off = alignTo(off, dl.ABIAlign(f))
		if j == i {
			return off
		}
		off += dl.AllocSize(f)
	}
	panic(fmt.Sprintf("ir: field %d out of range for %s", i, t))
}

func (dl *DataLayout) structSize(t *Type) int {
	off := 0
	for _, f := range t.Fields {
		off = alignTo(off, dl.ABIAlign(f)) + dl.AllocSize(f)
	}
	return alignTo(off, dl.ABIAlign(t))
}

func alignTo(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
