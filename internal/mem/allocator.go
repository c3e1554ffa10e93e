package mem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gnolang/opsem/internal/ir"
)

// Address space layout. The four windows never overlap:
//
//	[TextSegmentStart, DataStart)  code
//	[DataStart, Brk0)              globals
//	[Brk0, MinStackAddr)           heap
//	[MinStackAddr, MaxStackAddr)   stack, growing down
const (
	MaxStackAddr     = 0xC0000000
	MinStackAddr     = MaxStackAddr - 9437184
	TextSegmentStart = 0x08048000
	CodeWindowSize   = 0x01000000
	DataWindowSize   = 0x07000000

	DataStart = TextSegmentStart + CodeWindowSize
	Brk0      = DataStart + DataWindowSize
)

// StackSlack is how far below MaxStackAddr the initial stack pointer may
// sit. Frames use the rest of the stack window.
const StackSlack = 0x100000

// Interval is a half-open range [Lo, Hi) of concrete addresses.
type Interval struct {
	Lo, Hi uint64
}

// BadInterval is returned when an allocation does not fit its window.
var BadInterval = Interval{}

func (iv Interval) IsBad() bool { return iv == BadInterval }

func (iv Interval) Size() uint64 { return iv.Hi - iv.Lo }

// Overlaps reports whether iv and o share an address.
func (iv Interval) Overlaps(o Interval) bool { return iv.Lo < o.Hi && o.Lo < iv.Hi }

func (iv Interval) String() string { return fmt.Sprintf("[%#x, %#x)", iv.Lo, iv.Hi) }

// Allocator places objects in the address space. Stack intervals are
// expressed as if the initial stack pointer were MaxStackAddr; the manager
// rebases them onto the symbolic stack pointer.
type Allocator interface {
	// Salloc reserves bytes in the current stack frame.
	Salloc(bytes, align int) Interval
	// SallocSymbolic reserves a block of unknown size at the bottom of the
	// current frame and returns its frame offset. The block has no upper
	// bound, so later frame allocations are not kept disjoint from it.
	SallocSymbolic(elemSize, align int) uint64
	Halloc(bytes, align int) Interval
	Galloc(g *ir.Global, bytes, align int) Interval
	Falloc(fn *ir.Function, align int) Interval

	// FunctionAddr and GlobalAddr return the start of the allocation,
	// allocating on first use.
	FunctionAddr(fn *ir.Function, align int) uint64
	GlobalAddr(g *ir.Global, bytes, align int) uint64

	OnFunctionEntry(fn *ir.Function)
	OnModuleEntry(m *ir.Module, layout *ir.DataLayout)

	// Brk0Addr is the initial program break.
	Brk0Addr() uint64
	// Globals lists every global and function allocation in address order.
	Globals() []Allocation
}

// Allocation names one object of the global or code window.
type Allocation struct {
	Name   string
	IsFunc bool
	Interval
}

func (a Allocation) String() string {
	kind := "global"
	if a.IsFunc {
		kind = "function"
	}
	return fmt.Sprintf("%s @%s %s", kind, a.Name, a.Interval)
}

// functionSize is the number of bytes reserved for each function, so that
// distinct functions get distinct addresses.
const functionSize = 4

// NormalAllocator allocates lazily, in the order objects are first used.
type NormalAllocator struct {
	mu sync.Mutex

	frame    uint64
	heapTop  uint64
	codeTop  uint64
	dataTop  uint64
	globals  map[*ir.Global]Interval
	funcs    map[*ir.Function]Interval
	ordering []Allocation
}

func NewNormalAllocator() *NormalAllocator {
	return &NormalAllocator{
		heapTop: Brk0,
		codeTop: TextSegmentStart,
		dataTop: DataStart,
		globals: make(map[*ir.Global]Interval),
		funcs:   make(map[*ir.Function]Interval),
	}
}

func alignUp(n uint64, align int) uint64 {
	if align <= 1 {
		return n
	}
	a := uint64(align)
	return (n + a - 1) / a * a
}

func (na *NormalAllocator) Salloc(bytes, align int) Interval {
	na.mu.Lock()
	defer na.mu.Unlock()

	off := alignUp(na.frame+uint64(bytes), align)
	if off > MaxStackAddr-MinStackAddr-StackSlack {
		return BadInterval
	}
	na.frame = off
	lo := MaxStackAddr - off
	return Interval{Lo: lo, Hi: lo + uint64(bytes)}
}

func (na *NormalAllocator) SallocSymbolic(elemSize, align int) uint64 {
	na.mu.Lock()
	defer na.mu.Unlock()

	na.frame = alignUp(na.frame, max(align, elemSize))
	return na.frame
}

func (na *NormalAllocator) Halloc(bytes, align int) Interval {
	na.mu.Lock()
	defer na.mu.Unlock()

	lo := alignUp(na.heapTop, align)
	hi := lo + uint64(bytes)
	if hi > MinStackAddr {
		return BadInterval
	}
	na.heapTop = hi
	return Interval{Lo: lo, Hi: hi}
}

func (na *NormalAllocator) Galloc(g *ir.Global, bytes, align int) Interval {
	na.mu.Lock()
	defer na.mu.Unlock()
	return na.galloc(g, bytes, align)
}

func (na *NormalAllocator) galloc(g *ir.Global, bytes, align int) Interval {
	if iv, ok := na.globals[g]; ok {
		return iv
	}
	lo := alignUp(na.dataTop, align)
	hi := lo + uint64(max(bytes, 1))
	if hi > Brk0 {
		return BadInterval
	}
	na.dataTop = hi
	iv := Interval{Lo: lo, Hi: hi}
	na.globals[g] = iv
	na.ordering = append(na.ordering, Allocation{Name: g.Name(), Interval: iv})
	return iv
}

func (na *NormalAllocator) Falloc(fn *ir.Function, align int) Interval {
	na.mu.Lock()
	defer na.mu.Unlock()
	return na.falloc(fn, align)
}

func (na *NormalAllocator) falloc(fn *ir.Function, align int) Interval {
	if iv, ok := na.funcs[fn]; ok {
		return iv
	}
	lo := alignUp(na.codeTop, align)
	hi := lo + functionSize
	if hi > DataStart {
		return BadInterval
	}
	na.codeTop = hi
	iv := Interval{Lo: lo, Hi: hi}
	na.funcs[fn] = iv
	na.ordering = append(na.ordering, Allocation{Name: fn.Name(), IsFunc: true, Interval: iv})
	return iv
}

func (na *NormalAllocator) FunctionAddr(fn *ir.Function, align int) uint64 {
	return na.Falloc(fn, align).Lo
}

func (na *NormalAllocator) GlobalAddr(g *ir.Global, bytes, align int) uint64 {
	return na.Galloc(g, bytes, align).Lo
}

// OnFunctionEntry starts a new frame at the top of the stack.
func (na *NormalAllocator) OnFunctionEntry(*ir.Function) {
	na.mu.Lock()
	na.frame = 0
	na.mu.Unlock()
}

func (na *NormalAllocator) OnModuleEntry(*ir.Module, *ir.DataLayout) {}

func (na *NormalAllocator) Brk0Addr() uint64 { return Brk0 }

func (na *NormalAllocator) Globals() []Allocation {
	na.mu.Lock()
	defer na.mu.Unlock()

	out := append([]Allocation(nil), na.ordering...)
	sort.Slice(out, func(i, j int) bool { return out[i].Lo < out[j].Lo })
	return out
}

// StaticAllocator lays out every global and every address-taken function
// when the module is entered, in module order.
type StaticAllocator struct {
	*NormalAllocator
	wordSize int
}

func NewStaticAllocator(wordSize int) *StaticAllocator {
	return &StaticAllocator{NormalAllocator: NewNormalAllocator(), wordSize: wordSize}
}

func (sa *StaticAllocator) OnModuleEntry(m *ir.Module, layout *ir.DataLayout) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	for _, fn := range m.Functions {
		if fn.AddressTaken {
			sa.falloc(fn, sa.wordSize)
		}
	}
	for _, g := range m.Globals {
		if sized(g.ValueType) {
			sa.galloc(g, layout.AllocSize(g.ValueType), max(sa.wordSize, layout.ABIAlign(g.ValueType)))
		}
	}
}

func sized(t *ir.Type) bool {
	switch t.Kind {
	case ir.IntTy, ir.PtrTy, ir.FloatTy, ir.DoubleTy, ir.ArrayTy, ir.StructTy, ir.VectorTy:
		return true
	}
	return false
}
