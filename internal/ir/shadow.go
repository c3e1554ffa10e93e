package ir

import "strings"

// Names of the shadow-memory pseudo functions. A points-to analysis
// instruments the program with calls to them so the semantics can follow
// memory regions as SSA values.
const (
	ShadowMemPrefix = "shadow.mem"

	ShadowInit       = "shadow.mem.init"
	ShadowLoad       = "shadow.mem.load"
	ShadowTrsfrLoad  = "shadow.mem.trsfr.load"
	ShadowStore      = "shadow.mem.store"
	ShadowArgRef     = "shadow.mem.arg.ref"
	ShadowArgMod     = "shadow.mem.arg.mod"
	ShadowArgNew     = "shadow.mem.arg.new"
	ShadowIn         = "shadow.mem.in"
	ShadowOut        = "shadow.mem.out"
	ShadowArgInit    = "shadow.mem.arg.init"
	ShadowGlobalInit = "shadow.mem.global.init"
)

// ShadowMeta is attached by the points-to collaborator to shadow-memory
// calls and to the phi nodes that merge their results.
type ShadowMeta struct {
	// Region identifies the memory region.
	Region int
	// Scalar names the only object of a singleton region, or is nil.
	Scalar Value
	// ScalarBits is the width of the singleton cell.
	ScalarBits int
}

// IsShadowMemName reports whether name follows the shadow-memory naming
// convention.
func IsShadowMemName(name string) bool { return strings.HasPrefix(name, ShadowMemPrefix) }

// ShadowOf returns the shadow metadata of v when v denotes a memory region.
func ShadowOf(v Value) (*ShadowMeta, bool) {
	inst, ok := v.(Instruction)
	if !ok || inst.Shadow() == nil {
		return nil, false
	}
	return inst.Shadow(), true
}

// IsShadowMemCall reports whether inst is a call into the shadow-memory
// protocol.
func IsShadowMemCall(inst Instruction) bool {
	call, ok := inst.(*Call)
	if !ok {
		return false
	}
	if fn := call.CalledFunction(); fn != nil && IsShadowMemName(fn.Name()) {
		return true
	}
	return false
}
