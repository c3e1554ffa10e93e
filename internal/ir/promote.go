package ir

// PromoteMalloc rewrites the heap allocations of main into stack
// allocations: every malloc(n) becomes alloca i8, n and every call to free
// is removed. It reports whether main changed.
func PromoteMalloc(m *Module) bool {
	fn := m.Function("main")
	if fn == nil || fn.IsDeclaration() {
		return false
	}

	changed := false
	var kill []Instruction
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			call, ok := inst.(*Call)
			if !ok {
				continue
			}
			callee := call.CalledFunction()
			if callee == nil {
				continue
			}
			switch callee.Name() {
			case "malloc":
				if len(call.Args()) != 1 {
					continue
				}
				promoted := &Alloca{
					instr:     instr{name: call.Name(), typ: call.Type(), ops: []Value{call.Arg(0)}},
					Allocated: I8,
				}
				b.Replace(call, promoted)
				fn.ReplaceAllUsesWith(call, promoted)
				changed = true
			case "free":
				kill = append(kill, inst)
			}
		}
	}
	// every free goes, so a promoted block is never released by mistake
	for _, inst := range kill {
		inst.Parent().Remove(inst)
		changed = true
	}
	return changed
}
