package ir

// Error locations. A call to one of these marks the caller as failing.
var errorFunctions = map[string]bool{
	"verifier.error":   true,
	"__VERIFIER_error": true,
	"seahorn.fail":     true,
}

// IsErrorFunction reports whether name is an error location.
func IsErrorFunction(name string) bool { return errorFunctions[name] }

// ComputeCanFail sets Function.CanFail on every function from which an
// error location is reachable through direct calls.
func ComputeCanFail(m *Module) {
	callers := make(map[*Function][]*Function)
	var work []*Function
	for _, fn := range m.Functions {
		fn.CanFail = false
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
				if IsErrorFunction(callee.Name()) && !fn.CanFail {
					fn.CanFail = true
					work = append(work, fn)
				}
				callers[callee] = append(callers[callee], fn)
			}
		}
	}
	for len(work) > 0 {
		fn := work[len(work)-1]
		work = work[:len(work)-1]
		for _, c := range callers[fn] {
			if !c.CanFail {
				c.CanFail = true
				work = append(work, c)
			}
		}
	}
}
