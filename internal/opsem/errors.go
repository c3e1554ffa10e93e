package opsem

import (
	"errors"

	"github.com/gnolang/opsem/internal/mem"
)

var (
	// ErrUnsupported marks input the semantics cannot model, such as vector
	// or floating-point instructions. It is the same error the memory
	// manager reports, so one errors.Is check covers both.
	ErrUnsupported = mem.ErrUnsupported
	// ErrUnhandledCall is returned for a call that no rule of the call
	// protocol matches.
	ErrUnhandledCall = errors.New("unhandled call")
	// ErrUnknownShadowOp is returned for a shadow.mem call with an unknown
	// operation name.
	ErrUnknownShadowOp = errors.New("unknown shadow memory operation")
	// ErrArityMismatch is returned when the parameters collected for a
	// summarized call do not match the arity of the summary.
	ErrArityMismatch = errors.New("summary arity mismatch")
)
