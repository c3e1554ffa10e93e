package mem

import "errors"

// ErrUnsupported is returned for memory operations the model cannot
// express, such as a memset of symbolic length.
var ErrUnsupported = errors.New("unsupported memory operation")
