package ir

import "errors"

// ErrMalformed reports an IR description that cannot be loaded.
var ErrMalformed = errors.New("malformed module")
