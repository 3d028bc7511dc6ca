package module

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by resolvers when no candidate path exists.
var ErrNotFound = errors.New("module not found")

// ResolveError reports a request that could not be resolved.
type ResolveError struct {
	Request string
	Dir     string
	// Tried lists every path probed. Creating any of them may make the
	// request resolvable.
	Tried []string
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("can't resolve '%s' in '%s': %v", e.Request, e.Dir, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
