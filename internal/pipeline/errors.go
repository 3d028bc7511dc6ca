package pipeline

import (
	"fmt"

	"github.com/albertocavalcante/modmake/pkg/module"
)

// BuildError is the terminal failure of one module's build attempt. It
// wraps hook failures and build failures alike.
type BuildError struct {
	Module module.Identifier
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s: %v", e.Module, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
