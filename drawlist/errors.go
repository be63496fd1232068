package drawlist

import (
	"errors"
	"strings"
)

// ErrCycle is returned when pass dependencies form a cycle.
var ErrCycle = errors.New("drawlist: dependency cycle")

// CycleError lists the passes left unordered by a cycle.
type CycleError struct {
	Passes []string
}

func (e *CycleError) Error() string {
	return ErrCycle.Error() + " between passes " + strings.Join(e.Passes, ", ")
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool { return target == ErrCycle }
