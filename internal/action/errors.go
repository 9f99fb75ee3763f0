package action

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCommand is returned for a blank guest command line.
	ErrEmptyCommand = errors.New("empty command line")

	// ErrUnsupported is returned for a request the executor cannot handle,
	// such as a clone without a configured orchestrator.
	ErrUnsupported = errors.New("unsupported action")
)

// Error carries the VM and action an execution failure belongs to.
type Error struct {
	VM     string
	Action Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.VM, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
