package dbmanager

import (
	"fmt"

	"github.com/maloquacious/navstore/internal/audit"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/pkg/errors"
)

// Kind tells the caller what to do about an Error.
type Kind int

const (
	// Retryable errors are reported and the operation may be started again.
	Retryable Kind = iota
	// Fatal errors end the process after informing the user.
	Fatal
	// StartupAbort errors stop initialization.
	StartupAbort
	// Ignorable errors are logged only.
	Ignorable
)

func (k Kind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	case StartupAbort:
		return "startup-abort"
	case Ignorable:
		return "ignorable"
	}
	return "unknown"
}

// Error is returned by every Manager operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Remedy suggests what the user can do.
func (e *Error) Remedy() string {
	var fe *store.FileError
	switch {
	case errors.As(e.Err, &fe):
		return fe.Remedy()
	case errors.Is(e.Err, sqlite.ErrLocked):
		return "Is another instance running? Close it and restart the program."
	case errors.Is(e.Err, audit.ErrDeclined):
		return "Incompatible stores must be erased before the program can start."
	case errors.Is(e.Err, rebuild.ErrInvalidConfig):
		return "Check the simulator base path and scenery configuration, then reload."
	case errors.Is(e.Err, rebuild.ErrAlreadyRunning):
		return "Wait for the running reload to finish."
	}
	switch e.Kind {
	case Fatal:
		return "Restart the program."
	case Retryable:
		return "Try again."
	}
	return ""
}

// KindOf returns the kind of err. Errors not raised by the manager are retryable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Retryable
}

func newError(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
