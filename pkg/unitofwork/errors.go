package unitofwork

import (
	"errors"
	"fmt"
)

var (
	// ErrCommit matches every *CommitError through errors.Is.
	ErrCommit = errors.New("unit of work commit failed")
	// ErrRollback matches every *RollbackError through errors.Is.
	ErrRollback = errors.New("unit of work rollback failed")
	// ErrClosed reports an operation on a unit of work that already reached a
	// terminal state.
	ErrClosed = errors.New("unit of work closed")
	// ErrCycle is the panic value raised when AddChild would make a unit of
	// work its own ancestor.
	ErrCycle = errors.New("unit of work cycle")
	// ErrNested is the panic value raised when AddChild is given a unit of
	// work that already has a parent.
	ErrNested = errors.New("unit of work already nested")
)

// CommitError is returned when applying tracked changes fails. Cause is
// optional.
type CommitError struct {
	Unit  string
	Cause error
}

// NewCommitError wraps cause for the named unit of work.
func NewCommitError(unit string, cause error) *CommitError {
	return &CommitError{Unit: unit, Cause: cause}
}

func (e *CommitError) Error() string {
	return describe("commit", e.Unit, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *CommitError) Unwrap() error { return e.Cause }

// Is matches ErrCommit.
func (e *CommitError) Is(target error) bool { return target == ErrCommit }

// RollbackError is returned when discarding a unit of work cannot complete.
// Cause is optional.
type RollbackError struct {
	Unit  string
	Cause error
}

// NewRollbackError wraps cause for the named unit of work.
func NewRollbackError(unit string, cause error) *RollbackError {
	return &RollbackError{Unit: unit, Cause: cause}
}

func (e *RollbackError) Error() string {
	return describe("rollback", e.Unit, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *RollbackError) Unwrap() error { return e.Cause }

// Is matches ErrRollback.
func (e *RollbackError) Is(target error) bool { return target == ErrRollback }

func describe(op, unit string, cause error) string {
	msg := "unit of work " + op + " failed"
	if unit != "" {
		msg = fmt.Sprintf("unit of work %s %s failed", unit, op)
	}
	if cause != nil {
		return msg + ": " + cause.Error()
	}
	return msg
}
