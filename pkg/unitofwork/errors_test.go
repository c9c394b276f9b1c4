package unitofwork

import (
	"errors"
	"strings"
	"testing"
)

func TestCommitErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(NewCommitError("uow-1", cause))
	if !errors.Is(err, ErrCommit) {
		t.Fatalf("expected ErrCommit match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if errors.Is(err, ErrRollback) {
		t.Fatalf("commit error must not match ErrRollback")
	}
	var ce *CommitError
	if !errors.As(err, &ce) || ce.Unit != "uow-1" {
		t.Fatalf("expected *CommitError with unit, got %#v", err)
	}
	if !strings.Contains(err.Error(), "uow-1 commit failed: connection reset") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRollbackErrorWithoutCause(t *testing.T) {
	err := error(NewRollbackError("", nil))
	if !errors.Is(err, ErrRollback) {
		t.Fatalf("expected ErrRollback match")
	}
	if errors.Unwrap(err) != nil {
		t.Fatalf("expected nil cause")
	}
	if err.Error() != "unit of work rollback failed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestLifecycleTransitions(t *testing.T) {
	var l Lifecycle
	if l.State() != StateOpen {
		t.Fatalf("zero lifecycle is open, got %s", l.State())
	}
	if err := l.Begin(); err != nil {
		t.Fatalf("open lifecycle must begin: %v", err)
	}
	l.MarkFailed()
	if err := l.Begin(); err != nil {
		t.Fatalf("failed commit must stay retryable: %v", err)
	}
	l.MarkCommitted()
	if err := l.Begin(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after commit, got %v", err)
	}

	var r Lifecycle
	r.MarkRolledBack()
	if !r.State().Terminal() {
		t.Fatalf("rolled back must be terminal")
	}
	if err := r.Begin(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after rollback, got %v", err)
	}
}
