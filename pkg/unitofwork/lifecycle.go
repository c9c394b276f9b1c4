package unitofwork

import "fmt"

// State is the lifecycle position of a unit of work.
type State string

// Lifecycle states. Tracker does not enforce them; backends that want
// double-commit protection embed a Lifecycle.
const (
	StateOpen       State = "open"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
	StateRolledBack State = "rolled_back"
)

// Terminal reports whether no further commit or rollback is accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Lifecycle tracks OPEN -> COMMITTED | FAILED | ROLLED_BACK. A failed commit
// leaves the unit retryable. The zero value is open.
type Lifecycle struct {
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	if l.state == "" {
		return StateOpen
	}
	return l.state
}

// Begin returns ErrClosed when the unit already reached a terminal state.
func (l *Lifecycle) Begin() error {
	if st := l.State(); st.Terminal() {
		return fmt.Errorf("%w: %s", ErrClosed, st)
	}
	return nil
}

// MarkCommitted records a successful commit.
func (l *Lifecycle) MarkCommitted() { l.state = StateCommitted }

// MarkFailed records a failed commit.
func (l *Lifecycle) MarkFailed() { l.state = StateFailed }

// MarkRolledBack records a completed rollback.
func (l *Lifecycle) MarkRolledBack() { l.state = StateRolledBack }
