package domain

// EntityState is the tracked state of an entity inside a unit of work.
type EntityState string

// Tracked entity states. There is no transition function: callers assert the
// state on every registration.
const (
	// StateClean marks a baseline read from the backend and not yet modified.
	StateClean EntityState = "clean"
	// StateNew marks an entity that has never been persisted.
	StateNew EntityState = "new"
	// StateDirty marks a persisted entity that was mutated.
	StateDirty EntityState = "dirty"
	// StateDeleted marks an entity scheduled for removal.
	StateDeleted EntityState = "deleted"
)

// Valid reports whether s is one of the four known states.
func (s EntityState) Valid() bool {
	switch s {
	case StateClean, StateNew, StateDirty, StateDeleted:
		return true
	default:
		return false
	}
}

func (s EntityState) String() string { return string(s) }

// rank orders states the way backends apply them: NEW, DIRTY, DELETED.
func (s EntityState) rank() int {
	switch s {
	case StateNew:
		return 0
	case StateDirty:
		return 1
	case StateDeleted:
		return 2
	default:
		return 3
	}
}
