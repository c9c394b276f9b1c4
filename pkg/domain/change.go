package domain

import "fmt"

// Change pairs an entity reference with the state it was registered under.
// Changes are immutable values.
type Change struct {
	entity Identifiable
	state  EntityState
}

// NewChange constructs a Change.
func NewChange(entity Identifiable, state EntityState) Change {
	return Change{entity: entity, state: state}
}

// Entity returns the registered entity reference.
func (c Change) Entity() Identifiable { return c.entity }

// State returns the registered state.
func (c Change) State() EntityState { return c.state }

// ID returns the entity identifier, or nil for a zero Change.
func (c Change) ID() Identifier {
	if c.entity == nil {
		return nil
	}
	return c.entity.ID()
}

// IsClean reports whether the change records a baseline.
func (c Change) IsClean() bool { return c.state == StateClean }

func (c Change) String() string {
	if c.entity == nil {
		return fmt.Sprintf("<nil>:%s", c.state)
	}
	return fmt.Sprintf("%s:%s", c.entity.ID(), c.state)
}
