// Package domain defines the change-tracking primitives shared by every unit of
// work: identifiers, entity states, changes and the ChangeSet identity map.
package domain

// Identifier names an entity within a tracking scope. Identifiers are used as
// map keys, so the dynamic value behind the interface must be comparable
// (strings, integers, structs of comparable fields, pointers). String is the
// key backends use when they need a textual form.
type Identifier interface {
	String() string
}

// StringID is a ready-made Identifier for string keys.
type StringID string

func (id StringID) String() string { return string(id) }

// Identifiable is any entity exposing an identifier that stays stable for its
// lifetime inside a unit of work. The tracking layer never looks past ID.
type Identifiable interface {
	ID() Identifier
}

// EntityType groups entities for backends that partition storage (tables,
// key prefixes, object folders).
type EntityType string

// EntityGeneric is the type reported for entities that do not implement Typed.
const EntityGeneric EntityType = "entity"

// Typed is implemented by entities that report their own EntityType.
type Typed interface {
	EntityType() EntityType
}

// TypeOf returns the entity's type, falling back to EntityGeneric.
func TypeOf(entity Identifiable) EntityType {
	if t, ok := entity.(Typed); ok {
		if typ := t.EntityType(); typ != "" {
			return typ
		}
	}
	return EntityGeneric
}
