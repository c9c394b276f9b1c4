package domain

import "github.com/mohae/deepcopy"

// Copier produces the value stored for a clean registration.
type Copier func(Identifiable) Identifiable

// DeepCopy is a Copier that clones the entity graph by reflection. Only
// exported fields are copied; unexported fields come back zeroed, so entities
// with private state should supply their own Copier. When the clone cannot be
// asserted back to Identifiable the original reference is returned.
func DeepCopy(entity Identifiable) Identifiable {
	if entity == nil {
		return nil
	}
	cp, ok := deepcopy.Copy(entity).(Identifiable)
	if !ok || cp == nil {
		return entity
	}
	return cp
}
