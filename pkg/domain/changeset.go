package domain

import (
	"iter"
	"slices"
)

// record is a tracked change plus the sequence number of its latest
// registration, used for deterministic ordering.
type record struct {
	change Change
	seq    uint64
}

// ChangeSet is the ledger of one unit of work: an identity map from entity
// identifier to the NEW, DIRTY and DELETED changes registered for it, plus a
// separate map holding one clean baseline per identifier.
//
// An identifier may carry several changes with different states; registering
// the same state twice replaces the stored entity and moves the change to the
// latest registration position. Nothing is coalesced across states, so
// consumers must decide their own policy when NEW, DIRTY and DELETED meet.
//
// Clean entities are stored by reference. Mutating an entity after
// registering it as clean mutates the baseline too; snapshot the entity first
// or construct the set with WithCleanCopier.
//
// The zero value is an empty, usable ChangeSet. A ChangeSet is not safe for
// concurrent use.
type ChangeSet struct {
	changes map[Identifier][]record
	clean   map[Identifier]Identifiable
	seq     uint64
	copier  Copier
}

// ChangeSetOption configures a ChangeSet.
type ChangeSetOption func(*ChangeSet)

// WithCleanCopier makes RegisterClean store copier(entity) instead of the
// caller's reference.
func WithCleanCopier(copier Copier) ChangeSetOption {
	return func(cs *ChangeSet) {
		cs.copier = copier
	}
}

// NewChangeSet constructs an empty ChangeSet.
func NewChangeSet(opts ...ChangeSetOption) *ChangeSet {
	cs := &ChangeSet{}
	for _, opt := range opts {
		if opt != nil {
			opt(cs)
		}
	}
	cs.init()
	return cs
}

func (cs *ChangeSet) init() {
	if cs.changes == nil {
		cs.changes = make(map[Identifier][]record)
	}
	if cs.clean == nil {
		cs.clean = make(map[Identifier]Identifiable)
	}
}

// RegisterNew records an entity that does not exist in the backend yet.
// Identifier fields must be fully populated before registration.
func (cs *ChangeSet) RegisterNew(entity Identifiable) *ChangeSet {
	return cs.registerChange(NewChange(entity, StateNew))
}

// RegisterDirty records an entity in its state after mutation.
func (cs *ChangeSet) RegisterDirty(entity Identifiable) *ChangeSet {
	return cs.registerChange(NewChange(entity, StateDirty))
}

// RegisterDeleted records an entity scheduled for removal.
func (cs *ChangeSet) RegisterDeleted(entity Identifiable) *ChangeSet {
	return cs.registerChange(NewChange(entity, StateDeleted))
}

// RegisterClean stores entity as the baseline for its identifier, replacing
// any previous baseline. No copy is made unless a copier was configured.
func (cs *ChangeSet) RegisterClean(entity Identifiable) *ChangeSet {
	return cs.registerChange(NewChange(entity, StateClean))
}

func (cs *ChangeSet) registerChange(change Change) *ChangeSet {
	cs.init()
	id := change.ID()
	if change.IsClean() {
		entity := change.Entity()
		if cs.copier != nil {
			entity = cs.copier(entity)
		}
		cs.clean[id] = entity
		return cs
	}
	cs.seq++
	recs := cs.changes[id]
	for i := range recs {
		if recs[i].change.State() == change.State() {
			recs[i] = record{change: change, seq: cs.seq}
			return cs
		}
	}
	cs.changes[id] = append(recs, record{change: change, seq: cs.seq})
	return cs
}

// FindClean returns the clean baseline registered for id.
func (cs *ChangeSet) FindClean(id Identifier) (Identifiable, bool) {
	entity, ok := cs.clean[id]
	return entity, ok
}

// ChangesFor returns the changes recorded for id in registration order. The
// returned slice is a copy.
func (cs *ChangeSet) ChangesFor(id Identifier) []Change {
	recs := slices.Clone(cs.changes[id])
	slices.SortFunc(recs, bySeq)
	out := make([]Change, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.change)
	}
	return out
}

// Stream yields every NEW, DIRTY and DELETED change. Order across
// identifiers is unspecified. The sequence can be ranged over repeatedly; the
// set must not be mutated while a range is in progress.
func (cs *ChangeSet) Stream() iter.Seq[Change] {
	return func(yield func(Change) bool) {
		for _, recs := range cs.changes {
			for _, r := range recs {
				if !yield(r.change) {
					return
				}
			}
		}
	}
}

// Ordered yields all NEW changes, then DIRTY, then DELETED, each batch in
// registration order.
func (cs *ChangeSet) Ordered() iter.Seq[Change] {
	return cs.sorted(func(a, b record) int {
		if d := a.change.State().rank() - b.change.State().rank(); d != 0 {
			return d
		}
		return bySeq(a, b)
	})
}

// InRegistrationOrder yields changes in the order they were registered.
func (cs *ChangeSet) InRegistrationOrder() iter.Seq[Change] {
	return cs.sorted(bySeq)
}

func (cs *ChangeSet) sorted(cmp func(a, b record) int) iter.Seq[Change] {
	return func(yield func(Change) bool) {
		all := cs.records()
		slices.SortFunc(all, cmp)
		for _, r := range all {
			if !yield(r.change) {
				return
			}
		}
	}
}

func (cs *ChangeSet) records() []record {
	all := make([]record, 0, cs.Len())
	for _, recs := range cs.changes {
		all = append(all, recs...)
	}
	return all
}

func bySeq(a, b record) int {
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		return 0
	}
}

// Identifiers returns every identifier with tracked changes, ordered by the
// earliest registration still held for it.
func (cs *ChangeSet) Identifiers() []Identifier {
	type first struct {
		id  Identifier
		seq uint64
	}
	firsts := make([]first, 0, len(cs.changes))
	for id, recs := range cs.changes {
		f := first{id: id, seq: recs[0].seq}
		for _, r := range recs[1:] {
			f.seq = min(f.seq, r.seq)
		}
		firsts = append(firsts, f)
	}
	slices.SortFunc(firsts, func(a, b first) int { return bySeq(record{seq: a.seq}, record{seq: b.seq}) })
	ids := make([]Identifier, len(firsts))
	for i, f := range firsts {
		ids[i] = f.id
	}
	return ids
}

// Len returns the number of tracked NEW, DIRTY and DELETED changes.
func (cs *ChangeSet) Len() int {
	n := 0
	for _, recs := range cs.changes {
		n += len(recs)
	}
	return n
}

// CleanLen returns the number of clean baselines.
func (cs *ChangeSet) CleanLen() int { return len(cs.clean) }

// IsEmpty reports whether nothing at all has been registered.
func (cs *ChangeSet) IsEmpty() bool { return len(cs.changes) == 0 && len(cs.clean) == 0 }

// Reset discards every change and baseline, returning the set to its initial
// empty state.
func (cs *ChangeSet) Reset() {
	clear(cs.changes)
	clear(cs.clean)
	cs.seq = 0
}
