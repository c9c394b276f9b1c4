package unitofwork

import (
	"fmt"
	"slices"

	"transact/pkg/domain"

	"github.com/google/uuid"
)

// Tracker is the shared base of every unit of work. It owns one ChangeSet,
// exposes the registration surface to application code and keeps an ordered
// list of nested child units.
//
// Tracker implements neither Commit nor Rollback: a backend embeds it and
// decides how the change stream turns into writes and whether children are
// committed before or after their parent. Child change sets are never merged
// into the parent's.
//
// The zero value is an empty root. A Tracker is not safe for concurrent use.
type Tracker struct {
	id       string
	changes  *domain.ChangeSet
	setOpts  []domain.ChangeSetOption
	children []Node
	nonRoot  bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithID fixes the identifier used in logs and errors instead of a random one.
func WithID(id string) Option {
	return func(t *Tracker) { t.id = id }
}

// WithCleanCopier copies entities on RegisterClean. See domain.WithCleanCopier.
func WithCleanCopier(copier domain.Copier) Option {
	return func(t *Tracker) {
		t.setOpts = append(t.setOpts, domain.WithCleanCopier(copier))
	}
}

// NewTracker constructs a root Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tracker) tracker() *Tracker { return t }

// ID returns the unit of work identifier, assigning a random UUID on first use.
func (t *Tracker) ID() string {
	if t.id == "" {
		t.id = uuid.NewString()
	}
	return t.id
}

// ChangeSet returns the tracked changes. Backends drain it on commit.
func (t *Tracker) ChangeSet() *domain.ChangeSet {
	if t.changes == nil {
		t.changes = domain.NewChangeSet(t.setOpts...)
	}
	return t.changes
}

// RegisterNew records an entity that must be inserted on commit. Identifier
// fields must be fully populated first.
func (t *Tracker) RegisterNew(entity domain.Identifiable) *Tracker {
	t.ChangeSet().RegisterNew(entity)
	return t
}

// RegisterDirty records an entity in its state after mutation.
func (t *Tracker) RegisterDirty(entity domain.Identifiable) *Tracker {
	t.ChangeSet().RegisterDirty(entity)
	return t
}

// RegisterDeleted records an entity that must be removed on commit.
func (t *Tracker) RegisterDeleted(entity domain.Identifiable) *Tracker {
	t.ChangeSet().RegisterDeleted(entity)
	return t
}

// RegisterClean records an entity as freshly read from the backend; backends
// use it to compute deltas for dirty entities.
//
// No copy is made unless WithCleanCopier was given: mutating the entity
// afterwards also mutates the baseline, which defeats the delta. Copy the
// entity before registering it or before mutating it.
func (t *Tracker) RegisterClean(entity domain.Identifiable) *Tracker {
	t.ChangeSet().RegisterClean(entity)
	return t
}

// ReadClean returns the clean baseline for id.
func (t *Tracker) ReadClean(id domain.Identifier) (domain.Identifiable, bool) {
	return t.ChangeSet().FindClean(id)
}

// AddChild nests child under t and marks it non-root. Adding t to itself or
// to one of its own descendants panics with ErrCycle; a child can have only
// one parent, so adding a non-root unit panics with ErrNested.
func (t *Tracker) AddChild(child Node) *Tracker {
	ct := child.tracker()
	if ct == t || ct.reaches(t) {
		panic(fmt.Errorf("%w: %s cannot nest %s", ErrCycle, t.ID(), ct.ID()))
	}
	if ct.nonRoot {
		panic(fmt.Errorf("%w: %s already has a parent", ErrNested, ct.ID()))
	}
	ct.nonRoot = true
	t.children = append(t.children, child)
	return t
}

func (t *Tracker) reaches(target *Tracker) bool {
	for _, c := range t.children {
		ct := c.tracker()
		if ct == target || ct.reaches(target) {
			return true
		}
	}
	return false
}

// IsRoot reports whether t has not been attached as a child.
func (t *Tracker) IsRoot() bool { return !t.nonRoot }

// Children returns the nested units in insertion order.
func (t *Tracker) Children() []Node { return slices.Clone(t.children) }
