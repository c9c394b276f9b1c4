// Package writeset turns a unit of work's change ledger into the ordered list
// of writes a backend applies on commit.
//
// The tracking core keeps every state registered for an identifier. This
// package is where they are reconciled:
//
//   - NEW, optionally followed by DIRTY, inserts the latest entity.
//   - DELETED registered last deletes, unless NEW is also present, in which
//     case the entity never reached the backend and nothing is written.
//   - NEW registered after DELETED replaces the stored entity (update).
//   - DIRTY alone updates, and is skipped when a separate clean baseline
//     encodes to the same JSON.
//
// Writes come out as inserts, then updates, then deletes, each group in the
// order identifiers were registered.
package writeset

import (
	"errors"
	"fmt"
	"reflect"

	"transact/pkg/domain"
	"transact/pkg/unitofwork"
)

// Op is a backend write operation.
type Op string

// Write operations.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var (
	// ErrConflict reports an insert over an existing entity.
	ErrConflict = errors.New("entity already exists")
	// ErrMissing reports an update or delete of an absent entity.
	ErrMissing = errors.New("entity does not exist")
	// ErrNilIdentifier reports an entity registered without an identifier.
	ErrNilIdentifier = errors.New("nil identifier")
)

// Write is one storage mutation. Payload is undefined for deletes.
type Write struct {
	Op      Op
	Type    domain.EntityType
	Key     string
	Payload domain.ChangePayload
	Entity  domain.Identifiable
}

// KeyError attaches the failing write's coordinates to a backend error.
type KeyError struct {
	Op   Op
	Type domain.EntityType
	Key  string
	Err  error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Type, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Fail wraps err with the coordinates of w.
func Fail(w Write, err error) error {
	return &KeyError{Op: w.Op, Type: w.Type, Key: w.Key, Err: err}
}

// Conflict reports that w would overwrite an existing entity.
func Conflict(w Write) error { return Fail(w, ErrConflict) }

// Missing reports that w targets an entity that does not exist.
func Missing(w Write) error { return Fail(w, ErrMissing) }

// Plan computes the writes for a single change set.
func Plan(cs *domain.ChangeSet) ([]Write, error) {
	var inserts, updates, deletes []Write
	for _, id := range cs.Identifiers() {
		w, ok, err := resolve(cs, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		switch w.Op {
		case OpInsert:
			inserts = append(inserts, w)
		case OpUpdate:
			updates = append(updates, w)
		case OpDelete:
			deletes = append(deletes, w)
		}
	}
	out := make([]Write, 0, len(inserts)+len(updates)+len(deletes))
	out = append(out, inserts...)
	out = append(out, updates...)
	return append(out, deletes...), nil
}

// PlanTree plans n and every descendant, parent writes first.
func PlanTree(n unitofwork.Node) ([]Write, error) {
	return PlanNodes(unitofwork.Descendants(n))
}

// PlanNodes plans each node in order and concatenates the writes.
func PlanNodes(nodes []unitofwork.Node) ([]Write, error) {
	var out []Write
	for _, node := range nodes {
		tr := unitofwork.TrackerOf(node)
		writes, err := Plan(tr.ChangeSet())
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", tr.ID(), err)
		}
		out = append(out, writes...)
	}
	return out, nil
}

// Count tallies writes by operation.
func Count(writes []Write) map[Op]int {
	counts := make(map[Op]int, 3)
	for _, w := range writes {
		counts[w.Op]++
	}
	return counts
}

func resolve(cs *domain.ChangeSet, id domain.Identifier) (Write, bool, error) {
	changes := cs.ChangesFor(id)
	if len(changes) == 0 {
		return Write{}, false, nil
	}
	pos := map[domain.EntityState]int{}
	for i, c := range changes {
		pos[c.State()] = i
	}
	_, hasNew := pos[domain.StateNew]
	delAt, hasDel := pos[domain.StateDeleted]
	last := changes[len(changes)-1]
	entity := last.Entity()
	if isNil(id) {
		return Write{}, false, fmt.Errorf("%w for %T", ErrNilIdentifier, entity)
	}
	w := Write{Type: domain.TypeOf(entity), Key: id.String(), Entity: entity}

	switch {
	case hasDel && delAt == len(changes)-1:
		if hasNew {
			return Write{}, false, nil
		}
		w.Op = OpDelete
		return w, true, nil
	case hasNew && hasDel:
		w.Op = OpUpdate
	case hasNew:
		w.Op = OpInsert
	default:
		w.Op = OpUpdate
	}

	payload, err := domain.NewChangePayloadFromValue(entity)
	if err != nil {
		return Write{}, false, fmt.Errorf("encode %s/%s: %w", w.Type, w.Key, err)
	}
	w.Payload = payload

	if w.Op == OpUpdate && !hasNew {
		unchanged, err := matchesClean(cs, id, entity, payload)
		if err != nil {
			return Write{}, false, err
		}
		if unchanged {
			return Write{}, false, nil
		}
	}
	return w, true, nil
}

// matchesClean reports whether the clean baseline for id encodes to payload.
// A baseline that is the very object being written proves nothing, so it
// never matches.
func matchesClean(cs *domain.ChangeSet, id domain.Identifier, entity domain.Identifiable, payload domain.ChangePayload) (bool, error) {
	clean, ok := cs.FindClean(id)
	if !ok || clean == nil || sameReference(clean, entity) {
		return false, nil
	}
	base, err := domain.NewChangePayloadFromValue(clean)
	if err != nil {
		return false, fmt.Errorf("encode clean %s: %w", id, err)
	}
	return base.Equal(payload), nil
}

func isNil(id domain.Identifier) bool {
	if id == nil {
		return true
	}
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func sameReference(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}
