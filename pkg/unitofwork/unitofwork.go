// Package unitofwork defines the commit/rollback contract and the Tracker that
// concrete backends embed to get change tracking and nesting for free.
package unitofwork

import "context"

// UnitOfWork is a transactional scope whose recorded changes are committed or
// rolled back together.
//
// Commit persists every change recorded since the unit began. Implementations
// promise all-or-nothing from the caller's point of view and report failures
// as *CommitError; the persisted state after a failure is undefined unless
// the implementation documents its recovery. Rollback discards recorded
// changes and reports *RollbackError only when the discard itself cannot
// complete.
type UnitOfWork interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Node is a unit of work that carries a Tracker. Only types embedding Tracker
// satisfy it, which is what AddChild accepts.
type Node interface {
	UnitOfWork
	tracker() *Tracker
}

// TrackerOf returns the Tracker embedded in n.
func TrackerOf(n Node) *Tracker {
	return n.tracker()
}

// Descendants returns n followed by every node below it, parent before
// children, children in the order they were added.
func Descendants(n Node) []Node {
	out := []Node{n}
	for _, child := range n.tracker().children {
		out = append(out, Descendants(child)...)
	}
	return out
}
