package unitofwork

import (
	"context"
	"strconv"

	"transact/pkg/domain"
)

type key int

func (k key) String() string { return strconv.Itoa(int(k)) }

type account struct {
	Key     key
	Balance int
}

func (a *account) ID() domain.Identifier { return a.Key }

// testUnit is a minimal backend: commit counts calls, rollback discards.
type testUnit struct {
	*Tracker
	commits int
}

func newTestUnit(opts ...Option) *testUnit {
	return &testUnit{Tracker: NewTracker(opts...)}
}

func (u *testUnit) Commit(context.Context) error {
	u.commits++
	return nil
}

func (u *testUnit) Rollback(context.Context) error {
	u.ChangeSet().Reset()
	return nil
}

func countChanges(cs *domain.ChangeSet) int {
	n := 0
	for range cs.Stream() {
		n++
	}
	return n
}
