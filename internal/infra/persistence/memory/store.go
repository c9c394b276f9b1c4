// Package memory provides an in-memory store for units of work, used for tests
// and ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Backend is the name sessions report for this store.
const Backend = "memory"

var _ session.Executor = (*Store)(nil)

type entityKey struct {
	typ domain.EntityType
	key string
}

type entry struct {
	payload   json.RawMessage
	updatedAt time.Time
}

// Snapshot captures a point-in-time copy of the store, keyed by entity type
// then entity key.
type Snapshot map[domain.EntityType]map[string]json.RawMessage

// Store keeps encoded entities in a map. A commit holds the write lock for
// the whole batch and swaps staged writes in on success.
type Store struct {
	mu    sync.RWMutex
	state map[entityKey]entry
	nowFn func() time.Time
	opts  []session.Option
}

// NewStore constructs an empty store. opts are applied to every unit of work
// it creates.
func NewStore(opts ...session.Option) *Store {
	return &Store{
		state: make(map[entityKey]entry),
		nowFn: func() time.Time { return time.Now().UTC() },
		opts:  opts,
	}
}

// NewUnitOfWork starts a root unit of work against the store.
func (s *Store) NewUnitOfWork(opts ...session.Option) *session.Session {
	return session.New(Backend, s, append(slices.Clone(s.opts), opts...)...)
}

// Load decodes the stored entity into dst.
func (s *Store) Load(_ context.Context, typ domain.EntityType, key string, dst any) (bool, error) {
	s.mu.RLock()
	e, ok := s.state[entityKey{typ: typ, key: key}]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.payload, dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", typ, key, err)
	}
	return true, nil
}

// UpdatedAt returns when key was last written.
func (s *Store) UpdatedAt(typ domain.EntityType, key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state[entityKey{typ: typ, key: key}]
	return e.updatedAt, ok
}

// Len returns the number of stored entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// ExportState copies the current contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{}
	for k, e := range s.state {
		bucket, ok := out[k.typ]
		if !ok {
			bucket = make(map[string]json.RawMessage)
			out[k.typ] = bucket
		}
		bucket[k.key] = slices.Clone(e.payload)
	}
	return out
}

// ImportState replaces the store contents with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := make(map[entityKey]entry)
	now := s.nowFn()
	for typ, bucket := range snapshot {
		for key, payload := range bucket {
			state[entityKey{typ: typ, key: key}] = entry{payload: slices.Clone(payload), updatedAt: now}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Begin implements session.Executor. The store stays write-locked until the
// batch commits or rolls back.
func (s *Store) Begin(context.Context) (session.Batch, error) {
	s.mu.Lock()
	return &batch{store: s, staged: make(map[entityKey]*entry), now: s.nowFn()}, nil
}

type batch struct {
	store  *Store
	staged map[entityKey]*entry
	now    time.Time
	done   bool
}

func (b *batch) exists(k entityKey) bool {
	if e, ok := b.staged[k]; ok {
		return e != nil
	}
	_, ok := b.store.state[k]
	return ok
}

func (b *batch) Apply(_ context.Context, w writeset.Write) error {
	if b.done {
		return fmt.Errorf("memory batch already closed")
	}
	k := entityKey{typ: w.Type, key: w.Key}
	switch w.Op {
	case writeset.OpInsert:
		if b.exists(k) {
			return writeset.Conflict(w)
		}
	case writeset.OpUpdate, writeset.OpDelete:
		if !b.exists(k) {
			return writeset.Missing(w)
		}
	default:
		return writeset.Fail(w, fmt.Errorf("unsupported operation"))
	}
	if w.Op == writeset.OpDelete {
		b.staged[k] = nil
		return nil
	}
	b.staged[k] = &entry{payload: w.Payload.Bytes(), updatedAt: b.now}
	return nil
}

func (b *batch) Commit(context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.store.mu.Unlock()
	state := maps.Clone(b.store.state)
	for k, e := range b.staged {
		if e == nil {
			delete(state, k)
			continue
		}
		state[k] = *e
	}
	b.store.state = state
	return nil
}

func (b *batch) Rollback(context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	b.store.mu.Unlock()
	return nil
}
