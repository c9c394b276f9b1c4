// Package objectstore keeps units of work as JSON objects in a blob store
// (filesystem, S3 or memory), one object per entity at "<type>/<key>.json".
//
// Object stores have no multi-key transactions. A commit checks every
// precondition first, records the current body of each object it will touch,
// then applies writes in order. If a write fails, the writes already applied
// are undone in reverse order from those before-images. Concurrent writers to
// the same keys are not detected; callers that share keys must serialise
// commits themselves.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"transact/internal/blob"
	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Backend is the name sessions report for this store.
const Backend = "objectstore"

const suffix = ".json"

var _ session.Executor = (*Store)(nil)

// Store applies units of work to a blob.Store. Commits through one Store are
// serialised.
type Store struct {
	objects blob.Store
	mu      sync.Mutex
	opts    []session.Option
}

// NewStore wraps objects. opts are applied to every unit of work.
func NewStore(objects blob.Store, opts ...session.Option) *Store {
	return &Store{objects: objects, opts: opts}
}

// Objects returns the underlying blob store.
func (s *Store) Objects() blob.Store { return s.objects }

// NewUnitOfWork starts a root unit of work against the store.
func (s *Store) NewUnitOfWork(opts ...session.Option) *session.Session {
	return session.New(Backend, s, append(slices.Clone(s.opts), opts...)...)
}

// ObjectKey returns the blob key for an entity. Keys are path-escaped so an
// entity key can never traverse directories.
func ObjectKey(typ domain.EntityType, key string) string {
	return url.PathEscape(string(typ)) + "/" + url.PathEscape(key) + suffix
}

// Load decodes the stored entity into dst.
func (s *Store) Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error) {
	body, _, err := s.objects.Get(ctx, ObjectKey(typ, key))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s/%s: %w", typ, key, err)
	}
	if err := domain.NewChangePayload(body).Decode(dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", typ, key, err)
	}
	return true, nil
}

// Keys lists the entity keys stored for typ.
func (s *Store) Keys(ctx context.Context, typ domain.EntityType) ([]string, error) {
	infos, err := s.objects.List(ctx, url.PathEscape(string(typ))+"/")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		_, name, ok := strings.Cut(info.Key, "/")
		if !ok || !strings.HasSuffix(name, suffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, suffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Begin implements session.Executor. The store is locked until the batch
// commits or rolls back.
func (s *Store) Begin(context.Context) (session.Batch, error) {
	s.mu.Lock()
	return &batch{store: s}, nil
}

type staged struct {
	write writeset.Write
	key   string
}

// before is the state of an object prior to the commit.
type before struct {
	key    string
	body   []byte
	exists bool
}

type batch struct {
	store  *Store
	writes []staged
	done   bool
}

func (b *batch) Apply(_ context.Context, w writeset.Write) error {
	switch w.Op {
	case writeset.OpInsert, writeset.OpUpdate, writeset.OpDelete:
	default:
		return writeset.Fail(w, fmt.Errorf("unsupported operation"))
	}
	b.writes = append(b.writes, staged{write: w, key: ObjectKey(w.Type, w.Key)})
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return nil
	}
	defer b.release()
	images, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	for i, st := range b.writes {
		if err := b.write(ctx, st); err != nil {
			if undoErr := b.undo(ctx, images[:i]); undoErr != nil {
				return errors.Join(err, fmt.Errorf("compensate: %w", undoErr))
			}
			return err
		}
	}
	return nil
}

// snapshot verifies preconditions and returns the before-image of each
// staged write's object.
func (b *batch) snapshot(ctx context.Context) ([]before, error) {
	images := make([]before, len(b.writes))
	exists := map[string]bool{}
	for i, st := range b.writes {
		present, seen := exists[st.key]
		images[i] = before{key: st.key}
		body, _, err := b.store.objects.Get(ctx, st.key)
		switch {
		case err == nil:
			images[i].body, images[i].exists = body, true
		case errors.Is(err, blob.ErrNotFound):
		default:
			return nil, writeset.Fail(st.write, err)
		}
		if !seen {
			present = images[i].exists
		}
		switch st.write.Op {
		case writeset.OpInsert:
			if present {
				return nil, writeset.Conflict(st.write)
			}
			exists[st.key] = true
		case writeset.OpUpdate:
			if !present {
				return nil, writeset.Missing(st.write)
			}
			exists[st.key] = true
		case writeset.OpDelete:
			if !present {
				return nil, writeset.Missing(st.write)
			}
			exists[st.key] = false
		}
	}
	return images, nil
}

func (b *batch) write(ctx context.Context, st staged) error {
	if st.write.Op == writeset.OpDelete {
		if _, err := b.store.objects.Delete(ctx, st.key); err != nil {
			return writeset.Fail(st.write, err)
		}
		return nil
	}
	if _, err := b.store.objects.Put(ctx, st.key, st.write.Payload.Bytes()); err != nil {
		return writeset.Fail(st.write, err)
	}
	return nil
}

// undo restores applied objects newest first.
func (b *batch) undo(ctx context.Context, applied []before) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		img := applied[i]
		var err error
		if img.exists {
			_, err = b.store.objects.Put(ctx, img.key, img.body)
		} else {
			_, err = b.store.objects.Delete(ctx, img.key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", img.key, err))
		}
	}
	return errors.Join(errs...)
}

func (b *batch) Rollback(context.Context) error {
	if b.done {
		return nil
	}
	b.release()
	return nil
}

func (b *batch) release() {
	b.done = true
	b.writes = nil
	b.store.mu.Unlock()
}
