package objectstore

import (
	"context"
	"errors"
	"testing"

	"transact/internal/blob"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
	"transact/pkg/unitofwork"
)

type sample struct {
	Key    string `json:"key"`
	Volume int    `json:"volume"`
}

func (s *sample) ID() domain.Identifier         { return domain.StringID(s.Key) }
func (s *sample) EntityType() domain.EntityType { return "sample" }

// flakyStore fails Put for one key.
type flakyStore struct {
	blob.Store
	failKey string
}

func (f *flakyStore) Put(ctx context.Context, key string, body []byte) (blob.Info, error) {
	if key == f.failKey {
		return blob.Info{}, errors.New("quota exceeded")
	}
	return f.Store.Put(ctx, key, body)
}

func seed(t *testing.T, store *Store, entities ...*sample) {
	t.Helper()
	uow := store.NewUnitOfWork()
	for _, e := range entities {
		uow.RegisterNew(e)
	}
	if err := uow.Commit(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestCommitWritesObjects(t *testing.T) {
	ctx := context.Background()
	store := NewStore(blob.NewMemory())
	seed(t, store, &sample{Key: "s1", Volume: 5}, &sample{Key: "s/2", Volume: 7})

	var got sample
	ok, err := store.Load(ctx, "sample", "s1", &got)
	if err != nil || !ok || got.Volume != 5 {
		t.Fatalf("load: %+v ok=%v err=%v", got, ok, err)
	}
	if _, err := store.Objects().Head(ctx, "sample/s%2F2.json"); err != nil {
		t.Fatalf("expected escaped object key: %v", err)
	}
	keys, err := store.Keys(ctx, "sample")
	if err != nil || len(keys) != 2 || keys[0] != "s/2" || keys[1] != "s1" {
		t.Fatalf("unexpected keys %v err=%v", keys, err)
	}
	if ok, err := store.Load(ctx, "sample", "missing", &got); ok || err != nil {
		t.Fatalf("expected missing, got ok=%v err=%v", ok, err)
	}
}

func TestPreconditionFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	objects := blob.NewMemory()
	store := NewStore(objects)
	seed(t, store, &sample{Key: "s1"})

	uow := store.NewUnitOfWork()
	uow.RegisterNew(&sample{Key: "s2"}).RegisterNew(&sample{Key: "s1"})
	err := uow.Commit(ctx)
	if !errors.Is(err, unitofwork.ErrCommit) || !errors.Is(err, writeset.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := objects.Head(ctx, ObjectKey("sample", "s2")); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected s2 not written, got %v", err)
	}
}

func TestFailedWriteIsCompensated(t *testing.T) {
	ctx := context.Background()
	objects := &flakyStore{Store: blob.NewMemory()}
	store := NewStore(objects)
	seed(t, store, &sample{Key: "s1", Volume: 1}, &sample{Key: "s3", Volume: 3})

	objects.failKey = ObjectKey("sample", "s3")
	uow := store.NewUnitOfWork()
	uow.RegisterNew(&sample{Key: "s2", Volume: 2})
	uow.RegisterDirty(&sample{Key: "s1", Volume: 100})
	uow.RegisterDirty(&sample{Key: "s3", Volume: 300})
	if err := uow.Commit(ctx); err == nil {
		t.Fatalf("expected failure")
	}

	var got sample
	if ok, _ := store.Load(ctx, "sample", "s2", &got); ok {
		t.Fatalf("expected inserted s2 to be removed")
	}
	if _, err := store.Load(ctx, "sample", "s1", &got); err != nil || got.Volume != 1 {
		t.Fatalf("expected s1 restored, got %+v err=%v", got, err)
	}
	if ok, err := store.Load(ctx, "sample", "s3", &got); !ok || err != nil || got.Volume != 3 {
		t.Fatalf("expected s3 intact, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(blob.NewMockS3ForTests())
	seed(t, store, &sample{Key: "s1", Volume: 1}, &sample{Key: "s2"})

	uow := store.NewUnitOfWork()
	uow.RegisterDirty(&sample{Key: "s1", Volume: 9}).RegisterDeleted(&sample{Key: "s2"})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var got sample
	if _, err := store.Load(ctx, "sample", "s1", &got); err != nil || got.Volume != 9 {
		t.Fatalf("expected update, got %+v err=%v", got, err)
	}
	if ok, _ := store.Load(ctx, "sample", "s2", &got); ok {
		t.Fatalf("expected s2 deleted")
	}

	missing := store.NewUnitOfWork()
	missing.RegisterDirty(&sample{Key: "ghost"})
	if err := missing.Commit(ctx); !errors.Is(err, writeset.ErrMissing) {
		t.Fatalf("expected missing, got %v", err)
	}
}
