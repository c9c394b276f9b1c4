package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
	"transact/pkg/unitofwork"
)

const organismsType = "organism"

type organism struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func (o *organism) ID() domain.Identifier         { return domain.StringID(o.Key) }
func (o *organism) EntityType() domain.EntityType { return organismsType }

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	uow := store.NewUnitOfWork()
	uow.RegisterNew(&organism{Key: "o1", Name: "Persist"})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded := openStore(t, path)
	var got organism
	ok, err := reloaded.Load(ctx, organismsType, "o1", &got)
	if err != nil || !ok || got.Name != "Persist" {
		t.Fatalf("expected persisted organism, got %+v ok=%v err=%v", got, ok, err)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreCreatesEntitiesTable(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name= ?", "entities").Scan(&tableName); err != nil {
		t.Fatalf("lookup entities table: %v", err)
	}
	if tableName != "entities" {
		t.Fatalf("expected entities table, got %s", tableName)
	}
}

func TestSQLiteUpdateDeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	seed := store.NewUnitOfWork()
	seed.RegisterNew(&organism{Key: "o1", Name: "A"}).RegisterNew(&organism{Key: "o2", Name: "B"})
	if err := seed.Commit(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	uow := store.NewUnitOfWork()
	uow.RegisterDirty(&organism{Key: "o1", Name: "A2"}).RegisterDeleted(&organism{Key: "o2"})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var got organism
	if _, err := store.Load(ctx, organismsType, "o1", &got); err != nil || got.Name != "A2" {
		t.Fatalf("expected update, got %+v err=%v", got, err)
	}
	if ok, _ := store.Load(ctx, organismsType, "o2", &got); ok {
		t.Fatalf("expected o2 deleted")
	}

	bad := store.NewUnitOfWork()
	bad.RegisterNew(&organism{Key: "o3"}).RegisterDeleted(&organism{Key: "ghost"})
	err := bad.Commit(ctx)
	if !errors.Is(err, unitofwork.ErrCommit) || !errors.Is(err, writeset.ErrMissing) {
		t.Fatalf("expected missing error, got %v", err)
	}
	if ok, _ := store.Load(ctx, organismsType, "o3", &got); ok {
		t.Fatalf("expected failed transaction to roll back o3")
	}
}

func TestSQLiteInsertConflict(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	for i, want := range []error{nil, writeset.ErrConflict} {
		uow := store.NewUnitOfWork()
		uow.RegisterNew(&organism{Key: "dup"})
		err := uow.Commit(ctx)
		if want == nil && err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if want != nil && !errors.Is(err, want) {
			t.Fatalf("attempt %d: expected %v, got %v", i, want, err)
		}
	}
}
