package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
	"transact/pkg/unitofwork"
)

type protocol struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

func (p *protocol) ID() domain.Identifier         { return domain.StringID(p.Key) }
func (p *protocol) EntityType() domain.EntityType { return "protocol" }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestEnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entities").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	if err := NewStore(mock).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitWritesInOneTransaction(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO entities").
		WithArgs("protocol", "p1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE entities").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "protocol", "p2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM entities").
		WithArgs("protocol", "p3").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	uow := NewStore(mock).NewUnitOfWork()
	uow.RegisterDeleted(&protocol{Key: "p3"})
	uow.RegisterDirty(&protocol{Key: "p2", Title: "Revised"})
	uow.RegisterNew(&protocol{Key: "p1", Title: "Draft"})
	if err := uow.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitConflictRollsBack(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO entities").
		WithArgs("protocol", "p1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	uow := NewStore(mock).NewUnitOfWork()
	uow.RegisterNew(&protocol{Key: "p1"})
	err := uow.Commit(context.Background())
	if !errors.Is(err, unitofwork.ErrCommit) || !errors.Is(err, writeset.ErrConflict) {
		t.Fatalf("expected conflict commit error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitExecErrorRollsBack(t *testing.T) {
	mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM entities").WithArgs("protocol", "p1").WillReturnError(boom)
	mock.ExpectRollback()

	uow := NewStore(mock).NewUnitOfWork()
	uow.RegisterDeleted(&protocol{Key: "p1"})
	err := uow.Commit(context.Background())
	var keyErr *writeset.KeyError
	if !errors.Is(err, boom) || !errors.As(err, &keyErr) || keyErr.Key != "p1" {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoad(t *testing.T) {
	mock := newMock(t)
	rows := mock.NewRows([]string{"payload"}).AddRow([]byte(`{"key":"p1","title":"Loaded"}`))
	mock.ExpectQuery(`SELECT payload FROM entities WHERE entity_type = \$1 AND entity_key = \$2`).
		WithArgs("protocol", "p1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT payload FROM entities").
		WithArgs("protocol", "missing").
		WillReturnRows(mock.NewRows([]string{"payload"}))

	store := NewStore(mock)
	var got protocol
	ok, err := store.Load(context.Background(), "protocol", "p1", &got)
	if err != nil || !ok || got.Title != "Loaded" {
		t.Fatalf("expected loaded protocol, got %+v ok=%v err=%v", got, ok, err)
	}
	ok, err = store.Load(context.Background(), "protocol", "missing", &got)
	if err != nil || ok {
		t.Fatalf("expected missing row, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), "://not a dsn"); err == nil {
		t.Fatalf("expected parse error")
	}
}
