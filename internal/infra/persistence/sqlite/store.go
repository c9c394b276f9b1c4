// Package sqlite stores units of work in a single SQLite table using the pure
// Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"transact/internal/infra/persistence/entitysql"
	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Backend is the name sessions report for this store.
const Backend = "sqlite"

const defaultPath = "transact.db"

var _ session.Executor = (*Store)(nil)

// Store commits each unit of work in one SQLite transaction.
type Store struct {
	db    *sql.DB
	path  string
	stmts entitysql.Statements
	nowFn func() time.Time
	opts  []session.Option
}

// NewStore opens (creating if needed) the database at path and ensures the
// entities table exists. opts are applied to every unit of work.
func NewStore(path string, opts ...session.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers instead of surfacing SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(entitysql.SQLiteDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entities table: %w", err)
	}
	return &Store{
		db:    db,
		path:  path,
		stmts: entitysql.New(sq.Question),
		nowFn: func() time.Time { return time.Now().UTC() },
		opts:  opts,
	}, nil
}

// NewUnitOfWork starts a root unit of work against the store.
func (s *Store) NewUnitOfWork(opts ...session.Option) *session.Session {
	return session.New(Backend, s, append(slices.Clone(s.opts), opts...)...)
}

// Load decodes the stored entity into dst.
func (s *Store) Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error) {
	query, args, err := s.stmts.Select(typ, key)
	if err != nil {
		return false, err
	}
	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select %s/%s: %w", typ, key, err)
	}
	if err := domain.NewChangePayload(payload).Decode(dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", typ, key, err)
	}
	return true, nil
}

// Begin implements session.Executor.
func (s *Store) Begin(ctx context.Context) (session.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sqlite tx: %w", err)
	}
	return &batch{tx: tx, stmts: s.stmts, now: s.nowFn()}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

type batch struct {
	tx    *sql.Tx
	stmts entitysql.Statements
	now   time.Time
}

func (b *batch) Apply(ctx context.Context, w writeset.Write) error {
	query, args, err := b.stmts.Write(w, b.now)
	if err != nil {
		return writeset.Fail(w, err)
	}
	res, err := b.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return writeset.Fail(w, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeset.Fail(w, err)
	}
	return entitysql.Affected(w, n)
}

func (b *batch) Commit(context.Context) error { return b.tx.Commit() }

func (b *batch) Rollback(context.Context) error { return b.tx.Rollback() }
