// Package postgres stores units of work in a Postgres entities table through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transact/internal/infra/persistence/entitysql"
	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Backend is the name sessions report for this store.
const Backend = "postgres"

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "postgres://localhost/transact?sslmode=disable"

var _ session.Executor = (*Store)(nil)

// DB is the subset of pgxpool.Pool the store needs, so tests can substitute
// pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store commits each unit of work in one Postgres transaction.
type Store struct {
	db    DB
	pool  *pgxpool.Pool
	stmts entitysql.Statements
	nowFn func() time.Time
	opts  []session.Option
}

// Open connects to dsn (DefaultDSN when empty), verifies the connection and
// ensures the entities table exists.
func Open(ctx context.Context, dsn string, opts ...session.Option) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewStore(pool, opts...)
	s.pool = pool
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing connection. The caller owns db.
func NewStore(db DB, opts ...session.Option) *Store {
	return &Store{
		db:    db,
		stmts: entitysql.New(sq.Dollar),
		nowFn: func() time.Time { return time.Now().UTC() },
		opts:  opts,
	}
}

// EnsureSchema creates the entities table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, entitysql.PostgresDDL); err != nil {
		return fmt.Errorf("ensure entities table: %w", err)
	}
	return nil
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
	if err := s.db.QueryRow(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin postgres tx: %w", err)
	}
	return &batch{tx: tx, stmts: s.stmts, now: s.nowFn()}, nil
}

// Close releases the pool opened by Open. Stores built with NewStore leave
// their connection to the caller.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type batch struct {
	tx    pgx.Tx
	stmts entitysql.Statements
	now   time.Time
}

func (b *batch) Apply(ctx context.Context, w writeset.Write) error {
	query, args, err := b.stmts.Write(w, b.now)
	if err != nil {
		return writeset.Fail(w, err)
	}
	tag, err := b.tx.Exec(ctx, query, args...)
	if err != nil {
		return writeset.Fail(w, err)
	}
	return entitysql.Affected(w, tag.RowsAffected())
}

func (b *batch) Commit(ctx context.Context) error { return b.tx.Commit(ctx) }

func (b *batch) Rollback(ctx context.Context) error { return b.tx.Rollback(ctx) }
