// Package entitysql builds the statements SQL stores use against the shared
// entities table.
package entitysql

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Table is the single table every SQL store writes to.
const Table = "entities"

// SQLiteDDL creates the entities table in SQLite.
const SQLiteDDL = `CREATE TABLE IF NOT EXISTS entities (
	entity_type TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	payload BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (entity_type, entity_key)
)`

// PostgresDDL creates the entities table in Postgres.
const PostgresDDL = `CREATE TABLE IF NOT EXISTS entities (
	entity_type TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_type, entity_key)
)`

// Statements renders writes for one placeholder dialect.
type Statements struct {
	b sq.StatementBuilderType
}

// New returns statements using format (sq.Question, sq.Dollar).
func New(format sq.PlaceholderFormat) Statements {
	return Statements{b: sq.StatementBuilder.PlaceholderFormat(format)}
}

// Write renders w. Inserts skip existing rows, so a zero row count means a
// conflict for inserts and a missing row for updates and deletes.
func (s Statements) Write(w writeset.Write, now time.Time) (string, []any, error) {
	switch w.Op {
	case writeset.OpInsert:
		return s.b.Insert(Table).
			Columns("entity_type", "entity_key", "payload", "updated_at").
			Values(string(w.Type), w.Key, string(w.Payload.Bytes()), now).
			Suffix("ON CONFLICT (entity_type, entity_key) DO NOTHING").
			ToSql()
	case writeset.OpUpdate:
		return s.b.Update(Table).
			Set("payload", string(w.Payload.Bytes())).
			Set("updated_at", now).
			Where("entity_type = ? AND entity_key = ?", string(w.Type), w.Key).
			ToSql()
	case writeset.OpDelete:
		return s.b.Delete(Table).
			Where("entity_type = ? AND entity_key = ?", string(w.Type), w.Key).
			ToSql()
	default:
		return "", nil, fmt.Errorf("unsupported operation %q", w.Op)
	}
}

// Select renders the payload lookup for one entity.
func (s Statements) Select(typ domain.EntityType, key string) (string, []any, error) {
	return s.b.Select("payload").
		From(Table).
		Where("entity_type = ? AND entity_key = ?", string(typ), key).
		ToSql()
}

// Affected maps a zero row count to the write's conflict error.
func Affected(w writeset.Write, rows int64) error {
	if rows > 0 {
		return nil
	}
	if w.Op == writeset.OpInsert {
		return writeset.Conflict(w)
	}
	return writeset.Missing(w)
}
