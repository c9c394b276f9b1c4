// Package redisstore stores units of work as JSON strings in Redis. Each commit
// runs as one optimistic WATCH/MULTI/EXEC transaction over the keys it
// touches and is retried when a concurrent writer invalidates the watch.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"transact/internal/infra/persistence/session"
	"transact/internal/infra/persistence/writeset"
	"transact/pkg/domain"
)

// Backend is the name sessions report for this store.
const Backend = "redis"

const (
	defaultPrefix     = "transact"
	defaultMaxRetries = 3
	defaultBackoff    = 10 * time.Millisecond
)

var _ session.Executor = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix (default "transact").
func WithPrefix(p string) Option {
	return func(s *Store) {
		if p != "" {
			s.prefix = p
		}
	}
}

// WithMaxRetries bounds how often a commit is retried after a watched key
// changed underneath it.
func WithMaxRetries(n uint64) Option {
	return func(s *Store) { s.maxRetries = n }
}

// WithBackoff sets the base delay of the exponential retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithSessionOptions sets options applied to every unit of work.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Store) { s.opts = append(s.opts, opts...) }
}

// Store keeps entities under "<prefix>:<type>:<key>" with type and key
// query-escaped, so a ':' inside either part cannot collide with the separator.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries uint64
	backoff    time.Duration
	opts       []session.Option
	owned      bool
}

// NewStore wraps an existing client. The caller owns client.
func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     defaultPrefix,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open dials addr and verifies the connection. Close releases the client.
func Open(ctx context.Context, redisOpts *redis.Options, opts ...Option) (*Store, error) {
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := NewStore(client, opts...)
	s.owned = true
	return s, nil
}

// NewUnitOfWork starts a root unit of work against the store.
func (s *Store) NewUnitOfWork(opts ...session.Option) *session.Session {
	return session.New(Backend, s, append(slices.Clone(s.opts), opts...)...)
}

// Load decodes the stored entity into dst.
func (s *Store) Load(ctx context.Context, typ domain.EntityType, key string, dst any) (bool, error) {
	bs, err := s.client.Get(ctx, s.keyFor(typ, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get %s/%s: %w", typ, key, err)
	}
	if err := domain.NewChangePayload(bs).Decode(dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", typ, key, err)
	}
	return true, nil
}

// Close releases a client opened by Open.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// Begin implements session.Executor. Writes are staged locally and sent in a
// single transaction on Commit, so conflicts surface from Commit.
func (s *Store) Begin(context.Context) (session.Batch, error) {
	return &batch{store: s}, nil
}

func (s *Store) keyFor(typ domain.EntityType, key string) string {
	b := strings.Builder{}
	b.WriteString(s.prefix)
	b.WriteString(":")
	b.WriteString(url.QueryEscape(string(typ)))
	b.WriteString(":")
	b.WriteString(url.QueryEscape(key))
	return b.String()
}

type staged struct {
	write writeset.Write
	key   string
}

type batch struct {
	store  *Store
	writes []staged
}

func (b *batch) Apply(_ context.Context, w writeset.Write) error {
	switch w.Op {
	case writeset.OpInsert, writeset.OpUpdate, writeset.OpDelete:
	default:
		return writeset.Fail(w, fmt.Errorf("unsupported operation"))
	}
	b.writes = append(b.writes, staged{write: w, key: b.store.keyFor(w.Type, w.Key)})
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(b.writes))
	for _, st := range b.writes {
		keys = append(keys, st.key)
	}
	backoff := retry.WithMaxRetries(b.store.maxRetries, retry.NewExponential(b.store.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := b.store.client.Watch(ctx, func(tx *redis.Tx) error {
			return b.exec(ctx, tx)
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// exec checks existence preconditions against the watched keys, then queues
// every write in one MULTI block.
func (b *batch) exec(ctx context.Context, tx *redis.Tx) error {
	exists := make(map[string]bool, len(b.writes))
	for _, st := range b.writes {
		present, seen := exists[st.key]
		if !seen {
			n, err := tx.Exists(ctx, st.key).Result()
			if err != nil {
				return writeset.Fail(st.write, err)
			}
			present = n > 0
		}
		switch st.write.Op {
		case writeset.OpInsert:
			if present {
				return writeset.Conflict(st.write)
			}
			exists[st.key] = true
		case writeset.OpUpdate:
			if !present {
				return writeset.Missing(st.write)
			}
			exists[st.key] = true
		case writeset.OpDelete:
			if !present {
				return writeset.Missing(st.write)
			}
			exists[st.key] = false
		}
	}
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, st := range b.writes {
			if st.write.Op == writeset.OpDelete {
				pipe.Del(ctx, st.key)
				continue
			}
			pipe.Set(ctx, st.key, st.write.Payload.Bytes(), 0)
		}
		return nil
	})
	return err
}

func (b *batch) Rollback(context.Context) error {
	b.writes = nil
	return nil
}
