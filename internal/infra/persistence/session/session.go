// Package session implements unitofwork.UnitOfWork on top of any store that
// can apply planned writes inside a batch. Stores supply an Executor; the
// session owns change tracking, lifecycle, logging, metrics and tracing.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"transact/internal/infra/persistence/writeset"
	"transact/internal/observability"
	"transact/pkg/domain"
	"transact/pkg/unitofwork"
)

// ErrForeignStore reports a nested session created on a different store than
// the session being committed.
var ErrForeignStore = errors.New("nested session belongs to another store")

// Executor opens write batches against a store.
type Executor interface {
	Begin(ctx context.Context) (Batch, error)
}

// Batch applies writes atomically. Rollback is only called after a failed
// Apply and must leave the store as it was before Begin.
type Batch interface {
	Apply(ctx context.Context, w writeset.Write) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(s *Session) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithID names the unit of work instead of using a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.trackerOpts = append(s.trackerOpts, unitofwork.WithID(id)) }
}

// WithCleanCopier copies entities registered as clean.
func WithCleanCopier(copier domain.Copier) Option {
	return func(s *Session) {
		s.trackerOpts = append(s.trackerOpts, unitofwork.WithCleanCopier(copier))
	}
}

// Session is a unit of work bound to one store. Committing a session writes
// its own changes and those of every nested unit in a single batch, parent
// first. Nested sessions must share the store. Nested sessions that already
// committed or rolled back are left alone, together with their subtrees.
// A Session is not safe for concurrent use.
type Session struct {
	*unitofwork.Tracker

	backend     string
	exec        Executor
	lifecycle   unitofwork.Lifecycle
	trackerOpts []unitofwork.Option
	logger      observability.Logger
	metrics     observability.MetricsRecorder
	tracer      observability.Tracer
}

var _ unitofwork.Node = (*Session)(nil)

// New constructs a root session writing through exec. backend names the
// store in logs and spans.
func New(backend string, exec Executor, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		exec:    exec,
		logger:  observability.NoopLogger(),
		metrics: observability.NoopMetrics(),
		tracer:  observability.NoopTracer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.Tracker = unitofwork.NewTracker(s.trackerOpts...)
	s.trackerOpts = nil
	return s
}

// Child creates a session on the same store and nests it under s. The child
// inherits the parent's logger, metrics and tracer unless overridden.
func (s *Session) Child(opts ...Option) *Session {
	inherited := []Option{WithLogger(s.logger), WithMetrics(s.metrics), WithTracer(s.tracer)}
	child := New(s.backend, s.exec, append(inherited, opts...)...)
	s.AddChild(child)
	return child
}

// Backend returns the store name given to New.
func (s *Session) Backend() string { return s.backend }

// State returns the lifecycle state.
func (s *Session) State() unitofwork.State { return s.lifecycle.State() }

// Commit plans and applies every change in the subtree rooted at s. On
// success each session in the subtree is marked committed and its change set
// cleared. On failure the batch is rolled back, the changes are kept and the
// session may be committed again.
func (s *Session) Commit(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, observability.OpCommit,
		attribute.String("transact.unit", s.ID()),
		attribute.String("transact.backend", s.backend),
	)
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, observability.OpCommit, err == nil, time.Since(start))
	}()

	if err := s.lifecycle.Begin(); err != nil {
		return unitofwork.NewCommitError(s.ID(), err)
	}
	s.logger.Debug("unit of work commit started", "unit", s.ID(), "backend", s.backend)

	nodes := s.pending()
	if err := s.checkStores(nodes); err != nil {
		return s.fail(err)
	}
	writes, err := writeset.PlanNodes(nodes)
	if err != nil {
		return s.fail(err)
	}
	if len(writes) > 0 {
		if err := s.apply(ctx, writes); err != nil {
			return s.fail(err)
		}
	}

	for _, node := range nodes {
		unitofwork.TrackerOf(node).ChangeSet().Reset()
		if sess, ok := node.(*Session); ok {
			sess.lifecycle.MarkCommitted()
		}
	}
	counts := writeset.Count(writes)
	s.logger.Debug("unit of work committed",
		"unit", s.ID(),
		"backend", s.backend,
		"inserts", counts[writeset.OpInsert],
		"updates", counts[writeset.OpUpdate],
		"deletes", counts[writeset.OpDelete],
	)
	return nil
}

// pending returns s followed by every nested unit that is still open, parent
// before children. A nested session in a terminal state is skipped along
// with everything below it.
func (s *Session) pending() []unitofwork.Node {
	var out []unitofwork.Node
	var walk func(n unitofwork.Node)
	walk = func(n unitofwork.Node) {
		if sess, ok := n.(*Session); ok && sess != s && sess.lifecycle.State().Terminal() {
			return
		}
		out = append(out, n)
		for _, child := range unitofwork.TrackerOf(n).Children() {
			walk(child)
		}
	}
	walk(s)
	return out
}

func (s *Session) checkStores(nodes []unitofwork.Node) error {
	for _, node := range nodes {
		sess, ok := node.(*Session)
		if !ok || sess.exec == s.exec {
			continue
		}
		return fmt.Errorf("%w: %s on %s", ErrForeignStore, sess.ID(), sess.backend)
	}
	return nil
}

func (s *Session) apply(ctx context.Context, writes []writeset.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch, err := s.exec.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, w := range writes {
		if err := batch.Apply(ctx, w); err != nil {
			if rbErr := batch.Rollback(ctx); rbErr != nil {
				return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) fail(cause error) error {
	s.lifecycle.MarkFailed()
	s.logger.Error("unit of work commit failed", "unit", s.ID(), "backend", s.backend, "error", cause)
	return unitofwork.NewCommitError(s.ID(), cause)
}

// Rollback discards the changes of s and every nested unit. Rolling back an
// already rolled back session is a no-op; rolling back a committed one fails
// with ErrClosed.
func (s *Session) Rollback(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, observability.OpRollback,
		attribute.String("transact.unit", s.ID()),
		attribute.String("transact.backend", s.backend),
	)
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, observability.OpRollback, err == nil, time.Since(start))
	}()

	switch s.lifecycle.State() {
	case unitofwork.StateCommitted:
		return unitofwork.NewRollbackError(s.ID(), fmt.Errorf("%w: %s", unitofwork.ErrClosed, unitofwork.StateCommitted))
	case unitofwork.StateRolledBack:
		return nil
	}

	discarded := 0
	for _, node := range s.pending() {
		cs := unitofwork.TrackerOf(node).ChangeSet()
		discarded += cs.Len()
		cs.Reset()
		if sess, ok := node.(*Session); ok {
			sess.lifecycle.MarkRolledBack()
		}
	}
	s.logger.Info("unit of work rolled back", "unit", s.ID(), "backend", s.backend, "discarded", discarded)
	return nil
}
