// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store implements the reactive stores: a single-item store and a
// paginated collection store. Both publish an immutable state.State value,
// load through a keyed single-flight supervisor with retries and optional
// debounce, and support optimistic mutations with a bounded undo window.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/config"
	"github.com/united-manufacturing-hub/statekit/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/statekit/pkg/history"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
	"github.com/united-manufacturing-hub/statekit/pkg/mutation"
	"github.com/united-manufacturing-hub/statekit/pkg/retry"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"github.com/united-manufacturing-hub/statekit/pkg/snapshot"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
	"github.com/united-manufacturing-hub/statekit/pkg/supervisor"
)

// loadKey is the supervisor key load operations run under. Every store owns
// its own supervisor, so the key only has to be unique within one store.
const loadKey = "load"

// Store owns one asynchronously loaded model of type T.
//
// Loads run through the store's supervisor: starting a new load cancels the
// one in flight, and a superseded load never writes its late result.
// Mutations are synchronous and optimistic, with snapshots retained in a
// bounded ring so the most recent ones can be discarded again.
//
// All methods are safe for concurrent use.
type Store[T any] struct {
	log     *zap.SugaredLogger
	sup     *supervisor.Supervisor
	machine *lifecycle
	undo    *history.Buffer[T]
	name    string
	cfg     config.StoreConfig

	// we use our own implementation of a context aware rwmutex here so
	// writers cannot deadlock readers when a caller's context expires
	// mid-operation
	mu ctxrwmutex.CtxRWMutex

	current state.State[T]
}

// New creates an idle store. name scopes logging, metrics and issue
// reports; cfg is normalized and then fixed for the store's lifetime.
func New[T any](name string, cfg config.StoreConfig) *Store[T] {
	cfg = cfg.Normalize()

	log := logger.For(logger.ComponentStore).With("store", name)
	if !cfg.EnableLogging {
		log = zap.NewNop().Sugar()
	}

	metrics.InitErrorCounter(metrics.ComponentStore, name)

	return &Store[T]{
		log:     log,
		sup:     supervisor.New(name, log),
		machine: newLifecycle(name, metrics.ComponentStore, log),
		undo:    history.New[T](cfg.MaxUndoSteps),
		name:    name,
		cfg:     cfg,
		mu:      *ctxrwmutex.NewCtxRWMutex(),
		current: state.Idle[T](),
	}
}

// Load fetches a new value through op, superseding any load already in
// flight for this store. The caller blocks until the fetch, including
// retries under policy, succeeds, fails terminally, or is cancelled.
//
// The store transitions to loading immediately; a configured debounce
// interval only delays the first fetch attempt. A superseded or cancelled
// call returns a cancelled-classified error and applies nothing, leaving
// the published state to the newer call.
func (s *Store[T]) Load(ctx context.Context, policy retry.Policy, op func(context.Context) (T, error)) error {
	start := time.Now()

	err := s.sup.Run(ctx, loadKey, supervisor.PriorityDefault, func(taskCtx context.Context) error {
		if err := s.beginLoad(taskCtx); err != nil {
			return err
		}

		if err := s.debounce(taskCtx); err != nil {
			return err
		}

		value, opErr := retry.Do(taskCtx, policy, s.log, s.name, op)

		return s.apply(taskCtx, value, opErr)
	})

	metrics.ObserveLoadTime(metrics.ComponentStore, s.name, time.Since(start))

	return err
}

// Update snapshots the current model and applies m to it optimistically.
// One call is one undo step. It reports false, leaving everything
// untouched, when m is nil or no value exists yet.
func (s *Store[T]) Update(m mutation.Mutation[T]) bool {
	if m == nil {
		return false
	}

	return s.mutate(m, "update")
}

// BatchUpdate applies every mutation recorded in b as a single undo step.
// It reports false when b is nil or empty, or when no value exists yet.
func (s *Store[T]) BatchUpdate(b *mutation.Builder[T]) bool {
	if b == nil || b.Len() == 0 {
		return false
	}

	return s.mutate(b.Build(), "batch_update")
}

// Commit drops every retained snapshot. The applied mutations become
// permanent; nothing is left for Discard to restore.
func (s *Store[T]) Commit() {
	if err := s.mu.Lock(context.Background()); err != nil {
		return
	}
	defer s.mu.Unlock()

	s.undo.RemoveAll()
	metrics.SetHistoryDepth(metrics.ComponentStore, s.name, 0)
	s.log.Debugw("Mutations committed", "store", s.name)
}

// Discard undoes the most recent surviving update by restoring its
// snapshot. It reports false when no snapshot is retained; updates evicted
// from the undo window are unrecoverable.
func (s *Store[T]) Discard() bool {
	if err := s.mu.Lock(context.Background()); err != nil {
		return false
	}
	defer s.mu.Unlock()

	snap, ok := s.undo.RemoveLast()
	if !ok {
		return false
	}

	s.publishValue(snap)
	metrics.IncOptimisticUpdate(metrics.ComponentStore, s.name, "discard")
	metrics.SetHistoryDepth(metrics.ComponentStore, s.name, s.undo.Len())

	return true
}

// State returns the current lifecycle state.
func (s *Store[T]) State() state.State[T] {
	if err := s.mu.RLock(context.Background()); err != nil {
		return state.Idle[T]()
	}
	defer s.mu.RUnlock()

	return s.current
}

// Value returns the best available model, the carried-forward one during
// loading and failure. The second return is false only before the first
// successful load.
func (s *Store[T]) Value() (T, bool) {
	return s.State().Data()
}

// Close cancels all outstanding work. The store itself stays usable; a
// later Load starts fresh.
func (s *Store[T]) Close() {
	s.sup.CancelAll()
	s.log.Debugw("Store closed", "store", s.name)
}

// beginLoad transitions the store to loading, carrying the best known
// value forward for readers.
func (s *Store[T]) beginLoad(ctx context.Context) error {
	if err := s.mu.Lock(ctx); err != nil {
		return state.Classify(err)
	}
	defer s.mu.Unlock()

	if err := s.machine.toLoading(ctx); err != nil {
		return state.Classify(err)
	}

	s.current = state.Loading(s.current)

	return nil
}

// debounce waits out the configured interval before the first fetch, so a
// burst of loads collapses into the one that survives the window.
func (s *Store[T]) debounce(ctx context.Context) error {
	if s.cfg.DebounceInterval <= 0 {
		return nil
	}

	timer := time.NewTimer(s.cfg.DebounceInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return state.NewCancelledError(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// apply publishes a terminal load result. The task context is re-checked
// under the write lock: a task superseded while fetching, or while waiting
// for the lock, must not write.
func (s *Store[T]) apply(taskCtx context.Context, value T, opErr error) error {
	if opErr != nil && state.IsCancelledError(opErr) {
		return opErr
	}

	if err := s.mu.Lock(context.Background()); err != nil {
		return state.Classify(err)
	}
	defer s.mu.Unlock()

	if err := taskCtx.Err(); err != nil {
		return state.NewCancelledError(err)
	}

	if opErr != nil {
		classified := state.Classify(opErr)

		if err := s.machine.toFailure(context.Background()); err != nil {
			return state.Classify(err)
		}

		s.current = state.Failure(classified, s.current)
		metrics.IncLoadResult(metrics.ComponentStore, s.name, "failure")
		metrics.IncErrorCount(metrics.ComponentStore, s.name)
		sentry.ReportStoreError(s.log, s.name, metrics.ComponentStore, "load", classified)

		return classified
	}

	if err := s.machine.toSuccess(context.Background()); err != nil {
		return state.Classify(err)
	}

	s.current = state.Success(value)
	metrics.IncLoadResult(metrics.ComponentStore, s.name, "success")
	s.log.Debugw("Load applied", "store", s.name)

	return nil
}

// mutate records a snapshot and publishes the mutated model. A snapshot
// failure is reported and skips the undo entry; the mutation still applies.
func (s *Store[T]) mutate(m mutation.Mutation[T], operation string) bool {
	if err := s.mu.Lock(context.Background()); err != nil {
		return false
	}
	defer s.mu.Unlock()

	value, ok := s.current.Data()
	if !ok {
		return false
	}

	snap, err := snapshot.Clone(value)
	if err != nil {
		// The mutation still applies; it just cannot be discarded again.
		sentry.ReportStoreErrorf(s.log, s.name, metrics.ComponentStore, operation, "Failed to snapshot model before mutation: %v", err)
	} else {
		s.undo.Append(snap)
	}

	s.publishValue(m.Apply(value))
	metrics.IncOptimisticUpdate(metrics.ComponentStore, s.name, operation)
	metrics.SetHistoryDepth(metrics.ComponentStore, s.name, s.undo.Len())

	return true
}

// publishValue replaces the model carried by the current state while
// keeping its phase and error.
func (s *Store[T]) publishValue(value T) {
	switch {
	case s.current.IsLoading():
		s.current = state.Loading(state.Success(value))
	case s.current.IsFailure():
		s.current = state.Failure(s.current.Err(), state.Success(value))
	default:
		s.current = state.Success(value)
	}
}
