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

// PageOperation is the shape collection loads fetch through: one page of
// models starting at offset, at most limit long.
type PageOperation[T any] func(ctx context.Context, offset int, limit int) ([]T, error)

// Collection owns an asynchronously loaded, paginated slice of models,
// identified by a caller-supplied key function.
//
// Loading follows the same supersede/retry/debounce path as Store. On top
// of it the collection keeps a page cursor for infinite scrolling and one
// undo buffer per model id, so optimistic edits to individual elements can
// be discarded again in a single batch-wide tick.
//
// All methods are safe for concurrent use.
type Collection[T any] struct {
	log     *zap.SugaredLogger
	sup     *supervisor.Supervisor
	machine *lifecycle
	keyOf   func(T) string
	undo    map[string]*history.Buffer[T]
	name    string
	cfg     config.StoreConfig

	// same context aware rwmutex as Store, and for the same reason
	mu ctxrwmutex.CtxRWMutex

	current state.State[[]T]
	page    int
	hasMore bool
}

// NewCollection creates an idle collection. keyOf must return a stable,
// unique id per model; it panics when keyOf is nil because every per-id
// operation depends on it.
func NewCollection[T any](name string, cfg config.StoreConfig, keyOf func(T) string) *Collection[T] {
	if keyOf == nil {
		panic("store: NewCollection requires a keyOf function")
	}

	cfg = cfg.Normalize()

	log := logger.For(logger.ComponentCollection).With("collection", name)
	if !cfg.EnableLogging {
		log = zap.NewNop().Sugar()
	}

	metrics.InitErrorCounter(metrics.ComponentCollection, name)

	return &Collection[T]{
		log:     log,
		sup:     supervisor.New(name, log),
		machine: newLifecycle(name, metrics.ComponentCollection, log),
		keyOf:   keyOf,
		undo:    make(map[string]*history.Buffer[T]),
		name:    name,
		cfg:     cfg,
		mu:      *ctxrwmutex.NewCtxRWMutex(),
		current: state.Idle[[]T](),
	}
}

// LoadPage fetches one page through op, superseding any load in flight.
// offset is page times the configured PageSize, limit the PageSize itself.
// appendPage extends the current slice instead of replacing it. hasMore
// becomes true exactly when op returned a full page. The cursor moves only
// when the page actually applies.
func (c *Collection[T]) LoadPage(ctx context.Context, page int, appendPage bool, policy retry.Policy, op PageOperation[T]) error {
	return c.loadPage(ctx, page, appendPage, false, policy, op)
}

// LoadNextPage fetches the page after the current one and appends it. It
// returns nil without fetching when the last page was short, meaning there
// is nothing further.
func (c *Collection[T]) LoadNextPage(ctx context.Context, policy retry.Policy, op PageOperation[T]) error {
	if err := c.mu.RLock(ctx); err != nil {
		return state.Classify(err)
	}
	page := c.page
	hasMore := c.hasMore
	c.mu.RUnlock()

	if !hasMore {
		c.log.Debugw("No further pages to load", "collection", c.name, "page", page)

		return nil
	}

	return c.loadPage(ctx, page+1, true, false, policy, op)
}

// Refresh replaces the collection with a fresh page zero, resets the
// cursor and drops every per-id undo buffer; a replaced slice is no
// restore target for snapshots of the old one.
func (c *Collection[T]) Refresh(ctx context.Context, policy retry.Policy, op PageOperation[T]) error {
	return c.loadPage(ctx, 0, false, true, policy, op)
}

// Update snapshots the element with the given id into that id's undo
// buffer and applies m to it. It reports false when the collection has no
// data or no element matches id.
func (c *Collection[T]) Update(id string, m mutation.Mutation[T]) bool {
	if m == nil {
		return false
	}

	return c.mutate(id, m, "update")
}

// BatchUpdate applies every mutation recorded in b to the element with the
// given id as a single undo step.
func (c *Collection[T]) BatchUpdate(id string, b *mutation.Builder[T]) bool {
	if b == nil || b.Len() == 0 {
		return false
	}

	return c.mutate(id, b.Build(), "batch_update")
}

// CommitMutations drops every id's undo buffer; all applied element
// mutations become permanent.
func (c *Collection[T]) CommitMutations() {
	if err := c.mu.Lock(context.Background()); err != nil {
		return
	}
	defer c.mu.Unlock()

	c.undo = make(map[string]*history.Buffer[T])
	metrics.SetHistoryDepth(metrics.ComponentCollection, c.name, 0)
	c.log.Debugw("Mutations committed", "collection", c.name)
}

// DiscardMutations pops one snapshot for every dirty id and restores those
// elements, one batch-wide undo tick across the whole collection. It
// returns how many elements were restored.
func (c *Collection[T]) DiscardMutations() int {
	if err := c.mu.Lock(context.Background()); err != nil {
		return 0
	}
	defer c.mu.Unlock()

	models, ok := c.current.Data()
	if !ok {
		return 0
	}

	next := make([]T, len(models))
	copy(next, models)

	restored := 0

	for id, buf := range c.undo {
		idx := c.indexOf(next, id)
		if idx < 0 {
			// The element left the collection; its snapshots have nothing
			// to restore into.
			continue
		}

		snap, ok := buf.RemoveLast()
		if !ok {
			delete(c.undo, id)

			continue
		}

		next[idx] = snap
		restored++

		if buf.Len() == 0 {
			delete(c.undo, id)
		}
	}

	if restored > 0 {
		c.publishSlice(next)
		metrics.IncOptimisticUpdate(metrics.ComponentCollection, c.name, "discard")
	}

	metrics.SetHistoryDepth(metrics.ComponentCollection, c.name, c.historyDepth())

	return restored
}

// Model returns the element with the given id from the best available
// slice. The second return is false when the collection has no data or the
// id is unknown.
func (c *Collection[T]) Model(id string) (T, bool) {
	var zero T

	if err := c.mu.RLock(context.Background()); err != nil {
		return zero, false
	}
	defer c.mu.RUnlock()

	models, ok := c.current.Data()
	if !ok {
		return zero, false
	}

	idx := c.indexOf(models, id)
	if idx < 0 {
		return zero, false
	}

	return models[idx], true
}

// AllModels returns a copy of the best available slice, empty when the
// collection has no data.
func (c *Collection[T]) AllModels() []T {
	if err := c.mu.RLock(context.Background()); err != nil {
		return []T{}
	}
	defer c.mu.RUnlock()

	models, ok := c.current.Data()
	if !ok {
		return []T{}
	}

	out := make([]T, len(models))
	copy(out, models)

	return out
}

// State returns the current lifecycle state of the whole collection.
func (c *Collection[T]) State() state.State[[]T] {
	if err := c.mu.RLock(context.Background()); err != nil {
		return state.Idle[[]T]()
	}
	defer c.mu.RUnlock()

	return c.current
}

// HasMore reports whether the last applied page was full, so a further
// page may exist.
func (c *Collection[T]) HasMore() bool {
	if err := c.mu.RLock(context.Background()); err != nil {
		return false
	}
	defer c.mu.RUnlock()

	return c.hasMore
}

// Page returns the most recently applied page number.
func (c *Collection[T]) Page() int {
	if err := c.mu.RLock(context.Background()); err != nil {
		return 0
	}
	defer c.mu.RUnlock()

	return c.page
}

// Len returns how many models the best available slice holds.
func (c *Collection[T]) Len() int {
	if err := c.mu.RLock(context.Background()); err != nil {
		return 0
	}
	defer c.mu.RUnlock()

	models, _ := c.current.Data()

	return len(models)
}

// Close cancels all outstanding work. The collection stays usable.
func (c *Collection[T]) Close() {
	c.sup.CancelAll()
	c.log.Debugw("Collection closed", "collection", c.name)
}

func (c *Collection[T]) loadPage(ctx context.Context, page int, appendPage bool, resetHistory bool, policy retry.Policy, op PageOperation[T]) error {
	if page < 0 {
		page = 0
	}

	start := time.Now()

	err := c.sup.Run(ctx, loadKey, supervisor.PriorityDefault, func(taskCtx context.Context) error {
		if err := c.beginLoad(taskCtx); err != nil {
			return err
		}

		if err := c.debounce(taskCtx); err != nil {
			return err
		}

		offset := page * c.cfg.PageSize
		limit := c.cfg.PageSize

		models, opErr := retry.Do(taskCtx, policy, c.log, c.name, func(opCtx context.Context) ([]T, error) {
			return op(opCtx, offset, limit)
		})

		return c.applyPage(taskCtx, page, appendPage, resetHistory, models, opErr)
	})

	metrics.ObserveLoadTime(metrics.ComponentCollection, c.name, time.Since(start))

	return err
}

// beginLoad transitions the collection to loading, keeping the best known
// slice readable.
func (c *Collection[T]) beginLoad(ctx context.Context) error {
	if err := c.mu.Lock(ctx); err != nil {
		return state.Classify(err)
	}
	defer c.mu.Unlock()

	if err := c.machine.toLoading(ctx); err != nil {
		return state.Classify(err)
	}

	c.current = state.Loading(c.current)

	return nil
}

// debounce waits out the configured interval before the first fetch.
func (c *Collection[T]) debounce(ctx context.Context) error {
	if c.cfg.DebounceInterval <= 0 {
		return nil
	}

	timer := time.NewTimer(c.cfg.DebounceInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return state.NewCancelledError(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// applyPage publishes a terminal page result, with the same task-context
// guard as Store.apply.
func (c *Collection[T]) applyPage(taskCtx context.Context, page int, appendPage bool, resetHistory bool, models []T, opErr error) error {
	if opErr != nil && state.IsCancelledError(opErr) {
		return opErr
	}

	if err := c.mu.Lock(context.Background()); err != nil {
		return state.Classify(err)
	}
	defer c.mu.Unlock()

	if err := taskCtx.Err(); err != nil {
		return state.NewCancelledError(err)
	}

	if opErr != nil {
		classified := state.Classify(opErr)

		if err := c.machine.toFailure(context.Background()); err != nil {
			return state.Classify(err)
		}

		c.current = state.Failure(classified, c.current)
		metrics.IncLoadResult(metrics.ComponentCollection, c.name, "failure")
		metrics.IncErrorCount(metrics.ComponentCollection, c.name)
		sentry.ReportStoreError(c.log, c.name, metrics.ComponentCollection, "load_page", classified)

		return classified
	}

	next := models
	if appendPage {
		if existing, ok := c.current.Data(); ok {
			merged := make([]T, 0, len(existing)+len(models))
			merged = append(merged, existing...)
			merged = append(merged, models...)
			next = merged
		}
	}

	if err := c.machine.toSuccess(context.Background()); err != nil {
		return state.Classify(err)
	}

	c.current = state.Success(next)
	c.page = page
	c.hasMore = len(models) == c.cfg.PageSize

	if resetHistory {
		c.undo = make(map[string]*history.Buffer[T])
		metrics.SetHistoryDepth(metrics.ComponentCollection, c.name, 0)
	}

	metrics.IncLoadResult(metrics.ComponentCollection, c.name, "success")
	c.log.Debugw("Page applied",
		"collection", c.name,
		"page", page,
		"append", appendPage,
		"returned", len(models),
		"total", len(next),
		"has_more", c.hasMore)

	return nil
}

// mutate records a snapshot for id and publishes the slice with the
// mutated element. A snapshot failure is reported and skips the undo
// entry; the mutation still applies.
func (c *Collection[T]) mutate(id string, m mutation.Mutation[T], operation string) bool {
	if err := c.mu.Lock(context.Background()); err != nil {
		return false
	}
	defer c.mu.Unlock()

	models, ok := c.current.Data()
	if !ok {
		return false
	}

	idx := c.indexOf(models, id)
	if idx < 0 {
		return false
	}

	snap, err := snapshot.Clone(models[idx])
	if err != nil {
		// The mutation still applies; it just cannot be discarded again.
		sentry.ReportStoreErrorf(c.log, c.name, metrics.ComponentCollection, operation, "Failed to snapshot element %q before mutation: %v", id, err)
	} else {
		buf, exists := c.undo[id]
		if !exists {
			buf = history.New[T](c.cfg.MaxUndoSteps)
			c.undo[id] = buf
		}

		buf.Append(snap)
	}

	next := make([]T, len(models))
	copy(next, models)
	next[idx] = m.Apply(models[idx])

	c.publishSlice(next)
	metrics.IncOptimisticUpdate(metrics.ComponentCollection, c.name, operation)
	metrics.SetHistoryDepth(metrics.ComponentCollection, c.name, c.historyDepth())

	return true
}

// publishSlice replaces the slice carried by the current state while
// keeping its phase and error.
func (c *Collection[T]) publishSlice(models []T) {
	switch {
	case c.current.IsLoading():
		c.current = state.Loading(state.Success(models))
	case c.current.IsFailure():
		c.current = state.Failure(c.current.Err(), state.Success(models))
	default:
		c.current = state.Success(models)
	}
}

// indexOf returns the position of the element with the given id, or -1.
func (c *Collection[T]) indexOf(models []T, id string) int {
	for i := range models {
		if c.keyOf(models[i]) == id {
			return i
		}
	}

	return -1
}

// historyDepth counts the retained snapshots across all ids.
func (c *Collection[T]) historyDepth() int {
	depth := 0
	for _, buf := range c.undo {
		depth += buf.Len()
	}

	return depth
}
