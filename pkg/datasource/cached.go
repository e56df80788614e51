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

package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"github.com/united-manufacturing-hub/statekit/pkg/logger"
	"github.com/united-manufacturing-hub/statekit/pkg/sentry"
	"github.com/united-manufacturing-hub/statekit/pkg/snapshot"
	"go.uber.org/zap"
)

// cacheKeyAll is the cache key for full-collection fetches.
const cacheKeyAll = "all"

// Cached wraps another source and serves repeated fetches from an expiring
// in-memory cache. Full fetches and each (page, pageSize) combination are
// cached under separate keys with a shared TTL.
//
// Cached entries are private copies. Callers get a fresh copy on every hit,
// so mutating a returned slice never corrupts the cache, and errors are
// never cached.
type Cached[T any] struct {
	inner        Source[T]
	cache        *expiremap.ExpireMap[string, []T]
	log          *zap.SugaredLogger
	cullInterval time.Duration
	ttl          time.Duration
	mu           sync.RWMutex
}

// NewCached creates a caching wrapper around inner. Entries expire after
// ttl and are swept every cullInterval.
func NewCached[T any](inner Source[T], cullInterval, ttl time.Duration) *Cached[T] {
	return &Cached[T]{
		inner:        inner,
		cache:        expiremap.NewEx[string, []T](cullInterval, ttl),
		log:          logger.For(logger.ComponentDataSource),
		cullInterval: cullInterval,
		ttl:          ttl,
	}
}

// WithLogger replaces the logger.
func (c *Cached[T]) WithLogger(log *zap.SugaredLogger) *Cached[T] {
	c.log = log

	return c
}

// Fetch returns the full collection, from cache when a live entry exists.
func (c *Cached[T]) Fetch(ctx context.Context) ([]T, error) {
	return c.fetch(ctx, cacheKeyAll, c.inner.Fetch)
}

// FetchPage returns one page, from cache when a live entry exists for the
// same page and size.
func (c *Cached[T]) FetchPage(ctx context.Context, page int, pageSize int) ([]T, error) {
	key := fmt.Sprintf("page:%d:%d", page, pageSize)

	return c.fetch(ctx, key, func(ctx context.Context) ([]T, error) {
		return c.inner.FetchPage(ctx, page, pageSize)
	})
}

// Invalidate drops every cached entry. The next fetch of each key goes back
// to the inner source.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = expiremap.NewEx[string, []T](c.cullInterval, c.ttl)
	c.log.Debug("Invalidated source cache")
}

// Len returns the number of live cache entries.
func (c *Cached[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache.Length()
}

// fetch serves key from the cache, falling back to load on a miss. Only
// successful loads are cached.
func (c *Cached[T]) fetch(ctx context.Context, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	c.mu.RLock()
	cached, ok := c.cache.Load(key)
	c.mu.RUnlock()

	if ok {
		models, err := snapshot.Clone(*cached)
		if err == nil {
			c.log.Debugf("Cache hit for %q", key)

			return models, nil
		}

		// A hit we cannot copy out is served from the inner source instead.
		sentry.ReportSourceErrorf(c.log, "cached", "fetch", "failed to copy cached entry %q: %v", key, err)
	}

	models, err := load(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := snapshot.Clone(models)
	if err != nil {
		sentry.ReportSourceErrorf(c.log, "cached", "fetch", "failed to copy entry %q for caching: %v", key, err)

		return models, nil
	}

	c.mu.Lock()
	c.cache.Set(key, stored)
	c.mu.Unlock()

	return models, nil
}
