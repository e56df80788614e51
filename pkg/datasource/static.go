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
	"sync"
	"time"

	"github.com/united-manufacturing-hub/statekit/pkg/snapshot"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

// Static serves a fixed model slice from memory. It exists for demos and
// tests: latency can be simulated, and failures can be scripted one call at
// a time to exercise retry behavior.
//
// All returned slices are deep copies of the backing data.
type Static[T any] struct {
	models   []T
	failures []error
	latency  time.Duration
	calls    int
	mu       sync.Mutex
}

// NewStatic creates a source backed by the given models.
func NewStatic[T any](models []T) *Static[T] {
	return &Static[T]{models: models}
}

// WithLatency makes every call wait for d before producing a result. The
// wait respects context cancellation.
func (s *Static[T]) WithLatency(d time.Duration) *Static[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d

	return s
}

// FailNext queues err to be returned by the next call. Queued failures are
// consumed in order, one per call, before any data is served; they pass
// through state.Classify so unclassified errors come back as KindUnknown.
func (s *Static[T]) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

// SetModels replaces the backing data.
func (s *Static[T]) SetModels(models []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

// Calls returns how many Fetch and FetchPage calls reached this source.
func (s *Static[T]) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// Fetch returns a copy of the full backing slice.
func (s *Static[T]) Fetch(ctx context.Context) ([]T, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return snapshot.Clone(s.models)
}

// FetchPage returns a copy of one zero-based page of the backing slice. A
// page past the end is empty, not an error.
func (s *Static[T]) FetchPage(ctx context.Context, page int, pageSize int) ([]T, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 0 || pageSize <= 0 {
		return nil, nil
	}

	start := page * pageSize
	if start >= len(s.models) {
		return nil, nil
	}

	end := start + pageSize
	if end > len(s.models) {
		end = len(s.models)
	}

	return snapshot.Clone(s.models[start:end])
}

// begin counts the call, simulates latency and pops a scripted failure.
func (s *Static[T]) begin(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	wait := s.latency

	var failure error
	if len(s.failures) > 0 {
		failure = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return state.NewCancelledError(ctx.Err())
		case <-timer.C:
		}
	}

	if ctx.Err() != nil {
		return state.NewCancelledError(ctx.Err())
	}

	if failure != nil {
		return state.Classify(failure)
	}

	return nil
}
