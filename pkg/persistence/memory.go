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

package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/united-manufacturing-hub/statekit/pkg/snapshot"
)

// Memory is a thread-safe in-memory Saver.
//
// It keeps model slices in a map keyed by the caller's string keys. All data
// is lost when the process exits; use FileStore when contents must survive a
// restart.
//
// # Concurrency Model
//
// Load can run concurrently with other Loads but blocks during writes. Save
// and Delete acquire an exclusive lock and block all other operations.
//
// # Data Isolation
//
// Models are deep-copied on every Save and Load. External modifications to
// saved or loaded slices do not affect the stored version.
type Memory[T any] struct {
	data map[string][]T
	mu   sync.RWMutex
}

// NewMemory creates a new empty in-memory Saver. The returned store is ready
// for use.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		data: make(map[string][]T),
	}
}

// Save stores a deep copy of models under key, replacing any previous value.
//
// Thread-safe: Acquires exclusive write lock during operation.
func (s *Memory[T]) Save(ctx context.Context, key string, models []T) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	copied, err := snapshot.Clone(models)
	if err != nil {
		return fmt.Errorf("failed to copy models for key %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = copied

	return nil
}

// Load returns a deep copy of the models stored under key.
// Returns ErrNotFound when the key is absent.
//
// Thread-safe: Acquires read lock during operation (allows concurrent reads).
func (s *Memory[T]) Load(ctx context.Context, key string) ([]T, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	models, exists := s.data[key]
	if !exists {
		return nil, ErrNotFound
	}

	copied, err := snapshot.Clone(models)
	if err != nil {
		return nil, fmt.Errorf("failed to copy models for key %q: %w", key, err)
	}

	return copied, nil
}

// Delete removes the models stored under key.
// Returns ErrNotFound when the key is absent.
//
// Thread-safe: Acquires exclusive write lock during operation.
func (s *Memory[T]) Delete(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		return ErrNotFound
	}

	delete(s.data, key)

	return nil
}

// Len returns the number of stored keys.
func (s *Memory[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
