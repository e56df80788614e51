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

// Package persistence stores model slices under string keys so callers can
// hydrate stores on startup and persist them on shutdown. Stores never call
// a Saver implicitly; persistence is always an explicit caller decision.
//
// # Implementations
//
// Memory keeps everything in process memory and exists for tests and
// development. FileStore writes one zstd-compressed JSON file per key and
// survives restarts.
//
// # Data Isolation
//
// Both implementations deep-copy models on the way in and out. A caller
// mutating a slice it saved or loaded never changes what the store holds.
package persistence

import (
	"context"
	"errors"
)

// Saver persists and restores model slices under string keys.
type Saver[T any] interface {
	// Save stores models under key, replacing any previous value.
	Save(ctx context.Context, key string, models []T) error

	// Load returns the models stored under key.
	// Returns ErrNotFound when the key is absent.
	Load(ctx context.Context, key string) ([]T, error)

	// Delete removes the models stored under key.
	// Returns ErrNotFound when the key is absent.
	Delete(ctx context.Context, key string) error
}

// ErrNotFound indicates no models are stored under the requested key.
// Check with errors.Is(err, persistence.ErrNotFound).
var ErrNotFound = &storeError{msg: "key not found"}

// storeError implements the error interface for persistence sentinels.
type storeError struct {
	msg string
}

func (e *storeError) Error() string {
	return e.msg
}

// validateContext checks if the provided context is nil.
// Returns an error if ctx is nil, otherwise returns nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	return nil
}
