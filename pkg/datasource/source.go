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

// Package datasource provides the fetch side of a store: implementations
// that produce model slices from HTTP APIs, in-memory fixtures, or a
// caching layer stacked on either.
//
// Sources do exactly one attempt per call. Retrying is the caller's job
// (stores run sources through the retry executor), so a source that fails
// returns a classified error from the state package and nothing else.
package datasource

import (
	"context"
)

// Source produces model slices. Implementations classify every error they
// return via the state package so stores can present and count failures
// without inspecting transport details.
type Source[T any] interface {
	// Fetch returns the full collection.
	Fetch(ctx context.Context) ([]T, error)

	// FetchPage returns one page. Pages are zero-based and sized by the
	// caller; a short or empty slice means the collection is exhausted.
	FetchPage(ctx context.Context, page int, pageSize int) ([]T, error)
}

// PageOperation adapts src to the offset/limit shape collection stores
// load through. The offset is translated back to a page number, so it must
// be a multiple of the limit (stores always page with a fixed size, which
// guarantees that).
func PageOperation[T any](src Source[T]) func(ctx context.Context, offset int, limit int) ([]T, error) {
	return func(ctx context.Context, offset int, limit int) ([]T, error) {
		if limit <= 0 {
			return nil, nil
		}

		return src.FetchPage(ctx, offset/limit, limit)
	}
}
