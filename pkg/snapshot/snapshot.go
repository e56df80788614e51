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

// Package snapshot deep-copies model values so history entries, published
// state and persisted payloads never alias a live model. Stores snapshot
// before every optimistic mutation and before handing slices to callers.
package snapshot

import (
	"github.com/tiendc/go-deepcopy"
)

// Clone returns a deep copy of v. Nested maps, slices and pointers are
// copied recursively; the returned value shares no mutable memory with the
// input.
func Clone[T any](v T) (T, error) {
	var copied T

	err := deepcopy.Copy(&copied, &v)
	if err != nil {
		return copied, err
	}

	return copied, nil
}
