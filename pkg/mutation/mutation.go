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

// Package mutation provides pure, composable model transforms. A mutation
// must be deterministic and must not read or write anything outside its
// input; the stores rely on that to apply, replay and undo edits safely.
package mutation

// Mutation transforms one model value into another. Implementations receive
// the model by value and return the edited copy.
type Mutation[T any] func(T) T

// Apply runs the mutation on model and returns the result.
func (m Mutation[T]) Apply(model T) T {
	return m(model)
}

// Merge returns a mutation equal to "apply m, then apply other". The order
// matters: a later mutation's writes to the same field win.
func (m Mutation[T]) Merge(other Mutation[T]) Mutation[T] {
	return func(model T) T {
		return other(m(model))
	}
}

// Identity returns a mutation that leaves the model unchanged.
func Identity[T any]() Mutation[T] {
	return func(model T) T {
		return model
	}
}

// Compose folds mutations into one, applying them in slice order. Nil
// entries are skipped. Composing nothing yields the identity.
func Compose[T any](mutations ...Mutation[T]) Mutation[T] {
	return func(model T) T {
		for _, m := range mutations {
			if m == nil {
				continue
			}

			model = m(model)
		}

		return model
	}
}

// Lens pairs a getter and setter for one field of a model. It stands in for
// key paths: callers define one lens per editable field and reuse it across
// Set and Update calls.
type Lens[T, F any] struct {
	Get func(T) F
	Set func(T, F) T
}

// Set returns a mutation writing value through the lens.
func Set[T, F any](lens Lens[T, F], value F) Mutation[T] {
	return func(model T) T {
		return lens.Set(model, value)
	}
}

// Update returns a mutation that reads the field through the lens, passes it
// to fn and writes the result back.
func Update[T, F any](lens Lens[T, F], fn func(F) F) Mutation[T] {
	return func(model T) T {
		return lens.Set(model, fn(lens.Get(model)))
	}
}
