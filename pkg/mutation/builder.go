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

package mutation

// Builder accumulates an ordered list of field setters and transforms and
// combines them into a single mutation. Application order is insertion
// order, so multiple setters targeting the same field are last-write-wins.
//
// A Builder is not goroutine-safe; build it on one goroutine and hand the
// resulting Mutation around instead.
type Builder[T any] struct {
	ops []Mutation[T]
}

// NewBuilder returns an empty builder.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Apply queues an arbitrary mutation. Nil mutations are ignored.
func (b *Builder[T]) Apply(m Mutation[T]) *Builder[T] {
	if m != nil {
		b.ops = append(b.ops, m)
	}

	return b
}

// Edit queues an in-place edit expressed against a pointer to a copy of the
// model. The edit never sees the store's live value.
func (b *Builder[T]) Edit(edit func(*T)) *Builder[T] {
	if edit == nil {
		return b
	}

	b.ops = append(b.ops, func(model T) T {
		edit(&model)

		return model
	})

	return b
}

// Build combines everything queued so far into one mutation. Building an
// empty builder yields the identity. The builder stays usable afterwards;
// later additions do not affect previously built mutations.
func (b *Builder[T]) Build() Mutation[T] {
	queued := make([]Mutation[T], len(b.ops))
	copy(queued, b.ops)

	return Compose(queued...)
}

// Len returns how many operations are queued.
func (b *Builder[T]) Len() int {
	return len(b.ops)
}
