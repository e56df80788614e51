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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type testModel struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
	Stars int      `json:"stars"`
}

var _ = Describe("Memory", func() {
	var (
		store *Memory[testModel]
		ctx   context.Context
	)

	BeforeEach(func() {
		store = NewMemory[testModel]()
		ctx = context.Background()
	})

	It("should round-trip models under a key", func() {
		models := []testModel{
			{ID: "a", Title: "first", Stars: 3},
			{ID: "b", Title: "second", Stars: 5, Tags: []string{"new"}},
		}

		Expect(store.Save(ctx, "items", models)).To(Succeed())

		loaded, err := store.Load(ctx, "items")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(models))
	})

	It("should return ErrNotFound for unknown keys", func() {
		_, err := store.Load(ctx, "nope")

		Expect(err).To(MatchError(ErrNotFound))
	})

	It("should replace the previous value on Save", func() {
		Expect(store.Save(ctx, "items", []testModel{{ID: "a"}})).To(Succeed())
		Expect(store.Save(ctx, "items", []testModel{{ID: "b"}, {ID: "c"}})).To(Succeed())

		loaded, err := store.Load(ctx, "items")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(2))
		Expect(loaded[0].ID).To(Equal("b"))
	})

	It("should isolate stored models from the caller's slices", func() {
		models := []testModel{{ID: "a", Title: "original", Tags: []string{"x"}}}
		Expect(store.Save(ctx, "items", models)).To(Succeed())

		// Mutating the input after Save must not change the stored version.
		models[0].Title = "mutated"
		models[0].Tags[0] = "mutated"

		loaded, err := store.Load(ctx, "items")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded[0].Title).To(Equal("original"))
		Expect(loaded[0].Tags[0]).To(Equal("x"))

		// Mutating a loaded slice must not change the stored version either.
		loaded[0].Title = "mutated again"

		reloaded, err := store.Load(ctx, "items")
		Expect(err).NotTo(HaveOccurred())
		Expect(reloaded[0].Title).To(Equal("original"))
	})

	Describe("Delete", func() {
		It("should remove the key", func() {
			Expect(store.Save(ctx, "items", []testModel{{ID: "a"}})).To(Succeed())
			Expect(store.Delete(ctx, "items")).To(Succeed())

			_, err := store.Load(ctx, "items")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should return ErrNotFound for unknown keys", func() {
			Expect(store.Delete(ctx, "nope")).To(MatchError(ErrNotFound))
		})
	})

	It("should track the number of stored keys", func() {
		Expect(store.Len()).To(Equal(0))

		Expect(store.Save(ctx, "a", nil)).To(Succeed())
		Expect(store.Save(ctx, "b", nil)).To(Succeed())
		Expect(store.Len()).To(Equal(2))

		Expect(store.Delete(ctx, "a")).To(Succeed())
		Expect(store.Len()).To(Equal(1))
	})

	It("should reject a nil context", func() {
		Expect(store.Save(nil, "items", nil)).To(HaveOccurred()) //nolint:staticcheck // Passing nil on purpose to exercise the guard
	})
})
