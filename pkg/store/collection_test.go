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

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/datasource"
	"github.com/united-manufacturing-hub/statekit/pkg/mutation"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
	"github.com/united-manufacturing-hub/statekit/pkg/store"
)

func catalog(n int) []item {
	models := make([]item, 0, n)
	for i := range n {
		models = append(models, item{
			ID:    fmt.Sprintf("it-%02d", i),
			Title: fmt.Sprintf("Item %d", i),
		})
	}

	return models
}

func setStars(n int) mutation.Mutation[item] {
	return func(it item) item {
		it.Stars = n

		return it
	}
}

var _ = Describe("Collection", func() {
	var (
		ctx context.Context
		src *datasource.Static[item]
		col *store.Collection[item]
	)

	keyOf := func(it item) string { return it.ID }

	BeforeEach(func() {
		ctx = context.Background()
		src = datasource.NewStatic(catalog(25))
		col = store.NewCollection[item]("catalog", quietConfig(), keyOf)
	})

	AfterEach(func() {
		col.Close()
	})

	Context("pagination", func() {
		It("starts idle and empty", func() {
			Expect(col.State().IsIdle()).To(BeTrue())
			Expect(col.AllModels()).To(BeEmpty())
			Expect(col.Len()).To(BeZero())
			Expect(col.HasMore()).To(BeFalse())
			Expect(col.Page()).To(BeZero())

			_, ok := col.Model("it-00")
			Expect(ok).To(BeFalse())

			Expect(col.LoadNextPage(ctx, quickPolicy(1), datasource.PageOperation[item](src))).To(Succeed())
			Expect(src.Calls()).To(BeZero())
		})

		It("pages through the catalog until the source runs dry", func() {
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(20))
			Expect(col.Page()).To(BeZero())
			Expect(col.HasMore()).To(BeTrue())

			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(25))
			Expect(col.Page()).To(Equal(1))
			Expect(col.HasMore()).To(BeFalse())

			calls := src.Calls()
			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(src.Calls()).To(Equal(calls))
			Expect(col.Len()).To(Equal(25))
		})

		It("keeps paging while full pages keep coming", func() {
			src.SetModels(catalog(40))
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.HasMore()).To(BeTrue())

			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(40))

			// The source is exhausted, but the last page was full. Only
			// the empty follow-up page settles the question.
			Expect(col.HasMore()).To(BeTrue())

			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(40))
			Expect(col.HasMore()).To(BeFalse())
		})

		It("replaces the slice when append is off", func() {
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(20))

			Expect(col.LoadPage(ctx, 1, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(5))
			Expect(col.Page()).To(Equal(1))

			_, ok := col.Model("it-00")
			Expect(ok).To(BeFalse())
			_, ok = col.Model("it-24")
			Expect(ok).To(BeTrue())
		})

		It("reports no more pages after a short first page", func() {
			src.SetModels(catalog(7))
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.Len()).To(Equal(7))
			Expect(col.HasMore()).To(BeFalse())

			calls := src.Calls()
			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(src.Calls()).To(Equal(calls))
		})

		It("clamps a negative page to the first page", func() {
			Expect(col.LoadPage(ctx, -3, false, quickPolicy(1), datasource.PageOperation[item](src))).To(Succeed())
			Expect(col.Page()).To(BeZero())
			Expect(col.Len()).To(Equal(20))
		})

		It("hands the page window to the operation as offset and limit", func() {
			var gotOffset, gotLimit atomic.Int32

			err := col.LoadPage(ctx, 2, false, quickPolicy(1), func(_ context.Context, offset int, limit int) ([]item, error) {
				gotOffset.Store(int32(offset))
				gotLimit.Store(int32(limit))

				return nil, nil
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(gotOffset.Load()).To(Equal(int32(40)))
			Expect(gotLimit.Load()).To(Equal(int32(20)))
		})

		It("keeps the previous slice and cursor on failure", func() {
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())

			src.FailNext(state.NewNetworkError(errors.New("backend gone"))) //nolint:err113 // Test needs dynamic error

			err := col.LoadPage(ctx, 1, true, quickPolicy(1), op)
			Expect(state.IsNetworkError(err)).To(BeTrue())

			Expect(col.State().IsFailure()).To(BeTrue())
			Expect(state.IsNetworkError(col.State().Err())).To(BeTrue())
			Expect(col.Len()).To(Equal(20))
			Expect(col.Page()).To(BeZero())
		})

		It("cancels the in-flight page load when a newer one supersedes it", func() {
			blocked := make(chan struct{})
			errCh := make(chan error, 1)

			go func() {
				defer GinkgoRecover()

				errCh <- col.LoadPage(ctx, 0, false, quickPolicy(1), func(opCtx context.Context, _ int, _ int) ([]item, error) {
					close(blocked)
					<-opCtx.Done()

					return nil, opCtx.Err()
				})
			}()

			Eventually(blocked).Should(BeClosed())

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), datasource.PageOperation[item](src))).To(Succeed())

			var err error
			Eventually(errCh).Should(Receive(&err))
			Expect(state.IsCancelledError(err)).To(BeTrue())
			Expect(col.Len()).To(Equal(20))
		})

		It("resets the cursor and drops mutation history on refresh", func() {
			op := datasource.PageOperation[item](src)

			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), op)).To(Succeed())
			Expect(col.LoadNextPage(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(col.Page()).To(Equal(1))

			Expect(col.Update("it-01", setStars(5))).To(BeTrue())

			src.SetModels(catalog(3))

			Expect(col.Refresh(ctx, quickPolicy(1), op)).To(Succeed())
			Expect(col.Page()).To(BeZero())
			Expect(col.Len()).To(Equal(3))
			Expect(col.HasMore()).To(BeFalse())
			Expect(col.DiscardMutations()).To(BeZero())
		})
	})

	Context("per-element mutations", func() {
		BeforeEach(func() {
			Expect(col.LoadPage(ctx, 0, false, quickPolicy(1), datasource.PageOperation[item](src))).To(Succeed())
		})

		It("updates a single element by id", func() {
			Expect(col.Update("it-03", setStars(4))).To(BeTrue())

			updated, ok := col.Model("it-03")
			Expect(ok).To(BeTrue())
			Expect(updated.Stars).To(Equal(4))
			Expect(updated.Title).To(Equal("Item 3"))

			neighbour, _ := col.Model("it-04")
			Expect(neighbour.Stars).To(BeZero())
		})

		It("refuses updates for unknown ids and nil mutations", func() {
			Expect(col.Update("it-99", setStars(1))).To(BeFalse())
			Expect(col.Update("it-03", nil)).To(BeFalse())
			Expect(col.BatchUpdate("it-03", nil)).To(BeFalse())
			Expect(col.BatchUpdate("it-03", mutation.NewBuilder[item]())).To(BeFalse())
		})

		It("refuses updates before any page is loaded", func() {
			empty := store.NewCollection[item]("unloaded", quietConfig(), keyOf)
			defer empty.Close()

			Expect(empty.Update("it-00", setStars(1))).To(BeFalse())
		})

		It("steps every element back one snapshot per discard tick", func() {
			Expect(col.Update("it-01", setStars(1))).To(BeTrue())
			Expect(col.Update("it-01", setStars(2))).To(BeTrue())
			Expect(col.Update("it-02", setStars(9))).To(BeTrue())

			Expect(col.DiscardMutations()).To(Equal(2))

			one, _ := col.Model("it-01")
			Expect(one.Stars).To(Equal(1))
			two, _ := col.Model("it-02")
			Expect(two.Stars).To(BeZero())

			Expect(col.DiscardMutations()).To(Equal(1))

			one, _ = col.Model("it-01")
			Expect(one.Stars).To(BeZero())

			Expect(col.DiscardMutations()).To(BeZero())
		})

		It("treats a batch update as one snapshot for its element", func() {
			b := mutation.NewBuilder[item]().
				Edit(func(it *item) { it.Stars = 5 }).
				Edit(func(it *item) { it.Title = "batched" })

			Expect(col.BatchUpdate("it-04", b)).To(BeTrue())

			updated, _ := col.Model("it-04")
			Expect(updated.Stars).To(Equal(5))
			Expect(updated.Title).To(Equal("batched"))

			Expect(col.DiscardMutations()).To(Equal(1))

			restored, _ := col.Model("it-04")
			Expect(restored.Stars).To(BeZero())
			Expect(restored.Title).To(Equal("Item 4"))
		})

		It("makes mutations permanent on commit", func() {
			Expect(col.Update("it-01", setStars(3))).To(BeTrue())
			Expect(col.Update("it-02", setStars(8))).To(BeTrue())

			col.CommitMutations()

			Expect(col.DiscardMutations()).To(BeZero())

			one, _ := col.Model("it-01")
			Expect(one.Stars).To(Equal(3))
			two, _ := col.Model("it-02")
			Expect(two.Stars).To(Equal(8))
		})

		It("hands out an isolated copy of the models", func() {
			models := col.AllModels()
			Expect(models).To(HaveLen(20))

			models[0].Title = "hijacked"

			kept, _ := col.Model("it-00")
			Expect(kept.Title).To(Equal("Item 0"))
		})
	})
})
