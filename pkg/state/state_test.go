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

package state_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

type article struct {
	Title string
	Views int
}

var _ = Describe("State", func() {
	Context("when idle", func() {
		It("should expose no data and no error", func() {
			s := state.Idle[article]()

			Expect(s.IsIdle()).To(BeTrue())
			Expect(s.Phase()).To(Equal(state.PhaseIdle))
			Expect(s.Err()).To(BeNil())

			_, ok := s.Data()
			Expect(ok).To(BeFalse())
		})
	})

	Context("when loading", func() {
		It("should carry no data when nothing was loaded before", func() {
			s := state.Loading(state.Idle[article]())

			Expect(s.IsLoading()).To(BeTrue())

			_, ok := s.Data()
			Expect(ok).To(BeFalse())
		})

		It("should retain the previous good value during a reload", func() {
			prev := state.Success(article{Title: "hello", Views: 3})
			s := state.Loading(prev)

			Expect(s.IsLoading()).To(BeTrue())

			v, ok := s.Data()
			Expect(ok).To(BeTrue())
			Expect(v.Title).To(Equal("hello"))
			Expect(v.Views).To(Equal(3))
		})
	})

	Context("when successful", func() {
		It("should expose the loaded value and no error", func() {
			s := state.Success(article{Title: "fresh"})

			Expect(s.IsSuccess()).To(BeTrue())
			Expect(s.Err()).To(BeNil())

			v, ok := s.Data()
			Expect(ok).To(BeTrue())
			Expect(v.Title).To(Equal("fresh"))
		})
	})

	Context("when failed", func() {
		It("should record the error and retain the previous good value", func() {
			prev := state.Success(article{Title: "stale"})
			loadErr := state.NewNetworkError(errors.New("connection refused")) //nolint:err113 // Test needs dynamic error
			s := state.Failure(loadErr, state.Loading(prev))

			Expect(s.IsFailure()).To(BeTrue())
			Expect(s.Err()).To(MatchError(loadErr))

			v, ok := s.Data()
			Expect(ok).To(BeTrue())
			Expect(v.Title).To(Equal("stale"))
		})

		It("should expose no data when no value was ever loaded", func() {
			loadErr := state.ErrNotFound
			s := state.Failure(loadErr, state.Loading(state.Idle[article]()))

			Expect(s.IsFailure()).To(BeTrue())

			_, ok := s.Data()
			Expect(ok).To(BeFalse())
		})
	})

	Context("when converting to a string", func() {
		It("should return the phase label", func() {
			Expect(state.Idle[article]().String()).To(Equal("idle"))
			Expect(state.Success(article{}).String()).To(Equal("success"))
		})
	})
})
