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
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

var _ = Describe("Error taxonomy", func() {
	Context("when classifying errors", func() {
		It("should keep nil as nil", func() {
			Expect(state.Classify(nil)).To(BeNil())
		})

		It("should pass already-classified errors through unchanged", func() {
			original := state.NewDecodeError(errors.New("unexpected end of JSON input")) //nolint:err113 // Test needs dynamic error
			classified := state.Classify(original)

			Expect(classified).To(BeIdenticalTo(original))
			Expect(state.IsDecodeError(classified)).To(BeTrue())
		})

		It("should map context cancellation to the cancelled kind", func() {
			classified := state.Classify(context.Canceled)

			Expect(state.IsCancelledError(classified)).To(BeTrue())
			Expect(state.KindOf(classified)).To(Equal(state.KindCancelled))
			Expect(errors.Is(classified, context.Canceled)).To(BeTrue())
		})

		It("should map a deadline expiry to the network kind", func() {
			classified := state.Classify(context.DeadlineExceeded)

			Expect(state.IsNetworkError(classified)).To(BeTrue())
		})

		It("should map anything else to the unknown kind", func() {
			classified := state.Classify(errors.New("disk on fire")) //nolint:err113 // Test needs dynamic error

			Expect(state.KindOf(classified)).To(Equal(state.KindUnknown))
		})
	})

	Context("when checking error kinds", func() {
		It("should identify cancelled errors even through wrapping", func() {
			wrapped := fmt.Errorf("load aborted: %w", state.NewCancelledError(context.Canceled))

			Expect(state.IsCancelledError(wrapped)).To(BeTrue())
			Expect(state.IsNetworkError(wrapped)).To(BeFalse())
		})

		It("should identify raw context cancellation without prior classification", func() {
			Expect(state.IsCancelledError(context.Canceled)).To(BeTrue())
		})

		It("should recognize the message-free sentinels", func() {
			Expect(state.IsNotFoundError(state.ErrNotFound)).To(BeTrue())
			Expect(state.IsUnauthorizedError(state.ErrUnauthorized)).To(BeTrue())

			wrapped := fmt.Errorf("GET /articles/9: %w", state.ErrNotFound)
			Expect(state.IsNotFoundError(wrapped)).To(BeTrue())
			Expect(errors.Is(wrapped, state.ErrNotFound)).To(BeTrue())
		})

		It("should use the kind label as message for message-free kinds", func() {
			Expect(state.ErrNotFound.Error()).To(Equal("not_found"))
			Expect(state.ErrUnauthorized.Error()).To(Equal("unauthorized"))
		})

		It("should keep the underlying message for wrapped kinds", func() {
			netErr := state.NewNetworkError(errors.New("connection reset by peer")) //nolint:err113 // Test needs dynamic error

			Expect(netErr.Error()).To(Equal("connection reset by peer"))

			var se *state.Error
			Expect(errors.As(netErr, &se)).To(BeTrue())
			Expect(se.Unwrap()).To(MatchError("connection reset by peer"))
		})
	})

	Context("when labelling kinds", func() {
		It("should produce stable metric-safe labels", func() {
			Expect(state.KindNetwork.String()).To(Equal("network"))
			Expect(state.KindDecode.String()).To(Equal("decode"))
			Expect(state.KindNotFound.String()).To(Equal("not_found"))
			Expect(state.KindUnauthorized.String()).To(Equal("unauthorized"))
			Expect(state.KindCancelled.String()).To(Equal("cancelled"))
			Expect(state.KindUnknown.String()).To(Equal("unknown"))
		})
	})
})
